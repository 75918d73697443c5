package scoring

import "github.com/gin-gonic/gin"

// SetupScoringRoutes registers scoring routes on the /admin/waitlists/:waitlist_id group
func SetupScoringRoutes(waitlist *gin.RouterGroup, controller *Controller) {
	waitlist.POST("/adjustments", controller.ManualAdjust)                              // Manual point adjustment
	waitlist.GET("/subscribers/:subscriber_id/adjustments", controller.ListAdjustments) // Audit trail
	waitlist.GET("/reconciliation", controller.Reconcile)                               // Replay ledger, report drift
}
