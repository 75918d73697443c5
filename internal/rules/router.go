package rules

import "github.com/gin-gonic/gin"

// SetupRuleRoutes registers rule management on an authorized waitlist group
func SetupRuleRoutes(waitlist *gin.RouterGroup, controller Controller) {
	rules := waitlist.Group("/rules")
	{
		rules.GET("", controller.ListRules)                 // GET /admin/waitlists/:waitlist_id/rules
		rules.POST("", controller.CreateRule)               // POST /admin/waitlists/:waitlist_id/rules
		rules.PATCH("/:rule_id", controller.UpdateRule)     // PATCH /admin/waitlists/:waitlist_id/rules/:rule_id
		rules.DELETE("/:rule_id", controller.DeactivateRule) // DELETE /admin/waitlists/:waitlist_id/rules/:rule_id
	}
}
