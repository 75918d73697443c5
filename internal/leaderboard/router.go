package leaderboard

import "github.com/gin-gonic/gin"

// SetupLeaderboardRoutes configures snapshot routes. public is rooted at
// /public/waitlists/:slug and waitlist at /admin/waitlists/:waitlist_id.
func SetupLeaderboardRoutes(public, waitlist *gin.RouterGroup, controller *Controller) {
	public.GET("/snapshots/final", controller.PublicFinalSnapshot) // Final standings of the current campaign

	snapshots := waitlist.Group("/snapshots")
	{
		snapshots.GET("", controller.ListSnapshots)
		snapshots.POST("", controller.CreateSnapshot) // createLeaderboardSnapshot
		snapshots.GET("/:snapshot_id", controller.GetSnapshot)
	}

	waitlist.GET("/campaigns/:campaign_id/final-snapshot", controller.GetFinalSnapshot)
}
