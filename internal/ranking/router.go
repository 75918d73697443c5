package ranking

import "github.com/gin-gonic/gin"

// SetupRankingRoutes configures leaderboard routes. public is rooted at
// /public/waitlists/:slug and waitlist at /admin/waitlists/:waitlist_id.
func SetupRankingRoutes(public, waitlist *gin.RouterGroup, controller *Controller) {
	public.GET("/leaderboard", controller.PublicLeaderboard)          // Top subscribers, emails masked
	public.GET("/standing/:referral_code", controller.PublicStanding) // Own position and earned rewards

	waitlist.GET("/leaderboard", controller.Leaderboard)
	waitlist.POST("/leaderboard/recompute", controller.Recompute)
	waitlist.GET("/subscribers/:subscriber_id/standing", controller.Standing)
}
