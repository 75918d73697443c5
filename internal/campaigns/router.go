package campaigns

import "github.com/gin-gonic/gin"

// SetupCampaignRoutes configures campaign routes. public is rooted at
// /public/waitlists/:slug and waitlist at /admin/waitlists/:waitlist_id.
func SetupCampaignRoutes(public, waitlist *gin.RouterGroup, controller *Controller) {
	public.GET("", controller.PublicView) // Landing page: active campaign, rules and rewards

	campaigns := waitlist.Group("/campaigns")
	{
		campaigns.GET("", controller.ListCampaigns)
		campaigns.POST("", controller.CreateCampaign)
		campaigns.GET("/:campaign_id", controller.GetCampaign)
		campaigns.POST("/:campaign_id/activate", controller.ActivateCampaign)
		campaigns.POST("/:campaign_id/end", controller.EndCampaign)
		campaigns.GET("/:campaign_id/rewards", controller.ListRewards)
		campaigns.POST("/:campaign_id/rewards", controller.AddReward)
	}
}
