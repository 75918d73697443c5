package waitlist

import (
	"github.com/gin-gonic/gin"
)

// SetupWaitlistRoutes configures waitlist routes. public is rooted at
// /public/waitlists/:slug, admin at /admin/waitlists and scoped at
// /admin/waitlists/:waitlist_id behind the access check.
func SetupWaitlistRoutes(public, admin, scoped *gin.RouterGroup, controller *Controller) {
	public.POST("/subscribers", controller.Signup) // Join a waitlist

	admin.POST("", controller.CreateWaitlist) // Create waitlist for the caller's organization
	admin.GET("", controller.ListWaitlists)   // List the organization's waitlists

	scoped.GET("", controller.GetWaitlist) // Waitlist with stats
	subscribers := scoped.Group("/subscribers")
	{
		subscribers.GET("", controller.ListSubscribers)
		subscribers.POST("/:subscriber_id/verify", controller.VerifySubscriber)
		subscribers.DELETE("/:subscriber_id", controller.UnsubscribeSubscriber)
	}
}
