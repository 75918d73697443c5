package referrals

import "github.com/gin-gonic/gin"

// SetupReferralRoutes registers the referral ledger on an authorized waitlist group
func SetupReferralRoutes(waitlist *gin.RouterGroup, controller *Controller) {
	referrals := waitlist.Group("/referrals")
	{
		referrals.GET("", controller.ListReferrals)                               // GET /admin/waitlists/:waitlist_id/referrals?status=
		referrals.POST("", controller.RecordReferral)                             // POST /admin/waitlists/:waitlist_id/referrals
		referrals.GET("/:referral_id", controller.GetReferral)                    // GET /admin/waitlists/:waitlist_id/referrals/:referral_id
		referrals.POST("/:referral_id/transition", controller.TransitionReferral) // POST /admin/waitlists/:waitlist_id/referrals/:referral_id/transition
	}
}
