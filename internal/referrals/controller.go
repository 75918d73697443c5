package referrals

import (
	"net/http"

	"waitly/internal/shared/utils/request"
	"waitly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func (c *Controller) RecordReferral(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}

	var req RecordReferralRequest
	if !request.BindJSON(ctx, &req) {
		return
	}

	referral, err := c.service.RecordReferral(ctx.Request.Context(), waitlistID, req.ReferrerID, req.ReferredID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Referral recorded successfully", referral, nil)
}

func (c *Controller) ListReferrals(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}

	var query ListReferralsQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	referrals, err := c.service.ListReferrals(ctx.Request.Context(), waitlistID, query.Status)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Referrals retrieved successfully", referrals, nil)
}

func (c *Controller) GetReferral(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}
	referralID, ok := request.UUIDParam(ctx, "referral_id")
	if !ok {
		return
	}

	referral, err := c.service.GetReferral(ctx.Request.Context(), waitlistID, referralID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Referral retrieved successfully", referral, nil)
}

// TransitionReferral moves a referral to the requested status
func (c *Controller) TransitionReferral(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}
	referralID, ok := request.UUIDParam(ctx, "referral_id")
	if !ok {
		return
	}

	var req TransitionRequest
	if !request.BindJSON(ctx, &req) {
		return
	}

	referral, err := c.service.Transition(ctx.Request.Context(), waitlistID, referralID, req.Status)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Referral updated", referral, nil)
}
