package scoring

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

func (c *Controller) ManualAdjust(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}

	var req ManualAdjustmentRequest
	if !request.BindJSON(ctx, &req) {
		return
	}

	adjustment, err := c.service.ManualAdjust(ctx.Request.Context(), waitlistID, req, request.Actor(ctx))
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Points adjusted", adjustment, nil)
}

func (c *Controller) ListAdjustments(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}
	subscriberID, ok := request.UUIDParam(ctx, "subscriber_id")
	if !ok {
		return
	}

	adjustments, err := c.service.ListAdjustments(ctx.Request.Context(), waitlistID, subscriberID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Adjustments retrieved successfully", adjustments, nil)
}

func (c *Controller) Reconcile(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}

	report, err := c.service.Reconcile(ctx.Request.Context(), waitlistID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reconciliation completed", report, nil)
}
