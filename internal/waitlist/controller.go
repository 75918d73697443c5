package waitlist

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
	return &Controller{
		service: service,
	}
}

// Public endpoints

func (c *Controller) Signup(ctx *gin.Context) {
	var req SignupRequest
	if !request.BindJSON(ctx, &req) {
		return
	}

	result, err := c.service.Signup(ctx.Request.Context(), ctx.Param("slug"), req)
	if err != nil {
		response.RespondError(ctx, err, false)
		return
	}

	if !result.Created {
		response.RespondJSON(ctx, "success", http.StatusOK, "Already on the waitlist", result, nil)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, "Successfully joined waitlist", result, nil)
}

// Admin endpoints

func (c *Controller) CreateWaitlist(ctx *gin.Context) {
	var req CreateWaitlistRequest
	if !request.BindJSON(ctx, &req) {
		return
	}

	waitlist, err := c.service.CreateWaitlist(ctx.Request.Context(), request.OrganizationID(ctx), req)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Waitlist created successfully", waitlist, nil)
}

func (c *Controller) ListWaitlists(ctx *gin.Context) {
	waitlists, err := c.service.ListWaitlists(ctx.Request.Context(), request.OrganizationID(ctx))
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlists retrieved successfully", waitlists, nil)
}

func (c *Controller) GetWaitlist(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}

	detail, err := c.service.GetWaitlist(ctx.Request.Context(), waitlistID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist retrieved successfully", detail, nil)
}

func (c *Controller) ListSubscribers(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}

	var query ListSubscribersQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	subscribers, err := c.service.ListSubscribers(ctx.Request.Context(), waitlistID, query)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Subscribers retrieved successfully", subscribers, nil)
}

func (c *Controller) VerifySubscriber(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}
	subscriberID, ok := request.UUIDParam(ctx, "subscriber_id")
	if !ok {
		return
	}

	subscriber, err := c.service.VerifySubscriber(ctx.Request.Context(), waitlistID, subscriberID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Subscriber verified", subscriber, nil)
}

func (c *Controller) UnsubscribeSubscriber(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}
	subscriberID, ok := request.UUIDParam(ctx, "subscriber_id")
	if !ok {
		return
	}

	subscriber, err := c.service.UnsubscribeSubscriber(ctx.Request.Context(), waitlistID, subscriberID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Subscriber unsubscribed", subscriber, nil)
}
