package campaigns

import (
	"net/http"

	"waitly/internal/shared/utils/request"
	"waitly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// PublicView is the unauthenticated landing page read model
func (c *Controller) PublicView(ctx *gin.Context) {
	view, err := c.service.PublicView(ctx.Request.Context(), ctx.Param("slug"))
	if err != nil {
		response.RespondError(ctx, err, false)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist retrieved successfully", view, nil)
}

func (c *Controller) CreateCampaign(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}

	var req CreateCampaignRequest
	if !request.BindJSON(ctx, &req) {
		return
	}

	campaign, err := c.service.CreateCampaign(ctx.Request.Context(), waitlistID, req)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Campaign created successfully", campaign, nil)
}

func (c *Controller) ListCampaigns(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}

	campaigns, err := c.service.ListCampaigns(ctx.Request.Context(), waitlistID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Campaigns retrieved successfully", campaigns, nil)
}

func (c *Controller) GetCampaign(ctx *gin.Context) {
	waitlistID, campaignID, ok := campaignParams(ctx)
	if !ok {
		return
	}

	campaign, err := c.service.GetCampaign(ctx.Request.Context(), waitlistID, campaignID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Campaign retrieved successfully", campaign, nil)
}

func (c *Controller) ActivateCampaign(ctx *gin.Context) {
	waitlistID, campaignID, ok := campaignParams(ctx)
	if !ok {
		return
	}

	campaign, err := c.service.ActivateCampaign(ctx.Request.Context(), waitlistID, campaignID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Campaign activated", campaign, nil)
}

func (c *Controller) EndCampaign(ctx *gin.Context) {
	waitlistID, campaignID, ok := campaignParams(ctx)
	if !ok {
		return
	}

	campaign, err := c.service.EndCampaign(ctx.Request.Context(), waitlistID, campaignID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Campaign ended", campaign, nil)
}

func (c *Controller) AddReward(ctx *gin.Context) {
	waitlistID, campaignID, ok := campaignParams(ctx)
	if !ok {
		return
	}

	var req CreateRewardRequest
	if !request.BindJSON(ctx, &req) {
		return
	}

	reward, err := c.service.AddReward(ctx.Request.Context(), waitlistID, campaignID, req)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Reward created successfully", reward, nil)
}

func (c *Controller) ListRewards(ctx *gin.Context) {
	waitlistID, campaignID, ok := campaignParams(ctx)
	if !ok {
		return
	}

	rewards, err := c.service.ListRewards(ctx.Request.Context(), waitlistID, campaignID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Rewards retrieved successfully", rewards, nil)
}

func campaignParams(ctx *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	campaignID, ok := request.UUIDParam(ctx, "campaign_id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return waitlistID, campaignID, true
}
