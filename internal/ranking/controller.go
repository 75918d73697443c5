package ranking

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

func bindLeaderboardQuery(ctx *gin.Context) (LeaderboardQuery, bool) {
	var query LeaderboardQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return query, false
	}
	return query, true
}

func (c *Controller) PublicLeaderboard(ctx *gin.Context) {
	query, ok := bindLeaderboardQuery(ctx)
	if !ok {
		return
	}

	leaderboard, err := c.service.PublicTop(ctx.Request.Context(), ctx.Param("slug"), query.Limit)
	if err != nil {
		response.RespondError(ctx, err, false)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Leaderboard retrieved successfully", leaderboard, nil)
}

func (c *Controller) PublicStanding(ctx *gin.Context) {
	standing, err := c.service.PublicStanding(ctx.Request.Context(), ctx.Param("slug"), ctx.Param("referral_code"))
	if err != nil {
		response.RespondError(ctx, err, false)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Standing retrieved successfully", standing, nil)
}

func (c *Controller) Leaderboard(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}
	query, ok := bindLeaderboardQuery(ctx)
	if !ok {
		return
	}

	leaderboard, err := c.service.Top(ctx.Request.Context(), waitlistID, query.Limit)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Leaderboard retrieved successfully", leaderboard, nil)
}

func (c *Controller) Standing(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}
	subscriberID, ok := request.UUIDParam(ctx, "subscriber_id")
	if !ok {
		return
	}

	standing, err := c.service.Standing(ctx.Request.Context(), waitlistID, subscriberID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Standing retrieved successfully", standing, nil)
}

func (c *Controller) Recompute(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}

	positions, err := c.service.Recompute(ctx.Request.Context(), waitlistID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Positions recomputed",
		RecomputeResponse{WaitlistID: waitlistID, Ranked: len(positions)}, nil)
}
