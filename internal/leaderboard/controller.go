package leaderboard

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

func (c *Controller) CreateSnapshot(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}

	// An empty body takes an interim snapshot of the active campaign
	var req CreateSnapshotRequest
	if ctx.Request.ContentLength != 0 && !request.BindJSON(ctx, &req) {
		return
	}

	snapshot, err := c.service.CreateSnapshot(ctx.Request.Context(), waitlistID, req)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Snapshot created successfully", snapshot, nil)
}

func (c *Controller) ListSnapshots(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}

	snapshots, err := c.service.ListSnapshots(ctx.Request.Context(), waitlistID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Snapshots retrieved successfully", snapshots, nil)
}

func (c *Controller) GetSnapshot(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}
	snapshotID, ok := request.UUIDParam(ctx, "snapshot_id")
	if !ok {
		return
	}

	snapshot, err := c.service.GetSnapshot(ctx.Request.Context(), waitlistID, snapshotID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Snapshot retrieved successfully", snapshot, nil)
}

func (c *Controller) GetFinalSnapshot(ctx *gin.Context) {
	waitlistID, ok := request.UUIDParam(ctx, "waitlist_id")
	if !ok {
		return
	}
	campaignID, ok := request.UUIDParam(ctx, "campaign_id")
	if !ok {
		return
	}

	snapshot, err := c.service.GetFinalSnapshot(ctx.Request.Context(), waitlistID, campaignID)
	if err != nil {
		response.RespondError(ctx, err, true)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Final snapshot retrieved successfully", snapshot, nil)
}

func (c *Controller) PublicFinalSnapshot(ctx *gin.Context) {
	var query PublicSnapshotQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	final, err := c.service.PublicFinalSnapshot(ctx.Request.Context(), ctx.Param("slug"), query.Limit)
	if err != nil {
		response.RespondError(ctx, err, false)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Final standings retrieved successfully", final, nil)
}
