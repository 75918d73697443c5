package rules

import (
	"net/http"

	"waitly/internal/shared/utils/request"
	"waitly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller interface {
	CreateRule(c *gin.Context)
	UpdateRule(c *gin.Context)
	DeactivateRule(c *gin.Context)
	ListRules(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) CreateRule(c *gin.Context) {
	waitlistID, ok := request.UUIDParam(c, "waitlist_id")
	if !ok {
		return
	}

	var req CreateRuleRequest
	if !request.BindJSON(c, &req) {
		return
	}

	rule, err := ctrl.service.CreateRule(c.Request.Context(), waitlistID, req)
	if err != nil {
		response.RespondError(c, err, true)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Point rule created successfully", rule, nil)
}

func (ctrl *controller) UpdateRule(c *gin.Context) {
	waitlistID, ok := request.UUIDParam(c, "waitlist_id")
	if !ok {
		return
	}
	ruleID, ok := request.UUIDParam(c, "rule_id")
	if !ok {
		return
	}

	var req UpdateRuleRequest
	if !request.BindJSON(c, &req) {
		return
	}

	rule, err := ctrl.service.UpdateRule(c.Request.Context(), waitlistID, ruleID, req)
	if err != nil {
		response.RespondError(c, err, true)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Point rule updated successfully", rule, nil)
}

func (ctrl *controller) DeactivateRule(c *gin.Context) {
	waitlistID, ok := request.UUIDParam(c, "waitlist_id")
	if !ok {
		return
	}
	ruleID, ok := request.UUIDParam(c, "rule_id")
	if !ok {
		return
	}

	rule, err := ctrl.service.DeactivateRule(c.Request.Context(), waitlistID, ruleID)
	if err != nil {
		response.RespondError(c, err, true)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Point rule deactivated", rule, nil)
}

func (ctrl *controller) ListRules(c *gin.Context) {
	waitlistID, ok := request.UUIDParam(c, "waitlist_id")
	if !ok {
		return
	}

	rules, err := ctrl.service.ListRules(c.Request.Context(), waitlistID)
	if err != nil {
		response.RespondError(c, err, true)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Point rules retrieved successfully", rules, nil)
}
