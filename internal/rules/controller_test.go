package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"waitly/internal/shared/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) CreateRule(ctx context.Context, waitlistID uuid.UUID, req CreateRuleRequest) (*PointRule, error) {
	args := m.Called(ctx, waitlistID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PointRule), args.Error(1)
}

func (m *mockService) UpdateRule(ctx context.Context, waitlistID, ruleID uuid.UUID, req UpdateRuleRequest) (*PointRule, error) {
	args := m.Called(ctx, waitlistID, ruleID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PointRule), args.Error(1)
}

func (m *mockService) DeactivateRule(ctx context.Context, waitlistID, ruleID uuid.UUID) (*PointRule, error) {
	args := m.Called(ctx, waitlistID, ruleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PointRule), args.Error(1)
}

func (m *mockService) ListRules(ctx context.Context, waitlistID uuid.UUID) ([]PointRule, error) {
	args := m.Called(ctx, waitlistID)
	return args.Get(0).([]PointRule), args.Error(1)
}

func (m *mockService) ListActiveRules(ctx context.Context, waitlistID uuid.UUID) ([]PointRule, error) {
	args := m.Called(ctx, waitlistID)
	return args.Get(0).([]PointRule), args.Error(1)
}

func setupEngine(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	SetupRuleRoutes(engine.Group("/waitlists/:waitlist_id"), NewController(svc))
	return engine
}

func TestCreateRuleHandler(t *testing.T) {
	svc := new(mockService)
	waitlistID := uuid.New()
	req := CreateRuleRequest{Name: "Confirmed", EventType: EventReferralConfirmed, Points: 10}
	svc.On("CreateRule", mock.Anything, waitlistID, req).
		Return(&PointRule{ID: uuid.New(), WaitlistID: waitlistID, Name: "Confirmed", Points: 10}, nil)

	body, _ := json.Marshal(req)
	w := httptest.NewRecorder()
	setupEngine(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/waitlists/"+waitlistID.String()+"/rules", bytes.NewReader(body)))

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestCreateRuleHandler_RejectsMissingPoints(t *testing.T) {
	svc := new(mockService)

	w := httptest.NewRecorder()
	setupEngine(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/waitlists/"+uuid.NewString()+"/rules",
		bytes.NewReader([]byte(`{"name":"Confirmed","event_type":"REFERRAL_CONFIRMED"}`))))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "CreateRule", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeactivateRuleHandler_NotFound(t *testing.T) {
	svc := new(mockService)
	waitlistID, ruleID := uuid.New(), uuid.New()
	svc.On("DeactivateRule", mock.Anything, waitlistID, ruleID).Return(nil, apperrors.NotFound("point rule", ruleID))

	w := httptest.NewRecorder()
	setupEngine(svc).ServeHTTP(w, httptest.NewRequest(http.MethodDelete,
		"/waitlists/"+waitlistID.String()+"/rules/"+ruleID.String(), nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRulesHandler_InvalidWaitlistID(t *testing.T) {
	w := httptest.NewRecorder()
	setupEngine(new(mockService)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/waitlists/not-a-uuid/rules", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
