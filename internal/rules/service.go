package rules

import (
	"context"
	"strings"

	"waitly/internal/shared/apperrors"

	"github.com/google/uuid"
)

// Service manages the point rule registry of a waitlist
type Service interface {
	CreateRule(ctx context.Context, waitlistID uuid.UUID, req CreateRuleRequest) (*PointRule, error)
	UpdateRule(ctx context.Context, waitlistID, ruleID uuid.UUID, req UpdateRuleRequest) (*PointRule, error)
	DeactivateRule(ctx context.Context, waitlistID, ruleID uuid.UUID) (*PointRule, error)
	ListRules(ctx context.Context, waitlistID uuid.UUID) ([]PointRule, error)
	ListActiveRules(ctx context.Context, waitlistID uuid.UUID) ([]PointRule, error)
}

type service struct {
	repo Repository
}

// NewService creates a new rule service
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateRule(ctx context.Context, waitlistID uuid.UUID, req CreateRuleRequest) (*PointRule, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("rule name is required")
	}
	if !req.EventType.IsValid() {
		return nil, apperrors.Validation("unsupported event type %q", req.EventType)
	}
	if req.Points == 0 {
		return nil, apperrors.Validation("points must not be zero")
	}
	condition := strings.TrimSpace(req.Condition)
	if err := ValidateCondition(condition); err != nil {
		return nil, apperrors.Validation("invalid condition: %v", err)
	}

	rule := &PointRule{
		WaitlistID: waitlistID,
		Name:       name,
		EventType:  req.EventType,
		Points:     req.Points,
		Priority:   DefaultPriority,
		IsActive:   true,
		Exclusive:  req.Exclusive,
		Condition:  condition,
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *service) UpdateRule(ctx context.Context, waitlistID, ruleID uuid.UUID, req UpdateRuleRequest) (*PointRule, error) {
	rule, err := s.repo.GetByID(ctx, waitlistID, ruleID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.Validation("rule name is required")
		}
		rule.Name = name
	}
	if req.Points != nil {
		if *req.Points == 0 {
			return nil, apperrors.Validation("points must not be zero")
		}
		rule.Points = *req.Points
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.Exclusive != nil {
		rule.Exclusive = *req.Exclusive
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.Condition != nil {
		condition := strings.TrimSpace(*req.Condition)
		if err := ValidateCondition(condition); err != nil {
			return nil, apperrors.Validation("invalid condition: %v", err)
		}
		rule.Condition = condition
	}

	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// DeactivateRule disables a rule; rules are kept so applied score events
// keep pointing at an existing rule.
func (s *service) DeactivateRule(ctx context.Context, waitlistID, ruleID uuid.UUID) (*PointRule, error) {
	rule, err := s.repo.GetByID(ctx, waitlistID, ruleID)
	if err != nil {
		return nil, err
	}
	if !rule.IsActive {
		return rule, nil
	}
	rule.IsActive = false
	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *service) ListRules(ctx context.Context, waitlistID uuid.UUID) ([]PointRule, error) {
	return s.repo.List(ctx, waitlistID)
}

func (s *service) ListActiveRules(ctx context.Context, waitlistID uuid.UUID) ([]PointRule, error) {
	rules, err := s.repo.ListActive(ctx, waitlistID)
	if err != nil {
		return nil, err
	}
	SortRules(rules)
	return rules, nil
}
