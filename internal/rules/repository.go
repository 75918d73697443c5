package rules

import (
	"context"
	"errors"
	"fmt"

	"waitly/internal/shared/apperrors"
	"waitly/internal/shared/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence for point rules
type Repository interface {
	Create(ctx context.Context, rule *PointRule) error
	Update(ctx context.Context, rule *PointRule) error
	GetByID(ctx context.Context, waitlistID, ruleID uuid.UUID) (*PointRule, error)
	List(ctx context.Context, waitlistID uuid.UUID) ([]PointRule, error)
	ListActive(ctx context.Context, waitlistID uuid.UUID) ([]PointRule, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new point rule repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rule *PointRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if err := database.Conn(ctx, r.db).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create point rule: %w", err)
	}
	return nil
}

func (r *repository) Update(ctx context.Context, rule *PointRule) error {
	if err := database.Conn(ctx, r.db).Save(rule).Error; err != nil {
		return fmt.Errorf("failed to update point rule: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, waitlistID, ruleID uuid.UUID) (*PointRule, error) {
	var rule PointRule
	err := database.Conn(ctx, r.db).
		Where("id = ? AND waitlist_id = ?", ruleID, waitlistID).
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("point rule", ruleID)
		}
		return nil, fmt.Errorf("failed to get point rule: %w", err)
	}
	return &rule, nil
}

func (r *repository) List(ctx context.Context, waitlistID uuid.UUID) ([]PointRule, error) {
	var rules []PointRule
	err := database.Conn(ctx, r.db).
		Where("waitlist_id = ?", waitlistID).
		Order("priority ASC, created_at ASC, id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list point rules: %w", err)
	}
	return rules, nil
}

// ListActive returns active rules in evaluation order
func (r *repository) ListActive(ctx context.Context, waitlistID uuid.UUID) ([]PointRule, error) {
	var rules []PointRule
	err := database.Conn(ctx, r.db).
		Where("waitlist_id = ? AND is_active = ?", waitlistID, true).
		Order("priority ASC, created_at ASC, id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active point rules: %w", err)
	}
	return rules, nil
}
