package referrals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"waitly/internal/shared/apperrors"
	"waitly/internal/shared/database"
	"waitly/internal/waitlist"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	GetSubscriber(ctx context.Context, subscriberID uuid.UUID) (*waitlist.Subscriber, error)

	CreateReferral(ctx context.Context, referral *Referral) error
	ReferralExists(ctx context.Context, waitlistID, referrerID, referredID uuid.UUID) (bool, error)
	GetReferral(ctx context.Context, referralID uuid.UUID) (*Referral, error)
	GetReferralForUpdate(ctx context.Context, referralID uuid.UUID) (*Referral, error)
	GetPendingReferralFor(ctx context.Context, waitlistID, referredID uuid.UUID) (*Referral, error)
	UpdateStatus(ctx context.Context, referralID uuid.UUID, status ReferralStatus) error
	ListReferrals(ctx context.Context, waitlistID uuid.UUID, status ReferralStatus) ([]Referral, error)
	CountCountedReferrals(ctx context.Context, referrerID uuid.UUID) (int64, error)

	CreateTransition(ctx context.Context, transition *ReferralTransition) error
	TransitionExists(ctx context.Context, referralID uuid.UUID, status ReferralStatus) (bool, error)
	ListTransitions(ctx context.Context, referralID uuid.UUID) ([]ReferralTransition, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new referral repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetSubscriber(ctx context.Context, subscriberID uuid.UUID) (*waitlist.Subscriber, error) {
	var subscriber waitlist.Subscriber
	if err := database.Conn(ctx, r.db).Where("id = ?", subscriberID).First(&subscriber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("subscriber", subscriberID)
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return &subscriber, nil
}

func (r *repository) CreateReferral(ctx context.Context, referral *Referral) error {
	if referral.ID == uuid.Nil {
		referral.ID = uuid.New()
	}
	if err := database.Conn(ctx, r.db).Create(referral).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicateReferral
		}
		return fmt.Errorf("failed to create referral: %w", err)
	}
	return nil
}

func (r *repository) ReferralExists(ctx context.Context, waitlistID, referrerID, referredID uuid.UUID) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&Referral{}).
		Where("waitlist_id = ? AND referrer_id = ? AND referred_id = ?", waitlistID, referrerID, referredID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check referral: %w", err)
	}
	return count > 0, nil
}

func (r *repository) GetReferral(ctx context.Context, referralID uuid.UUID) (*Referral, error) {
	return r.getReferral(database.Conn(ctx, r.db), referralID)
}

// GetReferralForUpdate locks the referral row until the transaction ends
func (r *repository) GetReferralForUpdate(ctx context.Context, referralID uuid.UUID) (*Referral, error) {
	return r.getReferral(database.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), referralID)
}

func (r *repository) getReferral(db *gorm.DB, referralID uuid.UUID) (*Referral, error) {
	var referral Referral
	if err := db.Where("id = ?", referralID).First(&referral).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("referral", referralID)
		}
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}
	return &referral, nil
}

func (r *repository) GetPendingReferralFor(ctx context.Context, waitlistID, referredID uuid.UUID) (*Referral, error) {
	var referral Referral
	err := database.Conn(ctx, r.db).
		Where("waitlist_id = ? AND referred_id = ? AND status = ?", waitlistID, referredID, StatusPending).
		Order("created_at ASC, id ASC").
		First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("pending referral for subscriber", referredID)
		}
		return nil, fmt.Errorf("failed to get pending referral: %w", err)
	}
	return &referral, nil
}

func (r *repository) UpdateStatus(ctx context.Context, referralID uuid.UUID, status ReferralStatus) error {
	result := database.Conn(ctx, r.db).Model(&Referral{}).
		Where("id = ?", referralID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update referral status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("referral", referralID)
	}
	return nil
}

func (r *repository) ListReferrals(ctx context.Context, waitlistID uuid.UUID, status ReferralStatus) ([]Referral, error) {
	query := database.Conn(ctx, r.db).Where("waitlist_id = ?", waitlistID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var referrals []Referral
	if err := query.Order("created_at DESC, id DESC").Find(&referrals).Error; err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return referrals, nil
}

func (r *repository) CountCountedReferrals(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&Referral{}).
		Where("referrer_id = ? AND status IN ?", referrerID, []ReferralStatus{StatusConfirmed, StatusVerified, StatusCompleted}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return count, nil
}

func (r *repository) CreateTransition(ctx context.Context, transition *ReferralTransition) error {
	if transition.ID == uuid.Nil {
		transition.ID = uuid.New()
	}
	if err := database.Conn(ctx, r.db).Create(transition).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: referral already transitioned to %s", apperrors.ErrConflict, transition.ToStatus)
		}
		return fmt.Errorf("failed to create referral transition: %w", err)
	}
	return nil
}

func (r *repository) TransitionExists(ctx context.Context, referralID uuid.UUID, status ReferralStatus) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&ReferralTransition{}).
		Where("referral_id = ? AND to_status = ?", referralID, status).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check referral transition: %w", err)
	}
	return count > 0, nil
}

func (r *repository) ListTransitions(ctx context.Context, referralID uuid.UUID) ([]ReferralTransition, error) {
	var transitions []ReferralTransition
	err := database.Conn(ctx, r.db).
		Where("referral_id = ?", referralID).
		Order("created_at ASC, id ASC").
		Find(&transitions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list referral transitions: %w", err)
	}
	return transitions, nil
}
