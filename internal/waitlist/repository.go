package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"waitly/internal/shared/apperrors"
	"waitly/internal/shared/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository interface defines the contract for waitlist data operations
type Repository interface {
	// Waitlist operations
	CreateWaitlist(ctx context.Context, waitlist *Waitlist) error
	GetWaitlist(ctx context.Context, id uuid.UUID) (*Waitlist, error)
	GetWaitlistBySlug(ctx context.Context, slug string) (*Waitlist, error)
	ListWaitlists(ctx context.Context, organizationID string) ([]Waitlist, error)
	GetWaitlistStats(ctx context.Context, waitlistID uuid.UUID) (*WaitlistStatsResponse, error)

	// Subscriber operations
	CreateSubscriber(ctx context.Context, subscriber *Subscriber) error
	GetSubscriber(ctx context.Context, waitlistID, subscriberID uuid.UUID) (*Subscriber, error)
	GetSubscriberByEmail(ctx context.Context, waitlistID uuid.UUID, email string) (*Subscriber, error)
	GetSubscriberByReferralCode(ctx context.Context, waitlistID uuid.UUID, code string) (*Subscriber, error)
	ReferralCodeExists(ctx context.Context, waitlistID uuid.UUID, code string) (bool, error)
	ListSubscribers(ctx context.Context, waitlistID uuid.UUID, query ListSubscribersQuery) ([]Subscriber, int64, error)
	MarkVerified(ctx context.Context, waitlistID, subscriberID uuid.UUID, at time.Time) (bool, error)
	UpdateStatus(ctx context.Context, waitlistID, subscriberID uuid.UUID, status SubscriberStatus) (bool, error)
}

// repository implements the Repository interface
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new waitlist repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateWaitlist(ctx context.Context, waitlist *Waitlist) error {
	if waitlist.ID == uuid.Nil {
		waitlist.ID = uuid.New()
	}
	if err := database.Conn(ctx, r.db).Create(waitlist).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: waitlist slug %q is taken", apperrors.ErrConflict, waitlist.Slug)
		}
		return fmt.Errorf("failed to create waitlist: %w", err)
	}
	return nil
}

func (r *repository) GetWaitlist(ctx context.Context, id uuid.UUID) (*Waitlist, error) {
	var waitlist Waitlist
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&waitlist).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("waitlist", id)
		}
		return nil, fmt.Errorf("failed to get waitlist: %w", err)
	}
	return &waitlist, nil
}

func (r *repository) GetWaitlistBySlug(ctx context.Context, slug string) (*Waitlist, error) {
	var waitlist Waitlist
	if err := database.Conn(ctx, r.db).Where("slug = ?", slug).First(&waitlist).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("waitlist", slug)
		}
		return nil, fmt.Errorf("failed to get waitlist by slug: %w", err)
	}
	return &waitlist, nil
}

func (r *repository) ListWaitlists(ctx context.Context, organizationID string) ([]Waitlist, error) {
	var waitlists []Waitlist
	err := database.Conn(ctx, r.db).
		Where("organization_id = ?", organizationID).
		Order("created_at DESC").
		Find(&waitlists).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlists: %w", err)
	}
	return waitlists, nil
}

func (r *repository) GetWaitlistStats(ctx context.Context, waitlistID uuid.UUID) (*WaitlistStatsResponse, error) {
	stats := &WaitlistStatsResponse{WaitlistID: waitlistID}

	err := database.Conn(ctx, r.db).Model(&Subscriber{}).
		Select(`COUNT(*) AS total_subscribers,
			COUNT(*) FILTER (WHERE status = ?) AS active_subscribers,
			COUNT(*) FILTER (WHERE verified) AS verified_subscribers,
			COUNT(*) FILTER (WHERE referred_by_id IS NOT NULL) AS referred_subscribers,
			COALESCE(MAX(score), 0) AS top_score`, SubscriberStatusActive).
		Where("waitlist_id = ?", waitlistID).
		Scan(stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get waitlist stats: %w", err)
	}
	stats.WaitlistID = waitlistID
	return stats, nil
}

func (r *repository) CreateSubscriber(ctx context.Context, subscriber *Subscriber) error {
	if subscriber.ID == uuid.Nil {
		subscriber.ID = uuid.New()
	}
	if err := database.Conn(ctx, r.db).Create(subscriber).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: subscriber already exists", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	return nil
}

func (r *repository) GetSubscriber(ctx context.Context, waitlistID, subscriberID uuid.UUID) (*Subscriber, error) {
	return r.findSubscriber(ctx, "waitlist_id = ? AND id = ?", waitlistID, subscriberID)
}

func (r *repository) GetSubscriberByEmail(ctx context.Context, waitlistID uuid.UUID, email string) (*Subscriber, error) {
	return r.findSubscriber(ctx, "waitlist_id = ? AND email = ?", waitlistID, email)
}

func (r *repository) GetSubscriberByReferralCode(ctx context.Context, waitlistID uuid.UUID, code string) (*Subscriber, error) {
	return r.findSubscriber(ctx, "waitlist_id = ? AND referral_code = ?", waitlistID, code)
}

func (r *repository) findSubscriber(ctx context.Context, query string, args ...interface{}) (*Subscriber, error) {
	var subscriber Subscriber
	if err := database.Conn(ctx, r.db).Where(query, args...).First(&subscriber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("subscriber", args[len(args)-1])
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return &subscriber, nil
}

func (r *repository) ReferralCodeExists(ctx context.Context, waitlistID uuid.UUID, code string) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&Subscriber{}).
		Where("waitlist_id = ? AND referral_code = ?", waitlistID, code).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check referral code: %w", err)
	}
	return count > 0, nil
}

func (r *repository) ListSubscribers(ctx context.Context, waitlistID uuid.UUID, query ListSubscribersQuery) ([]Subscriber, int64, error) {
	db := database.Conn(ctx, r.db).Model(&Subscriber{}).Where("waitlist_id = ?", waitlistID)
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if query.Verified != nil {
		db = db.Where("verified = ?", *query.Verified)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count subscribers: %w", err)
	}

	var subscribers []Subscriber
	err := db.Order("score DESC, created_at ASC, id ASC").
		Offset((query.Page - 1) * query.Limit).
		Limit(query.Limit).
		Find(&subscribers).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subscribers, total, nil
}

// MarkVerified flips the verified flag once; it reports whether this call changed it
func (r *repository) MarkVerified(ctx context.Context, waitlistID, subscriberID uuid.UUID, at time.Time) (bool, error) {
	result := database.Conn(ctx, r.db).Model(&Subscriber{}).
		Where("waitlist_id = ? AND id = ? AND verified = ?", waitlistID, subscriberID, false).
		Updates(map[string]interface{}{"verified": true, "verified_at": at})
	if result.Error != nil {
		return false, fmt.Errorf("failed to verify subscriber: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) UpdateStatus(ctx context.Context, waitlistID, subscriberID uuid.UUID, status SubscriberStatus) (bool, error) {
	result := database.Conn(ctx, r.db).Model(&Subscriber{}).
		Where("waitlist_id = ? AND id = ? AND status <> ?", waitlistID, subscriberID, status).
		Update("status", status)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update subscriber status: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}
