package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"waitly/internal/rules"
	"waitly/internal/shared/apperrors"
	"waitly/internal/shared/database"
	"waitly/internal/waitlist"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// countedReferralStatuses are the referral states that count toward the
// referrer's visible referral count
var countedReferralStatuses = []string{"CONFIRMED", "VERIFIED", "COMPLETED"}

// Repository is the only writer of subscribers.score
type Repository interface {
	GetSubscriber(ctx context.Context, subscriberID uuid.UUID) (*waitlist.Subscriber, error)
	CountCountedReferrals(ctx context.Context, referrerID uuid.UUID) (int64, error)
	IncrementScore(ctx context.Context, subscriberID uuid.UUID, delta int64) (int64, error)

	ScoreEventExists(ctx context.Context, referralID uuid.UUID, eventType rules.EventType) (bool, error)
	CreateScoreEvent(ctx context.Context, event *ScoreEvent) error
	SumReferralDeltas(ctx context.Context, referralID uuid.UUID) (int64, error)

	CreateAdjustment(ctx context.Context, adjustment *PointAdjustment) error
	ListAdjustments(ctx context.Context, waitlistID, subscriberID uuid.UUID) ([]PointAdjustment, error)

	LedgerTotals(ctx context.Context, waitlistID uuid.UUID) ([]LedgerTotal, error)
	ListWaitlistIDs(ctx context.Context) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new scoring repository
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

func (r *repository) CountCountedReferrals(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	var count int64
	err := database.Conn(ctx, r.db).Table("referrals").
		Where("referrer_id = ? AND status IN ?", referrerID, countedReferralStatuses).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return count, nil
}

// IncrementScore adds delta in a single statement and returns the new score
func (r *repository) IncrementScore(ctx context.Context, subscriberID uuid.UUID, delta int64) (int64, error) {
	var updated waitlist.Subscriber
	result := database.Conn(ctx, r.db).Model(&updated).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "score"}}}).
		Where("id = ?", subscriberID).
		UpdateColumns(map[string]interface{}{
			"score":      gorm.Expr("score + ?", delta),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to increment score: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, apperrors.NotFound("subscriber", subscriberID)
	}
	return updated.Score, nil
}

func (r *repository) ScoreEventExists(ctx context.Context, referralID uuid.UUID, eventType rules.EventType) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&ScoreEvent{}).
		Where("referral_id = ? AND event_type = ?", referralID, eventType).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check score event: %w", err)
	}
	return count > 0, nil
}

func (r *repository) CreateScoreEvent(ctx context.Context, event *ScoreEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if err := database.Conn(ctx, r.db).Create(event).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s already scored for referral", apperrors.ErrConflict, event.EventType)
		}
		return fmt.Errorf("failed to create score event: %w", err)
	}
	return nil
}

func (r *repository) SumReferralDeltas(ctx context.Context, referralID uuid.UUID) (int64, error) {
	var total int64
	err := database.Conn(ctx, r.db).Model(&ScoreEvent{}).
		Select("COALESCE(SUM(delta), 0)").
		Where("referral_id = ?", referralID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum referral deltas: %w", err)
	}
	return total, nil
}

func (r *repository) CreateAdjustment(ctx context.Context, adjustment *PointAdjustment) error {
	if adjustment.ID == uuid.Nil {
		adjustment.ID = uuid.New()
	}
	if err := database.Conn(ctx, r.db).Create(adjustment).Error; err != nil {
		return fmt.Errorf("failed to create point adjustment: %w", err)
	}
	return nil
}

func (r *repository) ListAdjustments(ctx context.Context, waitlistID, subscriberID uuid.UUID) ([]PointAdjustment, error) {
	var adjustments []PointAdjustment
	err := database.Conn(ctx, r.db).
		Where("waitlist_id = ? AND subscriber_id = ?", waitlistID, subscriberID).
		Order("created_at DESC, id ASC").
		Find(&adjustments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list point adjustments: %w", err)
	}
	return adjustments, nil
}

func (r *repository) LedgerTotals(ctx context.Context, waitlistID uuid.UUID) ([]LedgerTotal, error) {
	var totals []LedgerTotal
	err := database.Conn(ctx, r.db).Raw(`
		SELECT s.id AS subscriber_id,
			s.score AS stored_score,
			COALESCE((SELECT SUM(e.delta) FROM score_events e WHERE e.subscriber_id = s.id), 0) AS event_total,
			COALESCE((SELECT SUM(a.points) FROM point_adjustments a WHERE a.subscriber_id = s.id), 0) AS adjustment_total
		FROM subscribers s
		WHERE s.waitlist_id = ?
		ORDER BY s.created_at ASC, s.id ASC`, waitlistID).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger totals: %w", err)
	}
	return totals, nil
}

func (r *repository) ListWaitlistIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := database.Conn(ctx, r.db).Model(&waitlist.Waitlist{}).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list waitlists: %w", err)
	}
	return ids, nil
}
