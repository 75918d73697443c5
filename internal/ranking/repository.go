package ranking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"waitly/internal/shared/apperrors"
	"waitly/internal/shared/database"
	"waitly/internal/waitlist"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the only writer of subscribers.position
type Repository interface {
	LockWaitlist(ctx context.Context, waitlistID uuid.UUID) error
	ListStandings(ctx context.Context, waitlistID uuid.UUID) ([]Standing, error)
	UpdatePositions(ctx context.Context, waitlistID uuid.UUID, positions []Position, batchSize int) error

	GetSubscriber(ctx context.Context, waitlistID, subscriberID uuid.UUID) (*waitlist.Subscriber, error)
	CountAhead(ctx context.Context, waitlistID uuid.UUID, standing Standing) (int64, error)
	CountActive(ctx context.Context, waitlistID uuid.UUID) (int64, error)
	TopSubscribers(ctx context.Context, waitlistID uuid.UUID, limit int) ([]waitlist.Subscriber, error)
	ListWaitlistIDs(ctx context.Context) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new ranking repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// LockWaitlist serializes recomputes of one waitlist for the rest of the transaction
func (r *repository) LockWaitlist(ctx context.Context, waitlistID uuid.UUID) error {
	if err := database.Conn(ctx, r.db).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", waitlistID.String()).Error; err != nil {
		return fmt.Errorf("failed to lock waitlist ranking: %w", err)
	}
	return nil
}

func (r *repository) ListStandings(ctx context.Context, waitlistID uuid.UUID) ([]Standing, error) {
	var standings []Standing
	err := database.Conn(ctx, r.db).Model(&waitlist.Subscriber{}).
		Select("id AS subscriber_id, score, created_at").
		Where("waitlist_id = ? AND status = ?", waitlistID, waitlist.SubscriberStatusActive).
		Order("score DESC, created_at ASC, id ASC").
		Scan(&standings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list standings: %w", err)
	}
	return standings, nil
}

// UpdatePositions writes positions batchSize rows per statement and resets
// the position of subscribers that left the ranking
func (r *repository) UpdatePositions(ctx context.Context, waitlistID uuid.UUID, positions []Position, batchSize int) error {
	if batchSize < 1 {
		batchSize = DefaultPositionBatchSize
	}
	db := database.Conn(ctx, r.db)

	for start := 0; start < len(positions); start += batchSize {
		batch := positions[start:min(start+batchSize, len(positions))]

		values := make([]string, 0, len(batch))
		args := make([]interface{}, 0, len(batch)*2+1)
		for _, p := range batch {
			values = append(values, "(?::uuid, ?::integer)")
			args = append(args, p.SubscriberID, p.Position)
		}
		args = append(args, waitlistID)

		query := "UPDATE subscribers AS s SET position = v.position " +
			"FROM (VALUES " + strings.Join(values, ", ") + ") AS v(id, position) " +
			"WHERE s.id = v.id AND s.waitlist_id = ? AND s.position <> v.position"
		if err := db.Exec(query, args...).Error; err != nil {
			return fmt.Errorf("failed to update positions: %w", err)
		}
	}

	err := db.Model(&waitlist.Subscriber{}).
		Where("waitlist_id = ? AND status <> ? AND position <> 0", waitlistID, waitlist.SubscriberStatusActive).
		UpdateColumn("position", 0).Error
	if err != nil {
		return fmt.Errorf("failed to reset positions: %w", err)
	}
	return nil
}

func (r *repository) GetSubscriber(ctx context.Context, waitlistID, subscriberID uuid.UUID) (*waitlist.Subscriber, error) {
	var subscriber waitlist.Subscriber
	err := database.Conn(ctx, r.db).
		Where("id = ? AND waitlist_id = ?", subscriberID, waitlistID).
		First(&subscriber).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("subscriber", subscriberID)
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return &subscriber, nil
}

// CountAhead counts ACTIVE subscribers ranked before standing
func (r *repository) CountAhead(ctx context.Context, waitlistID uuid.UUID, standing Standing) (int64, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&waitlist.Subscriber{}).
		Where("waitlist_id = ? AND status = ?", waitlistID, waitlist.SubscriberStatusActive).
		Where("(score > ? OR (score = ? AND created_at < ?) OR (score = ? AND created_at = ? AND id < ?))",
			standing.Score,
			standing.Score, standing.CreatedAt,
			standing.Score, standing.CreatedAt, standing.SubscriberID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count subscribers ahead: %w", err)
	}
	return count, nil
}

func (r *repository) CountActive(ctx context.Context, waitlistID uuid.UUID) (int64, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&waitlist.Subscriber{}).
		Where("waitlist_id = ? AND status = ?", waitlistID, waitlist.SubscriberStatusActive).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count subscribers: %w", err)
	}
	return count, nil
}

func (r *repository) TopSubscribers(ctx context.Context, waitlistID uuid.UUID, limit int) ([]waitlist.Subscriber, error) {
	var subscribers []waitlist.Subscriber
	err := database.Conn(ctx, r.db).
		Where("waitlist_id = ? AND status = ?", waitlistID, waitlist.SubscriberStatusActive).
		Order("score DESC, created_at ASC, id ASC").
		Limit(limit).
		Find(&subscribers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list top subscribers: %w", err)
	}
	return subscribers, nil
}

func (r *repository) ListWaitlistIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := database.Conn(ctx, r.db).Model(&waitlist.Waitlist{}).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list waitlists: %w", err)
	}
	return ids, nil
}
