package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"waitly/internal/shared/apperrors"
	"waitly/internal/shared/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	CreateSnapshot(ctx context.Context, snapshot *LeaderboardSnapshot, batchSize int) error
	GetSnapshot(ctx context.Context, snapshotID uuid.UUID) (*LeaderboardSnapshot, error)
	ListSnapshots(ctx context.Context, waitlistID uuid.UUID) ([]LeaderboardSnapshot, error)
	GetFinalSnapshot(ctx context.Context, campaignID uuid.UUID) (*LeaderboardSnapshot, error)
	FinalSnapshotExists(ctx context.Context, campaignID uuid.UUID) (bool, error)
	ListPublicEntries(ctx context.Context, snapshotID uuid.UUID, limit int) ([]PublicEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new snapshot repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// CreateSnapshot inserts the snapshot header and its entries batchSize rows
// at a time. A second final snapshot for a campaign hits the partial unique
// index and is reported as ErrAlreadyFinalized.
func (r *repository) CreateSnapshot(ctx context.Context, snapshot *LeaderboardSnapshot, batchSize int) error {
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	if batchSize < 1 {
		batchSize = DefaultEntryBatchSize
	}
	db := database.Conn(ctx, r.db)

	if err := db.Omit("Entries").Create(snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrAlreadyFinalized
		}
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	for i := range snapshot.Entries {
		snapshot.Entries[i].SnapshotID = snapshot.ID
	}
	if len(snapshot.Entries) > 0 {
		if err := db.CreateInBatches(snapshot.Entries, batchSize).Error; err != nil {
			return fmt.Errorf("failed to create snapshot entries: %w", err)
		}
	}
	return nil
}

func (r *repository) GetSnapshot(ctx context.Context, snapshotID uuid.UUID) (*LeaderboardSnapshot, error) {
	var snapshot LeaderboardSnapshot
	err := database.Conn(ctx, r.db).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", snapshotID).
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("snapshot", snapshotID)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snapshot, nil
}

// ListSnapshots returns snapshot headers, newest first, without entries
func (r *repository) ListSnapshots(ctx context.Context, waitlistID uuid.UUID) ([]LeaderboardSnapshot, error) {
	var snapshots []LeaderboardSnapshot
	err := database.Conn(ctx, r.db).
		Where("waitlist_id = ?", waitlistID).
		Order("taken_at DESC, id DESC").
		Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snapshots, nil
}

func (r *repository) GetFinalSnapshot(ctx context.Context, campaignID uuid.UUID) (*LeaderboardSnapshot, error) {
	var snapshot LeaderboardSnapshot
	err := database.Conn(ctx, r.db).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("campaign_id = ? AND is_final = ?", campaignID, true).
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("final snapshot for campaign", campaignID)
		}
		return nil, fmt.Errorf("failed to get final snapshot: %w", err)
	}
	return &snapshot, nil
}

func (r *repository) FinalSnapshotExists(ctx context.Context, campaignID uuid.UUID) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&LeaderboardSnapshot{}).
		Where("campaign_id = ? AND is_final = ?", campaignID, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check final snapshot: %w", err)
	}
	return count > 0, nil
}

func (r *repository) ListPublicEntries(ctx context.Context, snapshotID uuid.UUID, limit int) ([]PublicEntry, error) {
	var entries []PublicEntry
	err := database.Conn(ctx, r.db).Table("leaderboard_snapshot_entries AS e").
		Select("e.position, s.email, e.score").
		Joins("JOIN subscribers AS s ON s.id = e.subscriber_id").
		Where("e.snapshot_id = ?", snapshotID).
		Order("e.position ASC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot entries: %w", err)
	}
	return entries, nil
}
