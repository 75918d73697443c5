package leaderboard

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultEntryBatchSize = 500
	DefaultPublicLimit    = 25
	MaxPublicLimit        = 200
)

// LeaderboardSnapshot is an immutable copy of a waitlist's standings.
// At most one final snapshot exists per campaign.
type LeaderboardSnapshot struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	WaitlistID      uuid.UUID  `json:"waitlist_id" gorm:"type:uuid;not null;index:idx_snapshots_waitlist_taken,priority:1"`
	CampaignID      *uuid.UUID `json:"campaign_id,omitempty" gorm:"type:uuid;index"`
	IsFinal         bool       `json:"is_final" gorm:"not null;default:false"`
	SubscriberCount int        `json:"subscriber_count" gorm:"not null;default:0"`
	TakenAt         time.Time  `json:"taken_at" gorm:"not null;index:idx_snapshots_waitlist_taken,priority:2,sort:desc"`

	Entries []SnapshotEntry `json:"entries,omitempty" gorm:"foreignKey:SnapshotID"`
}

func (LeaderboardSnapshot) TableName() string {
	return "leaderboard_snapshots"
}

type SnapshotEntry struct {
	SnapshotID   uuid.UUID `json:"snapshot_id" gorm:"type:uuid;primaryKey"`
	SubscriberID uuid.UUID `json:"subscriber_id" gorm:"type:uuid;primaryKey"`
	Score        int64     `json:"score" gorm:"not null"`
	Position     int       `json:"position" gorm:"not null;index"`
}

func (SnapshotEntry) TableName() string {
	return "leaderboard_snapshot_entries"
}

// PublicEntry is a snapshot row joined with the subscriber's email
type PublicEntry struct {
	Position int    `json:"position"`
	Email    string `json:"email"`
	Score    int64  `json:"score"`
}
