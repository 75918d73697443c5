package ranking

import (
	"time"

	"github.com/google/uuid"
)

// Standing is the ranking input for one ACTIVE subscriber
type Standing struct {
	SubscriberID uuid.UUID `json:"subscriber_id" gorm:"column:subscriber_id"`
	Score        int64     `json:"score"`
	CreatedAt    time.Time `json:"created_at"`
}

// Position is a subscriber's 1-based place on the leaderboard
type Position struct {
	SubscriberID uuid.UUID `json:"subscriber_id"`
	Score        int64     `json:"score"`
	Position     int       `json:"position"`
}

// Configuration constants
const (
	DefaultPositionBatchSize = 100
	DefaultLeaderboardLimit  = 25
	MaxLeaderboardLimit      = 200
)
