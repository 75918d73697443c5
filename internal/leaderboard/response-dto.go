package leaderboard

import (
	"time"

	"github.com/google/uuid"
)

// PublicFinalResponse carries the final standings of the waitlist's active
// or most recent campaign. Finalized is false until a final snapshot exists.
type PublicFinalResponse struct {
	WaitlistID      uuid.UUID     `json:"waitlist_id"`
	CampaignID      *uuid.UUID    `json:"campaign_id,omitempty"`
	Finalized       bool          `json:"finalized"`
	TakenAt         *time.Time    `json:"taken_at,omitempty"`
	SubscriberCount int           `json:"subscriber_count"`
	Entries         []PublicEntry `json:"entries"`
}
