package ranking

import (
	"waitly/internal/campaigns"

	"github.com/google/uuid"
)

// LeaderboardEntry is one row of a live leaderboard. Public leaderboards
// only carry a masked email.
type LeaderboardEntry struct {
	Position     int       `json:"position"`
	SubscriberID uuid.UUID `json:"subscriber_id"`
	Email        string    `json:"email"`
	Score        int64     `json:"score"`
}

type LeaderboardResponse struct {
	WaitlistID uuid.UUID          `json:"waitlist_id"`
	Total      int64              `json:"total"`
	Entries    []LeaderboardEntry `json:"entries"`
}

// StandingResponse is a subscriber's live place on the leaderboard.
// StoredPosition is the value persisted by the last recompute. Both are 0
// for subscribers that left the ranking.
type StandingResponse struct {
	WaitlistID     uuid.UUID          `json:"waitlist_id"`
	SubscriberID   uuid.UUID          `json:"subscriber_id"`
	ReferralCode   string             `json:"referral_code"`
	Score          int64              `json:"score"`
	Position       int                `json:"position"`
	StoredPosition int                `json:"stored_position"`
	Total          int64              `json:"total"`
	EarnedRewards  []campaigns.Reward `json:"earned_rewards"`
}

type RecomputeResponse struct {
	WaitlistID uuid.UUID `json:"waitlist_id"`
	Ranked     int       `json:"ranked"`
}
