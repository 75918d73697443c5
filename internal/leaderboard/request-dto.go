package leaderboard

import "github.com/google/uuid"

// CreateSnapshotRequest takes a snapshot of the current standings. CampaignID
// defaults to the waitlist's active campaign.
type CreateSnapshotRequest struct {
	IsFinal    bool       `json:"is_final"`
	CampaignID *uuid.UUID `json:"campaign_id"`
}

type PublicSnapshotQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1"`
}
