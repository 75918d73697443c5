package campaigns

import (
	"github.com/google/uuid"
)

// PublicRule is the public view of an active point rule
type PublicRule struct {
	Name      string `json:"name"`
	EventType string `json:"event_type"`
	Points    int64  `json:"points"`
}

// PublicViewResponse is what a waitlist's landing page shows. Without an
// ACTIVE campaign Campaign is nil and both lists are empty.
type PublicViewResponse struct {
	WaitlistID  uuid.UUID         `json:"waitlist_id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description,omitempty"`
	Campaign    *ReferralCampaign `json:"campaign"`
	Rules       []PublicRule      `json:"rules"`
	Rewards     []Reward          `json:"rewards"`
}
