package scoring

import "github.com/google/uuid"

// ManualAdjustmentRequest is an operator correction of a subscriber's score
type ManualAdjustmentRequest struct {
	CampaignID   uuid.UUID `json:"campaign_id" validate:"required"`
	SubscriberID uuid.UUID `json:"subscriber_id" validate:"required"`
	Points       int64     `json:"points" validate:"ne=0"`
	Reason       string    `json:"reason" validate:"required,max=500"`
}
