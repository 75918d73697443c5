package rules

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened to a subscriber
type EventType string

const (
	EventSubscriberSignup   EventType = "SUBSCRIBER_SIGNUP"
	EventSubscriberVerified EventType = "SUBSCRIBER_VERIFIED"
	EventReferralConfirmed  EventType = "REFERRAL_CONFIRMED"
	EventReferralVerified   EventType = "REFERRAL_VERIFIED"
	EventReferralCompleted  EventType = "REFERRAL_COMPLETED"
	// EventReferralRevoked is never matched by rules; revocation reverses
	// whatever was applied for the referral.
	EventReferralRevoked EventType = "REFERRAL_REVOKED"
)

// IsValid reports whether rules may be configured for the event type
func (e EventType) IsValid() bool {
	switch e {
	case EventSubscriberSignup, EventSubscriberVerified,
		EventReferralConfirmed, EventReferralVerified, EventReferralCompleted:
		return true
	}
	return false
}

// DefaultPriority is used when a rule is created without one
const DefaultPriority = 100

// PointRule awards points when an event of EventType occurs. Rules are
// evaluated in (Priority, CreatedAt, ID) order.
type PointRule struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	WaitlistID uuid.UUID `json:"waitlist_id" gorm:"type:uuid;not null;index:idx_point_rules_lookup,priority:1"`
	Name       string    `json:"name" gorm:"type:varchar(100);not null"`
	EventType  EventType `json:"event_type" gorm:"type:varchar(40);not null;index:idx_point_rules_lookup,priority:2"`
	Points     int64     `json:"points" gorm:"not null"`
	Priority   int       `json:"priority" gorm:"not null"`
	IsActive   bool      `json:"is_active" gorm:"not null;index"`
	Exclusive  bool      `json:"exclusive" gorm:"not null"`
	Condition  string    `json:"condition,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (PointRule) TableName() string {
	return "point_rules"
}

// Event is a scoring trigger for one subscriber
type Event struct {
	Type         EventType              `json:"type"`
	SubscriberID uuid.UUID              `json:"subscriber_id"`
	ReferralID   *uuid.UUID             `json:"referral_id,omitempty"`
	Attributes   map[string]interface{} `json:"attributes,omitempty"`
}

// SubscriberFacts exposes subscriber state to rule conditions
type SubscriberFacts struct {
	Score         int64
	Verified      bool
	ReferralCount int64
}
