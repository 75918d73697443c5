package waitlist

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JSONMap represents a JSON map type that can be stored in the database
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for database storage
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, j)
}

// GormDataType tells GORM how to handle this type
func (JSONMap) GormDataType() string {
	return "jsonb"
}

// SubscriberStatus represents the lifecycle of a subscriber. Unsubscribed
// subscribers keep their ledger but leave the ranking.
type SubscriberStatus string

const (
	SubscriberStatusActive       SubscriberStatus = "ACTIVE"
	SubscriberStatusUnsubscribed SubscriberStatus = "UNSUBSCRIBED"
)

// IsValid checks if the subscriber status is valid
func (s SubscriberStatus) IsValid() bool {
	switch s {
	case SubscriberStatusActive, SubscriberStatusUnsubscribed:
		return true
	}
	return false
}

// Waitlist is a tenant-owned list collecting signups
type Waitlist struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID string    `json:"organization_id" gorm:"type:varchar(100);not null;index"`
	Name           string    `json:"name" gorm:"type:varchar(150);not null"`
	Slug           string    `json:"slug" gorm:"type:varchar(160);not null;uniqueIndex"`
	Description    string    `json:"description,omitempty" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Waitlist) TableName() string {
	return "waitlists"
}

// Subscriber is an email signup on a waitlist. Score and Position are only
// written by the scoring and ranking repositories.
type Subscriber struct {
	ID           uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	WaitlistID   uuid.UUID        `json:"waitlist_id" gorm:"type:uuid;not null;uniqueIndex:idx_subscribers_waitlist_email,priority:1;uniqueIndex:idx_subscribers_waitlist_code,priority:1"`
	Email        string           `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:idx_subscribers_waitlist_email,priority:2"`
	ReferralCode string           `json:"referral_code" gorm:"type:varchar(16);not null;uniqueIndex:idx_subscribers_waitlist_code,priority:2"`
	ReferredByID *uuid.UUID       `json:"referred_by_id,omitempty" gorm:"type:uuid;index"`
	Score        int64            `json:"score" gorm:"not null;default:0"`
	Position     int              `json:"position" gorm:"not null;default:0"`
	Verified     bool             `json:"verified" gorm:"not null"`
	VerifiedAt   *time.Time       `json:"verified_at,omitempty"`
	Status       SubscriberStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	Metadata     JSONMap          `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt    time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Subscriber) TableName() string {
	return "subscribers"
}

// Configuration constants
const (
	ReferralCodeLength   = 8
	ReferralCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	MaxSubscribersPage   = 200
)
