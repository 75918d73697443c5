package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeScoreChanged          NotificationType = "SCORE_CHANGED"
	NotificationTypeReferralStatusChanged NotificationType = "REFERRAL_STATUS_CHANGED"
	NotificationTypeSnapshotCreated       NotificationType = "SNAPSHOT_CREATED"
	NotificationTypeCampaignStatusChanged NotificationType = "CAMPAIGN_STATUS_CHANGED"
)

type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "LOW"
	NotificationPriorityMedium NotificationPriority = "MEDIUM"
	NotificationPriorityHigh   NotificationPriority = "HIGH"
)

// Notification is a domain event handed to downstream delivery workers
type Notification struct {
	ID       uuid.UUID            `json:"id"`
	Type     NotificationType     `json:"type"`
	Priority NotificationPriority `json:"priority"`

	WaitlistID   uuid.UUID  `json:"waitlist_id"`
	SubscriberID *uuid.UUID `json:"subscriber_id,omitempty"`
	ReferralID   *uuid.UUID `json:"referral_id,omitempty"`
	CampaignID   *uuid.UUID `json:"campaign_id,omitempty"`
	SnapshotID   *uuid.UUID `json:"snapshot_id,omitempty"`

	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"created_at"`
}

type NotificationBuilder struct {
	notification *Notification
}

func NewNotificationBuilder(notType NotificationType, waitlistID uuid.UUID) *NotificationBuilder {
	return &NotificationBuilder{
		notification: &Notification{
			ID:         uuid.New(),
			Type:       notType,
			Priority:   GetDefaultPriority(notType),
			WaitlistID: waitlistID,
			Data:       make(map[string]interface{}),
			CreatedAt:  time.Now().UTC(),
		},
	}
}

func (nb *NotificationBuilder) WithSubscriber(subscriberID uuid.UUID) *NotificationBuilder {
	nb.notification.SubscriberID = &subscriberID
	return nb
}

func (nb *NotificationBuilder) WithReferral(referralID uuid.UUID) *NotificationBuilder {
	nb.notification.ReferralID = &referralID
	return nb
}

func (nb *NotificationBuilder) WithCampaign(campaignID *uuid.UUID) *NotificationBuilder {
	if campaignID != nil {
		id := *campaignID
		nb.notification.CampaignID = &id
	}
	return nb
}

func (nb *NotificationBuilder) WithSnapshot(snapshotID uuid.UUID) *NotificationBuilder {
	nb.notification.SnapshotID = &snapshotID
	return nb
}

func (nb *NotificationBuilder) WithData(key string, value interface{}) *NotificationBuilder {
	nb.notification.Data[key] = value
	return nb
}

func (nb *NotificationBuilder) WithPriority(priority NotificationPriority) *NotificationBuilder {
	nb.notification.Priority = priority
	return nb
}

func (nb *NotificationBuilder) Build() *Notification {
	return nb.notification
}

func GetDefaultPriority(notType NotificationType) NotificationPriority {
	switch notType {
	case NotificationTypeSnapshotCreated, NotificationTypeCampaignStatusChanged:
		return NotificationPriorityHigh
	case NotificationTypeReferralStatusChanged:
		return NotificationPriorityMedium
	default:
		return NotificationPriorityLow
	}
}

// GetPartitionKey keeps every notification of a waitlist on one partition
func (n *Notification) GetPartitionKey() string {
	return n.WaitlistID.String()
}

func (n *Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}
