package scoring

import (
	"strings"
	"time"

	"waitly/internal/rules"

	"github.com/google/uuid"
)

// ScoreSource tells why a score event was written
type ScoreSource string

const (
	ScoreSourceRule       ScoreSource = "RULE"
	ScoreSourceRevocation ScoreSource = "REVOCATION"
)

// ScoreEvent is one entry of the append-only score ledger. Together with
// PointAdjustment rows it reproduces every subscriber's score.
type ScoreEvent struct {
	ID           uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	WaitlistID   uuid.UUID       `json:"waitlist_id" gorm:"type:uuid;not null;index"`
	SubscriberID uuid.UUID       `json:"subscriber_id" gorm:"type:uuid;not null;index"`
	ReferralID   *uuid.UUID      `json:"referral_id,omitempty" gorm:"type:uuid;index"`
	EventType    rules.EventType `json:"event_type" gorm:"type:varchar(40);not null"`
	Source       ScoreSource     `json:"source" gorm:"type:varchar(20);not null"`
	Delta        int64           `json:"delta" gorm:"not null"`
	RuleIDs      string          `json:"rule_ids,omitempty" gorm:"type:text"`
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (ScoreEvent) TableName() string {
	return "score_events"
}

// PointAdjustment is the immutable audit record of a manual score change
type PointAdjustment struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	WaitlistID   uuid.UUID `json:"waitlist_id" gorm:"type:uuid;not null;index"`
	CampaignID   uuid.UUID `json:"campaign_id" gorm:"type:uuid;not null;index"`
	SubscriberID uuid.UUID `json:"subscriber_id" gorm:"type:uuid;not null;index"`
	Points       int64     `json:"points" gorm:"not null"`
	Reason       string    `json:"reason" gorm:"type:text;not null"`
	Actor        string    `json:"actor" gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (PointAdjustment) TableName() string {
	return "point_adjustments"
}

// LedgerTotal is a subscriber's stored score next to the replayed ledger sums
type LedgerTotal struct {
	SubscriberID    uuid.UUID
	StoredScore     int64
	EventTotal      int64
	AdjustmentTotal int64
}

// ScoreDrift describes a subscriber whose stored score differs from the ledger
type ScoreDrift struct {
	SubscriberID uuid.UUID `json:"subscriber_id"`
	StoredScore  int64     `json:"stored_score"`
	LedgerScore  int64     `json:"ledger_score"`
}

// ReconciliationReport is the result of replaying a waitlist's ledger
type ReconciliationReport struct {
	WaitlistID         uuid.UUID    `json:"waitlist_id"`
	CheckedAt          time.Time    `json:"checked_at"`
	SubscribersChecked int          `json:"subscribers_checked"`
	Drift              []ScoreDrift `json:"drift"`
}

func joinRuleIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}
