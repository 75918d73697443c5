package referrals

import (
	"time"

	"github.com/google/uuid"
)

// Referral is the edge between the subscriber who shared a code and the
// subscriber who signed up with it. Referral events score the referrer.
type Referral struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	WaitlistID uuid.UUID      `json:"waitlist_id" gorm:"type:uuid;not null;uniqueIndex:idx_referrals_edge,priority:1;index:idx_referrals_status,priority:1"`
	ReferrerID uuid.UUID      `json:"referrer_id" gorm:"type:uuid;not null;uniqueIndex:idx_referrals_edge,priority:2;index"`
	ReferredID uuid.UUID      `json:"referred_id" gorm:"type:uuid;not null;uniqueIndex:idx_referrals_edge,priority:3;index"`
	Status     ReferralStatus `json:"status" gorm:"type:varchar(20);not null;index:idx_referrals_status,priority:2"`
	CreatedAt  time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Referral) TableName() string {
	return "referrals"
}

// ReferralTransition is the append-only log of status changes. A referral
// enters each status at most once.
type ReferralTransition struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	ReferralID uuid.UUID      `json:"referral_id" gorm:"type:uuid;not null;uniqueIndex:idx_referral_transitions_target,priority:1"`
	FromStatus ReferralStatus `json:"from_status" gorm:"type:varchar(20);not null"`
	ToStatus   ReferralStatus `json:"to_status" gorm:"type:varchar(20);not null;uniqueIndex:idx_referral_transitions_target,priority:2"`
	CreatedAt  time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

func (ReferralTransition) TableName() string {
	return "referral_transitions"
}
