package campaigns

import (
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignStatusDraft  CampaignStatus = "DRAFT"
	CampaignStatusActive CampaignStatus = "ACTIVE"
	CampaignStatusEnded  CampaignStatus = "ENDED"
)

// CanTransitionTo checks if the campaign can move to the target status
func (s CampaignStatus) CanTransitionTo(target CampaignStatus) bool {
	switch s {
	case CampaignStatusDraft:
		return target == CampaignStatusActive
	case CampaignStatusActive:
		return target == CampaignStatusEnded
	}
	return false
}

// ReferralCampaign configures the rewards a waitlist is currently running.
// The campaign driving public pages is the most recently created ACTIVE one.
type ReferralCampaign struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	WaitlistID  uuid.UUID      `json:"waitlist_id" gorm:"type:uuid;not null;index:idx_campaigns_waitlist_status,priority:1"`
	Name        string         `json:"name" gorm:"type:varchar(150);not null"`
	Description string         `json:"description,omitempty" gorm:"type:text"`
	Status      CampaignStatus `json:"status" gorm:"type:varchar(20);not null;index:idx_campaigns_waitlist_status,priority:2"`
	StartsAt    *time.Time     `json:"starts_at,omitempty"`
	EndsAt      *time.Time     `json:"ends_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`

	Rewards []Reward `json:"rewards,omitempty" gorm:"foreignKey:CampaignID"`
}

func (ReferralCampaign) TableName() string {
	return "referral_campaigns"
}

type RewardKind string

const (
	// RewardKindTopPosition is earned by subscribers ranked at or above Threshold
	RewardKindTopPosition RewardKind = "TOP_POSITION"
	// RewardKindPointsThreshold is earned by subscribers with at least Threshold points
	RewardKindPointsThreshold RewardKind = "POINTS_THRESHOLD"
)

func (k RewardKind) IsValid() bool {
	return k == RewardKindTopPosition || k == RewardKindPointsThreshold
}

type Reward struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	CampaignID  uuid.UUID  `json:"campaign_id" gorm:"type:uuid;not null;index"`
	Name        string     `json:"name" gorm:"type:varchar(150);not null"`
	Description string     `json:"description,omitempty" gorm:"type:text"`
	Kind        RewardKind `json:"kind" gorm:"type:varchar(30);not null"`
	Threshold   int64      `json:"threshold" gorm:"not null"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (Reward) TableName() string {
	return "rewards"
}

// IsEarnedBy reports whether a subscriber with the given standing earns the reward
func (r Reward) IsEarnedBy(score int64, position int) bool {
	switch r.Kind {
	case RewardKindTopPosition:
		return position > 0 && int64(position) <= r.Threshold
	case RewardKindPointsThreshold:
		return score >= r.Threshold
	}
	return false
}

// EarnedRewards filters rewards down to the ones the standing earns
func EarnedRewards(rewards []Reward, score int64, position int) []Reward {
	earned := []Reward{}
	for _, reward := range rewards {
		if reward.IsEarnedBy(score, position) {
			earned = append(earned, reward)
		}
	}
	return earned
}
