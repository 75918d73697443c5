package campaigns

import (
	"context"
	"errors"
	"fmt"

	"waitly/internal/shared/apperrors"
	"waitly/internal/shared/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	CreateCampaign(ctx context.Context, campaign *ReferralCampaign) error
	GetCampaign(ctx context.Context, campaignID uuid.UUID) (*ReferralCampaign, error)
	GetCampaignForUpdate(ctx context.Context, campaignID uuid.UUID) (*ReferralCampaign, error)
	GetActiveCampaign(ctx context.Context, waitlistID uuid.UUID) (*ReferralCampaign, error)
	ListCampaigns(ctx context.Context, waitlistID uuid.UUID) ([]ReferralCampaign, error)
	UpdateCampaign(ctx context.Context, campaign *ReferralCampaign) error

	CreateReward(ctx context.Context, reward *Reward) error
	ListRewards(ctx context.Context, campaignID uuid.UUID) ([]Reward, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new campaign repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateCampaign(ctx context.Context, campaign *ReferralCampaign) error {
	if campaign.ID == uuid.Nil {
		campaign.ID = uuid.New()
	}
	if err := database.Conn(ctx, r.db).Omit("Rewards").Create(campaign).Error; err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (r *repository) GetCampaign(ctx context.Context, campaignID uuid.UUID) (*ReferralCampaign, error) {
	return r.getCampaign(database.Conn(ctx, r.db), campaignID)
}

func (r *repository) GetCampaignForUpdate(ctx context.Context, campaignID uuid.UUID) (*ReferralCampaign, error) {
	return r.getCampaign(database.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), campaignID)
}

func (r *repository) getCampaign(db *gorm.DB, campaignID uuid.UUID) (*ReferralCampaign, error) {
	var campaign ReferralCampaign
	if err := db.Where("id = ?", campaignID).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("campaign", campaignID)
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &campaign, nil
}

// GetActiveCampaign returns the most recently created ACTIVE campaign
func (r *repository) GetActiveCampaign(ctx context.Context, waitlistID uuid.UUID) (*ReferralCampaign, error) {
	var campaign ReferralCampaign
	err := database.Conn(ctx, r.db).
		Where("waitlist_id = ? AND status = ?", waitlistID, CampaignStatusActive).
		Order("created_at DESC, id DESC").
		First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("active campaign for waitlist", waitlistID)
		}
		return nil, fmt.Errorf("failed to get active campaign: %w", err)
	}
	return &campaign, nil
}

func (r *repository) ListCampaigns(ctx context.Context, waitlistID uuid.UUID) ([]ReferralCampaign, error) {
	var campaigns []ReferralCampaign
	err := database.Conn(ctx, r.db).
		Where("waitlist_id = ?", waitlistID).
		Order("created_at DESC").
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *repository) UpdateCampaign(ctx context.Context, campaign *ReferralCampaign) error {
	err := database.Conn(ctx, r.db).Model(campaign).
		Select("name", "description", "status", "starts_at", "ends_at", "updated_at").
		Updates(campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: waitlist already has an active campaign", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	return nil
}

func (r *repository) CreateReward(ctx context.Context, reward *Reward) error {
	if reward.ID == uuid.Nil {
		reward.ID = uuid.New()
	}
	if err := database.Conn(ctx, r.db).Create(reward).Error; err != nil {
		return fmt.Errorf("failed to create reward: %w", err)
	}
	return nil
}

func (r *repository) ListRewards(ctx context.Context, campaignID uuid.UUID) ([]Reward, error) {
	var rewards []Reward
	err := database.Conn(ctx, r.db).
		Where("campaign_id = ?", campaignID).
		Order("created_at ASC, id ASC").
		Find(&rewards).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	return rewards, nil
}
