package campaigns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"waitly/internal/notifications"
	"waitly/internal/rules"
	"waitly/internal/shared/apperrors"
	"waitly/internal/shared/database"
	"waitly/internal/waitlist"

	"github.com/google/uuid"
)

// RuleLister provides the active rules shown on public pages
type RuleLister interface {
	ListActiveRules(ctx context.Context, waitlistID uuid.UUID) ([]rules.PointRule, error)
}

// WaitlistResolver resolves public slugs
type WaitlistResolver interface {
	GetWaitlistBySlug(ctx context.Context, slug string) (*waitlist.Waitlist, error)
}

type Service interface {
	CreateCampaign(ctx context.Context, waitlistID uuid.UUID, req CreateCampaignRequest) (*ReferralCampaign, error)
	GetCampaign(ctx context.Context, waitlistID, campaignID uuid.UUID) (*ReferralCampaign, error)
	GetCampaignByID(ctx context.Context, campaignID uuid.UUID) (*ReferralCampaign, error)
	ListCampaigns(ctx context.Context, waitlistID uuid.UUID) ([]ReferralCampaign, error)
	ActivateCampaign(ctx context.Context, waitlistID, campaignID uuid.UUID) (*ReferralCampaign, error)
	EndCampaign(ctx context.Context, waitlistID, campaignID uuid.UUID) (*ReferralCampaign, error)
	GetActiveCampaign(ctx context.Context, waitlistID uuid.UUID) (*ReferralCampaign, error)

	AddReward(ctx context.Context, waitlistID, campaignID uuid.UUID, req CreateRewardRequest) (*Reward, error)
	ListRewards(ctx context.Context, waitlistID, campaignID uuid.UUID) ([]Reward, error)
	ActiveRewards(ctx context.Context, waitlistID uuid.UUID) ([]Reward, error)

	PublicView(ctx context.Context, slug string) (*PublicViewResponse, error)
}

type service struct {
	repo      Repository
	tx        database.Transactor
	rules     RuleLister
	waitlists WaitlistResolver
	notifier  notifications.Service
}

// NewService creates a new campaign service
func NewService(repo Repository, tx database.Transactor, ruleLister RuleLister, waitlists WaitlistResolver,
	notifier notifications.Service) Service {
	return &service{
		repo:      repo,
		tx:        tx,
		rules:     ruleLister,
		waitlists: waitlists,
		notifier:  notifier,
	}
}

func (s *service) CreateCampaign(ctx context.Context, waitlistID uuid.UUID, req CreateCampaignRequest) (*ReferralCampaign, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("campaign name is required")
	}

	campaign := &ReferralCampaign{
		WaitlistID:  waitlistID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Status:      CampaignStatusDraft,
	}
	if err := s.repo.CreateCampaign(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

func (s *service) GetCampaign(ctx context.Context, waitlistID, campaignID uuid.UUID) (*ReferralCampaign, error) {
	campaign, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.WaitlistID != waitlistID {
		return nil, fmt.Errorf("%w: campaign %s", apperrors.ErrScopeMismatch, campaignID)
	}
	return campaign, nil
}

func (s *service) GetCampaignByID(ctx context.Context, campaignID uuid.UUID) (*ReferralCampaign, error) {
	return s.repo.GetCampaign(ctx, campaignID)
}

func (s *service) ListCampaigns(ctx context.Context, waitlistID uuid.UUID) ([]ReferralCampaign, error) {
	return s.repo.ListCampaigns(ctx, waitlistID)
}

// ActivateCampaign starts a DRAFT campaign. A waitlist runs at most one
// ACTIVE campaign; activating a second one is rejected with ErrConflict.
func (s *service) ActivateCampaign(ctx context.Context, waitlistID, campaignID uuid.UUID) (*ReferralCampaign, error) {
	return s.transition(ctx, waitlistID, campaignID, CampaignStatusActive, func(ctx context.Context, campaign *ReferralCampaign) error {
		active, err := s.repo.GetActiveCampaign(ctx, waitlistID)
		if err == nil && active.ID != campaign.ID {
			return fmt.Errorf("%w: campaign %q is already active", apperrors.ErrConflict, active.Name)
		}
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		now := time.Now().UTC()
		campaign.StartsAt = &now
		return nil
	})
}

func (s *service) EndCampaign(ctx context.Context, waitlistID, campaignID uuid.UUID) (*ReferralCampaign, error) {
	return s.transition(ctx, waitlistID, campaignID, CampaignStatusEnded, func(_ context.Context, campaign *ReferralCampaign) error {
		now := time.Now().UTC()
		campaign.EndsAt = &now
		return nil
	})
}

func (s *service) transition(ctx context.Context, waitlistID, campaignID uuid.UUID, target CampaignStatus,
	prepare func(ctx context.Context, campaign *ReferralCampaign) error) (*ReferralCampaign, error) {
	var campaign *ReferralCampaign
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		campaign, err = s.repo.GetCampaignForUpdate(ctx, campaignID)
		if err != nil {
			return err
		}
		if campaign.WaitlistID != waitlistID {
			return fmt.Errorf("%w: campaign %s", apperrors.ErrScopeMismatch, campaignID)
		}
		if !campaign.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: campaign cannot move from %s to %s", apperrors.ErrConflict, campaign.Status, target)
		}

		if err := prepare(ctx, campaign); err != nil {
			return err
		}
		campaign.Status = target
		if err := s.repo.UpdateCampaign(ctx, campaign); err != nil {
			return err
		}

		database.AfterCommit(ctx, func(ctx context.Context) {
			s.notifier.CampaignStatusChanged(ctx, waitlistID, campaignID, string(target))
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return campaign, nil
}

// GetActiveCampaign returns the most recently created ACTIVE campaign
func (s *service) GetActiveCampaign(ctx context.Context, waitlistID uuid.UUID) (*ReferralCampaign, error) {
	return s.repo.GetActiveCampaign(ctx, waitlistID)
}

func (s *service) AddReward(ctx context.Context, waitlistID, campaignID uuid.UUID, req CreateRewardRequest) (*Reward, error) {
	if !req.Kind.IsValid() {
		return nil, apperrors.Validation("unsupported reward kind %q", req.Kind)
	}
	if req.Threshold < 1 {
		return nil, apperrors.Validation("threshold must be positive")
	}

	campaign, err := s.GetCampaign(ctx, waitlistID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == CampaignStatusEnded {
		return nil, fmt.Errorf("%w: campaign has ended", apperrors.ErrConflict)
	}

	reward := &Reward{
		CampaignID:  campaign.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Kind:        req.Kind,
		Threshold:   req.Threshold,
	}
	if err := s.repo.CreateReward(ctx, reward); err != nil {
		return nil, err
	}
	return reward, nil
}

func (s *service) ListRewards(ctx context.Context, waitlistID, campaignID uuid.UUID) ([]Reward, error) {
	if _, err := s.GetCampaign(ctx, waitlistID, campaignID); err != nil {
		return nil, err
	}
	return s.repo.ListRewards(ctx, campaignID)
}

// ActiveRewards lists the rewards of the active campaign, or nothing when
// no campaign is active
func (s *service) ActiveRewards(ctx context.Context, waitlistID uuid.UUID) ([]Reward, error) {
	active, err := s.repo.GetActiveCampaign(ctx, waitlistID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return []Reward{}, nil
		}
		return nil, err
	}
	return s.repo.ListRewards(ctx, active.ID)
}

// PublicView returns the landing page data of a waitlist. Rules and rewards
// are only exposed while a campaign is ACTIVE.
func (s *service) PublicView(ctx context.Context, slug string) (*PublicViewResponse, error) {
	wl, err := s.waitlists.GetWaitlistBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	view := &PublicViewResponse{
		WaitlistID:  wl.ID,
		Name:        wl.Name,
		Slug:        wl.Slug,
		Description: wl.Description,
		Rules:       []PublicRule{},
		Rewards:     []Reward{},
	}

	active, err := s.repo.GetActiveCampaign(ctx, wl.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return view, nil
		}
		return nil, err
	}
	view.Campaign = active

	rewards, err := s.repo.ListRewards(ctx, active.ID)
	if err != nil {
		return nil, err
	}
	view.Rewards = append(view.Rewards, rewards...)

	activeRules, err := s.rules.ListActiveRules(ctx, wl.ID)
	if err != nil {
		return nil, err
	}
	for _, rule := range activeRules {
		if !rule.IsActive {
			continue
		}
		view.Rules = append(view.Rules, PublicRule{
			Name:      rule.Name,
			EventType: string(rule.EventType),
			Points:    rule.Points,
		})
	}
	return view, nil
}
