package ranking

import (
	"context"
	"strings"
	"time"

	"waitly/internal/campaigns"
	"waitly/internal/shared/database"
	"waitly/internal/waitlist"
	"waitly/pkg/logger"
	"waitly/pkg/metrics"

	"github.com/google/uuid"
)

// RewardLister resolves the rewards of a waitlist's active campaign
type RewardLister interface {
	ActiveRewards(ctx context.Context, waitlistID uuid.UUID) ([]campaigns.Reward, error)
}

// WaitlistLookup resolves public slugs and referral codes
type WaitlistLookup interface {
	GetWaitlistBySlug(ctx context.Context, slug string) (*waitlist.Waitlist, error)
	GetSubscriberByReferralCode(ctx context.Context, waitlistID uuid.UUID, code string) (*waitlist.Subscriber, error)
}

type Service interface {
	Recompute(ctx context.Context, waitlistID uuid.UUID) ([]Position, error)
	ScheduleRecompute(ctx context.Context, waitlistID uuid.UUID)
	RecomputeAll(ctx context.Context) (int, error)

	Standing(ctx context.Context, waitlistID, subscriberID uuid.UUID) (*StandingResponse, error)
	Top(ctx context.Context, waitlistID uuid.UUID, limit int) (*LeaderboardResponse, error)

	PublicTop(ctx context.Context, slug string, limit int) (*LeaderboardResponse, error)
	PublicStanding(ctx context.Context, slug, referralCode string) (*StandingResponse, error)
}

// ServiceConfig contains configuration for the ranking service
type ServiceConfig struct {
	PositionBatchSize int
	DefaultLimit      int
	MaxLimit          int
}

// DefaultServiceConfig returns default service configuration
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		PositionBatchSize: DefaultPositionBatchSize,
		DefaultLimit:      DefaultLeaderboardLimit,
		MaxLimit:          MaxLeaderboardLimit,
	}
}

type service struct {
	repo      Repository
	tx        database.Transactor
	rewards   RewardLister
	waitlists WaitlistLookup
	config    *ServiceConfig
	log       *logger.Logger
}

// NewService creates a new ranking service
func NewService(repo Repository, tx database.Transactor, rewards RewardLister, waitlists WaitlistLookup,
	config *ServiceConfig) Service {
	if config == nil {
		config = DefaultServiceConfig()
	}
	return &service{
		repo:      repo,
		tx:        tx,
		rewards:   rewards,
		waitlists: waitlists,
		config:    config,
		log:       logger.GetDefault(),
	}
}

// Recompute ranks the ACTIVE subscribers of a waitlist and persists their
// positions. Running it twice on unchanged scores writes nothing new.
func (s *service) Recompute(ctx context.Context, waitlistID uuid.UUID) ([]Position, error) {
	start := time.Now()

	var positions []Position
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockWaitlist(ctx, waitlistID); err != nil {
			return err
		}
		standings, err := s.repo.ListStandings(ctx, waitlistID)
		if err != nil {
			return err
		}
		positions = Rank(standings)
		return s.repo.UpdatePositions(ctx, waitlistID, positions, s.config.PositionBatchSize)
	})
	metrics.RankingRecomputeDuration.WithLabelValues(metrics.Outcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// ScheduleRecompute recomputes positions once the transaction carried by ctx
// commits, once per transaction. Failures are logged; positions converge on
// the next recompute.
func (s *service) ScheduleRecompute(ctx context.Context, waitlistID uuid.UUID) {
	database.AfterCommitOnce(ctx, "ranking:recompute:"+waitlistID.String(), func(ctx context.Context) {
		if _, err := s.Recompute(ctx, waitlistID); err != nil {
			s.log.ErrorWithContext(ctx, "Position recompute failed", err, map[string]interface{}{
				"waitlist_id": waitlistID.String(),
			})
		}
	})
}

// RecomputeAll recomputes every waitlist and returns how many succeeded
func (s *service) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := s.repo.ListWaitlistIDs(ctx)
	if err != nil {
		return 0, err
	}

	recomputed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return recomputed, ctx.Err()
		}
		if _, err := s.Recompute(ctx, id); err != nil {
			s.log.ErrorWithContext(ctx, "Position recompute failed", err, map[string]interface{}{
				"waitlist_id": id.String(),
			})
			continue
		}
		recomputed++
	}
	return recomputed, nil
}

// Standing computes the subscriber's position from current scores, so it
// reflects score changes whose recompute has not run yet
func (s *service) Standing(ctx context.Context, waitlistID, subscriberID uuid.UUID) (*StandingResponse, error) {
	subscriber, err := s.repo.GetSubscriber(ctx, waitlistID, subscriberID)
	if err != nil {
		return nil, err
	}
	return s.standing(ctx, subscriber)
}

func (s *service) standing(ctx context.Context, subscriber *waitlist.Subscriber) (*StandingResponse, error) {
	total, err := s.repo.CountActive(ctx, subscriber.WaitlistID)
	if err != nil {
		return nil, err
	}

	resp := &StandingResponse{
		WaitlistID:     subscriber.WaitlistID,
		SubscriberID:   subscriber.ID,
		ReferralCode:   subscriber.ReferralCode,
		Score:          subscriber.Score,
		StoredPosition: subscriber.Position,
		Total:          total,
		EarnedRewards:  []campaigns.Reward{},
	}
	if subscriber.Status != waitlist.SubscriberStatusActive {
		return resp, nil
	}

	ahead, err := s.repo.CountAhead(ctx, subscriber.WaitlistID, Standing{
		SubscriberID: subscriber.ID,
		Score:        subscriber.Score,
		CreatedAt:    subscriber.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	resp.Position = int(ahead) + 1

	rewards, err := s.rewards.ActiveRewards(ctx, subscriber.WaitlistID)
	if err != nil {
		return nil, err
	}
	resp.EarnedRewards = append(resp.EarnedRewards, campaigns.EarnedRewards(rewards, resp.Score, resp.Position)...)
	return resp, nil
}

// Top returns the first limit subscribers ranked from current scores
func (s *service) Top(ctx context.Context, waitlistID uuid.UUID, limit int) (*LeaderboardResponse, error) {
	return s.top(ctx, waitlistID, limit, false)
}

func (s *service) top(ctx context.Context, waitlistID uuid.UUID, limit int, public bool) (*LeaderboardResponse, error) {
	limit = s.clampLimit(limit)

	subscribers, err := s.repo.TopSubscribers(ctx, waitlistID, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountActive(ctx, waitlistID)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(subscribers))
	for i, sub := range subscribers {
		email := sub.Email
		if public {
			email = MaskEmail(email)
		}
		entries[i] = LeaderboardEntry{
			Position:     i + 1,
			SubscriberID: sub.ID,
			Email:        email,
			Score:        sub.Score,
		}
	}
	return &LeaderboardResponse{WaitlistID: waitlistID, Total: total, Entries: entries}, nil
}

func (s *service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		return s.config.MaxLimit
	}
	return limit
}

func (s *service) PublicTop(ctx context.Context, slug string, limit int) (*LeaderboardResponse, error) {
	wl, err := s.waitlists.GetWaitlistBySlug(ctx, normalizeSlug(slug))
	if err != nil {
		return nil, err
	}
	return s.top(ctx, wl.ID, limit, true)
}

// PublicStanding looks a subscriber up by the referral code they share
func (s *service) PublicStanding(ctx context.Context, slug, referralCode string) (*StandingResponse, error) {
	wl, err := s.waitlists.GetWaitlistBySlug(ctx, normalizeSlug(slug))
	if err != nil {
		return nil, err
	}
	subscriber, err := s.waitlists.GetSubscriberByReferralCode(ctx, wl.ID, strings.ToUpper(strings.TrimSpace(referralCode)))
	if err != nil {
		return nil, err
	}
	return s.standing(ctx, subscriber)
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// MaskEmail keeps the first character of the local part and the domain
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 1 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
