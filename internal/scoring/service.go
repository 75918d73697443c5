package scoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"waitly/internal/campaigns"
	"waitly/internal/notifications"
	"waitly/internal/rules"
	"waitly/internal/shared/apperrors"
	"waitly/internal/shared/database"
	"waitly/internal/waitlist"
	"waitly/pkg/logger"
	"waitly/pkg/metrics"

	"github.com/google/uuid"
)

// RuleSource provides the active, ordered rule set of a waitlist
type RuleSource interface {
	ListActiveRules(ctx context.Context, waitlistID uuid.UUID) ([]rules.PointRule, error)
}

// CampaignLookup resolves campaigns for manual adjustments
type CampaignLookup interface {
	GetCampaignByID(ctx context.Context, campaignID uuid.UUID) (*campaigns.ReferralCampaign, error)
}

// PositionScheduler recomputes leaderboard positions once the current transaction commits
type PositionScheduler interface {
	ScheduleRecompute(ctx context.Context, waitlistID uuid.UUID)
}

// Service is the scoring engine. Every score change is an atomic increment
// recorded in the ledger, so a score can always be replayed from
// score_events and point_adjustments.
type Service interface {
	ApplyEvent(ctx context.Context, waitlistID uuid.UUID, event rules.Event) (int64, error)
	RevokeReferral(ctx context.Context, waitlistID, subscriberID, referralID uuid.UUID) (int64, error)
	ManualAdjust(ctx context.Context, waitlistID uuid.UUID, req ManualAdjustmentRequest, actor string) (*PointAdjustment, error)
	ListAdjustments(ctx context.Context, waitlistID, subscriberID uuid.UUID) ([]PointAdjustment, error)
	Reconcile(ctx context.Context, waitlistID uuid.UUID) (*ReconciliationReport, error)
}

type service struct {
	repo      Repository
	tx        database.Transactor
	rules     RuleSource
	campaigns CampaignLookup
	positions PositionScheduler
	notifier  notifications.Service
	log       *logger.Logger
}

// NewService creates a new scoring service
func NewService(repo Repository, tx database.Transactor, ruleSource RuleSource, campaignLookup CampaignLookup,
	positions PositionScheduler, notifier notifications.Service) Service {
	return &service{
		repo:      repo,
		tx:        tx,
		rules:     ruleSource,
		campaigns: campaignLookup,
		positions: positions,
		notifier:  notifier,
		log:       logger.GetDefault(),
	}
}

// scoreChange is what gets reported once a mutation commits
type scoreChange struct {
	waitlistID   uuid.UUID
	subscriberID uuid.UUID
	eventType    string
	source       string
	delta        int64
	score        int64
}

// ApplyEvent evaluates the event against the active rules and adds the
// resulting delta to the subscriber's score. A zero delta writes nothing.
// Referral events are applied at most once per (referral, event type).
func (s *service) ApplyEvent(ctx context.Context, waitlistID uuid.UUID, event rules.Event) (int64, error) {
	if event.Type == rules.EventReferralRevoked {
		return 0, apperrors.Validation("revocations are applied with RevokeReferral")
	}

	activeRules, err := s.rules.ListActiveRules(ctx, waitlistID)
	if err != nil {
		return 0, err
	}

	var score int64
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		subscriber, err := s.scopedSubscriber(ctx, waitlistID, event.SubscriberID)
		if err != nil {
			return err
		}
		score = subscriber.Score

		if event.ReferralID != nil {
			applied, err := s.repo.ScoreEventExists(ctx, *event.ReferralID, event.Type)
			if err != nil {
				return err
			}
			if applied {
				return nil
			}
		}

		referralCount, err := s.repo.CountCountedReferrals(ctx, subscriber.ID)
		if err != nil {
			return err
		}

		evaluation := rules.Evaluate(event, rules.SubscriberFacts{
			Score:         subscriber.Score,
			Verified:      subscriber.Verified,
			ReferralCount: referralCount,
		}, activeRules)
		for _, condErr := range evaluation.ConditionErrors {
			s.log.ErrorWithContext(ctx, "Rule condition failed, rule skipped", condErr, map[string]interface{}{
				"waitlist_id": waitlistID.String(),
				"event_type":  string(event.Type),
			})
		}
		if evaluation.Delta == 0 {
			return nil
		}

		if err := s.repo.CreateScoreEvent(ctx, &ScoreEvent{
			WaitlistID:   waitlistID,
			SubscriberID: subscriber.ID,
			ReferralID:   event.ReferralID,
			EventType:    event.Type,
			Source:       ScoreSourceRule,
			Delta:        evaluation.Delta,
			RuleIDs:      joinRuleIDs(evaluation.MatchedRuleIDs),
		}); err != nil {
			return err
		}

		score, err = s.repo.IncrementScore(ctx, subscriber.ID, evaluation.Delta)
		if err != nil {
			return err
		}

		s.afterCommit(ctx, scoreChange{
			waitlistID:   waitlistID,
			subscriberID: subscriber.ID,
			eventType:    string(event.Type),
			source:       string(ScoreSourceRule),
			delta:        evaluation.Delta,
			score:        score,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return score, nil
}

// RevokeReferral writes a compensating event equal to the negated sum of
// everything previously applied for the referral, bringing its net
// contribution back to zero. Revoking twice is a no-op.
func (s *service) RevokeReferral(ctx context.Context, waitlistID, subscriberID, referralID uuid.UUID) (int64, error) {
	var score int64
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		subscriber, err := s.scopedSubscriber(ctx, waitlistID, subscriberID)
		if err != nil {
			return err
		}
		score = subscriber.Score

		revoked, err := s.repo.ScoreEventExists(ctx, referralID, rules.EventReferralRevoked)
		if err != nil || revoked {
			return err
		}

		applied, err := s.repo.SumReferralDeltas(ctx, referralID)
		if err != nil {
			return err
		}
		if applied == 0 {
			return nil
		}

		delta := -applied
		if err := s.repo.CreateScoreEvent(ctx, &ScoreEvent{
			WaitlistID:   waitlistID,
			SubscriberID: subscriberID,
			ReferralID:   &referralID,
			EventType:    rules.EventReferralRevoked,
			Source:       ScoreSourceRevocation,
			Delta:        delta,
		}); err != nil {
			return err
		}

		score, err = s.repo.IncrementScore(ctx, subscriberID, delta)
		if err != nil {
			return err
		}

		s.afterCommit(ctx, scoreChange{
			waitlistID:   waitlistID,
			subscriberID: subscriberID,
			eventType:    string(rules.EventReferralRevoked),
			source:       string(ScoreSourceRevocation),
			delta:        delta,
			score:        score,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return score, nil
}

// ManualAdjust records an audited operator correction and applies it. The
// campaign and the subscriber must both belong to the waitlist. Adjustments
// are not deduplicated; retrying the request applies it again.
func (s *service) ManualAdjust(ctx context.Context, waitlistID uuid.UUID, req ManualAdjustmentRequest, actor string) (*PointAdjustment, error) {
	reason := strings.TrimSpace(req.Reason)
	actor = strings.TrimSpace(actor)
	switch {
	case req.Points == 0:
		return nil, apperrors.Validation("points must not be zero")
	case reason == "":
		return nil, apperrors.Validation("reason is required")
	case actor == "":
		return nil, apperrors.Validation("actor is required")
	case req.CampaignID == uuid.Nil || req.SubscriberID == uuid.Nil:
		return nil, apperrors.Validation("campaign_id and subscriber_id are required")
	}

	campaign, err := s.campaigns.GetCampaignByID(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign.WaitlistID != waitlistID {
		return nil, fmt.Errorf("%w: campaign %s", apperrors.ErrScopeMismatch, req.CampaignID)
	}

	adjustment := &PointAdjustment{
		WaitlistID:   waitlistID,
		CampaignID:   req.CampaignID,
		SubscriberID: req.SubscriberID,
		Points:       req.Points,
		Reason:       reason,
		Actor:        actor,
		CreatedAt:    time.Now().UTC(),
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.scopedSubscriber(ctx, waitlistID, req.SubscriberID); err != nil {
			return err
		}

		if err := s.repo.CreateAdjustment(ctx, adjustment); err != nil {
			return err
		}

		score, err := s.repo.IncrementScore(ctx, req.SubscriberID, req.Points)
		if err != nil {
			return err
		}

		database.AfterCommit(ctx, func(ctx context.Context) {
			metrics.ManualAdjustments.Inc()
			s.log.LogManualAdjustment(ctx, req.SubscriberID.String(), actor, reason, req.Points)
		})
		s.afterCommit(ctx, scoreChange{
			waitlistID:   waitlistID,
			subscriberID: req.SubscriberID,
			eventType:    "MANUAL_ADJUSTMENT",
			source:       "MANUAL",
			delta:        req.Points,
			score:        score,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return adjustment, nil
}

func (s *service) ListAdjustments(ctx context.Context, waitlistID, subscriberID uuid.UUID) ([]PointAdjustment, error) {
	if _, err := s.scopedSubscriber(ctx, waitlistID, subscriberID); err != nil {
		return nil, err
	}
	return s.repo.ListAdjustments(ctx, waitlistID, subscriberID)
}

// Reconcile replays the ledger of a waitlist and reports subscribers whose
// stored score disagrees with it. It never rewrites scores.
func (s *service) Reconcile(ctx context.Context, waitlistID uuid.UUID) (*ReconciliationReport, error) {
	totals, err := s.repo.LedgerTotals(ctx, waitlistID)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		WaitlistID:         waitlistID,
		CheckedAt:          time.Now().UTC(),
		SubscribersChecked: len(totals),
		Drift:              []ScoreDrift{},
	}
	for _, total := range totals {
		ledgerScore := total.EventTotal + total.AdjustmentTotal
		if ledgerScore != total.StoredScore {
			report.Drift = append(report.Drift, ScoreDrift{
				SubscriberID: total.SubscriberID,
				StoredScore:  total.StoredScore,
				LedgerScore:  ledgerScore,
			})
		}
	}

	metrics.ScoreDrift.WithLabelValues(waitlistID.String()).Set(float64(len(report.Drift)))
	return report, nil
}

func (s *service) scopedSubscriber(ctx context.Context, waitlistID, subscriberID uuid.UUID) (*waitlist.Subscriber, error) {
	subscriber, err := s.repo.GetSubscriber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	if subscriber.WaitlistID != waitlistID {
		return nil, fmt.Errorf("%w: subscriber %s", apperrors.ErrScopeMismatch, subscriberID)
	}
	return subscriber, nil
}

// afterCommit reports a committed score change: positions, metrics, logs
// and the outbound notification
func (s *service) afterCommit(ctx context.Context, change scoreChange) {
	database.AfterCommit(ctx, func(ctx context.Context) {
		metrics.ScoreEventsApplied.WithLabelValues(change.eventType, change.source).Inc()
		s.log.LogScoreApplied(ctx, change.waitlistID.String(), change.subscriberID.String(), change.eventType, change.delta, change.score)
		s.positions.ScheduleRecompute(ctx, change.waitlistID)
		s.notifier.ScoreChanged(ctx, change.waitlistID, change.subscriberID, change.eventType, change.delta, change.score)
	})
}
