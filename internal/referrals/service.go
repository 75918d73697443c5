package referrals

import (
	"context"
	"errors"
	"fmt"

	"waitly/internal/notifications"
	"waitly/internal/rules"
	"waitly/internal/shared/apperrors"
	"waitly/internal/shared/database"
	"waitly/pkg/logger"
	"waitly/pkg/metrics"

	"github.com/google/uuid"
)

// ScoringEngine applies referral events to the referrer's score
type ScoringEngine interface {
	ApplyEvent(ctx context.Context, waitlistID uuid.UUID, event rules.Event) (int64, error)
	RevokeReferral(ctx context.Context, waitlistID, subscriberID, referralID uuid.UUID) (int64, error)
}

// Service is the referral ledger
type Service interface {
	RecordReferral(ctx context.Context, waitlistID, referrerID, referredID uuid.UUID) (*Referral, error)
	Transition(ctx context.Context, waitlistID, referralID uuid.UUID, status ReferralStatus) (*Referral, error)
	ConfirmReferralFor(ctx context.Context, waitlistID, referredID uuid.UUID) error

	GetReferral(ctx context.Context, waitlistID, referralID uuid.UUID) (*ReferralDetailResponse, error)
	ListReferrals(ctx context.Context, waitlistID uuid.UUID, status ReferralStatus) ([]Referral, error)
	CountCountedReferrals(ctx context.Context, referrerID uuid.UUID) (int64, error)
}

type service struct {
	repo     Repository
	tx       database.Transactor
	scoring  ScoringEngine
	notifier notifications.Service
	log      *logger.Logger
}

// NewService creates a new referral service
func NewService(repo Repository, tx database.Transactor, scoring ScoringEngine, notifier notifications.Service) Service {
	return &service{
		repo:     repo,
		tx:       tx,
		scoring:  scoring,
		notifier: notifier,
		log:      logger.GetDefault(),
	}
}

// RecordReferral creates a PENDING referral between two subscribers of the
// same waitlist
func (s *service) RecordReferral(ctx context.Context, waitlistID, referrerID, referredID uuid.UUID) (*Referral, error) {
	if referrerID == referredID {
		return nil, apperrors.Validation("a subscriber cannot refer itself")
	}

	for _, subscriberID := range []uuid.UUID{referrerID, referredID} {
		subscriber, err := s.repo.GetSubscriber(ctx, subscriberID)
		if err != nil {
			return nil, err
		}
		if subscriber.WaitlistID != waitlistID {
			return nil, fmt.Errorf("%w: subscriber %s", apperrors.ErrScopeMismatch, subscriberID)
		}
	}

	exists, err := s.repo.ReferralExists(ctx, waitlistID, referrerID, referredID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.ErrDuplicateReferral
	}

	referral := &Referral{
		WaitlistID: waitlistID,
		ReferrerID: referrerID,
		ReferredID: referredID,
		Status:     StatusPending,
	}
	if err := s.repo.CreateReferral(ctx, referral); err != nil {
		return nil, err
	}
	return referral, nil
}

// Transition moves a referral along its lifecycle. Asking for the current
// status, or for a status the referral already passed through, changes
// nothing. Entering CONFIRMED, VERIFIED or COMPLETED scores the referrer
// once; REVOKED reverses everything the referral earned.
func (s *service) Transition(ctx context.Context, waitlistID, referralID uuid.UUID, status ReferralStatus) (*Referral, error) {
	if !status.IsValid() || status == StatusPending {
		return nil, apperrors.Validation("cannot transition a referral to %q", status)
	}

	var referral *Referral
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		referral, err = s.repo.GetReferralForUpdate(ctx, referralID)
		if err != nil {
			return err
		}
		if referral.WaitlistID != waitlistID {
			return fmt.Errorf("%w: referral %s", apperrors.ErrScopeMismatch, referralID)
		}

		if referral.Status == status {
			s.recordOutcome(status, "noop")
			return nil
		}
		seen, err := s.repo.TransitionExists(ctx, referral.ID, status)
		if err != nil {
			return err
		}
		if seen {
			s.recordOutcome(status, "noop")
			return nil
		}
		if !referral.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, referral.Status, status)
		}

		from := referral.Status
		if err := s.repo.CreateTransition(ctx, &ReferralTransition{
			ReferralID: referral.ID,
			FromStatus: from,
			ToStatus:   status,
		}); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, referral.ID, status); err != nil {
			return err
		}
		referral.Status = status

		if err := s.score(ctx, referral); err != nil {
			return err
		}

		database.AfterCommit(ctx, func(ctx context.Context) {
			s.recordOutcome(status, "applied")
			s.log.LogReferralTransition(ctx, referral.ID.String(), string(from), string(status))
			s.notifier.ReferralStatusChanged(ctx, waitlistID, referral.ID, referral.ReferrerID, string(from), string(status))
		})
		return nil
	})
	if err != nil {
		s.recordOutcome(status, metrics.Outcome(err))
		return nil, err
	}
	return referral, nil
}

func (s *service) score(ctx context.Context, referral *Referral) error {
	if referral.Status == StatusRevoked {
		_, err := s.scoring.RevokeReferral(ctx, referral.WaitlistID, referral.ReferrerID, referral.ID)
		return err
	}

	eventType, ok := referral.Status.ScoringEvent()
	if !ok {
		return nil
	}
	_, err := s.scoring.ApplyEvent(ctx, referral.WaitlistID, rules.Event{
		Type:         eventType,
		SubscriberID: referral.ReferrerID,
		ReferralID:   &referral.ID,
	})
	return err
}

func (s *service) recordOutcome(status ReferralStatus, outcome string) {
	metrics.ReferralTransitions.WithLabelValues(string(status), outcome).Inc()
}

// ConfirmReferralFor confirms the pending referral that brought the
// subscriber in, if there is one
func (s *service) ConfirmReferralFor(ctx context.Context, waitlistID, referredID uuid.UUID) error {
	referral, err := s.repo.GetPendingReferralFor(ctx, waitlistID, referredID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	_, err = s.Transition(ctx, waitlistID, referral.ID, StatusConfirmed)
	return err
}

func (s *service) GetReferral(ctx context.Context, waitlistID, referralID uuid.UUID) (*ReferralDetailResponse, error) {
	referral, err := s.repo.GetReferral(ctx, referralID)
	if err != nil {
		return nil, err
	}
	if referral.WaitlistID != waitlistID {
		return nil, fmt.Errorf("%w: referral %s", apperrors.ErrScopeMismatch, referralID)
	}

	transitions, err := s.repo.ListTransitions(ctx, referralID)
	if err != nil {
		return nil, err
	}
	return &ReferralDetailResponse{Referral: *referral, Transitions: transitions}, nil
}

func (s *service) ListReferrals(ctx context.Context, waitlistID uuid.UUID, status ReferralStatus) ([]Referral, error) {
	if status != "" && !status.IsValid() {
		return nil, apperrors.Validation("unknown referral status %q", status)
	}
	return s.repo.ListReferrals(ctx, waitlistID, status)
}

func (s *service) CountCountedReferrals(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	return s.repo.CountCountedReferrals(ctx, referrerID)
}
