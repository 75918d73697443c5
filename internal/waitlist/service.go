package waitlist

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"waitly/internal/rules"
	"waitly/internal/shared/apperrors"
	"waitly/internal/shared/database"
	"waitly/pkg/logger"

	"github.com/google/uuid"
)

// ReferralRecorder defines the referral ledger operations signup and
// verification need (to avoid import cycles)
type ReferralRecorder interface {
	RecordReferral(ctx context.Context, waitlistID, referrerID, referredID uuid.UUID) error
	ConfirmReferralFor(ctx context.Context, waitlistID, referredID uuid.UUID) error
}

// ScoreApplier feeds subscriber events into the scoring engine
type ScoreApplier interface {
	ApplyEvent(ctx context.Context, waitlistID uuid.UUID, event rules.Event) (int64, error)
}

// PositionScheduler recomputes leaderboard positions once the current transaction commits
type PositionScheduler interface {
	ScheduleRecompute(ctx context.Context, waitlistID uuid.UUID)
}

// Service interface defines the contract for waitlist business operations
type Service interface {
	// Waitlist operations
	CreateWaitlist(ctx context.Context, organizationID string, req CreateWaitlistRequest) (*Waitlist, error)
	GetWaitlist(ctx context.Context, waitlistID uuid.UUID) (*WaitlistDetailResponse, error)
	GetWaitlistBySlug(ctx context.Context, slug string) (*Waitlist, error)
	ListWaitlists(ctx context.Context, organizationID string) ([]Waitlist, error)
	GetWaitlistAccess(ctx context.Context, organizationID string, waitlistID uuid.UUID) error

	// Subscriber operations
	Signup(ctx context.Context, slug string, req SignupRequest) (*SignupResponse, error)
	VerifySubscriber(ctx context.Context, waitlistID, subscriberID uuid.UUID) (*Subscriber, error)
	UnsubscribeSubscriber(ctx context.Context, waitlistID, subscriberID uuid.UUID) (*Subscriber, error)
	ListSubscribers(ctx context.Context, waitlistID uuid.UUID, query ListSubscribersQuery) (*SubscriberListResponse, error)
	ResolveReferralCode(ctx context.Context, slug, code string) (*Waitlist, *Subscriber, error)
}

// ServiceConfig contains configuration for the waitlist service
type ServiceConfig struct {
	ReferralCodeAttempts int
}

// DefaultServiceConfig returns default service configuration
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{ReferralCodeAttempts: 5}
}

// service implements the Service interface
type service struct {
	repo      Repository
	tx        database.Transactor
	referrals ReferralRecorder
	scoring   ScoreApplier
	positions PositionScheduler
	config    *ServiceConfig
	log       *logger.Logger
}

// NewService creates a new waitlist service
func NewService(repo Repository, tx database.Transactor, referrals ReferralRecorder, scoring ScoreApplier,
	positions PositionScheduler, config *ServiceConfig) Service {
	if config == nil {
		config = DefaultServiceConfig()
	}
	return &service{
		repo:      repo,
		tx:        tx,
		referrals: referrals,
		scoring:   scoring,
		positions: positions,
		config:    config,
		log:       logger.GetDefault(),
	}
}

var (
	slugInvalidChars = regexp.MustCompile(`[^\w\s-]`)
	slugSeparators   = regexp.MustCompile(`[\s_-]+`)
)

// generateSlug converts a waitlist name to a URL-friendly slug
func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = slugSeparators.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) CreateWaitlist(ctx context.Context, organizationID string, req CreateWaitlistRequest) (*Waitlist, error) {
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization is required", apperrors.ErrForbidden)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("waitlist name is required")
	}

	slug := generateSlug(req.Slug)
	if slug == "" {
		slug = generateSlug(name)
	}
	if slug == "" {
		return nil, apperrors.Validation("waitlist name must contain letters or digits")
	}

	waitlist := &Waitlist{
		OrganizationID: organizationID,
		Name:           name,
		Slug:           slug,
		Description:    strings.TrimSpace(req.Description),
	}
	if err := s.repo.CreateWaitlist(ctx, waitlist); err != nil {
		return nil, err
	}
	return waitlist, nil
}

func (s *service) GetWaitlist(ctx context.Context, waitlistID uuid.UUID) (*WaitlistDetailResponse, error) {
	waitlist, err := s.repo.GetWaitlist(ctx, waitlistID)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.GetWaitlistStats(ctx, waitlistID)
	if err != nil {
		return nil, err
	}
	return &WaitlistDetailResponse{Waitlist: *waitlist, Stats: stats}, nil
}

func (s *service) GetWaitlistBySlug(ctx context.Context, slug string) (*Waitlist, error) {
	return s.repo.GetWaitlistBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
}

func (s *service) ListWaitlists(ctx context.Context, organizationID string) ([]Waitlist, error) {
	return s.repo.ListWaitlists(ctx, organizationID)
}

// GetWaitlistAccess checks that the organization owns the waitlist
func (s *service) GetWaitlistAccess(ctx context.Context, organizationID string, waitlistID uuid.UUID) error {
	waitlist, err := s.repo.GetWaitlist(ctx, waitlistID)
	if err != nil {
		return err
	}
	if organizationID == "" || waitlist.OrganizationID != organizationID {
		return fmt.Errorf("%w: waitlist %s belongs to another organization", apperrors.ErrForbidden, waitlistID)
	}
	return nil
}

// Signup adds an email to the waitlist. Signing up twice returns the existing
// subscriber. An unknown referral code does not fail the signup.
func (s *service) Signup(ctx context.Context, slug string, req SignupRequest) (*SignupResponse, error) {
	waitlist, err := s.GetWaitlistBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, apperrors.Validation("email is required")
	}

	existing, err := s.repo.GetSubscriberByEmail(ctx, waitlist.ID, email)
	if err == nil {
		return &SignupResponse{Subscriber: existing}, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	referrer, err := s.resolveReferrer(ctx, waitlist.ID, req.ReferralCode)
	if err != nil {
		return nil, err
	}

	subscriber := &Subscriber{
		WaitlistID: waitlist.ID,
		Email:      email,
		Status:     SubscriberStatusActive,
		Metadata:   req.Metadata,
	}
	if referrer != nil {
		subscriber.ReferredByID = &referrer.ID
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		code, err := s.generateReferralCode(ctx, waitlist.ID)
		if err != nil {
			return err
		}
		subscriber.ReferralCode = code

		if err := s.repo.CreateSubscriber(ctx, subscriber); err != nil {
			return err
		}
		// The new subscriber needs a position even when no signup rule scores it
		s.positions.ScheduleRecompute(ctx, waitlist.ID)

		if referrer != nil {
			if err := s.referrals.RecordReferral(ctx, waitlist.ID, referrer.ID, subscriber.ID); err != nil {
				return err
			}
		}

		score, err := s.scoring.ApplyEvent(ctx, waitlist.ID, rules.Event{
			Type:         rules.EventSubscriberSignup,
			SubscriberID: subscriber.ID,
			Attributes:   signupAttributes(req.Metadata, referrer != nil),
		})
		if err != nil {
			return err
		}
		subscriber.Score = score
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// A concurrent signup for the same email won the insert.
			if existing, getErr := s.repo.GetSubscriberByEmail(ctx, waitlist.ID, email); getErr == nil {
				return &SignupResponse{Subscriber: existing}, nil
			}
		}
		return nil, err
	}

	return &SignupResponse{Subscriber: subscriber, Created: true, Referred: referrer != nil}, nil
}

func (s *service) resolveReferrer(ctx context.Context, waitlistID uuid.UUID, code string) (*Subscriber, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}

	referrer, err := s.repo.GetSubscriberByReferralCode(ctx, waitlistID, code)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.log.InfoWithContext(ctx, "Ignoring unknown referral code", map[string]interface{}{
				"waitlist_id":   waitlistID.String(),
				"referral_code": code,
			})
			return nil, nil
		}
		return nil, err
	}
	if referrer.Status != SubscriberStatusActive {
		return nil, nil
	}
	return referrer, nil
}

func signupAttributes(metadata JSONMap, referred bool) map[string]interface{} {
	attributes := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		attributes[k] = v
	}
	attributes["referred"] = referred
	return attributes
}

func (s *service) generateReferralCode(ctx context.Context, waitlistID uuid.UUID) (string, error) {
	for attempt := 0; attempt < s.config.ReferralCodeAttempts; attempt++ {
		code, err := randomReferralCode()
		if err != nil {
			return "", err
		}
		exists, err := s.repo.ReferralCodeExists(ctx, waitlistID, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique referral code after %d attempts", s.config.ReferralCodeAttempts)
}

func randomReferralCode() (string, error) {
	alphabetSize := big.NewInt(int64(len(ReferralCodeAlphabet)))
	code := make([]byte, ReferralCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate referral code: %w", err)
		}
		code[i] = ReferralCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// VerifySubscriber marks the email verified. The first verification awards
// the verification event and confirms the referral that brought the
// subscriber in; repeated calls change nothing.
func (s *service) VerifySubscriber(ctx context.Context, waitlistID, subscriberID uuid.UUID) (*Subscriber, error) {
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		changed, err := s.repo.MarkVerified(ctx, waitlistID, subscriberID, time.Now().UTC())
		if err != nil || !changed {
			return err
		}

		if _, err := s.scoring.ApplyEvent(ctx, waitlistID, rules.Event{
			Type:         rules.EventSubscriberVerified,
			SubscriberID: subscriberID,
		}); err != nil {
			return err
		}

		return s.referrals.ConfirmReferralFor(ctx, waitlistID, subscriberID)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetSubscriber(ctx, waitlistID, subscriberID)
}

// UnsubscribeSubscriber removes the subscriber from the ranking without
// touching its score history
func (s *service) UnsubscribeSubscriber(ctx context.Context, waitlistID, subscriberID uuid.UUID) (*Subscriber, error) {
	changed, err := s.repo.UpdateStatus(ctx, waitlistID, subscriberID, SubscriberStatusUnsubscribed)
	if err != nil {
		return nil, err
	}

	subscriber, err := s.repo.GetSubscriber(ctx, waitlistID, subscriberID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.positions.ScheduleRecompute(ctx, waitlistID)
	}
	return subscriber, nil
}

func (s *service) ListSubscribers(ctx context.Context, waitlistID uuid.UUID, query ListSubscribersQuery) (*SubscriberListResponse, error) {
	query.Normalize()
	if query.Status != "" && !query.Status.IsValid() {
		return nil, apperrors.Validation("unknown subscriber status %q", query.Status)
	}

	subscribers, total, err := s.repo.ListSubscribers(ctx, waitlistID, query)
	if err != nil {
		return nil, err
	}
	return &SubscriberListResponse{
		Subscribers: subscribers,
		Total:       total,
		Page:        query.Page,
		Limit:       query.Limit,
	}, nil
}

// ResolveReferralCode finds a subscriber by its public referral code
func (s *service) ResolveReferralCode(ctx context.Context, slug, code string) (*Waitlist, *Subscriber, error) {
	waitlist, err := s.GetWaitlistBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	subscriber, err := s.repo.GetSubscriberByReferralCode(ctx, waitlist.ID, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, nil, err
	}
	return waitlist, subscriber, nil
}
