package referrals_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"waitly/internal/campaigns"
	"waitly/internal/notifications"
	"waitly/internal/ranking"
	"waitly/internal/referrals"
	"waitly/internal/rules"
	"waitly/internal/scoring"
	"waitly/internal/shared/apperrors"
	"waitly/internal/waitlist"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The services below run against one shared in-memory store, so a referral
// transition flows through scoring into ranking the way it does in production.

type passthroughTx struct{}

func (passthroughTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughTx) WithinTransactionOpts(ctx context.Context, _ *sql.TxOptions, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type sharedStore struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]*waitlist.Subscriber
	referrals   map[uuid.UUID]*referrals.Referral
	transitions []referrals.ReferralTransition
	events      []scoring.ScoreEvent
}

func newSharedStore() *sharedStore {
	return &sharedStore{
		subscribers: map[uuid.UUID]*waitlist.Subscriber{},
		referrals:   map[uuid.UUID]*referrals.Referral{},
	}
}

func (s *sharedStore) subscriber(id uuid.UUID) (*waitlist.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscribers[id]
	if !ok {
		return nil, apperrors.NotFound("subscriber", id)
	}
	copied := *sub
	return &copied, nil
}

func (s *sharedStore) countCounted(referrerID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, r := range s.referrals {
		if r.ReferrerID == referrerID && r.Status.CountsTowardReferrer() {
			count++
		}
	}
	return count
}

func (s *sharedStore) active(waitlistID uuid.UUID) []waitlist.Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []waitlist.Subscriber
	for _, sub := range s.subscribers {
		if sub.WaitlistID == waitlistID && sub.Status == waitlist.SubscriberStatusActive {
			active = append(active, *sub)
		}
	}
	return active
}

type referralStore struct {
	referrals.Repository
	s *sharedStore
}

func (r referralStore) GetSubscriber(_ context.Context, subscriberID uuid.UUID) (*waitlist.Subscriber, error) {
	return r.s.subscriber(subscriberID)
}

func (r referralStore) CreateReferral(_ context.Context, referral *referrals.Referral) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	referral.ID = uuid.New()
	copied := *referral
	r.s.referrals[referral.ID] = &copied
	return nil
}

func (r referralStore) ReferralExists(_ context.Context, waitlistID, referrerID, referredID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ref := range r.s.referrals {
		if ref.WaitlistID == waitlistID && ref.ReferrerID == referrerID && ref.ReferredID == referredID {
			return true, nil
		}
	}
	return false, nil
}

func (r referralStore) GetReferralForUpdate(_ context.Context, referralID uuid.UUID) (*referrals.Referral, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref, ok := r.s.referrals[referralID]
	if !ok {
		return nil, apperrors.NotFound("referral", referralID)
	}
	copied := *ref
	return &copied, nil
}

func (r referralStore) UpdateStatus(_ context.Context, referralID uuid.UUID, status referrals.ReferralStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref, ok := r.s.referrals[referralID]
	if !ok {
		return apperrors.NotFound("referral", referralID)
	}
	ref.Status = status
	return nil
}

func (r referralStore) CountCountedReferrals(_ context.Context, referrerID uuid.UUID) (int64, error) {
	return r.s.countCounted(referrerID), nil
}

func (r referralStore) CreateTransition(_ context.Context, transition *referrals.ReferralTransition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	transition.ID = uuid.New()
	r.s.transitions = append(r.s.transitions, *transition)
	return nil
}

func (r referralStore) TransitionExists(_ context.Context, referralID uuid.UUID, status referrals.ReferralStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transitions {
		if t.ReferralID == referralID && t.ToStatus == status {
			return true, nil
		}
	}
	return false, nil
}

type scoreStore struct {
	scoring.Repository
	s *sharedStore
}

func (r scoreStore) GetSubscriber(_ context.Context, subscriberID uuid.UUID) (*waitlist.Subscriber, error) {
	return r.s.subscriber(subscriberID)
}

func (r scoreStore) CountCountedReferrals(_ context.Context, referrerID uuid.UUID) (int64, error) {
	return r.s.countCounted(referrerID), nil
}

func (r scoreStore) IncrementScore(_ context.Context, subscriberID uuid.UUID, delta int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subscribers[subscriberID]
	if !ok {
		return 0, apperrors.NotFound("subscriber", subscriberID)
	}
	sub.Score += delta
	return sub.Score, nil
}

func (r scoreStore) ScoreEventExists(_ context.Context, referralID uuid.UUID, eventType rules.EventType) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.events {
		if e.ReferralID != nil && *e.ReferralID == referralID && e.EventType == eventType {
			return true, nil
		}
	}
	return false, nil
}

func (r scoreStore) CreateScoreEvent(_ context.Context, event *scoring.ScoreEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	event.ID = uuid.New()
	r.s.events = append(r.s.events, *event)
	return nil
}

func (r scoreStore) SumReferralDeltas(_ context.Context, referralID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sum int64
	for _, e := range r.s.events {
		if e.ReferralID != nil && *e.ReferralID == referralID {
			sum += e.Delta
		}
	}
	return sum, nil
}

type positionStore struct {
	ranking.Repository
	s *sharedStore
}

func (r positionStore) LockWaitlist(context.Context, uuid.UUID) error {
	return nil
}

func (r positionStore) ListStandings(_ context.Context, waitlistID uuid.UUID) ([]ranking.Standing, error) {
	var standings []ranking.Standing
	for _, sub := range r.s.active(waitlistID) {
		standings = append(standings, ranking.Standing{SubscriberID: sub.ID, Score: sub.Score, CreatedAt: sub.CreatedAt})
	}
	return standings, nil
}

func (r positionStore) UpdatePositions(_ context.Context, _ uuid.UUID, positions []ranking.Position, _ int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range positions {
		if sub, ok := r.s.subscribers[p.SubscriberID]; ok {
			sub.Position = p.Position
		}
	}
	return nil
}

func (r positionStore) GetSubscriber(_ context.Context, waitlistID, subscriberID uuid.UUID) (*waitlist.Subscriber, error) {
	sub, err := r.s.subscriber(subscriberID)
	if err != nil {
		return nil, err
	}
	if sub.WaitlistID != waitlistID {
		return nil, apperrors.NotFound("subscriber", subscriberID)
	}
	return sub, nil
}

func (r positionStore) CountAhead(_ context.Context, waitlistID uuid.UUID, standing ranking.Standing) (int64, error) {
	var ahead int64
	for _, sub := range r.s.active(waitlistID) {
		if sub.ID == standing.SubscriberID {
			continue
		}
		positions := ranking.Rank([]ranking.Standing{
			{SubscriberID: sub.ID, Score: sub.Score, CreatedAt: sub.CreatedAt},
			standing,
		})
		if positions[0].SubscriberID == sub.ID {
			ahead++
		}
	}
	return ahead, nil
}

func (r positionStore) CountActive(_ context.Context, waitlistID uuid.UUID) (int64, error) {
	return int64(len(r.s.active(waitlistID))), nil
}

type ruleStore struct {
	rules.Repository
	active []rules.PointRule
}

func (r ruleStore) ListActive(context.Context, uuid.UUID) ([]rules.PointRule, error) {
	return append([]rules.PointRule(nil), r.active...), nil
}

type noRewards struct{}

func (noRewards) ActiveRewards(context.Context, uuid.UUID) ([]campaigns.Reward, error) {
	return nil, nil
}

type flowFixture struct {
	store      *sharedStore
	waitlistID uuid.UUID
	referrals  referrals.Service
	ranking    ranking.Service
	joined     time.Time
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	f := &flowFixture{
		store:      newSharedStore(),
		waitlistID: uuid.New(),
		joined:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	tx := passthroughTx{}
	notifier := notifications.NewService(notifications.NewLogPublisher())
	ruleService := rules.NewService(ruleStore{active: []rules.PointRule{{
		ID:         uuid.New(),
		WaitlistID: f.waitlistID,
		Name:       "Referral confirmed",
		EventType:  rules.EventReferralConfirmed,
		Points:     10,
		IsActive:   true,
	}}})

	f.ranking = ranking.NewService(positionStore{s: f.store}, tx, noRewards{}, nil, nil)
	scorer := scoring.NewService(scoreStore{s: f.store}, tx, ruleService, nil, f.ranking, notifier)
	f.referrals = referrals.NewService(referralStore{s: f.store}, tx, scorer, notifier)
	return f
}

func (f *flowFixture) join(email string, score int64) uuid.UUID {
	f.joined = f.joined.Add(time.Minute)
	sub := &waitlist.Subscriber{
		ID:         uuid.New(),
		WaitlistID: f.waitlistID,
		Email:      email,
		Score:      score,
		Status:     waitlist.SubscriberStatusActive,
		CreatedAt:  f.joined,
	}
	f.store.subscribers[sub.ID] = sub
	return sub.ID
}

func (f *flowFixture) storedPosition(t *testing.T, id uuid.UUID) int {
	t.Helper()
	sub, err := f.store.subscriber(id)
	require.NoError(t, err)
	return sub.Position
}

func TestConfirmedReferral_MovesReferrerUpTheLeaderboard(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)

	carol := f.join("carol@example.com", 30)
	alice := f.join("alice@example.com", 25)
	dave := f.join("dave@example.com", 5)
	bob := f.join("bob@example.com", 0)

	_, err := f.ranking.Recompute(ctx, f.waitlistID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.storedPosition(t, carol))
	assert.Equal(t, 2, f.storedPosition(t, alice))

	referral, err := f.referrals.RecordReferral(ctx, f.waitlistID, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, 2, f.storedPosition(t, alice), "a pending referral scores nothing")

	_, err = f.referrals.Transition(ctx, f.waitlistID, referral.ID, referrals.StatusConfirmed)
	require.NoError(t, err)

	standing, err := f.ranking.Standing(ctx, f.waitlistID, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(35), standing.Score)
	assert.Equal(t, 1, standing.Position)
	assert.Equal(t, 1, f.storedPosition(t, alice))
	assert.Equal(t, 2, f.storedPosition(t, carol))
	assert.Equal(t, 3, f.storedPosition(t, dave))
	assert.Equal(t, 4, f.storedPosition(t, bob))

	// Confirming again is a no-op
	_, err = f.referrals.Transition(ctx, f.waitlistID, referral.ID, referrals.StatusConfirmed)
	require.NoError(t, err)
	standing, err = f.ranking.Standing(ctx, f.waitlistID, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(35), standing.Score)
	assert.Len(t, f.store.events, 1)
}

func TestRevokedReferral_ReturnsReferrerToPreviousPosition(t *testing.T) {
	ctx := context.Background()
	f := newFlowFixture(t)

	carol := f.join("carol@example.com", 30)
	alice := f.join("alice@example.com", 25)
	bob := f.join("bob@example.com", 0)

	referral, err := f.referrals.RecordReferral(ctx, f.waitlistID, alice, bob)
	require.NoError(t, err)
	_, err = f.referrals.Transition(ctx, f.waitlistID, referral.ID, referrals.StatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, 1, f.storedPosition(t, alice))

	_, err = f.referrals.Transition(ctx, f.waitlistID, referral.ID, referrals.StatusRevoked)
	require.NoError(t, err)

	standing, err := f.ranking.Standing(ctx, f.waitlistID, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(25), standing.Score)
	assert.Equal(t, 2, standing.Position)
	assert.Equal(t, 2, f.storedPosition(t, alice))
	assert.Equal(t, 1, f.storedPosition(t, carol))
}
