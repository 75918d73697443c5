package scoring

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"waitly/internal/campaigns"
	"waitly/internal/rules"
	"waitly/internal/shared/apperrors"
	"waitly/internal/waitlist"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passthroughTx struct{}

func (passthroughTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (passthroughTx) WithinTransactionOpts(ctx context.Context, _ *sql.TxOptions, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memoryRepository struct {
	mu             sync.Mutex
	subscribers    map[uuid.UUID]*waitlist.Subscriber
	events         []ScoreEvent
	adjustments    []PointAdjustment
	referralCounts map[uuid.UUID]int64
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		subscribers:    map[uuid.UUID]*waitlist.Subscriber{},
		referralCounts: map[uuid.UUID]int64{},
	}
}

func (m *memoryRepository) addSubscriber(waitlistID uuid.UUID) *waitlist.Subscriber {
	s := &waitlist.Subscriber{ID: uuid.New(), WaitlistID: waitlistID, Status: waitlist.SubscriberStatusActive, CreatedAt: time.Now()}
	m.subscribers[s.ID] = s
	return s
}

func (m *memoryRepository) score(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribers[id].Score
}

func (m *memoryRepository) GetSubscriber(_ context.Context, id uuid.UUID) (*waitlist.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscribers[id]
	if !ok {
		return nil, apperrors.NotFound("subscriber", id)
	}
	copied := *s
	return &copied, nil
}

func (m *memoryRepository) CountCountedReferrals(_ context.Context, referrerID uuid.UUID) (int64, error) {
	return m.referralCounts[referrerID], nil
}

func (m *memoryRepository) IncrementScore(_ context.Context, id uuid.UUID, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscribers[id]
	if !ok {
		return 0, apperrors.NotFound("subscriber", id)
	}
	s.Score += delta
	return s.Score, nil
}

func (m *memoryRepository) ScoreEventExists(_ context.Context, referralID uuid.UUID, eventType rules.EventType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ReferralID != nil && *e.ReferralID == referralID && e.EventType == eventType {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepository) CreateScoreEvent(_ context.Context, event *ScoreEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = uuid.New()
	m.events = append(m.events, *event)
	return nil
}

func (m *memoryRepository) SumReferralDeltas(_ context.Context, referralID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, e := range m.events {
		if e.ReferralID != nil && *e.ReferralID == referralID {
			total += e.Delta
		}
	}
	return total, nil
}

func (m *memoryRepository) CreateAdjustment(_ context.Context, adjustment *PointAdjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	adjustment.ID = uuid.New()
	m.adjustments = append(m.adjustments, *adjustment)
	return nil
}

func (m *memoryRepository) ListAdjustments(_ context.Context, waitlistID, subscriberID uuid.UUID) ([]PointAdjustment, error) {
	var out []PointAdjustment
	for _, a := range m.adjustments {
		if a.WaitlistID == waitlistID && a.SubscriberID == subscriberID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryRepository) LedgerTotals(_ context.Context, waitlistID uuid.UUID) ([]LedgerTotal, error) {
	var totals []LedgerTotal
	for _, s := range m.subscribers {
		if s.WaitlistID != waitlistID {
			continue
		}
		total := LedgerTotal{SubscriberID: s.ID, StoredScore: s.Score}
		for _, e := range m.events {
			if e.SubscriberID == s.ID {
				total.EventTotal += e.Delta
			}
		}
		for _, a := range m.adjustments {
			if a.SubscriberID == s.ID {
				total.AdjustmentTotal += a.Points
			}
		}
		totals = append(totals, total)
	}
	return totals, nil
}

func (m *memoryRepository) ListWaitlistIDs(context.Context) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, s := range m.subscribers {
		if !seen[s.WaitlistID] {
			seen[s.WaitlistID] = true
			ids = append(ids, s.WaitlistID)
		}
	}
	return ids, nil
}

type staticRules []rules.PointRule

func (r staticRules) ListActiveRules(context.Context, uuid.UUID) ([]rules.PointRule, error) {
	return r, nil
}

type campaignTable map[uuid.UUID]*campaigns.ReferralCampaign

func (c campaignTable) GetCampaignByID(_ context.Context, id uuid.UUID) (*campaigns.ReferralCampaign, error) {
	if campaign, ok := c[id]; ok {
		return campaign, nil
	}
	return nil, apperrors.NotFound("campaign", id)
}

type countingPositions struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPositions) ScheduleRecompute(context.Context, uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
}

type recordingNotifier struct {
	mu           sync.Mutex
	scoreChanges int
}

func (n *recordingNotifier) ScoreChanged(context.Context, uuid.UUID, uuid.UUID, string, int64, int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.scoreChanges++
}

func (n *recordingNotifier) ReferralStatusChanged(context.Context, uuid.UUID, uuid.UUID, uuid.UUID, string, string) {
}

func (n *recordingNotifier) SnapshotCreated(context.Context, uuid.UUID, uuid.UUID, *uuid.UUID, bool, int) {
}

func (n *recordingNotifier) CampaignStatusChanged(context.Context, uuid.UUID, uuid.UUID, string) {
}

type fixture struct {
	svc        Service
	repo       *memoryRepository
	positions  *countingPositions
	notifier   *recordingNotifier
	waitlistID uuid.UUID
	campaign   *campaigns.ReferralCampaign
}

func rule(eventType rules.EventType, points int64) rules.PointRule {
	return rules.PointRule{
		ID:        uuid.New(),
		Name:      string(eventType),
		EventType: eventType,
		Points:    points,
		Priority:  rules.DefaultPriority,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
}

func newFixture(ruleSet ...rules.PointRule) *fixture {
	waitlistID := uuid.New()
	campaign := &campaigns.ReferralCampaign{ID: uuid.New(), WaitlistID: waitlistID, Status: campaigns.CampaignStatusActive}
	f := &fixture{
		repo:       newMemoryRepository(),
		positions:  &countingPositions{},
		notifier:   &recordingNotifier{},
		waitlistID: waitlistID,
		campaign:   campaign,
	}
	f.svc = NewService(f.repo, passthroughTx{}, staticRules(ruleSet),
		campaignTable{campaign.ID: campaign}, f.positions, f.notifier)
	return f
}

func TestApplyEvent_ReferralConfirmedAddsPoints(t *testing.T) {
	f := newFixture(rule(rules.EventReferralConfirmed, 10))
	referrer := f.repo.addSubscriber(f.waitlistID)
	referralID := uuid.New()

	score, err := f.svc.ApplyEvent(context.Background(), f.waitlistID, rules.Event{
		Type:         rules.EventReferralConfirmed,
		SubscriberID: referrer.ID,
		ReferralID:   &referralID,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), score)
	assert.Equal(t, int64(10), f.repo.score(referrer.ID))
	require.Len(t, f.repo.events, 1)
	assert.Equal(t, ScoreSourceRule, f.repo.events[0].Source)
	assert.Equal(t, 1, f.positions.calls)
	assert.Equal(t, 1, f.notifier.scoreChanges)
}

func TestApplyEvent_NoMatchingRuleWritesNothing(t *testing.T) {
	f := newFixture(rule(rules.EventReferralConfirmed, 10))
	subscriber := f.repo.addSubscriber(f.waitlistID)

	score, err := f.svc.ApplyEvent(context.Background(), f.waitlistID, rules.Event{
		Type:         rules.EventSubscriberSignup,
		SubscriberID: subscriber.ID,
	})
	require.NoError(t, err)

	assert.Zero(t, score)
	assert.Empty(t, f.repo.events)
	assert.Zero(t, f.positions.calls)
}

func TestApplyEvent_ReferralEventAppliedOnce(t *testing.T) {
	f := newFixture(rule(rules.EventReferralConfirmed, 10))
	referrer := f.repo.addSubscriber(f.waitlistID)
	referralID := uuid.New()
	event := rules.Event{Type: rules.EventReferralConfirmed, SubscriberID: referrer.ID, ReferralID: &referralID}

	_, err := f.svc.ApplyEvent(context.Background(), f.waitlistID, event)
	require.NoError(t, err)
	score, err := f.svc.ApplyEvent(context.Background(), f.waitlistID, event)
	require.NoError(t, err)

	assert.Equal(t, int64(10), score)
	assert.Len(t, f.repo.events, 1)
}

func TestApplyEvent_SubscriberFromAnotherWaitlist(t *testing.T) {
	f := newFixture(rule(rules.EventSubscriberSignup, 1))
	stranger := f.repo.addSubscriber(uuid.New())

	_, err := f.svc.ApplyEvent(context.Background(), f.waitlistID, rules.Event{
		Type:         rules.EventSubscriberSignup,
		SubscriberID: stranger.ID,
	})
	assert.ErrorIs(t, err, apperrors.ErrScopeMismatch)
	assert.Empty(t, f.repo.events)
}

func TestApplyEvent_RejectsRevocationEvent(t *testing.T) {
	f := newFixture()
	subscriber := f.repo.addSubscriber(f.waitlistID)

	_, err := f.svc.ApplyEvent(context.Background(), f.waitlistID, rules.Event{
		Type:         rules.EventReferralRevoked,
		SubscriberID: subscriber.ID,
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestApplyEvent_ConditionUsesReferralCount(t *testing.T) {
	bonus := rule(rules.EventReferralConfirmed, 50)
	bonus.Condition = "subscriber.referral_count >= 3"
	f := newFixture(rule(rules.EventReferralConfirmed, 10), bonus)
	referrer := f.repo.addSubscriber(f.waitlistID)
	f.repo.referralCounts[referrer.ID] = 3

	referralID := uuid.New()
	score, err := f.svc.ApplyEvent(context.Background(), f.waitlistID, rules.Event{
		Type:         rules.EventReferralConfirmed,
		SubscriberID: referrer.ID,
		ReferralID:   &referralID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(60), score)
}

func TestRevokeReferral_NetsToZero(t *testing.T) {
	f := newFixture(rule(rules.EventReferralConfirmed, 10), rule(rules.EventReferralVerified, 5))
	ctx := context.Background()
	referrer := f.repo.addSubscriber(f.waitlistID)
	referralID := uuid.New()

	_, err := f.svc.ApplyEvent(ctx, f.waitlistID, rules.Event{Type: rules.EventReferralConfirmed, SubscriberID: referrer.ID, ReferralID: &referralID})
	require.NoError(t, err)
	_, err = f.svc.ApplyEvent(ctx, f.waitlistID, rules.Event{Type: rules.EventReferralVerified, SubscriberID: referrer.ID, ReferralID: &referralID})
	require.NoError(t, err)
	require.Equal(t, int64(15), f.repo.score(referrer.ID))

	score, err := f.svc.RevokeReferral(ctx, f.waitlistID, referrer.ID, referralID)
	require.NoError(t, err)
	assert.Zero(t, score)

	net, err := f.repo.SumReferralDeltas(ctx, referralID)
	require.NoError(t, err)
	assert.Zero(t, net)

	last := f.repo.events[len(f.repo.events)-1]
	assert.Equal(t, ScoreSourceRevocation, last.Source)
	assert.Equal(t, int64(-15), last.Delta)

	_, err = f.svc.RevokeReferral(ctx, f.waitlistID, referrer.ID, referralID)
	require.NoError(t, err)
	assert.Len(t, f.repo.events, 3)
	assert.Zero(t, f.repo.score(referrer.ID))
}

func TestRevokeReferral_NothingApplied(t *testing.T) {
	f := newFixture()
	referrer := f.repo.addSubscriber(f.waitlistID)

	score, err := f.svc.RevokeReferral(context.Background(), f.waitlistID, referrer.ID, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, score)
	assert.Empty(t, f.repo.events)
}

func TestManualAdjust_FraudPenalty(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	subscriber := f.repo.addSubscriber(f.waitlistID)
	subscriber.Score = 10

	adjustment, err := f.svc.ManualAdjust(ctx, f.waitlistID, ManualAdjustmentRequest{
		CampaignID:   f.campaign.ID,
		SubscriberID: subscriber.ID,
		Points:       -5,
		Reason:       "fraud",
	}, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, int64(5), f.repo.score(subscriber.ID))
	assert.Equal(t, "fraud", adjustment.Reason)
	assert.Equal(t, "admin-1", adjustment.Actor)

	_, err = f.svc.ManualAdjust(ctx, f.waitlistID, ManualAdjustmentRequest{
		CampaignID:   f.campaign.ID,
		SubscriberID: subscriber.ID,
		Points:       3,
		Reason:       "goodwill",
	}, "admin-2")
	require.NoError(t, err)

	history, err := f.svc.ListAdjustments(ctx, f.waitlistID, subscriber.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "fraud", history[0].Reason)
	assert.Equal(t, int64(8), f.repo.score(subscriber.ID))
}

func TestManualAdjust_ScopeMismatchWritesNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	subscriber := f.repo.addSubscriber(f.waitlistID)
	foreignCampaign := &campaigns.ReferralCampaign{ID: uuid.New(), WaitlistID: uuid.New()}
	f.svc = NewService(f.repo, passthroughTx{}, staticRules(nil),
		campaignTable{f.campaign.ID: f.campaign, foreignCampaign.ID: foreignCampaign}, f.positions, f.notifier)

	_, err := f.svc.ManualAdjust(ctx, f.waitlistID, ManualAdjustmentRequest{
		CampaignID: foreignCampaign.ID, SubscriberID: subscriber.ID, Points: 5, Reason: "bonus",
	}, "admin")
	assert.ErrorIs(t, err, apperrors.ErrScopeMismatch)

	stranger := f.repo.addSubscriber(uuid.New())
	_, err = f.svc.ManualAdjust(ctx, f.waitlistID, ManualAdjustmentRequest{
		CampaignID: f.campaign.ID, SubscriberID: stranger.ID, Points: 5, Reason: "bonus",
	}, "admin")
	assert.ErrorIs(t, err, apperrors.ErrScopeMismatch)

	assert.Empty(t, f.repo.adjustments)
	assert.Zero(t, f.repo.score(subscriber.ID))
	assert.Zero(t, f.repo.score(stranger.ID))
}

func TestManualAdjust_Validation(t *testing.T) {
	f := newFixture()
	subscriber := f.repo.addSubscriber(f.waitlistID)

	tests := []struct {
		name  string
		req   ManualAdjustmentRequest
		actor string
		want  error
	}{
		{"zero points", ManualAdjustmentRequest{CampaignID: f.campaign.ID, SubscriberID: subscriber.ID, Reason: "x"}, "admin", apperrors.ErrValidation},
		{"blank reason", ManualAdjustmentRequest{CampaignID: f.campaign.ID, SubscriberID: subscriber.ID, Points: 1, Reason: "  "}, "admin", apperrors.ErrValidation},
		{"missing actor", ManualAdjustmentRequest{CampaignID: f.campaign.ID, SubscriberID: subscriber.ID, Points: 1, Reason: "x"}, "", apperrors.ErrValidation},
		{"unknown campaign", ManualAdjustmentRequest{CampaignID: uuid.New(), SubscriberID: subscriber.ID, Points: 1, Reason: "x"}, "admin", apperrors.ErrNotFound},
		{"unknown subscriber", ManualAdjustmentRequest{CampaignID: f.campaign.ID, SubscriberID: uuid.New(), Points: 1, Reason: "x"}, "admin", apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ManualAdjust(context.Background(), f.waitlistID, tt.req, tt.actor)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.repo.adjustments)
}

func TestScoreIsReconstructableFromLedger(t *testing.T) {
	f := newFixture(
		rule(rules.EventSubscriberSignup, 1),
		rule(rules.EventReferralConfirmed, 10),
		rule(rules.EventReferralCompleted, 25),
	)
	ctx := context.Background()
	a := f.repo.addSubscriber(f.waitlistID)
	b := f.repo.addSubscriber(f.waitlistID)
	ab, bc := uuid.New(), uuid.New()

	steps := []func() error{
		func() error { _, err := f.svc.ApplyEvent(ctx, f.waitlistID, rules.Event{Type: rules.EventSubscriberSignup, SubscriberID: a.ID}); return err },
		func() error { _, err := f.svc.ApplyEvent(ctx, f.waitlistID, rules.Event{Type: rules.EventSubscriberSignup, SubscriberID: b.ID}); return err },
		func() error { _, err := f.svc.ApplyEvent(ctx, f.waitlistID, rules.Event{Type: rules.EventReferralConfirmed, SubscriberID: a.ID, ReferralID: &ab}); return err },
		func() error { _, err := f.svc.ApplyEvent(ctx, f.waitlistID, rules.Event{Type: rules.EventReferralCompleted, SubscriberID: a.ID, ReferralID: &ab}); return err },
		func() error { _, err := f.svc.ApplyEvent(ctx, f.waitlistID, rules.Event{Type: rules.EventReferralConfirmed, SubscriberID: b.ID, ReferralID: &bc}); return err },
		func() error { _, err := f.svc.RevokeReferral(ctx, f.waitlistID, b.ID, bc); return err },
		func() error {
			_, err := f.svc.ManualAdjust(ctx, f.waitlistID, ManualAdjustmentRequest{
				CampaignID: f.campaign.ID, SubscriberID: a.ID, Points: -7, Reason: "duplicate account",
			}, "admin")
			return err
		},
	}
	for _, step := range steps {
		require.NoError(t, step())
	}

	assert.Equal(t, int64(1+10+25-7), f.repo.score(a.ID))
	assert.Equal(t, int64(1), f.repo.score(b.ID))

	report, err := f.svc.Reconcile(ctx, f.waitlistID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.SubscribersChecked)
	assert.Empty(t, report.Drift)
}

func TestReconcile_ReportsDrift(t *testing.T) {
	f := newFixture(rule(rules.EventSubscriberSignup, 1))
	ctx := context.Background()
	subscriber := f.repo.addSubscriber(f.waitlistID)

	_, err := f.svc.ApplyEvent(ctx, f.waitlistID, rules.Event{Type: rules.EventSubscriberSignup, SubscriberID: subscriber.ID})
	require.NoError(t, err)
	subscriber.Score = 40

	report, err := f.svc.Reconcile(ctx, f.waitlistID)
	require.NoError(t, err)
	require.Len(t, report.Drift, 1)
	assert.Equal(t, ScoreDrift{SubscriberID: subscriber.ID, StoredScore: 40, LedgerScore: 1}, report.Drift[0])
}

func TestApplyEvent_ConcurrentIncrements(t *testing.T) {
	f := newFixture(rule(rules.EventSubscriberVerified, 2))
	subscriber := f.repo.addSubscriber(f.waitlistID)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ApplyEvent(context.Background(), f.waitlistID, rules.Event{
				Type:         rules.EventSubscriberVerified,
				SubscriberID: subscriber.ID,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(40), f.repo.score(subscriber.ID))
}
