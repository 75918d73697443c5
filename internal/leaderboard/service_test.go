package leaderboard

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"waitly/internal/campaigns"
	"waitly/internal/ranking"
	"waitly/internal/shared/apperrors"
	"waitly/internal/waitlist"
	"waitly/pkg/cache"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTx struct {
	isolations []sql.IsolationLevel
}

func (t *recordingTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (t *recordingTx) WithinTransactionOpts(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context) error) error {
	if opts != nil {
		t.isolations = append(t.isolations, opts.Isolation)
	}
	return fn(ctx)
}

type memoryRepository struct {
	snapshots map[uuid.UUID]*LeaderboardSnapshot
	order     []uuid.UUID
	emails    map[uuid.UUID]string
	gets      int
	lists     int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		snapshots: map[uuid.UUID]*LeaderboardSnapshot{},
		emails:    map[uuid.UUID]string{},
	}
}

func (m *memoryRepository) CreateSnapshot(_ context.Context, snapshot *LeaderboardSnapshot, _ int) error {
	if snapshot.IsFinal {
		for _, s := range m.snapshots {
			if s.IsFinal && *s.CampaignID == *snapshot.CampaignID {
				return apperrors.ErrAlreadyFinalized
			}
		}
	}
	copied := *snapshot
	copied.Entries = append([]SnapshotEntry(nil), snapshot.Entries...)
	m.snapshots[snapshot.ID] = &copied
	m.order = append(m.order, snapshot.ID)
	return nil
}

func (m *memoryRepository) GetSnapshot(_ context.Context, snapshotID uuid.UUID) (*LeaderboardSnapshot, error) {
	m.gets++
	if s, ok := m.snapshots[snapshotID]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, apperrors.NotFound("snapshot", snapshotID)
}

func (m *memoryRepository) ListSnapshots(_ context.Context, waitlistID uuid.UUID) ([]LeaderboardSnapshot, error) {
	m.lists++
	out := []LeaderboardSnapshot{}
	for i := len(m.order) - 1; i >= 0; i-- {
		if s := m.snapshots[m.order[i]]; s.WaitlistID == waitlistID {
			header := *s
			header.Entries = nil
			out = append(out, header)
		}
	}
	return out, nil
}

func (m *memoryRepository) GetFinalSnapshot(_ context.Context, campaignID uuid.UUID) (*LeaderboardSnapshot, error) {
	for _, s := range m.snapshots {
		if s.IsFinal && s.CampaignID != nil && *s.CampaignID == campaignID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, apperrors.NotFound("final snapshot for campaign", campaignID)
}

func (m *memoryRepository) FinalSnapshotExists(ctx context.Context, campaignID uuid.UUID) (bool, error) {
	_, err := m.GetFinalSnapshot(ctx, campaignID)
	return err == nil, nil
}

func (m *memoryRepository) ListPublicEntries(_ context.Context, snapshotID uuid.UUID, limit int) ([]PublicEntry, error) {
	var out []PublicEntry
	for _, e := range m.snapshots[snapshotID].Entries {
		if len(out) == limit {
			break
		}
		out = append(out, PublicEntry{Position: e.Position, Email: m.emails[e.SubscriberID], Score: e.Score})
	}
	return out, nil
}

type memoryStandings map[uuid.UUID][]ranking.Standing

func (m memoryStandings) ListStandings(_ context.Context, waitlistID uuid.UUID) ([]ranking.Standing, error) {
	return m[waitlistID], nil
}

type memoryCampaigns struct {
	campaigns []campaigns.ReferralCampaign // newest first
}

func (m *memoryCampaigns) GetCampaign(_ context.Context, waitlistID, campaignID uuid.UUID) (*campaigns.ReferralCampaign, error) {
	for _, c := range m.campaigns {
		if c.ID == campaignID {
			if c.WaitlistID != waitlistID {
				return nil, fmt.Errorf("%w: campaign %s", apperrors.ErrScopeMismatch, campaignID)
			}
			copied := c
			return &copied, nil
		}
	}
	return nil, apperrors.NotFound("campaign", campaignID)
}

func (m *memoryCampaigns) GetActiveCampaign(_ context.Context, waitlistID uuid.UUID) (*campaigns.ReferralCampaign, error) {
	for _, c := range m.campaigns {
		if c.WaitlistID == waitlistID && c.Status == campaigns.CampaignStatusActive {
			copied := c
			return &copied, nil
		}
	}
	return nil, apperrors.NotFound("active campaign for waitlist", waitlistID)
}

func (m *memoryCampaigns) ListCampaigns(_ context.Context, waitlistID uuid.UUID) ([]campaigns.ReferralCampaign, error) {
	var out []campaigns.ReferralCampaign
	for _, c := range m.campaigns {
		if c.WaitlistID == waitlistID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memoryWaitlists struct {
	waitlist *waitlist.Waitlist
}

func (m memoryWaitlists) GetWaitlistBySlug(_ context.Context, slug string) (*waitlist.Waitlist, error) {
	if slug != m.waitlist.Slug {
		return nil, apperrors.NotFound("waitlist", slug)
	}
	return m.waitlist, nil
}

type snapshotEvent struct {
	snapshotID uuid.UUID
	campaignID *uuid.UUID
	isFinal    bool
	entries    int
}

type recordingNotifier struct {
	snapshots []snapshotEvent
}

func (n *recordingNotifier) ScoreChanged(context.Context, uuid.UUID, uuid.UUID, string, int64, int64) {}

func (n *recordingNotifier) ReferralStatusChanged(context.Context, uuid.UUID, uuid.UUID, uuid.UUID, string, string) {}

func (n *recordingNotifier) SnapshotCreated(_ context.Context, _, snapshotID uuid.UUID, campaignID *uuid.UUID, isFinal bool, entries int) {
	n.snapshots = append(n.snapshots, snapshotEvent{snapshotID, campaignID, isFinal, entries})
}

func (n *recordingNotifier) CampaignStatusChanged(context.Context, uuid.UUID, uuid.UUID, string) {}

// memoryCache stores JSON like the Redis-backed cache does
type memoryCache struct {
	values map[string][]byte
	hits   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := c.values[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	c.hits++
	return json.Unmarshal(data, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = data
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.values, key)
	}
	return nil
}

func (c *memoryCache) DeletePattern(context.Context, string) error { return nil }

func (c *memoryCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fetcher func() (interface{}, error), dest interface{}) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	}
	value, err := fetcher()
	if err != nil {
		return err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return json.Unmarshal(c.values[key], dest)
}

func (c *memoryCache) Ping(context.Context) error { return nil }

type fixture struct {
	svc       Service
	repo      *memoryRepository
	tx        *recordingTx
	campaigns *memoryCampaigns
	notifier  *recordingNotifier
	cache     *memoryCache
	waitlist  *waitlist.Waitlist
	standings memoryStandings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	wl := &waitlist.Waitlist{ID: uuid.New(), Slug: "launch"}
	f := &fixture{
		repo:      newMemoryRepository(),
		tx:        &recordingTx{},
		campaigns: &memoryCampaigns{},
		notifier:  &recordingNotifier{},
		cache:     newMemoryCache(),
		waitlist:  wl,
		standings: memoryStandings{},
	}
	f.svc = NewService(f.repo, f.tx, f.standings, f.campaigns, memoryWaitlists{waitlist: wl}, f.notifier,
		&ServiceConfig{EntryBatchSize: 2, DefaultLimit: 2, MaxLimit: 3, SnapshotTTL: time.Hour})
	f.svc.SetCacheService(f.cache)
	return f
}

func (f *fixture) addCampaign(status campaigns.CampaignStatus) uuid.UUID {
	c := campaigns.ReferralCampaign{ID: uuid.New(), WaitlistID: f.waitlist.ID, Status: status}
	f.campaigns.campaigns = append([]campaigns.ReferralCampaign{c}, f.campaigns.campaigns...)
	return c.ID
}

func (f *fixture) addStanding(email string, score int64, joined time.Time) uuid.UUID {
	id := uuid.New()
	f.standings[f.waitlist.ID] = append(f.standings[f.waitlist.ID], ranking.Standing{SubscriberID: id, Score: score, CreatedAt: joined})
	f.repo.emails[id] = email
	return id
}

func (f *fixture) seedStandings() (first, second, third uuid.UUID) {
	joined := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	third = f.addStanding("carol@example.com", 5, joined)
	first = f.addStanding("alice@example.com", 40, joined.Add(time.Minute))
	second = f.addStanding("bob@example.com", 5, joined.Add(-time.Minute))
	return first, second, third
}

func TestCreateSnapshot_CopiesRankedStandings(t *testing.T) {
	f := newFixture(t)
	campaignID := f.addCampaign(campaigns.CampaignStatusActive)
	first, second, third := f.seedStandings()

	snapshot, err := f.svc.CreateSnapshot(context.Background(), f.waitlist.ID, CreateSnapshotRequest{})
	require.NoError(t, err)

	require.NotNil(t, snapshot.CampaignID)
	assert.Equal(t, campaignID, *snapshot.CampaignID)
	assert.False(t, snapshot.IsFinal)
	assert.Equal(t, 3, snapshot.SubscriberCount)
	require.Len(t, snapshot.Entries, 3)
	assert.Equal(t, first, snapshot.Entries[0].SubscriberID)
	assert.Equal(t, second, snapshot.Entries[1].SubscriberID)
	assert.Equal(t, third, snapshot.Entries[2].SubscriberID)
	for i, entry := range snapshot.Entries {
		assert.Equal(t, i+1, entry.Position)
		assert.Equal(t, snapshot.ID, entry.SnapshotID)
	}

	assert.Equal(t, []sql.IsolationLevel{sql.LevelRepeatableRead}, f.tx.isolations)
	require.Len(t, f.notifier.snapshots, 1)
	assert.Equal(t, snapshotEvent{snapshot.ID, snapshot.CampaignID, false, 3}, f.notifier.snapshots[0])
}

func TestCreateSnapshot_WithoutCampaign(t *testing.T) {
	f := newFixture(t)
	f.seedStandings()
	ctx := context.Background()

	snapshot, err := f.svc.CreateSnapshot(ctx, f.waitlist.ID, CreateSnapshotRequest{})
	require.NoError(t, err)
	assert.Nil(t, snapshot.CampaignID)

	_, err = f.svc.CreateSnapshot(ctx, f.waitlist.ID, CreateSnapshotRequest{IsFinal: true})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Len(t, f.repo.snapshots, 1)
}

func TestCreateSnapshot_SecondFinalIsRejected(t *testing.T) {
	f := newFixture(t)
	campaignID := f.addCampaign(campaigns.CampaignStatusEnded)
	f.seedStandings()
	ctx := context.Background()
	req := CreateSnapshotRequest{IsFinal: true, CampaignID: &campaignID}

	final, err := f.svc.CreateSnapshot(ctx, f.waitlist.ID, req)
	require.NoError(t, err)
	assert.True(t, final.IsFinal)

	_, err = f.svc.CreateSnapshot(ctx, f.waitlist.ID, req)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyFinalized)
	assert.Len(t, f.repo.snapshots, 1)
	assert.Len(t, f.notifier.snapshots, 1)

	interim, err := f.svc.CreateSnapshot(ctx, f.waitlist.ID, CreateSnapshotRequest{CampaignID: &campaignID})
	require.NoError(t, err)
	assert.False(t, interim.IsFinal)
}

func TestCreateSnapshot_CampaignOfAnotherWaitlist(t *testing.T) {
	f := newFixture(t)
	foreign := campaigns.ReferralCampaign{ID: uuid.New(), WaitlistID: uuid.New(), Status: campaigns.CampaignStatusActive}
	f.campaigns.campaigns = append(f.campaigns.campaigns, foreign)

	_, err := f.svc.CreateSnapshot(context.Background(), f.waitlist.ID, CreateSnapshotRequest{CampaignID: &foreign.ID})

	assert.ErrorIs(t, err, apperrors.ErrScopeMismatch)
	assert.Empty(t, f.repo.snapshots)
}

func TestGetSnapshot_ServedFromCache(t *testing.T) {
	f := newFixture(t)
	f.seedStandings()
	ctx := context.Background()

	created, err := f.svc.CreateSnapshot(ctx, f.waitlist.ID, CreateSnapshotRequest{})
	require.NoError(t, err)

	for range 3 {
		snapshot, err := f.svc.GetSnapshot(ctx, f.waitlist.ID, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, snapshot.ID)
		assert.Len(t, snapshot.Entries, 3)
	}
	assert.Equal(t, 1, f.repo.gets)
	assert.Equal(t, 2, f.cache.hits)

	_, err = f.svc.GetSnapshot(ctx, uuid.New(), created.ID)
	assert.ErrorIs(t, err, apperrors.ErrScopeMismatch)

	_, err = f.svc.GetSnapshot(ctx, f.waitlist.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListSnapshots_InvalidatedOnCreate(t *testing.T) {
	f := newFixture(t)
	f.seedStandings()
	ctx := context.Background()

	snapshots, err := f.svc.ListSnapshots(ctx, f.waitlist.ID)
	require.NoError(t, err)
	assert.Empty(t, snapshots)

	created, err := f.svc.CreateSnapshot(ctx, f.waitlist.ID, CreateSnapshotRequest{})
	require.NoError(t, err)

	snapshots, err = f.svc.ListSnapshots(ctx, f.waitlist.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, created.ID, snapshots[0].ID)
	assert.Equal(t, 2, f.repo.lists)
}

func TestGetFinalSnapshot(t *testing.T) {
	f := newFixture(t)
	campaignID := f.addCampaign(campaigns.CampaignStatusActive)
	f.seedStandings()
	ctx := context.Background()

	_, err := f.svc.GetFinalSnapshot(ctx, f.waitlist.ID, campaignID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	final, err := f.svc.CreateSnapshot(ctx, f.waitlist.ID, CreateSnapshotRequest{IsFinal: true})
	require.NoError(t, err)

	got, err := f.svc.GetFinalSnapshot(ctx, f.waitlist.ID, campaignID)
	require.NoError(t, err)
	assert.Equal(t, final.ID, got.ID)

	_, err = f.svc.GetFinalSnapshot(ctx, f.waitlist.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPublicFinalSnapshot_NoCampaign(t *testing.T) {
	f := newFixture(t)

	final, err := f.svc.PublicFinalSnapshot(context.Background(), "launch", 0)
	require.NoError(t, err)

	assert.False(t, final.Finalized)
	assert.Nil(t, final.CampaignID)
	assert.NotNil(t, final.Entries)
	assert.Empty(t, final.Entries)
}

func TestPublicFinalSnapshot_NotFinalizedYet(t *testing.T) {
	f := newFixture(t)
	campaignID := f.addCampaign(campaigns.CampaignStatusActive)

	final, err := f.svc.PublicFinalSnapshot(context.Background(), "launch", 0)
	require.NoError(t, err)

	assert.False(t, final.Finalized)
	require.NotNil(t, final.CampaignID)
	assert.Equal(t, campaignID, *final.CampaignID)
	assert.Empty(t, final.Entries)
}

func TestPublicFinalSnapshot_MostRecentCampaign(t *testing.T) {
	f := newFixture(t)
	older := f.addCampaign(campaigns.CampaignStatusEnded)
	f.seedStandings()
	ctx := context.Background()

	_, err := f.svc.CreateSnapshot(ctx, f.waitlist.ID, CreateSnapshotRequest{IsFinal: true, CampaignID: &older})
	require.NoError(t, err)
	recent := f.addCampaign(campaigns.CampaignStatusEnded)

	final, err := f.svc.PublicFinalSnapshot(ctx, "launch", 0)
	require.NoError(t, err)
	assert.Equal(t, recent, *final.CampaignID)
	assert.False(t, final.Finalized)

	_, err = f.svc.CreateSnapshot(ctx, f.waitlist.ID, CreateSnapshotRequest{IsFinal: true, CampaignID: &recent})
	require.NoError(t, err)

	final, err = f.svc.PublicFinalSnapshot(ctx, " Launch ", 10)
	require.NoError(t, err)
	assert.True(t, final.Finalized)
	assert.Equal(t, 3, final.SubscriberCount)
	require.Len(t, final.Entries, 3)
	assert.Equal(t, PublicEntry{Position: 1, Email: "a***@example.com", Score: 40}, final.Entries[0])
	assert.Equal(t, PublicEntry{Position: 2, Email: "b***@example.com", Score: 5}, final.Entries[1])
}

func TestPublicFinalSnapshot_DefaultLimitAndUnknownSlug(t *testing.T) {
	f := newFixture(t)
	f.addCampaign(campaigns.CampaignStatusActive)
	f.seedStandings()
	ctx := context.Background()

	_, err := f.svc.CreateSnapshot(ctx, f.waitlist.ID, CreateSnapshotRequest{IsFinal: true})
	require.NoError(t, err)

	final, err := f.svc.PublicFinalSnapshot(ctx, "launch", 0)
	require.NoError(t, err)
	assert.Len(t, final.Entries, 2)

	_, err = f.svc.PublicFinalSnapshot(ctx, "missing", 0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestService_WithoutCache(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(f.repo, f.tx, f.standings, f.campaigns, memoryWaitlists{waitlist: f.waitlist}, f.notifier, nil)
	f.seedStandings()
	ctx := context.Background()

	created, err := f.svc.CreateSnapshot(ctx, f.waitlist.ID, CreateSnapshotRequest{})
	require.NoError(t, err)

	got, err := f.svc.GetSnapshot(ctx, f.waitlist.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.SubscriberCount, got.SubscriberCount)

	list, err := f.svc.ListSnapshots(ctx, f.waitlist.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGetSnapshot_EntriesKeepSnapshotIDThroughCache(t *testing.T) {
	f := newFixture(t)
	f.seedStandings()
	ctx := context.Background()

	created, err := f.svc.CreateSnapshot(ctx, f.waitlist.ID, CreateSnapshotRequest{})
	require.NoError(t, err)

	uncached, err := f.svc.GetSnapshot(ctx, f.waitlist.ID, created.ID)
	require.NoError(t, err)
	cached, err := f.svc.GetSnapshot(ctx, f.waitlist.ID, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.cache.hits)

	assert.Equal(t, uncached.Entries, cached.Entries)
	for _, entry := range cached.Entries {
		assert.Equal(t, created.ID, entry.SnapshotID)
	}
}

func TestSnapshot_UnaffectedByLaterScoreChanges(t *testing.T) {
	f := newFixture(t)
	campaignID := f.addCampaign(campaigns.CampaignStatusActive)
	first, second, third := f.seedStandings()
	ctx := context.Background()

	final, err := f.svc.CreateSnapshot(ctx, f.waitlist.ID, CreateSnapshotRequest{IsFinal: true})
	require.NoError(t, err)
	frozen := append([]SnapshotEntry(nil), final.Entries...)

	// Scores move and a new subscriber joins after the campaign closed
	live := f.standings[f.waitlist.ID]
	for i := range live {
		if live[i].SubscriberID == third {
			live[i].Score = 500
		}
	}
	f.addStanding("dave@example.com", 90, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	later, err := f.svc.CreateSnapshot(ctx, f.waitlist.ID, CreateSnapshotRequest{})
	require.NoError(t, err)
	require.Equal(t, 4, later.SubscriberCount)
	assert.Equal(t, third, later.Entries[0].SubscriberID)

	uncachedSvc := NewService(f.repo, f.tx, f.standings, f.campaigns, memoryWaitlists{waitlist: f.waitlist}, f.notifier, nil)
	for _, svc := range []Service{f.svc, f.svc, uncachedSvc} {
		got, err := svc.GetSnapshot(ctx, f.waitlist.ID, final.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.SubscriberCount)
		assert.Equal(t, frozen, got.Entries)

		got, err = svc.GetFinalSnapshot(ctx, f.waitlist.ID, campaignID)
		require.NoError(t, err)
		assert.Equal(t, final.ID, got.ID)
		assert.Equal(t, frozen, got.Entries)
	}

	assert.Equal(t, []uuid.UUID{first, second, third}, []uuid.UUID{
		frozen[0].SubscriberID, frozen[1].SubscriberID, frozen[2].SubscriberID,
	})
	assert.Equal(t, int64(5), frozen[2].Score)
}

// emptyListRepository reports no snapshots as a nil slice, as GORM does
type emptyListRepository struct {
	*memoryRepository
}

func (emptyListRepository) ListSnapshots(context.Context, uuid.UUID) ([]LeaderboardSnapshot, error) {
	return nil, nil
}

func TestListSnapshots_EmptyIsNeverNil(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := emptyListRepository{f.repo}

	withoutCache := NewService(repo, f.tx, f.standings, f.campaigns, memoryWaitlists{waitlist: f.waitlist}, f.notifier, nil)
	withCache := NewService(repo, f.tx, f.standings, f.campaigns, memoryWaitlists{waitlist: f.waitlist}, f.notifier, nil)
	withCache.SetCacheService(newMemoryCache())

	for _, svc := range []Service{withoutCache, withCache, withCache} {
		snapshots, err := svc.ListSnapshots(ctx, f.waitlist.ID)
		require.NoError(t, err)
		assert.NotNil(t, snapshots)
		assert.Empty(t, snapshots)

		body, err := json.Marshal(snapshots)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(body))
	}
}
