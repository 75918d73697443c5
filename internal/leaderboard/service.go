package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"waitly/internal/campaigns"
	"waitly/internal/notifications"
	"waitly/internal/ranking"
	"waitly/internal/shared/apperrors"
	"waitly/internal/shared/constants"
	"waitly/internal/shared/database"
	"waitly/internal/waitlist"
	"waitly/pkg/cache"
	"waitly/pkg/logger"
	"waitly/pkg/metrics"

	"github.com/google/uuid"
)

// StandingsReader reads the ranked standings a snapshot copies
type StandingsReader interface {
	ListStandings(ctx context.Context, waitlistID uuid.UUID) ([]ranking.Standing, error)
}

// CampaignLookup resolves the campaign a snapshot belongs to
type CampaignLookup interface {
	GetCampaign(ctx context.Context, waitlistID, campaignID uuid.UUID) (*campaigns.ReferralCampaign, error)
	GetActiveCampaign(ctx context.Context, waitlistID uuid.UUID) (*campaigns.ReferralCampaign, error)
	ListCampaigns(ctx context.Context, waitlistID uuid.UUID) ([]campaigns.ReferralCampaign, error)
}

// WaitlistResolver resolves public slugs
type WaitlistResolver interface {
	GetWaitlistBySlug(ctx context.Context, slug string) (*waitlist.Waitlist, error)
}

type Service interface {
	CreateSnapshot(ctx context.Context, waitlistID uuid.UUID, req CreateSnapshotRequest) (*LeaderboardSnapshot, error)
	GetSnapshot(ctx context.Context, waitlistID, snapshotID uuid.UUID) (*LeaderboardSnapshot, error)
	ListSnapshots(ctx context.Context, waitlistID uuid.UUID) ([]LeaderboardSnapshot, error)
	GetFinalSnapshot(ctx context.Context, waitlistID, campaignID uuid.UUID) (*LeaderboardSnapshot, error)
	PublicFinalSnapshot(ctx context.Context, slug string, limit int) (*PublicFinalResponse, error)

	SetCacheService(cacheService cache.Service)
}

// ServiceConfig contains configuration for the snapshot store
type ServiceConfig struct {
	EntryBatchSize int
	DefaultLimit   int
	MaxLimit       int
	SnapshotTTL    time.Duration
}

// DefaultServiceConfig returns default service configuration
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		EntryBatchSize: DefaultEntryBatchSize,
		DefaultLimit:   DefaultPublicLimit,
		MaxLimit:       MaxPublicLimit,
		SnapshotTTL:    constants.TTL_SNAPSHOT_DETAIL,
	}
}

type service struct {
	repo         Repository
	tx           database.Transactor
	standings    StandingsReader
	campaigns    CampaignLookup
	waitlists    WaitlistResolver
	notifier     notifications.Service
	cacheService cache.Service
	config       *ServiceConfig
	log          *logger.Logger
	now          func() time.Time
}

// NewService creates a new snapshot service
func NewService(repo Repository, tx database.Transactor, standings StandingsReader, campaignLookup CampaignLookup,
	waitlists WaitlistResolver, notifier notifications.Service, config *ServiceConfig) Service {
	if config == nil {
		config = DefaultServiceConfig()
	}
	return &service{
		repo:      repo,
		tx:        tx,
		standings: standings,
		campaigns: campaignLookup,
		waitlists: waitlists,
		notifier:  notifier,
		config:    config,
		log:       logger.GetDefault(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetCacheService injects the cache service dependency
func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

// CreateSnapshot copies the current standings inside a single REPEATABLE READ
// transaction so every entry comes from the same view of the scores
func (s *service) CreateSnapshot(ctx context.Context, waitlistID uuid.UUID, req CreateSnapshotRequest) (*LeaderboardSnapshot, error) {
	campaignID, err := s.resolveCampaign(ctx, waitlistID, req.CampaignID)
	if err != nil {
		return nil, err
	}
	if req.IsFinal {
		if campaignID == nil {
			return nil, apperrors.Validation("a final snapshot requires a campaign")
		}
		exists, err := s.repo.FinalSnapshotExists(ctx, *campaignID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperrors.ErrAlreadyFinalized
		}
	}

	var snapshot *LeaderboardSnapshot
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	err = s.tx.WithinTransactionOpts(ctx, opts, func(ctx context.Context) error {
		standings, err := s.standings.ListStandings(ctx, waitlistID)
		if err != nil {
			return err
		}
		positions := ranking.Rank(standings)

		snapshot = &LeaderboardSnapshot{
			ID:              uuid.New(),
			WaitlistID:      waitlistID,
			CampaignID:      campaignID,
			IsFinal:         req.IsFinal,
			SubscriberCount: len(positions),
			TakenAt:         s.now(),
			Entries:         make([]SnapshotEntry, len(positions)),
		}
		for i, p := range positions {
			snapshot.Entries[i] = SnapshotEntry{
				SnapshotID:   snapshot.ID,
				SubscriberID: p.SubscriberID,
				Score:        p.Score,
				Position:     p.Position,
			}
		}
		if err := s.repo.CreateSnapshot(ctx, snapshot, s.config.EntryBatchSize); err != nil {
			return err
		}

		database.AfterCommit(ctx, func(ctx context.Context) {
			s.snapshotCreated(ctx, snapshot)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *service) resolveCampaign(ctx context.Context, waitlistID uuid.UUID, requested *uuid.UUID) (*uuid.UUID, error) {
	if requested != nil {
		campaign, err := s.campaigns.GetCampaign(ctx, waitlistID, *requested)
		if err != nil {
			return nil, err
		}
		return &campaign.ID, nil
	}

	active, err := s.campaigns.GetActiveCampaign(ctx, waitlistID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &active.ID, nil
}

func (s *service) snapshotCreated(ctx context.Context, snapshot *LeaderboardSnapshot) {
	kind := "interim"
	if snapshot.IsFinal {
		kind = "final"
	}
	metrics.SnapshotsCreated.WithLabelValues(kind).Inc()
	s.log.LogSnapshotCreated(ctx, snapshot.ID.String(), snapshot.WaitlistID.String(), snapshot.IsFinal, snapshot.SubscriberCount)

	if s.cacheService != nil {
		if err := s.cacheService.Delete(ctx, constants.BuildSnapshotListKey(snapshot.WaitlistID.String())); err != nil {
			s.log.ErrorWithContext(ctx, "Failed to invalidate snapshot list cache", err, map[string]interface{}{
				"waitlist_id": snapshot.WaitlistID.String(),
			})
		}
	}

	s.notifier.SnapshotCreated(ctx, snapshot.WaitlistID, snapshot.ID, snapshot.CampaignID, snapshot.IsFinal, snapshot.SubscriberCount)
}

// cached reads key through the cache when one is configured. Snapshots are
// immutable, so entries only expire by TTL.
func (s *service) cached(ctx context.Context, key string, ttl time.Duration, dest interface{}, fetch func() (interface{}, error)) error {
	if s.cacheService != nil {
		return s.cacheService.GetOrSet(ctx, key, ttl, fetch, dest)
	}
	value, err := fetch()
	if err != nil {
		return err
	}
	switch d := dest.(type) {
	case *LeaderboardSnapshot:
		*d = *value.(*LeaderboardSnapshot)
	case *[]LeaderboardSnapshot:
		if list := value.([]LeaderboardSnapshot); list != nil {
			*d = list
		}
	default:
		return fmt.Errorf("unsupported cache destination %T", dest)
	}
	return nil
}

func (s *service) GetSnapshot(ctx context.Context, waitlistID, snapshotID uuid.UUID) (*LeaderboardSnapshot, error) {
	var snapshot LeaderboardSnapshot
	err := s.cached(ctx, constants.BuildSnapshotDetailKey(snapshotID.String()), s.config.SnapshotTTL, &snapshot,
		func() (interface{}, error) { return s.repo.GetSnapshot(ctx, snapshotID) })
	if err != nil {
		return nil, err
	}
	if snapshot.WaitlistID != waitlistID {
		return nil, fmt.Errorf("%w: snapshot %s", apperrors.ErrScopeMismatch, snapshotID)
	}
	return &snapshot, nil
}

// ListSnapshots returns snapshot headers newest first, never a nil slice
func (s *service) ListSnapshots(ctx context.Context, waitlistID uuid.UUID) ([]LeaderboardSnapshot, error) {
	snapshots := []LeaderboardSnapshot{}
	err := s.cached(ctx, constants.BuildSnapshotListKey(waitlistID.String()), constants.TTL_SNAPSHOT_LIST, &snapshots,
		func() (interface{}, error) { return s.repo.ListSnapshots(ctx, waitlistID) })
	if err != nil {
		return nil, err
	}
	if snapshots == nil {
		snapshots = []LeaderboardSnapshot{}
	}
	return snapshots, nil
}

func (s *service) GetFinalSnapshot(ctx context.Context, waitlistID, campaignID uuid.UUID) (*LeaderboardSnapshot, error) {
	if _, err := s.campaigns.GetCampaign(ctx, waitlistID, campaignID); err != nil {
		return nil, err
	}
	return s.finalSnapshot(ctx, campaignID)
}

func (s *service) finalSnapshot(ctx context.Context, campaignID uuid.UUID) (*LeaderboardSnapshot, error) {
	var snapshot LeaderboardSnapshot
	err := s.cached(ctx, constants.BuildSnapshotFinalKey(campaignID.String()), constants.TTL_SNAPSHOT_FINAL, &snapshot,
		func() (interface{}, error) { return s.repo.GetFinalSnapshot(ctx, campaignID) })
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// PublicFinalSnapshot returns the final standings of the active campaign, or
// of the most recent one when none is active, with emails masked
func (s *service) PublicFinalSnapshot(ctx context.Context, slug string, limit int) (*PublicFinalResponse, error) {
	wl, err := s.waitlists.GetWaitlistBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, err
	}
	resp := &PublicFinalResponse{WaitlistID: wl.ID, Entries: []PublicEntry{}}

	campaignID, err := s.currentCampaign(ctx, wl.ID)
	if err != nil || campaignID == nil {
		return resp, err
	}
	resp.CampaignID = campaignID

	snapshot, err := s.finalSnapshot(ctx, *campaignID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return resp, nil
		}
		return nil, err
	}

	entries, err := s.repo.ListPublicEntries(ctx, snapshot.ID, s.clampLimit(limit))
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Email = ranking.MaskEmail(entries[i].Email)
	}

	resp.Finalized = true
	resp.TakenAt = &snapshot.TakenAt
	resp.SubscriberCount = snapshot.SubscriberCount
	resp.Entries = append(resp.Entries, entries...)
	return resp, nil
}

func (s *service) currentCampaign(ctx context.Context, waitlistID uuid.UUID) (*uuid.UUID, error) {
	active, err := s.campaigns.GetActiveCampaign(ctx, waitlistID)
	if err == nil {
		return &active.ID, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	all, err := s.campaigns.ListCampaigns(ctx, waitlistID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0].ID, nil
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
