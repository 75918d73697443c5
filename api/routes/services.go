package routes

import (
	"waitly/internal/campaigns"
	"waitly/internal/leaderboard"
	"waitly/internal/notifications"
	"waitly/internal/ranking"
	"waitly/internal/referrals"
	"waitly/internal/rules"
	"waitly/internal/scoring"
	"waitly/internal/shared/config"
	"waitly/internal/shared/database"
	"waitly/internal/waitlist"
	"waitly/pkg/cache"
)

// Services holds the feature services shared by HTTP handlers and
// background workers
type Services struct {
	Waitlists   waitlist.Service
	Rules       rules.Service
	Campaigns   campaigns.Service
	Scoring     scoring.Service
	Referrals   referrals.Service
	Ranking     ranking.Service
	Leaderboard leaderboard.Service

	// RankingRepo enumerates waitlists for the reconciliation job
	RankingRepo ranking.Repository
}

// NewServices wires the feature services. Collaborators are injected
// through consumer-side interfaces, so construction follows the
// dependency order rules -> campaigns -> ranking -> scoring -> referrals -> waitlist.
func NewServices(cfg *config.Config, db *database.DB, notifier notifications.Service) *Services {
	pg := db.GetPostgreSQL()
	tx := db.Transactor()

	waitlistRepo := waitlist.NewRepository(pg)
	rankingRepo := ranking.NewRepository(pg)

	rulesService := rules.NewService(rules.NewRepository(pg))

	campaignService := campaigns.NewService(campaigns.NewRepository(pg), tx, rulesService, waitlistRepo, notifier)

	rankingService := ranking.NewService(rankingRepo, tx, campaignService, waitlistRepo, &ranking.ServiceConfig{
		PositionBatchSize: cfg.Scoring.PositionBatchSize,
		DefaultLimit:      cfg.Scoring.LeaderboardLimit,
		MaxLimit:          cfg.Scoring.MaxLeaderboardLimit,
	})

	scoringService := scoring.NewService(scoring.NewRepository(pg), tx, rulesService, campaignService, rankingService, notifier)

	referralService := referrals.NewService(referrals.NewRepository(pg), tx, scoringService, notifier)

	waitlistService := waitlist.NewService(waitlistRepo, tx, referrals.NewWaitlistAdapter(referralService),
		scoringService, rankingService, &waitlist.ServiceConfig{
			ReferralCodeAttempts: cfg.Scoring.ReferralCodeAttempts,
		})

	leaderboardService := leaderboard.NewService(leaderboard.NewRepository(pg), tx, rankingRepo, campaignService,
		waitlistRepo, notifier, &leaderboard.ServiceConfig{
			EntryBatchSize: leaderboard.DefaultEntryBatchSize,
			DefaultLimit:   cfg.Scoring.LeaderboardLimit,
			MaxLimit:       cfg.Scoring.MaxLeaderboardLimit,
			SnapshotTTL:    cfg.Redis.SnapshotTTL,
		})
	if redisClient := db.GetRedisClient(); redisClient != nil {
		leaderboardService.SetCacheService(cache.NewService(redisClient))
	}

	return &Services{
		Waitlists:   waitlistService,
		Rules:       rulesService,
		Campaigns:   campaignService,
		Scoring:     scoringService,
		Referrals:   referralService,
		Ranking:     rankingService,
		Leaderboard: leaderboardService,
		RankingRepo: rankingRepo,
	}
}
