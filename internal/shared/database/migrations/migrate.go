package migrations

import (
	"waitly/internal/campaigns"
	"waitly/internal/leaderboard"
	"waitly/internal/referrals"
	"waitly/internal/rules"
	"waitly/internal/scoring"
	"waitly/internal/waitlist"

	"gorm.io/gorm"
)

// Migrate creates or updates every table, then the constraints AutoMigrate
// cannot express
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&waitlist.Waitlist{},
		&waitlist.Subscriber{},
		&rules.PointRule{},
		&campaigns.ReferralCampaign{},
		&campaigns.Reward{},
		&referrals.Referral{},
		&referrals.ReferralTransition{},
		&scoring.ScoreEvent{},
		&scoring.PointAdjustment{},
		&leaderboard.LeaderboardSnapshot{},
		&leaderboard.SnapshotEntry{},
	)
	if err != nil {
		return err
	}
	return MigrateConstraints(db)
}
