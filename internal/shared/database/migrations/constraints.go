package migrations

import (
	"fmt"

	"gorm.io/gorm"
)

var constraints = []struct {
	name  string
	query string
}{
	{
		// One scoring event per referral and event type
		name: "uniq_score_events_referral_event",
		query: `CREATE UNIQUE INDEX IF NOT EXISTS uniq_score_events_referral_event
			ON score_events (referral_id, event_type)
			WHERE referral_id IS NOT NULL`,
	},
	{
		name: "uniq_snapshots_final_campaign",
		query: `CREATE UNIQUE INDEX IF NOT EXISTS uniq_snapshots_final_campaign
			ON leaderboard_snapshots (campaign_id)
			WHERE is_final`,
	},
	{
		name: "uniq_campaigns_active_waitlist",
		query: `CREATE UNIQUE INDEX IF NOT EXISTS uniq_campaigns_active_waitlist
			ON referral_campaigns (waitlist_id)
			WHERE status = 'ACTIVE'`,
	},
	{
		// Ranking order for recomputes, live standings and leaderboards
		name: "idx_subscribers_ranking",
		query: `CREATE INDEX IF NOT EXISTS idx_subscribers_ranking
			ON subscribers (waitlist_id, status, score DESC, created_at ASC, id ASC)`,
	},
}

// MigrateConstraints adds the partial unique indexes that back exactly-once
// scoring and single final snapshots
func MigrateConstraints(db *gorm.DB) error {
	for _, c := range constraints {
		if err := db.Exec(c.query).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", c.name, err)
		}
	}
	return nil
}
