package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"waitly/api/routes"
	"waitly/internal/campaigns"
	"waitly/internal/leaderboard"
	"waitly/internal/notifications"
	"waitly/internal/referrals"
	"waitly/internal/rules"
	"waitly/internal/shared/config"
	"waitly/internal/shared/database"
	"waitly/internal/shared/database/migrations"
	"waitly/internal/waitlist"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const seedOrganizationID = "org-demo"

type Seeder struct {
	db       *database.DB
	services *routes.Services
}

func main() {
	fmt.Println("🌱 Starting Waitly Database Seeder...")

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := migrations.Migrate(db.GetPostgreSQL()); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	seeder := &Seeder{
		db:       db,
		services: routes.NewServices(cfg, db, notifications.NewService(notifications.NewLogPublisher())),
	}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	waitlistID, err := seeder.SeedAll(context.Background())
	if err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	token, err := devToken(cfg.JWT.Secret)
	if err != nil {
		log.Fatalf("Failed to sign admin token: %v", err)
	}
	fmt.Printf("\n🔑 Admin token for %s (24h):\n%s\n", seedOrganizationID, token)
	fmt.Printf("\n🎉 Seeding completed! Try GET %s/admin/waitlists/%s/leaderboard\n", cfg.GetAPIBasePath(), waitlistID)
}

// CleanDatabase truncates all tables, children first
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"leaderboard_snapshot_entries",
		"leaderboard_snapshots",
		"point_adjustments",
		"score_events",
		"referral_transitions",
		"referrals",
		"rewards",
		"referral_campaigns",
		"point_rules",
		"subscribers",
		"waitlists",
	}

	return s.db.Transactor().WithinTransaction(context.Background(), func(ctx context.Context) error {
		conn := database.Conn(ctx, s.db.GetPostgreSQL())
		for _, table := range tables {
			fmt.Printf("  Truncating table: %s\n", table)
			if err := conn.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedAll builds one demo waitlist through the services so that scores,
// ledger rows and positions stay consistent
func (s *Seeder) SeedAll(ctx context.Context) (uuid.UUID, error) {
	list, err := s.services.Waitlists.CreateWaitlist(ctx, seedOrganizationID, waitlist.CreateWaitlistRequest{
		Name:        "Launch Beta",
		Description: "Early access list for the public beta",
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create waitlist: %w", err)
	}
	fmt.Printf("  📋 Created waitlist: %s (/%s)\n", list.Name, list.Slug)

	if err := s.SeedRules(ctx, list.ID); err != nil {
		return uuid.Nil, fmt.Errorf("failed to seed rules: %w", err)
	}

	campaign, err := s.SeedCampaign(ctx, list.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to seed campaign: %w", err)
	}

	if err := s.SeedSubscribers(ctx, list); err != nil {
		return uuid.Nil, fmt.Errorf("failed to seed subscribers: %w", err)
	}

	snapshot, err := s.services.Leaderboard.CreateSnapshot(ctx, list.ID, leaderboard.CreateSnapshotRequest{CampaignID: &campaign.ID})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to take snapshot: %w", err)
	}
	fmt.Printf("  📸 Took interim snapshot %s (%d entries)\n", snapshot.ID, snapshot.SubscriberCount)

	if err := s.db.GetRedisClient().FlushDB(ctx).Err(); err != nil {
		log.Printf("Warning: Failed to clear Redis cache: %v", err)
	}

	return list.ID, nil
}

// SeedRules creates one rule per scoring event plus a conditional bonus
func (s *Seeder) SeedRules(ctx context.Context, waitlistID uuid.UUID) error {
	fmt.Println("  🧮 Seeding point rules...")

	bonusPriority := 10
	requests := []rules.CreateRuleRequest{
		{Name: "Signup", EventType: rules.EventSubscriberSignup, Points: 10},
		{Name: "Email verified", EventType: rules.EventSubscriberVerified, Points: 5},
		{Name: "Referral confirmed", EventType: rules.EventReferralConfirmed, Points: 20},
		{Name: "Referral verified", EventType: rules.EventReferralVerified, Points: 10},
		{Name: "Referral completed", EventType: rules.EventReferralCompleted, Points: 50},
		{
			Name:      "Power referrer bonus",
			EventType: rules.EventReferralConfirmed,
			Points:    15,
			Priority:  &bonusPriority,
			Condition: "subscriber.referral_count >= 3",
		},
	}

	for _, req := range requests {
		rule, err := s.services.Rules.CreateRule(ctx, waitlistID, req)
		if err != nil {
			return fmt.Errorf("failed to create rule %s: %w", req.Name, err)
		}
		fmt.Printf("    ✅ Created rule: %s (%s %+d)\n", rule.Name, rule.EventType, rule.Points)
	}
	return nil
}

// SeedCampaign creates and activates a campaign with two rewards
func (s *Seeder) SeedCampaign(ctx context.Context, waitlistID uuid.UUID) (*campaigns.ReferralCampaign, error) {
	fmt.Println("  🏆 Seeding campaign...")

	campaign, err := s.services.Campaigns.CreateCampaign(ctx, waitlistID, campaigns.CreateCampaignRequest{
		Name:        "Launch week",
		Description: "Refer friends to move up the list",
	})
	if err != nil {
		return nil, err
	}

	rewards := []campaigns.CreateRewardRequest{
		{Name: "Founding member badge", Kind: campaigns.RewardKindTopPosition, Threshold: 10},
		{Name: "Free first month", Kind: campaigns.RewardKindPointsThreshold, Threshold: 100},
	}
	for _, req := range rewards {
		if _, err := s.services.Campaigns.AddReward(ctx, waitlistID, campaign.ID, req); err != nil {
			return nil, fmt.Errorf("failed to add reward %s: %w", req.Name, err)
		}
	}

	campaign, err = s.services.Campaigns.ActivateCampaign(ctx, waitlistID, campaign.ID)
	if err != nil {
		return nil, err
	}
	fmt.Printf("    ✅ Activated campaign: %s\n", campaign.Name)
	return campaign, nil
}

// SeedSubscribers signs up a referral tree and walks some referrals through
// their lifecycle
func (s *Seeder) SeedSubscribers(ctx context.Context, list *waitlist.Waitlist) error {
	fmt.Println("  👥 Seeding subscribers...")

	ambassador, err := s.signup(ctx, list.Slug, "ambassador@example.com", "")
	if err != nil {
		return err
	}
	if _, err := s.services.Waitlists.VerifySubscriber(ctx, list.ID, ambassador.ID); err != nil {
		return err
	}

	for i := 1; i <= 12; i++ {
		referrer := ambassador
		if i > 8 {
			referrer = nil
		}

		code := ""
		if referrer != nil {
			code = referrer.ReferralCode
		}
		friend, err := s.signup(ctx, list.Slug, fmt.Sprintf("friend%02d@example.com", i), code)
		if err != nil {
			return err
		}

		if i%2 == 0 {
			if _, err := s.services.Waitlists.VerifySubscriber(ctx, list.ID, friend.ID); err != nil {
				return err
			}
		}
	}

	confirmed, err := s.services.Referrals.ListReferrals(ctx, list.ID, referrals.StatusConfirmed)
	if err != nil {
		return err
	}
	for i, referral := range confirmed {
		target := referrals.StatusVerified
		if i == 0 {
			target = referrals.StatusRevoked
		}
		if _, err := s.services.Referrals.Transition(ctx, list.ID, referral.ID, target); err != nil {
			return fmt.Errorf("failed to move referral %s to %s: %w", referral.ID, target, err)
		}
	}
	fmt.Printf("    ✅ Walked %d confirmed referrals forward\n", len(confirmed))
	return nil
}

func (s *Seeder) signup(ctx context.Context, slug, email, code string) (*waitlist.Subscriber, error) {
	resp, err := s.services.Waitlists.Signup(ctx, slug, waitlist.SignupRequest{Email: email, ReferralCode: code})
	if err != nil {
		return nil, fmt.Errorf("failed to sign up %s: %w", email, err)
	}
	fmt.Printf("    ✅ Signed up: %s (code %s, referred=%t)\n", email, resp.Subscriber.ReferralCode, resp.Referred)
	return resp.Subscriber, nil
}

// devToken signs an owner access token accepted by the admin API
func devToken(secret string) (string, error) {
	claims := jwt.MapClaims{
		"type":            "access",
		"user_id":         "seed-owner",
		"organization_id": seedOrganizationID,
		"role":            "owner",
		"exp":             time.Now().Add(24 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
