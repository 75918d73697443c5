package constants

import (
	"fmt"
	"time"
)

// Redis keys and TTLs used across waitly.
// Pattern: waitly:{module}:{operation}:{identifier}:{params?}

// ================== CACHE TTL DURATIONS ==================

const (
	TTL_IMMUTABLE = 24 * time.Hour   // snapshots never change once written
	TTL_LISTING   = 5 * time.Minute  // snapshot listings grow on every create
	TTL_LOCK      = 10 * time.Minute // background job locks
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "waitly"
)

// ================== LEADERBOARD MODULE ==================

const (
	CACHE_KEY_SNAPSHOT_DETAIL = CACHE_PREFIX + ":leaderboard:snapshot:uuid:"  // + snapshot-id
	CACHE_KEY_SNAPSHOT_LIST   = CACHE_PREFIX + ":leaderboard:snapshots:list:" // + waitlist-id
	CACHE_KEY_SNAPSHOT_FINAL  = CACHE_PREFIX + ":leaderboard:snapshot:final:" // + campaign-id
)

const (
	TTL_SNAPSHOT_DETAIL = TTL_IMMUTABLE
	TTL_SNAPSHOT_FINAL  = TTL_IMMUTABLE
	TTL_SNAPSHOT_LIST   = TTL_LISTING
)

// ================== SCORING MODULE ==================

const (
	CACHE_KEY_RECONCILE_LOCK = CACHE_PREFIX + ":scoring:reconcile:lock"
)

// ================== RATE LIMITING ==================

const (
	CACHE_KEY_RATE_LIMIT = CACHE_PREFIX + ":ratelimit:" // + limit-type:client-key
)

// ================== HELPER FUNCTIONS ==================

func BuildSnapshotDetailKey(snapshotID string) string {
	return CACHE_KEY_SNAPSHOT_DETAIL + snapshotID
}

func BuildSnapshotListKey(waitlistID string) string {
	return CACHE_KEY_SNAPSHOT_LIST + waitlistID
}

func BuildSnapshotFinalKey(campaignID string) string {
	return CACHE_KEY_SNAPSHOT_FINAL + campaignID
}

// BuildRateLimitKey -> "waitly:ratelimit:public:ip:203.0.113.7"
func BuildRateLimitKey(limitType, clientKey string) string {
	return fmt.Sprintf("%s%s:%s", CACHE_KEY_RATE_LIMIT, limitType, clientKey)
}
