package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ScoreEventsApplied counts committed score changes by event type and source
	ScoreEventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitly_score_events_applied_total",
			Help: "Total number of committed score events by event type and source",
		},
		[]string{"event_type", "source"},
	)

	// ManualAdjustments counts operator point adjustments
	ManualAdjustments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waitly_manual_adjustments_total",
			Help: "Total number of manual point adjustments",
		},
	)

	// ReferralTransitions counts referral status transitions by target status and outcome
	ReferralTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitly_referral_transitions_total",
			Help: "Total number of referral transitions by status and outcome",
		},
		[]string{"status", "outcome"},
	)

	// RankingRecomputeDuration tracks how long a full position recompute takes
	RankingRecomputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waitly_ranking_recompute_seconds",
			Help:    "Latency of leaderboard position recomputes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// SnapshotsCreated counts leaderboard snapshots by kind
	SnapshotsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitly_snapshots_created_total",
			Help: "Total number of leaderboard snapshots created",
		},
		[]string{"kind"},
	)

	// ScoreDrift tracks subscribers whose stored score disagrees with the ledger
	ScoreDrift = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waitly_score_drift_subscribers",
			Help: "Subscribers whose score differs from the replayed ledger at the last reconciliation",
		},
		[]string{"waitlist_id"},
	)

	// NotificationsPublished counts outbound notifications by type and status
	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitly_notifications_published_total",
			Help: "Total number of published notifications by type and status",
		},
		[]string{"type", "status"},
	)
)

// Outcome returns the label used for success/error outcomes
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Handler exposes the Prometheus registry as a gin handler
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
