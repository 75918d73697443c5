package scoring

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"waitly/internal/shared/constants"
	"waitly/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// releaseLockScript deletes the lock only while this instance still owns it
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// WaitlistLister enumerates the waitlists the reconciler sweeps
type WaitlistLister interface {
	ListWaitlistIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ReconcilerConfig contains configuration for the reconciliation job
type ReconcilerConfig struct {
	Schedule string
	LockTTL  time.Duration
	Timeout  time.Duration
}

// DefaultReconcilerConfig returns default reconciliation settings
func DefaultReconcilerConfig() *ReconcilerConfig {
	return &ReconcilerConfig{
		Schedule: "0 4 * * *", // Daily at 4 AM UTC
		LockTTL:  constants.TTL_LOCK,
		Timeout:  5 * time.Minute,
	}
}

// Reconciler periodically replays every waitlist's ledger and reports drift.
// A Redis lock keeps concurrent instances from running it twice.
type Reconciler struct {
	cron       *cron.Cron
	service    Service
	waitlists  WaitlistLister
	redis      *redis.Client
	config     *ReconcilerConfig
	instanceID string
	log        *logger.Logger
}

// NewReconciler creates a reconciler. redisClient may be nil, in which case
// no lock is taken.
func NewReconciler(service Service, waitlists WaitlistLister, redisClient *redis.Client, config *ReconcilerConfig) *Reconciler {
	if config == nil {
		config = DefaultReconcilerConfig()
	}

	instanceID, err := os.Hostname()
	if err != nil || instanceID == "" {
		instanceID = "instance"
	}
	instanceID = fmt.Sprintf("%s-%s", instanceID, uuid.NewString())

	return &Reconciler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		service:    service,
		waitlists:  waitlists,
		redis:      redisClient,
		config:     config,
		instanceID: instanceID,
		log:        logger.GetDefault(),
	}
}

// Start registers the job and starts the cron scheduler
func (r *Reconciler) Start() error {
	if _, err := r.cron.AddFunc(r.config.Schedule, r.run); err != nil {
		return fmt.Errorf("failed to register reconciliation job: %w", err)
	}
	r.cron.Start()
	r.log.Info("Score reconciliation scheduled", "schedule", r.config.Schedule, "instance", r.instanceID)
	return nil
}

// Stop waits for a running job to finish
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("Score reconciliation stopped")
}

func (r *Reconciler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.Timeout)
	defer cancel()

	if _, err := r.RunOnce(ctx); err != nil {
		r.log.ErrorWithContext(ctx, "Score reconciliation failed", err, nil)
	}
}

// RunOnce reconciles every waitlist and returns the reports that found
// drift. It returns immediately when another instance holds the lock.
func (r *Reconciler) RunOnce(ctx context.Context) ([]*ReconciliationReport, error) {
	acquired, err := r.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		r.log.DebugWithContext(ctx, "Reconciliation already running on another instance, skipping", nil)
		return nil, nil
	}
	defer r.releaseLock(context.WithoutCancel(ctx))

	waitlistIDs, err := r.waitlists.ListWaitlistIDs(ctx)
	if err != nil {
		return nil, err
	}

	var drifted []*ReconciliationReport
	var errs []error
	for _, waitlistID := range waitlistIDs {
		report, err := r.service.Reconcile(ctx, waitlistID)
		if err != nil {
			errs = append(errs, fmt.Errorf("waitlist %s: %w", waitlistID, err))
			continue
		}
		if len(report.Drift) > 0 {
			drifted = append(drifted, report)
			r.log.Warn("Score drift detected",
				"waitlist_id", waitlistID.String(),
				"subscribers", len(report.Drift),
			)
		}
	}

	r.log.InfoWithContext(ctx, "Score reconciliation complete", map[string]interface{}{
		"waitlists": len(waitlistIDs),
		"drifted":   len(drifted),
	})
	return drifted, errors.Join(errs...)
}

func (r *Reconciler) acquireLock(ctx context.Context) (bool, error) {
	if r.redis == nil {
		return true, nil
	}
	acquired, err := r.redis.SetNX(ctx, constants.CACHE_KEY_RECONCILE_LOCK, r.instanceID, r.config.LockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire reconciliation lock: %w", err)
	}
	return acquired, nil
}

func (r *Reconciler) releaseLock(ctx context.Context) {
	if r.redis == nil {
		return
	}
	if err := releaseLockScript.Run(ctx, r.redis, []string{constants.CACHE_KEY_RECONCILE_LOCK}, r.instanceID).Err(); err != nil {
		r.log.ErrorWithContext(ctx, "Failed to release reconciliation lock", err, nil)
	}
}
