package ranking

import (
	"context"
	"sync"
	"time"

	"waitly/pkg/logger"
)

// JobProcessor periodically recomputes every waitlist so positions converge
// even when a post-commit recompute failed
type JobProcessor struct {
	service Service
	config  *JobConfig
	log     *logger.Logger

	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	lastRun time.Time
	lastOK  int
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	SweepInterval time.Duration
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		SweepInterval: 10 * time.Minute,
	}
}

// NewJobProcessor creates a new job processor
func NewJobProcessor(service Service, config *JobConfig) *JobProcessor {
	if config == nil {
		config = DefaultJobConfig()
	}

	return &JobProcessor{
		service: service,
		config:  config,
		log:     logger.GetDefault(),
		done:    make(chan struct{}),
	}
}

// Start starts the position sweeper
func (jp *JobProcessor) Start(ctx context.Context) {
	jp.log.Info("Starting ranking background jobs", "sweep_interval", jp.config.SweepInterval.String())
	go jp.startSweeper(ctx)
}

// Stop stops all background jobs
func (jp *JobProcessor) Stop() {
	jp.stopOnce.Do(func() {
		close(jp.done)
		jp.log.Info("Ranking background jobs stopped")
	})
}

func (jp *JobProcessor) startSweeper(ctx context.Context) {
	ticker := time.NewTicker(jp.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			jp.sweep(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (jp *JobProcessor) sweep(ctx context.Context) {
	recomputed, err := jp.service.RecomputeAll(ctx)
	if err != nil {
		jp.log.ErrorWithContext(ctx, "Position sweep failed", err, nil)
	}

	jp.mu.Lock()
	jp.lastRun = time.Now().UTC()
	jp.lastOK = recomputed
	jp.mu.Unlock()

	if recomputed > 0 {
		jp.log.Debug("Recomputed waitlist positions", "waitlists", recomputed)
	}
}

// GetJobStatus returns the status of background jobs
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	jp.mu.Lock()
	defer jp.mu.Unlock()

	status := map[string]interface{}{
		"sweep_interval":  jp.config.SweepInterval.String(),
		"last_recomputed": jp.lastOK,
		"status":          "running",
	}
	if !jp.lastRun.IsZero() {
		status["last_run"] = jp.lastRun.Format(time.RFC3339)
	}
	return status
}
