package idempotency

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// CleanupJob periodically deletes expired records from stores that do not expire them natively.
type CleanupJob struct {
	store     Store
	batchSize int
	timeout   time.Duration
	clock     func() time.Time
	logger    *zap.Logger
}

func NewCleanupJob(store Store, batchSize int, logger *zap.Logger) *CleanupJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupJob{
		store:     store,
		batchSize: batchSize,
		timeout:   30 * time.Second,
		clock:     time.Now,
		logger:    logger,
	}
}

// Run performs one cleanup pass and returns how many records were removed.
func (j *CleanupJob) Run(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	removed, err := j.store.CleanupExpired(ctx, j.clock().UTC(), j.batchSize)
	if err != nil {
		j.logger.Warn("idempotency cleanup failed", zap.Error(err))
		return removed
	}
	if removed > 0 {
		j.logger.Info("idempotency cleanup", zap.Int("removed", removed))
	}
	return removed
}

// Schedule registers the job on scheduler at the given interval.
func (j *CleanupJob) Schedule(scheduler gocron.Scheduler, interval time.Duration) (gocron.Job, error) {
	return scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { j.Run(context.Background()) }),
		gocron.WithName("idempotency-cleanup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
}
