package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/investly/adminportal/internal/jobs"
)

// Warmer preloads role matrices into the cache.
type Warmer interface {
	WarmCache(ctx context.Context) (int, error)
}

// CacheWarmJob refreshes the role matrix cache on a schedule.
type CacheWarmJob struct {
	Warmer  Warmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskCacheWarm tasks.
func (j *CacheWarmJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Warmer == nil {
		return errors.New("cache warm: handler not configured")
	}
	tracker := j.Metrics.Track(TaskCacheWarm)
	defer func() { err = tracker.End(err) }()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	n, err := j.Warmer.WarmCache(ctx)
	if err != nil {
		logger.Error("warm role cache", slog.Int("warmed", n), slog.Any("error", err))
		return err
	}
	j.Metrics.SetWarmedRoles(n)
	logger.Info("role cache warmed", slog.Int("roles", n))
	return nil
}
