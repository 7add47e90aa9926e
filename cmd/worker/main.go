package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/investly/adminportal/internal/app"
	"github.com/investly/adminportal/internal/observability"
	"github.com/investly/adminportal/internal/platform/cache"
	"github.com/investly/adminportal/internal/shared"
	"github.com/investly/adminportal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	if cfg.RedisAddr == "" {
		logger.Error("worker requires REDIS_ADDR")
		os.Exit(1)
	}

	// The worker only consumes role changes, so it never enqueues its own.
	catalog, err := app.OpenCatalog(ctx, cfg, logger, app.CatalogOptions{SkipAudit: true})
	if err != nil {
		logger.Error("open role catalog", slog.Any("error", err))
		os.Exit(1)
	}
	defer catalog.Close()

	metrics := observability.NewMetrics()

	auditJob := &jobs.RoleAuditJob{Logger: logger, Metrics: metrics.Jobs()}
	if catalog.Pool != nil {
		auditLogger := shared.NewAuditLogger(catalog.Pool)
		if err := auditLogger.EnsureSchema(ctx); err != nil {
			logger.Error("ensure audit schema", slog.Any("error", err))
			os.Exit(1)
		}
		auditJob.Writer = auditLogger
	} else {
		logger.Warn("memory store configured, role audit events are logged only")
	}
	warmJob := &jobs.CacheWarmJob{Warmer: catalog.Service, Logger: logger, Metrics: metrics.Jobs()}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}.AsynqOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRoleAudit, Handler: auditJob.Handle},
			{Type: jobs.TaskCacheWarm, Handler: warmJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.CacheWarmSpec, Task: jobs.NewCacheWarmTask(), Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return worker.Run(groupCtx)
	})
	group.Go(func() error {
		logger.Info("serving worker metrics", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
