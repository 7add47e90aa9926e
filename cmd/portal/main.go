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

	"github.com/investly/adminportal/internal/app"
	"github.com/investly/adminportal/internal/audit"
	audithttp "github.com/investly/adminportal/internal/audit/http"
	"github.com/investly/adminportal/internal/observability"
	"github.com/investly/adminportal/internal/platform/cache"
	"github.com/investly/adminportal/internal/rbac"
	"github.com/investly/adminportal/internal/roles"
	"github.com/investly/adminportal/internal/shared"
	"github.com/investly/adminportal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	catalog, err := app.OpenCatalog(ctx, cfg, logger, app.CatalogOptions{})
	if err != nil {
		logger.Error("open role catalog", slog.Any("error", err))
		os.Exit(1)
	}
	defer catalog.Close()

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{
		Resolver: catalog.Service,
		Logger:   logger,
		Header:   cfg.AdminRoleHeader,
		Recorder: metrics,
	}

	var jobHandler *jobs.Handler
	if cfg.RedisAddr != "" {
		inspector := asynq.NewInspector(cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}.AsynqOpt())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	var auditHandler *audithttp.Handler
	if catalog.Pool != nil {
		if err := shared.NewAuditLogger(catalog.Pool).EnsureSchema(ctx); err != nil {
			logger.Error("ensure audit schema", slog.Any("error", err))
			os.Exit(1)
		}
		auditHandler = audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(catalog.Pool)), rbacMiddleware)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RolesHandler:       roles.NewHandler(logger, catalog.Service, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(catalog.Registry, rbacMiddleware),
		JobHandler:         jobHandler,
		AuditHandler:       auditHandler,
		Metrics:            metrics,
		Ready: func(r *http.Request) error {
			return catalog.Ping(r.Context())
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("store", cfg.StoreDriver),
			slog.Int("pages", catalog.Registry.Len()),
			slog.Bool("cache", catalog.Redis != nil),
			slog.Bool("audit", catalog.Jobs != nil))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
