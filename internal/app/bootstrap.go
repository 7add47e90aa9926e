package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/investly/adminportal/internal/pages"
	"github.com/investly/adminportal/internal/platform/cache"
	"github.com/investly/adminportal/internal/platform/db"
	"github.com/investly/adminportal/internal/roles"
	"github.com/investly/adminportal/jobs"
)

// Catalog bundles the role service with the connections behind it.
type Catalog struct {
	Registry *pages.Registry
	Service  *roles.Service
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Jobs     *jobs.Client

	logger *slog.Logger
}

// CatalogOptions tweaks OpenCatalog for callers that do not serve traffic.
type CatalogOptions struct {
	// SkipAudit disables enqueueing role changes even when AUDIT_ENABLED is set.
	SkipAudit bool
}

// OpenCatalog loads the page registry, connects the configured store and
// cache, and initialises the role catalog.
func OpenCatalog(ctx context.Context, cfg *Config, logger *slog.Logger, opts CatalogOptions) (*Catalog, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{logger: logger}

	registry, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}
	c.Registry = registry

	seeds := roles.DefaultSeeds()
	if cfg.RoleSeedsFile != "" {
		if seeds, err = roles.LoadSeeds(cfg.RoleSeedsFile, registry); err != nil {
			return nil, err
		}
	} else if err := roles.ValidateSeeds(seeds, registry); err != nil {
		return nil, fmt.Errorf("app: built-in seeds do not fit %s: %w", registryName(cfg), err)
	}

	var repo roles.RepositoryPort
	switch cfg.StoreDriver {
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		c.Pool = pool
		pgRepo := roles.NewRepository(pool)
		if err := pgRepo.Migrate(ctx); err != nil {
			c.Close()
			return nil, err
		}
		repo = pgRepo
	default:
		repo = roles.NewMemoryRepository()
	}

	svcCfg := roles.ServiceConfig{Logger: logger, Seeds: seeds}
	if cfg.RedisAddr != "" {
		redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		client, err := cache.New(ctx, redisOpts)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Redis = client
		svcCfg.Cache = roles.NewCache(client, cfg.RoleCacheTTL)
		if cfg.AuditEnabled && !opts.SkipAudit {
			c.Jobs = jobs.NewClient(redisOpts.AsynqOpt())
			svcCfg.Audit = c.Jobs
		}
	}

	c.Service = roles.NewService(repo, registry, svcCfg)
	if err := c.Service.Init(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("app: init role catalog: %w", err)
	}
	return c, nil
}

// Ping checks the backing connections.
func (c *Catalog) Ping(ctx context.Context) error {
	if c.Pool != nil {
		if err := c.Pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases every opened connection.
func (c *Catalog) Close() {
	if c == nil {
		return
	}
	if c.Jobs != nil {
		if err := c.Jobs.Close(); err != nil {
			c.logger.Warn("job client close", slog.Any("error", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

func registryName(cfg *Config) string {
	if cfg.PagesFile != "" {
		return cfg.PagesFile
	}
	return "the embedded page registry"
}

func loadRegistry(cfg *Config) (*pages.Registry, error) {
	if cfg.PagesFile != "" {
		return pages.Load(cfg.PagesFile)
	}
	return pages.Default()
}
