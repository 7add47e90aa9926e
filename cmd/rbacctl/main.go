// Command rbacctl inspects and adjusts admin portal roles from the shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/investly/adminportal/cmd/rbacctl/cli"
	"github.com/investly/adminportal/internal/app"
	"github.com/investly/adminportal/internal/platform/cache"
	"github.com/investly/adminportal/internal/roles"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.Deps{
		Open:     openCatalog,
		OpenJobs: openJobs,
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrDenied) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func openCatalog(ctx context.Context, envFile string) (*roles.Service, func(), error) {
	cfg, err := app.LoadConfig(envFile)
	if err != nil {
		return nil, nil, err
	}
	// Keep stdout clean for table and JSON output.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cat, err := app.OpenCatalog(ctx, cfg, logger, app.CatalogOptions{})
	if err != nil {
		return nil, nil, err
	}
	return cat.Service, cat.Close, nil
}

func openJobs(envFile string) (*cli.JobsCLI, error) {
	cfg, err := app.LoadConfig(envFile)
	if err != nil {
		return nil, err
	}
	if cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ADDR must be set for job commands")
	}
	opts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	return cli.NewJobsCLI(opts.AsynqOpt()), nil
}
