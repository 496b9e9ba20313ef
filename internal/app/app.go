// Package app wires configuration, storage and transport into the xyzen
// command line.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xyzen/backend/internal/config"
	"github.com/xyzen/backend/internal/db"
	"github.com/xyzen/backend/internal/handlers"
	"github.com/xyzen/backend/internal/httpserver"
	"github.com/xyzen/backend/internal/middleware"
)

// Run bootstraps the xyzen backend application.
func Run(ctx context.Context, args []string) error {
	root := newRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "xyzen",
		Short:         "Short-form video feed backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:       "migrate [up|status]",
			Short:     "Apply or list database migrations",
			Args:      cobra.MaximumNArgs(1),
			ValidArgs: []string{"up", "status"},
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrations(cmd.Context(), cmd.OutOrStdout(), args)
			},
		},
		&cobra.Command{
			Use:   "seed <name>",
			Short: "Apply a SQL seed file such as dev",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSeed(cmd.Context(), cmd.OutOrStdout(), args)
			},
		},
		newBrowseCommand(),
	)

	return root
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true, Level: lvl}))
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("XYZEN_JWT_SECRET must be set to serve the API")
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, cleanup, err := buildDependencies(ctx, pool, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			logger.Error("cleanup dependencies", "error", err)
		}
	}()

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps.handlers)

	handler := middleware.Authenticate(deps.tokens)(mux)
	handler = middleware.RequestLogger(logger, deps.components.metrics)(handler)

	srv := httpserver.New(cfg.AppPort, handler, logger)
	logger.Info("starting http server", "addr", srv.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		purgeSessions(gctx, deps.tokens, sessionPurgeInterval, logger)
		return nil
	})
	return g.Wait()
}

const sessionPurgeInterval = time.Hour

type sessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// purgeSessions drops expired refresh tokens every interval until ctx ends.
func purgeSessions(ctx context.Context, purger sessionPurger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := purger.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge expired sessions", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("purged expired sessions", "count", removed)
			}
		}
	}
}
