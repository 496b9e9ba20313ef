package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/xyzen/backend/internal/auth"
	"github.com/xyzen/backend/internal/config"
	"github.com/xyzen/backend/internal/db"
	"github.com/xyzen/backend/internal/events"
	"github.com/xyzen/backend/internal/gateway"
	"github.com/xyzen/backend/internal/handlers"
	"github.com/xyzen/backend/internal/metrics"
	"github.com/xyzen/backend/internal/middleware"
	"github.com/xyzen/backend/internal/playlists"
	"github.com/xyzen/backend/internal/profiles"
	"github.com/xyzen/backend/internal/repositories"
	"github.com/xyzen/backend/internal/social"
	"github.com/xyzen/backend/internal/storage"
	"github.com/xyzen/backend/internal/videos"
)

type cleanupFunc func(ctx context.Context) error

// components are the services shared by the API and headless sessions.
type components struct {
	gateway   gateway.Gateway
	profiles  profiles.Lookup
	likes     *social.Service
	playlists *playlists.Service
	views     *videos.ViewRecorder
	uploader  *videos.Uploader
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	checks    []handlers.HealthCheck
}

// dependencies is everything serve needs on top of the components.
type dependencies struct {
	handlers   handlers.Dependencies
	tokens     *auth.Manager
	components *components
}

// buildComponents wires the services around gw. Optional infrastructure
// (Redis, AMQP, object storage) is only contacted when configured.
func buildComponents(ctx context.Context, gw gateway.Gateway, cfg config.Config, logger *slog.Logger) (*components, cleanupFunc, error) {
	var closers []func(context.Context) error
	cleanup := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i](ctx))
		}
		return errors.Join(errs...)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Warn("event publishing disabled", "error", err)
		} else {
			publisher = amqpPublisher
			closers = append(closers, func(context.Context) error { return amqpPublisher.Close() })
		}
	}

	var checks []handlers.HealthCheck

	var (
		lookup      profiles.Lookup = gw
		invalidator videos.ProfileInvalidator
		locker      social.Locker = social.NoopLocker{}
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closers = append(closers, func(context.Context) error { return client.Close() })
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})

		cache := profiles.NewRedisUserCache(client, gw, cfg.ProfileCacheTTL, logger)
		lookup = cache
		invalidator = cache
		if cfg.LikeLock {
			locker = social.NewRedsyncLocker(client, cfg.LikeLockExpiry)
		}
	}

	var assets videos.AssetStorage
	if cfg.ObjectStore.Enabled() {
		s3Storage, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			logger.Warn("uploads disabled", "error", err)
		} else {
			assets = s3Storage
		}
	}

	views := videos.NewViewRecorder(gw, publisher, m, videos.ViewRecorderConfig{
		QueueSize: cfg.ViewQueueSize,
		Workers:   cfg.ViewWorkers,
	}, logger)
	closers = append(closers, views.Shutdown)

	c := &components{
		gateway:  gw,
		profiles: lookup,
		likes: social.NewService(gw, social.Options{
			Locker:    locker,
			Publisher: publisher,
			Metrics:   m,
		}),
		playlists: playlists.NewService(gw, m),
		views:     views,
		uploader:  videos.NewUploader(assets, gw, invalidator, publisher, logger),
		registry:  registry,
		metrics:   m,
		checks:    checks,
	}
	return c, cleanup, nil
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (*dependencies, cleanupFunc, error) {
	if cfg.JWTSecret == "" {
		return nil, nil, fmt.Errorf("jwt secret is required")
	}

	logger := slog.Default()
	gw := repositories.NewPostgresGateway(pool)

	c, cleanup, err := buildComponents(ctx, gw, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	tokens := auth.NewManager([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL, repositories.NewPostgresSessionStore(pool))

	deps := &dependencies{
		tokens:     tokens,
		components: c,
		handlers: handlers.Dependencies{
			Users:       gw,
			Sessions:    tokens,
			Profiles:    c.profiles,
			Videos:      gw,
			Uploader:    c.uploader,
			Likes:       c.likes,
			Playlists:   c.playlists,
			AuthLimiter: middleware.NewKeyedLimiter(middleware.Limits{Requests: 10, Window: time.Minute, Burst: 5}),
			LikeLimiter: middleware.NewKeyedLimiter(middleware.Limits{Requests: 120, Window: time.Minute, Burst: 20}),
			Metrics:     metrics.Handler(c.registry),
			Health:      append([]handlers.HealthCheck{{Name: "database", Check: pool.Ping}}, c.checks...),
			FeedLimit:   cfg.FeedLimit,
		},
	}
	return deps, cleanup, nil
}
