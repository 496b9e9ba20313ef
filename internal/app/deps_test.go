package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xyzen/backend/internal/apperr"
	"github.com/xyzen/backend/internal/config"
	"github.com/xyzen/backend/internal/gateway"
	"github.com/xyzen/backend/internal/videos"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Ping(context.Context) error { return nil }

func (fakePool) Close() {}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		ObjectStore:     config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"},
		FeedLimit:       10,
		ViewQueueSize:   8,
		ViewWorkers:     1,
	}
}

func TestBuildDependencies(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	deps, cleanup, err := buildDependencies(context.Background(), fakePool{}, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected cleanup function")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = cleanup(ctx)
	}()

	h := deps.handlers
	if h.Users == nil || h.Sessions == nil || h.Profiles == nil || h.Videos == nil {
		t.Fatalf("expected core handler dependencies, got %+v", h)
	}
	if h.Uploader == nil || h.Likes == nil || h.Playlists == nil {
		t.Fatal("expected service dependencies to be configured")
	}
	if h.Metrics == nil || h.AuthLimiter == nil || h.LikeLimiter == nil {
		t.Fatal("expected metrics and rate limiters to be configured")
	}
	if h.FeedLimit != 10 {
		t.Fatalf("expected feed limit 10 got %d", h.FeedLimit)
	}
	if deps.tokens == nil {
		t.Fatal("expected token manager")
	}
}

func TestBuildDependenciesRequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = ""
	if _, _, err := buildDependencies(context.Background(), fakePool{}, cfg); err == nil {
		t.Fatal("expected missing secret to be rejected")
	}
}

func TestBuildComponentsWithoutObjectStore(t *testing.T) {
	cfg := testConfig()
	cfg.ObjectStore = config.ObjectStoreConfig{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c, cleanup, err := buildComponents(context.Background(), gateway.NewMemory(), cfg, logger)
	if err != nil {
		t.Fatalf("build components: %v", err)
	}
	defer func() { _ = cleanup(context.Background()) }()

	_, err = c.uploader.Upload(context.Background(), videos.UploadInput{OwnerID: "u1", Media: eofReader{}})
	if !errors.Is(err, videos.ErrAssetStorageUnavailable) {
		t.Fatalf("expected uploads to be disabled, got %v", err)
	}
	if apperr.KindOf(err) != apperr.KindNetwork {
		t.Fatalf("expected network kind got %v", apperr.KindOf(err))
	}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
