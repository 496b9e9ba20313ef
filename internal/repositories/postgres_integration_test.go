package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xyzen/backend/internal/auth"
	"github.com/xyzen/backend/internal/gateway"
	"github.com/xyzen/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresGateway_Users(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	gw := NewPostgresGateway(testPool)
	user := createTestUser(t, gw, "alice@example.com")

	dup := models.User{ID: uuid.NewString(), Email: user.Email, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := gw.CreateUser(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate email, got %v", err)
	}

	fetched, err := gw.FindUserByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if fetched.ID != user.ID || fetched.PasswordHash != user.PasswordHash {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	for i := 0; i < 2; i++ {
		if err := gw.AppendUserVideo(ctx, user.ID, "video-1"); err != nil {
			t.Fatalf("append video: %v", err)
		}
	}
	fetched, err = gw.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(fetched.VideoIDs) != 1 || fetched.VideoIDs[0] != "video-1" {
		t.Fatalf("expected a single appended video, got %v", fetched.VideoIDs)
	}

	if _, err := gw.GetUser(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
	if err := gw.AppendUserVideo(ctx, uuid.NewString(), "video-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound appending to unknown user, got %v", err)
	}
}

func TestPostgresGateway_VideosAndCounters(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	gw := NewPostgresGateway(testPool)
	alice := createTestUser(t, gw, "alice@example.com")
	bob := createTestUser(t, gw, "bob@example.com")

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	older := createTestVideo(t, gw, alice.ID, base)
	newer := createTestVideo(t, gw, bob.ID, base.Add(time.Minute))
	newest := createTestVideo(t, gw, alice.ID, base.Add(2*time.Minute))

	all, err := gw.ListVideos(ctx, gateway.VideoQuery{})
	if err != nil {
		t.Fatalf("list videos: %v", err)
	}
	if len(all) != 3 || all[0].ID != newest.ID || all[1].ID != newer.ID || all[2].ID != older.ID {
		t.Fatalf("unexpected video order: %+v", all)
	}

	limited, err := gw.ListVideos(ctx, gateway.VideoQuery{OwnerID: alice.ID, Limit: 1})
	if err != nil {
		t.Fatalf("list owner videos: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != newest.ID {
		t.Fatalf("unexpected owner videos: %+v", limited)
	}

	batch, err := gw.VideosByIDs(ctx, []string{older.ID, uuid.NewString(), newer.ID})
	if err != nil {
		t.Fatalf("videos by ids: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected missing ids to be omitted, got %d videos", len(batch))
	}

	count, err := gw.IncrementVideoCounter(ctx, older.ID, gateway.CounterViews, 3)
	if err != nil {
		t.Fatalf("increment views: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected view count 3 got %d", count)
	}
	count, err = gw.IncrementVideoCounter(ctx, older.ID, gateway.CounterLikes, -1)
	if err != nil {
		t.Fatalf("decrement likes: %v", err)
	}
	if count != -1 {
		t.Fatalf("expected like count -1 got %d", count)
	}
	if _, err := gw.IncrementVideoCounter(ctx, uuid.NewString(), gateway.CounterViews, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound incrementing unknown video, got %v", err)
	}
	if _, err := gw.IncrementVideoCounter(ctx, older.ID, gateway.CounterField("shares"), 1); err == nil {
		t.Fatal("expected unknown counter to be rejected")
	}
}

func TestPostgresGateway_Likes(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	gw := NewPostgresGateway(testPool)
	user := createTestUser(t, gw, "viewer@example.com")
	video := createTestVideo(t, gw, user.ID, time.Now().UTC())

	like := models.LikeRecord{VideoID: video.ID, UserID: user.ID, CreatedAt: time.Now().UTC()}
	if err := gw.CreateLike(ctx, like); err != nil {
		t.Fatalf("create like: %v", err)
	}
	if err := gw.CreateLike(ctx, like); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate like, got %v", err)
	}

	exists, err := gw.LikeExists(ctx, video.ID, user.ID)
	if err != nil || !exists {
		t.Fatalf("expected like to exist, got %v %v", exists, err)
	}

	if err := gw.DeleteLike(ctx, video.ID, user.ID); err != nil {
		t.Fatalf("delete like: %v", err)
	}
	if err := gw.DeleteLike(ctx, video.ID, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}

	missing := models.LikeRecord{VideoID: uuid.NewString(), UserID: user.ID, CreatedAt: time.Now().UTC()}
	if err := gw.CreateLike(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound liking unknown video, got %v", err)
	}
}

func TestPostgresGateway_Playlists(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	gw := NewPostgresGateway(testPool)
	owner := createTestUser(t, gw, "owner@example.com")

	base := time.Now().UTC().Add(-time.Hour)
	public := models.Playlist{ID: uuid.NewString(), OwnerID: owner.ID, Name: "Public", Visibility: models.VisibilityPublic, CreatedAt: base}
	private := models.Playlist{ID: uuid.NewString(), OwnerID: owner.ID, Name: "Private", Visibility: models.VisibilityPrivate, VideoIDs: []string{"a"}, CreatedAt: base.Add(time.Minute)}
	for _, p := range []models.Playlist{public, private} {
		if err := gw.CreatePlaylist(ctx, p); err != nil {
			t.Fatalf("create playlist %s: %v", p.Name, err)
		}
	}

	all, err := gw.ListPlaylists(ctx, gateway.PlaylistQuery{OwnerID: owner.ID})
	if err != nil {
		t.Fatalf("list playlists: %v", err)
	}
	if len(all) != 2 || all[0].ID != private.ID {
		t.Fatalf("unexpected playlists: %+v", all)
	}
	visible, err := gw.ListPlaylists(ctx, gateway.PlaylistQuery{OwnerID: owner.ID, PublicOnly: true})
	if err != nil {
		t.Fatalf("list public playlists: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != public.ID {
		t.Fatalf("expected only the public playlist, got %+v", visible)
	}

	name := "Renamed"
	visibility := models.VisibilityPrivate
	if err := gw.UpdatePlaylist(ctx, public.ID, gateway.PlaylistUpdate{Name: &name, Visibility: &visibility}); err != nil {
		t.Fatalf("update playlist: %v", err)
	}
	if err := gw.SetPlaylistVideos(ctx, public.ID, []string{"c", "a", "b"}); err != nil {
		t.Fatalf("set playlist videos: %v", err)
	}

	fetched, err := gw.GetPlaylist(ctx, public.ID)
	if err != nil {
		t.Fatalf("get playlist: %v", err)
	}
	if fetched.Name != name || fetched.Visibility != visibility || fetched.Description != "" {
		t.Fatalf("unexpected playlist after update: %+v", fetched)
	}
	if len(fetched.VideoIDs) != 3 || fetched.VideoIDs[0] != "c" || fetched.VideoIDs[2] != "b" {
		t.Fatalf("expected ordered members, got %v", fetched.VideoIDs)
	}

	if err := gw.DeletePlaylist(ctx, public.ID); err != nil {
		t.Fatalf("delete playlist: %v", err)
	}
	if _, err := gw.GetPlaylist(ctx, public.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := gw.DeletePlaylist(ctx, public.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
	if err := gw.SetPlaylistVideos(ctx, public.ID, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating deleted playlist, got %v", err)
	}
}

func TestPostgresSessionStore_SaveFindAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	user := createTestUser(t, NewPostgresGateway(testPool), "owner@example.com")

	store := NewPostgresSessionStore(testPool)
	expires := time.Now().UTC().Add(24 * time.Hour)
	session := auth.Session{
		RefreshToken: uuid.NewString(),
		UserID:       user.ID,
		ExpiresAt:    expires,
	}

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	loaded, err := store.Find(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}

	if loaded.UserID != session.UserID || !timesClose(loaded.ExpiresAt, expires.UTC(), time.Millisecond) {
		t.Fatalf("unexpected session loaded: %+v", loaded)
	}

	updated := session
	updated.ExpiresAt = expires.Add(48 * time.Hour)
	if err := store.Save(ctx, updated); err != nil {
		t.Fatalf("update session: %v", err)
	}

	loaded, err = store.Find(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("find session after update: %v", err)
	}

	if !timesClose(loaded.ExpiresAt, updated.ExpiresAt.UTC(), time.Millisecond) {
		t.Fatalf("expected updated expiry, got %v", loaded.ExpiresAt)
	}

	if err := store.Delete(ctx, session.RefreshToken); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	if _, err := store.Find(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}

	if err := store.Delete(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound deleting twice, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE likes, playlists, videos, sessions, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, gw *PostgresGateway, email string) models.User {
	t.Helper()
	user := models.User{
		ID:           uuid.NewString(),
		DisplayName:  email,
		Email:        email,
		PasswordHash: "password-hash",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := gw.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func createTestVideo(t *testing.T, gw *PostgresGateway, ownerID string, createdAt time.Time) models.Video {
	t.Helper()
	video := models.Video{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		MediaURL:  "https://cdn.example.com/" + ownerID + ".mp4",
		CreatedAt: createdAt,
	}
	if err := gw.CreateVideo(context.Background(), video); err != nil {
		t.Fatalf("create test video: %v", err)
	}
	return video
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}

func TestPostgresSessionStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	user := createTestUser(t, NewPostgresGateway(testPool), "expiry@example.com")
	store := NewPostgresSessionStore(testPool)

	now := time.Now().UTC()
	for _, session := range []auth.Session{
		{RefreshToken: "stale", UserID: user.ID, ExpiresAt: now.Add(-time.Hour)},
		{RefreshToken: "fresh", UserID: user.ID, ExpiresAt: now.Add(time.Hour)},
	} {
		if err := store.Save(ctx, session); err != nil {
			t.Fatalf("save session: %v", err)
		}
	}

	removed, err := store.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 expired session removed, got %d", removed)
	}
	if _, err := store.Find(ctx, "fresh"); err != nil {
		t.Fatalf("expected fresh session to survive: %v", err)
	}
	if _, err := store.Find(ctx, "stale"); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected stale session to be gone, got %v", err)
	}
}

func TestPostgresSessionStore_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	user := createTestUser(t, NewPostgresGateway(testPool), "consume@example.com")
	store := NewPostgresSessionStore(testPool)
	session := auth.Session{RefreshToken: uuid.NewString(), UserID: user.ID, ExpiresAt: time.Now().UTC().Add(time.Hour)}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	consumed, err := store.Consume(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if consumed.UserID != user.ID {
		t.Fatalf("unexpected consumed session %+v", consumed)
	}
	if _, err := store.Consume(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected second consume to fail, got %v", err)
	}
}
