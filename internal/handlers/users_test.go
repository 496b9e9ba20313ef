package handlers

import (
	"net/http"
	"testing"

	"github.com/xyzen/backend/internal/models"
)

func TestUserProfile(t *testing.T) {
	api := newTestAPI(t)

	var public profileResponse
	if code := api.do(t, http.MethodGet, "/api/v1/users/alice", "bob", nil, &public); code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
	if public.DisplayName != "Alice" || public.Email != "" {
		t.Fatalf("expected public profile without email, got %+v", public)
	}

	var own profileResponse
	api.do(t, http.MethodGet, "/api/v1/users/alice", "alice", nil, &own)
	if own.Email != "alice@example.com" {
		t.Fatalf("expected owner to see their email, got %+v", own)
	}

	if code := api.do(t, http.MethodGet, "/api/v1/users/nobody", "", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", code)
	}
}

func TestUserVideos(t *testing.T) {
	api := newTestAPI(t)

	var resp videoListResponse
	if code := api.do(t, http.MethodGet, "/api/v1/users/bob/videos", "", nil, &resp); code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
	if len(resp.Videos) != 2 || resp.Videos[0].ID != "v4" || resp.Videos[1].ID != "v2" {
		t.Fatalf("unexpected creator videos %+v", resp.Videos)
	}
	for _, video := range resp.Videos {
		if video.OwnerID != "bob" {
			t.Fatalf("unexpected owner %s", video.OwnerID)
		}
	}
}

func TestUserPlaylistsHidePrivateFromOthers(t *testing.T) {
	api := newTestAPI(t)

	api.do(t, http.MethodPost, "/api/v1/playlists", "alice", map[string]any{"name": "Open"}, nil)
	api.do(t, http.MethodPost, "/api/v1/playlists", "alice", map[string]any{"name": "Closed", "visibility": "private"}, nil)

	var mine playlistListResponse
	api.do(t, http.MethodGet, "/api/v1/users/alice/playlists", "alice", nil, &mine)
	if len(mine.Playlists) != 2 {
		t.Fatalf("expected owner to see both playlists, got %d", len(mine.Playlists))
	}

	var theirs playlistListResponse
	api.do(t, http.MethodGet, "/api/v1/users/alice/playlists", "bob", nil, &theirs)
	if len(theirs.Playlists) != 1 || theirs.Playlists[0].Visibility != models.VisibilityPublic {
		t.Fatalf("expected only the public playlist, got %+v", theirs.Playlists)
	}
}

func TestMetricsAndHealthRoutes(t *testing.T) {
	api := newTestAPI(t)
	if code := api.do(t, http.MethodGet, "/metrics", "", nil, nil); code != http.StatusOK {
		t.Fatalf("expected metrics route, got %d", code)
	}
	if code := api.do(t, http.MethodGet, "/healthz", "", nil, nil); code != http.StatusOK {
		t.Fatalf("expected health route, got %d", code)
	}
}
