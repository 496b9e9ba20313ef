package handlers

import (
	"net/http"
	"testing"

	"github.com/xyzen/backend/internal/models"
)

func TestPlaylistLifecycle(t *testing.T) {
	api := newTestAPI(t)

	var created models.Playlist
	code := api.do(t, http.MethodPost, "/api/v1/playlists", "alice", map[string]any{
		"name":     "Favourites",
		"videoIds": []string{"v3", "v1", "v3"},
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", code)
	}
	if created.OwnerID != "alice" || created.Visibility != models.VisibilityPublic || len(created.VideoIDs) != 2 {
		t.Fatalf("unexpected playlist %+v", created)
	}
	path := "/api/v1/playlists/" + created.ID

	var updated models.Playlist
	if code := api.do(t, http.MethodPost, path+"/videos", "alice", map[string]any{"videoIds": []string{"v2", "v1", "missing"}}, &updated); code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
	want := []string{"v3", "v1", "v2", "missing"}
	if len(updated.VideoIDs) != len(want) {
		t.Fatalf("expected %v got %v", want, updated.VideoIDs)
	}
	for i := range want {
		if updated.VideoIDs[i] != want[i] {
			t.Fatalf("expected %v got %v", want, updated.VideoIDs)
		}
	}

	var listed videoListResponse
	if code := api.do(t, http.MethodGet, path+"/videos", "", nil, &listed); code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
	if len(listed.Videos) != 3 || listed.Videos[0].ID != "v3" || listed.Videos[2].ID != "v2" {
		t.Fatalf("expected playlist order without missing ids, got %+v", listed.Videos)
	}

	if code := api.do(t, http.MethodPost, path+"/videos", "bob", map[string]any{"videoIds": []string{"v4"}}, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner got %d", code)
	}
	if code := api.do(t, http.MethodDelete, path+"/videos", "", map[string]any{"videoIds": []string{"v1"}}, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous got %d", code)
	}

	var trimmed models.Playlist
	if code := api.do(t, http.MethodDelete, path+"/videos", "alice", map[string]any{"videoIds": []string{"v1", "missing"}}, &trimmed); code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
	if len(trimmed.VideoIDs) != 2 || trimmed.VideoIDs[0] != "v3" || trimmed.VideoIDs[1] != "v2" {
		t.Fatalf("unexpected members after removal %v", trimmed.VideoIDs)
	}

	var private models.Playlist
	if code := api.do(t, http.MethodPatch, path, "alice", map[string]any{"visibility": "private", "name": "Secret"}, &private); code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
	if private.Name != "Secret" || private.Visibility != models.VisibilityPrivate {
		t.Fatalf("unexpected update result %+v", private)
	}
	if code := api.do(t, http.MethodGet, path, "bob", nil, nil); code != http.StatusForbidden {
		t.Fatalf("expected private playlist hidden from bob, got %d", code)
	}
	if code := api.do(t, http.MethodGet, path, "", nil, nil); code != http.StatusForbidden {
		t.Fatalf("expected private playlist hidden from anonymous, got %d", code)
	}
	if code := api.do(t, http.MethodGet, path, "alice", nil, nil); code != http.StatusOK {
		t.Fatalf("expected owner to read private playlist, got %d", code)
	}

	if code := api.do(t, http.MethodPatch, path, "alice", map[string]any{"name": "  "}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected blank name to be rejected, got %d", code)
	}
	if code := api.do(t, http.MethodDelete, path, "bob", nil, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 deleting someone else's playlist, got %d", code)
	}
	if code := api.do(t, http.MethodDelete, path, "alice", nil, nil); code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", code)
	}
	if code := api.do(t, http.MethodGet, path, "alice", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete got %d", code)
	}
}

func TestPlaylistCreateValidation(t *testing.T) {
	api := newTestAPI(t)

	cases := []struct {
		name   string
		user   string
		body   any
		status int
	}{
		{name: "anonymous", user: "", body: map[string]any{"name": "x"}, status: http.StatusUnauthorized},
		{name: "blank name", user: "alice", body: map[string]any{"name": " "}, status: http.StatusBadRequest},
		{name: "bad visibility", user: "alice", body: map[string]any{"name": "x", "visibility": "friends"}, status: http.StatusBadRequest},
		{name: "unknown field", user: "alice", body: map[string]any{"name": "x", "owner": "bob"}, status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if code := api.do(t, http.MethodPost, "/api/v1/playlists", tc.user, tc.body, nil); code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, code)
			}
		})
	}
}
