package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xyzen/backend/internal/auth"
	"github.com/xyzen/backend/internal/gateway"
	"github.com/xyzen/backend/internal/middleware"
	"github.com/xyzen/backend/internal/models"
	"github.com/xyzen/backend/internal/playlists"
	"github.com/xyzen/backend/internal/social"
	"github.com/xyzen/backend/internal/videos"
)

type assetStorageStub struct {
	saved map[string]string
}

func (s *assetStorageStub) Save(_ context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if s.saved == nil {
		s.saved = make(map[string]string)
	}
	s.saved[name] = string(data)
	return "https://cdn.example.com/" + name, nil
}

type testAPI struct {
	handler http.Handler
	store   *gateway.Memory
	tokens  *auth.Manager
	assets  *assetStorageStub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	store := gateway.NewMemory()

	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	for _, user := range []models.User{
		{ID: "alice", DisplayName: "Alice", Email: "alice@example.com"},
		{ID: "bob", DisplayName: "Bob", Email: "bob@example.com"},
	} {
		if err := store.CreateUser(ctx, user); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	for i := 1; i <= 4; i++ {
		owner := "alice"
		if i%2 == 0 {
			owner = "bob"
		}
		video := models.Video{
			ID:        fmt.Sprintf("v%d", i),
			OwnerID:   owner,
			MediaURL:  fmt.Sprintf("https://cdn.example.com/v%d.mp4", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateVideo(ctx, video); err != nil {
			t.Fatalf("seed video: %v", err)
		}
	}

	tokens := auth.NewManager([]byte("test-secret"), time.Minute, time.Hour, auth.NewInMemorySessionStore())
	assets := &assetStorageStub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Users:     store,
		Sessions:  tokens,
		Profiles:  store,
		Videos:    store,
		Uploader:  videos.NewUploader(assets, store, nil, nil, logger),
		Likes:     social.NewService(store, social.Options{}),
		Playlists: playlists.NewService(store, nil),
		Metrics:   http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "ok") }),
	})

	return &testAPI{
		handler: middleware.Authenticate(tokens)(mux),
		store:   store,
		tokens:  tokens,
		assets:  assets,
	}
}

func (a *testAPI) token(t *testing.T, userID string) string {
	t.Helper()
	tokens, err := a.tokens.Issue(context.Background(), userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tokens.AccessToken
}

// do sends a JSON request as userID ("" for anonymous) and decodes the
// response into out when non-nil.
func (a *testAPI) do(t *testing.T, method, path, userID string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(t, userID))
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	if out != nil && rec.Code < http.StatusBadRequest {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec.Code
}

func multipartUpload(t *testing.T, caption string, withThumbnail bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("caption", caption); err != nil {
		t.Fatalf("write caption: %v", err)
	}
	part, err := writer.CreateFormFile("media", "clip.mp4")
	if err != nil {
		t.Fatalf("create media part: %v", err)
	}
	_, _ = part.Write([]byte("video-bytes"))
	if withThumbnail {
		thumb, err := writer.CreateFormFile("thumbnail", "thumb.jpg")
		if err != nil {
			t.Fatalf("create thumbnail part: %v", err)
		}
		_, _ = thumb.Write([]byte("jpeg-bytes"))
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}
