package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xyzen/backend/internal/logging"
)

type verifierStub struct {
	tokens map[string]string
}

func (v verifierStub) Verify(token string) (string, error) {
	if id, ok := v.tokens[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

func TestAuthenticate(t *testing.T) {
	verifier := verifierStub{tokens: map[string]string{"good": "user-1"}}

	cases := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{name: "anonymous", header: "", wantStatus: http.StatusOK, wantUser: ""},
		{name: "valid bearer", header: "Bearer good", wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "invalid token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", wantStatus: http.StatusUnauthorized},
		{name: "missing token", header: "Bearer", wantStatus: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotUser string
			handler := Authenticate(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = logging.UserIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
			if gotUser != tc.wantUser {
				t.Fatalf("expected user %q got %q", tc.wantUser, gotUser)
			}
		})
	}
}

type observerStub struct {
	calls  int
	status int
}

func (o *observerStub) ObserveRequest(_ string, status int, _ time.Duration) {
	o.calls++
	o.status = status
}

func TestRequestLoggerRecoversAndObserves(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	observer := &observerStub{}

	handler := RequestLogger(logger, observer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logging.RequestIDFromContext(r.Context()) == "" {
			t.Error("expected request id on context")
		}
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos/feed", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if observer.calls != 1 || observer.status != http.StatusInternalServerError {
		t.Fatalf("expected one observation with 500, got %+v", observer)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("expected panic log, got %s", buf.String())
	}
}

func TestRequestLoggerKeepsIncomingRequestID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := RequestLogger(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected propagated request id got %q", got)
	}
}

func TestRequestLoggerReplacesOversizedRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := RequestLogger(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", maxRequestIDLength+1))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); len(got) > maxRequestIDLength || got == "" {
		t.Fatalf("expected a freshly minted request id, got %q", got)
	}
	if !strings.Contains(buf.String(), `"bytes":5`) {
		t.Fatalf("expected response size in access log, got %s", buf.String())
	}
}

func TestKeyedLimiter(t *testing.T) {
	limiter := NewKeyedLimiter(Limits{Requests: 1, Window: time.Minute, Burst: 2})

	if !limiter.Allow("1.2.3.4") || !limiter.Allow("1.2.3.4") {
		t.Fatal("expected burst to be allowed")
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatal("expected third request to be limited")
	}
	if !limiter.Allow("user:alice") {
		t.Fatal("expected other keys to have their own budget")
	}
}

func TestKeyedLimiterForgetsIdleKeys(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	limiter := newKeyedLimiter(Limits{Requests: 1, Window: time.Hour, Burst: 1, TTL: time.Minute}, func() time.Time { return now })

	if !limiter.Allow("a") {
		t.Fatal("expected first request to pass")
	}
	if limiter.Allow("a") {
		t.Fatal("expected bucket to be empty")
	}

	now = now.Add(2 * time.Minute)
	if !limiter.Allow("b") {
		t.Fatal("expected new key to pass")
	}
	if got := limiter.size(); got != 1 {
		t.Fatalf("expected idle bucket to be swept, have %d", got)
	}
	if !limiter.Allow("a") {
		t.Fatal("expected forgotten key to start with a full bucket")
	}
}
