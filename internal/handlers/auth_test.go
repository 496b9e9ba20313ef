package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/xyzen/backend/internal/auth"
	"github.com/xyzen/backend/internal/gateway"
	"github.com/xyzen/backend/internal/models"
)

func newTestManager() *auth.Manager {
	return auth.NewManager([]byte("test-secret"), time.Minute, time.Hour, auth.NewInMemorySessionStore())
}

func TestAuthHandlerSignUp(t *testing.T) {
	store := gateway.NewMemory()
	handler := AuthHandler{Users: store, Sessions: newTestManager()}

	body, err := json.Marshal(signUpRequest{Email: "Test@example.com", Password: "supersafe"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.SignUp(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Tokens)
	}

	stored, err := store.FindUserByEmail(context.Background(), "test@example.com")
	if err != nil {
		t.Fatalf("expected user to be stored: %v", err)
	}
	if stored.ID != resp.UserID {
		t.Fatalf("expected response user id %q got %q", stored.ID, resp.UserID)
	}
	if stored.DisplayName != "test" {
		t.Fatalf("expected display name derived from email got %q", stored.DisplayName)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("supersafe")) != nil {
		t.Fatal("stored password is not hashed")
	}
}

func TestAuthHandlerSignUpRejects(t *testing.T) {
	store := gateway.NewMemory()
	_ = store.CreateUser(context.Background(), models.User{ID: "existing", Email: "taken@example.com"})
	handler := AuthHandler{Users: store, Sessions: newTestManager()}

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed", body: "{", status: http.StatusBadRequest},
		{name: "missing password", body: `{"email":"a@example.com"}`, status: http.StatusBadRequest},
		{name: "invalid email", body: `{"email":"nope","password":"supersafe"}`, status: http.StatusBadRequest},
		{name: "short password", body: `{"email":"a@example.com","password":"short"}`, status: http.StatusBadRequest},
		{name: "existing account", body: `{"email":"taken@example.com","password":"supersafe"}`, status: http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			handler.SignUp(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	store := gateway.NewMemory()
	manager := newTestManager()
	handler := AuthHandler{Users: store, Sessions: manager}

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	_ = store.CreateUser(context.Background(), models.User{ID: "user-1", Email: "login@example.com", PasswordHash: string(hashed)})

	body, err := json.Marshal(loginRequest{Email: "login@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	userID, err := manager.Verify(resp.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("expected token for user-1 got %q", userID)
	}

	for _, creds := range []loginRequest{
		{Email: "login@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "password123"},
	} {
		body, _ := json.Marshal(creds)
		rec := httptest.NewRecorder()
		handler.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s got %d", creds.Email, rec.Code)
		}
	}
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

func TestAuthHandlerRateLimited(t *testing.T) {
	handler := AuthHandler{Users: gateway.NewMemory(), Sessions: newTestManager(), Limiter: denyLimiter{}}

	rec := httptest.NewRecorder()
	handler.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{}`)))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
}

func TestAuthHandlerRefresh(t *testing.T) {
	manager := newTestManager()
	tokens, err := manager.Issue(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	handler := AuthHandler{Sessions: manager}

	body, err := json.Marshal(refreshRequest{RefreshToken: tokens.RefreshToken})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Tokens.RefreshToken == tokens.RefreshToken {
		t.Fatal("expected a new refresh token to be issued")
	}

	rec = httptest.NewRecorder()
	handler.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected reused refresh token to be rejected, got %d", rec.Code)
	}
}

func TestAuthHandlerLogout(t *testing.T) {
	manager := newTestManager()
	tokens, err := manager.Issue(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	handler := AuthHandler{Sessions: manager}

	body, _ := json.Marshal(refreshRequest{RefreshToken: tokens.RefreshToken})
	rec := httptest.NewRecorder()
	handler.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", bytes.NewReader(body)))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", bytes.NewBufferString(`{"refreshToken":" "}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected blank token to be rejected, got %d", rec.Code)
	}
}
