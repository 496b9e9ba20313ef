package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/xyzen/backend/internal/apperr"
	"github.com/xyzen/backend/internal/auth"
	"github.com/xyzen/backend/internal/logging"
	"github.com/xyzen/backend/internal/models"
)

const minPasswordLength = 8

var errInvalidCredentials = apperr.New(apperr.KindUnauthenticated, "invalid credentials")

// AuthHandler implements sign-up, login and token rotation.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

// Login handles POST /api/v1/auth/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(w, r, true) {
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if req.Password == "" {
		respondError(ctx, w, apperr.Validation("email and password are required"))
		return
	}

	user, err := h.Users.FindUserByEmail(ctx, email)
	switch {
	case apperr.KindOf(err) == apperr.KindNotFound:
		logging.FromContext(ctx).Warn("login for unknown email", "email", email)
		respondError(ctx, w, errInvalidCredentials)
		return
	case err != nil:
		respondError(ctx, w, err)
		return
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		logging.FromContext(ctx).Warn("login password mismatch", "userId", user.ID)
		respondError(ctx, w, errInvalidCredentials)
		return
	}

	h.issue(w, r, http.StatusOK, user.ID)
}

// SignUp handles POST /api/v1/auth/signup. The display name defaults to the
// local part of the email address.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(w, r, true) {
		return
	}

	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if err := checkPassword(req.Password); err != nil {
		respondError(ctx, w, err)
		return
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logging.FromContext(ctx).Error("hash password", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to secure password"})
		return
	}

	now := h.now()
	user := models.User{
		ID:           uuid.NewString(),
		DisplayName:  displayName,
		Email:        email,
		VideoIDs:     []string{},
		PasswordHash: string(hashed),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.Users.CreateUser(ctx, user); err != nil {
		respondError(ctx, w, err)
		return
	}
	logging.FromContext(ctx).Info("account created", "userId", user.ID)

	h.issue(w, r, http.StatusCreated, user.ID)
}

// Refresh handles POST /api/v1/auth/refresh. Each refresh token is single use.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(w, r, false) {
		return
	}

	token, ok := h.refreshToken(w, r)
	if !ok {
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, token)
	if err != nil {
		respondError(ctx, w, sessionError(err))
		return
	}
	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
}

// Logout handles POST /api/v1/auth/logout by revoking the refresh token.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r, false) {
		return
	}

	token, ok := h.refreshToken(w, r)
	if !ok {
		return
	}
	h.Sessions.Revoke(r.Context(), token)
	w.WriteHeader(http.StatusNoContent)
}

func (h AuthHandler) ready(w http.ResponseWriter, r *http.Request, needUsers bool) bool {
	if h.Sessions == nil || (needUsers && h.Users == nil) {
		logging.FromContext(r.Context()).Error("authentication dependencies unavailable")
		respondJSON(r.Context(), w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return false
	}
	if !allowRequest(h.Limiter, r, "auth") {
		rateLimited(w, r)
		return false
	}
	return true
}

func (h AuthHandler) refreshToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(r.Context(), w, err)
		return "", false
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		respondError(r.Context(), w, apperr.Validation("refresh token is required"))
		return "", false
	}
	return token, true
}

func (h AuthHandler) issue(w http.ResponseWriter, r *http.Request, status int, userID string) {
	ctx := r.Context()
	tokens, err := h.Sessions.Issue(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("issue session", "userId", userID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}
	respondJSON(ctx, w, status, authResponse{UserID: userID, Tokens: tokens})
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperr.Validation("email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperr.Validation("invalid email address")
	}
	return email, nil
}

func checkPassword(password string) error {
	if password == "" {
		return apperr.Validation("email and password are required")
	}
	if len(password) < minPasswordLength {
		return apperr.Validation("password must be at least 8 characters")
	}
	return nil
}

// sessionError maps refresh failures onto 401 so clients sign in again.
func sessionError(err error) error {
	if errors.Is(err, auth.ErrRefreshTokenExpired) || errors.Is(err, auth.ErrSessionNotFound) {
		return apperr.Wrap(err, apperr.KindUnauthenticated, "unable to refresh session")
	}
	return err
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	UserID string               `json:"userId,omitempty"`
	Tokens models.SessionTokens `json:"tokens"`
}
