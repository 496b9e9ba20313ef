package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/xyzen/backend/internal/apperr"
	"github.com/xyzen/backend/internal/gateway"
	"github.com/xyzen/backend/internal/logging"
)

const maxJSONBody = 1 << 20

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondError maps a service error onto an HTTP status. Network failures
// surface as 503 without leaking backend details.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status := errorStatus(err)
	message := err.Error()
	if status == http.StatusServiceUnavailable {
		logging.FromContext(ctx).Error("backend failure", "error", err)
		message = "service temporarily unavailable"
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Message != "" && status != http.StatusServiceUnavailable {
		message = appErr.Message
	}
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

func errorStatus(err error) int {
	if errors.Is(err, gateway.ErrConflict) {
		return http.StatusConflict
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindPermissionDenied:
		return http.StatusForbidden
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperr.Wrap(err, apperr.KindValidation, "invalid request body")
	}
	return nil
}

// requireUser returns the authenticated user id or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := logging.UserIDFromContext(r.Context())
	if userID == "" {
		respondJSON(r.Context(), w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return "", false
	}
	return userID, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := strings.TrimSpace(r.PathValue(name))
	if id == "" {
		respondJSON(r.Context(), w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("%s is required", name)})
		return "", false
	}
	return id, true
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "60")
	respondJSON(r.Context(), w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
}
