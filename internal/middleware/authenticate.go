package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/xyzen/backend/internal/logging"
)

// TokenVerifier resolves a bearer access token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Authenticate attaches the bearer token's user to the request context.
// Requests without an Authorization header pass through anonymously; a
// malformed or invalid token is rejected with 401.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				unauthorized(w, "malformed authorization header")
				return
			}

			userID, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				logging.FromContext(r.Context()).Info("rejected access token", "error", err)
				unauthorized(w, "invalid or expired access token")
				return
			}

			ctx := logging.WithUserID(r.Context(), userID)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("user_id", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
