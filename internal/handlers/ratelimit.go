package handlers

import (
	"net"
	"net/http"
	"strings"

	"github.com/xyzen/backend/internal/logging"
)

// RateLimiter is the minimal interface required to guard sensitive endpoints.
type RateLimiter interface {
	Allow(key string) bool
}

func allowRequest(limiter RateLimiter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(rateLimitKey(r, scope))
}

// rateLimitKey buckets signed-in callers by user id so shared NAT addresses
// do not starve each other. Anonymous callers fall back to their address.
func rateLimitKey(r *http.Request, scope string) string {
	caller := "ip:" + clientIP(r)
	if userID := logging.UserIDFromContext(r.Context()); userID != "" {
		caller = "user:" + userID
	}
	if scope == "" {
		return caller
	}
	return scope + ":" + caller
}

func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
