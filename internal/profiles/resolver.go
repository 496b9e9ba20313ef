// Package profiles resolves creator profiles for a feed session.
package profiles

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xyzen/backend/internal/apperr"
	"github.com/xyzen/backend/internal/metrics"
	"github.com/xyzen/backend/internal/models"
)

// Lookup fetches a single user document.
type Lookup interface {
	GetUser(ctx context.Context, id string) (models.User, error)
}

// DefaultFetchTimeout bounds a single backend fetch. Fetches are detached from
// the first caller's cancellation so that other waiters still get a result.
const DefaultFetchTimeout = 10 * time.Second

// Resolver memoises user lookups for the lifetime of one feed session.
// Concurrent resolves of the same id share a single backend call; failures are
// not cached.
type Resolver struct {
	base    Lookup
	metrics *metrics.Metrics
	timeout time.Duration

	group singleflight.Group

	mu    sync.RWMutex
	items map[string]models.User
}

// NewResolver returns a Resolver backed by base.
func NewResolver(base Lookup, m *metrics.Metrics) *Resolver {
	return &Resolver{
		base:    base,
		metrics: m,
		timeout: DefaultFetchTimeout,
		items:   make(map[string]models.User),
	}
}

// Resolve returns the user with the given id.
func (r *Resolver) Resolve(ctx context.Context, userID string) (models.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.User{}, apperr.Validation("user id is required")
	}

	if user, ok := r.cached(userID); ok {
		r.metrics.ProfileLookup("hit")
		return user, nil
	}

	ch := r.group.DoChan(userID, func() (any, error) {
		// A resolve that finished between our cache check and joining the
		// group must not trigger a second fetch.
		if user, ok := r.cached(userID); ok {
			return user, nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		user, err := r.base.GetUser(fetchCtx, userID)
		if err != nil {
			return models.User{}, apperr.Network(err, "resolve user "+userID)
		}

		r.mu.Lock()
		r.items[userID] = user
		r.mu.Unlock()
		return user, nil
	})

	select {
	case <-ctx.Done():
		return models.User{}, apperr.Network(ctx.Err(), "resolve user "+userID)
	case res := <-ch:
		if res.Err != nil {
			r.metrics.ProfileLookup("error")
			return models.User{}, res.Err
		}
		if res.Shared {
			r.metrics.ProfileLookup("shared")
		} else {
			r.metrics.ProfileLookup("miss")
		}
		return cloneUser(res.Val.(models.User)), nil
	}
}

// Peek returns a cached user without touching the backend.
func (r *Resolver) Peek(userID string) (models.User, bool) {
	return r.cached(userID)
}

// Forget drops the cached entry for userID.
func (r *Resolver) Forget(userID string) {
	r.mu.Lock()
	delete(r.items, userID)
	r.mu.Unlock()
}

// Reset drops every cached entry.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.items = make(map[string]models.User)
	r.mu.Unlock()
}

func (r *Resolver) cached(userID string) (models.User, bool) {
	r.mu.RLock()
	user, ok := r.items[userID]
	r.mu.RUnlock()
	if !ok {
		return models.User{}, false
	}
	return cloneUser(user), true
}

func cloneUser(u models.User) models.User {
	u.VideoIDs = slices.Clone(u.VideoIDs)
	return u
}
