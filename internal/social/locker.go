package social

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// UnlockFunc releases a lock obtained from a Locker.
type UnlockFunc func(ctx context.Context) error

// Locker serialises like toggles for a (video, user) pair.
type Locker interface {
	Lock(ctx context.Context, videoID, userID string) (UnlockFunc, error)
}

// NoopLocker performs no locking.
type NoopLocker struct{}

// Lock implements Locker.
func (NoopLocker) Lock(context.Context, string, string) (UnlockFunc, error) {
	return func(context.Context) error { return nil }, nil
}

// RedsyncLocker takes a Redis-backed distributed mutex per pair so that two
// clients toggling the same like cannot interleave their read and write.
type RedsyncLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	tries  int
}

// NewRedsyncLocker builds a locker on top of client.
func NewRedsyncLocker(client redis.UniversalClient, expiry time.Duration) *RedsyncLocker {
	if expiry <= 0 {
		expiry = 5 * time.Second
	}
	return &RedsyncLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		tries:  16,
	}
}

// Lock implements Locker.
func (l *RedsyncLocker) Lock(ctx context.Context, videoID, userID string) (UnlockFunc, error) {
	mutex := l.rs.NewMutex(lockName(videoID, userID),
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(l.tries),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("lock like %s/%s: %w", videoID, userID, err)
	}
	return func(ctx context.Context) error {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			return fmt.Errorf("unlock like %s/%s: %w", videoID, userID, err)
		}
		return nil
	}, nil
}

func lockName(videoID, userID string) string {
	return "xyzen:lock:like:" + videoID + ":" + userID
}
