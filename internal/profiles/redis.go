package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xyzen/backend/internal/models"
)

const userKeyPrefix = "xyzen:user:"

// RedisUserCache is a read-through profile cache shared across sessions. Redis
// failures degrade to the underlying lookup.
type RedisUserCache struct {
	client redis.Cmdable
	base   Lookup
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisUserCache wraps base with a Redis cache whose entries live for ttl.
func NewRedisUserCache(client redis.Cmdable, base Lookup, ttl time.Duration, logger *slog.Logger) *RedisUserCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisUserCache{client: client, base: base, ttl: ttl, logger: logger}
}

// GetUser implements Lookup.
func (c *RedisUserCache) GetUser(ctx context.Context, id string) (models.User, error) {
	key := userKeyPrefix + id

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var user models.User
		decodeErr := json.Unmarshal(data, &user)
		if decodeErr == nil {
			return user, nil
		}
		c.logger.Warn("discarding undecodable cached profile", "userId", id, "error", decodeErr)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("profile cache read failed", "userId", id, "error", err)
	}

	user, err := c.base.GetUser(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	payload, err := json.Marshal(user)
	if err != nil {
		c.logger.Warn("encode profile for cache", "userId", id, "error", err)
		return user, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("profile cache write failed", "userId", id, "error", err)
	}
	return user, nil
}

// Invalidate removes the cached profile for id.
func (c *RedisUserCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, userKeyPrefix+id).Err()
}
