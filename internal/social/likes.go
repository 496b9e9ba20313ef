// Package social implements like state for videos.
package social

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xyzen/backend/internal/apperr"
	"github.com/xyzen/backend/internal/events"
	"github.com/xyzen/backend/internal/gateway"
	"github.com/xyzen/backend/internal/logging"
	"github.com/xyzen/backend/internal/metrics"
	"github.com/xyzen/backend/internal/models"
)

// Store is the slice of the gateway the like service needs.
type Store interface {
	LikeExists(ctx context.Context, videoID, userID string) (bool, error)
	CreateLike(ctx context.Context, like models.LikeRecord) error
	DeleteLike(ctx context.Context, videoID, userID string) error
	IncrementVideoCounter(ctx context.Context, videoID string, field gateway.CounterField, delta int64) (int64, error)
}

// Toggle is the outcome of a like toggle.
type Toggle struct {
	Liked bool  `json:"liked"`
	Count int64 `json:"likeCount"`
}

// Options configures a Service.
type Options struct {
	Locker    Locker
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	NowFunc   func() time.Time
}

// Service toggles and reports like state. The existence read and the write
// that follows are separate backend calls; a Locker can serialise toggles for
// the same pair when the deployment provides one.
type Service struct {
	store     Store
	locker    Locker
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewService constructs a like service on top of store.
func NewService(store Store, opts Options) *Service {
	if opts.Locker == nil {
		opts.Locker = NoopLocker{}
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Noop{}
	}
	if opts.NowFunc == nil {
		opts.NowFunc = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:     store,
		locker:    opts.Locker,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		now:       opts.NowFunc,
	}
}

// IsLiked reports whether userID liked videoID. Anonymous viewers never have.
func (s *Service) IsLiked(ctx context.Context, videoID, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, nil
	}
	if strings.TrimSpace(videoID) == "" {
		return false, apperr.Validation("video id is required")
	}

	liked, err := s.store.LikeExists(ctx, videoID, userID)
	if err != nil {
		return false, apperr.Network(err, "check like")
	}
	return liked, nil
}

// ToggleLike flips the like state of videoID for userID and returns the new
// state together with the counter value reported by the backend.
func (s *Service) ToggleLike(ctx context.Context, videoID, userID string) (Toggle, error) {
	ctx, span := logging.StartSpan(ctx, "like.toggle", "videoId", videoID, "userId", userID)
	result, err := s.toggle(ctx, videoID, userID)
	span.End(err)
	s.metrics.LikeToggled(result.Liked, err)
	return result, err
}

func (s *Service) toggle(ctx context.Context, videoID, userID string) (Toggle, error) {
	if strings.TrimSpace(userID) == "" {
		return Toggle{}, apperr.New(apperr.KindUnauthenticated, "sign in to like videos")
	}
	if strings.TrimSpace(videoID) == "" {
		return Toggle{}, apperr.Validation("video id is required")
	}

	logger := logging.FromContext(ctx)

	unlock, err := s.locker.Lock(ctx, videoID, userID)
	if err != nil {
		return Toggle{}, apperr.Network(err, "acquire like lock")
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release like lock", "videoId", videoID, "userId", userID, "error", err)
		}
	}()

	liked, err := s.store.LikeExists(ctx, videoID, userID)
	if err != nil {
		return Toggle{}, apperr.Network(err, "check like")
	}

	var result Toggle
	if liked {
		result, err = s.unlike(ctx, videoID, userID)
	} else {
		result, err = s.like(ctx, videoID, userID)
	}
	if err != nil {
		return Toggle{}, err
	}

	s.publish(ctx, videoID, userID, result)
	return result, nil
}

func (s *Service) like(ctx context.Context, videoID, userID string) (Toggle, error) {
	record := models.LikeRecord{VideoID: videoID, UserID: userID, CreatedAt: s.now()}
	if err := s.store.CreateLike(ctx, record); err != nil {
		return Toggle{}, apperr.Network(err, "create like")
	}

	count, err := s.store.IncrementVideoCounter(ctx, videoID, gateway.CounterLikes, 1)
	if err != nil {
		if compErr := s.store.DeleteLike(context.WithoutCancel(ctx), videoID, userID); compErr != nil {
			logging.FromContext(ctx).Error("like record left without counter update", "videoId", videoID, "userId", userID, "error", compErr)
		}
		return Toggle{}, apperr.Network(err, "increment like count")
	}
	return Toggle{Liked: true, Count: count}, nil
}

func (s *Service) unlike(ctx context.Context, videoID, userID string) (Toggle, error) {
	if err := s.store.DeleteLike(ctx, videoID, userID); err != nil {
		return Toggle{}, apperr.Network(err, "delete like")
	}

	count, err := s.store.IncrementVideoCounter(ctx, videoID, gateway.CounterLikes, -1)
	if err != nil {
		record := models.LikeRecord{VideoID: videoID, UserID: userID, CreatedAt: s.now()}
		if compErr := s.store.CreateLike(context.WithoutCancel(ctx), record); compErr != nil {
			logging.FromContext(ctx).Error("like record removed without counter update", "videoId", videoID, "userId", userID, "error", compErr)
		}
		return Toggle{}, apperr.Network(err, "decrement like count")
	}
	return Toggle{Liked: false, Count: count}, nil
}

func (s *Service) publish(ctx context.Context, videoID, userID string, result Toggle) {
	liked := result.Liked
	event := events.Event{
		ID:         uuid.NewString(),
		Type:       events.TypeLikeToggled,
		VideoID:    videoID,
		UserID:     userID,
		Liked:      &liked,
		Count:      result.Count,
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logging.FromContext(ctx).Warn("publish like event", "videoId", videoID, "error", err)
	}
}
