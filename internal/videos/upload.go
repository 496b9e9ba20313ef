// Package videos handles video uploads and view counting.
package videos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xyzen/backend/internal/apperr"
	"github.com/xyzen/backend/internal/events"
	"github.com/xyzen/backend/internal/models"
)

// AssetStorage persists uploaded media and returns its public location.
type AssetStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// UploadStore is the slice of the gateway uploads write to.
type UploadStore interface {
	CreateVideo(ctx context.Context, video models.Video) error
	AppendUserVideo(ctx context.Context, userID, videoID string) error
}

// ProfileInvalidator drops cached profiles whose video list changed.
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// UploadInput describes a new video.
type UploadInput struct {
	OwnerID string
	Caption string
	Media   io.Reader
	// Thumbnail is optional; without it the media URL doubles as thumbnail.
	Thumbnail io.Reader
}

// Uploader stores media and registers the video document.
type Uploader struct {
	storage     AssetStorage
	store       UploadStore
	invalidator ProfileInvalidator
	publisher   events.Publisher
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

// NewUploader returns an Uploader. storage may be nil, in which case every
// upload fails with ErrAssetStorageUnavailable.
func NewUploader(storage AssetStorage, store UploadStore, invalidator ProfileInvalidator, publisher events.Publisher, logger *slog.Logger) *Uploader {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		storage:     storage,
		store:       store,
		invalidator: invalidator,
		publisher:   publisher,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// Upload stores the media under videos/{owner}/{id}.mp4 and creates the video
// document, then appends it to the owner's video list.
func (u *Uploader) Upload(ctx context.Context, input UploadInput) (models.Video, error) {
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return models.Video{}, apperr.New(apperr.KindUnauthenticated, "sign in to upload videos")
	}
	if input.Media == nil {
		return models.Video{}, apperr.Validation("media file is required")
	}
	if u.storage == nil {
		return models.Video{}, apperr.Network(ErrAssetStorageUnavailable, "upload video")
	}

	videoID := u.newID()
	mediaURL, err := u.storage.Save(ctx, mediaKey(ownerID, videoID), input.Media)
	if err != nil {
		return models.Video{}, apperr.Network(err, "store media")
	}

	thumbnailURL := mediaURL
	if input.Thumbnail != nil {
		location, err := u.storage.Save(ctx, thumbnailKey(ownerID, videoID), input.Thumbnail)
		if err != nil {
			u.logger.Warn("thumbnail upload failed, using media url", "videoId", videoID, "error", err)
		} else {
			thumbnailURL = location
		}
	}

	video := models.Video{
		ID:           videoID,
		OwnerID:      ownerID,
		Caption:      strings.TrimSpace(input.Caption),
		MediaURL:     mediaURL,
		ThumbnailURL: thumbnailURL,
		CreatedAt:    u.now(),
		CommentIDs:   []string{},
	}
	if err := u.store.CreateVideo(ctx, video); err != nil {
		return models.Video{}, apperr.Network(err, "create video")
	}

	if err := u.store.AppendUserVideo(ctx, ownerID, videoID); err != nil {
		// The video document exists and shows up in feeds; only the profile
		// list is behind.
		u.logger.Error("append video to owner", "videoId", videoID, "ownerId", ownerID, "error", err)
	}
	if u.invalidator != nil {
		if err := u.invalidator.Invalidate(ctx, ownerID); err != nil {
			u.logger.Warn("invalidate cached profile", "ownerId", ownerID, "error", err)
		}
	}

	event := events.Event{
		ID:         uuid.NewString(),
		Type:       events.TypeVideoUploaded,
		VideoID:    videoID,
		UserID:     ownerID,
		OccurredAt: video.CreatedAt,
	}
	if err := u.publisher.Publish(ctx, event); err != nil {
		u.logger.Warn("publish upload event", "videoId", videoID, "error", err)
	}

	u.logger.Info("video uploaded", "videoId", videoID, "ownerId", ownerID)
	return video, nil
}

func mediaKey(ownerID, videoID string) string {
	return path.Join("videos", ownerID, fmt.Sprintf("%s.mp4", videoID))
}

func thumbnailKey(ownerID, videoID string) string {
	return path.Join("thumbnails", ownerID, fmt.Sprintf("%s.jpg", videoID))
}
