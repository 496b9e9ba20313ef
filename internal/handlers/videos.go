package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/xyzen/backend/internal/apperr"
	"github.com/xyzen/backend/internal/feed"
	"github.com/xyzen/backend/internal/logging"
	"github.com/xyzen/backend/internal/models"
	"github.com/xyzen/backend/internal/videos"
)

const (
	maxFeedLimit   = 100
	maxUploadBytes = 256 << 20
	uploadMemory   = 32 << 20
)

// VideoHandler provides feed, upload and like endpoints.
type VideoHandler struct {
	Videos   VideoStore
	Uploader VideoUploader
	Likes    LikeService
	Limiter  RateLimiter
	// FeedLimit is the default page size when the request carries none.
	FeedLimit int
}

// Feed handles GET /api/v1/videos/feed.
func (h VideoHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Videos == nil {
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "video service unavailable"})
		return
	}

	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	mode, err := feed.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	items, err := feed.Load(ctx, h.Videos, limit, feed.Options{Mode: mode})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, videoListResponse{Videos: items})
}

func (h VideoHandler) parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if h.FeedLimit > 0 {
			return h.FeedLimit, nil
		}
		return feed.DefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperr.Validation("limit must be a non-negative integer")
	}
	return min(limit, maxFeedLimit), nil
}

// Get handles GET /api/v1/videos/{id}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	video, err := h.Videos.GetVideo(ctx, videoID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, video)
}

// Upload handles POST /api/v1/videos as multipart/form-data with a "media"
// file, an optional "thumbnail" file and a "caption" field.
func (h VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	ownerID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if h.Uploader == nil {
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "uploads are disabled"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		logger.Warn("invalid upload form", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "expected multipart form with a media file"})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	media, _, err := r.FormFile("media")
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "media file is required"})
		return
	}
	defer media.Close()

	input := videos.UploadInput{
		OwnerID: ownerID,
		Caption: r.FormValue("caption"),
		Media:   media,
	}

	thumbnail, _, err := r.FormFile("thumbnail")
	switch {
	case err == nil:
		defer thumbnail.Close()
		input.Thumbnail = thumbnail
	case !errors.Is(err, http.ErrMissingFile):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid thumbnail file"})
		return
	}

	video, err := h.Uploader.Upload(ctx, input)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, video)
}

// LikeState handles GET /api/v1/videos/{id}/like.
func (h VideoHandler) LikeState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	video, err := h.Videos.GetVideo(ctx, videoID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	liked, err := h.Likes.IsLiked(ctx, videoID, logging.UserIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, likeResponse{VideoID: videoID, Liked: liked, LikeCount: video.LikeCount})
}

// ToggleLike handles POST /api/v1/videos/{id}/like.
func (h VideoHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if !allowRequest(h.Limiter, r, "like") {
		rateLimited(w, r)
		return
	}
	videoID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.Likes.ToggleLike(ctx, videoID, userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, likeResponse{VideoID: videoID, Liked: result.Liked, LikeCount: result.Count})
}

type videoListResponse struct {
	Videos []models.Video `json:"videos"`
}

type likeResponse struct {
	VideoID   string `json:"videoId"`
	Liked     bool   `json:"liked"`
	LikeCount int64  `json:"likeCount"`
}

