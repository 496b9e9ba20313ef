package handlers

import (
	"net/http"
	"time"

	"github.com/xyzen/backend/internal/feed"
	"github.com/xyzen/backend/internal/logging"
	"github.com/xyzen/backend/internal/models"
)

// UserHandler serves creator profiles and their content.
type UserHandler struct {
	Profiles  ProfileLookup
	Videos    VideoStore
	Playlists PlaylistService
}

// Get handles GET /api/v1/users/{id}. The email address is only returned to
// its owner.
func (h UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.Profiles.GetUser(ctx, userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	profile := profileResponse{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		Bio:         user.Bio,
		VideoIDs:    user.VideoIDs,
		CreatedAt:   user.CreatedAt,
	}
	if logging.UserIDFromContext(ctx) == user.ID {
		profile.Email = user.Email
	}
	respondJSON(ctx, w, http.StatusOK, profile)
}

// Videos handles GET /api/v1/users/{id}/videos, newest first.
func (h UserHandler) Videos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	limit, err := VideoHandler{}.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	items, err := feed.Load(ctx, h.Videos, limit, feed.Options{Mode: feed.ModeRecent, OwnerID: userID})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, videoListResponse{Videos: items})
}

// Playlists handles GET /api/v1/users/{id}/playlists.
func (h UserHandler) Playlists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	items, err := h.Playlists.ListForUser(ctx, userID, logging.UserIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, playlistListResponse{Playlists: items})
}

type profileResponse struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	AvatarURL   *string   `json:"avatarUrl,omitempty"`
	Bio         string    `json:"bio"`
	VideoIDs    []string  `json:"videoIds"`
	CreatedAt   time.Time `json:"createdAt"`
}

type playlistListResponse struct {
	Playlists []models.Playlist `json:"playlists"`
}
