package handlers

import (
	"context"
	"net/http"

	"github.com/xyzen/backend/internal/logging"
	"github.com/xyzen/backend/internal/models"
	"github.com/xyzen/backend/internal/playlists"
)

// PlaylistHandler exposes playlist management.
type PlaylistHandler struct {
	Playlists PlaylistService
}

// Create handles POST /api/v1/playlists.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createPlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	playlist, err := h.Playlists.Create(ctx, playlists.CreateInput{
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		CoverURL:    req.CoverURL,
		Visibility:  models.Visibility(req.Visibility),
		VideoIDs:    req.VideoIDs,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, playlist)
}

// Get handles GET /api/v1/playlists/{id}.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	playlist, err := h.Playlists.Get(ctx, playlistID, logging.UserIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, playlist)
}

// Update handles PATCH /api/v1/playlists/{id}.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requesterID, ok := requireUser(w, r)
	if !ok {
		return
	}
	playlistID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req updatePlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	update := playlists.Update{
		Name:        req.Name,
		Description: req.Description,
		CoverURL:    req.CoverURL,
	}
	if req.Visibility != nil {
		visibility := models.Visibility(*req.Visibility)
		update.Visibility = &visibility
	}

	playlist, err := h.Playlists.Update(ctx, playlistID, update, requesterID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, playlist)
}

// Delete handles DELETE /api/v1/playlists/{id}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requesterID, ok := requireUser(w, r)
	if !ok {
		return
	}
	playlistID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.Playlists.Delete(ctx, playlistID, requesterID); err != nil {
		respondError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Videos handles GET /api/v1/playlists/{id}/videos in playlist order.
func (h PlaylistHandler) Videos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	items, err := h.Playlists.Videos(ctx, playlistID, logging.UserIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, videoListResponse{Videos: items})
}

// AddVideos handles POST /api/v1/playlists/{id}/videos.
func (h PlaylistHandler) AddVideos(w http.ResponseWriter, r *http.Request) {
	h.mutateMembers(w, r, h.Playlists.AddVideos)
}

// RemoveVideos handles DELETE /api/v1/playlists/{id}/videos.
func (h PlaylistHandler) RemoveVideos(w http.ResponseWriter, r *http.Request) {
	h.mutateMembers(w, r, h.Playlists.RemoveVideos)
}

func (h PlaylistHandler) mutateMembers(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, playlistID string, videoIDs []string, requesterID string) (models.Playlist, error)) {
	ctx := r.Context()
	requesterID, ok := requireUser(w, r)
	if !ok {
		return
	}
	playlistID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req membersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	playlist, err := apply(ctx, playlistID, req.VideoIDs, requesterID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, playlist)
}

type createPlaylistRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	CoverURL    *string  `json:"coverUrl"`
	Visibility  string   `json:"visibility"`
	VideoIDs    []string `json:"videoIds"`
}

type updatePlaylistRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	CoverURL    *string `json:"coverUrl"`
	Visibility  *string `json:"visibility"`
}

type membersRequest struct {
	VideoIDs []string `json:"videoIds"`
}
