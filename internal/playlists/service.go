// Package playlists manages owner-curated, ordered video lists.
package playlists

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xyzen/backend/internal/apperr"
	"github.com/xyzen/backend/internal/gateway"
	"github.com/xyzen/backend/internal/logging"
	"github.com/xyzen/backend/internal/metrics"
	"github.com/xyzen/backend/internal/models"
)

// Store is the slice of the gateway the playlist service needs.
type Store interface {
	gateway.PlaylistStore
	VideosByIDs(ctx context.Context, ids []string) ([]models.Video, error)
}

// CreateInput describes a new playlist.
type CreateInput struct {
	OwnerID     string
	Name        string
	Description string
	CoverURL    *string
	Visibility  models.Visibility
	VideoIDs    []string
}

// Update carries optional playlist field changes.
type Update struct {
	Name        *string
	Description *string
	CoverURL    *string
	Visibility  *models.Visibility
}

// Service enforces ownership and visibility on top of the playlist store.
type Service struct {
	store   Store
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

// NewService constructs a Service.
func NewService(store Store, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// Create stores a new playlist owned by input.OwnerID.
func (s *Service) Create(ctx context.Context, input CreateInput) (models.Playlist, error) {
	playlist, err := s.create(ctx, input)
	s.metrics.PlaylistMutation("create", err)
	return playlist, err
}

func (s *Service) create(ctx context.Context, input CreateInput) (models.Playlist, error) {
	if strings.TrimSpace(input.OwnerID) == "" {
		return models.Playlist{}, apperr.New(apperr.KindUnauthenticated, "sign in to create playlists")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return models.Playlist{}, apperr.Validation("playlist name is required")
	}
	visibility := input.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	if !visibility.Valid() {
		return models.Playlist{}, apperr.Validation("unknown visibility " + string(visibility))
	}

	playlist := models.Playlist{
		ID:          s.newID(),
		OwnerID:     input.OwnerID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		CoverURL:    input.CoverURL,
		VideoIDs:    mergeUnique(nil, input.VideoIDs),
		Visibility:  visibility,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreatePlaylist(ctx, playlist); err != nil {
		return models.Playlist{}, apperr.Network(err, "create playlist")
	}

	logging.FromContext(ctx).Info("playlist created", "playlistId", playlist.ID, "ownerId", playlist.OwnerID)
	return playlist, nil
}

// AddVideos appends videoIDs to the playlist, skipping ids already present.
func (s *Service) AddVideos(ctx context.Context, playlistID string, videoIDs []string, requesterID string) (models.Playlist, error) {
	playlist, err := s.mutateMembers(ctx, playlistID, requesterID, func(current []string) []string {
		return mergeUnique(current, videoIDs)
	})
	s.metrics.PlaylistMutation("add_videos", err)
	return playlist, err
}

// RemoveVideos drops videoIDs from the playlist. Remaining ids keep their order.
func (s *Service) RemoveVideos(ctx context.Context, playlistID string, videoIDs []string, requesterID string) (models.Playlist, error) {
	playlist, err := s.mutateMembers(ctx, playlistID, requesterID, func(current []string) []string {
		drop := make(map[string]struct{}, len(videoIDs))
		for _, id := range videoIDs {
			drop[id] = struct{}{}
		}
		return slices.DeleteFunc(slices.Clone(current), func(id string) bool {
			_, ok := drop[id]
			return ok
		})
	})
	s.metrics.PlaylistMutation("remove_videos", err)
	return playlist, err
}

func (s *Service) mutateMembers(ctx context.Context, playlistID, requesterID string, apply func([]string) []string) (_ models.Playlist, err error) {
	ctx, span := logging.StartSpan(ctx, "playlist.members", "playlistId", playlistID)
	defer func() { span.End(err) }()

	playlist, err := s.owned(ctx, playlistID, requesterID)
	if err != nil {
		return models.Playlist{}, err
	}

	next := apply(playlist.VideoIDs)
	if slices.Equal(next, playlist.VideoIDs) {
		return playlist, nil
	}
	if err := s.store.SetPlaylistVideos(ctx, playlistID, next); err != nil {
		return models.Playlist{}, apperr.Network(err, "update playlist videos")
	}
	playlist.VideoIDs = next
	return playlist, nil
}

// Update changes playlist metadata.
func (s *Service) Update(ctx context.Context, playlistID string, update Update, requesterID string) (models.Playlist, error) {
	playlist, err := s.update(ctx, playlistID, update, requesterID)
	s.metrics.PlaylistMutation("update", err)
	return playlist, err
}

func (s *Service) update(ctx context.Context, playlistID string, update Update, requesterID string) (models.Playlist, error) {
	change := gateway.PlaylistUpdate{
		Description: update.Description,
		CoverURL:    update.CoverURL,
		Visibility:  update.Visibility,
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return models.Playlist{}, apperr.Validation("playlist name is required")
		}
		change.Name = &name
	}
	if update.Visibility != nil && !update.Visibility.Valid() {
		return models.Playlist{}, apperr.Validation("unknown visibility " + string(*update.Visibility))
	}

	playlist, err := s.owned(ctx, playlistID, requesterID)
	if err != nil {
		return models.Playlist{}, err
	}
	if change.Empty() {
		return playlist, nil
	}
	if err := s.store.UpdatePlaylist(ctx, playlistID, change); err != nil {
		return models.Playlist{}, apperr.Network(err, "update playlist")
	}

	if change.Name != nil {
		playlist.Name = *change.Name
	}
	if change.Description != nil {
		playlist.Description = *change.Description
	}
	if change.CoverURL != nil {
		cover := *change.CoverURL
		playlist.CoverURL = &cover
	}
	if change.Visibility != nil {
		playlist.Visibility = *change.Visibility
	}
	return playlist, nil
}

// Delete removes the playlist.
func (s *Service) Delete(ctx context.Context, playlistID, requesterID string) error {
	err := s.delete(ctx, playlistID, requesterID)
	s.metrics.PlaylistMutation("delete", err)
	return err
}

func (s *Service) delete(ctx context.Context, playlistID, requesterID string) error {
	if _, err := s.owned(ctx, playlistID, requesterID); err != nil {
		return err
	}
	if err := s.store.DeletePlaylist(ctx, playlistID); err != nil {
		return apperr.Network(err, "delete playlist")
	}
	logging.FromContext(ctx).Info("playlist deleted", "playlistId", playlistID)
	return nil
}

// Get returns the playlist if requesterID may read it.
func (s *Service) Get(ctx context.Context, playlistID, requesterID string) (models.Playlist, error) {
	if strings.TrimSpace(playlistID) == "" {
		return models.Playlist{}, apperr.Validation("playlist id is required")
	}
	playlist, err := s.store.GetPlaylist(ctx, playlistID)
	if err != nil {
		return models.Playlist{}, apperr.Network(err, "load playlist")
	}
	if !playlist.ReadableBy(requesterID) {
		return models.Playlist{}, apperr.New(apperr.KindPermissionDenied, "playlist is private")
	}
	return playlist, nil
}

// Videos returns the playlist's videos in playlist order. Ids that no longer
// resolve to a video are skipped.
func (s *Service) Videos(ctx context.Context, playlistID, requesterID string) ([]models.Video, error) {
	playlist, err := s.Get(ctx, playlistID, requesterID)
	if err != nil {
		return nil, err
	}
	if len(playlist.VideoIDs) == 0 {
		return []models.Video{}, nil
	}

	found, err := s.store.VideosByIDs(ctx, playlist.VideoIDs)
	if err != nil {
		return nil, apperr.Network(err, "load playlist videos")
	}

	byID := make(map[string]models.Video, len(found))
	for _, video := range found {
		byID[video.ID] = video
	}
	ordered := make([]models.Video, 0, len(playlist.VideoIDs))
	for _, id := range playlist.VideoIDs {
		if video, ok := byID[id]; ok {
			ordered = append(ordered, video)
		}
	}
	return ordered, nil
}

// ListForUser returns userID's playlists, newest first. Other requesters only
// see public playlists.
func (s *Service) ListForUser(ctx context.Context, userID, requesterID string) ([]models.Playlist, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("user id is required")
	}
	query := gateway.PlaylistQuery{
		OwnerID:    userID,
		PublicOnly: requesterID == "" || requesterID != userID,
	}
	playlists, err := s.store.ListPlaylists(ctx, query)
	if err != nil {
		return nil, apperr.Network(err, "list playlists")
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	return playlists, nil
}

// owned loads the playlist and checks requesterID may mutate it.
func (s *Service) owned(ctx context.Context, playlistID, requesterID string) (models.Playlist, error) {
	if strings.TrimSpace(requesterID) == "" {
		return models.Playlist{}, apperr.New(apperr.KindUnauthenticated, "sign in to edit playlists")
	}
	if strings.TrimSpace(playlistID) == "" {
		return models.Playlist{}, apperr.Validation("playlist id is required")
	}
	playlist, err := s.store.GetPlaylist(ctx, playlistID)
	if err != nil {
		return models.Playlist{}, apperr.Network(err, "load playlist")
	}
	if playlist.OwnerID != requesterID {
		return models.Playlist{}, apperr.New(apperr.KindPermissionDenied, "only the owner can edit this playlist")
	}
	return playlist, nil
}

// mergeUnique appends additions to current, dropping blanks and ids seen
// earlier. The first occurrence wins.
func mergeUnique(current, additions []string) []string {
	seen := make(map[string]struct{}, len(current)+len(additions))
	out := make([]string, 0, len(current)+len(additions))
	for _, list := range [][]string{current, additions} {
		for _, id := range list {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
