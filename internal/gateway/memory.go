package gateway

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/xyzen/backend/internal/apperr"
	"github.com/xyzen/backend/internal/models"
)

// ErrConflict indicates the attempted write would violate a uniqueness constraint.
var ErrConflict = errors.New("record conflict")

type likeKey struct {
	videoID string
	userID  string
}

// Memory is an in-process document store used by tests and local development.
type Memory struct {
	mu        sync.RWMutex
	users     map[string]models.User
	videos    map[string]models.Video
	likes     map[likeKey]models.LikeRecord
	playlists map[string]models.Playlist
}

// NewMemory returns an empty in-memory document store.
func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]models.User),
		videos:    make(map[string]models.Video),
		likes:     make(map[likeKey]models.LikeRecord),
		playlists: make(map[string]models.Playlist),
	}
}

// GetUser returns the user document with the given id.
func (m *Memory) GetUser(_ context.Context, id string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	return cloneUser(user), nil
}

// FindUserByEmail looks a user up by email address.
func (m *Memory) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			return cloneUser(user), nil
		}
	}
	return models.User{}, fmt.Errorf("user with email %s: %w", email, apperr.ErrNotFound)
}

// CreateUser stores a new user document.
func (m *Memory) CreateUser(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; ok {
		return ErrConflict
	}
	for _, existing := range m.users {
		if user.Email != "" && strings.EqualFold(existing.Email, user.Email) {
			return ErrConflict
		}
	}
	m.users[user.ID] = cloneUser(user)
	return nil
}

// AppendUserVideo adds videoID to the user's video list unless already present.
func (m *Memory) AppendUserVideo(_ context.Context, userID, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, apperr.ErrNotFound)
	}
	if !slices.Contains(user.VideoIDs, videoID) {
		user.VideoIDs = append(slices.Clone(user.VideoIDs), videoID)
	}
	m.users[userID] = user
	return nil
}

// GetVideo returns the video document with the given id.
func (m *Memory) GetVideo(_ context.Context, id string) (models.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	video, ok := m.videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("video %s: %w", id, apperr.ErrNotFound)
	}
	return cloneVideo(video), nil
}

// CreateVideo stores a new video document.
func (m *Memory) CreateVideo(_ context.Context, video models.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.videos[video.ID]; ok {
		return ErrConflict
	}
	m.videos[video.ID] = cloneVideo(video)
	return nil
}

// ListVideos returns videos ordered by creation time, newest first.
func (m *Memory) ListVideos(_ context.Context, query VideoQuery) ([]models.Video, error) {
	m.mu.RLock()
	out := make([]models.Video, 0, len(m.videos))
	for _, video := range m.videos {
		if query.OwnerID != "" && video.OwnerID != query.OwnerID {
			continue
		}
		out = append(out, cloneVideo(video))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

// VideosByIDs returns the stored videos whose id is in ids, in no particular order.
func (m *Memory) VideosByIDs(_ context.Context, ids []string) ([]models.Video, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Video, 0, len(wanted))
	for id := range wanted {
		if video, ok := m.videos[id]; ok {
			out = append(out, cloneVideo(video))
		}
	}
	return out, nil
}

// IncrementVideoCounter adds delta to the named counter under the store lock.
func (m *Memory) IncrementVideoCounter(_ context.Context, videoID string, field CounterField, delta int64) (int64, error) {
	if !field.Valid() {
		return 0, apperr.Validation(fmt.Sprintf("unknown counter %q", field))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	video, ok := m.videos[videoID]
	if !ok {
		return 0, fmt.Errorf("video %s: %w", videoID, apperr.ErrNotFound)
	}

	var value int64
	switch field {
	case CounterLikes:
		video.LikeCount += delta
		value = video.LikeCount
	case CounterViews:
		video.ViewCount += delta
		value = video.ViewCount
	}
	m.videos[videoID] = video
	return value, nil
}

// LikeExists reports whether userID liked videoID.
func (m *Memory) LikeExists(_ context.Context, videoID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.likes[likeKey{videoID: videoID, userID: userID}]
	return ok, nil
}

// CreateLike stores a like record.
func (m *Memory) CreateLike(_ context.Context, like models.LikeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := likeKey{videoID: like.VideoID, userID: like.UserID}
	if _, ok := m.likes[key]; ok {
		return ErrConflict
	}
	m.likes[key] = like
	return nil
}

// DeleteLike removes a like record.
func (m *Memory) DeleteLike(_ context.Context, videoID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := likeKey{videoID: videoID, userID: userID}
	if _, ok := m.likes[key]; !ok {
		return fmt.Errorf("like %s/%s: %w", videoID, userID, apperr.ErrNotFound)
	}
	delete(m.likes, key)
	return nil
}

// CreatePlaylist stores a new playlist document.
func (m *Memory) CreatePlaylist(_ context.Context, playlist models.Playlist) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.playlists[playlist.ID]; ok {
		return ErrConflict
	}
	m.playlists[playlist.ID] = clonePlaylist(playlist)
	return nil
}

// GetPlaylist returns the playlist document with the given id.
func (m *Memory) GetPlaylist(_ context.Context, id string) (models.Playlist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	playlist, ok := m.playlists[id]
	if !ok {
		return models.Playlist{}, fmt.Errorf("playlist %s: %w", id, apperr.ErrNotFound)
	}
	return clonePlaylist(playlist), nil
}

// UpdatePlaylist overwrites the non-nil fields of update.
func (m *Memory) UpdatePlaylist(_ context.Context, id string, update PlaylistUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	playlist, ok := m.playlists[id]
	if !ok {
		return fmt.Errorf("playlist %s: %w", id, apperr.ErrNotFound)
	}
	if update.Name != nil {
		playlist.Name = *update.Name
	}
	if update.Description != nil {
		playlist.Description = *update.Description
	}
	if update.CoverURL != nil {
		cover := *update.CoverURL
		playlist.CoverURL = &cover
	}
	if update.Visibility != nil {
		playlist.Visibility = *update.Visibility
	}
	m.playlists[id] = playlist
	return nil
}

// SetPlaylistVideos replaces the playlist's ordered member list.
func (m *Memory) SetPlaylistVideos(_ context.Context, id string, videoIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	playlist, ok := m.playlists[id]
	if !ok {
		return fmt.Errorf("playlist %s: %w", id, apperr.ErrNotFound)
	}
	playlist.VideoIDs = slices.Clone(videoIDs)
	m.playlists[id] = playlist
	return nil
}

// DeletePlaylist removes a playlist document.
func (m *Memory) DeletePlaylist(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.playlists[id]; !ok {
		return fmt.Errorf("playlist %s: %w", id, apperr.ErrNotFound)
	}
	delete(m.playlists, id)
	return nil
}

// ListPlaylists returns playlists matching query, newest first.
func (m *Memory) ListPlaylists(_ context.Context, query PlaylistQuery) ([]models.Playlist, error) {
	m.mu.RLock()
	var out []models.Playlist
	for _, playlist := range m.playlists {
		if query.OwnerID != "" && playlist.OwnerID != query.OwnerID {
			continue
		}
		if query.PublicOnly && playlist.Visibility != models.VisibilityPublic {
			continue
		}
		out = append(out, clonePlaylist(playlist))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func cloneUser(u models.User) models.User {
	u.VideoIDs = slices.Clone(u.VideoIDs)
	if u.AvatarURL != nil {
		avatar := *u.AvatarURL
		u.AvatarURL = &avatar
	}
	return u
}

func cloneVideo(v models.Video) models.Video {
	v.CommentIDs = slices.Clone(v.CommentIDs)
	return v
}

func clonePlaylist(p models.Playlist) models.Playlist {
	p.VideoIDs = slices.Clone(p.VideoIDs)
	if p.CoverURL != nil {
		cover := *p.CoverURL
		p.CoverURL = &cover
	}
	return p
}

var _ Gateway = (*Memory)(nil)
