// Package gateway describes the document-store operations the feed, social and
// playlist services rely on. Implementations live in this package (in-memory)
// and in internal/repositories (PostgreSQL).
package gateway

import (
	"context"

	"github.com/xyzen/backend/internal/models"
)

// CounterField names an aggregate counter on a video document.
type CounterField string

const (
	CounterLikes CounterField = "likeCount"
	CounterViews CounterField = "viewCount"
)

// Valid reports whether f names a known counter.
func (f CounterField) Valid() bool {
	return f == CounterLikes || f == CounterViews
}

// VideoQuery filters an ordered (createdAt descending) range query.
type VideoQuery struct {
	OwnerID string
	// Limit bounds the result size; zero means unbounded.
	Limit int
}

// PlaylistQuery filters playlist listings.
type PlaylistQuery struct {
	OwnerID    string
	PublicOnly bool
}

// PlaylistUpdate carries the playlist fields to overwrite. Nil fields are left
// untouched.
type PlaylistUpdate struct {
	Name        *string
	Description *string
	CoverURL    *string
	Visibility  *models.Visibility
}

// Empty reports whether the update changes nothing.
func (u PlaylistUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.CoverURL == nil && u.Visibility == nil
}

// UserStore exposes user documents.
type UserStore interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	CreateUser(ctx context.Context, user models.User) error
	AppendUserVideo(ctx context.Context, userID, videoID string) error
}

// VideoStore exposes video documents and their counters.
type VideoStore interface {
	GetVideo(ctx context.Context, id string) (models.Video, error)
	CreateVideo(ctx context.Context, video models.Video) error
	ListVideos(ctx context.Context, query VideoQuery) ([]models.Video, error)
	// VideosByIDs runs a set-membership query. Response order is unspecified
	// and missing ids are omitted.
	VideosByIDs(ctx context.Context, ids []string) ([]models.Video, error)
	// IncrementVideoCounter atomically adds delta to the named counter and
	// returns the new value.
	IncrementVideoCounter(ctx context.Context, videoID string, field CounterField, delta int64) (int64, error)
}

// LikeStore exposes like records.
type LikeStore interface {
	LikeExists(ctx context.Context, videoID, userID string) (bool, error)
	CreateLike(ctx context.Context, like models.LikeRecord) error
	DeleteLike(ctx context.Context, videoID, userID string) error
}

// PlaylistStore exposes playlist documents.
type PlaylistStore interface {
	CreatePlaylist(ctx context.Context, playlist models.Playlist) error
	GetPlaylist(ctx context.Context, id string) (models.Playlist, error)
	UpdatePlaylist(ctx context.Context, id string, update PlaylistUpdate) error
	SetPlaylistVideos(ctx context.Context, id string, videoIDs []string) error
	DeletePlaylist(ctx context.Context, id string) error
	ListPlaylists(ctx context.Context, query PlaylistQuery) ([]models.Playlist, error)
}

// Gateway is the full document-store surface.
type Gateway interface {
	UserStore
	VideoStore
	LikeStore
	PlaylistStore
}
