package handlers

import (
	"context"

	"github.com/xyzen/backend/internal/gateway"
	"github.com/xyzen/backend/internal/models"
	"github.com/xyzen/backend/internal/playlists"
	"github.com/xyzen/backend/internal/social"
	"github.com/xyzen/backend/internal/videos"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) error
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
}

// SessionManager issues and refreshes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string)
}

// ProfileLookup fetches public user profiles.
type ProfileLookup interface {
	GetUser(ctx context.Context, id string) (models.User, error)
}

// VideoStore serves feed queries and single video lookups.
type VideoStore interface {
	GetVideo(ctx context.Context, id string) (models.Video, error)
	ListVideos(ctx context.Context, query gateway.VideoQuery) ([]models.Video, error)
}

// VideoUploader stores new uploads.
type VideoUploader interface {
	Upload(ctx context.Context, input videos.UploadInput) (models.Video, error)
}

// LikeService reports and toggles like state.
type LikeService interface {
	IsLiked(ctx context.Context, videoID, userID string) (bool, error)
	ToggleLike(ctx context.Context, videoID, userID string) (social.Toggle, error)
}

// PlaylistService manages playlists on behalf of a requester.
type PlaylistService interface {
	Create(ctx context.Context, input playlists.CreateInput) (models.Playlist, error)
	Get(ctx context.Context, playlistID, requesterID string) (models.Playlist, error)
	Update(ctx context.Context, playlistID string, update playlists.Update, requesterID string) (models.Playlist, error)
	Delete(ctx context.Context, playlistID, requesterID string) error
	Videos(ctx context.Context, playlistID, requesterID string) ([]models.Video, error)
	AddVideos(ctx context.Context, playlistID string, videoIDs []string, requesterID string) (models.Playlist, error)
	RemoveVideos(ctx context.Context, playlistID string, videoIDs []string, requesterID string) (models.Playlist, error)
	ListForUser(ctx context.Context, userID, requesterID string) ([]models.Playlist, error)
}
