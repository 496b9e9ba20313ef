package models

import "time"

// User represents an account and its public profile.
type User struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"displayName"`
	Email        string    `json:"email"`
	AvatarURL    *string   `json:"avatarUrl,omitempty"`
	Bio          string    `json:"bio"`
	VideoIDs     []string  `json:"videoIds"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Video is an uploaded clip. LikeCount and ViewCount are aggregates that only
// move through the gateway's atomic increment.
type Video struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Caption      string    `json:"caption"`
	MediaURL     string    `json:"mediaUrl"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	CreatedAt    time.Time `json:"createdAt"`
	LikeCount    int64     `json:"likeCount"`
	ViewCount    int64     `json:"viewCount"`
	CommentIDs   []string  `json:"commentIds"`
}

// Visibility controls who may read a playlist.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Playlist is an owner-curated, ordered list of videos.
type Playlist struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CoverURL    *string    `json:"coverUrl,omitempty"`
	VideoIDs    []string   `json:"videoIds"`
	Visibility  Visibility `json:"visibility"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ReadableBy reports whether requesterID may read the playlist. An empty
// requester is anonymous.
func (p Playlist) ReadableBy(requesterID string) bool {
	if p.Visibility != VisibilityPrivate {
		return true
	}
	return requesterID != "" && requesterID == p.OwnerID
}

// LikeRecord relates a user to a video they liked. Its existence is the source
// of truth for the liked state.
type LikeRecord struct {
	VideoID   string    `json:"videoId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
