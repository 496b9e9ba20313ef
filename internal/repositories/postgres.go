package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xyzen/backend/internal/apperr"
	"github.com/xyzen/backend/internal/db"
	"github.com/xyzen/backend/internal/gateway"
	"github.com/xyzen/backend/internal/models"
)

// PostgresGateway implements gateway.Gateway on PostgreSQL.
type PostgresGateway struct {
	pool db.Pool
}

// NewPostgresGateway constructs a gateway backed by PostgreSQL.
func NewPostgresGateway(pool db.Pool) *PostgresGateway {
	return &PostgresGateway{pool: pool}
}

const userColumns = `id, display_name, email, avatar_url, bio, video_ids, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.AvatarURL, &user.Bio, &user.VideoIDs, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if user.VideoIDs == nil {
		user.VideoIDs = []string{}
	}
	return user, err
}

// GetUser fetches a user by id.
func (g *PostgresGateway) GetUser(ctx context.Context, id string) (models.User, error) {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return models.User{}, translate(err, "select user "+id)
	}
	return user, nil
}

// FindUserByEmail fetches a user by their email address.
func (g *PostgresGateway) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return models.User{}, translate(err, "select user by email")
	}
	return user, nil
}

// CreateUser persists a new user record.
func (g *PostgresGateway) CreateUser(ctx context.Context, user models.User) error {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	videoIDs := user.VideoIDs
	if videoIDs == nil {
		videoIDs = []string{}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, display_name, email, avatar_url, bio, video_ids, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, user.ID, user.DisplayName, user.Email, user.AvatarURL, user.Bio, videoIDs, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return translate(err, "insert user")
}

// AppendUserVideo adds videoID to the user's video list unless already present.
func (g *PostgresGateway) AppendUserVideo(ctx context.Context, userID, videoID string) error {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET video_ids = CASE
                WHEN $2::TEXT = ANY(video_ids) THEN video_ids
                ELSE array_append(video_ids, $2::TEXT)
            END,
            updated_at = NOW()
        WHERE id = $1
    `, userID, videoID)
	if err != nil {
		return translate(err, "append user video")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

const videoColumns = `id, owner_id, caption, media_url, thumbnail_url, created_at, like_count, view_count, comment_ids`

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	err := row.Scan(&video.ID, &video.OwnerID, &video.Caption, &video.MediaURL, &video.ThumbnailURL, &video.CreatedAt, &video.LikeCount, &video.ViewCount, &video.CommentIDs)
	if video.CommentIDs == nil {
		video.CommentIDs = []string{}
	}
	return video, err
}

func collectVideos(rows pgx.Rows) ([]models.Video, error) {
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return videos, nil
}

// GetVideo fetches a video by id.
func (g *PostgresGateway) GetVideo(ctx context.Context, id string) (models.Video, error) {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	video, err := scanVideo(conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if err != nil {
		return models.Video{}, translate(err, "select video "+id)
	}
	return video, nil
}

// CreateVideo stores a new video record.
func (g *PostgresGateway) CreateVideo(ctx context.Context, video models.Video) error {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	commentIDs := video.CommentIDs
	if commentIDs == nil {
		commentIDs = []string{}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, caption, media_url, thumbnail_url, created_at, like_count, view_count, comment_ids)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, video.ID, video.OwnerID, video.Caption, video.MediaURL, video.ThumbnailURL, video.CreatedAt, video.LikeCount, video.ViewCount, commentIDs)
	return translate(err, "insert video")
}

// ListVideos returns videos newest first, optionally for one owner.
func (g *PostgresGateway) ListVideos(ctx context.Context, query gateway.VideoQuery) ([]models.Video, error) {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	sql := `
        SELECT ` + videoColumns + `
        FROM videos
        WHERE ($1::TEXT = '' OR owner_id = $1)
        ORDER BY created_at DESC, id`
	args := []any{query.OwnerID}
	if query.Limit > 0 {
		sql += ` LIMIT $2`
		args = append(args, query.Limit)
	}

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	return collectVideos(rows)
}

// VideosByIDs runs a set-membership query; result order is unspecified.
func (g *PostgresGateway) VideosByIDs(ctx context.Context, ids []string) ([]models.Video, error) {
	if len(ids) == 0 {
		return []models.Video{}, nil
	}

	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query videos by id: %w", err)
	}
	return collectVideos(rows)
}

// IncrementVideoCounter adds delta to a counter in a single statement and
// returns the new value.
func (g *PostgresGateway) IncrementVideoCounter(ctx context.Context, videoID string, field gateway.CounterField, delta int64) (int64, error) {
	var column string
	switch field {
	case gateway.CounterLikes:
		column = "like_count"
	case gateway.CounterViews:
		column = "view_count"
	default:
		return 0, apperr.Validation(fmt.Sprintf("unknown counter %q", field))
	}

	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var value int64
	err = conn.QueryRow(ctx, `
        UPDATE videos
        SET `+column+` = `+column+` + $2
        WHERE id = $1
        RETURNING `+column, videoID, delta).Scan(&value)
	if err != nil {
		return 0, translate(err, "increment "+column+" for video "+videoID)
	}
	return value, nil
}

// LikeExists reports whether userID liked videoID.
func (g *PostgresGateway) LikeExists(ctx context.Context, videoID, userID string) (bool, error) {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	err = conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM likes WHERE video_id = $1 AND user_id = $2)
    `, videoID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check like: %w", err)
	}
	return exists, nil
}

// CreateLike stores a like record.
func (g *PostgresGateway) CreateLike(ctx context.Context, like models.LikeRecord) error {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO likes (video_id, user_id, created_at)
        VALUES ($1, $2, $3)
    `, like.VideoID, like.UserID, like.CreatedAt)
	return translate(err, "insert like")
}

// DeleteLike removes a like record.
func (g *PostgresGateway) DeleteLike(ctx context.Context, videoID, userID string) error {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM likes WHERE video_id = $1 AND user_id = $2`, videoID, userID)
	if err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("like %s/%s: %w", videoID, userID, ErrNotFound)
	}
	return nil
}

const playlistColumns = `id, owner_id, name, description, cover_url, video_ids, visibility, created_at`

func scanPlaylist(row pgx.Row) (models.Playlist, error) {
	var (
		playlist   models.Playlist
		visibility string
	)
	err := row.Scan(&playlist.ID, &playlist.OwnerID, &playlist.Name, &playlist.Description, &playlist.CoverURL, &playlist.VideoIDs, &visibility, &playlist.CreatedAt)
	playlist.Visibility = models.Visibility(visibility)
	if playlist.VideoIDs == nil {
		playlist.VideoIDs = []string{}
	}
	return playlist, err
}

// CreatePlaylist stores a new playlist.
func (g *PostgresGateway) CreatePlaylist(ctx context.Context, playlist models.Playlist) error {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	videoIDs := playlist.VideoIDs
	if videoIDs == nil {
		videoIDs = []string{}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO playlists (id, owner_id, name, description, cover_url, video_ids, visibility, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, playlist.ID, playlist.OwnerID, playlist.Name, playlist.Description, playlist.CoverURL, videoIDs, string(playlist.Visibility), playlist.CreatedAt)
	return translate(err, "insert playlist")
}

// GetPlaylist fetches a playlist by id.
func (g *PostgresGateway) GetPlaylist(ctx context.Context, id string) (models.Playlist, error) {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	playlist, err := scanPlaylist(conn.QueryRow(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = $1`, id))
	if err != nil {
		return models.Playlist{}, translate(err, "select playlist "+id)
	}
	return playlist, nil
}

// UpdatePlaylist overwrites the non-nil fields of update.
func (g *PostgresGateway) UpdatePlaylist(ctx context.Context, id string, update gateway.PlaylistUpdate) error {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var visibility *string
	if update.Visibility != nil {
		v := string(*update.Visibility)
		visibility = &v
	}

	tag, err := conn.Exec(ctx, `
        UPDATE playlists
        SET name = COALESCE($2::TEXT, name),
            description = COALESCE($3::TEXT, description),
            cover_url = COALESCE($4::TEXT, cover_url),
            visibility = COALESCE($5::TEXT, visibility)
        WHERE id = $1
    `, id, update.Name, update.Description, update.CoverURL, visibility)
	if err != nil {
		return translate(err, "update playlist")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("playlist %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetPlaylistVideos replaces the ordered member list.
func (g *PostgresGateway) SetPlaylistVideos(ctx context.Context, id string, videoIDs []string) error {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if videoIDs == nil {
		videoIDs = []string{}
	}

	tag, err := conn.Exec(ctx, `UPDATE playlists SET video_ids = $2 WHERE id = $1`, id, videoIDs)
	if err != nil {
		return translate(err, "update playlist videos")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("playlist %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeletePlaylist removes a playlist.
func (g *PostgresGateway) DeletePlaylist(ctx context.Context, id string) error {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("playlist %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListPlaylists returns playlists newest first.
func (g *PostgresGateway) ListPlaylists(ctx context.Context, query gateway.PlaylistQuery) ([]models.Playlist, error) {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+playlistColumns+`
        FROM playlists
        WHERE ($1::TEXT = '' OR owner_id = $1)
          AND (NOT $2::BOOL OR visibility = 'public')
        ORDER BY created_at DESC, id
    `, query.OwnerID, query.PublicOnly)
	if err != nil {
		return nil, fmt.Errorf("query playlists: %w", err)
	}
	defer rows.Close()

	playlists := []models.Playlist{}
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		playlists = append(playlists, playlist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlists: %w", err)
	}
	return playlists, nil
}

var _ gateway.Gateway = (*PostgresGateway)(nil)
