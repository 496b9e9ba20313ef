package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xyzen/backend/internal/auth"
	"github.com/xyzen/backend/internal/db"
)

// PostgresSessionStore keeps refresh tokens in the sessions table.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

func (s *PostgresSessionStore) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()
	return fn(conn)
}

// Save stores or replaces a session record.
func (s *PostgresSessionStore) Save(ctx context.Context, session auth.Session) error {
	return s.withConn(ctx, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
            INSERT INTO sessions (refresh_token, user_id, expires_at)
            VALUES ($1, $2, $3)
            ON CONFLICT (refresh_token)
            DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at
        `, session.RefreshToken, session.UserID, session.ExpiresAt.UTC())
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		return nil
	})
}

// Find loads a session by its refresh token.
func (s *PostgresSessionStore) Find(ctx context.Context, refreshToken string) (auth.Session, error) {
	var session auth.Session
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
            SELECT refresh_token, user_id, expires_at
            FROM sessions
            WHERE refresh_token = $1
        `, refreshToken)
		var err error
		session, err = scanSession(row)
		return err
	})
	return session, err
}

// Consume deletes the session and returns it in one statement, so two
// concurrent refreshes cannot both succeed.
func (s *PostgresSessionStore) Consume(ctx context.Context, refreshToken string) (auth.Session, error) {
	var session auth.Session
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
            DELETE FROM sessions
            WHERE refresh_token = $1
            RETURNING refresh_token, user_id, expires_at
        `, refreshToken)
		var err error
		session, err = scanSession(row)
		return err
	})
	return session, err
}

// Delete removes a session by its refresh token.
func (s *PostgresSessionStore) Delete(ctx context.Context, refreshToken string) error {
	return s.withConn(ctx, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, refreshToken)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return auth.ErrSessionNotFound
		}
		return nil
	})
}

// DeleteExpired removes sessions that expired before the given instant.
func (s *PostgresSessionStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, before.UTC())
		if err != nil {
			return fmt.Errorf("delete expired sessions: %w", err)
		}
		removed = tag.RowsAffected()
		return nil
	})
	return removed, err
}

func scanSession(row pgx.Row) (auth.Session, error) {
	var session auth.Session
	if err := row.Scan(&session.RefreshToken, &session.UserID, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("scan session: %w", err)
	}
	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}

var _ auth.SessionStore = (*PostgresSessionStore)(nil)
