package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrSessionExpired = errors.New("session expired")

// Session is a login token bound to a user.
type Session struct {
	Token     string `db:"token" json:"token"`
	UserID    int64  `db:"user_id" json:"user_id"`
	Username  string `db:"username" json:"username"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	ExpiresAt int64  `db:"expires_at" json:"expires_at"`
}

// CreateSession issues a new token for userID valid for ttl.
func (db *DB) CreateSession(userID int64, ttl time.Duration) (*Session, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	now := db.clock.Now()
	s := &Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	_, err := db.Exec(
		"INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		s.Token, s.UserID, s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	u, err := db.GetUser(userID)
	if err != nil {
		return nil, err
	}
	s.Username = u.Username
	return s, nil
}

// GetSession resolves token. An expired session is deleted and reported as
// ErrSessionExpired.
func (db *DB) GetSession(token string) (*Session, error) {
	var s Session
	err := db.Get(&s, `
		SELECT s.token, s.user_id, u.username, s.created_at, s.expires_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if db.clock.Now().Unix() >= s.ExpiresAt {
		if err := db.DeleteSession(token); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}
	return &s, nil
}

// DeleteSession removes token. Deleting an unknown token is not an error.
func (db *DB) DeleteSession(token string) error {
	_, err := db.Exec("DELETE FROM sessions WHERE token = ?", token)
	return err
}

// PurgeExpiredSessions deletes every expired session and returns how many
// were removed.
func (db *DB) PurgeExpiredSessions() (int64, error) {
	res, err := db.Exec("DELETE FROM sessions WHERE expires_at <= ?", db.clock.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
