package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrResetTokenInvalid covers unknown, already used and expired reset tokens.
var ErrResetTokenInvalid = errors.New("reset token is invalid or expired")

// PasswordReset is a single-use token that lets the owner of Email choose a
// new password before ExpiresAt.
type PasswordReset struct {
	Token     string `db:"token" json:"-"`
	UserID    int64  `db:"user_id" json:"user_id"`
	Email     string `db:"-" json:"email"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	ExpiresAt int64  `db:"expires_at" json:"expires_at"`
}

// CreatePasswordReset issues a reset token for the account registered with
// email. Earlier outstanding tokens for the same account are revoked.
// Returns ErrNotFound when no account uses the address.
func (db *DB) CreatePasswordReset(email string, ttl time.Duration) (*PasswordReset, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("reset ttl must be positive, got %s", ttl)
	}
	u, err := db.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	now := db.clock.Now()
	pr := &PasswordReset{
		Token:     uuid.NewString(),
		UserID:    u.ID,
		Email:     *u.Email,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}

	tx, err := db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM password_resets WHERE user_id = ?", u.ID); err != nil {
		return nil, err
	}
	_, err = tx.Exec(
		"INSERT INTO password_resets (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		pr.Token, pr.UserID, pr.CreatedAt, pr.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert password reset: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return pr, nil
}

// ResetPassword consumes token and sets a new password. Every session of
// the account is revoked so old logins cannot outlive the reset.
func (db *DB) ResetPassword(token, password string) (*User, error) {
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return nil, &CredentialError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLen)}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), db.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	tx, err := db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var pr PasswordReset
	err = tx.Get(&pr, "SELECT token, user_id, created_at, expires_at FROM password_resets WHERE token = ?", token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResetTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec("DELETE FROM password_resets WHERE token = ?", token); err != nil {
		return nil, err
	}
	if db.clock.Now().Unix() >= pr.ExpiresAt {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, ErrResetTokenInvalid
	}

	if _, err := tx.Exec("UPDATE users SET password_hash = ? WHERE id = ?", string(hash), pr.UserID); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM sessions WHERE user_id = ?", pr.UserID); err != nil {
		return nil, err
	}
	var u User
	if err := tx.Get(&u, "SELECT "+userColumns+" FROM users WHERE id = ?", pr.UserID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &u, nil
}

// PurgeExpiredPasswordResets deletes expired reset tokens and returns how
// many were removed.
func (db *DB) PurgeExpiredPasswordResets() (int64, error) {
	res, err := db.Exec("DELETE FROM password_resets WHERE expires_at <= ?", db.clock.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
