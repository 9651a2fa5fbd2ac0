package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinUsernameLen = 3
	MinPasswordLen = 6

	defaultBcryptCost = bcrypt.DefaultCost
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUserExists         = errors.New("username already taken")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// CredentialError reports a username or password that fails the length rules.
type CredentialError struct {
	Field  string
	Reason string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// User is an account. The password hash never leaves this package.
type User struct {
	ID           int64   `db:"id" json:"id"`
	Username     string  `db:"username" json:"username"`
	PasswordHash string  `db:"password_hash" json:"-"`
	Email        *string `db:"email" json:"email,omitempty"`
	CreatedAt    int64   `db:"created_at" json:"created_at"`
}

const userColumns = "id, username, password_hash, email, created_at"

func checkCredentials(username, password string) error {
	if utf8.RuneCountInString(username) < MinUsernameLen {
		return &CredentialError{Field: "username", Reason: fmt.Sprintf("must be at least %d characters", MinUsernameLen)}
	}
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return &CredentialError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLen)}
	}
	return nil
}

// NormalizeEmail trims and lower-cases a bare address such as
// "asha@example.org". Display-name forms are rejected.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &CredentialError{Field: "email", Reason: "must be a plain address like name@example.org"}
	}
	return strings.ToLower(email), nil
}

// CreateUser registers a new account without an email address.
func (db *DB) CreateUser(username, password string) (*User, error) {
	return db.RegisterUser(username, password, "")
}

// RegisterUser registers a new account. Usernames are trimmed and compared
// case-insensitively. The email is optional; when set it must be unique and
// enables password reset.
func (db *DB) RegisterUser(username, password, email string) (*User, error) {
	username = strings.TrimSpace(username)
	if err := checkCredentials(username, password); err != nil {
		return nil, err
	}
	var emailCol *string
	if strings.TrimSpace(email) != "" {
		normalized, err := NormalizeEmail(email)
		if err != nil {
			return nil, err
		}
		var taken int
		if err := db.Get(&taken, "SELECT COUNT(*) FROM users WHERE email = ?", normalized); err != nil {
			return nil, err
		}
		if taken > 0 {
			return nil, ErrEmailExists
		}
		emailCol = &normalized
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), db.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{Username: username, PasswordHash: string(hash), Email: emailCol, CreatedAt: db.clock.Now().Unix()}
	res, err := db.Exec(
		`INSERT INTO users (username, password_hash, email, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (username) DO NOTHING`,
		u.Username, u.PasswordHash, u.Email, u.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "users.email") {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrUserExists
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser looks an account up by id.
func (db *DB) GetUser(id int64) (*User, error) {
	var u User
	err := db.Get(&u, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) userByName(username string) (*User, error) {
	var u User
	err := db.Get(&u, "SELECT "+userColumns+" FROM users WHERE username = ?", strings.TrimSpace(username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail looks an account up by its registered email address.
func (db *DB) GetUserByEmail(email string) (*User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	var u User
	err = db.Get(&u, "SELECT "+userColumns+" FROM users WHERE email = ?", normalized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Authenticate checks username and password. Unknown users and wrong
// passwords both return ErrInvalidCredentials.
func (db *DB) Authenticate(username, password string) (*User, error) {
	u, err := db.userByName(username)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// EnsureUser creates the account if it does not already exist. Used to seed
// the admin login at startup; an existing password is left untouched.
func (db *DB) EnsureUser(username, password string) (*User, bool, error) {
	u, err := db.userByName(username)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	u, err = db.CreateUser(username, password)
	if errors.Is(err, ErrUserExists) {
		u, err = db.userByName(username)
		return u, false, err
	}
	return u, err == nil, err
}

// CountUsers returns the number of registered accounts.
func (db *DB) CountUsers() (int, error) {
	var n int
	err := db.Get(&n, "SELECT COUNT(*) FROM users")
	return n, err
}
