package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ghatsafe/ghatsafe/internal/db"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "ghatsafe_session"

type ctxKey int

const sessionKey ctxKey = iota

func sessionFrom(ctx context.Context) *db.Session {
	s, _ := ctx.Value(sessionKey).(*db.Session)
	return s
}

// tokenFrom returns the bearer token if present, otherwise the cookie.
func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFrom(r)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "login required")
			return
		}
		sess, err := s.opts.DB.GetSession(token)
		switch {
		case errors.Is(err, db.ErrNotFound), errors.Is(err, db.ErrSessionExpired):
			writeJSONError(w, http.StatusUnauthorized, "session expired or invalid")
			return
		case err != nil:
			internalServerError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

// requireAdmin must run after requireSession.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r.Context())
		if sess == nil || !s.isAdmin(sess.Username) {
			writeJSONError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isAdmin(username string) bool {
	for _, a := range s.opts.Admins {
		if a != "" && strings.EqualFold(a, username) {
			return true
		}
	}
	return false
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) startSession(w http.ResponseWriter, user *db.User, status int) {
	sess, err := s.opts.DB.CreateSession(user.ID, s.opts.SessionTTL)
	if err != nil {
		internalServerError(w, err)
		return
	}
	expires := time.Unix(sess.ExpiresAt, 0).UTC()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, sessionResponse{Token: sess.Token, Username: sess.Username, ExpiresAt: expires})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(w, r, &c); err != nil {
		badRequest(w, err.Error())
		return
	}
	user, err := s.opts.DB.RegisterUser(c.Username, c.Password, c.Email)
	var ce *db.CredentialError
	switch {
	case errors.As(err, &ce):
		badRequest(w, ce.Error())
		return
	case errors.Is(err, db.ErrUserExists), errors.Is(err, db.ErrEmailExists):
		writeJSONError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		internalServerError(w, err)
		return
	}
	s.startSession(w, user, http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(w, r, &c); err != nil {
		badRequest(w, err.Error())
		return
	}
	user, err := s.opts.DB.Authenticate(c.Username, c.Password)
	if errors.Is(err, db.ErrInvalidCredentials) {
		writeJSONError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		internalServerError(w, err)
		return
	}
	s.startSession(w, user, http.StatusOK)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := tokenFrom(r); token != "" {
		if err := s.opts.DB.DeleteSession(token); err != nil {
			internalServerError(w, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    sess.UserID,
		"username":   sess.Username,
		"admin":      s.isAdmin(sess.Username),
		"expires_at": time.Unix(sess.ExpiresAt, 0).UTC(),
	})
}
