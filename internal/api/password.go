package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ghatsafe/ghatsafe/internal/db"
	"github.com/ghatsafe/ghatsafe/internal/monitoring"
)

// ResetNotifier delivers a password reset token to the owner of email.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, email, token string, expires time.Time) error
}

// LogResetNotifier writes reset tokens to the server log for an operator to
// pass on. It is the default when no mail transport is configured.
type LogResetNotifier struct{}

func (LogResetNotifier) NotifyPasswordReset(_ context.Context, email, token string, expires time.Time) error {
	monitoring.Logf("[password-reset] email=%s token=%s expires=%s", email, token, expires.Format(time.RFC3339))
	return nil
}

type forgotRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

const forgotAccepted = "if the address is registered, a reset token has been sent"

// handleForgotPassword answers the same way whether or not the address is
// registered.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	pr, err := s.opts.DB.CreatePasswordReset(req.Email, s.opts.ResetTTL)
	var ce *db.CredentialError
	switch {
	case errors.As(err, &ce):
		badRequest(w, ce.Error())
		return
	case errors.Is(err, db.ErrNotFound):
		writeJSON(w, http.StatusAccepted, map[string]string{"status": forgotAccepted})
		return
	case err != nil:
		internalServerError(w, err)
		return
	}
	expires := time.Unix(pr.ExpiresAt, 0).UTC()
	if err := s.opts.Notifier.NotifyPasswordReset(r.Context(), pr.Email, pr.Token, expires); err != nil {
		monitoring.Logf("password reset delivery to %s failed: %v", pr.Email, err)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": forgotAccepted})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.Token == "" {
		badRequest(w, "token is required")
		return
	}
	_, err := s.opts.DB.ResetPassword(req.Token, req.Password)
	var ce *db.CredentialError
	switch {
	case errors.As(err, &ce):
		badRequest(w, ce.Error())
		return
	case errors.Is(err, db.ErrResetTokenInvalid):
		badRequest(w, err.Error())
		return
	case err != nil:
		internalServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}
