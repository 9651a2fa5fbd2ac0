package api

import (
	"net/http"
	"time"

	"github.com/ghatsafe/ghatsafe/internal/version"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Model     string    `json:"model"`
	RunID     string    `json:"run_id,omitempty"`
	Schema    string    `json:"schema,omitempty"`
	Version   string    `json:"version"`
	GitSHA    string    `json:"git_sha"`
	Timestamp time.Time `json:"timestamp"`
}

// handleHealth answers 200 while the database is reachable. A missing model
// bundle is reported but does not fail the check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Database:  "connected",
		Model:     "missing",
		Version:   version.Version,
		GitSHA:    version.GitSHA,
		Timestamp: s.opts.Clock.Now().UTC(),
	}
	if b := s.opts.Predictor.Bundle(); b != nil {
		resp.Model = "loaded"
		resp.RunID = b.RunID
		resp.Schema = b.Schema.Name
	}
	status := http.StatusOK
	if err := s.opts.DB.Ping(); err != nil {
		resp.Status = "error"
		resp.Database = "disconnected"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
