package api

import (
	"bytes"
	"net/http"

	"github.com/ghatsafe/ghatsafe/internal/dashboard"
	"github.com/ghatsafe/ghatsafe/internal/dataset"
)

// summary aggregates the historical dataset together with reported incidents.
func (s *Server) summary() (dashboard.Summary, error) {
	records := append([]dataset.Record(nil), s.records()...)
	reported, err := s.opts.DB.IncidentRecords()
	if err != nil {
		return dashboard.Summary{}, err
	}
	records = append(records, reported...)
	return dashboard.Build(records, s.opts.Hours)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := s.summary()
	if err != nil {
		internalServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	sum, err := s.summary()
	if err != nil {
		internalServerError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := dashboard.RenderPage(&buf, sum); err != nil {
		internalServerError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSeverityPNG(w http.ResponseWriter, r *http.Request) {
	sum, err := s.summary()
	if err != nil {
		internalServerError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := dashboard.WriteSeverityPNG(&buf, sum); err != nil {
		internalServerError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
