package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ghatsafe/ghatsafe/internal/db"
	"github.com/ghatsafe/ghatsafe/internal/severity"
)

type incidentRequest struct {
	Location   string `json:"location"`
	Time       string `json:"time"`
	Weather    string `json:"weather"`
	Road       string `json:"road"`
	Vehicles   int    `json:"vehicles"`
	Casualties int    `json:"casualties"`
	Cause      string `json:"cause"`
	Notes      string `json:"notes"`
}

func (s *Server) createIncident(w http.ResponseWriter, r *http.Request) {
	var req incidentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	in := db.Incident{
		Location:   req.Location,
		Time:       req.Time,
		Weather:    req.Weather,
		Road:       req.Road,
		Vehicles:   req.Vehicles,
		Casualties: req.Casualties,
		Cause:      req.Cause,
		Notes:      req.Notes,
	}
	if sess := sessionFrom(r.Context()); sess != nil {
		in.ReportedBy = &sess.UserID
	}
	created, err := s.opts.DB.CreateIncident(in)
	var ie *db.IncidentError
	if errors.As(err, &ie) {
		badRequest(w, ie.Error())
		return
	}
	if err != nil {
		internalServerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := db.IncidentFilter{Location: q.Get("location")}
	if v := q.Get("severity"); v != "" {
		tier, err := severity.Parse(v)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		f.Severity = tier
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	incidents, err := s.opts.DB.ListIncidents(f)
	if err != nil {
		internalServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, incidents)
}

func (s *Server) getIncident(w http.ResponseWriter, r *http.Request) {
	in, err := s.opts.DB.GetIncident(chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "incident not found")
		return
	}
	if err != nil {
		internalServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) deleteIncident(w http.ResponseWriter, r *http.Request) {
	err := s.opts.DB.DeleteIncident(chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "incident not found")
		return
	}
	if err != nil {
		internalServerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
