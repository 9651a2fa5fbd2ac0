package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ghatsafe/ghatsafe/internal/artifact"
	"github.com/ghatsafe/ghatsafe/internal/dataset"
	"github.com/ghatsafe/ghatsafe/internal/features"
	"github.com/ghatsafe/ghatsafe/internal/monitoring"
	"github.com/ghatsafe/ghatsafe/internal/predict"
	"github.com/ghatsafe/ghatsafe/internal/vocab"
	"github.com/ghatsafe/ghatsafe/internal/weather"
)

type predictRequest struct {
	Time         string     `json:"time"`
	Location     string     `json:"location"`
	Weather      string     `json:"weather"`
	Road         string     `json:"road"`
	VehicleCount flexString `json:"vehicle_count"`
}

type predictResponse struct {
	*predict.Prediction
	// Weather is set when the condition was looked up rather than supplied.
	Weather *weather.Report `json:"weather,omitempty"`
}

// readPredictRequest decodes the form and fills an empty weather field from
// the weather client.
func (s *Server) readPredictRequest(w http.ResponseWriter, r *http.Request) (features.RawInput, *weather.Report, bool) {
	var req predictRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return features.RawInput{}, nil, false
	}
	in := features.RawInput{
		Time:         req.Time,
		Location:     req.Location,
		Weather:      req.Weather,
		Road:         req.Road,
		VehicleCount: string(req.VehicleCount),
	}
	var report *weather.Report
	if strings.TrimSpace(in.Weather) == "" && strings.TrimSpace(in.Location) != "" {
		rep := s.opts.Weather.Current(r.Context(), in.Location)
		in.Weather = rep.Condition
		report = &rep
	}
	return in, report, true
}

func (s *Server) writePrediction(w http.ResponseWriter, p *predict.Prediction, err error, report *weather.Report) {
	var ve *features.ValidationError
	switch {
	case errors.As(err, &ve):
		badRequest(w, ve.Error())
	case errors.Is(err, predict.ErrArtifactMissing):
		writeJSONError(w, http.StatusServiceUnavailable, "artifacts missing")
	case errors.Is(err, predict.ErrServiceUnavailable):
		monitoring.Logf("predict: %v", err)
		w.Header().Set("Retry-After", "5")
		writeJSONError(w, http.StatusServiceUnavailable, "prediction service unavailable, try again")
	case err != nil:
		internalServerError(w, err)
	default:
		writeJSON(w, http.StatusOK, predictResponse{Prediction: p, Weather: report})
	}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	in, report, ok := s.readPredictRequest(w, r)
	if !ok {
		return
	}
	p, err := s.opts.Predictor.Predict(in)
	s.writePrediction(w, p, err, report)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if s.opts.Simulator == nil {
		writeJSONError(w, http.StatusNotFound, "simulation mode is not enabled")
		return
	}
	in, report, ok := s.readPredictRequest(w, r)
	if !ok {
		return
	}
	p, err := s.opts.Simulator.Predict(in)
	s.writePrediction(w, p, err, report)
}

func (s *Server) handleVocabulary(w http.ResponseWriter, r *http.Request) {
	v, err := s.opts.Predictor.Vocabulary()
	if errors.Is(err, predict.ErrArtifactMissing) {
		writeJSONError(w, http.StatusServiceUnavailable, "artifacts missing")
		return
	}
	if err != nil {
		internalServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRoads(w http.ResponseWriter, r *http.Request) {
	roads := dataset.FeaturedRoads(s.records(), s.opts.Geometry)
	if roads == nil {
		roads = []dataset.Road{}
	}
	writeJSON(w, http.StatusOK, roads)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	location := strings.TrimSpace(r.URL.Query().Get("location"))
	if location == "" {
		badRequest(w, "location is required")
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Weather.Current(r.Context(), location))
}

type driftResponse struct {
	Unknown   []monitoring.DriftEntry `json:"unknown"`
	Totals    map[string]int          `json:"totals"`
	Reconcile []vocab.Drift           `json:"reconcile,omitempty"`
	RunID     string                  `json:"run_id,omitempty"`
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	resp := driftResponse{
		Unknown: s.opts.Drift.Snapshot(),
		Totals:  map[string]int{},
	}
	for _, f := range vocab.Features() {
		resp.Totals[f] = s.opts.Drift.Total(f)
	}
	if b := s.opts.Predictor.Bundle(); b != nil {
		resp.RunID = b.RunID
		if records := s.records(); len(records) > 0 {
			resp.Reconcile = []vocab.Drift{
				vocab.Reconcile(b.Vocab.Location, dataset.LocationValues(records)),
				vocab.Reconcile(b.Vocab.Weather, dataset.WeatherValues(records)),
				vocab.Reconcile(b.Vocab.Road, dataset.RoadValues(records)),
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReload loads the bundle from the artifact store and swaps it in.
// On failure the previous bundle stays active.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.opts.Artifacts == nil {
		writeJSONError(w, http.StatusNotFound, "no artifact store configured")
		return
	}
	b, err := artifact.LoadBundle(s.opts.Artifacts, s.opts.Schema)
	if err == nil {
		err = s.opts.Predictor.Swap(b)
	}
	switch {
	case errors.Is(err, artifact.ErrArtifactMissing):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, artifact.ErrMismatch):
		writeJSONError(w, http.StatusConflict, err.Error())
	case err != nil:
		internalServerError(w, err)
	default:
		monitoring.Logf("reloaded model bundle run_id=%s", b.RunID)
		writeJSON(w, http.StatusOK, map[string]string{"run_id": b.RunID})
	}
}
