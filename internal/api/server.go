// Package api serves the severity predictor, accounts, incident reports and
// the dashboard over HTTP.
package api

import (
	"log"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/ghatsafe/ghatsafe/internal/artifact"
	"github.com/ghatsafe/ghatsafe/internal/dataset"
	"github.com/ghatsafe/ghatsafe/internal/db"
	"github.com/ghatsafe/ghatsafe/internal/features"
	"github.com/ghatsafe/ghatsafe/internal/monitoring"
	"github.com/ghatsafe/ghatsafe/internal/predict"
	"github.com/ghatsafe/ghatsafe/internal/timeutil"
	"github.com/ghatsafe/ghatsafe/internal/weather"
)

const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Options wires a Server to its collaborators. DB and Predictor are
// required; everything else is optional.
type Options struct {
	DB        *db.DB
	Predictor *predict.Service
	// Simulator enables POST /api/predict/simulate when set.
	Simulator *predict.Simulator
	Weather   *weather.Client
	Drift     *monitoring.DriftCounter
	// Dataset backs the dashboard, road catalogue and drift reconciliation.
	Dataset *dataset.Table
	// Geometry is used for the road catalogue.
	Geometry features.GeometryLookup
	// Artifacts and Schema let admins reload the model bundle at runtime.
	Artifacts artifact.Store
	Schema    features.Schema

	Hours      timeutil.HourNormalizer
	SessionTTL time.Duration
	// ResetTTL bounds password reset tokens; Notifier delivers them.
	ResetTTL time.Duration
	Notifier ResetNotifier
	// Admins lists the usernames allowed to reload the model and use the
	// /debug/ routes.
	Admins      []string
	CORSOrigins []string
	// AdminRoutes mounts the /debug/ SQL console and backup handlers.
	AdminRoutes bool
	Clock       timeutil.Clock
}

// Server holds the HTTP handlers.
type Server struct {
	opts    Options
	dataset atomic.Pointer[dataset.Table]
}

// NewServer returns a Server. Zero durations and a nil clock get defaults.
func NewServer(opts Options) *Server {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	if opts.Notifier == nil {
		opts.Notifier = LogResetNotifier{}
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Drift == nil {
		opts.Drift = monitoring.NewDriftCounter()
	}
	if opts.Weather == nil {
		opts.Weather = &weather.Client{}
	}
	s := &Server{opts: opts}
	if opts.Dataset != nil {
		s.dataset.Store(opts.Dataset)
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// Router builds the full route table.
func (s *Server) Router() (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/api/register", s.handleRegister)
	r.Post("/api/login", s.handleLogin)
	r.Post("/api/logout", s.handleLogout)
	r.Post("/api/password/forgot", s.handleForgotPassword)
	r.Post("/api/password/reset", s.handleResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Get("/api/me", s.handleMe)
		r.Post("/api/predict", s.handlePredict)
		r.Post("/api/predict/simulate", s.handleSimulate)
		r.Get("/api/vocabulary", s.handleVocabulary)
		r.Get("/api/roads", s.handleRoads)
		r.Get("/api/weather", s.handleWeather)
		r.Get("/api/drift", s.handleDrift)
		r.With(s.requireAdmin).Post("/api/reload", s.handleReload)

		r.Get("/api/dashboard", s.handleDashboard)
		r.Get("/dashboard", s.handleDashboardPage)
		r.Get("/dashboard/severity.png", s.handleSeverityPNG)

		r.Route("/api/incidents", func(r chi.Router) {
			r.Get("/", s.listIncidents)
			r.Post("/", s.createIncident)
			r.Get("/{id}", s.getIncident)
			r.Delete("/{id}", s.deleteIncident)
		})
	})

	if s.opts.AdminRoutes {
		mux := http.NewServeMux()
		if err := s.opts.DB.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
		r.Group(func(r chi.Router) {
			r.Use(s.requireSession, s.requireAdmin)
			r.Handle("/debug/*", mux)
		})
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r, nil
}

// SetDataset replaces the dataset behind the dashboard and drift report.
func (s *Server) SetDataset(t *dataset.Table) {
	s.dataset.Store(t)
}

func (s *Server) records() []dataset.Record {
	if t := s.dataset.Load(); t != nil {
		return t.Records
	}
	return nil
}
