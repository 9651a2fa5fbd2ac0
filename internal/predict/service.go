// Package predict runs the severity pipeline for one request: time
// normalization, category encoding, validation, geometry lookup,
// vectorization, scaling, classification and bucketing.
package predict

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ghatsafe/ghatsafe/internal/artifact"
	"github.com/ghatsafe/ghatsafe/internal/classifier"
	"github.com/ghatsafe/ghatsafe/internal/dataset"
	"github.com/ghatsafe/ghatsafe/internal/features"
	"github.com/ghatsafe/ghatsafe/internal/monitoring"
	"github.com/ghatsafe/ghatsafe/internal/severity"
	"github.com/ghatsafe/ghatsafe/internal/timeutil"
)

// ErrArtifactMissing is returned while no complete bundle is loaded.
var ErrArtifactMissing = artifact.ErrArtifactMissing

// ErrServiceUnavailable is returned when the loaded model fails to produce
// a usable answer. Callers may retry; no severity is fabricated.
var ErrServiceUnavailable = errors.New("prediction service unavailable")

// Options configures a Service.
type Options struct {
	Geometry    features.GeometryLookup
	Hours       timeutil.HourNormalizer
	MaxVehicles int
	Drift       *monitoring.DriftCounter
}

// Service predicts severity from raw form input. It is safe for concurrent
// use; the bundle is read without locks and replaced atomically.
type Service struct {
	bundle atomic.Pointer[artifact.Bundle]
	opts   Options
}

// NewService returns a Service with no bundle loaded.
func NewService(opts Options) *Service {
	return &Service{opts: opts}
}

// Swap installs b as the active bundle. Passing nil unloads the current one.
func (s *Service) Swap(b *artifact.Bundle) error {
	if b != nil {
		if err := b.Check(); err != nil {
			return err
		}
	}
	s.bundle.Store(b)
	return nil
}

// Bundle returns the active bundle, or nil.
func (s *Service) Bundle() *artifact.Bundle {
	return s.bundle.Load()
}

// Ready reports whether a bundle is loaded.
func (s *Service) Ready() bool {
	return s.bundle.Load() != nil
}

// Prediction is the outcome of one request.
type Prediction struct {
	Severity       severity.Result         `json:"severity"`
	Hour           int                     `json:"hour"`
	Slope          float64                 `json:"slope"`
	Radius         float64                 `json:"radius"`
	GeometrySource features.GeometrySource `json:"geometry_source"`
	Substituted    bool                    `json:"substituted"`
	Trace          features.Trace          `json:"trace"`
	RunID          string                  `json:"run_id"`
	Simulated      bool                    `json:"simulated,omitempty"`
}

// Predict runs the full pipeline on in. A bad vehicle count returns a
// *features.ValidationError before the model is consulted.
func (s *Service) Predict(in features.RawInput) (*Prediction, error) {
	b := s.bundle.Load()
	if b == nil {
		return nil, fmt.Errorf("%w: no model bundle loaded", ErrArtifactMissing)
	}

	vz := &features.Vectorizer{
		Schema:      b.Schema,
		Vocab:       b.Vocab,
		Geometry:    s.opts.Geometry,
		Hours:       s.opts.Hours,
		MaxVehicles: s.opts.MaxVehicles,
		OnUnknown:   s.opts.Drift.Observe,
	}
	row, tr, err := vz.Build(in)
	if err != nil {
		return nil, err
	}

	scaled, err := b.Scaler.Transform(b.Schema.Vector(row))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	raw, err := classify(b.Model, scaled)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	result, err := interpret(b.Model.Output(), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	return &Prediction{
		Severity:       result,
		Hour:           row.Hour,
		Slope:          row.Slope,
		Radius:         row.Radius,
		GeometrySource: tr.GeometrySource,
		Substituted:    tr.Substituted(),
		Trace:          tr,
		RunID:          b.RunID,
	}, nil
}

// classify calls the model, turning a panic into an error.
func classify(m classifier.Classifier, x []float64) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	return m.Predict(x)
}

func interpret(kind classifier.OutputKind, raw float64) (severity.Result, error) {
	switch kind {
	case classifier.OutputClass:
		return severity.FromClass(int(raw))
	case classifier.OutputCasualties:
		return severity.FromCasualties(raw)
	default:
		return severity.Result{}, fmt.Errorf("unknown model output %q", kind)
	}
}

// LocationOption is one entry of the location dropdown.
type LocationOption struct {
	Value string `json:"value"`
	Short string `json:"short"`
}

// Vocabulary lists the values the loaded model was trained on.
type Vocabulary struct {
	Locations []LocationOption `json:"locations"`
	Weather   []string         `json:"weather"`
	Road      []string         `json:"road"`
	RunID     string           `json:"run_id"`
}

// Vocabulary returns the dropdown values of the active bundle.
func (s *Service) Vocabulary() (*Vocabulary, error) {
	b := s.bundle.Load()
	if b == nil {
		return nil, fmt.Errorf("%w: no model bundle loaded", ErrArtifactMissing)
	}
	v := &Vocabulary{
		Weather: b.Vocab.Weather.Values(),
		Road:    b.Vocab.Road.Values(),
		RunID:   b.RunID,
	}
	for _, loc := range b.Vocab.Location.Values() {
		v.Locations = append(v.Locations, LocationOption{Value: loc, Short: dataset.ShortName(loc)})
	}
	return v, nil
}
