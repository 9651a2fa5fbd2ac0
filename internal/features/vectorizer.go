package features

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ghatsafe/ghatsafe/internal/timeutil"
	"github.com/ghatsafe/ghatsafe/internal/vocab"
)

// DefaultMaxVehicles bounds the vehicle count when none is configured.
const DefaultMaxVehicles = 100

// RawInput is the unvalidated form a user or a dataset row supplies.
type RawInput struct {
	Time         string `json:"time"`
	Location     string `json:"location"`
	Weather      string `json:"weather"`
	Road         string `json:"road"`
	VehicleCount string `json:"vehicle_count"`
}

// ValidationError reports a numeric input that cannot be used.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Resolution records how one categorical input was encoded.
type Resolution struct {
	Input   string        `json:"input"`
	Value   string        `json:"value"`
	Code    int           `json:"code"`
	Outcome vocab.Outcome `json:"outcome"`
}

// Trace explains how a row was derived from its RawInput.
type Trace struct {
	HourParsed     bool           `json:"hour_parsed"`
	Location       Resolution     `json:"location"`
	Weather        Resolution     `json:"weather"`
	Road           Resolution     `json:"road"`
	Geometry       Geometry       `json:"geometry"`
	GeometrySource GeometrySource `json:"geometry_source"`
}

// Substituted reports whether any categorical input fell back to a default.
func (t Trace) Substituted() bool {
	return t.Location.Outcome == vocab.Unknown ||
		t.Weather.Outcome == vocab.Unknown ||
		t.Road.Outcome == vocab.Unknown
}

// Vectorizer builds feature rows. The zero value is not usable; Vocab must
// be set.
type Vectorizer struct {
	Schema      Schema
	Vocab       vocab.Set
	Geometry    GeometryLookup
	Hours       timeutil.HourNormalizer
	MaxVehicles int

	// OnUnknown, if set, is called for every categorical value that was
	// replaced by its vocabulary default.
	OnUnknown func(feature, value, substitute string)
}

// Build validates in and encodes it into a Row. Bad numeric input yields a
// *ValidationError; unknown categories are substituted, not rejected.
func (v *Vectorizer) Build(in RawInput) (Row, Trace, error) {
	var tr Trace

	count, err := v.vehicleCount(in.VehicleCount)
	if err != nil {
		return Row{}, tr, err
	}

	row := Row{VehicleCount: count}
	row.Hour, tr.HourParsed = v.Hours.Resolve(in.Time)

	if tr.Location, err = v.encode(vocab.Location, in.Location); err != nil {
		return Row{}, tr, err
	}
	if tr.Weather, err = v.encode(vocab.Weather, in.Weather); err != nil {
		return Row{}, tr, err
	}
	if tr.Road, err = v.encode(vocab.Road, in.Road); err != nil {
		return Row{}, tr, err
	}
	row.LocationCode = tr.Location.Code
	row.WeatherCode = tr.Weather.Code
	row.RoadCode = tr.Road.Code

	tr.Geometry, tr.GeometrySource = DefaultGeometry, GeometryDefault
	if v.Geometry != nil {
		// An unknown location keeps its own name so the lookup falls through
		// to the dataset mean instead of borrowing the default's geometry.
		name := tr.Location.Value
		if tr.Location.Outcome == vocab.Unknown {
			name = in.Location
		}
		tr.Geometry, tr.GeometrySource = v.Geometry.Geometry(name)
	}
	row.Slope = tr.Geometry.Slope
	row.Radius = tr.Geometry.Radius

	return row, tr, nil
}

// Vector is Build followed by Schema.Vector.
func (v *Vectorizer) Vector(in RawInput) ([]float64, Trace, error) {
	row, tr, err := v.Build(in)
	if err != nil {
		return nil, tr, err
	}
	return v.Schema.Vector(row), tr, nil
}

func (v *Vectorizer) vehicleCount(raw string) (int, error) {
	max := v.MaxVehicles
	if max <= 0 {
		max = DefaultMaxVehicles
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, &ValidationError{Field: string(VehicleCount), Reason: "is required"}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ValidationError{Field: string(VehicleCount), Reason: fmt.Sprintf("%q is not a whole number", raw)}
	}
	if n < 1 || n > max {
		return 0, &ValidationError{Field: string(VehicleCount), Reason: fmt.Sprintf("must be between 1 and %d", max)}
	}
	return n, nil
}

func (v *Vectorizer) encode(feature, input string) (Resolution, error) {
	voc, err := v.Vocab.Get(feature)
	if err != nil {
		return Resolution{}, err
	}
	code, outcome := voc.Encode(input)
	value, _ := voc.Value(code)
	if outcome == vocab.Unknown && v.OnUnknown != nil {
		v.OnUnknown(feature, input, value)
	}
	return Resolution{Input: input, Value: value, Code: code, Outcome: outcome}, nil
}
