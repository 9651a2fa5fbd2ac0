// Package testutil provides shared fixtures for package tests: a small
// accident dataset, a bundle trained on it, and HTTP assertion helpers.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ghatsafe/ghatsafe/internal/artifact"
	"github.com/ghatsafe/ghatsafe/internal/classifier"
	"github.com/ghatsafe/ghatsafe/internal/dataset"
	"github.com/ghatsafe/ghatsafe/internal/features"
	"github.com/ghatsafe/ghatsafe/internal/training"
)

// RunID tags every artifact built by Bundle.
const RunID = "test-run"

func fptr(v float64) *float64 { return &v }

// Records returns a deterministic dataset covering every tier, three
// locations, three weathers and three road conditions.
func Records() []dataset.Record {
	type loc struct {
		name     string
		lat, lon float64
	}
	locs := []loc{
		{"Agumbe Ghat", 13.50, 75.09},
		{"Kasara Ghat", 19.65, 73.48},
		{"Rohtang Pass", 32.37, 77.24},
	}
	weathers := []string{"Clear", "Foggy", "Rainy"}
	roads := []string{"Dry", "Under Construction", "Wet"}
	times := []string{"02:15:00 PM", "07:30:00 AM", "11:45:00 PM", "05:10:00 AM"}
	causes := []string{"Speeding", "Overtaking", "Weather", "Driver Error"}

	var out []dataset.Record
	for i := 0; i < 90; i++ {
		l := locs[i%3]
		w := (i / 3) % 3
		r := (i / 9) % 3
		vehicles := 1 + i%5
		// Severity grows with bad weather, bad roads and more vehicles.
		casualties := w + 2*r + vehicles - 1
		out = append(out, dataset.Record{
			Location:   l.name,
			Latitude:   fptr(l.lat),
			Longitude:  fptr(l.lon),
			Time:       times[i%len(times)],
			Weather:    weathers[w],
			Road:       roads[r],
			Vehicles:   vehicles,
			Casualties: casualties,
			Cause:      causes[i%len(causes)],
		})
	}
	return out
}

// Bundle trains a small forest on Records with the base schema.
func Bundle(t testing.TB) *artifact.Bundle {
	t.Helper()
	return BundleWithSchema(t, features.Base)
}

// BundleWithSchema is Bundle for an explicit schema.
func BundleWithSchema(t testing.TB, schema features.Schema) *artifact.Bundle {
	t.Helper()
	records := Records()
	b, _, err := training.Fit(records, training.Options{
		RunID:    RunID,
		Schema:   schema,
		Geometry: dataset.NewGeometryTable(records),
		Seed:     42,
		Forest:   classifier.TrainOptions{Trees: 10, MaxDepth: 8, Balanced: true},
	})
	if err != nil {
		t.Fatalf("training fixture bundle: %v", err)
	}
	return b
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewJSONRequest builds a test request with a JSON body.
func NewJSONRequest(method, path string, body any) *http.Request {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		r = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeJSON decodes the recorder body into v or fails the test.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}
