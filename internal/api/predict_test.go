package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghatsafe/ghatsafe/internal/artifact"
	"github.com/ghatsafe/ghatsafe/internal/dataset"
	"github.com/ghatsafe/ghatsafe/internal/features"
	"github.com/ghatsafe/ghatsafe/internal/predict"
	"github.com/ghatsafe/ghatsafe/internal/severity"
	"github.com/ghatsafe/ghatsafe/internal/testutil"
	"github.com/ghatsafe/ghatsafe/internal/vocab"
	"github.com/ghatsafe/ghatsafe/internal/weather"
)

var rohtangForm = map[string]interface{}{
	"time":          "02:15 PM",
	"location":      "Rohtang Pass",
	"weather":       "Foggy",
	"road":          "Wet",
	"vehicle_count": 3,
}

type predictResult struct {
	Severity       severity.Result         `json:"severity"`
	Hour           int                     `json:"hour"`
	Slope          float64                 `json:"slope"`
	Radius         float64                 `json:"radius"`
	GeometrySource features.GeometrySource `json:"geometry_source"`
	Substituted    bool                    `json:"substituted"`
	RunID          string                  `json:"run_id"`
	Simulated      bool                    `json:"simulated"`
	Weather        *weather.Report         `json:"weather"`
}

func TestPredict(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(testutil.NewJSONRequest(http.MethodPost, "/api/predict", rohtangForm))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var got predictResult
	testutil.DecodeJSON(t, w, &got)
	assert.Contains(t, severity.Tiers(), got.Severity.Tier)
	assert.Equal(t, got.Severity.Tier.Label(), got.Severity.Label)
	assert.Equal(t, 14, got.Hour)
	assert.Equal(t, 20.0, got.Slope)
	assert.Equal(t, 100.0, got.Radius)
	assert.Equal(t, features.GeometryLocation, got.GeometrySource)
	assert.False(t, got.Substituted)
	assert.Equal(t, testutil.RunID, got.RunID)
	assert.Nil(t, got.Weather)
}

func TestPredict_StringVehicleCountMatchesNumber(t *testing.T) {
	env := newTestEnv(t)
	asString := map[string]interface{}{}
	for k, v := range rohtangForm {
		asString[k] = v
	}
	asString["vehicle_count"] = "3"

	a := env.do(testutil.NewJSONRequest(http.MethodPost, "/api/predict", rohtangForm))
	b := env.do(testutil.NewJSONRequest(http.MethodPost, "/api/predict", asString))
	testutil.AssertStatusCode(t, b.Code, http.StatusOK)
	assert.JSONEq(t, a.Body.String(), b.Body.String())
}

func TestPredict_UnknownLocationCountsDrift(t *testing.T) {
	env := newTestEnv(t)
	form := map[string]interface{}{"time": "09:00", "location": "Atlantis", "weather": "Foggy", "road": "Wet", "vehicle_count": "2"}
	w := env.do(testutil.NewJSONRequest(http.MethodPost, "/api/predict", form))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var got predictResult
	testutil.DecodeJSON(t, w, &got)
	assert.True(t, got.Substituted)
	assert.Equal(t, features.GeometryDataset, got.GeometrySource)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/drift", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var drift driftResponse
	testutil.DecodeJSON(t, w, &drift)
	assert.Equal(t, 1, drift.Totals[vocab.Location])
	require.Len(t, drift.Unknown, 1)
	assert.Equal(t, "Atlantis", drift.Unknown[0].Value)
	require.Len(t, drift.Reconcile, 3)
	for _, d := range drift.Reconcile {
		assert.Empty(t, d.Missing, d.Feature)
	}
}

func TestPredict_BadVehicleCount(t *testing.T) {
	env := newTestEnv(t)
	for _, count := range []interface{}{"abc", 0, "", 101} {
		form := map[string]interface{}{"time": "09:00", "location": "Rohtang Pass", "weather": "Foggy", "road": "Wet", "vehicle_count": count}
		w := env.do(testutil.NewJSONRequest(http.MethodPost, "/api/predict", form))
		testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
		var body map[string]string
		testutil.DecodeJSON(t, w, &body)
		assert.Contains(t, body["error"], "vehicle_count", "count %v", count)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewBufferString("{not json"))
	w := env.do(req)
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
}

func TestPredict_ArtifactsMissing(t *testing.T) {
	env := newTestEnv(t, withoutBundle())
	w := env.do(testutil.NewJSONRequest(http.MethodPost, "/api/predict", rohtangForm))
	testutil.AssertStatusCode(t, w.Code, http.StatusServiceUnavailable)
	var body map[string]string
	testutil.DecodeJSON(t, w, &body)
	assert.Equal(t, "artifacts missing", body["error"])

	// Other routes keep working.
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/vocabulary", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusServiceUnavailable)
}

func TestPredict_EmptyWeatherUsesWeatherClient(t *testing.T) {
	env := newTestEnv(t)
	form := map[string]interface{}{"time": "09:00", "location": "Rohtang Pass", "road": "Wet", "vehicle_count": 2}
	w := env.do(testutil.NewJSONRequest(http.MethodPost, "/api/predict", form))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var got predictResult
	testutil.DecodeJSON(t, w, &got)
	require.NotNil(t, got.Weather)
	assert.Equal(t, "Rainy", got.Weather.Condition)
	assert.Equal(t, weather.SourceFallback, got.Weather.Source)
	assert.False(t, got.Substituted, "fallback weather is in the vocabulary")
}

func TestSimulate(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(testutil.NewJSONRequest(http.MethodPost, "/api/predict/simulate", rohtangForm))
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)

	env = newTestEnv(t, func(o *Options) { o.Simulator = predict.NewSimulator(o.Predictor, 7) })
	w = env.do(testutil.NewJSONRequest(http.MethodPost, "/api/predict/simulate", rohtangForm))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var got predictResult
	testutil.DecodeJSON(t, w, &got)
	assert.True(t, got.Simulated)
	assert.InDelta(t, 14, got.Hour, 2)
}

func TestVocabulary(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/vocabulary", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var got predict.Vocabulary
	testutil.DecodeJSON(t, w, &got)
	assert.Equal(t, []predict.LocationOption{
		{Value: "Agumbe Ghat", Short: "Agumbe"},
		{Value: "Kasara Ghat", Short: "Kasara"},
		{Value: "Rohtang Pass", Short: "Rohtang"},
	}, got.Locations)
	assert.Equal(t, []string{"Clear", "Foggy", "Rainy"}, got.Weather)
	assert.Equal(t, []string{"Dry", "Under Construction", "Wet"}, got.Road)
}

func TestRoads(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/roads", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var roads []dataset.Road
	testutil.DecodeJSON(t, w, &roads)
	require.Len(t, roads, 3)
	assert.Equal(t, "road1.jpg", roads[0].Image)
	assert.NotNil(t, roads[0].Latitude)
}

func TestWeather(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/weather?location=Kasara+Ghat", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var rep weather.Report
	testutil.DecodeJSON(t, w, &rep)
	assert.Equal(t, weather.Report{Location: "Kasara Ghat", Condition: "Rainy", Source: weather.SourceFallback}, rep)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/weather", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
}

func TestReload(t *testing.T) {
	env := newTestEnv(t, withoutBundle(), withAdmins("Tester"))
	w := env.do(httptest.NewRequest(http.MethodPost, "/api/reload", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, testutil.RunID, body["run_id"])
	assert.True(t, env.svc.Ready())

	// A broken store leaves the active bundle in place.
	env.store.Delete(artifact.ScalerParams)
	w = env.do(httptest.NewRequest(http.MethodPost, "/api/reload", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusServiceUnavailable)
	assert.True(t, env.svc.Ready())
}

func TestReload_AdminOnly(t *testing.T) {
	env := newTestEnv(t, withoutBundle(), withAdmins("admin"))
	w := env.do(httptest.NewRequest(http.MethodPost, "/api/reload", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusForbidden)
	assert.False(t, env.svc.Ready(), "non-admin reload must not load a bundle")

	w = env.do(httptest.NewRequest(http.MethodPost, "/api/reload", nil), true)
	testutil.AssertStatusCode(t, w.Code, http.StatusUnauthorized)
}
