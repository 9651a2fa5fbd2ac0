package predict

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghatsafe/ghatsafe/internal/artifact"
	"github.com/ghatsafe/ghatsafe/internal/classifier"
	"github.com/ghatsafe/ghatsafe/internal/dataset"
	"github.com/ghatsafe/ghatsafe/internal/features"
	"github.com/ghatsafe/ghatsafe/internal/monitoring"
	"github.com/ghatsafe/ghatsafe/internal/severity"
	"github.com/ghatsafe/ghatsafe/internal/testutil"
	"github.com/ghatsafe/ghatsafe/internal/vocab"
)

func init() {
	monitoring.SetLogger(nil)
}

// spyModel records calls and returns a fixed value.
type spyModel struct {
	mu     sync.Mutex
	calls  int
	value  float64
	kind   classifier.OutputKind
	fields []string
	err    error
	panics bool
}

func (m *spyModel) Predict(x []float64) (float64, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.panics {
		panic("boom")
	}
	return m.value, m.err
}

func (m *spyModel) Output() classifier.OutputKind { return m.kind }
func (m *spyModel) Fields() []string              { return m.fields }

func newService(t *testing.T) (*Service, *monitoring.DriftCounter) {
	t.Helper()
	drift := monitoring.NewDriftCounter()
	svc := NewService(Options{
		Geometry: dataset.NewGeometryTable(testutil.Records()),
		Drift:    drift,
	})
	require.NoError(t, svc.Swap(testutil.Bundle(t)))
	return svc, drift
}

func spyService(t *testing.T, m *spyModel) *Service {
	t.Helper()
	b := testutil.Bundle(t)
	m.fields = b.Scaler.Fields
	if m.kind == "" {
		m.kind = classifier.OutputClass
	}
	b.Model = m
	svc := NewService(Options{})
	require.NoError(t, svc.Swap(b))
	return svc
}

var rohtang = features.RawInput{
	Time:         "02:15:00 PM",
	Location:     "Rohtang Pass",
	Weather:      "Foggy",
	Road:         "Wet",
	VehicleCount: "2",
}

func TestPredict_KnownInput(t *testing.T) {
	svc, drift := newService(t)

	p, err := svc.Predict(rohtang)
	require.NoError(t, err)

	assert.Contains(t, severity.Tiers(), p.Severity.Tier)
	assert.Equal(t, p.Severity.Tier.Label(), p.Severity.Label)
	assert.Equal(t, 14, p.Hour)
	assert.False(t, p.Substituted)
	assert.Equal(t, features.GeometryLocation, p.GeometrySource)
	// Rohtang Pass coordinates clamp to the slope and radius ceilings.
	assert.Equal(t, 20.0, p.Slope)
	assert.Equal(t, 100.0, p.Radius)
	assert.Equal(t, testutil.RunID, p.RunID)
	assert.Empty(t, drift.Snapshot())
}

func TestPredict_UnknownLocationIsSubstitutedAndCounted(t *testing.T) {
	svc, drift := newService(t)

	in := rohtang
	in.Location = "Atlantis"
	p, err := svc.Predict(in)
	require.NoError(t, err)

	assert.True(t, p.Substituted)
	assert.Equal(t, vocab.Unknown, p.Trace.Location.Outcome)
	assert.Equal(t, "Agumbe Ghat", p.Trace.Location.Value)
	assert.Equal(t, 0, p.Trace.Location.Code)
	assert.Equal(t, features.GeometryDataset, p.GeometrySource)
	assert.Equal(t, []monitoring.DriftEntry{{Feature: vocab.Location, Value: "Atlantis", Count: 1}}, drift.Snapshot())
}

func TestPredict_InvalidVehicleCountNeverReachesModel(t *testing.T) {
	m := &spyModel{value: 0}
	svc := spyService(t, m)

	in := rohtang
	in.VehicleCount = "abc"
	_, err := svc.Predict(in)

	var ve *features.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, "vehicle_count", ve.Field)
	assert.Equal(t, 0, m.calls)
}

func TestPredict_NoBundle(t *testing.T) {
	svc := NewService(Options{})
	assert.False(t, svc.Ready())

	_, err := svc.Predict(rohtang)
	assert.True(t, errors.Is(err, ErrArtifactMissing))

	_, err = svc.Vocabulary()
	assert.True(t, errors.Is(err, ErrArtifactMissing))
}

func TestPredict_MissingScalerArtifact(t *testing.T) {
	store := artifact.NewMemStore()
	require.NoError(t, artifact.SaveBundle(store, testutil.Bundle(t)))
	store.Delete(artifact.ScalerParams)

	svc := NewService(Options{})
	b, err := artifact.LoadBundle(store, features.Base)
	require.ErrorIs(t, err, artifact.ErrArtifactMissing)
	assert.Nil(t, b)

	_, err = svc.Predict(rohtang)
	assert.ErrorIs(t, err, ErrArtifactMissing)
}

func TestPredict_ModelFailures(t *testing.T) {
	tests := []struct {
		name  string
		model *spyModel
	}{
		{"error", &spyModel{err: errors.New("backend down")}},
		{"panic", &spyModel{panics: true}},
		{"class out of range", &spyModel{value: 5}},
		{"non-finite casualties", &spyModel{kind: classifier.OutputCasualties, value: 1 / zero()}},
		{"unknown output", &spyModel{kind: "probability"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := spyService(t, tt.model)
			p, err := svc.Predict(rohtang)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrServiceUnavailable)
		})
	}
}

func zero() float64 { return 0 }

func TestPredict_CasualtyModelIsBucketed(t *testing.T) {
	tests := []struct {
		value float64
		want  severity.Tier
	}{
		{2, severity.Low},
		{3, severity.Medium},
		{6, severity.Medium},
		{7, severity.High},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.value), func(t *testing.T) {
			svc := spyService(t, &spyModel{kind: classifier.OutputCasualties, value: tt.value})
			p, err := svc.Predict(rohtang)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Severity.Tier)
		})
	}
}

func TestPredict_Deterministic(t *testing.T) {
	svc, _ := newService(t)
	in := rohtang
	in.Time = "not a time"

	first, err := svc.Predict(in)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		p, err := svc.Predict(in)
		require.NoError(t, err)
		assert.Equal(t, first, p)
	}
}

func TestSwap_RejectsInconsistentBundle(t *testing.T) {
	svc, _ := newService(t)
	before := svc.Bundle()

	bad := testutil.Bundle(t)
	bad.RunID = "another-run"
	assert.ErrorIs(t, svc.Swap(bad), artifact.ErrMismatch)
	assert.Same(t, before, svc.Bundle())

	require.NoError(t, svc.Swap(nil))
	assert.False(t, svc.Ready())
}

func TestSwap_ConcurrentWithPredict(t *testing.T) {
	svc, _ := newService(t)
	a := svc.Bundle()
	b := testutil.Bundle(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := svc.Predict(rohtang)
				assert.NoError(t, err)
			}
		}()
	}
	for j := 0; j < 50; j++ {
		if j%2 == 0 {
			require.NoError(t, svc.Swap(b))
		} else {
			require.NoError(t, svc.Swap(a))
		}
	}
	wg.Wait()
}

func TestVocabulary(t *testing.T) {
	svc, _ := newService(t)
	v, err := svc.Vocabulary()
	require.NoError(t, err)

	assert.Equal(t, []LocationOption{
		{Value: "Agumbe Ghat", Short: "Agumbe"},
		{Value: "Kasara Ghat", Short: "Kasara"},
		{Value: "Rohtang Pass", Short: "Rohtang"},
	}, v.Locations)
	assert.Equal(t, []string{"Clear", "Foggy", "Rainy"}, v.Weather)
	assert.Equal(t, []string{"Dry", "Under Construction", "Wet"}, v.Road)
}
