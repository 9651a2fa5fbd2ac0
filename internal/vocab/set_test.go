package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitSet(t *testing.T) {
	s, err := FitSet("run-1",
		[]string{"Rohtang Pass", "Agumbe Ghat"},
		[]string{"Foggy", "Clear"},
		[]string{"Wet", "Dry"},
	)
	require.NoError(t, err)

	for _, f := range Features() {
		v, err := s.Get(f)
		require.NoError(t, err)
		assert.Equal(t, f, v.Feature())
		assert.Equal(t, "run-1", v.RunID())
	}

	_, err = s.Get("colour")
	assert.Error(t, err)
}

func TestFitSet_EmptyFeature(t *testing.T) {
	_, err := FitSet("run-1", []string{"A"}, nil, []string{"Dry"})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSetGet_NotLoaded(t *testing.T) {
	_, err := Set{}.Get(Weather)
	assert.Error(t, err)
}

func TestReconcile(t *testing.T) {
	v, err := Fit(Location, []string{"Agumbe Ghat", "Kasara Ghat", "Rohtang Pass"})
	require.NoError(t, err)

	d := Reconcile(v, []string{"Rohtang Pass", "rohtang pass", "Atlantis", "Zojila Pass", "Atlantis", " "})
	assert.Equal(t, Location, d.Feature)
	assert.Equal(t, []string{"Atlantis", "Zojila Pass"}, d.Missing)
	assert.Equal(t, []string{"Agumbe Ghat", "Kasara Ghat"}, d.Unused)
}
