package predict

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghatsafe/ghatsafe/internal/features"
)

func TestSimulator_SeededAndBounded(t *testing.T) {
	svc, _ := newService(t)

	run := func(seed uint64) []*Prediction {
		sim := NewSimulator(svc, seed)
		var out []*Prediction
		for i := 0; i < 20; i++ {
			p, err := sim.Predict(rohtang)
			require.NoError(t, err)
			out = append(out, p)
		}
		return out
	}

	a := run(7)
	b := run(7)
	assert.Equal(t, a, b)

	for _, p := range a {
		assert.True(t, p.Simulated)
		// 14:00 shifted by at most two hours.
		assert.GreaterOrEqual(t, p.Hour, 12)
		assert.LessOrEqual(t, p.Hour, 16)
	}
}

func TestSimulator_LeavesInvalidInputAlone(t *testing.T) {
	svc, _ := newService(t)
	sim := NewSimulator(svc, 1)

	for _, count := range []string{"abc", "0", "40"} {
		in := rohtang
		in.VehicleCount = count
		in.Time = "garbage"
		got := sim.perturb(in)
		assert.Equal(t, in, got)
	}

	in := rohtang
	in.VehicleCount = "abc"
	_, err := sim.Predict(in)
	var ve *features.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestSimulator_DoesNotAffectPlainPredict(t *testing.T) {
	svc, _ := newService(t)
	plain, err := svc.Predict(rohtang)
	require.NoError(t, err)

	sim := NewSimulator(svc, 3)
	for i := 0; i < 5; i++ {
		_, err := sim.Predict(rohtang)
		require.NoError(t, err)
	}

	again, err := svc.Predict(rohtang)
	require.NoError(t, err)
	assert.Equal(t, plain, again)
	assert.False(t, again.Simulated)
}
