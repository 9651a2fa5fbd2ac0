package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable builds rows whose class is fully determined by column 1.
func separable() ([][]float64, []int) {
	var X [][]float64
	var y []int
	for i := 0; i < 60; i++ {
		v := float64(i % 30)
		class := 0
		switch {
		case v >= 20:
			class = 2
		case v >= 10:
			class = 1
		}
		X = append(X, []float64{float64(i % 7), v})
		y = append(y, class)
	}
	return X, y
}

func TestTrain_LearnsSeparableData(t *testing.T) {
	X, y := separable()
	f, err := Train([]string{"noise", "signal"}, X, y, 3, TrainOptions{Trees: 15, Seed: 42, MaxFeatures: 2, Balanced: true})
	require.NoError(t, err)
	require.NoError(t, f.Validate())

	acc, err := Accuracy(f, X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.95)
	assert.Len(t, f.Trees, 15)
	assert.Equal(t, OutputClass, f.Kind)
}

func TestTrain_Deterministic(t *testing.T) {
	X, y := separable()
	opts := TrainOptions{Trees: 5, Seed: 7}
	a, err := Train([]string{"noise", "signal"}, X, y, 3, opts)
	require.NoError(t, err)
	b, err := Train([]string{"noise", "signal"}, X, y, 3, opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTrain_Errors(t *testing.T) {
	fields := []string{"a"}
	tests := []struct {
		name    string
		X       [][]float64
		y       []int
		classes int
	}{
		{"no rows", nil, nil, 3},
		{"label count", [][]float64{{1}}, []int{0, 1}, 3},
		{"zero classes", [][]float64{{1}}, []int{0}, 0},
		{"row width", [][]float64{{1, 2}}, []int{0}, 3},
		{"label range", [][]float64{{1}}, []int{3}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Train(fields, tt.X, tt.y, tt.classes, TrainOptions{})
			assert.Error(t, err)
		})
	}
}

func TestTrain_SingleClassIsLeaf(t *testing.T) {
	f, err := Train([]string{"a"}, [][]float64{{1}, {2}, {3}}, []int{1, 1, 1}, 3, TrainOptions{Trees: 3})
	require.NoError(t, err)
	for _, tree := range f.Trees {
		require.Len(t, tree.Nodes, 1)
		assert.Equal(t, 1.0, tree.Nodes[0].Value)
	}
}

func TestHoldoutSplit(t *testing.T) {
	train, test := HoldoutSplit(10, 0.2, 42)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)

	seen := map[int]bool{}
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i], "index %d repeated", i)
		seen[i] = true
	}
	assert.Len(t, seen, 10)

	train2, test2 := HoldoutSplit(10, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	train, test = HoldoutSplit(1, 0.5, 1)
	assert.Len(t, train, 1)
	assert.Empty(t, test)
}
