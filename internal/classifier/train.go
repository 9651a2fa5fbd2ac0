package classifier

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// TrainOptions controls forest growth. Zero values pick the defaults noted
// on each field.
type TrainOptions struct {
	Trees           int   // 100
	MaxDepth        int   // 12
	MinSamplesSplit int   // 2
	MinSamplesLeaf  int   // 1
	MaxFeatures     int   // sqrt(columns), at least 1
	Seed            uint64
	// Balanced weights each class by n / (classes * count) so rare severe
	// accidents are not drowned out.
	Balanced bool
}

func (o TrainOptions) withDefaults(columns int) TrainOptions {
	if o.Trees <= 0 {
		o.Trees = 100
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = 12
	}
	if o.MinSamplesSplit < 2 {
		o.MinSamplesSplit = 2
	}
	if o.MinSamplesLeaf < 1 {
		o.MinSamplesLeaf = 1
	}
	if o.MaxFeatures <= 0 || o.MaxFeatures > columns {
		o.MaxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(columns)))))
	}
	return o
}

// Train grows a class forest on rows X with labels y in [0, classes).
// The same inputs and seed always produce the same forest.
func Train(fields []string, X [][]float64, y []int, classes int, opts TrainOptions) (*Forest, error) {
	if len(X) == 0 {
		return nil, errors.New("train: no rows")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("train: %d rows, %d labels", len(X), len(y))
	}
	if classes <= 0 {
		return nil, errors.New("train: classes must be positive")
	}
	for i, r := range X {
		if len(r) != len(fields) {
			return nil, fmt.Errorf("train: row %d has %d values, want %d", i, len(r), len(fields))
		}
		if y[i] < 0 || y[i] >= classes {
			return nil, fmt.Errorf("train: row %d label %d out of range", i, y[i])
		}
	}
	opts = opts.withDefaults(len(fields))

	weights := make([]float64, classes)
	for c := range weights {
		weights[c] = 1
	}
	if opts.Balanced {
		counts := make([]float64, classes)
		for _, c := range y {
			counts[c]++
		}
		for c, n := range counts {
			if n > 0 {
				weights[c] = float64(len(y)) / (float64(classes) * n)
			}
		}
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	f := &Forest{
		Kind:    OutputClass,
		Columns: append([]string(nil), fields...),
		Classes: classes,
		Trees:   make([]Tree, opts.Trees),
	}
	for t := range f.Trees {
		sample := make([]int, len(X))
		for i := range sample {
			sample[i] = rng.IntN(len(X))
		}
		b := &treeBuilder{
			X:       X,
			y:       y,
			weights: weights,
			classes: classes,
			opts:    opts,
			rng:     rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64())),
		}
		b.grow(sample, 0)
		f.Trees[t] = Tree{Nodes: b.nodes}
	}
	return f, nil
}

type treeBuilder struct {
	X       [][]float64
	y       []int
	weights []float64
	classes int
	opts    TrainOptions
	rng     *rand.Rand
	nodes   []Node
}

func (b *treeBuilder) classTotals(idx []int) []float64 {
	totals := make([]float64, b.classes)
	for _, i := range idx {
		totals[b.y[i]] += b.weights[b.y[i]]
	}
	return totals
}

func gini(totals []float64, sum float64) float64 {
	if sum <= 0 {
		return 0
	}
	g := 1.0
	for _, v := range totals {
		p := v / sum
		g -= p * p
	}
	return g
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	totals := b.classTotals(idx)
	id := len(b.nodes)
	leaf := Node{Feature: -1, Value: float64(floats.MaxIdx(totals))}
	b.nodes = append(b.nodes, leaf)

	if depth >= b.opts.MaxDepth || len(idx) < b.opts.MinSamplesSplit || pure(totals) {
		return id
	}
	feature, threshold, ok := b.bestSplit(idx, totals)
	if !ok {
		return id
	}
	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: leaf.Value}
	return id
}

func pure(totals []float64) bool {
	nonZero := 0
	for _, v := range totals {
		if v > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

// bestSplit searches random columns for the threshold with the lowest
// weighted gini impurity. Columns that are constant over idx do not count
// towards MaxFeatures, so a split is found whenever one exists.
func (b *treeBuilder) bestSplit(idx []int, totals []float64) (int, float64, bool) {
	sum := floats.Sum(totals)
	best := sum * gini(totals, sum)
	bestFeature, bestThreshold, found := -1, 0.0, false

	sorted := make([]int, len(idx))
	leftTotals := make([]float64, b.classes)
	rightTotals := make([]float64, b.classes)
	visited := 0
	for _, f := range b.rng.Perm(len(b.X[0])) {
		if visited >= b.opts.MaxFeatures && found {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })
		if b.X[sorted[0]][f] == b.X[sorted[len(sorted)-1]][f] {
			continue
		}
		visited++

		for c := range leftTotals {
			leftTotals[c] = 0
		}
		copy(rightTotals, totals)
		leftSum, rightSum := 0.0, sum

		for k := 0; k < len(sorted)-1; k++ {
			cls := b.y[sorted[k]]
			w := b.weights[cls]
			leftTotals[cls] += w
			rightTotals[cls] -= w
			leftSum += w
			rightSum -= w

			lo, hi := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			if k+1 < b.opts.MinSamplesLeaf || len(sorted)-(k+1) < b.opts.MinSamplesLeaf {
				continue
			}
			impurity := leftSum*gini(leftTotals, leftSum) + rightSum*gini(rightTotals, rightSum)
			if impurity < best-1e-12 {
				best = impurity
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

// HoldoutSplit shuffles row indices with seed and splits off testFraction of
// them for evaluation.
func HoldoutSplit(n int, testFraction float64, seed uint64) (train, test []int) {
	perm := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Perm(n)
	nTest := int(math.Round(float64(n) * testFraction))
	if nTest >= n && n > 0 {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}
	return perm[nTest:], perm[:nTest]
}
