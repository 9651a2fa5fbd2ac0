// Package classifier holds the severity model: an interface the prediction
// path depends on, and a decision-forest implementation that can be trained
// offline and persisted as JSON.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// OutputKind says how to read the value Predict returns.
type OutputKind string

const (
	// OutputClass models return a severity class 0, 1 or 2.
	OutputClass OutputKind = "class"
	// OutputCasualties models return an estimated casualty count.
	OutputCasualties OutputKind = "casualties"
)

// Classifier scores one scaled feature vector.
type Classifier interface {
	Predict(x []float64) (float64, error)
	Output() OutputKind
	// Fields is the column order the model was trained on.
	Fields() []string
}

// ErrInput is returned for a vector the model cannot score.
var ErrInput = errors.New("classifier input rejected")

// Node is one split or leaf of a tree. Leaves have Feature -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// IsLeaf reports whether n ends traversal.
func (n Node) IsLeaf() bool { return n.Feature < 0 }

// Tree is a flat, pre-ordered decision tree rooted at Nodes[0].
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) eval(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is an ensemble of trees. Class forests take a majority vote, ties
// going to the lower class; casualty forests average their leaves.
type Forest struct {
	Kind    OutputKind `json:"output"`
	Columns []string   `json:"fields"`
	Classes int        `json:"classes,omitempty"`
	Trees   []Tree     `json:"trees"`
	RunID   string     `json:"run_id"`
}

// Load decodes and validates a persisted forest.
func Load(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode forest: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Output implements Classifier.
func (f *Forest) Output() OutputKind { return f.Kind }

// Fields implements Classifier.
func (f *Forest) Fields() []string { return f.Columns }

// Validate checks that every tree is well formed so Predict cannot index
// out of range or loop.
func (f *Forest) Validate() error {
	switch f.Kind {
	case OutputClass:
		if f.Classes <= 0 {
			return errors.New("forest: class output needs classes > 0")
		}
	case OutputCasualties:
	default:
		return fmt.Errorf("forest: unknown output kind %q", f.Kind)
	}
	if len(f.Columns) == 0 {
		return errors.New("forest: no fields")
	}
	if len(f.Trees) == 0 {
		return errors.New("forest: no trees")
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("forest: tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.IsLeaf() {
				if f.Kind == OutputClass && (n.Value < 0 || int(n.Value) >= f.Classes || n.Value != math.Trunc(n.Value)) {
					return fmt.Errorf("forest: tree %d node %d has class %v", ti, ni, n.Value)
				}
				continue
			}
			if n.Feature >= len(f.Columns) {
				return fmt.Errorf("forest: tree %d node %d splits on column %d of %d", ti, ni, n.Feature, len(f.Columns))
			}
			// Children always follow their parent, which rules out cycles.
			if n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("forest: tree %d node %d has bad children %d/%d", ti, ni, n.Left, n.Right)
			}
		}
	}
	return nil
}

// Predict implements Classifier.
func (f *Forest) Predict(x []float64) (float64, error) {
	if len(x) != len(f.Columns) {
		return 0, fmt.Errorf("%w: got %d values, want %d", ErrInput, len(x), len(f.Columns))
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: %s is not finite", ErrInput, f.Columns[i])
		}
	}
	if f.Kind == OutputCasualties {
		leaves := make([]float64, len(f.Trees))
		for i, t := range f.Trees {
			leaves[i] = t.eval(x)
		}
		return floats.Sum(leaves) / float64(len(leaves)), nil
	}
	return float64(floats.MaxIdx(f.Votes(x))), nil
}

// Votes returns the number of trees voting for each class.
func (f *Forest) Votes(x []float64) []float64 {
	votes := make([]float64, f.Classes)
	for _, t := range f.Trees {
		votes[int(t.eval(x))]++
	}
	return votes
}

// Accuracy is the share of rows c labels correctly.
func Accuracy(c Classifier, X [][]float64, y []int) (float64, error) {
	if len(X) != len(y) {
		return 0, fmt.Errorf("accuracy: %d rows, %d labels", len(X), len(y))
	}
	if len(X) == 0 {
		return 0, errors.New("accuracy: no rows")
	}
	correct := 0
	for i, x := range X {
		p, err := c.Predict(x)
		if err != nil {
			return 0, err
		}
		if int(p) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(X)), nil
}
