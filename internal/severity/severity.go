// Package severity maps casualty counts and classifier classes to the three
// reported risk tiers.
package severity

import (
	"fmt"
	"math"
)

// Tier is a severity bucket.
type Tier string

const (
	Low    Tier = "Low"
	Medium Tier = "Medium"
	High   Tier = "High"
)

// Tier cutoffs in casualties: up to MaxLow is Low, up to MaxMedium is
// Medium, anything above is High.
const (
	MaxLow    = 2
	MaxMedium = 6
)

// Tiers lists every tier from least to most severe.
func Tiers() []Tier { return []Tier{Low, Medium, High} }

// Class is the classifier label for t: 0, 1, or 2.
func (t Tier) Class() int {
	switch t {
	case Low:
		return 0
	case Medium:
		return 1
	case High:
		return 2
	default:
		return -1
	}
}

// Label is the user-facing description including the casualty range.
func (t Tier) Label() string {
	switch t {
	case Low:
		return "Low (0-2 Casualties)"
	case Medium:
		return "Medium (3-6 Casualties)"
	case High:
		return "High (7+ Casualties)"
	default:
		return "Unknown"
	}
}

func (t Tier) String() string { return string(t) }

// Result is the reported outcome of one prediction.
type Result struct {
	Tier  Tier    `json:"tier"`
	Raw   float64 `json:"raw"`
	Label string  `json:"label"`
}

func newResult(t Tier, raw float64) Result {
	return Result{Tier: t, Raw: raw, Label: t.Label()}
}

// Bucketize maps a casualty count to its tier. Negative counts are treated
// as zero.
func Bucketize(casualties int) Result {
	switch {
	case casualties <= MaxLow:
		return newResult(Low, float64(casualties))
	case casualties <= MaxMedium:
		return newResult(Medium, float64(casualties))
	default:
		return newResult(High, float64(casualties))
	}
}

// FromClass maps a classifier label back to its tier.
func FromClass(class int) (Result, error) {
	for _, t := range Tiers() {
		if t.Class() == class {
			return newResult(t, float64(class)), nil
		}
	}
	return Result{}, fmt.Errorf("severity class %d out of range", class)
}

// FromCasualties buckets a real-valued casualty estimate, rounding to the
// nearest whole casualty first. Estimates beyond the tier cutoffs are
// bucketed before conversion so the result never depends on int overflow.
func FromCasualties(estimate float64) (Result, error) {
	if math.IsNaN(estimate) || math.IsInf(estimate, 0) {
		return Result{}, fmt.Errorf("casualty estimate %v is not finite", estimate)
	}
	rounded := math.Round(estimate)
	var r Result
	switch {
	case rounded <= 0:
		r = Bucketize(0)
	case rounded > MaxMedium:
		r = newResult(High, estimate)
	default:
		r = Bucketize(int(rounded))
	}
	r.Raw = estimate
	return r, nil
}

// Parse resolves a tier name.
func Parse(s string) (Tier, error) {
	switch s {
	case "Low", "low", "LOW":
		return Low, nil
	case "Medium", "medium", "MEDIUM":
		return Medium, nil
	case "High", "high", "HIGH":
		return High, nil
	default:
		return "", fmt.Errorf("unknown severity tier %q", s)
	}
}
