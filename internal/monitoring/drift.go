package monitoring

import (
	"sort"
	"sync"
)

// OtherValue collects substitutions for values seen after a feature has
// reached its distinct-value limit.
const OtherValue = "(other)"

// DefaultMaxDriftValues is the per-feature distinct-value limit used by
// NewDriftCounter.
const DefaultMaxDriftValues = 256

// DriftCounter counts category values that were not part of a fitted
// vocabulary and had to be replaced by the default code. At most maxValues
// distinct values are kept per feature; later values are counted under
// OtherValue.
type DriftCounter struct {
	mu        sync.Mutex
	counts    map[string]map[string]int
	maxValues int
}

// NewDriftCounter returns an empty counter keeping DefaultMaxDriftValues
// distinct values per feature.
func NewDriftCounter() *DriftCounter {
	return NewDriftCounterWithLimit(DefaultMaxDriftValues)
}

// NewDriftCounterWithLimit returns an empty counter keeping at most
// maxValues distinct values per feature. Values below 1 mean 1.
func NewDriftCounterWithLimit(maxValues int) *DriftCounter {
	if maxValues < 1 {
		maxValues = 1
	}
	return &DriftCounter{counts: make(map[string]map[string]int), maxValues: maxValues}
}

// Observe records one substituted value for feature and logs it.
func (d *DriftCounter) Observe(feature, value, substitute string) {
	Logf("[drift] feature=%s value=%q default=%q", feature, value, substitute)
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	byValue, ok := d.counts[feature]
	if !ok {
		byValue = make(map[string]int)
		d.counts[feature] = byValue
	}
	if _, seen := byValue[value]; !seen && len(byValue) >= d.maxValues {
		value = OtherValue
	}
	byValue[value]++
}

// DriftEntry is one row of a drift snapshot.
type DriftEntry struct {
	Feature string `json:"feature"`
	Value   string `json:"value"`
	Count   int    `json:"count"`
}

// Snapshot returns the counts ordered by feature then value.
func (d *DriftCounter) Snapshot() []DriftEntry {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []DriftEntry
	for feature, byValue := range d.counts {
		for value, n := range byValue {
			out = append(out, DriftEntry{Feature: feature, Value: value, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Feature != out[j].Feature {
			return out[i].Feature < out[j].Feature
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Total returns the number of substitutions seen for feature.
func (d *DriftCounter) Total(feature string) int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, n := range d.counts[feature] {
		total += n
	}
	return total
}

// Reset clears every count.
func (d *DriftCounter) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts = make(map[string]map[string]int)
}
