// Package vocab maps categorical feature values to stable integer codes.
//
// A Vocabulary is fitted once from training data, persisted next to the
// model, and reloaded at serving time. Codes are positions in the sorted
// value list and never change for the lifetime of a Vocabulary; refitting
// always produces a new value.
package vocab

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Feature names for the three categorical inputs.
const (
	Location = "location"
	Weather  = "weather"
	Road     = "road"
)

// ErrEmpty is returned when a vocabulary would have no values.
var ErrEmpty = errors.New("vocabulary has no values")

// Outcome describes how Encode resolved a value.
type Outcome int

const (
	// Exact means the value matched a vocabulary entry byte for byte.
	Exact Outcome = iota
	// Folded means the value matched after trimming and case folding.
	Folded
	// Unknown means no entry matched and the default code was used.
	Unknown
)

func (o Outcome) String() string {
	switch o {
	case Exact:
		return "exact"
	case Folded:
		return "folded"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText lets outcomes appear by name in JSON traces.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Vocabulary is an immutable, ordered set of distinct category values.
type Vocabulary struct {
	feature string
	runID   string
	values  []string
	index   map[string]int
	folded  map[string]int
}

// Fit builds a vocabulary from raw observations. Values are trimmed, blanks
// dropped, duplicates removed, and the remainder sorted.
func Fit(feature string, observed []string) (*Vocabulary, error) {
	seen := make(map[string]struct{}, len(observed))
	values := make([]string, 0, len(observed))
	for _, v := range observed {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return build(feature, "", values)
}

func build(feature, runID string, values []string) (*Vocabulary, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%s: %w", feature, ErrEmpty)
	}
	v := &Vocabulary{
		feature: feature,
		runID:   runID,
		values:  values,
		index:   make(map[string]int, len(values)),
		folded:  make(map[string]int, len(values)),
	}
	for i, s := range values {
		if _, dup := v.index[s]; dup {
			return nil, fmt.Errorf("%s: duplicate value %q", feature, s)
		}
		v.index[s] = i
		key := fold(s)
		if _, taken := v.folded[key]; !taken {
			v.folded[key] = i
		}
	}
	return v, nil
}

func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// WithRunID returns a copy of v tagged with the training run that produced it.
func (v *Vocabulary) WithRunID(runID string) *Vocabulary {
	c := *v
	c.runID = runID
	return &c
}

// Feature is the name of the input this vocabulary encodes.
func (v *Vocabulary) Feature() string { return v.feature }

// RunID identifies the training run the vocabulary was fitted in.
func (v *Vocabulary) RunID() string { return v.runID }

// Len returns the number of values.
func (v *Vocabulary) Len() int { return len(v.values) }

// Default is the value substituted for unknown input: the first entry.
func (v *Vocabulary) Default() string { return v.values[0] }

// Values returns a copy of the ordered values.
func (v *Vocabulary) Values() []string {
	out := make([]string, len(v.values))
	copy(out, v.values)
	return out
}

// Value returns the entry for code.
func (v *Vocabulary) Value(code int) (string, bool) {
	if code < 0 || code >= len(v.values) {
		return "", false
	}
	return v.values[code], true
}

// Encode returns the code for value. It never fails: a value that matches
// no entry, even after trimming and case folding, gets the default code.
func (v *Vocabulary) Encode(value string) (int, Outcome) {
	if i, ok := v.index[value]; ok {
		return i, Exact
	}
	if i, ok := v.folded[fold(value)]; ok {
		return i, Folded
	}
	return 0, Unknown
}

type vocabularyJSON struct {
	Feature string   `json:"feature"`
	Values  []string `json:"values"`
	RunID   string   `json:"run_id"`
}

// MarshalJSON writes the persisted artifact form.
func (v *Vocabulary) MarshalJSON() ([]byte, error) {
	return json.Marshal(vocabularyJSON{Feature: v.feature, Values: v.values, RunID: v.runID})
}

// UnmarshalJSON restores a vocabulary in its persisted order.
func (v *Vocabulary) UnmarshalJSON(data []byte) error {
	var raw vocabularyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	built, err := build(raw.Feature, raw.RunID, raw.Values)
	if err != nil {
		return err
	}
	*v = *built
	return nil
}
