package vocab

import (
	"fmt"
	"sort"
	"strings"
)

// Set groups the vocabularies of one training run.
type Set struct {
	Location *Vocabulary
	Weather  *Vocabulary
	Road     *Vocabulary
}

// Features lists the categorical features in a fixed order.
func Features() []string {
	return []string{Location, Weather, Road}
}

// Get returns the vocabulary for feature.
func (s Set) Get(feature string) (*Vocabulary, error) {
	var v *Vocabulary
	switch feature {
	case Location:
		v = s.Location
	case Weather:
		v = s.Weather
	case Road:
		v = s.Road
	default:
		return nil, fmt.Errorf("unknown categorical feature %q", feature)
	}
	if v == nil {
		return nil, fmt.Errorf("vocabulary %q not loaded", feature)
	}
	return v, nil
}

// FitSet fits all three vocabularies and tags them with runID.
func FitSet(runID string, locations, weathers, roads []string) (Set, error) {
	var s Set
	var err error
	if s.Location, err = Fit(Location, locations); err != nil {
		return Set{}, err
	}
	if s.Weather, err = Fit(Weather, weathers); err != nil {
		return Set{}, err
	}
	if s.Road, err = Fit(Road, roads); err != nil {
		return Set{}, err
	}
	s.Location = s.Location.WithRunID(runID)
	s.Weather = s.Weather.WithRunID(runID)
	s.Road = s.Road.WithRunID(runID)
	return s, nil
}

// Drift compares a fitted vocabulary with the values seen in a newer dataset.
type Drift struct {
	Feature string `json:"feature"`
	// Missing values appear in the dataset but encode to the default.
	Missing []string `json:"missing"`
	// Unused values are in the vocabulary but absent from the dataset.
	Unused []string `json:"unused"`
}

// Reconcile reports how observed values line up against v.
func Reconcile(v *Vocabulary, observed []string) Drift {
	d := Drift{Feature: v.Feature(), Missing: []string{}, Unused: []string{}}
	hit := make([]bool, v.Len())
	missing := map[string]struct{}{}
	for _, o := range observed {
		code, outcome := v.Encode(o)
		if outcome == Unknown {
			if o = strings.TrimSpace(o); o != "" {
				missing[o] = struct{}{}
			}
			continue
		}
		hit[code] = true
	}
	for m := range missing {
		d.Missing = append(d.Missing, m)
	}
	sort.Strings(d.Missing)
	for i, ok := range hit {
		if !ok {
			d.Unused = append(d.Unused, v.values[i])
		}
	}
	return d
}
