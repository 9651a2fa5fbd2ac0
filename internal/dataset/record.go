// Package dataset reads the historical accident table and derives the
// per-location facts the service needs from it: road geometry, the road
// catalogue, and the raw rows for training and the dashboard.
package dataset

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ghatsafe/ghatsafe/internal/features"
)

// Record is one historical accident.
type Record struct {
	Location   string   `json:"location"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	Time       string   `json:"time"`
	Weather    string   `json:"weather"`
	Road       string   `json:"road"`
	Vehicles   int      `json:"vehicles"`
	Casualties int      `json:"casualties"`
	// Cause is empty when the dataset has no cause column.
	Cause  string   `json:"cause,omitempty"`
	Slope  *float64 `json:"slope,omitempty"`
	Radius *float64 `json:"radius,omitempty"`
}

// Input converts r into the form the feature vectorizer accepts, so training
// rows go through exactly the same validation as live requests.
func (r Record) Input() features.RawInput {
	return features.RawInput{
		Time:         r.Time,
		Location:     r.Location,
		Weather:      r.Weather,
		Road:         r.Road,
		VehicleCount: strconv.Itoa(r.Vehicles),
	}
}

// ShortName is the first word of a location, capitalized, used for chart
// labels and dropdowns.
func ShortName(location string) string {
	fields := strings.Fields(location)
	if len(fields) == 0 {
		return ""
	}
	first := strings.ToLower(fields[0])
	r, size := utf8.DecodeRuneInString(first)
	return string(unicode.ToUpper(r)) + first[size:]
}

// LocationValues returns the location column.
func LocationValues(records []Record) []string {
	return column(records, func(r Record) string { return r.Location })
}

// WeatherValues returns the weather column.
func WeatherValues(records []Record) []string {
	return column(records, func(r Record) string { return r.Weather })
}

// RoadValues returns the road condition column.
func RoadValues(records []Record) []string {
	return column(records, func(r Record) string { return r.Road })
}

func column(records []Record, get func(Record) string) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = get(r)
	}
	return out
}
