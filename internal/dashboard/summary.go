// Package dashboard aggregates accident records into the descriptive views
// shown on the dashboard: where casualties happen, when, under which road and
// weather conditions, and how severe they are.
package dashboard

import (
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/ghatsafe/ghatsafe/internal/dataset"
	"github.com/ghatsafe/ghatsafe/internal/severity"
	"github.com/ghatsafe/ghatsafe/internal/timeutil"
)

// UnknownCause labels records whose source had no cause column.
const UnknownCause = "Unknown"

// Time-of-day bins, each covering six hours starting at midnight.
const (
	Night     = "Night"
	Morning   = "Morning"
	Afternoon = "Afternoon"
	Evening   = "Evening"
)

// TimeBins lists the bins in chronological order.
func TimeBins() []string { return []string{Night, Morning, Afternoon, Evening} }

// TimeBin maps an hour in [0, 24) to its bin.
func TimeBin(hour int) string {
	switch {
	case hour < 6:
		return Night
	case hour < 12:
		return Morning
	case hour < 18:
		return Afternoon
	default:
		return Evening
	}
}

// Count is a labelled tally.
type Count struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// CauseRoadCount counts accidents per (cause, road, location).
type CauseRoadCount struct {
	Cause    string `json:"cause"`
	Road     string `json:"road"`
	Location string `json:"location"`
	Count    int    `json:"count"`
}

// RoadWeatherCount counts accidents per (road, weather, location).
type RoadWeatherCount struct {
	Road     string `json:"road"`
	Weather  string `json:"weather"`
	Location string `json:"location"`
	Count    int    `json:"count"`
}

// LocationStat summarises casualties at one location.
type LocationStat struct {
	Location  string  `json:"location"`
	Short     string  `json:"short"`
	Accidents int     `json:"accidents"`
	Mean      float64 `json:"mean"`
	Median    float64 `json:"median"`
	P90       float64 `json:"p90"`
	Max       float64 `json:"max"`
}

// Summary is everything the dashboard renders.
type Summary struct {
	Records              int                `json:"records"`
	CasualtiesByLocation []Count            `json:"casualties_by_location"`
	AccidentsByTime      []Count            `json:"accidents_by_time"`
	CauseRoad            []CauseRoadCount   `json:"cause_road"`
	RoadWeather          []RoadWeatherCount `json:"road_weather"`
	Severity             []Count            `json:"severity"`
	Locations            []LocationStat     `json:"locations"`
}

// Build aggregates records. Times that do not parse fall into the bin of
// hours.Default.
func Build(records []dataset.Record, hours timeutil.HourNormalizer) (Summary, error) {
	s := Summary{Records: len(records)}

	byShort := map[string]float64{}
	var shortOrder []string
	byBin := map[string]float64{}
	bySeverity := map[severity.Tier]float64{}
	causeRoad := map[CauseRoadCount]int{}
	roadWeather := map[RoadWeatherCount]int{}
	perLocation := map[string][]float64{}

	for _, r := range records {
		short := dataset.ShortName(r.Location)
		if _, ok := byShort[short]; !ok {
			shortOrder = append(shortOrder, short)
		}
		byShort[short] += float64(r.Casualties)
		byBin[TimeBin(hours.Hour(r.Time))]++
		bySeverity[severity.Bucketize(r.Casualties).Tier]++

		cause := strings.TrimSpace(r.Cause)
		if cause == "" {
			cause = UnknownCause
		}
		causeRoad[CauseRoadCount{Cause: cause, Road: r.Road, Location: short}]++
		roadWeather[RoadWeatherCount{Road: r.Road, Weather: r.Weather, Location: short}]++
		perLocation[r.Location] = append(perLocation[r.Location], float64(r.Casualties))
	}

	sort.Strings(shortOrder)
	for _, short := range shortOrder {
		s.CasualtiesByLocation = append(s.CasualtiesByLocation, Count{Label: short, Value: byShort[short]})
	}
	for _, bin := range TimeBins() {
		s.AccidentsByTime = append(s.AccidentsByTime, Count{Label: bin, Value: byBin[bin]})
	}
	for _, tier := range severity.Tiers() {
		s.Severity = append(s.Severity, Count{Label: string(tier), Value: bySeverity[tier]})
	}

	for k, n := range causeRoad {
		k.Count = n
		s.CauseRoad = append(s.CauseRoad, k)
	}
	sort.Slice(s.CauseRoad, func(i, j int) bool {
		a, b := s.CauseRoad[i], s.CauseRoad[j]
		if a.Cause != b.Cause {
			return a.Cause < b.Cause
		}
		if a.Road != b.Road {
			return a.Road < b.Road
		}
		return a.Location < b.Location
	})
	for k, n := range roadWeather {
		k.Count = n
		s.RoadWeather = append(s.RoadWeather, k)
	}
	sort.Slice(s.RoadWeather, func(i, j int) bool {
		a, b := s.RoadWeather[i], s.RoadWeather[j]
		if a.Road != b.Road {
			return a.Road < b.Road
		}
		if a.Weather != b.Weather {
			return a.Weather < b.Weather
		}
		return a.Location < b.Location
	})

	locations := make([]string, 0, len(perLocation))
	for loc := range perLocation {
		locations = append(locations, loc)
	}
	sort.Strings(locations)
	for _, loc := range locations {
		st, err := summarize(perLocation[loc])
		if err != nil {
			return s, err
		}
		st.Location = loc
		st.Short = dataset.ShortName(loc)
		s.Locations = append(s.Locations, st)
	}
	return s, nil
}

func summarize(casualties []float64) (LocationStat, error) {
	data := stats.Float64Data(casualties)
	st := LocationStat{Accidents: len(casualties)}
	var err error
	if st.Mean, err = stats.Mean(data); err != nil {
		return st, err
	}
	if st.Median, err = stats.Median(data); err != nil {
		return st, err
	}
	// Percentile has no defined rank for a single sample.
	if len(data) == 1 {
		st.P90 = data[0]
	} else if st.P90, err = stats.Percentile(data, 90); err != nil {
		return st, err
	}
	if st.Max, err = stats.Max(data); err != nil {
		return st, err
	}
	return st, nil
}
