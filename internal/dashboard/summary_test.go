package dashboard

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghatsafe/ghatsafe/internal/dataset"
	"github.com/ghatsafe/ghatsafe/internal/testutil"
	"github.com/ghatsafe/ghatsafe/internal/timeutil"
)

func sampleRecords() []dataset.Record {
	return []dataset.Record{
		{Location: "Kasara Ghat", Time: "02:15", Weather: "Foggy", Road: "Wet", Vehicles: 2, Casualties: 1, Cause: "Overspeeding"},
		{Location: "Kasara Ghat", Time: "8:30 AM", Weather: "Rainy", Road: "Wet", Vehicles: 3, Casualties: 5},
		{Location: "Agumbe Ghat", Time: "14:00", Weather: "Rainy", Road: "Dry", Vehicles: 4, Casualties: 9, Cause: "Brake failure"},
		{Location: "agumbe ghat", Time: "not a time", Weather: "Clear", Road: "Dry", Vehicles: 1, Casualties: 0},
	}
}

func TestTimeBin(t *testing.T) {
	cases := map[int]string{0: Night, 5: Night, 6: Morning, 11: Morning, 12: Afternoon, 17: Afternoon, 18: Evening, 23: Evening}
	for hour, want := range cases {
		assert.Equal(t, want, TimeBin(hour), "hour %d", hour)
	}
}

func TestBuild(t *testing.T) {
	s, err := Build(sampleRecords(), timeutil.HourNormalizer{Default: 20})
	require.NoError(t, err)

	assert.Equal(t, 4, s.Records)
	assert.Equal(t, []Count{{"Agumbe", 9}, {"Kasara", 6}}, s.CasualtiesByLocation)
	assert.Equal(t, []Count{{Night, 1}, {Morning, 1}, {Afternoon, 1}, {Evening, 1}}, s.AccidentsByTime)
	assert.Equal(t, []Count{{"Low", 2}, {"Medium", 1}, {"High", 1}}, s.Severity)

	wantCause := []CauseRoadCount{
		{Cause: "Brake failure", Road: "Dry", Location: "Agumbe", Count: 1},
		{Cause: "Overspeeding", Road: "Wet", Location: "Kasara", Count: 1},
		{Cause: UnknownCause, Road: "Dry", Location: "Agumbe", Count: 1},
		{Cause: UnknownCause, Road: "Wet", Location: "Kasara", Count: 1},
	}
	if diff := cmp.Diff(wantCause, s.CauseRoad); diff != "" {
		t.Errorf("CauseRoad mismatch (-want +got):\n%s", diff)
	}

	wantWeather := []RoadWeatherCount{
		{Road: "Dry", Weather: "Clear", Location: "Agumbe", Count: 1},
		{Road: "Dry", Weather: "Rainy", Location: "Agumbe", Count: 1},
		{Road: "Wet", Weather: "Foggy", Location: "Kasara", Count: 1},
		{Road: "Wet", Weather: "Rainy", Location: "Kasara", Count: 1},
	}
	if diff := cmp.Diff(wantWeather, s.RoadWeather); diff != "" {
		t.Errorf("RoadWeather mismatch (-want +got):\n%s", diff)
	}

	// Location stats are keyed by the full name as written.
	require.Len(t, s.Locations, 3)
	assert.Equal(t, "Agumbe Ghat", s.Locations[0].Location)
	assert.Equal(t, 9.0, s.Locations[0].P90)
	kasara := s.Locations[1]
	assert.Equal(t, "Kasara Ghat", kasara.Location)
	assert.Equal(t, "Kasara", kasara.Short)
	assert.Equal(t, 2, kasara.Accidents)
	assert.Equal(t, 3.0, kasara.Mean)
	assert.Equal(t, 3.0, kasara.Median)
	assert.Equal(t, 5.0, kasara.Max)
}

func TestBuildEmpty(t *testing.T) {
	s, err := Build(nil, timeutil.HourNormalizer{})
	require.NoError(t, err)
	assert.Zero(t, s.Records)
	assert.Len(t, s.AccidentsByTime, 4)
	assert.Len(t, s.Severity, 3)
	assert.Empty(t, s.Locations)
}

func TestBuildFixture(t *testing.T) {
	records := testutil.Records()
	s, err := Build(records, timeutil.HourNormalizer{Default: 12})
	require.NoError(t, err)

	var total float64
	for _, c := range s.Severity {
		total += c.Value
	}
	assert.Equal(t, float64(len(records)), total)
	for _, l := range s.Locations {
		assert.LessOrEqual(t, l.Median, l.Max)
		assert.LessOrEqual(t, l.P90, l.Max)
	}
}

func TestRenderPage(t *testing.T) {
	s, err := Build(sampleRecords(), timeutil.HourNormalizer{Default: 20})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderPage(&buf, s))
	html := buf.String()
	assert.True(t, strings.Contains(html, "echarts"), "page should load echarts")
	assert.Contains(t, html, "Casualties by location")
	assert.Contains(t, html, "Accidents by road and weather")
}

func TestWriteSeverityPNG(t *testing.T) {
	s, err := Build(sampleRecords(), timeutil.HourNormalizer{Default: 20})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSeverityPNG(&buf, s))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())

	assert.Error(t, WriteSeverityPNG(&buf, Summary{}))
}
