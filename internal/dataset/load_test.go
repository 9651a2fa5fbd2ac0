package dataset

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ghatsafe/ghatsafe/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestLoad_CSV(t *testing.T) {
	tbl, err := Load(filepath.Join("testdata", "accidents.csv"))
	require.NoError(t, err)

	require.Len(t, tbl.Records, 8)
	assert.Equal(t, 1, tbl.Skipped)
	assert.True(t, tbl.HasCause)

	first := tbl.Records[0]
	assert.Equal(t, "Rohtang Pass", first.Location)
	assert.Equal(t, "02:15:00 PM", first.Time)
	assert.Equal(t, "Foggy", first.Weather)
	assert.Equal(t, "Wet", first.Road)
	assert.Equal(t, 2, first.Vehicles)
	assert.Equal(t, 1, first.Casualties)
	require.NotNil(t, first.Latitude)
	assert.InDelta(t, 32.37, *first.Latitude, 1e-9)
	assert.Nil(t, first.Slope)
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accidents.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Location", "Time", "Weather_Condition", "Road_Condition", "Vehicles_Involved", "Casualties", "Slope", "Curve Radius"},
		{"Rohtang Pass", "02:15:00 PM", "Foggy", "Wet", 2, 1, 12.5, 35},
		{"Agumbe Ghat", "14:00", "Rainy", "Dry", 1, 7, 8, 60},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := Load(path)
	require.NoError(t, err)
	require.Len(t, tbl.Records, 2)
	assert.False(t, tbl.HasCause)
	assert.Equal(t, 7, tbl.Records[1].Casualties)
	require.NotNil(t, tbl.Records[0].Radius)
	assert.Equal(t, 35.0, *tbl.Records[0].Radius)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load("accidents.parquet")
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestParse_MissingColumn(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("Location,Time,Weather Condition,Road Condition,Casualties\nA,1:00 PM,Clear,Dry,1\n"))
	require.NoError(t, err)
	_, err = Parse(rows)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), "Vehicles Involved")
}

func TestParse_SkipsBlankRowsAndHandlesBOM(t *testing.T) {
	rows := [][]string{
		{"\ufeffLocation", "Time", "Weather", "Road", "Vehicles", "Casualties"},
		{"", "", "", "", "", ""},
		{"Kasara Ghat", "10:00", "Clear", "Dry", "1", "0"},
		{"Short"},
	}
	tbl, err := Parse(rows)
	require.NoError(t, err)
	assert.Len(t, tbl.Records, 1)
	assert.Equal(t, 1, tbl.Skipped)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(nil)
	assert.Error(t, err)
}

func TestShortName(t *testing.T) {
	tests := map[string]string{
		"Rohtang Pass":   "Rohtang",
		"kasara ghat":    "Kasara",
		"AGUMBE":         "Agumbe",
		"  ":             "",
		"ółtarz ghat":    "Ółtarz",
	}
	for in, want := range tests {
		assert.Equal(t, want, ShortName(in), "ShortName(%q)", in)
	}
}

func TestRecordInput(t *testing.T) {
	r := Record{Location: "Rohtang Pass", Time: "02:15:00 PM", Weather: "Foggy", Road: "Wet", Vehicles: 2}
	in := r.Input()
	assert.Equal(t, "2", in.VehicleCount)
	assert.Equal(t, "Rohtang Pass", in.Location)
}
