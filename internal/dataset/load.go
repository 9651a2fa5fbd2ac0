package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ghatsafe/ghatsafe/internal/monitoring"
)

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("dataset column missing")

type column int

const (
	colLocation column = iota
	colLatitude
	colLongitude
	colTime
	colWeather
	colRoad
	colVehicles
	colCasualties
	colCause
	colSlope
	colRadius
	numColumns
)

// headerAliases maps normalized header text to a column.
var headerAliases = map[string]column{
	"location":          colLocation,
	"latitude":          colLatitude,
	"lat":               colLatitude,
	"longitude":         colLongitude,
	"lon":               colLongitude,
	"lng":               colLongitude,
	"time":              colTime,
	"weather condition": colWeather,
	"weather":           colWeather,
	"road condition":    colRoad,
	"road":              colRoad,
	"vehicles involved": colVehicles,
	"vehicles":          colVehicles,
	"vehicle count":     colVehicles,
	"casualties":        colCasualties,
	"cause":             colCause,
	"slope":             colSlope,
	"road slope":        colSlope,
	"radius":            colRadius,
	"curve radius":      colRadius,
}

var required = []struct {
	col  column
	name string
}{
	{colLocation, "Location"},
	{colTime, "Time"},
	{colWeather, "Weather Condition"},
	{colRoad, "Road Condition"},
	{colVehicles, "Vehicles Involved"},
	{colCasualties, "Casualties"},
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(h))
	return strings.Join(strings.Fields(h), " ")
}

// Table is a loaded dataset.
type Table struct {
	Records []Record
	// HasCause is false when the source had no cause column.
	HasCause bool
	// Skipped counts rows dropped for unparseable numbers.
	Skipped int
}

// Load reads a .csv or .xlsx accident table.
func Load(path string) (*Table, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return Parse(rows)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads all rows from r.
func ReadCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// Parse converts a header row plus data rows into records. Rows with a bad
// vehicle or casualty count are skipped and counted.
func Parse(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, errors.New("dataset is empty")
	}
	idx := make([]int, numColumns)
	for i := range idx {
		idx[i] = -1
	}
	for i, h := range rows[0] {
		if c, ok := headerAliases[normalizeHeader(h)]; ok && idx[c] < 0 {
			idx[c] = i
		}
	}
	for _, r := range required {
		if idx[r.col] < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, r.name)
		}
	}

	t := &Table{HasCause: idx[colCause] >= 0}
	for n, row := range rows[1:] {
		get := func(c column) string {
			if idx[c] < 0 || idx[c] >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx[c]])
		}
		if isBlank(row) {
			continue
		}
		vehicles, err1 := strconv.Atoi(get(colVehicles))
		casualties, err2 := strconv.Atoi(get(colCasualties))
		if err := errors.Join(err1, err2); err != nil {
			monitoring.Logf("dataset: skipping row %d: %v", n+2, err)
			t.Skipped++
			continue
		}
		t.Records = append(t.Records, Record{
			Location:   get(colLocation),
			Latitude:   optFloat(get(colLatitude)),
			Longitude:  optFloat(get(colLongitude)),
			Time:       get(colTime),
			Weather:    get(colWeather),
			Road:       get(colRoad),
			Vehicles:   vehicles,
			Casualties: casualties,
			Cause:      get(colCause),
			Slope:      optFloat(get(colSlope)),
			Radius:     optFloat(get(colRadius)),
		})
	}
	return t, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func optFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
