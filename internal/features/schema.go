// Package features turns raw form input into the fixed, named feature rows
// consumed by the scaler and classifier. Training and serving both build
// rows through Vectorizer so the two can never disagree on ordering or
// encoding.
package features

import (
	"fmt"
	"strings"
)

// Field names one column of the model input.
type Field string

const (
	Hour         Field = "hour"
	LocationCode Field = "location_code"
	WeatherCode  Field = "weather_code"
	RoadCode     Field = "road_code"
	VehicleCount Field = "vehicle_count"
	Slope        Field = "slope"
	Radius       Field = "radius"
)

// Schema is an ordered list of fields. The position of a field in Fields is
// its column in every vector built from the schema.
type Schema struct {
	Name   string
	Fields []Field
}

// Base is the five-column schema the reference model is trained on.
var Base = Schema{
	Name:   "base",
	Fields: []Field{Hour, LocationCode, WeatherCode, RoadCode, VehicleCount},
}

// Geometry extends Base with road slope and curve radius.
var Geometry = Schema{
	Name:   "geometry",
	Fields: []Field{Hour, LocationCode, WeatherCode, RoadCode, VehicleCount, Slope, Radius},
}

// SchemaByName resolves a configured schema name.
func SchemaByName(name string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Base.Name:
		return Base, nil
	case Geometry.Name:
		return Geometry, nil
	default:
		return Schema{}, fmt.Errorf("unknown feature schema %q", name)
	}
}

// Names returns the field names in column order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = string(f)
	}
	return out
}

// Len is the vector width.
func (s Schema) Len() int { return len(s.Fields) }

// Has reports whether f is one of the schema's columns.
func (s Schema) Has(f Field) bool {
	for _, x := range s.Fields {
		if x == f {
			return true
		}
	}
	return false
}

// Check verifies that a persisted field list matches the schema exactly,
// in name and in order.
func (s Schema) Check(names []string) error {
	if len(names) != len(s.Fields) {
		return fmt.Errorf("schema %s has %d fields, artifact has %d", s.Name, len(s.Fields), len(names))
	}
	for i, f := range s.Fields {
		if names[i] != string(f) {
			return fmt.Errorf("schema %s column %d is %q, artifact has %q", s.Name, i, f, names[i])
		}
	}
	return nil
}

// Vector lays row out in schema order.
func (s Schema) Vector(r Row) []float64 {
	out := make([]float64, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = r.Get(f)
	}
	return out
}

// Row holds one observation by field name. It carries every known field;
// a schema picks the subset and order.
type Row struct {
	Hour         int     `json:"hour"`
	LocationCode int     `json:"location_code"`
	WeatherCode  int     `json:"weather_code"`
	RoadCode     int     `json:"road_code"`
	VehicleCount int     `json:"vehicle_count"`
	Slope        float64 `json:"slope"`
	Radius       float64 `json:"radius"`
}

// Get returns the value of field f.
func (r Row) Get(f Field) float64 {
	switch f {
	case Hour:
		return float64(r.Hour)
	case LocationCode:
		return float64(r.LocationCode)
	case WeatherCode:
		return float64(r.WeatherCode)
	case RoadCode:
		return float64(r.RoadCode)
	case VehicleCount:
		return float64(r.VehicleCount)
	case Slope:
		return r.Slope
	case Radius:
		return r.Radius
	default:
		panic(fmt.Sprintf("features: unknown field %q", f))
	}
}
