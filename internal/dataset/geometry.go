package dataset

import (
	"math"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/ghatsafe/ghatsafe/internal/features"
)

// DynamicGeometry estimates slope (degrees) and curve radius (metres) from
// coordinates for datasets without measured geometry. Results are clamped
// to slope 5-20 and radius 20-100.
func DynamicGeometry(lat, lon float64) features.Geometry {
	slope := 5.0 + math.Abs(lat)*0.5 + math.Abs(lon)*0.3
	radius := 30.0 + math.Abs(lon)*10 - math.Abs(lat)*5
	return features.Geometry{
		Slope:  math.Max(5, math.Min(slope, 20)),
		Radius: math.Max(20, math.Min(radius, 100)),
	}
}

// GeometryTable resolves geometry per location with a dataset-wide mean as
// the first fallback. It implements features.GeometryLookup.
type GeometryTable struct {
	byLocation map[string]features.Geometry
	folded     map[string]features.Geometry
	mean       *features.Geometry
	fallback   features.Geometry
}

// NewGeometryTable derives geometry from records. Measured slope and radius
// columns win; otherwise coordinates are used.
func NewGeometryTable(records []Record) *GeometryTable {
	type acc struct {
		slopes, radii []float64
		lat, lon      *float64
	}
	byLoc := map[string]*acc{}
	var order []string
	for _, r := range records {
		if r.Location == "" {
			continue
		}
		a, ok := byLoc[r.Location]
		if !ok {
			a = &acc{}
			byLoc[r.Location] = a
			order = append(order, r.Location)
		}
		if r.Slope != nil && r.Radius != nil {
			a.slopes = append(a.slopes, *r.Slope)
			a.radii = append(a.radii, *r.Radius)
		}
		if a.lat == nil && r.Latitude != nil && r.Longitude != nil {
			a.lat, a.lon = r.Latitude, r.Longitude
		}
	}

	t := &GeometryTable{
		byLocation: make(map[string]features.Geometry),
		folded:     make(map[string]features.Geometry),
		fallback:   features.DefaultGeometry,
	}
	var slopes, radii []float64
	for _, loc := range order {
		a := byLoc[loc]
		var g features.Geometry
		switch {
		case len(a.slopes) > 0:
			s, _ := stats.Mean(a.slopes)
			r, _ := stats.Mean(a.radii)
			g = features.Geometry{Slope: s, Radius: r}
		case a.lat != nil:
			g = DynamicGeometry(*a.lat, *a.lon)
		default:
			continue
		}
		t.byLocation[loc] = g
		t.folded[foldName(loc)] = g
		slopes = append(slopes, g.Slope)
		radii = append(radii, g.Radius)
	}
	if len(slopes) > 0 {
		s, _ := stats.Mean(slopes)
		r, _ := stats.Mean(radii)
		t.mean = &features.Geometry{Slope: s, Radius: r}
	}
	return t
}

// SetFallback replaces the geometry returned when neither the location nor
// the dataset mean is available.
func (t *GeometryTable) SetFallback(g features.Geometry) {
	t.fallback = g
}

func foldName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Geometry implements features.GeometryLookup.
func (t *GeometryTable) Geometry(location string) (features.Geometry, features.GeometrySource) {
	if t == nil {
		return features.DefaultGeometry, features.GeometryDefault
	}
	if g, ok := t.byLocation[location]; ok {
		return g, features.GeometryLocation
	}
	if g, ok := t.folded[foldName(location)]; ok {
		return g, features.GeometryLocation
	}
	if t.mean != nil {
		return *t.mean, features.GeometryDataset
	}
	return t.fallback, features.GeometryDefault
}

// Len is the number of locations with known geometry.
func (t *GeometryTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byLocation)
}
