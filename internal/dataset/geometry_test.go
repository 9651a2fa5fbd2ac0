package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ghatsafe/ghatsafe/internal/features"
)

func fptr(v float64) *float64 { return &v }

func TestDynamicGeometry_Clamped(t *testing.T) {
	g := DynamicGeometry(32.37, 77.24)
	// 5 + 16.185 + 23.172 exceeds the ceiling.
	assert.Equal(t, 20.0, g.Slope)
	// 30 + 772.4 - 161.85 exceeds the ceiling.
	assert.Equal(t, 100.0, g.Radius)

	g = DynamicGeometry(0, 0)
	assert.Equal(t, 5.0, g.Slope)
	assert.Equal(t, 30.0, g.Radius)

	g = DynamicGeometry(10, 1)
	assert.InDelta(t, 10.3, g.Slope, 1e-9)
	assert.Equal(t, 20.0, g.Radius)
}

func TestGeometryTable_FallbackChain(t *testing.T) {
	records := []Record{
		{Location: "Rohtang Pass", Slope: fptr(12), Radius: fptr(30)},
		{Location: "Rohtang Pass", Slope: fptr(14), Radius: fptr(50)},
		{Location: "Agumbe Ghat", Latitude: fptr(0), Longitude: fptr(0)},
		{Location: "Nowhere"},
	}
	tbl := NewGeometryTable(records)
	assert.Equal(t, 2, tbl.Len())

	g, src := tbl.Geometry("Rohtang Pass")
	assert.Equal(t, features.GeometryLocation, src)
	assert.Equal(t, features.Geometry{Slope: 13, Radius: 40}, g)

	g, src = tbl.Geometry("rohtang  pass")
	assert.Equal(t, features.GeometryLocation, src)
	assert.Equal(t, 13.0, g.Slope)

	g, src = tbl.Geometry("Agumbe Ghat")
	assert.Equal(t, features.GeometryLocation, src)
	assert.Equal(t, features.Geometry{Slope: 5, Radius: 30}, g)

	g, src = tbl.Geometry("Atlantis")
	assert.Equal(t, features.GeometryDataset, src)
	assert.Equal(t, features.Geometry{Slope: 9, Radius: 35}, g)

	// Locations without any geometry fall to the dataset mean as well.
	_, src = tbl.Geometry("Nowhere")
	assert.Equal(t, features.GeometryDataset, src)
}

func TestGeometryTable_NoData(t *testing.T) {
	tbl := NewGeometryTable([]Record{{Location: "A"}})
	g, src := tbl.Geometry("A")
	assert.Equal(t, features.GeometryDefault, src)
	assert.Equal(t, features.DefaultGeometry, g)

	var nilTable *GeometryTable
	g, src = nilTable.Geometry("A")
	assert.Equal(t, features.GeometryDefault, src)
	assert.Equal(t, features.Geometry{Slope: 0.1, Radius: 100.0}, g)
}

func TestGeometryTable_ConfiguredFallback(t *testing.T) {
	tbl := NewGeometryTable(nil)
	tbl.SetFallback(features.Geometry{Slope: 8, Radius: 60})
	g, src := tbl.Geometry("Anywhere")
	assert.Equal(t, features.GeometryDefault, src)
	assert.Equal(t, features.Geometry{Slope: 8, Radius: 60}, g)
}
