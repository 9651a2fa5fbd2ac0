package dataset

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeaturedRoads(t *testing.T) {
	var records []Record
	for i := 0; i < 14; i++ {
		records = append(records, Record{Location: fmt.Sprintf("Road%02d Ghat", i), Latitude: fptr(0), Longitude: fptr(0)})
		records = append(records, Record{Location: fmt.Sprintf("Road%02d Ghat", i)})
	}
	roads := FeaturedRoads(records, NewGeometryTable(records))
	require.Len(t, roads, MaxRoads)

	assert.Equal(t, "Road00 Ghat", roads[0].Location)
	assert.Equal(t, "Road00", roads[0].ShortName)
	assert.Equal(t, "road1.jpg", roads[0].Image)
	assert.Equal(t, "road10.jpg", roads[9].Image)
	assert.NotEmpty(t, roads[9].Description)
	assert.Equal(t, 5.0, roads[0].Geometry.Slope)
}

func TestFeaturedRoads_NoLookup(t *testing.T) {
	roads := FeaturedRoads([]Record{{Location: "A"}, {Location: ""}, {Location: "A"}}, nil)
	require.Len(t, roads, 1)
	assert.Equal(t, 0.1, roads[0].Geometry.Slope)
}
