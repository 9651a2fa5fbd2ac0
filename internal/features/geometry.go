package features

// Geometry is the physical shape of a road segment.
type Geometry struct {
	Slope  float64 `json:"slope"`
	Radius float64 `json:"radius"`
}

// DefaultGeometry is used when neither the location nor the dataset as a
// whole provides a value.
var DefaultGeometry = Geometry{Slope: 0.1, Radius: 100.0}

// GeometrySource says where a geometry value came from.
type GeometrySource string

const (
	GeometryLocation GeometrySource = "location"
	GeometryDataset  GeometrySource = "dataset_mean"
	GeometryDefault  GeometrySource = "default"
)

// GeometryLookup resolves slope and radius for a location name.
// Implementations apply their own fallback chain and report which step
// produced the answer.
type GeometryLookup interface {
	Geometry(location string) (Geometry, GeometrySource)
}
