package dataset

import (
	"fmt"

	"github.com/ghatsafe/ghatsafe/internal/features"
)

// MaxRoads is the size of the featured road catalogue.
const MaxRoads = 10

var roadDescriptions = [MaxRoads]string{
	"A treacherous pass with steep inclines and hairpin bends, offering stunning Himalayan views.",
	"Known for its narrow lanes and rocky terrain, a challenge for even seasoned drivers.",
	"A scenic route through dense forests, prone to fog and slippery conditions.",
	"Famous for its high altitude and unpredictable weather, demanding careful navigation.",
	"A winding road with sharp curves, surrounded by lush greenery and waterfalls.",
	"A remote stretch with loose gravel, requiring slow and steady driving.",
	"A popular tourist route with heavy traffic and tight turns, especially during monsoons.",
	"A rugged path through rocky cliffs, where visibility can drop suddenly.",
	"A serene road with gentle slopes, but watch out for unexpected livestock crossings.",
	"A steep descent with breathtaking vistas, but notorious for sudden rockslides.",
}

// Road is one entry of the featured road catalogue.
type Road struct {
	Location    string            `json:"location"`
	ShortName   string            `json:"short_name"`
	Latitude    *float64          `json:"latitude,omitempty"`
	Longitude   *float64          `json:"longitude,omitempty"`
	Description string            `json:"description"`
	Image       string            `json:"image"`
	Geometry    features.Geometry `json:"geometry"`
}

// FeaturedRoads returns up to MaxRoads distinct locations in dataset order.
func FeaturedRoads(records []Record, geo features.GeometryLookup) []Road {
	seen := map[string]bool{}
	var out []Road
	for _, r := range records {
		if len(out) == MaxRoads {
			break
		}
		if r.Location == "" || seen[r.Location] {
			continue
		}
		seen[r.Location] = true
		i := len(out)
		road := Road{
			Location:    r.Location,
			ShortName:   ShortName(r.Location),
			Latitude:    r.Latitude,
			Longitude:   r.Longitude,
			Description: roadDescriptions[i],
			Image:       fmt.Sprintf("road%d.jpg", i+1),
			Geometry:    features.DefaultGeometry,
		}
		if geo != nil {
			road.Geometry, _ = geo.Geometry(r.Location)
		}
		out = append(out, road)
	}
	return out
}
