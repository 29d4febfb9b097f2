package datastructure

import (
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/twpayne/go-polyline"
)

var ErrDuplicatePoi = errors.New("route contains a duplicate poi")

// Route is an ordered walk over POIs. The request's start and end
// coordinates are not part of the sequence; TotalDuration covers the whole
// leg chain including them.
type Route struct {
	Pois          []PointOfInterest `json:"pois"`
	TotalDuration time.Duration     `json:"total_duration"`
}

// EmptyRoute is the valid zero-POI route with duration zero.
func EmptyRoute() Route {
	return Route{Pois: []PointOfInterest{}}
}

func (r Route) Len() int {
	return len(r.Pois)
}

// Validate rejects duplicate POI ids.
func (r Route) Validate() error {
	seen := make(map[uint64]struct{}, len(r.Pois))
	for _, poi := range r.Pois {
		if _, dup := seen[poi.ID]; dup {
			return ErrDuplicatePoi
		}
		seen[poi.ID] = struct{}{}
	}
	return nil
}

// Polyline encodes the visited coordinates as a Google encoded polyline,
// in visit order.
func (r Route) Polyline() string {
	coords := make([][]float64, 0, len(r.Pois))
	for _, poi := range r.Pois {
		coords = append(coords, []float64{poi.Lat, poi.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}

// MarshalJSON attaches the encoded polyline so consumers can draw the route
// without re-deriving the geometry. Decoding ignores it; the stored fields
// are authoritative.
func (r Route) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Pois          []PointOfInterest `json:"pois"`
		TotalDuration time.Duration     `json:"total_duration"`
		Polyline      string            `json:"polyline,omitempty"`
	}{r.Pois, r.TotalDuration, r.Polyline()})
}
