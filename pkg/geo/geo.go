package geo

import (
	"github.com/golang/geo/s2"

	"github.com/wildside/wildside/pkg"
	"github.com/wildside/wildside/pkg/datastructure"
	"github.com/wildside/wildside/pkg/util"
)

// HaversineDistance returns the great-circle distance between two WGS84
// coordinates in kilometres.
func HaversineDistance(from, to datastructure.Coordinate) float64 {
	a := s2.LatLngFromDegrees(from.Lat, from.Lon)
	b := s2.LatLngFromDegrees(to.Lat, to.Lon)
	return a.Distance(b).Radians() * pkg.EarthRadiusKm
}

// WalkingRadiusDeg converts a walking budget into a coarse search radius in
// degrees, using the flat KmPerDegree approximation the candidate box is
// sized with.
func WalkingRadiusDeg(durationMinutes uint16, speedKmh float64) float64 {
	hours := float64(durationMinutes) / 60.0
	return hours * speedKmh / pkg.KmPerDegree
}

// SearchRect is the candidate bounding box for one request: centred on
// start, expanded to cover end when present, buffered by the walking radius
// on every side and clamped to WGS84 range.
func SearchRect(start datastructure.Coordinate, end *datastructure.Coordinate,
	durationMinutes uint16, speedKmh float64) datastructure.Rect {

	rect := datastructure.NewRect(start, start)
	if end != nil {
		rect = rect.Expand(*end)
	}
	rect = rect.Buffer(WalkingRadiusDeg(durationMinutes, speedKmh))

	rect.Min.Lon = util.ClampG(rect.Min.Lon, -180, 180)
	rect.Max.Lon = util.ClampG(rect.Max.Lon, -180, 180)
	rect.Min.Lat = util.ClampG(rect.Min.Lat, -90, 90)
	rect.Max.Lat = util.ClampG(rect.Max.Lat, -90, 90)
	return rect
}
