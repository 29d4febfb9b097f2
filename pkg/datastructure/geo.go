package datastructure

import "math"

// Coordinate is a WGS84 position with longitude on the x axis and latitude
// on the y axis.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

func NewCoordinate(lon, lat float64) Coordinate {
	return Coordinate{Lon: lon, Lat: lat}
}

func (c Coordinate) IsFinite() bool {
	return !math.IsNaN(c.Lon) && !math.IsInf(c.Lon, 0) &&
		!math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0)
}

func (c Coordinate) InWGS84Bounds() bool {
	return c.Lon >= -180 && c.Lon <= 180 && c.Lat >= -90 && c.Lat <= 90
}

// Rect is an axis-aligned bounding box. Containment is boundary inclusive.
type Rect struct {
	Min Coordinate `json:"min"`
	Max Coordinate `json:"max"`
}

// NewRect spans the rectangle between two corners given in any orientation.
func NewRect(a, b Coordinate) Rect {
	return Rect{
		Min: Coordinate{Lon: math.Min(a.Lon, b.Lon), Lat: math.Min(a.Lat, b.Lat)},
		Max: Coordinate{Lon: math.Max(a.Lon, b.Lon), Lat: math.Max(a.Lat, b.Lat)},
	}
}

func (r Rect) Contains(c Coordinate) bool {
	return c.Lon >= r.Min.Lon && c.Lon <= r.Max.Lon &&
		c.Lat >= r.Min.Lat && c.Lat <= r.Max.Lat
}

// Intersects reports whether two rectangles share any point, boundaries
// included.
func (r Rect) Intersects(o Rect) bool {
	return r.Min.Lon <= o.Max.Lon && o.Min.Lon <= r.Max.Lon &&
		r.Min.Lat <= o.Max.Lat && o.Min.Lat <= r.Max.Lat
}

// Expand grows the rectangle just enough to cover c.
func (r Rect) Expand(c Coordinate) Rect {
	return Rect{
		Min: Coordinate{Lon: math.Min(r.Min.Lon, c.Lon), Lat: math.Min(r.Min.Lat, c.Lat)},
		Max: Coordinate{Lon: math.Max(r.Max.Lon, c.Lon), Lat: math.Max(r.Max.Lat, c.Lat)},
	}
}

// Buffer grows the rectangle by delta degrees on every side.
func (r Rect) Buffer(delta float64) Rect {
	return Rect{
		Min: Coordinate{Lon: r.Min.Lon - delta, Lat: r.Min.Lat - delta},
		Max: Coordinate{Lon: r.Max.Lon + delta, Lat: r.Max.Lat + delta},
	}
}
