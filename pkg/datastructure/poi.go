package datastructure

import (
	"fmt"
	"maps"
)

// ElementKind is the OpenStreetMap element a POI id was derived from. The
// kind occupies the top two bits of the id; the low 62 bits carry the source
// element id.
type ElementKind uint8

const (
	KindNode ElementKind = iota
	KindWay
	KindRelation
)

func (k ElementKind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindWay:
		return "way"
	case KindRelation:
		return "relation"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

const (
	kindShift    = 62
	maxSourceID  = int64(1)<<kindShift - 1
	sourceIDMask = uint64(1)<<kindShift - 1
)

// SourceIDOverflowError reports an OSM source id that does not fit the
// 62-bit id space.
type SourceIDOverflowError struct {
	Kind     ElementKind
	SourceID int64
}

func (e *SourceIDOverflowError) Error() string {
	return fmt.Sprintf("%s id %d does not fit the 62-bit poi id space", e.Kind, e.SourceID)
}

// PackPoiID encodes (kind, source id) into the POI id namespace.
func PackPoiID(kind ElementKind, sourceID int64) (uint64, error) {
	if sourceID < 0 || sourceID > maxSourceID {
		return 0, &SourceIDOverflowError{Kind: kind, SourceID: sourceID}
	}
	return uint64(kind)<<kindShift | uint64(sourceID), nil
}

func PoiIDKind(id uint64) ElementKind {
	return ElementKind(id >> kindShift)
}

func PoiIDSource(id uint64) int64 {
	return int64(id & sourceIDMask)
}

// PointOfInterest is created by the ingest and immutable afterwards.
// Identity and ordering are by ID.
type PointOfInterest struct {
	ID   uint64            `json:"id"`
	Lon  float64           `json:"lon"`
	Lat  float64           `json:"lat"`
	Tags map[string]string `json:"tags,omitempty"`
}

func NewPointOfInterest(id uint64, lon, lat float64, tags map[string]string) PointOfInterest {
	return PointOfInterest{ID: id, Lon: lon, Lat: lat, Tags: tags}
}

func (p PointOfInterest) Coordinate() Coordinate {
	return Coordinate{Lon: p.Lon, Lat: p.Lat}
}

// Clone deep-copies the POI, detaching the tag map from the original.
func (p PointOfInterest) Clone() PointOfInterest {
	out := p
	if p.Tags != nil {
		out.Tags = maps.Clone(p.Tags)
	}
	return out
}
