package osmparser

import (
	"cmp"
	"slices"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg/datastructure"
)

// wayCandidate is a relevant way awaiting its geometry anchor. The POI id
// is packed up front so id overflow fails during the scan, not after it.
type wayCandidate struct {
	poiID uint64
	wayID int64
	refs  []int64
	tags  map[string]string
}

// accumulator folds scanned elements into POIs, counts and bounds. Merging
// two accumulators with combine is associative, so chunked accumulation
// over the same element stream produces the same result as a single pass.
type accumulator struct {
	relevant RelevancePredicate
	logger   *zap.Logger

	nodes     int64
	ways      int64
	relations int64

	hasBounds bool
	bounds    datastructure.Rect

	pois       []datastructure.PointOfInterest
	candidates []wayCandidate

	// node ids some candidate way references, filled during the element
	// scan; coords resolves them on the second pass.
	needed map[int64]struct{}
	coords map[int64]datastructure.Coordinate
}

func newAccumulator(relevant RelevancePredicate, logger *zap.Logger) *accumulator {
	return &accumulator{
		relevant: relevant,
		logger:   logger,
		needed:   make(map[int64]struct{}),
		coords:   make(map[int64]datastructure.Coordinate),
	}
}

func (a *accumulator) addNode(n *osm.Node) error {
	a.nodes++

	coord := datastructure.Coordinate{Lon: n.Lon, Lat: n.Lat}
	if !coord.InWGS84Bounds() {
		a.logger.Warn("dropping node outside wgs84 bounds",
			zap.Int64("node", int64(n.ID)),
			zap.Float64("lon", n.Lon), zap.Float64("lat", n.Lat))
		return nil
	}
	a.growBounds(coord)

	if len(n.Tags) == 0 {
		return nil
	}
	tags := tagMap(n.Tags)
	if !a.relevant(tags) {
		return nil
	}

	id, err := datastructure.PackPoiID(datastructure.KindNode, int64(n.ID))
	if err != nil {
		return err
	}
	a.pois = append(a.pois, datastructure.NewPointOfInterest(id, coord.Lon, coord.Lat, tags))
	return nil
}

func (a *accumulator) addWay(w *osm.Way) error {
	a.ways++

	if len(w.Nodes) == 0 || len(w.Tags) == 0 {
		return nil
	}
	tags := tagMap(w.Tags)
	if !a.relevant(tags) {
		return nil
	}

	id, err := datastructure.PackPoiID(datastructure.KindWay, int64(w.ID))
	if err != nil {
		return err
	}

	refs := make([]int64, 0, len(w.Nodes))
	for _, wn := range w.Nodes {
		refs = append(refs, int64(wn.ID))
		a.needed[int64(wn.ID)] = struct{}{}
	}
	a.candidates = append(a.candidates, wayCandidate{
		poiID: id,
		wayID: int64(w.ID),
		refs:  refs,
		tags:  tags,
	})
	return nil
}

func (a *accumulator) addRelation(_ *osm.Relation) {
	a.relations++
}

// captureCoord records the location of a node some way references. Nodes
// outside WGS84 bounds cannot anchor a way.
func (a *accumulator) captureCoord(n *osm.Node) {
	if _, ok := a.needed[int64(n.ID)]; !ok {
		return
	}
	coord := datastructure.Coordinate{Lon: n.Lon, Lat: n.Lat}
	if !coord.InWGS84Bounds() {
		return
	}
	a.coords[int64(n.ID)] = coord
}

func (a *accumulator) combine(other *accumulator) {
	a.nodes += other.nodes
	a.ways += other.ways
	a.relations += other.relations

	if other.hasBounds {
		if a.hasBounds {
			a.bounds = a.bounds.Expand(other.bounds.Min).Expand(other.bounds.Max)
		} else {
			a.bounds = other.bounds
			a.hasBounds = true
		}
	}

	a.pois = append(a.pois, other.pois...)
	a.candidates = append(a.candidates, other.candidates...)
	for ref := range other.needed {
		a.needed[ref] = struct{}{}
	}
	for id, coord := range other.coords {
		a.coords[id] = coord
	}
}

// resolve anchors every candidate way at its first resolvable node ref and
// assembles the final id-ordered POI slice. Ways with no resolvable ref
// are dropped and reported.
func (a *accumulator) resolve() (Summary, []datastructure.PointOfInterest, []UnresolvedWayNode) {
	pois := a.pois
	unresolved := make([]UnresolvedWayNode, 0)

	for _, way := range a.candidates {
		anchor, ok := a.anchorFor(way)
		if !ok {
			a.logger.Warn("dropping way with unresolved geometry anchor",
				zap.Int64("way", way.wayID), zap.Int64("node", way.refs[0]))
			unresolved = append(unresolved, UnresolvedWayNode{WayID: way.wayID, NodeID: way.refs[0]})
			continue
		}
		pois = append(pois, datastructure.NewPointOfInterest(way.poiID, anchor.Lon, anchor.Lat, way.tags))
	}

	slices.SortFunc(pois, func(x, y datastructure.PointOfInterest) int {
		return cmp.Compare(x.ID, y.ID)
	})
	slices.SortFunc(unresolved, func(x, y UnresolvedWayNode) int {
		return cmp.Compare(x.WayID, y.WayID)
	})

	summary := Summary{Nodes: a.nodes, Ways: a.ways, Relations: a.relations}
	if a.hasBounds {
		summary.Bounds = a.bounds
	}
	return summary, pois, unresolved
}

func (a *accumulator) anchorFor(way wayCandidate) (datastructure.Coordinate, bool) {
	for _, ref := range way.refs {
		if coord, ok := a.coords[ref]; ok {
			return coord, true
		}
	}
	return datastructure.Coordinate{}, false
}

func (a *accumulator) growBounds(coord datastructure.Coordinate) {
	if !a.hasBounds {
		a.bounds = datastructure.Rect{Min: coord, Max: coord}
		a.hasBounds = true
		return
	}
	a.bounds = a.bounds.Expand(coord)
}

func tagMap(tags osm.Tags) map[string]string {
	out := make(map[string]string, len(tags))
	for _, tag := range tags {
		out[tag.Key] = tag.Value
	}
	return out
}
