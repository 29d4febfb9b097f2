package osmparser

import (
	"context"
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg/datastructure"
	"github.com/wildside/wildside/pkg/util"
)

func historicNode(id int64, lon, lat float64) *osm.Node {
	return &osm.Node{
		ID:   osm.NodeID(id),
		Lon:  lon,
		Lat:  lat,
		Tags: osm.Tags{{Key: "historic", Value: "castle"}},
	}
}

func plainNode(id int64, lon, lat float64) *osm.Node {
	return &osm.Node{ID: osm.NodeID(id), Lon: lon, Lat: lat}
}

func touristWay(id int64, refs ...int64) *osm.Way {
	nodes := make(osm.WayNodes, 0, len(refs))
	for _, ref := range refs {
		nodes = append(nodes, osm.WayNode{ID: osm.NodeID(ref)})
	}
	return &osm.Way{
		ID:    osm.WayID(id),
		Nodes: nodes,
		Tags:  osm.Tags{{Key: "tourism", Value: "museum"}},
	}
}

func mustPack(t *testing.T, kind datastructure.ElementKind, id int64) uint64 {
	t.Helper()
	packed, err := datastructure.PackPoiID(kind, id)
	require.NoError(t, err)
	return packed
}

func TestDefaultRelevance(t *testing.T) {
	assert.True(t, DefaultRelevance(map[string]string{"historic": "castle"}))
	assert.True(t, DefaultRelevance(map[string]string{"tourism": "museum"}))
	assert.False(t, DefaultRelevance(map[string]string{"highway": "residential"}))
	assert.False(t, DefaultRelevance(nil))
}

func TestAccumulatorBuildsNodePois(t *testing.T) {
	acc := newAccumulator(DefaultRelevance, zap.NewNop())

	require.NoError(t, acc.addNode(historicNode(7, -0.1, 51.5)))
	require.NoError(t, acc.addNode(plainNode(8, -0.2, 51.6)))

	summary, pois, unresolved := acc.resolve()

	assert.Equal(t, int64(2), summary.Nodes)
	assert.Empty(t, unresolved)
	require.Len(t, pois, 1)
	assert.Equal(t, mustPack(t, datastructure.KindNode, 7), pois[0].ID)
	assert.Equal(t, -0.1, pois[0].Lon)
	assert.Equal(t, 51.5, pois[0].Lat)
	assert.Equal(t, map[string]string{"historic": "castle"}, pois[0].Tags)
	// bounds cover the plain node too
	assert.Equal(t, datastructure.Coordinate{Lon: -0.2, Lat: 51.5}, summary.Bounds.Min)
	assert.Equal(t, datastructure.Coordinate{Lon: -0.1, Lat: 51.6}, summary.Bounds.Max)
}

func TestAccumulatorDropsOutOfBoundsNode(t *testing.T) {
	acc := newAccumulator(DefaultRelevance, zap.NewNop())

	require.NoError(t, acc.addNode(historicNode(3, -0.1, 95)))

	summary, pois, _ := acc.resolve()
	assert.Equal(t, int64(1), summary.Nodes, "dropped nodes still count")
	assert.Empty(t, pois)
	assert.Equal(t, datastructure.Rect{}, summary.Bounds)
}

func TestAccumulatorAnchorsWayAtFirstResolvedRef(t *testing.T) {
	acc := newAccumulator(DefaultRelevance, zap.NewNop())

	require.NoError(t, acc.addWay(touristWay(9, 5, 6)))
	// node 5 never shows up; node 6 does
	acc.captureCoord(plainNode(6, -0.15, 51.52))

	summary, pois, unresolved := acc.resolve()

	assert.Equal(t, int64(1), summary.Ways)
	assert.Empty(t, unresolved)
	require.Len(t, pois, 1)
	assert.Equal(t, mustPack(t, datastructure.KindWay, 9), pois[0].ID)
	assert.Equal(t, -0.15, pois[0].Lon)
	assert.Equal(t, 51.52, pois[0].Lat)
}

func TestAccumulatorReportsUnresolvedWays(t *testing.T) {
	acc := newAccumulator(DefaultRelevance, zap.NewNop())

	require.NoError(t, acc.addWay(touristWay(9, 5, 6)))

	_, pois, unresolved := acc.resolve()

	assert.Empty(t, pois)
	assert.Equal(t, []UnresolvedWayNode{{WayID: 9, NodeID: 5}}, unresolved)
}

func TestAccumulatorIgnoresIrrelevantAndEmptyWays(t *testing.T) {
	acc := newAccumulator(DefaultRelevance, zap.NewNop())

	road := &osm.Way{
		ID:    1,
		Nodes: osm.WayNodes{{ID: 2}},
		Tags:  osm.Tags{{Key: "highway", Value: "residential"}},
	}
	nodeless := &osm.Way{ID: 2, Tags: osm.Tags{{Key: "tourism", Value: "museum"}}}
	require.NoError(t, acc.addWay(road))
	require.NoError(t, acc.addWay(nodeless))

	summary, pois, unresolved := acc.resolve()
	assert.Equal(t, int64(2), summary.Ways)
	assert.Empty(t, pois)
	assert.Empty(t, unresolved)
}

func TestAccumulatorCountsRelationsWithoutMaterialising(t *testing.T) {
	acc := newAccumulator(DefaultRelevance, zap.NewNop())

	acc.addRelation(&osm.Relation{ID: 4})
	acc.addRelation(&osm.Relation{ID: 5})

	summary, pois, _ := acc.resolve()
	assert.Equal(t, int64(2), summary.Relations)
	assert.Empty(t, pois)
}

func TestAccumulatorOverflowFailsIngest(t *testing.T) {
	acc := newAccumulator(DefaultRelevance, zap.NewNop())

	err := acc.addNode(historicNode(1<<62, -0.1, 51.5))

	var overflow *datastructure.SourceIDOverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, datastructure.KindNode, overflow.Kind)
}

// Chunked accumulation over the same element stream must match a single
// sequential pass, whatever the chunking.
func TestAccumulatorCombineMatchesSequential(t *testing.T) {
	elements := []osm.Object{
		historicNode(1, -0.10, 51.50),
		plainNode(2, -0.11, 51.51),
		touristWay(3, 2, 4),
		historicNode(5, -0.12, 51.52),
		&osm.Relation{ID: 6},
		touristWay(7, 99), // never resolves
		plainNode(4, -0.13, 51.53),
		&osm.Relation{ID: 8},
	}

	feed := func(acc *accumulator, chunk []osm.Object) {
		for _, e := range chunk {
			switch v := e.(type) {
			case *osm.Node:
				require.NoError(t, acc.addNode(v))
			case *osm.Way:
				require.NoError(t, acc.addWay(v))
			case *osm.Relation:
				acc.addRelation(v)
			}
		}
	}
	capture := func(acc *accumulator) {
		for _, e := range elements {
			if node, ok := e.(*osm.Node); ok {
				acc.captureCoord(node)
			}
		}
	}

	sequential := newAccumulator(DefaultRelevance, zap.NewNop())
	feed(sequential, elements)
	capture(sequential)
	wantSummary, wantPois, wantUnresolved := sequential.resolve()

	for _, split := range [][2]int{{3, 5}, {1, 7}, {4, 4}} {
		first := newAccumulator(DefaultRelevance, zap.NewNop())
		second := newAccumulator(DefaultRelevance, zap.NewNop())
		third := newAccumulator(DefaultRelevance, zap.NewNop())
		feed(first, elements[:split[0]])
		feed(second, elements[split[0]:split[1]])
		feed(third, elements[split[1]:])

		first.combine(second)
		first.combine(third)
		capture(first)
		summary, pois, unresolved := first.resolve()

		assert.Equal(t, wantSummary, summary, "split %v", split)
		assert.Equal(t, wantPois, pois, "split %v", split)
		assert.Equal(t, wantUnresolved, unresolved, "split %v", split)
	}
}

func TestAccumulatorSmallExtract(t *testing.T) {
	acc := newAccumulator(DefaultRelevance, zap.NewNop())

	require.NoError(t, acc.addNode(plainNode(1, -0.10, 51.50)))
	require.NoError(t, acc.addNode(plainNode(2, -0.11, 51.51)))
	require.NoError(t, acc.addNode(plainNode(3, -0.12, 51.52)))
	require.NoError(t, acc.addWay(touristWay(10, 1, 2, 3)))
	acc.addRelation(&osm.Relation{ID: 20})
	for _, node := range []*osm.Node{plainNode(1, -0.10, 51.50), plainNode(2, -0.11, 51.51), plainNode(3, -0.12, 51.52)} {
		acc.captureCoord(node)
	}

	summary, pois, unresolved := acc.resolve()

	assert.Equal(t, int64(3), summary.Nodes)
	assert.Equal(t, int64(1), summary.Ways)
	assert.Equal(t, int64(1), summary.Relations)
	assert.Empty(t, unresolved)
	require.Len(t, pois, 1)
	assert.Equal(t, mustPack(t, datastructure.KindWay, 10), pois[0].ID)
	assert.Equal(t, -0.10, pois[0].Lon)
	assert.Equal(t, 51.50, pois[0].Lat)
}

func TestCustomRelevancePredicate(t *testing.T) {
	amenities := func(tags map[string]string) bool {
		_, ok := tags["amenity"]
		return ok
	}
	acc := newAccumulator(amenities, zap.NewNop())

	cafe := &osm.Node{ID: 1, Lon: -0.1, Lat: 51.5, Tags: osm.Tags{{Key: "amenity", Value: "cafe"}}}
	require.NoError(t, acc.addNode(cafe))
	require.NoError(t, acc.addNode(historicNode(2, -0.1, 51.5)))

	_, pois, _ := acc.resolve()
	require.Len(t, pois, 1)
	assert.Equal(t, "cafe", pois[0].Tags["amenity"])
}

func TestParseMissingFileFailsWithIOError(t *testing.T) {
	parser := NewParser(zap.NewNop())

	_, _, _, err := parser.Parse(context.Background(), "/nonexistent/extract.pbf")

	require.Error(t, err)
	assert.Equal(t, util.ErrIO, util.CodeOf(err))
}
