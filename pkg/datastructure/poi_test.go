package datastructure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackPoiID(t *testing.T) {
	testCases := []struct {
		name     string
		kind     ElementKind
		sourceID int64
	}{
		{name: "node", kind: KindNode, sourceID: 42},
		{name: "way", kind: KindWay, sourceID: 7},
		{name: "relation", kind: KindRelation, sourceID: 1},
		{name: "max source id", kind: KindNode, sourceID: int64(1)<<62 - 1},
		{name: "zero", kind: KindWay, sourceID: 0},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			id, err := PackPoiID(tt.kind, tt.sourceID)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, PoiIDKind(id))
			assert.Equal(t, tt.sourceID, PoiIDSource(id))
		})
	}
}

func TestPackPoiIDOverflow(t *testing.T) {
	_, err := PackPoiID(KindNode, int64(1)<<62)
	require.Error(t, err)

	var overflow *SourceIDOverflowError
	require.True(t, errors.As(err, &overflow))
	assert.Equal(t, KindNode, overflow.Kind)

	_, err = PackPoiID(KindWay, -1)
	require.Error(t, err)
}

func TestPoiIDKindsDisjoint(t *testing.T) {
	nodeID, err := PackPoiID(KindNode, 99)
	require.NoError(t, err)
	wayID, err := PackPoiID(KindWay, 99)
	require.NoError(t, err)
	relID, err := PackPoiID(KindRelation, 99)
	require.NoError(t, err)

	assert.NotEqual(t, nodeID, wayID)
	assert.NotEqual(t, wayID, relID)
	assert.NotEqual(t, nodeID, relID)
}

func TestPointOfInterestClone(t *testing.T) {
	poi := NewPointOfInterest(1, 110.36, -7.77, map[string]string{"tourism": "museum"})

	clone := poi.Clone()
	clone.Tags["tourism"] = "hotel"

	assert.Equal(t, "museum", poi.Tags["tourism"])
	assert.Equal(t, poi.ID, clone.ID)
	assert.Equal(t, poi.Coordinate(), clone.Coordinate())
}
