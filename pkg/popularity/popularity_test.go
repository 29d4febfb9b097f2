package popularity

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg/datastructure"
	"github.com/wildside/wildside/pkg/poidb"
	"github.com/wildside/wildside/pkg/wikidata"
)

// seedThreePois builds the canonical fixture: A has 10 sitelinks and a World
// Heritage designation, B has 40 sitelinks, C has none.
func seedThreePois(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := poidb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, poidb.InitialiseSchema(db))

	require.NoError(t, poidb.UpsertPois(db, []datastructure.PointOfInterest{
		{ID: 1, Lon: 0, Lat: 0, Tags: map[string]string{"wikidata": "Q100"}},
		{ID: 2, Lon: 1, Lat: 1, Tags: map[string]string{"wikidata": "Q200"}},
		{ID: 3, Lon: 2, Lat: 2, Tags: map[string]string{"wikidata": "Q300"}},
	}))

	links := wikidata.BuildPoiEntityLinks([]datastructure.PointOfInterest{
		{ID: 1, Tags: map[string]string{"wikidata": "Q100"}},
		{ID: 2, Tags: map[string]string{"wikidata": "Q200"}},
		{ID: 3, Tags: map[string]string{"wikidata": "Q300"}},
	}, zap.NewNop())
	claims := []wikidata.EntityClaims{
		{QID: "Q100", Claims: []wikidata.Claim{{PropertyID: "P1435", ValueQID: "Q9259"}}, Sitelinks: 10},
		{QID: "Q200", Sitelinks: 40},
		{QID: "Q300"},
	}
	require.NoError(t, wikidata.PersistClaims(db, links, claims))
	return db
}

func TestComputeNormalisesScores(t *testing.T) {
	db := seedThreePois(t)

	scores, err := Compute(db, DefaultWeights(), zap.NewNop())
	require.NoError(t, err)

	require.Len(t, scores, 3)
	assert.InDelta(t, 0.875, scores[1], 1e-6)
	assert.InDelta(t, 1.0, scores[2], 1e-6)
	assert.InDelta(t, 0.0, scores[3], 1e-6)
	for _, score := range scores {
		assert.LessOrEqual(t, score, float32(1.0))
		assert.GreaterOrEqual(t, score, float32(0.0))
	}
}

func TestComputeSkipsUnlinkedPois(t *testing.T) {
	db := seedThreePois(t)
	require.NoError(t, poidb.UpsertPois(db, []datastructure.PointOfInterest{
		{ID: 50, Lon: 5, Lat: 5, Tags: map[string]string{"historic": "ruins"}},
	}))

	scores, err := Compute(db, DefaultWeights(), zap.NewNop())
	require.NoError(t, err)

	_, present := scores[50]
	assert.False(t, present)
	assert.Len(t, scores, 3)
}

func TestComputeFallsBackToTagSitelinks(t *testing.T) {
	db, err := poidb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, poidb.InitialiseSchema(db))

	require.NoError(t, poidb.UpsertPois(db, []datastructure.PointOfInterest{
		{ID: 1, Lon: 0, Lat: 0, Tags: map[string]string{"wikidata": "Q1", "sitelinks": "8"}},
		{ID: 2, Lon: 1, Lat: 1, Tags: map[string]string{"wikidata": "Q2", "sitelink_count": "4"}},
	}))
	links := wikidata.BuildPoiEntityLinks([]datastructure.PointOfInterest{
		{ID: 1, Tags: map[string]string{"wikidata": "Q1"}},
		{ID: 2, Tags: map[string]string{"wikidata": "Q2"}},
	}, zap.NewNop())
	require.NoError(t, wikidata.PersistClaims(db, links, []wikidata.EntityClaims{
		{QID: "Q1"}, {QID: "Q2"},
	}))

	scores, err := Compute(db, DefaultWeights(), zap.NewNop())
	require.NoError(t, err)

	assert.InDelta(t, 1.0, scores[1], 1e-6)
	assert.InDelta(t, 0.5, scores[2], 1e-6)
}

func TestComputeRejectsInvalidSitelinkTags(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
	}{
		{"non-numeric", map[string]string{"wikidata": "Q1", "sitelinks": "many"}},
		{"negative", map[string]string{"wikidata": "Q1", "sitelinks": "-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := poidb.Open(":memory:")
			require.NoError(t, err)
			defer db.Close()
			require.NoError(t, poidb.InitialiseSchema(db))
			require.NoError(t, poidb.UpsertPois(db, []datastructure.PointOfInterest{
				{ID: 1, Lon: 0, Lat: 0, Tags: tt.tags},
			}))
			links := wikidata.BuildPoiEntityLinks([]datastructure.PointOfInterest{
				{ID: 1, Tags: tt.tags},
			}, zap.NewNop())
			require.NoError(t, wikidata.PersistClaims(db, links, []wikidata.EntityClaims{{QID: "Q1"}}))

			_, err = Compute(db, DefaultWeights(), zap.NewNop())
			require.Error(t, err)

			var invalid *InvalidSitelinksError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, uint64(1), invalid.PoiID)
		})
	}
}

func TestComputeAllZeroStaysZero(t *testing.T) {
	db, err := poidb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, poidb.InitialiseSchema(db))
	require.NoError(t, poidb.UpsertPois(db, []datastructure.PointOfInterest{
		{ID: 1, Lon: 0, Lat: 0, Tags: map[string]string{"wikidata": "Q1"}},
	}))
	links := wikidata.BuildPoiEntityLinks([]datastructure.PointOfInterest{
		{ID: 1, Tags: map[string]string{"wikidata": "Q1"}},
	}, zap.NewNop())
	require.NoError(t, wikidata.PersistClaims(db, links, []wikidata.EntityClaims{{QID: "Q1"}}))

	scores, err := Compute(db, DefaultWeights(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, map[uint64]float32{1: 0}, scores)
}

func TestWriteLoadRoundTrip(t *testing.T) {
	log := zap.NewNop()
	path := filepath.Join(t.TempDir(), "popularity.bin")

	scores := map[uint64]float32{1: 0.875, 2: 1.0, 3: 0.0}
	require.NoError(t, Write(path, scores, log))

	loaded, err := Load(path, log)
	require.NoError(t, err)
	assert.Equal(t, scores, loaded)
}

func TestMonotonicInSignals(t *testing.T) {
	weights := DefaultWeights()

	lowSitelinks := weights.SitelinkWeight * 5
	highSitelinks := weights.SitelinkWeight * 20
	assert.Greater(t, highSitelinks, lowSitelinks)

	plain := weights.SitelinkWeight * 10
	heritage := weights.SitelinkWeight*10 + weights.UnescoBoost
	assert.Greater(t, heritage, plain)
}
