package wikidata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg/datastructure"
)

func TestNormaliseWikidataID(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  string
		valid bool
	}{
		{"plain id", "Q64", "Q64", true},
		{"lowercase", "q9259", "Q9259", true},
		{"entity url", "https://www.wikidata.org/wiki/Q9259", "Q9259", true},
		{"prefixed", "wd:Q42", "Q42", true},
		{"fragment", "https://example.org/page#Q7", "Q7", true},
		{"padded", "  Q12  ", "Q12", true},
		{"empty", "", "", false},
		{"not an id", "not-an-id", "", false},
		{"missing digits", "Q", "", false},
		{"letters in digits", "Q12a", "", false},
		{"property id", "P1435", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormaliseWikidataID(tt.raw)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPoiEntityLinks(t *testing.T) {
	log := zap.NewNop()
	pois := []datastructure.PointOfInterest{
		{ID: 7, Tags: map[string]string{"wikidata": "Q64"}},
		{ID: 7, Tags: map[string]string{"wikidata": "Q64"}},
		{ID: 3, Tags: map[string]string{"wikidata": "https://www.wikidata.org/wiki/Q64"}},
		{ID: 9, Tags: map[string]string{"wikidata": "not-an-id"}},
		{ID: 11, Tags: map[string]string{"historic": "castle"}},
	}

	links := BuildPoiEntityLinks(pois, log)

	assert.Equal(t, 1, links.Len())
	assert.True(t, links.Contains("Q64"))
	assert.Equal(t, []uint64{3, 7}, links.LinkedPoiIDs("Q64"))
	assert.False(t, links.Contains("Q9"))
	assert.Equal(t, []string{"Q64"}, links.QIDs())
}
