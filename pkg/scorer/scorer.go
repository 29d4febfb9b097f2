// Package scorer assigns per-request relevance scores to points of
// interest. A score blends the visitor's interest profile with the
// pre-computed global popularity artefact and always lands in [0, 1].
package scorer

import (
	"math"

	"github.com/wildside/wildside/pkg/datastructure"
	"github.com/wildside/wildside/pkg/util"
)

// Scorer rates a point of interest for a visitor profile. Higher is a
// better match. Implementations must be safe for concurrent use and
// infallible: when no information is available they return 0.
//
// Every implementation returns a finite, non-negative value in [0, 1];
// Sanitise applies those guards to a raw score.
type Scorer interface {
	Score(poi datastructure.PointOfInterest, profile datastructure.InterestProfile) float32
}

// Sanitise clamps a raw score to [0, 1] and maps NaN and ±Inf to 0.
func Sanitise(score float32) float32 {
	f := float64(score)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return util.Clamp01(score)
}

// TagScorer is the reference implementation used by tests: it sums the
// profile weights of every theme whose name appears among the POI's tag
// keys. No database or popularity artefact is consulted.
type TagScorer struct{}

func (TagScorer) Score(poi datastructure.PointOfInterest, profile datastructure.InterestProfile) float32 {
	var sum float32
	for _, theme := range profile.Themes() {
		if _, ok := poi.Tags[theme.String()]; !ok {
			continue
		}
		weight, ok := profile.Weight(theme)
		if !ok {
			continue
		}
		sum += weight
	}
	return Sanitise(sum)
}
