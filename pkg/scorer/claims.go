package scorer

import (
	"errors"
	"math"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg"
	"github.com/wildside/wildside/pkg/datastructure"
	"github.com/wildside/wildside/pkg/poidb"
	"github.com/wildside/wildside/pkg/popularity"
	"github.com/wildside/wildside/pkg/util"
)

const claimLookupSQL = `SELECT 1 FROM poi_wikidata_claims
WHERE poi_id = ? AND property_id = ? AND value_qid = ? LIMIT 1`

var (
	ErrInvalidSelector = errors.New("claim selector needs non-empty property and value identifiers")
	ErrInvalidWeights  = errors.New("score weights must be finite, non-negative and sum to a positive value")
)

// ClaimSelector identifies a Wikidata claim by property and target entity,
// e.g. P1435 (heritage designation) pointing at Q9259 (UNESCO World
// Heritage Site).
type ClaimSelector struct {
	PropertyID string
	ValueQID   string
}

func NewClaimSelector(propertyID, valueQID string) (ClaimSelector, error) {
	if strings.TrimSpace(propertyID) == "" || strings.TrimSpace(valueQID) == "" {
		return ClaimSelector{}, ErrInvalidSelector
	}
	return ClaimSelector{PropertyID: propertyID, ValueQID: valueQID}, nil
}

// ThemeClaimMapping declares which Wikidata claims count as evidence for a
// theme. A theme may map to several selectors; matching any one of them is
// enough.
type ThemeClaimMapping struct {
	selectors map[datastructure.Theme][]ClaimSelector
}

func NewThemeClaimMapping() ThemeClaimMapping {
	return ThemeClaimMapping{selectors: make(map[datastructure.Theme][]ClaimSelector)}
}

// DefaultThemeClaimMapping maps history onto the UNESCO heritage
// designation. Hosts extend the mapping as further claim research lands.
func DefaultThemeClaimMapping() ThemeClaimMapping {
	return NewThemeClaimMapping().WithSelector(datastructure.ThemeHistory, ClaimSelector{
		PropertyID: pkg.HeritagePropertyID,
		ValueQID:   pkg.UnescoDesignation,
	})
}

func (m *ThemeClaimMapping) Insert(theme datastructure.Theme, selector ClaimSelector) {
	if m.selectors == nil {
		m.selectors = make(map[datastructure.Theme][]ClaimSelector)
	}
	m.selectors[theme] = append(m.selectors[theme], selector)
}

// WithSelector inserts and returns the mapping so defaults can be chained.
func (m ThemeClaimMapping) WithSelector(theme datastructure.Theme, selector ClaimSelector) ThemeClaimMapping {
	m.Insert(theme, selector)
	return m
}

func (m ThemeClaimMapping) Selectors(theme datastructure.Theme) []ClaimSelector {
	return m.selectors[theme]
}

func (m ThemeClaimMapping) Len() int {
	return len(m.selectors)
}

// ScoreWeights sets the relative pull of global popularity versus the
// visitor's matched interests.
type ScoreWeights struct {
	Popularity    float32
	UserRelevance float32
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Popularity: 0.5, UserRelevance: 0.5}
}

func (w ScoreWeights) Validate() error {
	p, u := float64(w.Popularity), float64(w.UserRelevance)
	switch {
	case math.IsNaN(p) || math.IsInf(p, 0) || math.IsNaN(u) || math.IsInf(u, 0):
		return ErrInvalidWeights
	case w.Popularity < 0 || w.UserRelevance < 0:
		return ErrInvalidWeights
	case w.Popularity+w.UserRelevance == 0:
		return ErrInvalidWeights
	}
	return nil
}

// blend averages the two components. A POI with no matched interest drops
// the relevance weight entirely, so an unmatched profile degrades to plain
// popularity rather than halving it.
func (w ScoreWeights) blend(popularity, relevance float32) float32 {
	userWeight := float32(0)
	if relevance > 0 {
		userWeight = w.UserRelevance
	}
	total := w.Popularity + userWeight
	if total == 0 {
		return 0
	}
	return (popularity*w.Popularity + relevance*userWeight) / total
}

// ClaimScorer is the production Scorer. Theme matches are resolved against
// the poi_wikidata_claims view with a prepared statement; popularity comes
// from the artefact map loaded at construction. Both the statement and the
// map are safe to share across goroutines.
type ClaimScorer struct {
	stmt       *sqlx.Stmt
	mapping    ThemeClaimMapping
	weights    ScoreWeights
	popularity map[uint64]float32

	db     *sqlx.DB
	ownsDB bool
}

// NewClaimScorer prepares the claim lookup against an already open POI
// database. The caller keeps ownership of db; Close releases only the
// prepared statement.
func NewClaimScorer(db *sqlx.DB, scores map[uint64]float32, mapping ThemeClaimMapping, weights ScoreWeights) (*ClaimScorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	stmt, err := db.Preparex(claimLookupSQL)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "preparing claim lookup statement")
	}
	return &ClaimScorer{
		stmt:       stmt,
		mapping:    mapping,
		weights:    weights,
		popularity: scores,
		db:         db,
	}, nil
}

// OpenClaimScorer builds a scorer with the default mapping and weights from
// the two offline artefacts. The returned scorer owns the database handle.
func OpenClaimScorer(dbPath, popularityPath string, logger *zap.Logger) (*ClaimScorer, error) {
	db, err := poidb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := poidb.CheckSchemaVersion(db); err != nil {
		db.Close()
		return nil, err
	}

	scores, err := popularity.Load(popularityPath, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	scorer, err := NewClaimScorer(db, scores, DefaultThemeClaimMapping(), DefaultScoreWeights())
	if err != nil {
		db.Close()
		return nil, err
	}
	scorer.ownsDB = true

	logger.Info("claim scorer ready",
		zap.String("database", dbPath),
		zap.String("popularity", popularityPath),
		zap.Int("scoredPois", len(scores)))
	return scorer, nil
}

func (s *ClaimScorer) Close() error {
	err := s.stmt.Close()
	if s.ownsDB {
		if dbErr := s.db.Close(); err == nil {
			err = dbErr
		}
	}
	return err
}

func (s *ClaimScorer) Score(poi datastructure.PointOfInterest, profile datastructure.InterestProfile) float32 {
	pop := Sanitise(s.popularity[poi.ID])
	relevance := s.relevance(poi, profile)
	return Sanitise(s.weights.blend(pop, relevance))
}

// relevance sums the weights of profile themes evidenced by at least one
// mapped claim. Themes iterate in sorted order so float accumulation is
// reproducible.
func (s *ClaimScorer) relevance(poi datastructure.PointOfInterest, profile datastructure.InterestProfile) float32 {
	if poi.ID > math.MaxInt64 {
		return 0
	}
	poiID := int64(poi.ID)

	var relevance float32
	for _, theme := range profile.Themes() {
		weight, ok := profile.Weight(theme)
		if !ok || weight <= 0 {
			continue
		}
		for _, selector := range s.mapping.Selectors(theme) {
			if s.claimExists(poiID, selector) {
				relevance += weight
				break
			}
		}
	}
	return Sanitise(relevance)
}

// claimExists treats lookup failures as no match: scoring is infallible.
func (s *ClaimScorer) claimExists(poiID int64, selector ClaimSelector) bool {
	var one int
	err := s.stmt.QueryRow(poiID, selector.PropertyID, selector.ValueQID).Scan(&one)
	return err == nil
}
