package popularity

import (
	"bytes"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg"
	"github.com/wildside/wildside/pkg/util"
)

// Weights tunes the raw popularity signal blend.
type Weights struct {
	SitelinkWeight float32
	UnescoBoost    float32
}

// DefaultWeights mirrors the production artefacts: one point per sitelink
// plus a flat World Heritage bonus.
func DefaultWeights() Weights {
	return Weights{SitelinkWeight: pkg.SitelinkWeight, UnescoBoost: pkg.UnescoBoost}
}

// InvalidSitelinksError reports a sitelink signal that is not a non-negative
// integer.
type InvalidSitelinksError struct {
	PoiID uint64
	Raw   string
}

func (e *InvalidSitelinksError) Error() string {
	return fmt.Sprintf("poi %d carries invalid sitelink count %q", e.PoiID, e.Raw)
}

// Compute derives a normalised popularity score per linked POI. Sitelink
// counts come from the wikidata_entity_sitelinks table (highest count across
// the POI's linked entities), falling back to `sitelinks`/`sitelink_count`
// tag values. Raw scores are divided by the run maximum; a run maximum of 0
// leaves every score at 0. Unlinked POIs are absent (absence reads as 0).
func Compute(db *sqlx.DB, weights Weights, logger *zap.Logger) (map[uint64]float32, error) {
	const query = `
	SELECT l.poi_id, p.tags,
	       MAX(s.count) AS sitelinks,
	       MAX(CASE WHEN c.property_id = ? AND c.value_qid = ? THEN 1 ELSE 0 END) AS unesco
	FROM poi_wikidata_links l
	JOIN pois p ON p.id = l.poi_id
	LEFT JOIN wikidata_entity_sitelinks s ON s.qid = l.qid
	LEFT JOIN wikidata_entity_claims c ON c.qid = l.qid
	GROUP BY l.poi_id`

	rows, err := db.Query(query, pkg.HeritagePropertyID, pkg.UnescoDesignation)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "querying popularity signals")
	}
	defer rows.Close()

	raw := make(map[uint64]float32)
	for rows.Next() {
		var (
			poiID     int64
			tagsJSON  []byte
			sitelinks sql.NullInt64
			unesco    int
		)
		if err := rows.Scan(&poiID, &tagsJSON, &sitelinks, &unesco); err != nil {
			return nil, util.WrapErrorf(err, util.ErrIO, "scanning popularity row")
		}
		id := uint64(poiID)

		count := sitelinks.Int64
		if !sitelinks.Valid {
			count, err = sitelinksFromTags(tagsJSON, id)
			if err != nil {
				return nil, err
			}
		}
		if count < 0 {
			return nil, util.WrapErrorf(
				&InvalidSitelinksError{PoiID: id, Raw: strconv.FormatInt(count, 10)},
				util.ErrIntegrity, "computing popularity")
		}

		score := weights.SitelinkWeight * float32(count)
		if unesco != 0 {
			score += weights.UnescoBoost
		}
		raw[id] = max(score, 0)
	}
	if err := rows.Err(); err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "iterating popularity rows")
	}

	scores := normalise(raw)
	logger.Info("popularity scores computed", zap.Int("pois", len(scores)))
	return scores, nil
}

func normalise(raw map[uint64]float32) map[uint64]float32 {
	var maxRaw float32
	for _, score := range raw {
		maxRaw = max(maxRaw, score)
	}

	scores := make(map[uint64]float32, len(raw))
	for id, score := range raw {
		if maxRaw == 0 {
			scores[id] = 0
			continue
		}
		scores[id] = util.Clamp01(score / maxRaw)
	}
	return scores
}

// sitelinksFromTags pulls a sitelink count embedded in the tag payload.
// Missing keys, JSON null, and blank strings read as 0; anything that is not
// an integer is an InvalidSitelinksError.
func sitelinksFromTags(tagsJSON []byte, poiID uint64) (int64, error) {
	var tags map[string]json.RawMessage
	if err := json.Unmarshal(tagsJSON, &tags); err != nil {
		return 0, util.WrapErrorf(err, util.ErrParse, "decoding tags for poi %d", poiID)
	}

	value, ok := tags["sitelinks"]
	if !ok {
		value, ok = tags["sitelink_count"]
	}
	if !ok {
		return 0, nil
	}

	value = bytes.TrimSpace(value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return 0, nil
	}

	invalid := func() error {
		return util.WrapErrorf(&InvalidSitelinksError{PoiID: poiID, Raw: string(value)},
			util.ErrIntegrity, "computing popularity")
	}

	if value[0] == '"' {
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return 0, invalid()
		}
		text = string(bytes.TrimSpace([]byte(text)))
		if text == "" {
			return 0, nil
		}
		count, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, invalid()
		}
		return count, nil
	}

	var count int64
	if err := json.Unmarshal(value, &count); err != nil {
		return 0, invalid()
	}
	return count, nil
}
