package wikidata

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg/datastructure"
)

// PoiEntityLinks maps Wikidata entity ids to the POIs whose `wikidata` tag
// references them. POI id lists are sorted and deduplicated.
type PoiEntityLinks struct {
	links map[string][]uint64
}

// BuildPoiEntityLinks scans POI tags for `wikidata` references. Values that
// do not normalise to a Q-id are skipped with a warning.
func BuildPoiEntityLinks(pois []datastructure.PointOfInterest, log *zap.Logger) PoiEntityLinks {
	links := make(map[string][]uint64)
	for _, poi := range pois {
		raw, ok := poi.Tags["wikidata"]
		if !ok {
			continue
		}
		qid, ok := NormaliseWikidataID(raw)
		if !ok {
			log.Warn("skipping malformed wikidata tag",
				zap.Uint64("poi", poi.ID), zap.String("value", raw))
			continue
		}
		links[qid] = append(links[qid], poi.ID)
	}
	for qid, ids := range links {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		deduped := ids[:0]
		for i, id := range ids {
			if i == 0 || id != ids[i-1] {
				deduped = append(deduped, id)
			}
		}
		links[qid] = deduped
	}
	return PoiEntityLinks{links: links}
}

// Contains reports whether the entity id is referenced by any POI.
func (l PoiEntityLinks) Contains(qid string) bool {
	_, ok := l.links[qid]
	return ok
}

// LinkedPoiIDs returns the sorted POI ids referencing the entity.
func (l PoiEntityLinks) LinkedPoiIDs(qid string) []uint64 {
	return l.links[qid]
}

// Len is the number of distinct referenced entities.
func (l PoiEntityLinks) Len() int {
	return len(l.links)
}

// QIDs returns the referenced entity ids in ascending order.
func (l PoiEntityLinks) QIDs() []string {
	qids := make([]string, 0, len(l.links))
	for qid := range l.links {
		qids = append(qids, qid)
	}
	sort.Strings(qids)
	return qids
}

// NormaliseWikidataID reduces a raw `wikidata` tag value or claim target to
// its canonical Q-id. It tolerates full entity URLs, `wd:`-style prefixes and
// lowercase q, and rejects anything that is not Q followed by digits.
func NormaliseWikidataID(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if i := strings.LastIndexAny(trimmed, "/#"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if i := strings.LastIndex(trimmed, ":"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	trimmed = strings.TrimSpace(trimmed)
	if len(trimmed) < 2 || (trimmed[0] != 'Q' && trimmed[0] != 'q') {
		return "", false
	}
	digits := trimmed[1:]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return "", false
		}
	}
	return "Q" + digits, true
}
