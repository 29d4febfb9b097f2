package wikidata

import (
	"fmt"
	"slices"

	"github.com/jmoiron/sqlx"

	"github.com/wildside/wildside/pkg/poidb"
	"github.com/wildside/wildside/pkg/util"
)

// MissingPoiError reports a link referencing a POI id absent from the pois
// table. Nothing is written when any link dangles.
type MissingPoiError struct {
	PoiID uint64
	QID   string
}

func (e *MissingPoiError) Error() string {
	return fmt.Sprintf("poi %d referenced by entity %s is missing from the pois table", e.PoiID, e.QID)
}

// PersistClaims writes extracted entities, their POI links, claims, and
// sitelink counts in one transaction. Every insert is OR IGNORE, so
// re-running the same extraction leaves the database unchanged. POI rows
// must exist before their links are written.
func PersistClaims(db *sqlx.DB, links PoiEntityLinks, claims []EntityClaims) error {
	if err := poidb.InitialiseSchema(db); err != nil {
		return err
	}
	if len(claims) == 0 {
		return nil
	}
	if err := verifyLinkedPois(db, links, claims); err != nil {
		return err
	}

	tx, err := db.Beginx()
	if err != nil {
		return util.WrapErrorf(err, util.ErrIO, "beginning claims transaction")
	}
	defer tx.Rollback()

	insertEntity, err := tx.Prepare(`INSERT OR IGNORE INTO wikidata_entities (qid) VALUES (?)`)
	if err != nil {
		return util.WrapErrorf(err, util.ErrIO, "preparing entity insert")
	}
	insertLink, err := tx.Prepare(`INSERT OR IGNORE INTO poi_wikidata_links (poi_id, qid) VALUES (?, ?)`)
	if err != nil {
		return util.WrapErrorf(err, util.ErrIO, "preparing link insert")
	}
	insertClaim, err := tx.Prepare(
		`INSERT OR IGNORE INTO wikidata_entity_claims (qid, property_id, value_qid) VALUES (?, ?, ?)`)
	if err != nil {
		return util.WrapErrorf(err, util.ErrIO, "preparing claim insert")
	}
	insertSitelinks, err := tx.Prepare(
		`INSERT OR IGNORE INTO wikidata_entity_sitelinks (qid, count) VALUES (?, ?)`)
	if err != nil {
		return util.WrapErrorf(err, util.ErrIO, "preparing sitelinks insert")
	}
	for _, entity := range claims {
		if _, err := insertEntity.Exec(entity.QID); err != nil {
			return util.WrapErrorf(err, util.ErrIO, "inserting entity %s", entity.QID)
		}

		for _, claim := range entity.Claims {
			if _, err := insertEntity.Exec(claim.ValueQID); err != nil {
				return util.WrapErrorf(err, util.ErrIO, "inserting claim target %s", claim.ValueQID)
			}
			if _, err := insertClaim.Exec(entity.QID, claim.PropertyID, claim.ValueQID); err != nil {
				return util.WrapErrorf(err, util.ErrIO, "inserting claim %s %s %s",
					entity.QID, claim.PropertyID, claim.ValueQID)
			}
		}

		if entity.Sitelinks > 0 {
			if _, err := insertSitelinks.Exec(entity.QID, entity.Sitelinks); err != nil {
				return util.WrapErrorf(err, util.ErrIO, "inserting sitelinks for %s", entity.QID)
			}
		}

		for _, poiID := range links.LinkedPoiIDs(entity.QID) {
			if _, err := insertLink.Exec(int64(poiID), entity.QID); err != nil {
				return util.WrapErrorf(err, util.ErrIO, "linking poi %d to %s", poiID, entity.QID)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return util.WrapErrorf(err, util.ErrIO, "committing claims transaction")
	}
	return nil
}

// verifyLinkedPois probes every POI id the batch links to in one chunked
// query before anything is written.
func verifyLinkedPois(db *sqlx.DB, links PoiEntityLinks, claims []EntityClaims) error {
	var ids []uint64
	for _, entity := range claims {
		ids = append(ids, links.LinkedPoiIDs(entity.QID)...)
	}
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	existing, err := poidb.ExistingPoiIDs(db, ids)
	if err != nil {
		return err
	}
	if len(existing) == len(ids) {
		return nil
	}
	for _, entity := range claims {
		for _, poiID := range links.LinkedPoiIDs(entity.QID) {
			if _, ok := existing[poiID]; !ok {
				return util.WrapErrorf(&MissingPoiError{PoiID: poiID, QID: entity.QID},
					util.ErrIntegrity, "persisting claims")
			}
		}
	}
	return nil
}
