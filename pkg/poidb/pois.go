package poidb

import (
	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/wildside/wildside/pkg/datastructure"
	"github.com/wildside/wildside/pkg/util"
)

const (
	upsertBatchSize = 512

	// SQLite caps bound variables per statement; existence probes chunk
	// their id lists below that cap.
	maxBoundVars = 999
)

// UpsertPois writes POIs in insert-or-update batches, one transaction per
// batch. Tags are stored as a canonical JSON object (keys sorted), so equal
// tag maps always produce equal rows.
func UpsertPois(db *sqlx.DB, pois []datastructure.PointOfInterest) error {
	const stmt = `
	INSERT INTO pois (id, lon, lat, tags) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET lon=excluded.lon, lat=excluded.lat, tags=excluded.tags`

	for start := 0; start < len(pois); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(pois))

		tx, err := db.Beginx()
		if err != nil {
			return util.WrapErrorf(err, util.ErrIO, "beginning poi batch transaction")
		}
		for _, poi := range pois[start:end] {
			tags, err := canonicalTags(poi.Tags)
			if err != nil {
				tx.Rollback()
				return util.WrapErrorf(err, util.ErrParse, "encoding tags for poi %d", poi.ID)
			}
			if _, err := tx.Exec(stmt, int64(poi.ID), poi.Lon, poi.Lat, tags); err != nil {
				tx.Rollback()
				return util.WrapErrorf(err, util.ErrIO, "upserting poi %d", poi.ID)
			}
		}
		if err := tx.Commit(); err != nil {
			return util.WrapErrorf(err, util.ErrIO, "committing poi batch")
		}
	}
	return nil
}

// AllPois reads every POI row in ascending id order.
func AllPois(db *sqlx.DB) ([]datastructure.PointOfInterest, error) {
	rows, err := db.Query(`SELECT id, lon, lat, tags FROM pois ORDER BY id`)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "querying pois")
	}
	defer rows.Close()

	var pois []datastructure.PointOfInterest
	for rows.Next() {
		var (
			id       int64
			lon, lat float64
			tagsJSON []byte
		)
		if err := rows.Scan(&id, &lon, &lat, &tagsJSON); err != nil {
			return nil, util.WrapErrorf(err, util.ErrIO, "scanning poi row")
		}
		tags := make(map[string]string)
		if err := json.Unmarshal(tagsJSON, &tags); err != nil {
			return nil, util.WrapErrorf(err, util.ErrParse, "decoding tags for poi %d", id)
		}
		pois = append(pois, datastructure.PointOfInterest{
			ID: uint64(id), Lon: lon, Lat: lat, Tags: tags,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "iterating poi rows")
	}
	return pois, nil
}

// CountPois reports the number of POI rows.
func CountPois(db *sqlx.DB) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pois`).Scan(&n); err != nil {
		return 0, util.WrapErrorf(err, util.ErrIO, "counting pois")
	}
	return n, nil
}

// ExistingPoiIDs reports which of the given ids have a pois row, probing in
// chunks below the SQLite bound-variable cap.
func ExistingPoiIDs(db *sqlx.DB, ids []uint64) (map[uint64]struct{}, error) {
	existing := make(map[uint64]struct{}, len(ids))
	for start := 0; start < len(ids); start += maxBoundVars {
		end := min(start+maxBoundVars, len(ids))

		chunk := make([]int64, 0, end-start)
		for _, id := range ids[start:end] {
			chunk = append(chunk, int64(id))
		}
		query, args, err := sqlx.In(`SELECT id FROM pois WHERE id IN (?)`, chunk)
		if err != nil {
			return nil, util.WrapErrorf(err, util.ErrIO, "expanding poi id probe")
		}

		rows, err := db.Query(db.Rebind(query), args...)
		if err != nil {
			return nil, util.WrapErrorf(err, util.ErrIO, "probing poi ids")
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, util.WrapErrorf(err, util.ErrIO, "scanning poi id")
			}
			existing[uint64(id)] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, util.WrapErrorf(err, util.ErrIO, "iterating poi id probe")
		}
		rows.Close()
	}
	return existing, nil
}

func canonicalTags(tags map[string]string) ([]byte, error) {
	if tags == nil {
		tags = map[string]string{}
	}
	return json.Marshal(tags)
}
