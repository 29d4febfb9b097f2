package poistore

import (
	"fmt"
	"slices"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg/datastructure"
	"github.com/wildside/wildside/pkg/poidb"
	"github.com/wildside/wildside/pkg/spatialindex"
	"github.com/wildside/wildside/pkg/util"
)

// sqlite's default bound-variable ceiling; existence checks chunk below it.
const maxIDsPerProbe = 999

// MissingPoiError reports an id present in the spatial index but absent from
// the pois table.
type MissingPoiError struct {
	ID uint64
}

func (e *MissingPoiError) Error() string {
	return fmt.Sprintf("poi %d (%s %d) listed in the index is missing from the database",
		e.ID, datastructure.PoiIDKind(e.ID), datastructure.PoiIDSource(e.ID))
}

// TagJSONError reports a pois row whose tag payload is not a JSON
// string-to-string object.
type TagJSONError struct {
	ID  uint64
	err error
}

func (e *TagJSONError) Error() string {
	return fmt.Sprintf("parsing tags for poi %d: %v", e.ID, e.err)
}

func (e *TagJSONError) Unwrap() error { return e.err }

// Store serves bounding-box queries from a validated in-memory spatial
// index. It is immutable and safe for concurrent use; the SQLite connection
// used for validation is released before Open returns.
type Store struct {
	index *spatialindex.Index
}

// Open loads the spatial index artefact, cross-checks every indexed POI
// against the database, and returns a memory-resident store. The artefact
// envelope is verified by the index loader; indexed ids missing from the
// pois table and malformed tag payloads fail the open.
func Open(dbPath, indexPath string, logger *zap.Logger) (*Store, error) {
	index, err := spatialindex.Load(indexPath, logger)
	if err != nil {
		return nil, err
	}

	db, err := poidb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := validateIndexedPois(db, index.Items()); err != nil {
		return nil, err
	}

	logger.Info("poi store opened",
		zap.String("db", dbPath),
		zap.String("index", indexPath),
		zap.Int("pois", index.Len()))
	return &Store{index: index}, nil
}

// GetPoisInBbox returns copies of the POIs inside rect, boundary inclusive,
// in ascending id order.
func (s *Store) GetPoisInBbox(rect datastructure.Rect) []datastructure.PointOfInterest {
	return s.index.Search(rect)
}

// Len is the number of POIs served by the store.
func (s *Store) Len() int {
	return s.index.Len()
}

func validateIndexedPois(db *sqlx.DB, pois []datastructure.PointOfInterest) error {
	if len(pois) == 0 {
		return nil
	}

	ids := make([]uint64, 0, len(pois))
	for _, poi := range pois {
		ids = append(ids, poi.ID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	for start := 0; start < len(ids); start += maxIDsPerProbe {
		end := min(start+maxIDsPerProbe, len(ids))
		if err := validateChunk(db, ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func validateChunk(db *sqlx.DB, ids []uint64) error {
	chunk := make([]int64, 0, len(ids))
	for _, id := range ids {
		chunk = append(chunk, int64(id))
	}
	query, args, err := sqlx.In(`SELECT id, tags FROM pois WHERE id IN (?)`, chunk)
	if err != nil {
		return util.WrapErrorf(err, util.ErrIO, "expanding poi validation query")
	}

	rows, err := db.Query(db.Rebind(query), args...)
	if err != nil {
		return util.WrapErrorf(err, util.ErrIO, "validating indexed pois")
	}
	defer rows.Close()

	found := make(map[uint64]struct{}, len(ids))
	for rows.Next() {
		var (
			id       int64
			tagsJSON []byte
		)
		if err := rows.Scan(&id, &tagsJSON); err != nil {
			return util.WrapErrorf(err, util.ErrIO, "scanning poi validation row")
		}
		tags := make(map[string]string)
		if err := json.Unmarshal(tagsJSON, &tags); err != nil {
			return util.WrapErrorf(&TagJSONError{ID: uint64(id), err: err},
				util.ErrIntegrity, "validating poi store")
		}
		found[uint64(id)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return util.WrapErrorf(err, util.ErrIO, "iterating poi validation rows")
	}

	if len(found) == len(ids) {
		return nil
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return util.WrapErrorf(&MissingPoiError{ID: id}, util.ErrIntegrity, "validating poi store")
		}
	}
	return nil
}
