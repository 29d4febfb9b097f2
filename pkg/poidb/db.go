package poidb

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/wildside/wildside/pkg/util"
)

// SchemaVersion is the current POI database layout. Open refuses databases
// initialised at any other version.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS pois (
	id   INTEGER PRIMARY KEY,
	lon  REAL NOT NULL,
	lat  REAL NOT NULL,
	tags TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS wikidata_entities (
	qid TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS poi_wikidata_links (
	poi_id INTEGER NOT NULL REFERENCES pois(id),
	qid    TEXT NOT NULL REFERENCES wikidata_entities(qid),
	PRIMARY KEY (poi_id, qid)
);

CREATE TABLE IF NOT EXISTS wikidata_entity_claims (
	qid         TEXT NOT NULL REFERENCES wikidata_entities(qid),
	property_id TEXT NOT NULL,
	value_qid   TEXT NOT NULL,
	PRIMARY KEY (qid, property_id, value_qid)
);

CREATE TABLE IF NOT EXISTS wikidata_entity_sitelinks (
	qid   TEXT PRIMARY KEY REFERENCES wikidata_entities(qid),
	count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS wikidata_schema_version (
	version INTEGER NOT NULL
);

CREATE VIEW IF NOT EXISTS poi_wikidata_claims AS
SELECT l.poi_id AS poi_id, c.property_id AS property_id, c.value_qid AS value_qid
FROM poi_wikidata_links l
JOIN wikidata_entity_claims c ON c.qid = l.qid;
`

// VersionMismatchError reports a database initialised at a layout this build
// does not speak.
type VersionMismatchError struct {
	Got  int
	Want int
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("poi database schema version %d, expected %d", e.Got, e.Want)
}

// Open opens (creating if absent) the POI database at path and enforces
// foreign keys on the connection. SQLite gets a single connection so
// in-memory databases behave and writers never contend.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "opening poi database %s", path)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, util.WrapErrorf(err, util.ErrIO, "enabling foreign keys on %s", path)
	}
	return db, nil
}

// InitialiseSchema creates the v1 layout if missing and records the schema
// version. Re-running against a current database is a no-op; a database at
// another version is refused.
func InitialiseSchema(db *sqlx.DB) error {
	version, err := readSchemaVersion(db)
	if err != nil {
		return err
	}
	if version == SchemaVersion {
		return nil
	}
	if version != 0 {
		return util.WrapErrorf(&VersionMismatchError{Got: version, Want: SchemaVersion},
			util.ErrIntegrity, "initialising poi database schema")
	}

	tx, err := db.Beginx()
	if err != nil {
		return util.WrapErrorf(err, util.ErrIO, "beginning schema transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schema); err != nil {
		return util.WrapErrorf(err, util.ErrIO, "creating poi database schema")
	}
	if _, err := tx.Exec(`INSERT INTO wikidata_schema_version (version) VALUES (?)`,
		SchemaVersion); err != nil {
		return util.WrapErrorf(err, util.ErrIO, "recording schema version")
	}
	if err := tx.Commit(); err != nil {
		return util.WrapErrorf(err, util.ErrIO, "committing schema transaction")
	}
	return nil
}

// CheckSchemaVersion verifies an existing database is at the current layout.
func CheckSchemaVersion(db *sqlx.DB) error {
	version, err := readSchemaVersion(db)
	if err != nil {
		return err
	}
	if version != SchemaVersion {
		return util.WrapErrorf(&VersionMismatchError{Got: version, Want: SchemaVersion},
			util.ErrIntegrity, "checking poi database schema")
	}
	return nil
}

func readSchemaVersion(db *sqlx.DB) (int, error) {
	var name string
	err := db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name='wikidata_schema_version'`,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, util.WrapErrorf(err, util.ErrIO, "inspecting poi database")
	}

	var version int
	err = db.QueryRow(`SELECT version FROM wikidata_schema_version LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, util.WrapErrorf(err, util.ErrIO, "reading poi database schema version")
	}
	return version, nil
}
