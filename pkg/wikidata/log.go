package wikidata

import (
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/wildside/wildside/pkg/util"
)

const downloadLogSchema = `
CREATE TABLE IF NOT EXISTS downloads (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	file_name     TEXT NOT NULL,
	url           TEXT NOT NULL,
	sha1          TEXT,
	size_bytes    INTEGER,
	bytes_written INTEGER NOT NULL,
	output_path   TEXT NOT NULL,
	downloaded_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS u_downloads_file_output ON downloads(file_name, output_path);
CREATE INDEX IF NOT EXISTS ix_downloads_downloaded_at ON downloads(downloaded_at);
`

// DownloadLog is a SQLite audit trail of dump acquisitions, one row per
// (file name, output path), refreshed on re-download.
type DownloadLog struct {
	db   *sqlx.DB
	path string
}

// InitialiseDownloadLog opens (creating if needed) the audit database.
func InitialiseDownloadLog(path string) (*DownloadLog, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "opening download log %s", path)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(downloadLogSchema); err != nil {
		db.Close()
		return nil, util.WrapErrorf(err, util.ErrIO, "initialising download log %s", path)
	}
	return &DownloadLog{db: db, path: path}, nil
}

// Record stores one completed acquisition.
func (l *DownloadLog) Record(report Report) error {
	const stmt = `
	INSERT INTO downloads (file_name, url, sha1, size_bytes, bytes_written, output_path, downloaded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(file_name, output_path) DO UPDATE SET
		url=excluded.url, sha1=excluded.sha1, size_bytes=excluded.size_bytes,
		bytes_written=excluded.bytes_written, downloaded_at=excluded.downloaded_at`

	var sha1 any
	if report.Descriptor.SHA1 != "" {
		sha1 = report.Descriptor.SHA1
	}
	var size any
	if report.Descriptor.Size > 0 {
		size = report.Descriptor.Size
	}
	_, err := l.db.Exec(stmt,
		report.Descriptor.FileName, report.Descriptor.URL, sha1, size,
		report.BytesWritten, report.OutputPath, time.Now().Unix())
	if err != nil {
		return util.WrapErrorf(err, util.ErrIO, "recording download of %s", report.Descriptor.FileName)
	}
	return nil
}

// Path locates the underlying SQLite database.
func (l *DownloadLog) Path() string { return l.path }

// Close releases the SQLite handle.
func (l *DownloadLog) Close() error { return l.db.Close() }
