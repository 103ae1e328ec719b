package sink

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	quire "github.com/quireio/quire"
)

const artifactSchema = `
CREATE TABLE IF NOT EXISTS artifacts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	source     TEXT NOT NULL,
	format     TEXT NOT NULL,
	content    BLOB NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artifacts_source ON artifacts(source, format);
`

// SQLite stores artifacts in a local SQLite database, one row per emitted
// format. The database opens in WAL mode so concurrent branch emits do not
// contend.
type SQLite struct {
	db     *sql.DB
	source string
}

// NewSQLite opens (and if needed creates) the database at path. source
// labels the rows written by this sink, typically the input URL or filename.
func NewSQLite(path, source string) (*SQLite, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening artifact db: %w", err)
	}
	if _, err := db.Exec(artifactSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating artifact schema: %w", err)
	}
	return &SQLite{db: db, source: source}, nil
}

var _ quire.Sink = (*SQLite)(nil)

// Write inserts one artifact row.
func (s *SQLite) Write(format quire.FormatID, data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO artifacts (source, format, content, created_at) VALUES (?, ?, ?, ?)`,
		s.source, string(format), data, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting artifact: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
