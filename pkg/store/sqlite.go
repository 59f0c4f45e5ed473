package store

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cost_templates (
	merchant_id TEXT PRIMARY KEY,
	templates JSON NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS discrepancy_flags (
	merchant_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	rule_id TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	observed TEXT NOT NULL,
	expected TEXT NOT NULL,
	delta TEXT NOT NULL,
	scope TEXT NOT NULL DEFAULT '',
	window_start TEXT,
	window_end TEXT,
	created_at TEXT NOT NULL,
	PRIMARY KEY (merchant_id, fingerprint, run_id)
);
CREATE INDEX IF NOT EXISTS discrepancy_flags_recent ON discrepancy_flags (merchant_id, created_at);
`

// sqliteTimeLayout is fixed width so text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var sqliteDialect = dialect{
	name:   "sqlite",
	schema: sqliteSchema,
	encodeTime: func(t time.Time) any {
		if t.IsZero() {
			return nil
		}
		return t.UTC().Format(sqliteTimeLayout)
	},
}

// NewSQLiteStore wraps an open modernc sqlite database and migrates it.
func NewSQLiteStore(db *sql.DB) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: sqliteDialect, now: time.Now}
	if err := s.Migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens path (or ":memory:") and migrates it. SQLite allows one
// writer, so the pool is limited to a single connection.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
