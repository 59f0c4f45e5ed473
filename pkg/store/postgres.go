package store

import (
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS cost_templates (
	merchant_id TEXT PRIMARY KEY,
	templates JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS discrepancy_flags (
	merchant_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	rule_id TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	observed NUMERIC NOT NULL,
	expected NUMERIC NOT NULL,
	delta NUMERIC NOT NULL,
	scope TEXT NOT NULL DEFAULT '',
	window_start TIMESTAMPTZ,
	window_end TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (merchant_id, fingerprint, run_id)
);
CREATE INDEX IF NOT EXISTS discrepancy_flags_recent ON discrepancy_flags (merchant_id, created_at DESC);
`

var postgresDialect = dialect{
	name:     "postgres",
	numbered: true,
	schema:   postgresSchema,
	encodeTime: func(t time.Time) any {
		if t.IsZero() {
			return nil
		}
		return t.UTC()
	},
}

// NewPostgresStore wraps an open lib/pq database. Call Migrate to create the
// schema.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: postgresDialect, now: time.Now}
}

// OpenPostgres opens a database from a postgres:// URL.
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return NewPostgresStore(db), nil
}

// OpenPgx opens dsn through pgx's database/sql driver. The schema and queries
// are shared with the lib/pq store.
func OpenPgx(dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return NewPostgresStore(db), nil
}
