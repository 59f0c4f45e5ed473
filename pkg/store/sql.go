package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/finance"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
)

// dialect captures the few differences between the SQL backends.
type dialect struct {
	name       string
	numbered   bool
	schema     string
	encodeTime func(time.Time) any
}

// rebind rewrites ? placeholders to $n for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

var _ Store = (*SQLStore)(nil)

// Migrate creates the tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("failed to migrate %s store: %w", s.dialect.name, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const (
	selectTemplatesQuery = `SELECT templates FROM cost_templates WHERE merchant_id = ?`

	upsertTemplatesQuery = `INSERT INTO cost_templates (merchant_id, templates, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (merchant_id) DO UPDATE SET
			templates = EXCLUDED.templates,
			updated_at = EXCLUDED.updated_at`

	insertFlagQuery = `INSERT INTO discrepancy_flags (
		merchant_id, run_id, fingerprint, rule_id, severity, message, observed, expected, delta, scope, window_start, window_end, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (merchant_id, fingerprint, run_id) DO NOTHING`

	selectFlagsQuery = `SELECT merchant_id, run_id, fingerprint, rule_id, severity, message, observed, expected, delta, scope, window_start, window_end, created_at
		FROM discrepancy_flags
		WHERE merchant_id = ?
		ORDER BY created_at DESC
		LIMIT ?`
)

func (s *SQLStore) ListTemplates(ctx context.Context, merchantID string) ([]finance.CostTemplate, error) {
	if merchantID == "" {
		return nil, ErrMissingMerchant
	}
	var raw []byte
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(selectTemplatesQuery), merchantID).Scan(&raw)
	if err == sql.ErrNoRows {
		return []finance.CostTemplate{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	var templates []finance.CostTemplate
	if err := json.Unmarshal(raw, &templates); err != nil {
		return nil, fmt.Errorf("failed to decode stored templates: %w", err)
	}
	return templates, nil
}

func (s *SQLStore) PutTemplates(ctx context.Context, merchantID string, templates []finance.CostTemplate) error {
	if merchantID == "" {
		return ErrMissingMerchant
	}
	if templates == nil {
		templates = []finance.CostTemplate{}
	}
	raw, err := json.Marshal(templates)
	if err != nil {
		return fmt.Errorf("failed to encode templates: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.dialect.rebind(upsertTemplatesQuery),
		merchantID, string(raw), s.dialect.encodeTime(s.now()))
	if err != nil {
		return fmt.Errorf("failed to persist templates: %w", err)
	}
	return nil
}

func (s *SQLStore) SaveFlags(ctx context.Context, merchantID, runID string, flags []reconcile.DiscrepancyFlag) error {
	if merchantID == "" {
		return ErrMissingMerchant
	}
	if len(flags) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin flag transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := s.dialect.rebind(insertFlagQuery)
	now := s.dialect.encodeTime(s.now())
	for _, f := range flags {
		_, err := tx.ExecContext(ctx, query,
			merchantID, runID, f.Fingerprint(), string(f.RuleID), string(f.Severity), f.Message,
			f.Observed.String(), f.Expected.String(), f.Delta.String(), f.Scope,
			s.dialect.encodeTime(f.Window.Start), s.dialect.encodeTime(f.Window.End), now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert flag %s: %w", f.RuleID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flags: %w", err)
	}
	return nil
}

func (s *SQLStore) ListFlags(ctx context.Context, merchantID string, limit int) ([]FlagRecord, error) {
	if merchantID == "" {
		return nil, ErrMissingMerchant
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(selectFlagsQuery), merchantID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []FlagRecord
	for rows.Next() {
		rec, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanFlag(rows *sql.Rows) (FlagRecord, error) {
	var (
		rec                 FlagRecord
		ruleID, severity    string
		start, end, created any
	)
	err := rows.Scan(
		&rec.MerchantID, &rec.RunID, &rec.Fingerprint, &ruleID, &severity, &rec.Flag.Message,
		&rec.Flag.Observed, &rec.Flag.Expected, &rec.Flag.Delta, &rec.Flag.Scope,
		&start, &end, &created,
	)
	if err != nil {
		return FlagRecord{}, fmt.Errorf("failed to scan flag: %w", err)
	}
	rec.Flag.RuleID = reconcile.RuleID(ruleID)
	rec.Flag.Severity = reconcile.Severity(severity)
	rec.Flag.Window.Start = decodeTime(start)
	rec.Flag.Window.End = decodeTime(end)
	rec.CreatedAt = decodeTime(created)
	return rec, nil
}

// decodeTime accepts the native and textual forms drivers return.
// NULL and unparsable values are the zero time.
func decodeTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case string:
		return parseStoredTime(x)
	case []byte:
		return parseStoredTime(string(x))
	}
	return time.Time{}
}

func parseStoredTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
