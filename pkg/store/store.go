// Package store persists merchant cost templates and raised discrepancy
// flags. Backends: in-memory, Postgres, SQLite, plus a Redis read-through
// cache for templates.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/finance"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
)

// ErrMissingMerchant is returned for calls without a merchant id.
var ErrMissingMerchant = errors.New("store: merchant id is required")

// TemplateStore holds each merchant's cost template set.
type TemplateStore interface {
	// ListTemplates returns the merchant's templates, or an empty set when
	// none were stored.
	ListTemplates(ctx context.Context, merchantID string) ([]finance.CostTemplate, error)
	// PutTemplates replaces the merchant's template set.
	PutTemplates(ctx context.Context, merchantID string, templates []finance.CostTemplate) error
}

// FlagRecord is a persisted flag with its run provenance.
type FlagRecord struct {
	MerchantID  string                    `json:"merchant_id"`
	RunID       string                    `json:"run_id"`
	Fingerprint string                    `json:"fingerprint"`
	Flag        reconcile.DiscrepancyFlag `json:"flag"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// FlagStore records flags raised by reconciliation runs.
type FlagStore interface {
	// SaveFlags stores flags for a run. Saving the same flag twice for a run
	// is a no-op.
	SaveFlags(ctx context.Context, merchantID, runID string, flags []reconcile.DiscrepancyFlag) error
	// ListFlags returns the merchant's most recent flags, newest first.
	ListFlags(ctx context.Context, merchantID string, limit int) ([]FlagRecord, error)
}

// Store is the full persistence surface.
type Store interface {
	TemplateStore
	FlagStore
}

const defaultListLimit = 100

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultListLimit
	}
	return limit
}
