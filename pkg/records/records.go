// Package records defines the normalized shapes that payment and advertising
// connectors hand to the cost and reconciliation engines. Records carry no
// behaviour beyond construction and window aggregation.
package records

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayoutStatus is the settlement state reported by a payment processor.
type PayoutStatus string

const (
	PayoutPaid      PayoutStatus = "paid"
	PayoutPending   PayoutStatus = "pending"
	PayoutInTransit PayoutStatus = "in_transit"
	PayoutFailed    PayoutStatus = "failed"
	PayoutCanceled  PayoutStatus = "canceled"
)

// Settled reports whether a payout with this status counts towards the
// observed payout total. An empty status is treated as settled because some
// processors only export completed payouts.
func (s PayoutStatus) Settled() bool {
	switch s {
	case PayoutFailed, PayoutCanceled:
		return false
	default:
		return true
	}
}

// PayoutRecord is one processor payout, normalized regardless of platform.
type PayoutRecord struct {
	PayoutID    string          `json:"payout_id"`
	Status      PayoutStatus    `json:"status"`
	PayoutDate  time.Time       `json:"payout_date"`
	Currency    string          `json:"currency"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
	FeeTotal    decimal.Decimal `json:"fee_total"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	RawSource   string          `json:"raw_source,omitempty"`
}

// AdMetricRecord is one row of advertising performance for a single ad on a
// single day.
type AdMetricRecord struct {
	AccountID    string          `json:"account_id"`
	CampaignID   string          `json:"campaign_id"`
	CampaignName string          `json:"campaign_name"`
	AdSetID      string          `json:"ad_set_id"`
	AdSetName    string          `json:"ad_set_name"`
	AdID         string          `json:"ad_id"`
	AdName       string          `json:"ad_name"`
	Date         time.Time       `json:"date"`
	Currency     string          `json:"currency"`
	Spend        decimal.Decimal `json:"spend"`
	Impressions  int64           `json:"impressions"`
	Clicks       int64           `json:"clicks"`
	Conversions  decimal.Decimal `json:"conversions"`
}

// Window is the half-open time range [Start, End) over which records are
// aggregated. A zero bound is unbounded on that side.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window. Records without a
// timestamp are always inside.
func (w Window) Contains(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// IsZero reports whether the window is unbounded on both sides.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}
