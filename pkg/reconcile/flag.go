package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/shopspring/decimal"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/records"
)

// RuleID identifies the rule that raised a flag.
type RuleID string

const (
	RulePaymentVariance         RuleID = "payment.payout_variance"
	RuleConversionInflation     RuleID = "ads.conversion_inflation"
	RuleSpendWithoutConversions RuleID = "ads.spend_without_conversions"
)

// Severity orders flags for display and alerting.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// ParseSeverity maps a configuration string to a Severity, defaulting to
// warning.
func ParseSeverity(v string) Severity {
	s := Severity(v)
	if s.Rank() == 0 {
		return SeverityWarning
	}
	return s
}

// DiscrepancyFlag is a derived signal that an observed figure deviates from
// an expected one beyond a configured threshold.
type DiscrepancyFlag struct {
	RuleID   RuleID          `json:"rule_id"`
	Severity Severity        `json:"severity"`
	Message  string          `json:"message"`
	Observed decimal.Decimal `json:"observed"`
	Expected decimal.Decimal `json:"expected"`
	Delta    decimal.Decimal `json:"delta"`
	// Scope is the ad grouping key, or "store" for store-wide rules.
	Scope  string         `json:"scope,omitempty"`
	Window records.Window `json:"window"`
}

// Fingerprint identifies the condition a flag describes, independent of the
// measured values, so that re-running a window does not duplicate flags.
func (f DiscrepancyFlag) Fingerprint() string {
	key := map[string]string{
		"rule_id": string(f.RuleID),
		"scope":   f.Scope,
		"start":   formatBound(f.Window.Start),
		"end":     formatBound(f.Window.End),
	}
	raw, _ := json.Marshal(key)
	canonical, err := jcs.Transform(raw)
	if err != nil {
		canonical = raw
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// CountBySeverity tallies flags per severity.
func CountBySeverity(flags []DiscrepancyFlag) map[Severity]int {
	out := make(map[Severity]int, 3)
	for _, f := range flags {
		out[f.Severity]++
	}
	return out
}

// FilterMinSeverity keeps flags at or above min.
func FilterMinSeverity(flags []DiscrepancyFlag, min Severity) []DiscrepancyFlag {
	out := make([]DiscrepancyFlag, 0, len(flags))
	for _, f := range flags {
		if f.Severity.AtLeast(min) {
			out = append(out, f)
		}
	}
	return out
}
