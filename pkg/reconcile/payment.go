package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/records"
)

// PaymentInput holds the window totals compared by the payout variance rule.
type PaymentInput struct {
	// ObservedPayoutTotal is the sum of payout net amounts in the window.
	ObservedPayoutTotal decimal.Decimal
	// ExpectedRevenueTotal is the sum of order totals in the same window.
	ExpectedRevenueTotal decimal.Decimal
	Window               records.Window
}

// CheckPayment flags the window when the payout gap exceeds either the
// absolute or the relative threshold. It returns nil when neither does.
func CheckPayment(in PaymentInput, cfg RuleConfig) *DiscrepancyFlag {
	delta := AbsoluteDelta(in.ObservedPayoutTotal, in.ExpectedRevenueTotal)
	pct := PercentOfExpected(delta, in.ExpectedRevenueTotal)

	amountHit := ExceedsAmountDelta(delta, cfg.Payment.AmountDelta)
	percentHit := ExceedsPercentDelta(pct, cfg.Payment.PercentDelta)
	if !amountHit && !percentHit {
		return nil
	}

	return &DiscrepancyFlag{
		RuleID:   RulePaymentVariance,
		Severity: PaymentSeverity(amountHit, percentHit, pct, cfg.Payment),
		Message: fmt.Sprintf("payouts of %s differ from expected revenue of %s by %s (%s%%)",
			in.ObservedPayoutTotal.StringFixed(2),
			in.ExpectedRevenueTotal.StringFixed(2),
			delta.StringFixed(2),
			pct.Shift(2).StringFixed(1),
		),
		Observed: in.ObservedPayoutTotal,
		Expected: in.ExpectedRevenueTotal,
		Delta:    delta,
		Scope:    "store",
		Window:   in.Window,
	}
}

// PaymentSeverity bands a raised payment flag. A gap that only crosses the
// percent threshold, by at most 2x, is informational; a gap that crosses both
// thresholds and exceeds 4x the percent threshold is critical.
func PaymentSeverity(amountHit, percentHit bool, pct decimal.Decimal, th PaymentThresholds) Severity {
	switch {
	case !amountHit && percentHit && pct.LessThanOrEqual(th.PercentDelta.Mul(decimal.NewFromInt(2))):
		return SeverityInfo
	case amountHit && percentHit && pct.GreaterThan(th.PercentDelta.Mul(decimal.NewFromInt(4))):
		return SeverityCritical
	default:
		return SeverityWarning
	}
}
