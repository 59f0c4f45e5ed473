package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/records"
)

// AdsInput holds one ad group's window totals and the store's order count
// for the same window.
type AdsInput struct {
	Group      records.AdTotals
	OrderCount int64
	Window     records.Window
}

// CheckAds runs both ad sub-checks independently. Each one that fires adds
// its own flag.
func CheckAds(in AdsInput, cfg RuleConfig) []DiscrepancyFlag {
	var flags []DiscrepancyFlag
	if f := checkConversionInflation(in, cfg.Ads); f != nil {
		flags = append(flags, *f)
	}
	if f := checkSpendWithoutConversions(in, cfg.Ads); f != nil {
		flags = append(flags, *f)
	}
	return flags
}

func checkConversionInflation(in AdsInput, th AdsThresholds) *DiscrepancyFlag {
	conversions := in.Group.Conversions
	if !HasMinimumOrders(in.OrderCount, th.MinOrdersForSpendCheck) ||
		!ConversionsInflated(conversions, in.OrderCount, th.ConversionMultiple) {
		return nil
	}

	threshold := ConversionThreshold(in.OrderCount, th.ConversionMultiple)
	severity := SeverityWarning
	if conversions.GreaterThan(threshold.Mul(decimal.NewFromInt(2))) {
		severity = SeverityCritical
	}
	orders := decimal.NewFromInt(in.OrderCount)

	return &DiscrepancyFlag{
		RuleID:   RuleConversionInflation,
		Severity: severity,
		Message: fmt.Sprintf("%s reports %s conversions for %d store orders (limit %s at %sx)",
			scopeLabel(in.Group), conversions.String(), in.OrderCount,
			threshold.String(), th.ConversionMultiple.String()),
		Observed: conversions,
		Expected: orders,
		Delta:    conversions.Sub(orders),
		Scope:    in.Group.Key,
		Window:   in.Window,
	}
}

func checkSpendWithoutConversions(in AdsInput, th AdsThresholds) *DiscrepancyFlag {
	spend := in.Group.Spend
	if !SpendWithoutConversions(spend, in.Group.Conversions, th.MinSpendWithoutConversions) {
		return nil
	}

	severity := SeverityWarning
	if th.MinSpendWithoutConversions.IsPositive() &&
		spend.GreaterThanOrEqual(th.MinSpendWithoutConversions.Mul(decimal.NewFromInt(5))) {
		severity = SeverityCritical
	}

	return &DiscrepancyFlag{
		RuleID:   RuleSpendWithoutConversions,
		Severity: severity,
		Message: fmt.Sprintf("%s spent %s with no attributed conversions",
			scopeLabel(in.Group), spend.StringFixed(2)),
		Observed: spend,
		Expected: th.MinSpendWithoutConversions,
		Delta:    spend.Sub(th.MinSpendWithoutConversions),
		Scope:    in.Group.Key,
		Window:   in.Window,
	}
}

func scopeLabel(g records.AdTotals) string {
	switch {
	case g.Key == "" || g.Key == "store":
		return "ad spend"
	case g.Label != "":
		return fmt.Sprintf("%s (%s)", g.Label, g.Key)
	default:
		return g.Key
	}
}
