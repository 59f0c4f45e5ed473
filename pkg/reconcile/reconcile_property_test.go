//go:build property
// +build property

package reconcile_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/records"
)

// Property: the payment flag fires exactly when either trigger does.
func TestPaymentTriggerIsLogicalOr(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)
	cfg := reconcile.DefaultRuleConfig()

	properties.Property("flagged iff amount or percent threshold exceeded", prop.ForAll(
		func(observedCents, expectedCents int64) bool {
			observed := decimal.New(observedCents, -2)
			expected := decimal.New(expectedCents, -2)
			delta := reconcile.AbsoluteDelta(observed, expected)
			want := reconcile.ExceedsAmountDelta(delta, cfg.Payment.AmountDelta) ||
				reconcile.ExceedsPercentDelta(reconcile.PercentOfExpected(delta, expected), cfg.Payment.PercentDelta)

			f := reconcile.CheckPayment(reconcile.PaymentInput{
				ObservedPayoutTotal:  observed,
				ExpectedRevenueTotal: expected,
			}, cfg)
			return (f != nil) == want
		},
		gen.Int64Range(0, 10_000_000),
		gen.Int64Range(0, 10_000_000),
	))

	properties.Property("an absolute gap above amountDelta always flags", prop.ForAll(
		func(expectedCents, extraCents int64) bool {
			expected := decimal.New(expectedCents, -2)
			observed := expected.Add(cfg.Payment.AmountDelta).Add(decimal.New(extraCents, -2))
			return reconcile.CheckPayment(reconcile.PaymentInput{
				ObservedPayoutTotal:  observed,
				ExpectedRevenueTotal: expected,
			}, cfg) != nil
		},
		gen.Int64Range(0, 1_000_000_000),
		gen.Int64Range(1, 100_000),
	))

	properties.TestingRun(t)
}

// Property: below the minimum order count the inflation check never fires.
func TestConversionCheckRespectsMinimumOrders(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	cfg := reconcile.DefaultRuleConfig()

	properties.Property("tiny samples are never flagged for inflation", prop.ForAll(
		func(orders int64, conversions int64) bool {
			flags := reconcile.CheckAds(reconcile.AdsInput{
				Group:      records.AdTotals{Key: "store", Conversions: decimal.NewFromInt(conversions)},
				OrderCount: orders,
			}, cfg)
			for _, f := range flags {
				if f.RuleID == reconcile.RuleConversionInflation {
					return false
				}
			}
			return true
		},
		gen.Int64Range(0, cfg.Ads.MinOrdersForSpendCheck-1),
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}
