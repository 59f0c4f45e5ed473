package reconcile

import "github.com/shopspring/decimal"

// AbsoluteDelta is |observed - expected|.
func AbsoluteDelta(observed, expected decimal.Decimal) decimal.Decimal {
	return observed.Sub(expected).Abs()
}

// PercentOfExpected is delta / expected. With no positive expectation, any
// gap counts as 100% and no gap as 0%.
func PercentOfExpected(delta, expected decimal.Decimal) decimal.Decimal {
	if expected.IsPositive() {
		return delta.Div(expected)
	}
	if delta.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}

// ExceedsAmountDelta is the absolute payment trigger (strict).
func ExceedsAmountDelta(delta, threshold decimal.Decimal) bool {
	return delta.GreaterThan(threshold)
}

// ExceedsPercentDelta is the relative payment trigger (strict).
func ExceedsPercentDelta(percent, threshold decimal.Decimal) bool {
	return percent.GreaterThan(threshold)
}

// HasMinimumOrders gates the conversion check on sample size (inclusive).
func HasMinimumOrders(orderCount, minOrders int64) bool {
	return orderCount >= minOrders
}

// ConversionThreshold is orderCount * multiple.
func ConversionThreshold(orderCount int64, multiple decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(orderCount).Mul(multiple)
}

// ConversionsInflated reports attributed conversions strictly above the
// threshold.
func ConversionsInflated(conversions decimal.Decimal, orderCount int64, multiple decimal.Decimal) bool {
	return conversions.GreaterThan(ConversionThreshold(orderCount, multiple))
}

// SpendWithoutConversions reports spend at or above minSpend with zero
// attributed conversions.
func SpendWithoutConversions(spend, conversions, minSpend decimal.Decimal) bool {
	return spend.GreaterThanOrEqual(minSpend) && conversions.IsZero()
}
