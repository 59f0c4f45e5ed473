package finance

import "github.com/shopspring/decimal"

// CostTotals maps each cost type to its accumulated amount. Every known type
// is present after Aggregate; Get returns zero for anything else.
type CostTotals map[CostType]decimal.Decimal

// NewCostTotals returns totals with every known type set to zero.
func NewCostTotals() CostTotals {
	t := make(CostTotals, len(CostTypes))
	for _, ct := range CostTypes {
		t[ct] = decimal.Zero
	}
	return t
}

// Aggregate sums costs per type. The result does not depend on input order.
func Aggregate(costs []VariableCost) CostTotals {
	totals := NewCostTotals()
	for _, c := range costs {
		totals[c.Type] = totals.Get(c.Type).Add(c.Amount)
	}
	return totals
}

// Get returns the total for t, or zero.
func (t CostTotals) Get(ct CostType) decimal.Decimal {
	if v, ok := t[ct]; ok {
		return v
	}
	return decimal.Zero
}

// Merge returns a new CostTotals holding t + other.
func (t CostTotals) Merge(other CostTotals) CostTotals {
	out := NewCostTotals()
	for ct, v := range t {
		out[ct] = out.Get(ct).Add(v)
	}
	for ct, v := range other {
		out[ct] = out.Get(ct).Add(v)
	}
	return out
}

// Total is the sum over all types.
func (t CostTotals) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range t {
		sum = sum.Add(v)
	}
	return sum
}

// CostSummary is the named projection reporting layers read.
type CostSummary struct {
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	PaymentFees  decimal.Decimal `json:"payment_fees"`
	PlatformFees decimal.Decimal `json:"platform_fees"`
	CustomCosts  decimal.Decimal `json:"custom_costs"`
	Total        decimal.Decimal `json:"total"`
}

// Summary projects the four known cost types, defaulting missing keys to zero.
func (t CostTotals) Summary() CostSummary {
	s := CostSummary{
		ShippingCost: t.Get(CostShipping),
		PaymentFees:  t.Get(CostPaymentFee),
		PlatformFees: t.Get(CostPlatformFee),
		CustomCosts:  t.Get(CostCustom),
	}
	s.Total = s.ShippingCost.Add(s.PaymentFees).Add(s.PlatformFees).Add(s.CustomCosts)
	return s
}
