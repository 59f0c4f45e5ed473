package finance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAggregate_Empty(t *testing.T) {
	totals := Aggregate(nil)
	for _, ct := range CostTypes {
		v, ok := totals[ct]
		assert.True(t, ok, "missing key %s", ct)
		assert.True(t, v.IsZero())
	}

	s := totals.Summary()
	assert.True(t, s.ShippingCost.IsZero())
	assert.True(t, s.PaymentFees.IsZero())
	assert.True(t, s.PlatformFees.IsZero())
	assert.True(t, s.CustomCosts.IsZero())
	assert.True(t, s.Total.IsZero())
}

func TestAggregate_SumsPerType(t *testing.T) {
	costs := []VariableCost{
		{Type: CostPaymentFee, TemplateName: "stripe", Amount: decimal.RequireFromString("3.20")},
		{Type: CostShipping, TemplateName: "ups", Amount: decimal.RequireFromString("7.5")},
		{Type: CostPaymentFee, TemplateName: "fx", Amount: decimal.RequireFromString("1.05")},
	}
	totals := Aggregate(costs)

	assert.True(t, totals.Get(CostPaymentFee).Equal(decimal.RequireFromString("4.25")))
	assert.True(t, totals.Get(CostShipping).Equal(decimal.RequireFromString("7.5")))
	assert.True(t, totals.Total().Equal(decimal.RequireFromString("11.75")))

	s := totals.Summary()
	assert.True(t, s.PaymentFees.Equal(decimal.RequireFromString("4.25")))
	assert.True(t, s.Total.Equal(decimal.RequireFromString("11.75")))
}

func TestCostTotals_GetMissingKey(t *testing.T) {
	var totals CostTotals
	assert.True(t, totals.Get(CostCustom).IsZero())
	assert.True(t, totals.Summary().Total.IsZero())
}

func TestCostTotals_Merge(t *testing.T) {
	a := Aggregate([]VariableCost{{Type: CostShipping, Amount: decimal.NewFromInt(2)}})
	b := CostTotals{CostShipping: decimal.NewFromInt(3), CostCustom: decimal.NewFromInt(1)}

	m := a.Merge(b)
	assert.True(t, m.Get(CostShipping).Equal(decimal.NewFromInt(5)))
	assert.True(t, m.Get(CostCustom).Equal(decimal.NewFromInt(1)))
	assert.True(t, a.Get(CostShipping).Equal(decimal.NewFromInt(2)), "merge does not mutate receiver")
}

func TestCostType(t *testing.T) {
	ct, ok := ParseCostType("PLATFORM_FEE")
	assert.True(t, ok)
	assert.Equal(t, CostPlatformFee, ct)

	_, ok = ParseCostType("platform_fee")
	assert.False(t, ok)
}

func TestResolveBase(t *testing.T) {
	assert.Equal(t, BaseSubtotal, ResolveBase(CostLine{AppliesTo: BaseSubtotal}, &TemplateConfig{AppliesTo: BaseShippingRevenue}))
	assert.Equal(t, BaseShippingRevenue, ResolveBase(CostLine{}, &TemplateConfig{AppliesTo: BaseShippingRevenue}))
	assert.Equal(t, BaseOrderTotal, ResolveBase(CostLine{}, nil))
	assert.Equal(t, BaseOrderTotal, ResolveBase(CostLine{}, &TemplateConfig{}))
}

func TestBaseAmount_Fallbacks(t *testing.T) {
	empty := OrderContext{}
	assert.True(t, BaseAmount(empty, BaseOrderTotal).IsZero())
	assert.True(t, BaseAmount(empty, BaseSubtotal).IsZero())
	assert.True(t, BaseAmount(empty, BaseShippingRevenue).IsZero())

	subOnly := OrderContext{Subtotal: Amount(decimal.NewFromInt(60))}
	assert.True(t, BaseAmount(subOnly, BaseOrderTotal).Equal(decimal.NewFromInt(60)))
	assert.True(t, BaseAmount(subOnly, "SOMETHING_ELSE").Equal(decimal.NewFromInt(60)))

	both := OrderContext{OrderTotal: Amount(decimal.NewFromInt(75)), Subtotal: Amount(decimal.NewFromInt(60))}
	assert.True(t, BaseAmount(both, BaseOrderTotal).Equal(decimal.NewFromInt(75)))
}
