package finance_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/finance"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func amt(s string) decimal.NullDecimal { return finance.Amount(dec(s)) }

func TestEvaluate_ShippingPercentagePlusFlat(t *testing.T) {
	templates := []finance.CostTemplate{{
		Type: finance.CostShipping,
		Name: "Carrier",
		Lines: []finance.CostLine{{
			AppliesTo:      finance.BaseOrderTotal,
			PercentageRate: dec("0.1"),
			FlatAmount:     dec("2"),
		}},
	}}

	costs := finance.Evaluate(templates, finance.OrderContext{OrderTotal: amt("100")})
	require.Len(t, costs, 1)
	assert.Equal(t, finance.CostShipping, costs[0].Type)
	assert.Equal(t, "Carrier", costs[0].TemplateName)
	assert.True(t, costs[0].Amount.Equal(dec("12")), "got %s", costs[0].Amount)

	totals := finance.Aggregate(costs)
	assert.True(t, totals.Get(finance.CostShipping).Equal(dec("12")))
	assert.True(t, totals.Get(finance.CostPaymentFee).IsZero())
	assert.True(t, totals.Get(finance.CostPlatformFee).IsZero())
	assert.True(t, totals.Get(finance.CostCustom).IsZero())
	assert.Len(t, totals, 4)
}

func TestEvaluate_ChannelFilterDropsTemplate(t *testing.T) {
	templates := []finance.CostTemplate{
		{
			Type:   finance.CostPlatformFee,
			Name:   "Marketplace fee",
			Lines:  []finance.CostLine{{PercentageRate: dec("0.15")}},
			Config: &finance.TemplateConfig{Channel: "amazon"},
		},
		{
			Type:  finance.CostCustom,
			Name:  "Packaging",
			Lines: []finance.CostLine{{FlatAmount: dec("5")}},
		},
	}

	costs := finance.Evaluate(templates, finance.OrderContext{OrderTotal: amt("80"), Channel: "online_store"})
	require.Len(t, costs, 1)
	assert.Equal(t, "Packaging", costs[0].TemplateName)

	sum := decimal.Zero
	for _, c := range costs {
		sum = sum.Add(c.Amount)
	}
	assert.True(t, sum.Equal(dec("5")))
}

func TestEvaluate_EmptyLinesAreInert(t *testing.T) {
	templates := []finance.CostTemplate{
		{Type: finance.CostShipping, Name: "nil lines"},
		{Type: finance.CostShipping, Name: "empty lines", Lines: []finance.CostLine{}},
	}
	costs := finance.Evaluate(templates, finance.OrderContext{OrderTotal: amt("500")})
	assert.Empty(t, costs)
}

func TestEvaluate_GatewayFilter(t *testing.T) {
	tmpl := finance.CostTemplate{
		Type:   finance.CostPaymentFee,
		Name:   "Stripe",
		Lines:  []finance.CostLine{{PercentageRate: dec("0.029"), FlatAmount: dec("0.30")}},
		Config: &finance.TemplateConfig{Gateway: "stripe"},
	}

	tests := []struct {
		name    string
		gateway string
		want    int
	}{
		{"matching gateway", "stripe", 1},
		{"other gateway", "paypal", 0},
		{"missing gateway", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			costs := finance.Evaluate([]finance.CostTemplate{tmpl}, finance.OrderContext{
				OrderTotal:     amt("100"),
				PaymentGateway: tt.gateway,
			})
			assert.Len(t, costs, tt.want)
			if tt.want == 1 {
				assert.True(t, costs[0].Amount.Equal(dec("3.2")))
			}
		})
	}
}

func TestEvaluate_ZeroAmountSkipped(t *testing.T) {
	templates := []finance.CostTemplate{
		{Type: finance.CostPaymentFee, Name: "pct only", Lines: []finance.CostLine{{PercentageRate: dec("0.03")}}},
		{Type: finance.CostCustom, Name: "refund credit", Lines: []finance.CostLine{{FlatAmount: dec("-4")}}},
	}
	costs := finance.Evaluate(templates, finance.OrderContext{OrderTotal: amt("0")})
	assert.Empty(t, costs)
}

func TestEvaluate_UnknownTypeSkipped(t *testing.T) {
	templates := []finance.CostTemplate{{Type: "DUTIES", Name: "x", Lines: []finance.CostLine{{FlatAmount: dec("1")}}}}
	assert.Empty(t, finance.Evaluate(templates, finance.OrderContext{}))
}

func TestEvaluate_BaseResolution(t *testing.T) {
	ctx := finance.OrderContext{
		OrderTotal:      amt("120"),
		Subtotal:        amt("100"),
		ShippingRevenue: amt("20"),
	}
	templates := []finance.CostTemplate{
		{
			Type: finance.CostCustom,
			Name: "mixed",
			Lines: []finance.CostLine{
				{AppliesTo: finance.BaseSubtotal, PercentageRate: dec("0.1")},
				{AppliesTo: finance.BaseShippingRevenue, PercentageRate: dec("0.5")},
				{PercentageRate: dec("0.01")},
			},
		},
		{
			Type:   finance.CostShipping,
			Name:   "template default",
			Lines:  []finance.CostLine{{PercentageRate: dec("1")}},
			Config: &finance.TemplateConfig{AppliesTo: finance.BaseShippingRevenue},
		},
	}

	costs := finance.Evaluate(templates, ctx)
	require.Len(t, costs, 2)
	// 100*0.1 + 20*0.5 + 120*0.01
	assert.True(t, costs[0].Amount.Equal(dec("21.2")), "got %s", costs[0].Amount)
	assert.True(t, costs[1].Amount.Equal(dec("20")))
}

func TestEvaluate_Condition(t *testing.T) {
	tmpl := finance.CostTemplate{
		Type:   finance.CostShipping,
		Name:   "free shipping threshold",
		Lines:  []finance.CostLine{{FlatAmount: dec("8")}},
		Config: &finance.TemplateConfig{Condition: `order.total >= 50.0 && order.channel == "web"`},
	}

	big := finance.Evaluate([]finance.CostTemplate{tmpl}, finance.OrderContext{OrderTotal: amt("75"), Channel: "web"})
	assert.Len(t, big, 1)

	small := finance.Evaluate([]finance.CostTemplate{tmpl}, finance.OrderContext{OrderTotal: amt("20"), Channel: "web"})
	assert.Empty(t, small)

	broken := tmpl
	broken.Config = &finance.TemplateConfig{Condition: `order.total >`}
	assert.Empty(t, finance.Evaluate([]finance.CostTemplate{broken}, finance.OrderContext{OrderTotal: amt("75")}))

	notBool := tmpl
	notBool.Config = &finance.TemplateConfig{Condition: `order.total + 1.0`}
	assert.Empty(t, finance.Evaluate([]finance.CostTemplate{notBool}, finance.OrderContext{OrderTotal: amt("75")}))
}

func TestEvaluate_PreservesTemplateOrder(t *testing.T) {
	templates := []finance.CostTemplate{
		{Type: finance.CostCustom, Name: "c", Lines: []finance.CostLine{{FlatAmount: dec("1")}}},
		{Type: finance.CostShipping, Name: "a", Lines: []finance.CostLine{{FlatAmount: dec("2")}}},
		{Type: finance.CostPaymentFee, Name: "b", Lines: []finance.CostLine{{FlatAmount: dec("3")}}},
	}
	costs := finance.Evaluate(templates, finance.OrderContext{})
	require.Len(t, costs, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{costs[0].TemplateName, costs[1].TemplateName, costs[2].TemplateName})
}

func TestEvaluateOrders(t *testing.T) {
	ev := finance.NewEvaluator(nil)
	templates := []finance.CostTemplate{
		{Type: finance.CostPaymentFee, Name: "fee", Lines: []finance.CostLine{{PercentageRate: dec("0.02")}}},
	}
	orders := []finance.OrderContext{
		{OrderID: "1", OrderTotal: amt("100")},
		{OrderID: "2", OrderTotal: amt("50")},
		{OrderID: "3"},
	}

	perOrder, totals := ev.EvaluateOrders(templates, orders)
	require.Len(t, perOrder, 3)
	assert.Len(t, perOrder[2].Costs, 0)
	assert.True(t, perOrder[0].Totals.Get(finance.CostPaymentFee).Equal(dec("2")))
	assert.True(t, totals.Get(finance.CostPaymentFee).Equal(dec("3")))
}

func TestTemplateJSON_AcceptsBothKeyStylesAndCoerces(t *testing.T) {
	doc := `[
	  {"type": "SHIPPING", "name": "camel", "lines": [{"appliesTo": "SUBTOTAL", "percentageRate": 0.05, "flatAmount": "1.50"}],
	   "config": {"gateway": "stripe", "appliesTo": "ORDER_TOTAL"}},
	  {"type": "CUSTOM", "name": "snake", "lines": [{"applies_to": "SHIPPING_REVENUE", "percentage_rate": "oops", "flat_amount": 2}]}
	]`
	var templates []finance.CostTemplate
	require.NoError(t, json.Unmarshal([]byte(doc), &templates))
	require.Len(t, templates, 2)

	assert.Equal(t, finance.BaseSubtotal, templates[0].Lines[0].AppliesTo)
	assert.True(t, templates[0].Lines[0].PercentageRate.Equal(dec("0.05")))
	assert.True(t, templates[0].Lines[0].FlatAmount.Equal(dec("1.5")))
	require.NotNil(t, templates[0].Config)
	assert.Equal(t, "stripe", templates[0].Config.Gateway)
	assert.Equal(t, finance.BaseOrderTotal, templates[0].Config.AppliesTo)

	assert.True(t, templates[1].Lines[0].PercentageRate.IsZero(), "unparsable rate coerces to zero")
	assert.Nil(t, templates[1].Config)
}

func TestOrderContextJSON(t *testing.T) {
	var ctx finance.OrderContext
	require.NoError(t, json.Unmarshal([]byte(`{"orderTotal": null, "subtotal": "40", "shippingRevenue": "x", "paymentGateway": "paypal"}`), &ctx))

	assert.False(t, ctx.OrderTotal.Valid)
	assert.True(t, ctx.Subtotal.Valid)
	assert.True(t, ctx.ShippingRevenue.Valid)
	assert.True(t, ctx.ShippingRevenue.Decimal.IsZero())
	assert.Equal(t, "paypal", ctx.PaymentGateway)
	assert.True(t, finance.OrderTotalOrFallback(ctx).Equal(dec("40")))
}
