package finance

import "github.com/shopspring/decimal"

// ResolveBase picks the base a line's percentage applies to: the line's own
// setting, then the template default, then ORDER_TOTAL.
func ResolveBase(line CostLine, cfg *TemplateConfig) BaseType {
	if line.AppliesTo != "" {
		return line.AppliesTo
	}
	if cfg != nil && cfg.AppliesTo != "" {
		return cfg.AppliesTo
	}
	return BaseOrderTotal
}

// BaseAmount resolves the monetary base for an order. Unknown bases fall back
// to the order total.
func BaseAmount(ctx OrderContext, base BaseType) decimal.Decimal {
	switch base {
	case BaseSubtotal:
		return SubtotalOrZero(ctx)
	case BaseShippingRevenue:
		return ShippingRevenueOrZero(ctx)
	default:
		return OrderTotalOrFallback(ctx)
	}
}

// OrderTotalOrFallback is the order total, else the subtotal, else zero.
func OrderTotalOrFallback(ctx OrderContext) decimal.Decimal {
	if ctx.OrderTotal.Valid {
		return ctx.OrderTotal.Decimal
	}
	return SubtotalOrZero(ctx)
}

// SubtotalOrZero is the subtotal, else zero.
func SubtotalOrZero(ctx OrderContext) decimal.Decimal {
	if ctx.Subtotal.Valid {
		return ctx.Subtotal.Decimal
	}
	return decimal.Zero
}

// ShippingRevenueOrZero is the shipping revenue, else zero.
func ShippingRevenueOrZero(ctx OrderContext) decimal.Decimal {
	if ctx.ShippingRevenue.Valid {
		return ctx.ShippingRevenue.Decimal
	}
	return decimal.Zero
}

// LineAmount is base * rate + flat for a single line.
func LineAmount(line CostLine, cfg *TemplateConfig, ctx OrderContext) decimal.Decimal {
	base := BaseAmount(ctx, ResolveBase(line, cfg))
	return base.Mul(line.PercentageRate).Add(line.FlatAmount)
}

// TemplateAmount sums LineAmount over every line of t.
func TemplateAmount(t CostTemplate, ctx OrderContext) decimal.Decimal {
	total := decimal.Zero
	for _, line := range t.Lines {
		total = total.Add(LineAmount(line, t.Config, ctx))
	}
	return total
}

// GatewayMatches reports whether the template's gateway filter admits ctx.
// A template without a gateway filter applies to every gateway.
func GatewayMatches(cfg *TemplateConfig, ctx OrderContext) bool {
	return cfg == nil || cfg.Gateway == "" || cfg.Gateway == ctx.PaymentGateway
}

// ChannelMatches reports whether the template's channel filter admits ctx.
func ChannelMatches(cfg *TemplateConfig, ctx OrderContext) bool {
	return cfg == nil || cfg.Channel == "" || cfg.Channel == ctx.Channel
}
