// Package finance computes variable per-order costs from merchant cost
// templates and aggregates them into per-type totals.
//
// Evaluation is pure: templates and order contexts are read-only, malformed
// templates contribute nothing, and no function in the evaluation path
// returns an error.
package finance

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/coerce"
)

// CostType is the closed set of variable cost buckets. It is owned by the
// engine; storage layers map to and from it at their boundary.
type CostType string

const (
	CostShipping    CostType = "SHIPPING"
	CostPaymentFee  CostType = "PAYMENT_FEE"
	CostPlatformFee CostType = "PLATFORM_FEE"
	CostCustom      CostType = "CUSTOM"
)

// CostTypes lists every known CostType in reporting order.
var CostTypes = []CostType{CostShipping, CostPaymentFee, CostPlatformFee, CostCustom}

// Valid reports whether t is one of the known cost types.
func (t CostType) Valid() bool {
	switch t {
	case CostShipping, CostPaymentFee, CostPlatformFee, CostCustom:
		return true
	}
	return false
}

// ParseCostType maps a stored identifier to a CostType.
func ParseCostType(s string) (CostType, bool) {
	t := CostType(s)
	return t, t.Valid()
}

// BaseType names the order amount a percentage rate is applied to.
type BaseType string

const (
	BaseSubtotal        BaseType = "SUBTOTAL"
	BaseShippingRevenue BaseType = "SHIPPING_REVENUE"
	BaseOrderTotal      BaseType = "ORDER_TOTAL"
)

// CostLine is one additive component of a template amount:
// base(appliesTo) * PercentageRate + FlatAmount.
type CostLine struct {
	AppliesTo      BaseType        `json:"applies_to,omitempty"`
	PercentageRate decimal.Decimal `json:"percentage_rate"`
	FlatAmount     decimal.Decimal `json:"flat_amount"`
}

// UnmarshalJSON accepts snake_case and camelCase keys and coerces numeric
// fields, so a rate of "abc" becomes zero instead of failing the document.
func (l *CostLine) UnmarshalJSON(data []byte) error {
	raw, err := decodeObject(data)
	if err != nil {
		return err
	}
	*l = CostLine{
		AppliesTo:      BaseType(coerce.StringField(raw, "applies_to", "appliesTo")),
		PercentageRate: coerce.DecimalField(raw, "percentage_rate", "percentageRate"),
		FlatAmount:     coerce.DecimalField(raw, "flat_amount", "flatAmount"),
	}
	return nil
}

// TemplateConfig holds the optional filters and defaults of a template.
type TemplateConfig struct {
	Gateway   string   `json:"gateway,omitempty"`
	Channel   string   `json:"channel,omitempty"`
	AppliesTo BaseType `json:"applies_to,omitempty"`
	// Condition is an optional CEL expression over `order`; the template
	// applies only when it evaluates to true.
	Condition string `json:"condition,omitempty"`
}

// UnmarshalJSON accepts snake_case and camelCase keys.
func (c *TemplateConfig) UnmarshalJSON(data []byte) error {
	raw, err := decodeObject(data)
	if err != nil {
		return err
	}
	*c = TemplateConfig{
		Gateway:   coerce.StringField(raw, "gateway"),
		Channel:   coerce.StringField(raw, "channel"),
		AppliesTo: BaseType(coerce.StringField(raw, "applies_to", "appliesTo")),
		Condition: coerce.StringField(raw, "condition"),
	}
	return nil
}

// CostTemplate is a merchant-configured rule for one variable cost.
// A template without lines never contributes a cost.
type CostTemplate struct {
	Type   CostType        `json:"type"`
	Name   string          `json:"name"`
	Lines  []CostLine      `json:"lines"`
	Config *TemplateConfig `json:"config,omitempty"`
}

// OrderContext carries the pricing facts for one order or evaluation unit.
// Amounts are optional; absent amounts resolve through BaseAmount.
type OrderContext struct {
	OrderID         string              `json:"order_id,omitempty"`
	OrderTotal      decimal.NullDecimal `json:"order_total"`
	Subtotal        decimal.NullDecimal `json:"subtotal"`
	ShippingRevenue decimal.NullDecimal `json:"shipping_revenue"`
	PaymentGateway  string              `json:"payment_gateway,omitempty"`
	Channel         string              `json:"channel,omitempty"`
}

// UnmarshalJSON accepts snake_case and camelCase keys. A present amount that
// cannot be parsed is treated as zero; a null or missing amount stays absent.
func (o *OrderContext) UnmarshalJSON(data []byte) error {
	raw, err := decodeObject(data)
	if err != nil {
		return err
	}
	*o = OrderContext{
		OrderID:         coerce.StringField(raw, "order_id", "orderId", "id"),
		OrderTotal:      optionalAmount(raw, "order_total", "orderTotal"),
		Subtotal:        optionalAmount(raw, "subtotal"),
		ShippingRevenue: optionalAmount(raw, "shipping_revenue", "shippingRevenue"),
		PaymentGateway:  coerce.StringField(raw, "payment_gateway", "paymentGateway"),
		Channel:         coerce.StringField(raw, "channel"),
	}
	return nil
}

// Amount wraps d as a present optional amount.
func Amount(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

// VariableCost is one evaluated template amount. Amount is always > 0.
type VariableCost struct {
	Type         CostType        `json:"type"`
	TemplateName string          `json:"template_name"`
	Amount       decimal.Decimal `json:"amount"`
}

func optionalAmount(raw map[string]any, keys ...string) decimal.NullDecimal {
	v, ok := coerce.FirstPresent(raw, keys...)
	if !ok {
		return decimal.NullDecimal{}
	}
	return Amount(coerce.Decimal(v))
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}
