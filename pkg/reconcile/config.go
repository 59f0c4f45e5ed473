// Package reconcile flags discrepancies between observed and expected
// financial totals: processor payouts against order revenue, and ad platform
// spend and conversions against store orders.
//
// Every rule is a pure function of already-aggregated window totals and a
// RuleConfig; nothing here performs I/O or keeps state between calls.
package reconcile

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// PaymentThresholds tune the payout variance rule.
type PaymentThresholds struct {
	// AmountDelta is the absolute gap, in reporting currency units, above
	// which a payout window is flagged.
	AmountDelta decimal.Decimal `json:"amount_delta"`
	// PercentDelta is the relative gap, as a fraction of expected revenue.
	PercentDelta decimal.Decimal `json:"percent_delta"`
}

// AdsThresholds tune the ad spend and conversion rules.
type AdsThresholds struct {
	ConversionMultiple         decimal.Decimal `json:"conversion_multiple"`
	MinSpendWithoutConversions decimal.Decimal `json:"min_spend_without_conversions"`
	MinOrdersForSpendCheck     int64           `json:"min_orders_for_spend_check"`
}

// RuleConfig is the immutable threshold set for one evaluation run.
type RuleConfig struct {
	Payment PaymentThresholds `json:"payment"`
	Ads     AdsThresholds     `json:"ads"`
}

// DefaultRuleConfig returns the documented defaults.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		Payment: PaymentThresholds{
			AmountDelta:  decimal.NewFromInt(50),
			PercentDelta: decimal.RequireFromString("0.05"),
		},
		Ads: AdsThresholds{
			ConversionMultiple:         decimal.RequireFromString("1.5"),
			MinSpendWithoutConversions: decimal.NewFromInt(200),
			MinOrdersForSpendCheck:     5,
		},
	}
}

var (
	// ErrNegativeThreshold is returned by Validate for thresholds below zero.
	ErrNegativeThreshold = errors.New("reconcile: thresholds must not be negative")
	// ErrNonFiniteThreshold is returned by RuleOverrides.Validate for NaN or
	// infinite override values.
	ErrNonFiniteThreshold = errors.New("reconcile: thresholds must be finite")
)

// Validate rejects configurations no merchant could sensibly mean.
func (c RuleConfig) Validate() error {
	checks := []struct {
		name     string
		negative bool
	}{
		{"payment.amount_delta", c.Payment.AmountDelta.IsNegative()},
		{"payment.percent_delta", c.Payment.PercentDelta.IsNegative()},
		{"ads.conversion_multiple", c.Ads.ConversionMultiple.IsNegative()},
		{"ads.min_spend_without_conversions", c.Ads.MinSpendWithoutConversions.IsNegative()},
		{"ads.min_orders_for_spend_check", c.Ads.MinOrdersForSpendCheck < 0},
	}
	for _, chk := range checks {
		if chk.negative {
			return fmt.Errorf("%w: %s", ErrNegativeThreshold, chk.name)
		}
	}
	return nil
}

// PaymentOverrides are per-merchant replacements for payment thresholds.
// Nil fields keep the base value.
type PaymentOverrides struct {
	AmountDelta  *float64 `yaml:"amount_delta,omitempty" json:"amount_delta,omitempty"`
	PercentDelta *float64 `yaml:"percent_delta,omitempty" json:"percent_delta,omitempty"`
}

// AdsOverrides are per-merchant replacements for ads thresholds.
type AdsOverrides struct {
	ConversionMultiple         *float64 `yaml:"conversion_multiple,omitempty" json:"conversion_multiple,omitempty"`
	MinSpendWithoutConversions *float64 `yaml:"min_spend_without_conversions,omitempty" json:"min_spend_without_conversions,omitempty"`
	MinOrdersForSpendCheck     *int64   `yaml:"min_orders_for_spend_check,omitempty" json:"min_orders_for_spend_check,omitempty"`
}

// RuleOverrides is the merchant-authored partial configuration.
type RuleOverrides struct {
	Payment PaymentOverrides `yaml:"payment" json:"payment"`
	Ads     AdsOverrides     `yaml:"ads" json:"ads"`
}

// Validate rejects override values that cannot become a threshold.
func (o RuleOverrides) Validate() error {
	checks := []struct {
		name string
		v    *float64
	}{
		{"payment.amount_delta", o.Payment.AmountDelta},
		{"payment.percent_delta", o.Payment.PercentDelta},
		{"ads.conversion_multiple", o.Ads.ConversionMultiple},
		{"ads.min_spend_without_conversions", o.Ads.MinSpendWithoutConversions},
	}
	for _, chk := range checks {
		if chk.v != nil && !finite(*chk.v) {
			return fmt.Errorf("%w: %s", ErrNonFiniteThreshold, chk.name)
		}
	}
	return nil
}

// Apply returns a copy of c with every non-nil override applied. Non-finite
// values are skipped; call RuleOverrides.Validate to reject them.
func (c RuleConfig) Apply(o RuleOverrides) RuleConfig {
	out := c
	applyFloat(&out.Payment.AmountDelta, o.Payment.AmountDelta)
	applyFloat(&out.Payment.PercentDelta, o.Payment.PercentDelta)
	applyFloat(&out.Ads.ConversionMultiple, o.Ads.ConversionMultiple)
	applyFloat(&out.Ads.MinSpendWithoutConversions, o.Ads.MinSpendWithoutConversions)
	if v := o.Ads.MinOrdersForSpendCheck; v != nil {
		out.Ads.MinOrdersForSpendCheck = *v
	}
	return out
}

// ApplyValidated applies o and validates both the overrides and the result.
func (c RuleConfig) ApplyValidated(o RuleOverrides) (RuleConfig, error) {
	if err := o.Validate(); err != nil {
		return RuleConfig{}, err
	}
	out := c.Apply(o)
	if err := out.Validate(); err != nil {
		return RuleConfig{}, err
	}
	return out, nil
}

func applyFloat(dst *decimal.Decimal, v *float64) {
	if v != nil && finite(*v) {
		*dst = decimal.NewFromFloat(*v)
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
