package reconcile

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Describe renders cfg as two display sentences, payment rule first.
func Describe(cfg RuleConfig) []string {
	return DescribeIn(language.English, cfg)
}

// DescribeIn is Describe with locale-aware number formatting.
func DescribeIn(tag language.Tag, cfg RuleConfig) []string {
	p := message.NewPrinter(tag)
	return []string{
		p.Sprintf("Payouts are flagged when they differ from expected order revenue by more than %v or by more than %v%% of that revenue.",
			num(cfg.Payment.AmountDelta), num(cfg.Payment.PercentDelta.Shift(2))),
		p.Sprintf("Ad platforms are flagged when attributed conversions exceed %vx the store's order count once at least %v orders are recorded, or when %v or more is spent with no conversions.",
			num(cfg.Ads.ConversionMultiple), number.Decimal(cfg.Ads.MinOrdersForSpendCheck),
			num(cfg.Ads.MinSpendWithoutConversions)),
	}
}

func num(d decimal.Decimal) number.Formatter {
	f, _ := d.Float64()
	return number.Decimal(f, number.MaxFractionDigits(2))
}
