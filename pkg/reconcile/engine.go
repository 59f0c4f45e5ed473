package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/records"
)

// WindowInput is everything the rule families need for one merchant window.
type WindowInput struct {
	Window records.Window

	Payouts         []records.PayoutRecord
	ExpectedRevenue decimal.Decimal

	AdMetrics  []records.AdMetricRecord
	OrderCount int64
	GroupBy    records.GroupBy

	// SkipPayments and SkipAds disable a rule family, e.g. when the merchant
	// has no connected processor or ad account.
	SkipPayments bool
	SkipAds      bool
}

// Result is the output of one evaluation pass.
type Result struct {
	ObservedPayoutTotal  decimal.Decimal    `json:"observed_payout_total"`
	ExpectedRevenueTotal decimal.Decimal    `json:"expected_revenue_total"`
	OrderCount           int64              `json:"order_count"`
	AdGroups             []records.AdTotals `json:"ad_groups,omitempty"`
	Flags                []DiscrepancyFlag  `json:"flags"`
}

// HasFlags reports whether any rule fired.
func (r Result) HasFlags() bool { return len(r.Flags) > 0 }

// Engine runs both rule families against a fixed RuleConfig. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	cfg RuleConfig
}

// NewEngine returns an engine bound to cfg.
func NewEngine(cfg RuleConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the thresholds the engine evaluates with.
func (e *Engine) Config() RuleConfig { return e.cfg }

// Evaluate aggregates the window's records and applies every enabled rule.
// Payment flags precede ad flags; ad flags follow group key order.
func (e *Engine) Evaluate(in WindowInput) Result {
	res := Result{
		ExpectedRevenueTotal: in.ExpectedRevenue,
		OrderCount:           in.OrderCount,
		Flags:                []DiscrepancyFlag{},
	}

	if !in.SkipPayments {
		res.ObservedPayoutTotal = records.SumNetAmount(in.Payouts, in.Window)
		if f := CheckPayment(PaymentInput{
			ObservedPayoutTotal:  res.ObservedPayoutTotal,
			ExpectedRevenueTotal: in.ExpectedRevenue,
			Window:               in.Window,
		}, e.cfg); f != nil {
			res.Flags = append(res.Flags, *f)
		}
	}

	if !in.SkipAds {
		res.AdGroups = records.GroupAdMetrics(in.AdMetrics, in.Window, in.GroupBy)
		for _, g := range res.AdGroups {
			res.Flags = append(res.Flags, CheckAds(AdsInput{
				Group:      g,
				OrderCount: in.OrderCount,
				Window:     in.Window,
			}, e.cfg)...)
		}
	}

	return res
}
