package records

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// SumNetAmount is the observed payout total: the net amount of every settled
// payout dated inside the window.
func SumNetAmount(payouts []PayoutRecord, w Window) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payouts {
		if !p.Status.Settled() || !w.Contains(p.PayoutDate) {
			continue
		}
		total = total.Add(p.NetAmount)
	}
	return total
}

// GroupBy selects the granularity at which ad metrics are reconciled.
type GroupBy string

const (
	GroupByStore    GroupBy = "store"
	GroupByAccount  GroupBy = "account"
	GroupByCampaign GroupBy = "campaign"
)

// ParseGroupBy maps a configuration string to a GroupBy. Unknown and empty
// values select store-wide grouping.
func ParseGroupBy(s string) GroupBy {
	switch GroupBy(s) {
	case GroupByAccount, GroupByCampaign:
		return GroupBy(s)
	default:
		return GroupByStore
	}
}

// AdTotals are summed ad metrics for one group.
type AdTotals struct {
	Key         string          `json:"key"`
	Label       string          `json:"label,omitempty"`
	Spend       decimal.Decimal `json:"spend"`
	Conversions decimal.Decimal `json:"conversions"`
	Impressions int64           `json:"impressions"`
	Clicks      int64           `json:"clicks"`
	Rows        int             `json:"rows"`
}

func (t *AdTotals) add(r AdMetricRecord) {
	t.Spend = t.Spend.Add(r.Spend)
	t.Conversions = t.Conversions.Add(r.Conversions)
	t.Impressions += r.Impressions
	t.Clicks += r.Clicks
	t.Rows++
}

// GroupKey returns the group key and display label for r.
func (g GroupBy) GroupKey(r AdMetricRecord) (string, string) {
	switch g {
	case GroupByAccount:
		return "account:" + r.AccountID, r.AccountID
	case GroupByCampaign:
		return fmt.Sprintf("campaign:%s/%s", r.AccountID, r.CampaignID), r.CampaignName
	default:
		return "store", ""
	}
}

// GroupAdMetrics sums the metrics dated inside w per group, sorted by key.
// Store-wide grouping always yields exactly one group, even for no input.
func GroupAdMetrics(metrics []AdMetricRecord, w Window, by GroupBy) []AdTotals {
	groups := make(map[string]*AdTotals)
	if by == GroupByStore || by == "" {
		groups["store"] = &AdTotals{Key: "store"}
	}
	for _, m := range metrics {
		if !w.Contains(m.Date) {
			continue
		}
		key, label := by.GroupKey(m)
		g, ok := groups[key]
		if !ok {
			g = &AdTotals{Key: key, Label: label}
			groups[key] = g
		}
		g.add(m)
	}

	out := make([]AdTotals, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
