package records

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/coerce"
)

// Field aliases accepted from connector payloads, in precedence order.
var (
	payoutIDKeys     = []string{"payout_id", "payoutId", "id"}
	payoutDateKeys   = []string{"payout_date", "payoutDate", "arrival_date", "date"}
	grossAmountKeys  = []string{"gross_amount", "grossAmount", "gross", "amount"}
	feeTotalKeys     = []string{"fee_total", "feeTotal", "fees", "fee"}
	netAmountKeys    = []string{"net_amount", "netAmount", "net"}
	spendKeys        = []string{"spend", "amount_spent", "cost"}
	conversionKeys   = []string{"conversions", "purchases", "results", "actions"}
	impressionKeys   = []string{"impressions"}
	clickKeys        = []string{"clicks", "link_clicks"}
	campaignIDKeys   = []string{"campaign_id", "campaignId"}
	campaignNameKeys = []string{"campaign_name", "campaignName"}
)

// NormalizePayout builds a PayoutRecord from a raw connector object.
func NormalizePayout(raw map[string]any) PayoutRecord {
	gross := coerce.DecimalField(raw, grossAmountKeys...)
	fee := coerce.DecimalField(raw, feeTotalKeys...)
	return PayoutRecord{
		PayoutID:    coerce.StringField(raw, payoutIDKeys...),
		Status:      PayoutStatus(strings.ToLower(coerce.StringField(raw, "status"))),
		PayoutDate:  parseTime(firstValue(raw, payoutDateKeys)),
		Currency:    strings.ToUpper(coerce.StringField(raw, "currency")),
		GrossAmount: gross,
		FeeTotal:    fee,
		NetAmount:   ResolveNetAmount(raw, gross, fee),
		RawSource:   coerce.StringField(raw, "raw_source", "source"),
	}
}

// ResolveNetAmount returns the net amount the source reported, or
// gross minus fees when the source omits it.
func ResolveNetAmount(raw map[string]any, gross, fee decimal.Decimal) decimal.Decimal {
	if v, ok := coerce.FirstPresent(raw, netAmountKeys...); ok {
		return coerce.Decimal(v)
	}
	return DeriveNetAmount(gross, fee)
}

// DeriveNetAmount is gross minus fees.
func DeriveNetAmount(gross, fee decimal.Decimal) decimal.Decimal {
	return gross.Sub(fee)
}

// NormalizeAdMetric builds an AdMetricRecord from a raw connector object.
// Missing numeric fields are zero.
func NormalizeAdMetric(raw map[string]any) AdMetricRecord {
	return AdMetricRecord{
		AccountID:    coerce.StringField(raw, "account_id", "accountId"),
		CampaignID:   coerce.StringField(raw, campaignIDKeys...),
		CampaignName: coerce.StringField(raw, campaignNameKeys...),
		AdSetID:      coerce.StringField(raw, "ad_set_id", "adset_id", "adSetId"),
		AdSetName:    coerce.StringField(raw, "ad_set_name", "adset_name", "adSetName"),
		AdID:         coerce.StringField(raw, "ad_id", "adId"),
		AdName:       coerce.StringField(raw, "ad_name", "adName"),
		Date:         parseTime(firstValue(raw, []string{"date", "date_start"})),
		Currency:     strings.ToUpper(coerce.StringField(raw, "currency")),
		Spend:        coerce.DecimalField(raw, spendKeys...),
		Impressions:  coerce.Int64Field(raw, impressionKeys...),
		Clicks:       coerce.Int64Field(raw, clickKeys...),
		Conversions:  coerce.DecimalField(raw, conversionKeys...),
	}
}

func firstValue(raw map[string]any, keys []string) any {
	v, _ := coerce.FirstPresent(raw, keys...)
	return v
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// parseTime accepts RFC 3339 strings, plain dates and unix seconds. Anything
// else yields the zero time.
func parseTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
			return time.Unix(secs, 0).UTC()
		}
	case nil:
	default:
		if secs := coerce.Int64(x); secs > 0 {
			return time.Unix(secs, 0).UTC()
		}
	}
	return time.Time{}
}
