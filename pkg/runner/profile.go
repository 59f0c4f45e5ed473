package runner

import (
	"fmt"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/config"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/connector"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/finance"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/records"
)

// RequestFromProfile builds a run request from a merchant profile. Tokens are
// resolved through getenv using each connector's token_env name.
func RequestFromProfile(p *config.MerchantProfile, window records.Window, orders []finance.OrderContext, getenv func(string) string) (Request, error) {
	rules, err := p.RuleConfig()
	if err != nil {
		return Request{}, err
	}
	req := Request{
		MerchantID: p.MerchantID,
		Window:     window,
		Orders:     orders,
		Rules:      &rules,
		GroupBy:    p.GroupBy(),
	}
	if p.AlertMinSeverity != "" {
		req.AlertMinSeverity = reconcile.ParseSeverity(p.AlertMinSeverity)
	}
	if p.TemplatesFile != "" {
		if req.Templates, err = config.LoadTemplates(p.TemplatesFile); err != nil {
			return Request{}, err
		}
	}
	for _, c := range p.Connectors {
		switch c.Kind {
		case "payouts":
			src, err := payoutSource(c, getenv)
			if err != nil {
				return Request{}, err
			}
			req.Payouts = append(req.Payouts, src)
		case "ads":
			src, err := adSource(c, getenv)
			if err != nil {
				return Request{}, err
			}
			req.Ads = append(req.Ads, src)
		default:
			return Request{}, fmt.Errorf("connector %q: unknown kind %q", c.Platform, c.Kind)
		}
	}
	return req, nil
}

func payoutSource(c config.ConnectorProfile, getenv func(string) string) (connector.PayoutSource, error) {
	if c.File != "" {
		return connector.LoadPayoutsFile(c.Platform, c.File)
	}
	return httpSource(c, getenv)
}

func adSource(c config.ConnectorProfile, getenv func(string) string) (connector.AdMetricSource, error) {
	if c.File != "" {
		return connector.LoadAdMetricsFile(c.Platform, c.File)
	}
	return httpSource(c, getenv)
}

func httpSource(c config.ConnectorProfile, getenv func(string) string) (*connector.HTTPSource, error) {
	token := ""
	if c.TokenEnv != "" {
		token = getenv(c.TokenEnv)
	}
	return connector.NewHTTPSource(connector.HTTPConfig{
		Platform:          c.Platform,
		BaseURL:           c.BaseURL,
		Token:             token,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             1,
	})
}
