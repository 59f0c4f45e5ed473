package connector

import (
	"context"
	"fmt"
	"os"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/records"
)

// StaticPayouts serves a fixed payout list, e.g. loaded from a file.
type StaticPayouts struct {
	Name    string
	Payouts []records.PayoutRecord
}

func (s StaticPayouts) Platform() string { return s.Name }

// FetchPayouts returns the records dated inside w.
func (s StaticPayouts) FetchPayouts(_ context.Context, w records.Window) ([]records.PayoutRecord, error) {
	out := make([]records.PayoutRecord, 0, len(s.Payouts))
	for _, p := range s.Payouts {
		if w.Contains(p.PayoutDate) {
			out = append(out, p)
		}
	}
	return out, nil
}

// StaticAdMetrics serves a fixed ad metric list.
type StaticAdMetrics struct {
	Name    string
	Metrics []records.AdMetricRecord
}

func (s StaticAdMetrics) Platform() string { return s.Name }

// FetchAdMetrics returns the rows dated inside w.
func (s StaticAdMetrics) FetchAdMetrics(_ context.Context, w records.Window) ([]records.AdMetricRecord, error) {
	out := make([]records.AdMetricRecord, 0, len(s.Metrics))
	for _, m := range s.Metrics {
		if w.Contains(m.Date) {
			out = append(out, m)
		}
	}
	return out, nil
}

// LoadPayoutsFile reads a JSON list of raw payout objects and normalizes it.
func LoadPayoutsFile(platform, path string) (StaticPayouts, error) {
	items, err := readList(path)
	if err != nil {
		return StaticPayouts{}, &Error{Platform: platform, Err: err}
	}
	out := StaticPayouts{Name: platform, Payouts: make([]records.PayoutRecord, 0, len(items))}
	for _, raw := range items {
		out.Payouts = append(out.Payouts, records.NormalizePayout(raw))
	}
	return out, nil
}

// LoadAdMetricsFile reads a JSON list of raw ad metric objects.
func LoadAdMetricsFile(platform, path string) (StaticAdMetrics, error) {
	items, err := readList(path)
	if err != nil {
		return StaticAdMetrics{}, &Error{Platform: platform, Err: err}
	}
	out := StaticAdMetrics{Name: platform, Metrics: make([]records.AdMetricRecord, 0, len(items))}
	for _, raw := range items {
		out.Metrics = append(out.Metrics, records.NormalizeAdMetric(raw))
	}
	return out, nil
}

func readList(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	items, err := DecodeList(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return items, nil
}
