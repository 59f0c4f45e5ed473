package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/records"
)

// HTTPConfig describes a JSON API that lists payouts and/or ad metrics.
type HTTPConfig struct {
	Platform      string
	BaseURL       string
	Token         string
	PayoutsPath   string
	AdMetricsPath string
	// RequestsPerSecond of 0 disables throttling.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	Client            *http.Client
}

// HTTPSource fetches records with a bearer token and normalizes every object
// in the response. It does not retry.
type HTTPSource struct {
	*Base
	cfg    HTTPConfig
	client *http.Client
}

var (
	_ PayoutSource   = (*HTTPSource)(nil)
	_ AdMetricSource = (*HTTPSource)(nil)
)

// NewHTTPSource validates cfg and returns a source. A missing token is a
// credentials error attributed to the platform.
func NewHTTPSource(cfg HTTPConfig) (*HTTPSource, error) {
	if cfg.Platform == "" {
		return nil, fmt.Errorf("connector: platform name is required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, &Error{Platform: cfg.Platform, Err: ErrMissingCredentials}
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("connector: %s: invalid base url %q", cfg.Platform, cfg.BaseURL)
	}
	if cfg.PayoutsPath == "" {
		cfg.PayoutsPath = "/payouts"
	}
	if cfg.AdMetricsPath == "" {
		cfg.AdMetricsPath = "/ad-metrics"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPSource{
		Base:   NewBase(cfg.Platform, rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cfg:    cfg,
		client: client,
	}, nil
}

// FetchPayouts lists payouts for w.
func (s *HTTPSource) FetchPayouts(ctx context.Context, w records.Window) ([]records.PayoutRecord, error) {
	raw, err := s.list(ctx, s.cfg.PayoutsPath, w)
	if err != nil {
		return nil, err
	}
	out := make([]records.PayoutRecord, 0, len(raw))
	for _, r := range raw {
		out = append(out, records.NormalizePayout(r))
	}
	return out, nil
}

// FetchAdMetrics lists ad metric rows for w.
func (s *HTTPSource) FetchAdMetrics(ctx context.Context, w records.Window) ([]records.AdMetricRecord, error) {
	raw, err := s.list(ctx, s.cfg.AdMetricsPath, w)
	if err != nil {
		return nil, err
	}
	out := make([]records.AdMetricRecord, 0, len(raw))
	for _, r := range raw {
		out = append(out, records.NormalizeAdMetric(r))
	}
	return out, nil
}

func (s *HTTPSource) list(ctx context.Context, path string, w records.Window) ([]map[string]any, error) {
	if err := s.Wait(ctx); err != nil {
		return nil, err
	}

	u := strings.TrimRight(s.cfg.BaseURL, "/") + path
	q := url.Values{}
	if !w.Start.IsZero() {
		q.Set("since", w.Start.UTC().Format(time.RFC3339))
	}
	if !w.End.IsZero() {
		q.Set("until", w.End.UTC().Format(time.RFC3339))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("connector: %s: build request: %w", s.Platform(), err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &Error{Platform: s.Platform(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, &Error{Platform: s.Platform(), StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, NewError(s.Platform(), resp.StatusCode, body, ErrMissingCredentials)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewError(s.Platform(), resp.StatusCode, body, ErrUnexpectedStatus)
	}

	items, err := DecodeList(body)
	if err != nil {
		return nil, NewError(s.Platform(), resp.StatusCode, body, fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	return items, nil
}

// DecodeList accepts either a bare JSON array of objects or an envelope
// with a "data" array.
func DecodeList(body []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if obj, ok := v.(map[string]any); ok {
		v, ok = obj["data"]
		if !ok {
			return nil, fmt.Errorf("object without data array")
		}
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	out := make([]map[string]any, 0, len(arr))
	for i, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d: expected object, got %T", i, item)
		}
		out = append(out, m)
	}
	return out, nil
}
