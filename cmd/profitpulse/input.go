package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/finance"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/records"
)

func readOrders(path string) ([]finance.OrderContext, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var orders []finance.OrderContext
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return orders, nil
}

// readRules loads a YAML or JSON overrides file on top of the defaults.
func readRules(path string) (reconcile.RuleConfig, error) {
	cfg := reconcile.DefaultRuleConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var o reconcile.RuleOverrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg.ApplyValidated(o)
}

func parseWindow(start, end string) (records.Window, error) {
	var w records.Window
	var err error
	if start != "" {
		if w.Start, err = parseDay(start); err != nil {
			return w, fmt.Errorf("--start: %w", err)
		}
	}
	if end != "" {
		if w.End, err = parseDay(end); err != nil {
			return w, fmt.Errorf("--end: %w", err)
		}
	}
	if !w.Start.IsZero() && !w.End.IsZero() && !w.Start.Before(w.End) {
		return w, fmt.Errorf("--start must be before --end")
	}
	return w, nil
}

func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
