// Package alerting publishes raised discrepancy flags to downstream
// consumers (Kafka topic, Redis channel).
package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
)

// Alert is the published form of one flag.
type Alert struct {
	MerchantID  string                    `json:"merchant_id"`
	RunID       string                    `json:"run_id"`
	Fingerprint string                    `json:"fingerprint"`
	Flag        reconcile.DiscrepancyFlag `json:"flag"`
	RaisedAt    time.Time                 `json:"raised_at"`
}

func (a Alert) encode() ([]byte, error) {
	return json.Marshal(a)
}

// Publisher delivers alerts. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, alerts []Alert) error
	Close() error
}

// Build turns flags at or above min into alerts.
func Build(merchantID, runID string, flags []reconcile.DiscrepancyFlag, min reconcile.Severity, at time.Time) []Alert {
	kept := reconcile.FilterMinSeverity(flags, min)
	alerts := make([]Alert, 0, len(kept))
	for _, f := range kept {
		alerts = append(alerts, Alert{
			MerchantID:  merchantID,
			RunID:       runID,
			Fingerprint: f.Fingerprint(),
			Flag:        f,
			RaisedAt:    at.UTC(),
		})
	}
	return alerts
}

// NopPublisher drops every alert.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, []Alert) error { return nil }
func (NopPublisher) Close() error { return nil }

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, alerts []Alert) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, alerts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
