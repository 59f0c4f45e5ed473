// Package runner executes one reconciliation run for a merchant: cost
// evaluation, concurrent connector fetches, rule evaluation, and the
// persistence, alerting and archival of the outcome.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/alerting"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/archive"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/connector"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/finance"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/observability"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/records"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/store"
)

var ErrMissingMerchant = errors.New("runner: merchant id is required")

// Request describes one run.
type Request struct {
	MerchantID string
	Window     records.Window
	Orders     []finance.OrderContext

	// Templates overrides the stored template set when non-nil.
	Templates []finance.CostTemplate
	// Rules overrides the runner's default thresholds when non-nil.
	Rules   *reconcile.RuleConfig
	GroupBy records.GroupBy

	Payouts []connector.PayoutSource
	Ads     []connector.AdMetricSource

	// AlertMinSeverity overrides the runner's alert floor when set.
	AlertMinSeverity reconcile.Severity
}

// Report is the archived outcome of a run.
type Report struct {
	RunID       string         `json:"run_id"`
	MerchantID  string         `json:"merchant_id"`
	Window      records.Window `json:"window"`
	GeneratedAt time.Time      `json:"generated_at"`

	Orders     []finance.OrderCosts `json:"orders"`
	CostTotals finance.CostTotals   `json:"cost_totals"`
	Costs      finance.CostSummary  `json:"costs"`

	Reconciliation reconcile.Result `json:"reconciliation"`
	Sources        []string         `json:"sources"`
	AlertsSent     int              `json:"alerts_sent"`
	Warnings       []string         `json:"warnings,omitempty"`

	// ArchiveRef is set after the report body has been archived, so it is
	// never part of the archived bytes.
	ArchiveRef string `json:"archive_ref,omitempty"`
}

// Config wires a Runner. Every field is optional.
type Config struct {
	Templates        store.TemplateStore
	Flags            store.FlagStore
	Publisher        alerting.Publisher
	Archive          archive.Store
	Telemetry        *observability.Provider
	Evaluator        *finance.Evaluator
	Rules            *reconcile.RuleConfig
	AlertMinSeverity reconcile.Severity
	Logger           *slog.Logger
	Now              func() time.Time
}

// Runner is safe for concurrent use.
type Runner struct {
	templates store.TemplateStore
	flags     store.FlagStore
	publisher alerting.Publisher
	archive   archive.Store
	telemetry *observability.Provider
	evaluator *finance.Evaluator
	rules     reconcile.RuleConfig
	minAlert  reconcile.Severity
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a runner. Missing collaborators are skipped at run time.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		templates: cfg.Templates,
		flags:     cfg.Flags,
		publisher: cfg.Publisher,
		archive:   cfg.Archive,
		telemetry: cfg.Telemetry,
		evaluator: cfg.Evaluator,
		rules:     reconcile.DefaultRuleConfig(),
		minAlert:  reconcile.SeverityWarning,
		logger:    logger.With("component", "runner"),
		now:       cfg.Now,
	}
	if r.evaluator == nil {
		r.evaluator = finance.NewEvaluator(logger)
	}
	if r.publisher == nil {
		r.publisher = alerting.NopPublisher{}
	}
	if cfg.Rules != nil {
		r.rules = *cfg.Rules
	}
	if cfg.AlertMinSeverity != "" {
		r.minAlert = cfg.AlertMinSeverity
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Run executes req. Connector failures abort the run before anything is
// persisted. Alert and archive failures are logged and reported as warnings.
func (r *Runner) Run(ctx context.Context, req Request) (report *Report, err error) {
	if req.MerchantID == "" {
		return nil, ErrMissingMerchant
	}
	ctx, done := r.telemetry.TrackOperation(ctx, "runner.run", attribute.String("merchant.id", req.MerchantID))
	defer func() { done(err) }()

	rules := r.rules
	if req.Rules != nil {
		rules = *req.Rules
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	report = &Report{
		RunID:       uuid.NewString(),
		MerchantID:  req.MerchantID,
		Window:      req.Window,
		GeneratedAt: r.now().UTC(),
		Sources:     sourceNames(req),
	}
	log := r.logger.With("merchant_id", req.MerchantID, "run_id", report.RunID)

	templates, err := r.loadTemplates(ctx, req)
	if err != nil {
		return nil, err
	}
	orders, totals := r.evaluator.EvaluateOrders(templates, req.Orders)
	for _, o := range orders {
		r.telemetry.RecordCosts(ctx, o.Costs)
	}
	report.Orders = orders
	report.CostTotals = totals
	report.Costs = totals.Summary()

	payouts, metrics, err := r.fetch(ctx, req)
	if err != nil {
		log.WarnContext(ctx, "run aborted", "error", err)
		return nil, err
	}

	report.Reconciliation = reconcile.NewEngine(rules).Evaluate(reconcile.WindowInput{
		Window:          req.Window,
		Payouts:         payouts,
		ExpectedRevenue: ExpectedRevenue(req.Orders),
		AdMetrics:       metrics,
		OrderCount:      int64(len(req.Orders)),
		GroupBy:         req.GroupBy,
		SkipPayments:    len(req.Payouts) == 0,
		SkipAds:         len(req.Ads) == 0,
	})
	flags := report.Reconciliation.Flags
	r.telemetry.RecordFlags(ctx, flags)

	if r.flags != nil && len(flags) > 0 {
		if err := r.flags.SaveFlags(ctx, req.MerchantID, report.RunID, flags); err != nil {
			return nil, fmt.Errorf("save flags: %w", err)
		}
	}

	minAlert := r.minAlert
	if req.AlertMinSeverity != "" {
		minAlert = req.AlertMinSeverity
	}
	if alerts := alerting.Build(req.MerchantID, report.RunID, flags, minAlert, report.GeneratedAt); len(alerts) > 0 {
		if err := r.publisher.Publish(ctx, alerts); err != nil {
			log.ErrorContext(ctx, "alert publish failed", "alerts", len(alerts), "error", err)
			report.Warnings = append(report.Warnings, "alerts not delivered: "+err.Error())
		} else {
			report.AlertsSent = len(alerts)
		}
	}

	if r.archive != nil {
		ref, err := archive.Save(ctx, r.archive, report)
		if err != nil {
			log.ErrorContext(ctx, "report archive failed", "error", err)
			report.Warnings = append(report.Warnings, "report not archived: "+err.Error())
		} else {
			report.ArchiveRef = ref
		}
	}

	log.InfoContext(ctx, "run complete",
		"orders", len(req.Orders),
		"flags", len(flags),
		"alerts", report.AlertsSent,
		"archive_ref", report.ArchiveRef,
	)
	return report, nil
}

func (r *Runner) loadTemplates(ctx context.Context, req Request) ([]finance.CostTemplate, error) {
	if req.Templates != nil || r.templates == nil {
		return req.Templates, nil
	}
	templates, err := r.templates.ListTemplates(ctx, req.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return templates, nil
}

// fetch queries every source concurrently. The first failure cancels the
// remaining fetches.
func (r *Runner) fetch(ctx context.Context, req Request) ([]records.PayoutRecord, []records.AdMetricRecord, error) {
	payouts := make([][]records.PayoutRecord, len(req.Payouts))
	metrics := make([][]records.AdMetricRecord, len(req.Ads))

	g, ctx := errgroup.WithContext(ctx)
	for i, src := range req.Payouts {
		g.Go(func() error {
			ctx, done := r.telemetry.TrackOperation(ctx, "connector.fetch_payouts", attribute.String("platform", src.Platform()))
			out, err := src.FetchPayouts(ctx, req.Window)
			done(err)
			if err != nil {
				return fmt.Errorf("fetch payouts from %s: %w", src.Platform(), err)
			}
			payouts[i] = out
			return nil
		})
	}
	for i, src := range req.Ads {
		g.Go(func() error {
			ctx, done := r.telemetry.TrackOperation(ctx, "connector.fetch_ad_metrics", attribute.String("platform", src.Platform()))
			out, err := src.FetchAdMetrics(ctx, req.Window)
			done(err)
			if err != nil {
				return fmt.Errorf("fetch ad metrics from %s: %w", src.Platform(), err)
			}
			metrics[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return flatten(payouts), flatten(metrics), nil
}

// ExpectedRevenue sums each order's total, falling back to its subtotal.
func ExpectedRevenue(orders []finance.OrderContext) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range orders {
		sum = sum.Add(finance.OrderTotalOrFallback(o))
	}
	return sum
}

func flatten[T any](parts [][]T) []T {
	var out []T
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func sourceNames(req Request) []string {
	names := make([]string, 0, len(req.Payouts)+len(req.Ads))
	for _, s := range req.Payouts {
		names = append(names, "payouts:"+s.Platform())
	}
	for _, s := range req.Ads {
		names = append(names, "ads:"+s.Platform())
	}
	return names
}
