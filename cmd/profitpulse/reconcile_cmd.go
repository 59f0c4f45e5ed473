package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/connector"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/records"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/runner"
)

// runReconcileCmd implements `profitpulse reconcile` over exported files.
//
// Exit codes:
//
//	0 = no flags, or flags without --fail-on-flags
//	1 = flags raised with --fail-on-flags
//	2 = usage or input error
func runReconcileCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		payoutsPath     string
		adsPath         string
		ordersPath      string
		rulesPath       string
		expectedRevenue string
		orderCount      int64
		groupBy         string
		start, end      string
		jsonOutput      bool
		failOnFlags     bool
	)
	cmd.StringVar(&payoutsPath, "payouts", "", "Path to raw payouts JSON")
	cmd.StringVar(&adsPath, "ads", "", "Path to raw ad metrics JSON")
	cmd.StringVar(&ordersPath, "orders", "", "Path to orders JSON; derives expected revenue and order count")
	cmd.StringVar(&rulesPath, "rules", "", "Path to rule overrides (YAML or JSON)")
	cmd.StringVar(&expectedRevenue, "expected-revenue", "", "Expected revenue total (overrides --orders)")
	cmd.Int64Var(&orderCount, "order-count", -1, "Store order count (overrides --orders)")
	cmd.StringVar(&groupBy, "group-by", "store", "Ad grouping: store, account or campaign")
	cmd.StringVar(&start, "start", "", "Window start (YYYY-MM-DD or RFC3339, inclusive)")
	cmd.StringVar(&end, "end", "", "Window end (YYYY-MM-DD or RFC3339, exclusive)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output JSON")
	cmd.BoolVar(&failOnFlags, "fail-on-flags", false, "Exit 1 when any flag is raised")

	if err := cmd.Parse(args); err != nil {
		return exitError
	}
	if payoutsPath == "" && adsPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: at least one of --payouts or --ads is required")
		return exitError
	}

	fail := func(err error) int {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	window, err := parseWindow(start, end)
	if err != nil {
		return fail(err)
	}
	rules, err := readRules(rulesPath)
	if err != nil {
		return fail(err)
	}
	orders, err := readOrders(ordersPath)
	if err != nil {
		return fail(err)
	}

	in := reconcile.WindowInput{
		Window:          window,
		ExpectedRevenue: runner.ExpectedRevenue(orders),
		OrderCount:      int64(len(orders)),
		GroupBy:         records.ParseGroupBy(groupBy),
		SkipPayments:    payoutsPath == "",
		SkipAds:         adsPath == "",
	}
	if expectedRevenue != "" {
		if in.ExpectedRevenue, err = decimal.NewFromString(expectedRevenue); err != nil {
			return fail(fmt.Errorf("--expected-revenue: %w", err))
		}
	}
	if orderCount >= 0 {
		in.OrderCount = orderCount
	}

	ctx := context.Background()
	if payoutsPath != "" {
		src, err := connector.LoadPayoutsFile("file", payoutsPath)
		if err != nil {
			return fail(err)
		}
		if in.Payouts, err = src.FetchPayouts(ctx, records.Window{}); err != nil {
			return fail(err)
		}
	}
	if adsPath != "" {
		src, err := connector.LoadAdMetricsFile("file", adsPath)
		if err != nil {
			return fail(err)
		}
		if in.AdMetrics, err = src.FetchAdMetrics(ctx, records.Window{}); err != nil {
			return fail(err)
		}
	}

	res := reconcile.NewEngine(rules).Evaluate(in)
	if jsonOutput {
		if err := printJSON(stdout, res); err != nil {
			return fail(err)
		}
	} else {
		printResult(stdout, res)
	}

	if failOnFlags && res.HasFlags() {
		return exitFlags
	}
	return exitOK
}

func printResult(w io.Writer, res reconcile.Result) {
	_, _ = fmt.Fprintf(w, "Observed payouts %s  Expected revenue %s  Orders %d\n",
		res.ObservedPayoutTotal.StringFixed(2), res.ExpectedRevenueTotal.StringFixed(2), res.OrderCount)
	if !res.HasFlags() {
		_, _ = fmt.Fprintln(w, "No discrepancies.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SEVERITY\tRULE\tSCOPE\tMESSAGE")
	for _, f := range res.Flags {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Severity, f.RuleID, f.Scope, f.Message)
	}
	_ = tw.Flush()
}
