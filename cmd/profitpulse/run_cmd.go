package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/config"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/connector"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/runner"
)

// runMerchantCmd implements `profitpulse run`: a full run driven by the
// merchant's profile, with persistence, alerts and archival.
//
// Exit codes:
//
//	0 = run completed
//	1 = flags raised with --fail-on-flags
//	2 = usage, configuration or connector error
func runMerchantCmd(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()

	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		merchantID  string
		ordersPath  string
		profilesDir string
		start, end  string
		jsonOutput  bool
		failOnFlags bool
	)
	cmd.StringVar(&merchantID, "merchant", "", "Merchant id (REQUIRED)")
	cmd.StringVar(&ordersPath, "orders", "", "Path to orders JSON array")
	cmd.StringVar(&profilesDir, "profiles", cfg.ProfilesDir, "Directory of merchant_<id>.yaml profiles")
	cmd.StringVar(&start, "start", "", "Window start (YYYY-MM-DD or RFC3339, inclusive)")
	cmd.StringVar(&end, "end", "", "Window end (YYYY-MM-DD or RFC3339, exclusive)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	cmd.BoolVar(&failOnFlags, "fail-on-flags", false, "Exit 1 when any flag is raised")
	if err := cmd.Parse(args); err != nil {
		return exitError
	}
	if merchantID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --merchant is required")
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
	orders, err := readOrders(ordersPath)
	if err != nil {
		return fail(err)
	}
	profile, err := config.LoadProfile(profilesDir, merchantID)
	if err != nil {
		return fail(err)
	}
	req, err := runner.RequestFromProfile(profile, window, orders, os.Getenv)
	if err != nil {
		return fail(err)
	}

	ctx := context.Background()
	logger := newLogger(cfg, stderr)
	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = rt.Close() }()

	report, err := rt.runner.Run(ctx, req)
	if err != nil {
		var cerr *connector.Error
		if errors.As(err, &cerr) {
			return fail(fmt.Errorf("connector %s failed: %w", cerr.Platform, err))
		}
		return fail(err)
	}

	if jsonOutput {
		if err := printJSON(stdout, report); err != nil {
			return fail(err)
		}
	} else {
		_, _ = fmt.Fprintf(stdout, "Run %s for %s\n", report.RunID, report.MerchantID)
		_, _ = fmt.Fprintf(stdout, "Variable costs %s across %d orders\n", report.Costs.Total.StringFixed(2), len(report.Orders))
		printResult(stdout, report.Reconciliation)
		if report.ArchiveRef != "" {
			_, _ = fmt.Fprintf(stdout, "Archived as %s\n", report.ArchiveRef)
		}
		for _, w := range report.Warnings {
			_, _ = fmt.Fprintf(stdout, "Warning: %s\n", w)
		}
	}

	if failOnFlags && report.Reconciliation.HasFlags() {
		return exitFlags
	}
	return exitOK
}
