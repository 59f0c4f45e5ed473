package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/config"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/finance"
)

// runEvaluateCmd implements `profitpulse evaluate`.
//
// Exit codes:
//
//	0 = evaluated
//	2 = usage or input error
func runEvaluateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		templatesPath string
		ordersPath    string
		jsonOutput    bool
	)
	cmd.StringVar(&templatesPath, "templates", "", "Path to cost templates JSON (REQUIRED)")
	cmd.StringVar(&ordersPath, "orders", "", "Path to orders JSON array (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output JSON")

	if err := cmd.Parse(args); err != nil {
		return exitError
	}
	if templatesPath == "" || ordersPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --templates and --orders are required")
		return exitError
	}

	templates, err := config.LoadTemplates(templatesPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	orders, err := readOrders(ordersPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	results, totals := finance.NewEvaluator(nil).EvaluateOrders(templates, orders)
	summary := totals.Summary()

	if jsonOutput {
		if err := printJSON(stdout, map[string]any{"orders": results, "totals": totals, "summary": summary}); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		return exitOK
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ORDER\tTYPE\tTEMPLATE\tAMOUNT")
	for _, o := range results {
		for _, c := range o.Costs {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.OrderID, c.Type, c.TemplateName, c.Amount.StringFixed(2))
		}
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(stdout, "\nShipping %s  Payment fees %s  Platform fees %s  Custom %s  Total %s\n",
		summary.ShippingCost.StringFixed(2), summary.PaymentFees.StringFixed(2),
		summary.PlatformFees.StringFixed(2), summary.CustomCosts.StringFixed(2), summary.Total.StringFixed(2))
	return exitOK
}
