package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Exit codes.
const (
	exitOK    = 0
	exitFlags = 1
	exitError = 2
)

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return exitError
	}

	switch args[1] {
	case "evaluate":
		return runEvaluateCmd(args[2:], stdout, stderr)
	case "reconcile":
		return runReconcileCmd(args[2:], stdout, stderr)
	case "describe":
		return runDescribeCmd(args[2:], stdout, stderr)
	case "run":
		return runMerchantCmd(args[2:], stdout, stderr)
	case "serve", "server":
		return runServeCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return exitOK
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return exitError
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, `profitpulse: variable costs and payout/ad reconciliation

USAGE:
  profitpulse <command> [flags]

COMMANDS:
  evaluate    Evaluate cost templates against orders (--templates, --orders)
  reconcile   Run reconciliation rules over exported records (--payouts, --ads, --orders)
  describe    Print the active rule thresholds as sentences (--rules, --lang)
  run         Run a merchant's configured reconciliation (--merchant, --orders)
  serve       Start the HTTP API
  help        Show this help

Exit codes: 0 ok, 1 flags raised (reconcile/run with --fail-on-flags), 2 error.
`)
}
