package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/api"
)

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"profitpulse"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

// isolateEnv keeps commands away from external services and the working tree.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"REDIS_ADDR", "KAFKA_BROKERS", "OTEL_ENABLED", "LOG_FORMAT"} {
		t.Setenv(k, "")
	}
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("ARCHIVE_STORAGE_TYPE", "fs")
	t.Setenv("ARCHIVE_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "ERROR")
}

const (
	templatesJSON = `[{"type": "PAYMENT_FEE", "name": "Stripe", "lines": [{"percentageRate": 0.03}]}]`
	ordersJSON    = `[{"order_id": "1", "order_total": 100}, {"order_id": "2", "subtotal": 50}]`
	payoutsJSON   = `[{"id": "po_1", "status": "paid", "net": "90"}]`
	adsJSON       = `[{"account_id": "act_1", "campaign_id": "c1", "spend": "300", "conversions": 0}]`
)

func TestRun_Usage(t *testing.T) {
	code, _, stderr := run(t)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "USAGE")

	code, stdout, _ := run(t, "help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "reconcile")

	code, _, stderr = run(t, "frobnicate")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")
}

func TestEvaluateCmd(t *testing.T) {
	dir := writeFiles(t, map[string]string{"templates.json": templatesJSON, "orders.json": ordersJSON})

	code, stdout, stderr := run(t, "evaluate",
		"--templates", filepath.Join(dir, "templates.json"),
		"--orders", filepath.Join(dir, "orders.json"))
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Payment fees 4.50")
	assert.Contains(t, stdout, "Total 4.50")

	code, stdout, _ = run(t, "evaluate", "--json",
		"--templates", filepath.Join(dir, "templates.json"),
		"--orders", filepath.Join(dir, "orders.json"))
	require.Equal(t, exitOK, code)
	var body struct {
		Summary map[string]string `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &body))
	assert.Equal(t, "4.5", body.Summary["payment_fees"])

	code, _, stderr = run(t, "evaluate", "--templates", filepath.Join(dir, "templates.json"))
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "required")
}

func TestReconcileCmd(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"orders.json":  ordersJSON,
		"payouts.json": payoutsJSON,
		"ads.json":     adsJSON,
		"loose.yaml":   "payment:\n  amount_delta: 1000\n  percent_delta: 1\nads:\n  min_spend_without_conversions: 1000\n",
	})
	path := func(name string) string { return filepath.Join(dir, name) }

	code, stdout, stderr := run(t, "reconcile", "--payouts", path("payouts.json"), "--ads", path("ads.json"), "--orders", path("orders.json"))
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "payment.payout_variance")
	assert.Contains(t, stdout, "ads.spend_without_conversions")

	code, _, _ = run(t, "reconcile", "--fail-on-flags", "--payouts", path("payouts.json"), "--orders", path("orders.json"))
	assert.Equal(t, exitFlags, code)

	code, stdout, _ = run(t, "reconcile", "--fail-on-flags", "--rules", path("loose.yaml"),
		"--payouts", path("payouts.json"), "--ads", path("ads.json"), "--orders", path("orders.json"))
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "No discrepancies.")

	code, stdout, _ = run(t, "reconcile", "--json", "--payouts", path("payouts.json"), "--expected-revenue", "90.00")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, `"flags": []`)

	code, _, stderr = run(t, "reconcile", "--orders", path("orders.json"))
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "--payouts or --ads")

	code, _, _ = run(t, "reconcile", "--payouts", path("payouts.json"), "--start", "2026-10-01", "--end", "2026-09-01")
	assert.Equal(t, exitError, code)
}

func TestDescribeCmd(t *testing.T) {
	code, stdout, _ := run(t, "describe")
	require.Equal(t, exitOK, code)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Payouts are flagged"))
	assert.Contains(t, lines[1], "1.5x")

	code, _, _ = run(t, "describe", "--lang", "!!")
	assert.Equal(t, exitError, code)
}

func TestMerchantRunCmd(t *testing.T) {
	isolateEnv(t)
	dir := writeFiles(t, map[string]string{
		"merchant_acme.yaml": "merchant_id: acme\ntemplates_file: templates.json\nconnectors:\n  - kind: payouts\n    platform: stripe\n    file: payouts.json\n",
		"templates.json":     templatesJSON,
		"payouts.json":       payoutsJSON,
		"orders.json":        ordersJSON,
	})

	code, stdout, stderr := run(t, "run", "--merchant", "acme", "--profiles", dir, "--orders", filepath.Join(dir, "orders.json"))
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Variable costs 4.50 across 2 orders")
	assert.Contains(t, stdout, "payment.payout_variance")
	assert.Contains(t, stdout, "Archived as sha256:")

	code, _, _ = run(t, "run", "--merchant", "acme", "--profiles", dir, "--orders", filepath.Join(dir, "orders.json"), "--fail-on-flags")
	assert.Equal(t, exitFlags, code)

	code, _, stderr = run(t, "run", "--merchant", "globex", "--profiles", dir)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "globex")

	code, _, _ = run(t, "run")
	assert.Equal(t, exitError, code)
}

func TestServeCmd(t *testing.T) {
	isolateEnv(t)
	var gotAddr string
	orig := serve
	serve = func(_ context.Context, srv *api.Server, addr string) error {
		gotAddr = addr
		require.NotNil(t, srv.Handler())
		return nil
	}
	t.Cleanup(func() { serve = orig })

	code, stdout, stderr := run(t, "serve", "--port", "9123")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, ":9123", gotAddr)
	assert.Contains(t, stdout, "stopped")

	t.Setenv("STORE_DRIVER", "mongodb")
	code, _, stderr = run(t, "serve")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "STORE_DRIVER")
}

func TestMerchantRunCmd_Demo(t *testing.T) {
	isolateEnv(t)
	demo := filepath.Join("..", "..", "examples", "demo")

	code, stdout, stderr := run(t, "run", "--json", "--merchant", "demo", "--profiles", demo,
		"--orders", filepath.Join(demo, "orders.json"), "--start", "2026-09-01", "--end", "2026-10-01")
	require.Equal(t, exitOK, code, stderr)

	var report struct {
		Sources        []string `json:"sources"`
		Reconciliation struct {
			ObservedPayoutTotal string `json:"observed_payout_total"`
			Flags               []struct {
				RuleID   string `json:"rule_id"`
				Severity string `json:"severity"`
				Scope    string `json:"scope"`
			} `json:"flags"`
		} `json:"reconciliation"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, []string{"payouts:stripe", "ads:meta"}, report.Sources)
	assert.Equal(t, "290.88", report.Reconciliation.ObservedPayoutTotal)

	flags := report.Reconciliation.Flags
	require.Len(t, flags, 3)
	assert.Equal(t, "payment.payout_variance", flags[0].RuleID)
	assert.Equal(t, "critical", flags[0].Severity)
	assert.Equal(t, "ads.spend_without_conversions", flags[1].RuleID)
	assert.Equal(t, "campaign:act_1/c_brand", flags[1].Scope)
	assert.Equal(t, "ads.conversion_inflation", flags[2].RuleID)
	assert.Equal(t, "warning", flags[2].Severity)
}
