package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/api"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/store"
)

func newTestServer(t *testing.T, cfg api.Config) http.Handler {
	t.Helper()
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}
	return api.NewServer(cfg).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) api.ProblemDetail {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p api.ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}

func TestWriteInternal_SanitizesError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/x", nil)
	api.WriteInternal(rec, req, nil, errors.New("pq: connection refused to host=10.0.0.1"))

	p := decodeProblem(t, rec)
	assert.Equal(t, http.StatusInternalServerError, p.Status)
	assert.NotContains(t, p.Detail, "10.0.0.1")
	assert.Equal(t, "/v1/x", p.Instance)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, api.Config{})
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(t, api.Config{})
	rec := do(t, h, http.MethodGet, "/v1/nope", "")
	p := decodeProblem(t, rec)
	assert.Equal(t, http.StatusNotFound, p.Status)
	assert.NotEmpty(t, p.TraceID)
}

func TestEvaluateCosts(t *testing.T) {
	h := newTestServer(t, api.Config{})
	rec := do(t, h, http.MethodPost, "/v1/costs/evaluate", `{
		"templates": [
			{"type": "PAYMENT_FEE", "name": "Stripe", "lines": [{"percentageRate": 0.029, "flatAmount": 0.3}], "config": {"gateway": "stripe"}},
			{"type": "SHIPPING", "name": "Carrier", "lines": [{"applies_to": "SHIPPING_REVENUE", "percentage_rate": 1}]}
		],
		"orders": [
			{"order_id": "1", "order_total": 100, "shipping_revenue": 8, "payment_gateway": "stripe"},
			{"order_id": "2", "orderTotal": "50", "paymentGateway": "paypal"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Orders []struct {
			OrderID string `json:"order_id"`
			Costs   []struct {
				Type   string `json:"type"`
				Amount string `json:"amount"`
			} `json:"costs"`
		} `json:"orders"`
		Summary map[string]string `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Orders, 2)
	require.Len(t, body.Orders[0].Costs, 2)
	assert.Empty(t, body.Orders[1].Costs)
	assert.Equal(t, "3.2", body.Summary["payment_fees"])
	assert.Equal(t, "8", body.Summary["shipping_cost"])
	assert.Equal(t, "11.2", body.Summary["total"])
}

func TestEvaluateCosts_Errors(t *testing.T) {
	h := newTestServer(t, api.Config{})

	rec := do(t, h, http.MethodPost, "/v1/costs/evaluate", `{"orders": []}`)
	assert.Equal(t, http.StatusBadRequest, decodeProblem(t, rec).Status)

	rec = do(t, h, http.MethodPost, "/v1/costs/evaluate", `{"templates": [{"name": "no type"}], "orders": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, decodeProblem(t, rec).Status)

	rec = do(t, h, http.MethodPost, "/v1/costs/evaluate", `{not json`)
	assert.Equal(t, http.StatusBadRequest, decodeProblem(t, rec).Status)
}

func TestTemplatesRoundTrip(t *testing.T) {
	h := newTestServer(t, api.Config{})

	rec := do(t, h, http.MethodPut, "/v1/merchants/acme/templates",
		`[{"type": "CUSTOM", "name": "Packaging", "lines": [{"flatAmount": 1.5}]}]`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/merchants/acme/templates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Packaging"`)

	rec = do(t, h, http.MethodPost, "/v1/costs/evaluate", `{"merchant_id": "acme", "orders": [{"order_total": 10}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"custom_costs":"1.5"`)

	rec = do(t, h, http.MethodPut, "/v1/merchants/acme/templates", `{"type": "CUSTOM"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, decodeProblem(t, rec).Status)
}

func TestReconcile(t *testing.T) {
	h := newTestServer(t, api.Config{})
	rec := do(t, h, http.MethodPost, "/v1/reconcile", `{
		"window": {"start": "2026-09-01T00:00:00Z", "end": "2026-10-01T00:00:00Z"},
		"payouts": [
			{"id": "po_1", "status": "paid", "net": "90", "arrival_date": "2026-09-03T00:00:00Z"},
			{"id": "po_2", "status": "paid", "net": "500", "arrival_date": "2026-10-03T00:00:00Z"}
		],
		"expected_revenue": 150,
		"order_count": 2
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Result struct {
			ObservedPayoutTotal string                      `json:"observed_payout_total"`
			Flags               []reconcile.DiscrepancyFlag `json:"flags"`
		} `json:"result"`
		Counts map[string]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "90", body.Result.ObservedPayoutTotal)
	require.Len(t, body.Result.Flags, 1)
	assert.Equal(t, reconcile.RulePaymentVariance, body.Result.Flags[0].RuleID)
	assert.Equal(t, 1, body.Counts["critical"])
}

func TestReconcile_RuleOverrides(t *testing.T) {
	h := newTestServer(t, api.Config{})

	rec := do(t, h, http.MethodPost, "/v1/reconcile", `{
		"payouts": [{"net": 140}],
		"expected_revenue": 150,
		"rules": {"payment": {"amount_delta": 5, "percent_delta": 0.5}}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rule_id":"payment.payout_variance"`)

	rec = do(t, h, http.MethodPost, "/v1/reconcile", `{"rules": {"ads": {"conversion_multiple": -1}}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, decodeProblem(t, rec).Status)
}

func TestDescribeRules(t *testing.T) {
	h := newTestServer(t, api.Config{})
	rec := do(t, h, http.MethodGet, "/v1/rules/description", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Description []string `json:"description"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Description, 2)
	assert.Contains(t, body.Description[0], "by more than 50 ")
	assert.Contains(t, body.Description[1], "at least 5 orders")

	rec = do(t, h, http.MethodGet, "/v1/rules/description?lang=!!", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func writeProfile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"merchant_acme.yaml": `
merchant_id: acme
rules:
  payment:
    amount_delta: 20
connectors:
  - kind: payouts
    platform: stripe
    file: payouts.json
`,
		"payouts.json": `[{"id": "po_1", "status": "paid", "net": "90"}]`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func TestCreateRunAndListFlags(t *testing.T) {
	h := newTestServer(t, api.Config{ProfilesDir: writeProfile(t)})

	rec := do(t, h, http.MethodPost, "/v1/merchants/acme/runs", `{
		"orders": [{"order_id": "1", "order_total": 100}, {"order_id": "2", "order_total": 12}]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var report struct {
		RunID          string `json:"run_id"`
		Reconciliation struct {
			Flags []reconcile.DiscrepancyFlag `json:"flags"`
		} `json:"reconciliation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Reconciliation.Flags, 1)
	assert.Equal(t, reconcile.SeverityWarning, report.Reconciliation.Flags[0].Severity)

	rec = do(t, h, http.MethodGet, "/v1/merchants/acme/flags?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var flags struct {
		Flags []store.FlagRecord `json:"flags"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flags))
	require.Len(t, flags.Flags, 1)
	assert.Equal(t, report.RunID, flags.Flags[0].RunID)

	rec = do(t, h, http.MethodGet, "/v1/merchants/acme/flags?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRun_ProfileErrors(t *testing.T) {
	h := newTestServer(t, api.Config{ProfilesDir: writeProfile(t)})

	rec := do(t, h, http.MethodPost, "/v1/merchants/globex/runs", `{"orders": []}`)
	assert.Equal(t, http.StatusNotFound, decodeProblem(t, rec).Status)

	rec = do(t, h, http.MethodPost, "/v1/merchants/bad.id/runs", `{"orders": []}`)
	assert.Equal(t, http.StatusBadRequest, decodeProblem(t, rec).Status)
}

func TestProfile_NonFiniteThreshold(t *testing.T) {
	dir := writeProfile(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "merchant_nan.yaml"),
		[]byte("merchant_id: nan\nrules:\n  payment:\n    amount_delta: .nan\n"), 0o600))
	h := newTestServer(t, api.Config{ProfilesDir: dir})

	rec := do(t, h, http.MethodGet, "/v1/rules/description?merchant_id=nan", "")
	assert.Equal(t, http.StatusUnprocessableEntity, decodeProblem(t, rec).Status)

	rec = do(t, h, http.MethodPost, "/v1/merchants/nan/runs", `{"orders": []}`)
	problem := decodeProblem(t, rec)
	assert.Equal(t, http.StatusUnprocessableEntity, problem.Status)
	assert.Contains(t, problem.Detail, "finite")
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, api.Config{RequestsPerSecond: 0.001, Burst: 1})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, api.Config{AllowedOrigins: []string{"https://dash.example"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
