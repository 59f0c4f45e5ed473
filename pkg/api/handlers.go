package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/config"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/connector"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/finance"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/records"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/runner"
)

type evaluateRequest struct {
	MerchantID string                 `json:"merchant_id,omitempty"`
	Templates  json.RawMessage        `json:"templates,omitempty"`
	Orders     []finance.OrderContext `json:"orders"`
}

type evaluateResponse struct {
	Orders  []finance.OrderCosts `json:"orders"`
	Totals  finance.CostTotals   `json:"totals"`
	Summary finance.CostSummary  `json:"summary"`
}

type reconcileRequest struct {
	Window          records.Window          `json:"window"`
	Payouts         []map[string]any        `json:"payouts"`
	AdMetrics       []map[string]any        `json:"ad_metrics"`
	Orders          []finance.OrderContext  `json:"orders,omitempty"`
	ExpectedRevenue *decimal.Decimal        `json:"expected_revenue,omitempty"`
	OrderCount      *int64                  `json:"order_count,omitempty"`
	GroupBy         string                  `json:"group_by,omitempty"`
	Rules           reconcile.RuleOverrides `json:"rules"`
}

type reconcileResponse struct {
	Result reconcile.Result           `json:"result"`
	Counts map[reconcile.Severity]int `json:"counts"`
	Rules  reconcile.RuleConfig       `json:"rules"`
}

type runRequest struct {
	Window records.Window         `json:"window"`
	Orders []finance.OrderContext `json:"orders"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "health check failed", "error", err)
			WriteErrorR(w, r, http.StatusServiceUnavailable, "Service Unavailable", "store is unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvaluateCosts(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !s.decode(w, r, &req) {
		return
	}

	var templates []finance.CostTemplate
	switch {
	case len(req.Templates) > 0 && string(req.Templates) != "null":
		parsed, err := config.ParseTemplates(req.Templates)
		if err != nil {
			WriteUnprocessable(w, r, err.Error())
			return
		}
		templates = parsed
	case req.MerchantID != "":
		stored, err := s.store.ListTemplates(r.Context(), req.MerchantID)
		if err != nil {
			WriteInternal(w, r, s.logger, err)
			return
		}
		templates = stored
	default:
		WriteBadRequest(w, r, "templates or merchant_id is required")
		return
	}

	orders, totals := s.evaluator.EvaluateOrders(templates, req.Orders)
	writeJSON(w, http.StatusOK, evaluateResponse{Orders: orders, Totals: totals, Summary: totals.Summary()})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if !s.decode(w, r, &req) {
		return
	}
	rules, err := s.rules.ApplyValidated(req.Rules)
	if err != nil {
		WriteUnprocessable(w, r, err.Error())
		return
	}

	expected := runner.ExpectedRevenue(req.Orders)
	if req.ExpectedRevenue != nil {
		expected = *req.ExpectedRevenue
	}
	count := int64(len(req.Orders))
	if req.OrderCount != nil {
		count = *req.OrderCount
	}

	in := reconcile.WindowInput{
		Window:          req.Window,
		ExpectedRevenue: expected,
		OrderCount:      count,
		GroupBy:         records.ParseGroupBy(req.GroupBy),
		SkipPayments:    req.Payouts == nil,
		SkipAds:         req.AdMetrics == nil,
	}
	for _, raw := range req.Payouts {
		in.Payouts = append(in.Payouts, records.NormalizePayout(raw))
	}
	for _, raw := range req.AdMetrics {
		in.AdMetrics = append(in.AdMetrics, records.NormalizeAdMetric(raw))
	}

	res := reconcile.NewEngine(rules).Evaluate(in)
	writeJSON(w, http.StatusOK, reconcileResponse{
		Result: res,
		Counts: reconcile.CountBySeverity(res.Flags),
		Rules:  rules,
	})
}

func (s *Server) handleDescribeRules(w http.ResponseWriter, r *http.Request) {
	rules := s.rules
	if id := r.URL.Query().Get("merchant_id"); id != "" {
		p, ok := s.loadProfile(w, r, id)
		if !ok {
			return
		}
		var err error
		if rules, err = p.RuleConfig(); err != nil {
			WriteUnprocessable(w, r, err.Error())
			return
		}
	}

	tag := language.English
	if lang := r.URL.Query().Get("lang"); lang != "" {
		parsed, err := language.Parse(lang)
		if err != nil {
			WriteBadRequest(w, r, fmt.Sprintf("invalid lang %q", lang))
			return
		}
		tag = parsed
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rules":       rules,
		"description": reconcile.DescribeIn(tag, rules),
	})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")
	var body runRequest
	if !s.decode(w, r, &body) {
		return
	}
	p, ok := s.loadProfile(w, r, merchantID)
	if !ok {
		return
	}
	req, err := runner.RequestFromProfile(p, body.Window, body.Orders, s.getenv)
	if err != nil {
		WriteUnprocessable(w, r, err.Error())
		return
	}

	report, err := s.runner.Run(r.Context(), req)
	var cerr *connector.Error
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, report)
	case errors.As(err, &cerr):
		WriteBadGateway(w, r, err.Error())
	case errors.Is(err, reconcile.ErrNegativeThreshold), errors.Is(err, reconcile.ErrNonFiniteThreshold):
		WriteUnprocessable(w, r, err.Error())
	default:
		WriteInternal(w, r, s.logger, err)
	}
}

func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")
	if !config.ValidMerchantID(merchantID) {
		WriteBadRequest(w, r, "invalid merchant id")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteBadRequest(w, r, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	flags, err := s.store.ListFlags(r.Context(), merchantID, limit)
	if err != nil {
		WriteInternal(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flags": flags})
}

func (s *Server) handleGetTemplates(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")
	if !config.ValidMerchantID(merchantID) {
		WriteBadRequest(w, r, "invalid merchant id")
		return
	}
	templates, err := s.store.ListTemplates(r.Context(), merchantID)
	if err != nil {
		WriteInternal(w, r, s.logger, err)
		return
	}
	if templates == nil {
		templates = []finance.CostTemplate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (s *Server) handlePutTemplates(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "merchantID")
	if !config.ValidMerchantID(merchantID) {
		WriteBadRequest(w, r, "invalid merchant id")
		return
	}
	var raw json.RawMessage
	if !s.decode(w, r, &raw) {
		return
	}
	templates, err := config.ParseTemplates(raw)
	if err != nil {
		WriteUnprocessable(w, r, err.Error())
		return
	}
	if err := s.store.PutTemplates(r.Context(), merchantID, templates); err != nil {
		WriteInternal(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadProfile(w http.ResponseWriter, r *http.Request, merchantID string) (*config.MerchantProfile, bool) {
	p, err := config.LoadProfile(s.profilesDir, merchantID)
	switch {
	case err == nil:
		return p, true
	case errors.Is(err, config.ErrInvalidMerchantID):
		WriteBadRequest(w, r, err.Error())
	case errors.Is(err, os.ErrNotExist):
		WriteNotFound(w, r, fmt.Sprintf("no profile for merchant %q", merchantID))
	default:
		WriteUnprocessable(w, r, err.Error())
	}
	return nil, false
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteBadRequest(w, r, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
