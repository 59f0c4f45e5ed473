package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/finance"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/runner"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/store"
)

const maxBodyBytes = 4 << 20

// Config wires a Server.
type Config struct {
	Store       store.Store
	Runner      *runner.Runner
	Evaluator   *finance.Evaluator
	Rules       *reconcile.RuleConfig
	ProfilesDir string
	// Getenv resolves connector token variables; nil means os.Getenv.
	Getenv func(string) string
	// RequestsPerSecond per client IP; 0 disables rate limiting.
	RequestsPerSecond float64
	Burst             int
	// AllowedOrigins enables CORS for browser dashboards when non-empty.
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	store       store.Store
	runner      *runner.Runner
	evaluator   *finance.Evaluator
	rules       reconcile.RuleConfig
	profilesDir string
	getenv      func(string) string
	limiter     *RateLimiter
	origins     []string
	logger      *slog.Logger
}

func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:       cfg.Store,
		runner:      cfg.Runner,
		evaluator:   cfg.Evaluator,
		rules:       reconcile.DefaultRuleConfig(),
		profilesDir: cfg.ProfilesDir,
		getenv:      cfg.Getenv,
		origins:     cfg.AllowedOrigins,
		logger:      logger.With("component", "api"),
	}
	if s.store == nil {
		s.store = store.NewMemoryStore()
	}
	if s.evaluator == nil {
		s.evaluator = finance.NewEvaluator(logger)
	}
	if s.runner == nil {
		s.runner = runner.New(runner.Config{Templates: s.store, Flags: s.store, Evaluator: s.evaluator, Logger: logger})
	}
	if cfg.Rules != nil {
		s.rules = *cfg.Rules
	}
	if s.getenv == nil {
		s.getenv = os.Getenv
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, r, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteErrorR(w, r, http.StatusMethodNotAllowed, "Method Not Allowed", "The HTTP method is not supported for this endpoint")
	})

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/costs/evaluate", s.handleEvaluateCosts)
		r.Post("/reconcile", s.handleReconcile)
		r.Get("/rules/description", s.handleDescribeRules)
		r.Route("/merchants/{merchantID}", func(r chi.Router) {
			r.Post("/runs", s.handleCreateRun)
			r.Get("/flags", s.handleListFlags)
			r.Get("/templates", s.handleGetTemplates)
			r.Put("/templates", s.handlePutTemplates)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
