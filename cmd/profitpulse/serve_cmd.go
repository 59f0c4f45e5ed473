package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/api"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/config"
)

// serve blocks until the server stops; tests replace it.
var serve = func(ctx context.Context, srv *api.Server, addr string) error {
	return srv.ListenAndServe(ctx, addr)
}

func runServeCmd(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()

	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		port string
		rps  float64
	)
	cmd.StringVar(&port, "port", cfg.Port, "Listen port")
	cmd.Float64Var(&rps, "rate-limit", 20, "Requests per second per client IP (0 disables)")
	if err := cmd.Parse(args); err != nil {
		return exitError
	}

	logger := newLogger(cfg, stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer func() { _ = rt.Close() }()

	srv := api.NewServer(api.Config{
		Store:             rt.store,
		Runner:            rt.runner,
		Evaluator:         rt.evaluator,
		ProfilesDir:       cfg.ProfilesDir,
		RequestsPerSecond: rps,
		Burst:             int(rps * 2),
		AllowedOrigins:    cfg.CORSOrigins,
		Logger:            logger,
	})
	logger.Info("starting profitpulse", "port", port, "store", cfg.StoreDriver, "archive", cfg.Archive.Backend)
	if err := serve(ctx, srv, ":"+port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	_, _ = fmt.Fprintln(stdout, "profitpulse stopped")
	return exitOK
}
