package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/alerting"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/archive"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/config"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/finance"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/observability"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/runner"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/store"
)

// runtime holds the long-lived collaborators built from Config.
type runtime struct {
	store     store.Store
	publisher alerting.Publisher
	archive   archive.Store
	telemetry *observability.Provider
	evaluator *finance.Evaluator
	runner    *runner.Runner

	closers []func() error
}

// cachedStore serves templates through Redis and flags from the backing store.
type cachedStore struct {
	*store.RedisTemplateCache
	store.FlagStore
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{evaluator: finance.NewEvaluator(logger)}
	ok := false
	defer func() {
		if !ok {
			_ = rt.Close()
		}
	}()

	telemetry, err := observability.New(ctx, &cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	rt.telemetry = telemetry
	rt.closers = append(rt.closers, func() error { return telemetry.Shutdown(context.Background()) })

	base, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.store = base
	if c, ok := base.(interface{ Close() error }); ok {
		rt.closers = append(rt.closers, c.Close)
	}

	var publishers alerting.Fanout
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rt.closers = append(rt.closers, client.Close)
		rt.store = cachedStore{
			RedisTemplateCache: store.NewRedisTemplateCache(client, base, cfg.TemplateTTL, logger),
			FlagStore:          base,
		}
		publishers = append(publishers, alerting.NewRedisPublisher(client, alerting.DefaultChannel))
	}
	if len(cfg.KafkaBrokers) > 0 {
		publishers = append(publishers, alerting.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic))
	}
	switch len(publishers) {
	case 0:
		rt.publisher = alerting.NopPublisher{}
	case 1:
		rt.publisher = publishers[0]
	default:
		rt.publisher = publishers
	}
	rt.closers = append(rt.closers, rt.publisher.Close)

	if rt.archive, err = archive.NewStore(ctx, cfg.Archive); err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}

	rt.runner = runner.New(runner.Config{
		Templates:        rt.store,
		Flags:            rt.store,
		Publisher:        rt.publisher,
		Archive:          rt.archive,
		Telemetry:        rt.telemetry,
		Evaluator:        rt.evaluator,
		AlertMinSeverity: reconcile.ParseSeverity(cfg.AlertMinSeverity),
		Logger:           logger,
	})
	ok = true
	return rt, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory, "":
		return store.NewMemoryStore(), nil
	case config.DriverPostgres, config.DriverPgx:
		open := store.OpenPostgres
		if cfg.StoreDriver == config.DriverPgx {
			open = store.OpenPgx
		}
		s, err := open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return s, nil
	case config.DriverSQLite:
		s, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
