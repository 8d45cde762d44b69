package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/verdant-ai/verdant/pkg/attemptlog"
	rediscache "github.com/verdant-ai/verdant/pkg/cache/redis"
	sqlitecache "github.com/verdant-ai/verdant/pkg/cache/sqlite"
	"github.com/verdant-ai/verdant/pkg/config"
	"github.com/verdant-ai/verdant/pkg/identify"
	"github.com/verdant-ai/verdant/pkg/ledger"
	ledgerstore "github.com/verdant-ai/verdant/pkg/ledger/sqlite"
	"github.com/verdant-ai/verdant/pkg/logger"
	"github.com/verdant-ai/verdant/pkg/models"
	"github.com/verdant-ai/verdant/pkg/orchestrator"
	"github.com/verdant-ai/verdant/pkg/provider"
)

// resultCache is what both cache backends offer.
type resultCache interface {
	orchestrator.ResultCache
	Stats(ctx context.Context) (models.CacheStats, error)
	Clear(ctx context.Context, expiredOnly bool) (int64, error)
	Close() error
}

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	cache    resultCache
	attempts *attemptlog.Log
	store    *ledgerstore.Store
	ledger   *ledger.Ledger
	client   *identify.Client
	closers  []func() error
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func openCache(ctx context.Context, cfg *config.Config) (resultCache, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		client, err := rediscache.Connect(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		return rediscache.New(client, cfg.Cache.TTL), nil
	default:
		c, err := sqlitecache.New(cfg.DBPath, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		return c, nil
	}
}

// openApp wires the full client from the config at configPath.
func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	var opts []orchestrator.Option
	if cfg.Cache.Enabled {
		if a.cache, err = openCache(ctx, cfg); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.cache.Close)
		opts = append(opts, orchestrator.WithCache(a.cache))
	}

	if cfg.Attempts.Enabled {
		if a.attempts, err = attemptlog.New(cfg.DBPath, cfg.Attempts.RetentionDays); err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, a.attempts.Close)
		opts = append(opts, orchestrator.WithAttemptRecorder(a.attempts))
	}

	if a.store, err = ledgerstore.New(cfg.DBPath); err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)
	a.ledger = ledger.New(a.store, cfg.Usage)

	orch := orchestrator.New(cfg, provider.NewClient(nil), opts...)
	a.client = identify.New(orch, a.ledger, cfg.Usage.CountFallback)
	return a, nil
}

// Close releases everything openApp opened, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
