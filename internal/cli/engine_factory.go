package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/aretw0/sieve"
	"github.com/aretw0/sieve/internal/config"
	"github.com/aretw0/sieve/pkg/adapters/file"
	"github.com/aretw0/sieve/pkg/adapters/llm"
	"github.com/aretw0/sieve/pkg/adapters/memory"
	"github.com/aretw0/sieve/pkg/adapters/redis"
	"github.com/aretw0/sieve/pkg/observability"
	"github.com/aretw0/sieve/pkg/persistence/middleware"
	"github.com/aretw0/sieve/pkg/ports"
)

// Runtime is everything a command needs to drive sessions.
type Runtime struct {
	Engine  *sieve.Engine
	Metrics *observability.Metrics
	Config  config.Config
	Logger  *slog.Logger

	closers []func() error
}

// Close releases store connections.
func (r *Runtime) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// createEngine initializes a sieve engine with standard CLI conventions.
// Extra options are applied last, so callers can replace collaborators.
func createEngine(cfg config.Config, logger *slog.Logger, debug bool, extra ...sieve.Option) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	store, locker, err := rt.createStore(cfg)
	if err != nil {
		return nil, err
	}

	model := llm.New(llm.Config{
		Endpoint:   cfg.LLM.Endpoint,
		APIKey:     cfg.LLM.APIKey,
		JSONMode:   cfg.LLM.JSONMode,
		HTTPClient: &http.Client{Timeout: cfg.LLM.Timeout},
	}, llm.WithLogger(logger))

	engineOpts := []sieve.Option{
		sieve.WithLanguageModel(model),
		sieve.WithStore(store),
		sieve.WithLogger(logger),
		sieve.WithLifecycleHooks(rt.Metrics.Hooks()),
		sieve.WithMaxIterations(cfg.MaxIterations),
		sieve.WithMaxAnalysisRounds(cfg.MaxRounds),
		sieve.WithLockTTL(cfg.Store.LockTTL),
		sieve.WithStaleAfter(cfg.Store.StaleAfter),
	}
	if locker != nil {
		engineOpts = append(engineOpts, sieve.WithLocker(locker))
	}
	if debug {
		engineOpts = append(engineOpts, sieve.WithLifecycleHooks(observability.LoggingHooks(logger)))
	}
	engineOpts = append(engineOpts, extra...)

	engine, err := sieve.New(engineOpts...)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	rt.Engine = engine
	return rt, nil
}

// createStore picks the backend and wraps it with the privacy middleware.
func (rt *Runtime) createStore(cfg config.Config) (ports.StateStore, ports.DistributedLocker, error) {
	var (
		store  ports.StateStore
		locker ports.DistributedLocker
	)

	switch cfg.Store.Backend {
	case config.StoreMemory:
		store = memory.NewStore()
	case config.StoreRedis:
		opts := []redis.Option{redis.WithTTL(cfg.Store.TTL)}
		rs, err := redis.New(cfg.Store.RedisURL, opts...)
		if err != nil {
			return nil, nil, err
		}
		rt.closers = append(rt.closers, rs.Close)
		store = rs
		locker = redis.NewLocker(rs.Client(), rs.Prefix())
	default:
		path := cfg.Store.Path
		if path == "" {
			path = filepath.Join(cfg.Dir, ".sieve", "sessions")
		}
		store = file.New(path)
	}

	var mws []middleware.Middleware
	if cfg.Privacy.MaskPII {
		mws = append(mws, middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns))
	}
	if cfg.Privacy.EncryptionKey != "" {
		enc, err := encryptionConfig(cfg.Privacy)
		if err != nil {
			_ = rt.Close()
			return nil, nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}
	return middleware.Chain(store, mws...), locker, nil
}

func encryptionConfig(p config.Privacy) (middleware.EncryptionConfig, error) {
	active, err := middleware.ParseKey(p.EncryptionKey)
	if err != nil {
		return middleware.EncryptionConfig{}, fmt.Errorf("privacy.encryption_key: %w", err)
	}
	cfg := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range p.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return middleware.EncryptionConfig{}, fmt.Errorf("privacy.fallback_keys[%d]: %w", i, err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	return cfg, nil
}
