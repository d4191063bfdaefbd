package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/changes"
	"github.com/sells-group/competitor-intel/internal/directory"
	"github.com/sells-group/competitor-intel/internal/intel"
	"github.com/sells-group/competitor-intel/internal/provider"
	"github.com/sells-group/competitor-intel/internal/refresh"
	"github.com/sells-group/competitor-intel/internal/resilience"
	"github.com/sells-group/competitor-intel/internal/store"
	"github.com/sells-group/competitor-intel/internal/synthesis"
	anthropicpkg "github.com/sells-group/competitor-intel/pkg/anthropic"
	"github.com/sells-group/competitor-intel/pkg/reader"
	"github.com/sells-group/competitor-intel/pkg/research"
)

// appEnv holds the initialized store and service for the serve/sweep
// commands.
type appEnv struct {
	Store   store.Store
	Service *intel.Service
}

// Close releases resources held by the environment.
func (ae *appEnv) Close() {
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

// initApp validates configuration, opens the store, wires scan providers
// into the refresh coordinator, and builds the intel service. Callers should
// defer env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	readerOpts := []reader.Option{
		reader.WithBaseURL(cfg.Reader.BaseURL),
		reader.WithRateLimit(cfg.Reader.RatePerSec, cfg.Reader.RateBurst),
	}
	if cfg.Reader.SearchBaseURL != "" {
		readerOpts = append(readerOpts, reader.WithSearchBaseURL(cfg.Reader.SearchBaseURL))
	}
	readerClient := reader.NewClient(cfg.Reader.Key, readerOpts...)
	researchClient := research.NewClient(cfg.Research.Key,
		research.WithBaseURL(cfg.Research.BaseURL),
		research.WithModel(cfg.Research.Model))

	registry := provider.NewRegistry()
	registry.Register(provider.NewWebsiteProvider(readerClient))
	registry.Register(provider.NewReviewsProvider(readerClient))
	registry.Register(provider.NewResearchProvider(researchClient))

	policy := refresh.DefaultPolicy()
	if cfg.Refresh.PolicyPath != "" {
		policy, err = refresh.LoadPolicy(cfg.Refresh.PolicyPath)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	synthOpts := []synthesis.Option{}
	if cfg.Anthropic.Enabled {
		writer := synthesis.NewModelAngleWriter(
			anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.AngleModel)
		synthOpts = append(synthOpts, synthesis.WithAngleWriter(writer))
		zap.L().Info("model angle writer enabled", zap.String("model", cfg.Anthropic.AngleModel))
	}

	fetchTimeout := time.Duration(cfg.Refresh.FetchTimeoutSecs) * time.Second
	coordinator := refresh.NewCoordinator(st, registry, policy,
		refresh.WithRetryConfig(resilience.FromRetryConfig(
			cfg.Refresh.RetryMaxAttempts, cfg.Refresh.RetryInitialBackoffMs, 0, 0, -1)),
		refresh.WithBreakerConfig(resilience.FromCircuitConfig(
			cfg.Refresh.BreakerThreshold, cfg.Refresh.BreakerResetSecs)),
		refresh.WithFetchTimeout(fetchTimeout))

	svc := intel.NewService(
		st,
		directory.NewResolver(st),
		coordinator,
		synthesis.NewSynthesizer(st, synthesis.Config{
			SimilarityThreshold: cfg.Synthesis.SimilarityThreshold,
			MinQuality:          cfg.Synthesis.MinQuality,
			MaxGaps:             cfg.Synthesis.MaxGaps,
		}, synthOpts...),
		changes.NewDetector(st),
		intel.ServiceConfig{
			SweepConcurrency: cfg.Sweep.Concurrency,
			SweepMaxRetries:  cfg.Sweep.MaxRetries,
			FetchTimeout:     fetchTimeout,
		},
	)

	return &appEnv{Store: st, Service: svc}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "intel.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
