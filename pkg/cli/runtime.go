package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimburion/searchrepo/pkg/cache"
	"github.com/nimburion/searchrepo/pkg/config"
	"github.com/nimburion/searchrepo/pkg/observability/logger"
	"github.com/nimburion/searchrepo/pkg/observability/metrics"
	"github.com/nimburion/searchrepo/pkg/observability/tracing"
	"github.com/nimburion/searchrepo/pkg/repository"
	"github.com/nimburion/searchrepo/pkg/resilience"
	"github.com/nimburion/searchrepo/pkg/store"
	"github.com/nimburion/searchrepo/pkg/version"
)

const shutdownTimeout = 5 * time.Second

// runtime holds the collaborators built from configuration for one command run.
type runtime struct {
	cfg     *config.Config
	log     logger.Logger
	client  store.Client
	cache   cache.Store
	breaker *resilience.CircuitBreaker
	tracer  *tracing.TracerProvider
	// metricsTextfile receives the repository metrics on Close when metrics are enabled.
	metricsTextfile string
}

func newRuntime(ctx context.Context, cfg *config.Config, log logger.Logger, newClient ClientFactory, metricsTextfile string) (*runtime, error) {
	rt := &runtime{cfg: cfg, log: log, metricsTextfile: metricsTextfile}

	tracer, err := tracing.NewTracerProvider(ctx, tracing.ConfigFrom(cfg.Service, cfg.Observability, version.Current(cfg.Service.Name).Version))
	if err != nil {
		return nil, fmt.Errorf("create tracer provider: %w", err)
	}
	rt.tracer = tracer

	client, err := newClient(cfg.Search, log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create search client: %w", err)
	}
	rt.client = client

	resultCache, err := cache.NewStore(cfg.Cache)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	rt.cache = resultCache

	if cfg.Resilience.CircuitBreakerEnabled {
		rt.breaker = resilience.NewCircuitBreaker(resilience.ConfigFrom(cfg.Resilience))
	}

	log.Debug("runtime ready",
		"search_type", cfg.Search.Type,
		"search_driver", cfg.Search.Driver,
		"cache_type", cfg.Cache.Type,
		"circuit_breaker", rt.breaker != nil,
		"tracing", tracer.Enabled(),
	)
	return rt, nil
}

// repositoryOptions wires the configured collaborators into a repository over indices.
func (rt *runtime) repositoryOptions(indices ...string) []repository.Option {
	opts := []repository.Option{
		repository.WithQueryConfig(rt.cfg.Query),
		repository.WithRefreshPolicy(rt.cfg.Search.RefreshPolicy),
		repository.WithIndex(indices...),
	}
	if rt.cache != nil {
		opts = append(opts, repository.WithCache(rt.cache))
	}
	if rt.breaker != nil {
		opts = append(opts, repository.WithCircuitBreaker(rt.breaker))
	}
	return opts
}

// Close releases every collaborator and reports the joined errors.
func (rt *runtime) Close() error {
	var errs []error
	if rt.metricsTextfile != "" && rt.cfg.Observability.MetricsEnabled {
		if err := metrics.NewRegistry().WriteTextfile(rt.metricsTextfile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if rt.client != nil {
		if err := rt.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close search client: %w", err))
		}
	}
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close result cache: %w", err))
		}
	}
	if rt.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rt.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		rt.log.Warn("runtime shutdown incomplete", "error", err)
	}
	return err
}
