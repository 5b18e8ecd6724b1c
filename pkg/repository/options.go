package repository

import (
	"strings"
	"time"

	"github.com/nimburion/searchrepo/pkg/cache"
	"github.com/nimburion/searchrepo/pkg/config"
	"github.com/nimburion/searchrepo/pkg/mapping"
	"github.com/nimburion/searchrepo/pkg/query/stringquery"
	"github.com/nimburion/searchrepo/pkg/resilience"
)

// Option configures a SearchRepository.
type Option func(*settings)

type settings struct {
	indices         []string
	cache           cache.Store
	breaker         *resilience.CircuitBreaker
	resolvers       map[stringquery.Mode]*stringquery.Resolver
	refresh         string
	routing         RoutingResolver
	timeout         time.Duration
	defaultPageSize int
}

func defaultSettings() settings {
	return settings{
		resolvers: map[stringquery.Mode]*stringquery.Resolver{
			stringquery.ModePositional: stringquery.New(stringquery.DefaultConversionContext{}, stringquery.ModePositional),
			stringquery.ModeNamed:      stringquery.New(stringquery.DefaultConversionContext{}, stringquery.ModeNamed),
		},
		routing: NewRoutingResolver(""),
	}
}

// WithIndex overrides the index derived from the entity type.
func WithIndex(names ...string) Option {
	return func(s *settings) {
		s.indices = names
	}
}

// WithCache caches the responses of declared queries that set WithCacheTTL.
func WithCache(store cache.Store) Option {
	return func(s *settings) {
		s.cache = store
	}
}

// WithCircuitBreaker guards every cluster call with breaker. Not-found results and version
// conflicts never count as failures.
func WithCircuitBreaker(breaker *resilience.CircuitBreaker) Option {
	return func(s *settings) {
		s.breaker = breaker
	}
}

// WithResolver replaces the resolver used for declared queries of resolver's mode.
func WithResolver(resolver *stringquery.Resolver) Option {
	return func(s *settings) {
		if resolver != nil {
			s.resolvers[resolver.Mode()] = resolver
		}
	}
}

// WithQueryConfig builds both placeholder resolvers from cfg.
func WithQueryConfig(cfg config.QueryConfig) Option {
	return func(s *settings) {
		base := []stringquery.Option{stringquery.WithTemplateCache(cfg.TemplateCacheSize)}
		if !cfg.AllowFallback {
			base = append(base, stringquery.WithoutFallback())
		}
		named := append([]stringquery.Option{}, base...)
		if cfg.StrictNamed {
			named = append(named, stringquery.WithStrictNamed())
		}
		s.resolvers[stringquery.ModePositional] = stringquery.New(stringquery.DefaultConversionContext{}, stringquery.ModePositional, base...)
		s.resolvers[stringquery.ModeNamed] = stringquery.New(stringquery.DefaultConversionContext{}, stringquery.ModeNamed, named...)
		s.defaultPageSize = cfg.DefaultPageSize
	}
}

// WithRefreshPolicy sets ?refresh= on every write: "true", "false" or "wait_for".
func WithRefreshPolicy(policy string) Option {
	return func(s *settings) {
		s.refresh = strings.TrimSpace(policy)
	}
}

// WithRouting sets how shard routing is chosen for reads and writes.
func WithRouting(resolver RoutingResolver) Option {
	return func(s *settings) {
		if resolver != nil {
			s.routing = resolver
		}
	}
}

// WithOperationTimeout bounds every cluster call. Zero leaves calls unbounded.
func WithOperationTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		s.timeout = timeout
	}
}

// WithDefaultPageSize sets the size used by FindAll when the pagination has none.
func WithDefaultPageSize(size int) Option {
	return func(s *settings) {
		s.defaultPageSize = size
	}
}

// ConfigOptions returns the options described by cfg: resolver settings, refresh policy
// and, when enabled, a circuit breaker.
func ConfigOptions(cfg *config.Config) []Option {
	if cfg == nil {
		return nil
	}
	opts := []Option{
		WithQueryConfig(cfg.Query),
		WithRefreshPolicy(cfg.Search.RefreshPolicy),
	}
	if cfg.Resilience.CircuitBreakerEnabled {
		opts = append(opts, WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.ConfigFrom(cfg.Resilience))))
	}
	return opts
}

// RoutingResolver picks the shard routing of repository requests.
type RoutingResolver interface {
	// Routing is used for requests that only carry an id.
	Routing() string
	// EntityRouting is used for writes of entity.
	EntityRouting(entity any) (string, bool)
}

type defaultRoutingResolver struct {
	routing string
}

// NewRoutingResolver reads routing from the field tagged search:"routing" and falls back
// to routing when the entity has none.
func NewRoutingResolver(routing string) RoutingResolver {
	return defaultRoutingResolver{routing: strings.TrimSpace(routing)}
}

func (d defaultRoutingResolver) Routing() string {
	return d.routing
}

func (d defaultRoutingResolver) EntityRouting(entity any) (string, bool) {
	if routing, ok := mapping.EntityRouting(entity); ok {
		return routing, true
	}
	return d.routing, d.routing != ""
}
