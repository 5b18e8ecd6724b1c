package config

import "time"

// Search engine type constants
const (
	// SearchTypeOpenSearch represents an OpenSearch cluster
	SearchTypeOpenSearch = "opensearch"
	// SearchTypeElasticsearch represents an Elasticsearch cluster
	SearchTypeElasticsearch = "elasticsearch"
)

// Search driver constants
const (
	// SearchDriverHTTP uses the built-in HTTP client
	SearchDriverHTTP = "http"
	// SearchDriverOpenSearchSDK uses opensearch-go (requires the opensearch_sdk build tag)
	SearchDriverOpenSearchSDK = "opensearch-sdk"
	// SearchDriverElasticsearchSDK uses go-elasticsearch (requires the elasticsearch_sdk build tag)
	SearchDriverElasticsearchSDK = "elasticsearch-sdk"
)

// Cache type constants
const (
	// CacheTypeNone disables the query result cache
	CacheTypeNone = ""
	// CacheTypeInMemory keeps results in a process-local LRU
	CacheTypeInMemory = "inmemory"
	// CacheTypeRedis keeps results in Redis
	CacheTypeRedis = "redis"
)

// Placeholder mode constants
const (
	// QueryModePositional substitutes ?0, ?1, ...
	QueryModePositional = "positional"
	// QueryModeNamed substitutes declared :name tokens
	QueryModeNamed = "named"
)

// Config is the root configuration structure for searchrepo
type Config struct {
	Service       ServiceConfig
	Search        SearchConfig
	Query         QueryConfig
	Cache         CacheConfig
	Resilience    ResilienceConfig
	Observability ObservabilityConfig
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SearchConfig configures OpenSearch/Elasticsearch connections.
type SearchConfig struct {
	Type             string        `mapstructure:"type"`   // opensearch, elasticsearch
	Driver           string        `mapstructure:"driver"` // http, opensearch-sdk, elasticsearch-sdk
	URL              string        `mapstructure:"url"`
	URLs             []string      `mapstructure:"urls"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	APIKey           string        `mapstructure:"api_key"`
	AWSAuthEnabled   bool          `mapstructure:"aws_auth_enabled"`
	AWSRegion        string        `mapstructure:"aws_region"`
	AWSService       string        `mapstructure:"aws_service"`
	AWSAccessKeyID   string        `mapstructure:"aws_access_key_id"`
	AWSSecretKey     string        `mapstructure:"aws_secret_access_key"`
	AWSSessionToken  string        `mapstructure:"aws_session_token"`
	MaxConns         int           `mapstructure:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	// RefreshPolicy is passed as ?refresh= on repository writes: "", true, false, wait_for.
	RefreshPolicy string `mapstructure:"refresh_policy"`
}

// QueryConfig configures placeholder resolution for declared string queries.
type QueryConfig struct {
	Mode              string `mapstructure:"mode"` // positional, named
	TemplateCacheSize int    `mapstructure:"template_cache_size"`
	StrictNamed       bool   `mapstructure:"strict_named"`
	AllowFallback     bool   `mapstructure:"allow_fallback"`
	DefaultPageSize   int    `mapstructure:"default_page_size"`
}

// CacheConfig configures the query result cache
type CacheConfig struct {
	Type             string        `mapstructure:"type"` // redis, inmemory, or empty to disable
	URL              string        `mapstructure:"url"`
	MaxConns         int           `mapstructure:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	TTL              time.Duration `mapstructure:"ttl"`
	MaxEntries       int           `mapstructure:"max_entries"`
	KeyPrefix        string        `mapstructure:"key_prefix"`
}

// ResilienceConfig configures the circuit breaker guarding search calls
type ResilienceConfig struct {
	CircuitBreakerEnabled bool          `mapstructure:"circuit_breaker_enabled"`
	MaxFailures           int           `mapstructure:"max_failures"`
	ResetTimeout          time.Duration `mapstructure:"reset_timeout"`
	HalfOpenMaxCalls      int           `mapstructure:"half_open_max_calls"`
}

// ObservabilityConfig configures logging, metrics, and tracing
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level"`
	LogFormat         string  `mapstructure:"log_format"` // json, text
	ServiceName       string  `mapstructure:"service_name"`
	MetricsEnabled    bool    `mapstructure:"metrics_enabled"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "searchrepo",
			Environment: "production",
		},
		Search: SearchConfig{
			Driver:           SearchDriverHTTP,
			AWSService:       "es",
			MaxConns:         10,
			OperationTimeout: 5 * time.Second,
		},
		Query: QueryConfig{
			Mode:              QueryModePositional,
			TemplateCacheSize: 256,
			AllowFallback:     true,
			DefaultPageSize:   10,
		},
		Cache: CacheConfig{
			Type:             CacheTypeNone,
			MaxConns:         10,
			OperationTimeout: time.Second,
			TTL:              time.Minute,
			MaxEntries:       1024,
			KeyPrefix:        "searchrepo:",
		},
		Resilience: ResilienceConfig{
			CircuitBreakerEnabled: false,
			MaxFailures:           5,
			ResetTimeout:          30 * time.Second,
			HalfOpenMaxCalls:      1,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			ServiceName:       "searchrepo",
			MetricsEnabled:    true,
			TracingSampleRate: 0.1,
		},
	}
}
