package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// DefaultEnvPrefix prefixes every environment variable read by the loader.
const DefaultEnvPrefix = "SEARCHREPO"

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile         string
	secretsPath        string
	envPrefix          string
	serviceNameDefault string
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (defaults to SEARCHREPO)
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithServiceNameDefault sets the default service.name used when no config/env override is provided.
func (l *ViperLoader) WithServiceNameDefault(serviceName string) *ViperLoader {
	if l == nil {
		return l
	}
	l.serviceNameDefault = strings.TrimSpace(serviceName)
	return l
}

// Load reads defaults, the config file and the environment, in increasing precedence.
func (l *ViperLoader) Load() (*Config, error) {
	cfg := &Config{}
	if err := (&ConfigProvider{loader: l}).Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// settingKeys lists every key that can be set from the environment. The variable name is
// the prefix followed by the upper-cased key with dots replaced by underscores.
var settingKeys = []string{
	"service.name", "service.environment",

	"search.type", "search.driver", "search.url", "search.urls",
	"search.username", "search.password", "search.api_key",
	"search.aws_auth_enabled", "search.aws_region", "search.aws_service",
	"search.aws_access_key_id", "search.aws_secret_access_key", "search.aws_session_token",
	"search.max_conns", "search.operation_timeout", "search.refresh_policy",

	"query.mode", "query.template_cache_size", "query.strict_named",
	"query.allow_fallback", "query.default_page_size",

	"cache.type", "cache.url", "cache.max_conns", "cache.operation_timeout",
	"cache.ttl", "cache.max_entries", "cache.key_prefix",

	"resilience.circuit_breaker_enabled", "resilience.max_failures",
	"resilience.reset_timeout", "resilience.half_open_max_calls",

	"observability.log_level", "observability.log_format", "observability.service_name",
	"observability.metrics_enabled", "observability.tracing_enabled",
	"observability.tracing_sample_rate", "observability.tracing_endpoint",
}

// envAliases are shorter variable names accepted after the canonical one.
var envAliases = map[string]string{
	"service.environment":      "ENVIRONMENT",
	"observability.log_level":  "LOG_LEVEL",
	"observability.log_format": "LOG_FORMAT",
}

func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	for _, key := range settingKeys {
		names := []string{key, l.prefixedEnv(strings.ToUpper(strings.ReplaceAll(key, ".", "_")))}
		if alias, ok := envAliases[key]; ok {
			names = append(names, l.prefixedEnv(alias))
		}
		_ = v.BindEnv(names...)
	}
}

func (l *ViperLoader) resolvedPrefix() string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return strings.ToUpper(prefix)
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	return fmt.Sprintf("%s_%s", l.resolvedPrefix(), suffix)
}

func (l *ViperLoader) defaultServiceName(fallback string) string {
	if l != nil {
		if configured := strings.TrimSpace(l.serviceNameDefault); configured != "" {
			return configured
		}
	}
	return strings.TrimSpace(fallback)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", l.defaultServiceName(cfg.Service.Name))
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("search.type", cfg.Search.Type)
	v.SetDefault("search.driver", cfg.Search.Driver)
	v.SetDefault("search.url", cfg.Search.URL)
	v.SetDefault("search.urls", cfg.Search.URLs)
	v.SetDefault("search.aws_auth_enabled", cfg.Search.AWSAuthEnabled)
	v.SetDefault("search.aws_service", cfg.Search.AWSService)
	v.SetDefault("search.max_conns", cfg.Search.MaxConns)
	v.SetDefault("search.operation_timeout", cfg.Search.OperationTimeout)
	v.SetDefault("search.refresh_policy", cfg.Search.RefreshPolicy)

	v.SetDefault("query.mode", cfg.Query.Mode)
	v.SetDefault("query.template_cache_size", cfg.Query.TemplateCacheSize)
	v.SetDefault("query.strict_named", cfg.Query.StrictNamed)
	v.SetDefault("query.allow_fallback", cfg.Query.AllowFallback)
	v.SetDefault("query.default_page_size", cfg.Query.DefaultPageSize)

	v.SetDefault("cache.type", cfg.Cache.Type)
	v.SetDefault("cache.max_conns", cfg.Cache.MaxConns)
	v.SetDefault("cache.operation_timeout", cfg.Cache.OperationTimeout)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.max_entries", cfg.Cache.MaxEntries)
	v.SetDefault("cache.key_prefix", cfg.Cache.KeyPrefix)

	v.SetDefault("resilience.circuit_breaker_enabled", cfg.Resilience.CircuitBreakerEnabled)
	v.SetDefault("resilience.max_failures", cfg.Resilience.MaxFailures)
	v.SetDefault("resilience.reset_timeout", cfg.Resilience.ResetTimeout)
	v.SetDefault("resilience.half_open_max_calls", cfg.Resilience.HalfOpenMaxCalls)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.service_name", cfg.Observability.ServiceName)
	v.SetDefault("observability.metrics_enabled", cfg.Observability.MetricsEnabled)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
}

// Validate normalizes and validates the configuration and returns every problem found.
func (l *ViperLoader) Validate(cfg *Config) error {
	cfg.Search.URLs = normalizeStringSlice(cfg.Search.URLs)
	cfg.Search.Type = strings.ToLower(strings.TrimSpace(cfg.Search.Type))
	cfg.Search.Driver = strings.ToLower(strings.TrimSpace(cfg.Search.Driver))
	cfg.Query.Mode = strings.ToLower(strings.TrimSpace(cfg.Query.Mode))
	cfg.Cache.Type = strings.ToLower(strings.TrimSpace(cfg.Cache.Type))
	return cfg.Validate()
}

// Validate checks if the configuration is valid and joins every violation.
func (c *Config) Validate() error {
	var errs []error

	if c.Search.Type != "" {
		searchType := strings.ToLower(c.Search.Type)
		validTypes := []string{SearchTypeOpenSearch, SearchTypeElasticsearch}
		if !slices.Contains(validTypes, searchType) {
			errs = append(errs, fmt.Errorf("invalid search.type: %s (must be one of: %v)", c.Search.Type, validTypes))
		}
		driver := strings.ToLower(strings.TrimSpace(c.Search.Driver))
		if driver == "" {
			driver = SearchDriverHTTP
		}
		validDrivers := []string{SearchDriverHTTP, SearchDriverOpenSearchSDK, SearchDriverElasticsearchSDK}
		if !slices.Contains(validDrivers, driver) {
			errs = append(errs, fmt.Errorf("invalid search.driver: %s (must be one of: %v)", c.Search.Driver, validDrivers))
		}
		if driver == SearchDriverOpenSearchSDK && searchType != SearchTypeOpenSearch {
			errs = append(errs, errors.New("search.driver=opensearch-sdk requires search.type=opensearch"))
		}
		if driver == SearchDriverElasticsearchSDK && searchType != SearchTypeElasticsearch {
			errs = append(errs, errors.New("search.driver=elasticsearch-sdk requires search.type=elasticsearch"))
		}
		if strings.TrimSpace(c.Search.URL) == "" && len(c.Search.URLs) == 0 {
			errs = append(errs, errors.New("search.url or search.urls is required when search.type is specified"))
		}
		if c.Search.AWSAuthEnabled {
			if strings.TrimSpace(c.Search.AWSRegion) == "" {
				errs = append(errs, errors.New("search.aws_region is required when search.aws_auth_enabled is true"))
			}
			if strings.TrimSpace(c.Search.AWSService) == "" {
				errs = append(errs, errors.New("search.aws_service is required when search.aws_auth_enabled is true"))
			}
		}
	}
	validRefresh := []string{"", "true", "false", "wait_for"}
	if !slices.Contains(validRefresh, c.Search.RefreshPolicy) {
		errs = append(errs, fmt.Errorf("invalid search.refresh_policy: %s (must be one of: %v)", c.Search.RefreshPolicy, validRefresh[1:]))
	}

	validModes := []string{QueryModePositional, QueryModeNamed}
	if !slices.Contains(validModes, strings.ToLower(c.Query.Mode)) {
		errs = append(errs, fmt.Errorf("invalid query.mode: %s (must be one of: %v)", c.Query.Mode, validModes))
	}
	if c.Query.TemplateCacheSize < 0 {
		errs = append(errs, errors.New("query.template_cache_size cannot be negative"))
	}
	if c.Query.DefaultPageSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid query.default_page_size: %d (must be greater than 0)", c.Query.DefaultPageSize))
	}

	if c.Cache.Type != CacheTypeNone {
		validTypes := []string{CacheTypeRedis, CacheTypeInMemory}
		if !slices.Contains(validTypes, c.Cache.Type) {
			errs = append(errs, fmt.Errorf("invalid cache.type: %s (must be one of: %v)", c.Cache.Type, validTypes))
		}
		if c.Cache.Type == CacheTypeRedis && c.Cache.URL == "" {
			errs = append(errs, errors.New("cache.url is required when cache.type is redis"))
		}
		if c.Cache.TTL <= 0 {
			errs = append(errs, errors.New("cache.ttl must be greater than zero when the cache is enabled"))
		}
		if c.Cache.Type == CacheTypeInMemory && c.Cache.MaxEntries <= 0 {
			errs = append(errs, errors.New("cache.max_entries must be greater than zero when cache.type is inmemory"))
		}
	}

	if c.Resilience.CircuitBreakerEnabled {
		if c.Resilience.MaxFailures <= 0 {
			errs = append(errs, errors.New("resilience.max_failures must be greater than 0 when the circuit breaker is enabled"))
		}
		if c.Resilience.ResetTimeout <= 0 {
			errs = append(errs, errors.New("resilience.reset_timeout must be greater than zero when the circuit breaker is enabled"))
		}
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Observability.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid observability.log_level: %s (must be one of: %v)", c.Observability.LogLevel, validLogLevels))
	}
	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Observability.LogFormat) {
		errs = append(errs, fmt.Errorf("invalid observability.log_format: %s (must be one of: %v)", c.Observability.LogFormat, validLogFormats))
	}
	if c.Observability.TracingEnabled && c.Observability.TracingEndpoint == "" {
		errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		errs = append(errs, fmt.Errorf("invalid observability.tracing_sample_rate: %v (must be between 0 and 1)", c.Observability.TracingSampleRate))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func normalizeStringSlice(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
