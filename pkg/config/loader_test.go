package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Service.Name != "searchrepo" {
		t.Errorf("expected service name searchrepo, got %s", cfg.Service.Name)
	}
	if cfg.Search.Driver != SearchDriverHTTP {
		t.Errorf("expected search driver http, got %s", cfg.Search.Driver)
	}
	if cfg.Search.OperationTimeout != 5*time.Second {
		t.Errorf("expected search operation timeout 5s, got %v", cfg.Search.OperationTimeout)
	}
	if cfg.Query.Mode != QueryModePositional {
		t.Errorf("expected positional query mode, got %s", cfg.Query.Mode)
	}
	if cfg.Query.TemplateCacheSize != 256 {
		t.Errorf("expected template cache size 256, got %d", cfg.Query.TemplateCacheSize)
	}
	if !cfg.Query.AllowFallback {
		t.Error("expected fallback conversion to be allowed by default")
	}
	if cfg.Cache.Type != CacheTypeNone {
		t.Errorf("expected cache to be disabled by default, got %q", cfg.Cache.Type)
	}
	if cfg.Resilience.CircuitBreakerEnabled {
		t.Error("expected circuit breaker to be disabled by default")
	}
	if cfg.Observability.LogLevel != "info" || cfg.Observability.LogFormat != "json" {
		t.Errorf("unexpected log defaults %s/%s", cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	}
}

func TestViperLoader_LoadDefaults(t *testing.T) {
	clearPrefixedEnv(t, "SEARCHREPO_")

	cfg, err := NewViperLoader("", "").Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got: %v", err)
	}
	if cfg.Query.DefaultPageSize != 10 {
		t.Errorf("expected default page size 10, got %d", cfg.Query.DefaultPageSize)
	}
	if cfg.Search.AWSService != "es" {
		t.Errorf("expected aws service es, got %s", cfg.Search.AWSService)
	}
}

func TestViperLoader_LoadWithEnvOverride(t *testing.T) {
	t.Setenv("SEARCHREPO_SEARCH_TYPE", "opensearch")
	t.Setenv("SEARCHREPO_SEARCH_URLS", "http://node-1:9200,http://node-2:9200")
	t.Setenv("SEARCHREPO_SEARCH_OPERATION_TIMEOUT", "750ms")
	t.Setenv("SEARCHREPO_QUERY_MODE", "NAMED")
	t.Setenv("SEARCHREPO_QUERY_STRICT_NAMED", "true")
	t.Setenv("SEARCHREPO_CACHE_TYPE", "inmemory")
	t.Setenv("SEARCHREPO_CACHE_TTL", "2m")
	t.Setenv("SEARCHREPO_LOG_LEVEL", "debug")

	cfg, err := NewViperLoader("", "SEARCHREPO").Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(cfg.Search.URLs) != 2 || cfg.Search.URLs[1] != "http://node-2:9200" {
		t.Errorf("expected two search urls from env, got %v", cfg.Search.URLs)
	}
	if cfg.Search.OperationTimeout != 750*time.Millisecond {
		t.Errorf("expected operation timeout 750ms, got %v", cfg.Search.OperationTimeout)
	}
	if cfg.Query.Mode != QueryModeNamed {
		t.Errorf("expected normalized named mode, got %s", cfg.Query.Mode)
	}
	if !cfg.Query.StrictNamed {
		t.Error("expected strict named mode from env")
	}
	if cfg.Cache.Type != CacheTypeInMemory || cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level from short env alias, got %s", cfg.Observability.LogLevel)
	}
}

func TestViperLoader_LoadFromFile(t *testing.T) {
	clearPrefixedEnv(t, "SEARCHREPO_")
	configFile := writeConfigFile(t, map[string]any{
		"search": map[string]any{
			"type":           "elasticsearch",
			"driver":         "elasticsearch-sdk",
			"url":            "https://es.internal:9200",
			"refresh_policy": "wait_for",
		},
		"resilience": map[string]any{
			"circuit_breaker_enabled": true,
			"max_failures":            3,
			"reset_timeout":           "10s",
		},
	})

	cfg, err := NewViperLoader(configFile, "SEARCHREPO").Load()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Search.Driver != SearchDriverElasticsearchSDK || cfg.Search.RefreshPolicy != "wait_for" {
		t.Errorf("unexpected search config %+v", cfg.Search)
	}
	if !cfg.Resilience.CircuitBreakerEnabled || cfg.Resilience.MaxFailures != 3 || cfg.Resilience.ResetTimeout != 10*time.Second {
		t.Errorf("unexpected resilience config %+v", cfg.Resilience)
	}
}

func TestViperLoader_MissingFile(t *testing.T) {
	_, err := NewViperLoader(filepath.Join(t.TempDir(), "missing.yaml"), "SEARCHREPO").Load()
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestViperLoader_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "invalid search type",
			mutate: func(c *Config) { c.Search.Type = "solr"; c.Search.URL = "http://x" },
			want:   "invalid search.type",
		},
		{
			name:   "missing search url",
			mutate: func(c *Config) { c.Search.Type = SearchTypeOpenSearch },
			want:   "search.url or search.urls is required",
		},
		{
			name: "driver mismatch",
			mutate: func(c *Config) {
				c.Search.Type = SearchTypeElasticsearch
				c.Search.Driver = SearchDriverOpenSearchSDK
				c.Search.URL = "http://x"
			},
			want: "requires search.type=opensearch",
		},
		{
			name: "aws region required",
			mutate: func(c *Config) {
				c.Search.Type = SearchTypeOpenSearch
				c.Search.URL = "http://x"
				c.Search.AWSAuthEnabled = true
			},
			want: "search.aws_region is required",
		},
		{
			name:   "invalid refresh policy",
			mutate: func(c *Config) { c.Search.RefreshPolicy = "always" },
			want:   "invalid search.refresh_policy",
		},
		{
			name:   "invalid query mode",
			mutate: func(c *Config) { c.Query.Mode = "indexed" },
			want:   "invalid query.mode",
		},
		{
			name:   "negative template cache",
			mutate: func(c *Config) { c.Query.TemplateCacheSize = -1 },
			want:   "query.template_cache_size cannot be negative",
		},
		{
			name:   "redis without url",
			mutate: func(c *Config) { c.Cache.Type = CacheTypeRedis },
			want:   "cache.url is required",
		},
		{
			name:   "unknown cache type",
			mutate: func(c *Config) { c.Cache.Type = "memcached" },
			want:   "invalid cache.type",
		},
		{
			name: "breaker without failures",
			mutate: func(c *Config) {
				c.Resilience.CircuitBreakerEnabled = true
				c.Resilience.MaxFailures = 0
			},
			want: "resilience.max_failures",
		},
		{
			name:   "tracing endpoint required",
			mutate: func(c *Config) { c.Observability.TracingEnabled = true },
			want:   "observability.tracing_endpoint is required",
		},
		{
			name:   "invalid log level",
			mutate: func(c *Config) { c.Observability.LogLevel = "trace" },
			want:   "invalid observability.log_level",
		},
	}

	loader := NewViperLoader("", "SEARCHREPO")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := loader.Validate(cfg)
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestViperLoader_ValidationJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Query.Mode = "bad"
	cfg.Observability.LogFormat = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !strings.Contains(err.Error(), "query.mode") || !strings.Contains(err.Error(), "log_format") {
		t.Fatalf("expected both violations to be reported, got %v", err)
	}
}

func TestViperLoader_ValidConfiguration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.Type = SearchTypeOpenSearch
	cfg.Search.URL = "http://localhost:9200"
	cfg.Cache.Type = CacheTypeRedis
	cfg.Cache.URL = "redis://localhost:6379/0"

	if err := NewViperLoader("", "").Validate(cfg); err != nil {
		t.Fatalf("expected valid configuration, got %v", err)
	}
}

func TestViperLoader_EnvAliases(t *testing.T) {
	t.Setenv("SEARCHREPO_LOG_LEVEL", "warn")
	t.Setenv("SEARCHREPO_ENVIRONMENT", "staging")
	t.Setenv("SEARCHREPO_OBSERVABILITY_LOG_FORMAT", "text")
	t.Setenv("SEARCHREPO_LOG_FORMAT", "json")
	t.Setenv("SEARCHREPO_SEARCH_URLS", " http://a:9200 ,,http://b:9200")

	cfg, err := NewViperLoader("", "").Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Observability.LogLevel != "warn" || cfg.Service.Environment != "staging" {
		t.Fatalf("aliases not applied: %+v", cfg.Observability)
	}
	if cfg.Observability.LogFormat != "text" {
		t.Fatalf("canonical variable should win over alias, got %q", cfg.Observability.LogFormat)
	}
	if len(cfg.Search.URLs) != 2 || cfg.Search.URLs[0] != "http://a:9200" || cfg.Search.URLs[1] != "http://b:9200" {
		t.Fatalf("unexpected urls %q", cfg.Search.URLs)
	}
}

func TestPropertyConfigurationPrecedence(t *testing.T) {
	properties := gopter.NewProperties(nil)

	genLogLevel := gen.OneConstOf("debug", "info", "warn", "error")
	genPageSize := gen.IntRange(1, 500)

	properties.Property("env overrides file and defaults", prop.ForAll(
		func(envLevel, fileLevel string, envPage, filePage int) bool {
			configFile := writeConfigFile(t, map[string]any{
				"observability": map[string]any{"log_level": fileLevel},
				"query":         map[string]any{"default_page_size": filePage},
			})
			os.Setenv("SEARCHREPO_OBSERVABILITY_LOG_LEVEL", envLevel)
			os.Setenv("SEARCHREPO_QUERY_DEFAULT_PAGE_SIZE", fmt.Sprintf("%d", envPage))
			defer os.Unsetenv("SEARCHREPO_OBSERVABILITY_LOG_LEVEL")
			defer os.Unsetenv("SEARCHREPO_QUERY_DEFAULT_PAGE_SIZE")

			cfg, err := NewViperLoader(configFile, "SEARCHREPO").Load()
			if err != nil {
				t.Logf("Load error: %v", err)
				return false
			}
			return cfg.Observability.LogLevel == envLevel && cfg.Query.DefaultPageSize == envPage
		},
		genLogLevel, genLogLevel, genPageSize, genPageSize,
	))

	properties.Property("file overrides defaults when env is not set", prop.ForAll(
		func(fileLevel string, filePage int) bool {
			configFile := writeConfigFile(t, map[string]any{
				"observability": map[string]any{"log_level": fileLevel},
				"query":         map[string]any{"default_page_size": filePage},
			})

			cfg, err := NewViperLoader(configFile, "SEARCHREPO").Load()
			if err != nil {
				t.Logf("Load error: %v", err)
				return false
			}
			return cfg.Observability.LogLevel == fileLevel && cfg.Query.DefaultPageSize == filePage
		},
		genLogLevel, genPageSize,
	))

	clearPrefixedEnv(t, "SEARCHREPO_")
	properties.TestingRun(t)
}

func clearPrefixedEnv(t *testing.T, prefix string) {
	t.Helper()
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		unsetEnv(t, strings.SplitN(env, "=", 2)[0])
	}
}

func writeConfigFile(t *testing.T, settings map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(settings)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
