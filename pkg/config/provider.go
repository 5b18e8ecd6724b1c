package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// overrideFlags maps command-line flags to configuration keys. Flags win over env,
// secrets, file and defaults, but only when set explicitly.
var overrideFlags = []struct {
	name  string
	key   string
	usage string
}{
	{"search-type", "search.type", "search engine type (opensearch, elasticsearch)"},
	{"search-driver", "search.driver", "search driver (http, opensearch-sdk, elasticsearch-sdk)"},
	{"search-url", "search.url", "search cluster URL"},
	{"query-mode", "query.mode", "placeholder mode (positional, named)"},
	{"cache-type", "cache.type", "query result cache (inmemory, redis)"},
	{"cache-url", "cache.url", "redis URL for the result cache"},
	{"log-level", "observability.log_level", "log level (debug, info, warn, error)"},
	{"log-format", "observability.log_format", "log format (json, text)"},
}

// RegisterOverrideFlags adds the configuration override flags to flags.
func RegisterOverrideFlags(flags *pflag.FlagSet) {
	for _, f := range overrideFlags {
		if flags.Lookup(f.name) == nil {
			flags.String(f.name, "", f.usage)
		}
	}
}

// ConfigProvider loads the configuration once and keeps the merged settings for display.
type ConfigProvider struct {
	loader *ViperLoader
	v      *viper.Viper
	flags  *pflag.FlagSet
}

// NewConfigProvider creates a provider reading configFile and envPrefix-prefixed variables.
func NewConfigProvider(configFile, envPrefix string) *ConfigProvider {
	return &ConfigProvider{
		loader: NewViperLoader(configFile, envPrefix),
		v:      viper.New(),
	}
}

// WithFlags applies explicitly set override flags registered with RegisterOverrideFlags.
func (p *ConfigProvider) WithFlags(flags *pflag.FlagSet) *ConfigProvider {
	p.flags = flags
	return p
}

// WithSecretsFile reads secrets from path instead of discovering the secrets file.
func (p *ConfigProvider) WithSecretsFile(path string) *ConfigProvider {
	p.loader.secretsPath = strings.TrimSpace(path)
	return p
}

// WithServiceNameDefault sets the service.name default.
func (p *ConfigProvider) WithServiceNameDefault(serviceName string) *ConfigProvider {
	if p == nil || p.loader == nil {
		return p
	}
	p.loader.WithServiceNameDefault(serviceName)
	return p
}

// ConfigFile returns the path to the config file that was loaded, or empty string if none.
func (p *ConfigProvider) ConfigFile() string {
	if p.loader == nil {
		return ""
	}
	return p.loader.configFile
}

// Load fills core from defaults, file, env and flags.
func (p *ConfigProvider) Load(core *Config) error {
	_, err := p.load(core, false)
	return err
}

// LoadWithSecrets loads core including the secrets file merge.
// Returns the raw secrets map used for redaction (nil when no secrets file was loaded).
func (p *ConfigProvider) LoadWithSecrets(core *Config) (map[string]interface{}, error) {
	return p.load(core, true)
}

// AllSettings returns the effective merged settings currently held by the provider.
func (p *ConfigProvider) AllSettings() map[string]interface{} {
	if p == nil || p.v == nil {
		return map[string]interface{}{}
	}
	return p.v.AllSettings()
}

func (p *ConfigProvider) load(core *Config, withSecrets bool) (map[string]interface{}, error) {
	p.v = viper.New()
	p.loader.setDefaults(p.v, DefaultConfig())

	if p.loader.configFile != "" {
		p.v.SetConfigFile(p.loader.configFile)
		if err := p.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", p.loader.configFile, err)
		}
	}

	var secrets map[string]interface{}
	if withSecrets {
		var err error
		if secrets, err = p.loader.mergeSecrets(p.v); err != nil {
			return nil, err
		}
	}

	p.v.SetEnvPrefix(p.loader.resolvedPrefix())
	p.loader.bindEnvVars(p.v)
	p.applyFlags()

	if core == nil {
		core = &Config{}
	}
	if err := p.v.Unmarshal(core); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := p.loader.Validate(core); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return secrets, nil
}

func (p *ConfigProvider) applyFlags() {
	if p.flags == nil {
		return
	}
	for _, f := range overrideFlags {
		flag := p.flags.Lookup(f.name)
		if flag == nil || !flag.Changed {
			continue
		}
		p.v.Set(f.key, strings.TrimSpace(flag.Value.String()))
	}
}
