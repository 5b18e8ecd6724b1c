package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// secretsExtensions are tried, in order, for secrets files next to the working directory.
var secretsExtensions = []string{".yaml", ".yml", ".json", ".toml"}

// secretsFile locates the optional secrets file. An explicit path set with
// WithSecretsFile wins, then <PREFIX>_SECRETS_FILE; both must name a readable file.
// Otherwise secrets.<ext> beside the config file is used, then
// secrets.{yaml,yml,json,toml} in the working directory. An empty path means none exists.
func (l *ViperLoader) secretsFile() (string, error) {
	if l.secretsPath != "" {
		return explicitFile("secrets file", filepath.Clean(l.secretsPath))
	}
	name := l.prefixedEnv("SECRETS_FILE")
	if explicit, ok := os.LookupEnv(name); ok {
		path := strings.TrimSpace(explicit)
		if path == "" {
			return "", fmt.Errorf("%s is set but empty", name)
		}
		return explicitFile(name, path)
	}

	var candidates []string
	if l.configFile != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(l.configFile), "secrets"+filepath.Ext(l.configFile)))
	}
	for _, ext := range secretsExtensions {
		candidates = append(candidates, "secrets"+ext)
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", nil
}

func explicitFile(source, path string) (string, error) {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return "", fmt.Errorf("%s points to an inaccessible file %s: %w", source, path, err)
	case info.IsDir():
		return "", fmt.Errorf("%s must point to a file, got directory %s", source, path)
	}
	return path, nil
}

// mergeSecrets reads the secrets file, if any, over the settings already in v and returns
// the secret settings alone so callers can redact them.
func (l *ViperLoader) mergeSecrets(v *viper.Viper) (map[string]interface{}, error) {
	path, err := l.secretsFile()
	if err != nil || path == "" {
		return nil, err
	}
	sv := viper.New()
	sv.SetConfigFile(path)
	if err := sv.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read secrets file %s: %w", path, err)
	}
	secrets := sv.AllSettings()
	if err := v.MergeConfigMap(secrets); err != nil {
		return nil, fmt.Errorf("failed to merge secrets file %s: %w", path, err)
	}
	return secrets, nil
}
