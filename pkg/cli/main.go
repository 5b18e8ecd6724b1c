// Package cli provides the searchrepo operator command line.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/nimburion/searchrepo/pkg/config"
	"github.com/nimburion/searchrepo/pkg/observability/logger"
	"github.com/nimburion/searchrepo/pkg/store"
	"github.com/nimburion/searchrepo/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// ClientFactory creates the search client used by the query and healthcheck commands.
type ClientFactory func(cfg config.SearchConfig, log logger.Logger) (store.Client, error)

// CommandOptions configures the root command.
type CommandOptions struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string

	// Optional: override search client construction (useful for tests/custom adapters).
	NewClient ClientFactory
	// Optional: custom config validation (runs after the built-in validation)
	ValidateConfig func(cfg *config.Config) error
	// Optional: additional custom commands
	CustomCommands []*cobra.Command
}

// globalFlags holds the persistent flags shared by every subcommand.
type globalFlags struct {
	cfgPath             string
	secretFilePath      string
	serviceNameOverride string
	metricsTextfile     string
}

// NewCommand creates the CLI with resolve, query, healthcheck, version and config subcommands.
func NewCommand(opts CommandOptions) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "searchrepo"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}
	if opts.NewClient == nil {
		opts.NewClient = store.NewSearchAdapter
	}

	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := &globalFlags{}
	rootCmd.PersistentFlags().StringVarP(&flags.cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&flags.secretFilePath, "secret-file", "", "path to secrets file (overrides "+opts.EnvPrefix+"_SECRETS_FILE)")
	rootCmd.PersistentFlags().StringVar(&flags.serviceNameOverride, "service-name", "", "service name override")
	rootCmd.PersistentFlags().StringVar(&flags.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit (textfile collector format)")
	config.RegisterOverrideFlags(rootCmd.PersistentFlags())

	ld := &loader{opts: opts, global: flags}
	loadConfig := ld.withLogger

	rootCmd.AddCommand(newVersionCommand(opts.Name))
	rootCmd.AddCommand(newResolveCommand(loadConfig))
	rootCmd.AddCommand(newQueryCommand(loadConfig, opts.NewClient, flags))
	rootCmd.AddCommand(newHealthCommand(loadConfig, opts.NewClient, flags))
	rootCmd.AddCommand(newConfigCommand(ld))

	for _, customCmd := range opts.CustomCommands {
		rootCmd.AddCommand(customCmd)
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = false
	rootCmd.InitDefaultCompletionCmd()

	return rootCmd
}

func newVersionCommand(name string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Current(name)
			out := cmd.OutOrStdout()
			if output == "yaml" {
				data, err := yaml.Marshal(info)
				if err != nil {
					return fmt.Errorf("marshal version: %w", err)
				}
				_, err = out.Write(data)
				return err
			}
			fmt.Fprintf(out, "Service:    %s\n", info.Service)
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
			fmt.Fprintf(out, "Go:         %s\n", info.GoVersion)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, yaml)")
	return cmd
}

func newConfigCommand(ld *loader) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := ld.load(cmd.Flags()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	})

	var showSecrets bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loaded, err := ld.load(cmd.Flags())
			if err != nil {
				return err
			}
			settings := setServiceNameSetting(loaded.settings, cfg.Service.Name)
			if !showSecrets {
				settings = redactSettingsMap(settings, loaded.secrets)
			}
			formatted, err := formatSettings(settings)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatted)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print secret values instead of "+redactedValue)
	configCmd.AddCommand(showCmd)

	return configCmd
}

// loader reads the configuration for a command: defaults < file < secrets < env < flags.
type loader struct {
	opts   CommandOptions
	global *globalFlags
}

// loadedSettings are the merged settings and the subset that came from the secrets file.
type loadedSettings struct {
	settings map[string]interface{}
	secrets  map[string]interface{}
}

func (l *loader) load(fs *pflag.FlagSet) (*config.Config, loadedSettings, error) {
	cfg := &config.Config{}
	provider := config.NewConfigProvider(l.global.cfgPath, l.opts.EnvPrefix).
		WithSecretsFile(l.global.secretFilePath).
		WithServiceNameDefault(l.opts.Name).
		WithFlags(fs)
	secrets, err := provider.LoadWithSecrets(cfg)
	if err != nil {
		return nil, loadedSettings{}, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Name = resolveServiceNameValue(cfg.Service.Name, l.opts.Name, l.global.serviceNameOverride)

	if l.opts.ValidateConfig != nil {
		if err := l.opts.ValidateConfig(cfg); err != nil {
			return nil, loadedSettings{}, fmt.Errorf("custom validation failed: %w", err)
		}
	}
	return cfg, loadedSettings{settings: provider.AllSettings(), secrets: secrets}, nil
}

// withLogger loads the configuration and builds the zap logger its observability
// section describes.
func (l *loader) withLogger(fs *pflag.FlagSet) (*config.Config, logger.Logger, error) {
	cfg, _, err := l.load(fs)
	if err != nil {
		return nil, nil, err
	}
	logCfg, err := logger.ConfigFrom(cfg.Observability)
	if err != nil {
		return nil, nil, fmt.Errorf("logger config: %w", err)
	}
	log, err := logger.NewZapLogger(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	if strings.EqualFold(cfg.Observability.LogLevel, string(logger.DebugLevel)) {
		log.Debug("effective configuration", "config", fmt.Sprintf("%+v", redactedConfig(*cfg)))
	}
	return cfg, log, nil
}

// Execute runs cmd and exits with status 1 on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func redactedConfig(cfg config.Config) config.Config {
	for _, secret := range []*string{
		&cfg.Search.Password,
		&cfg.Search.APIKey,
		&cfg.Search.AWSSecretKey,
		&cfg.Search.AWSSessionToken,
		&cfg.Cache.URL,
	} {
		if *secret != "" {
			*secret = redactedValue
		}
	}
	return cfg
}

// resolveServiceNameValue picks the --service-name override, then the configured name,
// then the command default.
func resolveServiceNameValue(configured, defaultName, override string) string {
	for _, candidate := range []string{override, configured, defaultName} {
		if name := strings.TrimSpace(candidate); name != "" {
			return name
		}
	}
	return "searchrepo"
}
