package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nimburion/searchrepo/pkg/health"
	"github.com/nimburion/searchrepo/pkg/store"
	"github.com/nimburion/searchrepo/pkg/version"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ErrUnhealthy is returned by the healthcheck command when any check is not healthy.
var ErrUnhealthy = errors.New("dependencies are not healthy")

func newHealthCommand(loadConfig configLoader, newClient ClientFactory, global *globalFlags) *cobra.Command {
	var timeout time.Duration
	var output string
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check the search cluster and result cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			rt, err := newRuntime(ctx, cfg, log, newClient, global.metricsTextfile)
			if err != nil {
				return err
			}
			defer rt.Close()

			result := newHealthRegistry(rt).Check(ctx)
			if err := writeHealth(cmd, output, result); err != nil {
				return err
			}
			if !result.IsHealthy() {
				log.Warn("healthcheck failed", "status", string(result.Status))
				return fmt.Errorf("%w: %s", ErrUnhealthy, result.Status)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall healthcheck timeout")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format (yaml, json)")
	return cmd
}

func newHealthRegistry(rt *runtime) *health.Registry {
	registry := health.NewRegistry()
	registry.Register(health.NewSearchChecker("search", rt.client))
	registry.RegisterFunc("search-version", clusterVersionCheck(rt.client))
	if rt.cache != nil {
		registry.Register(health.NewCacheChecker("cache", rt.cache))
	}
	if rt.breaker != nil {
		registry.Register(health.NewBreakerChecker("circuit-breaker", rt.breaker))
	}
	return registry
}

// clusterVersionCheck reports an unsupported or unreachable cluster version as unhealthy.
func clusterVersionCheck(client store.Client) func(ctx context.Context) health.CheckResult {
	return func(ctx context.Context) health.CheckResult {
		info, err := client.Info(ctx)
		if err != nil {
			return health.CheckResult{Status: health.StatusUnhealthy, Message: "cluster info unavailable", Error: err.Error()}
		}
		result := health.CheckResult{
			Status:  health.StatusHealthy,
			Message: "cluster version supported",
			Metadata: map[string]interface{}{
				"cluster":      info.ClusterName,
				"distribution": info.Version.Distribution,
				"version":      info.Version.Number,
			},
		}
		if _, err := version.CheckCluster(info.Version.Distribution, info.Version.Number); err != nil {
			result.Status = health.StatusUnhealthy
			result.Message = "unsupported cluster version"
			result.Error = err.Error()
		}
		return result
	}
}

func writeHealth(cmd *cobra.Command, output string, result health.AggregatedResult) error {
	out := cmd.OutOrStdout()
	switch output {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml", "":
		data, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal health: %w", err)
		}
		_, err = out.Write(data)
		return err
	default:
		return fmt.Errorf("unsupported output format %q (supported: yaml, json)", output)
	}
}
