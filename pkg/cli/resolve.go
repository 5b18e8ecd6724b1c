package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nimburion/searchrepo/pkg/config"
	"github.com/nimburion/searchrepo/pkg/observability/logger"
	"github.com/nimburion/searchrepo/pkg/query/stringquery"
	"github.com/nimburion/searchrepo/pkg/repository"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// configLoader loads configuration and logger for a command's flag set.
type configLoader func(fs *pflag.FlagSet) (*config.Config, logger.Logger, error)

// queryFlags are the template and binding flags shared by resolve and query.
type queryFlags struct {
	template     string
	templateFile string
	mode         string
	args         []string
	params       []string
}

func (f *queryFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.template, "template", "t", "", "query template")
	fs.StringVarP(&f.templateFile, "template-file", "f", "", "read the query template from a file")
	fs.StringVarP(&f.mode, "mode", "m", "", "placeholder mode (positional, named); defaults to query.mode")
	fs.StringArrayVarP(&f.args, "arg", "a", nil, "positional value for ?0, ?1, ... (repeatable, JSON when parseable)")
	fs.StringArrayVarP(&f.params, "param", "p", nil, "named value as name=value for :name (repeatable, JSON when parseable)")
}

// bindings is the parsed template and values of one invocation.
type bindings struct {
	template string
	mode     stringquery.Mode
	names    []string
	values   []any
}

func (b bindings) accessor() (stringquery.ParameterAccessor, error) {
	if b.mode == stringquery.ModeNamed {
		return stringquery.NewNamedArgs(b.names, b.values)
	}
	return stringquery.Args(b.values), nil
}

func (f *queryFlags) bindings(defaultMode string) (bindings, error) {
	tmpl, err := f.readTemplate()
	if err != nil {
		return bindings{}, err
	}

	modeName := f.mode
	if modeName == "" {
		modeName = defaultMode
	}
	mode, err := stringquery.ParseMode(modeName)
	if err != nil {
		return bindings{}, err
	}

	b := bindings{template: tmpl, mode: mode}
	switch mode {
	case stringquery.ModeNamed:
		if len(f.args) > 0 {
			return bindings{}, errors.New("--arg is only valid in positional mode, use --param name=value")
		}
		seen := make(map[string]struct{}, len(f.params))
		for _, raw := range f.params {
			name, value, ok := strings.Cut(raw, "=")
			name = strings.TrimSpace(name)
			if !ok || name == "" {
				return bindings{}, fmt.Errorf("invalid --param %q: expected name=value", raw)
			}
			if _, dup := seen[name]; dup {
				return bindings{}, fmt.Errorf("duplicate --param %q", name)
			}
			seen[name] = struct{}{}
			b.names = append(b.names, name)
			b.values = append(b.values, parseValue(value))
		}
	default:
		if len(f.params) > 0 {
			return bindings{}, errors.New("--param is only valid in named mode, use --mode named")
		}
		for _, raw := range f.args {
			b.values = append(b.values, parseValue(raw))
		}
	}
	return b, nil
}

func (f *queryFlags) readTemplate() (string, error) {
	switch {
	case f.template != "" && f.templateFile != "":
		return "", errors.New("--template and --template-file are mutually exclusive")
	case f.templateFile != "":
		data, err := os.ReadFile(f.templateFile)
		if err != nil {
			return "", fmt.Errorf("read template file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case f.template != "":
		return f.template, nil
	default:
		return "", errors.New("a template is required (--template or --template-file)")
	}
}

// parseValue decodes raw as JSON so that numbers, booleans, null and arrays keep their
// type. Anything that is not a single JSON value stays a string.
func parseValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	if dec.More() {
		return raw
	}
	return v
}

func newResolveCommand(loadConfig configLoader) *cobra.Command {
	flags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a query template and print the result",
		Example: `  searchrepo resolve -t '{"match":{"name":"?0"}}' -a Jack
  searchrepo resolve -m named -t '{"terms":{"tag"::tags}}' -p 'tags=["a","b"]'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			b, err := flags.bindings(cfg.Query.Mode)
			if err != nil {
				return err
			}
			accessor, err := b.accessor()
			if err != nil {
				return err
			}
			resolved, err := newResolver(cfg.Query, b.mode).Resolve(b.template, accessor)
			if err != nil {
				return err
			}
			log.Debug("template resolved", "mode", b.mode.String(), "bindings", len(b.values))
			fmt.Fprintln(cmd.OutOrStdout(), resolved)
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

// newResolver builds a resolver from the query section, matching the repository's resolvers.
func newResolver(cfg config.QueryConfig, mode stringquery.Mode) *stringquery.Resolver {
	opts := []stringquery.Option{stringquery.WithTemplateCache(cfg.TemplateCacheSize)}
	if !cfg.AllowFallback {
		opts = append(opts, stringquery.WithoutFallback())
	}
	if cfg.StrictNamed && mode == stringquery.ModeNamed {
		opts = append(opts, stringquery.WithStrictNamed())
	}
	return stringquery.New(stringquery.DefaultConversionContext{}, mode, opts...)
}

// hitOutput is the JSON form of one search hit.
type hitOutput struct {
	Index   string          `json:"_index"`
	ID      string          `json:"_id"`
	Score   float64         `json:"_score"`
	Routing string          `json:"_routing,omitempty"`
	Source  json.RawMessage `json:"_source"`
}

type hitsOutput struct {
	Total    int64       `json:"total"`
	MaxScore float64     `json:"max_score"`
	Hits     []hitOutput `json:"hits"`
}

const cliQueryName = "cli"

func splitIndices(raw string) []string {
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func newQueryCommand(loadConfig configLoader, newClient ClientFactory, global *globalFlags) *cobra.Command {
	flags := &queryFlags{}
	var index string
	var countOnly bool
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Resolve a query template and run it against an index",
		Example: `  searchrepo query -i books -t '{"match":{"author":"?0"}}' -a Jack
  searchrepo query -i books --count -t '{"range":{"year":{"gte":?0}}}' -a 1990`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(splitIndices(index)) == 0 {
				return errors.New("--index is required")
			}
			cfg, log, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			b, err := flags.bindings(cfg.Query.Mode)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			rt, err := newRuntime(ctx, cfg, log, newClient, global.metricsTextfile)
			if err != nil {
				return err
			}
			defer rt.Close()

			repo, err := repository.New[json.RawMessage, string](rt.client, log, rt.repositoryOptions(splitIndices(index)...)...)
			if err != nil {
				return err
			}
			var queryOpts []repository.QueryOption
			if b.mode == stringquery.ModeNamed {
				queryOpts = append(queryOpts, repository.WithNamedParameters(b.names...))
			}
			if rt.cache != nil {
				queryOpts = append(queryOpts, repository.WithCacheTTL(cfg.Cache.TTL))
			}
			if err := repo.Declare(cliQueryName, b.template, queryOpts...); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if countOnly {
				count, err := repo.CountByQuery(ctx, cliQueryName, b.values...)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, count)
				return nil
			}

			hits, err := repo.SearchHitsByQuery(ctx, cliQueryName, b.values...)
			if err != nil {
				return err
			}
			result := hitsOutput{Total: hits.Total, MaxScore: hits.MaxScore, Hits: make([]hitOutput, 0, len(hits.Hits))}
			for _, hit := range hits.Hits {
				result.Hits = append(result.Hits, hitOutput{
					Index:   hit.Index,
					ID:      hit.ID,
					Score:   hit.Score,
					Routing: hit.Routing,
					Source:  hit.Content,
				})
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVarP(&index, "index", "i", "", "index (or comma-separated indices) to search")
	cmd.Flags().BoolVar(&countOnly, "count", false, "print the number of matching documents only")
	return cmd
}
