package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nimburion/searchrepo/pkg/cache"
	"github.com/nimburion/searchrepo/pkg/observability/metrics"
	"github.com/nimburion/searchrepo/pkg/observability/tracing"
	"github.com/nimburion/searchrepo/pkg/query/stringquery"
)

// QueryOption configures a declared query.
type QueryOption func(*declaredQuery)

// WithNamedParameters binds arguments to :name tokens in the given order instead of to
// ?0, ?1, ... positions.
func WithNamedParameters(names ...string) QueryOption {
	return func(q *declaredQuery) {
		q.params = append([]string(nil), names...)
	}
}

// WithCacheTTL caches the query results for ttl when the repository has a cache.
func WithCacheTTL(ttl time.Duration) QueryOption {
	return func(q *declaredQuery) {
		q.cacheTTL = ttl
	}
}

type declaredQuery struct {
	name     string
	template string
	params   []string
	cacheTTL time.Duration
}

func (q *declaredQuery) mode() stringquery.Mode {
	if len(q.params) > 0 {
		return stringquery.ModeNamed
	}
	return stringquery.ModePositional
}

// accessor binds args to the query's parameters, by name when it declares any.
func (q *declaredQuery) accessor(args []any) (stringquery.ParameterAccessor, error) {
	if len(q.params) == 0 {
		return stringquery.Args(args), nil
	}
	return stringquery.NewNamedArgs(q.params, args)
}

// Declare registers a query template under name. The template is the JSON of the "query"
// clause and may hold placeholders. It is tokenized here, so a strict resolver rejects
// undeclared named tokens before the query ever runs.
func (r *SearchRepository[T, ID]) Declare(name, template string, opts ...QueryOption) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("query name is required")
	}
	if strings.TrimSpace(template) == "" {
		return fmt.Errorf("query %s: template is required", name)
	}

	q := &declaredQuery{name: name, template: template}
	for _, opt := range opts {
		opt(q)
	}
	seen := make(map[string]struct{}, len(q.params))
	for _, param := range q.params {
		if strings.TrimSpace(param) == "" {
			return fmt.Errorf("query %s: parameter name is required", name)
		}
		if _, dup := seen[param]; dup {
			return fmt.Errorf("query %s: parameter %s declared twice", name, param)
		}
		seen[param] = struct{}{}
	}

	accessor, err := q.accessor(make([]any, len(q.params)))
	if err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if err := r.resolvers[q.mode()].Prepare(template, accessor); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.queries[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateQuery, name)
	}
	r.queries[name] = q
	return nil
}

// Resolve returns the request body of the declared query for args without running it.
func (r *SearchRepository[T, ID]) Resolve(name string, args ...any) (json.RawMessage, error) {
	q, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return r.resolve(q, args)
}

// FindByQuery runs the declared query and returns the matching entities.
func (r *SearchRepository[T, ID]) FindByQuery(ctx context.Context, name string, args ...any) ([]T, error) {
	hits, err := r.SearchHitsByQuery(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	return hits.Contents(), nil
}

// SearchHitsByQuery runs the declared query and returns the hits with their ids and scores.
func (r *SearchRepository[T, ID]) SearchHitsByQuery(ctx context.Context, name string, args ...any) (*SearchHits[T], error) {
	q, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	body, err := r.resolve(q, args)
	if err != nil {
		return nil, err
	}

	key := r.cacheKey(q, "_search", body)
	if raw, ok := r.cacheGet(ctx, key); ok {
		return decodeHits(raw, r.decode)
	}

	var raw json.RawMessage
	err = r.run(ctx, "string_query", tracing.SpanOperationStringQuery, q.spanOptions(body), func(ctx context.Context) error {
		var err error
		raw, err = r.client.Search(ctx, r.coords.IndexName(), body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}

	hits, err := decodeHits(raw, r.decode)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	r.cacheSet(ctx, key, raw, q.cacheTTL)
	return hits, nil
}

// CountByQuery returns the number of documents matching the declared query.
func (r *SearchRepository[T, ID]) CountByQuery(ctx context.Context, name string, args ...any) (int64, error) {
	q, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	body, err := r.resolve(q, args)
	if err != nil {
		return 0, err
	}

	key := r.cacheKey(q, "_count", body)
	if raw, ok := r.cacheGet(ctx, key); ok {
		if count, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			return count, nil
		}
	}

	var count int64
	err = r.run(ctx, "string_query_count", tracing.SpanOperationCount, q.spanOptions(body), func(ctx context.Context) error {
		var err error
		count, err = r.client.Count(ctx, r.coords.IndexName(), body)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", name, err)
	}
	r.cacheSet(ctx, key, []byte(strconv.FormatInt(count, 10)), q.cacheTTL)
	return count, nil
}

func (r *SearchRepository[T, ID]) lookup(name string) (*declaredQuery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queries[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, name)
	}
	return q, nil
}

// resolve substitutes args into the template and wraps the result as {"query": ...}.
func (r *SearchRepository[T, ID]) resolve(q *declaredQuery, args []any) (json.RawMessage, error) {
	mode := q.mode()
	resolver := r.resolvers[mode]

	accessor, err := q.accessor(args)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.name, err)
	}

	resolved, err := resolver.Resolve(q.template, accessor)
	metrics.RecordQueryResolution(mode.String(), err)
	if err != nil {
		return nil, fmt.Errorf("resolve query %s: %w", q.name, err)
	}
	if !json.Valid([]byte(resolved)) {
		return nil, fmt.Errorf("%w: query %s", ErrInvalidQuery, q.name)
	}

	body := json.RawMessage(`{"query":` + resolved + `}`)
	r.log.Debug("declared query resolved", "query", q.name, "mode", mode.String(), "body", string(body))
	return body, nil
}

func (q *declaredQuery) spanOptions(body json.RawMessage) []tracing.SearchSpanOption {
	return []tracing.SearchSpanOption{
		tracing.WithQueryName(q.name),
		tracing.WithPlaceholderMode(q.mode().String()),
		tracing.WithStatement(string(body)),
	}
}

func (r *SearchRepository[T, ID]) cacheKey(q *declaredQuery, endpoint string, body json.RawMessage) string {
	if r.cache == nil || q.cacheTTL <= 0 {
		return ""
	}
	return cache.Key(r.coords.IndexName()+"/"+endpoint, body)
}

func (r *SearchRepository[T, ID]) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if key == "" {
		return nil, false
	}
	ctx, span := tracing.StartCacheSpan(ctx, tracing.SpanOperationCacheGet, tracing.WithCacheSystem(r.cacheSystem()))
	raw, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		tracing.RecordCacheHit(span, true)
		tracing.End(span, nil)
		metrics.RecordCacheResult("hit")
		return raw, true
	case errors.Is(err, cache.ErrCacheMiss):
		tracing.RecordCacheHit(span, false)
		tracing.End(span, nil)
		metrics.RecordCacheResult("miss")
	default:
		tracing.End(span, err)
		metrics.RecordCacheResult("error")
		r.log.WithContext(ctx).Warn("query cache lookup failed", "error", err)
	}
	return nil, false
}

func (r *SearchRepository[T, ID]) cacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if key == "" {
		return
	}
	ctx, span := tracing.StartCacheSpan(ctx, tracing.SpanOperationCacheSet, tracing.WithCacheSystem(r.cacheSystem()))
	err := r.cache.Set(ctx, key, value, ttl)
	tracing.End(span, err)
	if err != nil {
		r.log.WithContext(ctx).Warn("query cache store failed", "error", err)
	}
}
