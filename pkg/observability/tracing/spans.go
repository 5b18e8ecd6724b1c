package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used for repository spans.
const InstrumentationName = "github.com/nimburion/searchrepo"

// SpanOperation represents a traced operation type.
type SpanOperation string

// Span operation constants
const (
	SpanOperationSave        SpanOperation = "search.save"
	SpanOperationGet         SpanOperation = "search.get"
	SpanOperationDelete      SpanOperation = "search.delete"
	SpanOperationSearch      SpanOperation = "search.search"
	SpanOperationCount       SpanOperation = "search.count"
	SpanOperationStringQuery SpanOperation = "search.string_query"
	SpanOperationRefresh     SpanOperation = "search.refresh"

	SpanOperationCacheGet SpanOperation = "cache.get"
	SpanOperationCacheSet SpanOperation = "cache.set"
)

// StartSearchSpan creates a client span for a search cluster operation.
// The span is named after the operation and, when set, the index.
func StartSearchSpan(ctx context.Context, operation SpanOperation, opts ...SearchSpanOption) (context.Context, trace.Span) {
	spanOpts := &searchSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("db.system", "elasticsearch"),
			attribute.String("db.operation", string(operation)),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := fmt.Sprintf("SEARCH %s", operation)
	if spanOpts.index != "" {
		spanName = fmt.Sprintf("SEARCH %s %s", operation, spanOpts.index)
	}

	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// SearchSpanOption configures a search span.
type SearchSpanOption func(*searchSpanOptions)

type searchSpanOptions struct {
	index      string
	attributes []attribute.KeyValue
}

// WithIndex sets the target index.
func WithIndex(index string) SearchSpanOption {
	return func(opts *searchSpanOptions) {
		opts.index = index
		opts.attributes = append(opts.attributes, attribute.String("db.elasticsearch.path_parts.index", index))
	}
}

// WithQueryName sets the name of the declared query being executed.
func WithQueryName(name string) SearchSpanOption {
	return func(opts *searchSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("searchrepo.query.name", name))
	}
}

// WithPlaceholderMode sets the placeholder mode of the declared query.
func WithPlaceholderMode(mode string) SearchSpanOption {
	return func(opts *searchSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("searchrepo.query.mode", mode))
	}
}

// WithStatement records the resolved query body. Bound values end up in the span, so
// callers only pass it when statements may be exported.
func WithStatement(statement string) SearchSpanOption {
	return func(opts *searchSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.statement", statement))
	}
}

// WithDocumentID sets the document id.
func WithDocumentID(id string) SearchSpanOption {
	return func(opts *searchSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("searchrepo.document.id", id))
	}
}

// StartCacheSpan creates a new span for a result cache operation.
func StartCacheSpan(ctx context.Context, operation SpanOperation, opts ...CacheSpanOption) (context.Context, trace.Span) {
	spanOpts := &cacheSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("cache.operation", string(operation)),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, fmt.Sprintf("CACHE %s", operation), trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// CacheSpanOption configures a cache span.
type CacheSpanOption func(*cacheSpanOptions)

type cacheSpanOptions struct {
	attributes []attribute.KeyValue
}

// WithCacheSystem sets the cache system (e.g., "redis", "inmemory").
func WithCacheSystem(system string) CacheSpanOption {
	return func(opts *cacheSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("cache.system", system))
	}
}

// RecordCacheHit marks a cache lookup span as a hit or a miss.
func RecordCacheHit(span trace.Span, hit bool) {
	span.SetAttributes(attribute.Bool("cache.hit", hit))
}

// RecordError records err on span and marks it failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess sets the span status to OK.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// End records the outcome of err and ends span.
func End(span trace.Span, err error) {
	if err != nil {
		RecordError(span, err)
	} else {
		RecordSuccess(span)
	}
	span.End()
}
