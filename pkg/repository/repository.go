package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/nimburion/searchrepo/pkg/cache"
	"github.com/nimburion/searchrepo/pkg/mapping"
	"github.com/nimburion/searchrepo/pkg/observability/logger"
	"github.com/nimburion/searchrepo/pkg/observability/metrics"
	"github.com/nimburion/searchrepo/pkg/observability/tracing"
	"github.com/nimburion/searchrepo/pkg/resilience"
	"github.com/nimburion/searchrepo/pkg/store/opensearch"
)

var (
	// ErrNotFound is returned when no document exists for the requested id.
	ErrNotFound = errors.New("entity not found")
	// ErrUnknownQuery is returned when a query name was never declared.
	ErrUnknownQuery = errors.New("unknown declared query")
	// ErrInvalidQuery is returned when a resolved query is not valid JSON.
	ErrInvalidQuery = errors.New("resolved query is not valid JSON")
	// ErrDuplicateQuery is returned when a query name is declared twice.
	ErrDuplicateQuery = errors.New("query already declared")
)

// Client is the subset of the search adapter used by the repository.
type Client interface {
	IndexDocument(ctx context.Context, index, id string, document interface{}, opts ...opensearch.RequestOption) error
	GetDocument(ctx context.Context, index, id string, opts ...opensearch.RequestOption) (*opensearch.GetResult, error)
	DeleteDocument(ctx context.Context, index, id string, opts ...opensearch.RequestOption) error
	Search(ctx context.Context, index string, query interface{}) (json.RawMessage, error)
	Count(ctx context.Context, index string, query interface{}) (int64, error)
	Refresh(ctx context.Context, index string) error
}

// SearchRepository stores entities of type T as documents of one index and runs declared
// string queries against it. It is safe for concurrent use.
type SearchRepository[T any, ID comparable] struct {
	client Client
	log    logger.Logger
	coords mapping.IndexCoordinates
	settings

	mu      sync.RWMutex
	queries map[string]*declaredQuery
}

var _ Repository[struct{ ID string }, string] = (*SearchRepository[struct{ ID string }, string])(nil)

// New creates a repository for T. The index comes from WithIndex or, when absent, from the
// mapping metadata of T.
func New[T any, ID comparable](client Client, log logger.Logger, opts ...Option) (*SearchRepository[T, ID], error) {
	if client == nil {
		return nil, errors.New("search client is required")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}

	coords := mapping.Of(s.indices...)
	if coords.IsZero() {
		meta, err := mapping.MetadataFor(reflect.TypeFor[T]())
		if err != nil {
			return nil, fmt.Errorf("resolve index of %s: %w", reflect.TypeFor[T](), err)
		}
		coords = meta.Coordinates()
	}

	return &SearchRepository[T, ID]{
		client:   client,
		log:      log.With("index", coords.IndexName()),
		coords:   coords,
		settings: s,
		queries:  make(map[string]*declaredQuery),
	}, nil
}

// Index returns the coordinates the repository reads from and writes to.
func (r *SearchRepository[T, ID]) Index() mapping.IndexCoordinates {
	return r.coords
}

// Save indexes entity, generating an id when its id field is empty. Versioned entities are
// written with external versioning and get their version bumped on success.
func (r *SearchRepository[T, ID]) Save(ctx context.Context, entity *T) error {
	if entity == nil {
		return errors.New("entity cannot be nil")
	}
	index, err := r.writeIndex()
	if err != nil {
		return err
	}

	current, versioned := entityVersion(entity)
	if versioned {
		if err := setEntityVersion(entity, current+1); err != nil {
			return err
		}
	}
	restore := func() {
		if versioned {
			_ = setEntityVersion(entity, current)
		}
	}

	id, source, err := mapping.ToDocument(entity)
	if err != nil {
		restore()
		return fmt.Errorf("failed to map entity to document: %w", err)
	}

	opts := r.writeOptions()
	if routing, ok := r.routing.EntityRouting(entity); ok {
		opts = append(opts, opensearch.WithRouting(routing))
	}
	if versioned {
		opts = append(opts, opensearch.WithExternalVersion(current+1))
	}

	err = r.run(ctx, "save", tracing.SpanOperationSave, []tracing.SearchSpanOption{tracing.WithDocumentID(id)}, func(ctx context.Context) error {
		return r.client.IndexDocument(ctx, index, id, source, opts...)
	})
	if err != nil {
		restore()
		if errors.Is(err, opensearch.ErrVersionConflict) {
			return NewOptimisticLockError(id, current, r.storedVersion(ctx, index, id))
		}
		return fmt.Errorf("failed to save entity %s: %w", id, err)
	}
	return nil
}

// SaveAll saves entities in order and stops at the first failure.
func (r *SearchRepository[T, ID]) SaveAll(ctx context.Context, entities []*T) error {
	for i, entity := range entities {
		if err := r.Save(ctx, entity); err != nil {
			return fmt.Errorf("save entity %d: %w", i, err)
		}
	}
	return nil
}

// FindByID fetches the entity with id, or ErrNotFound.
func (r *SearchRepository[T, ID]) FindByID(ctx context.Context, id ID) (*T, error) {
	docID, err := documentID(id)
	if err != nil {
		return nil, err
	}

	var result *opensearch.GetResult
	err = r.run(ctx, "find_by_id", tracing.SpanOperationGet, []tracing.SearchSpanOption{tracing.WithDocumentID(docID)}, func(ctx context.Context) error {
		var err error
		result, err = r.client.GetDocument(ctx, r.coords.IndexName(), docID, r.readOptions()...)
		return err
	})
	if err != nil {
		if errors.Is(err, opensearch.ErrDocumentNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, docID)
		}
		return nil, fmt.Errorf("failed to get entity %s: %w", docID, err)
	}

	entity, err := r.decode(result.ID, result.Source)
	if err != nil {
		return nil, err
	}
	if _, versioned := entityVersion(&entity); versioned && result.Version > 0 {
		if err := setEntityVersion(&entity, result.Version); err != nil {
			return nil, err
		}
	}
	return &entity, nil
}

// ExistsByID reports whether a document with id exists.
func (r *SearchRepository[T, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	_, err := r.FindByID(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// FindAll returns the entities matching opts. Filters are combined with AND logic.
func (r *SearchRepository[T, ID]) FindAll(ctx context.Context, opts QueryOptions) ([]T, error) {
	hits, err := r.search(ctx, "find_all", tracing.SpanOperationSearch, nil, searchBody(opts, r.defaultPageSize))
	if err != nil {
		return nil, err
	}
	return hits.Contents(), nil
}

// Count returns the number of documents matching filter. An empty filter counts every
// document.
func (r *SearchRepository[T, ID]) Count(ctx context.Context, filter Filter) (int64, error) {
	var query interface{}
	if len(filter) > 0 {
		query = map[string]any{"query": filterQuery(filter)}
	}

	var count int64
	err := r.run(ctx, "count", tracing.SpanOperationCount, nil, func(ctx context.Context) error {
		var err error
		count, err = r.client.Count(ctx, r.coords.IndexName(), query)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return count, nil
}

// DeleteByID removes the document with id. Deleting a missing document is not an error.
func (r *SearchRepository[T, ID]) DeleteByID(ctx context.Context, id ID) error {
	docID, err := documentID(id)
	if err != nil {
		return err
	}
	return r.delete(ctx, docID, append(r.writeOptions(), r.readOptions()...))
}

// Delete removes the document of entity, routed like its writes.
func (r *SearchRepository[T, ID]) Delete(ctx context.Context, entity *T) error {
	if entity == nil {
		return errors.New("entity cannot be nil")
	}
	docID, ok, err := mapping.EntityID(entity)
	if err != nil {
		return err
	}
	if !ok {
		return mapping.ErrMissingID
	}
	opts := r.writeOptions()
	if routing, ok := r.routing.EntityRouting(entity); ok {
		opts = append(opts, opensearch.WithRouting(routing))
	}
	return r.delete(ctx, docID, opts)
}

// Refresh makes recent writes visible to search.
func (r *SearchRepository[T, ID]) Refresh(ctx context.Context) error {
	return r.run(ctx, "refresh", tracing.SpanOperationRefresh, nil, func(ctx context.Context) error {
		return r.client.Refresh(ctx, r.coords.IndexName())
	})
}

func (r *SearchRepository[T, ID]) delete(ctx context.Context, docID string, opts []opensearch.RequestOption) error {
	index, err := r.writeIndex()
	if err != nil {
		return err
	}
	err = r.run(ctx, "delete", tracing.SpanOperationDelete, []tracing.SearchSpanOption{tracing.WithDocumentID(docID)}, func(ctx context.Context) error {
		return r.client.DeleteDocument(ctx, index, docID, opts...)
	})
	if err != nil {
		return fmt.Errorf("failed to delete entity %s: %w", docID, err)
	}
	return nil
}

func (r *SearchRepository[T, ID]) search(ctx context.Context, operation string, span tracing.SpanOperation, spanOpts []tracing.SearchSpanOption, body any) (*SearchHits[T], error) {
	var raw json.RawMessage
	err := r.run(ctx, operation, span, spanOpts, func(ctx context.Context) error {
		var err error
		raw, err = r.client.Search(ctx, r.coords.IndexName(), body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}
	return decodeHits(raw, r.decode)
}

// run traces, measures and guards one cluster call.
func (r *SearchRepository[T, ID]) run(ctx context.Context, operation string, op tracing.SpanOperation, spanOpts []tracing.SearchSpanOption, fn func(context.Context) error) (err error) {
	start := time.Now()
	ctx, span := tracing.StartSearchSpan(ctx, op, append([]tracing.SearchSpanOption{tracing.WithIndex(r.coords.IndexName())}, spanOpts...)...)
	defer func() {
		outcome := err
		if errors.Is(err, opensearch.ErrDocumentNotFound) {
			outcome = nil
		}
		tracing.End(span, outcome)
		metrics.RecordOperation(operation, outcome, time.Since(start))
		if outcome != nil {
			r.log.WithContext(ctx).Error("search operation failed", "operation", operation, "error", err)
		}
	}()

	guarded := func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, r.timeout, fn)
	}
	if r.breaker == nil {
		return guarded(ctx)
	}

	var expected error
	err = r.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
		err := guarded(ctx)
		if isExpected(err) {
			expected = err
			return nil
		}
		return err
	})
	if expected != nil {
		return expected
	}
	return err
}

// isExpected reports errors that say nothing about cluster health.
func isExpected(err error) bool {
	return errors.Is(err, opensearch.ErrDocumentNotFound) || errors.Is(err, opensearch.ErrVersionConflict)
}

func (r *SearchRepository[T, ID]) decode(id string, source json.RawMessage) (T, error) {
	var entity T
	if raw, ok := any(&entity).(*json.RawMessage); ok {
		*raw = append(json.RawMessage(nil), source...)
		return entity, nil
	}
	if err := mapping.FromSource(id, source, &entity); err != nil {
		return entity, err
	}
	return entity, nil
}

func (r *SearchRepository[T, ID]) storedVersion(ctx context.Context, index, id string) int64 {
	result, err := r.client.GetDocument(ctx, index, id, r.readOptions()...)
	if err != nil {
		return -1
	}
	return result.Version
}

func (r *SearchRepository[T, ID]) writeIndex() (string, error) {
	names := r.coords.IndexNames()
	if len(names) != 1 {
		return "", fmt.Errorf("writes require exactly one index, got %s", r.coords)
	}
	return names[0], nil
}

func (r *SearchRepository[T, ID]) writeOptions() []opensearch.RequestOption {
	var opts []opensearch.RequestOption
	if r.refresh != "" {
		opts = append(opts, opensearch.WithRefresh(r.refresh))
	}
	return opts
}

func (r *SearchRepository[T, ID]) readOptions() []opensearch.RequestOption {
	if routing := r.routing.Routing(); routing != "" {
		return []opensearch.RequestOption{opensearch.WithRouting(routing)}
	}
	return nil
}

func (r *SearchRepository[T, ID]) cacheSystem() string {
	switch r.cache.(type) {
	case *cache.RedisStore:
		return "redis"
	case *cache.InMemoryStore:
		return "inmemory"
	default:
		return "custom"
	}
}

func documentID(id any) (string, error) {
	docID, ok := mapping.StringIDRepresentation(id)
	if !ok || docID == "" {
		return "", mapping.ErrMissingID
	}
	return docID, nil
}
