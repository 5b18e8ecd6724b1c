package store

import (
	"context"
	"encoding/json"

	"github.com/nimburion/searchrepo/pkg/store/opensearch"
)

// Adapter is the minimal lifecycle and health contract for storage adapters.
type Adapter interface {
	HealthCheck(ctx context.Context) error
	Close() error
}

// Client is the document and index contract every search adapter implements.
type Client interface {
	Adapter
	Ping(ctx context.Context) error
	IndexDocument(ctx context.Context, index, id string, document interface{}, opts ...opensearch.RequestOption) error
	GetDocument(ctx context.Context, index, id string, opts ...opensearch.RequestOption) (*opensearch.GetResult, error)
	DeleteDocument(ctx context.Context, index, id string, opts ...opensearch.RequestOption) error
	Search(ctx context.Context, index string, query interface{}) (json.RawMessage, error)
	Count(ctx context.Context, index string, query interface{}) (int64, error)
	CreateIndex(ctx context.Context, index string, body interface{}) error
	DeleteIndex(ctx context.Context, index string) error
	IndexExists(ctx context.Context, index string) (bool, error)
	Refresh(ctx context.Context, index string) error
	Info(ctx context.Context) (*opensearch.ClusterInfo, error)
}

var (
	_ Client = (*opensearch.Adapter)(nil)
	_ Client = (*opensearch.OpenSearchSDKAdapter)(nil)
	_ Client = (*opensearch.ElasticsearchSDKAdapter)(nil)
)
