//go:build elasticsearch_sdk

package opensearch

import (
	"context"
	"fmt"
	"net/http"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"

	"github.com/nimburion/searchrepo/pkg/observability/logger"
)

// ElasticsearchSDKAdapter runs the shared operations on top of the official Elasticsearch
// client, which brings node discovery and its own retry policy.
type ElasticsearchSDKAdapter struct {
	operations

	client    *elasticsearch.Client
	transport *http.Transport
	logger    logger.Logger
}

// NewElasticsearchSDKAdapter builds the client from cfg and pings the cluster once.
func NewElasticsearchSDKAdapter(cfg Config, log logger.Logger) (*ElasticsearchSDKAdapter, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	addresses, err := cfg.addresses()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	base := cfg.transport()
	esCfg := elasticsearch.Config{
		Addresses:     addresses,
		Username:      cfg.Username,
		Password:      cfg.Password,
		APIKey:        cfg.APIKey,
		Transport:     base,
		RetryOnStatus: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
		MaxRetries:    len(addresses),
	}
	if cfg.AWSAuthEnabled {
		signing, err := newSigningTransport(ctx, base, cfg)
		if err != nil {
			return nil, err
		}
		esCfg.Transport = signing
		esCfg.Username, esCfg.Password, esCfg.APIKey = "", "", ""
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	adapter := &ElasticsearchSDKAdapter{client: client, transport: base, logger: log}
	adapter.operations = operations{perform: adapter.perform, label: "elasticsearch"}
	if err := connect(ctx, adapter.operations, adapter); err != nil {
		return nil, err
	}
	log.Info("search connection established",
		"driver", "elasticsearch-sdk",
		"nodes", len(addresses),
		"aws_auth_enabled", cfg.AWSAuthEnabled,
	)
	return adapter, nil
}

// Close releases idle connections.
func (a *ElasticsearchSDKAdapter) Close() error {
	a.transport.CloseIdleConnections()
	return nil
}

func (a *ElasticsearchSDKAdapter) perform(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := newJSONRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Perform(req)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch request failed: %w", err)
	}
	return resp, nil
}
