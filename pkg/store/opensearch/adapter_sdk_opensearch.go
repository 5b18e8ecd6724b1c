//go:build opensearch_sdk

package opensearch

import (
	"context"
	"fmt"
	"net/http"

	opensearchsdk "github.com/opensearch-project/opensearch-go/v4"
	awssigner "github.com/opensearch-project/opensearch-go/v4/signer/awsv2"

	"github.com/nimburion/searchrepo/pkg/observability/logger"
)

// OpenSearchSDKAdapter runs the shared operations on top of the official OpenSearch client.
type OpenSearchSDKAdapter struct {
	operations

	client    *opensearchsdk.Client
	transport *http.Transport
	logger    logger.Logger
}

// NewOpenSearchSDKAdapter builds the client from cfg and pings the cluster once. SigV4
// signing goes through the client's own AWS signer.
func NewOpenSearchSDKAdapter(cfg Config, log logger.Logger) (*OpenSearchSDKAdapter, error) {
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
	osCfg := opensearchsdk.Config{
		Addresses:     addresses,
		Transport:     base,
		RetryOnStatus: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
		MaxRetries:    len(addresses),
	}
	switch {
	case cfg.AWSAuthEnabled:
		awsCfg, err := awsConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s, err := awssigner.NewSignerWithService(awsCfg, cfg.AWSService)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS signer: %w", err)
		}
		osCfg.Signer = s
	case cfg.APIKey != "":
		osCfg.Header = http.Header{"Authorization": []string{"ApiKey " + cfg.APIKey}}
	default:
		osCfg.Username = cfg.Username
		osCfg.Password = cfg.Password
	}

	client, err := opensearchsdk.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	adapter := &OpenSearchSDKAdapter{client: client, transport: base, logger: log}
	adapter.operations = operations{perform: adapter.perform, label: "opensearch"}
	if err := connect(ctx, adapter.operations, adapter); err != nil {
		return nil, err
	}
	log.Info("search connection established",
		"driver", "opensearch-sdk",
		"nodes", len(addresses),
		"aws_auth_enabled", cfg.AWSAuthEnabled,
	)
	return adapter, nil
}

// Close releases idle connections.
func (a *OpenSearchSDKAdapter) Close() error {
	a.transport.CloseIdleConnections()
	return nil
}

func (a *OpenSearchSDKAdapter) perform(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := newJSONRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Perform(req)
	if err != nil {
		return nil, fmt.Errorf("opensearch request failed: %w", err)
	}
	return resp, nil
}
