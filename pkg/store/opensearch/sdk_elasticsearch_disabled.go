//go:build !elasticsearch_sdk

package opensearch

import "github.com/nimburion/searchrepo/pkg/observability/logger"

// ElasticsearchSDKAdapter needs the elasticsearch_sdk build tag.
type ElasticsearchSDKAdapter struct {
	operations
}

// NewElasticsearchSDKAdapter always fails in builds without the elasticsearch_sdk tag.
func NewElasticsearchSDKAdapter(Config, logger.Logger) (*ElasticsearchSDKAdapter, error) {
	return nil, sdkDisabled("elasticsearch-sdk", "elasticsearch_sdk")
}

func (a *ElasticsearchSDKAdapter) Close() error { return nil }
