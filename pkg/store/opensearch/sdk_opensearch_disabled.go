//go:build !opensearch_sdk

package opensearch

import "github.com/nimburion/searchrepo/pkg/observability/logger"

// OpenSearchSDKAdapter needs the opensearch_sdk build tag.
type OpenSearchSDKAdapter struct {
	operations
}

// NewOpenSearchSDKAdapter always fails in builds without the opensearch_sdk tag.
func NewOpenSearchSDKAdapter(Config, logger.Logger) (*OpenSearchSDKAdapter, error) {
	return nil, sdkDisabled("opensearch-sdk", "opensearch_sdk")
}

func (a *OpenSearchSDKAdapter) Close() error { return nil }
