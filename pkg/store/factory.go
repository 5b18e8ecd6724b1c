package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nimburion/searchrepo/pkg/config"
	"github.com/nimburion/searchrepo/pkg/observability/logger"
	"github.com/nimburion/searchrepo/pkg/store/opensearch"
)

// NewSearchAdapter selects and initializes a search adapter from config.
// Without a search.type nothing is connected and an error is returned.
func NewSearchAdapter(cfg config.SearchConfig, log logger.Logger) (Client, error) {
	searchType := strings.ToLower(strings.TrimSpace(cfg.Type))
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = config.SearchDriverHTTP
	}

	switch searchType {
	case config.SearchTypeOpenSearch, config.SearchTypeElasticsearch:
	case "":
		return nil, errors.New("search.type is required (supported: opensearch, elasticsearch)")
	default:
		return nil, fmt.Errorf("unsupported search.type %q (supported: opensearch, elasticsearch)", cfg.Type)
	}

	adapterCfg := adapterConfig(cfg)
	switch driver {
	case config.SearchDriverHTTP:
		adapter, err := opensearch.NewAdapter(adapterCfg, log)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case config.SearchDriverOpenSearchSDK:
		if searchType != config.SearchTypeOpenSearch {
			return nil, fmt.Errorf("search.driver %q requires search.type opensearch", cfg.Driver)
		}
		adapter, err := opensearch.NewOpenSearchSDKAdapter(adapterCfg, log)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case config.SearchDriverElasticsearchSDK:
		if searchType != config.SearchTypeElasticsearch {
			return nil, fmt.Errorf("search.driver %q requires search.type elasticsearch", cfg.Driver)
		}
		adapter, err := opensearch.NewElasticsearchSDKAdapter(adapterCfg, log)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("unsupported search.driver %q (supported: http, opensearch-sdk, elasticsearch-sdk)", cfg.Driver)
	}
}

func adapterConfig(cfg config.SearchConfig) opensearch.Config {
	return opensearch.Config{
		URL:              cfg.URL,
		URLs:             cfg.URLs,
		Username:         cfg.Username,
		Password:         cfg.Password,
		APIKey:           cfg.APIKey,
		AWSAuthEnabled:   cfg.AWSAuthEnabled,
		AWSRegion:        cfg.AWSRegion,
		AWSService:       cfg.AWSService,
		AWSAccessKeyID:   cfg.AWSAccessKeyID,
		AWSSecretKey:     cfg.AWSSecretKey,
		AWSSessionToken:  cfg.AWSSessionToken,
		MaxConns:         cfg.MaxConns,
		OperationTimeout: cfg.OperationTimeout,
	}
}
