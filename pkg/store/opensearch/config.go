package opensearch

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultMaxConns         = 10
	defaultOperationTimeout = 5 * time.Second
	defaultAWSService       = "es"
	connectTimeout          = 5 * time.Second
	healthCheckTimeout      = 2 * time.Second
	idleConnTimeout         = 90 * time.Second
)

// ErrNoNodes is returned when neither URL nor URLs name a cluster node.
var ErrNoNodes = errors.New("opensearch URL is required (or configure URLs)")

// Config holds OpenSearch/Elasticsearch adapter configuration.
type Config struct {
	URL              string
	URLs             []string
	Username         string
	Password         string
	APIKey           string
	AWSAuthEnabled   bool
	AWSRegion        string
	AWSService       string
	AWSAccessKeyID   string
	AWSSecretKey     string
	AWSSessionToken  string
	MaxConns         int
	OperationTimeout time.Duration
}

// normalized fills in defaults and rejects incomplete AWS settings.
func (c Config) normalized() (Config, error) {
	if c.MaxConns <= 0 {
		c.MaxConns = defaultMaxConns
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultOperationTimeout
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	if !c.AWSAuthEnabled {
		return c, nil
	}
	if strings.TrimSpace(c.AWSRegion) == "" {
		return c, errors.New("aws region is required when AWS auth is enabled")
	}
	if strings.TrimSpace(c.AWSService) == "" {
		c.AWSService = defaultAWSService
	}
	hasKey := strings.TrimSpace(c.AWSAccessKeyID) != ""
	hasSecret := strings.TrimSpace(c.AWSSecretKey) != ""
	if hasKey != hasSecret {
		return c, errors.New("both AWS access key id and secret access key are required when using static AWS credentials")
	}
	return c, nil
}

// nodes returns the distinct node URLs, URL first.
func (c Config) nodes() ([]url.URL, error) {
	candidates := append([]string{c.URL}, c.URLs...)
	nodes := make([]url.URL, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse search URL %q: %w", raw, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid search URL: %s", raw)
		}
		if seen[u.String()] {
			continue
		}
		seen[u.String()] = true
		nodes = append(nodes, *u)
	}
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	return nodes, nil
}

// addresses returns the distinct node URLs as strings, the form the SDK clients accept.
func (c Config) addresses() ([]string, error) {
	nodes, err := c.nodes()
	if err != nil {
		return nil, err
	}
	addresses := make([]string, len(nodes))
	for i, u := range nodes {
		addresses[i] = u.String()
	}
	return addresses, nil
}

func (c Config) transport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        c.MaxConns,
		MaxIdleConnsPerHost: c.MaxConns,
		MaxConnsPerHost:     c.MaxConns,
		IdleConnTimeout:     idleConnTimeout,
	}
}
