package opensearch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/nimburion/searchrepo/pkg/observability/logger"
)

const userAgent = "searchrepo/1.0"

// Adapter talks to OpenSearch/Elasticsearch over plain HTTP. Requests start on the next
// node in round-robin order and move on to the following node when one is unreachable or
// answers 502, 503 or 504.
type Adapter struct {
	operations

	nodes     []url.URL
	next      atomic.Uint64
	client    *http.Client
	transport *http.Transport
	logger    logger.Logger
}

// NewAdapter connects to the configured nodes and pings the cluster once.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	nodes, err := cfg.nodes()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	base := cfg.transport()
	rt, err := authTransport(ctx, base, cfg)
	if err != nil {
		return nil, err
	}

	adapter := &Adapter{
		nodes:     nodes,
		client:    &http.Client{Transport: rt, Timeout: cfg.OperationTimeout},
		transport: base,
		logger:    log,
	}
	adapter.operations = operations{perform: adapter.request, label: "search"}

	if err := connect(ctx, adapter.operations, adapter); err != nil {
		return nil, err
	}
	log.Info("search connection established",
		"driver", "http",
		"nodes", len(nodes),
		"aws_auth_enabled", cfg.AWSAuthEnabled,
		"max_conns", cfg.MaxConns,
		"operation_timeout", cfg.OperationTimeout,
	)
	return adapter, nil
}

// HealthCheck verifies the cluster health endpoint within a short deadline.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := a.operations.HealthCheck(ctx); err != nil {
		a.logger.Error("search health check failed", "error", err)
		return err
	}
	return nil
}

// Close releases idle connections.
func (a *Adapter) Close() error {
	a.logger.Debug("closing search connections")
	a.transport.CloseIdleConnections()
	return nil
}

func (a *Adapter) request(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	start := int((a.next.Add(1) - 1) % uint64(len(a.nodes)))
	var lastErr error
	for attempt := range len(a.nodes) {
		node := a.nodes[(start+attempt)%len(a.nodes)]
		target, err := resolve(node, path)
		if err != nil {
			return nil, err
		}
		req, err := newJSONRequest(ctx, method, target, body)
		if err != nil {
			return nil, err
		}
		resp, err := a.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request to %s failed: %w", node.Host, err)
			continue
		}
		if retryable(resp.StatusCode) && attempt < len(a.nodes)-1 {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("node %s returned retryable status %d", node.Host, resp.StatusCode)
			a.logger.Debug("retrying on next search node", "node", node.Host, "status", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

// newJSONRequest builds a request carrying an optional JSON body.
func newJSONRequest(ctx context.Context, method, target string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// connect pings the cluster and closes c when it does not answer.
func connect(ctx context.Context, ops operations, c io.Closer) error {
	if err := ops.Ping(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to ping %s cluster: %w", ops.label, err)
	}
	return nil
}

// resolve joins a request path, which may carry a query string, onto a node URL.
func resolve(node url.URL, path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	rel, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", path, err)
	}
	prefix := strings.TrimSuffix(node.EscapedPath(), "/")
	node.Path = strings.TrimSuffix(node.Path, "/") + rel.Path
	node.RawPath = prefix + rel.EscapedPath()
	node.RawQuery = rel.RawQuery
	return node.String(), nil
}

func retryable(status int) bool {
	return status == http.StatusBadGateway || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout
}
