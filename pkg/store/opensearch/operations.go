package opensearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrDocumentNotFound is returned by GetDocument when the index holds no document with the ID.
var ErrDocumentNotFound = errors.New("search document not found")

// ErrVersionConflict is returned by IndexDocument when the cluster rejects the write with 409.
var ErrVersionConflict = errors.New("search document version conflict")

// GetResult is a single document fetched by ID.
type GetResult struct {
	Index       string          `json:"_index"`
	ID          string          `json:"_id"`
	Version     int64           `json:"_version"`
	SeqNo       int64           `json:"_seq_no"`
	PrimaryTerm int64           `json:"_primary_term"`
	Routing     string          `json:"_routing,omitempty"`
	Found       bool            `json:"found"`
	Source      json.RawMessage `json:"_source"`
}

// ClusterInfo is the answer of the cluster root endpoint.
type ClusterInfo struct {
	Name        string `json:"name"`
	ClusterName string `json:"cluster_name"`
	Version     struct {
		Number       string `json:"number"`
		Distribution string `json:"distribution"`
	} `json:"version"`
}

// RequestOption sets URL parameters on a document request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	routing string
	refresh string
	version int64
}

// WithRouting routes the request to the shard owning the given routing value.
func WithRouting(routing string) RequestOption {
	return func(o *requestOptions) {
		o.routing = routing
	}
}

// WithRefresh sets the refresh policy of a write: "true", "false" or "wait_for".
func WithRefresh(policy string) RequestOption {
	return func(o *requestOptions) {
		o.refresh = policy
	}
}

// WithExternalVersion writes the document with version_type=external. The cluster rejects
// the write when the stored version is not lower than version.
func WithExternalVersion(version int64) RequestOption {
	return func(o *requestOptions) {
		o.version = version
	}
}

func (o requestOptions) encode(path string) string {
	values := url.Values{}
	if o.routing != "" {
		values.Set("routing", o.routing)
	}
	if o.refresh != "" {
		values.Set("refresh", o.refresh)
	}
	if o.version > 0 {
		values.Set("version", strconv.FormatInt(o.version, 10))
		values.Set("version_type", "external")
	}
	if len(values) == 0 {
		return path
	}
	return path + "?" + values.Encode()
}

func applyOptions(opts []RequestOption) requestOptions {
	var o requestOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// performFunc sends one request to the cluster. Each adapter supplies its own transport.
type performFunc func(ctx context.Context, method, path string, body []byte) (*http.Response, error)

// operations implements the document and index API on top of a performFunc, so the
// raw HTTP adapter and the SDK-backed adapters expose identical behaviour.
type operations struct {
	perform performFunc
	label   string
}

// Ping verifies the cluster answers its root endpoint.
func (o operations) Ping(ctx context.Context) error {
	resp, err := o.perform(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return o.statusError("ping", resp)
	}
	return nil
}

// Info returns the cluster name and version. Elasticsearch leaves Distribution empty.
func (o operations) Info(ctx context.Context) (*ClusterInfo, error) {
	resp, err := o.perform(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, o.statusError("info", resp)
	}
	var info ClusterInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode info response: %w", err)
	}
	return &info, nil
}

// HealthCheck verifies the cluster health endpoint answers without error.
func (o operations) HealthCheck(ctx context.Context) error {
	resp, err := o.perform(ctx, http.MethodGet, "/_cluster/health?local=true", nil)
	if err != nil {
		return fmt.Errorf("%s health check failed: %w", o.label, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return o.statusError("health check", resp)
	}
	return nil
}

// IndexDocument creates or replaces a JSON document by ID.
func (o operations) IndexDocument(ctx context.Context, index, id string, document interface{}, opts ...RequestOption) error {
	if err := requireIndexAndID(index, id); err != nil {
		return err
	}
	payload, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	resp, err := o.perform(ctx, http.MethodPut, applyOptions(opts).encode(documentPath(index, id)), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("%w: %v", ErrVersionConflict, o.statusError("index document", resp))
	}
	if !isSuccess(resp.StatusCode) {
		return o.statusError("index document", resp)
	}
	return nil
}

// GetDocument fetches a document by ID. A missing document or index yields ErrDocumentNotFound.
func (o operations) GetDocument(ctx context.Context, index, id string, opts ...RequestOption) (*GetResult, error) {
	if err := requireIndexAndID(index, id); err != nil {
		return nil, err
	}

	resp, err := o.perform(ctx, http.MethodGet, applyOptions(opts).encode(documentPath(index, id)), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, index, id)
	}
	if !isSuccess(resp.StatusCode) {
		return nil, o.statusError("get document", resp)
	}

	var result GetResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode get response: %w", err)
	}
	if !result.Found {
		return nil, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, index, id)
	}
	return &result, nil
}

// DeleteDocument deletes a document by ID. Deleting a missing document is not an error.
func (o operations) DeleteDocument(ctx context.Context, index, id string, opts ...RequestOption) error {
	if err := requireIndexAndID(index, id); err != nil {
		return err
	}

	resp, err := o.perform(ctx, http.MethodDelete, applyOptions(opts).encode(documentPath(index, id)), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if !isSuccess(resp.StatusCode) {
		return o.statusError("delete document", resp)
	}
	return nil
}

// Search executes a query body and returns the raw JSON response.
func (o operations) Search(ctx context.Context, index string, query interface{}) (json.RawMessage, error) {
	if strings.TrimSpace(index) == "" {
		return nil, fmt.Errorf("index is required")
	}
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	resp, err := o.perform(ctx, http.MethodPost, "/"+escapeIndex(index)+"/_search", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("%s search failed: status %d: %s", o.label, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.RawMessage(body), nil
}

// Count returns the number of documents matching the query body. A nil query counts everything.
func (o operations) Count(ctx context.Context, index string, query interface{}) (int64, error) {
	if strings.TrimSpace(index) == "" {
		return 0, fmt.Errorf("index is required")
	}
	var payload []byte
	if query != nil {
		var err error
		if payload, err = json.Marshal(query); err != nil {
			return 0, fmt.Errorf("failed to marshal query: %w", err)
		}
	}

	method := http.MethodGet
	if payload != nil {
		method = http.MethodPost
	}
	resp, err := o.perform(ctx, method, "/"+escapeIndex(index)+"/_count", payload)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return 0, o.statusError("count", resp)
	}

	var out struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}
	return out.Count, nil
}

// CreateIndex creates an index with optional settings and mappings.
func (o operations) CreateIndex(ctx context.Context, index string, body interface{}) error {
	if strings.TrimSpace(index) == "" {
		return fmt.Errorf("index is required")
	}
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal index definition: %w", err)
		}
	}

	resp, err := o.perform(ctx, http.MethodPut, "/"+escapeIndex(index), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return o.statusError("create index", resp)
	}
	return nil
}

// DeleteIndex deletes an index. A missing index is not an error.
func (o operations) DeleteIndex(ctx context.Context, index string) error {
	if strings.TrimSpace(index) == "" {
		return fmt.Errorf("index is required")
	}
	resp, err := o.perform(ctx, http.MethodDelete, "/"+escapeIndex(index), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if !isSuccess(resp.StatusCode) {
		return o.statusError("delete index", resp)
	}
	return nil
}

// IndexExists reports whether the index exists.
func (o operations) IndexExists(ctx context.Context, index string) (bool, error) {
	if strings.TrimSpace(index) == "" {
		return false, fmt.Errorf("index is required")
	}
	resp, err := o.perform(ctx, http.MethodHead, "/"+escapeIndex(index), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case isSuccess(resp.StatusCode):
		return true, nil
	default:
		return false, o.statusError("index exists", resp)
	}
}

// Refresh makes recent writes to the index visible to search.
func (o operations) Refresh(ctx context.Context, index string) error {
	if strings.TrimSpace(index) == "" {
		return fmt.Errorf("index is required")
	}
	resp, err := o.perform(ctx, http.MethodPost, "/"+escapeIndex(index)+"/_refresh", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return o.statusError("refresh", resp)
	}
	return nil
}

func (o operations) statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("%s %s failed: status %d: %s", o.label, op, resp.StatusCode, strings.TrimSpace(string(body)))
}

func requireIndexAndID(index, id string) error {
	if strings.TrimSpace(index) == "" {
		return fmt.Errorf("index is required")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("document id is required")
	}
	return nil
}

func documentPath(index, id string) string {
	return "/" + escapeIndex(index) + "/_doc/" + url.PathEscape(id)
}

// escapeIndex keeps the comma separating multiple index names.
func escapeIndex(index string) string {
	parts := strings.Split(index, ",")
	for i, p := range parts {
		parts[i] = url.PathEscape(strings.TrimSpace(p))
	}
	return strings.Join(parts, ",")
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
