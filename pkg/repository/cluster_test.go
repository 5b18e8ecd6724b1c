package repository

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nimburion/searchrepo/pkg/observability/logger"
	"github.com/nimburion/searchrepo/pkg/store/opensearch"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   string
}

type storedDoc struct {
	source  json.RawMessage
	version int64
	routing string
}

// memoryCluster emulates the document, search and count endpoints of a search cluster.
// Searches return every document of the index in id order.
type memoryCluster struct {
	mu         sync.Mutex
	docs       map[string]map[string]*storedDoc
	requests   []recordedRequest
	failSearch bool
}

func newMemoryCluster() *memoryCluster {
	return &memoryCluster{docs: make(map[string]map[string]*storedDoc)}
}

func (c *memoryCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		w.WriteHeader(http.StatusOK)
		return
	}
	body, _ := io.ReadAll(r.Body)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, recordedRequest{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		body:   string(body),
	})

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	index := parts[0]
	switch {
	case len(parts) == 3 && parts[1] == "_doc":
		c.document(w, r, index, parts[2], body)
	case len(parts) == 2 && parts[1] == "_search":
		if c.failSearch {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
			return
		}
		c.search(w, index)
	case len(parts) == 2 && parts[1] == "_count":
		writeJSON(w, http.StatusOK, map[string]any{"count": len(c.docs[index])})
	case len(parts) == 2 && parts[1] == "_refresh":
		writeJSON(w, http.StatusOK, map[string]any{})
	default:
		http.NotFound(w, r)
	}
}

func (c *memoryCluster) document(w http.ResponseWriter, r *http.Request, index, id string, body []byte) {
	docs := c.docs[index]
	switch r.Method {
	case http.MethodPut:
		if docs == nil {
			docs = make(map[string]*storedDoc)
			c.docs[index] = docs
		}
		current := docs[id]
		version := int64(1)
		if current != nil {
			version = current.version + 1
		}
		if raw := r.URL.Query().Get("version"); raw != "" {
			requested, _ := strconv.ParseInt(raw, 10, 64)
			if current != nil && current.version >= requested {
				writeJSON(w, http.StatusConflict, map[string]any{"error": "version_conflict_engine_exception"})
				return
			}
			version = requested
		}
		docs[id] = &storedDoc{source: body, version: version, routing: r.URL.Query().Get("routing")}
		writeJSON(w, http.StatusCreated, map[string]any{"_id": id, "_version": version, "result": "created"})
	case http.MethodGet:
		doc, ok := docs[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"_index": index, "_id": id, "found": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"_index":   index,
			"_id":      id,
			"_version": doc.version,
			"found":    true,
			"_source":  doc.source,
		})
	case http.MethodDelete:
		if _, ok := docs[id]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"result": "not_found"})
			return
		}
		delete(docs, id)
		writeJSON(w, http.StatusOK, map[string]any{"result": "deleted"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (c *memoryCluster) search(w http.ResponseWriter, index string) {
	docs := c.docs[index]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	hits := make([]map[string]any, 0, len(ids))
	for i, id := range ids {
		hit := map[string]any{
			"_index":  index,
			"_id":     id,
			"_score":  float64(len(ids) - i),
			"_source": docs[id].source,
		}
		if docs[id].routing != "" {
			hit["_routing"] = docs[id].routing
		}
		hits = append(hits, hit)
	}
	resp := map[string]any{
		"hits": map[string]any{
			"total":     map[string]any{"value": len(ids), "relation": "eq"},
			"max_score": float64(len(ids)),
			"hits":      hits,
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *memoryCluster) put(index, id string, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.docs[index] == nil {
		c.docs[index] = make(map[string]*storedDoc)
	}
	c.docs[index][id] = &storedDoc{source: json.RawMessage(source), version: 1}
}

func (c *memoryCluster) setFailSearch(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSearch = fail
}

func (c *memoryCluster) stored(index, id string) (*storedDoc, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[index][id]
	return doc, ok
}

// requestsTo returns the recorded requests whose path ends with suffix.
func (c *memoryCluster) requestsTo(suffix string) []recordedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []recordedRequest
	for _, req := range c.requests {
		if strings.HasSuffix(req.path, suffix) {
			out = append(out, req)
		}
	}
	return out
}

func (c *memoryCluster) last() recordedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return recordedRequest{}
	}
	return c.requests[len(c.requests)-1]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T) (*opensearch.Adapter, *memoryCluster) {
	t.Helper()
	cluster := newMemoryCluster()
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	adapter, err := opensearch.NewAdapter(opensearch.Config{
		URL:              srv.URL,
		OperationTimeout: time.Second,
	}, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("unexpected setup error: %v", err)
	}
	t.Cleanup(func() { _ = adapter.Close() })
	return adapter, cluster
}

func assertJSONEqual(t *testing.T, got, want string) {
	t.Helper()
	var g, w any
	if err := json.Unmarshal([]byte(got), &g); err != nil {
		t.Fatalf("got invalid JSON %q: %v", got, err)
	}
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("want invalid JSON %q: %v", want, err)
	}
	if !reflect.DeepEqual(g, w) {
		t.Fatalf("JSON mismatch\n got: %s\nwant: %s", got, want)
	}
}
