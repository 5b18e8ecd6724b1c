package opensearch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nimburion/searchrepo/pkg/observability/logger"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   string
}

// fakeCluster answers the root ping and delegates everything else to handle.
type fakeCluster struct {
	mu       sync.Mutex
	requests []recordedRequest
	handle   func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" && r.Method == http.MethodGet {
		w.WriteHeader(http.StatusOK)
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		method: r.Method,
		path:   r.URL.EscapedPath(),
		query:  r.URL.RawQuery,
		body:   string(body),
	})
	f.mu.Unlock()
	f.handle(w, r)
}

func (f *fakeCluster) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return recordedRequest{}
	}
	return f.requests[len(f.requests)-1]
}

func newTestAdapter(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) (*Adapter, *fakeCluster) {
	t.Helper()
	cluster := &fakeCluster{handle: handle}
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	adapter, err := NewAdapter(Config{
		URL:              srv.URL,
		MaxConns:         2,
		OperationTimeout: time.Second,
	}, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("unexpected setup error: %v", err)
	}
	t.Cleanup(func() { _ = adapter.Close() })
	return adapter, cluster
}

func TestGetDocument_DecodesSource(t *testing.T) {
	adapter, cluster := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_index":"books","_id":"7","_version":3,"_routing":"eu","found":true,"_source":{"title":"Go"}}`))
	})

	got, err := adapter.GetDocument(context.Background(), "books", "7", WithRouting("eu"))
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.ID != "7" || got.Version != 3 || got.Routing != "eu" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if string(got.Source) != `{"title":"Go"}` {
		t.Fatalf("unexpected source: %s", got.Source)
	}
	req := cluster.last()
	if req.method != http.MethodGet || req.path != "/books/_doc/7" || req.query != "routing=eu" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"_index":"books","_id":"missing","found":false}`))
	})

	_, err := adapter.GetDocument(context.Background(), "books", "missing")
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestIndexDocument_RefreshAndEscaping(t *testing.T) {
	adapter, cluster := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	err := adapter.IndexDocument(context.Background(), "books", "a/b", map[string]any{"title": "Go"}, WithRefresh("wait_for"))
	if err != nil {
		t.Fatalf("IndexDocument failed: %v", err)
	}
	req := cluster.last()
	if req.path != "/books/_doc/a%2Fb" {
		t.Fatalf("expected escaped id in path, got %q", req.path)
	}
	if req.query != "refresh=wait_for" {
		t.Fatalf("unexpected query %q", req.query)
	}
	if req.body != `{"title":"Go"}` {
		t.Fatalf("unexpected body %q", req.body)
	}
}

func TestIndexDocument_RequiresID(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s %s", r.Method, r.URL.Path)
	})

	if err := adapter.IndexDocument(context.Background(), "books", " ", map[string]any{}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestCount(t *testing.T) {
	adapter, cluster := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":42,"_shards":{"total":1}}`))
	})

	n, err := adapter.Count(context.Background(), "books,films", map[string]any{"query": map[string]any{"match_all": map[string]any{}}})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 42 {
		t.Fatalf("expected 42, got %d", n)
	}
	req := cluster.last()
	if req.method != http.MethodPost || req.path != "/books,films/_count" {
		t.Fatalf("unexpected request: %+v", req)
	}

	if _, err := adapter.Count(context.Background(), "books", nil); err != nil {
		t.Fatalf("Count without query failed: %v", err)
	}
	if req := cluster.last(); req.method != http.MethodGet || req.body != "" {
		t.Fatalf("unexpected request for empty count: %+v", req)
	}
}

func TestIndexLifecycle(t *testing.T) {
	var mu sync.Mutex
	exists := false
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/books":
			if !exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/books":
			exists = true
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		case r.Method == http.MethodPost && r.URL.Path == "/books/_refresh":
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/books":
			if !exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			exists = false
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	if ok, err := adapter.IndexExists(ctx, "books"); err != nil || ok {
		t.Fatalf("IndexExists before create = %v, %v", ok, err)
	}
	if err := adapter.CreateIndex(ctx, "books", map[string]any{"settings": map[string]any{"number_of_shards": 1}}); err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}
	if ok, err := adapter.IndexExists(ctx, "books"); err != nil || !ok {
		t.Fatalf("IndexExists after create = %v, %v", ok, err)
	}
	if err := adapter.Refresh(ctx, "books"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if err := adapter.DeleteIndex(ctx, "books"); err != nil {
		t.Fatalf("DeleteIndex failed: %v", err)
	}
	if err := adapter.DeleteIndex(ctx, "books"); err != nil {
		t.Fatalf("DeleteIndex on missing index should not fail: %v", err)
	}
}

func TestSearch_ErrorIncludesStatus(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"parsing_exception"}`))
	})

	_, err := adapter.Search(context.Background(), "books", map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "status 400") || !strings.Contains(err.Error(), "parsing_exception") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequest_RetriesNextNode(t *testing.T) {
	unavailable := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unavailable.Close()
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":1}`))
	}))
	defer healthy.Close()

	adapter, err := NewAdapter(Config{
		URLs:             []string{unavailable.URL, healthy.URL},
		OperationTimeout: time.Second,
	}, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("unexpected setup error: %v", err)
	}
	defer adapter.Close()

	for i := 0; i < 4; i++ {
		n, err := adapter.Count(context.Background(), "books", nil)
		if err != nil || n != 1 {
			t.Fatalf("attempt %d: Count = %d, %v", i, n, err)
		}
	}
}

func TestRequestOptionsEncode(t *testing.T) {
	o := applyOptions([]RequestOption{WithRouting("r 1"), nil, WithRefresh("true")})
	if got := o.encode("/i/_doc/1"); got != "/i/_doc/1?refresh=true&routing=r+1" {
		t.Fatalf("unexpected path %q", got)
	}
	if got := applyOptions(nil).encode("/i"); got != "/i" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestIndexDocument_ExternalVersionConflict(t *testing.T) {
	adapter, cluster := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"type":"version_conflict_engine_exception"}}`))
	})

	err := adapter.IndexDocument(context.Background(), "books", "1", map[string]any{}, WithExternalVersion(4))
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if q := cluster.last().query; q != "version=4&version_type=external" {
		t.Fatalf("unexpected query %q", q)
	}
}

func TestInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"node-1","cluster_name":"search","version":{"number":"2.11.1","distribution":"opensearch"}}`))
	}))
	defer srv.Close()

	adapter, err := NewAdapter(Config{URL: srv.URL, OperationTimeout: time.Second}, logger.NewNopLogger())
	if err != nil {
		t.Fatalf("unexpected setup error: %v", err)
	}
	defer adapter.Close()

	info, err := adapter.Info(context.Background())
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.ClusterName != "search" || info.Version.Number != "2.11.1" || info.Version.Distribution != "opensearch" {
		t.Fatalf("unexpected info: %+v", info)
	}
}
