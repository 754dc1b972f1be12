package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
)

// fakeCluster answers the handful of OpenSearch endpoints the adapter uses
type fakeCluster struct {
	mu       sync.Mutex
	indices  map[string][]map[string]any
	searches []map[string]any
	nextID   int
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{indices: make(map[string][]map[string]any)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(status int, typ, reason string) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"root_cause": []map[string]any{{"type": typ, "reason": reason}},
			"type":       typ,
			"reason":     reason,
		},
		"status": status,
	}
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"name":         "node-1",
			"cluster_name": "pentest-cluster",
			"cluster_uuid": "abc",
			"version": map[string]any{
				"distribution": "opensearch",
				"number":       "2.11.0",
			},
			"tagline": "The OpenSearch Project: https://opensearch.org/",
		})
	case len(parts) == 1 && r.Method == http.MethodPut:
		if _, ok := f.indices[parts[0]]; ok {
			writeJSON(w, http.StatusBadRequest, errorBody(400, "resource_already_exists_exception", "index already exists"))
			return
		}
		f.indices[parts[0]] = nil
		writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true, "shards_acknowledged": true, "index": parts[0]})
	case len(parts) == 2 && parts[1] == "_doc":
		var doc map[string]any
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(400, "mapper_parsing_exception", err.Error()))
			return
		}
		f.nextID++
		id := fmt.Sprintf("doc-%d", f.nextID)
		f.indices[parts[0]] = append(f.indices[parts[0]], map[string]any{"_id": id, "_source": doc})
		writeJSON(w, http.StatusCreated, map[string]any{
			"_index":   parts[0],
			"_id":      id,
			"_version": 1,
			"result":   "created",
			"_shards":  map[string]any{"total": 1, "successful": 1, "failed": 0},
		})
	case len(parts) == 2 && parts[1] == "_search":
		docs, ok := f.indices[parts[0]]
		if !ok {
			writeJSON(w, http.StatusNotFound, errorBody(404, "index_not_found_exception", "no such index ["+parts[0]+"]"))
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.searches = append(f.searches, body)

		size := len(docs)
		if s, ok := body["size"].(float64); ok {
			size = int(s)
		}
		sorted := append([]map[string]any(nil), docs...)
		sort.SliceStable(sorted, func(i, j int) bool {
			a := sorted[i]["_source"].(map[string]any)["timestamp"].(string)
			b := sorted[j]["_source"].(map[string]any)["timestamp"].(string)
			return a > b
		})
		if len(sorted) > size {
			sorted = sorted[:size]
		}
		hits := make([]map[string]any, 0, len(sorted))
		for _, d := range sorted {
			hits = append(hits, map[string]any{"_index": parts[0], "_id": d["_id"], "_score": nil, "_source": d["_source"]})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"took":      1,
			"timed_out": false,
			"_shards":   map[string]any{"total": 1, "successful": 1, "skipped": 0, "failed": 0},
			"hits": map[string]any{
				"total":     map[string]any{"value": len(docs), "relation": "eq"},
				"max_score": nil,
				"hits":      hits,
			},
		})
	default:
		writeJSON(w, http.StatusNotFound, errorBody(404, "not_found", r.Method+" "+r.URL.Path))
	}
}

func newTestOpenSearch(t *testing.T) (*OpenSearch, *fakeCluster) {
	t.Helper()
	fake := newFakeCluster()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewOpenSearch(Options{Endpoint: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return client, fake
}

func TestNewOpenSearch_RequiresEndpoint(t *testing.T) {
	_, err := NewOpenSearch(Options{Endpoint: "  "})
	assert.Error(t, err)
}

func TestOpenSearch_Info(t *testing.T) {
	client, _ := newTestOpenSearch(t)

	info, err := client.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "node-1", info.Name)
	assert.Equal(t, "pentest-cluster", info.ClusterName)
	assert.Equal(t, "2.11.0", info.Version)
	assert.Equal(t, "opensearch", info.Distribution)
}

func TestOpenSearch_EnsureIndexIsIdempotent(t *testing.T) {
	client, _ := newTestOpenSearch(t)
	ctx := context.Background()

	created, err := client.EnsureIndex(ctx, DefaultIndex)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = client.EnsureIndex(ctx, DefaultIndex)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestOpenSearch_InsertCountRecent(t *testing.T) {
	client, fake := newTestOpenSearch(t)
	ctx := context.Background()
	_, err := client.EnsureIndex(ctx, DefaultIndex)
	require.NoError(t, err)

	for _, r := range []schema.Record{
		record("2025-01-01T10:00:00Z", "A", schema.SeverityLow),
		record("2025-01-01T10:00:05Z", "B", schema.SeverityMedium),
		record("2025-01-01T10:00:10Z", "C", schema.SeverityCritical),
	} {
		hit, err := client.Insert(ctx, DefaultIndex, r)
		require.NoError(t, err)
		assert.NotEmpty(t, hit.ID)
		assert.Equal(t, DefaultIndex, hit.Index)
	}

	count, err := client.Count(ctx, DefaultIndex)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	hits, err := client.Recent(ctx, DefaultIndex, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "C", hits[0].Record.TestType)
	assert.Equal(t, "B", hits[1].Record.TestType)
	assert.Equal(t, schema.SeverityCritical, hits[0].Record.Severity)

	// count query asks for totals only, recent query sorts newest first
	require.Len(t, fake.searches, 2)
	assert.EqualValues(t, 0, fake.searches[0]["size"])
	assert.Equal(t, true, fake.searches[0]["track_total_hits"])
	assert.EqualValues(t, 2, fake.searches[1]["size"])
	assert.Contains(t, fake.searches[1]["sort"].([]any)[0].(map[string]any), "timestamp")
}

func TestOpenSearch_InsertKeepsExtraFields(t *testing.T) {
	client, fake := newTestOpenSearch(t)
	ctx := context.Background()

	rec := record("2025-01-01T10:00:00Z", "port_scan", schema.SeverityHigh)
	rec.Extra = map[string]any{"port": 3389, "service": "rdp"}
	_, err := client.Insert(ctx, DefaultIndex, rec)
	require.NoError(t, err)

	src := fake.indices[DefaultIndex][0]["_source"].(map[string]any)
	assert.Equal(t, "rdp", src["service"])
	assert.EqualValues(t, 3389, src["port"])

	hits, err := client.Recent(ctx, DefaultIndex, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "rdp", hits[0].Record.Extra["service"])
}

func TestOpenSearch_MissingIndexIsResponseError(t *testing.T) {
	client, _ := newTestOpenSearch(t)

	_, err := client.Count(context.Background(), "missing")
	require.Error(t, err)

	var respErr *ResponseError
	assert.ErrorAs(t, err, &respErr)
	assert.True(t, IsTransient(err))
}

func TestOpenSearch_UnreachableIsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewOpenSearch(Options{Endpoint: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.Info(context.Background())
	require.Error(t, err)

	var connErr *ConnectionError
	assert.ErrorAs(t, err, &connErr)
	assert.True(t, IsTransient(err))
}

func TestSearchBody_Filters(t *testing.T) {
	body := searchBody(Query{
		Severities: []schema.Severity{schema.SeverityCritical},
		TargetIP:   "10.0.0.5",
		Since:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, DefaultSearchSize, body["size"])
	filters := body["query"].(map[string]any)["bool"].(map[string]any)["filter"].([]map[string]any)
	require.Len(t, filters, 3)
	assert.Equal(t, []string{"critical"}, filters[0]["terms"].(map[string]any)["severity"])
	assert.Equal(t, "10.0.0.5", filters[1]["term"].(map[string]any)["target_ip"])
	assert.Equal(t, "2025-01-01T00:00:00Z", filters[2]["range"].(map[string]any)["timestamp"].(map[string]any)["gte"])
}

func TestSearchBody_NoFilterIsMatchAll(t *testing.T) {
	body := searchBody(Query{Size: 3})
	assert.Equal(t, 3, body["size"])
	assert.Contains(t, body["query"], "match_all")
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify("op", nil))
	assert.ErrorIs(t, classify("op", context.Canceled), context.Canceled)

	var connErr *ConnectionError
	assert.ErrorAs(t, classify("op", context.DeadlineExceeded), &connErr)

	var respErr *ResponseError
	assert.ErrorAs(t, classify("op", fmt.Errorf("status: 500")), &respErr)
}
