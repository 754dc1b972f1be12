package store

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	log "github.com/sirupsen/logrus"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
)

// Options configures the OpenSearch client
type Options struct {
	Endpoint string
	Username string
	Password string
	// Insecure skips TLS certificate verification (self-signed dev clusters)
	Insecure bool
	Timeout  time.Duration
}

// OpenSearch is a Store backed by an OpenSearch-compatible REST API
type OpenSearch struct {
	client   *opensearchapi.Client
	endpoint string
}

// NewOpenSearch builds a client for opts.Endpoint. No request is made until
// the first call.
func NewOpenSearch(opts Options) (*OpenSearch, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("opensearch endpoint is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		MaxIdleConnsPerHost:   10,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: opts.Insecure}, //nolint:gosec // opt-in for self-signed clusters
	}

	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses: []string{strings.TrimRight(opts.Endpoint, "/")},
			Username:  opts.Username,
			Password:  opts.Password,
			Transport: transport,
			// the poller owns retries
			DisableRetry: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}
	return &OpenSearch{client: client, endpoint: opts.Endpoint}, nil
}

// Endpoint returns the base URL the client talks to
func (o *OpenSearch) Endpoint() string { return o.endpoint }

func (o *OpenSearch) Info(ctx context.Context) (ClusterInfo, error) {
	resp, err := o.client.Info(ctx, nil)
	if err != nil {
		return ClusterInfo{}, classify("info", err)
	}
	return ClusterInfo{
		Name:         resp.Name,
		ClusterName:  resp.ClusterName,
		ClusterUUID:  resp.ClusterUUID,
		Version:      resp.Version.Number,
		Distribution: resp.Version.Distribution,
		Tagline:      resp.Tagline,
	}, nil
}

func (o *OpenSearch) EnsureIndex(ctx context.Context, index string) (bool, error) {
	body, err := jsonBody(IndexMapping)
	if err != nil {
		return false, err
	}
	_, err = o.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: index,
		Body:  body,
	})
	if err != nil {
		if strings.Contains(err.Error(), "resource_already_exists_exception") {
			log.Debugf("index %s already exists", index)
			return false, nil
		}
		return false, classify("create index", err)
	}
	return true, nil
}

func (o *OpenSearch) Insert(ctx context.Context, index string, rec schema.Record) (schema.Hit, error) {
	body, err := jsonBody(rec)
	if err != nil {
		return schema.Hit{}, err
	}
	resp, err := o.client.Index(ctx, opensearchapi.IndexReq{
		Index: index,
		Body:  body,
	})
	if err != nil {
		return schema.Hit{}, classify("insert", err)
	}
	log.Debugf("indexed %s/%s (%s)", resp.Index, resp.ID, resp.Result)
	return schema.Hit{ID: resp.ID, Index: resp.Index, Record: rec}, nil
}

func (o *OpenSearch) Count(ctx context.Context, index string) (int, error) {
	body, err := jsonBody(countBody())
	if err != nil {
		return 0, err
	}
	resp, err := o.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{index},
		Body:    body,
	})
	if err != nil {
		return 0, classify("count", err)
	}
	return resp.Hits.Total.Value, nil
}

func (o *OpenSearch) Recent(ctx context.Context, index string, k int) ([]schema.Hit, error) {
	return o.search(ctx, "recent", index, recentBody(k))
}

func (o *OpenSearch) Search(ctx context.Context, index string, q Query) ([]schema.Hit, error) {
	return o.search(ctx, "search", index, searchBody(q))
}

func (o *OpenSearch) search(ctx context.Context, op, index string, query map[string]any) ([]schema.Hit, error) {
	body, err := jsonBody(query)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{index},
		Body:    body,
	})
	if err != nil {
		return nil, classify(op, err)
	}

	hits := make([]schema.Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		var rec schema.Record
		if err := json.Unmarshal(h.Source, &rec); err != nil {
			return nil, &ResponseError{Op: op, Err: fmt.Errorf("decode document %s: %w", h.ID, err)}
		}
		hits = append(hits, schema.Hit{ID: h.ID, Index: h.Index, Record: rec})
	}
	return hits, nil
}

func jsonBody(v any) (*bytes.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return bytes.NewReader(data), nil
}
