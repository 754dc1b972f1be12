package store

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
)

// Memory is an in-process Store with the same ordering and error
// semantics as the OpenSearch adapter. Indexes must be created with
// EnsureIndex or by a first Insert, like dynamic index creation.
type Memory struct {
	mu      sync.Mutex
	indices map[string][]schema.Hit
}

func NewMemory() *Memory {
	return &Memory{indices: make(map[string][]schema.Hit)}
}

func (m *Memory) Info(ctx context.Context) (ClusterInfo, error) {
	if err := ctx.Err(); err != nil {
		return ClusterInfo{}, err
	}
	return ClusterInfo{
		Name:         "memory",
		ClusterName:  "memory",
		Version:      "0.0.0",
		Distribution: "memory",
	}, nil
}

func (m *Memory) EnsureIndex(ctx context.Context, index string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indices[index]; ok {
		return false, nil
	}
	m.indices[index] = nil
	return true, nil
}

func (m *Memory) Insert(ctx context.Context, index string, rec schema.Record) (schema.Hit, error) {
	if err := ctx.Err(); err != nil {
		return schema.Hit{}, err
	}
	if _, err := rec.Time(); err != nil {
		return schema.Hit{}, &ResponseError{Op: "insert", Status: http.StatusBadRequest, Err: fmt.Errorf("parse timestamp: %w", err)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	hit := schema.Hit{ID: uuid.NewString(), Index: index, Record: rec}
	m.indices[index] = append(m.indices[index], hit)
	return hit, nil
}

func (m *Memory) Count(ctx context.Context, index string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	hits, ok := m.indices[index]
	if !ok {
		return 0, indexNotFound("count", index)
	}
	return len(hits), nil
}

func (m *Memory) Recent(ctx context.Context, index string, k int) ([]schema.Hit, error) {
	return m.Search(ctx, index, Query{Size: k})
}

func (m *Memory) Search(ctx context.Context, index string, q Query) ([]schema.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	hits, ok := m.indices[index]
	if !ok {
		return nil, indexNotFound("search", index)
	}

	size := q.Size
	if size <= 0 {
		size = DefaultSearchSize
	}

	matched := make([]schema.Hit, 0, len(hits))
	for _, h := range hits {
		if q.matches(h.Record) {
			matched = append(matched, h)
		}
	}
	// insertion order decides ties here; callers must not rely on it
	sort.SliceStable(matched, func(i, j int) bool {
		return recordTime(matched[i].Record).After(recordTime(matched[j].Record))
	})
	if len(matched) > size {
		matched = matched[:size]
	}
	return matched, nil
}

func (q Query) matches(rec schema.Record) bool {
	if len(q.Severities) > 0 {
		found := false
		for _, s := range q.Severities {
			if rec.Severity == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.TargetIP != "" && rec.TargetIP != q.TargetIP {
		return false
	}
	if q.TestType != "" && rec.TestType != q.TestType {
		return false
	}
	if !q.Since.IsZero() && recordTime(rec).Before(q.Since) {
		return false
	}
	return true
}

func recordTime(rec schema.Record) time.Time {
	ts, _ := rec.Time()
	return ts
}

func indexNotFound(op, index string) error {
	return &ResponseError{
		Op:     op,
		Status: http.StatusNotFound,
		Err:    fmt.Errorf("index_not_found_exception: no such index [%s]", index),
	}
}
