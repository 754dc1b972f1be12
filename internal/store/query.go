package store

import (
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
)

// IndexMapping is the explicit mapping applied by EnsureIndex. Extra fields
// are left to dynamic mapping.
var IndexMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"timestamp": map[string]any{"type": "date"},
			"test_type": map[string]any{"type": "keyword"},
			"target_ip": map[string]any{"type": "keyword"},
			"severity":  map[string]any{"type": "keyword"},
			"result":    map[string]any{"type": "text"},
			"port":      map[string]any{"type": "integer"},
			"service":   map[string]any{"type": "keyword"},
			"cve":       map[string]any{"type": "keyword"},
		},
	},
}

// newestFirst sorts on timestamp and tolerates indexes where the field is
// not mapped yet.
var newestFirst = []map[string]any{
	{"timestamp": map[string]any{"order": "desc", "unmapped_type": "date"}},
}

func matchAll() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}

// countBody asks for the exact total without returning documents
func countBody() map[string]any {
	return map[string]any{
		"size":             0,
		"track_total_hits": true,
		"query":            matchAll(),
	}
}

// recentBody returns the k most recent records
func recentBody(k int) map[string]any {
	return map[string]any{
		"size":  k,
		"sort":  newestFirst,
		"query": matchAll(),
	}
}

// searchBody translates q into a bool query of filters
func searchBody(q Query) map[string]any {
	size := q.Size
	if size <= 0 {
		size = DefaultSearchSize
	}

	var filters []map[string]any
	if len(q.Severities) > 0 {
		values := make([]string, 0, len(q.Severities))
		for _, s := range q.Severities {
			values = append(values, string(s))
		}
		filters = append(filters, map[string]any{"terms": map[string]any{"severity": values}})
	}
	if q.TargetIP != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"target_ip": q.TargetIP}})
	}
	if q.TestType != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"test_type": q.TestType}})
	}
	if !q.Since.IsZero() {
		filters = append(filters, map[string]any{
			"range": map[string]any{
				"timestamp": map[string]any{"gte": q.Since.UTC().Format(schema.TimestampLayout)},
			},
		})
	}

	query := matchAll()
	if len(filters) > 0 {
		query = map[string]any{"bool": map[string]any{"filter": filters}}
	}

	return map[string]any{
		"size":  size,
		"sort":  newestFirst,
		"query": query,
	}
}
