package store

import (
	"context"
	"time"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
)

// DefaultIndex is the index vulnerability records are written to
const DefaultIndex = "vulnerabilities"

// Store is the document store holding vulnerability records.
//
// Records with equal timestamps come back in whatever order the store
// returns them; no secondary sort key is applied.
type Store interface {
	Info(ctx context.Context) (ClusterInfo, error)
	EnsureIndex(ctx context.Context, index string) (created bool, err error)
	Insert(ctx context.Context, index string, rec schema.Record) (schema.Hit, error)
	Count(ctx context.Context, index string) (int, error)
	Recent(ctx context.Context, index string, k int) ([]schema.Hit, error)
	Search(ctx context.Context, index string, q Query) ([]schema.Hit, error)
}

// ClusterInfo is the identity document returned by the store root endpoint
type ClusterInfo struct {
	Name         string `json:"name" yaml:"name"`
	ClusterName  string `json:"cluster_name" yaml:"cluster_name"`
	ClusterUUID  string `json:"cluster_uuid" yaml:"cluster_uuid"`
	Version      string `json:"version" yaml:"version"`
	Distribution string `json:"distribution" yaml:"distribution"`
	Tagline      string `json:"tagline,omitempty" yaml:"tagline,omitempty"`
}

// Query filters a record listing. Zero values mean "no filter".
type Query struct {
	Severities []schema.Severity
	TargetIP   string
	TestType   string
	Since      time.Time
	Size       int
}

// DefaultSearchSize is used when a query leaves Size unset
const DefaultSearchSize = 20

var (
	_ Store = (*OpenSearch)(nil)
	_ Store = (*Memory)(nil)
)
