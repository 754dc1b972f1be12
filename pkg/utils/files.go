package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
)

// Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ExportDir returns ./<outputDir>/<index_timestamp>/ for an export taken at t
func ExportDir(outputDir, index string, t time.Time) string {
	return filepath.Join(outputDir, safeName(index)+"_"+t.Format("20060102_150405"))
}

// SaveHits writes hits into records.json (or records.yaml) inside a fresh
// export directory and returns the file path
func SaveHits(hits []schema.Hit, index, outputDir, format string) (string, error) {
	dir := ExportDir(outputDir, index, time.Now())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	if hits == nil {
		hits = []schema.Hit{}
	}

	var file string
	switch format {
	case FormatJSON:
		file = filepath.Join(dir, "records.json")
	case FormatYAML:
		file = filepath.Join(dir, "records.yaml")
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}

	fh, err := os.Create(file)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Base(file), err)
	}
	defer fh.Close()

	if format == FormatYAML {
		enc := yaml.NewEncoder(fh)
		defer enc.Close()
		if err := enc.Encode(hits); err != nil {
			return "", fmt.Errorf("failed to encode records: %w", err)
		}
		return file, nil
	}

	enc := json.NewEncoder(fh)
	enc.SetIndent("", "  ")
	if err := enc.Encode(hits); err != nil {
		return "", fmt.Errorf("failed to encode records: %w", err)
	}

	return file, nil
}

// LoadHits reads a records.json export back
func LoadHits(file string) ([]schema.Hit, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(file), err)
	}
	var hits []schema.Hit
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(file), err)
	}
	return hits, nil
}

// safeName replaces characters not safe for file paths
func safeName(s string) string {
	invalid := []rune{'/', '\\', ':', '*', '?', '"', '<', '>', '|'}
	rs := []rune(s)
	for i, r := range rs {
		for _, bad := range invalid {
			if r == bad {
				rs[i] = '_'
			}
		}
	}
	return string(rs)
}
