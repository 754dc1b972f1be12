package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
)

var ErrNucleiNotFound = errors.New("nuclei not found in PATH")

// NucleiBinary is the executable RunNuclei invokes
var NucleiBinary = "nuclei"

// RunNuclei executes nuclei with JSON export and returns its results as records
func RunNuclei(ctx context.Context, target string) ([]schema.Record, error) {
	if _, err := exec.LookPath(NucleiBinary); err != nil {
		return nil, ErrNucleiNotFound
	}

	tmpFile := filepath.Join(os.TempDir(), fmt.Sprintf("nuclei_%d.json", time.Now().UnixNano()))
	defer os.Remove(tmpFile)

	cmd := exec.CommandContext(ctx, NucleiBinary,
		"-target", target,
		"-json-export", tmpFile,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("nuclei failed: %w", err)
	}
	return LoadNuclei(tmpFile)
}

// LoadNuclei reads a nuclei export (-json-export array or -jsonl lines) and
// returns one record per result. Results that cannot be mapped to a valid
// record are skipped with a warning.
func LoadNuclei(path string) ([]schema.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read nuclei output: %w", err)
	}
	return ParseNuclei(bytes.NewReader(data))
}

// ParseNuclei converts nuclei results from r into records
func ParseNuclei(r io.Reader) ([]schema.Record, error) {
	raw, err := decodeNuclei(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse nuclei JSON: %w", err)
	}

	var records []schema.Record
	for i, item := range raw {
		rec := nucleiRecord(item)
		if err := rec.Validate(); err != nil {
			log.Warnf("skipping nuclei result %d: %v", i, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeNuclei(r io.Reader) ([]map[string]interface{}, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Nuclei -json-export writes an array of objects
	if first == '[' {
		var raw []map[string]interface{}
		if err := json.NewDecoder(br).Decode(&raw); err != nil {
			return nil, err
		}
		return raw, nil
	}

	// -jsonl writes one object per line
	var raw []map[string]interface{}
	dec := json.NewDecoder(br)
	for {
		var item map[string]interface{}
		if err := dec.Decode(&item); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		raw = append(raw, item)
	}
	return raw, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == ' ' || b == '\n' || b == '\r' || b == '\t' {
			continue
		}
		return b, br.UnreadByte()
	}
}

func nucleiRecord(r map[string]interface{}) schema.Record {
	info, _ := r["info"].(map[string]interface{})
	extra := map[string]any{"scanner": "nuclei"}

	rec := schema.Record{
		Timestamp: nucleiTimestamp(r),
		TestType:  "nuclei",
		Severity:  schema.SeverityInfo,
	}

	if typ, ok := r["type"].(string); ok && typ != "" {
		rec.TestType = "nuclei_" + typ
	}
	if sev, ok := info["severity"].(string); ok {
		if parsed, err := schema.ParseSeverity(sev); err == nil {
			rec.Severity = parsed
		}
	}

	var result []string
	if name, ok := info["name"].(string); ok && name != "" {
		result = append(result, name)
	}
	if desc, ok := info["description"].(string); ok && strings.TrimSpace(desc) != "" {
		result = append(result, strings.TrimSpace(desc))
	}
	rec.Result = strings.Join(result, ": ")

	if id, ok := r["template-id"].(string); ok {
		extra["template_id"] = id
	}
	if matched, ok := r["matched-at"].(string); ok {
		extra["matched_at"] = matched
	}
	if port, ok := r["port"]; ok && port != "" {
		extra["port"] = port
	}
	if class, ok := info["classification"].(map[string]interface{}); ok {
		if cves, ok := class["cve-id"].([]interface{}); ok && len(cves) > 0 {
			extra["cve"] = fmt.Sprint(cves[0])
		}
	}

	host, _ := r["host"].(string)
	if ip, ok := r["ip"].(string); ok && ip != "" {
		rec.TargetIP = ip
	} else {
		rec.TargetIP = hostOnly(host)
	}
	if host != "" {
		extra["host"] = host
	}

	rec.Extra = extra
	return rec
}

func nucleiTimestamp(r map[string]interface{}) string {
	if ts, ok := r["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return parsed.UTC().Format(schema.TimestampLayout)
		}
	}
	return time.Now().UTC().Format(schema.TimestampLayout)
}

// hostOnly strips scheme, path and port from a nuclei host value
func hostOnly(host string) string {
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		return u.Hostname()
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
