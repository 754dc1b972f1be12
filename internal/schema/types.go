package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Severity is the severity label attached to a vulnerability record
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
)

// Severities lists every known severity, most severe first
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
	SeveritySuccess,
}

// ParseSeverity normalizes s and checks it against the known severities
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Severities {
		if sev == known {
			return sev, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// TimestampLayout is the layout records are stored with
const TimestampLayout = time.RFC3339

// Record is one penetration-test vulnerability record as stored in the index.
// Extra holds any additional fields (port, service, cve, ...) and is flattened
// into the top-level JSON document.
type Record struct {
	Timestamp string         `json:"timestamp" yaml:"timestamp" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	TestType  string         `json:"test_type" yaml:"test_type" validate:"required,max=100"`
	TargetIP  string         `json:"target_ip" yaml:"target_ip" validate:"required,ip|hostname_rfc1123"`
	Severity  Severity       `json:"severity" yaml:"severity" validate:"required,oneof=critical high medium low info success"`
	Result    string         `json:"result" yaml:"result"`
	Extra     map[string]any `json:"-" yaml:"extra,omitempty" validate:"omitempty,max=50"`
}

// Hit is a record read back from the store with its metadata
type Hit struct {
	ID     string `json:"_id" yaml:"id"`
	Index  string `json:"_index" yaml:"index"`
	Record Record `json:"_source" yaml:"record"`
}

// NewRecord stamps a record with the current UTC time
func NewRecord(testType, targetIP string, severity Severity, result string) Record {
	return Record{
		Timestamp: time.Now().UTC().Format(TimestampLayout),
		TestType:  testType,
		TargetIP:  targetIP,
		Severity:  severity,
		Result:    result,
	}
}

// Time parses the record timestamp
func (r Record) Time() (time.Time, error) {
	return time.Parse(TimestampLayout, r.Timestamp)
}

var fixedFields = map[string]struct{}{
	"timestamp": {},
	"test_type": {},
	"target_ip": {},
	"severity":  {},
	"result":    {},
}

// IsFixedField reports whether key is one of the record's own fields
func IsFixedField(key string) bool {
	_, ok := fixedFields[key]
	return ok
}

func (r Record) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(r.Extra)+len(fixedFields))
	for k, v := range r.Extra {
		doc[k] = v
	}
	doc["timestamp"] = r.Timestamp
	doc["test_type"] = r.TestType
	doc["target_ip"] = r.TargetIP
	doc["severity"] = r.Severity
	doc["result"] = r.Result
	return json.Marshal(doc)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*r = Record{
		Timestamp: stringField(doc, "timestamp"),
		TestType:  stringField(doc, "test_type"),
		TargetIP:  stringField(doc, "target_ip"),
		Severity:  Severity(stringField(doc, "severity")),
		Result:    stringField(doc, "result"),
	}
	for k, v := range doc {
		if IsFixedField(k) {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[k] = v
	}
	return nil
}

// stringField tolerates non-string values written by other tools
func stringField(doc map[string]any, key string) string {
	switch v := doc[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
