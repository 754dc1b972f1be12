package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity(" CRITICAL ")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, sev)

	sev, err = ParseSeverity("success")
	require.NoError(t, err)
	assert.Equal(t, SeveritySuccess, sev)

	_, err = ParseSeverity("catastrophic")
	assert.Error(t, err)
}

func TestRecord_ExtraFieldsAreFlattened(t *testing.T) {
	rec := Record{
		Timestamp: "2025-01-01T10:00:00Z",
		TestType:  "port_scan",
		TargetIP:  "10.0.0.5",
		Severity:  SeverityHigh,
		Result:    "open port",
		Extra:     map[string]any{"port": 22, "service": "ssh"},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "port_scan", doc["test_type"])
	assert.Equal(t, "ssh", doc["service"])
	assert.EqualValues(t, 22, doc["port"])
	assert.NotContains(t, doc, "Extra")
}

func TestRecord_ExtraCannotOverrideFixedFields(t *testing.T) {
	rec := Record{
		Timestamp: "2025-01-01T10:00:00Z",
		TestType:  "port_scan",
		TargetIP:  "10.0.0.5",
		Severity:  SeverityLow,
		Extra:     map[string]any{"severity": "critical"},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"severity":"low"`)
	assert.Error(t, rec.Validate())
}

func TestRecord_UnmarshalCollectsUnknownFields(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{
		"timestamp": "2025-01-01T10:00:00Z",
		"test_type": "web_scan",
		"target_ip": "192.168.1.10",
		"severity": "medium",
		"result": "missing header",
		"cve": "CVE-2021-44228",
		"port": 443
	}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, "web_scan", rec.TestType)
	assert.Equal(t, SeverityMedium, rec.Severity)
	assert.Equal(t, "CVE-2021-44228", rec.Extra["cve"])
	assert.EqualValues(t, 443, rec.Extra["port"])
	assert.Len(t, rec.Extra, 2)
}

func TestRecord_UnmarshalWithoutExtras(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"2025-01-01T10:00:00Z","test_type":"t","target_ip":"10.0.0.1","severity":"info","result":"ok"}`), &rec))
	assert.Nil(t, rec.Extra)
}

func TestRecord_Time(t *testing.T) {
	rec := Record{Timestamp: "2025-01-01T10:00:05Z"}
	ts, err := rec.Time()
	require.NoError(t, err)
	assert.Equal(t, 5, ts.Second())
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord("manual", "127.0.0.1", SeverityInfo, "connectivity ok")
	_, err := rec.Time()
	assert.NoError(t, err)
	assert.NoError(t, rec.Validate())
}

func TestRecord_Validate(t *testing.T) {
	valid := Record{
		Timestamp: "2025-01-01T10:00:00Z",
		TestType:  "sql_injection",
		TargetIP:  "10.0.0.5",
		Severity:  SeverityCritical,
		Result:    "injectable parameter id",
	}

	tests := []struct {
		name        string
		mutate      func(r *Record)
		expectError bool
		errorField  string
	}{
		{name: "valid record", mutate: func(r *Record) {}},
		{name: "hostname target", mutate: func(r *Record) { r.TargetIP = "web01.testcorp.local" }},
		{name: "ipv6 target", mutate: func(r *Record) { r.TargetIP = "::1" }},
		{name: "fractional seconds", mutate: func(r *Record) { r.Timestamp = "2025-01-01T10:00:00.123Z" }},
		{name: "extra fields", mutate: func(r *Record) { r.Extra = map[string]any{"port": 80, "cve": "CVE-2024-0001"} }},
		{
			name:        "missing test type",
			mutate:      func(r *Record) { r.TestType = "" },
			expectError: true,
			errorField:  "TestType",
		},
		{
			name:        "unknown severity",
			mutate:      func(r *Record) { r.Severity = "urgent" },
			expectError: true,
			errorField:  "Severity",
		},
		{
			name:        "bad timestamp",
			mutate:      func(r *Record) { r.Timestamp = "yesterday" },
			expectError: true,
			errorField:  "Timestamp",
		},
		{
			name:        "bad target",
			mutate:      func(r *Record) { r.TargetIP = "not a host!" },
			expectError: true,
			errorField:  "TargetIP",
		},
		{
			name:        "bad extra key",
			mutate:      func(r *Record) { r.Extra = map[string]any{"has space": 1} },
			expectError: true,
			errorField:  "Extra",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid
			tt.mutate(&rec)
			err := rec.Validate()
			if !tt.expectError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorField)
		})
	}
}
