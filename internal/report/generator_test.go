package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
)

func hit(id, ts string, sev schema.Severity) schema.Hit {
	return schema.Hit{
		ID:    id,
		Index: "vulnerabilities",
		Record: schema.Record{
			Timestamp: ts,
			TestType:  "scan",
			TargetIP:  "10.0.0.1",
			Severity:  sev,
			Result:    "  finding " + id + "  ",
		},
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize("vulnerabilities", nil)
	assert.Zero(t, s.Total)
	assert.Equal(t, 100, s.Score)
	assert.Equal(t, "A", s.Grade)
	assert.Len(t, s.Counts, len(schema.Severities))
	assert.Equal(t, 0, s.Counts["CRITICAL"])
}

func TestSummarize_CountsAndOrdering(t *testing.T) {
	s := Summarize("vulnerabilities", []schema.Hit{
		hit("1", "2025-01-01T10:00:00Z", schema.SeverityLow),
		hit("2", "2025-01-01T10:00:01Z", schema.SeverityCritical),
		hit("3", "2025-01-01T10:00:02Z", schema.SeverityLow),
		hit("4", "2025-01-01T10:00:03Z", schema.SeveritySuccess),
	})

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Counts["CRITICAL"])
	assert.Equal(t, 2, s.Counts["LOW"])
	assert.Equal(t, 1, s.Counts["SUCCESS"])

	require.Len(t, s.Rows, 4)
	assert.Equal(t, "2", s.Rows[0].ID)
	// same severity: newest first
	assert.Equal(t, "3", s.Rows[1].ID)
	assert.Equal(t, "1", s.Rows[2].ID)
	assert.Equal(t, "SUCCESS", s.Rows[3].Severity)
	assert.Equal(t, "finding 2", s.Rows[0].Result)
}

func TestSummarize_ScoreDropsWithSeverity(t *testing.T) {
	crit := Summarize("i", []schema.Hit{hit("1", "2025-01-01T10:00:00Z", schema.SeverityCritical)})
	assert.Equal(t, 0, crit.Score)
	assert.Equal(t, "F", crit.Grade)

	mixed := Summarize("i", []schema.Hit{
		hit("1", "2025-01-01T10:00:00Z", schema.SeverityInfo),
		hit("2", "2025-01-01T10:00:00Z", schema.SeverityInfo),
		hit("3", "2025-01-01T10:00:00Z", schema.SeverityInfo),
		hit("4", "2025-01-01T10:00:00Z", schema.SeverityLow),
	})
	// weighted 1 of max 16
	assert.Equal(t, 94, mixed.Score)
	assert.Equal(t, "A", mixed.Grade)
}

func TestScoreToGrade(t *testing.T) {
	assert.Equal(t, "A", scoreToGrade(90))
	assert.Equal(t, "B", scoreToGrade(85))
	assert.Equal(t, "C", scoreToGrade(70))
	assert.Equal(t, "D", scoreToGrade(60))
	assert.Equal(t, "F", scoreToGrade(59))
}

func TestTrimTo(t *testing.T) {
	assert.Equal(t, "abc", trimTo("  abc ", 5))
	assert.Equal(t, "ab…", trimTo("abcdef", 2))
}

func TestGenerateHTML(t *testing.T) {
	dir := t.TempDir()
	s := Summarize("vulnerabilities", []schema.Hit{hit("doc-1", "2025-01-01T10:00:00Z", schema.SeverityHigh)})

	path, err := GenerateHTML(s, filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "report.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "Vulnerability records: vulnerabilities")
	assert.Contains(t, html, "HIGH: 1")
	assert.Contains(t, html, "doc-1")
}
