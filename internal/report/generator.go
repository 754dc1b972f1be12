package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
)

//go:embed report.html.tmpl
var reportHTMLTemplate string

// ---------- Public API ----------

// Summary aggregates a set of records by severity
type Summary struct {
	Index         string
	Total         int
	Counts        map[string]int
	Score         int
	Grade         string
	Rows          []Row
	Generator     string
	GeneratedAt   string
	SeverityOrder []string
	Year          int
}

// Row is one record as shown in a report
type Row struct {
	Timestamp string
	Severity  string
	ID        string
	TestType  string
	TargetIP  string
	Result    string
}

// Summarize builds a Summary over hits. Rows are ordered by severity, then
// newest first.
func Summarize(index string, hits []schema.Hit) Summary {
	now := time.Now().UTC()
	sevOrder := severityOrder()
	sevWeight := map[string]int{"critical": 4, "high": 3, "medium": 2, "low": 1, "info": 0, "success": 0}

	counts := map[string]int{}
	var rows []Row

	for _, h := range hits {
		sev := strings.ToLower(string(h.Record.Severity))
		if sev == "" {
			sev = string(schema.SeverityInfo)
		}
		counts[sev]++
		rows = append(rows, Row{
			Timestamp: h.Record.Timestamp,
			Severity:  strings.ToUpper(sev),
			ID:        emptyFallback(h.ID, "N/A"),
			TestType:  emptyFallback(h.Record.TestType, "-"),
			TargetIP:  emptyFallback(h.Record.TargetIP, "-"),
			Result:    trimTo(h.Record.Result, 500),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ai := indexOf(sevOrder, strings.ToLower(rows[i].Severity))
		bi := indexOf(sevOrder, strings.ToLower(rows[j].Severity))
		if ai != bi {
			return ai < bi
		}
		return rows[i].Timestamp > rows[j].Timestamp
	})

	total := 0
	weighted := 0
	for sev, c := range counts {
		total += c
		weighted += sevWeight[sev] * c
	}
	score := 100
	if total > 0 {
		// more high/critical lowers the score
		penalty := min(100, (weighted*100)/(total*4))
		score = 100 - penalty
	}

	return Summary{
		Index:         index,
		Total:         total,
		Counts:        normalizeCounts(counts, sevOrder),
		Score:         score,
		Grade:         scoreToGrade(score),
		Rows:          rows,
		Generator:     "vulnwatch",
		GeneratedAt:   now.Format(time.RFC3339),
		SeverityOrder: upper(sevOrder),
		Year:          now.Year(),
	}
}

// GenerateHTML renders s into outDir/report.html
func GenerateHTML(s Summary, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("create out dir: %w", err)
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"lower": strings.ToLower,
	}).Parse(reportHTMLTemplate)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	htmlPath := filepath.Join(outDir, "report.html")
	if err := os.WriteFile(htmlPath, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write report.html: %w", err)
	}

	return htmlPath, nil
}

// ---------- helpers ----------

func severityOrder() []string {
	out := make([]string, 0, len(schema.Severities))
	for _, s := range schema.Severities {
		out = append(out, string(s))
	}
	return out
}

func indexOf(arr []string, s string) int {
	for i, v := range arr {
		if v == s {
			return i
		}
	}
	return len(arr)
}

func scoreToGrade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

func normalizeCounts(in map[string]int, order []string) map[string]int {
	out := make(map[string]int, len(order))
	for _, k := range order {
		out[strings.ToUpper(k)] = in[k]
	}
	return out
}

func upper(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}

func trimTo(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func emptyFallback(s, fb string) string {
	if strings.TrimSpace(s) == "" {
		return fb
	}
	return s
}
