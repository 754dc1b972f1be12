package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	tw "github.com/olekukonko/tablewriter"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/poller"
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/report"
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/store"
)

// Styles
var (
	severityStyles = map[schema.Severity]lipgloss.Style{
		schema.SeverityCritical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#8B0000")),
		schema.SeverityHigh:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000")),
		schema.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")),
		schema.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("#00BFFF")),
		schema.SeverityInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		schema.SeveritySuccess:  lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
	}

	changeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFF00"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

// Severity renders a severity label in its color
func Severity(s schema.Severity) string {
	label := strings.ToUpper(string(s))
	if style, ok := severityStyles[s]; ok {
		return style.Render(label)
	}
	return label
}

// Console prints poller events and record listings for a terminal
type Console struct {
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Notify implements poller.Notifier
func (c *Console) Notify(ev poller.Event) {
	stamp := mutedStyle.Render("[" + ev.Snapshot.At.Format("15:04:05") + "]")

	switch ev.Kind {
	case poller.EventBaseline:
		fmt.Fprintf(c.out, "%s 👀 %s\n", stamp, statusStyle.Render(fmt.Sprintf("Watching: %d records in store", ev.Snapshot.Total)))
		c.Hits(ev.Snapshot.Recent)
	case poller.EventChange:
		fmt.Fprintf(c.out, "%s 🔔 %s\n", stamp, changeStyle.Render(fmt.Sprintf("CHANGE DETECTED: %d new record(s), total %d", ev.Delta, ev.Snapshot.Total)))
		c.Hits(ev.Snapshot.Recent)
	case poller.EventNoChange:
		msg := fmt.Sprintf("No new records (total %d)", ev.Snapshot.Total)
		if ev.Delta < 0 {
			msg = fmt.Sprintf("No new records (total %d, %d fewer than last poll)", ev.Snapshot.Total, -ev.Delta)
		}
		fmt.Fprintf(c.out, "%s ✅ %s\n", stamp, statusStyle.Render(msg))
	case poller.EventError:
		fmt.Fprintf(c.out, "❌ %s\n", errorStyle.Render(fmt.Sprintf("Poll failed: %v", ev.Err)))
		fmt.Fprintf(c.out, "   %s\n", mutedStyle.Render(fmt.Sprintf("retrying in %s", ev.RetryIn)))
	}
}

// Hits prints records as a table, newest first as given
func (c *Console) Hits(hits []schema.Hit) {
	if len(hits) == 0 {
		fmt.Fprintln(c.out, mutedStyle.Render("   (no records)"))
		return
	}

	table := tw.NewWriter(c.out)
	table.SetHeader([]string{"Timestamp", "Severity", "Test Type", "Target", "Result", "Extra"})
	table.SetHeaderLine(true)
	table.SetBorder(true)
	table.SetAutoWrapText(true)
	table.SetAutoFormatHeaders(true)
	table.SetColMinWidth(4, 30)

	for _, h := range hits {
		r := h.Record
		table.Append([]string{r.Timestamp, Severity(r.Severity), r.TestType, r.TargetIP, r.Result, formatExtra(r.Extra)})
	}
	table.Render()
}

// Info prints the cluster identity returned by the root endpoint
func (c *Console) Info(endpoint string, info store.ClusterInfo) {
	fmt.Fprintf(c.out, "✅ %s\n", statusStyle.Render("Connected to "+endpoint))
	fmt.Fprintf(c.out, "   Cluster:      %s\n", info.ClusterName)
	fmt.Fprintf(c.out, "   Node:         %s\n", info.Name)
	fmt.Fprintf(c.out, "   Version:      %s\n", info.Version)
	if info.Distribution != "" {
		fmt.Fprintf(c.out, "   Distribution: %s\n", info.Distribution)
	}
}

// Summary prints severity counts, score and grade
func (c *Console) Summary(s report.Summary) {
	fmt.Fprintln(c.out, headerStyle.Render(fmt.Sprintf("📊 %s: %d records", s.Index, s.Total)))
	for _, sev := range schema.Severities {
		label := strings.ToUpper(string(sev))
		pad := strings.Repeat(" ", max(1, 9-len(label)))
		fmt.Fprintf(c.out, "   %s%s%d\n", Severity(sev), pad, s.Counts[label])
	}
	fmt.Fprintf(c.out, "   Score: %d/100  Grade: %s\n", s.Score, s.Grade)
}

func formatExtra(extra map[string]any) string {
	if len(extra) == 0 {
		return ""
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, extra[k]))
	}
	return strings.Join(parts, " ")
}
