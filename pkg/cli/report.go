package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/render"
	reportpkg "github.com/yorozuya-cybersecurity/vulnwatch/internal/report"
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/store"
	"github.com/yorozuya-cybersecurity/vulnwatch/pkg/utils"
)

func newReportCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Short:   "Summarize recent records by severity as text, HTML or JSON",
		Example: "vulnwatch report --size 200 --format text,html",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, v)
		},
	}

	cmd.Flags().String("from", "", "Summarize a saved records.json instead of querying the index")
	cmd.Flags().Int("size", 100, "Number of most recent records to include")
	cmd.Flags().String("format", "text,html", "Output formats: text,html,json")

	_ = v.BindPFlag("report.from", cmd.Flags().Lookup("from"))
	_ = v.BindPFlag("report.size", cmd.Flags().Lookup("size"))
	_ = v.BindPFlag("report.format", cmd.Flags().Lookup("format"))
	return cmd
}

func runReport(cmd *cobra.Command, v *viper.Viper) error {
	formats := strings.Split(v.GetString("report.format"), ",")
	for i := range formats {
		formats[i] = strings.TrimSpace(strings.ToLower(formats[i]))
	}
	for _, f := range formats {
		if f != "text" && f != "html" && f != "json" {
			return fmt.Errorf("unsupported report format %q", f)
		}
	}

	size := v.GetInt("report.size")
	if size <= 0 {
		return fmt.Errorf("--size must be positive, got %d", size)
	}

	index, hits, err := reportHits(cmd, v, size)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	summary := reportpkg.Summarize(index, hits)

	if contains(formats, "text") {
		render.NewConsole(out).Summary(summary)
	}

	if contains(formats, "html") {
		dir := utils.ExportDir(v.GetString("output"), index, time.Now())
		htmlPath, err := reportpkg.GenerateHTML(summary, dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "📝 HTML report: %s\n", htmlPath)
	}

	if contains(formats, "json") {
		file, err := utils.SaveHits(hits, index, v.GetString("output"), utils.FormatJSON)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "📦 JSON records: %s\n", file)
	}

	return nil
}

// reportHits loads the records to summarize, either from a saved export or
// from the newest records in the index
func reportHits(cmd *cobra.Command, v *viper.Viper, size int) (string, []schema.Hit, error) {
	if from := v.GetString("report.from"); from != "" {
		hits, err := utils.LoadHits(from)
		if err != nil {
			return "", nil, err
		}
		index := v.GetString("index")
		if len(hits) > 0 && hits[0].Index != "" {
			index = hits[0].Index
		}
		return index, hits, nil
	}

	cfg, st, err := loadStore(v)
	if err != nil {
		return "", nil, err
	}
	hits, err := st.Search(cmd.Context(), cfg.Index, store.Query{Size: size})
	if err != nil {
		return "", nil, err
	}
	return cfg.Index, hits, nil
}

func contains(arr []string, v string) bool {
	for _, x := range arr {
		if x == v {
			return true
		}
	}
	return false
}
