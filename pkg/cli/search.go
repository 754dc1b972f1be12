package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/render"
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/store"
	"github.com/yorozuya-cybersecurity/vulnwatch/pkg/utils"
)

func newSearchCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "search",
		Short:   "List records, newest first",
		Example: "vulnwatch search --severity critical,high --since 24h --format json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := queryFromFlags(cmd, time.Now())
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			save, _ := cmd.Flags().GetBool("save")

			cfg, st, err := loadStore(v)
			if err != nil {
				return err
			}
			hits, err := st.Search(cmd.Context(), cfg.Index, q)
			if err != nil {
				return err
			}

			if err := writeHits(cmd.OutOrStdout(), hits, format); err != nil {
				return err
			}
			if save {
				file, err := utils.SaveHits(hits, cfg.Index, v.GetString("output"), utils.FormatJSON)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "📦 Saved %d records to %s\n", len(hits), file)
			}
			return nil
		},
	}

	cmd.Flags().StringSlice("severity", nil, "Only these severities (comma separated)")
	cmd.Flags().String("target-ip", "", "Only records for this target")
	cmd.Flags().String("test-type", "", "Only records of this test type")
	cmd.Flags().String("since", "", "Only records newer than a duration (24h) or RFC 3339 time")
	cmd.Flags().Int("size", store.DefaultSearchSize, "Maximum number of records")
	cmd.Flags().String("format", "table", "Output format: table, json or yaml")
	cmd.Flags().Bool("save", false, "Also save the results as JSON under the output directory")
	return cmd
}

func queryFromFlags(cmd *cobra.Command, now time.Time) (store.Query, error) {
	flags := cmd.Flags()
	sevs, _ := flags.GetStringSlice("severity")
	target, _ := flags.GetString("target-ip")
	testType, _ := flags.GetString("test-type")
	since, _ := flags.GetString("since")
	size, _ := flags.GetInt("size")

	q := store.Query{TargetIP: target, TestType: testType, Size: size}
	for _, s := range sevs {
		sev, err := schema.ParseSeverity(s)
		if err != nil {
			return q, err
		}
		q.Severities = append(q.Severities, sev)
	}
	if since != "" {
		t, err := parseSince(since, now)
		if err != nil {
			return q, err
		}
		q.Since = t
	}
	return q, nil
}

// parseSince accepts a lookback duration or an absolute RFC 3339 time
func parseSince(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: use a duration like 24h or an RFC 3339 time", s)
	}
	return t, nil
}

func writeHits(w io.Writer, hits []schema.Hit, format string) error {
	switch strings.ToLower(format) {
	case "", "table":
		render.NewConsole(w).Hits(hits)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(hits)
	default:
		return fmt.Errorf("unknown format %q: use table, json or yaml", format)
	}
}
