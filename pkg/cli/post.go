package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
)

func newPostCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "post",
		Short:   "Post one vulnerability record",
		Example: `vulnwatch post --test-type port_scan --target-ip 10.0.0.5 --severity high --result "RDP exposed" --field port=3389 --field service=rdp`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := recordFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := rec.Validate(); err != nil {
				return fmt.Errorf("invalid record: %w", err)
			}

			cfg, st, err := loadStore(v)
			if err != nil {
				return err
			}
			hit, err := st.Insert(cmd.Context(), cfg.Index, rec)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✅ Record posted\n")
			fmt.Fprintf(cmd.OutOrStdout(), "   ID:    %s\n", hit.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "   Index: %s\n", hit.Index)
			return nil
		},
	}

	cmd.Flags().String("test-type", "", "Kind of test that produced the record (e.g. port_scan)")
	cmd.Flags().String("target-ip", "", "Target IP address or hostname")
	cmd.Flags().String("severity", string(schema.SeverityInfo), "critical, high, medium, low, info or success")
	cmd.Flags().String("result", "", "Free-text result")
	cmd.Flags().String("timestamp", "", "RFC 3339 timestamp (default now)")
	cmd.Flags().StringArray("field", nil, "Extra field as key=value, repeatable (e.g. port=22)")
	return cmd
}

func recordFromFlags(cmd *cobra.Command) (schema.Record, error) {
	flags := cmd.Flags()
	testType, _ := flags.GetString("test-type")
	targetIP, _ := flags.GetString("target-ip")
	sevFlag, _ := flags.GetString("severity")
	result, _ := flags.GetString("result")
	timestamp, _ := flags.GetString("timestamp")
	fields, _ := flags.GetStringArray("field")

	if testType == "" || targetIP == "" {
		return schema.Record{}, errors.New("please provide --test-type and --target-ip")
	}
	sev, err := schema.ParseSeverity(sevFlag)
	if err != nil {
		return schema.Record{}, err
	}

	rec := schema.NewRecord(testType, targetIP, sev, result)
	if timestamp != "" {
		rec.Timestamp = timestamp
	}
	extra, err := parseFields(fields)
	if err != nil {
		return schema.Record{}, err
	}
	rec.Extra = extra
	return rec, nil
}

// parseFields turns key=value pairs into typed extra fields. Integers,
// floats and booleans keep their JSON type; everything else is a string.
func parseFields(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --field %q: expected key=value", pair)
		}
		out[key] = typedValue(value)
	}
	return out, nil
}

func typedValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
