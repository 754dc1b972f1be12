package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/ingest"
)

func newImportCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "import",
		Short:   "Post the results of a nuclei JSON export as records",
		Example: "vulnwatch import --from ./nuclei_results.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, _ := cmd.Flags().GetString("from")
			if from == "" {
				return errors.New("please provide --from pointing to a nuclei -json-export or -jsonl file")
			}

			records, err := ingest.LoadNuclei(from)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "ℹ️  No results in %s\n", from)
				return nil
			}

			cfg, st, err := loadStore(v)
			if err != nil {
				return err
			}
			posted, err := postAll(cmd.Context(), cmd.OutOrStdout(), st, cfg.Index, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Imported %d records from %s\n", posted, from)
			return nil
		},
	}

	cmd.Flags().String("from", "", "nuclei export file")
	return cmd
}
