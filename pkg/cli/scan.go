package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/ingest"
)

func newScanCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run nuclei against a target and post its results as records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := v.GetString("scan.target")
			if target == "" {
				return errors.New("please provide --target")
			}
			attest := v.GetString("scan.attest")
			if attest == "" {
				return errors.New("please provide --attest to confirm authorization")
			}

			cfg, st, err := loadStore(v)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "🚀 Running nuclei scan for %s\n", target)
			records, err := ingest.RunNuclei(cmd.Context(), target)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "✅ Scan complete. No findings.")
				return nil
			}

			posted, err := postAll(cmd.Context(), cmd.OutOrStdout(), st, cfg.Index, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Scan complete. Posted %d of %d findings to %s\n", posted, len(records), cfg.Index)
			return nil
		},
	}

	cmd.Flags().String("target", "", "Target to scan (URL, domain or IP)")
	cmd.Flags().String("attest", "", "Authorization statement (e.g., 'I am authorized to test this target')")
	_ = v.BindPFlag("scan.target", cmd.Flags().Lookup("target"))
	_ = v.BindPFlag("scan.attest", cmd.Flags().Lookup("attest"))

	return cmd
}
