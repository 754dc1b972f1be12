package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newInitIndexCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "init-index",
		Short: "Create the index with the vulnerability record mapping",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, st, err := loadStore(v)
			if err != nil {
				return err
			}
			created, err := st.EnsureIndex(cmd.Context(), cfg.Index)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Index created: %s\n", cfg.Index)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Index ready: %s (already exists)\n", cfg.Index)
			}
			return nil
		},
	}
}
