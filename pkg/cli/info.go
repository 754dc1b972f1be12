package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/render"
)

func newInfoCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Check connectivity and print the cluster identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, st, err := loadStore(v)
			if err != nil {
				return err
			}
			info, err := st.Info(cmd.Context())
			if err != nil {
				return err
			}
			render.NewConsole(cmd.OutOrStdout()).Info(cfg.Endpoint, info)
			return nil
		},
	}
}
