package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/config"
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/store"
)

var (
	Version = "0.1.0"
	rootCmd *cobra.Command
)

// openStore connects commands to the document store
var openStore = func(cfg config.Config) (store.Store, error) {
	return store.NewOpenSearch(cfg.StoreOptions())
}

func init() {
	rootCmd = newRootCmd(viper.GetViper())
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vulnwatch",
		Short:         "Post, query and watch pentest vulnerability records in OpenSearch",
		Long:          "vulnwatch posts penetration-test vulnerability records to an OpenSearch index, lists them, and watches the index for new records.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfgFile, _ := cmd.Flags().GetString("config")
			if err := config.ReadFile(v, cfgFile); err != nil {
				return err
			}
			return config.ConfigureLogging(v.GetString(config.KeyLogLevel))
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.String("config", "", "Config file (default .vulnwatch.yaml in the working directory or $HOME)")
	pf.String("env-file", ".env", "Dotenv file loaded before reading the environment")
	pf.String("endpoint", "", "OpenSearch base URL, e.g. https://localhost:9200")
	pf.String("index", store.DefaultIndex, "Index holding vulnerability records")
	pf.String("username", "", "Basic auth username")
	pf.String("password", "", "Basic auth password")
	pf.Bool("insecure", false, "Skip TLS certificate verification")
	pf.Duration("timeout", 30*time.Second, "HTTP timeout per request")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.StringP("output", "o", "./reports", "Output directory for exports and reports")

	for _, key := range []string{
		config.KeyEndpoint, config.KeyIndex, config.KeyUsername, config.KeyPassword,
		config.KeyInsecure, config.KeyTimeout, config.KeyLogLevel, "output",
	} {
		_ = v.BindPFlag(key, pf.Lookup(key))
	}

	// Environment variable support (VULNWATCH_ENDPOINT, etc.)
	config.SetDefaults(v)

	// Subcommands
	cmd.AddCommand(newInfoCmd(v))
	cmd.AddCommand(newInitIndexCmd(v))
	cmd.AddCommand(newPostCmd(v))
	cmd.AddCommand(newSearchCmd(v))
	cmd.AddCommand(newWatchCmd(v))
	cmd.AddCommand(newSeedCmd(v))
	cmd.AddCommand(newImportCmd(v))
	cmd.AddCommand(newScanCmd(v))
	cmd.AddCommand(newReportCmd(v))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

// loadStore resolves the configuration and opens the store
func loadStore(v *viper.Viper) (config.Config, store.Store, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return cfg, nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, st, nil
}
