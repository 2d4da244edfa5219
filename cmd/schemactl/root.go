package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/config"
	applog "github.com/kiquetal/ultimate-aws-data-engineering-book/internal/log"
)

var (
	cfgFile  string
	logLevel string
	region   string

	// cfg is populated by PersistentPreRunE and shared with all subcommands.
	cfg *config.Config
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemactl",
		Short: "Apply and inspect the lab2 Redshift schema bootstrap",
		Long: `schemactl runs the schema bootstrap that the Custom::RedshiftSchema
resource runs during deployment: fetch the SQL script, resolve the admin
secret, submit one batch to the workgroup and wait for it to finish.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&region, "region", "", "AWS region (defaults to the shared config chain)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		// Flags take precedence over values from the file and environment.
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("region") {
			cfg.Region = region
		}
		applog.InitLogger(cfg.Log.Level, applog.FormatCLI)
		return nil
	}

	cmd.AddCommand(newApplyCmd())
	cmd.AddCommand(newSplitCmd())
	cmd.AddCommand(newStatusCmd())
	return cmd
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
