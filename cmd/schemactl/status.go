package main

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/service/redshiftdataapiservice"
	"github.com/spf13/cobra"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/app"
	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/warehouse"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <execution-id>",
		Short: "Show the Data API status of a submitted schema batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.NewSession(cfg.Region)
			if err != nil {
				return err
			}

			exec, err := warehouse.NewDataAPIExecutor(redshiftdataapiservice.New(sess)).Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", exec.ID, exec.State)
			if exec.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "error: %s\n", exec.Error)
			}
			return nil
		},
	}
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", d)
	}
	return d, nil
}
