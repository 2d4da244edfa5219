package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/app"
	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/bootstrap"
	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/config"
)

type applyFlags struct {
	event     string
	workgroup string
	database  string
	secret    string
	bucket    string
	prefix    string
	file      string
	sqlFile   string
	mode      string
	timeout   string
}

func newApplyCmd() *cobra.Command {
	var f applyFlags

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Run the schema bootstrap once and wait for the result",
		Example: `  schemactl apply --workgroup lab2-workgroup --database lab2db \
    --secret redshift-serverless-admin-user-secret --bucket my-sql-bucket
  schemactl apply --sql-file assets/redshift-sql/redshift-tables.sql --secret admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, local, err := f.request(cfg)
			if err != nil {
				return err
			}
			if err := f.override(cmd, cfg); err != nil {
				return err
			}

			sess, err := app.NewSession(cfg.Region)
			if err != nil {
				return err
			}
			h, err := app.NewHandler(cfg, sess, app.Options{LocalAssets: local})
			if err != nil {
				return err
			}

			res := h.Handle(cmd.Context(), req)
			if !res.Succeeded() {
				return res.Err()
			}
			if res.ExecutionID == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: nothing to do for %s\n", res.Status, req.Event)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: applied %d statements (execution %s)\n",
				res.Status, res.Statements, res.ExecutionID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.event, "event", "Create", "lifecycle event to simulate (Create, Update, Delete)")
	flags.StringVar(&f.workgroup, "workgroup", "", "Redshift Serverless workgroup name")
	flags.StringVar(&f.database, "database", "", "database name")
	flags.StringVar(&f.secret, "secret", "", "admin secret name or ARN")
	flags.StringVar(&f.bucket, "bucket", "", "S3 bucket holding the script")
	flags.StringVar(&f.prefix, "prefix", "", "S3 key prefix of the script")
	flags.StringVar(&f.file, "file", "", "script file name below the prefix")
	flags.StringVar(&f.sqlFile, "sql-file", "", "apply a local script instead of one in S3")
	flags.StringVar(&f.mode, "mode", "", "execution mode (dataapi, direct)")
	flags.StringVar(&f.timeout, "timeout", "", "overall execution timeout, e.g. 10m")
	return cmd
}

// request builds the bootstrap request from flags over config defaults. It
// reports whether the script is read from the local filesystem.
func (f applyFlags) request(cfg *config.Config) (bootstrap.Request, bool, error) {
	event, err := bootstrap.ParseEventType(f.event)
	if err != nil {
		return bootstrap.Request{}, false, err
	}

	req := bootstrap.Request{
		Event:          event,
		WorkgroupName:  f.workgroup,
		DatabaseName:   f.database,
		AdminSecretARN: f.secret,
		BucketName:     f.bucket,
		KeyPrefix:      f.prefix,
		SQLFileName:    f.file,
	}

	local := f.sqlFile != ""
	if local {
		abs, err := filepath.Abs(f.sqlFile)
		if err != nil {
			return bootstrap.Request{}, false, fmt.Errorf("resolving %s: %w", f.sqlFile, err)
		}
		req.BucketName = filepath.Dir(abs)
		req.KeyPrefix = "/"
		req.SQLFileName = filepath.Base(abs)
	}

	return req.WithDefaults(cfg.Defaults), local, nil
}

// override applies execution flags to cfg and revalidates it.
func (f applyFlags) override(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("mode") {
		cfg.Execution.Mode = f.mode
	}
	if cmd.Flags().Changed("timeout") {
		d, err := parseDuration(f.timeout)
		if err != nil {
			return err
		}
		cfg.Execution.Timeout = d
	}
	return cfg.Validate()
}
