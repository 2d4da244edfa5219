package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/sqlscript"
	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/warehouse"
)

func newSplitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split <file.sql>",
		Short: "Print the statements a script would be submitted as",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			statements := sqlscript.Split(string(body))
			out := cmd.OutOrStdout()
			for i, stmt := range statements {
				fmt.Fprintf(out, "-- [%d]\n%s;\n\n", i+1, stmt)
			}
			fmt.Fprintf(out, "-- %d statements\n", len(statements))

			if len(statements) > warehouse.MaxBatchStatements {
				return fmt.Errorf("%d statements exceed the Data API batch limit of %d",
					len(statements), warehouse.MaxBatchStatements)
			}
			return nil
		},
	}
}
