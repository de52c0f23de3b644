package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/connectome/emschema/internal/orm/migrate"
)

func newDDLCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ddl",
		Short: "Print the PostGIS DDL for the dataset manifest",
		Example: `  # Write the DDL to a file
  emschema ddl > schema.sql`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			ms, err := e.compile()
			if err != nil {
				return err
			}
			stmts, err := migrate.Plan(ms)
			if err != nil {
				return err
			}
			for _, stmt := range stmts {
				fmt.Fprintln(e.out, stmt)
			}
			return nil
		},
	}
}
