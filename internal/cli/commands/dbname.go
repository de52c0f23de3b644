package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/connectome/emschema/internal/cli/ui"
)

func newDBNameCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dbname",
		Short: "Show the versioned database of the manifest",
		Example: `  # With aligned_volume: minnie65 and version: 3
  emschema dbname
  # minnie65_v3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			name := e.cfg.DatabaseName()
			if name == "" {
				ui.ConfigError(fmt.Errorf("version is not set in the manifest"), opts.noColor).Write(e.errOut)
				return errReported
			}

			fmt.Fprintln(e.out, name)
			if url := e.cfg.GetDatabaseURL(); url != "" {
				fmt.Fprintln(e.out, url)
			}
			return nil
		},
	}
}
