package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/connectome/emschema/internal/cli/ui"
	"github.com/connectome/emschema/internal/orm/codegen"
	"github.com/connectome/emschema/internal/orm/schemas"
)

func newTypesCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the registered schema types",
		Example: `  # List every schema type with its column counts
  emschema types`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := schemas.NewRegistry()
			if err != nil {
				return err
			}

			table := ui.NewTable(cmd.OutOrStdout(), opts.noColor, "TYPE", "FIELDS", "ANNOTATION", "SEGMENTATION")
			for _, name := range registry.GetTypes() {
				def, err := registry.GetSchema(name)
				if err != nil {
					return err
				}
				flat, err := registry.GetFlatSchema(name)
				if err != nil {
					return err
				}
				annotation, segmentation, err := codegen.Split(flat)
				if err != nil {
					return err
				}
				table.AddRow(name,
					strconv.Itoa(def.Len()),
					strconv.Itoa(annotation.Len()),
					strconv.Itoa(segmentation.Len()),
				)
			}
			table.Render()

			for _, name := range registry.GetTypes() {
				for _, w := range registry.Warnings(name) {
					ui.Message{Level: ui.LevelWarning, Problem: w, NoColor: opts.noColor}.Write(cmd.ErrOrStderr())
				}
			}
			return nil
		},
	}
}
