package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/connectome/emschema/internal/cli/ui"
	"github.com/connectome/emschema/internal/orm/models"
)

func newCompileCommand(opts *globalOptions) *cobra.Command {
	var flat bool

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the dataset manifest and show its tables",
		Long: `Compile every table of the dataset manifest and print the resulting
columns. With a segmentation source each schema yields the annotation table
<table> and the segmentation table <table>__<source>.`,
		Example: `  # Compile emschema.yaml in the current directory
  emschema compile

  # Compile every table as a single flat table
  emschema compile --flat --config minnie65.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			var ms []*models.Model
			if flat {
				ms, err = e.compileFlat()
			} else {
				ms, err = e.compile()
			}
			if err != nil {
				return err
			}

			for _, m := range ms {
				renderModel(e, m)
			}
			ui.WriteSuccess(e.out, fmt.Sprintf("compiled %d tables", len(ms)), opts.noColor)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flat, "flat", false, "compile each table without the segmentation split")
	return cmd
}

func renderModel(e *env, m *models.Model) {
	ui.Header(e.out, m.TableName(), e.opts.noColor)

	kv := ui.NewKeyValueTable(e.out, e.opts.noColor)
	kv.AddRow("identity", m.PolymorphicIdentity())
	kv.AddRow("kind", m.Kind().String())
	kv.AddRow("concrete", strconv.FormatBool(m.Concrete()))
	if m.Parent() != nil {
		kv.AddRow("parent", m.Parent().TableName())
	}
	kv.Render()
	fmt.Fprintln(e.out)

	table := ui.NewTable(e.out, e.opts.noColor, "COLUMN", "TYPE", "KEY", "INDEXED", "NULLABLE", "REFERENCES")
	for _, c := range m.Columns() {
		key := ""
		if c.PrimaryKey {
			key = "PK"
		}
		table.AddRow(c.Name,
			c.Type.String(),
			key,
			yesNo(c.Indexed),
			yesNo(c.Nullable),
			c.ForeignKey,
		)
	}
	table.Render()
	fmt.Fprintln(e.out)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
