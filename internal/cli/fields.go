package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rcmelo/snkbridge/internal/cli/appctx"
	"github.com/rcmelo/snkbridge/internal/render"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields MODEL",
	Short: "Inspect an Odoo model's field metadata",
	Long: `Dumps the fields of an Odoo model as the server reports them, which
is how custom columns (x_sankhya_id and friends) are discovered before
wiring a sync against a new database.`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.Options{NeedsOdoo: true}, runFields),
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
}

func runFields(app *appctx.App, cmd *cobra.Command, args []string) error {
	model := args[0]

	fields, err := app.Odoo.FieldsGet(model)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		attrs := fields[name]
		fieldType, _ := attrs["type"].(string)
		label, _ := attrs["string"].(string)
		required := "no"
		if r, ok := attrs["required"].(bool); ok && r {
			required = "yes"
		}
		rows = append(rows, []string{name, fieldType, label, required})
	}

	format, err := render.ParseFormat(app.Config.Output)
	if err != nil {
		return err
	}
	r := render.NewRenderer(cmd.OutOrStdout(), format)
	if err := r.Structured(fields, []string{"FIELD", "TYPE", "LABEL", "REQUIRED"}, rows); err != nil {
		return err
	}
	if format == render.FormatTable {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d fields on %s\n", len(fields), model)
	}
	return nil
}
