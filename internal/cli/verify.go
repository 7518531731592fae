package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcmelo/snkbridge/internal/cli/appctx"
	"github.com/rcmelo/snkbridge/internal/sankhya"
	"github.com/rcmelo/snkbridge/internal/verify"
)

var verifySQLFile string

var verifyCmd = &cobra.Command{
	Use:   "verify ENTITY",
	Short: "Compare a source hierarchy against its Odoo counterpart",
	Long: `Rebuilds the parent/child tree from Sankhya and from Odoo and prints
a unified diff of the two. Read-only: nothing is written to either
system. Supported entities: group, location.`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.Options{NeedsOdoo: true, NeedsSankhya: true}, runVerify),
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifySQLFile, "sql", "", "Path to a SQL file overriding the embedded query")
}

func runVerify(app *appctx.App, cmd *cobra.Command, args []string) error {
	ent, err := verify.ByName(args[0])
	if err != nil {
		return err
	}

	var sqlOverride string
	if verifySQLFile != "" {
		sqlOverride, err = sankhya.LoadSQL(verifySQLFile)
		if err != nil {
			return err
		}
	}

	diff, err := verify.Diff(cmd.Context(), app.Sankhya, app.Odoo, ent, sqlOverride)
	if err != nil {
		return err
	}

	if diff == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s hierarchy is in sync\n", ent.Name)
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), diff)
	return fmt.Errorf("%s hierarchy differs between source and target", ent.Name)
}
