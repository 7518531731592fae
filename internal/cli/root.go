package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "snkbridge",
	Short: "Synchronize Sankhya ERP reference data into Odoo",
	Long: `snkbridge loads product groups, stock locations, partners, products
and stock balances out of a Sankhya ERP and reconciles them into an
Odoo database, preserving the source hierarchies.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format: table, json or yaml (overrides SNKBRIDGE_OUTPUT)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides SNKBRIDGE_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("journal", "", "Path to the run journal database (overrides SNKBRIDGE_JOURNAL)")
}
