package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcmelo/snkbridge/internal/cli/appctx"
	"github.com/rcmelo/snkbridge/internal/hierarchy"
	"github.com/rcmelo/snkbridge/internal/journal"
	"github.com/rcmelo/snkbridge/internal/sankhya"
	"github.com/rcmelo/snkbridge/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load entities from Sankhya into Odoo",
	Long: `Loads one entity type out of Sankhya and reconciles it into Odoo.
Runs are idempotent: records are matched by their Sankhya code and
updated in place, never duplicated.`,
}

var (
	syncSQLFile string
	syncJobs    int
)

// syncFunc is the shape every entity sync shares.
type syncFunc func(ctx context.Context, src sync.Source, store hierarchy.Store, opts sync.Options) (*hierarchy.Report, error)

var syncGroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Sync product groups into product.category",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(syncAppOptions(), runSync(sync.Groups)),
}

var syncLocationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Sync stock locations into stock.location",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(syncAppOptions(), runSync(sync.Locations)),
}

var syncPartnersCmd = &cobra.Command{
	Use:   "partners",
	Short: "Sync business partners into res.partner",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(syncAppOptions(), runSync(sync.Partners)),
}

var syncProductsCmd = &cobra.Command{
	Use:   "products",
	Short: "Sync products into product.template",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(syncAppOptions(), runSync(sync.Products)),
}

var syncStockCmd = &cobra.Command{
	Use:   "stock",
	Short: "Sync stock balances into stock.quant",
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(syncAppOptions(), runSync(sync.Stock)),
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.PersistentFlags().StringVar(&syncSQLFile, "sql", "", "Path to a SQL file overriding the embedded query")
	syncCmd.PersistentFlags().IntVar(&syncJobs, "jobs", 1, "Number of concurrent workers")

	syncCmd.AddCommand(syncGroupsCmd)
	syncCmd.AddCommand(syncLocationsCmd)
	syncCmd.AddCommand(syncPartnersCmd)
	syncCmd.AddCommand(syncProductsCmd)
	syncCmd.AddCommand(syncStockCmd)
}

func syncAppOptions() appctx.Options {
	return appctx.Options{
		NeedsOdoo:    true,
		NeedsSankhya: true,
		NeedsJournal: true,
	}
}

func runSync(fn syncFunc) appctx.RunFunc {
	return func(app *appctx.App, cmd *cobra.Command, args []string) error {
		opts := sync.Options{
			Jobs: syncJobs,
			Log:  app.Log,
		}
		if syncSQLFile != "" {
			sql, err := sankhya.LoadSQL(syncSQLFile)
			if err != nil {
				return err
			}
			opts.SQL = sql
		}

		report, err := fn(cmd.Context(), app.Sankhya, app.Odoo, opts)
		if err != nil {
			return err
		}

		if err := app.Journal.Append(journal.FromReport(report)); err != nil {
			app.Log.WithError(err).Warn("failed to record run in journal")
		}

		if err := renderReport(app, cmd, report); err != nil {
			return err
		}
		if !report.Clean() {
			return fmt.Errorf("%s sync finished with %d errors", report.Entity, report.Errors+report.LinkErrors)
		}
		return nil
	}
}
