package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcmelo/snkbridge/internal/cli/appctx"
	"github.com/rcmelo/snkbridge/internal/render"
)

var (
	runsEntity string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded sync runs",
	Long:  `Lists past runs from the local journal, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(appctx.Options{NeedsJournal: true}, runRuns),
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().StringVar(&runsEntity, "entity", "", "Only show runs for one entity")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to show (0 = all)")
}

func runRuns(app *appctx.App, cmd *cobra.Command, args []string) error {
	records, err := app.Journal.List(runsEntity, runsLimit)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		id := rec.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows = append(rows, []string{
			id,
			rec.Entity,
			rec.StartedAt.Local().Format(time.DateTime),
			strconv.Itoa(rec.Total),
			strconv.Itoa(rec.Created),
			strconv.Itoa(rec.Updated),
			strconv.Itoa(rec.Errors + rec.LinkErrors),
			strconv.Itoa(rec.ParentsLinked),
			strconv.Itoa(rec.RunOrphans),
		})
	}

	format, err := render.ParseFormat(app.Config.Output)
	if err != nil {
		return err
	}
	r := render.NewRenderer(cmd.OutOrStdout(), format)
	headers := []string{"RUN", "ENTITY", "STARTED", "TOTAL", "CREATED", "UPDATED", "ERRORS", "LINKED", "ORPHANS"}
	return r.Structured(records, headers, rows)
}
