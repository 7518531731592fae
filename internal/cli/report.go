package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcmelo/snkbridge/internal/cli/appctx"
	"github.com/rcmelo/snkbridge/internal/hierarchy"
	"github.com/rcmelo/snkbridge/internal/render"
)

// renderReport writes the run summary in the configured output format.
func renderReport(app *appctx.App, cmd *cobra.Command, report *hierarchy.Report) error {
	format, err := render.ParseFormat(app.Config.Output)
	if err != nil {
		return err
	}
	r := render.NewRenderer(cmd.OutOrStdout(), format)

	data := map[string]any{
		"entity":         report.Entity,
		"total":          report.Total,
		"created":        report.Created,
		"updated":        report.Updated,
		"errors":         report.Errors,
		"parents_linked": report.ParentsLinked,
		"run_orphans":    report.RunOrphans,
		"cycle_skips":    report.CycleSkips,
		"link_errors":    report.LinkErrors,
		"self_refs":      report.SelfRefs,
		"source_orphans": report.SourceOrphans,
		"cycles":         report.Cycles,
		"duration":       report.Duration().String(),
	}

	headers := []string{
		"ENTITY", "TOTAL", "CREATED", "UPDATED", "ERRORS",
		"LINKED", "ORPHANS", "CYCLE-SKIPS", "LINK-ERRORS", "DURATION",
	}
	rows := [][]string{{
		report.Entity,
		strconv.Itoa(report.Total),
		strconv.Itoa(report.Created),
		strconv.Itoa(report.Updated),
		strconv.Itoa(report.Errors),
		strconv.Itoa(report.ParentsLinked),
		strconv.Itoa(report.RunOrphans),
		strconv.Itoa(report.CycleSkips),
		strconv.Itoa(report.LinkErrors),
		report.Duration().Round(time.Millisecond).String(),
	}}

	return r.Structured(data, headers, rows)
}
