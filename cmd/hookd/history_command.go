package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"hookd/internal/audit"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var showStats bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent policy decisions from the audit journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg := ctx.configValue()
			if !cfg.Audit.Enabled {
				fmt.Fprintln(stdout, "Audit journal is disabled (enable it under [audit] in the config)")
				return nil
			}

			// The journal is read directly so history works after the
			// daemon exits.
			store, err := audit.Open(cfg.AuditDBPath())
			if err != nil {
				return fmt.Errorf("open audit journal: %w", err)
			}
			defer store.Close()

			if showStats {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Total decisions: %d (avg latency %.1f ms)\n", stats.Total, stats.AvgLatencyMS)
				for decision, count := range stats.ByDecision {
					fmt.Fprintf(stdout, "  %s: %d\n", decision, count)
				}
				return nil
			}

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(stdout, "No decisions recorded")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					rec.Event,
					rec.Decision,
					rec.TerminatedBy,
					strconv.FormatInt(rec.DurationMS, 10),
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]string{"When", "Event", "Decision", "Handler", "ms"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of decisions to show")
	cmd.Flags().BoolVar(&showStats, "stats", false, "Show aggregate decision statistics")
	return cmd
}
