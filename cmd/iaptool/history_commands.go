package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"iaptool/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the flash attempt journal",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	filter := history.Filter{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent flash attempts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(ctx.configValue())
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, entries)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No flash attempts recorded")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.StartedAt.Local().Format("2006-01-02 15:04:05"),
					e.Series + " / " + e.Product,
					e.Firmware + " " + e.Version,
					e.ChipType,
					e.Probe,
					e.Outcome,
					e.Duration().Round(time.Millisecond).String(),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Product", "Firmware", "Chip", "Probe", "Outcome", "Took"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				"",
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Maximum number of attempts to show (0 for all)")
	cmd.Flags().StringVar(&filter.Outcome, "outcome", "", "Only show this outcome (success, probe_open_failed, attach_failed, download_failed)")
	cmd.Flags().StringVar(&filter.Series, "series", "", "Only show this series")
	cmd.Flags().StringVar(&filter.Product, "product", "", "Only show this product")
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded flash attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.requireAdmin(); err != nil {
				return err
			}
			store, err := history.Open(ctx.configValue())
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]int64{"removed": removed})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d flash attempt(s)\n", removed)
			return nil
		},
	}
}
