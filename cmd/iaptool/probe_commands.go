package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"iaptool/internal/hotplug"
	"iaptool/internal/probe"
)

func newProbesCommand(ctx *commandContext) *cobra.Command {
	probesCmd := &cobra.Command{
		Use:   "probes",
		Short: "Enumerate and watch debug probes",
	}
	probesCmd.AddCommand(newProbesListCommand(ctx))
	probesCmd.AddCommand(newProbesWatchCommand(ctx))
	return probesCmd
}

func newProbesListCommand(ctx *commandContext) *cobra.Command {
	var wide bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List connected debug probes",
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := ctx.probeTool()
			if err != nil {
				return err
			}
			probes, err := tool.List(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, probes)
			}

			out := cmd.OutOrStdout()
			if len(probes) == 0 {
				fmt.Fprintln(out, "No debug probes found")
				return nil
			}
			if !wide {
				for _, p := range probes {
					fmt.Fprintln(out, p.Label())
				}
				return nil
			}
			rows := make([][]string, 0, len(probes))
			for _, p := range probes {
				rows = append(rows, []string{strconv.Itoa(p.Index), p.Identifier, p.Selector(), p.Serial(), string(p.Kind)})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Identifier", "Selector", "Serial", "Kind"}, rows, []columnAlignment{alignRight}, ""))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&wide, "wide", "w", false, "Render a table with selectors and probe kinds")
	return cmd
}

func newProbesWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print debug probes as they are plugged in or removed",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			asJSON := ctx.jsonOutput()
			colorize := shouldColorize(out)
			monitor := hotplug.NewMonitor(ctx.log(), func(_ context.Context, ev hotplug.Event) {
				if asJSON {
					_ = writeJSONLine(out, ev)
					return
				}
				fmt.Fprintln(out, renderHotplugEvent(ev, colorize))
			}, hotplug.ProbeVendors...)

			if err := monitor.Start(runCtx); err != nil {
				return err
			}
			defer monitor.Stop()

			if !asJSON {
				fmt.Fprintln(cmd.ErrOrStderr(), "Watching for debug probes (Ctrl+C to stop)")
			}
			<-runCtx.Done()
			return nil
		},
	}
}

func renderHotplugEvent(ev hotplug.Event, colorize bool) string {
	kind := statusInfo
	switch ev.Action {
	case "add":
		kind = statusOK
	case "remove":
		kind = statusWarn
	}
	detail := ev.Selector()
	if ev.Product != "" {
		detail += " " + ev.Product
	}
	if ev.Kind != "" && ev.Kind != probe.KindUnknown {
		detail += " (" + string(ev.Kind) + ")"
	}
	return renderStatusLine(ev.Action, kind, detail, colorize)
}
