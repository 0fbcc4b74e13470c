package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"iaptool/internal/deps"
	"iaptool/internal/preflight"
	"iaptool/internal/services"
)

type doctorReport struct {
	Checks       []preflight.Result `json:"checks"`
	Dependencies []deps.Status      `json:"dependencies"`
	Admin        bool               `json:"admin_mode"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check probe-rs, the catalog file and the state directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statuses := preflight.CheckSystemDeps(cfg)

			var tool preflight.VersionReporter
			if len(deps.Missing(statuses)) == 0 {
				client, err := ctx.probeTool()
				if err != nil {
					return err
				}
				tool = client
			}
			report := doctorReport{
				Checks:       preflight.RunAll(cmd.Context(), cfg, tool),
				Dependencies: statuses,
				Admin:        ctx.adminEnabled(),
			}

			problems := 0
			for _, r := range report.Checks {
				if !r.Passed {
					problems++
				}
			}
			problems += len(deps.Missing(statuses))

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, r := range report.Checks {
					fmt.Fprintln(out, renderStatusLine(r.Name, statusFromBool(r.Passed, false), r.Detail, colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Admin mode", statusInfo, yesNo(report.Admin), colorize))
				fmt.Fprintln(out)

				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, s := range statuses {
					detail := s.Path
					if !s.Available {
						detail = s.Detail
					}
					fmt.Fprintln(out, renderStatusLine(s.Name, statusFromBool(s.Available, s.Optional), detail, colorize))
				}
			}

			if problems > 0 {
				return fmt.Errorf("%w: doctor found %d problem(s)", services.ErrConfiguration, problems)
			}
			return nil
		},
	}
}
