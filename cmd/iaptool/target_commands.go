package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"iaptool/internal/services"
	"iaptool/internal/target"
)

func newTargetsCommand(ctx *commandContext) *cobra.Command {
	targetsCmd := &cobra.Command{
		Use:   "targets",
		Short: "Query the probe-rs chip database",
	}
	targetsCmd.AddCommand(newTargetsFamiliesCommand(ctx))
	targetsCmd.AddCommand(newTargetsListCommand(ctx))
	return targetsCmd
}

func newTargetsFamiliesCommand(ctx *commandContext) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "families",
		Short: "List chip families",
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := ctx.probeTool()
			if err != nil {
				return err
			}
			reg := ctx.targets(tool)
			if refresh {
				if err := reg.Refresh(cmd.Context()); err != nil {
					return err
				}
			}
			families, err := reg.Families(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, families)
			}
			out := cmd.OutOrStdout()
			for _, name := range families {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-read the chip list from probe-rs and rewrite the cache")
	return cmd
}

func newTargetsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <family>",
		Short: "List the chip types of one family",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := ctx.probeTool()
			if err != nil {
				return err
			}
			chips, err := ctx.targets(tool).TargetsForFamily(cmd.Context(), args[0])
			if errors.Is(err, target.ErrUnknownFamily) {
				return fmt.Errorf("%w: %w", services.ErrNotFound, err)
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, chips)
			}
			out := cmd.OutOrStdout()
			for _, chip := range chips {
				fmt.Fprintln(out, chip)
			}
			return nil
		},
	}
}
