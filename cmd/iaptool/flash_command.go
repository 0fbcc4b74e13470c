package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"iaptool/internal/config"
	"iaptool/internal/deps"
	"iaptool/internal/fileutil"
	"iaptool/internal/flash"
	"iaptool/internal/history"
	"iaptool/internal/logging"
	"iaptool/internal/preflight"
	"iaptool/internal/probe"
	"iaptool/internal/services"
)

// flashReport is the JSON shape of one flash attempt.
type flashReport struct {
	flash.Result
	Series   string `json:"series"`
	Product  string `json:"product"`
	Firmware string `json:"firmware"`
	Version  string `json:"version"`
	ChipType string `json:"chip_type"`
	Probe    string `json:"probe"`
	Error    string `json:"error,omitempty"`
}

func newFlashCommand(ctx *commandContext) *cobra.Command {
	flags := &entryFlags{}
	var probeSelector string
	var formatFlag string
	var baseAddress string
	var allowEraseAll bool

	cmd := &cobra.Command{
		Use:   "flash",
		Short: "Program a catalog image onto the target through a probe",
		Long: "Resolve one catalog image and program it through the selected probe. --probe takes the\n" +
			"index printed by `iaptool probes list` or a VID:PID[:SERIAL] selector.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.requireLocation(); err != nil {
				return err
			}
			if strings.TrimSpace(probeSelector) == "" {
				return fmt.Errorf("%w: --probe is required", services.ErrValidation)
			}

			image, err := lookupEntry(ctx.loadCatalog(), flags)
			if err != nil {
				return err
			}

			format, err := flash.ParseFormat(firstNonEmpty(formatFlag, cfg.Flash.Format))
			if err != nil {
				return fmt.Errorf("%w: %w", services.ErrValidation, err)
			}
			base, err := resolveBaseAddress(cfg, baseAddress)
			if err != nil {
				return err
			}

			if missing := deps.Missing(preflight.CheckSystemDeps(cfg)); len(missing) > 0 {
				return services.Wrap(services.ErrConfiguration, "flash", "preflight", missing[0].Detail, nil)
			}
			tool, err := ctx.probeTool()
			if err != nil {
				return err
			}
			probes, err := tool.List(cmd.Context())
			if err != nil {
				return err
			}
			desc, err := probe.Match(probes, probeSelector)
			if err != nil {
				return fmt.Errorf("%w: %w", services.ErrValidation, err)
			}

			req := flash.Request{
				Probe:       desc,
				Image:       image,
				Format:      format,
				Permissions: flash.Permissions{AllowEraseAll: allowEraseAll || cfg.Flash.AllowEraseAll},
				BaseAddress: base,
			}
			orchestrator := flash.NewOrchestrator(tool, tool,
				flash.WithTargets(ctx.targets(tool)),
				flash.WithLogger(ctx.log()),
			)
			res := orchestrator.Run(cmd.Context(), req)

			if cfg.Flash.RecordHistory {
				entry := history.EntryFromResult(flags.series, flags.product, req, res)
				if digest, err := fileutil.HashFile(image.FWPath); err == nil {
					entry.FWSHA256 = digest.SHA256
				}
				recordAttempt(cmd.Context(), ctx, cfg, entry)
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, flashReport{
					Result:   res,
					Series:   flags.series,
					Product:  flags.product,
					Firmware: image.Name,
					Version:  image.Version,
					ChipType: image.ChipType,
					Probe:    desc.Selector(),
					Error:    res.ErrorText(),
				}); err != nil {
					return err
				}
				return res.Err
			}

			out := cmd.OutOrStdout()
			detail := fmt.Sprintf("%s / %s / %s on %s (%s, %s)",
				flags.series, flags.product, image.Label(), desc.Identifier, res.Format, res.Duration().Round(time.Millisecond))
			fmt.Fprintln(out, renderStatusLine("Flash", statusFromOutcome(res.Outcome), detail, shouldColorize(out)))
			if !res.Outcome.Succeeded() {
				fmt.Fprintf(out, "%s%-*s %s (stopped after %s)\n", statusIndent, statusLabelWidth, "Outcome:", res.Outcome, res.Reached)
			}
			return res.Err
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVarP(&probeSelector, "probe", "p", "", "Probe index or VID:PID[:SERIAL]")
	cmd.Flags().StringVar(&formatFlag, "format", "", "Image format: auto, elf, hex or bin (default from config)")
	cmd.Flags().StringVar(&baseAddress, "base-address", "", "Load address for bin images (default flash.bin_base_address)")
	cmd.Flags().BoolVar(&allowEraseAll, "allow-erase-all", false, "Permit a full chip erase when the target requires it")
	return cmd
}

func resolveBaseAddress(cfg *config.Config, flagValue string) (*uint64, error) {
	if strings.TrimSpace(flagValue) != "" {
		addr, err := config.ParseAddress(flagValue)
		if err != nil {
			return nil, fmt.Errorf("%w: --base-address: %w", services.ErrValidation, err)
		}
		return &addr, nil
	}
	addr, err := cfg.BinBaseAddress()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "config", "flash.bin_base_address", "", err)
	}
	return &addr, nil
}

// recordAttempt journals one attempt. Failures only warn; the flash outcome
// stands regardless.
func recordAttempt(ctx context.Context, cmdCtx *commandContext, cfg *config.Config, entry history.Entry) {
	logger := logging.NewComponentLogger(cmdCtx.log(), "history")
	store, err := history.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "flash history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldRunID, entry.RunID),
			logging.String(logging.FieldErrorHint, "check state_dir permissions or disable flash.record_history"),
			logging.String(logging.FieldImpact, "this attempt is not journaled"))
		return
	}
	defer store.Close()
	if _, err := store.Record(ctx, entry); err != nil {
		logging.WarnWithContext(logger, "failed to record flash attempt", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldRunID, entry.RunID),
			logging.String(logging.FieldErrorHint, "run iaptool doctor to check the state directory"),
			logging.String(logging.FieldImpact, "this attempt is not journaled"))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
