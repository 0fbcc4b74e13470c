package flash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"iaptool/internal/logging"
	"iaptool/internal/probe"
	"iaptool/internal/services"
	"iaptool/internal/target"
)

// Orchestrator runs flash attempts. It holds no per-attempt state and may be
// reused, but attempts are expected to run one at a time.
type Orchestrator struct {
	probes  probe.Registry
	flasher Flasher
	targets target.Registry
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTargets validates chip types against reg before attaching.
func WithTargets(reg target.Registry) Option {
	return func(o *Orchestrator) {
		o.targets = reg
	}
}

// WithLogger sets the logger used for attempt progress.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator constructs an orchestrator over the given probe registry and flasher.
func NewOrchestrator(probes probe.Registry, flasher Flasher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		probes:  probes,
		flasher: flasher,
		logger:  logging.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "flash")
	return o
}

// Run performs open, attach and download for req and blocks until the attempt
// ends. The probe session is always closed before Run returns.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	res := Result{
		RunID:     o.newID(),
		State:     StateIdle,
		StartedAt: o.now(),
	}
	ctx = services.WithRunID(ctx, res.RunID)
	ctx = services.WithProbe(ctx, req.Probe.Selector())
	logger := o.logger.With(
		logging.String(logging.FieldRunID, res.RunID),
		logging.String(logging.FieldProbe, req.Probe.Selector()),
		logging.String(logging.FieldChipType, req.Image.ChipType),
	)
	logger.Info("flash started",
		logging.String(logging.FieldFirmware, req.Image.Name),
		logging.String("version", req.Image.Version),
		logging.String("fw_path", req.Image.FWPath),
	)

	session, err := o.probes.Open(ctx, req.Probe)
	if err == nil && session == nil {
		err = errors.New("probe registry returned no session")
	}
	if err != nil {
		return o.fail(logger, res, OutcomeProbeOpenFailed, ErrProbeOpen, err,
			"check the probe is plugged in and not used by another program")
	}
	res.State = StateProbeOpened
	logger.Debug("probe opened", logging.String("identifier", req.Probe.Identifier))

	current := session
	defer func() {
		closeSession(logger, current)
		if current != session {
			closeSession(logger, session)
		}
	}()

	chip := strings.TrimSpace(req.Image.ChipType)
	if err := o.checkChip(ctx, logger, chip); err != nil {
		return o.fail(logger, res, OutcomeAttachFailed, ErrAttach, err,
			"check chip_type in the catalog entry against `iaptool targets list`")
	}
	attached, err := o.flasher.Attach(ctx, session, chip, req.Permissions)
	if err != nil {
		return o.fail(logger, res, OutcomeAttachFailed, ErrAttach, err,
			"check target power, wiring and the chip type")
	}
	if attached != nil {
		current = attached
	}
	res.State = StateAttached
	logger.Debug("target attached")

	path := strings.TrimSpace(req.Image.FWPath)
	if err := checkImage(path); err != nil {
		return o.fail(logger, res, OutcomeDownloadFailed, ErrDownload, err,
			"check fw_path in the catalog entry")
	}
	format, err := ResolveFormat(req.Format, path)
	if err != nil {
		return o.fail(logger, res, OutcomeDownloadFailed, ErrDownload, err,
			"pass --format elf, hex or bin")
	}
	res.Format = format
	if format == FormatBin && req.BaseAddress == nil {
		return o.fail(logger, res, OutcomeDownloadFailed, ErrDownload, ErrBaseAddressRequired,
			"set flash.bin_base_address or pass --base-address")
	}

	if err := o.flasher.Download(ctx, current, path, format, DownloadOptions{BaseAddress: req.BaseAddress}); err != nil {
		return o.fail(logger, res, OutcomeDownloadFailed, ErrDownload, err,
			"check the image matches the chip and flash is not write protected")
	}
	res.State = StateDownloaded
	res.Reached = StateDownloaded
	res.Outcome = OutcomeSuccess
	res.FinishedAt = o.now()
	logger.Info("flash complete",
		logging.String(logging.FieldEventType, "flash_succeeded"),
		logging.String("format", string(format)),
		logging.Duration("duration", res.Duration()),
	)
	return res
}

func (o *Orchestrator) checkChip(ctx context.Context, logger *slog.Logger, chip string) error {
	if chip == "" {
		return fmt.Errorf("%w: catalog entry has no chip type", target.ErrUnknownChipType)
	}
	if o.targets == nil {
		return nil
	}
	ok, err := o.targets.HasChip(ctx, chip)
	if err != nil {
		logging.WarnWithContext(logger, "chip registry unavailable; attaching without validation", "chip_registry_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `iaptool targets families` to rebuild the chip cache"),
			logging.String(logging.FieldImpact, "an unknown chip type is reported by the attach step instead"))
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: %q", target.ErrUnknownChipType, chip)
	}
	return nil
}

func closeSession(logger *slog.Logger, s probe.Session) {
	if err := s.Close(); err != nil {
		logging.WarnWithContext(logger, "failed to close probe session", "probe_close_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "unplug and reconnect the probe if the next attempt fails to open it"),
			logging.String(logging.FieldImpact, "probe may stay locked until the process exits"))
	}
}

func checkImage(path string) error {
	if path == "" {
		return fmt.Errorf("%w: fw_path is empty", ErrImageMissing)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrImageMissing, path)
		}
		return fmt.Errorf("%w: %w", ErrImageMissing, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrImageMissing, path)
	}
	return nil
}

func (o *Orchestrator) fail(logger *slog.Logger, res Result, outcome Outcome, marker, cause error, hint string) Result {
	res.Reached = res.State
	res.State = StateFailed
	res.Outcome = outcome
	res.FinishedAt = o.now()
	if errors.Is(cause, marker) {
		res.Err = cause
	} else {
		res.Err = fmt.Errorf("%w: %w", marker, cause)
	}
	logging.ErrorWithContext(logger, "flash failed", "flash_"+string(outcome),
		logging.Error(res.Err),
		logging.String("outcome", string(outcome)),
		logging.String("reached_state", string(res.Reached)),
		logging.String(logging.FieldErrorHint, hint),
	)
	return res
}
