package flash

import (
	"context"
	"time"

	"iaptool/internal/catalog"
	"iaptool/internal/probe"
)

// State is the furthest step an attempt reached.
type State string

const (
	StateIdle        State = "idle"
	StateProbeOpened State = "probe_opened"
	StateAttached    State = "attached"
	StateDownloaded  State = "downloaded"
	StateFailed      State = "failed"
)

// Outcome is the single result of an attempt.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeProbeOpenFailed Outcome = "probe_open_failed"
	OutcomeAttachFailed    Outcome = "attach_failed"
	OutcomeDownloadFailed  Outcome = "download_failed"
)

// Succeeded reports whether the outcome is OutcomeSuccess.
func (o Outcome) Succeeded() bool {
	return o == OutcomeSuccess
}

// Permissions gates destructive operations during attach and download.
type Permissions struct {
	AllowEraseAll bool `json:"allow_erase_all"`
}

// DownloadOptions carries format specific download parameters.
type DownloadOptions struct {
	BaseAddress *uint64
}

// Flasher attaches to a target chip through an opened probe and writes images.
// Attach may return the session it was given or a new one; the orchestrator
// closes both, so Close on either must tolerate the other already being closed.
type Flasher interface {
	Attach(ctx context.Context, session probe.Session, chipType string, perms Permissions) (probe.Session, error)
	Download(ctx context.Context, session probe.Session, path string, format FormatKind, opts DownloadOptions) error
}

// Request describes one flash attempt.
type Request struct {
	Probe       probe.Descriptor
	Image       catalog.FirmwareImage
	Format      FormatKind
	Permissions Permissions
	BaseAddress *uint64
}

// Result reports how an attempt ended. State is StateDownloaded or
// StateFailed; Reached is the last step that completed. Err is nil only on
// success and wraps ErrProbeOpen, ErrAttach or ErrDownload to match Outcome.
type Result struct {
	RunID      string     `json:"run_id"`
	Outcome    Outcome    `json:"outcome"`
	State      State      `json:"state"`
	Reached    State      `json:"reached_state"`
	Format     FormatKind `json:"format,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Err        error      `json:"-"`
}

// Duration returns the wall time the attempt took.
func (r Result) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ErrorText returns the failure text or an empty string.
func (r Result) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
