// Package logging assembles structured slog loggers and attribute helpers used
// across iaptool.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and defines the standard field names (component, event_type,
// error_hint, impact, run_id) that catalog, probe and flash code attach to
// their log lines. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
