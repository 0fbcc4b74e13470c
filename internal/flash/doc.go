// Package flash programs a catalog firmware image onto a target chip.
//
// Orchestrator.Run drives one blocking attempt through a linear state machine:
// the selected probe is opened, the target chip is attached, and the image is
// downloaded. Every attempt ends in exactly one Outcome. There are no retries
// and nothing is rolled back after a failed write; the caller decides whether
// to try again.
//
// The probe and chip work itself sits behind two seams: probe.Registry opens
// sessions and Flasher attaches and downloads. The probe-rs adapter in
// services/probers implements both.
package flash
