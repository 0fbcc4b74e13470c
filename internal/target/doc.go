// Package target answers which chip families and chip types the flashing
// tool knows about.
//
// Registry is consulted before attaching so a catalog entry naming an unknown
// chip fails early with ErrUnknownChipType. Static serves a fixed table.
// Cached reads the probe-rs chip database through a Source and keeps a copy on
// disk so lookups keep working when probe-rs is missing or broken.
package target
