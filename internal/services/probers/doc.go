// Package probers drives the probe-rs command line tool.
//
// Client implements probe.Registry (probe-rs list), target.Source (probe-rs
// chip list) and flash.Flasher (probe-rs reset for attach, probe-rs download
// for the write). Each opened session holds an advisory file lock on the
// physical probe so concurrent iaptool processes cannot drive it at once.
// Command execution is abstracted behind Executor so tests can replay
// captured probe-rs output.
package probers
