// Package config loads, normalizes, and validates iaptool configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the IAPTOOL_PROBE_RS environment
// override for the probe-rs binary. The Config type centralizes where the
// firmware catalog lives, how probe-rs is driven, and which image format
// policy the flash command applies.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
