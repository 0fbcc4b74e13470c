// Package services defines shared utilities consumed by the external tool
// adapters and the command layer.
//
// Key responsibilities:
//   - Context helpers that stamp flash run identifiers and probe selectors
//     for logging.
//   - Structured error markers plus the Wrap helper that translate adapter
//     failures into consistent CLI exit codes.
//
// Adapters for external programs live in subpackages (see probers).
package services
