package preflight

import (
	"context"

	"iaptool/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// VersionReporter is satisfied by the probe-rs client.
type VersionReporter interface {
	Version(ctx context.Context) (string, error)
}

// RunAll executes the filesystem checks for cfg and, when tool is non-nil,
// the probe-rs version check.
func RunAll(ctx context.Context, cfg *config.Config, tool VersionReporter) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckCatalogFile(cfg.Paths.CatalogFile),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.ProbeRS.ChipCacheFile != "" {
		results = append(results, CheckChipCache(cfg.ProbeRS.ChipCacheFile))
	}
	if tool != nil {
		results = append(results, CheckProbeRSVersion(ctx, tool))
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
