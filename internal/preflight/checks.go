package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"iaptool/internal/catalog"
	"iaptool/internal/config"
	"iaptool/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCatalogFile verifies the catalog parses and that its directory is
// writable so saves can replace it. A catalog that does not exist yet passes
// when its directory is writable.
func CheckCatalogFile(path string) Result {
	const name = "Catalog file"

	dir := filepath.Dir(path)
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: directory not writable: %v)", path, err)}
	}

	cat, err := catalog.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet; starts empty)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d series, %d images)", path, len(cat.Series), cat.ImageCount())}
}

// CheckChipCache reports whether a chip list is cached for offline lookups.
// A missing cache only limits offline use and still passes.
func CheckChipCache(path string) Result {
	const name = "Chip cache"

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not cached yet)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: unreadable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (updated %s)", path, info.ModTime().Format(time.DateTime))}
}

// CheckProbeRSVersion runs probe-rs --version with a short timeout.
func CheckProbeRSVersion(ctx context.Context, tool VersionReporter) Result {
	const name = "probe-rs version"

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	version, err := tool.Version(checkCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Name: name, Detail: "timed out waiting for probe-rs"}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: version}
}

// CheckSystemDeps evaluates the external programs required by cfg. Both the
// doctor and flash commands use this to avoid duplicating the requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{deps.ProbeRS(cfg.ProbeRSBinary())})
}
