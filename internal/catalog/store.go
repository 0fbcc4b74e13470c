package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"iaptool/internal/logging"
)

// Load reads and decodes the catalog at path. Any failure is returned and no
// partially decoded catalog escapes.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}

	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrParse, path, err)
	}
	if cat.Series == nil {
		cat.Series = []Series{}
	}
	return &cat, nil
}

// LoadOrEmpty always returns a usable catalog. When the file is missing or
// unparsable an empty catalog is returned together with the load error, which
// callers surface as a warning.
func LoadOrEmpty(path string, logger *slog.Logger) (*Catalog, error) {
	logger = logging.NewComponentLogger(logger, "catalog")

	cat, err := Load(path)
	if err != nil {
		logging.WarnWithContext(logger, "catalog load failed; starting with an empty catalog", "catalog_load_failed",
			logging.Error(err),
			logging.String("path", path),
			logging.String(logging.FieldErrorHint, "check the catalog file path and JSON syntax"),
			logging.String(logging.FieldImpact, "catalog starts empty; saving will overwrite the file"),
		)
		return New(), err
	}

	logger.Debug("catalog loaded",
		logging.String("path", path),
		logging.Int("series_count", len(cat.Series)),
		logging.Int("firmware_count", cat.ImageCount()),
	)
	return cat, nil
}

// Save encodes the whole catalog and atomically replaces the file at path.
// On failure the previous file is left untouched.
func Save(cat *Catalog, path string) error {
	if cat == nil {
		cat = New()
	}
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode catalog: %w", ErrSerialize, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create catalog directory: %w", ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrIO, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write temp file: %w", ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync temp file: %w", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close temp file: %w", ErrIO, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("%w: chmod temp file: %w", ErrIO, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("%w: replace %s: %w", ErrIO, path, err)
	}
	return nil
}
