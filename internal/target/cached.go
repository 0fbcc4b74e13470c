package target

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"iaptool/internal/logging"
)

type cacheFile struct {
	UpdatedAt time.Time `json:"updated_at"`
	Families  []Family  `json:"families"`
}

// Cached is a Registry that asks its Source once per process and mirrors the
// answer into a JSON file. When the Source fails, the last cached copy is used
// instead and a warning is logged.
type Cached struct {
	source Source
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	static *Static
}

// NewCached builds a registry over source with its cache at path. An empty
// path disables the on-disk copy.
func NewCached(source Source, path string, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cached{
		source: source,
		path:   path,
		logger: logging.NewComponentLogger(logger, "target"),
		now:    time.Now,
	}
}

// Families returns the family names.
func (c *Cached) Families(ctx context.Context) ([]string, error) {
	s, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return s.Families(ctx)
}

// TargetsForFamily returns the chip types of the named family.
func (c *Cached) TargetsForFamily(ctx context.Context, name string) ([]string, error) {
	s, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return s.TargetsForFamily(ctx, name)
}

// HasChip reports whether chip appears in any family.
func (c *Cached) HasChip(ctx context.Context, chip string) (bool, error) {
	s, err := c.load(ctx)
	if err != nil {
		return false, err
	}
	return s.HasChip(ctx, chip)
}

// Refresh re-reads the Source and rewrites the cache, ignoring any copy
// already loaded. It never falls back to the cache.
func (c *Cached) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source == nil {
		return fmt.Errorf("%w: no chip source configured", ErrUnavailable)
	}
	families, err := c.source.ChipFamilies(ctx)
	if err != nil {
		return unavailable(err)
	}
	c.static = NewStatic(families)
	if err := c.write(families); err != nil {
		return fmt.Errorf("write chip cache: %w", err)
	}
	return nil
}

func (c *Cached) load(ctx context.Context) (*Static, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.static != nil {
		return c.static, nil
	}

	var sourceErr error
	if c.source != nil {
		families, err := c.source.ChipFamilies(ctx)
		if err == nil {
			c.static = NewStatic(families)
			if werr := c.write(families); werr != nil {
				logging.WarnWithContext(c.logger, "failed to write chip cache", "chip_cache_write_failed",
					logging.Error(werr),
					logging.String("path", c.path),
					logging.String(logging.FieldErrorHint, "check permissions on the cache directory"),
					logging.String(logging.FieldImpact, "chip lookups need probe-rs on the next run"))
			}
			return c.static, nil
		}
		sourceErr = err
	} else {
		sourceErr = errors.New("no chip source configured")
	}

	cached, err := c.read()
	if err != nil {
		return nil, fmt.Errorf("%w: %w (cache: %v)", ErrUnavailable, sourceErr, err)
	}
	logging.WarnWithContext(c.logger, "chip list unavailable; using cached copy", "chip_cache_fallback",
		logging.Error(sourceErr),
		logging.String("path", c.path),
		logging.String("cached_at", cached.UpdatedAt.Format(time.RFC3339)),
		logging.String(logging.FieldErrorHint, "run `iaptool doctor` to check the probe-rs installation"),
		logging.String(logging.FieldImpact, "chips added to probe-rs since the cache was written are unknown"))
	c.static = NewStatic(cached.Families)
	return c.static, nil
}

func (c *Cached) read() (cacheFile, error) {
	var cf cacheFile
	if c.path == "" {
		return cf, errors.New("chip cache disabled")
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return cf, err
	}
	if err := json.Unmarshal(data, &cf); err != nil {
		return cf, fmt.Errorf("decode %s: %w", c.path, err)
	}
	if len(cf.Families) == 0 {
		return cf, fmt.Errorf("%s holds no chip families", c.path)
	}
	return cf, nil
}

func (c *Cached) write(families []Family) error {
	if c.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(cacheFile{UpdatedAt: c.now().UTC(), Families: families}, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
