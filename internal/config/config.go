package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory locations.
type Paths struct {
	CatalogFile string `toml:"catalog_file" json:"catalog_file"`
	StateDir    string `toml:"state_dir" json:"state_dir"`
	LogDir      string `toml:"log_dir" json:"log_dir"`
}

// Catalog contains catalog editing policy.
type Catalog struct {
	AdminMode bool `toml:"admin_mode" json:"admin_mode"`
}

// ProbeRS contains settings for driving the probe-rs command line tool.
type ProbeRS struct {
	Binary            string `toml:"binary" json:"binary"`
	Protocol          string `toml:"protocol" json:"protocol"`
	SpeedKHz          int    `toml:"speed_khz" json:"speed_khz"`
	ConnectUnderReset bool   `toml:"connect_under_reset" json:"connect_under_reset"`
	ChipCacheFile     string `toml:"chip_cache_file" json:"chip_cache_file"`
}

// Flash contains the image download policy.
type Flash struct {
	// Format is one of auto, elf, hex, bin. auto derives the format from the
	// firmware file extension.
	Format         string `toml:"format" json:"format"`
	BinBaseAddress string `toml:"bin_base_address" json:"bin_base_address"`
	AllowEraseAll  bool   `toml:"allow_erase_all" json:"allow_erase_all"`
	RecordHistory  bool   `toml:"record_history" json:"record_history"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" json:"format"`
	Level  string `toml:"level" json:"level"`
}

// Config encapsulates all configuration values for iaptool.
//
// Configuration sections:
//   - Paths: catalog file, state directory (locks, history) and logs
//   - Catalog: admin mode for catalog editing
//   - ProbeRS: probe-rs binary and connection options
//   - Flash: image format policy and erase permissions
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths" json:"paths"`
	Catalog Catalog `toml:"catalog" json:"catalog"`
	ProbeRS ProbeRS `toml:"probe_rs" json:"probe_rs"`
	Flash   Flash   `toml:"flash" json:"flash"`
	Logging Logging `toml:"logging" json:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("iaptool.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state, lock, and log directories plus the
// directory holding the catalog file.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.LockDir(), c.Paths.LogDir}
	if dir := filepath.Dir(c.Paths.CatalogFile); dir != "" {
		dirs = append(dirs, dir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockDir returns the directory holding per-probe session locks.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

// LogFile returns the CLI log file inside the log directory.
func (c *Config) LogFile() string {
	return filepath.Join(c.Paths.LogDir, "iaptool.log")
}

// HistoryDBPath returns the location of the flash history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// ProbeRSBinary returns the probe-rs executable name or path.
func (c *Config) ProbeRSBinary() string {
	if strings.TrimSpace(c.ProbeRS.Binary) == "" {
		return defaultProbeRSBinary
	}
	return c.ProbeRS.Binary
}

// BinBaseAddress parses the configured load address for raw binary images.
func (c *Config) BinBaseAddress() (uint64, error) {
	return ParseAddress(c.Flash.BinBaseAddress)
}

// ParseAddress parses a decimal or 0x-prefixed hexadecimal address.
func ParseAddress(value string) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("address is empty")
	}
	addr, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("parse address %q: %w", value, err)
	}
	return addr, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
