package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeProbeRS(); err != nil {
		return err
	}
	c.normalizeFlash()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CatalogFile) == "" {
		c.Paths.CatalogFile = defaultCatalogFile
	}
	if c.Paths.CatalogFile, err = expandPath(strings.TrimSpace(c.Paths.CatalogFile)); err != nil {
		return fmt.Errorf("paths.catalog_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeProbeRS() error {
	if value, ok := os.LookupEnv("IAPTOOL_PROBE_RS"); ok && strings.TrimSpace(value) != "" {
		c.ProbeRS.Binary = strings.TrimSpace(value)
	}
	c.ProbeRS.Binary = strings.TrimSpace(c.ProbeRS.Binary)
	if c.ProbeRS.Binary == "" {
		c.ProbeRS.Binary = defaultProbeRSBinary
	}
	c.ProbeRS.Protocol = strings.ToLower(strings.TrimSpace(c.ProbeRS.Protocol))
	if strings.TrimSpace(c.ProbeRS.ChipCacheFile) == "" {
		c.ProbeRS.ChipCacheFile = defaultChipCacheFile
	}
	var err error
	if c.ProbeRS.ChipCacheFile, err = expandPath(strings.TrimSpace(c.ProbeRS.ChipCacheFile)); err != nil {
		return fmt.Errorf("probe_rs.chip_cache_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeFlash() {
	c.Flash.Format = strings.ToLower(strings.TrimSpace(c.Flash.Format))
	if c.Flash.Format == "" {
		c.Flash.Format = defaultFlashFormat
	}
	c.Flash.BinBaseAddress = strings.TrimSpace(c.Flash.BinBaseAddress)
	if c.Flash.BinBaseAddress == "" {
		c.Flash.BinBaseAddress = defaultBinBaseAddress
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
