package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateProbeRS(); err != nil {
		return err
	}
	if err := c.validateFlash(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.CatalogFile == "" {
		return errors.New("paths.catalog_file must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateProbeRS() error {
	switch c.ProbeRS.Protocol {
	case "", "swd", "jtag":
	default:
		return fmt.Errorf("probe_rs.protocol: unsupported value %q (want swd or jtag)", c.ProbeRS.Protocol)
	}
	if c.ProbeRS.SpeedKHz < 0 {
		return errors.New("probe_rs.speed_khz must be zero or positive")
	}
	return nil
}

func (c *Config) validateFlash() error {
	switch c.Flash.Format {
	case "auto", "elf", "hex", "bin":
	default:
		return fmt.Errorf("flash.format: unsupported value %q (want auto, elf, hex or bin)", c.Flash.Format)
	}
	if _, err := c.BinBaseAddress(); err != nil {
		return fmt.Errorf("flash.bin_base_address: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
