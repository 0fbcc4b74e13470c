package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"iaptool/internal/catalog"
	"iaptool/internal/config"
	"iaptool/internal/logging"
	"iaptool/internal/services"
	"iaptool/internal/services/probers"
	"iaptool/internal/target"
)

var errAdminRequired = fmt.Errorf("%w: catalog editing requires admin mode (pass --admin or set catalog.admin_mode)", services.ErrValidation)

type globalFlags struct {
	config   string
	admin    bool
	json     bool
	logLevel string
}

type commandContext struct {
	flags      *globalFlags
	clientOpts []probers.Option

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(flags *globalFlags, clientOpts ...probers.Option) *commandContext {
	return &commandContext{
		flags:      flags,
		clientOpts: clientOpts,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", "", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "ensure directories", "", err)
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// log returns the process logger. Commands that skip config loading get a
// stderr-only console logger.
func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue(), c.flags.logLevel)
		if err != nil {
			logger, _ = logging.New(logging.Options{Level: "info", Format: "console"})
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) jsonOutput() bool {
	return c.flags.json
}

func (c *commandContext) adminEnabled() bool {
	if c.flags.admin {
		return true
	}
	cfg := c.configValue()
	return cfg != nil && cfg.Catalog.AdminMode
}

func (c *commandContext) requireAdmin() error {
	if !c.adminEnabled() {
		return errAdminRequired
	}
	return nil
}

func (c *commandContext) probeTool() (*probers.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return probers.NewFromConfig(cfg, c.log(), c.clientOpts...)
}

// targets returns the chip registry backed by probe-rs and the chip cache.
func (c *commandContext) targets(tool *probers.Client) *target.Cached {
	cfg := c.configValue()
	return target.NewCached(tool, cfg.ProbeRS.ChipCacheFile, c.log())
}

// loadCatalog never fails: a missing or unreadable catalog starts empty and
// LoadOrEmpty logs the warning.
func (c *commandContext) loadCatalog() *catalog.Catalog {
	cat, _ := catalog.LoadOrEmpty(c.configValue().Paths.CatalogFile, c.log())
	return cat
}

// loadCatalogForEdit loads the catalog for a command that saves it back. Only
// a missing file starts empty; an unreadable or corrupt file fails the command
// so the edit cannot overwrite it.
func (c *commandContext) loadCatalogForEdit() (*catalog.Catalog, error) {
	path := c.configValue().Paths.CatalogFile
	cat, err := catalog.LoadOrEmpty(path, c.log())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "load",
			fmt.Sprintf("refusing to edit %s until it loads cleanly", path), err)
	}
	return cat, nil
}

// saveCatalog persists cat and reports the result the way the editor did:
// "saved" or "save failed: ...".
func (c *commandContext) saveCatalog(cmd *cobra.Command, cat *catalog.Catalog) error {
	path := c.configValue().Paths.CatalogFile
	if err := catalog.Save(cat, path); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "save failed: %v\n", err)
		return err
	}
	if !c.jsonOutput() {
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", path)
	}
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
