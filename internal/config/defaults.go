package config

const (
	defaultConfigPath     = "~/.config/iaptool/config.toml"
	defaultCatalogFile    = "~/.config/iaptool/app_data.json"
	defaultStateDir       = "~/.local/share/iaptool"
	defaultLogDir         = "~/.local/share/iaptool/logs"
	defaultProbeRSBinary  = "probe-rs"
	defaultChipCacheFile  = "~/.cache/iaptool/chips.json"
	defaultFlashFormat    = "auto"
	defaultBinBaseAddress = "0x08000000"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CatalogFile: defaultCatalogFile,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
		},
		ProbeRS: ProbeRS{
			Binary:        defaultProbeRSBinary,
			ChipCacheFile: defaultChipCacheFile,
		},
		Flash: Flash{
			Format:         defaultFlashFormat,
			BinBaseAddress: defaultBinBaseAddress,
			RecordHistory:  true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
