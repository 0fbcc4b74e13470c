package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"iaptool/internal/catalog"
	"iaptool/internal/config"
	"iaptool/internal/services/probers"
	"iaptool/internal/testsupport"
)

var probeListOutput = []string{
	"The following debug probes were found:",
	"[0]: STLink V2 -- 0483:3748:066DFF555057 (ST-LINK)",
	"[1]: CMSIS-DAP -- 0d28:0204 (CMSIS-DAP)",
}

var chipListOutput = []string{
	"Available chips:",
	"STM32F1 Series",
	"    Variants:",
	"        STM32F103C8",
	"        STM32F103RB",
	"nRF52 Series",
	"    Variants:",
	"        nRF52832_xxAA",
}

// fakeProbeRS answers probe-rs invocations keyed by subcommand.
type fakeProbeRS struct {
	outputs map[string][]string
	errs    map[string]error
	calls   [][]string
}

func newFakeProbeRS() *fakeProbeRS {
	return &fakeProbeRS{
		outputs: map[string][]string{
			"list":      probeListOutput,
			"chip":      chipListOutput,
			"--version": {"probe-rs 0.24.0 (git commit: v0.24.0)"},
		},
		errs: map[string]error{},
	}
}

func (f *fakeProbeRS) Run(_ context.Context, _ string, args []string, onOutput func(string)) error {
	f.calls = append(f.calls, append([]string(nil), args...))
	for _, line := range f.outputs[args[0]] {
		onOutput(line)
	}
	return f.errs[args[0]]
}

func (f *fakeProbeRS) last(command string) []string {
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i][0] == command {
			return f.calls[i]
		}
	}
	return nil
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	tool       *fakeProbeRS
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)...)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", base)
	t.Setenv("IAPTOOL_PROBE_RS", "")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
		tool:       newFakeProbeRS(),
	}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommandWithOptions(probers.WithExecutor(env.tool))
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (env *cliTestEnv) seedCatalog(t *testing.T, cat *catalog.Catalog) {
	t.Helper()
	if err := catalog.Save(cat, env.cfg.Paths.CatalogFile); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
}

func (env *cliTestEnv) loadCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(env.cfg.Paths.CatalogFile)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return cat
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
