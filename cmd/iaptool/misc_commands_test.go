package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"iaptool/internal/config"
	"iaptool/internal/target"
	"iaptool/internal/testsupport"
)

func TestTargetsFamiliesAndList(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := env.run(t, "targets", "families")
	if err != nil {
		t.Fatalf("targets families: %v", err)
	}
	if got := strings.TrimSpace(stdout); got != "STM32F1 Series\nnRF52 Series" {
		t.Fatalf("unexpected families %q", got)
	}

	stdout, _, err = env.run(t, "--json", "targets", "list", "stm32f1 series")
	if err != nil {
		t.Fatalf("targets list: %v", err)
	}
	var chips []string
	if err := json.Unmarshal([]byte(stdout), &chips); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(chips) != 2 || chips[0] != "STM32F103C8" {
		t.Fatalf("unexpected chips %v", chips)
	}

	_, _, err = env.run(t, "targets", "list", "AVR")
	if !errors.Is(err, target.ErrUnknownFamily) {
		t.Fatalf("expected unknown family, got %v", err)
	}
}

func TestTargetsFallBackToCache(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "targets", "families"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if _, err := os.Stat(env.cfg.ProbeRS.ChipCacheFile); err != nil {
		t.Fatalf("expected chip cache written: %v", err)
	}

	env.tool.errs["chip"] = errors.New("exit status 1")
	stdout, _, err := env.run(t, "targets", "list", "nRF52 Series")
	if err != nil {
		t.Fatalf("targets list from cache: %v", err)
	}
	requireContains(t, stdout, "nRF52832_xxAA")
}

func TestHistoryClearRequiresAdmin(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "history", "clear"); !errors.Is(err, errAdminRequired) {
		t.Fatalf("expected admin error, got %v", err)
	}

	stdout, _, err := env.run(t, "--admin", "history", "clear")
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	requireContains(t, stdout, "Cleared 0 flash attempt(s)")

	stdout, _, err = env.run(t, "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, stdout, "No flash attempts recorded")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	dest := filepath.Join(env.baseDir, "fresh", "config.toml")

	stdout, _, err := env.run(t, "config", "init", "--path", dest)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, stdout, "Wrote sample configuration to "+dest)

	if _, _, err := env.run(t, "config", "init", "--path", dest); err == nil {
		t.Fatal("expected refusal to overwrite")
	}

	stdout, _, err = env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, stdout, "Config path: "+env.configPath)
	requireContains(t, stdout, "Configuration valid")
}

func TestConfigValidateReportsBadFile(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[flash]\nformat = \"uf2\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := env.run(t, "config", "validate"); err == nil {
		t.Fatal("expected validation failure")
	}
	if _, _, err := env.run(t, "catalog", "list"); err == nil {
		t.Fatal("commands must not run with an invalid config")
	}
}

func TestConfigShowJSON(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAdminMode())

	stdout, _, err := env.run(t, "--json", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(stdout), &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !cfg.Catalog.AdminMode || cfg.Paths.CatalogFile != env.cfg.Paths.CatalogFile {
		t.Fatalf("unexpected config %+v", cfg)
	}

	stdout, _, err = env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, stdout, "# "+env.configPath)
	requireContains(t, stdout, "admin_mode = true")
}

func TestDoctorReportsChecks(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := env.run(t, "--json", "doctor")
	if err != nil {
		t.Fatalf("doctor: %v (%s)", err, stdout)
	}
	var report doctorReport
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	names := make([]string, 0, len(report.Checks))
	for _, c := range report.Checks {
		names = append(names, c.Name)
	}
	if !strings.Contains(strings.Join(names, ","), "probe-rs version") || len(report.Dependencies) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	stdout, _, err = env.run(t, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	requireContains(t, stdout, "== Preflight ==")
	requireContains(t, stdout, "[OK] probe-rs 0.24.0")
}

func TestDoctorFailsWithoutProbeRS(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("IAPTOOL_PROBE_RS", filepath.Join(env.baseDir, "missing-probe-rs"))

	stdout, _, err := env.run(t, "doctor")
	if err == nil {
		t.Fatal("expected doctor failure")
	}
	requireContains(t, stdout, "[ERROR]")
}

func TestLogsPrintsTrailingLines(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(env.cfg.LogFile(), []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	stdout, _, err := env.run(t, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if got := strings.TrimSpace(stdout); got != "two\nthree" {
		t.Fatalf("unexpected output %q", got)
	}
}
