package main

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"iaptool/internal/catalog"
	"iaptool/internal/flash"
	"iaptool/internal/history"
	"iaptool/internal/services"
	"iaptool/internal/testsupport"
)

func seedFirmware(t *testing.T, env *cliTestEnv, file string) string {
	t.Helper()
	path := testsupport.WriteFirmware(t, filepath.Join(env.baseDir, "fw"), file, 256)
	cat := catalog.New()
	cat.Upsert("Sensors", "TH-1", catalog.FirmwareImage{Name: "app", Version: "1.0", FWPath: path, ChipFamily: "STM32F1 Series", ChipType: "STM32F103C8"})
	env.seedCatalog(t, cat)
	return path
}

func listHistory(t *testing.T, env *cliTestEnv) []history.Entry {
	t.Helper()
	stdout, _, err := env.run(t, "--json", "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var entries []history.Entry
	if err := json.Unmarshal([]byte(stdout), &entries); err != nil {
		t.Fatalf("decode history: %v (%s)", err, stdout)
	}
	return entries
}

func TestFlashSuccessRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithHistory(true))
	path := seedFirmware(t, env, "app.hex")

	stdout, _, err := env.run(t, "flash", "--series", "Sensors", "--product", "TH-1", "--name", "app", "--probe", "0")
	if err != nil {
		t.Fatalf("flash: %v", err)
	}
	requireContains(t, stdout, "[OK]")
	requireContains(t, stdout, "STLink V2")

	want := []string{"download", "--chip", "STM32F103C8", "--probe", "0483:3748:066DFF555057",
		"--binary-format", "hex", "--disable-progressbars", path}
	if got := env.tool.last("download"); !slices.Equal(got, want) {
		t.Fatalf("download args\n got %v\nwant %v", got, want)
	}

	entries := listHistory(t, env)
	if len(entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(entries))
	}
	if entries[0].Outcome != string(flash.OutcomeSuccess) || entries[0].Probe != "0483:3748:066DFF555057" || entries[0].Format != "hex" || entries[0].FWSHA256 == "" {
		t.Fatalf("unexpected history entry %+v", entries[0])
	}
}

func TestFlashAttachFailureStopsBeforeDownload(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithHistory(true))
	seedFirmware(t, env, "app.hex")
	env.tool.outputs["reset"] = []string{"Error: Connecting to the chip was unsuccessful."}
	env.tool.errs["reset"] = errors.New("exit status 1")

	stdout, _, err := env.run(t, "flash", "--series", "Sensors", "--product", "TH-1", "--name", "app", "--probe", "0483:3748")
	if !errors.Is(err, flash.ErrAttach) {
		t.Fatalf("expected attach error, got %v", err)
	}
	requireContains(t, stdout, "attach_failed")
	requireContains(t, stdout, "stopped after probe_opened")
	if env.tool.last("download") != nil {
		t.Fatal("download must not run after a failed attach")
	}

	entries := listHistory(t, env)
	if len(entries) != 1 || entries[0].Outcome != string(flash.OutcomeAttachFailed) || entries[0].Error == "" {
		t.Fatalf("unexpected history %+v", entries)
	}
}

func TestFlashBinUsesConfiguredBaseAddress(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithHistory(false))
	seedFirmware(t, env, "app.bin")

	if _, _, err := env.run(t, "flash", "--series", "Sensors", "--product", "TH-1", "--name", "app", "--probe", "0d28:0204"); err != nil {
		t.Fatalf("flash: %v", err)
	}
	got := env.tool.last("download")
	if !slices.Contains(got, "0x8000000") || !slices.Contains(got, "0d28:0204") {
		t.Fatalf("unexpected download args %v", got)
	}

	if _, _, err := env.run(t, "flash", "--series", "Sensors", "--product", "TH-1", "--name", "app", "--probe", "1", "--base-address", "0x20000000"); err != nil {
		t.Fatalf("flash with base address: %v", err)
	}
	if got := env.tool.last("download"); !slices.Contains(got, "0x20000000") {
		t.Fatalf("expected flag base address, got %v", got)
	}
	if entries := listHistory(t, env); len(entries) != 0 {
		t.Fatalf("history disabled but %d entries recorded", len(entries))
	}
}

func TestFlashMissingFileIsDownloadFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	cat := catalog.New()
	cat.Upsert("Sensors", "TH-1", catalog.FirmwareImage{Name: "app", FWPath: "/does/not/exist.hex", ChipFamily: "STM32F1 Series", ChipType: "STM32F103C8"})
	env.seedCatalog(t, cat)

	_, _, err := env.run(t, "--json", "flash", "--series", "Sensors", "--product", "TH-1", "--name", "app", "--probe", "0")
	if !errors.Is(err, flash.ErrDownload) || !errors.Is(err, flash.ErrImageMissing) {
		t.Fatalf("expected missing image download failure, got %v", err)
	}
	if env.tool.last("download") != nil {
		t.Fatal("download must not run for a missing file")
	}
}

func TestFlashRequiresProbeSelection(t *testing.T) {
	env := setupCLITestEnv(t)
	seedFirmware(t, env, "app.hex")

	_, _, err := env.run(t, "flash", "--series", "Sensors", "--product", "TH-1", "--name", "app")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, _, err = env.run(t, "flash", "--series", "Sensors", "--product", "TH-1", "--name", "app", "--probe", "7")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected out of range probe to be rejected, got %v", err)
	}
	if env.tool.last("reset") != nil {
		t.Fatal("no probe may be touched without a valid selection")
	}
}

func TestFlashRejectsUnknownFormatFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	seedFirmware(t, env, "app.hex")

	_, _, err := env.run(t, "flash", "--series", "Sensors", "--product", "TH-1", "--name", "app", "--probe", "0", "--format", "uf2")
	if services.ExitCode(err) != services.ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}
