package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"iaptool/internal/catalog"
	"iaptool/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCatalogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app_data.json")

	if result := CheckCatalogFile(path); !result.Passed || !strings.Contains(result.Detail, "not created yet") {
		t.Fatalf("expected missing catalog to pass, got %+v", result)
	}

	cat := catalog.New()
	cat.Upsert("S", "P", catalog.FirmwareImage{Name: "app", Version: "1", ChipType: "STM32F103C8"})
	if err := catalog.Save(cat, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if result := CheckCatalogFile(path); !result.Passed || !strings.Contains(result.Detail, "1 series, 1 images") {
		t.Fatalf("expected catalog summary, got %+v", result)
	}

	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckCatalogFile(path); result.Passed {
		t.Fatalf("expected corrupt catalog to fail, got %+v", result)
	}
}

func TestCheckChipCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chips.json")
	if result := CheckChipCache(path); !result.Passed {
		t.Fatalf("expected missing cache to pass, got %+v", result)
	}
	if err := os.WriteFile(path, []byte(`{"families":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckChipCache(path); !result.Passed || !strings.Contains(result.Detail, "updated") {
		t.Fatalf("expected cache timestamp, got %+v", result)
	}
}

type fakeVersion struct {
	version string
	err     error
}

func (f fakeVersion) Version(context.Context) (string, error) { return f.version, f.err }

func TestCheckProbeRSVersion(t *testing.T) {
	ok := CheckProbeRSVersion(context.Background(), fakeVersion{version: "probe-rs 0.27.0"})
	if !ok.Passed || ok.Detail != "probe-rs 0.27.0" {
		t.Fatalf("unexpected result %+v", ok)
	}
	bad := CheckProbeRSVersion(context.Background(), fakeVersion{err: errors.New("exit status 1")})
	if bad.Passed {
		t.Fatalf("expected failure, got %+v", bad)
	}
}

func TestRunAllAndSystemDeps(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg, fakeVersion{version: "probe-rs 0.27.0"})
	if Failed(results) {
		t.Fatalf("expected all checks to pass, got %+v", results)
	}
	if len(results) != 5 {
		t.Fatalf("expected five checks, got %d", len(results))
	}

	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 1 || !statuses[0].Available {
		t.Fatalf("expected stubbed probe-rs to be found, got %+v", statuses)
	}
}
