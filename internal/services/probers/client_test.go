package probers_test

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"iaptool/internal/flash"
	"iaptool/internal/probe"
	"iaptool/internal/services"
	"iaptool/internal/services/probers"
)

var listOutput = []string{
	"The following debug probes were found:",
	"[0]: STLink V2 -- 0483:3748:066DFF555057 (ST-LINK)",
	"[1]: J-Link -- 1366:0105:000123456789 (J-Link)",
}

type stubExecutor struct {
	outputs map[string][]string
	errs    map[string]error
	args    [][]string
}

func (s *stubExecutor) Run(_ context.Context, _ string, args []string, onOutput func(string)) error {
	s.args = append(s.args, append([]string(nil), args...))
	key := args[0]
	for _, line := range s.outputs[key] {
		onOutput(line)
	}
	return s.errs[key]
}

func (s *stubExecutor) last(command string) []string {
	for i := len(s.args) - 1; i >= 0; i-- {
		if s.args[i][0] == command {
			return s.args[i]
		}
	}
	return nil
}

func newClient(t *testing.T, stub *stubExecutor, opts ...probers.Option) *probers.Client {
	t.Helper()
	opts = append([]probers.Option{probers.WithExecutor(stub), probers.WithLockDir(filepath.Join(t.TempDir(), "locks"))}, opts...)
	client, err := probers.New("probe-rs", opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := probers.New("  "); err == nil {
		t.Fatal("expected error for empty binary")
	}
}

func TestListParsesProbes(t *testing.T) {
	stub := &stubExecutor{outputs: map[string][]string{"list": listOutput}}
	probes, err := newClient(t, stub).List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(probes) != 2 {
		t.Fatalf("expected two probes, got %d", len(probes))
	}
	first := probes[0]
	if first.Identifier != "STLink V2" || first.VID != 0x0483 || first.PID != 0x3748 || first.Serial() != "066DFF555057" {
		t.Fatalf("unexpected first probe %+v", first)
	}
	if first.Kind != probe.KindSTLink || probes[1].Kind != probe.KindJLink {
		t.Fatalf("unexpected kinds %s %s", first.Kind, probes[1].Kind)
	}
	if probes[1].Index != 1 {
		t.Fatalf("expected index 1, got %d", probes[1].Index)
	}
}

func TestListNoProbes(t *testing.T) {
	stub := &stubExecutor{outputs: map[string][]string{"list": {"No debug probes were found."}}}
	probes, err := newClient(t, stub).List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(probes) != 0 {
		t.Fatalf("expected no probes, got %+v", probes)
	}
}

func TestListWrapsToolFailure(t *testing.T) {
	stub := &stubExecutor{
		outputs: map[string][]string{"list": {"Error: failed to open USB context"}},
		errs:    map[string]error{"list": errors.New("exit status 1")},
	}
	_, err := newClient(t, stub).List(context.Background())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "failed to open USB context") {
		t.Fatalf("expected output tail in error, got %v", err)
	}
}

func TestMissingBinaryIsConfigurationError(t *testing.T) {
	stub := &stubExecutor{errs: map[string]error{"list": fmt.Errorf("start command: %w", exec.ErrNotFound)}}
	_, err := newClient(t, stub).List(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestChipFamilies(t *testing.T) {
	stub := &stubExecutor{outputs: map[string][]string{"chip": {
		"Available chips:",
		"STM32F1 Series",
		"    Variants:",
		"        STM32F103C8",
		"        STM32F103CB",
		"nRF52 Series",
		"    Variants:",
		"        nRF52832_xxAA",
		"Empty Family",
		"    Variants:",
	}}}
	families, err := newClient(t, stub).ChipFamilies(context.Background())
	if err != nil {
		t.Fatalf("ChipFamilies returned error: %v", err)
	}
	if len(families) != 2 {
		t.Fatalf("expected two families with chips, got %+v", families)
	}
	if families[0].Name != "STM32F1 Series" || !slices.Equal(families[0].Chips, []string{"STM32F103C8", "STM32F103CB"}) {
		t.Fatalf("unexpected first family %+v", families[0])
	}
	if got := stub.last("chip"); !slices.Equal(got, []string{"chip", "list"}) {
		t.Fatalf("unexpected args %v", got)
	}
}

func openFirst(t *testing.T, client *probers.Client) probe.Session {
	t.Helper()
	probes, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	sess, err := client.Open(context.Background(), probes[0])
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	return sess
}

func TestOpenLocksProbe(t *testing.T) {
	stub := &stubExecutor{outputs: map[string][]string{"list": listOutput}}
	client := newClient(t, stub)

	sess := openFirst(t, client)
	if _, err := client.Open(context.Background(), sess.Probe()); !errors.Is(err, probe.ErrProbeBusy) {
		t.Fatalf("expected ErrProbeBusy while session is open, got %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	again, err := client.Open(context.Background(), sess.Probe())
	if err != nil {
		t.Fatalf("expected reopen after close, got %v", err)
	}
	_ = again.Close()
}

func TestOpenStaleDescriptor(t *testing.T) {
	stub := &stubExecutor{outputs: map[string][]string{"list": listOutput}}
	client := newClient(t, stub)
	stale := probe.Descriptor{Identifier: "STLink V3", VID: 0x0483, PID: 0x374f, SerialNumber: probe.StringPtr("GONE")}

	_, err := client.Open(context.Background(), stale)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected stale probe to be reported, got %v", err)
	}
	// The lock must have been released on failure.
	stub.outputs["list"] = append(stub.outputs["list"], "[2]: STLink V3 -- 0483:374f:GONE (ST-LINK)")
	sess, err := client.Open(context.Background(), stale)
	if err != nil {
		t.Fatalf("expected open to succeed once connected, got %v", err)
	}
	_ = sess.Close()
}

func TestAttachAndDownloadArguments(t *testing.T) {
	stub := &stubExecutor{outputs: map[string][]string{"list": listOutput}}
	client := newClient(t, stub,
		probers.WithProtocol("SWD"),
		probers.WithSpeed(4000),
		probers.WithConnectUnderReset(true),
	)
	sess := openFirst(t, client)
	defer sess.Close()

	attached, err := client.Attach(context.Background(), sess, "STM32F103C8", flash.Permissions{AllowEraseAll: true})
	if err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}
	wantAttach := []string{"reset", "--chip", "STM32F103C8", "--probe", "0483:3748:066DFF555057",
		"--protocol", "swd", "--speed", "4000", "--connect-under-reset"}
	if got := stub.last("reset"); !slices.Equal(got, wantAttach) {
		t.Fatalf("attach args\n got %v\nwant %v", got, wantAttach)
	}

	if err := client.Download(context.Background(), attached, "/fw/app.hex", flash.FormatHex, flash.DownloadOptions{}); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	wantDownload := []string{"download", "--chip", "STM32F103C8", "--probe", "0483:3748:066DFF555057",
		"--protocol", "swd", "--speed", "4000", "--connect-under-reset", "--allow-erase-all",
		"--binary-format", "hex", "--disable-progressbars", "/fw/app.hex"}
	if got := stub.last("download"); !slices.Equal(got, wantDownload) {
		t.Fatalf("download args\n got %v\nwant %v", got, wantDownload)
	}
}

func TestDownloadBinUsesBaseAddress(t *testing.T) {
	stub := &stubExecutor{outputs: map[string][]string{"list": listOutput}}
	client := newClient(t, stub)
	sess := openFirst(t, client)
	defer sess.Close()

	attached, err := client.Attach(context.Background(), sess, "STM32F103C8", flash.Permissions{})
	if err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}
	if err := client.Download(context.Background(), attached, "/fw/app.bin", flash.FormatBin, flash.DownloadOptions{}); !errors.Is(err, flash.ErrBaseAddressRequired) {
		t.Fatalf("expected ErrBaseAddressRequired, got %v", err)
	}
	base := uint64(0x08000000)
	if err := client.Download(context.Background(), attached, "/fw/app.bin", flash.FormatBin, flash.DownloadOptions{BaseAddress: &base}); err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	got := stub.last("download")
	if !slices.Contains(got, "--base-address") || !slices.Contains(got, "0x8000000") || slices.Contains(got, "--allow-erase-all") {
		t.Fatalf("unexpected bin download args %v", got)
	}
}

func TestDownloadRequiresAttachedSession(t *testing.T) {
	stub := &stubExecutor{outputs: map[string][]string{"list": listOutput}}
	client := newClient(t, stub)
	sess := openFirst(t, client)
	defer sess.Close()

	err := client.Download(context.Background(), sess, "/fw/app.elf", flash.FormatELF, flash.DownloadOptions{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for unattached session, got %v", err)
	}
}

func TestAttachFailureCarriesOutput(t *testing.T) {
	stub := &stubExecutor{
		outputs: map[string][]string{"list": listOutput, "reset": {"Error: Connecting to the chip was unsuccessful."}},
		errs:    map[string]error{"reset": errors.New("exit status 1")},
	}
	client := newClient(t, stub)
	sess := openFirst(t, client)
	defer sess.Close()

	_, err := client.Attach(context.Background(), sess, "STM32F103C8", flash.Permissions{})
	if err == nil || !strings.Contains(err.Error(), "Connecting to the chip was unsuccessful") {
		t.Fatalf("expected attach error with probe-rs output, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	stub := &stubExecutor{outputs: map[string][]string{"--version": {"probe-rs 0.27.0 (git commit: 1a2b3c)"}}}
	got, err := newClient(t, stub).Version(context.Background())
	if err != nil || got != "probe-rs 0.27.0 (git commit: 1a2b3c)" {
		t.Fatalf("unexpected version %q, %v", got, err)
	}
}
