package probers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"iaptool/internal/config"
	"iaptool/internal/logging"
	"iaptool/internal/services"
)

const toolName = "probe-rs"

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLockDir sets the directory holding per-probe lock files. Without it
// sessions are not locked.
func WithLockDir(dir string) Option {
	return func(c *Client) {
		c.lockDir = strings.TrimSpace(dir)
	}
}

// WithProtocol selects swd or jtag. Empty leaves the probe-rs default.
func WithProtocol(protocol string) Option {
	return func(c *Client) {
		c.protocol = strings.ToLower(strings.TrimSpace(protocol))
	}
}

// WithSpeed sets the probe clock in kHz. Zero leaves the probe-rs default.
func WithSpeed(khz int) Option {
	return func(c *Client) {
		if khz > 0 {
			c.speedKHz = khz
		}
	}
}

// WithConnectUnderReset holds the target in reset while attaching.
func WithConnectUnderReset(enabled bool) Option {
	return func(c *Client) {
		c.connectUnderReset = enabled
	}
}

// WithLogger sets the logger used for probe-rs output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client wraps probe-rs CLI interactions.
type Client struct {
	binary            string
	lockDir           string
	protocol          string
	speedKHz          int
	connectUnderReset bool
	exec              Executor
	logger            *slog.Logger
}

// New constructs a probe-rs client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("probe-rs binary required")
	}
	client := &Client{
		binary: binary,
		exec:   commandExecutor{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "probe-rs")
	return client, nil
}

// NewFromConfig constructs a client from the [probe_rs] section and the
// configured lock directory. opts are applied last.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	base := []Option{
		WithLockDir(cfg.LockDir()),
		WithProtocol(cfg.ProbeRS.Protocol),
		WithSpeed(cfg.ProbeRS.SpeedKHz),
		WithConnectUnderReset(cfg.ProbeRS.ConnectUnderReset),
		WithLogger(logger),
	}
	return New(cfg.ProbeRSBinary(), append(base, opts...)...)
}

// Binary returns the configured probe-rs executable.
func (c *Client) Binary() string {
	return c.binary
}

// Version returns the first line of probe-rs --version.
func (c *Client) Version(ctx context.Context) (string, error) {
	lines, err := c.run(ctx, "version", []string{"--version"})
	if err != nil {
		return "", err
	}
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", services.Wrap(services.ErrExternalTool, toolName, "version", "empty version output", nil)
}

// run executes probe-rs and returns every output line. Failures carry the
// tail of the output because probe-rs reports the cause on its last lines.
func (c *Client) run(ctx context.Context, operation string, args []string) ([]string, error) {
	var lines []string
	logger := c.logger
	if runID, ok := services.RunIDFromContext(ctx); ok {
		logger = logger.With(logging.String(logging.FieldRunID, runID))
	}
	logger.Debug("running probe-rs",
		logging.String("operation", operation),
		logging.String("args", strings.Join(args, " ")),
	)
	err := c.exec.Run(ctx, c.binary, args, func(line string) {
		lines = append(lines, line)
		logger.Debug("probe-rs output", logging.String("operation", operation), logging.String("line", line))
	})
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return lines, services.Wrap(services.ErrConfiguration, toolName, operation,
				fmt.Sprintf("%s not found; install probe-rs or set probe_rs.binary", c.binary), err)
		}
		return lines, services.Wrap(services.ErrExternalTool, toolName, operation, tail(lines, 3), err)
	}
	return lines, nil
}

func tail(lines []string, n int) string {
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append([]string{line}, kept...)
		}
	}
	return strings.Join(kept, " | ")
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		scanErr error
		once    sync.Once
	)
	forward := func(line string) {
		if onOutput == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onOutput(line)
	}
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
