package probers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"iaptool/internal/flash"
	"iaptool/internal/logging"
	"iaptool/internal/probe"
	"iaptool/internal/services"
)

// lease is the lock held on one physical probe. It is shared by the opened
// and the attached session and released once.
type lease struct {
	lock *flock.Flock
	once sync.Once
	err  error
}

func (l *lease) release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	l.once.Do(func() {
		l.err = l.lock.Unlock()
	})
	return l.err
}

type session struct {
	client *Client
	desc   probe.Descriptor
	lease  *lease
	chip   string
	perms  flash.Permissions
}

func (s *session) Probe() probe.Descriptor { return s.desc }

func (s *session) Close() error {
	if err := s.lease.release(); err != nil {
		return fmt.Errorf("release probe lock: %w", err)
	}
	return nil
}

func (s *session) attached() bool {
	return s.chip != ""
}

// Open locks the probe and confirms it is still connected. probe-rs opens the
// USB device itself on every command, so the session only carries the
// selector and the lock.
func (c *Client) Open(ctx context.Context, desc probe.Descriptor) (probe.Session, error) {
	l, err := c.acquire(desc)
	if err != nil {
		return nil, err
	}

	probes, err := c.List(ctx)
	if err != nil {
		_ = l.release()
		return nil, err
	}
	if !connected(probes, desc) {
		_ = l.release()
		return nil, services.Wrap(services.ErrNotFound, toolName, "open",
			fmt.Sprintf("probe %s is no longer connected; refresh the probe list", desc.Selector()), nil)
	}

	c.logger.Debug("probe session opened",
		logging.String(logging.FieldProbe, desc.Selector()),
		logging.String("lock_dir", c.lockDir),
	)
	return &session{client: c, desc: desc, lease: l}, nil
}

func (c *Client) acquire(desc probe.Descriptor) (*lease, error) {
	if c.lockDir == "" {
		return &lease{}, nil
	}
	if err := os.MkdirAll(c.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(lockPath(c.lockDir, desc))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire probe lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is in use by another iaptool process", probe.ErrProbeBusy, desc.Selector())
	}
	return &lease{lock: lock}, nil
}

func lockPath(dir string, desc probe.Descriptor) string {
	id := strings.NewReplacer(":", "-", "/", "_", "\\", "_", " ", "_").Replace(desc.Selector())
	return filepath.Join(dir, "probe-"+id+".lock")
}

func connected(probes []probe.Descriptor, desc probe.Descriptor) bool {
	for _, p := range probes {
		if p.VID != desc.VID || p.PID != desc.PID {
			continue
		}
		if desc.Serial() == "" || strings.EqualFold(p.Serial(), desc.Serial()) {
			return true
		}
	}
	return false
}
