package hotplug

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"iaptool/internal/logging"
	"iaptool/internal/probe"
)

// Event describes one probe arriving or leaving.
type Event struct {
	Action  string     `json:"action"`
	VID     uint16     `json:"vid"`
	PID     uint16     `json:"pid"`
	Serial  string     `json:"serial,omitempty"`
	Product string     `json:"product,omitempty"`
	DevPath string     `json:"devpath,omitempty"`
	Kind    probe.Kind `json:"kind"`
}

// Selector renders the VID:PID[:SERIAL] form used by the probe commands.
func (e Event) Selector() string {
	return probe.Descriptor{VID: e.VID, PID: e.PID, SerialNumber: probe.StringPtr(e.Serial)}.Selector()
}

// ProbeVendors lists the USB vendor ids treated as debug probes.
var ProbeVendors = []uint16{0x0483, 0x1366, 0x0d28, 0x2e8a, 0x1a86, 0x303a, 0x0403}

// Monitor listens for USB device uevents from udev and forwards those from
// known probe vendors to the handler.
type Monitor struct {
	logger  *slog.Logger
	handler func(context.Context, Event)
	vendors map[uint16]struct{}

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewMonitor creates a monitor. An empty vendors list uses ProbeVendors.
func NewMonitor(logger *slog.Logger, handler func(context.Context, Event), vendors ...uint16) *Monitor {
	if len(vendors) == 0 {
		vendors = ProbeVendors
	}
	set := make(map[uint16]struct{}, len(vendors))
	for _, v := range vendors {
		set[v] = struct{}{}
	}
	return &Monitor{
		logger:  logging.NewComponentLogger(logger, "hotplug"),
		handler: handler,
		vendors: set,
	}
}

// Start connects to the udev netlink socket and processes events until ctx
// is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return fmt.Errorf("connect netlink socket: %w", err)
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
		logging.Int("vendor_count", len(m.vendors)),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// release resets the monitor after its loop exits on context cancellation.
// It does nothing when quit belongs to an earlier run, so a Stop followed by a
// new Start is not undone.
func (m *Monitor) release(quit <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || m.quit == nil || (<-chan struct{})(m.quit) != quit {
		return
	}
	m.quit = nil
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
		logging.String("reason", "context cancelled"),
	)
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			m.release(quit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "hotplug_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "probe plug events may be missed"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=usb, DEVTYPE=usb_device, ACTION=add|remove.
func buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "^usb$",
			"DEVTYPE":   "^usb_device$",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	event, ok := parseEvent(uevent)
	if !ok {
		m.logger.Debug("ignoring usb event without vendor id",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}
	if _, known := m.vendors[event.VID]; !known {
		return
	}

	m.logger.Info("debug probe "+event.Action,
		logging.String(logging.FieldEventType, "hotplug_probe_"+event.Action),
		logging.String(logging.FieldProbe, event.Selector()),
		logging.String("product", event.Product),
	)
	if m.handler != nil {
		m.handler(ctx, event)
	}
}

// parseEvent extracts ids from the udev properties, falling back to the
// kernel PRODUCT=vid/pid/bcd triple that remove events still carry.
func parseEvent(uevent netlink.UEvent) (Event, bool) {
	env := uevent.Env
	event := Event{
		Action:  strings.ToLower(string(uevent.Action)),
		Serial:  strings.TrimSpace(env["ID_SERIAL_SHORT"]),
		Product: productName(env),
		DevPath: env["DEVPATH"],
	}
	if event.DevPath == "" {
		event.DevPath = uevent.KObj
	}

	vid, vidOK := parseHex(env["ID_VENDOR_ID"])
	pid, pidOK := parseHex(env["ID_MODEL_ID"])
	if !vidOK || !pidOK {
		parts := strings.Split(env["PRODUCT"], "/")
		if len(parts) < 2 {
			return Event{}, false
		}
		vid, vidOK = parseHex(parts[0])
		pid, pidOK = parseHex(parts[1])
		if !vidOK || !pidOK {
			return Event{}, false
		}
	}
	event.VID = vid
	event.PID = pid
	event.Kind = probe.KindForVendor(vid)
	return event, true
}

func productName(env map[string]string) string {
	for _, key := range []string{"ID_MODEL_FROM_DATABASE", "ID_MODEL"} {
		if v := strings.TrimSpace(env[key]); v != "" {
			return strings.ReplaceAll(v, "_", " ")
		}
	}
	return ""
}

func parseHex(value string) (uint16, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(value, 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}
