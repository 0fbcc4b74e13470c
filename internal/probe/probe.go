package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSelection is returned when an index or selector does not name
	// exactly one enumerated probe.
	ErrInvalidSelection = errors.New("invalid probe selection")
	// ErrProbeBusy is returned when another process holds the probe.
	ErrProbeBusy = errors.New("probe busy")
)

// Kind classifies a probe by its USB vendor.
type Kind string

const (
	KindSTLink   Kind = "stlink"
	KindJLink    Kind = "jlink"
	KindCMSISDAP Kind = "cmsis-dap"
	KindFTDI     Kind = "ftdi"
	KindWCHLink  Kind = "wch-link"
	KindESP      Kind = "esp-usb-jtag"
	KindUnknown  Kind = "unknown"
)

// Descriptor is a snapshot of one enumerated probe. It may go stale once the
// probe is unplugged; opening a stale descriptor fails at Open.
type Descriptor struct {
	Index        int     `json:"index"`
	Identifier   string  `json:"identifier"`
	VID          uint16  `json:"vid"`
	PID          uint16  `json:"pid"`
	SerialNumber *string `json:"serial_number,omitempty"`
	Kind         Kind    `json:"kind"`
}

// Serial returns the serial number or an empty string.
func (d Descriptor) Serial() string {
	if d.SerialNumber == nil {
		return ""
	}
	return *d.SerialNumber
}

// Selector renders the VID:PID[:SERIAL] form accepted by probe-rs.
func (d Descriptor) Selector() string {
	base := fmt.Sprintf("%04x:%04x", d.VID, d.PID)
	if serial := d.Serial(); serial != "" {
		return base + ":" + serial
	}
	return base
}

// Label renders the descriptor the way the probe list shows it.
func (d Descriptor) Label() string {
	serial := d.Serial()
	if serial == "" {
		serial = "None"
	}
	return fmt.Sprintf("[%d] %s (%s)", d.Index, d.Identifier, serial)
}

// Session is an opened probe. Close releases the probe and any lock held on it.
type Session interface {
	Probe() Descriptor
	Close() error
}

// Registry enumerates and opens debug probes.
type Registry interface {
	List(ctx context.Context) ([]Descriptor, error)
	Open(ctx context.Context, probe Descriptor) (Session, error)
}

// KindForVendor maps a USB vendor id to a probe kind.
func KindForVendor(vid uint16) Kind {
	switch vid {
	case 0x0483:
		return KindSTLink
	case 0x1366:
		return KindJLink
	case 0x0d28, 0x2e8a, 0xc251:
		return KindCMSISDAP
	case 0x0403:
		return KindFTDI
	case 0x1a86:
		return KindWCHLink
	case 0x303a:
		return KindESP
	default:
		return KindUnknown
	}
}

// StringPtr returns a pointer to a trimmed copy of value, or nil when empty.
func StringPtr(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
