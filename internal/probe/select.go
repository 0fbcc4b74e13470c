package probe

import (
	"fmt"
	"strconv"
	"strings"
)

// Select returns the probe at index. The list is not re-enumerated; a probe
// unplugged since the last refresh is reported when it is opened.
func Select(probes []Descriptor, index int) (Descriptor, error) {
	if len(probes) == 0 {
		return Descriptor{}, fmt.Errorf("%w: no probes detected", ErrInvalidSelection)
	}
	if index < 0 || index >= len(probes) {
		return Descriptor{}, fmt.Errorf("%w: index %d out of range (0-%d)", ErrInvalidSelection, index, len(probes)-1)
	}
	return probes[index], nil
}

// Match resolves selector against probes. A bare integer selects by index;
// otherwise selector is VID:PID or VID:PID:SERIAL in hexadecimal. A VID:PID
// selector shared by several probes is rejected.
func Match(probes []Descriptor, selector string) (Descriptor, error) {
	selector = strings.TrimSpace(selector)
	if index, err := strconv.Atoi(selector); err == nil {
		return Select(probes, index)
	}

	vid, pid, serial, err := ParseSelector(selector)
	if err != nil {
		return Descriptor{}, err
	}

	var matches []Descriptor
	for _, p := range probes {
		if p.VID != vid || p.PID != pid {
			continue
		}
		if serial != "" && !strings.EqualFold(p.Serial(), serial) {
			continue
		}
		matches = append(matches, p)
	}
	switch len(matches) {
	case 0:
		return Descriptor{}, fmt.Errorf("%w: no probe matches %s", ErrInvalidSelection, selector)
	case 1:
		return matches[0], nil
	default:
		return Descriptor{}, fmt.Errorf("%w: %d probes match %s; add the serial number", ErrInvalidSelection, len(matches), selector)
	}
}

// ParseSelector splits a VID:PID[:SERIAL] selector. The serial may itself
// contain colons.
func ParseSelector(selector string) (vid, pid uint16, serial string, err error) {
	parts := strings.SplitN(strings.TrimSpace(selector), ":", 3)
	if len(parts) < 2 {
		return 0, 0, "", fmt.Errorf("%w: %q is not VID:PID[:SERIAL]", ErrInvalidSelection, selector)
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(parts[0]), "0x"), 16, 16)
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: vendor id %q: %w", ErrInvalidSelection, parts[0], err)
	}
	p, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(parts[1]), "0x"), 16, 16)
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: product id %q: %w", ErrInvalidSelection, parts[1], err)
	}
	if len(parts) == 3 {
		serial = strings.TrimSpace(parts[2])
	}
	return uint16(v), uint16(p), serial, nil
}
