package probers

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"iaptool/internal/probe"
)

var (
	// [0]: STLink V2 -- 0483:3748:066DFF555057 (ST-LINK)
	probeLinePattern = regexp.MustCompile(`^\[(\d+)\]:\s*(.+?)\s+--\s+([0-9A-Fa-f]{4}):([0-9A-Fa-f]{4})(?::(\S+))?(?:\s+\((.*)\))?\s*$`)
	// [0]: STLink V2 (VID: 0483, PID: 3748, Serial: 066DFF555057, StLink)
	legacyProbeLinePattern = regexp.MustCompile(`^\[(\d+)\]:\s*(.+?)\s+\(VID:\s*([0-9A-Fa-f]{4}),\s*PID:\s*([0-9A-Fa-f]{4}),\s*(?:Serial:\s*([^,]*),\s*)?(.*)\)\s*$`)
)

// List enumerates the probes currently attached to the host.
func (c *Client) List(ctx context.Context) ([]probe.Descriptor, error) {
	lines, err := c.run(ctx, "list", []string{"list"})
	if err != nil {
		return nil, err
	}
	return parseProbeList(lines), nil
}

func parseProbeList(lines []string) []probe.Descriptor {
	probes := make([]probe.Descriptor, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		match := probeLinePattern.FindStringSubmatch(line)
		if match == nil {
			match = legacyProbeLinePattern.FindStringSubmatch(line)
		}
		if match == nil {
			continue
		}
		vid, _ := strconv.ParseUint(match[3], 16, 16)
		pid, _ := strconv.ParseUint(match[4], 16, 16)
		probes = append(probes, probe.Descriptor{
			Index:        len(probes),
			Identifier:   strings.TrimSpace(match[2]),
			VID:          uint16(vid),
			PID:          uint16(pid),
			SerialNumber: probe.StringPtr(match[5]),
			Kind:         probe.KindForVendor(uint16(vid)),
		})
	}
	return probes
}
