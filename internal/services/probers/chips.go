package probers

import (
	"context"
	"strings"

	"iaptool/internal/services"
	"iaptool/internal/target"
)

// ChipFamilies lists the probe-rs chip database.
func (c *Client) ChipFamilies(ctx context.Context) ([]target.Family, error) {
	lines, err := c.run(ctx, "chip list", []string{"chip", "list"})
	if err != nil {
		return nil, err
	}
	families := parseChipList(lines)
	if len(families) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, toolName, "chip list", "no chip families in output", nil)
	}
	return families, nil
}

// parseChipList reads the probe-rs listing: a family name at column zero,
// an indented "Variants:" header and one indented chip name per line.
func parseChipList(lines []string) []target.Family {
	var families []target.Family
	for _, raw := range lines {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		trimmed := strings.TrimSpace(raw)
		indented := raw[0] == ' ' || raw[0] == '\t'
		switch {
		case !indented && strings.HasSuffix(trimmed, ":"):
			// "Available chips:" banner
			continue
		case !indented:
			families = append(families, target.Family{Name: trimmed})
		case strings.EqualFold(trimmed, "Variants:"):
			continue
		case len(families) > 0:
			last := &families[len(families)-1]
			last.Chips = append(last.Chips, trimmed)
		}
	}
	kept := families[:0]
	for _, f := range families {
		if len(f.Chips) > 0 {
			kept = append(kept, f)
		}
	}
	return kept
}
