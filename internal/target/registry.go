package target

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownFamily is returned for a family name absent from the registry.
	ErrUnknownFamily = errors.New("unknown chip family")
	// ErrUnknownChipType is returned for a chip type absent from the registry
	// or from the family it was paired with.
	ErrUnknownChipType = errors.New("unknown chip type")
	// ErrUnavailable marks a registry that could not produce a chip list.
	ErrUnavailable = errors.New("chip list unavailable")
)

// Family is one chip family and its chip types in source order.
type Family struct {
	Name  string   `json:"name"`
	Chips []string `json:"chips"`
}

// Registry supplies the chip identifiers accepted for attach.
type Registry interface {
	Families(ctx context.Context) ([]string, error)
	TargetsForFamily(ctx context.Context, name string) ([]string, error)
	HasChip(ctx context.Context, chip string) (bool, error)
}

// Source produces the full chip database, usually by asking probe-rs.
type Source interface {
	ChipFamilies(ctx context.Context) ([]Family, error)
}

// Static is a Registry over a fixed family table. Names match case-insensitively.
type Static struct {
	families []Family
}

// NewStatic copies families so later changes by the caller are not observed.
func NewStatic(families []Family) *Static {
	return &Static{families: cloneFamilies(families)}
}

// Families returns the family names in table order.
func (s *Static) Families(context.Context) ([]string, error) {
	names := make([]string, 0, len(s.families))
	for _, f := range s.families {
		names = append(names, f.Name)
	}
	return names, nil
}

// TargetsForFamily returns the chip types of the named family.
func (s *Static) TargetsForFamily(_ context.Context, name string) ([]string, error) {
	f := s.family(name)
	if f == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, strings.TrimSpace(name))
	}
	return append([]string(nil), f.Chips...), nil
}

// HasChip reports whether any family lists chip.
func (s *Static) HasChip(_ context.Context, chip string) (bool, error) {
	chip = strings.TrimSpace(chip)
	if chip == "" {
		return false, nil
	}
	for _, f := range s.families {
		if containsFold(f.Chips, chip) {
			return true, nil
		}
	}
	return false, nil
}

// ChipFamilies lets a Static table stand in for probe-rs as a Source.
func (s *Static) ChipFamilies(context.Context) ([]Family, error) {
	return cloneFamilies(s.families), nil
}

func (s *Static) family(name string) *Family {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	for i := range s.families {
		if strings.EqualFold(s.families[i].Name, name) {
			return &s.families[i]
		}
	}
	return nil
}

// Validate checks a catalog entry's chip family and chip type against reg.
// Both values are optional; a chip type given with a family must belong to
// that family. Registry failures are reported wrapped in ErrUnavailable so
// callers can tell "unknown" from "could not check".
func Validate(ctx context.Context, reg Registry, family, chip string) error {
	family = strings.TrimSpace(family)
	chip = strings.TrimSpace(chip)

	if family != "" {
		chips, err := reg.TargetsForFamily(ctx, family)
		if err != nil {
			if errors.Is(err, ErrUnknownFamily) {
				return err
			}
			return unavailable(err)
		}
		if chip != "" && !containsFold(chips, chip) {
			return fmt.Errorf("%w: %q is not in family %q", ErrUnknownChipType, chip, family)
		}
		return nil
	}

	if chip == "" {
		return nil
	}
	ok, err := reg.HasChip(ctx, chip)
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChipType, chip)
	}
	return nil
}

func unavailable(err error) error {
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func cloneFamilies(families []Family) []Family {
	out := make([]Family, 0, len(families))
	for _, f := range families {
		out = append(out, Family{Name: f.Name, Chips: append([]string(nil), f.Chips...)})
	}
	return out
}
