package catalog

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ImageKey identifies firmware images inside a product. Upsert compares all
// four fields. Delete and Lookup treat empty Version, ChipFamily and ChipType
// as wildcards, so ImageKey{Name: "app"} selects every variant named "app".
// Name is never a wildcard: an empty Name selects only images without a name.
type ImageKey struct {
	Name       string
	Version    string
	ChipFamily string
	ChipType   string
}

// Matches reports whether image satisfies the key.
func (k ImageKey) Matches(image FirmwareImage) bool {
	if !sameName(k.Name, image.Name) {
		return false
	}
	if !wildcardOrEqual(k.Version, image.Version) {
		return false
	}
	if !wildcardOrEqual(k.ChipFamily, image.ChipFamily) {
		return false
	}
	return wildcardOrEqual(k.ChipType, image.ChipType)
}

// Exact reports whether image carries exactly this identity tuple.
func (k ImageKey) Exact(image FirmwareImage) bool {
	return sameName(k.Name, image.Name) &&
		sameName(k.Version, image.Version) &&
		sameName(k.ChipFamily, image.ChipFamily) &&
		sameName(k.ChipType, image.ChipType)
}

// Partial reports whether any of the optional fields is left as a wildcard.
func (k ImageKey) Partial() bool {
	return canonical(k.Version) == "" || canonical(k.ChipFamily) == "" || canonical(k.ChipType) == ""
}

func wildcardOrEqual(want, have string) bool {
	if canonical(want) == "" {
		return true
	}
	return sameName(want, have)
}

// SameName reports whether two catalog names match the way lookups compare them.
func SameName(a, b string) bool {
	return sameName(a, b)
}

// sameName compares catalog strings after trimming and NFC normalization so
// names typed through different input methods still match.
func sameName(a, b string) bool {
	return canonical(a) == canonical(b)
}

func canonical(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}
