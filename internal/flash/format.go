package flash

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FormatKind selects how the downloader interprets the image file.
type FormatKind string

const (
	FormatAuto FormatKind = "auto"
	FormatELF  FormatKind = "elf"
	FormatHex  FormatKind = "hex"
	FormatBin  FormatKind = "bin"
)

// ParseFormat parses a user supplied format name. An empty value means auto.
func ParseFormat(value string) (FormatKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatAuto):
		return FormatAuto, nil
	case string(FormatELF):
		return FormatELF, nil
	case "ihex", string(FormatHex):
		return FormatHex, nil
	case "raw", string(FormatBin):
		return FormatBin, nil
	default:
		return "", fmt.Errorf("%w: %q (want auto, elf, hex or bin)", ErrUnknownFormat, value)
	}
}

// ResolveFormat turns FormatAuto into a concrete kind using the file
// extension. Explicit kinds are returned unchanged.
func ResolveFormat(kind FormatKind, path string) (FormatKind, error) {
	if kind != "" && kind != FormatAuto {
		if _, err := ParseFormat(string(kind)); err != nil {
			return "", err
		}
		return kind, nil
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case "", ".elf", ".axf", ".out":
		return FormatELF, nil
	case ".hex", ".ihex", ".ihx":
		return FormatHex, nil
	case ".bin":
		return FormatBin, nil
	default:
		return "", fmt.Errorf("%w: cannot derive format from extension %q; pass an explicit format", ErrUnknownFormat, ext)
	}
}
