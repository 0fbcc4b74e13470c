package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFirmware writes a firmware image of size bytes under dir and returns
// its path. Hex images get Intel HEX data records and an end record; other
// extensions get a repeating byte pattern. size <= 0 writes a minimal image.
func WriteFirmware(t testing.TB, dir, name string, size int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	var data []byte
	switch filepath.Ext(name) {
	case ".hex", ".ihex", ".ihx":
		for written := 0; written < size; written += 16 {
			data = append(data, ":10000000000000000000000000000000000000F0\n"...)
		}
		data = append(data, ":00000001FF\n"...)
	default:
		if size <= 0 {
			size = 1
		}
		data = make([]byte, size)
		for i := range data {
			data[i] = byte(i % 251)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
