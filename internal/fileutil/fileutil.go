package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Digest identifies file content.
type Digest struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// HashFile streams path through SHA-256 and returns the hex digest and the
// number of bytes read.
func HashFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Digest{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Digest{}, fmt.Errorf("%s is a directory", path)
	}

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Digest{}, fmt.Errorf("read %s: %w", path, err)
	}
	if n != info.Size() {
		return Digest{}, fmt.Errorf("size mismatch reading %s: expected %d bytes, read %d", path, info.Size(), n)
	}
	return Digest{SHA256: hex.EncodeToString(h.Sum(nil)), Size: n}, nil
}

// Short returns the first 12 hex characters of the digest for display.
func (d Digest) Short() string {
	if len(d.SHA256) <= 12 {
		return d.SHA256
	}
	return d.SHA256[:12]
}
