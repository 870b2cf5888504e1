// Package digest computes content digests for cache keys and
// verification reports. BLAKE3 is the primary digest; SHA-256 is kept
// alongside it for external tooling that expects it.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/zeebo/blake3"
)

// hexPattern matches a valid lowercase 256-bit hex digest (64 characters).
var hexPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Pair holds both digests of one blob.
type Pair struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

// Sum computes the BLAKE3 digest of data as a lowercase hex string.
func Sum(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumSHA256 computes the SHA-256 digest of data as a lowercase hex string.
func SumSHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Both computes both digests of data.
func Both(data []byte) Pair {
	return Pair{
		SHA256: SumSHA256(data),
		BLAKE3: Sum(data),
	}
}

// SumFile computes the BLAKE3 digest of the file at path without
// loading it into memory.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsValid reports whether s is a lowercase 256-bit hex digest.
func IsValid(s string) bool {
	return hexPattern.MatchString(s)
}
