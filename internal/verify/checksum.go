// Package verify checks the integrity of a fetched document before any patch
// descriptor touches it: digest comparison always, minisign signature when a
// key is configured. A mismatch is a correctness failure, never retried.
package verify

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"
)

// Checksum computes the digest of data with the given algorithm (sha256 or
// sha512) and compares it case-insensitively against expectedHex. The error
// carries both digests so a mismatch can be reported verbatim.
func Checksum(data []byte, algo, expectedHex string) error {
	expected := strings.ToLower(strings.TrimSpace(expectedHex))
	if !IsHexDigest(expected, expectedDigestLength(algo)) {
		return fmt.Errorf("expected digest %q is not a valid %s hex digest", expectedHex, algo)
	}

	var actual string
	switch strings.ToLower(algo) {
	case "sha256":
		sum := sha256.Sum256(data)
		actual = hex.EncodeToString(sum[:])
	case "sha512":
		sum := sha512.Sum512(data)
		actual = hex.EncodeToString(sum[:])
	default:
		return fmt.Errorf("unknown hash algo %q", algo)
	}

	if actual != expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}

// IsHexDigest reports whether value is a hex string of the expected length.
// A zero expectedLen accepts any even length.
func IsHexDigest(value string, expectedLen int) bool {
	if expectedLen > 0 && len(value) != expectedLen {
		return false
	}
	if len(value)%2 != 0 {
		return false
	}
	for _, ch := range value {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') && (ch < 'A' || ch > 'F') {
			return false
		}
	}
	return true
}

func expectedDigestLength(algo string) int {
	switch strings.ToLower(algo) {
	case "sha256":
		return 64
	case "sha512":
		return 128
	default:
		return 0
	}
}
