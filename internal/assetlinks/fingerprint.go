package assetlinks

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// fingerprintLen is the textual length of a SHA-256 fingerprint: 32
// upper-case hex pairs joined by ':'.
const fingerprintLen = sha256.Size*3 - 1

// ParseFingerprint decodes a certificate fingerprint of the form
// "AB:CD:...:EF". Lower-case hex digits are rejected.
func ParseFingerprint(s string) ([]byte, error) {
	if len(s) != fingerprintLen {
		return nil, fmt.Errorf("fingerprint must be %d characters, got %d", fingerprintLen, len(s))
	}
	fp := make([]byte, sha256.Size)
	for i := range fp {
		j := i * 3
		pair := s[j : j+2]
		if strings.ToUpper(pair) != pair {
			return nil, fmt.Errorf("fingerprint byte %d %q is not upper-case", i, pair)
		}
		if _, err := hex.Decode(fp[i:i+1], []byte(pair)); err != nil {
			return nil, fmt.Errorf("fingerprint byte %d: %w", i, err)
		}
		if i < sha256.Size-1 && s[j+2] != ':' {
			return nil, fmt.Errorf("fingerprint expected ':' at offset %d", j+2)
		}
	}
	return fp, nil
}

// FormatFingerprint renders fp in the form accepted by ParseFingerprint.
func FormatFingerprint(fp []byte) string {
	pairs := make([]string, len(fp))
	for i, b := range fp {
		pairs[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(pairs, ":")
}

// CertificateFingerprint returns the SHA-256 fingerprint of a DER encoded certificate.
func CertificateFingerprint(der []byte) []byte {
	sum := sha256.Sum256(der)
	return sum[:]
}
