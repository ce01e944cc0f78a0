package model

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint is a stable blake2b-256 digest of parts, used for idempotency comparison
// and for logging identifiers such as phone numbers without exposing them.
func Fingerprint(parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Redact returns a short fingerprint suitable for log lines. Empty input stays empty.
func Redact(v string) string {
	if v == "" {
		return ""
	}
	return Fingerprint(v)[:12]
}
