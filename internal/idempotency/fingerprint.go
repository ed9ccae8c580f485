package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// FingerprintLength is the length in hex characters of a computed
// fingerprint (128 bits of the SHA-256 digest).
const FingerprintLength = 32

// Fingerprint computes the deduplication key for a request. It is
// deterministic: identical inputs always produce identical output, and any
// byte-level change to the body changes the output with overwhelming
// probability. The user ID scopes the key so identical payloads from
// different users never collide.
func Fingerprint(userID, method, path string, body []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%s:%s:", userID, method, path)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))[:FingerprintLength]
}
