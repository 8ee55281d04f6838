package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBindingValue hashes a client-presented binding value (device
// fingerprint, IP). Raw fingerprints are never stored or put in claims.
func HashBindingValue(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}

// HashBindingValueHex is HashBindingValue in the hex form carried inside
// token claims.
func HashBindingValueHex(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}
