package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashClientIP returns the lowercase hex SHA-256 digest of ip. No salt is
// mixed in, so equal addresses always hash equally.
func HashClientIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}
