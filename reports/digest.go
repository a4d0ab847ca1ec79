package reports

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentDigest returns the hex SHA-256 of b, truncated to hexLen characters
// when hexLen is positive and shorter than the full digest.
func ContentDigest(b []byte, hexLen int) string {
	sum := sha256.Sum256(b)
	full := hex.EncodeToString(sum[:])
	if hexLen <= 0 || hexLen >= len(full) {
		return full
	}
	return full[:hexLen]
}
