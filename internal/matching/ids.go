package matching

import (
	"crypto/sha256"
	"encoding/hex"
)

// canonicalCycleHash derives a deterministic 12-hex-char suffix from a
// cycle's canonical key, the same "hash a stable string, truncate to 12 hex
// chars" shape used for commit ids (§4.7).
func canonicalCycleHash(canonicalKey string) string {
	sum := sha256.Sum256([]byte("cycle|" + canonicalKey))
	return hex.EncodeToString(sum[:])[:12]
}
