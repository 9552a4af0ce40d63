package docindex

import (
	"crypto/sha256"
	"encoding/hex"
)

// checksumString hashes raw content bytes and serializes as sha256:<hex>,
// per spec §3's Checksum definition.
func checksumString(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "sha256:" + hex.EncodeToString(sum[:])
}
