package kb

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"lukechampine.com/blake3"
)

// Digest returns the hex blake3-256 of the canonical JSON encoding of
// entries. An empty history hashes the JSON "[]".
func Digest[T any](entries []T) (string, error) {
	if entries == nil {
		entries = []T{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
