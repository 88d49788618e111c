// internal/cache/hash.go
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
)

// Hash is the idempotence key of a job. Maps are encoded with sorted keys, so equivalent data
// hashes the same regardless of key order; any changed value changes the hash.
func Hash(templateID string, data map[string]interface{}) (string, error) {
	canonical, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode schedule data: %w", err)
	}

	h := sha256.New()
	writeField(h, []byte(templateID))
	writeField(h, canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeField length-prefixes b so adjacent fields cannot run into each other.
func writeField(h hash.Hash, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	h.Write(n[:])
	h.Write(b)
}
