package protection

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// minSaltLength is the minimum accepted salt size in bytes (128 bits)
const minSaltLength = 16

// KeyHasher derives opaque map keys from raw identifiers (IP addresses,
// account emails) using a keyed BLAKE2b hash. Raw identifiers never appear
// in component maps, logs, or emitted events; the salt is loaded once at
// startup and is never logged.
type KeyHasher struct {
	salt []byte
}

// NewKeyHasher creates a KeyHasher from the process salt
func NewKeyHasher(salt string) (*KeyHasher, error) {
	if len(salt) < minSaltLength {
		return nil, fmt.Errorf("protection salt must be at least %d bytes (got %d)", minSaltLength, len(salt))
	}

	key := []byte(salt)
	if len(key) > blake2b.Size {
		// BLAKE2b keys are capped at 64 bytes; compress longer salts
		sum := blake2b.Sum256(key)
		key = sum[:]
	}

	return &KeyHasher{salt: key}, nil
}

// Hash returns the opaque key for a raw identifier.
// The same raw value always maps to the same key within one process.
func (kh *KeyHasher) Hash(raw string) string {
	h, _ := blake2b.New256(kh.salt)
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))[:32]
}
