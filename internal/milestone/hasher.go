package milestone

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var ErrMissingSalt = errors.New("milestone salt is not configured")

// Hasher derives the token persisted in place of a milestone id.
type Hasher struct {
	salt string
}

func NewHasher(salt string) (*Hasher, error) {
	if salt == "" {
		return nil, ErrMissingSalt
	}
	return &Hasher{salt: salt}, nil
}

// Hash returns lowercase hex SHA-256 of salt+rawID.
func (h *Hasher) Hash(rawID string) (string, error) {
	if h == nil || h.salt == "" {
		return "", ErrMissingSalt
	}
	sum := sha256.Sum256([]byte(h.salt + rawID))
	return hex.EncodeToString(sum[:]), nil
}
