package milestone

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasherRequiresSalt(t *testing.T) {
	_, err := NewHasher("")
	require.ErrorIs(t, err, ErrMissingSalt)

	var h *Hasher
	_, err = h.Hash("kaboom-id")
	require.ErrorIs(t, err, ErrMissingSalt)
}

func TestHashIsSaltedSHA256Hex(t *testing.T) {
	h, err := NewHasher("test-salt")
	require.NoError(t, err)

	got, err := h.Hash("kaboom-id")
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("test-salt" + "kaboom-id"))
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
	assert.Len(t, got, 64)
	assert.Regexp(t, "^[0-9a-f]+$", got)
}

func TestHashDeterministicAndDistinct(t *testing.T) {
	h, err := NewHasher("test-salt")
	require.NoError(t, err)

	inputs := []string{"", "a", "b", "kaboom-id", "ms-konami-81c2", "ümlaut"}
	seen := map[string]string{}
	for _, in := range inputs {
		first, err := h.Hash(in)
		require.NoError(t, err)
		second, err := h.Hash(in)
		require.NoError(t, err)
		assert.Equal(t, first, second, "hash of %q changed between calls", in)
		if prev, dup := seen[first]; dup {
			t.Fatalf("collision between %q and %q", prev, in)
		}
		seen[first] = in
	}
}

func TestDifferentSaltsDifferentTokens(t *testing.T) {
	a, _ := NewHasher("salt-a")
	b, _ := NewHasher("salt-b")
	ha, _ := a.Hash("kaboom-id")
	hb, _ := b.Hash("kaboom-id")
	assert.NotEqual(t, ha, hb)
}
