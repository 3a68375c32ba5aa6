// Package gitlib wraps the libgit2 primitives the synchronization engine
// drives: repository probing, cloning, fetching, checkout, merge, workspace
// cleaning, revision lookup and raw commit-log extraction.
package gitlib

import (
	"encoding/hex"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

const (
	// HashSize is the size of a SHA-1 hash in bytes.
	HashSize = 20
	// HashHexSize is the size of a hex-encoded SHA-1 hash.
	HashHexSize = 40
	// ShortHexSize is the abbreviated hash length used for display and env export.
	ShortHexSize = 7
)

// Hash represents a git object hash (SHA-1).
type Hash [HashSize]byte

// ParseHash decodes a full-length hex revision identifier.
func ParseHash(s string) (Hash, error) {
	var h Hash

	if len(s) != HashHexSize {
		return h, fmt.Errorf("parse hash %q: want %d hex chars", s, HashHexSize)
	}

	_, err := hex.Decode(h[:], []byte(s))
	if err != nil {
		return h, fmt.Errorf("parse hash %q: %w", s, err)
	}

	return h, nil
}

// HashFromOid converts a libgit2 Oid to Hash.
func HashFromOid(oid *git2go.Oid) Hash {
	var h Hash

	copy(h[:], oid[:])

	return h
}

// ToOid converts Hash back to a libgit2 Oid.
func (h Hash) ToOid() *git2go.Oid {
	oid := new(git2go.Oid)
	copy(oid[:], h[:])

	return oid
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the abbreviated hex representation.
func (h Hash) Short() string {
	return h.String()[:ShortHexSize]
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}
