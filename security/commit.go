package security

import (
	"bytes"
	"crypto/sha256"
)

const openingSize = 32

// Commitment binds a peer to a canonical byte string before it is revealed.
// The digest is SHA-256(canonical || opening); revealing the opening lets
// anyone check the binding after the fact.
type Commitment struct {
	Digest  []byte `json:"digest"`
	Opening []byte `json:"opening"`
}

// Commit computes a fresh commitment over canonical.
func Commit(canonical []byte) Commitment {
	opening := RandomBytes(openingSize)
	return Commitment{
		Digest:  commitDigest(canonical, opening),
		Opening: opening,
	}
}

// Verify checks that the commitment opens to canonical.
func (c Commitment) Verify(canonical []byte) bool {
	return bytes.Equal(c.Digest, commitDigest(canonical, c.Opening))
}

// Equal reports byte equality of both digest and opening.
func (c Commitment) Equal(other Commitment) bool {
	return bytes.Equal(c.Digest, other.Digest) && bytes.Equal(c.Opening, other.Opening)
}

func commitDigest(canonical, opening []byte) []byte {
	h := sha256.New()
	h.Write(canonical)
	h.Write(opening)
	return h.Sum(nil)
}
