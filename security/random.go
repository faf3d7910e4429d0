package security

import (
	"encoding/binary"

	"go.dedis.ch/kyber/v4/suites"
)

var suite suites.Suite = suites.MustFind("Ed25519")

// RandomBytes draws n bytes from the suite's random stream.
func RandomBytes(n int) []byte {
	buf := make([]byte, n)
	suite.RandomStream().XORKeyStream(buf, buf)
	return buf
}

// RandomInt returns a uniform value in [0, n).
func RandomInt(n int) int {
	if n <= 1 {
		return 0
	}
	mask := uint64(1)
	for mask+1 < uint64(n) {
		mask = mask<<1 | 1
	}
	stream := suite.RandomStream()
	buf := make([]byte, 8)
	for {
		for i := range buf {
			buf[i] = 0
		}
		stream.XORKeyStream(buf, buf)
		if v := binary.BigEndian.Uint64(buf) & mask; v < uint64(n) {
			return int(v)
		}
	}
}

// Chance returns true with probability p.
func Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	const granularity = 1 << 20
	return RandomInt(granularity) < int(p*granularity)
}

// Permutation returns a random permutation of 0..n-1.
func Permutation(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := RandomInt(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}
