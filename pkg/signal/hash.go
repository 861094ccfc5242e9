package signal

import (
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// HashToField hashes input with keccak256, then shifts the result right by
// one byte so it fits strictly within the proof system's scalar field. The
// returned value is always less than 2^248.
func HashToField(input []byte) *uint256.Int {
	n := new(uint256.Int).SetBytes(keccak256(input))
	return n.Rsh(n, 8)
}

func keccak256(input []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(input)
	return h.Sum(nil)
}
