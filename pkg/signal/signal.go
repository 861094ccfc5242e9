// Package signal implements the canonical signal encoding and field hashing
// used across the World ID protocol.
//
// A signal is application-chosen data bound into a proof request so the
// resulting proof cannot be replayed against a different payload. Both sides
// of the protocol must reduce a signal to the same field element, so the byte
// encoding is fixed: each value contributes its canonical packed bytes with no
// length prefixes or padding between tuple members, and the concatenation is
// hashed with keccak256 and reduced into the proof system's scalar field.
package signal

import (
	"encoding/hex"

	"github.com/holiman/uint256"
)

// Encoder is the capability of being encoded as canonical packed bytes.
// It is implemented for primitive values and ordered tuples; implementations
// must be deterministic and byte-for-byte reproducible across platforms.
type Encoder interface {
	// SignalBytes returns the canonical packed encoding of the value.
	SignalBytes() []byte
}

// String encodes a string as its raw UTF-8 bytes.
type String string

// SignalBytes returns the string's UTF-8 bytes.
func (s String) SignalBytes() []byte { return []byte(s) }

// Bytes encodes a byte slice as-is.
type Bytes []byte

// SignalBytes returns the bytes unchanged.
func (b Bytes) SignalBytes() []byte { return b }

// Uint256 encodes a 256-bit unsigned integer as its 32-byte big-endian form.
type Uint256 uint256.Int

// U64 wraps a uint64 as a Uint256 signal value.
func U64(v uint64) Uint256 {
	return Uint256(*uint256.NewInt(v))
}

// SignalBytes returns the 32-byte big-endian encoding of the integer.
func (u Uint256) SignalBytes() []byte {
	n := uint256.Int(u)
	b := n.Bytes32()
	return b[:]
}

// Tuple encodes an ordered sequence of signal values by concatenating their
// canonical encodings. The empty tuple encodes to the empty byte string.
type Tuple []Encoder

// SignalBytes returns the concatenation of the members' encodings.
func (t Tuple) SignalBytes() []byte {
	var out []byte
	for _, e := range t {
		out = append(out, e.SignalBytes()...)
	}
	return out
}

// Encode reduces a signal value to a field element by hashing its canonical
// packed encoding. A nil signal encodes to the empty byte string, matching
// the protocol's "no signal" case.
func Encode(signal Encoder) *uint256.Int {
	if signal == nil {
		return HashToField(nil)
	}
	return HashToField(signal.SignalBytes())
}

// Hex returns the 0x-prefixed, zero-padded 64-digit hex representation of a
// field element, the form the bridge and verification endpoints expect.
func Hex(n *uint256.Int) string {
	b := n.Bytes32()
	return "0x" + hex.EncodeToString(b[:])
}
