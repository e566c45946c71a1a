// Package crypto bundles the hashing and signature primitives used by the
// devchain engine: legacy Keccak-256, secp256k1 ECDSA, and EIP-4844 KZG
// blob proofs.
package crypto

import (
	"hash"

	"golang.org/x/crypto/sha3"
)

// KeccakState wraps sha3.state and supports Read for cheap digest output.
type KeccakState interface {
	hash.Hash
	Read([]byte) (int, error)
}

// NewKeccakState creates a new KeccakState.
func NewKeccakState() KeccakState {
	return sha3.NewLegacyKeccak256().(KeccakState)
}

// Keccak256 computes the Keccak-256 hash of the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	d := NewKeccakState()
	for _, b := range data {
		d.Write(b)
	}
	out := make([]byte, 32)
	d.Read(out)
	return out
}

// Keccak256Array computes the Keccak-256 hash into a fixed 32-byte array.
func Keccak256Array(data ...[]byte) [32]byte {
	var out [32]byte
	copy(out[:], Keccak256(data...))
	return out
}
