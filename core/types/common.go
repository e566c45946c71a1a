// Package types holds the primitive chain data structures: addresses,
// hashes, transactions, receipts, logs, headers and blocks.
package types

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const (
	// HashLength is the byte length of a Hash.
	HashLength = 32
	// AddressLength is the byte length of an Address.
	AddressLength = 20
)

// Hash is a 32-byte Keccak-256 digest or arbitrary identifier.
type Hash [HashLength]byte

// BytesToHash converts b to a Hash, left-padding to 32 bytes. Longer
// inputs keep their rightmost 32 bytes.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// BigToHash converts a big integer to a Hash (big-endian, left padded).
func BigToHash(b *big.Int) Hash {
	return BytesToHash(b.Bytes())
}

// HexToHash parses a 0x-prefixed hex string into a Hash.
func HexToHash(s string) Hash {
	return BytesToHash(fromHex(s))
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte { return h[:] }

// Big returns the hash interpreted as a big-endian integer.
func (h Hash) Big() *big.Int { return new(big.Int).SetBytes(h[:]) }

// Hex returns the 0x-prefixed lowercase hex encoding.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// IsZero reports whether the hash is all zero bytes.
func (h Hash) IsZero() bool { return h == Hash{} }

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(input []byte) error {
	b, err := decodeFixedHex(string(input), HashLength)
	if err != nil {
		return fmt.Errorf("invalid hash: %w", err)
	}
	copy(h[:], b)
	return nil
}

// Address is a 20-byte account address.
type Address [AddressLength]byte

// BytesToAddress converts b to an Address, left-padding to 20 bytes.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// BigToAddress converts a big integer to an Address.
func BigToAddress(b *big.Int) Address {
	return BytesToAddress(b.Bytes())
}

// HexToAddress parses a 0x-prefixed hex string into an Address.
func HexToAddress(s string) Address {
	return BytesToAddress(fromHex(s))
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte { return a[:] }

// Hash returns the address left-padded into a Hash.
func (a Address) Hash() Hash { return BytesToHash(a[:]) }

// Big returns the address interpreted as a big-endian integer.
func (a Address) Big() *big.Int { return new(big.Int).SetBytes(a[:]) }

// Hex returns the 0x-prefixed lowercase hex encoding.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// IsZero reports whether the address is all zero bytes.
func (a Address) IsZero() bool { return a == Address{} }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(input []byte) error {
	b, err := decodeFixedHex(string(input), AddressLength)
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	copy(a[:], b)
	return nil
}

// BlockNonce is the 8-byte proof-of-work nonce field.
type BlockNonce [8]byte

// EncodeNonce packs a uint64 into a BlockNonce (big-endian).
func EncodeNonce(i uint64) BlockNonce {
	var n BlockNonce
	for j := 7; j >= 0; j-- {
		n[j] = byte(i)
		i >>= 8
	}
	return n
}

// Uint64 unpacks the nonce as a big-endian integer.
func (n BlockNonce) Uint64() uint64 {
	var u uint64
	for _, b := range n {
		u = u<<8 | uint64(b)
	}
	return u
}

// CopyBytes returns a fresh copy of b, preserving nil.
func CopyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func copyBig(i *big.Int) *big.Int {
	if i == nil {
		return nil
	}
	return new(big.Int).Set(i)
}

func fromHex(s string) []byte {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

func decodeFixedHex(s string, length int) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("missing 0x prefix")
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, err
	}
	if len(b) != length {
		return nil, fmt.Errorf("want %d bytes, got %d", length, len(b))
	}
	return b, nil
}
