package types

import (
	"github.com/devchain-eth/devchain/crypto"
)

// BloomByteLength is the byte width of a 2048-bit bloom filter.
const BloomByteLength = 256

// Bloom is the 2048-bit log bloom filter carried in headers and receipts.
type Bloom [BloomByteLength]byte

// BytesToBloom converts b to a Bloom, left-padding to 256 bytes.
func BytesToBloom(b []byte) Bloom {
	var bloom Bloom
	if len(b) > BloomByteLength {
		b = b[len(b)-BloomByteLength:]
	}
	copy(bloom[BloomByteLength-len(b):], b)
	return bloom
}

// Add sets the three filter bits derived from d.
func (b *Bloom) Add(d []byte) {
	i1, v1, i2, v2, i3, v3 := bloomValues(d)
	b[i1] |= v1
	b[i2] |= v2
	b[i3] |= v3
}

// Test reports whether all three filter bits for d are set. False
// positives are possible, false negatives are not.
func (b Bloom) Test(d []byte) bool {
	i1, v1, i2, v2, i3, v3 := bloomValues(d)
	return b[i1]&v1 == v1 && b[i2]&v2 == v2 && b[i3]&v3 == v3
}

// Or merges other into b.
func (b *Bloom) Or(other Bloom) {
	for i := range b {
		b[i] |= other[i]
	}
}

// Bytes returns the bloom as a byte slice.
func (b Bloom) Bytes() []byte { return b[:] }

// bloomValues returns the byte indices and bit masks for d. Each of the
// first three 16-bit words of keccak(d), masked to 11 bits, selects one
// bit of the 2048-bit filter.
func bloomValues(d []byte) (uint, byte, uint, byte, uint, byte) {
	h := crypto.Keccak256(d)
	b1 := (uint(h[0])<<8 | uint(h[1])) & 0x7ff
	b2 := (uint(h[2])<<8 | uint(h[3])) & 0x7ff
	b3 := (uint(h[4])<<8 | uint(h[5])) & 0x7ff
	return BloomByteLength - 1 - b1/8, byte(1 << (b1 % 8)),
		BloomByteLength - 1 - b2/8, byte(1 << (b2 % 8)),
		BloomByteLength - 1 - b3/8, byte(1 << (b3 % 8))
}

// LogsBloom computes the bloom filter covering all given logs.
func LogsBloom(logs []*Log) Bloom {
	var b Bloom
	for _, l := range logs {
		b.Add(l.Address.Bytes())
		for _, topic := range l.Topics {
			b.Add(topic.Bytes())
		}
	}
	return b
}

// CreateBloom computes the union bloom over a set of receipts.
func CreateBloom(receipts Receipts) Bloom {
	var b Bloom
	for _, r := range receipts {
		b.Or(LogsBloom(r.Logs))
	}
	return b
}

// BloomLookup tests a single topic or address against a bloom filter.
func BloomLookup(b Bloom, d []byte) bool {
	return b.Test(d)
}
