package blockchain

import (
	"encoding/binary"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/crypto"
)

// HashGenerator produces a deterministic hash sequence from a seed.
// Two generators seeded identically emit identical sequences, which is
// what makes a session replayable byte for byte. One instance
// fabricates state roots for forked stores, another feeds post-merge
// prev-randao values.
type HashGenerator struct {
	seed    types.Hash
	counter uint64
}

// NewHashGenerator seeds a generator from an arbitrary string.
func NewHashGenerator(seed string) *HashGenerator {
	return &HashGenerator{seed: types.Hash(crypto.Keccak256Array([]byte(seed)))}
}

// Next returns the next hash in the sequence.
func (g *HashGenerator) Next() types.Hash {
	h := DeriveHash(g.seed, g.counter)
	g.counter++
	return h
}

// Counter returns the number of hashes emitted so far.
func (g *HashGenerator) Counter() uint64 { return g.counter }

// Rewind resets the sequence position, used on snapshot revert.
func (g *HashGenerator) Rewind(counter uint64) { g.counter = counter }

// DeriveHash maps (seed, index) to a hash. Indexable rather than purely
// sequential so reserved blocks at arbitrary offsets stay O(1).
func DeriveHash(seed types.Hash, index uint64) types.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	return types.Hash(crypto.Keccak256Array(seed[:], buf[:]))
}
