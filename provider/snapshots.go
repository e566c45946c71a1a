package provider

import (
	"math/big"

	"github.com/devchain-eth/devchain/blockchain"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/mempool"
)

// sessionSnapshot captures the revertible provider state: the chain
// mark, a mempool copy, and the mining knobs.
type sessionSnapshot struct {
	id uint64

	mark blockchain.Mark
	pool *mempool.Pool

	timeOffset         int64
	nextBlockTimestamp uint64
	nextBaseFee        *big.Int
	nextPrevRandao     *types.Hash
	coinbase           types.Address
	blockGasLimit      uint64
	minGasPrice        *big.Int
	randaoCounter      uint64
}

// snapshotStack is the evm_snapshot registry. Reverting to an id drops
// it and every later one.
type snapshotStack struct {
	nextID uint64
	stack  []*sessionSnapshot
}

func (s *snapshotStack) push(snap *sessionSnapshot) uint64 {
	s.nextID++
	snap.id = s.nextID
	s.stack = append(s.stack, snap)
	return snap.id
}

// take removes and returns the snapshot with the given id together
// with all later ones. Returns nil if the id is unknown.
func (s *snapshotStack) take(id uint64) *sessionSnapshot {
	for i, snap := range s.stack {
		if snap.id == id {
			s.stack = s.stack[:i]
			return snap
		}
	}
	return nil
}

func (s *snapshotStack) clear() {
	s.stack = nil
}
