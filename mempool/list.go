package mempool

import (
	"sort"

	"github.com/devchain-eth/devchain/core/types"
)

// txList holds one account's transactions indexed by nonce.
type txList struct {
	items map[uint64]*types.Transaction
	cache types.Transactions // nonce-sorted, rebuilt lazily
}

func newTxList() *txList {
	return &txList{items: make(map[uint64]*types.Transaction)}
}

func (l *txList) Len() int { return len(l.items) }

func (l *txList) Get(nonce uint64) *types.Transaction {
	return l.items[nonce]
}

func (l *txList) Put(tx *types.Transaction) {
	l.items[tx.Nonce()] = tx
	l.cache = nil
}

func (l *txList) Remove(nonce uint64) bool {
	if _, ok := l.items[nonce]; !ok {
		return false
	}
	delete(l.items, nonce)
	l.cache = nil
	return true
}

// Flatten returns the transactions sorted by nonce.
func (l *txList) Flatten() types.Transactions {
	if l.cache == nil {
		l.cache = make(types.Transactions, 0, len(l.items))
		for _, tx := range l.items {
			l.cache = append(l.cache, tx)
		}
		sort.Slice(l.cache, func(i, j int) bool {
			return l.cache[i].Nonce() < l.cache[j].Nonce()
		})
	}
	return l.cache
}

// Forward removes every transaction with nonce below threshold and
// returns them.
func (l *txList) Forward(threshold uint64) types.Transactions {
	var removed types.Transactions
	for nonce, tx := range l.items {
		if nonce < threshold {
			removed = append(removed, tx)
			delete(l.items, nonce)
		}
	}
	if removed != nil {
		l.cache = nil
	}
	return removed
}

// Ready returns the contiguous run starting exactly at start.
func (l *txList) Ready(start uint64) types.Transactions {
	var ready types.Transactions
	for nonce := start; ; nonce++ {
		tx, ok := l.items[nonce]
		if !ok {
			break
		}
		ready = append(ready, tx)
	}
	return ready
}

func (l *txList) copy() *txList {
	cpy := newTxList()
	for nonce, tx := range l.items {
		cpy.items[nonce] = tx
	}
	return cpy
}
