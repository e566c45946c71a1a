package mempool

import (
	"container/heap"
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
)

// txHead is one account's next executable transaction.
type txHead struct {
	tx      *types.Transaction
	tip     *big.Int
	arrival uint64
	from    types.Address
}

type headHeap []txHead

func (h headHeap) Len() int { return len(h) }

func (h headHeap) Less(i, j int) bool {
	// Highest effective tip first, earliest arrival on ties.
	switch h[i].tip.Cmp(h[j].tip) {
	case 1:
		return true
	case -1:
		return false
	}
	return h[i].arrival < h[j].arrival
}

func (h headHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *headHeap) Push(x interface{}) { *h = append(*h, x.(txHead)) }

func (h *headHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PendingSet iterates the executable transactions in mining order:
// nonce ascending per account, effective tip descending across
// accounts, arrival order breaking ties.
type PendingSet struct {
	byAccount map[types.Address]types.Transactions
	arrivals  map[types.Hash]uint64
	heads     headHeap
	baseFee   *big.Int
}

// OrderedPending builds the mining iterator over the pending bucket.
// Transactions whose fee cap is below baseFee are excluded together
// with their account's higher nonces.
func (p *Pool) OrderedPending(baseFee *big.Int) *PendingSet {
	p.mu.Lock()
	defer p.mu.Unlock()

	set := &PendingSet{
		byAccount: make(map[types.Address]types.Transactions),
		arrivals:  make(map[types.Hash]uint64),
		baseFee:   baseFee,
	}
	for from, list := range p.pending {
		txs := list.Flatten()
		cut := len(txs)
		for i, tx := range txs {
			if baseFee != nil && tx.GasFeeCap().Cmp(baseFee) < 0 {
				cut = i
				break
			}
			set.arrivals[tx.Hash()] = p.arrival[tx.Hash()]
		}
		if cut == 0 {
			continue
		}
		set.byAccount[from] = append(types.Transactions(nil), txs[:cut]...)
	}
	for from := range set.byAccount {
		set.pushHead(from)
	}
	heap.Init(&set.heads)
	return set
}

func (s *PendingSet) pushHead(from types.Address) {
	txs := s.byAccount[from]
	if len(txs) == 0 {
		delete(s.byAccount, from)
		return
	}
	tx := txs[0]
	s.heads = append(s.heads, txHead{
		tx:      tx,
		tip:     effectiveTip(tx, s.baseFee),
		arrival: s.arrivals[tx.Hash()],
		from:    from,
	})
}

func effectiveTip(tx *types.Transaction, baseFee *big.Int) *big.Int {
	tip, err := tx.EffectiveGasTip(baseFee)
	if err != nil {
		return new(big.Int)
	}
	return tip
}

// Peek returns the best transaction without consuming it.
func (s *PendingSet) Peek() *types.Transaction {
	if len(s.heads) == 0 {
		return nil
	}
	return s.heads[0].tx
}

// Shift consumes the best transaction and advances its account.
func (s *PendingSet) Shift() {
	if len(s.heads) == 0 {
		return
	}
	from := s.heads[0].from
	txs := s.byAccount[from]
	if len(txs) > 1 {
		s.byAccount[from] = txs[1:]
		next := txs[1]
		s.heads[0] = txHead{
			tx:      next,
			tip:     effectiveTip(next, s.baseFee),
			arrival: s.arrivals[next.Hash()],
			from:    from,
		}
		heap.Fix(&s.heads, 0)
		return
	}
	delete(s.byAccount, from)
	heap.Pop(&s.heads)
}

// Pop drops the best transaction and the rest of its account, used
// when an account's head cannot be included.
func (s *PendingSet) Pop() {
	if len(s.heads) == 0 {
		return
	}
	delete(s.byAccount, s.heads[0].from)
	heap.Pop(&s.heads)
}
