package blockchain

import "github.com/devchain-eth/devchain/core/types"

// FilterQuery selects logs by block range, emitting address and topic
// values. Topics match positionally: an empty set at position i is a
// wildcard, otherwise log.topics[i] must be one of the listed values.
type FilterQuery struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []types.Address
	Topics    [][]types.Hash
}

// matchBloom reports whether a block with this bloom can possibly hold
// a matching log. False positives are expected; false negatives not.
func (q *FilterQuery) matchBloom(bloom types.Bloom) bool {
	if len(q.Addresses) > 0 {
		found := false
		for _, addr := range q.Addresses {
			if bloom.Test(addr.Bytes()) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, alternatives := range q.Topics {
		if len(alternatives) == 0 {
			continue
		}
		found := false
		for _, topic := range alternatives {
			if bloom.Test(topic.Bytes()) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// matchLog applies the exact address and prefix-topic predicate.
func (q *FilterQuery) matchLog(l *types.Log) bool {
	if l.BlockNumber < q.FromBlock || l.BlockNumber > q.ToBlock {
		return false
	}
	if len(q.Addresses) > 0 {
		found := false
		for _, addr := range q.Addresses {
			if l.Address == addr {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(q.Topics) > len(l.Topics) {
		return false
	}
	for i, alternatives := range q.Topics {
		if len(alternatives) == 0 {
			continue
		}
		found := false
		for _, topic := range alternatives {
			if l.Topics[i] == topic {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FilterLogs returns the subset of logs matching the query.
func FilterLogs(logs []*types.Log, q *FilterQuery) []*types.Log {
	var out []*types.Log
	for _, l := range logs {
		if q.matchLog(l) {
			out = append(out, l)
		}
	}
	return out
}
