package provider

import (
	"encoding/json"
	"fmt"

	"github.com/devchain-eth/devchain/blockchain"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/rpc"
)

// filterCriteria is the JSON shape of eth_newFilter / eth_getLogs /
// eth_subscribe("logs") options.
type filterCriteria struct {
	FromBlock *rpc.BlockNumber
	ToBlock   *rpc.BlockNumber
	BlockHash *types.Hash
	Addresses []types.Address
	Topics    [][]types.Hash
}

func (c *filterCriteria) UnmarshalJSON(data []byte) error {
	var raw struct {
		FromBlock *rpc.BlockNumber `json:"fromBlock"`
		ToBlock   *rpc.BlockNumber `json:"toBlock"`
		BlockHash *types.Hash      `json:"blockHash"`
		Address   json.RawMessage  `json:"address"`
		Topics    []json.RawMessage `json:"topics"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.FromBlock = raw.FromBlock
	c.ToBlock = raw.ToBlock
	c.BlockHash = raw.BlockHash
	if raw.BlockHash != nil && (raw.FromBlock != nil || raw.ToBlock != nil) {
		return fmt.Errorf("cannot specify both blockHash and a block range")
	}
	if len(raw.Address) > 0 {
		// A single address or an array of them.
		var one types.Address
		if err := json.Unmarshal(raw.Address, &one); err == nil {
			c.Addresses = []types.Address{one}
		} else {
			var many []types.Address
			if err := json.Unmarshal(raw.Address, &many); err != nil {
				return fmt.Errorf("invalid address filter: %w", err)
			}
			c.Addresses = many
		}
	}
	c.Topics = make([][]types.Hash, 0, len(raw.Topics))
	for i, entry := range raw.Topics {
		if len(entry) == 0 || string(entry) == "null" {
			c.Topics = append(c.Topics, nil)
			continue
		}
		var one types.Hash
		if err := json.Unmarshal(entry, &one); err == nil {
			c.Topics = append(c.Topics, []types.Hash{one})
			continue
		}
		var many []types.Hash
		if err := json.Unmarshal(entry, &many); err != nil {
			return fmt.Errorf("invalid topic filter at position %d: %w", i, err)
		}
		c.Topics = append(c.Topics, many)
	}
	return nil
}

// resolve turns tag-relative bounds into concrete block numbers.
func (c *filterCriteria) resolve(head uint64) (from, to uint64) {
	from, to = 0, head
	if c.FromBlock != nil && c.FromBlock.Int64() >= 0 {
		from = uint64(c.FromBlock.Int64())
	}
	if c.ToBlock != nil && c.ToBlock.Int64() >= 0 {
		to = uint64(c.ToBlock.Int64())
	}
	return from, to
}

func (c *filterCriteria) query(head uint64) *blockchain.FilterQuery {
	from, to := c.resolve(head)
	return &blockchain.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: c.Addresses,
		Topics:    c.Topics,
	}
}

type filterKind int

const (
	logFilter filterKind = iota
	blockFilter
	pendingTxFilter
)

// installedFilter buffers changes between eth_getFilterChanges polls.
// Log, block and pending-transaction filters share one id space.
type installedFilter struct {
	id   uint64
	kind filterKind
	crit filterCriteria

	logs   []*types.Log
	hashes []types.Hash
}

// SubscriptionFunc receives pushed events for one eth_subscribe id.
// The payload is a marshalable result object matching the kind:
// *blockResult for newHeads, *logResult for logs, types.Hash for
// newPendingTransactions.
type SubscriptionFunc func(subscriptionID string, payload interface{})

type subscription struct {
	id   uint64
	kind filterKind
	crit filterCriteria
	fn   SubscriptionFunc
}

func (s *subscription) rpcID() string {
	return rpc.EncodeUint64(s.id)
}

// filterSet owns filters and subscriptions of one provider session.
type filterSet struct {
	nextID  uint64
	filters map[uint64]*installedFilter
	subs    map[uint64]*subscription
}

func newFilterSet() *filterSet {
	return &filterSet{
		filters: make(map[uint64]*installedFilter),
		subs:    make(map[uint64]*subscription),
	}
}

func (fs *filterSet) install(kind filterKind, crit filterCriteria) *installedFilter {
	fs.nextID++
	f := &installedFilter{id: fs.nextID, kind: kind, crit: crit}
	fs.filters[f.id] = f
	return f
}

func (fs *filterSet) uninstall(id uint64) bool {
	if _, ok := fs.filters[id]; !ok {
		return false
	}
	delete(fs.filters, id)
	return true
}

func (fs *filterSet) get(id uint64) (*installedFilter, bool) {
	f, ok := fs.filters[id]
	return f, ok
}

func (fs *filterSet) subscribe(kind filterKind, crit filterCriteria, fn SubscriptionFunc) *subscription {
	fs.nextID++
	s := &subscription{id: fs.nextID, kind: kind, crit: crit, fn: fn}
	fs.subs[s.id] = s
	return s
}

func (fs *filterSet) unsubscribe(id uint64) bool {
	if _, ok := fs.subs[id]; !ok {
		return false
	}
	delete(fs.subs, id)
	return true
}

// onNewBlock fans a freshly inserted block and its logs out to block
// filters, matching log filters and subscriptions.
func (fs *filterSet) onNewBlock(block *types.Block, logs []*types.Log) {
	for _, f := range fs.filters {
		switch f.kind {
		case blockFilter:
			f.hashes = append(f.hashes, block.Hash())
		case logFilter:
			f.logs = append(f.logs, matchCriteria(logs, &f.crit)...)
		}
	}
	for _, s := range fs.subs {
		switch s.kind {
		case blockFilter:
			s.fn(s.rpcID(), formatBlock(block, false, false))
		case logFilter:
			for _, l := range matchCriteria(logs, &s.crit) {
				s.fn(s.rpcID(), formatLog(l))
			}
		}
	}
}

// onPendingTransaction fans an admitted transaction hash out.
func (fs *filterSet) onPendingTransaction(hash types.Hash) {
	for _, f := range fs.filters {
		if f.kind == pendingTxFilter {
			f.hashes = append(f.hashes, hash)
		}
	}
	for _, s := range fs.subs {
		if s.kind == pendingTxFilter {
			s.fn(s.rpcID(), hash)
		}
	}
}

// matchCriteria applies address and prefix-topic matching to already
// derived logs.
func matchCriteria(logs []*types.Log, crit *filterCriteria) []*types.Log {
	q := &blockchain.FilterQuery{Addresses: crit.Addresses, Topics: crit.Topics}
	var out []*types.Log
	for _, l := range logs {
		q.FromBlock, q.ToBlock = l.BlockNumber, l.BlockNumber
		out = append(out, blockchain.FilterLogs([]*types.Log{l}, q)...)
	}
	return out
}
