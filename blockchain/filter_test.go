package blockchain

import (
	"testing"

	"github.com/devchain-eth/devchain/core/types"
)

var (
	transferTopic = types.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	approvalTopic = types.HexToHash("0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925")
	tokenA        = types.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB        = types.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	holder        = types.HexToHash("0x000000000000000000000000f39fd6e51aad88f6f4ce6ab8827279cfffb92266")
)

func sampleLogs() []*types.Log {
	return []*types.Log{
		{BlockNumber: 1, Address: tokenA, Topics: []types.Hash{transferTopic, holder}},
		{BlockNumber: 2, Address: tokenB, Topics: []types.Hash{transferTopic}},
		{BlockNumber: 3, Address: tokenA, Topics: []types.Hash{approvalTopic, holder}},
		{BlockNumber: 4, Address: tokenB, Topics: []types.Hash{}},
	}
}

func TestFilterLogs(t *testing.T) {
	logs := sampleLogs()
	tests := []struct {
		name  string
		query FilterQuery
		want  []uint64 // block numbers of expected logs
	}{
		{
			name:  "full range no predicate",
			query: FilterQuery{FromBlock: 0, ToBlock: 10},
			want:  []uint64{1, 2, 3, 4},
		},
		{
			name:  "block range",
			query: FilterQuery{FromBlock: 2, ToBlock: 3},
			want:  []uint64{2, 3},
		},
		{
			name:  "single address",
			query: FilterQuery{FromBlock: 0, ToBlock: 10, Addresses: []types.Address{tokenA}},
			want:  []uint64{1, 3},
		},
		{
			name:  "multiple addresses",
			query: FilterQuery{FromBlock: 0, ToBlock: 10, Addresses: []types.Address{tokenA, tokenB}},
			want:  []uint64{1, 2, 3, 4},
		},
		{
			name:  "first topic",
			query: FilterQuery{FromBlock: 0, ToBlock: 10, Topics: [][]types.Hash{{transferTopic}}},
			want:  []uint64{1, 2},
		},
		{
			name:  "topic alternatives",
			query: FilterQuery{FromBlock: 0, ToBlock: 10, Topics: [][]types.Hash{{transferTopic, approvalTopic}}},
			want:  []uint64{1, 2, 3},
		},
		{
			name:  "wildcard first position",
			query: FilterQuery{FromBlock: 0, ToBlock: 10, Topics: [][]types.Hash{{}, {holder}}},
			want:  []uint64{1, 3},
		},
		{
			name:  "positions beyond log topics never match",
			query: FilterQuery{FromBlock: 0, ToBlock: 10, Topics: [][]types.Hash{{transferTopic}, {holder}, {holder}}},
			want:  nil,
		},
		{
			name:  "address and topic conjunction",
			query: FilterQuery{FromBlock: 0, ToBlock: 10, Addresses: []types.Address{tokenB}, Topics: [][]types.Hash{{transferTopic}}},
			want:  []uint64{2},
		},
	}
	for _, tt := range tests {
		got := FilterLogs(logs, &tt.query)
		if len(got) != len(tt.want) {
			t.Errorf("%s: %d logs, want %d", tt.name, len(got), len(tt.want))
			continue
		}
		for i, l := range got {
			if l.BlockNumber != tt.want[i] {
				t.Errorf("%s: log %d from block %d, want %d", tt.name, i, l.BlockNumber, tt.want[i])
			}
		}
	}
}

func TestFilterBloomNeverFalseNegative(t *testing.T) {
	// Any log matching the exact predicate must also pass the bloom
	// prefilter built from it.
	logs := sampleLogs()
	queries := []FilterQuery{
		{FromBlock: 0, ToBlock: 10, Addresses: []types.Address{tokenA}},
		{FromBlock: 0, ToBlock: 10, Topics: [][]types.Hash{{transferTopic}}},
		{FromBlock: 0, ToBlock: 10, Addresses: []types.Address{tokenB}, Topics: [][]types.Hash{{transferTopic}, {holder}}},
	}
	for qi, q := range queries {
		for _, l := range FilterLogs(logs, &q) {
			bloom := types.LogsBloom([]*types.Log{l})
			if !q.matchBloom(bloom) {
				t.Errorf("query %d: bloom prefilter rejects a matching log in block %d", qi, l.BlockNumber)
			}
		}
	}
}
