package rpc

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/devchain-eth/devchain/core/types"
)

// BlockNumber is a block height or one of the named tags.
type BlockNumber int64

const (
	SafeBlockNumber      = BlockNumber(-4)
	FinalizedBlockNumber = BlockNumber(-3)
	PendingBlockNumber   = BlockNumber(-2)
	LatestBlockNumber    = BlockNumber(-1)
	EarliestBlockNumber  = BlockNumber(0)
)

func (bn *BlockNumber) UnmarshalJSON(data []byte) error {
	var input string
	if err := json.Unmarshal(data, &input); err != nil {
		return err
	}
	switch input {
	case "earliest":
		*bn = EarliestBlockNumber
		return nil
	case "latest":
		*bn = LatestBlockNumber
		return nil
	case "pending":
		*bn = PendingBlockNumber
		return nil
	case "finalized":
		*bn = FinalizedBlockNumber
		return nil
	case "safe":
		*bn = SafeBlockNumber
		return nil
	}
	n, err := DecodeUint64(input)
	if err != nil {
		return err
	}
	if n > math.MaxInt64 {
		return fmt.Errorf("block number larger than int64")
	}
	*bn = BlockNumber(n)
	return nil
}

func (bn BlockNumber) MarshalJSON() ([]byte, error) {
	switch bn {
	case SafeBlockNumber:
		return json.Marshal("safe")
	case FinalizedBlockNumber:
		return json.Marshal("finalized")
	case PendingBlockNumber:
		return json.Marshal("pending")
	case LatestBlockNumber:
		return json.Marshal("latest")
	default:
		return json.Marshal(EncodeUint64(uint64(bn)))
	}
}

// Int64 returns the raw value; negative for tags.
func (bn BlockNumber) Int64() int64 { return int64(bn) }

// BlockNumberOrHash selects a block by number, tag or hash.
type BlockNumberOrHash struct {
	BlockNumber      *BlockNumber `json:"blockNumber,omitempty"`
	BlockHash        *types.Hash  `json:"blockHash,omitempty"`
	RequireCanonical bool         `json:"requireCanonical,omitempty"`
}

func (bnh *BlockNumberOrHash) UnmarshalJSON(data []byte) error {
	type alias BlockNumberOrHash
	var obj alias
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.BlockNumber != nil && obj.BlockHash != nil {
			return fmt.Errorf("cannot specify both blockNumber and blockHash")
		}
		*bnh = BlockNumberOrHash(obj)
		return nil
	}
	var input string
	if err := json.Unmarshal(data, &input); err != nil {
		return err
	}
	// A 32-byte hex string is a block hash, anything else a number or
	// tag.
	if len(input) == 66 {
		var h types.Hash
		if err := h.UnmarshalText([]byte(input)); err != nil {
			return err
		}
		bnh.BlockHash = &h
		return nil
	}
	var bn BlockNumber
	if err := bn.UnmarshalJSON(data); err != nil {
		return err
	}
	bnh.BlockNumber = &bn
	return nil
}

// Number returns the block number if one is set.
func (bnh *BlockNumberOrHash) Number() (BlockNumber, bool) {
	if bnh.BlockNumber != nil {
		return *bnh.BlockNumber, true
	}
	return 0, false
}

// Hash returns the block hash if one is set.
func (bnh *BlockNumberOrHash) Hash() (types.Hash, bool) {
	if bnh.BlockHash != nil {
		return *bnh.BlockHash, true
	}
	return types.Hash{}, false
}

// BlockNumberOrHashWithNumber wraps a plain number.
func BlockNumberOrHashWithNumber(bn BlockNumber) BlockNumberOrHash {
	return BlockNumberOrHash{BlockNumber: &bn}
}
