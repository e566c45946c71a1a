package core

import (
	"fmt"
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
)

// ChainConfig determines which protocol rules are active at a given
// block number and timestamp. Pre-merge forks activate by block
// number, post-merge forks by timestamp.
type ChainConfig struct {
	ChainID *big.Int `json:"chainId"`

	HomesteadBlock      *big.Int `json:"homesteadBlock,omitempty"`
	EIP150Block         *big.Int `json:"eip150Block,omitempty"`
	EIP155Block         *big.Int `json:"eip155Block,omitempty"`
	EIP158Block         *big.Int `json:"eip158Block,omitempty"`
	ByzantiumBlock      *big.Int `json:"byzantiumBlock,omitempty"`
	ConstantinopleBlock *big.Int `json:"constantinopleBlock,omitempty"`
	PetersburgBlock     *big.Int `json:"petersburgBlock,omitempty"`
	IstanbulBlock       *big.Int `json:"istanbulBlock,omitempty"`
	MuirGlacierBlock    *big.Int `json:"muirGlacierBlock,omitempty"`
	BerlinBlock         *big.Int `json:"berlinBlock,omitempty"`
	LondonBlock         *big.Int `json:"londonBlock,omitempty"`
	ArrowGlacierBlock   *big.Int `json:"arrowGlacierBlock,omitempty"`
	GrayGlacierBlock    *big.Int `json:"grayGlacierBlock,omitempty"`

	// MergeBlock is the first proof-of-stake block.
	MergeBlock *big.Int `json:"mergeBlock,omitempty"`

	ShanghaiTime *uint64 `json:"shanghaiTime,omitempty"`
	CancunTime   *uint64 `json:"cancunTime,omitempty"`
	PragueTime   *uint64 `json:"pragueTime,omitempty"`

	// Optimism enables the OP stack execution variants: deposit
	// transactions and modified base fee parameters.
	Optimism bool `json:"optimism,omitempty"`

	// BaseFeeParams overrides the default EIP-1559 denominator and
	// elasticity when set. OP chains carry custom values.
	BaseFeeParams *BaseFeeParams `json:"baseFeeParams,omitempty"`
}

// BaseFeeParams are the EIP-1559 adjustment parameters.
type BaseFeeParams struct {
	Denominator uint64 `json:"denominator"`
	Elasticity  uint64 `json:"elasticity"`
}

func isBlockForked(s, head *big.Int) bool {
	if s == nil || head == nil {
		return false
	}
	return s.Cmp(head) <= 0
}

func isTimestampForked(s *uint64, head uint64) bool {
	if s == nil {
		return false
	}
	return *s <= head
}

func (c *ChainConfig) IsHomestead(num *big.Int) bool {
	return isBlockForked(c.HomesteadBlock, num)
}

func (c *ChainConfig) IsEIP150(num *big.Int) bool {
	return isBlockForked(c.EIP150Block, num)
}

func (c *ChainConfig) IsEIP155(num *big.Int) bool {
	return isBlockForked(c.EIP155Block, num)
}

func (c *ChainConfig) IsEIP158(num *big.Int) bool {
	return isBlockForked(c.EIP158Block, num)
}

func (c *ChainConfig) IsByzantium(num *big.Int) bool {
	return isBlockForked(c.ByzantiumBlock, num)
}

func (c *ChainConfig) IsConstantinople(num *big.Int) bool {
	return isBlockForked(c.ConstantinopleBlock, num)
}

func (c *ChainConfig) IsPetersburg(num *big.Int) bool {
	return isBlockForked(c.PetersburgBlock, num)
}

func (c *ChainConfig) IsIstanbul(num *big.Int) bool {
	return isBlockForked(c.IstanbulBlock, num)
}

func (c *ChainConfig) IsMuirGlacier(num *big.Int) bool {
	return isBlockForked(c.MuirGlacierBlock, num)
}

func (c *ChainConfig) IsBerlin(num *big.Int) bool {
	return isBlockForked(c.BerlinBlock, num)
}

func (c *ChainConfig) IsLondon(num *big.Int) bool {
	return isBlockForked(c.LondonBlock, num)
}

func (c *ChainConfig) IsArrowGlacier(num *big.Int) bool {
	return isBlockForked(c.ArrowGlacierBlock, num)
}

func (c *ChainConfig) IsGrayGlacier(num *big.Int) bool {
	return isBlockForked(c.GrayGlacierBlock, num)
}

func (c *ChainConfig) IsMerge(num *big.Int) bool {
	return isBlockForked(c.MergeBlock, num)
}

func (c *ChainConfig) IsShanghai(num *big.Int, time uint64) bool {
	return c.IsMerge(num) && isTimestampForked(c.ShanghaiTime, time)
}

func (c *ChainConfig) IsCancun(num *big.Int, time uint64) bool {
	return c.IsMerge(num) && isTimestampForked(c.CancunTime, time)
}

func (c *ChainConfig) IsPrague(num *big.Int, time uint64) bool {
	return c.IsMerge(num) && isTimestampForked(c.PragueTime, time)
}

// LatestFork names the newest fork active at (num, time), for
// hardhat_metadata and error messages.
func (c *ChainConfig) LatestFork(num *big.Int, time uint64) string {
	switch {
	case c.IsPrague(num, time):
		return "prague"
	case c.IsCancun(num, time):
		return "cancun"
	case c.IsShanghai(num, time):
		return "shanghai"
	case c.IsMerge(num):
		return "merge"
	case c.IsLondon(num):
		return "london"
	case c.IsBerlin(num):
		return "berlin"
	case c.IsIstanbul(num):
		return "istanbul"
	case c.IsByzantium(num):
		return "byzantium"
	default:
		return "frontier"
	}
}

// Rules flattens the config at (num, time) for the EVM.
func (c *ChainConfig) Rules(num *big.Int, time uint64) vm.Rules {
	chainID := c.ChainID
	if chainID == nil {
		chainID = new(big.Int)
	}
	return vm.Rules{
		ChainID:          new(big.Int).Set(chainID),
		IsHomestead:      c.IsHomestead(num),
		IsEIP150:         c.IsEIP150(num),
		IsEIP155:         c.IsEIP155(num),
		IsEIP158:         c.IsEIP158(num),
		IsByzantium:      c.IsByzantium(num),
		IsConstantinople: c.IsConstantinople(num),
		IsPetersburg:     c.IsPetersburg(num),
		IsIstanbul:       c.IsIstanbul(num),
		IsBerlin:         c.IsBerlin(num),
		IsLondon:         c.IsLondon(num),
		IsMerge:          c.IsMerge(num),
		IsShanghai:       c.IsShanghai(num, time),
		IsCancun:         c.IsCancun(num, time),
		IsPrague:         c.IsPrague(num, time),
		IsOptimism:       c.Optimism,
	}
}

// SupportsType reports whether a transaction type is admissible under
// the fork active at (num, time).
func (c *ChainConfig) SupportsType(txType byte, num *big.Int, time uint64) error {
	switch txType {
	case 0x00:
		return nil
	case 0x01:
		if !c.IsBerlin(num) {
			return fmt.Errorf("%w: access list transactions need berlin, chain is at %s",
				types.ErrTxTypeNotSupported, c.LatestFork(num, time))
		}
	case 0x02:
		if !c.IsLondon(num) {
			return fmt.Errorf("%w: dynamic fee transactions need london, chain is at %s",
				types.ErrTxTypeNotSupported, c.LatestFork(num, time))
		}
	case 0x03:
		if !c.IsCancun(num, time) {
			return fmt.Errorf("%w: blob transactions need cancun, chain is at %s",
				types.ErrTxTypeNotSupported, c.LatestFork(num, time))
		}
	case 0x04:
		if !c.IsPrague(num, time) {
			return fmt.Errorf("%w: set code transactions need prague, chain is at %s",
				types.ErrTxTypeNotSupported, c.LatestFork(num, time))
		}
	case 0x7e:
		if !c.Optimism {
			return fmt.Errorf("%w: deposit transactions are only valid on op chains", types.ErrTxTypeNotSupported)
		}
	default:
		return fmt.Errorf("%w: unknown transaction type %d", types.ErrTxTypeNotSupported, txType)
	}
	return nil
}
