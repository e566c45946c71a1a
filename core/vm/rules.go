package vm

import "math/big"

// Rules is the flattened fork view the interpreter executes under,
// derived from the chain configuration at a (block, timestamp) point.
type Rules struct {
	ChainID *big.Int

	IsHomestead      bool
	IsEIP150         bool
	IsEIP155         bool
	IsEIP158         bool
	IsByzantium      bool
	IsConstantinople bool
	IsPetersburg     bool
	IsIstanbul       bool
	IsBerlin         bool
	IsLondon         bool
	IsMerge          bool
	IsShanghai       bool
	IsCancun         bool
	IsPrague         bool

	IsOptimism bool
}
