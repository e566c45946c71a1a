package tracing

import (
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
)

// CoverageHit is one executed program counter in one contract.
type CoverageHit struct {
	Address types.Address
	Pc      uint64
}

// CoverageCollector records the set of executed (contract, pc) pairs
// with hit counts.
type CoverageCollector struct {
	hits map[CoverageHit]uint64
}

var _ vm.Inspector = (*CoverageCollector)(nil)

// NewCoverageCollector returns an empty collector.
func NewCoverageCollector() *CoverageCollector {
	return &CoverageCollector{hits: make(map[CoverageHit]uint64)}
}

// Hits returns the collected counters.
func (c *CoverageCollector) Hits() map[CoverageHit]uint64 {
	out := make(map[CoverageHit]uint64, len(c.hits))
	for k, v := range c.hits {
		out[k] = v
	}
	return out
}

// Reset clears collected hits.
func (c *CoverageCollector) Reset() {
	c.hits = make(map[CoverageHit]uint64)
}

func (c *CoverageCollector) CaptureStart(from, to types.Address, create bool, input []byte, gas uint64, value *big.Int) {
}

func (c *CoverageCollector) CaptureEnd(output []byte, gasUsed uint64, err error) {}

func (c *CoverageCollector) CaptureEnter(typ vm.OpCode, from, to types.Address, input []byte, gas uint64, value *big.Int) {
}

func (c *CoverageCollector) CaptureExit(output []byte, gasUsed uint64, err error) {}

func (c *CoverageCollector) CaptureState(pc uint64, op vm.OpCode, gas, cost uint64, scope *vm.ScopeContext, returnData []byte, depth int, err error) {
	if err != nil {
		return
	}
	c.hits[CoverageHit{Address: scope.Contract.Address, Pc: pc}]++
}

func (c *CoverageCollector) CaptureFault(pc uint64, op vm.OpCode, gas, cost uint64, scope *vm.ScopeContext, depth int, err error) {
}
