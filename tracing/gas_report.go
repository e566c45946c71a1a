package tracing

import (
	"math/big"
	"sort"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
)

// ContractGas is the gas attributed to one contract address.
type ContractGas struct {
	Address types.Address `json:"address"`
	Gas     uint64        `json:"gas"`
	Calls   uint64        `json:"calls"`
}

// GasReporter attributes gas consumption to the contracts that spent
// it, one entry per frame target.
type GasReporter struct {
	usage map[types.Address]*ContractGas

	// frames tracks (address, gas at entry) per open frame so exit can
	// charge the difference.
	frames []gasFrame
}

type gasFrame struct {
	addr types.Address

	// childGas accumulates the gas spent by completed subframes, so the
	// frame's own share is gasUsed - childGas at exit.
	childGas uint64
}

var _ vm.Inspector = (*GasReporter)(nil)

// NewGasReporter returns an empty reporter.
func NewGasReporter() *GasReporter {
	return &GasReporter{usage: make(map[types.Address]*ContractGas)}
}

// Report returns the per-contract totals sorted by gas descending.
func (g *GasReporter) Report() []ContractGas {
	out := make([]ContractGas, 0, len(g.usage))
	for _, entry := range g.usage {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Gas > out[j].Gas })
	return out
}

// Reset clears collected totals.
func (g *GasReporter) Reset() {
	g.usage = make(map[types.Address]*ContractGas)
	g.frames = g.frames[:0]
}

func (g *GasReporter) CaptureStart(from, to types.Address, create bool, input []byte, gas uint64, value *big.Int) {
	g.frames = append(g.frames[:0], gasFrame{addr: to})
	g.touch(to).Calls++
}

func (g *GasReporter) CaptureEnd(output []byte, gasUsed uint64, err error) {
	if len(g.frames) == 0 {
		return
	}
	frame := g.frames[0]
	if gasUsed >= frame.childGas {
		g.touch(frame.addr).Gas += gasUsed - frame.childGas
	}
	g.frames = g.frames[:0]
}

func (g *GasReporter) CaptureEnter(typ vm.OpCode, from, to types.Address, input []byte, gas uint64, value *big.Int) {
	g.frames = append(g.frames, gasFrame{addr: to})
	g.touch(to).Calls++
}

func (g *GasReporter) CaptureExit(output []byte, gasUsed uint64, err error) {
	if len(g.frames) <= 1 {
		return
	}
	frame := g.frames[len(g.frames)-1]
	g.frames = g.frames[:len(g.frames)-1]
	if gasUsed >= frame.childGas {
		g.touch(frame.addr).Gas += gasUsed - frame.childGas
	}
	g.frames[len(g.frames)-1].childGas += gasUsed
}

func (g *GasReporter) CaptureState(pc uint64, op vm.OpCode, gas, cost uint64, scope *vm.ScopeContext, returnData []byte, depth int, err error) {
}

func (g *GasReporter) CaptureFault(pc uint64, op vm.OpCode, gas, cost uint64, scope *vm.ScopeContext, depth int, err error) {
}

func (g *GasReporter) touch(addr types.Address) *ContractGas {
	entry, ok := g.usage[addr]
	if !ok {
		entry = &ContractGas{Address: addr}
		g.usage[addr] = entry
	}
	return entry
}
