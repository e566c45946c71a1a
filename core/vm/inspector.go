package vm

import (
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
)

// Inspector observes EVM execution. All hooks are invoked on the
// provider goroutine holding the execution lock.
type Inspector interface {
	// CaptureStart is called once when the outermost frame begins.
	CaptureStart(from, to types.Address, create bool, input []byte, gas uint64, value *big.Int)
	// CaptureEnd is called once when the outermost frame ends.
	CaptureEnd(output []byte, gasUsed uint64, err error)

	// CaptureEnter is called when a nested call or create frame begins.
	CaptureEnter(typ OpCode, from, to types.Address, input []byte, gas uint64, value *big.Int)
	// CaptureExit is called when a nested frame ends.
	CaptureExit(output []byte, gasUsed uint64, err error)

	// CaptureState is called before each executed opcode.
	CaptureState(pc uint64, op OpCode, gas, cost uint64, scope *ScopeContext, returnData []byte, depth int, err error)
	// CaptureFault is called when an opcode faults after CaptureState.
	CaptureFault(pc uint64, op OpCode, gas, cost uint64, scope *ScopeContext, depth int, err error)
}

// InspectorStack fans every hook out to an ordered list of inspectors.
type InspectorStack struct {
	inspectors []Inspector
}

// NewInspectorStack combines inspectors into one. Nil entries are
// skipped.
func NewInspectorStack(inspectors ...Inspector) *InspectorStack {
	s := &InspectorStack{}
	for _, insp := range inspectors {
		if insp != nil {
			s.inspectors = append(s.inspectors, insp)
		}
	}
	return s
}

// Empty reports whether the stack holds no inspectors.
func (s *InspectorStack) Empty() bool { return len(s.inspectors) == 0 }

func (s *InspectorStack) CaptureStart(from, to types.Address, create bool, input []byte, gas uint64, value *big.Int) {
	for _, insp := range s.inspectors {
		insp.CaptureStart(from, to, create, input, gas, value)
	}
}

func (s *InspectorStack) CaptureEnd(output []byte, gasUsed uint64, err error) {
	for _, insp := range s.inspectors {
		insp.CaptureEnd(output, gasUsed, err)
	}
}

func (s *InspectorStack) CaptureEnter(typ OpCode, from, to types.Address, input []byte, gas uint64, value *big.Int) {
	for _, insp := range s.inspectors {
		insp.CaptureEnter(typ, from, to, input, gas, value)
	}
}

func (s *InspectorStack) CaptureExit(output []byte, gasUsed uint64, err error) {
	for _, insp := range s.inspectors {
		insp.CaptureExit(output, gasUsed, err)
	}
}

func (s *InspectorStack) CaptureState(pc uint64, op OpCode, gas, cost uint64, scope *ScopeContext, returnData []byte, depth int, err error) {
	for _, insp := range s.inspectors {
		insp.CaptureState(pc, op, gas, cost, scope, returnData, depth, err)
	}
}

func (s *InspectorStack) CaptureFault(pc uint64, op OpCode, gas, cost uint64, scope *ScopeContext, depth int, err error) {
	for _, insp := range s.inspectors {
		insp.CaptureFault(pc, op, gas, cost, scope, depth, err)
	}
}
