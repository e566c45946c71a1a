// Package tracing holds the inspectors composed into the EVM: the call
// tree collector attached to every execution, the EIP-3155 step logger
// behind debug_trace*, the gas reporter, the coverage hit collector and
// the console.log decoder.
package tracing

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
)

// CallFrame is one node of a call tree.
type CallFrame struct {
	Type    string         `json:"type"`
	From    types.Address  `json:"from"`
	To      types.Address  `json:"to"`
	Value   *big.Int       `json:"value,omitempty"`
	Gas     uint64         `json:"gas"`
	GasUsed uint64         `json:"gasUsed"`
	Input   []byte         `json:"input"`
	Output  []byte         `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
	Calls   []*CallFrame   `json:"calls,omitempty"`
	Logs    []*types.Log   `json:"logs,omitempty"`
}

// Reverted reports whether the frame ended in REVERT.
func (f *CallFrame) Reverted() bool {
	return f.Error == vm.ErrExecutionReverted.Error()
}

// TraceCollector builds the call tree of one execution. It is attached
// to every transaction so the response can carry the trace without a
// second run.
type TraceCollector struct {
	root  *CallFrame
	stack []*CallFrame
}

var _ vm.Inspector = (*TraceCollector)(nil)

// NewTraceCollector returns an empty collector.
func NewTraceCollector() *TraceCollector {
	return &TraceCollector{}
}

// Trace returns the collected tree, nil before the first execution.
func (t *TraceCollector) Trace() *CallFrame { return t.root }

// Reset discards collected state so the collector can serve the next
// transaction.
func (t *TraceCollector) Reset() {
	t.root = nil
	t.stack = t.stack[:0]
}

func (t *TraceCollector) CaptureStart(from, to types.Address, create bool, input []byte, gas uint64, value *big.Int) {
	typ := "CALL"
	if create {
		typ = "CREATE"
	}
	t.root = &CallFrame{
		Type:  typ,
		From:  from,
		To:    to,
		Value: value,
		Gas:   gas,
		Input: types.CopyBytes(input),
	}
	t.stack = append(t.stack[:0], t.root)
}

func (t *TraceCollector) CaptureEnd(output []byte, gasUsed uint64, err error) {
	if t.root == nil {
		return
	}
	t.root.GasUsed = gasUsed
	t.root.Output = types.CopyBytes(output)
	if err != nil {
		t.root.Error = err.Error()
	}
	t.stack = t.stack[:0]
}

func (t *TraceCollector) CaptureEnter(typ vm.OpCode, from, to types.Address, input []byte, gas uint64, value *big.Int) {
	frame := &CallFrame{
		Type:  typ.String(),
		From:  from,
		To:    to,
		Value: value,
		Gas:   gas,
		Input: types.CopyBytes(input),
	}
	if parent := t.current(); parent != nil {
		parent.Calls = append(parent.Calls, frame)
	}
	t.stack = append(t.stack, frame)
}

func (t *TraceCollector) CaptureExit(output []byte, gasUsed uint64, err error) {
	frame := t.current()
	if frame == nil || len(t.stack) == 1 {
		// The root frame is closed by CaptureEnd.
		return
	}
	frame.GasUsed = gasUsed
	frame.Output = types.CopyBytes(output)
	if err != nil {
		frame.Error = err.Error()
	}
	t.stack = t.stack[:len(t.stack)-1]
}

func (t *TraceCollector) CaptureState(pc uint64, op vm.OpCode, gas, cost uint64, scope *vm.ScopeContext, returnData []byte, depth int, err error) {
	// Log opcodes attach their logs to the enclosing frame for decoded
	// trace rendering.
	if op < vm.LOG0 || op > vm.LOG4 {
		return
	}
	frame := t.current()
	if frame == nil || err != nil {
		return
	}
	topicCount := int(op - vm.LOG0)
	stack := scope.Stack.Data()
	if len(stack) < 2+topicCount {
		return
	}
	offset := stack[len(stack)-1]
	size := stack[len(stack)-2]
	entry := &types.Log{Address: scope.Contract.Address}
	for i := 0; i < topicCount; i++ {
		entry.Topics = append(entry.Topics, types.Hash(stack[len(stack)-3-i].Bytes32()))
	}
	if size.Uint64() > 0 && offset.Uint64()+size.Uint64() <= uint64(scope.Memory.Len()) {
		entry.Data = scope.Memory.GetCopy(offset.Uint64(), size.Uint64())
	}
	frame.Logs = append(frame.Logs, entry)
}

func (t *TraceCollector) CaptureFault(pc uint64, op vm.OpCode, gas, cost uint64, scope *vm.ScopeContext, depth int, err error) {
}

func (t *TraceCollector) current() *CallFrame {
	if len(t.stack) == 0 {
		return nil
	}
	return t.stack[len(t.stack)-1]
}

// Solidity revert selectors.
var (
	errorSelector = []byte{0x08, 0xc3, 0x79, 0xa0} // Error(string)
	panicSelector = []byte{0x4e, 0x48, 0x7b, 0x71} // Panic(uint256)
)

// DecodeRevertReason extracts a human-readable reason from revert
// return data, recognizing Error(string) and Panic(uint256).
func DecodeRevertReason(data []byte) (string, bool) {
	if len(data) < 4 {
		return "", false
	}
	switch {
	case bytes.Equal(data[:4], errorSelector):
		s, err := unpackString(data[4:])
		if err != nil {
			return "", false
		}
		return s, true
	case bytes.Equal(data[:4], panicSelector):
		if len(data) < 4+32 {
			return "", false
		}
		code := new(big.Int).SetBytes(data[4 : 4+32])
		return "panic: " + panicReason(code.Uint64()), true
	}
	return "", false
}

func panicReason(code uint64) string {
	switch code {
	case 0x01:
		return "assertion failed (0x01)"
	case 0x11:
		return "arithmetic overflow or underflow (0x11)"
	case 0x12:
		return "division or modulo by zero (0x12)"
	case 0x21:
		return "invalid enum value (0x21)"
	case 0x22:
		return "invalid storage byte array access (0x22)"
	case 0x31:
		return "pop on empty array (0x31)"
	case 0x32:
		return "array index out of bounds (0x32)"
	case 0x41:
		return "out of memory (0x41)"
	case 0x51:
		return "call to uninitialized function (0x51)"
	default:
		return "unknown panic code"
	}
}

var errBadABIEncoding = errors.New("tracing: malformed ABI encoding")

// unpackString decodes a single ABI-encoded dynamic string.
func unpackString(data []byte) (string, error) {
	if len(data) < 64 {
		return "", errBadABIEncoding
	}
	offset := new(big.Int).SetBytes(data[:32])
	if !offset.IsUint64() || offset.Uint64()+32 > uint64(len(data)) {
		return "", errBadABIEncoding
	}
	o := offset.Uint64()
	length := new(big.Int).SetBytes(data[o : o+32])
	if !length.IsUint64() || o+32+length.Uint64() > uint64(len(data)) {
		return "", errBadABIEncoding
	}
	return string(data[o+32 : o+32+length.Uint64()]), nil
}
