package tracing

import (
	"encoding/hex"
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
	"github.com/devchain-eth/devchain/rpc"
)

// StructLogConfig selects what each EIP-3155 step record carries.
type StructLogConfig struct {
	EnableMemory     bool
	DisableStack     bool
	DisableStorage   bool
	EnableReturnData bool

	// Limit caps the number of recorded steps, 0 for unlimited.
	Limit int
}

// StructLog is one executed opcode in EIP-3155 shape.
type StructLog struct {
	Pc         uint64            `json:"pc"`
	Op         string            `json:"op"`
	Gas        rpc.Uint64        `json:"gas"`
	GasCost    rpc.Uint64        `json:"gasCost"`
	Depth      int               `json:"depth"`
	Error      string            `json:"error,omitempty"`
	Stack      []string          `json:"stack,omitempty"`
	Memory     []string          `json:"memory,omitempty"`
	MemSize    int               `json:"memSize"`
	Storage    map[string]string `json:"storage,omitempty"`
	RefundCounter uint64         `json:"refund,omitempty"`
	ReturnData string            `json:"returnData,omitempty"`
}

// ExecutionTrace is the debug_traceTransaction result shape.
type ExecutionTrace struct {
	Gas         uint64      `json:"gas"`
	Failed      bool        `json:"failed"`
	ReturnValue string      `json:"returnValue"`
	StructLogs  []StructLog `json:"structLogs"`
}

// StructLogger records every executed opcode in EIP-3155 form.
type StructLogger struct {
	cfg StructLogConfig

	// StateDB, when set, supplies refund counters and storage reads.
	StateDB vm.StateDB

	logs     []StructLog
	storage  map[types.Address]map[string]string
	output   []byte
	gasUsed  uint64
	err      error
	interrupted bool
}

var _ vm.Inspector = (*StructLogger)(nil)

// NewStructLogger returns a logger with the given config.
func NewStructLogger(cfg StructLogConfig) *StructLogger {
	return &StructLogger{
		cfg:     cfg,
		storage: make(map[types.Address]map[string]string),
	}
}

// Result assembles the trace after execution.
func (l *StructLogger) Result() *ExecutionTrace {
	return &ExecutionTrace{
		Gas:         l.gasUsed,
		Failed:      l.err != nil,
		ReturnValue: hex.EncodeToString(l.output),
		StructLogs:  l.logs,
	}
}

func (l *StructLogger) CaptureStart(from, to types.Address, create bool, input []byte, gas uint64, value *big.Int) {
}

func (l *StructLogger) CaptureEnd(output []byte, gasUsed uint64, err error) {
	l.output = types.CopyBytes(output)
	l.gasUsed = gasUsed
	l.err = err
}

func (l *StructLogger) CaptureEnter(typ vm.OpCode, from, to types.Address, input []byte, gas uint64, value *big.Int) {
}

func (l *StructLogger) CaptureExit(output []byte, gasUsed uint64, err error) {}

func (l *StructLogger) CaptureState(pc uint64, op vm.OpCode, gas, cost uint64, scope *vm.ScopeContext, returnData []byte, depth int, err error) {
	if l.interrupted {
		return
	}
	if l.cfg.Limit > 0 && len(l.logs) >= l.cfg.Limit {
		l.interrupted = true
		return
	}
	entry := StructLog{
		Pc:      pc,
		Op:      op.String(),
		Gas:     rpc.Uint64(gas),
		GasCost: rpc.Uint64(cost),
		Depth:   depth,
		MemSize: scope.Memory.Len(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if !l.cfg.DisableStack {
		data := scope.Stack.Data()
		entry.Stack = make([]string, len(data))
		for i := range data {
			entry.Stack[i] = data[i].Hex()
		}
	}
	if l.cfg.EnableMemory {
		entry.Memory = formatMemory(scope.Memory)
	}
	if l.cfg.EnableReturnData && len(returnData) > 0 {
		entry.ReturnData = "0x" + hex.EncodeToString(returnData)
	}
	if l.StateDB != nil {
		entry.RefundCounter = l.StateDB.GetRefund()
		if !l.cfg.DisableStorage {
			entry.Storage = l.captureStorage(op, scope)
		}
	}
	l.logs = append(l.logs, entry)
}

// captureStorage accumulates the storage slots touched by SLOAD and
// SSTORE per contract, reported cumulatively like geth does.
func (l *StructLogger) captureStorage(op vm.OpCode, scope *vm.ScopeContext) map[string]string {
	addr := scope.Contract.Address
	slots := l.storage[addr]
	if slots == nil {
		slots = make(map[string]string)
		l.storage[addr] = slots
	}
	stack := scope.Stack.Data()
	switch op {
	case vm.SLOAD:
		if len(stack) >= 1 {
			key := types.Hash(stack[len(stack)-1].Bytes32())
			value := l.StateDB.GetState(addr, key)
			slots[hex.EncodeToString(key[:])] = hex.EncodeToString(value[:])
		}
	case vm.SSTORE:
		if len(stack) >= 2 {
			key := types.Hash(stack[len(stack)-1].Bytes32())
			value := types.Hash(stack[len(stack)-2].Bytes32())
			slots[hex.EncodeToString(key[:])] = hex.EncodeToString(value[:])
		}
	}
	out := make(map[string]string, len(slots))
	for k, v := range slots {
		out[k] = v
	}
	return out
}

func (l *StructLogger) CaptureFault(pc uint64, op vm.OpCode, gas, cost uint64, scope *vm.ScopeContext, depth int, err error) {
	if len(l.logs) == 0 {
		return
	}
	last := &l.logs[len(l.logs)-1]
	if last.Error == "" && err != nil {
		last.Error = err.Error()
	}
}

func formatMemory(mem *vm.Memory) []string {
	words := make([]string, 0, mem.Len()/32)
	data := mem.GetCopy(0, uint64(mem.Len()))
	for i := 0; i+32 <= len(data); i += 32 {
		words = append(words, hex.EncodeToString(data[i:i+32]))
	}
	return words
}
