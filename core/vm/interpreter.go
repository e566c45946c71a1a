package vm

import "errors"

// errStopToken is an internal signal for a normal halt (STOP, RETURN,
// SELFDESTRUCT). It never escapes the interpreter.
var errStopToken = errors.New("stop token")

// ScopeContext is the per-frame execution scope handed to instructions
// and inspectors.
type ScopeContext struct {
	Memory   *Memory
	Stack    *Stack
	Contract *Contract
}

// Interpreter runs EVM bytecode against a jump table.
type Interpreter struct {
	evm   *EVM
	table *JumpTable

	readOnly   bool
	returnData []byte
}

func newInterpreter(evm *EVM) *Interpreter {
	return &Interpreter{
		evm:   evm,
		table: SelectJumpTable(evm.chainRules),
	}
}

// Run executes the contract's code with the given input until a halt,
// revert or error. The returned bytes are the frame's return data.
func (in *Interpreter) Run(contract *Contract, input []byte, readOnly bool) (ret []byte, err error) {
	in.evm.depth++
	defer func() { in.evm.depth-- }()

	// Static mode sticks for the whole subtree of calls.
	if readOnly && !in.readOnly {
		in.readOnly = true
		defer func() { in.readOnly = false }()
	}

	// Parent frame return data must not leak into this frame.
	in.returnData = nil

	if len(contract.Code) == 0 {
		return nil, nil
	}

	var (
		mem   = newMemory()
		stack = newStack()
		scope = &ScopeContext{
			Memory:   mem,
			Stack:    stack,
			Contract: contract,
		}
		pc     = uint64(0)
		cost   uint64
		insp   = in.evm.Config.Inspector
		logged bool
		res    []byte
	)
	contract.Input = input

	if insp != nil {
		defer func() {
			if err != nil && logged {
				insp.CaptureFault(pc, contract.GetOp(pc), contract.Gas, cost, scope, in.evm.depth, err)
			}
		}()
	}

	for {
		logged = false
		op := contract.GetOp(pc)
		operation := in.table[op]
		cost = operation.constantGas

		// Stack validation.
		if sLen := stack.len(); sLen < operation.minStack {
			return nil, &ErrStackUnderflow{stackLen: sLen, required: operation.minStack}
		} else if sLen > operation.maxStack {
			return nil, &ErrStackOverflow{stackLen: sLen, limit: operation.maxStack}
		}
		if !contract.UseGas(cost) {
			return nil, ErrOutOfGas
		}

		var memorySize uint64
		if operation.memorySize != nil {
			memSize, overflow := operation.memorySize(stack)
			if overflow {
				return nil, ErrGasUintOverflow
			}
			if memorySize, overflow = safeMul(toWordSize(memSize), 32); overflow {
				return nil, ErrGasUintOverflow
			}
		}
		if operation.dynamicGas != nil {
			var dynamicCost uint64
			dynamicCost, err = operation.dynamicGas(in.evm, contract, stack, mem, memorySize)
			cost += dynamicCost
			if err != nil {
				return nil, ErrOutOfGas
			}
			if !contract.UseGas(dynamicCost) {
				return nil, ErrOutOfGas
			}
		}
		if memorySize > 0 {
			mem.Resize(memorySize)
		}

		if insp != nil {
			insp.CaptureState(pc, op, contract.Gas+cost, cost, scope, in.returnData, in.evm.depth, nil)
			logged = true
		}

		res, err = operation.execute(&pc, in, scope)
		if err != nil {
			break
		}
		pc++
	}

	if err == errStopToken {
		err = nil // clear the internal halt marker
	}
	return res, err
}
