package vm

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/crypto"
)

// ConsoleAddress is the well-known console.log endpoint. Calls to it
// are recorded and always succeed without executing code.
var ConsoleAddress = types.HexToAddress("0x000000000000000000636F6e736F6c652e6c6f67")

type (
	// CanTransferFunc checks the sender has enough balance.
	CanTransferFunc func(StateDB, types.Address, *big.Int) bool
	// TransferFunc moves value between accounts.
	TransferFunc func(StateDB, types.Address, types.Address, *big.Int)
	// GetHashFunc resolves a historical block hash by number.
	GetHashFunc func(uint64) types.Hash
)

// BlockContext carries the block-level values visible to contracts.
type BlockContext struct {
	CanTransfer CanTransferFunc
	Transfer    TransferFunc
	GetHash     GetHashFunc

	Coinbase    types.Address
	GasLimit    uint64
	BlockNumber *big.Int
	Time        uint64
	Difficulty  *big.Int
	BaseFee     *big.Int
	BlobBaseFee *big.Int
	Random      *types.Hash
}

// TxContext carries the transaction-level values visible to contracts.
type TxContext struct {
	Origin     types.Address
	GasPrice   *big.Int
	BlobHashes []types.Hash
}

// CallOverrideResult is what a call override returns in place of
// executing the target's code.
type CallOverrideResult struct {
	Output       []byte
	ShouldRevert bool
}

// CallOverrideFunc intercepts message calls. A nil result means the
// call proceeds normally.
type CallOverrideFunc func(to types.Address, input []byte) *CallOverrideResult

// Config holds optional EVM behavior switches.
type Config struct {
	Inspector Inspector

	// NoBaseFee disables base fee checks for gas-free eth_call style
	// execution.
	NoBaseFee bool

	// ExtraPrecompiles are installed on top of the fork's set and win
	// on address collision.
	ExtraPrecompiles map[types.Address]PrecompiledContract

	// CallOverride, when set, is consulted before every message call.
	CallOverride CallOverrideFunc

	// ConsoleSink receives the calldata of every call to the console
	// address.
	ConsoleSink func(input []byte)
}

// EVM executes messages against a StateDB under one fork rule set.
// It is not safe for concurrent use.
type EVM struct {
	Context BlockContext
	TxContext
	StateDB StateDB

	Config Config

	chainRules  Rules
	depth       int
	interpreter *Interpreter
	precompiles map[types.Address]PrecompiledContract

	// callGasTemp carries the 63/64-capped gas from the gas step to
	// the call instruction.
	callGasTemp uint64
}

// NewEVM builds an EVM for one transaction.
func NewEVM(blockCtx BlockContext, txCtx TxContext, statedb StateDB, rules Rules, config Config) *EVM {
	evm := &EVM{
		Context:     blockCtx,
		TxContext:   txCtx,
		StateDB:     statedb,
		Config:      config,
		chainRules:  rules,
		precompiles: activePrecompiles(rules),
	}
	for addr, p := range config.ExtraPrecompiles {
		evm.precompiles[addr] = p
	}
	evm.interpreter = newInterpreter(evm)
	return evm
}

// ChainRules returns the fork rules this EVM executes under.
func (evm *EVM) ChainRules() Rules { return evm.chainRules }

// Depth returns the current call depth.
func (evm *EVM) Depth() int { return evm.depth }

// SetTxContext swaps the transaction context for the next message.
func (evm *EVM) SetTxContext(txCtx TxContext) {
	evm.TxContext = txCtx
}

func (evm *EVM) precompile(addr types.Address) (PrecompiledContract, bool) {
	p, ok := evm.precompiles[addr]
	return p, ok
}

// ActivePrecompileAddresses lists the precompile addresses active for
// this EVM, used for Berlin access-list warming.
func (evm *EVM) ActivePrecompileAddresses() []types.Address {
	addrs := make([]types.Address, 0, len(evm.precompiles))
	for addr := range evm.precompiles {
		addrs = append(addrs, addr)
	}
	return addrs
}

// intercept applies mocked call overrides and the console endpoint
// before any code runs. handled is false when execution should proceed.
func (evm *EVM) intercept(addr types.Address, input []byte, gas uint64) (ret []byte, leftGas uint64, err error, handled bool) {
	if evm.Config.CallOverride != nil {
		if res := evm.Config.CallOverride(addr, input); res != nil {
			if res.ShouldRevert {
				return res.Output, gas, ErrExecutionReverted, true
			}
			return res.Output, gas, nil, true
		}
	}
	if addr == ConsoleAddress {
		if evm.Config.ConsoleSink != nil {
			evm.Config.ConsoleSink(append([]byte(nil), input...))
		}
		return nil, gas, nil, true
	}
	return nil, 0, nil, false
}

// Call executes a message call to addr, transferring value.
func (evm *EVM) Call(caller *Contract, addr types.Address, input []byte, gas uint64, value *uint256.Int) (ret []byte, leftOverGas uint64, err error) {
	if evm.depth > CallCreateDepth {
		return nil, gas, ErrDepth
	}
	valueBig := value.ToBig()
	if !value.IsZero() && !evm.Context.CanTransfer(evm.StateDB, caller.Address, valueBig) {
		return nil, gas, ErrInsufficientBalance
	}
	if ret, leftOverGas, err, handled := evm.intercept(addr, input, gas); handled {
		return ret, leftOverGas, err
	}
	if insp := evm.Config.Inspector; insp != nil {
		if evm.depth == 0 {
			insp.CaptureStart(caller.Address, addr, false, input, gas, valueBig)
			defer func() { insp.CaptureEnd(ret, gas-leftOverGas, err) }()
		} else {
			insp.CaptureEnter(CALL, caller.Address, addr, input, gas, valueBig)
			defer func() { insp.CaptureExit(ret, gas-leftOverGas, err) }()
		}
	}
	snapshot := evm.StateDB.Snapshot()
	p, isPrecompile := evm.precompile(addr)
	if !evm.StateDB.Exist(addr) {
		if !isPrecompile && evm.chainRules.IsEIP158 && value.IsZero() {
			return nil, gas, nil
		}
		evm.StateDB.CreateAccount(addr)
	}
	evm.Context.Transfer(evm.StateDB, caller.Address, addr, valueBig)

	if isPrecompile {
		ret, gas, err = runPrecompiledContract(p, input, gas)
	} else {
		code := evm.StateDB.GetCode(addr)
		if len(code) == 0 {
			ret, err = nil, nil
		} else {
			contract := NewContract(caller.Address, addr, value, gas)
			contract.SetCallCode(evm.StateDB.GetCodeHash(addr), code)
			ret, err = evm.interpreter.Run(contract, input, false)
			gas = contract.Gas
		}
	}
	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if err != ErrExecutionReverted {
			gas = 0
		}
	}
	return ret, gas, err
}

// CallCode executes addr's code in the caller's own storage context.
func (evm *EVM) CallCode(caller *Contract, addr types.Address, input []byte, gas uint64, value *uint256.Int) (ret []byte, leftOverGas uint64, err error) {
	if evm.depth > CallCreateDepth {
		return nil, gas, ErrDepth
	}
	valueBig := value.ToBig()
	if !value.IsZero() && !evm.Context.CanTransfer(evm.StateDB, caller.Address, valueBig) {
		return nil, gas, ErrInsufficientBalance
	}
	if ret, leftOverGas, err, handled := evm.intercept(addr, input, gas); handled {
		return ret, leftOverGas, err
	}
	if insp := evm.Config.Inspector; insp != nil {
		insp.CaptureEnter(CALLCODE, caller.Address, addr, input, gas, valueBig)
		defer func() { insp.CaptureExit(ret, gas-leftOverGas, err) }()
	}
	snapshot := evm.StateDB.Snapshot()
	if p, isPrecompile := evm.precompile(addr); isPrecompile {
		ret, gas, err = runPrecompiledContract(p, input, gas)
	} else {
		contract := NewContract(caller.Address, caller.Address, value, gas)
		contract.SetCallCode(evm.StateDB.GetCodeHash(addr), evm.StateDB.GetCode(addr))
		ret, err = evm.interpreter.Run(contract, input, false)
		gas = contract.Gas
	}
	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if err != ErrExecutionReverted {
			gas = 0
		}
	}
	return ret, gas, err
}

// DelegateCall executes addr's code with the caller's context, caller
// and value.
func (evm *EVM) DelegateCall(caller *Contract, addr types.Address, input []byte, gas uint64) (ret []byte, leftOverGas uint64, err error) {
	if evm.depth > CallCreateDepth {
		return nil, gas, ErrDepth
	}
	if ret, leftOverGas, err, handled := evm.intercept(addr, input, gas); handled {
		return ret, leftOverGas, err
	}
	if insp := evm.Config.Inspector; insp != nil {
		insp.CaptureEnter(DELEGATECALL, caller.Address, addr, input, gas, nil)
		defer func() { insp.CaptureExit(ret, gas-leftOverGas, err) }()
	}
	snapshot := evm.StateDB.Snapshot()
	if p, isPrecompile := evm.precompile(addr); isPrecompile {
		ret, gas, err = runPrecompiledContract(p, input, gas)
	} else {
		contract := NewContract(caller.CallerAddress, caller.Address, caller.value, gas)
		contract.SetCallCode(evm.StateDB.GetCodeHash(addr), evm.StateDB.GetCode(addr))
		ret, err = evm.interpreter.Run(contract, input, false)
		gas = contract.Gas
	}
	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if err != ErrExecutionReverted {
			gas = 0
		}
	}
	return ret, gas, err
}

// StaticCall executes addr's code forbidding any state modification.
func (evm *EVM) StaticCall(caller *Contract, addr types.Address, input []byte, gas uint64) (ret []byte, leftOverGas uint64, err error) {
	if evm.depth > CallCreateDepth {
		return nil, gas, ErrDepth
	}
	if ret, leftOverGas, err, handled := evm.intercept(addr, input, gas); handled {
		return ret, leftOverGas, err
	}
	if insp := evm.Config.Inspector; insp != nil {
		insp.CaptureEnter(STATICCALL, caller.Address, addr, input, gas, nil)
		defer func() { insp.CaptureExit(ret, gas-leftOverGas, err) }()
	}
	snapshot := evm.StateDB.Snapshot()
	if p, isPrecompile := evm.precompile(addr); isPrecompile {
		ret, gas, err = runPrecompiledContract(p, input, gas)
	} else {
		contract := NewContract(caller.Address, addr, new(uint256.Int), gas)
		contract.SetCallCode(evm.StateDB.GetCodeHash(addr), evm.StateDB.GetCode(addr))
		ret, err = evm.interpreter.Run(contract, input, true)
		gas = contract.Gas
	}
	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if err != ErrExecutionReverted {
			gas = 0
		}
	}
	return ret, gas, err
}

// Create deploys a contract at the CREATE address of the caller.
func (evm *EVM) Create(caller *Contract, code []byte, gas uint64, value *uint256.Int) (ret []byte, contractAddr types.Address, leftOverGas uint64, err error) {
	contractAddr = types.CreateAddress(caller.Address, evm.StateDB.GetNonce(caller.Address))
	return evm.create(caller, code, gas, value, contractAddr, CREATE)
}

// Create2 deploys a contract at the salted CREATE2 address.
func (evm *EVM) Create2(caller *Contract, code []byte, gas uint64, endowment, salt *uint256.Int) (ret []byte, contractAddr types.Address, leftOverGas uint64, err error) {
	codeHash := crypto.Keccak256Array(code)
	contractAddr = types.CreateAddress2(caller.Address, types.Hash(salt.Bytes32()), codeHash[:])
	return evm.create(caller, code, gas, endowment, contractAddr, CREATE2)
}

func (evm *EVM) create(caller *Contract, code []byte, gas uint64, value *uint256.Int, address types.Address, typ OpCode) (ret []byte, contractAddr types.Address, leftOverGas uint64, err error) {
	if evm.depth > CallCreateDepth {
		return nil, types.Address{}, gas, ErrDepth
	}
	valueBig := value.ToBig()
	if !evm.Context.CanTransfer(evm.StateDB, caller.Address, valueBig) {
		return nil, types.Address{}, gas, ErrInsufficientBalance
	}
	if evm.chainRules.IsShanghai && len(code) > MaxInitCodeSize {
		return nil, types.Address{}, gas, ErrMaxInitCodeSizeExceeded
	}
	nonce := evm.StateDB.GetNonce(caller.Address)
	if nonce+1 < nonce {
		return nil, types.Address{}, gas, ErrNonceUintOverflow
	}
	evm.StateDB.SetNonce(caller.Address, nonce+1)

	// The destination becomes warm even if the creation fails.
	if evm.chainRules.IsBerlin {
		evm.StateDB.AddAddressToAccessList(address)
	}
	if insp := evm.Config.Inspector; insp != nil {
		if evm.depth == 0 {
			insp.CaptureStart(caller.Address, address, true, code, gas, valueBig)
			defer func() { insp.CaptureEnd(ret, gas-leftOverGas, err) }()
		} else {
			insp.CaptureEnter(typ, caller.Address, address, code, gas, valueBig)
			defer func() { insp.CaptureExit(ret, gas-leftOverGas, err) }()
		}
	}
	contractHash := evm.StateDB.GetCodeHash(address)
	if evm.StateDB.GetNonce(address) != 0 ||
		(contractHash != (types.Hash{}) && contractHash != types.EmptyCodeHash) {
		return nil, types.Address{}, 0, ErrContractAddressCollision
	}
	snapshot := evm.StateDB.Snapshot()
	evm.StateDB.CreateAccount(address)
	if evm.chainRules.IsEIP158 {
		evm.StateDB.SetNonce(address, 1)
	}
	evm.Context.Transfer(evm.StateDB, caller.Address, address, valueBig)

	contract := NewContract(caller.Address, address, value, gas)
	contract.SetCallCode(types.Hash(crypto.Keccak256Array(code)), code)

	ret, err = evm.interpreter.Run(contract, nil, false)

	if err == nil && evm.chainRules.IsEIP158 && len(ret) > MaxCodeSize {
		err = ErrMaxCodeSizeExceeded
	}
	// EIP-3541 rejects deployed code starting with 0xEF.
	if err == nil && len(ret) >= 1 && ret[0] == 0xEF && evm.chainRules.IsLondon {
		err = ErrInvalidCode
	}
	if err == nil {
		createDataGas := uint64(len(ret)) * CreateDataGas
		if contract.UseGas(createDataGas) {
			evm.StateDB.SetCode(address, ret)
		} else {
			err = ErrCodeStoreOutOfGas
		}
	}
	if err != nil && (evm.chainRules.IsHomestead || err != ErrCodeStoreOutOfGas) {
		evm.StateDB.RevertToSnapshot(snapshot)
		if err != ErrExecutionReverted {
			contract.UseGas(contract.Gas)
		}
	}
	return ret, address, contract.Gas, err
}
