package vm

import (
	"errors"

	"github.com/holiman/uint256"

	"github.com/devchain-eth/devchain/core/types"
)

var errSstoreSentry = errors.New("not enough gas for reentrancy sentry")

// Memory expansion sizing per opcode.

func memoryKeccak256(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(0), stack.Back(1))
}

func memoryCallDataCopy(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(0), stack.Back(2))
}

func memoryCodeCopy(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(0), stack.Back(2))
}

func memoryExtCodeCopy(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(1), stack.Back(3))
}

func memoryReturnDataCopy(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(0), stack.Back(2))
}

func memoryMload(stack *Stack) (uint64, bool) {
	return calcMemSize64WithUint(stack.Back(0), 32)
}

func memoryMstore(stack *Stack) (uint64, bool) {
	return calcMemSize64WithUint(stack.Back(0), 32)
}

func memoryMstore8(stack *Stack) (uint64, bool) {
	return calcMemSize64WithUint(stack.Back(0), 1)
}

func memoryMcopy(stack *Stack) (uint64, bool) {
	mStart := stack.Back(0)
	if stack.Back(1).Gt(mStart) {
		mStart = stack.Back(1)
	}
	return calcMemSize64(mStart, stack.Back(2))
}

func memoryReturn(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(0), stack.Back(1))
}

func memoryRevert(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(0), stack.Back(1))
}

func memoryLog(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(0), stack.Back(1))
}

func memoryCreate(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(1), stack.Back(2))
}

func memoryCreate2(stack *Stack) (uint64, bool) {
	return calcMemSize64(stack.Back(1), stack.Back(2))
}

func memoryCall(stack *Stack) (uint64, bool) {
	x, overflow := calcMemSize64(stack.Back(5), stack.Back(6))
	if overflow {
		return 0, true
	}
	y, overflow := calcMemSize64(stack.Back(3), stack.Back(4))
	if overflow {
		return 0, true
	}
	if x > y {
		return x, false
	}
	return y, false
}

func memoryStaticCall(stack *Stack) (uint64, bool) {
	x, overflow := calcMemSize64(stack.Back(4), stack.Back(5))
	if overflow {
		return 0, true
	}
	y, overflow := calcMemSize64(stack.Back(2), stack.Back(3))
	if overflow {
		return 0, true
	}
	if x > y {
		return x, false
	}
	return y, false
}

// gasMemoryOnly charges only the memory expansion.
func gasMemoryOnly(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return memoryGasCost(mem, memorySize)
}

var gasRevert = gasMemoryOnly

// gasCopy charges memory expansion plus CopyGas per copied word.
func gasCopy(mem *Memory, memorySize uint64, length *uint256.Int) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	words, overflow := length.Uint64WithOverflow()
	if overflow {
		return 0, ErrGasUintOverflow
	}
	wordGas, overflow := safeMul(toWordSize(words), CopyGas)
	if overflow {
		return 0, ErrGasUintOverflow
	}
	gas, overflow = safeAdd(gas, wordGas)
	if overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

func gasCallDataCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return gasCopy(mem, memorySize, stack.Back(2))
}

func gasCodeCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return gasCopy(mem, memorySize, stack.Back(2))
}

func gasReturnDataCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return gasCopy(mem, memorySize, stack.Back(2))
}

func gasExtCodeCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return gasCopy(mem, memorySize, stack.Back(3))
}

func gasExtCodeCopyEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := gasCopy(mem, memorySize, stack.Back(3))
	if err != nil {
		return 0, err
	}
	addr := types.Address(stack.Back(0).Bytes20())
	if !evm.StateDB.AddressInAccessList(addr) {
		evm.StateDB.AddAddressToAccessList(addr)
		var overflow bool
		if gas, overflow = safeAdd(gas, ColdAccountAccessCost-WarmStorageReadCost); overflow {
			return 0, ErrGasUintOverflow
		}
	}
	return gas, nil
}

func gasKeccak256(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	wordGas, overflow := stack.Back(1).Uint64WithOverflow()
	if overflow {
		return 0, ErrGasUintOverflow
	}
	if wordGas, overflow = safeMul(toWordSize(wordGas), Keccak256WordGas); overflow {
		return 0, ErrGasUintOverflow
	}
	if gas, overflow = safeAdd(gas, wordGas); overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

func gasExpByte(stack *Stack, perByte uint64) (uint64, error) {
	expByteLen := uint64((stack.Back(1).BitLen() + 7) / 8)
	gas, overflow := safeMul(expByteLen, perByte)
	if overflow {
		return 0, ErrGasUintOverflow
	}
	if gas, overflow = safeAdd(gas, ExpGas); overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

func gasExp(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return gasExpByte(stack, 10)
}

func gasExpEIP158(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return gasExpByte(stack, ExpByteGasEIP158)
}

func makeGasLog(n uint64) gasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		requestedSize, overflow := stack.Back(1).Uint64WithOverflow()
		if overflow {
			return 0, ErrGasUintOverflow
		}
		gas, err := memoryGasCost(mem, memorySize)
		if err != nil {
			return 0, err
		}
		if gas, overflow = safeAdd(gas, LogGas); overflow {
			return 0, ErrGasUintOverflow
		}
		if gas, overflow = safeAdd(gas, n*LogTopicGas); overflow {
			return 0, ErrGasUintOverflow
		}
		var memorySizeGas uint64
		if memorySizeGas, overflow = safeMul(requestedSize, LogDataGas); overflow {
			return 0, ErrGasUintOverflow
		}
		if gas, overflow = safeAdd(gas, memorySizeGas); overflow {
			return 0, ErrGasUintOverflow
		}
		return gas, nil
	}
}

// gasSStoreLegacy is the pre-net-metering SSTORE schedule.
func gasSStoreLegacy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var (
		y, x    = stack.Back(1), stack.Back(0)
		current = evm.StateDB.GetState(contract.Address, types.Hash(x.Bytes32()))
	)
	switch {
	case current.IsZero() && !y.IsZero():
		return SstoreSetGas, nil
	case !current.IsZero() && y.IsZero():
		evm.StateDB.AddRefund(SstoreClearRefund)
		return SstoreResetGas, nil
	default:
		return SstoreResetGas, nil
	}
}

// gasSStoreEIP2929 is net-metered SSTORE with cold-slot pricing.
// The clear refund drops to 4800 once EIP-3529 is active.
func gasSStoreEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	if contract.Gas <= SstoreSentryGas {
		return 0, errSstoreSentry
	}
	clearRefund := SstoreClearRefund
	if evm.chainRules.IsLondon {
		clearRefund = SstoreClearRefundEIP3529
	}
	var (
		y, x = stack.Back(1), stack.Back(0)
		slot = types.Hash(x.Bytes32())
		cost = uint64(0)
	)
	if addrOk, slotOk := evm.StateDB.SlotInAccessList(contract.Address, slot); !addrOk || !slotOk {
		cost = ColdSloadCost
		evm.StateDB.AddSlotToAccessList(contract.Address, slot)
	}
	var (
		current = evm.StateDB.GetState(contract.Address, slot)
		value   = types.Hash(y.Bytes32())
	)
	if current == value {
		return cost + WarmStorageReadCost, nil
	}
	original := evm.StateDB.GetCommittedState(contract.Address, slot)
	if original == current {
		if original.IsZero() {
			return cost + SstoreSetGas, nil
		}
		if value.IsZero() {
			evm.StateDB.AddRefund(clearRefund)
		}
		return cost + (SstoreResetGas - ColdSloadCost), nil
	}
	if !original.IsZero() {
		if current.IsZero() {
			evm.StateDB.SubRefund(clearRefund)
		} else if value.IsZero() {
			evm.StateDB.AddRefund(clearRefund)
		}
	}
	if original == value {
		if original.IsZero() {
			evm.StateDB.AddRefund(SstoreSetGas - WarmStorageReadCost)
		} else {
			evm.StateDB.AddRefund((SstoreResetGas - ColdSloadCost) - WarmStorageReadCost)
		}
	}
	return cost + WarmStorageReadCost, nil
}

func gasSLoadEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	slot := types.Hash(stack.Back(0).Bytes32())
	if addrOk, slotOk := evm.StateDB.SlotInAccessList(contract.Address, slot); !addrOk || !slotOk {
		evm.StateDB.AddSlotToAccessList(contract.Address, slot)
		return ColdSloadCost, nil
	}
	return WarmStorageReadCost, nil
}

// gasAccountAccessEIP2929 adds the cold surcharge for BALANCE,
// EXTCODESIZE and EXTCODEHASH. The warm base is the constant gas.
func gasAccountAccessEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.Address(stack.Back(0).Bytes20())
	if !evm.StateDB.AddressInAccessList(addr) {
		evm.StateDB.AddAddressToAccessList(addr)
		return ColdAccountAccessCost - WarmStorageReadCost, nil
	}
	return 0, nil
}

func gasCreate(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return memoryGasCost(mem, memorySize)
}

func gasCreate2(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	return addInitCodeGas(gas, stack.Back(2), Keccak256WordGas)
}

func gasCreateEIP3860(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	return addInitCodeGas(gas, stack.Back(2), InitCodeWordGas)
}

func gasCreate2EIP3860(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	return addInitCodeGas(gas, stack.Back(2), Keccak256WordGas+InitCodeWordGas)
}

func addInitCodeGas(gas uint64, size *uint256.Int, perWord uint64) (uint64, error) {
	length, overflow := size.Uint64WithOverflow()
	if overflow {
		return 0, ErrGasUintOverflow
	}
	wordGas, overflow := safeMul(toWordSize(length), perWord)
	if overflow {
		return 0, ErrGasUintOverflow
	}
	if gas, overflow = safeAdd(gas, wordGas); overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

func gasMcopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return gasCopy(mem, memorySize, stack.Back(2))
}

// coldCallSurcharge charges the EIP-2929 cold account cost for the
// call target when Berlin rules are active.
func coldCallSurcharge(evm *EVM, stack *Stack) uint64 {
	if !evm.chainRules.IsBerlin {
		return 0
	}
	addr := types.Address(stack.Back(1).Bytes20())
	if !evm.StateDB.AddressInAccessList(addr) {
		evm.StateDB.AddAddressToAccessList(addr)
		return ColdAccountAccessCost - WarmStorageReadCost
	}
	return 0
}

func gasCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var (
		gas            = coldCallSurcharge(evm, stack)
		transfersValue = !stack.Back(2).IsZero()
		address        = types.Address(stack.Back(1).Bytes20())
		overflow       bool
	)
	if evm.chainRules.IsEIP158 {
		if transfersValue && evm.StateDB.Empty(address) {
			gas += CallNewAccountGas
		}
	} else if !evm.StateDB.Exist(address) {
		gas += CallNewAccountGas
	}
	if transfersValue {
		gas += CallValueTransferGas
	}
	memoryGas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	if gas, overflow = safeAdd(gas, memoryGas); overflow {
		return 0, ErrGasUintOverflow
	}
	evm.callGasTemp, err = callGas(contract.Gas, gas, stack.Back(0))
	if err != nil {
		return 0, err
	}
	if gas, overflow = safeAdd(gas, evm.callGasTemp); overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

func gasCallCode(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	memoryGas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	var (
		gas      = coldCallSurcharge(evm, stack)
		overflow bool
	)
	if !stack.Back(2).IsZero() {
		gas += CallValueTransferGas
	}
	if gas, overflow = safeAdd(gas, memoryGas); overflow {
		return 0, ErrGasUintOverflow
	}
	evm.callGasTemp, err = callGas(contract.Gas, gas, stack.Back(0))
	if err != nil {
		return 0, err
	}
	if gas, overflow = safeAdd(gas, evm.callGasTemp); overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

func gasDelegateCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return gasThinCall(evm, contract, stack, mem, memorySize)
}

func gasStaticCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return gasThinCall(evm, contract, stack, mem, memorySize)
}

// gasThinCall covers DELEGATECALL and STATICCALL: no value transfer,
// no account creation.
func gasThinCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	var overflow bool
	if gas, overflow = safeAdd(gas, coldCallSurcharge(evm, stack)); overflow {
		return 0, ErrGasUintOverflow
	}
	evm.callGasTemp, err = callGas(contract.Gas, gas, stack.Back(0))
	if err != nil {
		return 0, err
	}
	if gas, overflow = safeAdd(gas, evm.callGasTemp); overflow {
		return 0, ErrGasUintOverflow
	}
	return gas, nil
}

// callGas applies the 63/64 rule to the requested call gas.
func callGas(availableGas, base uint64, callCost *uint256.Int) (uint64, error) {
	if availableGas < base {
		return 0, ErrOutOfGas
	}
	availableGas -= base
	gas := availableGas - availableGas/64
	if !callCost.IsUint64() || gas < callCost.Uint64() {
		return gas, nil
	}
	return callCost.Uint64(), nil
}

func gasSelfdestruct(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var gas uint64
	address := types.Address(stack.Back(0).Bytes20())
	if evm.chainRules.IsEIP158 {
		if evm.StateDB.Empty(address) && evm.StateDB.GetBalance(contract.Address).Sign() != 0 {
			gas += CallNewAccountGas
		}
	} else if !evm.StateDB.Exist(address) {
		gas += CallNewAccountGas
	}
	if !evm.StateDB.HasSelfDestructed(contract.Address) {
		evm.StateDB.AddRefund(SelfdestructRefund)
	}
	return gas, nil
}

func gasSelfdestructEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var gas uint64
	address := types.Address(stack.Back(0).Bytes20())
	if !evm.StateDB.AddressInAccessList(address) {
		evm.StateDB.AddAddressToAccessList(address)
		gas = ColdAccountAccessCost
	}
	if evm.StateDB.Empty(address) && evm.StateDB.GetBalance(contract.Address).Sign() != 0 {
		gas += CallNewAccountGas
	}
	// EIP-3529 removes the selfdestruct refund.
	if !evm.chainRules.IsLondon && !evm.StateDB.HasSelfDestructed(contract.Address) {
		evm.StateDB.AddRefund(SelfdestructRefund)
	}
	return gas, nil
}
