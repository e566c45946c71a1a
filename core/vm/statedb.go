package vm

import (
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
)

// StateDB is the mutable account state the EVM executes against.
type StateDB interface {
	CreateAccount(types.Address)

	SubBalance(types.Address, *big.Int)
	AddBalance(types.Address, *big.Int)
	GetBalance(types.Address) *big.Int

	GetNonce(types.Address) uint64
	SetNonce(types.Address, uint64)

	GetCodeHash(types.Address) types.Hash
	GetCode(types.Address) []byte
	SetCode(types.Address, []byte)
	GetCodeSize(types.Address) int

	AddRefund(uint64)
	SubRefund(uint64)
	GetRefund() uint64

	GetCommittedState(types.Address, types.Hash) types.Hash
	GetState(types.Address, types.Hash) types.Hash
	SetState(types.Address, types.Hash, types.Hash)

	GetTransientState(types.Address, types.Hash) types.Hash
	SetTransientState(types.Address, types.Hash, types.Hash)

	SelfDestruct(types.Address)
	HasSelfDestructed(types.Address) bool
	Selfdestruct6780(types.Address)

	Exist(types.Address) bool
	Empty(types.Address) bool

	AddressInAccessList(types.Address) bool
	SlotInAccessList(types.Address, types.Hash) (addressOk, slotOk bool)
	AddAddressToAccessList(types.Address)
	AddSlotToAccessList(types.Address, types.Hash)

	Snapshot() int
	RevertToSnapshot(int)

	AddLog(*types.Log)
}
