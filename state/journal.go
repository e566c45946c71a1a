package state

import (
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
)

// journalEntry undoes one elementary state mutation.
type journalEntry interface {
	revert(db *StateDB)
}

// journal is the ordered list of mutations applied during the current
// transaction, enabling cheap snapshot/revert inside a tx.
type journal struct {
	entries []journalEntry
}

func newJournal() *journal {
	return &journal{}
}

func (j *journal) append(e journalEntry) {
	j.entries = append(j.entries, e)
}

func (j *journal) revert(db *StateDB, snapshot int) {
	for i := len(j.entries) - 1; i >= snapshot; i-- {
		j.entries[i].revert(db)
	}
	j.entries = j.entries[:snapshot]
}

func (j *journal) length() int {
	return len(j.entries)
}

type (
	createObjectChange struct {
		account types.Address
	}
	resetObjectChange struct {
		account types.Address
		prev    *stateObject
	}
	balanceChange struct {
		account types.Address
		prev    *big.Int
	}
	nonceChange struct {
		account types.Address
		prev    uint64
	}
	storageChange struct {
		account  types.Address
		key      types.Hash
		prev     types.Hash
		hadValue bool
	}
	codeChange struct {
		account  types.Address
		prevCode []byte
		prevHash types.Hash
	}
	refundChange struct {
		prev uint64
	}
	addLogChange struct{}
	selfDestructChange struct {
		account     types.Address
		prev        bool
		prevBalance *big.Int
	}
	accessListAddAccountChange struct {
		address types.Address
	}
	accessListAddSlotChange struct {
		address types.Address
		slot    types.Hash
	}
	transientStorageChange struct {
		account types.Address
		key     types.Hash
		prev    types.Hash
	}
	touchChange struct {
		account types.Address
	}
)

func (c createObjectChange) revert(db *StateDB) {
	delete(db.objects, c.account)
}

func (c resetObjectChange) revert(db *StateDB) {
	db.objects[c.account] = c.prev
}

func (c balanceChange) revert(db *StateDB) {
	db.objects[c.account].account.Balance = c.prev
}

func (c nonceChange) revert(db *StateDB) {
	db.objects[c.account].account.Nonce = c.prev
}

func (c storageChange) revert(db *StateDB) {
	obj := db.objects[c.account]
	if c.hadValue {
		obj.dirtyStorage[c.key] = c.prev
	} else {
		delete(obj.dirtyStorage, c.key)
	}
}

func (c codeChange) revert(db *StateDB) {
	obj := db.objects[c.account]
	obj.code = c.prevCode
	obj.account.CodeHash = c.prevHash
}

func (c refundChange) revert(db *StateDB) {
	db.refund = c.prev
}

func (c addLogChange) revert(db *StateDB) {
	db.logs = db.logs[:len(db.logs)-1]
}

func (c selfDestructChange) revert(db *StateDB) {
	obj := db.objects[c.account]
	obj.selfDestructed = c.prev
	obj.account.Balance = c.prevBalance
}

func (c accessListAddAccountChange) revert(db *StateDB) {
	db.accessList.deleteAddress(c.address)
}

func (c accessListAddSlotChange) revert(db *StateDB) {
	db.accessList.deleteSlot(c.address, c.slot)
}

func (c transientStorageChange) revert(db *StateDB) {
	db.setTransient(c.account, c.key, c.prev)
}

func (c touchChange) revert(db *StateDB) {}

// accessList is the EIP-2929 warm address/slot set.
type accessList struct {
	addresses map[types.Address]int
	slots     []map[types.Hash]struct{}
}

func newAccessList() *accessList {
	return &accessList{addresses: make(map[types.Address]int)}
}

func (al *accessList) ContainsAddress(addr types.Address) bool {
	_, ok := al.addresses[addr]
	return ok
}

func (al *accessList) Contains(addr types.Address, slot types.Hash) (addrOk, slotOk bool) {
	idx, ok := al.addresses[addr]
	if !ok {
		return false, false
	}
	if idx == -1 {
		return true, false
	}
	_, slotOk = al.slots[idx][slot]
	return true, slotOk
}

// AddAddress adds addr and reports whether it was newly added.
func (al *accessList) AddAddress(addr types.Address) bool {
	if _, ok := al.addresses[addr]; ok {
		return false
	}
	al.addresses[addr] = -1
	return true
}

// AddSlot adds (addr, slot) and reports what was newly added.
func (al *accessList) AddSlot(addr types.Address, slot types.Hash) (addrChange, slotChange bool) {
	idx, ok := al.addresses[addr]
	if !ok || idx == -1 {
		al.addresses[addr] = len(al.slots)
		al.slots = append(al.slots, map[types.Hash]struct{}{slot: {}})
		return !ok, true
	}
	if _, ok := al.slots[idx][slot]; ok {
		return false, false
	}
	al.slots[idx][slot] = struct{}{}
	return false, true
}

func (al *accessList) deleteAddress(addr types.Address) {
	delete(al.addresses, addr)
}

func (al *accessList) deleteSlot(addr types.Address, slot types.Hash) {
	idx, ok := al.addresses[addr]
	if !ok || idx == -1 {
		return
	}
	delete(al.slots[idx], slot)
	if len(al.slots[idx]) == 0 && idx == len(al.slots)-1 {
		al.slots = al.slots[:idx]
		al.addresses[addr] = -1
	}
}
