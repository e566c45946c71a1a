package state

import (
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/crypto"
)

// stateObject is the in-flight view of one account during execution.
type stateObject struct {
	address types.Address
	account Account
	code    []byte

	// originStorage caches reads from the committed store; dirtyStorage
	// holds writes of the current transaction; pendingStorage holds
	// writes of earlier transactions in the same block.
	originStorage  map[types.Hash]types.Hash
	dirtyStorage   map[types.Hash]types.Hash
	pendingStorage map[types.Hash]types.Hash

	// created marks accounts born in this block: their committed diff
	// replaces storage wholesale.
	created        bool
	selfDestructed bool
	touched        bool
	existedBefore  bool
}

func newStateObject(addr types.Address, acct *Account, existed bool) *stateObject {
	if acct == nil {
		acct = &Account{Balance: new(big.Int), CodeHash: types.EmptyCodeHash}
	}
	return &stateObject{
		address:        addr,
		account:        *acct.Copy(),
		originStorage:  make(map[types.Hash]types.Hash),
		dirtyStorage:   make(map[types.Hash]types.Hash),
		pendingStorage: make(map[types.Hash]types.Hash),
		existedBefore:  existed,
	}
}

func (o *stateObject) empty() bool {
	return o.account.Nonce == 0 && o.account.Balance.Sign() == 0 &&
		(o.account.CodeHash == types.EmptyCodeHash || o.account.CodeHash.IsZero())
}

// StateDB is the journaled execution state for one block's worth of
// transactions, layered over a committed Reader.
type StateDB struct {
	reader Reader

	objects map[types.Address]*stateObject
	journal *journal
	refund  uint64

	logs    []*types.Log
	txHash  types.Hash
	txIndex int
	logSize uint

	accessList *accessList
	transient  map[types.Address]map[types.Hash]types.Hash

	// dbErr latches the first reader failure; the EVM surface has no
	// error returns, so execution aborts on it afterwards.
	dbErr error
}

// New creates a StateDB over the given committed reader.
func New(reader Reader) *StateDB {
	return &StateDB{
		reader:     reader,
		objects:    make(map[types.Address]*stateObject),
		journal:    newJournal(),
		accessList: newAccessList(),
		transient:  make(map[types.Address]map[types.Hash]types.Hash),
	}
}

// Error returns the first reader error seen during execution.
func (s *StateDB) Error() error { return s.dbErr }

func (s *StateDB) setError(err error) {
	if s.dbErr == nil {
		s.dbErr = err
	}
}

func (s *StateDB) getObject(addr types.Address) *stateObject {
	if obj, ok := s.objects[addr]; ok {
		return obj
	}
	acct, err := s.reader.Account(addr)
	if err != nil {
		s.setError(err)
		return nil
	}
	if acct == nil {
		return nil
	}
	obj := newStateObject(addr, acct, true)
	s.objects[addr] = obj
	return obj
}

func (s *StateDB) getOrNewObject(addr types.Address) *stateObject {
	if obj := s.getObject(addr); obj != nil {
		return obj
	}
	obj := newStateObject(addr, nil, false)
	s.objects[addr] = obj
	s.journal.append(createObjectChange{account: addr})
	return obj
}

// CreateAccount makes addr explicitly present. An existing account's
// balance survives per EIP-684 create semantics handled by the caller.
func (s *StateDB) CreateAccount(addr types.Address) {
	prev := s.getObject(addr)
	obj := newStateObject(addr, nil, prev != nil)
	obj.created = true
	if prev != nil {
		obj.account.Balance = new(big.Int).Set(prev.account.Balance)
		s.journal.append(resetObjectChange{account: addr, prev: prev})
	} else {
		s.journal.append(createObjectChange{account: addr})
	}
	s.objects[addr] = obj
}

// GetBalance returns the account balance, zero for missing accounts.
func (s *StateDB) GetBalance(addr types.Address) *big.Int {
	if obj := s.getObject(addr); obj != nil {
		return new(big.Int).Set(obj.account.Balance)
	}
	return new(big.Int)
}

// AddBalance credits addr, creating the account when missing.
func (s *StateDB) AddBalance(addr types.Address, amount *big.Int) {
	obj := s.getOrNewObject(addr)
	s.journal.append(balanceChange{account: addr, prev: new(big.Int).Set(obj.account.Balance)})
	obj.touched = true
	obj.account.Balance = new(big.Int).Add(obj.account.Balance, amount)
}

// SubBalance debits addr.
func (s *StateDB) SubBalance(addr types.Address, amount *big.Int) {
	obj := s.getOrNewObject(addr)
	s.journal.append(balanceChange{account: addr, prev: new(big.Int).Set(obj.account.Balance)})
	obj.touched = true
	obj.account.Balance = new(big.Int).Sub(obj.account.Balance, amount)
}

// SetBalance forces the balance, used by overrides and cheat methods.
func (s *StateDB) SetBalance(addr types.Address, amount *big.Int) {
	obj := s.getOrNewObject(addr)
	s.journal.append(balanceChange{account: addr, prev: new(big.Int).Set(obj.account.Balance)})
	obj.touched = true
	obj.account.Balance = new(big.Int).Set(amount)
}

// GetNonce returns the account nonce.
func (s *StateDB) GetNonce(addr types.Address) uint64 {
	if obj := s.getObject(addr); obj != nil {
		return obj.account.Nonce
	}
	return 0
}

// SetNonce sets the account nonce.
func (s *StateDB) SetNonce(addr types.Address, nonce uint64) {
	obj := s.getOrNewObject(addr)
	s.journal.append(nonceChange{account: addr, prev: obj.account.Nonce})
	obj.touched = true
	obj.account.Nonce = nonce
}

// GetCodeHash returns the code hash, the zero hash for missing accounts.
func (s *StateDB) GetCodeHash(addr types.Address) types.Hash {
	if obj := s.getObject(addr); obj != nil {
		return obj.account.CodeHash
	}
	return types.Hash{}
}

// GetCode returns the account bytecode.
func (s *StateDB) GetCode(addr types.Address) []byte {
	obj := s.getObject(addr)
	if obj == nil {
		return nil
	}
	if obj.code != nil || obj.account.CodeHash == types.EmptyCodeHash {
		return obj.code
	}
	code, err := s.reader.Code(addr)
	if err != nil {
		s.setError(err)
		return nil
	}
	obj.code = code
	return code
}

// GetCodeSize returns len(GetCode(addr)).
func (s *StateDB) GetCodeSize(addr types.Address) int {
	return len(s.GetCode(addr))
}

// SetCode installs bytecode at addr.
func (s *StateDB) SetCode(addr types.Address, code []byte) {
	obj := s.getOrNewObject(addr)
	s.journal.append(codeChange{account: addr, prevCode: obj.code, prevHash: obj.account.CodeHash})
	obj.touched = true
	obj.code = types.CopyBytes(code)
	if len(code) == 0 {
		obj.account.CodeHash = types.EmptyCodeHash
	} else {
		obj.account.CodeHash = types.Hash(crypto.Keccak256Array(code))
	}
}

// GetState returns the current value of a storage slot.
func (s *StateDB) GetState(addr types.Address, key types.Hash) types.Hash {
	obj := s.getObject(addr)
	if obj == nil {
		return types.Hash{}
	}
	if v, ok := obj.dirtyStorage[key]; ok {
		return v
	}
	return s.committedState(obj, key)
}

// GetCommittedState returns the slot value at the start of the current
// transaction.
func (s *StateDB) GetCommittedState(addr types.Address, key types.Hash) types.Hash {
	obj := s.getObject(addr)
	if obj == nil {
		return types.Hash{}
	}
	return s.committedState(obj, key)
}

func (s *StateDB) committedState(obj *stateObject, key types.Hash) types.Hash {
	if v, ok := obj.pendingStorage[key]; ok {
		return v
	}
	if v, ok := obj.originStorage[key]; ok {
		return v
	}
	if obj.created {
		return types.Hash{}
	}
	v, err := s.reader.Storage(obj.address, key)
	if err != nil {
		s.setError(err)
		return types.Hash{}
	}
	obj.originStorage[key] = v
	return v
}

// SetState writes a storage slot.
func (s *StateDB) SetState(addr types.Address, key, value types.Hash) {
	obj := s.getOrNewObject(addr)
	prev, had := obj.dirtyStorage[key]
	s.journal.append(storageChange{account: addr, key: key, prev: prev, hadValue: had})
	obj.touched = true
	obj.dirtyStorage[key] = value
}

// GetTransientState reads EIP-1153 transient storage.
func (s *StateDB) GetTransientState(addr types.Address, key types.Hash) types.Hash {
	if m, ok := s.transient[addr]; ok {
		return m[key]
	}
	return types.Hash{}
}

// SetTransientState writes EIP-1153 transient storage.
func (s *StateDB) SetTransientState(addr types.Address, key, value types.Hash) {
	prev := s.GetTransientState(addr, key)
	if prev == value {
		return
	}
	s.journal.append(transientStorageChange{account: addr, key: key, prev: prev})
	s.setTransient(addr, key, value)
}

func (s *StateDB) setTransient(addr types.Address, key, value types.Hash) {
	m, ok := s.transient[addr]
	if !ok {
		m = make(map[types.Hash]types.Hash)
		s.transient[addr] = m
	}
	m[key] = value
}

// AddRefund accumulates gas refund.
func (s *StateDB) AddRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	s.refund += gas
}

// SubRefund removes gas refund; underflow indicates a VM bug.
func (s *StateDB) SubRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	if gas > s.refund {
		gas = s.refund
	}
	s.refund -= gas
}

// GetRefund returns the accumulated refund.
func (s *StateDB) GetRefund() uint64 { return s.refund }

// SelfDestruct marks addr destroyed and zeroes its balance.
func (s *StateDB) SelfDestruct(addr types.Address) {
	obj := s.getObject(addr)
	if obj == nil {
		return
	}
	s.journal.append(selfDestructChange{
		account:     addr,
		prev:        obj.selfDestructed,
		prevBalance: new(big.Int).Set(obj.account.Balance),
	})
	obj.selfDestructed = true
	obj.account.Balance = new(big.Int)
}

// Selfdestruct6780 applies EIP-6780: destruction only when the account
// was created in the same transaction.
func (s *StateDB) Selfdestruct6780(addr types.Address) {
	obj := s.getObject(addr)
	if obj == nil {
		return
	}
	if obj.created {
		s.SelfDestruct(addr)
	}
}

// HasSelfDestructed reports whether addr was destroyed this block.
func (s *StateDB) HasSelfDestructed(addr types.Address) bool {
	if obj := s.getObject(addr); obj != nil {
		return obj.selfDestructed
	}
	return false
}

// Exist reports whether addr has any state.
func (s *StateDB) Exist(addr types.Address) bool {
	return s.getObject(addr) != nil
}

// Empty reports whether addr is empty per EIP-161.
func (s *StateDB) Empty(addr types.Address) bool {
	obj := s.getObject(addr)
	return obj == nil || obj.empty()
}

// AddressInAccessList reports EIP-2929 warmth of an address.
func (s *StateDB) AddressInAccessList(addr types.Address) bool {
	return s.accessList.ContainsAddress(addr)
}

// SlotInAccessList reports EIP-2929 warmth of a storage slot.
func (s *StateDB) SlotInAccessList(addr types.Address, slot types.Hash) (bool, bool) {
	return s.accessList.Contains(addr, slot)
}

// AddAddressToAccessList warms an address.
func (s *StateDB) AddAddressToAccessList(addr types.Address) {
	if s.accessList.AddAddress(addr) {
		s.journal.append(accessListAddAccountChange{address: addr})
	}
}

// AddSlotToAccessList warms a storage slot.
func (s *StateDB) AddSlotToAccessList(addr types.Address, slot types.Hash) {
	addrChange, slotChange := s.accessList.AddSlot(addr, slot)
	if addrChange {
		s.journal.append(accessListAddAccountChange{address: addr})
	}
	if slotChange {
		s.journal.append(accessListAddSlotChange{address: addr, slot: slot})
	}
}

// Snapshot returns an intra-transaction revision id.
func (s *StateDB) Snapshot() int {
	return s.journal.length()
}

// RevertToSnapshot undoes every change after the given revision.
func (s *StateDB) RevertToSnapshot(id int) {
	s.journal.revert(s, id)
}

// AddLog records an emitted log, stamped with the current tx context.
func (s *StateDB) AddLog(l *types.Log) {
	s.journal.append(addLogChange{})
	l.TxHash = s.txHash
	l.TxIndex = uint(s.txIndex)
	l.Index = s.logSize + uint(len(s.logs))
	s.logs = append(s.logs, l)
}

// SetTxContext prepares per-transaction bookkeeping: tx position, fresh
// access list, transient storage and refund counter.
func (s *StateDB) SetTxContext(txHash types.Hash, txIndex int) {
	s.txHash = txHash
	s.txIndex = txIndex
	s.refund = 0
	s.accessList = newAccessList()
	s.transient = make(map[types.Address]map[types.Hash]types.Hash)
}

// TxLogs returns the logs emitted by the given transaction.
func (s *StateDB) TxLogs(txHash types.Hash) []*types.Log {
	var out []*types.Log
	for _, l := range s.logs {
		if l.TxHash == txHash {
			out = append(out, l)
		}
	}
	return out
}

// Logs returns every log collected for the block so far.
func (s *StateDB) Logs() []*types.Log { return s.logs }

// Prepare warms the EIP-2929/3651 mandatory addresses and the access
// list of the transaction before execution.
func (s *StateDB) Prepare(sender types.Address, coinbase types.Address, dst *types.Address, precompiles []types.Address, txAccessList types.AccessList) {
	s.AddAddressToAccessList(sender)
	if dst != nil {
		s.AddAddressToAccessList(*dst)
	}
	for _, addr := range precompiles {
		s.AddAddressToAccessList(addr)
	}
	for _, tuple := range txAccessList {
		s.AddAddressToAccessList(tuple.Address)
		for _, key := range tuple.StorageKeys {
			s.AddSlotToAccessList(tuple.Address, key)
		}
	}
	s.AddAddressToAccessList(coinbase)
}

// Finalise folds the current transaction's writes into the pending
// (block-level) layer. Call after each successfully applied tx.
func (s *StateDB) Finalise() {
	for _, obj := range s.objects {
		if obj.selfDestructed {
			// Destruction wipes storage; slot writes from earlier in
			// the block must not outlive it.
			obj.dirtyStorage = make(map[types.Hash]types.Hash)
			obj.pendingStorage = make(map[types.Hash]types.Hash)
			continue
		}
		for k, v := range obj.dirtyStorage {
			obj.pendingStorage[k] = v
			delete(obj.dirtyStorage, k)
		}
	}
	s.logSize += uint(len(s.TxLogs(s.txHash)))
	s.journal = newJournal()
}

// BuildDiff extracts the block's state diff from all touched objects.
// The StateDB should be discarded afterwards.
func (s *StateDB) BuildDiff() Diff {
	s.Finalise()
	diff := make(Diff)
	for addr, obj := range s.objects {
		if obj.selfDestructed {
			diff[addr] = &AccountDiff{Destroyed: true}
			continue
		}
		if !obj.touched && !obj.created {
			continue
		}
		if obj.empty() && !obj.existedBefore {
			continue
		}
		ad := &AccountDiff{
			Nonce:           obj.account.Nonce,
			Balance:         new(big.Int).Set(obj.account.Balance),
			CodeHash:        obj.account.CodeHash,
			Code:            obj.code,
			Storage:         make(StorageDiff, len(obj.pendingStorage)),
			StorageReplaced: obj.created,
			Destroyed:       obj.created && obj.existedBefore,
		}
		for k, v := range obj.pendingStorage {
			ad.Storage[k] = v
		}
		diff[addr] = ad
	}
	return diff
}
