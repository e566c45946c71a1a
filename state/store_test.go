package state

import (
	"math/big"
	"testing"

	"github.com/devchain-eth/devchain/core/types"
)

func commitBalance(t *testing.T, store *Store, addr types.Address, amount int64) {
	t.Helper()
	db := New(store)
	db.AddBalance(addr, big.NewInt(amount))
	db.Finalise()
	store.Commit(db.BuildDiff())
}

func TestStoreSnapshotRevert(t *testing.T) {
	store := NewLocalStore()
	commitBalance(t, store, addrA, 100)

	snap := store.Snapshot()
	commitBalance(t, store, addrA, 50)
	commitBalance(t, store, addrB, 7)

	if got := New(store).GetBalance(addrA); got.Int64() != 150 {
		t.Fatalf("balance before revert = %s", got)
	}
	if err := store.RevertTo(snap); err != nil {
		t.Fatalf("revert: %v", err)
	}
	db := New(store)
	if got := db.GetBalance(addrA); got.Int64() != 100 {
		t.Errorf("balance after revert = %s, want 100", got)
	}
	if db.Exist(addrB) {
		t.Error("account committed after snapshot survived revert")
	}
}

func TestStoreRevertToUnknown(t *testing.T) {
	store := NewLocalStore()
	if err := store.RevertTo(99); err == nil {
		t.Error("revert to unknown snapshot must error")
	}
}

func TestStoreRootChangesWithState(t *testing.T) {
	store := NewLocalStore()
	empty, err := store.StateRoot()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	commitBalance(t, store, addrA, 1)
	after, err := store.StateRoot()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if after == empty {
		t.Error("state root unchanged after a balance commit")
	}

	// Same history yields the same root.
	other := NewLocalStore()
	commitBalance(t, other, addrA, 1)
	otherRoot, err := other.StateRoot()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if otherRoot != after {
		t.Error("identical state must produce identical roots")
	}
}

type stubReader struct {
	accounts map[types.Address]*Account
	storage  map[types.Address]map[types.Hash]types.Hash
	code     map[types.Address][]byte
	reads    int
}

func (r *stubReader) Account(addr types.Address) (*Account, error) {
	r.reads++
	return r.accounts[addr], nil
}

func (r *stubReader) Code(addr types.Address) ([]byte, error) {
	return r.code[addr], nil
}

func (r *stubReader) Storage(addr types.Address, key types.Hash) (types.Hash, error) {
	return r.storage[addr][key], nil
}

func TestForkStoreFallsBackToBase(t *testing.T) {
	base := &stubReader{
		accounts: map[types.Address]*Account{
			addrA: {Nonce: 9, Balance: big.NewInt(1234), CodeHash: types.EmptyCodeHash},
		},
		storage: map[types.Address]map[types.Hash]types.Hash{
			addrA: {slot1: {0xee}},
		},
	}
	rootSeq := byte(0)
	store := NewForkStore(base, func() types.Hash {
		rootSeq++
		return types.Hash{rootSeq}
	})

	db := New(store)
	if got := db.GetBalance(addrA); got.Int64() != 1234 {
		t.Errorf("base balance = %s", got)
	}
	if db.GetNonce(addrA) != 9 {
		t.Errorf("base nonce = %d", db.GetNonce(addrA))
	}
	if got := db.GetState(addrA, slot1); got != (types.Hash{0xee}) {
		t.Errorf("base storage = %x", got)
	}

	// Local writes shadow the base.
	commitBalance(t, store, addrA, 1)
	if got := New(store).GetBalance(addrA); got.Int64() != 1235 {
		t.Errorf("shadowed balance = %s", got)
	}
}

func TestForkStoreFabricatedRoots(t *testing.T) {
	rootSeq := byte(0)
	store := NewForkStore(EmptyReader(), func() types.Hash {
		rootSeq++
		return types.Hash{rootSeq}
	})
	first, err := store.StateRoot()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	commitBalance(t, store, addrA, 1)
	second, err := store.StateRoot()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if first == second {
		t.Error("fork store must fabricate a new root per commit")
	}
}
