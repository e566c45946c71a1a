package state

import (
	"math/big"
	"testing"

	"github.com/devchain-eth/devchain/core/types"
)

var (
	addrA = types.HexToAddress("0x1111111111111111111111111111111111111111")
	addrB = types.HexToAddress("0x2222222222222222222222222222222222222222")
	slot1 = types.Hash{0x01}
	slot2 = types.Hash{0x02}
)

func TestBalanceNonceCode(t *testing.T) {
	db := New(EmptyReader())

	if db.GetBalance(addrA).Sign() != 0 {
		t.Error("fresh account balance not zero")
	}
	db.AddBalance(addrA, big.NewInt(100))
	db.SubBalance(addrA, big.NewInt(30))
	if got := db.GetBalance(addrA); got.Int64() != 70 {
		t.Errorf("balance = %s, want 70", got)
	}

	db.SetNonce(addrA, 5)
	if db.GetNonce(addrA) != 5 {
		t.Errorf("nonce = %d, want 5", db.GetNonce(addrA))
	}

	code := []byte{0x60, 0x00, 0x60, 0x00}
	db.SetCode(addrB, code)
	if db.GetCodeSize(addrB) != len(code) {
		t.Errorf("code size = %d", db.GetCodeSize(addrB))
	}
	if db.GetCodeHash(addrB) == (types.Hash{}) {
		t.Error("code hash not set")
	}
}

func TestStorageCommittedVsDirty(t *testing.T) {
	store := NewLocalStore()
	db := New(store)
	db.SetState(addrA, slot1, types.Hash{0xaa})
	db.Finalise()
	store.Commit(db.BuildDiff())

	db = New(store)
	if got := db.GetCommittedState(addrA, slot1); got != (types.Hash{0xaa}) {
		t.Fatalf("committed slot = %x", got)
	}
	db.SetState(addrA, slot1, types.Hash{0xbb})
	if got := db.GetState(addrA, slot1); got != (types.Hash{0xbb}) {
		t.Errorf("dirty slot = %x", got)
	}
	if got := db.GetCommittedState(addrA, slot1); got != (types.Hash{0xaa}) {
		t.Errorf("committed slot changed mid-transaction: %x", got)
	}
}

func TestSnapshotRevert(t *testing.T) {
	db := New(EmptyReader())
	db.AddBalance(addrA, big.NewInt(50))
	db.SetState(addrA, slot1, types.Hash{0x01})

	snap := db.Snapshot()
	db.AddBalance(addrA, big.NewInt(25))
	db.SetNonce(addrA, 3)
	db.SetState(addrA, slot1, types.Hash{0x02})
	db.SetState(addrA, slot2, types.Hash{0x03})
	db.AddLog(&types.Log{Address: addrA})

	db.RevertToSnapshot(snap)

	if got := db.GetBalance(addrA); got.Int64() != 50 {
		t.Errorf("balance after revert = %s, want 50", got)
	}
	if db.GetNonce(addrA) != 0 {
		t.Errorf("nonce after revert = %d", db.GetNonce(addrA))
	}
	if got := db.GetState(addrA, slot1); got != (types.Hash{0x01}) {
		t.Errorf("slot1 after revert = %x", got)
	}
	if got := db.GetState(addrA, slot2); got != (types.Hash{}) {
		t.Errorf("slot2 after revert = %x", got)
	}
	if len(db.Logs()) != 0 {
		t.Errorf("logs after revert = %d", len(db.Logs()))
	}
}

func TestNestedSnapshots(t *testing.T) {
	db := New(EmptyReader())
	db.AddBalance(addrA, big.NewInt(1))
	outer := db.Snapshot()
	db.AddBalance(addrA, big.NewInt(10))
	inner := db.Snapshot()
	db.AddBalance(addrA, big.NewInt(100))

	db.RevertToSnapshot(inner)
	if got := db.GetBalance(addrA); got.Int64() != 11 {
		t.Errorf("after inner revert = %s, want 11", got)
	}
	db.RevertToSnapshot(outer)
	if got := db.GetBalance(addrA); got.Int64() != 1 {
		t.Errorf("after outer revert = %s, want 1", got)
	}
}

func TestBuildDiffAndCommit(t *testing.T) {
	store := NewLocalStore()
	db := New(store)
	db.AddBalance(addrA, big.NewInt(42))
	db.SetNonce(addrA, 1)
	db.SetState(addrA, slot1, types.Hash{0xaa})
	db.Finalise()

	diff := db.BuildDiff()
	if _, ok := diff[addrA]; !ok {
		t.Fatal("diff missing touched account")
	}
	if _, ok := diff[addrB]; ok {
		t.Error("diff contains untouched account")
	}
	store.Commit(diff)

	fresh := New(store)
	if got := fresh.GetBalance(addrA); got.Int64() != 42 {
		t.Errorf("balance after commit = %s", got)
	}
	if fresh.GetNonce(addrA) != 1 {
		t.Errorf("nonce after commit = %d", fresh.GetNonce(addrA))
	}
	if got := fresh.GetState(addrA, slot1); got != (types.Hash{0xaa}) {
		t.Errorf("storage after commit = %x", got)
	}
}

func TestSelfDestruct(t *testing.T) {
	store := NewLocalStore()
	db := New(store)
	db.AddBalance(addrA, big.NewInt(10))
	db.SetCode(addrA, []byte{0xfe})
	db.Finalise()
	store.Commit(db.BuildDiff())

	db = New(store)
	db.SelfDestruct(addrA)
	if !db.HasSelfDestructed(addrA) {
		t.Fatal("HasSelfDestructed = false")
	}
	if db.GetBalance(addrA).Sign() != 0 {
		t.Error("self-destruct must clear the balance")
	}
	db.Finalise()
	store.Commit(db.BuildDiff())

	fresh := New(store)
	if fresh.Exist(addrA) {
		t.Error("destructed account still exists after commit")
	}
}

func TestSelfDestructDropsEarlierBlockWrites(t *testing.T) {
	store := NewLocalStore()
	db := New(store)
	db.SetCode(addrA, []byte{0xfe})
	store.Commit(db.BuildDiff())

	// One transaction writes a slot, a later one in the same block
	// destroys the account. The write must not survive destruction.
	db = New(store)
	db.SetTxContext(types.Hash{0x01}, 0)
	db.SetState(addrA, slot1, types.Hash{0xaa})
	db.Finalise()

	db.SetTxContext(types.Hash{0x02}, 1)
	db.SelfDestruct(addrA)
	db.Finalise()

	if got := db.GetState(addrA, slot1); got != (types.Hash{}) {
		t.Errorf("slot after destruction = %x, want empty", got)
	}

	store.Commit(db.BuildDiff())
	fresh := New(store)
	if got := fresh.GetCommittedState(addrA, slot1); got != (types.Hash{}) {
		t.Errorf("committed slot after destruction = %x, want empty", got)
	}
}

func TestTransientStorageClearedBetweenTxs(t *testing.T) {
	db := New(EmptyReader())
	db.SetTxContext(types.Hash{0x01}, 0)
	db.SetTransientState(addrA, slot1, types.Hash{0x07})
	if got := db.GetTransientState(addrA, slot1); got != (types.Hash{0x07}) {
		t.Fatalf("transient = %x", got)
	}
	db.SetTxContext(types.Hash{0x02}, 1)
	if got := db.GetTransientState(addrA, slot1); got != (types.Hash{}) {
		t.Errorf("transient survived into the next transaction: %x", got)
	}
}

func TestAccessList(t *testing.T) {
	db := New(EmptyReader())
	db.Prepare(addrA, addrB, nil, nil, types.AccessList{
		{Address: addrB, StorageKeys: []types.Hash{slot1}},
	})
	if !db.AddressInAccessList(addrA) {
		t.Error("sender must be warm")
	}
	if !db.AddressInAccessList(addrB) {
		t.Error("listed address must be warm")
	}
	if _, slotOk := db.SlotInAccessList(addrB, slot1); !slotOk {
		t.Error("listed slot must be warm")
	}
	if _, slotOk := db.SlotInAccessList(addrB, slot2); slotOk {
		t.Error("unlisted slot must be cold")
	}

	snap := db.Snapshot()
	db.AddSlotToAccessList(addrB, slot2)
	db.RevertToSnapshot(snap)
	if _, slotOk := db.SlotInAccessList(addrB, slot2); slotOk {
		t.Error("access list change must revert with the snapshot")
	}
}

func TestRefundCounter(t *testing.T) {
	db := New(EmptyReader())
	db.AddRefund(100)
	snap := db.Snapshot()
	db.AddRefund(50)
	db.SubRefund(30)
	if db.GetRefund() != 120 {
		t.Errorf("refund = %d, want 120", db.GetRefund())
	}
	db.RevertToSnapshot(snap)
	if db.GetRefund() != 100 {
		t.Errorf("refund after revert = %d, want 100", db.GetRefund())
	}
}

func TestTxLogsPartition(t *testing.T) {
	db := New(EmptyReader())
	tx1 := types.Hash{0x01}
	tx2 := types.Hash{0x02}

	db.SetTxContext(tx1, 0)
	db.AddLog(&types.Log{Address: addrA})
	db.SetTxContext(tx2, 1)
	db.AddLog(&types.Log{Address: addrB})
	db.AddLog(&types.Log{Address: addrB})

	if n := len(db.TxLogs(tx1)); n != 1 {
		t.Errorf("tx1 logs = %d, want 1", n)
	}
	if n := len(db.TxLogs(tx2)); n != 2 {
		t.Errorf("tx2 logs = %d, want 2", n)
	}
	if n := len(db.Logs()); n != 3 {
		t.Errorf("total logs = %d, want 3", n)
	}
}
