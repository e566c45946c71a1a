package mempool

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/devchain-eth/devchain/core"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/crypto"
)

var (
	blockGasLimit = uint64(30_000_000)
	headNumber    = big.NewInt(1)
	headTime      = uint64(1_700_000_000)
)

type fakeState struct {
	nonces   map[types.Address]uint64
	balances map[types.Address]*big.Int
	code     map[types.Address][]byte
}

func newFakeState() *fakeState {
	return &fakeState{
		nonces:   make(map[types.Address]uint64),
		balances: make(map[types.Address]*big.Int),
		code:     make(map[types.Address][]byte),
	}
}

func (s *fakeState) GetNonce(addr types.Address) uint64 { return s.nonces[addr] }

func (s *fakeState) GetBalance(addr types.Address) *big.Int {
	if b, ok := s.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (s *fakeState) GetCode(addr types.Address) []byte { return s.code[addr] }

type account struct {
	key  *ecdsa.PrivateKey
	addr types.Address
}

func newAccount(t *testing.T, hexkey string) account {
	t.Helper()
	key, err := crypto.HexToECDSA(hexkey)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	return account{key: key, addr: types.Address(crypto.PubkeyToAddress(key.PublicKey))}
}

var (
	keyHexA = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	keyHexB = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

func newTestPool(t *testing.T) (*Pool, *fakeState, account, account) {
	t.Helper()
	config := core.DevChainConfig(31337)
	pool := New(Config{ChainConfig: config})
	view := newFakeState()
	a := newAccount(t, keyHexA)
	b := newAccount(t, keyHexB)
	ether := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	view.balances[a.addr] = new(big.Int).Mul(big.NewInt(100), ether)
	view.balances[b.addr] = new(big.Int).Mul(big.NewInt(100), ether)
	return pool, view, a, b
}

func signedTransfer(t *testing.T, acct account, nonce uint64, tip, feeCap int64) *types.Transaction {
	t.Helper()
	to := types.HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(31337),
		Nonce:     nonce,
		GasTipCap: big.NewInt(tip),
		GasFeeCap: big.NewInt(feeCap),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(1),
	}), types.LatestSigner(big.NewInt(31337)), acct.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tx
}

func mustAdd(t *testing.T, pool *Pool, view StateView, tx *types.Transaction) {
	t.Helper()
	if err := pool.Add(tx, view, headNumber, headTime, blockGasLimit); err != nil {
		t.Fatalf("add nonce %d: %v", tx.Nonce(), err)
	}
}

func TestAddPendingAndQueued(t *testing.T) {
	pool, view, a, _ := newTestPool(t)

	tx0 := signedTransfer(t, a, 0, 1, 2_000_000_000)
	tx2 := signedTransfer(t, a, 2, 1, 2_000_000_000)
	mustAdd(t, pool, view, tx0)
	mustAdd(t, pool, view, tx2)

	if n := len(pool.Pending()[a.addr]); n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}
	if n := len(pool.Queued()[a.addr]); n != 1 {
		t.Errorf("queued = %d, want 1", n)
	}

	// Closing the gap promotes the queued transaction.
	tx1 := signedTransfer(t, a, 1, 1, 2_000_000_000)
	mustAdd(t, pool, view, tx1)
	pending := pool.Pending()[a.addr]
	if len(pending) != 3 {
		t.Fatalf("pending after promote = %d, want 3", len(pending))
	}
	for i, tx := range pending {
		if tx.Nonce() != uint64(i) {
			t.Errorf("pending[%d] nonce = %d", i, tx.Nonce())
		}
	}
}

func TestPendingNoncesContiguous(t *testing.T) {
	pool, view, a, _ := newTestPool(t)
	for _, nonce := range []uint64{0, 1, 2, 3} {
		mustAdd(t, pool, view, signedTransfer(t, a, nonce, 1, 2_000_000_000))
	}

	// Dropping a middle nonce demotes everything behind it.
	target := pool.Pending()[a.addr][1]
	if !pool.Remove(target.Hash()) {
		t.Fatal("remove failed")
	}
	pending := pool.Pending()[a.addr]
	if len(pending) != 1 || pending[0].Nonce() != 0 {
		t.Fatalf("pending after drop = %v", pending)
	}
	if n := len(pool.Queued()[a.addr]); n != 2 {
		t.Errorf("queued after drop = %d, want 2", n)
	}
}

func TestAddRejections(t *testing.T) {
	pool, view, a, _ := newTestPool(t)

	tx := signedTransfer(t, a, 0, 1, 2_000_000_000)
	mustAdd(t, pool, view, tx)
	if err := pool.Add(tx, view, headNumber, headTime, blockGasLimit); !errors.Is(err, ErrAlreadyKnown) {
		t.Errorf("duplicate err = %v, want ErrAlreadyKnown", err)
	}

	// Nonce below the account's state nonce.
	view.nonces[a.addr] = 5
	if err := pool.Add(signedTransfer(t, a, 1, 1, 2_000_000_000), view, headNumber, headTime, blockGasLimit); !errors.Is(err, core.ErrNonceTooLow) {
		t.Errorf("stale nonce err = %v, want ErrNonceTooLow", err)
	}
	view.nonces[a.addr] = 0

	// Gas above the block limit.
	to := types.HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	huge, _ := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID: big.NewInt(31337), Nonce: 1,
		GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(2_000_000_000),
		Gas: blockGasLimit + 1, To: &to, Value: big.NewInt(1),
	}), types.LatestSigner(big.NewInt(31337)), a.key)
	if err := pool.Add(huge, view, headNumber, headTime, blockGasLimit); !errors.Is(err, ErrGasLimit) {
		t.Errorf("oversized err = %v, want ErrGasLimit", err)
	}

	// Tip above fee cap.
	inverted, _ := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID: big.NewInt(31337), Nonce: 1,
		GasTipCap: big.NewInt(10), GasFeeCap: big.NewInt(5),
		Gas: 21000, To: &to, Value: big.NewInt(1),
	}), types.LatestSigner(big.NewInt(31337)), a.key)
	if err := pool.Add(inverted, view, headNumber, headTime, blockGasLimit); !errors.Is(err, ErrTipAboveFeeCap) {
		t.Errorf("inverted fees err = %v, want ErrTipAboveFeeCap", err)
	}

	// Balance below cost.
	poor := newAccount(t, "5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a")
	if err := pool.Add(signedTransfer(t, poor, 0, 1, 2_000_000_000), view, headNumber, headTime, blockGasLimit); !errors.Is(err, core.ErrInsufficientFunds) {
		t.Errorf("poor sender err = %v, want ErrInsufficientFunds", err)
	}

	// Gas below the intrinsic cost.
	underGas, _ := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID: big.NewInt(31337), Nonce: 1,
		GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(2_000_000_000),
		Gas: 20000, To: &to, Value: big.NewInt(1),
	}), types.LatestSigner(big.NewInt(31337)), a.key)
	if err := pool.Add(underGas, view, headNumber, headTime, blockGasLimit); !errors.Is(err, core.ErrIntrinsicGas) {
		t.Errorf("under-gassed err = %v, want ErrIntrinsicGas", err)
	}
}

func TestDepositRejected(t *testing.T) {
	pool, view, _, _ := newTestPool(t)
	to := types.HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	dep := types.NewTx(&types.DepositTx{
		From:  types.HexToAddress("0x1111111111111111111111111111111111111111"),
		To:    &to,
		Value: big.NewInt(1),
		Gas:   21000,
	})
	if err := pool.Add(dep, view, headNumber, headTime, blockGasLimit); !errors.Is(err, ErrDepositNotAllowed) {
		t.Errorf("deposit err = %v, want ErrDepositNotAllowed", err)
	}
}

func TestReplacement(t *testing.T) {
	pool, view, a, _ := newTestPool(t)
	mustAdd(t, pool, view, signedTransfer(t, a, 0, 1_000_000_000, 2_000_000_000))

	// Under a 10% bump the replacement is rejected.
	cheap := signedTransfer(t, a, 0, 1_050_000_000, 2_100_000_000)
	if err := pool.Add(cheap, view, headNumber, headTime, blockGasLimit); !errors.Is(err, ErrReplaceUnderpriced) {
		t.Errorf("underpriced err = %v, want ErrReplaceUnderpriced", err)
	}

	bumped := signedTransfer(t, a, 0, 1_100_000_000, 2_200_000_000)
	mustAdd(t, pool, view, bumped)
	if pool.Len() != 1 {
		t.Errorf("pool len = %d, want 1", pool.Len())
	}
	if !pool.Has(bumped.Hash()) {
		t.Error("replacement not in pool")
	}
}

func TestMinGasPrice(t *testing.T) {
	pool, view, a, _ := newTestPool(t)
	pool.SetMinGasPrice(big.NewInt(3_000_000_000))

	if err := pool.Add(signedTransfer(t, a, 0, 1, 2_000_000_000), view, headNumber, headTime, blockGasLimit); err == nil {
		t.Error("below-floor transaction admitted")
	}
	mustAdd(t, pool, view, signedTransfer(t, a, 0, 1, 3_000_000_000))

	pool.SetMinGasPrice(nil)
	if pool.MinGasPrice() != nil {
		t.Error("floor not cleared")
	}
	mustAdd(t, pool, view, signedTransfer(t, a, 1, 1, 2_000_000_000))
}

func TestUpdateAfterMining(t *testing.T) {
	pool, view, a, _ := newTestPool(t)
	for _, nonce := range []uint64{0, 1, 2} {
		mustAdd(t, pool, view, signedTransfer(t, a, nonce, 1, 2_000_000_000))
	}

	// Nonces 0 and 1 mined.
	view.nonces[a.addr] = 2
	pool.Update(view)

	if pool.Len() != 1 {
		t.Fatalf("pool len = %d, want 1", pool.Len())
	}
	pending := pool.Pending()[a.addr]
	if len(pending) != 1 || pending[0].Nonce() != 2 {
		t.Errorf("pending after update = %v", pending)
	}
}

func TestOrderedPending(t *testing.T) {
	pool, view, a, b := newTestPool(t)
	// Account A pays a lower tip than account B.
	mustAdd(t, pool, view, signedTransfer(t, a, 0, 1_000_000_000, 5_000_000_000))
	mustAdd(t, pool, view, signedTransfer(t, a, 1, 1_000_000_000, 5_000_000_000))
	mustAdd(t, pool, view, signedTransfer(t, b, 0, 2_000_000_000, 5_000_000_000))

	set := pool.OrderedPending(big.NewInt(1_000_000_000))

	var order []types.Address
	var nonces []uint64
	for tx := set.Peek(); tx != nil; tx = set.Peek() {
		from, _ := types.Sender(types.LatestSigner(big.NewInt(31337)), tx)
		order = append(order, from)
		nonces = append(nonces, tx.Nonce())
		set.Shift()
	}
	if len(order) != 3 {
		t.Fatalf("iterated %d txs, want 3", len(order))
	}
	if order[0] != b.addr {
		t.Errorf("first tx from %s, want the higher tip account", order[0].Hex())
	}
	if order[1] != a.addr || order[2] != a.addr || nonces[1] != 0 || nonces[2] != 1 {
		t.Errorf("account A not in nonce order: %v %v", order[1:], nonces[1:])
	}
}

func TestOrderedPendingExcludesUnderpriced(t *testing.T) {
	pool, view, a, _ := newTestPool(t)
	mustAdd(t, pool, view, signedTransfer(t, a, 0, 1, 2_000_000_000))
	mustAdd(t, pool, view, signedTransfer(t, a, 1, 1, 9_000_000_000))

	// The head's fee cap is below base fee, so its account is excluded
	// entirely to preserve nonce order.
	set := pool.OrderedPending(big.NewInt(5_000_000_000))
	if tx := set.Peek(); tx != nil {
		t.Errorf("peek = nonce %d, want empty set", tx.Nonce())
	}
}

func TestOrderedPendingPop(t *testing.T) {
	pool, view, a, b := newTestPool(t)
	mustAdd(t, pool, view, signedTransfer(t, a, 0, 2_000_000_000, 5_000_000_000))
	mustAdd(t, pool, view, signedTransfer(t, a, 1, 2_000_000_000, 5_000_000_000))
	mustAdd(t, pool, view, signedTransfer(t, b, 0, 1_000_000_000, 5_000_000_000))

	set := pool.OrderedPending(big.NewInt(1_000_000_000))
	// Dropping A's head must drop A's later nonces too.
	set.Pop()
	tx := set.Peek()
	if tx == nil {
		t.Fatal("set empty after pop")
	}
	from, _ := types.Sender(types.LatestSigner(big.NewInt(31337)), tx)
	if from != b.addr {
		t.Errorf("next tx from %s, want account B", from.Hex())
	}
	set.Shift()
	if set.Peek() != nil {
		t.Error("set not empty after consuming B")
	}
}

func TestCopyRestore(t *testing.T) {
	pool, view, a, _ := newTestPool(t)
	mustAdd(t, pool, view, signedTransfer(t, a, 0, 1, 2_000_000_000))
	snapshot := pool.Copy()

	mustAdd(t, pool, view, signedTransfer(t, a, 1, 1, 2_000_000_000))
	if pool.Len() != 2 {
		t.Fatalf("len = %d", pool.Len())
	}

	pool.Restore(snapshot)
	if pool.Len() != 1 {
		t.Errorf("len after restore = %d, want 1", pool.Len())
	}
	pending := pool.Pending()[a.addr]
	if len(pending) != 1 || pending[0].Nonce() != 0 {
		t.Errorf("pending after restore = %v", pending)
	}
}

func TestClear(t *testing.T) {
	pool, view, a, _ := newTestPool(t)
	mustAdd(t, pool, view, signedTransfer(t, a, 0, 1, 2_000_000_000))
	pool.Clear()
	if pool.Len() != 0 || len(pool.PendingHashes()) != 0 {
		t.Error("pool not empty after Clear")
	}
}
