package vm_test

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
	"github.com/devchain-eth/devchain/crypto"
	"github.com/devchain-eth/devchain/state"
)

var (
	origin   = types.HexToAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	codeAddr = types.HexToAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3")
)

func testRules() vm.Rules {
	return vm.Rules{
		ChainID:          big.NewInt(31337),
		IsHomestead:      true,
		IsEIP150:         true,
		IsEIP155:         true,
		IsEIP158:         true,
		IsByzantium:      true,
		IsConstantinople: true,
		IsPetersburg:     true,
		IsIstanbul:       true,
		IsBerlin:         true,
		IsLondon:         true,
		IsMerge:          true,
		IsShanghai:       true,
		IsCancun:         true,
		IsPrague:         true,
	}
}

func newTestEVM(t *testing.T, cfg vm.Config) (*vm.EVM, *state.StateDB) {
	t.Helper()
	db := state.New(state.EmptyReader())
	blockCtx := vm.BlockContext{
		CanTransfer: func(sdb vm.StateDB, addr types.Address, amount *big.Int) bool {
			return sdb.GetBalance(addr).Cmp(amount) >= 0
		},
		Transfer: func(sdb vm.StateDB, from, to types.Address, amount *big.Int) {
			if amount.Sign() == 0 {
				return
			}
			sdb.SubBalance(from, amount)
			sdb.AddBalance(to, amount)
		},
		GetHash:     func(uint64) types.Hash { return types.Hash{} },
		Coinbase:    types.HexToAddress("0xc014ba5e00000000000000000000000000000000"),
		GasLimit:    30_000_000,
		BlockNumber: big.NewInt(1),
		Time:        1_700_000_000,
		Difficulty:  new(big.Int),
		BaseFee:     big.NewInt(1_000_000_000),
	}
	txCtx := vm.TxContext{Origin: origin, GasPrice: big.NewInt(1_000_000_000)}
	return vm.NewEVM(blockCtx, txCtx, db, testRules(), cfg), db
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func TestCallReturnsValue(t *testing.T) {
	evm, db := newTestEVM(t, vm.Config{})
	// PUSH1 0x2a PUSH1 0x00 MSTORE PUSH1 0x20 PUSH1 0x00 RETURN
	db.SetCode(codeAddr, mustHex(t, "602a60005260206000f3"))

	caller := vm.NewContract(origin, origin, uint256.NewInt(0), 0)
	ret, left, err := evm.Call(caller, codeAddr, nil, 100_000, uint256.NewInt(0))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(ret) != 32 || ret[31] != 0x2a {
		t.Errorf("return data = %x", ret)
	}
	if left >= 100_000 || left == 0 {
		t.Errorf("leftover gas = %d", left)
	}
}

func TestCallRevertRestoresState(t *testing.T) {
	evm, db := newTestEVM(t, vm.Config{})
	slot := types.Hash{31: 0x01}
	// PUSH1 0x01 PUSH1 0x01 SSTORE, then
	// PUSH1 0x2a PUSH1 0x00 MSTORE PUSH1 0x20 PUSH1 0x00 REVERT
	db.SetCode(codeAddr, mustHex(t, "6001600155602a60005260206000fd"))

	caller := vm.NewContract(origin, origin, uint256.NewInt(0), 0)
	ret, left, err := evm.Call(caller, codeAddr, nil, 100_000, uint256.NewInt(0))
	if err != vm.ErrExecutionReverted {
		t.Fatalf("err = %v, want ErrExecutionReverted", err)
	}
	if len(ret) != 32 || ret[31] != 0x2a {
		t.Errorf("revert data = %x", ret)
	}
	// Reverts refund the remaining gas instead of consuming it all.
	if left == 0 {
		t.Error("revert consumed all gas")
	}
	if got := db.GetState(codeAddr, slot); got != (types.Hash{}) {
		t.Errorf("storage write survived revert: %x", got)
	}
}

func TestCallOutOfGas(t *testing.T) {
	evm, db := newTestEVM(t, vm.Config{})
	db.SetCode(codeAddr, mustHex(t, "602a60005260206000f3"))

	caller := vm.NewContract(origin, origin, uint256.NewInt(0), 0)
	_, left, err := evm.Call(caller, codeAddr, nil, 5, uint256.NewInt(0))
	if err != vm.ErrOutOfGas {
		t.Fatalf("err = %v, want ErrOutOfGas", err)
	}
	if left != 0 {
		t.Errorf("leftover gas = %d, want 0", left)
	}
}

func TestCallStoresValue(t *testing.T) {
	evm, db := newTestEVM(t, vm.Config{})
	slot := types.Hash{31: 0x01}
	// PUSH1 0x2a PUSH1 0x01 SSTORE STOP
	db.SetCode(codeAddr, mustHex(t, "602a60015500"))

	caller := vm.NewContract(origin, origin, uint256.NewInt(0), 0)
	if _, _, err := evm.Call(caller, codeAddr, nil, 100_000, uint256.NewInt(0)); err != nil {
		t.Fatalf("Call: %v", err)
	}
	want := types.Hash{31: 0x2a}
	if got := db.GetState(codeAddr, slot); got != want {
		t.Errorf("slot = %x, want %x", got, want)
	}
}

func TestCallTransfersValue(t *testing.T) {
	evm, db := newTestEVM(t, vm.Config{})
	db.AddBalance(origin, big.NewInt(1000))
	dest := types.HexToAddress("0x000000000000000000000000000000000000dead")

	caller := vm.NewContract(origin, origin, uint256.NewInt(0), 0)
	if _, _, err := evm.Call(caller, dest, nil, 50_000, uint256.NewInt(300)); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got := db.GetBalance(dest); got.Int64() != 300 {
		t.Errorf("recipient balance = %v", got)
	}
	if got := db.GetBalance(origin); got.Int64() != 700 {
		t.Errorf("sender balance = %v", got)
	}

	_, left, err := evm.Call(caller, dest, nil, 50_000, uint256.NewInt(10_000))
	if err != vm.ErrInsufficientBalance {
		t.Fatalf("overdraft err = %v", err)
	}
	if left != 50_000 {
		t.Errorf("overdraft must not consume gas, left = %d", left)
	}
}

func TestIdentityPrecompile(t *testing.T) {
	evm, _ := newTestEVM(t, vm.Config{})
	identity := types.HexToAddress("0x0000000000000000000000000000000000000004")
	input := []byte{0x01, 0x02, 0x03, 0x04}

	caller := vm.NewContract(origin, origin, uint256.NewInt(0), 0)
	ret, left, err := evm.Call(caller, identity, input, 1_000, uint256.NewInt(0))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !bytes.Equal(ret, input) {
		t.Errorf("identity output = %x", ret)
	}
	// 15 base + 3 per word.
	if used := 1_000 - left; used != 18 {
		t.Errorf("identity gas = %d, want 18", used)
	}
}

func TestSha256Precompile(t *testing.T) {
	evm, _ := newTestEVM(t, vm.Config{})
	sha := types.HexToAddress("0x0000000000000000000000000000000000000002")

	caller := vm.NewContract(origin, origin, uint256.NewInt(0), 0)
	ret, _, err := evm.Call(caller, sha, []byte("abc"), 1_000, uint256.NewInt(0))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	want := mustHex(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
	if !bytes.Equal(ret, want) {
		t.Errorf("sha256(abc) = %x", ret)
	}
}

func TestConsoleCallIntercepted(t *testing.T) {
	var captured [][]byte
	evm, _ := newTestEVM(t, vm.Config{
		ConsoleSink: func(input []byte) { captured = append(captured, input) },
	})

	caller := vm.NewContract(origin, origin, uint256.NewInt(0), 0)
	input := []byte{0x41, 0x30, 0x4f, 0xac}
	ret, left, err := evm.Call(caller, vm.ConsoleAddress, input, 10_000, uint256.NewInt(0))
	if err != nil || ret != nil {
		t.Fatalf("console call: ret %x err %v", ret, err)
	}
	if left != 10_000 {
		t.Errorf("console call consumed gas: left = %d", left)
	}
	if len(captured) != 1 || !bytes.Equal(captured[0], input) {
		t.Errorf("sink captured %x", captured)
	}
}

func TestCallOverride(t *testing.T) {
	mocked := types.HexToAddress("0x00000000000000000000000000000000000000aa")
	canned := []byte{0xca, 0xfe}
	evm, _ := newTestEVM(t, vm.Config{
		CallOverride: func(to types.Address, input []byte) *vm.CallOverrideResult {
			if to != mocked {
				return nil
			}
			if len(input) > 0 && input[0] == 0xff {
				return &vm.CallOverrideResult{Output: canned, ShouldRevert: true}
			}
			return &vm.CallOverrideResult{Output: canned}
		},
	})

	caller := vm.NewContract(origin, origin, uint256.NewInt(0), 0)
	ret, _, err := evm.Call(caller, mocked, nil, 10_000, uint256.NewInt(0))
	if err != nil || !bytes.Equal(ret, canned) {
		t.Errorf("override call: ret %x err %v", ret, err)
	}

	ret, _, err = evm.Call(caller, mocked, []byte{0xff}, 10_000, uint256.NewInt(0))
	if err != vm.ErrExecutionReverted || !bytes.Equal(ret, canned) {
		t.Errorf("reverting override: ret %x err %v", ret, err)
	}

	// Unmocked addresses go through normal execution.
	ret, _, err = evm.Call(caller, codeAddr, nil, 10_000, uint256.NewInt(0))
	if err != nil || ret != nil {
		t.Errorf("plain call: ret %x err %v", ret, err)
	}
}

func TestCreateDeploysCode(t *testing.T) {
	evm, db := newTestEVM(t, vm.Config{})
	// Init code stores a single STOP byte and returns it:
	// PUSH1 0x00 PUSH1 0x00 MSTORE8 PUSH1 0x01 PUSH1 0x00 RETURN
	initCode := mustHex(t, "600060005360016000f3")

	caller := vm.NewContract(origin, origin, uint256.NewInt(0), 0)
	wantAddr := types.CreateAddress(origin, 0)
	ret, addr, left, err := evm.Create(caller, initCode, 200_000, uint256.NewInt(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if addr != wantAddr {
		t.Errorf("contract address = %s, want %s", addr.Hex(), wantAddr.Hex())
	}
	if !bytes.Equal(ret, []byte{0x00}) {
		t.Errorf("init code returned %x", ret)
	}
	if !bytes.Equal(db.GetCode(addr), []byte{0x00}) {
		t.Errorf("deployed code = %x", db.GetCode(addr))
	}
	if db.GetNonce(origin) != 1 {
		t.Errorf("creator nonce = %d, want 1", db.GetNonce(origin))
	}
	if db.GetNonce(addr) != 1 {
		t.Errorf("new contract nonce = %d, want 1", db.GetNonce(addr))
	}
	if left == 0 {
		t.Error("create consumed all gas")
	}
}

func TestCreate2Address(t *testing.T) {
	evm, db := newTestEVM(t, vm.Config{})
	initCode := mustHex(t, "600060005360016000f3")
	salt := uint256.NewInt(7)

	caller := vm.NewContract(origin, origin, uint256.NewInt(0), 0)
	_, addr, _, err := evm.Create2(caller, initCode, 200_000, uint256.NewInt(0), salt)
	if err != nil {
		t.Fatalf("Create2: %v", err)
	}
	initHash := crypto.Keccak256Array(initCode)
	want := types.CreateAddress2(origin, types.Hash(salt.Bytes32()), initHash[:])
	if addr != want {
		t.Errorf("create2 address = %s, want %s", addr.Hex(), want.Hex())
	}
	if !bytes.Equal(db.GetCode(addr), []byte{0x00}) {
		t.Errorf("deployed code = %x", db.GetCode(addr))
	}
}

func TestCreateCollision(t *testing.T) {
	evm, db := newTestEVM(t, vm.Config{})
	initCode := mustHex(t, "600060005360016000f3")

	// Occupy the target address with a nonzero nonce.
	target := types.CreateAddress(origin, 0)
	db.SetNonce(target, 1)

	caller := vm.NewContract(origin, origin, uint256.NewInt(0), 0)
	_, _, _, err := evm.Create(caller, initCode, 200_000, uint256.NewInt(0))
	if err != vm.ErrContractAddressCollision {
		t.Errorf("err = %v, want ErrContractAddressCollision", err)
	}
}
