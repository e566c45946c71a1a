package provider

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
	"github.com/devchain-eth/devchain/crypto"
	"github.com/devchain-eth/devchain/rpc"
)

const testGenesisTime = 1_700_000_000

var (
	account0  = types.HexToAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	account1  = types.HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	recipient = types.HexToAddress("0x000000000000000000000000000000000000dead")
)

func newTestProvider(t *testing.T, mutate func(*Config)) (*Provider, *MockClock) {
	t.Helper()
	clock := NewMockClock(testGenesisTime)
	cfg := Config{
		AutoMine:         true,
		GenesisTimestamp: testGenesisTime,
		Clock:            clock,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(p.Close)
	return p, clock
}

// call invokes one JSON-RPC method with positional params and fails the
// test on an error response.
func call(t *testing.T, p *Provider, method string, params ...interface{}) interface{} {
	t.Helper()
	result, rpcErr := rawCall(t, p, method, params...)
	if rpcErr != nil {
		t.Fatalf("%s: %v", method, rpcErr)
	}
	return result
}

func rawCall(t *testing.T, p *Provider, method string, params ...interface{}) (interface{}, *rpc.Error) {
	t.Helper()
	var raw json.RawMessage
	if len(params) > 0 {
		encoded, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshaling params for %s: %v", method, err)
		}
		raw = encoded
	}
	return p.Handle(context.Background(), method, raw)
}

func sendTransfer(t *testing.T, p *Provider, from, to types.Address, value string) types.Hash {
	t.Helper()
	result := call(t, p, "eth_sendTransaction", map[string]interface{}{
		"from":  from,
		"to":    to,
		"value": value,
		"gas":   "0x15f90",
	})
	hash, ok := result.(types.Hash)
	if !ok {
		t.Fatalf("eth_sendTransaction result = %T", result)
	}
	return hash
}

func headNumber(t *testing.T, p *Provider) uint64 {
	t.Helper()
	var n rpc.Uint64
	if err := n.UnmarshalText([]byte(call(t, p, "eth_blockNumber").(string))); err != nil {
		t.Fatalf("parsing head number: %v", err)
	}
	return uint64(n)
}

func blockByNumber(t *testing.T, p *Provider, tag string) *blockResult {
	t.Helper()
	result := call(t, p, "eth_getBlockByNumber", tag, false)
	block, ok := result.(*blockResult)
	if !ok {
		t.Fatalf("eth_getBlockByNumber(%s) result = %T", tag, result)
	}
	return block
}

func TestSessionBasics(t *testing.T) {
	p, _ := newTestProvider(t, nil)

	if got := call(t, p, "eth_chainId"); got != "0x7a69" {
		t.Errorf("eth_chainId = %v", got)
	}
	if got := call(t, p, "net_version"); got != "31337" {
		t.Errorf("net_version = %v", got)
	}
	if got := call(t, p, "web3_clientVersion"); got != ClientVersion {
		t.Errorf("web3_clientVersion = %v", got)
	}
	accounts := call(t, p, "eth_accounts").([]types.Address)
	if len(accounts) != 20 || accounts[0] != account0 {
		t.Errorf("eth_accounts = %d entries, first %s", len(accounts), accounts[0].Hex())
	}
	// Every dev account starts with the default balance.
	if got := call(t, p, "eth_getBalance", account0, "latest"); got != "0x21e19e0c9bab2400000" {
		t.Errorf("genesis balance = %v", got)
	}

	_, rpcErr := rawCall(t, p, "eth_noSuchMethod")
	if rpcErr == nil || rpcErr.Code != rpc.ErrCodeMethodNotFound {
		t.Errorf("unknown method error = %v", rpcErr)
	}
}

func TestSendTransactionMinesReceipt(t *testing.T) {
	p, _ := newTestProvider(t, nil)

	var heads []*blockResult
	p.SetSubscriptionCallback(func(id string, payload interface{}) {
		if block, ok := payload.(*blockResult); ok {
			heads = append(heads, block)
		}
	})
	call(t, p, "eth_subscribe", "newHeads")

	hash := sendTransfer(t, p, account0, recipient, "0x1")

	if got := headNumber(t, p); got != 1 {
		t.Fatalf("head = %d, want 1", got)
	}
	receipt, ok := call(t, p, "eth_getTransactionReceipt", hash).(*receiptResult)
	if !ok {
		t.Fatal("no receipt for mined transaction")
	}
	if receipt.Status != 1 {
		t.Errorf("status = %d, want 1", receipt.Status)
	}
	if receipt.GasUsed != 21000 {
		t.Errorf("gasUsed = %d, want 21000", receipt.GasUsed)
	}
	if receipt.BlockNumber != 1 || receipt.TransactionIndex != 0 {
		t.Errorf("inclusion = block %d index %d", receipt.BlockNumber, receipt.TransactionIndex)
	}
	if got := call(t, p, "eth_getBalance", recipient, "latest"); got != "0x1" {
		t.Errorf("recipient balance = %v", got)
	}
	if got := call(t, p, "eth_getTransactionCount", account0, "latest"); got != "0x1" {
		t.Errorf("sender nonce = %v", got)
	}

	if len(heads) != 1 {
		t.Fatalf("newHeads delivered %d blocks, want 1", len(heads))
	}
	if heads[0].Number.ToInt().Uint64() != 1 || *heads[0].Hash != receipt.BlockHash {
		t.Errorf("newHeads payload = number %v hash %v", heads[0].Number.ToInt(), heads[0].Hash)
	}
}

func TestEstimateGasDataFloor(t *testing.T) {
	p, _ := newTestProvider(t, nil)

	// A single nonzero calldata byte costs 21016 intrinsic gas but the
	// calldata floor lifts the charge to 21040.
	got := call(t, p, "eth_estimateGas", map[string]interface{}{
		"from": account0,
		"to":   recipient,
		"data": "0x11",
	})
	if got != "0x5230" {
		t.Fatalf("estimate = %v, want 0x5230", got)
	}

	hash := call(t, p, "eth_sendTransaction", map[string]interface{}{
		"from": account0,
		"to":   recipient,
		"data": "0x11",
		"gas":  "0x5230",
	}).(types.Hash)
	receipt := call(t, p, "eth_getTransactionReceipt", hash).(*receiptResult)
	if receipt.Status != 1 || receipt.GasUsed != 21040 {
		t.Errorf("receipt status %d gasUsed %d, want 1 and 21040", receipt.Status, receipt.GasUsed)
	}
}

func TestImpersonationWithoutAutomine(t *testing.T) {
	p, _ := newTestProvider(t, func(cfg *Config) { cfg.AutoMine = false })
	whale := types.HexToAddress("0x28c6c06298d514db089934071355e5743bf21d60")

	call(t, p, "hardhat_setBalance", whale, "0xde0b6b3a7640000")
	if got := call(t, p, "eth_getBalance", whale, "latest"); got != "0xde0b6b3a7640000" {
		t.Fatalf("whale balance = %v", got)
	}
	// The balance edit is an irregular head override, not a block.
	if got := headNumber(t, p); got != 0 {
		t.Fatalf("head = %d after setBalance, want 0", got)
	}

	// Without the key and without impersonation the send is refused.
	_, rpcErr := rawCall(t, p, "eth_sendTransaction", map[string]interface{}{
		"from": whale, "to": recipient, "value": "0x1", "gas": "0x5208",
	})
	if rpcErr == nil || !strings.Contains(rpcErr.Message, "unknown account") {
		t.Fatalf("unimpersonated send error = %v", rpcErr)
	}

	call(t, p, "hardhat_impersonateAccount", whale)
	hash := sendTransfer(t, p, whale, recipient, "0x1")
	if got := headNumber(t, p); got != 0 {
		t.Fatalf("head = %d with automine off, want 0", got)
	}

	pending := blockByNumber(t, p, "pending")
	if len(pending.Transactions) != 1 || pending.Transactions[0] != hash {
		t.Fatalf("pending block txs = %v", pending.Transactions)
	}

	if got := call(t, p, "hardhat_dropTransaction", hash); got != true {
		t.Fatal("dropTransaction did not find the pending transaction")
	}
	if pending := blockByNumber(t, p, "pending"); len(pending.Transactions) != 0 {
		t.Errorf("pending block still carries %d txs", len(pending.Transactions))
	}

	call(t, p, "evm_mine")
	head := blockByNumber(t, p, "latest")
	if head.Number.ToInt().Uint64() != 1 || len(head.Transactions) != 0 {
		t.Errorf("mined block number %v with %d txs, want empty block 1",
			head.Number.ToInt(), len(head.Transactions))
	}
}

func TestSnapshotRevert(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	genesisHash := *blockByNumber(t, p, "0x0").Hash

	snapID := call(t, p, "evm_snapshot")
	if snapID != "0x1" {
		t.Fatalf("snapshot id = %v", snapID)
	}

	hash := sendTransfer(t, p, account0, recipient, "0x1")
	if blockByNumber(t, p, "latest").ParentHash != genesisHash {
		t.Fatal("block 1 does not extend genesis")
	}

	if got := call(t, p, "evm_revert", snapID); got != true {
		t.Fatal("revert refused a live snapshot id")
	}
	if got := headNumber(t, p); got != 0 {
		t.Fatalf("head = %d after revert, want 0", got)
	}
	if got := call(t, p, "eth_getBalance", recipient, "latest"); got != "0x0" {
		t.Errorf("recipient balance = %v after revert", got)
	}
	if got := call(t, p, "eth_getTransactionCount", account0, "latest"); got != "0x0" {
		t.Errorf("sender nonce = %v after revert", got)
	}
	if got, _ := rawCall(t, p, "eth_getTransactionByHash", hash); got != nil {
		t.Errorf("reverted transaction still resolvable: %v", got)
	}

	// The chain re-extends cleanly from the restored head.
	sendTransfer(t, p, account0, recipient, "0x2")
	head := blockByNumber(t, p, "latest")
	if head.Number.ToInt().Uint64() != 1 || head.ParentHash != genesisHash {
		t.Errorf("re-mined head = number %v parent %s", head.Number.ToInt(), head.ParentHash.Hex())
	}
	if got := call(t, p, "eth_getBalance", recipient, "latest"); got != "0x2" {
		t.Errorf("recipient balance = %v", got)
	}

	// A consumed id cannot be reverted to twice.
	if got := call(t, p, "evm_revert", snapID); got != false {
		t.Error("revert accepted a consumed snapshot id")
	}
}

func TestHardhatMineHugeCount(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	genesisRoot := blockByNumber(t, p, "0x0").Root

	// One billion empty blocks complete via reservation, not execution.
	if got := call(t, p, "hardhat_mine", "0x3b9aca00", "0x1"); got != true {
		t.Fatal("hardhat_mine failed")
	}
	if got := headNumber(t, p); got != 1_000_000_000 {
		t.Fatalf("head = %d, want 1000000000", got)
	}

	block := blockByNumber(t, p, "0x3b9ac9ff")
	if block.Number.ToInt().Uint64() != 999_999_999 {
		t.Errorf("number = %v", block.Number.ToInt())
	}
	if uint64(block.Time) != testGenesisTime+999_999_999 {
		t.Errorf("timestamp = %d, want %d", block.Time, testGenesisTime+999_999_999)
	}
	// Empty reserved blocks carry the state forward untouched.
	if block.Root != genesisRoot {
		t.Errorf("state root = %s, want genesis root", block.Root.Hex())
	}

	// Mining continues on top of the reserved range.
	hash := sendTransfer(t, p, account0, recipient, "0x1")
	receipt := call(t, p, "eth_getTransactionReceipt", hash).(*receiptResult)
	if receipt.Status != 1 || receipt.BlockNumber != 1_000_000_001 {
		t.Errorf("receipt status %d block %d", receipt.Status, receipt.BlockNumber)
	}
}

func TestTimeManipulation(t *testing.T) {
	p, _ := newTestProvider(t, nil)

	if got := call(t, p, "evm_increaseTime", 100); got != "100" {
		t.Fatalf("evm_increaseTime = %v", got)
	}
	call(t, p, "evm_mine")
	head := blockByNumber(t, p, "latest")
	if uint64(head.Time) != testGenesisTime+100 {
		t.Errorf("block time = %d, want %d", head.Time, testGenesisTime+100)
	}

	next := uint64(head.Time) + 50
	call(t, p, "evm_setNextBlockTimestamp", rpc.Uint64(next))
	call(t, p, "evm_mine")
	if got := blockByNumber(t, p, "latest").Time; uint64(got) != next {
		t.Errorf("block time = %d, want %d", got, next)
	}

	// Pinning a timestamp at or before the head is refused.
	_, rpcErr := rawCall(t, p, "evm_setNextBlockTimestamp", rpc.Uint64(next))
	if rpcErr == nil || rpcErr.Code != rpc.ErrCodeInvalidParams {
		t.Errorf("stale timestamp error = %v", rpcErr)
	}
}

func TestFilterChangesDrain(t *testing.T) {
	p, _ := newTestProvider(t, func(cfg *Config) { cfg.AutoMine = false })

	blockID := call(t, p, "eth_newBlockFilter")
	txID := call(t, p, "eth_newPendingTransactionFilter")

	call(t, p, "evm_mine")
	call(t, p, "evm_mine")
	hashes := call(t, p, "eth_getFilterChanges", blockID).([]types.Hash)
	if len(hashes) != 2 {
		t.Fatalf("block filter delivered %d hashes, want 2", len(hashes))
	}
	// A poll consumes the buffered changes.
	if drained := call(t, p, "eth_getFilterChanges", blockID).([]types.Hash); len(drained) != 0 {
		t.Errorf("second poll delivered %d hashes", len(drained))
	}

	txHash := sendTransfer(t, p, account0, recipient, "0x1")
	pending := call(t, p, "eth_getFilterChanges", txID).([]types.Hash)
	if len(pending) != 1 || pending[0] != txHash {
		t.Errorf("pending filter delivered %v", pending)
	}

	if got := call(t, p, "eth_uninstallFilter", blockID); got != true {
		t.Error("uninstall failed")
	}
	if _, rpcErr := rawCall(t, p, "eth_getFilterChanges", blockID); rpcErr == nil {
		t.Error("polling an uninstalled filter succeeded")
	}
}

func TestEthCall(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	contract := types.HexToAddress("0x1000000000000000000000000000000000000001")
	reverter := types.HexToAddress("0x1000000000000000000000000000000000000002")

	// Returns the 32-byte word 42; reverts unconditionally.
	call(t, p, "hardhat_setCode", contract, "0x602a60005260206000f3")
	call(t, p, "hardhat_setCode", reverter, "0x60006000fd")

	got := call(t, p, "eth_call", map[string]interface{}{"to": contract})
	want := "0x" + strings.Repeat("0", 62) + "2a"
	if got != want {
		t.Errorf("eth_call = %v, want %s", got, want)
	}

	_, rpcErr := rawCall(t, p, "eth_call", map[string]interface{}{"to": reverter})
	if rpcErr == nil || !strings.Contains(rpcErr.Message, "revert") {
		t.Errorf("revert call error = %v", rpcErr)
	}
}

func TestAutomineToggle(t *testing.T) {
	p, _ := newTestProvider(t, nil)

	if got := call(t, p, "hardhat_getAutomine"); got != true {
		t.Fatalf("hardhat_getAutomine = %v", got)
	}
	call(t, p, "evm_setAutomine", false)
	if got := call(t, p, "hardhat_getAutomine"); got != false {
		t.Fatalf("hardhat_getAutomine = %v after disable", got)
	}

	sendTransfer(t, p, account0, recipient, "0x1")
	if got := headNumber(t, p); got != 0 {
		t.Errorf("head = %d with automine off", got)
	}
	call(t, p, "evm_setAutomine", true)
	// Re-enabling does not retroactively mine; the next send does.
	if got := headNumber(t, p); got != 0 {
		t.Errorf("head = %d after re-enable", got)
	}
	sendTransfer(t, p, account0, recipient, "0x1")
	if got := headNumber(t, p); got != 1 {
		t.Errorf("head = %d, want 1", got)
	}
	block := blockByNumber(t, p, "latest")
	if len(block.Transactions) != 2 {
		t.Errorf("mined block carries %d txs, want both pending", len(block.Transactions))
	}
}

func TestHardhatReset(t *testing.T) {
	p, _ := newTestProvider(t, nil)

	sendTransfer(t, p, account0, recipient, "0x1")
	call(t, p, "hardhat_setBalance", recipient, "0x1234")
	if got := headNumber(t, p); got != 1 {
		t.Fatalf("head = %d before reset", got)
	}

	if got := call(t, p, "hardhat_reset"); got != true {
		t.Fatal("hardhat_reset failed")
	}
	if got := headNumber(t, p); got != 0 {
		t.Errorf("head = %d after reset, want 0", got)
	}
	if got := call(t, p, "eth_getBalance", recipient, "latest"); got != "0x0" {
		t.Errorf("recipient balance = %v after reset", got)
	}
	if got := call(t, p, "eth_getBalance", account0, "latest"); got != "0x21e19e0c9bab2400000" {
		t.Errorf("dev account balance = %v after reset", got)
	}
}

func TestHardhatStateCheats(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	target := types.HexToAddress("0x00000000000000000000000000000000000000aa")

	call(t, p, "hardhat_setNonce", target, "0x10")
	if got := call(t, p, "eth_getTransactionCount", target, "latest"); got != "0x10" {
		t.Errorf("nonce = %v", got)
	}
	// Nonces never move backwards.
	if _, rpcErr := rawCall(t, p, "hardhat_setNonce", target, "0x5"); rpcErr == nil {
		t.Error("lowering a nonce succeeded")
	}

	call(t, p, "hardhat_setStorageAt", target, "0x1", types.Hash{31: 0x2a})
	got := call(t, p, "eth_getStorageAt", target, "0x1", "latest").(types.Hash)
	if got != (types.Hash{31: 0x2a}) {
		t.Errorf("storage = %x", got)
	}

	call(t, p, "hardhat_setCode", target, "0x6001")
	if got := call(t, p, "eth_getCode", target, "latest"); got != "0x6001" {
		t.Errorf("code = %v", got)
	}
}

func TestSendRawTransactionTypeBeforeFork(t *testing.T) {
	// Mainnet's schedule activates berlin at block 12244000, so at
	// genesis the access list transaction type does not exist yet.
	p, _ := newTestProvider(t, func(cfg *Config) { cfg.ChainID = 1 })

	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if err != nil {
		t.Fatal(err)
	}
	to := recipient
	tx, err := types.SignTx(types.NewTx(&types.AccessListTx{
		ChainID:  big.NewInt(1),
		GasPrice: big.NewInt(2_000_000_000),
		Gas:      21_000,
		To:       &to,
		Value:    big.NewInt(1),
	}), types.LatestSigner(big.NewInt(1)), key)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	_, rpcErr := rawCall(t, p, "eth_sendRawTransaction", rpc.EncodeBytes(raw))
	if rpcErr == nil {
		t.Fatal("transaction of a not yet active type was admitted")
	}
	if rpcErr.Code != rpc.ErrCodeTransactionReject {
		t.Errorf("error code = %d, want %d", rpcErr.Code, rpc.ErrCodeTransactionReject)
	}
	if !strings.Contains(rpcErr.Message, "not supported") {
		t.Errorf("error message = %q", rpcErr.Message)
	}
}

// markerPrecompile answers every call with a fixed word.
type markerPrecompile struct{}

var markerOutput = []byte{0xde, 0xca, 0xfb, 0xad}

func (markerPrecompile) RequiredGas(input []byte) uint64 { return 15 }

func (markerPrecompile) Run(input []byte) ([]byte, error) {
	return markerOutput, nil
}

func TestEthCallExtraPrecompile(t *testing.T) {
	addr := types.HexToAddress("0x0000000000000000000000000000000000000101")
	p, _ := newTestProvider(t, func(cfg *Config) {
		cfg.ExtraPrecompiles = map[types.Address]vm.PrecompiledContract{addr: markerPrecompile{}}
	})

	got := call(t, p, "eth_call", map[string]interface{}{"to": addr})
	if want := rpc.EncodeBytes(markerOutput); got != want {
		t.Errorf("eth_call = %v, want %s", got, want)
	}
}

func TestSnapshotRestoresPrevRandao(t *testing.T) {
	p, _ := newTestProvider(t, nil)
	randao := types.Hash{31: 0x7b}

	call(t, p, "hardhat_setPrevRandao", randao)
	snapID := call(t, p, "evm_snapshot")

	// Mining consumes the pinned value.
	call(t, p, "evm_mine")
	if got := blockByNumber(t, p, "latest").MixDigest; got != randao {
		t.Fatalf("mixHash = %s, want the pinned value", got.Hex())
	}

	if got := call(t, p, "evm_revert", snapID); got != true {
		t.Fatal("revert refused a live snapshot id")
	}
	call(t, p, "evm_mine")
	if got := blockByNumber(t, p, "latest").MixDigest; got != randao {
		t.Errorf("mixHash after revert = %s, want the pinned value restored", got.Hex())
	}
}
