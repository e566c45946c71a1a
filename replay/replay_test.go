package replay

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/devchain-eth/devchain/blockchain"
	"github.com/devchain-eth/devchain/core"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
	"github.com/devchain-eth/devchain/crypto"
	"github.com/devchain-eth/devchain/remote"
	"github.com/devchain-eth/devchain/state"
)

// fakeClient serves a small pre-built chain as if it were a remote
// endpoint. State queries answer at the genesis block only, which is
// where replays pin their fork.
type fakeClient struct {
	chainID  uint64
	head     uint64
	blocks   map[uint64]*types.Block
	byHash   map[types.Hash]*types.Block
	receipts map[uint64]types.Receipts
	genesis  *state.StateDB
}

var _ remote.Client = (*fakeClient)(nil)

func (f *fakeClient) ChainID() uint64 { return f.chainID }

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) { return f.head, nil }

func (f *fakeClient) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	block, ok := f.blocks[number]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return block, nil
}

func (f *fakeClient) BlockByHash(ctx context.Context, hash types.Hash) (*types.Block, error) {
	block, ok := f.byHash[hash]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return block, nil
}

func (f *fakeClient) LatestBlock(ctx context.Context) (*types.Block, error) {
	return f.BlockByNumber(ctx, f.head)
}

func (f *fakeClient) TransactionByHash(ctx context.Context, hash types.Hash) (*remote.TransactionEntry, error) {
	return nil, remote.ErrNotFound
}

func (f *fakeClient) TransactionReceipt(ctx context.Context, hash types.Hash) (*types.Receipt, error) {
	return nil, remote.ErrNotFound
}

func (f *fakeClient) BlockReceipts(ctx context.Context, number uint64) (types.Receipts, error) {
	receipts, ok := f.receipts[number]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return receipts, nil
}

func (f *fakeClient) Logs(ctx context.Context, query remote.LogQuery) ([]*types.Log, error) {
	return nil, nil
}

func (f *fakeClient) BalanceAt(ctx context.Context, addr types.Address, block uint64) (*big.Int, error) {
	if block != 0 {
		return nil, fmt.Errorf("unexpected state query at block %d", block)
	}
	return f.genesis.GetBalance(addr), nil
}

func (f *fakeClient) NonceAt(ctx context.Context, addr types.Address, block uint64) (uint64, error) {
	if block != 0 {
		return 0, fmt.Errorf("unexpected state query at block %d", block)
	}
	return f.genesis.GetNonce(addr), nil
}

func (f *fakeClient) CodeAt(ctx context.Context, addr types.Address, block uint64) ([]byte, error) {
	if block != 0 {
		return nil, fmt.Errorf("unexpected state query at block %d", block)
	}
	return f.genesis.GetCode(addr), nil
}

func (f *fakeClient) StorageAt(ctx context.Context, addr types.Address, key types.Hash, block uint64) (types.Hash, error) {
	if block != 0 {
		return types.Hash{}, fmt.Errorf("unexpected state query at block %d", block)
	}
	return f.genesis.GetState(addr, key), nil
}

func (f *fakeClient) FeeHistory(ctx context.Context, blockCount, newest uint64, percentiles []float64) (*remote.FeeHistory, error) {
	return nil, remote.ErrNotFound
}

// buildRemoteChain mines one transfer block on a throwaway local chain
// and packages it as the fake endpoint's view.
func buildRemoteChain(t *testing.T, config *core.ChainConfig) *fakeClient {
	t.Helper()
	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if err != nil {
		t.Fatal(err)
	}
	from := types.Address(crypto.PubkeyToAddress(key.PublicKey))
	to := types.HexToAddress("0x000000000000000000000000000000000000dead")

	genesis := &core.Genesis{
		Config:    config,
		Timestamp: 1_700_000_000,
		GasLimit:  30_000_000,
		Alloc: map[types.Address]core.GenesisAccount{
			from: {Balance: new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))},
		},
	}
	bc, err := blockchain.NewLocal(genesis)
	if err != nil {
		t.Fatalf("building source chain: %v", err)
	}
	ctx := context.Background()

	parent, err := bc.Head(ctx)
	if err != nil {
		t.Fatal(err)
	}
	signer := types.LatestSigner(config.ChainID)
	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   config.ChainID,
		Nonce:     0,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(3_000_000_000),
		Gas:       21_000,
		To:        &to,
		Value:     big.NewInt(1),
	}), signer, key)
	if err != nil {
		t.Fatal(err)
	}

	builder := core.NewBlockBuilder(config, bc.Store(), parent.RawHeader(), core.BuildOptions{
		Timestamp: parent.Time() + 12,
	}, func(uint64) types.Hash { return types.Hash{} }, vm.Config{})
	if _, err := builder.AddTransaction(tx); err != nil {
		t.Fatalf("executing source transaction: %v", err)
	}
	block, receipts, diff, err := builder.Finalize(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := bc.InsertBlock(block, receipts, diff); err != nil {
		t.Fatal(err)
	}

	genesisStore, err := bc.StateAt(0)
	if err != nil {
		t.Fatal(err)
	}
	genesisBlock, err := bc.BlockByNumber(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	return &fakeClient{
		chainID: config.ChainID.Uint64(),
		head:    1,
		blocks: map[uint64]*types.Block{
			0: genesisBlock,
			1: block,
		},
		byHash: map[types.Hash]*types.Block{
			genesisBlock.Hash(): genesisBlock,
			block.Hash():        block,
		},
		receipts: map[uint64]types.Receipts{1: receipts},
		genesis:  state.New(genesisStore),
	}
}

func TestReplayBlockClean(t *testing.T) {
	config := core.DevChainConfig(1)
	client := buildRemoteChain(t, config)
	r := New(client, config)

	report, err := r.Block(context.Background(), 1)
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if !report.OK() {
		t.Fatalf("replay mismatches: %v", report.Mismatches)
	}
	if report.TxCount != 1 || report.GasUsed != 21_000 {
		t.Errorf("report = %d txs, %d gas", report.TxCount, report.GasUsed)
	}
	if report.GasUsed != report.RemoteGasUsed {
		t.Errorf("gas used %d != remote %d", report.GasUsed, report.RemoteGasUsed)
	}
}

func TestReplayDetectsReceiptMismatch(t *testing.T) {
	config := core.DevChainConfig(1)
	client := buildRemoteChain(t, config)

	// Corrupt the remote receipt; the replayed one stays honest.
	tampered := *client.receipts[1][0]
	tampered.GasUsed += 100
	tampered.CumulativeGasUsed += 100
	client.receipts[1] = types.Receipts{&tampered}

	report, err := New(client, config).Block(context.Background(), 1)
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if report.OK() {
		t.Fatal("tampered receipts went unnoticed")
	}
}

func TestReplayGenesisRejected(t *testing.T) {
	config := core.DevChainConfig(1)
	client := buildRemoteChain(t, config)
	if _, err := New(client, config).Block(context.Background(), 0); err == nil {
		t.Error("genesis replay must fail; there is no parent to pin")
	}
}

func TestReplayRange(t *testing.T) {
	config := core.DevChainConfig(1)
	client := buildRemoteChain(t, config)

	report, err := New(client, config).Range(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if report == nil || !report.OK() {
		t.Errorf("range report = %+v", report)
	}
}
