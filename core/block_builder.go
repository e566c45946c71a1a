package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
	"github.com/devchain-eth/devchain/state"
	"github.com/devchain-eth/devchain/trie"
)

// ErrBlobGasLimitReached means a blob transaction exceeds the block's
// remaining blob budget.
var ErrBlobGasLimitReached = errors.New("blob gas limit reached")

// BuildOptions parameterize the next block.
type BuildOptions struct {
	Coinbase   types.Address
	GasLimit   uint64
	Timestamp  uint64
	PrevRandao types.Hash

	// BaseFee overrides the computed base fee when set.
	BaseFee *big.Int

	// ParentHash overrides the parent header's hash when set, for
	// parents whose block hash is not the header hash (materialized
	// reserved blocks carry fabricated hashes).
	ParentHash types.Hash

	ParentBeaconRoot *types.Hash
}

// BlockBuilder accumulates transactions into a pending block and
// seals it. It owns a StateDB layered on the chain's store; Finalize
// commits the accumulated diff into the store.
type BlockBuilder struct {
	config  *ChainConfig
	store   *state.Store
	statedb *state.StateDB
	parent  *types.Header
	header  *types.Header

	evm     *vm.EVM
	gasPool *GasPool

	txs         types.Transactions
	receipts    types.Receipts
	usedGas     uint64
	blobGasUsed uint64
}

// NewBlockBuilder starts assembling the child block of parent.
func NewBlockBuilder(config *ChainConfig, store *state.Store, parent *types.Header, opts BuildOptions, getHash vm.GetHashFunc, vmCfg vm.Config) *BlockBuilder {
	number := new(big.Int).Add(parent.Number, big.NewInt(1))
	gasLimit := opts.GasLimit
	if gasLimit == 0 {
		gasLimit = parent.GasLimit
	}
	parentHash := opts.ParentHash
	if parentHash.IsZero() {
		parentHash = parent.Hash()
	}
	header := &types.Header{
		ParentHash: parentHash,
		UncleHash:  types.EmptyUncleHash,
		Coinbase:   opts.Coinbase,
		Number:     number,
		GasLimit:   gasLimit,
		Time:       opts.Timestamp,
		Difficulty: CalcDifficulty(config, opts.Timestamp, parent),
		MixDigest:  opts.PrevRandao,
	}
	if config.IsLondon(number) {
		if opts.BaseFee != nil {
			header.BaseFee = new(big.Int).Set(opts.BaseFee)
		} else {
			header.BaseFee = CalcBaseFee(config, parent)
		}
	}
	if config.IsCancun(number, opts.Timestamp) {
		excess := CalcExcessBlobGas(config, parent, number, opts.Timestamp)
		header.ExcessBlobGas = &excess
		zero := uint64(0)
		header.BlobGasUsed = &zero
		beaconRoot := types.Hash{}
		if opts.ParentBeaconRoot != nil {
			beaconRoot = *opts.ParentBeaconRoot
		}
		header.ParentBeaconRoot = &beaconRoot
	}
	statedb := state.New(store)
	blockCtx := NewEVMBlockContext(config, header, getHash)
	evm := vm.NewEVM(blockCtx, vm.TxContext{}, statedb, config.Rules(number, opts.Timestamp), vmCfg)

	return &BlockBuilder{
		config:  config,
		store:   store,
		statedb: statedb,
		parent:  parent,
		header:  header,
		evm:     evm,
		gasPool: new(GasPool).AddGas(gasLimit),
	}
}

// Header exposes the in-progress header for inspection.
func (b *BlockBuilder) Header() *types.Header { return b.header }

// GasUsed returns the gas consumed so far.
func (b *BlockBuilder) GasUsed() uint64 { return b.usedGas }

// GasRemaining returns the gas still available in the block.
func (b *BlockBuilder) GasRemaining() uint64 { return b.gasPool.Gas() }

// Transactions returns the transactions added so far.
func (b *BlockBuilder) Transactions() types.Transactions { return b.txs }

// Receipts returns the receipts built so far.
func (b *BlockBuilder) Receipts() types.Receipts { return b.receipts }

// StateDB exposes the builder's state for tracing hooks.
func (b *BlockBuilder) StateDB() *state.StateDB { return b.statedb }

// AddTransaction executes tx and appends it to the pending block.
// On failure the block is unchanged and the error says why.
func (b *BlockBuilder) AddTransaction(tx *types.Transaction) (*types.Receipt, error) {
	if tx.Gas() > b.gasPool.Gas() {
		return nil, fmt.Errorf("%w: tx gas %d, block gas left %d", ErrGasLimitReached, tx.Gas(), b.gasPool.Gas())
	}
	if blobGas := tx.BlobGas(); blobGas > 0 {
		limit := b.config.MaxBlobGasPerBlock(b.header.Number, b.header.Time)
		if b.blobGasUsed+blobGas > limit {
			return nil, fmt.Errorf("%w: tx blob gas %d, block blob gas left %d", ErrBlobGasLimitReached, blobGas, limit-b.blobGasUsed)
		}
	}
	receipt, err := ApplyTransaction(b.config, b.evm, b.statedb, b.gasPool, b.header, tx, len(b.txs), &b.usedGas)
	if err != nil {
		return nil, err
	}
	b.blobGasUsed += tx.BlobGas()
	b.txs = append(b.txs, tx)
	b.receipts = append(b.receipts, receipt)
	return receipt, nil
}

// Finalize seals the block: applies withdrawals, commits the state
// diff into the store and derives all header roots. The returned diff
// is what was committed.
func (b *BlockBuilder) Finalize(withdrawals types.Withdrawals) (*types.Block, types.Receipts, state.Diff, error) {
	isShanghai := b.config.IsShanghai(b.header.Number, b.header.Time)
	if len(withdrawals) > 0 && !isShanghai {
		return nil, nil, nil, errors.New("withdrawals before shanghai")
	}
	for _, w := range withdrawals {
		b.statedb.AddBalance(w.Address, w.AmountWei())
	}
	b.statedb.Finalise()

	diff := b.statedb.BuildDiff()
	b.store.Commit(diff)
	root, err := b.store.StateRoot()
	if err != nil {
		return nil, nil, nil, err
	}
	b.header.Root = root
	b.header.GasUsed = b.usedGas
	b.header.Bloom = types.CreateBloom(b.receipts)

	if len(b.txs) == 0 {
		b.header.TxHash = types.EmptyRootHash
	} else {
		b.header.TxHash = trie.DeriveRoot(b.txs)
	}
	if len(b.receipts) == 0 {
		b.header.ReceiptHash = types.EmptyRootHash
	} else {
		b.header.ReceiptHash = trie.DeriveRoot(b.receipts)
	}
	body := &types.Body{Transactions: b.txs}
	if isShanghai {
		if withdrawals == nil {
			withdrawals = types.Withdrawals{}
		}
		wroot := types.EmptyRootHash
		if len(withdrawals) > 0 {
			wroot = trie.DeriveRoot(withdrawals)
		}
		b.header.WithdrawalsHash = &wroot
		body.Withdrawals = withdrawals
	}
	if b.header.BlobGasUsed != nil {
		used := b.blobGasUsed
		b.header.BlobGasUsed = &used
	}
	if b.config.IsPrague(b.header.Number, b.header.Time) {
		empty := types.EmptyRequestsHash
		b.header.RequestsHash = &empty
	}
	block := types.NewBlock(b.header, body)
	if err := b.receipts.DeriveFields(block.Hash(), block.NumberU64(), b.header.BaseFee, b.txs); err != nil {
		return nil, nil, nil, err
	}
	return block, b.receipts, diff, nil
}
