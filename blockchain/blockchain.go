// Package blockchain maintains the block log of a devchain session:
// either a fully local chain rooted at a genesis block, or a forked
// chain splicing locally-mined blocks on top of a remote chain pinned
// at a fork block. Runs of empty blocks are kept as reservations and
// materialized on demand.
package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/devchain-eth/devchain/core"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/log"
	"github.com/devchain-eth/devchain/remote"
	"github.com/devchain-eth/devchain/state"
)

var (
	// ErrBlockNotFound is returned for lookups of unknown blocks.
	ErrBlockNotFound = errors.New("blockchain: block not found")

	// ErrTransactionNotFound is returned for lookups of unknown
	// transactions.
	ErrTransactionNotFound = errors.New("blockchain: transaction not found")

	// ErrNonSequentialBlock is returned when an inserted block does not
	// extend the current head.
	ErrNonSequentialBlock = errors.New("blockchain: non-sequential block")

	// ErrRemoteBlockImmutable is returned when a mutation targets a
	// block at or below the fork point.
	ErrRemoteBlockImmutable = errors.New("blockchain: remote blocks are immutable")
)

// TxEntry locates a known transaction.
type TxEntry struct {
	Tx          *types.Transaction
	BlockHash   types.Hash
	BlockNumber uint64
	Index       uint64
}

// Blockchain is the unified local/forked chain. A nil remote client
// means fully local; otherwise blocks at numbers <= forkBlock are
// served by the remote endpoint and never mutated.
type Blockchain struct {
	config  *core.ChainConfig
	store   *state.Store
	storage *sparseStorage
	logger  *log.Logger

	client     remote.Client
	forkBlock  uint64
	forkReader *remote.ForkReader

	rootGen *HashGenerator

	// irregular records developer-imposed state overrides per block
	// number, applied on top of block diffs during reconstruction.
	irregular map[uint64][]state.Irregular

	// layerMarks maps a block number to the store snapshot id taken
	// after its state (and any irregular overrides) was committed.
	layerMarks map[uint64]int
}

// NewLocal creates a fresh local chain from the genesis specification.
func NewLocal(genesis *core.Genesis) (*Blockchain, error) {
	store := state.NewLocalStore()
	block, diff, err := genesis.Commit(store)
	if err != nil {
		return nil, fmt.Errorf("blockchain: committing genesis: %w", err)
	}
	bc := &Blockchain{
		config:     genesis.Config,
		store:      store,
		storage:    newSparseStorage(genesis.Config),
		logger:     log.Module("blockchain"),
		irregular:  make(map[uint64][]state.Irregular),
		layerMarks: make(map[uint64]int),
	}
	if err := bc.storage.insert(block, types.Receipts{}, diff); err != nil {
		return nil, err
	}
	bc.layerMarks[0] = store.Snapshot()
	bc.logger.Info("local chain created", "chainId", genesis.Config.ChainID, "genesis", block.Hash())
	return bc, nil
}

// NewForked attaches a local chain on top of the remote chain at
// forkBlock. Fabricated state roots come from a generator seeded with
// rootSeed so sessions replay deterministically.
func NewForked(ctx context.Context, config *core.ChainConfig, client remote.Client, forkBlock uint64, rootSeed string) (*Blockchain, error) {
	if _, err := client.BlockByNumber(ctx, forkBlock); err != nil {
		return nil, fmt.Errorf("blockchain: fetching fork block %d: %w", forkBlock, err)
	}
	reader := remote.NewForkReader(client, forkBlock)
	rootGen := NewHashGenerator(rootSeed)
	bc := &Blockchain{
		config:     config,
		store:      state.NewForkStore(reader, rootGen.Next),
		storage:    newSparseStorage(config),
		logger:     log.Module("blockchain"),
		client:     client,
		forkBlock:  forkBlock,
		forkReader: reader,
		rootGen:    rootGen,
		irregular:  make(map[uint64][]state.Irregular),
		layerMarks: make(map[uint64]int),
	}
	bc.layerMarks[forkBlock] = bc.store.Snapshot()
	bc.logger.Info("forked chain created", "chainId", config.ChainID, "forkBlock", forkBlock)
	return bc, nil
}

// Config returns the chain configuration.
func (bc *Blockchain) Config() *core.ChainConfig { return bc.config }

// Forked reports whether the chain is attached to a remote endpoint.
func (bc *Blockchain) Forked() bool { return bc.client != nil }

// ForkBlock returns the fork point, valid only when Forked.
func (bc *Blockchain) ForkBlock() uint64 { return bc.forkBlock }

// Store returns the live state store at the chain head.
func (bc *Blockchain) Store() *state.Store { return bc.store }

// HeadNumber returns the current chain head number.
func (bc *Blockchain) HeadNumber() uint64 {
	if n, ok := bc.storage.head(); ok {
		return n
	}
	return bc.forkBlock
}

// Head returns the current head block.
func (bc *Blockchain) Head(ctx context.Context) (*types.Block, error) {
	return bc.BlockByNumber(ctx, bc.HeadNumber())
}

// BlockByNumber returns the block at the given height, local,
// materialized from a reservation, or remote.
func (bc *Blockchain) BlockByNumber(ctx context.Context, n uint64) (*types.Block, error) {
	if block := bc.storage.blockByNumber(n); block != nil {
		return block, nil
	}
	if bc.client != nil && n <= bc.forkBlock {
		block, err := bc.client.BlockByNumber(ctx, n)
		if errors.Is(err, remote.ErrNotFound) {
			return nil, ErrBlockNotFound
		}
		return block, err
	}
	return nil, ErrBlockNotFound
}

// BlockByHash returns the block with the given hash.
func (bc *Blockchain) BlockByHash(ctx context.Context, h types.Hash) (*types.Block, error) {
	if block := bc.storage.blockByHash(h); block != nil {
		return block, nil
	}
	if bc.client != nil {
		block, err := bc.client.BlockByHash(ctx, h)
		if errors.Is(err, remote.ErrNotFound) {
			return nil, ErrBlockNotFound
		}
		if err != nil {
			return nil, err
		}
		// A remote block above the fork point belongs to the future the
		// local chain diverged from.
		if block.NumberU64() > bc.forkBlock {
			return nil, ErrBlockNotFound
		}
		return block, nil
	}
	return nil, ErrBlockNotFound
}

// BlockHashByNumber resolves a block number to its hash.
func (bc *Blockchain) BlockHashByNumber(ctx context.Context, n uint64) (types.Hash, error) {
	block, err := bc.BlockByNumber(ctx, n)
	if err != nil {
		return types.Hash{}, err
	}
	return block.Hash(), nil
}

// ReceiptsByBlockHash returns the receipts of the given block.
func (bc *Blockchain) ReceiptsByBlockHash(ctx context.Context, blockHash types.Hash) (types.Receipts, error) {
	if receipts, ok := bc.storage.receiptsOf(blockHash); ok {
		return receipts, nil
	}
	if bc.client != nil {
		block, err := bc.BlockByHash(ctx, blockHash)
		if err != nil {
			return nil, err
		}
		return bc.client.BlockReceipts(ctx, block.NumberU64())
	}
	return nil, ErrBlockNotFound
}

// ReceiptByTxHash returns the receipt of a mined transaction.
func (bc *Blockchain) ReceiptByTxHash(ctx context.Context, txHash types.Hash) (*types.Receipt, error) {
	if loc, ok := bc.storage.transaction(txHash); ok {
		receipts, _ := bc.storage.receiptsOf(loc.blockHash)
		if loc.index < uint64(len(receipts)) {
			return receipts[loc.index], nil
		}
		return nil, ErrTransactionNotFound
	}
	if bc.client != nil {
		receipt, err := bc.client.TransactionReceipt(ctx, txHash)
		if errors.Is(err, remote.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return receipt, err
	}
	return nil, ErrTransactionNotFound
}

// TransactionByHash locates a mined transaction.
func (bc *Blockchain) TransactionByHash(ctx context.Context, txHash types.Hash) (*TxEntry, error) {
	if loc, ok := bc.storage.transaction(txHash); ok {
		block := bc.storage.blockByNumber(loc.blockNumber)
		return &TxEntry{
			Tx:          block.Transactions()[loc.index],
			BlockHash:   loc.blockHash,
			BlockNumber: loc.blockNumber,
			Index:       loc.index,
		}, nil
	}
	if bc.client != nil {
		entry, err := bc.client.TransactionByHash(ctx, txHash)
		if errors.Is(err, remote.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		if err != nil {
			return nil, err
		}
		if entry.BlockHash == nil || entry.BlockNumber == nil || entry.Index == nil {
			return nil, ErrTransactionNotFound
		}
		return &TxEntry{
			Tx:          entry.Tx,
			BlockHash:   *entry.BlockHash,
			BlockNumber: *entry.BlockNumber,
			Index:       *entry.Index,
		}, nil
	}
	return nil, ErrTransactionNotFound
}

// Logs scans [q.FromBlock, q.ToBlock]. The remote side of a fork is
// answered by one endpoint query; local blocks are bloom-prefiltered
// before their receipts are touched.
func (bc *Blockchain) Logs(ctx context.Context, q *FilterQuery) ([]*types.Log, error) {
	var out []*types.Log
	from := q.FromBlock
	if bc.client != nil && from <= bc.forkBlock {
		remoteTo := q.ToBlock
		if remoteTo > bc.forkBlock {
			remoteTo = bc.forkBlock
		}
		logs, err := bc.client.Logs(ctx, remote.LogQuery{
			FromBlock: from,
			ToBlock:   remoteTo,
			Addresses: q.Addresses,
			Topics:    q.Topics,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, FilterLogs(logs, q)...)
		from = bc.forkBlock + 1
	}
	head := bc.HeadNumber()
	to := q.ToBlock
	if to > head {
		to = head
	}
	for n := from; n <= to; n++ {
		block := bc.storage.blockByNumber(n)
		if block == nil {
			return nil, fmt.Errorf("%w: %d", ErrBlockNotFound, n)
		}
		if !q.matchBloom(block.Bloom()) {
			continue
		}
		receipts, ok := bc.storage.receiptsOf(block.Hash())
		if !ok {
			continue
		}
		for _, receipt := range receipts {
			out = append(out, FilterLogs(receipt.Logs, q)...)
		}
	}
	return out, nil
}

// InsertBlock appends a sealed block with its receipts and state diff.
// The diff must already be committed to the live store by the builder.
func (bc *Blockchain) InsertBlock(block *types.Block, receipts types.Receipts, diff state.Diff) error {
	if bc.client != nil && block.NumberU64() <= bc.forkBlock {
		return ErrRemoteBlockImmutable
	}
	if err := bc.storage.insert(block, receipts, diff); err != nil {
		return err
	}
	bc.layerMarks[block.NumberU64()] = bc.store.Snapshot()
	bc.logger.Debug("block inserted",
		"number", block.NumberU64(), "hash", block.Hash(),
		"txs", len(block.Transactions()), "gasUsed", block.GasUsed())
	return nil
}

// ReserveBlocks appends count empty blocks at the given interval
// without materializing them.
func (bc *Blockchain) ReserveBlocks(ctx context.Context, count, interval uint64) error {
	base, err := bc.Head(ctx)
	if err != nil {
		return err
	}
	bc.storage.reserve(base, count, interval, bc.headStateRoot(base), base.RawHeader().Coinbase)
	bc.layerMarks[bc.HeadNumber()] = bc.store.Snapshot()
	bc.logger.Debug("blocks reserved", "count", count, "interval", interval, "head", bc.HeadNumber())
	return nil
}

// headStateRoot is the root reserved blocks inherit: the last irregular
// override pins it, otherwise the base block's recorded root stands.
func (bc *Blockchain) headStateRoot(base *types.Block) types.Hash {
	if irs := bc.irregular[base.NumberU64()]; len(irs) > 0 {
		return irs[len(irs)-1].Root
	}
	return base.Root()
}

// ApplyIrregular commits a developer-imposed override at the current
// head and records it for state reconstruction. The returned root is
// what the head reports from now on: recomputed for local chains,
// fabricated for forks.
func (bc *Blockchain) ApplyIrregular(diff state.Diff) (types.Hash, error) {
	head := bc.HeadNumber()
	bc.store.Commit(diff)
	root, err := bc.store.StateRoot()
	if err != nil {
		return types.Hash{}, err
	}
	bc.irregular[head] = append(bc.irregular[head], state.Irregular{Diff: diff.Copy(), Root: root})
	bc.layerMarks[head] = bc.store.Snapshot()
	return root, nil
}

// IrregularRootAt returns the pinned root for block n, if any.
func (bc *Blockchain) IrregularRootAt(n uint64) (types.Hash, bool) {
	irs := bc.irregular[n]
	if len(irs) == 0 {
		return types.Hash{}, false
	}
	return irs[len(irs)-1].Root, true
}

// StateAt reconstructs the committed state as of block n by replaying
// block diffs and irregular overrides over the chain's base.
func (bc *Blockchain) StateAt(n uint64) (*state.Store, error) {
	head := bc.HeadNumber()
	if n > head {
		return nil, fmt.Errorf("%w: %d", ErrBlockNotFound, n)
	}
	var store *state.Store
	switch {
	case bc.client == nil:
		store = state.NewLocalStore()
	case n <= bc.forkBlock:
		// Historical remote state gets its own reader pinned at n.
		// Overrides applied while the fork block was the head still
		// belong to its state.
		store = state.NewForkStore(remote.NewForkReader(bc.client, n), bc.rootGen.Next)
		if n == bc.forkBlock {
			for _, ir := range bc.irregular[n] {
				store.Commit(ir.Diff)
			}
		}
		return store, nil
	default:
		store = state.NewForkStore(bc.forkReader, bc.rootGen.Next)
	}
	for _, diff := range bc.storage.diffsUntil(n) {
		store.Commit(diff)
	}
	for number := bc.firstLocal(); number <= n; number++ {
		for _, ir := range bc.irregular[number] {
			store.Commit(ir.Diff)
		}
	}
	return store, nil
}

func (bc *Blockchain) firstLocal() uint64 {
	if bc.client != nil {
		return bc.forkBlock
	}
	return 0
}

// RevertToBlock truncates the chain so n becomes the head, rolling the
// live store back to the matching layer.
func (bc *Blockchain) RevertToBlock(n uint64) error {
	head := bc.HeadNumber()
	if n > head {
		return fmt.Errorf("%w: %d", ErrBlockNotFound, n)
	}
	if bc.client != nil && n < bc.forkBlock {
		return ErrRemoteBlockImmutable
	}
	mark, err := bc.markAtOrBelow(n)
	if err != nil {
		return err
	}
	if err := bc.store.RevertTo(mark); err != nil {
		return err
	}
	bc.storage.truncate(n)
	for number := range bc.irregular {
		if number > n {
			delete(bc.irregular, number)
		}
	}
	for number := range bc.layerMarks {
		if number > n {
			delete(bc.layerMarks, number)
		}
	}
	bc.logger.Debug("chain reverted", "head", n, "from", head)
	return nil
}

// markAtOrBelow finds the store snapshot covering block n. Reserved
// blocks carry no mark; the nearest real block below them does.
func (bc *Blockchain) markAtOrBelow(n uint64) (int, error) {
	for number := n; ; number-- {
		if mark, ok := bc.layerMarks[number]; ok {
			return mark, nil
		}
		if number == 0 || (bc.client != nil && number == bc.forkBlock) {
			break
		}
	}
	return 0, fmt.Errorf("%w: no state layer at or below %d", ErrBlockNotFound, n)
}

// Mark is an O(1) capture of the chain's position, including irregular
// overrides at the head and the fabricated-root counter.
type Mark struct {
	head           uint64
	storeLayer     int
	headIrregulars int
	hadLayerMark   bool
	rootCounter    uint64
}

// Head returns the captured head number.
func (m Mark) Head() uint64 { return m.head }

// Mark captures the current chain position for a later ResetTo.
func (bc *Blockchain) Mark() Mark {
	head := bc.HeadNumber()
	_, hadMark := bc.layerMarks[head]
	m := Mark{
		head:           head,
		storeLayer:     bc.store.Snapshot(),
		headIrregulars: len(bc.irregular[head]),
		hadLayerMark:   hadMark,
	}
	if bc.rootGen != nil {
		m.rootCounter = bc.rootGen.Counter()
	}
	return m
}

// ResetTo rolls the chain back to a previously captured Mark, dropping
// blocks, irregular overrides and store layers committed since.
func (bc *Blockchain) ResetTo(m Mark) error {
	if m.head > bc.HeadNumber() {
		return fmt.Errorf("%w: %d", ErrBlockNotFound, m.head)
	}
	if err := bc.store.RevertTo(m.storeLayer); err != nil {
		return err
	}
	bc.storage.truncate(m.head)
	for number := range bc.irregular {
		if number > m.head {
			delete(bc.irregular, number)
		}
	}
	if irs := bc.irregular[m.head]; len(irs) > m.headIrregulars {
		bc.irregular[m.head] = irs[:m.headIrregulars]
		if m.headIrregulars == 0 {
			delete(bc.irregular, m.head)
		}
	}
	for number := range bc.layerMarks {
		if number > m.head {
			delete(bc.layerMarks, number)
		}
	}
	if m.hadLayerMark {
		bc.layerMarks[m.head] = m.storeLayer
	} else {
		delete(bc.layerMarks, m.head)
	}
	if bc.rootGen != nil {
		bc.rootGen.Rewind(m.rootCounter)
	}
	bc.logger.Debug("chain reset", "head", m.head)
	return nil
}

// HardforkAt names the active fork at the given height and time.
func (bc *Blockchain) HardforkAt(n uint64, timestamp uint64) string {
	return bc.config.LatestFork(new(big.Int).SetUint64(n), timestamp)
}
