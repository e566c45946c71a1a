package blockchain

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/devchain-eth/devchain/core"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/crypto"
	"github.com/devchain-eth/devchain/state"
)

// blockEntry is one stored block with its execution artifacts. Entries
// materialized from a reservation carry no diff and no receipts.
type blockEntry struct {
	block    *types.Block
	receipts types.Receipts
	diff     state.Diff
}

// txLocation points a transaction hash at its inclusion slot.
type txLocation struct {
	blockHash   types.Hash
	blockNumber uint64
	index       uint64
}

// reservation is a compact stand-in for a run of identical empty
// blocks. Header fields of any block in the range are computable from
// the base block and the offset alone, so reserving a billion blocks
// costs one tuple and reading one of them costs O(1).
type reservation struct {
	first, last uint64

	interval      uint64
	baseNumber    uint64
	baseTimestamp uint64
	baseHash      types.Hash
	stateRoot     types.Hash
	gasLimit      uint64
	coinbase      types.Address
	difficulty    *big.Int
	baseFee       *big.Int
	excessBlobGas *uint64

	// Derived seeds keeping block-hash and prev-randao sequences in
	// disjoint domains.
	hashSeed   types.Hash
	randaoSeed types.Hash
}

// blockHash returns the fabricated hash of reserved block n. Reserved
// blocks carry seeded hashes instead of header hashes: chaining real
// keccak(rlp(header)) hashes would cost O(offset) per materialization.
// parentHash uses the same sequence, so block(n).ParentHash() equals
// block(n-1).Hash() for every materialized pair.
func (r *reservation) blockHash(n uint64) types.Hash {
	return DeriveHash(r.hashSeed, n)
}

// parentHash returns the parent hash recorded in reserved block n. The
// first reserved block chains to the real base block.
func (r *reservation) parentHash(n uint64) types.Hash {
	if n == r.baseNumber+1 {
		return r.baseHash
	}
	return r.blockHash(n - 1)
}

// materialize builds the header of reserved block n.
func (r *reservation) materialize(config *core.ChainConfig, n uint64) *types.Block {
	offset := n - r.baseNumber
	timestamp := r.baseTimestamp + offset*r.interval
	number := new(big.Int).SetUint64(n)

	header := &types.Header{
		ParentHash:  r.parentHash(n),
		UncleHash:   types.EmptyUncleHash,
		Coinbase:    r.coinbase,
		Root:        r.stateRoot,
		TxHash:      types.EmptyRootHash,
		ReceiptHash: types.EmptyRootHash,
		Difficulty:  new(big.Int).Set(r.difficulty),
		Number:      number,
		GasLimit:    r.gasLimit,
		Time:        timestamp,
		MixDigest:   DeriveHash(r.randaoSeed, n),
	}
	if r.baseFee != nil {
		header.BaseFee = r.baseFeeAt(config, offset)
	}
	body := &types.Body{}
	if config.IsShanghai(number, timestamp) {
		wroot := types.EmptyRootHash
		header.WithdrawalsHash = &wroot
		body.Withdrawals = types.Withdrawals{}
	}
	if config.IsCancun(number, timestamp) {
		used := uint64(0)
		header.BlobGasUsed = &used
		excess := r.excessBlobGasAt(config, number, timestamp, offset)
		header.ExcessBlobGas = &excess
		beaconRoot := types.Hash{}
		header.ParentBeaconRoot = &beaconRoot
	}
	if config.IsPrague(number, timestamp) {
		empty := types.EmptyRequestsHash
		header.RequestsHash = &empty
	}
	return types.NewBlockWithHash(header, body, r.blockHash(n))
}

// baseFeeAt walks the empty-block base fee decay from the base block.
// The fee shrinks geometrically to the floor, so the walk short-circuits
// long before any realistic offset.
func (r *reservation) baseFeeAt(config *core.ChainConfig, offset uint64) *big.Int {
	fee := new(big.Int).Set(r.baseFee)
	parent := &types.Header{
		Number:   new(big.Int).SetUint64(r.baseNumber),
		GasLimit: r.gasLimit,
	}
	for i := uint64(0); i < offset; i++ {
		parent.BaseFee = fee
		next := core.CalcBaseFee(config, parent)
		if next.Cmp(fee) == 0 {
			break
		}
		fee = next
		parent.Number = new(big.Int).Add(parent.Number, big.NewInt(1))
	}
	return fee
}

// excessBlobGasAt decays the base excess by one target per empty block.
func (r *reservation) excessBlobGasAt(config *core.ChainConfig, number *big.Int, timestamp, offset uint64) uint64 {
	if r.excessBlobGas == nil {
		return 0
	}
	target := config.TargetBlobGasPerBlock(number, timestamp)
	if target == 0 {
		return 0
	}
	excess := *r.excessBlobGas
	if offset >= excess/target+1 {
		return 0
	}
	return excess - offset*target
}

// sparseStorage holds the locally-mined side of a chain: real blocks
// with their diffs and receipts, plus reservations standing in for runs
// of empty blocks.
type sparseStorage struct {
	config *core.ChainConfig

	entries      map[uint64]*blockEntry
	realNumbers  []uint64 // sorted numbers of blocks carrying a diff
	hashIndex    map[types.Hash]uint64
	txIndex      map[types.Hash]txLocation
	reservations []*reservation
	lastNumber   uint64
	hasBlocks    bool
}

func newSparseStorage(config *core.ChainConfig) *sparseStorage {
	return &sparseStorage{
		config:    config,
		entries:   make(map[uint64]*blockEntry),
		hashIndex: make(map[types.Hash]uint64),
		txIndex:   make(map[types.Hash]txLocation),
	}
}

// insert appends a sealed block. Numbers must be contiguous with the
// current tail.
func (s *sparseStorage) insert(block *types.Block, receipts types.Receipts, diff state.Diff) error {
	number := block.NumberU64()
	if s.hasBlocks && number != s.lastNumber+1 {
		return fmt.Errorf("%w: inserting %d after %d", ErrNonSequentialBlock, number, s.lastNumber)
	}
	entry := &blockEntry{block: block, receipts: receipts, diff: diff}
	s.entries[number] = entry
	s.realNumbers = append(s.realNumbers, number)
	s.hashIndex[block.Hash()] = number
	for i, tx := range block.Transactions() {
		s.txIndex[tx.Hash()] = txLocation{
			blockHash:   block.Hash(),
			blockNumber: number,
			index:       uint64(i),
		}
	}
	s.lastNumber = number
	s.hasBlocks = true
	return nil
}

// reserve appends a run of count empty blocks after the current tail.
func (s *sparseStorage) reserve(base *types.Block, count, interval uint64, stateRoot types.Hash, coinbase types.Address) {
	baseNumber := base.NumberU64()
	baseHash := base.Hash()
	r := &reservation{
		first:         baseNumber + 1,
		last:          baseNumber + count,
		interval:      interval,
		baseNumber:    baseNumber,
		baseTimestamp: base.Time(),
		baseHash:      baseHash,
		stateRoot:     stateRoot,
		gasLimit:      base.GasLimit(),
		coinbase:      coinbase,
		difficulty:    new(big.Int),
		baseFee:       base.BaseFee(),
		hashSeed:      types.Hash(crypto.Keccak256Array(baseHash[:], []byte("reserved hash"))),
		randaoSeed:    types.Hash(crypto.Keccak256Array(baseHash[:], []byte("reserved randao"))),
	}
	if excess := base.RawHeader().ExcessBlobGas; excess != nil {
		v := *excess
		r.excessBlobGas = &v
	}
	s.reservations = append(s.reservations, r)
	s.lastNumber = r.last
	s.hasBlocks = true
}

// blockByNumber returns the block at n, materializing it from a
// reservation when needed. Materialized blocks are cached so hash
// lookups find them afterwards.
func (s *sparseStorage) blockByNumber(n uint64) *types.Block {
	if entry, ok := s.entries[n]; ok {
		return entry.block
	}
	for _, r := range s.reservations {
		if n < r.first || n > r.last {
			continue
		}
		block := r.materialize(s.config, n)
		s.entries[n] = &blockEntry{block: block}
		s.hashIndex[block.Hash()] = n
		return block
	}
	return nil
}

func (s *sparseStorage) blockByHash(h types.Hash) *types.Block {
	n, ok := s.hashIndex[h]
	if !ok {
		return nil
	}
	return s.blockByNumber(n)
}

func (s *sparseStorage) receiptsOf(blockHash types.Hash) (types.Receipts, bool) {
	n, ok := s.hashIndex[blockHash]
	if !ok {
		return nil, false
	}
	entry, ok := s.entries[n]
	if !ok {
		return nil, false
	}
	return entry.receipts, true
}

func (s *sparseStorage) transaction(hash types.Hash) (txLocation, bool) {
	loc, ok := s.txIndex[hash]
	return loc, ok
}

// diffsUntil returns the diffs of all real blocks with number <= n, in
// block order. Reserved blocks contribute nothing.
func (s *sparseStorage) diffsUntil(n uint64) []state.Diff {
	var diffs []state.Diff
	for _, number := range s.realNumbers {
		if number > n {
			break
		}
		diffs = append(diffs, s.entries[number].diff)
	}
	return diffs
}

// diffLayersUntil counts the store layers committed by blocks <= n.
func (s *sparseStorage) diffLayersUntil(n uint64) int {
	count := 0
	for _, number := range s.realNumbers {
		if number > n {
			break
		}
		count++
	}
	return count
}

// truncate drops every block and reservation above n.
func (s *sparseStorage) truncate(n uint64) {
	for number, entry := range s.entries {
		if number <= n {
			continue
		}
		delete(s.hashIndex, entry.block.Hash())
		for _, tx := range entry.block.Transactions() {
			delete(s.txIndex, tx.Hash())
		}
		delete(s.entries, number)
	}
	cut := sort.Search(len(s.realNumbers), func(i int) bool { return s.realNumbers[i] > n })
	s.realNumbers = s.realNumbers[:cut]

	kept := s.reservations[:0]
	for _, r := range s.reservations {
		if r.first > n {
			continue
		}
		if r.last > n {
			r.last = n
		}
		kept = append(kept, r)
	}
	s.reservations = kept
	if n < s.lastNumber {
		s.lastNumber = n
	}
}

func (s *sparseStorage) head() (uint64, bool) {
	return s.lastNumber, s.hasBlocks
}
