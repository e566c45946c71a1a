// Package mempool holds transactions waiting to be mined. Pending
// transactions are executable now: their nonces form a contiguous run
// starting at the account's state nonce. Queued transactions have a
// nonce gap and become pending once it closes.
package mempool

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/devchain-eth/devchain/core"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/crypto"
	"github.com/devchain-eth/devchain/log"
)

var (
	ErrAlreadyKnown       = errors.New("already known")
	ErrReplaceUnderpriced = errors.New("replacement transaction underpriced")
	ErrGasLimit           = errors.New("exceeds block gas limit")
	ErrNegativeValue      = errors.New("negative value")
	ErrTipAboveFeeCap     = errors.New("max priority fee per gas higher than max fee per gas")
	ErrBlobSidecarMissing = errors.New("blob transaction without sidecar")
	ErrBlobHashMismatch   = errors.New("blob versioned hash mismatch")
	ErrBlobTxNoRecipient  = errors.New("blob transaction without recipient")
	ErrDepositNotAllowed  = errors.New("deposit transactions cannot be submitted")
)

// priceBumpPercent is the minimum fee increase to replace a pending
// transaction with the same nonce.
const priceBumpPercent = 10

// StateView is the account state the pool validates against.
type StateView interface {
	GetNonce(types.Address) uint64
	GetBalance(types.Address) *big.Int
	GetCode(types.Address) []byte
}

// Config parameterizes pool admission.
type Config struct {
	ChainConfig *core.ChainConfig

	// MinGasPrice rejects transactions whose effective fee is below
	// the node's floor. Nil disables the check.
	MinGasPrice *big.Int
}

// Pool is the node's transaction mempool.
type Pool struct {
	mu sync.Mutex

	config Config
	signer types.Signer
	logger *log.Logger

	pending map[types.Address]*txList
	queued  map[types.Address]*txList
	all     map[types.Hash]*types.Transaction

	arrival map[types.Hash]uint64
	ticker  uint64
}

// New creates an empty pool.
func New(config Config) *Pool {
	return &Pool{
		config:  config,
		signer:  types.LatestSigner(config.ChainConfig.ChainID),
		logger:  log.Module("mempool"),
		pending: make(map[types.Address]*txList),
		queued:  make(map[types.Address]*txList),
		all:     make(map[types.Hash]*types.Transaction),
		arrival: make(map[types.Hash]uint64),
	}
}

// SetMinGasPrice replaces the admission fee floor. Nil disables it.
// Already pooled transactions are not re-checked.
func (p *Pool) SetMinGasPrice(price *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if price == nil {
		p.config.MinGasPrice = nil
		return
	}
	p.config.MinGasPrice = new(big.Int).Set(price)
}

// MinGasPrice returns the current admission fee floor, nil if disabled.
func (p *Pool) MinGasPrice() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.config.MinGasPrice == nil {
		return nil
	}
	return new(big.Int).Set(p.config.MinGasPrice)
}

// Has reports whether the pool knows the transaction.
func (p *Pool) Has(hash types.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.all[hash]
	return ok
}

// Get returns a known transaction or nil.
func (p *Pool) Get(hash types.Hash) *types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.all[hash]
}

// Len returns the total number of pooled transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}

// Add validates tx against view and admits it into pending or queued.
// head is the (number, time) point validation rules come from.
func (p *Pool) Add(tx *types.Transaction, view StateView, headNumber *big.Int, headTime uint64, blockGasLimit uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := tx.Hash()
	if _, ok := p.all[hash]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyKnown, hash.Hex())
	}
	from, err := p.validate(tx, view, headNumber, headTime, blockGasLimit)
	if err != nil {
		return err
	}
	stateNonce := view.GetNonce(from)

	// Same-nonce replacement needs a fee bump on both caps.
	if old := p.findByNonce(from, tx.Nonce()); old != nil {
		if !feeBumped(old, tx) {
			return ErrReplaceUnderpriced
		}
		p.removeLocked(old.Hash())
	}

	p.ticker++
	p.arrival[hash] = p.ticker
	p.all[hash] = tx

	if p.isPendingNonce(from, tx.Nonce(), stateNonce) {
		p.bucket(p.pending, from).Put(tx)
		// The new transaction may close the gap for queued ones.
		p.promote(from, stateNonce)
	} else {
		p.bucket(p.queued, from).Put(tx)
	}
	p.logger.Debug("admitted transaction", "hash", hash.Hex(), "from", from.Hex(), "nonce", tx.Nonce())
	return nil
}

func (p *Pool) validate(tx *types.Transaction, view StateView, headNumber *big.Int, headTime uint64, blockGasLimit uint64) (types.Address, error) {
	if tx.Type() == types.DepositTxType {
		return types.Address{}, ErrDepositNotAllowed
	}
	if err := p.config.ChainConfig.SupportsType(tx.Type(), headNumber, headTime); err != nil {
		return types.Address{}, err
	}
	from, err := types.Sender(p.signer, tx)
	if err != nil {
		return types.Address{}, err
	}
	if tx.Value().Sign() < 0 {
		return from, ErrNegativeValue
	}
	if tx.Gas() > blockGasLimit {
		return from, fmt.Errorf("%w: tx gas %d, block limit %d", ErrGasLimit, tx.Gas(), blockGasLimit)
	}
	if tx.GasFeeCap().Cmp(tx.GasTipCap()) < 0 {
		return from, ErrTipAboveFeeCap
	}
	if p.config.MinGasPrice != nil && tx.GasFeeCap().Cmp(p.config.MinGasPrice) < 0 {
		return from, fmt.Errorf("transaction gas price %s below minimum %s", tx.GasFeeCap(), p.config.MinGasPrice)
	}
	if tx.Nonce() < view.GetNonce(from) {
		return from, fmt.Errorf("%w: address %s, tx: %d state: %d", core.ErrNonceTooLow, from.Hex(), tx.Nonce(), view.GetNonce(from))
	}
	// EIP-3607 admission check, with EIP-7702 delegation allowance.
	if code := view.GetCode(from); len(code) > 0 {
		if _, ok := types.ParseDelegation(code); !ok {
			return from, core.ErrSenderNoEOA
		}
	}
	rules := p.config.ChainConfig.Rules(headNumber, headTime)
	intrinsic, err := core.IntrinsicGas(tx.Data(), tx.AccessList(), tx.SetCodeAuthorizations(), tx.To() == nil, rules.IsHomestead, rules.IsIstanbul, rules.IsShanghai)
	if err != nil {
		return from, err
	}
	if tx.Gas() < intrinsic {
		return from, fmt.Errorf("%w: have %d, want %d", core.ErrIntrinsicGas, tx.Gas(), intrinsic)
	}
	if rules.IsPrague {
		floor, err := core.FloorDataGas(tx.Data())
		if err != nil {
			return from, err
		}
		if tx.Gas() < floor {
			return from, fmt.Errorf("%w: have %d, want %d", core.ErrFloorDataGas, tx.Gas(), floor)
		}
	}
	if view.GetBalance(from).Cmp(tx.Cost()) < 0 {
		return from, fmt.Errorf("%w: address %s", core.ErrInsufficientFunds, from.Hex())
	}
	if tx.Type() == types.BlobTxType {
		if err := p.validateBlobs(tx); err != nil {
			return from, err
		}
	}
	return from, nil
}

// validateBlobs checks the sidecar against the transaction's versioned
// hashes and verifies every KZG proof.
func (p *Pool) validateBlobs(tx *types.Transaction) error {
	if tx.To() == nil {
		return ErrBlobTxNoRecipient
	}
	sidecar := tx.BlobSidecar()
	if sidecar == nil {
		return ErrBlobSidecarMissing
	}
	hashes := tx.BlobHashes()
	if len(hashes) == 0 {
		return errors.New("blob transaction without blobs")
	}
	if len(sidecar.Blobs) != len(hashes) || len(sidecar.Commitments) != len(hashes) || len(sidecar.Proofs) != len(hashes) {
		return fmt.Errorf("sidecar size mismatch: %d hashes, %d blobs, %d commitments, %d proofs",
			len(hashes), len(sidecar.Blobs), len(sidecar.Commitments), len(sidecar.Proofs))
	}
	for i, hash := range hashes {
		if types.Hash(crypto.KZGToVersionedHash(sidecar.Commitments[i])) != hash {
			return fmt.Errorf("%w: blob %d", ErrBlobHashMismatch, i)
		}
		if err := crypto.VerifyBlobProof(sidecar.Blobs[i], sidecar.Commitments[i], sidecar.Proofs[i]); err != nil {
			return fmt.Errorf("blob %d: %w", i, err)
		}
	}
	return nil
}

// Remove drops a transaction by hash. Pending transactions behind it
// are demoted to queued.
func (p *Pool) Remove(hash types.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(hash)
}

func (p *Pool) removeLocked(hash types.Hash) bool {
	tx, ok := p.all[hash]
	if !ok {
		return false
	}
	delete(p.all, hash)
	delete(p.arrival, hash)
	from, _ := types.Sender(p.signer, tx)
	if list := p.pending[from]; list != nil && list.Remove(tx.Nonce()) {
		// Higher-nonce pending transactions are no longer contiguous.
		for _, moved := range list.Forward(^uint64(0)) {
			if moved.Nonce() > tx.Nonce() {
				p.bucket(p.queued, from).Put(moved)
			} else {
				list.Put(moved)
			}
		}
		if list.Len() == 0 {
			delete(p.pending, from)
		}
		return true
	}
	if list := p.queued[from]; list != nil && list.Remove(tx.Nonce()) {
		if list.Len() == 0 {
			delete(p.queued, from)
		}
		return true
	}
	return true
}

// Update re-buckets the pool after state changed: mined or stale
// transactions are dropped, executable queued transactions promoted,
// non-executable pending ones demoted.
func (p *Pool) Update(view StateView) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for from, list := range p.pending {
		stateNonce := view.GetNonce(from)
		for _, tx := range list.Forward(stateNonce) {
			delete(p.all, tx.Hash())
			delete(p.arrival, tx.Hash())
		}
		for _, tx := range list.Forward(^uint64(0)) {
			p.bucket(p.queued, from).Put(tx)
		}
		delete(p.pending, from)
	}
	for from, list := range p.queued {
		stateNonce := view.GetNonce(from)
		for _, tx := range list.Forward(stateNonce) {
			delete(p.all, tx.Hash())
			delete(p.arrival, tx.Hash())
		}
		if list.Len() == 0 {
			delete(p.queued, from)
		}
	}
	for from := range p.queued {
		p.promote(from, view.GetNonce(from))
	}
}

// promote moves the contiguous run starting at stateNonce (accounting
// for already-pending txs) from queued to pending.
func (p *Pool) promote(from types.Address, stateNonce uint64) {
	next := stateNonce
	if pending := p.pending[from]; pending != nil {
		for pending.Get(next) != nil {
			next++
		}
	}
	queued := p.queued[from]
	if queued == nil {
		return
	}
	for {
		tx := queued.Get(next)
		if tx == nil {
			break
		}
		queued.Remove(next)
		p.bucket(p.pending, from).Put(tx)
		next++
	}
	if queued.Len() == 0 {
		delete(p.queued, from)
	}
}

func (p *Pool) isPendingNonce(from types.Address, nonce, stateNonce uint64) bool {
	if nonce == stateNonce {
		return true
	}
	if nonce < stateNonce {
		return false
	}
	pending := p.pending[from]
	if pending == nil {
		return false
	}
	for n := stateNonce; n < nonce; n++ {
		if pending.Get(n) == nil {
			return false
		}
	}
	return true
}

func (p *Pool) findByNonce(from types.Address, nonce uint64) *types.Transaction {
	if list := p.pending[from]; list != nil {
		if tx := list.Get(nonce); tx != nil {
			return tx
		}
	}
	if list := p.queued[from]; list != nil {
		return list.Get(nonce)
	}
	return nil
}

func (p *Pool) bucket(m map[types.Address]*txList, from types.Address) *txList {
	list := m[from]
	if list == nil {
		list = newTxList()
		m[from] = list
	}
	return list
}

// Pending returns the executable transactions per account, nonce
// ascending.
func (p *Pool) Pending() map[types.Address]types.Transactions {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[types.Address]types.Transactions, len(p.pending))
	for from, list := range p.pending {
		out[from] = append(types.Transactions(nil), list.Flatten()...)
	}
	return out
}

// Queued returns the non-executable transactions per account.
func (p *Pool) Queued() map[types.Address]types.Transactions {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[types.Address]types.Transactions, len(p.queued))
	for from, list := range p.queued {
		out[from] = append(types.Transactions(nil), list.Flatten()...)
	}
	return out
}

// PendingHashes returns the hashes of all pending transactions.
func (p *Pool) PendingHashes() []types.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()
	var hashes []types.Hash
	for _, list := range p.pending {
		for _, tx := range list.Flatten() {
			hashes = append(hashes, tx.Hash())
		}
	}
	return hashes
}

// Clear empties the pool.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = make(map[types.Address]*txList)
	p.queued = make(map[types.Address]*txList)
	p.all = make(map[types.Hash]*types.Transaction)
	p.arrival = make(map[types.Hash]uint64)
}

// Copy deep-copies the pool's bookkeeping. Transactions themselves
// are immutable and shared.
func (p *Pool) Copy() *Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cpy := New(p.config)
	cpy.ticker = p.ticker
	for from, list := range p.pending {
		cpy.pending[from] = list.copy()
	}
	for from, list := range p.queued {
		cpy.queued[from] = list.copy()
	}
	for hash, tx := range p.all {
		cpy.all[hash] = tx
	}
	for hash, at := range p.arrival {
		cpy.arrival[hash] = at
	}
	return cpy
}

// Restore replaces the pool contents with a previously taken Copy.
func (p *Pool) Restore(snapshot *Pool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = snapshot.pending
	p.queued = snapshot.queued
	p.all = snapshot.all
	p.arrival = snapshot.arrival
	p.ticker = snapshot.ticker
}

func feeBumped(old, new_ *types.Transaction) bool {
	bump := big.NewInt(100 + priceBumpPercent)
	oldFeeCap := new(big.Int).Mul(old.GasFeeCap(), bump)
	oldTip := new(big.Int).Mul(old.GasTipCap(), bump)
	newFeeCap := new(big.Int).Mul(new_.GasFeeCap(), big.NewInt(100))
	newTip := new(big.Int).Mul(new_.GasTipCap(), big.NewInt(100))
	return newFeeCap.Cmp(oldFeeCap) >= 0 && newTip.Cmp(oldTip) >= 0
}
