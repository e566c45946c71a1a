// Package provider implements the in-process JSON-RPC Ethereum
// provider: the eth_/evm_/hardhat_/debug_ method set over a local or
// forked devchain session. One request at a time holds the session
// lock; everything observable is consistent with full serialization.
package provider

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/devchain-eth/devchain/blockchain"
	"github.com/devchain-eth/devchain/core"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
	"github.com/devchain-eth/devchain/log"
	"github.com/devchain-eth/devchain/mempool"
	"github.com/devchain-eth/devchain/remote"
	"github.com/devchain-eth/devchain/rpc"
	"github.com/devchain-eth/devchain/state"
	"github.com/devchain-eth/devchain/tracing"
)

// Provider-level failures.
var (
	// ErrUnknownAccount is returned when a request needs a key the
	// provider does not hold and the sender is not impersonated.
	ErrUnknownAccount = errors.New("provider: unknown account")

	// ErrSessionUnusable marks a provider after a fatal invariant
	// violation; every later request fails with it.
	ErrSessionUnusable = errors.New("provider: session unusable after fatal error")
)

// Provider is the single-sessioned JSON-RPC dispatcher. It owns the
// blockchain, mempool, clock, dev accounts and all mining knobs, and
// implements rpc.Handler.
type Provider struct {
	mu sync.Mutex

	cfg    Config
	config *core.ChainConfig
	chain  *blockchain.Blockchain
	client remote.Client
	pool   *mempool.Pool
	clock  Clock
	logger *log.Logger

	accountOrder []types.Address
	accountKeys  map[types.Address]*ecdsa.PrivateKey
	impersonated map[types.Address]struct{}

	autoMine      bool
	coinbase      types.Address
	blockGasLimit uint64

	// timeOffset shifts the clock so block timestamps stay monotonic
	// across evm_increaseTime and explicit timestamp mining.
	timeOffset         int64
	nextBlockTimestamp uint64
	nextBaseFee        *big.Int
	nextPrevRandao     *types.Hash
	randaoGen          *blockchain.HashGenerator

	snapshots *snapshotStack
	filters   *filterSet

	callOverride   vm.CallOverrideFunc
	subCallback    SubscriptionFunc
	loggingEnabled bool
	instanceID     types.Hash

	intervalCancel context.CancelFunc

	fatal error
}

var _ rpc.Handler = (*Provider)(nil)

// New builds a provider session from cfg, creating either a fresh
// local chain or a fork of the configured remote endpoint.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	cfg = cfg.withDefaults()
	accountOrder, accountKeys, err := cfg.parseAccounts()
	if err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:            cfg,
		clock:          cfg.Clock,
		logger:         log.Module("provider"),
		accountOrder:   accountOrder,
		accountKeys:    accountKeys,
		impersonated:   make(map[types.Address]struct{}),
		autoMine:       cfg.AutoMine,
		coinbase:       cfg.Coinbase,
		blockGasLimit:  cfg.BlockGasLimit,
		randaoGen:      blockchain.NewHashGenerator(cfg.PrevRandaoSeed),
		snapshots:      &snapshotStack{},
		filters:        newFilterSet(),
		loggingEnabled: true,
	}
	p.instanceID = blockchain.DeriveHash(types.Hash{}, cfg.Clock.Now())

	if cfg.ForkURL != "" {
		if err := p.attachFork(ctx, cfg.ForkURL, cfg.ForkBlock); err != nil {
			return nil, err
		}
	} else {
		if err := p.createLocalChain(); err != nil {
			return nil, err
		}
	}
	p.pool = mempool.New(mempool.Config{ChainConfig: p.config, MinGasPrice: cfg.MinGasPrice})
	p.logger.Info("provider session started",
		"chainId", p.config.ChainID, "forked", p.chain.Forked(), "automine", p.autoMine)
	return p, nil
}

func (p *Provider) createLocalChain() error {
	p.config = p.cfg.chainConfig()
	timestamp := p.cfg.GenesisTimestamp
	if timestamp == 0 {
		timestamp = p.clock.Now()
	}
	genesis := p.cfg.genesis(p.config, p.accountOrder, timestamp)
	chain, err := blockchain.NewLocal(genesis)
	if err != nil {
		return err
	}
	p.chain = chain
	return nil
}

func (p *Provider) attachFork(ctx context.Context, url string, forkBlock uint64) error {
	client, err := remote.Dial(ctx, url, p.cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("provider: dialing fork endpoint: %w", err)
	}
	if forkBlock == 0 {
		latest, err := client.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("provider: reading remote head: %w", err)
		}
		forkBlock = latest
	}
	if config, ok := core.KnownChainConfig(client.ChainID()); ok {
		p.config = config
	} else {
		p.config = core.DevChainConfig(client.ChainID())
	}
	chain, err := blockchain.NewForked(ctx, p.config, client, forkBlock, p.cfg.StateRootSeed)
	if err != nil {
		return err
	}
	p.chain = chain
	p.client = client
	return nil
}

// Handle dispatches one JSON-RPC call under the session lock.
func (p *Provider) Handle(ctx context.Context, method string, params json.RawMessage) (interface{}, *rpc.Error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fatal != nil {
		return nil, rpc.NewError(rpc.ErrCodeInternal, ErrSessionUnusable.Error())
	}
	switch {
	case strings.HasPrefix(method, "eth_"):
		return p.handleEth(ctx, method, params)
	case strings.HasPrefix(method, "evm_"):
		return p.handleEvm(ctx, method, params)
	case strings.HasPrefix(method, "hardhat_"):
		return p.handleHardhat(ctx, method, params)
	case strings.HasPrefix(method, "debug_"):
		return p.handleDebug(ctx, method, params)
	case method == "net_version":
		return fmt.Sprintf("%d", p.cfg.NetworkID), nil
	case method == "web3_clientVersion":
		return ClientVersion, nil
	}
	return nil, rpc.NewError(rpc.ErrCodeMethodNotFound, fmt.Sprintf("the method %s does not exist", method))
}

// decodeParams unpacks a positional params array into targets.
// Missing trailing entries leave their targets untouched.
func decodeParams(params json.RawMessage, targets ...interface{}) error {
	if len(params) == 0 {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil {
		return fmt.Errorf("invalid params array: %w", err)
	}
	for i, target := range targets {
		if i >= len(raw) || string(raw[i]) == "null" {
			continue
		}
		if err := json.Unmarshal(raw[i], target); err != nil {
			return fmt.Errorf("invalid param %d: %w", i, err)
		}
	}
	return nil
}

func invalidParams(err error) *rpc.Error {
	return rpc.NewError(rpc.ErrCodeInvalidParams, err.Error())
}

// revertError carries the raw revert payload so clients can decode
// custom errors themselves.
type revertError struct {
	message string
	data    []byte
}

func (e *revertError) Error() string { return e.message }

// newRevertError renders an execution revert with the decoded Solidity
// reason when the payload matches Error(string) or Panic(uint256).
func newRevertError(result *core.ExecutionResult) *revertError {
	message := "execution reverted"
	if reason, ok := tracing.DecodeRevertReason(result.Revert()); ok {
		message = fmt.Sprintf("execution reverted: %s", reason)
	}
	return &revertError{message: message, data: result.Revert()}
}

// errorResponse is the single place errors become JSON-RPC errors, so
// codes stay consistent across methods.
func (p *Provider) errorResponse(err error) *rpc.Error {
	var revert *revertError
	switch {
	case errors.As(err, &revert):
		return rpc.NewErrorWithData(rpc.ErrCodeServer, revert.message, rpc.EncodeBytes(revert.data))
	case isAdmissionError(err):
		return rpc.NewError(rpc.ErrCodeTransactionReject, err.Error())
	case errors.Is(err, blockchain.ErrBlockNotFound),
		errors.Is(err, blockchain.ErrTransactionNotFound):
		return rpc.NewError(rpc.ErrCodeInvalidParams, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return rpc.NewError(rpc.ErrCodeInternal, err.Error())
	}
	return rpc.NewError(rpc.ErrCodeServer, err.Error())
}

// isAdmissionError classifies mempool and pre-execution validation
// failures that reject a transaction without touching state.
func isAdmissionError(err error) bool {
	for _, sentinel := range []error{
		mempool.ErrAlreadyKnown,
		mempool.ErrReplaceUnderpriced,
		mempool.ErrGasLimit,
		mempool.ErrDepositNotAllowed,
		core.ErrNonceTooLow,
		core.ErrNonceTooHigh,
		core.ErrInsufficientFunds,
		core.ErrFeeCapTooLow,
		core.ErrTipAboveFeeCap,
		core.ErrIntrinsicGas,
		core.ErrFloorDataGas,
		core.ErrSenderNoEOA,
		types.ErrTxTypeNotSupported,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// setFatal marks the session unusable. Used for invariant violations
// that leave state inconsistent.
func (p *Provider) setFatal(err error) {
	if p.fatal == nil {
		p.fatal = err
		p.logger.Error("fatal provider error", "err", err)
	}
}

// now is the session's current time: clock plus accumulated offset.
func (p *Provider) now() uint64 {
	shifted := int64(p.clock.Now()) + p.timeOffset
	if shifted < 0 {
		return 0
	}
	return uint64(shifted)
}

// nextBlockTime resolves the timestamp of the next mined block:
// max(parent+1, now+offset), with an explicit override winning over
// the clock.
func (p *Provider) nextBlockTime(parent *types.Header) uint64 {
	next := p.now()
	if p.nextBlockTimestamp != 0 {
		next = p.nextBlockTimestamp
	}
	if min := parent.Time + 1; next < min {
		next = min
	}
	return next
}

// syncClockTo re-anchors the offset so the session clock continues
// from the given mined timestamp.
func (p *Provider) syncClockTo(timestamp uint64) {
	p.timeOffset = int64(timestamp) - int64(p.clock.Now())
}

// getHashFn serves BLOCKHASH lookups during execution.
func (p *Provider) getHashFn(ctx context.Context) vm.GetHashFunc {
	return func(n uint64) types.Hash {
		hash, err := p.chain.BlockHashByNumber(ctx, n)
		if err != nil {
			return types.Hash{}
		}
		return hash
	}
}

// resolveBlockNumber maps a tag to a concrete height. The pending tag
// resolves to the head; callers that need the pending view handle it
// before calling here.
func (p *Provider) resolveBlockNumber(bn rpc.BlockNumber) uint64 {
	if bn.Int64() < 0 {
		return p.chain.HeadNumber()
	}
	return uint64(bn.Int64())
}

// blockNumberFor resolves a BlockNumberOrHash to a height.
func (p *Provider) blockNumberFor(ctx context.Context, bnh rpc.BlockNumberOrHash) (uint64, error) {
	if hash, ok := bnh.Hash(); ok {
		block, err := p.chain.BlockByHash(ctx, hash)
		if err != nil {
			return 0, err
		}
		return block.NumberU64(), nil
	}
	bn, _ := bnh.Number()
	return p.resolveBlockNumber(bn), nil
}

// stateAt opens a read state over the chain as of the given block.
// The head (and the pending tag) reads the live store; history is
// reconstructed from diffs.
func (p *Provider) stateAt(ctx context.Context, bnh rpc.BlockNumberOrHash) (*state.StateDB, *types.Header, error) {
	number, err := p.blockNumberFor(ctx, bnh)
	if err != nil {
		return nil, nil, err
	}
	block, err := p.chain.BlockByNumber(ctx, number)
	if err != nil {
		return nil, nil, err
	}
	if number == p.chain.HeadNumber() {
		return state.New(p.chain.Store()), block.RawHeader(), nil
	}
	store, err := p.chain.StateAt(number)
	if err != nil {
		return nil, nil, err
	}
	return state.New(store), block.RawHeader(), nil
}

// latestBlockNumberOrHash is the default block selector.
func latestBlockNumberOrHash() rpc.BlockNumberOrHash {
	return rpc.BlockNumberOrHashWithNumber(rpc.LatestBlockNumber)
}

// signTransaction signs txdata for from: with the real key when the
// provider holds one, with the deterministic fake signature when from
// is impersonated.
func (p *Provider) signTransaction(txdata types.TxData, from types.Address) (*types.Transaction, error) {
	signer := types.LatestSigner(p.config.ChainID)
	tx := types.NewTx(txdata)
	if key, ok := p.accountKeys[from]; ok {
		return types.SignTx(tx, signer, key)
	}
	if _, ok := p.impersonated[from]; ok {
		return types.FakeSignTx(tx, signer, from), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, from.Hex())
}

// SetCallOverride installs the cheatcode hook consulted before every
// message call. Pass nil to clear.
func (p *Provider) SetCallOverride(fn vm.CallOverrideFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callOverride = fn
}

// SetSubscriptionCallback installs the sink eth_subscribe events are
// pushed to. In-process callers wire this to their notification
// transport; without it subscriptions are accepted but silent.
func (p *Provider) SetSubscriptionCallback(fn SubscriptionFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subCallback = fn
}

// Chain exposes the underlying blockchain for embedding tools.
func (p *Provider) Chain() *blockchain.Blockchain {
	return p.chain
}

// Close stops background mining.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopIntervalMining()
}

// startIntervalMining replaces any running interval miner. A zero
// interval stops it.
func (p *Provider) startIntervalMining(interval time.Duration) {
	p.stopIntervalMining()
	if interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.intervalCancel = cancel
	go p.runIntervalMiner(ctx, interval)
	p.logger.Info("interval mining enabled", "interval", interval)
}

func (p *Provider) stopIntervalMining() {
	if p.intervalCancel != nil {
		p.intervalCancel()
		p.intervalCancel = nil
	}
}

func (p *Provider) runIntervalMiner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			if p.fatal == nil {
				if _, err := p.mineBlock(ctx, 0); err != nil {
					p.logger.Warn("interval mining failed", "err", err)
				}
			}
			p.mu.Unlock()
		}
	}
}
