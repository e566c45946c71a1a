package provider

import (
	"context"
	"errors"
	"math/big"

	"github.com/devchain-eth/devchain/core"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
	"github.com/devchain-eth/devchain/mempool"
	"github.com/devchain-eth/devchain/state"
	"github.com/devchain-eth/devchain/tracing"
)

// mineBlock seals one block from the mempool's ordered pending set.
// timestamp zero means the session's next block time. Callers hold the
// session lock.
func (p *Provider) mineBlock(ctx context.Context, timestamp uint64) (*types.Block, error) {
	parent, err := p.chain.Head(ctx)
	if err != nil {
		return nil, err
	}
	if timestamp == 0 {
		timestamp = p.nextBlockTime(parent.RawHeader())
	}

	console := tracing.NewConsoleLogCollector()
	builder := core.NewBlockBuilder(p.config, p.chain.Store(), parent.RawHeader(), core.BuildOptions{
		Coinbase:   p.coinbase,
		GasLimit:   p.blockGasLimit,
		Timestamp:  timestamp,
		PrevRandao: p.takePrevRandao(),
		BaseFee:    p.nextBaseFee,
		ParentHash: parent.Hash(),
	}, p.getHashFn(ctx), vm.Config{
		ExtraPrecompiles: p.cfg.ExtraPrecompiles,
		CallOverride:     p.callOverride,
		ConsoleSink:      console.Sink,
	})

	var mined []types.Hash
	set := p.pool.OrderedPending(builder.Header().BaseFee)
	for {
		tx := set.Peek()
		if tx == nil {
			break
		}
		if _, err := builder.AddTransaction(tx); err != nil {
			switch {
			case errors.Is(err, core.ErrGasLimitReached), errors.Is(err, core.ErrBlobGasLimitReached):
				// Out of block budget for this sender's next nonce;
				// later nonces cannot jump the queue.
				set.Pop()
			default:
				// Invalid against current state. Evict and move on so
				// one bad transaction cannot wedge the block.
				p.logger.Warn("dropping invalid pending transaction", "hash", tx.Hash(), "err", err)
				p.pool.Remove(tx.Hash())
				set.Pop()
			}
			continue
		}
		mined = append(mined, tx.Hash())
		set.Shift()
	}

	block, receipts, diff, err := builder.Finalize(nil)
	if err != nil {
		return nil, err
	}
	if err := p.chain.InsertBlock(block, receipts, diff); err != nil {
		p.setFatal(err)
		return nil, err
	}
	for _, hash := range mined {
		p.pool.Remove(hash)
	}
	p.pool.Update(state.New(p.chain.Store()))

	p.nextBaseFee = nil
	p.nextBlockTimestamp = 0
	p.syncClockTo(block.Time())

	if p.loggingEnabled {
		p.logger.Info("block mined",
			"number", block.NumberU64(), "hash", block.Hash(),
			"txs", len(block.Transactions()), "gasUsed", block.GasUsed())
		if lines := console.Lines(); len(lines) > 0 {
			p.logger.Info(tracing.FormatConsoleLines(lines))
		}
	}
	p.notifyNewBlock(block, receipts)
	return block, nil
}

// mineSeries implements hardhat_mine: real blocks while transactions
// are pending, then a single reservation for the empty remainder.
func (p *Provider) mineSeries(ctx context.Context, count, interval uint64) error {
	if count == 0 {
		return nil
	}
	if interval == 0 {
		interval = 1
	}
	remaining := count
	for remaining > 0 && p.pool.Len() > 0 {
		parent, err := p.chain.Head(ctx)
		if err != nil {
			return err
		}
		timestamp := p.nextBlockTime(parent.RawHeader())
		if remaining < count {
			// Blocks after the first follow the requested cadence.
			timestamp = parent.Time() + interval
		}
		if _, err := p.mineBlock(ctx, timestamp); err != nil {
			return err
		}
		remaining--
	}
	if remaining == 0 {
		return nil
	}
	if err := p.chain.ReserveBlocks(ctx, remaining, interval); err != nil {
		return err
	}
	head, err := p.chain.Head(ctx)
	if err != nil {
		return err
	}
	p.syncClockTo(head.Time())
	p.nextBlockTimestamp = 0
	if p.loggingEnabled {
		p.logger.Info("blocks reserved", "count", remaining, "interval", interval, "head", head.NumberU64())
	}
	return nil
}

// takePrevRandao consumes the explicit override or draws the next
// generator value.
func (p *Provider) takePrevRandao() types.Hash {
	if p.nextPrevRandao != nil {
		randao := *p.nextPrevRandao
		p.nextPrevRandao = nil
		return randao
	}
	return p.randaoGen.Next()
}

// notifyNewBlock fans the head and its logs out to filters and
// subscriptions.
func (p *Provider) notifyNewBlock(block *types.Block, receipts types.Receipts) {
	var logs []*types.Log
	for _, receipt := range receipts {
		logs = append(logs, receipt.Logs...)
	}
	p.filters.onNewBlock(block, logs)
}

// admitTransaction runs pool admission against the live head state and
// notifies pending-transaction observers.
func (p *Provider) admitTransaction(ctx context.Context, tx *types.Transaction) error {
	head, err := p.chain.Head(ctx)
	if err != nil {
		return err
	}
	view := state.New(p.chain.Store())
	if err := p.pool.Add(tx, view, head.Number(), head.Time(), p.blockGasLimit); err != nil {
		return err
	}
	if p.loggingEnabled {
		p.logger.Debug("transaction admitted", "hash", tx.Hash())
	}
	p.filters.onPendingTransaction(tx.Hash())
	return nil
}

// sendTransaction admits tx and auto-mines when enabled.
func (p *Provider) sendTransaction(ctx context.Context, tx *types.Transaction) (types.Hash, error) {
	if err := p.admitTransaction(ctx, tx); err != nil {
		return types.Hash{}, err
	}
	if p.autoMine {
		if _, err := p.mineBlock(ctx, 0); err != nil {
			return types.Hash{}, err
		}
	}
	return tx.Hash(), nil
}

// pendingBlock assembles the pending-tag block view: next header over
// the current head carrying the ordered pending transactions. Nothing
// is executed or committed.
func (p *Provider) pendingBlock(ctx context.Context) (*types.Block, error) {
	parent, err := p.chain.Head(ctx)
	if err != nil {
		return nil, err
	}
	parentHeader := parent.RawHeader()
	timestamp := p.nextBlockTime(parentHeader)
	gasLimit := p.blockGasLimit
	if gasLimit == 0 {
		gasLimit = parentHeader.GasLimit
	}
	header := &types.Header{
		ParentHash: parent.Hash(),
		UncleHash:  types.EmptyUncleHash,
		Coinbase:   p.coinbase,
		Root:       parentHeader.Root,
		TxHash:     types.EmptyRootHash,
		ReceiptHash: types.EmptyRootHash,
		Number:     new(big.Int).Add(parent.Number(), big.NewInt(1)),
		GasLimit:   gasLimit,
		Time:       timestamp,
		Difficulty: core.CalcDifficulty(p.config, timestamp, parentHeader),
	}
	if p.config.IsLondon(header.Number) {
		if p.nextBaseFee != nil {
			header.BaseFee = p.nextBaseFee
		} else {
			header.BaseFee = core.CalcBaseFee(p.config, parentHeader)
		}
	}
	var txs types.Transactions
	set := p.pool.OrderedPending(header.BaseFee)
	for {
		tx := set.Peek()
		if tx == nil {
			break
		}
		txs = append(txs, tx)
		set.Shift()
	}
	return types.NewBlock(header, &types.Body{Transactions: txs}), nil
}

// ordered pending admission helpers reuse the mempool's state view
// contract.
var _ mempool.StateView = (*state.StateDB)(nil)
