package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/devchain-eth/devchain/rpc"
)

func (p *Provider) handleEvm(ctx context.Context, method string, params json.RawMessage) (interface{}, *rpc.Error) {
	switch method {
	case "evm_mine":
		return p.evmMine(ctx, params)
	case "evm_increaseTime":
		return p.evmIncreaseTime(params)
	case "evm_setNextBlockTimestamp":
		return p.evmSetNextBlockTimestamp(ctx, params)
	case "evm_setAutomine":
		return p.evmSetAutomine(params)
	case "evm_setBlockGasLimit":
		return p.evmSetBlockGasLimit(params)
	case "evm_setIntervalMining":
		return p.evmSetIntervalMining(params)
	case "evm_snapshot":
		return p.evmSnapshot(), nil
	case "evm_revert":
		return p.evmRevert(params)
	}
	return nil, rpc.NewError(rpc.ErrCodeMethodNotFound, fmt.Sprintf("the method %s does not exist", method))
}

// evmMine seals one block, optionally at an explicit timestamp.
func (p *Provider) evmMine(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var timestamp rpc.Uint64
	if err := decodeParams(params, &timestamp); err != nil {
		return nil, invalidParams(err)
	}
	if _, err := p.mineBlock(ctx, uint64(timestamp)); err != nil {
		return nil, p.errorResponse(err)
	}
	// Ganache compatibility: the result is the constant "0x0".
	return "0x0", nil
}

// evmIncreaseTime shifts the session clock forward and returns the
// total accumulated offset in seconds.
func (p *Provider) evmIncreaseTime(params json.RawMessage) (interface{}, *rpc.Error) {
	var delta json.Number
	if err := decodeParams(params, &delta); err != nil {
		// Some clients send the delta as a hex quantity.
		var hexDelta rpc.Uint64
		if err := decodeParams(params, &hexDelta); err != nil {
			return nil, invalidParams(err)
		}
		delta = json.Number(fmt.Sprintf("%d", uint64(hexDelta)))
	}
	seconds, err := delta.Int64()
	if err != nil {
		return nil, invalidParams(fmt.Errorf("invalid time delta: %w", err))
	}
	if seconds < 0 {
		return nil, invalidParams(fmt.Errorf("time delta must not be negative"))
	}
	p.timeOffset += seconds
	return fmt.Sprintf("%d", p.timeOffset), nil
}

// evmSetNextBlockTimestamp pins the next mined block's timestamp. It
// must advance past the current head.
func (p *Provider) evmSetNextBlockTimestamp(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var timestamp rpc.Uint64
	if err := decodeParams(params, &timestamp); err != nil {
		return nil, invalidParams(err)
	}
	head, err := p.chain.Head(ctx)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	if uint64(timestamp) <= head.Time() {
		return nil, invalidParams(fmt.Errorf(
			"timestamp %d is not greater than the current block timestamp %d", timestamp, head.Time()))
	}
	p.nextBlockTimestamp = uint64(timestamp)
	return nil, nil
}

func (p *Provider) evmSetAutomine(params json.RawMessage) (interface{}, *rpc.Error) {
	var enabled bool
	if err := decodeParams(params, &enabled); err != nil {
		return nil, invalidParams(err)
	}
	p.autoMine = enabled
	return true, nil
}

func (p *Provider) evmSetBlockGasLimit(params json.RawMessage) (interface{}, *rpc.Error) {
	var limit rpc.Uint64
	if err := decodeParams(params, &limit); err != nil {
		return nil, invalidParams(err)
	}
	if limit == 0 {
		return nil, invalidParams(fmt.Errorf("block gas limit must be greater than zero"))
	}
	p.blockGasLimit = uint64(limit)
	return true, nil
}

// evmSetIntervalMining takes the interval in milliseconds; zero stops
// the background miner.
func (p *Provider) evmSetIntervalMining(params json.RawMessage) (interface{}, *rpc.Error) {
	var millis json.Number
	if err := decodeParams(params, &millis); err != nil {
		return nil, invalidParams(err)
	}
	interval, err := millis.Int64()
	if err != nil || interval < 0 {
		return nil, invalidParams(fmt.Errorf("invalid mining interval %q", millis))
	}
	p.startIntervalMining(time.Duration(interval) * time.Millisecond)
	return true, nil
}

// evmSnapshot captures the full revertible session state.
func (p *Provider) evmSnapshot() interface{} {
	snap := &sessionSnapshot{
		mark:               p.chain.Mark(),
		pool:               p.pool.Copy(),
		timeOffset:         p.timeOffset,
		nextBlockTimestamp: p.nextBlockTimestamp,
		coinbase:           p.coinbase,
		blockGasLimit:      p.blockGasLimit,
		minGasPrice:        p.pool.MinGasPrice(),
		randaoCounter:      p.randaoGen.Counter(),
	}
	if p.nextBaseFee != nil {
		snap.nextBaseFee = new(big.Int).Set(p.nextBaseFee)
	}
	if p.nextPrevRandao != nil {
		randao := *p.nextPrevRandao
		snap.nextPrevRandao = &randao
	}
	id := p.snapshots.push(snap)
	if p.loggingEnabled {
		p.logger.Debug("snapshot taken", "id", id, "head", snap.mark.Head())
	}
	return rpc.EncodeUint64(id)
}

// evmRevert restores a snapshot by id. The id and every later one are
// consumed; an unknown id returns false.
func (p *Provider) evmRevert(params json.RawMessage) (interface{}, *rpc.Error) {
	var id rpc.Uint64
	if err := decodeParams(params, &id); err != nil {
		return nil, invalidParams(err)
	}
	snap := p.snapshots.take(uint64(id))
	if snap == nil {
		return false, nil
	}
	if err := p.chain.ResetTo(snap.mark); err != nil {
		p.setFatal(err)
		return nil, p.errorResponse(err)
	}
	p.pool.Restore(snap.pool)
	p.timeOffset = snap.timeOffset
	p.nextBlockTimestamp = snap.nextBlockTimestamp
	p.nextBaseFee = snap.nextBaseFee
	p.nextPrevRandao = snap.nextPrevRandao
	p.coinbase = snap.coinbase
	p.blockGasLimit = snap.blockGasLimit
	p.pool.SetMinGasPrice(snap.minGasPrice)
	p.randaoGen.Rewind(snap.randaoCounter)
	if p.loggingEnabled {
		p.logger.Debug("snapshot restored", "id", id, "head", p.chain.HeadNumber())
	}
	return true, nil
}
