package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/devchain-eth/devchain/blockchain"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/mempool"
	"github.com/devchain-eth/devchain/rpc"
	"github.com/devchain-eth/devchain/state"
)

func (p *Provider) handleHardhat(ctx context.Context, method string, params json.RawMessage) (interface{}, *rpc.Error) {
	switch method {
	case "hardhat_impersonateAccount":
		return p.hardhatImpersonate(params, true)
	case "hardhat_stopImpersonatingAccount":
		return p.hardhatImpersonate(params, false)
	case "hardhat_mine":
		return p.hardhatMine(ctx, params)
	case "hardhat_setBalance":
		return p.hardhatSetBalance(params)
	case "hardhat_setCode":
		return p.hardhatSetCode(params)
	case "hardhat_setNonce":
		return p.hardhatSetNonce(params)
	case "hardhat_setStorageAt":
		return p.hardhatSetStorageAt(params)
	case "hardhat_setCoinbase":
		return p.hardhatSetCoinbase(params)
	case "hardhat_setMinGasPrice":
		return p.hardhatSetMinGasPrice(params)
	case "hardhat_setNextBlockBaseFeePerGas":
		return p.hardhatSetNextBaseFee(params)
	case "hardhat_setPrevRandao":
		return p.hardhatSetPrevRandao(params)
	case "hardhat_dropTransaction":
		return p.hardhatDropTransaction(params)
	case "hardhat_getAutomine":
		return p.autoMine, nil
	case "hardhat_metadata":
		return p.hardhatMetadata(ctx)
	case "hardhat_reset":
		return p.hardhatReset(ctx, params)
	case "hardhat_setLoggingEnabled":
		return p.hardhatSetLogging(params)
	}
	return nil, rpc.NewError(rpc.ErrCodeMethodNotFound, fmt.Sprintf("the method %s does not exist", method))
}

func (p *Provider) hardhatImpersonate(params json.RawMessage, enable bool) (interface{}, *rpc.Error) {
	var addr types.Address
	if err := decodeParams(params, &addr); err != nil {
		return nil, invalidParams(err)
	}
	if enable {
		p.impersonated[addr] = struct{}{}
	} else {
		delete(p.impersonated, addr)
	}
	return true, nil
}

// hardhatMine seals count blocks spaced interval seconds apart. Blocks
// past the pending transactions are reserved rather than executed, so
// huge counts complete in constant time.
func (p *Provider) hardhatMine(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	count := rpc.Uint64(1)
	interval := rpc.Uint64(1)
	if err := decodeParams(params, &count, &interval); err != nil {
		return nil, invalidParams(err)
	}
	if err := p.mineSeries(ctx, uint64(count), uint64(interval)); err != nil {
		return nil, p.errorResponse(err)
	}
	return true, nil
}

// applyIrregular commits a direct state edit as an irregular override
// of the current head.
func (p *Provider) applyIrregular(mutate func(db *state.StateDB)) *rpc.Error {
	statedb := state.New(p.chain.Store())
	mutate(statedb)
	statedb.Finalise()
	if _, err := p.chain.ApplyIrregular(statedb.BuildDiff()); err != nil {
		p.setFatal(err)
		return p.errorResponse(err)
	}
	return nil
}

func (p *Provider) hardhatSetBalance(params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		addr    types.Address
		balance rpc.Big
	)
	if err := decodeParams(params, &addr, &balance); err != nil {
		return nil, invalidParams(err)
	}
	if rpcErr := p.applyIrregular(func(db *state.StateDB) {
		current := db.GetBalance(addr)
		target := balance.ToInt()
		if diff := new(big.Int).Sub(target, current); diff.Sign() >= 0 {
			db.AddBalance(addr, diff)
		} else {
			db.SubBalance(addr, diff.Neg(diff))
		}
	}); rpcErr != nil {
		return nil, rpcErr
	}
	return true, nil
}

func (p *Provider) hardhatSetCode(params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		addr types.Address
		code rpc.Bytes
	)
	if err := decodeParams(params, &addr, &code); err != nil {
		return nil, invalidParams(err)
	}
	if rpcErr := p.applyIrregular(func(db *state.StateDB) {
		db.SetCode(addr, code)
	}); rpcErr != nil {
		return nil, rpcErr
	}
	return true, nil
}

func (p *Provider) hardhatSetNonce(params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		addr  types.Address
		nonce rpc.Uint64
	)
	if err := decodeParams(params, &addr, &nonce); err != nil {
		return nil, invalidParams(err)
	}
	current := state.New(p.chain.Store()).GetNonce(addr)
	if uint64(nonce) < current {
		return nil, invalidParams(fmt.Errorf(
			"new nonce %d must not be lower than the current nonce %d", nonce, current))
	}
	if rpcErr := p.applyIrregular(func(db *state.StateDB) {
		db.SetNonce(addr, uint64(nonce))
	}); rpcErr != nil {
		return nil, rpcErr
	}
	return true, nil
}

func (p *Provider) hardhatSetStorageAt(params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		addr  types.Address
		slot  rpc.Big
		value types.Hash
	)
	if err := decodeParams(params, &addr, &slot, &value); err != nil {
		return nil, invalidParams(err)
	}
	var key types.Hash
	slot.ToInt().FillBytes(key[:])
	if rpcErr := p.applyIrregular(func(db *state.StateDB) {
		db.SetState(addr, key, value)
	}); rpcErr != nil {
		return nil, rpcErr
	}
	return true, nil
}

func (p *Provider) hardhatSetCoinbase(params json.RawMessage) (interface{}, *rpc.Error) {
	var addr types.Address
	if err := decodeParams(params, &addr); err != nil {
		return nil, invalidParams(err)
	}
	p.coinbase = addr
	return true, nil
}

func (p *Provider) hardhatSetMinGasPrice(params json.RawMessage) (interface{}, *rpc.Error) {
	var price rpc.Big
	if err := decodeParams(params, &price); err != nil {
		return nil, invalidParams(err)
	}
	p.pool.SetMinGasPrice(price.ToInt())
	return true, nil
}

func (p *Provider) hardhatSetNextBaseFee(params json.RawMessage) (interface{}, *rpc.Error) {
	var fee rpc.Big
	if err := decodeParams(params, &fee); err != nil {
		return nil, invalidParams(err)
	}
	p.nextBaseFee = fee.ToInt()
	return true, nil
}

func (p *Provider) hardhatSetPrevRandao(params json.RawMessage) (interface{}, *rpc.Error) {
	var randao types.Hash
	if err := decodeParams(params, &randao); err != nil {
		return nil, invalidParams(err)
	}
	p.nextPrevRandao = &randao
	return true, nil
}

func (p *Provider) hardhatDropTransaction(params json.RawMessage) (interface{}, *rpc.Error) {
	var hash types.Hash
	if err := decodeParams(params, &hash); err != nil {
		return nil, invalidParams(err)
	}
	return p.pool.Remove(hash), nil
}

// metadataResult is the hardhat_metadata response shape.
type metadataResult struct {
	ClientVersion     string         `json:"clientVersion"`
	ChainID           rpc.Uint64     `json:"chainId"`
	InstanceID        types.Hash     `json:"instanceId"`
	LatestBlockNumber rpc.Uint64     `json:"latestBlockNumber"`
	LatestBlockHash   types.Hash     `json:"latestBlockHash"`
	ForkedNetwork     *forkedNetwork `json:"forkedNetwork,omitempty"`
}

type forkedNetwork struct {
	ChainID         rpc.Uint64 `json:"chainId"`
	ForkBlockNumber rpc.Uint64 `json:"forkBlockNumber"`
	ForkBlockHash   types.Hash `json:"forkBlockHash"`
}

func (p *Provider) hardhatMetadata(ctx context.Context) (interface{}, *rpc.Error) {
	head, err := p.chain.Head(ctx)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	out := &metadataResult{
		ClientVersion:     ClientVersion,
		ChainID:           rpc.Uint64(p.config.ChainID.Uint64()),
		InstanceID:        p.instanceID,
		LatestBlockNumber: rpc.Uint64(head.NumberU64()),
		LatestBlockHash:   head.Hash(),
	}
	if p.chain.Forked() {
		forkBlock := p.chain.ForkBlock()
		forkHash, err := p.chain.BlockHashByNumber(ctx, forkBlock)
		if err != nil {
			return nil, p.errorResponse(err)
		}
		out.ForkedNetwork = &forkedNetwork{
			ChainID:         rpc.Uint64(p.client.ChainID()),
			ForkBlockNumber: rpc.Uint64(forkBlock),
			ForkBlockHash:   forkHash,
		}
	}
	return out, nil
}

// resetParams is the optional hardhat_reset argument.
type resetParams struct {
	Forking *struct {
		JSONRPCURL  string      `json:"jsonRpcUrl"`
		BlockNumber *rpc.Uint64 `json:"blockNumber"`
	} `json:"forking"`
}

// hardhatReset rebuilds the session from scratch: a fresh chain (local
// or forked per the params), an empty mempool, and cleared time,
// snapshot and filter state.
func (p *Provider) hardhatReset(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var args resetParams
	if err := decodeParams(params, &args); err != nil {
		return nil, invalidParams(err)
	}

	p.stopIntervalMining()
	p.client = nil
	if args.Forking != nil && args.Forking.JSONRPCURL != "" {
		forkBlock := uint64(0)
		if args.Forking.BlockNumber != nil {
			forkBlock = uint64(*args.Forking.BlockNumber)
		}
		if err := p.attachFork(ctx, args.Forking.JSONRPCURL, forkBlock); err != nil {
			return nil, p.errorResponse(err)
		}
	} else {
		if err := p.createLocalChain(); err != nil {
			return nil, p.errorResponse(err)
		}
	}

	p.pool = mempool.New(mempool.Config{ChainConfig: p.config, MinGasPrice: p.cfg.MinGasPrice})
	p.impersonated = make(map[types.Address]struct{})
	p.timeOffset = 0
	p.nextBlockTimestamp = 0
	p.nextBaseFee = nil
	p.nextPrevRandao = nil
	p.randaoGen = blockchain.NewHashGenerator(p.cfg.PrevRandaoSeed)
	p.snapshots.clear()
	p.filters = newFilterSet()

	if p.loggingEnabled {
		p.logger.Info("session reset", "forked", p.chain.Forked(), "head", p.chain.HeadNumber())
	}
	return true, nil
}

func (p *Provider) hardhatSetLogging(params json.RawMessage) (interface{}, *rpc.Error) {
	var enabled bool
	if err := decodeParams(params, &enabled); err != nil {
		return nil, invalidParams(err)
	}
	p.loggingEnabled = enabled
	return true, nil
}
