package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/devchain-eth/devchain/core"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
	"github.com/devchain-eth/devchain/rpc"
	"github.com/devchain-eth/devchain/state"
	"github.com/devchain-eth/devchain/tracing"
)

func (p *Provider) handleDebug(ctx context.Context, method string, params json.RawMessage) (interface{}, *rpc.Error) {
	switch method {
	case "debug_traceTransaction":
		return p.debugTraceTransaction(ctx, params)
	case "debug_traceCall":
		return p.debugTraceCall(ctx, params)
	}
	return nil, rpc.NewError(rpc.ErrCodeMethodNotFound, fmt.Sprintf("the method %s does not exist", method))
}

// traceConfig is the options object of debug_traceTransaction and
// debug_traceCall. An empty Tracer selects the opcode struct logger.
type traceConfig struct {
	Tracer           string `json:"tracer"`
	EnableMemory     bool   `json:"enableMemory"`
	DisableStack     bool   `json:"disableStack"`
	DisableStorage   bool   `json:"disableStorage"`
	EnableReturnData bool   `json:"enableReturnData"`
	Limit            int    `json:"limit"`

	// SkipUnsupportedTransactions replays past transactions of types
	// the configured hardfork cannot execute as no-ops instead of
	// failing the whole trace.
	SkipUnsupportedTransactions bool `json:"skipUnsupportedTransactions"`
}

func (cfg *traceConfig) structLogConfig() tracing.StructLogConfig {
	return tracing.StructLogConfig{
		EnableMemory:     cfg.EnableMemory,
		DisableStack:     cfg.DisableStack,
		DisableStorage:   cfg.DisableStorage,
		EnableReturnData: cfg.EnableReturnData,
		Limit:            cfg.Limit,
	}
}

// newTracer builds the inspector and the result extractor for cfg.
func (cfg *traceConfig) newTracer() (vm.Inspector, func() interface{}, error) {
	switch cfg.Tracer {
	case "":
		logger := tracing.NewStructLogger(cfg.structLogConfig())
		return logger, func() interface{} { return logger.Result() }, nil
	case "callTracer":
		collector := tracing.NewTraceCollector()
		return collector, func() interface{} { return collector.Trace() }, nil
	}
	return nil, nil, fmt.Errorf("unsupported tracer %q", cfg.Tracer)
}

// debugTraceTransaction re-executes a mined transaction on its block's
// parent state, replaying the preceding transactions untraced.
func (p *Provider) debugTraceTransaction(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		hash types.Hash
		cfg  traceConfig
	)
	if err := decodeParams(params, &hash, &cfg); err != nil {
		return nil, invalidParams(err)
	}
	inspector, result, err := cfg.newTracer()
	if err != nil {
		return nil, invalidParams(err)
	}

	entry, err := p.chain.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	if entry.BlockNumber == 0 {
		return nil, invalidParams(fmt.Errorf("genesis block is not traceable"))
	}
	block, err := p.chain.BlockByNumber(ctx, entry.BlockNumber)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	store, err := p.chain.StateAt(entry.BlockNumber - 1)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	statedb := state.New(store)
	if sl, ok := inspector.(*tracing.StructLogger); ok {
		sl.StateDB = statedb
	}

	header := block.RawHeader()
	blockCtx := core.NewEVMBlockContext(p.config, header, p.getHashFn(ctx))
	rules := p.config.Rules(header.Number, header.Time)
	signer := types.LatestSigner(p.config.ChainID)

	skipUnsupported := cfg.SkipUnsupportedTransactions || p.cfg.SkipUnsupportedTransactions
	for i, tx := range block.Transactions() {
		msg, err := core.TransactionToMessage(tx, signer, header.BaseFee)
		if err != nil {
			if skipUnsupported && uint64(i) != entry.Index {
				p.logger.Warn("skipping unsupported transaction in trace replay",
					"block", entry.BlockNumber, "index", i, "err", err)
				continue
			}
			return nil, p.errorResponse(err)
		}
		vmCfg := vm.Config{
			ExtraPrecompiles: p.cfg.ExtraPrecompiles,
			CallOverride:     p.callOverride,
		}
		if uint64(i) == entry.Index {
			vmCfg.Inspector = inspector
		}
		evm := vm.NewEVM(blockCtx, core.NewEVMTxContext(msg), statedb, rules, vmCfg)
		statedb.SetTxContext(tx.Hash(), i)
		gp := new(core.GasPool).AddGas(msg.GasLimit)
		if _, err := core.ApplyMessage(evm, p.config, statedb, msg, gp); err != nil {
			return nil, p.errorResponse(fmt.Errorf("replaying transaction %d: %w", i, err))
		}
		statedb.Finalise()
		if uint64(i) == entry.Index {
			return result(), nil
		}
	}
	return nil, p.errorResponse(fmt.Errorf("transaction %s not found in block %d", hash.Hex(), entry.BlockNumber))
}

// traceCallConfig extends traceConfig with call-time state and block
// overrides.
type traceCallConfig struct {
	traceConfig
	StateOverrides stateOverrides  `json:"stateOverrides"`
	BlockOverrides *blockOverrides `json:"blockOverrides"`
}

func (cfg *traceCallConfig) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &cfg.traceConfig); err != nil {
		return err
	}
	var overrides struct {
		StateOverrides stateOverrides  `json:"stateOverrides"`
		BlockOverrides *blockOverrides `json:"blockOverrides"`
	}
	if err := json.Unmarshal(data, &overrides); err != nil {
		return err
	}
	cfg.StateOverrides = overrides.StateOverrides
	cfg.BlockOverrides = overrides.BlockOverrides
	return nil
}

// debugTraceCall traces a synthetic call against the state at the
// given block without admitting anything.
func (p *Provider) debugTraceCall(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		args TransactionArgs
		cfg  traceCallConfig
	)
	bnh := latestBlockNumberOrHash()
	if err := decodeParams(params, &args, &bnh, &cfg); err != nil {
		return nil, invalidParams(err)
	}
	inspector, result, err := cfg.newTracer()
	if err != nil {
		return nil, invalidParams(err)
	}
	gas := p.blockGasLimit
	if args.Gas != nil {
		gas = uint64(*args.Gas)
	}
	if _, err := p.doCall(ctx, &args, bnh, cfg.StateOverrides, cfg.BlockOverrides, gas, inspector); err != nil {
		return nil, p.errorResponse(err)
	}
	return result(), nil
}
