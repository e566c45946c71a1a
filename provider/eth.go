package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/devchain-eth/devchain/blockchain"
	"github.com/devchain-eth/devchain/core"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
	"github.com/devchain-eth/devchain/crypto"
	"github.com/devchain-eth/devchain/rpc"
	"github.com/devchain-eth/devchain/state"
	"github.com/devchain-eth/devchain/tracing"
)

func (p *Provider) handleEth(ctx context.Context, method string, params json.RawMessage) (interface{}, *rpc.Error) {
	switch method {
	case "eth_chainId":
		return rpc.EncodeBig(p.config.ChainID), nil
	case "eth_blockNumber":
		return rpc.EncodeUint64(p.chain.HeadNumber()), nil
	case "eth_coinbase":
		return p.coinbase, nil
	case "eth_accounts":
		return p.accountOrder, nil
	case "eth_syncing":
		return false, nil
	case "eth_mining":
		return false, nil
	case "eth_gasPrice":
		return rpc.EncodeBig(p.suggestGasPrice(ctx)), nil
	case "eth_maxPriorityFeePerGas":
		return rpc.EncodeBig(big.NewInt(int64(core.InitialBaseFee))), nil
	case "eth_blobBaseFee":
		return rpc.EncodeBig(p.blobBaseFee(ctx)), nil

	case "eth_getBalance":
		return p.ethGetBalance(ctx, params)
	case "eth_getTransactionCount":
		return p.ethGetTransactionCount(ctx, params)
	case "eth_getCode":
		return p.ethGetCode(ctx, params)
	case "eth_getStorageAt":
		return p.ethGetStorageAt(ctx, params)
	case "eth_getBlockByNumber":
		return p.ethGetBlockByNumber(ctx, params)
	case "eth_getBlockByHash":
		return p.ethGetBlockByHash(ctx, params)
	case "eth_getBlockTransactionCountByNumber":
		return p.ethGetBlockTransactionCountByNumber(ctx, params)
	case "eth_getTransactionByHash":
		return p.ethGetTransactionByHash(ctx, params)
	case "eth_getTransactionByBlockNumberAndIndex":
		return p.ethGetTransactionByBlockNumberAndIndex(ctx, params)
	case "eth_getTransactionReceipt":
		return p.ethGetTransactionReceipt(ctx, params)
	case "eth_getBlockReceipts":
		return p.ethGetBlockReceipts(ctx, params)
	case "eth_getLogs":
		return p.ethGetLogs(ctx, params)
	case "eth_sendTransaction":
		return p.ethSendTransaction(ctx, params)
	case "eth_sendRawTransaction":
		return p.ethSendRawTransaction(ctx, params)
	case "eth_call":
		return p.ethCall(ctx, params)
	case "eth_estimateGas":
		return p.ethEstimateGas(ctx, params)
	case "eth_feeHistory":
		return p.ethFeeHistory(ctx, params)
	case "eth_sign":
		return p.ethSign(params)
	case "eth_signTypedData_v4":
		return p.ethSignTypedData(params)

	case "eth_newFilter":
		return p.ethNewFilter(params)
	case "eth_newBlockFilter":
		return rpc.EncodeUint64(p.filters.install(blockFilter, filterCriteria{}).id), nil
	case "eth_newPendingTransactionFilter":
		return rpc.EncodeUint64(p.filters.install(pendingTxFilter, filterCriteria{}).id), nil
	case "eth_uninstallFilter":
		return p.ethUninstallFilter(params)
	case "eth_getFilterChanges":
		return p.ethGetFilterChanges(params)
	case "eth_getFilterLogs":
		return p.ethGetFilterLogs(ctx, params)
	case "eth_subscribe":
		return p.ethSubscribe(params)
	case "eth_unsubscribe":
		return p.ethUnsubscribe(params)
	}
	return nil, rpc.NewError(rpc.ErrCodeMethodNotFound, fmt.Sprintf("the method %s does not exist", method))
}

// suggestGasPrice is next base fee plus a 1 gwei tip.
func (p *Provider) suggestGasPrice(ctx context.Context) *big.Int {
	tip := big.NewInt(int64(core.InitialBaseFee))
	head, err := p.chain.Head(ctx)
	if err != nil || head.BaseFee() == nil {
		return tip
	}
	next := core.CalcBaseFee(p.config, head.RawHeader())
	return next.Add(next, tip)
}

func (p *Provider) blobBaseFee(ctx context.Context) *big.Int {
	head, err := p.chain.Head(ctx)
	if err != nil {
		return new(big.Int)
	}
	header := head.RawHeader()
	if header.ExcessBlobGas == nil {
		return new(big.Int)
	}
	return core.CalcBlobFee(p.config, header.Number, header.Time, *header.ExcessBlobGas)
}

func (p *Provider) ethGetBalance(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var addr types.Address
	bnh := latestBlockNumberOrHash()
	if err := decodeParams(params, &addr, &bnh); err != nil {
		return nil, invalidParams(err)
	}
	statedb, _, err := p.stateAt(ctx, bnh)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	return rpc.EncodeBig(statedb.GetBalance(addr)), nil
}

func (p *Provider) ethGetTransactionCount(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var addr types.Address
	bnh := latestBlockNumberOrHash()
	if err := decodeParams(params, &addr, &bnh); err != nil {
		return nil, invalidParams(err)
	}
	statedb, _, err := p.stateAt(ctx, bnh)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	nonce := statedb.GetNonce(addr)
	if bn, ok := bnh.Number(); ok && bn == rpc.PendingBlockNumber {
		// Pending nonces extend the state nonce contiguously.
		nonce += uint64(len(p.pool.Pending()[addr]))
	}
	return rpc.EncodeUint64(nonce), nil
}

func (p *Provider) ethGetCode(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var addr types.Address
	bnh := latestBlockNumberOrHash()
	if err := decodeParams(params, &addr, &bnh); err != nil {
		return nil, invalidParams(err)
	}
	statedb, _, err := p.stateAt(ctx, bnh)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	return rpc.EncodeBytes(statedb.GetCode(addr)), nil
}

func (p *Provider) ethGetStorageAt(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		addr types.Address
		slot rpc.Big
	)
	bnh := latestBlockNumberOrHash()
	if err := decodeParams(params, &addr, &slot, &bnh); err != nil {
		return nil, invalidParams(err)
	}
	statedb, _, err := p.stateAt(ctx, bnh)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	var key types.Hash
	slot.ToInt().FillBytes(key[:])
	value := statedb.GetState(addr, key)
	return value, nil
}

func (p *Provider) ethGetBlockByNumber(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		bn     rpc.BlockNumber
		fullTx bool
	)
	if err := decodeParams(params, &bn, &fullTx); err != nil {
		return nil, invalidParams(err)
	}
	if bn == rpc.PendingBlockNumber {
		block, err := p.pendingBlock(ctx)
		if err != nil {
			return nil, p.errorResponse(err)
		}
		return formatBlock(block, fullTx, true), nil
	}
	block, err := p.chain.BlockByNumber(ctx, p.resolveBlockNumber(bn))
	if errors.Is(err, blockchain.ErrBlockNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, p.errorResponse(err)
	}
	return formatBlock(block, fullTx, false), nil
}

func (p *Provider) ethGetBlockByHash(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		hash   types.Hash
		fullTx bool
	)
	if err := decodeParams(params, &hash, &fullTx); err != nil {
		return nil, invalidParams(err)
	}
	block, err := p.chain.BlockByHash(ctx, hash)
	if errors.Is(err, blockchain.ErrBlockNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, p.errorResponse(err)
	}
	return formatBlock(block, fullTx, false), nil
}

func (p *Provider) ethGetBlockTransactionCountByNumber(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var bn rpc.BlockNumber
	if err := decodeParams(params, &bn); err != nil {
		return nil, invalidParams(err)
	}
	if bn == rpc.PendingBlockNumber {
		block, err := p.pendingBlock(ctx)
		if err != nil {
			return nil, p.errorResponse(err)
		}
		return rpc.EncodeUint64(uint64(len(block.Transactions()))), nil
	}
	block, err := p.chain.BlockByNumber(ctx, p.resolveBlockNumber(bn))
	if errors.Is(err, blockchain.ErrBlockNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, p.errorResponse(err)
	}
	return rpc.EncodeUint64(uint64(len(block.Transactions()))), nil
}

func (p *Provider) ethGetTransactionByHash(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var hash types.Hash
	if err := decodeParams(params, &hash); err != nil {
		return nil, invalidParams(err)
	}
	if tx := p.pool.Get(hash); tx != nil {
		return formatTransaction(tx, nil), nil
	}
	entry, err := p.chain.TransactionByHash(ctx, hash)
	if errors.Is(err, blockchain.ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, p.errorResponse(err)
	}
	return p.formatMinedTransaction(ctx, entry)
}

func (p *Provider) formatMinedTransaction(ctx context.Context, entry *blockchain.TxEntry) (interface{}, *rpc.Error) {
	block, err := p.chain.BlockByNumber(ctx, entry.BlockNumber)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	out := formatTransaction(entry.Tx, block.BaseFee())
	out.BlockHash = &entry.BlockHash
	out.BlockNumber = newRPCUint64(&entry.BlockNumber)
	out.TransactionIndex = newRPCUint64(&entry.Index)
	return out, nil
}

func (p *Provider) ethGetTransactionByBlockNumberAndIndex(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		bn    rpc.BlockNumber
		index rpc.Uint64
	)
	if err := decodeParams(params, &bn, &index); err != nil {
		return nil, invalidParams(err)
	}
	block, err := p.chain.BlockByNumber(ctx, p.resolveBlockNumber(bn))
	if errors.Is(err, blockchain.ErrBlockNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, p.errorResponse(err)
	}
	txs := block.Transactions()
	if uint64(index) >= uint64(len(txs)) {
		return nil, nil
	}
	return p.formatMinedTransaction(ctx, &blockchain.TxEntry{
		Tx:          txs[index],
		BlockHash:   block.Hash(),
		BlockNumber: block.NumberU64(),
		Index:       uint64(index),
	})
}

func (p *Provider) ethGetTransactionReceipt(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var hash types.Hash
	if err := decodeParams(params, &hash); err != nil {
		return nil, invalidParams(err)
	}
	receipt, err := p.chain.ReceiptByTxHash(ctx, hash)
	if errors.Is(err, blockchain.ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, p.errorResponse(err)
	}
	entry, err := p.chain.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	return formatReceipt(receipt, entry.Tx), nil
}

func (p *Provider) ethGetBlockReceipts(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	bnh := latestBlockNumberOrHash()
	if err := decodeParams(params, &bnh); err != nil {
		return nil, invalidParams(err)
	}
	number, err := p.blockNumberFor(ctx, bnh)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	block, err := p.chain.BlockByNumber(ctx, number)
	if errors.Is(err, blockchain.ErrBlockNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, p.errorResponse(err)
	}
	receipts, err := p.chain.ReceiptsByBlockHash(ctx, block.Hash())
	if err != nil {
		return nil, p.errorResponse(err)
	}
	txs := block.Transactions()
	out := make([]*receiptResult, 0, len(receipts))
	for i, receipt := range receipts {
		if i >= len(txs) {
			break
		}
		out = append(out, formatReceipt(receipt, txs[i]))
	}
	return out, nil
}

func (p *Provider) ethGetLogs(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var crit filterCriteria
	if err := decodeParams(params, &crit); err != nil {
		return nil, invalidParams(err)
	}
	logs, err := p.runLogQuery(ctx, &crit)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	return formatLogs(logs), nil
}

func (p *Provider) runLogQuery(ctx context.Context, crit *filterCriteria) ([]*types.Log, error) {
	if crit.BlockHash != nil {
		block, err := p.chain.BlockByHash(ctx, *crit.BlockHash)
		if err != nil {
			return nil, err
		}
		return p.chain.Logs(ctx, &blockchain.FilterQuery{
			FromBlock: block.NumberU64(),
			ToBlock:   block.NumberU64(),
			Addresses: crit.Addresses,
			Topics:    crit.Topics,
		})
	}
	return p.chain.Logs(ctx, crit.query(p.chain.HeadNumber()))
}

func (p *Provider) ethSendTransaction(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var args TransactionArgs
	if err := decodeParams(params, &args); err != nil {
		return nil, invalidParams(err)
	}
	if args.From == nil {
		return nil, invalidParams(errors.New("missing from address"))
	}
	if err := p.fillDefaults(ctx, &args); err != nil {
		return nil, p.errorResponse(err)
	}
	txdata, err := args.toTxData(p.config.ChainID)
	if err != nil {
		return nil, invalidParams(err)
	}
	tx, err := p.signTransaction(txdata, *args.From)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	hash, err := p.sendTransaction(ctx, tx)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	return hash, nil
}

// fillDefaults resolves nonce, gas and fee fields the caller omitted.
func (p *Provider) fillDefaults(ctx context.Context, args *TransactionArgs) error {
	if err := args.checkFees(); err != nil {
		return err
	}
	head, err := p.chain.Head(ctx)
	if err != nil {
		return err
	}
	if args.Nonce == nil {
		statedb := state.New(p.chain.Store())
		nonce := statedb.GetNonce(*args.From) + uint64(len(p.pool.Pending()[*args.From]))
		args.Nonce = newRPCUint64(&nonce)
	}
	if args.GasPrice == nil && !args.hasDynamicFees() && head.BaseFee() == nil {
		args.GasPrice = rpc.NewBig(p.suggestGasPrice(ctx))
	}
	if args.GasPrice == nil {
		// Dynamic fees on a post-London chain.
		if args.MaxPriorityFeePerGas == nil {
			args.MaxPriorityFeePerGas = rpc.NewBig(big.NewInt(int64(core.InitialBaseFee)))
		}
		if args.MaxFeePerGas == nil {
			feeCap := new(big.Int).Mul(core.CalcBaseFee(p.config, head.RawHeader()), big.NewInt(2))
			feeCap.Add(feeCap, args.MaxPriorityFeePerGas.ToInt())
			args.MaxFeePerGas = rpc.NewBig(feeCap)
		}
	}
	if args.Gas == nil {
		gas, err := p.estimateGasFor(ctx, args, latestBlockNumberOrHash(), nil)
		if err != nil {
			return err
		}
		args.Gas = newRPCUint64(&gas)
	}
	return nil
}

func (p *Provider) ethSendRawTransaction(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var raw rpc.Bytes
	if err := decodeParams(params, &raw); err != nil {
		return nil, invalidParams(err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, invalidParams(fmt.Errorf("invalid raw transaction: %w", err))
	}
	hash, err := p.sendTransaction(ctx, tx)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	return hash, nil
}

// doCall executes a read-only call against the state at bnh. The base
// fee check is disabled so zero-fee synthetic calls run like geth's.
func (p *Provider) doCall(ctx context.Context, args *TransactionArgs, bnh rpc.BlockNumberOrHash, overrides stateOverrides, bo *blockOverrides, gas uint64, inspector vm.Inspector) (*core.ExecutionResult, error) {
	statedb, header, err := p.stateAt(ctx, bnh)
	if err != nil {
		return nil, err
	}
	ov, err := overrides.toOverrides()
	if err != nil {
		return nil, err
	}
	if ov != nil {
		if err := ov.Apply(statedb); err != nil {
			return nil, err
		}
	}
	if sl, ok := inspector.(*tracing.StructLogger); ok {
		sl.StateDB = statedb
	}
	execHeader := bo.apply(header)
	msg, err := args.callMessage(statedb.GetNonce(args.from()), gas, execHeader.BaseFee)
	if err != nil {
		return nil, err
	}
	evm := vm.NewEVM(
		core.NewEVMBlockContext(p.config, execHeader, p.getHashFn(ctx)),
		core.NewEVMTxContext(msg),
		statedb,
		p.config.Rules(execHeader.Number, execHeader.Time),
		vm.Config{
			Inspector:        inspector,
			NoBaseFee:        true,
			ExtraPrecompiles: p.cfg.ExtraPrecompiles,
			CallOverride:     p.callOverride,
		},
	)
	gp := new(core.GasPool).AddGas(msg.GasLimit)
	return core.ApplyMessage(evm, p.config, statedb, msg, gp)
}

func (p *Provider) ethCall(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		args      TransactionArgs
		overrides stateOverrides
	)
	bnh := latestBlockNumberOrHash()
	if err := decodeParams(params, &args, &bnh, &overrides); err != nil {
		return nil, invalidParams(err)
	}
	result, err := p.doCall(ctx, &args, bnh, overrides, nil, p.blockGasLimit, nil)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	if result.Err != nil {
		if len(result.Revert()) > 0 {
			return nil, p.errorResponse(newRevertError(result))
		}
		return nil, p.errorResponse(fmt.Errorf("execution failed: %w", result.Err))
	}
	return rpc.EncodeBytes(result.Return()), nil
}

// estimateGasFor binary-searches the least gas the call succeeds with.
func (p *Provider) estimateGasFor(ctx context.Context, args *TransactionArgs, bnh rpc.BlockNumberOrHash, overrides stateOverrides) (uint64, error) {
	maxGas := p.blockGasLimit
	if args.Gas != nil {
		maxGas = uint64(*args.Gas)
	}
	probe := *args
	probe.Gas = nil
	gas, result, err := core.EstimateGas(func(gas uint64) (*core.ExecutionResult, error) {
		return p.doCall(ctx, &probe, bnh, overrides, nil, gas, nil)
	}, 0, maxGas)
	if err != nil {
		if result != nil && len(result.Revert()) > 0 {
			return 0, newRevertError(result)
		}
		return 0, err
	}
	return gas, nil
}

func (p *Provider) ethEstimateGas(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		args      TransactionArgs
		overrides stateOverrides
	)
	bnh := latestBlockNumberOrHash()
	if err := decodeParams(params, &args, &bnh, &overrides); err != nil {
		return nil, invalidParams(err)
	}
	gas, err := p.estimateGasFor(ctx, &args, bnh, overrides)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	return rpc.EncodeUint64(gas), nil
}

func (p *Provider) ethFeeHistory(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		blockCount  rpc.Uint64
		newest      rpc.BlockNumber
		percentiles []float64
	)
	if err := decodeParams(params, &blockCount, &newest, &percentiles); err != nil {
		return nil, invalidParams(err)
	}
	if blockCount == 0 {
		return nil, invalidParams(errors.New("blockCount must be at least 1"))
	}
	for i := 1; i < len(percentiles); i++ {
		if percentiles[i] < percentiles[i-1] {
			return nil, invalidParams(errors.New("reward percentiles must be ascending"))
		}
	}
	newestNumber := p.resolveBlockNumber(newest)
	count := uint64(blockCount)
	if count > newestNumber+1 {
		count = newestNumber + 1
	}
	oldest := newestNumber + 1 - count

	history := &remoteFeeHistory{
		OldestBlock:  rpc.NewBig(new(big.Int).SetUint64(oldest)),
		GasUsedRatio: make([]float64, 0, count),
	}
	var lastHeader *types.Header
	for n := oldest; n <= newestNumber; n++ {
		block, err := p.chain.BlockByNumber(ctx, n)
		if err != nil {
			return nil, p.errorResponse(err)
		}
		header := block.RawHeader()
		lastHeader = header
		history.BaseFee = append(history.BaseFee, rpc.NewBig(baseFeeOrZero(header.BaseFee)))
		history.GasUsedRatio = append(history.GasUsedRatio, float64(header.GasUsed)/float64(header.GasLimit))
		if len(percentiles) > 0 {
			rewards, err := p.blockRewards(ctx, block, percentiles)
			if err != nil {
				return nil, p.errorResponse(err)
			}
			history.Reward = append(history.Reward, rewards)
		}
	}
	history.BaseFee = append(history.BaseFee, rpc.NewBig(core.CalcBaseFee(p.config, lastHeader)))
	return history, nil
}

// remoteFeeHistory mirrors the standard eth_feeHistory result shape.
type remoteFeeHistory struct {
	OldestBlock  *rpc.Big     `json:"oldestBlock"`
	BaseFee      []*rpc.Big   `json:"baseFeePerGas"`
	GasUsedRatio []float64    `json:"gasUsedRatio"`
	Reward       [][]*rpc.Big `json:"reward,omitempty"`
}

func baseFeeOrZero(fee *big.Int) *big.Int {
	if fee == nil {
		return new(big.Int)
	}
	return fee
}

// blockRewards computes gas-weighted effective-tip percentiles over
// one block's transactions.
func (p *Provider) blockRewards(ctx context.Context, block *types.Block, percentiles []float64) ([]*rpc.Big, error) {
	txs := block.Transactions()
	if len(txs) == 0 {
		out := make([]*rpc.Big, len(percentiles))
		for i := range out {
			out[i] = rpc.NewBig(new(big.Int))
		}
		return out, nil
	}
	receipts, err := p.chain.ReceiptsByBlockHash(ctx, block.Hash())
	if err != nil {
		return nil, err
	}
	type txTip struct {
		tip     *big.Int
		gasUsed uint64
	}
	tips := make([]txTip, 0, len(txs))
	for i, tx := range txs {
		tip, _ := tx.EffectiveGasTip(block.BaseFee())
		entry := txTip{tip: tip}
		if i < len(receipts) {
			entry.gasUsed = receipts[i].GasUsed
		}
		tips = append(tips, entry)
	}
	sort.Slice(tips, func(i, j int) bool { return tips[i].tip.Cmp(tips[j].tip) < 0 })

	out := make([]*rpc.Big, 0, len(percentiles))
	var cumulative uint64
	idx := 0
	for _, pct := range percentiles {
		threshold := uint64(float64(block.GasUsed()) * pct / 100)
		for idx < len(tips)-1 && cumulative+tips[idx].gasUsed < threshold {
			cumulative += tips[idx].gasUsed
			idx++
		}
		out = append(out, rpc.NewBig(tips[idx].tip))
	}
	return out, nil
}

// personalMessageHash is the EIP-191 prefixed digest eth_sign signs.
func personalMessageHash(data []byte) types.Hash {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(data))
	return types.Hash(crypto.Keccak256Array([]byte(prefix), data))
}

func (p *Provider) ethSign(params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		addr types.Address
		data rpc.Bytes
	)
	if err := decodeParams(params, &addr, &data); err != nil {
		return nil, invalidParams(err)
	}
	key, ok := p.accountKeys[addr]
	if !ok {
		return nil, p.errorResponse(fmt.Errorf("%w: %s", ErrUnknownAccount, addr.Hex()))
	}
	digest := personalMessageHash(data)
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	sig[64] += 27
	return rpc.EncodeBytes(sig), nil
}

func (p *Provider) ethSignTypedData(params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		addr types.Address
		data TypedData
	)
	if err := decodeParams(params, &addr, &data); err != nil {
		return nil, invalidParams(err)
	}
	key, ok := p.accountKeys[addr]
	if !ok {
		return nil, p.errorResponse(fmt.Errorf("%w: %s", ErrUnknownAccount, addr.Hex()))
	}
	digest, err := data.SigningHash()
	if err != nil {
		return nil, invalidParams(err)
	}
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	sig[64] += 27
	return rpc.EncodeBytes(sig), nil
}

func (p *Provider) ethNewFilter(params json.RawMessage) (interface{}, *rpc.Error) {
	var crit filterCriteria
	if err := decodeParams(params, &crit); err != nil {
		return nil, invalidParams(err)
	}
	return rpc.EncodeUint64(p.filters.install(logFilter, crit).id), nil
}

func (p *Provider) ethUninstallFilter(params json.RawMessage) (interface{}, *rpc.Error) {
	var id rpc.Uint64
	if err := decodeParams(params, &id); err != nil {
		return nil, invalidParams(err)
	}
	return p.filters.uninstall(uint64(id)), nil
}

func (p *Provider) ethGetFilterChanges(params json.RawMessage) (interface{}, *rpc.Error) {
	var id rpc.Uint64
	if err := decodeParams(params, &id); err != nil {
		return nil, invalidParams(err)
	}
	f, ok := p.filters.get(uint64(id))
	if !ok {
		return nil, rpc.NewError(rpc.ErrCodeServer, "filter not found")
	}
	switch f.kind {
	case logFilter:
		logs := f.logs
		f.logs = nil
		return formatLogs(logs), nil
	default:
		hashes := f.hashes
		f.hashes = nil
		if hashes == nil {
			hashes = []types.Hash{}
		}
		return hashes, nil
	}
}

func (p *Provider) ethGetFilterLogs(ctx context.Context, params json.RawMessage) (interface{}, *rpc.Error) {
	var id rpc.Uint64
	if err := decodeParams(params, &id); err != nil {
		return nil, invalidParams(err)
	}
	f, ok := p.filters.get(uint64(id))
	if !ok || f.kind != logFilter {
		return nil, rpc.NewError(rpc.ErrCodeServer, "filter not found")
	}
	logs, err := p.runLogQuery(ctx, &f.crit)
	if err != nil {
		return nil, p.errorResponse(err)
	}
	return formatLogs(logs), nil
}

func (p *Provider) ethSubscribe(params json.RawMessage) (interface{}, *rpc.Error) {
	var (
		kind string
		crit filterCriteria
	)
	if err := decodeParams(params, &kind, &crit); err != nil {
		return nil, invalidParams(err)
	}
	fn := p.subCallback
	if fn == nil {
		fn = func(string, interface{}) {}
	}
	var sub *subscription
	switch kind {
	case "newHeads":
		sub = p.filters.subscribe(blockFilter, filterCriteria{}, fn)
	case "logs":
		sub = p.filters.subscribe(logFilter, crit, fn)
	case "newPendingTransactions":
		sub = p.filters.subscribe(pendingTxFilter, filterCriteria{}, fn)
	default:
		return nil, invalidParams(fmt.Errorf("unknown subscription type %q", kind))
	}
	return sub.rpcID(), nil
}

func (p *Provider) ethUnsubscribe(params json.RawMessage) (interface{}, *rpc.Error) {
	var id rpc.Uint64
	if err := decodeParams(params, &id); err != nil {
		return nil, invalidParams(err)
	}
	return p.filters.unsubscribe(uint64(id)), nil
}
