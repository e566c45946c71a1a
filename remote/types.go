package remote

import (
	"fmt"
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/rpc"
)

// rpcHeader is the JSON shape of a remote block header.
type rpcHeader struct {
	Hash             types.Hash     `json:"hash"`
	ParentHash       types.Hash     `json:"parentHash"`
	UncleHash        types.Hash     `json:"sha3Uncles"`
	Coinbase         types.Address  `json:"miner"`
	Root             types.Hash     `json:"stateRoot"`
	TxHash           types.Hash     `json:"transactionsRoot"`
	ReceiptHash      types.Hash     `json:"receiptsRoot"`
	Bloom            rpc.Bytes      `json:"logsBloom"`
	Difficulty       *rpc.Big       `json:"difficulty"`
	Number           *rpc.Big       `json:"number"`
	GasLimit         rpc.Uint64     `json:"gasLimit"`
	GasUsed          rpc.Uint64     `json:"gasUsed"`
	Time             rpc.Uint64     `json:"timestamp"`
	Extra            rpc.Bytes      `json:"extraData"`
	MixDigest        types.Hash     `json:"mixHash"`
	Nonce            rpc.Bytes      `json:"nonce"`
	BaseFee          *rpc.Big       `json:"baseFeePerGas"`
	WithdrawalsHash  *types.Hash    `json:"withdrawalsRoot"`
	BlobGasUsed      *rpc.Uint64    `json:"blobGasUsed"`
	ExcessBlobGas    *rpc.Uint64    `json:"excessBlobGas"`
	ParentBeaconRoot *types.Hash    `json:"parentBeaconBlockRoot"`
	RequestsHash     *types.Hash    `json:"requestsHash"`
}

func (h *rpcHeader) toHeader() *types.Header {
	out := &types.Header{
		ParentHash:       h.ParentHash,
		UncleHash:        h.UncleHash,
		Coinbase:         h.Coinbase,
		Root:             h.Root,
		TxHash:           h.TxHash,
		ReceiptHash:      h.ReceiptHash,
		Difficulty:       bigOrZero(h.Difficulty),
		Number:           bigOrZero(h.Number),
		GasLimit:         uint64(h.GasLimit),
		GasUsed:          uint64(h.GasUsed),
		Time:             uint64(h.Time),
		Extra:            h.Extra,
		MixDigest:        h.MixDigest,
		BaseFee:          bigOrNil(h.BaseFee),
		WithdrawalsHash:  h.WithdrawalsHash,
		ParentBeaconRoot: h.ParentBeaconRoot,
		RequestsHash:     h.RequestsHash,
	}
	copy(out.Bloom[:], h.Bloom)
	copy(out.Nonce[:], h.Nonce)
	if h.BlobGasUsed != nil {
		v := uint64(*h.BlobGasUsed)
		out.BlobGasUsed = &v
	}
	if h.ExcessBlobGas != nil {
		v := uint64(*h.ExcessBlobGas)
		out.ExcessBlobGas = &v
	}
	return out
}

type rpcWithdrawal struct {
	Index     rpc.Uint64    `json:"index"`
	Validator rpc.Uint64    `json:"validatorIndex"`
	Address   types.Address `json:"address"`
	Amount    rpc.Uint64    `json:"amount"`
}

type rpcBlock struct {
	rpcHeader
	Transactions []rpcTransaction `json:"transactions"`
	Withdrawals  []rpcWithdrawal  `json:"withdrawals"`
}

func (b *rpcBlock) toBlock() (*types.Block, error) {
	header := b.toHeader()
	body := &types.Body{}
	for i := range b.Transactions {
		tx, err := b.Transactions[i].toTransaction()
		if err != nil {
			return nil, fmt.Errorf("block %v tx %d: %w", header.Number, i, err)
		}
		body.Transactions = append(body.Transactions, tx)
	}
	if b.Withdrawals != nil {
		body.Withdrawals = make(types.Withdrawals, 0, len(b.Withdrawals))
		for _, w := range b.Withdrawals {
			body.Withdrawals = append(body.Withdrawals, &types.Withdrawal{
				Index:     uint64(w.Index),
				Validator: uint64(w.Validator),
				Address:   w.Address,
				Amount:    uint64(w.Amount),
			})
		}
	}
	block := types.NewBlock(header, body)
	if got := block.Hash(); got != b.Hash {
		return nil, fmt.Errorf("%w: computed %s, remote %s", errHashMismatch, got, b.Hash)
	}
	return block, nil
}

type rpcAccessTuple struct {
	Address     types.Address `json:"address"`
	StorageKeys []types.Hash  `json:"storageKeys"`
}

type rpcAuthorization struct {
	ChainID *rpc.Big      `json:"chainId"`
	Address types.Address `json:"address"`
	Nonce   rpc.Uint64    `json:"nonce"`
	YParity rpc.Uint64    `json:"yParity"`
	R       *rpc.Big      `json:"r"`
	S       *rpc.Big      `json:"s"`
}

// rpcTransaction is the JSON shape of a remote transaction, covering
// every type through EIP-7702 plus the OP deposit variant.
type rpcTransaction struct {
	Hash                types.Hash         `json:"hash"`
	Type                *rpc.Uint64        `json:"type"`
	ChainID             *rpc.Big           `json:"chainId"`
	Nonce               rpc.Uint64         `json:"nonce"`
	From                types.Address      `json:"from"`
	To                  *types.Address     `json:"to"`
	Gas                 rpc.Uint64         `json:"gas"`
	GasPrice            *rpc.Big           `json:"gasPrice"`
	GasTipCap           *rpc.Big           `json:"maxPriorityFeePerGas"`
	GasFeeCap           *rpc.Big           `json:"maxFeePerGas"`
	BlobFeeCap          *rpc.Big           `json:"maxFeePerBlobGas"`
	Value               *rpc.Big           `json:"value"`
	Input               rpc.Bytes          `json:"input"`
	AccessList          []rpcAccessTuple   `json:"accessList"`
	BlobVersionedHashes []types.Hash       `json:"blobVersionedHashes"`
	AuthorizationList   []rpcAuthorization `json:"authorizationList"`
	V                   *rpc.Big           `json:"v"`
	R                   *rpc.Big           `json:"r"`
	S                   *rpc.Big           `json:"s"`
	YParity             *rpc.Uint64        `json:"yParity"`

	// OP deposit fields.
	SourceHash *types.Hash `json:"sourceHash"`
	Mint       *rpc.Big    `json:"mint"`
	IsSystemTx bool        `json:"isSystemTx"`

	// Inclusion context, present when the transaction is mined.
	BlockHash        *types.Hash `json:"blockHash"`
	BlockNumber      *rpc.Uint64 `json:"blockNumber"`
	TransactionIndex *rpc.Uint64 `json:"transactionIndex"`
}

func (t *rpcTransaction) txType() byte {
	if t.Type == nil {
		return types.LegacyTxType
	}
	return byte(*t.Type)
}

// sigV returns the typed-transaction recovery id, preferring yParity.
func (t *rpcTransaction) sigV() *big.Int {
	if t.YParity != nil {
		return new(big.Int).SetUint64(uint64(*t.YParity))
	}
	return bigOrZero(t.V)
}

func (t *rpcTransaction) accessList() types.AccessList {
	if t.AccessList == nil {
		return nil
	}
	out := make(types.AccessList, len(t.AccessList))
	for i, tuple := range t.AccessList {
		out[i] = types.AccessTuple{Address: tuple.Address, StorageKeys: tuple.StorageKeys}
	}
	return out
}

func (t *rpcTransaction) authList() []types.SetCodeAuthorization {
	out := make([]types.SetCodeAuthorization, len(t.AuthorizationList))
	for i, a := range t.AuthorizationList {
		out[i] = types.SetCodeAuthorization{
			ChainID: bigOrZero(a.ChainID),
			Address: a.Address,
			Nonce:   uint64(a.Nonce),
			V:       uint8(a.YParity),
			R:       bigOrZero(a.R),
			S:       bigOrZero(a.S),
		}
	}
	return out
}

// toTransaction rebuilds the typed transaction and verifies that it
// reproduces the remote hash, so a reconstruction defect surfaces here
// rather than as a root mismatch later.
func (t *rpcTransaction) toTransaction() (*types.Transaction, error) {
	var inner types.TxData
	switch t.txType() {
	case types.LegacyTxType:
		inner = &types.LegacyTx{
			Nonce:    uint64(t.Nonce),
			GasPrice: bigOrZero(t.GasPrice),
			Gas:      uint64(t.Gas),
			To:       t.To,
			Value:    bigOrZero(t.Value),
			Data:     t.Input,
			V:        bigOrZero(t.V),
			R:        bigOrZero(t.R),
			S:        bigOrZero(t.S),
		}
	case types.AccessListTxType:
		inner = &types.AccessListTx{
			ChainID:    bigOrZero(t.ChainID),
			Nonce:      uint64(t.Nonce),
			GasPrice:   bigOrZero(t.GasPrice),
			Gas:        uint64(t.Gas),
			To:         t.To,
			Value:      bigOrZero(t.Value),
			Data:       t.Input,
			AccessList: t.accessList(),
			V:          t.sigV(),
			R:          bigOrZero(t.R),
			S:          bigOrZero(t.S),
		}
	case types.DynamicFeeTxType:
		inner = &types.DynamicFeeTx{
			ChainID:    bigOrZero(t.ChainID),
			Nonce:      uint64(t.Nonce),
			GasTipCap:  bigOrZero(t.GasTipCap),
			GasFeeCap:  bigOrZero(t.GasFeeCap),
			Gas:        uint64(t.Gas),
			To:         t.To,
			Value:      bigOrZero(t.Value),
			Data:       t.Input,
			AccessList: t.accessList(),
			V:          t.sigV(),
			R:          bigOrZero(t.R),
			S:          bigOrZero(t.S),
		}
	case types.BlobTxType:
		if t.To == nil {
			return nil, fmt.Errorf("blob transaction without recipient")
		}
		inner = &types.BlobTx{
			ChainID:    bigOrZero(t.ChainID),
			Nonce:      uint64(t.Nonce),
			GasTipCap:  bigOrZero(t.GasTipCap),
			GasFeeCap:  bigOrZero(t.GasFeeCap),
			Gas:        uint64(t.Gas),
			To:         *t.To,
			Value:      bigOrZero(t.Value),
			Data:       t.Input,
			AccessList: t.accessList(),
			BlobFeeCap: bigOrZero(t.BlobFeeCap),
			BlobHashes: t.BlobVersionedHashes,
			V:          t.sigV(),
			R:          bigOrZero(t.R),
			S:          bigOrZero(t.S),
		}
	case types.SetCodeTxType:
		if t.To == nil {
			return nil, fmt.Errorf("set-code transaction without recipient")
		}
		inner = &types.SetCodeTx{
			ChainID:    bigOrZero(t.ChainID),
			Nonce:      uint64(t.Nonce),
			GasTipCap:  bigOrZero(t.GasTipCap),
			GasFeeCap:  bigOrZero(t.GasFeeCap),
			Gas:        uint64(t.Gas),
			To:         *t.To,
			Value:      bigOrZero(t.Value),
			Data:       t.Input,
			AccessList: t.accessList(),
			AuthList:   t.authList(),
			V:          t.sigV(),
			R:          bigOrZero(t.R),
			S:          bigOrZero(t.S),
		}
	case types.DepositTxType:
		var source types.Hash
		if t.SourceHash != nil {
			source = *t.SourceHash
		}
		inner = &types.DepositTx{
			SourceHash:          source,
			From:                t.From,
			To:                  t.To,
			Mint:                bigOrNil(t.Mint),
			Value:               bigOrZero(t.Value),
			Gas:                 uint64(t.Gas),
			IsSystemTransaction: t.IsSystemTx,
			Data:                t.Input,
		}
	default:
		return nil, fmt.Errorf("%w: %#x", types.ErrTxTypeNotSupported, t.txType())
	}
	tx := types.NewTx(inner)
	if got := tx.Hash(); got != t.Hash {
		return nil, fmt.Errorf("%w: computed %s, remote %s", errHashMismatch, got, t.Hash)
	}
	return tx, nil
}

type rpcLog struct {
	Address     types.Address `json:"address"`
	Topics      []types.Hash  `json:"topics"`
	Data        rpc.Bytes     `json:"data"`
	BlockNumber rpc.Uint64    `json:"blockNumber"`
	TxHash      types.Hash    `json:"transactionHash"`
	TxIndex     rpc.Uint64    `json:"transactionIndex"`
	BlockHash   types.Hash    `json:"blockHash"`
	Index       rpc.Uint64    `json:"logIndex"`
	Removed     bool          `json:"removed"`
}

func (l *rpcLog) toLog() *types.Log {
	return &types.Log{
		Address:     l.Address,
		Topics:      l.Topics,
		Data:        l.Data,
		BlockNumber: uint64(l.BlockNumber),
		TxHash:      l.TxHash,
		TxIndex:     uint(l.TxIndex),
		BlockHash:   l.BlockHash,
		Index:       uint(l.Index),
		Removed:     l.Removed,
	}
}

type rpcReceipt struct {
	Type              *rpc.Uint64    `json:"type"`
	Status            *rpc.Uint64    `json:"status"`
	PostState         rpc.Bytes      `json:"root"`
	CumulativeGasUsed rpc.Uint64     `json:"cumulativeGasUsed"`
	Bloom             rpc.Bytes      `json:"logsBloom"`
	Logs              []rpcLog       `json:"logs"`
	TxHash            types.Hash     `json:"transactionHash"`
	ContractAddress   *types.Address `json:"contractAddress"`
	GasUsed           rpc.Uint64     `json:"gasUsed"`
	EffectiveGasPrice *rpc.Big       `json:"effectiveGasPrice"`
	BlobGasUsed       *rpc.Uint64    `json:"blobGasUsed"`
	BlobGasPrice      *rpc.Big       `json:"blobGasPrice"`
	BlockHash         types.Hash     `json:"blockHash"`
	BlockNumber       rpc.Uint64     `json:"blockNumber"`
	TransactionIndex  rpc.Uint64     `json:"transactionIndex"`
	DepositNonce      *rpc.Uint64    `json:"depositNonce"`
}

func (r *rpcReceipt) toReceipt() *types.Receipt {
	out := &types.Receipt{
		PostState:         r.PostState,
		CumulativeGasUsed: uint64(r.CumulativeGasUsed),
		TxHash:            r.TxHash,
		ContractAddress:   r.ContractAddress,
		GasUsed:           uint64(r.GasUsed),
		EffectiveGasPrice: bigOrNil(r.EffectiveGasPrice),
		BlobGasPrice:      bigOrNil(r.BlobGasPrice),
		BlockHash:         r.BlockHash,
		BlockNumber:       uint64(r.BlockNumber),
		TransactionIndex:  uint(r.TransactionIndex),
	}
	if r.Type != nil {
		out.Type = uint8(*r.Type)
	}
	if r.Status != nil {
		out.Status = uint64(*r.Status)
	}
	if r.BlobGasUsed != nil {
		out.BlobGasUsed = uint64(*r.BlobGasUsed)
	}
	if r.DepositNonce != nil {
		v := uint64(*r.DepositNonce)
		out.DepositNonce = &v
	}
	copy(out.Bloom[:], r.Bloom)
	out.Logs = make([]*types.Log, len(r.Logs))
	for i := range r.Logs {
		out.Logs[i] = r.Logs[i].toLog()
	}
	return out
}

// TransactionEntry is a remote transaction together with its inclusion
// context, nil fields when pending.
type TransactionEntry struct {
	Tx          *types.Transaction
	From        types.Address
	BlockHash   *types.Hash
	BlockNumber *uint64
	Index       *uint64
}

// FeeHistory is the eth_feeHistory result.
type FeeHistory struct {
	OldestBlock  *rpc.Big     `json:"oldestBlock"`
	BaseFee      []*rpc.Big   `json:"baseFeePerGas"`
	GasUsedRatio []float64    `json:"gasUsedRatio"`
	Reward       [][]*rpc.Big `json:"reward,omitempty"`
}

// LogQuery selects logs over a concrete block range.
type LogQuery struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []types.Address
	Topics    [][]types.Hash
}

func (q *LogQuery) toFilter() map[string]interface{} {
	filter := map[string]interface{}{
		"fromBlock": rpc.EncodeUint64(q.FromBlock),
		"toBlock":   rpc.EncodeUint64(q.ToBlock),
	}
	if len(q.Addresses) > 0 {
		filter["address"] = q.Addresses
	}
	if len(q.Topics) > 0 {
		filter["topics"] = q.Topics
	}
	return filter
}

func bigOrNil(b *rpc.Big) *big.Int {
	if b == nil {
		return nil
	}
	return new(big.Int).Set(b.ToInt())
}

func bigOrZero(b *rpc.Big) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.ToInt())
}
