package provider

import (
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/rpc"
)

// The outbound JSON shapes mirror the inbound ones the remote client
// parses. Pending objects carry null inclusion fields.

type blockResult struct {
	Hash             *types.Hash   `json:"hash"`
	ParentHash       types.Hash    `json:"parentHash"`
	UncleHash        types.Hash    `json:"sha3Uncles"`
	Coinbase         types.Address `json:"miner"`
	Root             types.Hash    `json:"stateRoot"`
	TxHash           types.Hash    `json:"transactionsRoot"`
	ReceiptHash      types.Hash    `json:"receiptsRoot"`
	Bloom            rpc.Bytes     `json:"logsBloom"`
	Difficulty       *rpc.Big      `json:"difficulty"`
	Number           *rpc.Big      `json:"number"`
	GasLimit         rpc.Uint64    `json:"gasLimit"`
	GasUsed          rpc.Uint64    `json:"gasUsed"`
	Time             rpc.Uint64    `json:"timestamp"`
	Extra            rpc.Bytes     `json:"extraData"`
	MixDigest        types.Hash    `json:"mixHash"`
	Nonce            rpc.Bytes     `json:"nonce"`
	BaseFee          *rpc.Big      `json:"baseFeePerGas,omitempty"`
	WithdrawalsHash  *types.Hash   `json:"withdrawalsRoot,omitempty"`
	BlobGasUsed      *rpc.Uint64   `json:"blobGasUsed,omitempty"`
	ExcessBlobGas    *rpc.Uint64   `json:"excessBlobGas,omitempty"`
	ParentBeaconRoot *types.Hash   `json:"parentBeaconBlockRoot,omitempty"`
	RequestsHash     *types.Hash   `json:"requestsHash,omitempty"`
	Size             rpc.Uint64    `json:"size"`
	Uncles           []types.Hash  `json:"uncles"`
	Transactions     []interface{} `json:"transactions"`
	Withdrawals      []*withdrawalResult `json:"withdrawals,omitempty"`
}

type withdrawalResult struct {
	Index     rpc.Uint64    `json:"index"`
	Validator rpc.Uint64    `json:"validatorIndex"`
	Address   types.Address `json:"address"`
	Amount    rpc.Uint64    `json:"amount"`
}

// formatBlock renders a block. pending omits the hash and miner per
// the pending-block convention; fullTx switches between hashes and
// transaction objects.
func formatBlock(block *types.Block, fullTx, pending bool) *blockResult {
	header := block.RawHeader()
	out := &blockResult{
		ParentHash:       header.ParentHash,
		UncleHash:        header.UncleHash,
		Coinbase:         header.Coinbase,
		Root:             header.Root,
		TxHash:           header.TxHash,
		ReceiptHash:      header.ReceiptHash,
		Bloom:            header.Bloom[:],
		Difficulty:       rpc.NewBig(header.Difficulty),
		Number:           rpc.NewBig(header.Number),
		GasLimit:         rpc.Uint64(header.GasLimit),
		GasUsed:          rpc.Uint64(header.GasUsed),
		Time:             rpc.Uint64(header.Time),
		Extra:            header.Extra,
		MixDigest:        header.MixDigest,
		Nonce:            header.Nonce[:],
		BaseFee:          rpc.NewBig(header.BaseFee),
		WithdrawalsHash:  header.WithdrawalsHash,
		ParentBeaconRoot: header.ParentBeaconRoot,
		RequestsHash:     header.RequestsHash,
		Size:             rpc.Uint64(block.Size()),
		Uncles:           []types.Hash{},
		Transactions:     []interface{}{},
	}
	if !pending {
		hash := block.Hash()
		out.Hash = &hash
	}
	if header.BlobGasUsed != nil {
		v := rpc.Uint64(*header.BlobGasUsed)
		out.BlobGasUsed = &v
	}
	if header.ExcessBlobGas != nil {
		v := rpc.Uint64(*header.ExcessBlobGas)
		out.ExcessBlobGas = &v
	}
	for i, tx := range block.Transactions() {
		if fullTx {
			entry := formatTransaction(tx, header.BaseFee)
			if !pending {
				hash := block.Hash()
				number := uint64(header.NumberU64())
				index := uint64(i)
				entry.BlockHash = &hash
				entry.BlockNumber = newRPCUint64(&number)
				entry.TransactionIndex = newRPCUint64(&index)
			}
			out.Transactions = append(out.Transactions, entry)
		} else {
			out.Transactions = append(out.Transactions, tx.Hash())
		}
	}
	if ws := block.Withdrawals(); ws != nil {
		out.Withdrawals = make([]*withdrawalResult, 0, len(ws))
		for _, w := range ws {
			out.Withdrawals = append(out.Withdrawals, &withdrawalResult{
				Index:     rpc.Uint64(w.Index),
				Validator: rpc.Uint64(w.Validator),
				Address:   w.Address,
				Amount:    rpc.Uint64(w.Amount),
			})
		}
	}
	return out
}

type transactionResult struct {
	Hash                types.Hash                   `json:"hash"`
	Type                rpc.Uint64                   `json:"type"`
	ChainID             *rpc.Big                     `json:"chainId,omitempty"`
	Nonce               rpc.Uint64                   `json:"nonce"`
	From                types.Address                `json:"from"`
	To                  *types.Address               `json:"to"`
	Gas                 rpc.Uint64                   `json:"gas"`
	GasPrice            *rpc.Big                     `json:"gasPrice"`
	GasTipCap           *rpc.Big                     `json:"maxPriorityFeePerGas,omitempty"`
	GasFeeCap           *rpc.Big                     `json:"maxFeePerGas,omitempty"`
	BlobFeeCap          *rpc.Big                     `json:"maxFeePerBlobGas,omitempty"`
	Value               *rpc.Big                     `json:"value"`
	Input               rpc.Bytes                    `json:"input"`
	AccessList          *types.AccessList            `json:"accessList,omitempty"`
	BlobVersionedHashes []types.Hash                 `json:"blobVersionedHashes,omitempty"`
	AuthorizationList   []types.SetCodeAuthorization `json:"authorizationList,omitempty"`
	V                   *rpc.Big                     `json:"v"`
	R                   *rpc.Big                     `json:"r"`
	S                   *rpc.Big                     `json:"s"`
	YParity             *rpc.Uint64                  `json:"yParity,omitempty"`

	SourceHash *types.Hash `json:"sourceHash,omitempty"`
	Mint       *rpc.Big    `json:"mint,omitempty"`
	IsSystemTx bool        `json:"isSystemTx,omitempty"`

	BlockHash        *types.Hash `json:"blockHash"`
	BlockNumber      *rpc.Uint64 `json:"blockNumber"`
	TransactionIndex *rpc.Uint64 `json:"transactionIndex"`
}

func newRPCUint64(v *uint64) *rpc.Uint64 {
	if v == nil {
		return nil
	}
	out := rpc.Uint64(*v)
	return &out
}

// formatTransaction renders a transaction without inclusion context;
// callers fill BlockHash/BlockNumber/TransactionIndex for mined ones.
func formatTransaction(tx *types.Transaction, baseFee *big.Int) *transactionResult {
	signer := types.LatestSigner(tx.ChainId())
	from, _ := types.Sender(signer, tx)
	v, r, s := tx.RawSignatureValues()
	out := &transactionResult{
		Hash:     tx.Hash(),
		Type:     rpc.Uint64(tx.Type()),
		Nonce:    rpc.Uint64(tx.Nonce()),
		From:     from,
		To:       tx.To(),
		Gas:      rpc.Uint64(tx.Gas()),
		GasPrice: rpc.NewBig(tx.GasPrice()),
		Value:    rpc.NewBig(tx.Value()),
		Input:    tx.Data(),
		V:        rpc.NewBig(v),
		R:        rpc.NewBig(r),
		S:        rpc.NewBig(s),
	}
	if tx.Type() != types.LegacyTxType {
		out.ChainID = rpc.NewBig(tx.ChainId())
	}
	switch tx.Type() {
	case types.AccessListTxType:
		al := tx.AccessList()
		out.AccessList = &al
		out.YParity = newRPCUint64(yParity(v))
	case types.DynamicFeeTxType, types.BlobTxType, types.SetCodeTxType:
		al := tx.AccessList()
		out.AccessList = &al
		out.GasTipCap = rpc.NewBig(tx.GasTipCap())
		out.GasFeeCap = rpc.NewBig(tx.GasFeeCap())
		out.YParity = newRPCUint64(yParity(v))
		// The reported gasPrice of a mined dynamic-fee transaction is
		// its effective price in the including block.
		if baseFee != nil {
			out.GasPrice = rpc.NewBig(tx.EffectiveGasPrice(baseFee))
		}
		if tx.Type() == types.BlobTxType {
			out.BlobFeeCap = rpc.NewBig(tx.BlobGasFeeCap())
			out.BlobVersionedHashes = tx.BlobHashes()
		}
		if tx.Type() == types.SetCodeTxType {
			out.AuthorizationList = tx.SetCodeAuthorizations()
		}
	case types.DepositTxType:
		source := tx.SourceHash()
		out.SourceHash = &source
		out.Mint = rpc.NewBig(tx.Mint())
		out.V, out.R, out.S = nil, nil, nil
	}
	return out
}

func yParity(v *big.Int) *uint64 {
	if v == nil {
		return nil
	}
	parity := v.Uint64()
	return &parity
}

type receiptResult struct {
	Type              rpc.Uint64     `json:"type"`
	Status            rpc.Uint64     `json:"status"`
	CumulativeGasUsed rpc.Uint64     `json:"cumulativeGasUsed"`
	Bloom             rpc.Bytes      `json:"logsBloom"`
	Logs              []*logResult   `json:"logs"`
	TxHash            types.Hash     `json:"transactionHash"`
	From              types.Address  `json:"from"`
	To                *types.Address `json:"to"`
	ContractAddress   *types.Address `json:"contractAddress"`
	GasUsed           rpc.Uint64     `json:"gasUsed"`
	EffectiveGasPrice *rpc.Big       `json:"effectiveGasPrice"`
	BlobGasUsed       *rpc.Uint64    `json:"blobGasUsed,omitempty"`
	BlobGasPrice      *rpc.Big       `json:"blobGasPrice,omitempty"`
	BlockHash         types.Hash     `json:"blockHash"`
	BlockNumber       rpc.Uint64     `json:"blockNumber"`
	TransactionIndex  rpc.Uint64     `json:"transactionIndex"`
	DepositNonce      *rpc.Uint64    `json:"depositNonce,omitempty"`
}

func formatReceipt(receipt *types.Receipt, tx *types.Transaction) *receiptResult {
	signer := types.LatestSigner(tx.ChainId())
	from, _ := types.Sender(signer, tx)
	out := &receiptResult{
		Type:              rpc.Uint64(receipt.Type),
		Status:            rpc.Uint64(receipt.Status),
		CumulativeGasUsed: rpc.Uint64(receipt.CumulativeGasUsed),
		Bloom:             receipt.Bloom[:],
		Logs:              []*logResult{},
		TxHash:            receipt.TxHash,
		From:              from,
		To:                tx.To(),
		ContractAddress:   receipt.ContractAddress,
		GasUsed:           rpc.Uint64(receipt.GasUsed),
		EffectiveGasPrice: rpc.NewBig(receipt.EffectiveGasPrice),
		BlockHash:         receipt.BlockHash,
		BlockNumber:       rpc.Uint64(receipt.BlockNumber),
		TransactionIndex:  rpc.Uint64(receipt.TransactionIndex),
	}
	if receipt.BlobGasUsed > 0 {
		v := rpc.Uint64(receipt.BlobGasUsed)
		out.BlobGasUsed = &v
		out.BlobGasPrice = rpc.NewBig(receipt.BlobGasPrice)
	}
	if receipt.DepositNonce != nil {
		out.DepositNonce = newRPCUint64(receipt.DepositNonce)
	}
	for _, l := range receipt.Logs {
		out.Logs = append(out.Logs, formatLog(l))
	}
	return out
}

type logResult struct {
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

func formatLog(l *types.Log) *logResult {
	topics := l.Topics
	if topics == nil {
		topics = []types.Hash{}
	}
	return &logResult{
		Address:     l.Address,
		Topics:      topics,
		Data:        l.Data,
		BlockNumber: rpc.Uint64(l.BlockNumber),
		TxHash:      l.TxHash,
		TxIndex:     rpc.Uint64(l.TxIndex),
		BlockHash:   l.BlockHash,
		Index:       rpc.Uint64(l.Index),
		Removed:     l.Removed,
	}
}

func formatLogs(logs []*types.Log) []*logResult {
	out := make([]*logResult, 0, len(logs))
	for _, l := range logs {
		out = append(out, formatLog(l))
	}
	return out
}
