package core

import (
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
	"github.com/devchain-eth/devchain/state"
)

// CanTransfer reports whether the sender balance covers the amount.
func CanTransfer(db vm.StateDB, addr types.Address, amount *big.Int) bool {
	return db.GetBalance(addr).Cmp(amount) >= 0
}

// Transfer moves amount between accounts.
func Transfer(db vm.StateDB, sender, recipient types.Address, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	db.SubBalance(sender, amount)
	db.AddBalance(recipient, amount)
}

// NewEVMBlockContext builds the block context for executing against
// header. getHash resolves ancestor hashes for BLOCKHASH.
func NewEVMBlockContext(config *ChainConfig, header *types.Header, getHash vm.GetHashFunc) vm.BlockContext {
	var random *types.Hash
	if config.IsMerge(header.Number) {
		mixDigest := header.MixDigest
		random = &mixDigest
	}
	var blobBaseFee *big.Int
	if header.ExcessBlobGas != nil {
		blobBaseFee = CalcBlobFee(config, header.Number, header.Time, *header.ExcessBlobGas)
	}
	return vm.BlockContext{
		CanTransfer: CanTransfer,
		Transfer:    Transfer,
		GetHash:     getHash,
		Coinbase:    header.Coinbase,
		BlockNumber: new(big.Int).Set(header.Number),
		Time:        header.Time,
		Difficulty:  new(big.Int).Set(header.Difficulty),
		BaseFee:     copyBigOrNil(header.BaseFee),
		BlobBaseFee: blobBaseFee,
		GasLimit:    header.GasLimit,
		Random:      random,
	}
}

func copyBigOrNil(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}

// NewEVMTxContext builds the transaction context for a message.
func NewEVMTxContext(msg *Message) vm.TxContext {
	return vm.TxContext{
		Origin:     msg.From,
		GasPrice:   new(big.Int).Set(msg.GasPrice),
		BlobHashes: msg.BlobHashes,
	}
}

// ApplyTransaction executes tx at txIndex within the block described
// by header and builds its receipt. The statedb is finalised so that
// later transactions in the same block observe the effects.
func ApplyTransaction(config *ChainConfig, evm *vm.EVM, statedb *state.StateDB, gp *GasPool, header *types.Header, tx *types.Transaction, txIndex int, usedGas *uint64) (*types.Receipt, error) {
	signer := types.LatestSigner(config.ChainID)
	msg, err := TransactionToMessage(tx, signer, header.BaseFee)
	if err != nil {
		return nil, err
	}
	statedb.SetTxContext(tx.Hash(), txIndex)
	evm.SetTxContext(NewEVMTxContext(msg))

	var depositNonce uint64
	if tx.IsDeposit() {
		depositNonce = statedb.GetNonce(msg.From)
	}

	result, err := ApplyMessage(evm, config, statedb, msg, gp)
	if err != nil {
		return nil, err
	}
	statedb.Finalise()

	*usedGas += result.UsedGas

	receipt := &types.Receipt{
		Type:              tx.Type(),
		CumulativeGasUsed: *usedGas,
		TxHash:            tx.Hash(),
		GasUsed:           result.UsedGas,
		EffectiveGasPrice: new(big.Int).Set(msg.GasPrice),
		BlockNumber:       header.NumberU64(),
		TransactionIndex:  uint(txIndex),
	}
	if result.Failed() {
		receipt.Status = types.ReceiptStatusFailed
	} else {
		receipt.Status = types.ReceiptStatusSuccessful
	}
	if msg.To == nil {
		addr := types.CreateAddress(msg.From, msg.Nonce)
		receipt.ContractAddress = &addr
	}
	if tx.Type() == types.BlobTxType {
		receipt.BlobGasUsed = uint64(len(tx.BlobHashes())) * types.BlobTxBlobGasPerBlob
		if blobBaseFee := evm.Context.BlobBaseFee; blobBaseFee != nil {
			receipt.BlobGasPrice = new(big.Int).Set(blobBaseFee)
		}
	}
	if tx.IsDeposit() {
		nonce := depositNonce
		receipt.DepositNonce = &nonce
		if config.IsCancun(header.Number, header.Time) {
			version := uint64(1)
			receipt.DepositReceiptVersion = &version
		}
	}
	receipt.Logs = statedb.TxLogs(tx.Hash())
	receipt.Bloom = types.LogsBloom(receipt.Logs)
	return receipt, nil
}
