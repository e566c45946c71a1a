package provider

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/devchain-eth/devchain/core"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/rpc"
	"github.com/devchain-eth/devchain/state"
)

// TransactionArgs is the JSON shape shared by eth_sendTransaction,
// eth_call and eth_estimateGas. Every field is optional; defaults are
// filled per method.
type TransactionArgs struct {
	From                 *types.Address `json:"from"`
	To                   *types.Address `json:"to"`
	Gas                  *rpc.Uint64    `json:"gas"`
	GasPrice             *rpc.Big       `json:"gasPrice"`
	MaxFeePerGas         *rpc.Big       `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *rpc.Big       `json:"maxPriorityFeePerGas"`
	MaxFeePerBlobGas     *rpc.Big       `json:"maxFeePerBlobGas"`
	Value                *rpc.Big       `json:"value"`
	Nonce                *rpc.Uint64    `json:"nonce"`

	// Data and Input are aliases; Input wins when both are set.
	Data  *rpc.Bytes `json:"data"`
	Input *rpc.Bytes `json:"input"`

	AccessList          *types.AccessList             `json:"accessList"`
	BlobVersionedHashes []types.Hash                  `json:"blobVersionedHashes"`
	AuthorizationList   []types.SetCodeAuthorization  `json:"authorizationList"`
	ChainID             *rpc.Big                      `json:"chainId"`
}

func (args *TransactionArgs) data() []byte {
	if args.Input != nil {
		return *args.Input
	}
	if args.Data != nil {
		return *args.Data
	}
	return nil
}

func (args *TransactionArgs) from() types.Address {
	if args.From == nil {
		return types.Address{}
	}
	return *args.From
}

func (args *TransactionArgs) value() *big.Int {
	if args.Value == nil {
		return new(big.Int)
	}
	return args.Value.ToInt()
}

// hasDynamicFees reports whether 1559-style fee fields are present.
func (args *TransactionArgs) hasDynamicFees() bool {
	return args.MaxFeePerGas != nil || args.MaxPriorityFeePerGas != nil
}

// checkFees rejects mixed legacy and dynamic fee fields.
func (args *TransactionArgs) checkFees() error {
	if args.GasPrice != nil && args.hasDynamicFees() {
		return errors.New("both gasPrice and (maxFeePerGas or maxPriorityFeePerGas) specified")
	}
	return nil
}

// callMessage builds the synthetic message eth_call and estimation run.
// Fee fields left empty skip the balance charge entirely; the nonce is
// always taken from the live state.
func (args *TransactionArgs) callMessage(nonce uint64, gas uint64, baseFee *big.Int) (*core.Message, error) {
	if err := args.checkFees(); err != nil {
		return nil, err
	}
	msg := &core.Message{
		From:            args.from(),
		To:              args.To,
		Nonce:           nonce,
		Value:           args.value(),
		GasLimit:        gas,
		Data:            args.data(),
		SkipNonceChecks: true,
	}
	if args.Gas != nil {
		msg.GasLimit = uint64(*args.Gas)
	}
	if args.AccessList != nil {
		msg.AccessList = *args.AccessList
	}
	msg.AuthList = args.AuthorizationList
	msg.BlobHashes = args.BlobVersionedHashes
	if args.MaxFeePerBlobGas != nil {
		msg.BlobGasFeeCap = args.MaxFeePerBlobGas.ToInt()
	}
	switch {
	case args.GasPrice != nil:
		msg.GasPrice = args.GasPrice.ToInt()
		msg.GasFeeCap = msg.GasPrice
		msg.GasTipCap = msg.GasPrice
	case args.hasDynamicFees():
		msg.GasFeeCap = new(big.Int)
		if args.MaxFeePerGas != nil {
			msg.GasFeeCap = args.MaxFeePerGas.ToInt()
		}
		msg.GasTipCap = new(big.Int)
		if args.MaxPriorityFeePerGas != nil {
			msg.GasTipCap = args.MaxPriorityFeePerGas.ToInt()
		}
		msg.GasPrice = effectiveGasPrice(msg.GasFeeCap, msg.GasTipCap, baseFee)
	default:
		// No explicit fees: run gas-free like geth's eth_call.
		msg.GasPrice = new(big.Int)
		msg.GasFeeCap = new(big.Int)
		msg.GasTipCap = new(big.Int)
		msg.SkipFeeChecks = true
	}
	return msg, nil
}

func effectiveGasPrice(feeCap, tipCap, baseFee *big.Int) *big.Int {
	if baseFee == nil {
		return new(big.Int).Set(feeCap)
	}
	price := new(big.Int).Add(baseFee, tipCap)
	if price.Cmp(feeCap) > 0 {
		price.Set(feeCap)
	}
	return price
}

// toTxData assembles the unsigned transaction eth_sendTransaction
// signs. Defaults must already be filled by the provider.
func (args *TransactionArgs) toTxData(chainID *big.Int) (types.TxData, error) {
	if err := args.checkFees(); err != nil {
		return nil, err
	}
	if args.Nonce == nil || args.Gas == nil {
		return nil, errors.New("nonce and gas must be resolved before signing")
	}
	nonce := uint64(*args.Nonce)
	gas := uint64(*args.Gas)

	switch {
	case args.BlobVersionedHashes != nil:
		if args.To == nil {
			return nil, errors.New("blob transaction without recipient")
		}
		return &types.BlobTx{
			ChainID:    chainID,
			Nonce:      nonce,
			GasTipCap:  args.MaxPriorityFeePerGas.ToInt(),
			GasFeeCap:  args.MaxFeePerGas.ToInt(),
			Gas:        gas,
			To:         *args.To,
			Value:      args.value(),
			Data:       args.data(),
			AccessList: args.accessList(),
			BlobFeeCap: args.MaxFeePerBlobGas.ToInt(),
			BlobHashes: args.BlobVersionedHashes,
		}, nil
	case args.AuthorizationList != nil:
		if args.To == nil {
			return nil, errors.New("set-code transaction without recipient")
		}
		return &types.SetCodeTx{
			ChainID:    chainID,
			Nonce:      nonce,
			GasTipCap:  args.MaxPriorityFeePerGas.ToInt(),
			GasFeeCap:  args.MaxFeePerGas.ToInt(),
			Gas:        gas,
			To:         *args.To,
			Value:      args.value(),
			Data:       args.data(),
			AccessList: args.accessList(),
			AuthList:   args.AuthorizationList,
		}, nil
	case args.hasDynamicFees():
		return &types.DynamicFeeTx{
			ChainID:    chainID,
			Nonce:      nonce,
			GasTipCap:  args.MaxPriorityFeePerGas.ToInt(),
			GasFeeCap:  args.MaxFeePerGas.ToInt(),
			Gas:        gas,
			To:         args.To,
			Value:      args.value(),
			Data:       args.data(),
			AccessList: args.accessList(),
		}, nil
	case args.AccessList != nil:
		return &types.AccessListTx{
			ChainID:    chainID,
			Nonce:      nonce,
			GasPrice:   args.GasPrice.ToInt(),
			Gas:        gas,
			To:         args.To,
			Value:      args.value(),
			Data:       args.data(),
			AccessList: args.accessList(),
		}, nil
	default:
		return &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: args.GasPrice.ToInt(),
			Gas:      gas,
			To:       args.To,
			Value:    args.value(),
			Data:     args.data(),
		}, nil
	}
}

func (args *TransactionArgs) accessList() types.AccessList {
	if args.AccessList == nil {
		return nil
	}
	return *args.AccessList
}

// accountOverride is the JSON shape of one eth_call account override.
type accountOverride struct {
	Balance   *rpc.Big                  `json:"balance"`
	Nonce     *rpc.Uint64               `json:"nonce"`
	Code      *rpc.Bytes                `json:"code"`
	State     map[types.Hash]types.Hash `json:"state"`
	StateDiff map[types.Hash]types.Hash `json:"stateDiff"`
}

// stateOverrides maps addresses to call-time account overrides.
type stateOverrides map[types.Address]accountOverride

func (so stateOverrides) toOverrides() (state.Overrides, error) {
	if len(so) == 0 {
		return nil, nil
	}
	out := make(state.Overrides, len(so))
	for addr, o := range so {
		if o.State != nil && o.StateDiff != nil {
			return nil, fmt.Errorf("account %s: %w", addr.Hex(), state.ErrOverrideConflict)
		}
		entry := state.AccountOverride{
			State:     o.State,
			StateDiff: o.StateDiff,
		}
		if o.Balance != nil {
			entry.Balance = o.Balance.ToInt()
		}
		if o.Nonce != nil {
			nonce := uint64(*o.Nonce)
			entry.Nonce = &nonce
		}
		if o.Code != nil {
			entry.Code = *o.Code
		}
		out[addr] = entry
	}
	return out, nil
}

// blockOverrides adjust the execution-time block context of a call.
type blockOverrides struct {
	Number        *rpc.Big       `json:"number"`
	Time          *rpc.Uint64    `json:"time"`
	GasLimit      *rpc.Uint64    `json:"gasLimit"`
	FeeRecipient  *types.Address `json:"feeRecipient"`
	PrevRandao    *types.Hash    `json:"prevRandao"`
	BaseFeePerGas *rpc.Big       `json:"baseFeePerGas"`
	BlobBaseFee   *rpc.Big       `json:"blobBaseFee"`
}

// apply rewrites a copy of header with the overridden fields.
func (bo *blockOverrides) apply(header *types.Header) *types.Header {
	out := header.Copy()
	if bo == nil {
		return out
	}
	if bo.Number != nil {
		out.Number = bo.Number.ToInt()
	}
	if bo.Time != nil {
		out.Time = uint64(*bo.Time)
	}
	if bo.GasLimit != nil {
		out.GasLimit = uint64(*bo.GasLimit)
	}
	if bo.FeeRecipient != nil {
		out.Coinbase = *bo.FeeRecipient
	}
	if bo.PrevRandao != nil {
		out.MixDigest = *bo.PrevRandao
	}
	if bo.BaseFeePerGas != nil {
		out.BaseFee = bo.BaseFeePerGas.ToInt()
	}
	return out
}
