package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
	"github.com/devchain-eth/devchain/state"
)

// Admission and execution failures surfaced to callers.
var (
	ErrNonceTooLow                  = errors.New("nonce too low")
	ErrNonceTooHigh                 = errors.New("nonce too high")
	ErrNonceMax                     = errors.New("nonce has max value")
	ErrInsufficientFunds            = errors.New("insufficient funds for gas * price + value")
	ErrInsufficientFundsForTransfer = errors.New("insufficient funds for transfer")
	ErrFeeCapTooLow                 = errors.New("max fee per gas less than block base fee")
	ErrTipAboveFeeCap               = errors.New("max priority fee per gas higher than max fee per gas")
	ErrBlobFeeCapTooLow             = errors.New("max fee per blob gas less than block blob gas fee")
	ErrSenderNoEOA                  = errors.New("sender not an eoa")
	ErrIntrinsicGas                 = errors.New("intrinsic gas too low")
	ErrFloorDataGas                 = errors.New("insufficient gas for floor data gas cost")
	ErrMaxInitCodeSizeExceeded      = errors.New("max initcode size exceeded")
)

// Refund quotients: gasUsed/2 pre-London, gasUsed/5 after EIP-3529.
const (
	refundQuotient        uint64 = 2
	refundQuotientEIP3529 uint64 = 5
)

// Message is a transaction flattened for execution, or a synthetic
// call built by eth_call and gas estimation.
type Message struct {
	From      types.Address
	To        *types.Address
	Nonce     uint64
	Value     *big.Int
	GasLimit  uint64
	GasPrice  *big.Int
	GasFeeCap *big.Int
	GasTipCap *big.Int
	Data      []byte

	AccessList types.AccessList
	AuthList   []types.SetCodeAuthorization

	BlobGasFeeCap *big.Int
	BlobHashes    []types.Hash

	// Deposit fields for OP chains.
	IsDeposit  bool
	Mint       *big.Int
	IsSystemTx bool

	// SkipNonceChecks and SkipFeeChecks loosen validation for
	// synthetic calls and impersonated execution.
	SkipNonceChecks bool
	SkipFeeChecks   bool
}

// TransactionToMessage converts a signed transaction into a Message.
func TransactionToMessage(tx *types.Transaction, signer types.Signer, baseFee *big.Int) (*Message, error) {
	from, err := types.Sender(signer, tx)
	if err != nil {
		return nil, err
	}
	msg := &Message{
		From:          from,
		To:            tx.To(),
		Nonce:         tx.Nonce(),
		Value:         tx.Value(),
		GasLimit:      tx.Gas(),
		GasPrice:      tx.GasPrice(),
		GasFeeCap:     tx.GasFeeCap(),
		GasTipCap:     tx.GasTipCap(),
		Data:          tx.Data(),
		AccessList:    tx.AccessList(),
		AuthList:      tx.SetCodeAuthorizations(),
		BlobGasFeeCap: tx.BlobGasFeeCap(),
		BlobHashes:    tx.BlobHashes(),
	}
	if tx.IsDeposit() {
		msg.IsDeposit = true
		msg.Mint = tx.Mint()
		msg.SkipNonceChecks = true
		msg.SkipFeeChecks = true
	}
	if baseFee != nil {
		msg.GasPrice = tx.EffectiveGasPrice(baseFee)
	}
	return msg, nil
}

// ExecutionResult is the outcome of applying a message.
type ExecutionResult struct {
	UsedGas     uint64
	RefundedGas uint64
	Err         error
	ReturnData  []byte
}

// Failed reports whether execution ended in a VM error.
func (r *ExecutionResult) Failed() bool { return r.Err != nil }

// Return gives the returned bytes of a successful execution.
func (r *ExecutionResult) Return() []byte {
	if r.Err != nil {
		return nil
	}
	return append([]byte(nil), r.ReturnData...)
}

// Revert gives the revert payload, nil unless execution reverted.
func (r *ExecutionResult) Revert() []byte {
	if r.Err != vm.ErrExecutionReverted {
		return nil
	}
	return append([]byte(nil), r.ReturnData...)
}

// ApplyMessage runs msg against the EVM's state, charging and
// refunding gas against the block gas pool.
func ApplyMessage(evm *vm.EVM, config *ChainConfig, statedb *state.StateDB, msg *Message, gp *GasPool) (*ExecutionResult, error) {
	st := &stateTransition{
		evm:    evm,
		config: config,
		state:  statedb,
		msg:    msg,
		gp:     gp,
	}
	return st.execute()
}

type stateTransition struct {
	evm    *vm.EVM
	config *ChainConfig
	state  *state.StateDB
	msg    *Message
	gp     *GasPool

	gasRemaining uint64
	initialGas   uint64
}

func (st *stateTransition) execute() (*ExecutionResult, error) {
	if st.msg.IsDeposit {
		return st.executeDeposit()
	}
	if err := st.preCheck(); err != nil {
		return nil, err
	}
	var (
		msg    = st.msg
		rules  = st.evm.ChainRules()
		sender = msg.From
	)
	contractCreation := msg.To == nil

	gas, err := IntrinsicGas(msg.Data, msg.AccessList, msg.AuthList, contractCreation, rules.IsHomestead, rules.IsIstanbul, rules.IsShanghai)
	if err != nil {
		return nil, err
	}
	if st.gasRemaining < gas {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, st.gasRemaining, gas)
	}
	var floorDataGas uint64
	if rules.IsPrague {
		floorDataGas, err = FloorDataGas(msg.Data)
		if err != nil {
			return nil, err
		}
		if msg.GasLimit < floorDataGas {
			return nil, fmt.Errorf("%w: have %d, want %d", ErrFloorDataGas, msg.GasLimit, floorDataGas)
		}
	}
	st.gasRemaining -= gas

	if contractCreation && rules.IsShanghai && len(msg.Data) > vm.MaxInitCodeSize {
		return nil, fmt.Errorf("%w: code size %d, limit %d", ErrMaxInitCodeSizeExceeded, len(msg.Data), vm.MaxInitCodeSize)
	}
	if msg.Value.Sign() > 0 && !st.evm.Context.CanTransfer(st.state, sender, msg.Value) {
		return nil, fmt.Errorf("%w: address %s", ErrInsufficientFundsForTransfer, sender.Hex())
	}

	if rules.IsBerlin {
		st.state.Prepare(sender, st.evm.Context.Coinbase, msg.To, st.evm.ActivePrecompileAddresses(), msg.AccessList)
	}
	if rules.IsPrague {
		st.applyAuthorizations()
	}

	var (
		ret   []byte
		vmerr error
	)
	value, _ := uint256.FromBig(msg.Value)
	root := vm.NewContract(sender, sender, new(uint256.Int), 0)
	if contractCreation {
		ret, _, st.gasRemaining, vmerr = st.evm.Create(root, msg.Data, st.gasRemaining, value)
	} else {
		st.state.SetNonce(sender, st.state.GetNonce(sender)+1)
		ret, st.gasRemaining, vmerr = st.evm.Call(root, *msg.To, msg.Data, st.gasRemaining, value)
	}

	quotient := refundQuotient
	if rules.IsLondon {
		quotient = refundQuotientEIP3529
	}
	gasRefund := st.gasUsed() / quotient
	if gasRefund > st.state.GetRefund() {
		gasRefund = st.state.GetRefund()
	}
	st.gasRemaining += gasRefund

	// EIP-7623: charged gas never drops below the calldata floor.
	if rules.IsPrague && st.gasUsed() < floorDataGas {
		st.gasRemaining = st.initialGas - floorDataGas
	}
	st.returnGas()
	st.payCoinbase(rules)

	return &ExecutionResult{
		UsedGas:     st.gasUsed(),
		RefundedGas: gasRefund,
		Err:         vmerr,
		ReturnData:  ret,
	}, nil
}

// executeDeposit runs an OP deposit. Gas is prepaid on L1: there is no
// gas purchase, no refund and no coinbase payment.
func (st *stateTransition) executeDeposit() (*ExecutionResult, error) {
	msg := st.msg
	if msg.Mint != nil && msg.Mint.Sign() > 0 {
		st.state.AddBalance(msg.From, msg.Mint)
	}
	if err := st.gp.SubGas(msg.GasLimit); err != nil {
		return nil, err
	}
	st.initialGas = msg.GasLimit
	st.gasRemaining = msg.GasLimit

	st.state.SetNonce(msg.From, st.state.GetNonce(msg.From)+1)
	var (
		ret   []byte
		vmerr error
	)
	value, _ := uint256.FromBig(msg.Value)
	root := vm.NewContract(msg.From, msg.From, new(uint256.Int), 0)
	if msg.To == nil {
		ret, _, st.gasRemaining, vmerr = st.evm.Create(root, msg.Data, st.gasRemaining, value)
	} else {
		ret, st.gasRemaining, vmerr = st.evm.Call(root, *msg.To, msg.Data, st.gasRemaining, value)
	}
	usedGas := st.gasUsed()
	if msg.IsSystemTx {
		usedGas = 0
	}
	return &ExecutionResult{
		UsedGas:    usedGas,
		Err:        vmerr,
		ReturnData: ret,
	}, nil
}

func (st *stateTransition) preCheck() error {
	msg := st.msg
	if !msg.SkipNonceChecks {
		stNonce := st.state.GetNonce(msg.From)
		if msgNonce := msg.Nonce; stNonce < msgNonce {
			return fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooHigh, msg.From.Hex(), msgNonce, stNonce)
		} else if stNonce > msgNonce {
			return fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooLow, msg.From.Hex(), msgNonce, stNonce)
		} else if stNonce+1 < stNonce {
			return fmt.Errorf("%w: address %s, nonce: %d", ErrNonceMax, msg.From.Hex(), stNonce)
		}
	}
	// EIP-3607: reject transactions from accounts with code, except
	// EIP-7702 delegated EOAs.
	if codeHash := st.state.GetCodeHash(msg.From); codeHash != types.EmptyCodeHash && !codeHash.IsZero() {
		if _, ok := types.ParseDelegation(st.state.GetCode(msg.From)); !ok {
			return fmt.Errorf("%w: address %s, codehash: %s", ErrSenderNoEOA, msg.From.Hex(), codeHash.Hex())
		}
	}
	if !msg.SkipFeeChecks && !st.evm.Config.NoBaseFee {
		if l := msg.GasFeeCap; l != nil && msg.GasTipCap != nil {
			if l.Cmp(msg.GasTipCap) < 0 {
				return fmt.Errorf("%w: address %s, maxPriorityFeePerGas: %s, maxFeePerGas: %s",
					ErrTipAboveFeeCap, msg.From.Hex(), msg.GasTipCap, l)
			}
			if baseFee := st.evm.Context.BaseFee; baseFee != nil && l.Cmp(baseFee) < 0 {
				return fmt.Errorf("%w: address %s, maxFeePerGas: %s, baseFee: %s",
					ErrFeeCapTooLow, msg.From.Hex(), l, baseFee)
			}
		}
		if len(msg.BlobHashes) > 0 {
			if blobBaseFee := st.evm.Context.BlobBaseFee; blobBaseFee != nil &&
				msg.BlobGasFeeCap != nil && msg.BlobGasFeeCap.Cmp(blobBaseFee) < 0 {
				return fmt.Errorf("%w: address %s, maxFeePerBlobGas: %s, blobBaseFee: %s",
					ErrBlobFeeCapTooLow, msg.From.Hex(), msg.BlobGasFeeCap, blobBaseFee)
			}
		}
	}
	return st.buyGas()
}

func (st *stateTransition) buyGas() error {
	msg := st.msg
	mgval := new(big.Int).SetUint64(msg.GasLimit)
	mgval.Mul(mgval, msg.GasPrice)
	balanceCheck := new(big.Int).Set(mgval)
	if msg.GasFeeCap != nil {
		balanceCheck.SetUint64(msg.GasLimit)
		balanceCheck.Mul(balanceCheck, msg.GasFeeCap)
	}
	balanceCheck.Add(balanceCheck, msg.Value)

	if blobGas := st.blobGasUsed(); blobGas > 0 {
		blobFee := new(big.Int).SetUint64(blobGas)
		blobFee.Mul(blobFee, msg.BlobGasFeeCap)
		balanceCheck.Add(balanceCheck, blobFee)
		// The blob fee is burned up front at the blob base fee.
		if blobBaseFee := st.evm.Context.BlobBaseFee; blobBaseFee != nil {
			burn := new(big.Int).SetUint64(blobGas)
			burn.Mul(burn, blobBaseFee)
			mgval.Add(mgval, burn)
		}
	}
	if !msg.SkipFeeChecks {
		if have := st.state.GetBalance(msg.From); have.Cmp(balanceCheck) < 0 {
			return fmt.Errorf("%w: address %s have %s want %s", ErrInsufficientFunds, msg.From.Hex(), have, balanceCheck)
		}
	}
	if err := st.gp.SubGas(msg.GasLimit); err != nil {
		return err
	}
	st.gasRemaining = msg.GasLimit
	st.initialGas = msg.GasLimit
	if !msg.SkipFeeChecks {
		st.state.SubBalance(msg.From, mgval)
	}
	return nil
}

// applyAuthorizations installs EIP-7702 delegation designators for
// each valid authorization tuple. Invalid tuples are skipped.
func (st *stateTransition) applyAuthorizations() {
	for _, auth := range st.msg.AuthList {
		authority, err := types.RecoverAuthority(&auth, st.config.ChainID)
		if err != nil {
			continue
		}
		st.state.AddAddressToAccessList(authority)
		code := st.state.GetCode(authority)
		if _, ok := types.ParseDelegation(code); len(code) != 0 && !ok {
			continue
		}
		if st.state.GetNonce(authority) != auth.Nonce {
			continue
		}
		if st.state.Exist(authority) {
			st.state.AddRefund(TxAuthTupleRefund)
		}
		st.state.SetNonce(authority, auth.Nonce+1)
		if auth.Address == (types.Address{}) {
			// Zero address clears the delegation.
			st.state.SetCode(authority, nil)
			continue
		}
		st.state.SetCode(authority, types.AddressToDelegation(auth.Address))
	}
}

// returnGas settles the unused gas with the sender and the block gas
// pool.
func (st *stateTransition) returnGas() {
	if !st.msg.SkipFeeChecks {
		remaining := new(big.Int).SetUint64(st.gasRemaining)
		remaining.Mul(remaining, st.msg.GasPrice)
		st.state.AddBalance(st.msg.From, remaining)
	}
	st.gp.AddGas(st.gasRemaining)
}

// payCoinbase credits the block producer with the effective tip.
func (st *stateTransition) payCoinbase(rules vm.Rules) {
	if st.msg.SkipFeeChecks {
		return
	}
	effectiveTip := st.msg.GasPrice
	if rules.IsLondon && st.evm.Context.BaseFee != nil {
		effectiveTip = new(big.Int).Sub(st.msg.GasPrice, st.evm.Context.BaseFee)
		if effectiveTip.Sign() < 0 {
			effectiveTip = new(big.Int)
		}
	}
	fee := new(big.Int).SetUint64(st.gasUsed())
	fee.Mul(fee, effectiveTip)
	if fee.Sign() > 0 {
		st.state.AddBalance(st.evm.Context.Coinbase, fee)
	}
}

func (st *stateTransition) gasUsed() uint64 {
	return st.initialGas - st.gasRemaining
}

func (st *stateTransition) blobGasUsed() uint64 {
	return uint64(len(st.msg.BlobHashes)) * types.BlobTxBlobGasPerBlob
}
