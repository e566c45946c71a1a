package types

import (
	"errors"
	"math/big"
	"sync/atomic"

	"github.com/devchain-eth/devchain/crypto"
)

// EIP-2718 transaction type tags.
const (
	LegacyTxType     = 0x00
	AccessListTxType = 0x01
	DynamicFeeTxType = 0x02
	BlobTxType       = 0x03
	SetCodeTxType    = 0x04

	// DepositTxType is the OP-stack system deposit transaction.
	DepositTxType = 0x7e
)

var (
	// ErrTxTypeNotSupported is returned when a transaction type is not
	// valid in the current context.
	ErrTxTypeNotSupported = errors.New("transaction type not supported")

	// ErrInvalidSig is returned when signature values fail validation.
	ErrInvalidSig = errors.New("invalid transaction v, r, s values")

	// ErrInvalidChainID is returned when a signature's chain id does not
	// match the signer's.
	ErrInvalidChainID = errors.New("invalid chain id for signer")
)

// TxData is the shape shared by all transaction variants.
type TxData interface {
	txType() byte
	copy() TxData

	chainID() *big.Int
	accessList() AccessList
	data() []byte
	gas() uint64
	gasPrice() *big.Int
	gasTipCap() *big.Int
	gasFeeCap() *big.Int
	value() *big.Int
	nonce() uint64
	to() *Address

	rawSignatureValues() (v, r, s *big.Int)
	setSignatureValues(chainID, v, r, s *big.Int)
}

// Transaction is an EIP-2718 typed transaction envelope with cached
// hash, size and sender.
type Transaction struct {
	inner TxData

	hash atomic.Pointer[Hash]
	size atomic.Uint64
	from atomic.Pointer[sigCache]
}

type sigCache struct {
	signer Signer
	from   Address
}

// NewTx wraps inner in an envelope, deep-copying it.
func NewTx(inner TxData) *Transaction {
	tx := new(Transaction)
	tx.inner = inner.copy()
	return tx
}

// Type returns the EIP-2718 type tag.
func (tx *Transaction) Type() uint8 { return tx.inner.txType() }

// ChainId returns the chain id the transaction is bound to, or nil for
// unprotected legacy transactions.
func (tx *Transaction) ChainId() *big.Int { return tx.inner.chainID() }

// Data returns the calldata.
func (tx *Transaction) Data() []byte { return tx.inner.data() }

// AccessList returns the EIP-2930 access list, or nil.
func (tx *Transaction) AccessList() AccessList { return tx.inner.accessList() }

// Gas returns the gas limit.
func (tx *Transaction) Gas() uint64 { return tx.inner.gas() }

// GasPrice returns the legacy gas price, or the fee cap for dynamic-fee
// transactions.
func (tx *Transaction) GasPrice() *big.Int { return copyBig(tx.inner.gasPrice()) }

// GasTipCap returns maxPriorityFeePerGas.
func (tx *Transaction) GasTipCap() *big.Int { return copyBig(tx.inner.gasTipCap()) }

// GasFeeCap returns maxFeePerGas.
func (tx *Transaction) GasFeeCap() *big.Int { return copyBig(tx.inner.gasFeeCap()) }

// Value returns the wei amount transferred.
func (tx *Transaction) Value() *big.Int { return copyBig(tx.inner.value()) }

// Nonce returns the sender nonce.
func (tx *Transaction) Nonce() uint64 { return tx.inner.nonce() }

// To returns the recipient, or nil for contract creation.
func (tx *Transaction) To() *Address {
	to := tx.inner.to()
	if to == nil {
		return nil
	}
	cpy := *to
	return &cpy
}

// RawSignatureValues returns the raw V, R, S values.
func (tx *Transaction) RawSignatureValues() (v, r, s *big.Int) {
	return tx.inner.rawSignatureValues()
}

// Protected reports whether the transaction is replay-protected.
func (tx *Transaction) Protected() bool {
	switch t := tx.inner.(type) {
	case *LegacyTx:
		v, _, _ := t.rawSignatureValues()
		return v != nil && isProtectedV(v)
	case *DepositTx:
		return false
	default:
		return true
	}
}

func isProtectedV(v *big.Int) bool {
	if v.BitLen() <= 8 {
		u := v.Uint64()
		return u != 27 && u != 28
	}
	return true
}

// BlobHashes returns the EIP-4844 versioned hashes, or nil.
func (tx *Transaction) BlobHashes() []Hash {
	if blob, ok := tx.inner.(*BlobTx); ok {
		return blob.BlobHashes
	}
	return nil
}

// BlobGas returns the total blob gas consumed by the transaction.
func (tx *Transaction) BlobGas() uint64 {
	return uint64(len(tx.BlobHashes())) * BlobTxBlobGasPerBlob
}

// BlobGasFeeCap returns maxFeePerBlobGas, or nil.
func (tx *Transaction) BlobGasFeeCap() *big.Int {
	if blob, ok := tx.inner.(*BlobTx); ok {
		return copyBig(blob.BlobFeeCap)
	}
	return nil
}

// BlobSidecar returns the attached blob sidecar, or nil.
func (tx *Transaction) BlobSidecar() *BlobTxSidecar {
	if blob, ok := tx.inner.(*BlobTx); ok {
		return blob.Sidecar
	}
	return nil
}

// WithoutBlobSidecar returns a copy of the transaction with the sidecar
// detached, as included in a block body.
func (tx *Transaction) WithoutBlobSidecar() *Transaction {
	blob, ok := tx.inner.(*BlobTx)
	if !ok || blob.Sidecar == nil {
		return tx
	}
	cpy := blob.copy().(*BlobTx)
	cpy.Sidecar = nil
	out := &Transaction{inner: cpy}
	if c := tx.from.Load(); c != nil {
		out.from.Store(c)
	}
	return out
}

// SetCodeAuthorizations returns the EIP-7702 authorization list, or nil.
func (tx *Transaction) SetCodeAuthorizations() []SetCodeAuthorization {
	if sc, ok := tx.inner.(*SetCodeTx); ok {
		return sc.AuthList
	}
	return nil
}

// IsDeposit reports whether this is an OP-stack deposit transaction.
func (tx *Transaction) IsDeposit() bool { return tx.Type() == DepositTxType }

// Mint returns the OP deposit mint amount, or nil.
func (tx *Transaction) Mint() *big.Int {
	if dep, ok := tx.inner.(*DepositTx); ok {
		return copyBig(dep.Mint)
	}
	return nil
}

// SourceHash returns the OP deposit source hash, or the zero hash.
func (tx *Transaction) SourceHash() Hash {
	if dep, ok := tx.inner.(*DepositTx); ok {
		return dep.SourceHash
	}
	return Hash{}
}

// EffectiveGasTip returns the miner tip under the given base fee:
// min(tipCap, feeCap - baseFee). The error indicates a fee cap below
// the base fee; the capped value is still returned.
func (tx *Transaction) EffectiveGasTip(baseFee *big.Int) (*big.Int, error) {
	if baseFee == nil {
		return tx.GasTipCap(), nil
	}
	feeCap := tx.GasFeeCap()
	if feeCap.Cmp(baseFee) < 0 {
		return new(big.Int), errors.New("fee cap below base fee")
	}
	tip := new(big.Int).Sub(feeCap, baseFee)
	if tipCap := tx.GasTipCap(); tip.Cmp(tipCap) > 0 {
		tip.Set(tipCap)
	}
	return tip, nil
}

// EffectiveGasPrice returns the per-gas price actually paid under the
// given base fee: min(feeCap, baseFee + tip), or the legacy gas price
// when baseFee is nil.
func (tx *Transaction) EffectiveGasPrice(baseFee *big.Int) *big.Int {
	if baseFee == nil || tx.Type() == LegacyTxType || tx.Type() == AccessListTxType {
		return tx.GasPrice()
	}
	tip, _ := tx.EffectiveGasTip(baseFee)
	return tip.Add(tip, baseFee)
}

// Cost returns gas * gasPrice + blobGas * blobFeeCap + value.
func (tx *Transaction) Cost() *big.Int {
	total := new(big.Int).SetUint64(tx.Gas())
	total.Mul(total, tx.inner.gasPrice())
	if cap := tx.BlobGasFeeCap(); cap != nil {
		blob := new(big.Int).SetUint64(tx.BlobGas())
		total.Add(total, blob.Mul(blob, cap))
	}
	return total.Add(total, tx.Value())
}

// Hash returns the transaction hash: keccak256 of the enveloped encoding.
func (tx *Transaction) Hash() Hash {
	if h := tx.hash.Load(); h != nil {
		return *h
	}
	enc, _ := tx.MarshalBinary()
	h := Hash(crypto.Keccak256Array(enc))
	tx.hash.Store(&h)
	return h
}

// Size returns the byte size of the enveloped encoding.
func (tx *Transaction) Size() uint64 {
	if s := tx.size.Load(); s > 0 {
		return s
	}
	enc, _ := tx.MarshalBinary()
	s := uint64(len(enc))
	tx.size.Store(s)
	return s
}

// WithSignature returns a copy of the transaction carrying the given
// 65-byte [R || S || V] signature, interpreted by the signer.
func (tx *Transaction) WithSignature(signer Signer, sig []byte) (*Transaction, error) {
	r, s, v, err := signer.SignatureValues(tx, sig)
	if err != nil {
		return nil, err
	}
	cpy := tx.inner.copy()
	cpy.setSignatureValues(signer.ChainID(), v, r, s)
	return &Transaction{inner: cpy}, nil
}

// setCachedSender records the known sender so Sender can skip recovery.
// Used for impersonated (fake-signed) and deposit transactions.
func (tx *Transaction) setCachedSender(signer Signer, from Address) {
	tx.from.Store(&sigCache{signer: signer, from: from})
}

// Transactions is a list of transactions, derivable into a trie root.
type Transactions []*Transaction

// Len implements DerivableList.
func (txs Transactions) Len() int { return len(txs) }

// EncodeIndex implements DerivableList.
func (txs Transactions) EncodeIndex(i int) ([]byte, error) {
	return txs[i].MarshalBinary()
}
