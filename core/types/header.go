package types

import (
	"math/big"

	"github.com/devchain-eth/devchain/crypto"
	"github.com/devchain-eth/devchain/rlp"
)

// Header is an Ethereum block header covering every fork through Prague.
// The optional trailing fields are nil before their activating fork and
// are omitted from the RLP encoding when nil.
type Header struct {
	ParentHash  Hash
	UncleHash   Hash
	Coinbase    Address
	Root        Hash
	TxHash      Hash
	ReceiptHash Hash
	Bloom       Bloom
	Difficulty  *big.Int
	Number      *big.Int
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	MixDigest   Hash
	Nonce       BlockNonce

	// BaseFee was added by EIP-1559 (London).
	BaseFee *big.Int

	// WithdrawalsHash was added by EIP-4895 (Shanghai).
	WithdrawalsHash *Hash

	// BlobGasUsed and ExcessBlobGas were added by EIP-4844 (Cancun).
	BlobGasUsed   *uint64
	ExcessBlobGas *uint64

	// ParentBeaconRoot was added by EIP-4788 (Cancun).
	ParentBeaconRoot *Hash

	// RequestsHash was added by EIP-7685 (Prague).
	RequestsHash *Hash
}

// EmptyUncleHash is the hash of an empty ommer list.
var EmptyUncleHash = rlpHash([]*Header{})

// Hash returns the Keccak-256 of the header's RLP encoding.
func (h *Header) Hash() Hash {
	return Hash(crypto.Keccak256Array(h.encodeRLP()))
}

// EncodeRLP returns the canonical header encoding, appending the
// optional trailing fields only when present.
func (h *Header) EncodeRLP() []byte {
	return h.encodeRLP()
}

func (h *Header) encodeRLP() []byte {
	var payload []byte
	app := func(v interface{}) {
		enc, _ := rlp.EncodeToBytes(v)
		payload = append(payload, enc...)
	}
	app(h.ParentHash)
	app(h.UncleHash)
	app(h.Coinbase)
	app(h.Root)
	app(h.TxHash)
	app(h.ReceiptHash)
	app(h.Bloom)
	app(h.Difficulty)
	app(h.Number)
	app(h.GasLimit)
	app(h.GasUsed)
	app(h.Time)
	app(h.Extra)
	app(h.MixDigest)
	app(h.Nonce)
	if h.BaseFee != nil {
		app(h.BaseFee)
		if h.WithdrawalsHash != nil {
			app(*h.WithdrawalsHash)
			if h.BlobGasUsed != nil && h.ExcessBlobGas != nil {
				app(*h.BlobGasUsed)
				app(*h.ExcessBlobGas)
				if h.ParentBeaconRoot != nil {
					app(*h.ParentBeaconRoot)
					if h.RequestsHash != nil {
						app(*h.RequestsHash)
					}
				}
			}
		}
	}
	return rlp.WrapList(payload)
}

// Copy returns a deep copy of the header.
func (h *Header) Copy() *Header {
	cpy := *h
	cpy.Difficulty = copyBig(h.Difficulty)
	cpy.Number = copyBig(h.Number)
	cpy.BaseFee = copyBig(h.BaseFee)
	cpy.Extra = CopyBytes(h.Extra)
	if h.WithdrawalsHash != nil {
		v := *h.WithdrawalsHash
		cpy.WithdrawalsHash = &v
	}
	if h.BlobGasUsed != nil {
		v := *h.BlobGasUsed
		cpy.BlobGasUsed = &v
	}
	if h.ExcessBlobGas != nil {
		v := *h.ExcessBlobGas
		cpy.ExcessBlobGas = &v
	}
	if h.ParentBeaconRoot != nil {
		v := *h.ParentBeaconRoot
		cpy.ParentBeaconRoot = &v
	}
	if h.RequestsHash != nil {
		v := *h.RequestsHash
		cpy.RequestsHash = &v
	}
	return &cpy
}

// NumberU64 returns the block number as a uint64.
func (h *Header) NumberU64() uint64 {
	if h.Number == nil {
		return 0
	}
	return h.Number.Uint64()
}
