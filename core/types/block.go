package types

import (
	"math/big"
	"sync/atomic"

	"github.com/devchain-eth/devchain/rlp"
)

// Body is the non-header content of a block.
type Body struct {
	Transactions Transactions
	Uncles       []*Header
	Withdrawals  Withdrawals
}

// Block is a sealed Ethereum block with cached hash and size.
type Block struct {
	header       *Header
	transactions Transactions
	uncles       []*Header
	withdrawals  Withdrawals

	hash atomic.Pointer[Hash]
	size atomic.Uint64
}

// NewBlock assembles a block from a finalized header and body. The
// header is used as-is; roots must already be set.
func NewBlock(header *Header, body *Body) *Block {
	b := &Block{header: header.Copy()}
	if body != nil {
		b.transactions = body.Transactions
		b.uncles = body.Uncles
		b.withdrawals = body.Withdrawals
	}
	return b
}

// NewBlockWithHash assembles a block whose hash is fixed out of band
// instead of derived from the header. Used for blocks whose hash is
// fabricated, such as materialized reserved blocks.
func NewBlockWithHash(header *Header, body *Body, hash Hash) *Block {
	b := NewBlock(header, body)
	b.hash.Store(&hash)
	return b
}

// Header returns a copy of the block header.
func (b *Block) Header() *Header { return b.header.Copy() }

// RawHeader returns the block's header without copying. Callers must
// not mutate it.
func (b *Block) RawHeader() *Header { return b.header }

// Body returns the block body.
func (b *Block) Body() *Body {
	return &Body{Transactions: b.transactions, Uncles: b.uncles, Withdrawals: b.withdrawals}
}

// Transactions returns the block's transactions.
func (b *Block) Transactions() Transactions { return b.transactions }

// Transaction returns the transaction with the given hash, or nil.
func (b *Block) Transaction(hash Hash) *Transaction {
	for _, tx := range b.transactions {
		if tx.Hash() == hash {
			return tx
		}
	}
	return nil
}

// Withdrawals returns the block's withdrawals.
func (b *Block) Withdrawals() Withdrawals { return b.withdrawals }

// Uncles returns the block's ommer headers.
func (b *Block) Uncles() []*Header { return b.uncles }

// Hash returns the block hash (the header hash), cached.
func (b *Block) Hash() Hash {
	if h := b.hash.Load(); h != nil {
		return *h
	}
	h := b.header.Hash()
	b.hash.Store(&h)
	return h
}

// Number returns the block number.
func (b *Block) Number() *big.Int { return copyBig(b.header.Number) }

// NumberU64 returns the block number as a uint64.
func (b *Block) NumberU64() uint64 { return b.header.NumberU64() }

// ParentHash returns the parent block hash.
func (b *Block) ParentHash() Hash { return b.header.ParentHash }

// Root returns the state root.
func (b *Block) Root() Hash { return b.header.Root }

// GasLimit returns the block gas limit.
func (b *Block) GasLimit() uint64 { return b.header.GasLimit }

// GasUsed returns the gas used by all transactions.
func (b *Block) GasUsed() uint64 { return b.header.GasUsed }

// Time returns the block timestamp.
func (b *Block) Time() uint64 { return b.header.Time }

// BaseFee returns the block base fee, or nil pre-London.
func (b *Block) BaseFee() *big.Int { return copyBig(b.header.BaseFee) }

// Bloom returns the block's log bloom.
func (b *Block) Bloom() Bloom { return b.header.Bloom }

// Size returns the byte size of the block's RLP encoding, cached.
func (b *Block) Size() uint64 {
	if s := b.size.Load(); s > 0 {
		return s
	}
	s := uint64(len(b.EncodeRLP()))
	b.size.Store(s)
	return s
}

// EncodeRLP returns the yellow-paper block encoding:
// [header, transactions, uncles, withdrawals?].
func (b *Block) EncodeRLP() []byte {
	var payload []byte
	payload = append(payload, b.header.encodeRLP()...)

	var txPayload []byte
	for _, tx := range b.transactions {
		enc, _ := tx.MarshalBinary()
		if tx.Type() == LegacyTxType {
			txPayload = append(txPayload, enc...)
		} else {
			// Typed transactions nest as byte strings.
			txPayload = rlp.AppendString(txPayload, enc)
		}
	}
	payload = append(payload, rlp.WrapList(txPayload)...)

	var unclePayload []byte
	for _, u := range b.uncles {
		unclePayload = append(unclePayload, u.encodeRLP()...)
	}
	payload = append(payload, rlp.WrapList(unclePayload)...)

	if b.header.WithdrawalsHash != nil {
		enc, _ := rlp.EncodeToBytes(b.withdrawals)
		payload = append(payload, enc...)
	}
	return rlp.WrapList(payload)
}
