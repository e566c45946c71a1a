package types

import (
	"errors"
	"fmt"

	"github.com/devchain-eth/devchain/rlp"
)

// ErrShortTypedTx is returned for typed envelopes with no payload.
var ErrShortTypedTx = errors.New("typed transaction too short")

// MarshalBinary returns the canonical EIP-2718 encoding: raw RLP for
// legacy transactions, type byte followed by the RLP body otherwise.
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	body, err := rlp.EncodeToBytes(tx.inner)
	if err != nil {
		return nil, err
	}
	if tx.Type() == LegacyTxType {
		return body, nil
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, tx.Type())
	return append(out, body...), nil
}

// UnmarshalBinary decodes an EIP-2718 enveloped transaction.
func (tx *Transaction) UnmarshalBinary(b []byte) error {
	if len(b) == 0 {
		return ErrShortTypedTx
	}
	if b[0] > 0x7f {
		// Legacy transaction: a bare RLP list.
		var inner LegacyTx
		if err := rlp.DecodeBytes(b, &inner); err != nil {
			return err
		}
		tx.setDecoded(&inner, uint64(len(b)))
		return nil
	}
	inner, err := decodeTypedTx(b)
	if err != nil {
		return err
	}
	tx.setDecoded(inner, uint64(len(b)))
	return nil
}

func decodeTypedTx(b []byte) (TxData, error) {
	if len(b) <= 1 {
		return nil, ErrShortTypedTx
	}
	var inner TxData
	switch b[0] {
	case AccessListTxType:
		inner = new(AccessListTx)
	case DynamicFeeTxType:
		inner = new(DynamicFeeTx)
	case BlobTxType:
		inner = new(BlobTx)
	case SetCodeTxType:
		inner = new(SetCodeTx)
	case DepositTxType:
		inner = new(DepositTx)
	default:
		return nil, fmt.Errorf("%w: type 0x%02x", ErrTxTypeNotSupported, b[0])
	}
	if err := rlp.DecodeBytes(b[1:], inner); err != nil {
		return nil, err
	}
	return inner, nil
}

func (tx *Transaction) setDecoded(inner TxData, size uint64) {
	tx.inner = inner
	tx.size.Store(size)
}

// DecodeTransaction parses one enveloped transaction from raw bytes.
func DecodeTransaction(b []byte) (*Transaction, error) {
	tx := new(Transaction)
	if err := tx.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return tx, nil
}
