package types

import (
	"errors"
	"math/big"

	"github.com/devchain-eth/devchain/crypto"
	"github.com/devchain-eth/devchain/rlp"
)

// Receipt statuses (post-Byzantium).
const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

// Receipt is the result of executing one transaction.
type Receipt struct {
	// Consensus fields. PostState is set pre-Byzantium, Status after.
	Type              uint8
	PostState         []byte
	Status            uint64
	CumulativeGasUsed uint64
	Bloom             Bloom
	Logs              []*Log

	// Derived fields, filled in when the block is sealed.
	TxHash            Hash
	ContractAddress   *Address
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	BlobGasUsed       uint64
	BlobGasPrice      *big.Int
	BlockHash         Hash
	BlockNumber       uint64
	TransactionIndex  uint

	// OP-stack deposit extensions.
	DepositNonce          *uint64
	DepositReceiptVersion *uint64
}

// NewReceipt creates a consensus receipt. Pre-Byzantium receipts carry
// the post-transaction state root instead of a status bit.
func NewReceipt(txType uint8, failed bool, postState []byte, cumulativeGasUsed uint64) *Receipt {
	r := &Receipt{
		Type:              txType,
		CumulativeGasUsed: cumulativeGasUsed,
	}
	if len(postState) > 0 {
		r.PostState = CopyBytes(postState)
	} else if failed {
		r.Status = ReceiptStatusFailed
	} else {
		r.Status = ReceiptStatusSuccessful
	}
	return r
}

// Succeeded reports whether the receipt indicates success.
func (r *Receipt) Succeeded() bool {
	return len(r.PostState) > 0 || r.Status == ReceiptStatusSuccessful
}

// statusEncoding returns the first consensus field: post-state root or
// status bit.
func (r *Receipt) statusEncoding() []byte {
	if len(r.PostState) > 0 {
		return r.PostState
	}
	if r.Status == ReceiptStatusSuccessful {
		return []byte{0x01}
	}
	return []byte{}
}

type receiptRLP struct {
	PostStateOrStatus []byte
	CumulativeGasUsed uint64
	Bloom             Bloom
	Logs              []*rlpLog
}

type depositReceiptRLP struct {
	PostStateOrStatus []byte
	CumulativeGasUsed uint64
	Bloom             Bloom
	Logs              []*rlpLog
	DepositNonce      *uint64
	DepositVersion    *uint64
}

// MarshalBinary returns the EIP-2718 receipt encoding: the raw body for
// legacy receipts, type byte followed by the body for typed ones.
func (r *Receipt) MarshalBinary() ([]byte, error) {
	logs := make([]*rlpLog, len(r.Logs))
	for i, l := range r.Logs {
		logs[i] = l.rlpFields()
	}
	var (
		body []byte
		err  error
	)
	if r.Type == DepositTxType && r.DepositNonce != nil {
		body, err = rlp.EncodeToBytes(&depositReceiptRLP{
			PostStateOrStatus: r.statusEncoding(),
			CumulativeGasUsed: r.CumulativeGasUsed,
			Bloom:             r.Bloom,
			Logs:              logs,
			DepositNonce:      r.DepositNonce,
			DepositVersion:    r.DepositReceiptVersion,
		})
	} else {
		body, err = rlp.EncodeToBytes(&receiptRLP{
			PostStateOrStatus: r.statusEncoding(),
			CumulativeGasUsed: r.CumulativeGasUsed,
			Bloom:             r.Bloom,
			Logs:              logs,
		})
	}
	if err != nil {
		return nil, err
	}
	if r.Type == LegacyTxType {
		return body, nil
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, r.Type)
	return append(out, body...), nil
}

// UnmarshalBinary decodes an EIP-2718 receipt encoding.
func (r *Receipt) UnmarshalBinary(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty receipt encoding")
	}
	typ := uint8(LegacyTxType)
	if b[0] <= 0x7f {
		typ = b[0]
		b = b[1:]
	}
	var dec receiptRLP
	if err := rlp.DecodeBytes(b, &dec); err != nil {
		if typ != DepositTxType {
			return err
		}
		var ddec depositReceiptRLP
		if derr := rlp.DecodeBytes(b, &ddec); derr != nil {
			return derr
		}
		dec = receiptRLP{ddec.PostStateOrStatus, ddec.CumulativeGasUsed, ddec.Bloom, ddec.Logs}
		r.DepositNonce = ddec.DepositNonce
		r.DepositReceiptVersion = ddec.DepositVersion
	}
	r.Type = typ
	r.CumulativeGasUsed = dec.CumulativeGasUsed
	r.Bloom = dec.Bloom
	r.Logs = make([]*Log, len(dec.Logs))
	for i, l := range dec.Logs {
		r.Logs[i] = &Log{Address: l.Address, Topics: l.Topics, Data: l.Data}
	}
	switch {
	case len(dec.PostStateOrStatus) == 32:
		r.PostState = dec.PostStateOrStatus
	case len(dec.PostStateOrStatus) == 1 && dec.PostStateOrStatus[0] == 1:
		r.Status = ReceiptStatusSuccessful
	default:
		r.Status = ReceiptStatusFailed
	}
	return nil
}

// Receipts is a list of receipts, derivable into a trie root.
type Receipts []*Receipt

// Len implements DerivableList.
func (rs Receipts) Len() int { return len(rs) }

// EncodeIndex implements DerivableList.
func (rs Receipts) EncodeIndex(i int) ([]byte, error) {
	return rs[i].MarshalBinary()
}

// DeriveFields fills in the positional receipt and log fields for a
// sealed block.
func (rs Receipts) DeriveFields(blockHash Hash, blockNumber uint64, baseFee *big.Int, txs Transactions) error {
	if len(rs) != len(txs) {
		return errors.New("receipt/transaction count mismatch")
	}
	logIndex := uint(0)
	for i, r := range rs {
		tx := txs[i]
		r.TxHash = tx.Hash()
		r.BlockHash = blockHash
		r.BlockNumber = blockNumber
		r.TransactionIndex = uint(i)
		r.EffectiveGasPrice = tx.EffectiveGasPrice(baseFee)
		if i == 0 {
			r.GasUsed = r.CumulativeGasUsed
		} else {
			r.GasUsed = r.CumulativeGasUsed - rs[i-1].CumulativeGasUsed
		}
		if tx.To() == nil && r.ContractAddress == nil {
			signer := LatestSigner(tx.ChainId())
			if from, err := Sender(signer, tx); err == nil {
				addr := CreateAddress(from, tx.Nonce())
				r.ContractAddress = &addr
			}
		}
		for _, l := range r.Logs {
			l.BlockHash = blockHash
			l.BlockNumber = blockNumber
			l.TxHash = r.TxHash
			l.TxIndex = uint(i)
			l.Index = logIndex
			logIndex++
		}
	}
	return nil
}

// CreateAddress computes the address of a contract created by sender
// with the given nonce.
func CreateAddress(sender Address, nonce uint64) Address {
	enc, _ := rlp.EncodeToBytes([]interface{}{sender, nonce})
	return BytesToAddress(crypto.Keccak256(enc)[12:])
}

// CreateAddress2 computes the CREATE2 address.
func CreateAddress2(sender Address, salt Hash, initCodeHash []byte) Address {
	return BytesToAddress(crypto.Keccak256([]byte{0xff}, sender.Bytes(), salt.Bytes(), initCodeHash)[12:])
}
