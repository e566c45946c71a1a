package types

import (
	"math/big"

	"github.com/devchain-eth/devchain/rlp"
)

// Withdrawal is an EIP-4895 validator withdrawal. Amount is in Gwei.
type Withdrawal struct {
	Index     uint64
	Validator uint64
	Address   Address
	Amount    uint64
}

// AmountWei returns the withdrawal amount converted from Gwei to wei.
func (w *Withdrawal) AmountWei() *big.Int {
	wei := new(big.Int).SetUint64(w.Amount)
	return wei.Mul(wei, big.NewInt(1_000_000_000))
}

// Withdrawals is a list of withdrawals, derivable into a trie root.
type Withdrawals []*Withdrawal

// Len implements DerivableList.
func (ws Withdrawals) Len() int { return len(ws) }

// EncodeIndex implements DerivableList.
func (ws Withdrawals) EncodeIndex(i int) ([]byte, error) {
	return rlp.EncodeToBytes(ws[i])
}
