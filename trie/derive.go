package trie

import (
	"github.com/devchain-eth/devchain/crypto"
	"github.com/devchain-eth/devchain/rlp"
)

// DerivableList is a list whose elements can be independently encoded,
// such as a block's transactions, receipts or withdrawals.
type DerivableList interface {
	Len() int
	EncodeIndex(i int) ([]byte, error)
}

// DeriveRoot computes the trie root of a list keyed by RLP-encoded
// indices, the layout used for the transaction, receipt and withdrawal
// roots of a block.
func DeriveRoot(list DerivableList) [32]byte {
	if list.Len() == 0 {
		return EmptyRoot
	}
	t := New()
	for i := 0; i < list.Len(); i++ {
		key, _ := rlp.EncodeToBytes(uint64(i))
		val, err := list.EncodeIndex(i)
		if err != nil {
			continue
		}
		t.Put(key, val)
	}
	return t.Hash()
}

// KeyValuePair is one entry for secure-trie root computation.
type KeyValuePair struct {
	Key   []byte
	Value []byte
}

// SecureRoot computes a secure trie root: every key is hashed with
// Keccak-256 before insertion. This is the layout of the account trie
// and of each account's storage trie.
func SecureRoot(pairs []KeyValuePair) [32]byte {
	if len(pairs) == 0 {
		return EmptyRoot
	}
	t := New()
	for _, p := range pairs {
		if len(p.Value) == 0 {
			continue
		}
		t.Put(crypto.Keccak256(p.Key), p.Value)
	}
	return t.Hash()
}
