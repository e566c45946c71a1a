package types

import (
	"math/big"

	"github.com/devchain-eth/devchain/crypto"
)

var (
	// EmptyRootHash is the root of an empty Merkle-Patricia trie.
	EmptyRootHash = HexToHash("0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

	// EmptyRequestsHash is the EIP-7685 commitment over no requests.
	EmptyRequestsHash = HexToHash("0xe3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")

	// EmptyCodeHash is the Keccak-256 of empty bytecode.
	EmptyCodeHash = Hash(crypto.Keccak256Array(nil))
)

// StateAccount is the consensus representation of an account: the four
// fields that feed the state trie.
type StateAccount struct {
	Nonce    uint64
	Balance  *big.Int
	Root     Hash
	CodeHash Hash
}

// NewEmptyStateAccount returns an account with zero nonce and balance,
// empty storage and no code.
func NewEmptyStateAccount() *StateAccount {
	return &StateAccount{
		Balance:  new(big.Int),
		Root:     EmptyRootHash,
		CodeHash: EmptyCodeHash,
	}
}

// Copy returns a deep copy of the account.
func (a *StateAccount) Copy() *StateAccount {
	if a == nil {
		return nil
	}
	return &StateAccount{
		Nonce:    a.Nonce,
		Balance:  copyBig(a.Balance),
		Root:     a.Root,
		CodeHash: a.CodeHash,
	}
}

// IsEmpty reports whether the account is empty per EIP-161: zero nonce,
// zero balance and no code.
func (a *StateAccount) IsEmpty() bool {
	return a.Nonce == 0 && (a.Balance == nil || a.Balance.Sign() == 0) &&
		(a.CodeHash == EmptyCodeHash || a.CodeHash.IsZero())
}

// trieAccount is the RLP shape stored in the state trie.
type trieAccount struct {
	Nonce    uint64
	Balance  *big.Int
	Root     Hash
	CodeHash Hash
}

// TrieFields returns the account in its canonical trie field order for
// RLP encoding.
func (a *StateAccount) TrieFields() interface{} {
	balance := a.Balance
	if balance == nil {
		balance = new(big.Int)
	}
	root := a.Root
	if root.IsZero() {
		root = EmptyRootHash
	}
	codeHash := a.CodeHash
	if codeHash.IsZero() {
		codeHash = EmptyCodeHash
	}
	return &trieAccount{Nonce: a.Nonce, Balance: balance, Root: root, CodeHash: codeHash}
}
