// Package state implements the account and storage stores of the
// devchain engine: a journaled execution state (StateDB) layered over a
// committed store that exists in local (fully enumerable, real trie
// roots) and forked (remote-backed, fabricated roots) variants.
package state

import (
	"errors"
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
)

var (
	// ErrCodeNotFound is returned when bytecode for an account was
	// never seen by the store.
	ErrCodeNotFound = errors.New("state: code does not exist")

	// ErrBadSnapshot is returned when reverting to an unknown store
	// snapshot id.
	ErrBadSnapshot = errors.New("state: unknown snapshot id")

	// ErrInconsistentRoot indicates a computed root disagreeing with a
	// recorded header root. Treated as fatal by callers.
	ErrInconsistentRoot = errors.New("state: inconsistent state root")
)

// Account is the runtime view of an account's scalar fields.
type Account struct {
	Nonce    uint64
	Balance  *big.Int
	CodeHash types.Hash
}

// Copy returns a deep copy of the account.
func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	return &Account{
		Nonce:    a.Nonce,
		Balance:  new(big.Int).Set(a.Balance),
		CodeHash: a.CodeHash,
	}
}

// Exists reports whether the account is non-empty per EIP-161.
func (a *Account) Exists() bool {
	return a != nil && (a.Nonce != 0 || a.Balance.Sign() != 0 ||
		(a.CodeHash != types.EmptyCodeHash && !a.CodeHash.IsZero()))
}

// Reader is a point-in-time view of committed accounts. A missing
// account reads as (nil, nil).
type Reader interface {
	Account(addr types.Address) (*Account, error)
	Code(addr types.Address) ([]byte, error)
	Storage(addr types.Address, key types.Hash) (types.Hash, error)
}

// StorageDiff maps storage slots to their new values.
type StorageDiff map[types.Hash]types.Hash

// AccountDiff records the outcome of executing against one account.
type AccountDiff struct {
	// Destroyed marks the account as deleted before the rest of the
	// diff applies (selfdestruct, or recreation over a dead account).
	Destroyed bool

	Nonce    uint64
	Balance  *big.Int
	CodeHash types.Hash
	Code     []byte

	// Storage holds the written slots. When StorageReplaced is set the
	// account's prior storage is discarded first (created accounts);
	// otherwise the slots merge over existing storage.
	Storage         StorageDiff
	StorageReplaced bool
}

// Copy returns a deep copy of the account diff.
func (d *AccountDiff) Copy() *AccountDiff {
	var balance *big.Int
	if d.Balance != nil {
		balance = new(big.Int).Set(d.Balance)
	}
	cpy := &AccountDiff{
		Destroyed:       d.Destroyed,
		Nonce:           d.Nonce,
		Balance:         balance,
		CodeHash:        d.CodeHash,
		Code:            types.CopyBytes(d.Code),
		StorageReplaced: d.StorageReplaced,
	}
	if d.Storage != nil {
		cpy.Storage = make(StorageDiff, len(d.Storage))
		for k, v := range d.Storage {
			cpy.Storage[k] = v
		}
	}
	return cpy
}

// Diff is the state change of one block (or one irregular override).
// Diffs compose by sequential application.
type Diff map[types.Address]*AccountDiff

// Copy returns a deep copy of the diff.
func (d Diff) Copy() Diff {
	cpy := make(Diff, len(d))
	for addr, ad := range d {
		cpy[addr] = ad.Copy()
	}
	return cpy
}

// emptyReader is the base of a fresh local chain.
type emptyReader struct{}

func (emptyReader) Account(types.Address) (*Account, error)               { return nil, nil }
func (emptyReader) Code(types.Address) ([]byte, error)                    { return nil, nil }
func (emptyReader) Storage(types.Address, types.Hash) (types.Hash, error) { return types.Hash{}, nil }

// EmptyReader returns a Reader with no accounts.
func EmptyReader() Reader { return emptyReader{} }
