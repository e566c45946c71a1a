package state

import (
	"errors"
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
)

// ErrOverrideConflict is returned when both state and stateDiff are set
// for the same account.
var ErrOverrideConflict = errors.New("state: state and stateDiff are mutually exclusive")

// AccountOverride adjusts one account for the duration of a call.
type AccountOverride struct {
	Balance *big.Int
	Nonce   *uint64
	Code    []byte

	// State replaces the account storage entirely; StateDiff merges
	// individual slots. They are mutually exclusive.
	State     map[types.Hash]types.Hash
	StateDiff map[types.Hash]types.Hash
}

// Overrides maps addresses to their call-time overrides.
type Overrides map[types.Address]AccountOverride

// Apply installs the overrides into the given execution state.
func (ov Overrides) Apply(db *StateDB) error {
	for addr, o := range ov {
		if o.State != nil && o.StateDiff != nil {
			return ErrOverrideConflict
		}
		if o.State != nil {
			// Wipe storage while keeping the scalar fields.
			balance := db.GetBalance(addr)
			nonce := db.GetNonce(addr)
			code := db.GetCode(addr)
			db.CreateAccount(addr)
			db.SetBalance(addr, balance)
			db.SetNonce(addr, nonce)
			db.SetCode(addr, code)
			for k, v := range o.State {
				db.SetState(addr, k, v)
			}
		}
		for k, v := range o.StateDiff {
			db.SetState(addr, k, v)
		}
		if o.Balance != nil {
			db.SetBalance(addr, o.Balance)
		}
		if o.Nonce != nil {
			db.SetNonce(addr, *o.Nonce)
		}
		if o.Code != nil {
			db.SetCode(addr, o.Code)
		}
	}
	return nil
}

// Irregular is a developer-imposed state override registered at a block
// number: a diff plus the root to report for that block, since a real
// Merkle reconstruction over forked remote state is not possible.
type Irregular struct {
	Diff Diff
	Root types.Hash
}
