package types

import (
	"errors"
	"math/big"

	"github.com/devchain-eth/devchain/crypto"
	"github.com/devchain-eth/devchain/rlp"
)

// AccessTuple is one entry of an EIP-2930 access list.
type AccessTuple struct {
	Address     Address
	StorageKeys []Hash
}

// AccessList is an EIP-2930 access list.
type AccessList []AccessTuple

// StorageKeys returns the total number of storage keys across all tuples.
func (al AccessList) StorageKeys() int {
	n := 0
	for _, tuple := range al {
		n += len(tuple.StorageKeys)
	}
	return n
}

func (al AccessList) copy() AccessList {
	if al == nil {
		return nil
	}
	out := make(AccessList, len(al))
	for i, tuple := range al {
		out[i].Address = tuple.Address
		out[i].StorageKeys = make([]Hash, len(tuple.StorageKeys))
		copy(out[i].StorageKeys, tuple.StorageKeys)
	}
	return out
}

// SetCodeAuthorization is one entry of an EIP-7702 authorization list.
type SetCodeAuthorization struct {
	ChainID *big.Int
	Address Address
	Nonce   uint64
	V       uint8
	R       *big.Int
	S       *big.Int
}

// DelegationPrefix marks EIP-7702 delegation designator code.
var DelegationPrefix = []byte{0xef, 0x01, 0x00}

var errInvalidAuthority = errors.New("invalid authorization signature")

// ParseDelegation extracts the target of a delegation designator.
func ParseDelegation(code []byte) (Address, bool) {
	if len(code) != len(DelegationPrefix)+20 ||
		code[0] != DelegationPrefix[0] || code[1] != DelegationPrefix[1] || code[2] != DelegationPrefix[2] {
		return Address{}, false
	}
	var addr Address
	copy(addr[:], code[len(DelegationPrefix):])
	return addr, true
}

// AddressToDelegation builds the designator code delegating to addr.
func AddressToDelegation(addr Address) []byte {
	return append(append([]byte(nil), DelegationPrefix...), addr.Bytes()...)
}

// sigHash is keccak(0x05 || rlp([chain_id, address, nonce])).
func (a *SetCodeAuthorization) sigHash() Hash {
	chainID := a.ChainID
	if chainID == nil {
		chainID = new(big.Int)
	}
	payload, _ := rlp.EncodeToBytes([]interface{}{chainID, a.Address, a.Nonce})
	return Hash(crypto.Keccak256Array([]byte{0x05}, payload))
}

// RecoverAuthority recovers the signer of an authorization tuple. The
// tuple chain id must be zero or match txChainID.
func RecoverAuthority(a *SetCodeAuthorization, txChainID *big.Int) (Address, error) {
	if a.ChainID != nil && a.ChainID.Sign() != 0 && txChainID != nil && a.ChainID.Cmp(txChainID) != 0 {
		return Address{}, errInvalidAuthority
	}
	if a.R == nil || a.S == nil || !crypto.ValidateSignatureValues(a.V, a.R, a.S, true) {
		return Address{}, errInvalidAuthority
	}
	sig := make([]byte, crypto.SignatureLength)
	a.R.FillBytes(sig[:32])
	a.S.FillBytes(sig[32:64])
	sig[64] = a.V
	h := a.sigHash()
	pub, err := crypto.Ecrecover(h[:], sig)
	if err != nil {
		return Address{}, err
	}
	return Address(crypto.PubkeyBytesToAddress(pub)), nil
}

func copyAuthList(list []SetCodeAuthorization) []SetCodeAuthorization {
	if list == nil {
		return nil
	}
	out := make([]SetCodeAuthorization, len(list))
	for i, a := range list {
		out[i] = SetCodeAuthorization{
			ChainID: copyBig(a.ChainID),
			Address: a.Address,
			Nonce:   a.Nonce,
			V:       a.V,
			R:       copyBig(a.R),
			S:       copyBig(a.S),
		}
	}
	return out
}
