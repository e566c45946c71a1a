package types

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/devchain-eth/devchain/crypto"
	"github.com/devchain-eth/devchain/rlp"
)

// Signer derives senders and signing hashes for transactions.
type Signer interface {
	// Sender recovers the transaction sender.
	Sender(tx *Transaction) (Address, error)

	// Hash returns the digest that is signed.
	Hash(tx *Transaction) Hash

	// SignatureValues converts a 65-byte [R || S || V] signature into
	// the transaction's raw V, R, S values.
	SignatureValues(tx *Transaction, sig []byte) (r, s, v *big.Int, err error)

	// ChainID returns the signer's chain id.
	ChainID() *big.Int

	// Equal reports whether the other signer is interchangeable.
	Equal(Signer) bool
}

// LatestSigner returns a signer accepting every supported transaction
// type on the given chain: legacy (protected and unprotected), EIP-2930,
// EIP-1559, EIP-4844, EIP-7702 and OP deposits.
func LatestSigner(chainID *big.Int) Signer {
	if chainID == nil {
		chainID = new(big.Int)
	}
	return &modernSigner{chainID: new(big.Int).Set(chainID)}
}

type modernSigner struct {
	chainID *big.Int
}

func (s *modernSigner) ChainID() *big.Int { return s.chainID }

func (s *modernSigner) Equal(other Signer) bool {
	o, ok := other.(*modernSigner)
	return ok && o.chainID.Cmp(s.chainID) == 0
}

func (s *modernSigner) Sender(tx *Transaction) (Address, error) {
	if dep, ok := tx.inner.(*DepositTx); ok {
		return dep.From, nil
	}
	v, r, sv := tx.RawSignatureValues()
	if r == nil || sv == nil || v == nil {
		return Address{}, ErrInvalidSig
	}
	var recID *big.Int
	switch tx.Type() {
	case LegacyTxType:
		if isProtectedV(v) {
			chainID := deriveChainID(v)
			if chainID.Cmp(s.chainID) != 0 {
				return Address{}, fmt.Errorf("%w: have %v want %v", ErrInvalidChainID, chainID, s.chainID)
			}
			recID = new(big.Int).Sub(v, new(big.Int).Lsh(chainID, 1))
			recID.Sub(recID, big.NewInt(35))
		} else {
			recID = new(big.Int).Sub(v, big.NewInt(27))
		}
	default:
		if cid := tx.ChainId(); cid != nil && cid.Sign() != 0 && cid.Cmp(s.chainID) != 0 {
			return Address{}, fmt.Errorf("%w: have %v want %v", ErrInvalidChainID, cid, s.chainID)
		}
		recID = v
	}
	return recoverPlain(s.Hash(tx), r, sv, recID)
}

func (s *modernSigner) Hash(tx *Transaction) Hash {
	switch inner := tx.inner.(type) {
	case *LegacyTx:
		if v, _, _ := inner.rawSignatureValues(); v != nil && !isProtectedV(v) {
			return rlpHash([]interface{}{
				inner.Nonce, inner.GasPrice, inner.Gas, inner.To, inner.Value, inner.Data,
			})
		}
		return rlpHash([]interface{}{
			inner.Nonce, inner.GasPrice, inner.Gas, inner.To, inner.Value, inner.Data,
			s.chainID, uint64(0), uint64(0),
		})
	case *AccessListTx:
		return prefixedRlpHash(AccessListTxType, []interface{}{
			s.chainID, inner.Nonce, inner.GasPrice, inner.Gas, inner.To, inner.Value,
			inner.Data, inner.AccessList,
		})
	case *DynamicFeeTx:
		return prefixedRlpHash(DynamicFeeTxType, []interface{}{
			s.chainID, inner.Nonce, inner.GasTipCap, inner.GasFeeCap, inner.Gas,
			inner.To, inner.Value, inner.Data, inner.AccessList,
		})
	case *BlobTx:
		return prefixedRlpHash(BlobTxType, []interface{}{
			s.chainID, inner.Nonce, inner.GasTipCap, inner.GasFeeCap, inner.Gas,
			inner.To, inner.Value, inner.Data, inner.AccessList,
			inner.BlobFeeCap, inner.BlobHashes,
		})
	case *SetCodeTx:
		return prefixedRlpHash(SetCodeTxType, []interface{}{
			s.chainID, inner.Nonce, inner.GasTipCap, inner.GasFeeCap, inner.Gas,
			inner.To, inner.Value, inner.Data, inner.AccessList, inner.AuthList,
		})
	default:
		// Deposits are not signed; the envelope hash stands in.
		return tx.Hash()
	}
}

func (s *modernSigner) SignatureValues(tx *Transaction, sig []byte) (r, sv, v *big.Int, err error) {
	if len(sig) != crypto.SignatureLength {
		return nil, nil, nil, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	r = new(big.Int).SetBytes(sig[:32])
	sv = new(big.Int).SetBytes(sig[32:64])
	switch tx.Type() {
	case LegacyTxType:
		if s.chainID.Sign() == 0 {
			v = new(big.Int).SetUint64(uint64(sig[64]) + 27)
		} else {
			// EIP-155: v = recid + 2*chainID + 35.
			v = new(big.Int).SetUint64(uint64(sig[64]) + 35)
			v.Add(v, new(big.Int).Lsh(s.chainID, 1))
		}
	case DepositTxType:
		return nil, nil, nil, ErrTxTypeNotSupported
	default:
		v = new(big.Int).SetUint64(uint64(sig[64]))
	}
	return r, sv, v, nil
}

func recoverPlain(sighash Hash, r, s, v *big.Int) (Address, error) {
	if v.BitLen() > 8 {
		return Address{}, ErrInvalidSig
	}
	recID := byte(v.Uint64())
	if !crypto.ValidateSignatureValues(recID, r, s, true) {
		return Address{}, ErrInvalidSig
	}
	sig := make([]byte, crypto.SignatureLength)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:64])
	sig[64] = recID
	pub, err := crypto.Ecrecover(sighash.Bytes(), sig)
	if err != nil {
		return Address{}, err
	}
	if len(pub) == 0 || pub[0] != 4 {
		return Address{}, ErrInvalidSig
	}
	return Address(crypto.PubkeyBytesToAddress(pub)), nil
}

// Sender recovers the transaction sender, consulting the cache first.
func Sender(signer Signer, tx *Transaction) (Address, error) {
	if c := tx.from.Load(); c != nil && c.signer.Equal(signer) {
		return c.from, nil
	}
	from, err := signer.Sender(tx)
	if err != nil {
		return Address{}, err
	}
	tx.setCachedSender(signer, from)
	return from, nil
}

// SignTx signs the transaction with the given private key.
func SignTx(tx *Transaction, signer Signer, key *ecdsa.PrivateKey) (*Transaction, error) {
	h := signer.Hash(tx)
	sig, err := crypto.Sign(h.Bytes(), key)
	if err != nil {
		return nil, err
	}
	return tx.WithSignature(signer, sig)
}

// FakeSignTx attaches a deterministic synthetic signature derived from
// the sender address alone. Used for impersonated accounts: the
// resulting hash is stable per (payload, sender) and differs between
// senders. The sender is cached so recovery never runs.
func FakeSignTx(tx *Transaction, signer Signer, sender Address) *Transaction {
	r := new(big.Int).SetBytes(crypto.Keccak256([]byte("devchain impersonated r"), sender.Bytes()))
	s := new(big.Int).SetBytes(crypto.Keccak256([]byte("devchain impersonated s"), sender.Bytes()))
	cpy := tx.inner.copy()
	var v *big.Int
	if tx.Type() == LegacyTxType {
		v = big.NewInt(27)
	} else {
		v = new(big.Int)
	}
	cpy.setSignatureValues(signer.ChainID(), v, r, s)
	out := &Transaction{inner: cpy}
	out.setCachedSender(signer, sender)
	return out
}

// SetSender force-caches the sender for the given signer, bypassing
// recovery. Used for deposits and replayed remote transactions.
func SetSender(signer Signer, tx *Transaction, from Address) {
	tx.setCachedSender(signer, from)
}

func rlpHash(v interface{}) Hash {
	enc, _ := rlp.EncodeToBytes(v)
	return Hash(crypto.Keccak256Array(enc))
}

func prefixedRlpHash(prefix byte, v interface{}) Hash {
	enc, _ := rlp.EncodeToBytes(v)
	buf := make([]byte, 0, len(enc)+1)
	buf = append(buf, prefix)
	buf = append(buf, enc...)
	return Hash(crypto.Keccak256Array(buf))
}
