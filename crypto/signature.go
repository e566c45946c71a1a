package crypto

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the byte length of an [R || S || V] signature, where
// V is 0 or 1.
const SignatureLength = 65

// DigestLength is the byte length of a signable digest.
const DigestLength = 32

var errInvalidDigest = errors.New("crypto: digest must be 32 bytes")

// Sign produces a 65-byte [R || S || V] signature over the given digest.
func Sign(digest []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	if len(digest) != DigestLength {
		return nil, errInvalidDigest
	}
	return gethcrypto.Sign(digest, key)
}

// SigToPub recovers the public key that produced sig over digest.
func SigToPub(digest, sig []byte) (*ecdsa.PublicKey, error) {
	return gethcrypto.SigToPub(digest, sig)
}

// Ecrecover recovers the uncompressed public key bytes from a signature.
func Ecrecover(digest, sig []byte) ([]byte, error) {
	return gethcrypto.Ecrecover(digest, sig)
}

// ValidateSignatureValues reports whether (v, r, s) form a valid signature
// under the current rules. homestead enables the low-s requirement.
func ValidateSignatureValues(v byte, r, s *big.Int, homestead bool) bool {
	return gethcrypto.ValidateSignatureValues(v, r, s, homestead)
}

// PubkeyBytesToAddress derives the 20-byte address from an uncompressed
// public key (the last 20 bytes of the Keccak-256 of the key material).
func PubkeyBytesToAddress(pub []byte) [20]byte {
	var addr [20]byte
	copy(addr[:], Keccak256(pub[1:])[12:])
	return addr
}

// PubkeyToAddress derives the 20-byte address of an ECDSA public key.
func PubkeyToAddress(pub ecdsa.PublicKey) [20]byte {
	return gethcrypto.PubkeyToAddress(pub)
}

// GenerateKey creates a new secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return gethcrypto.GenerateKey()
}

// ToECDSA converts a 32-byte scalar into a secp256k1 private key.
func ToECDSA(d []byte) (*ecdsa.PrivateKey, error) {
	return gethcrypto.ToECDSA(d)
}

// HexToECDSA parses a hex-encoded secp256k1 private key.
func HexToECDSA(hexkey string) (*ecdsa.PrivateKey, error) {
	return gethcrypto.HexToECDSA(hexkey)
}
