package crypto

import "crypto/sha256"

// Sha256 computes the SHA-256 hash of the concatenation of data.
func Sha256(data ...[]byte) [32]byte {
	d := sha256.New()
	for _, b := range data {
		d.Write(b)
	}
	var out [32]byte
	d.Sum(out[:0])
	return out
}
