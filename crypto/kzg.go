package crypto

import (
	"errors"
	"sync"

	goethkzg "github.com/crate-crypto/go-eth-kzg"
)

// EIP-4844 blob geometry.
const (
	BlobSize       = 131072 // bytes per blob
	CommitmentSize = 48
	ProofSize      = 48
)

var (
	// ErrKZGBlobSize is returned for blobs that are not exactly BlobSize.
	ErrKZGBlobSize = errors.New("crypto: invalid blob size")

	// ErrKZGVerification is returned when a blob proof does not verify.
	ErrKZGVerification = errors.New("crypto: blob proof verification failed")

	kzgOnce sync.Once
	kzgCtx  *goethkzg.Context
	kzgErr  error
)

// kzgContext lazily initializes the go-eth-kzg context with the embedded
// Ethereum ceremony trusted setup. Initialization is expensive (seconds),
// so it runs once per process and only when blobs are actually used.
func kzgContext() (*goethkzg.Context, error) {
	kzgOnce.Do(func() {
		kzgCtx, kzgErr = goethkzg.NewContext4096Secure()
	})
	return kzgCtx, kzgErr
}

// BlobToCommitment computes the KZG commitment for a blob.
func BlobToCommitment(blob []byte) ([CommitmentSize]byte, error) {
	var out [CommitmentSize]byte
	if len(blob) != BlobSize {
		return out, ErrKZGBlobSize
	}
	ctx, err := kzgContext()
	if err != nil {
		return out, err
	}
	var b goethkzg.Blob
	copy(b[:], blob)
	comm, err := ctx.BlobToKZGCommitment(&b, 0)
	if err != nil {
		return out, err
	}
	copy(out[:], comm[:])
	return out, nil
}

// ComputeBlobProof computes the KZG proof for a blob against a commitment.
func ComputeBlobProof(blob []byte, commitment [CommitmentSize]byte) ([ProofSize]byte, error) {
	var out [ProofSize]byte
	if len(blob) != BlobSize {
		return out, ErrKZGBlobSize
	}
	ctx, err := kzgContext()
	if err != nil {
		return out, err
	}
	var b goethkzg.Blob
	copy(b[:], blob)
	var comm goethkzg.KZGCommitment
	copy(comm[:], commitment[:])
	proof, err := ctx.ComputeBlobKZGProof(&b, comm, 0)
	if err != nil {
		return out, err
	}
	copy(out[:], proof[:])
	return out, nil
}

// VerifyBlobProof checks a blob against its commitment and proof.
func VerifyBlobProof(blob []byte, commitment [CommitmentSize]byte, proof [ProofSize]byte) error {
	if len(blob) != BlobSize {
		return ErrKZGBlobSize
	}
	ctx, err := kzgContext()
	if err != nil {
		return err
	}
	var b goethkzg.Blob
	copy(b[:], blob)
	var comm goethkzg.KZGCommitment
	copy(comm[:], commitment[:])
	var p goethkzg.KZGProof
	copy(p[:], proof[:])
	if err := ctx.VerifyBlobKZGProof(&b, comm, p); err != nil {
		return ErrKZGVerification
	}
	return nil
}

// VerifyKZGProof verifies an evaluation proof claiming that the
// polynomial committed to evaluates to claim at point.
func VerifyKZGProof(commitment [CommitmentSize]byte, point, claim [32]byte, proof [ProofSize]byte) error {
	ctx, err := kzgContext()
	if err != nil {
		return err
	}
	var comm goethkzg.KZGCommitment
	copy(comm[:], commitment[:])
	var p goethkzg.KZGProof
	copy(p[:], proof[:])
	var z, y goethkzg.Scalar
	copy(z[:], point[:])
	copy(y[:], claim[:])
	if err := ctx.VerifyKZGProof(comm, z, y, p); err != nil {
		return ErrKZGVerification
	}
	return nil
}

// KZGToVersionedHash converts a commitment to its EIP-4844 versioned hash:
// 0x01 || sha256(commitment)[1:].
func KZGToVersionedHash(commitment [CommitmentSize]byte) [32]byte {
	h := Sha256(commitment[:])
	h[0] = 0x01
	return h
}
