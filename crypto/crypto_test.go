package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestKeccak256KnownVectors(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{"abc", "4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"},
		{"hello", "1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8"},
	}
	for _, tt := range tests {
		got := Keccak256([]byte(tt.in))
		if hex.EncodeToString(got) != tt.want {
			t.Errorf("Keccak256(%q) = %x, want %s", tt.in, got, tt.want)
		}
	}
}

func TestKeccak256Chunked(t *testing.T) {
	whole := Keccak256([]byte("hello world"))
	chunked := Keccak256([]byte("hello "), []byte("world"))
	if !bytes.Equal(whole, chunked) {
		t.Errorf("chunked hash differs: %x vs %x", whole, chunked)
	}
	arr := Keccak256Array([]byte("hello world"))
	if !bytes.Equal(whole, arr[:]) {
		t.Errorf("array variant differs")
	}
}

func TestSignRecoverRoundtrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	digest := Keccak256([]byte("message"))

	sig, err := Sign(digest, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != SignatureLength {
		t.Fatalf("signature length = %d, want %d", len(sig), SignatureLength)
	}
	pub, err := SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if PubkeyToAddress(*pub) != PubkeyToAddress(key.PublicKey) {
		t.Errorf("recovered address differs from signer")
	}
}

func TestSignRejectsShortDigest(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if _, err := Sign([]byte("short"), key); err == nil {
		t.Error("short digest must be rejected")
	}
}

func TestWellKnownDevAddress(t *testing.T) {
	// Address of the first standard test-mnemonic account.
	key, err := HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	addr := PubkeyToAddress(key.PublicKey)
	want := "f39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	if hex.EncodeToString(addr[:]) != want {
		t.Errorf("address = %x, want %s", addr, want)
	}
}
