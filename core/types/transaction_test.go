package types

import (
	"bytes"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/devchain-eth/devchain/crypto"
)

var testChainID = big.NewInt(31337)

func testKey(t *testing.T) (Address, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	return Address(crypto.PubkeyToAddress(key.PublicKey)), key
}

func sampleTxs(to Address) []*Transaction {
	return []*Transaction{
		NewTx(&LegacyTx{
			Nonce:    3,
			GasPrice: big.NewInt(2_000_000_000),
			Gas:      21000,
			To:       &to,
			Value:    big.NewInt(1),
		}),
		NewTx(&AccessListTx{
			ChainID:  testChainID,
			Nonce:    4,
			GasPrice: big.NewInt(2_000_000_000),
			Gas:      30000,
			To:       &to,
			Value:    new(big.Int),
			AccessList: AccessList{{
				Address:     to,
				StorageKeys: []Hash{{0x01}},
			}},
		}),
		NewTx(&DynamicFeeTx{
			ChainID:   testChainID,
			Nonce:     5,
			GasTipCap: big.NewInt(1_000_000_000),
			GasFeeCap: big.NewInt(3_000_000_000),
			Gas:       21000,
			To:        &to,
			Value:     big.NewInt(7),
			Data:      []byte{0x11},
		}),
		NewTx(&BlobTx{
			ChainID:    testChainID,
			Nonce:      6,
			GasTipCap:  big.NewInt(1_000_000_000),
			GasFeeCap:  big.NewInt(3_000_000_000),
			Gas:        21000,
			To:         to,
			Value:      new(big.Int),
			BlobFeeCap: big.NewInt(1_000_000),
			BlobHashes: []Hash{{0x01, 0xaa}},
		}),
		NewTx(&SetCodeTx{
			ChainID:   testChainID,
			Nonce:     7,
			GasTipCap: big.NewInt(1_000_000_000),
			GasFeeCap: big.NewInt(3_000_000_000),
			Gas:       60000,
			To:        to,
			Value:     new(big.Int),
			AuthList: []SetCodeAuthorization{{
				ChainID: testChainID,
				Address: to,
				Nonce:   1,
				V:       0,
				R:       big.NewInt(1),
				S:       big.NewInt(1),
			}},
		}),
	}
}

func TestTransactionBinaryRoundtrip(t *testing.T) {
	to := HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	_, key := testKey(t)
	signer := LatestSigner(testChainID)

	for _, unsigned := range sampleTxs(to) {
		signed, err := SignTx(unsigned, signer, key)
		if err != nil {
			t.Fatalf("type %#x: sign: %v", unsigned.Type(), err)
		}
		enc, err := signed.MarshalBinary()
		if err != nil {
			t.Fatalf("type %#x: marshal: %v", signed.Type(), err)
		}
		decoded, err := DecodeTransaction(enc)
		if err != nil {
			t.Fatalf("type %#x: decode: %v", signed.Type(), err)
		}
		if decoded.Type() != signed.Type() {
			t.Errorf("type changed: %#x -> %#x", signed.Type(), decoded.Type())
		}
		if decoded.Hash() != signed.Hash() {
			t.Errorf("type %#x: hash changed after roundtrip", signed.Type())
		}
		if decoded.Nonce() != signed.Nonce() || decoded.Gas() != signed.Gas() {
			t.Errorf("type %#x: scalar fields changed", signed.Type())
		}
		if !bytes.Equal(decoded.Data(), signed.Data()) {
			t.Errorf("type %#x: data changed", signed.Type())
		}
	}
}

func TestDepositTxRoundtrip(t *testing.T) {
	to := HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	from := HexToAddress("0xdeaddeaddeaddeaddeaddeaddeaddeaddead0001")
	tx := NewTx(&DepositTx{
		SourceHash: Hash{0x01},
		From:       from,
		To:         &to,
		Mint:       big.NewInt(1e9),
		Value:      big.NewInt(5),
		Gas:        1_000_000,
		Data:       []byte{0xca, 0xfe},
	})
	if !tx.IsDeposit() {
		t.Fatal("IsDeposit() = false")
	}
	enc, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if enc[0] != DepositTxType {
		t.Fatalf("envelope type byte = %#x", enc[0])
	}
	decoded, err := DecodeTransaction(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Hash() != tx.Hash() {
		t.Errorf("hash changed after roundtrip")
	}
	if decoded.Mint().Cmp(tx.Mint()) != 0 {
		t.Errorf("mint = %s, want %s", decoded.Mint(), tx.Mint())
	}
	sender, err := Sender(LatestSigner(testChainID), decoded)
	if err != nil {
		t.Fatalf("deposit sender: %v", err)
	}
	if sender != from {
		t.Errorf("deposit sender = %s, want %s", sender.Hex(), from.Hex())
	}
}

func TestSignAndRecover(t *testing.T) {
	to := HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	from, key := testKey(t)
	signer := LatestSigner(testChainID)

	for _, unsigned := range sampleTxs(to) {
		signed, err := SignTx(unsigned, signer, key)
		if err != nil {
			t.Fatalf("type %#x: sign: %v", unsigned.Type(), err)
		}
		got, err := Sender(signer, signed)
		if err != nil {
			t.Fatalf("type %#x: sender: %v", signed.Type(), err)
		}
		if got != from {
			t.Errorf("type %#x: sender = %s, want %s", signed.Type(), got.Hex(), from.Hex())
		}
		// Recovery must also work without the cache, e.g. after a decode.
		enc, _ := signed.MarshalBinary()
		fresh, err := DecodeTransaction(enc)
		if err != nil {
			t.Fatalf("type %#x: decode: %v", signed.Type(), err)
		}
		got, err = Sender(signer, fresh)
		if err != nil {
			t.Fatalf("type %#x: fresh sender: %v", signed.Type(), err)
		}
		if got != from {
			t.Errorf("type %#x: fresh sender = %s, want %s", signed.Type(), got.Hex(), from.Hex())
		}
	}
}

func TestSignerRejectsWrongChain(t *testing.T) {
	to := HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	_, key := testKey(t)

	tx := NewTx(&DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     0,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       21000,
		To:        &to,
		Value:     new(big.Int),
	})
	signed, err := SignTx(tx, LatestSigner(big.NewInt(1)), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Sender(LatestSigner(testChainID), signed); err == nil {
		t.Error("sender recovery accepted a foreign chain id")
	}
}

func TestFakeSignDeterminism(t *testing.T) {
	to := HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	alice := HexToAddress("0x1111111111111111111111111111111111111111")
	bob := HexToAddress("0x2222222222222222222222222222222222222222")
	signer := LatestSigner(testChainID)

	payload := func() *Transaction {
		return NewTx(&DynamicFeeTx{
			ChainID:   testChainID,
			Nonce:     9,
			GasTipCap: big.NewInt(1),
			GasFeeCap: big.NewInt(2),
			Gas:       21000,
			To:        &to,
			Value:     big.NewInt(3),
		})
	}

	first := FakeSignTx(payload(), signer, alice)
	second := FakeSignTx(payload(), signer, alice)
	if first.Hash() != second.Hash() {
		t.Error("same payload and sender must produce the same hash")
	}
	other := FakeSignTx(payload(), signer, bob)
	if other.Hash() == first.Hash() {
		t.Error("different senders must produce different hashes")
	}

	got, err := Sender(signer, first)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	if got != alice {
		t.Errorf("cached sender = %s, want %s", got.Hex(), alice.Hex())
	}
}

func TestLegacyProtection(t *testing.T) {
	to := HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	_, key := testKey(t)

	unsigned := NewTx(&LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(1),
		Gas:      21000,
		To:       &to,
		Value:    new(big.Int),
	})
	signed, err := SignTx(unsigned, LatestSigner(testChainID), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !signed.Protected() {
		t.Error("EIP-155 signed legacy tx must be protected")
	}
	if signed.ChainId().Cmp(testChainID) != 0 {
		t.Errorf("chain id = %s, want %s", signed.ChainId(), testChainID)
	}
	if unsigned.Protected() {
		t.Error("unsigned legacy tx must not report protection")
	}
}

func TestEffectiveGasPrice(t *testing.T) {
	to := HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	dyn := NewTx(&DynamicFeeTx{
		ChainID:   testChainID,
		GasTipCap: big.NewInt(2),
		GasFeeCap: big.NewInt(10),
		Gas:       21000,
		To:        &to,
		Value:     new(big.Int),
	})
	tests := []struct {
		baseFee *big.Int
		want    int64
	}{
		{big.NewInt(5), 7},  // tip cap binds
		{big.NewInt(9), 10}, // fee cap binds
		{nil, 10},           // no base fee: pay the cap
	}
	for _, tt := range tests {
		if got := dyn.EffectiveGasPrice(tt.baseFee); got.Int64() != tt.want {
			t.Errorf("EffectiveGasPrice(%v) = %s, want %d", tt.baseFee, got, tt.want)
		}
	}

	legacy := NewTx(&LegacyTx{GasPrice: big.NewInt(42), Gas: 21000, To: &to, Value: new(big.Int)})
	if got := legacy.EffectiveGasPrice(big.NewInt(5)); got.Int64() != 42 {
		t.Errorf("legacy effective price = %s, want 42", got)
	}
}

func TestEffectiveGasTipBelowBaseFee(t *testing.T) {
	to := HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	dyn := NewTx(&DynamicFeeTx{
		ChainID:   testChainID,
		GasTipCap: big.NewInt(2),
		GasFeeCap: big.NewInt(4),
		Gas:       21000,
		To:        &to,
		Value:     new(big.Int),
	})
	tip, err := dyn.EffectiveGasTip(big.NewInt(100))
	if err == nil {
		t.Error("fee cap below base fee must error")
	}
	if tip.Sign() != 0 {
		t.Errorf("capped tip = %s, want 0", tip)
	}
}

func TestContractCreationAddresses(t *testing.T) {
	// CREATE address of sender 0x970e8128...8e9 with nonce 0, a widely
	// published example pair.
	sender := HexToAddress("0x970e8128ab834e8eac17ab8e3812f010678cf791")
	got := CreateAddress(sender, 0)
	want := HexToAddress("0x333c3310824b7c685133f2bedb2ca4b8b4df633d")
	if got != want {
		t.Errorf("CreateAddress nonce 0 = %s, want %s", got.Hex(), want.Hex())
	}
	if CreateAddress(sender, 1) == got {
		t.Error("distinct nonces must yield distinct addresses")
	}

	// CREATE2 example from the EIP-1014 reference vectors.
	c2 := CreateAddress2(
		HexToAddress("0x0000000000000000000000000000000000000000"),
		Hash{},
		crypto.Keccak256([]byte{0x00}),
	)
	want2 := HexToAddress("0x4d1a2e2bb4f88f0250f26ffff098b0b30b26bf38")
	if c2 != want2 {
		t.Errorf("CreateAddress2 = %s, want %s", c2.Hex(), want2.Hex())
	}
}
