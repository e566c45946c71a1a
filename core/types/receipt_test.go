package types

import (
	"math/big"
	"testing"
)

func TestNewReceiptStatus(t *testing.T) {
	ok := NewReceipt(LegacyTxType, false, nil, 21000)
	if !ok.Succeeded() || ok.Status != ReceiptStatusSuccessful {
		t.Errorf("success receipt: status = %d", ok.Status)
	}
	failed := NewReceipt(DynamicFeeTxType, true, nil, 21000)
	if failed.Succeeded() || failed.Status != ReceiptStatusFailed {
		t.Errorf("failed receipt: status = %d", failed.Status)
	}
	root := []byte{0xaa, 0xbb}
	pre := NewReceipt(LegacyTxType, false, root, 21000)
	if !pre.Succeeded() || len(pre.PostState) != 2 {
		t.Errorf("pre-Byzantium receipt lost its post state")
	}
}

func TestDeriveFields(t *testing.T) {
	to := HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	from, key := testKey(t)
	signer := LatestSigner(testChainID)

	tx1, err := SignTx(NewTx(&DynamicFeeTx{
		ChainID:   testChainID,
		Nonce:     0,
		GasTipCap: big.NewInt(2),
		GasFeeCap: big.NewInt(10),
		Gas:       21000,
		To:        &to,
		Value:     new(big.Int),
	}), signer, key)
	if err != nil {
		t.Fatalf("sign tx1: %v", err)
	}
	// Contract creation: To is nil, the receipt gets a contract address.
	tx2, err := SignTx(NewTx(&DynamicFeeTx{
		ChainID:   testChainID,
		Nonce:     1,
		GasTipCap: big.NewInt(2),
		GasFeeCap: big.NewInt(10),
		Gas:       100000,
		Value:     new(big.Int),
		Data:      []byte{0x60, 0x00},
	}), signer, key)
	if err != nil {
		t.Fatalf("sign tx2: %v", err)
	}

	r1 := NewReceipt(DynamicFeeTxType, false, nil, 21000)
	r1.Logs = []*Log{
		{Address: to, Topics: []Hash{{0x01}}},
		{Address: to, Topics: []Hash{{0x02}}},
	}
	r2 := NewReceipt(DynamicFeeTxType, false, nil, 74000)
	r2.Logs = []*Log{{Address: from}}

	receipts := Receipts{r1, r2}
	blockHash := Hash{0xbb}
	baseFee := big.NewInt(5)
	if err := receipts.DeriveFields(blockHash, 7, baseFee, Transactions{tx1, tx2}); err != nil {
		t.Fatalf("derive: %v", err)
	}

	if r1.GasUsed != 21000 {
		t.Errorf("r1 gasUsed = %d, want 21000", r1.GasUsed)
	}
	if r2.GasUsed != 53000 {
		t.Errorf("r2 gasUsed = %d, want 53000", r2.GasUsed)
	}
	if r1.TxHash != tx1.Hash() || r2.TxHash != tx2.Hash() {
		t.Error("tx hashes not derived")
	}
	if r1.BlockHash != blockHash || r1.BlockNumber != 7 || r1.TransactionIndex != 0 {
		t.Error("r1 positional fields wrong")
	}
	if r2.TransactionIndex != 1 {
		t.Errorf("r2 index = %d", r2.TransactionIndex)
	}
	// Base fee 5 plus tip cap 2.
	if r1.EffectiveGasPrice.Int64() != 7 {
		t.Errorf("r1 effective price = %s, want 7", r1.EffectiveGasPrice)
	}
	if r1.ContractAddress != nil {
		t.Error("call receipt must not carry a contract address")
	}
	if r2.ContractAddress == nil {
		t.Fatal("creation receipt missing contract address")
	}
	if want := CreateAddress(from, 1); *r2.ContractAddress != want {
		t.Errorf("contract address = %s, want %s", r2.ContractAddress.Hex(), want.Hex())
	}

	// Log indices run block-wide, not per receipt.
	wantIdx := uint(0)
	for _, r := range receipts {
		for _, l := range r.Logs {
			if l.Index != wantIdx {
				t.Errorf("log index = %d, want %d", l.Index, wantIdx)
			}
			if l.BlockHash != blockHash || l.TxHash != r.TxHash {
				t.Error("log positional fields wrong")
			}
			wantIdx++
		}
	}
}

func TestDeriveFieldsCountMismatch(t *testing.T) {
	if err := (Receipts{NewReceipt(LegacyTxType, false, nil, 21000)}).DeriveFields(Hash{}, 1, nil, nil); err == nil {
		t.Error("count mismatch must error")
	}
}

func TestReceiptBinaryRoundtrip(t *testing.T) {
	addr := HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")

	legacy := NewReceipt(LegacyTxType, false, nil, 21000)
	legacy.Logs = []*Log{{Address: addr, Topics: []Hash{{0x01}}, Data: []byte{0xff}}}
	legacy.Bloom = LogsBloom(legacy.Logs)

	typed := NewReceipt(DynamicFeeTxType, true, nil, 42000)
	typed.Logs = []*Log{}

	nonce := uint64(12)
	version := uint64(1)
	deposit := NewReceipt(DepositTxType, false, nil, 63000)
	deposit.Logs = []*Log{}
	deposit.DepositNonce = &nonce
	deposit.DepositReceiptVersion = &version

	for _, r := range []*Receipt{legacy, typed, deposit} {
		enc, err := r.MarshalBinary()
		if err != nil {
			t.Fatalf("type %#x: marshal: %v", r.Type, err)
		}
		var out Receipt
		if err := out.UnmarshalBinary(enc); err != nil {
			t.Fatalf("type %#x: unmarshal: %v", r.Type, err)
		}
		if out.Type != r.Type || out.Status != r.Status || out.CumulativeGasUsed != r.CumulativeGasUsed {
			t.Errorf("type %#x: consensus fields changed", r.Type)
		}
		if len(out.Logs) != len(r.Logs) {
			t.Errorf("type %#x: log count = %d, want %d", r.Type, len(out.Logs), len(r.Logs))
		}
	}

	var out Receipt
	enc, _ := deposit.MarshalBinary()
	if err := out.UnmarshalBinary(enc); err != nil {
		t.Fatalf("unmarshal deposit: %v", err)
	}
	if out.DepositNonce == nil || *out.DepositNonce != nonce {
		t.Errorf("deposit nonce lost: %v", out.DepositNonce)
	}
	if out.DepositReceiptVersion == nil || *out.DepositReceiptVersion != version {
		t.Errorf("deposit version lost: %v", out.DepositReceiptVersion)
	}
}
