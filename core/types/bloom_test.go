package types

import "testing"

func TestBloomContainsItsLogs(t *testing.T) {
	a1 := HexToAddress("0x1111111111111111111111111111111111111111")
	a2 := HexToAddress("0x2222222222222222222222222222222222222222")
	t1 := Hash{0x01}
	t2 := Hash{0x02}

	r1 := NewReceipt(LegacyTxType, false, nil, 21000)
	r1.Logs = []*Log{{Address: a1, Topics: []Hash{t1, t2}}}
	r1.Bloom = LogsBloom(r1.Logs)
	r2 := NewReceipt(DynamicFeeTxType, false, nil, 42000)
	r2.Logs = []*Log{{Address: a2, Topics: []Hash{t2}}}
	r2.Bloom = LogsBloom(r2.Logs)

	for _, r := range (Receipts{r1, r2}) {
		for _, l := range r.Logs {
			if !BloomLookup(r.Bloom, l.Address.Bytes()) {
				t.Errorf("receipt bloom misses log address %s", l.Address.Hex())
			}
			for _, topic := range l.Topics {
				if !BloomLookup(r.Bloom, topic.Bytes()) {
					t.Errorf("receipt bloom misses topic %s", topic.Hex())
				}
			}
		}
	}

	// The header bloom is the union of the receipt blooms.
	block := CreateBloom(Receipts{r1, r2})
	for _, d := range [][]byte{a1.Bytes(), a2.Bytes(), t1.Bytes(), t2.Bytes()} {
		if !BloomLookup(block, d) {
			t.Errorf("block bloom misses %x", d)
		}
	}
}

func TestBloomNegativeLookup(t *testing.T) {
	var empty Bloom
	if BloomLookup(empty, []byte("anything")) {
		t.Error("empty bloom must match nothing")
	}

	r := NewReceipt(LegacyTxType, false, nil, 21000)
	r.Logs = []*Log{{Address: HexToAddress("0x1111111111111111111111111111111111111111")}}
	r.Bloom = LogsBloom(r.Logs)
	if BloomLookup(r.Bloom, HexToAddress("0x9999999999999999999999999999999999999999").Bytes()) {
		t.Error("unrelated address should not match a single-log bloom")
	}
}

func TestBloomAddTestOr(t *testing.T) {
	var b Bloom
	b.Add([]byte("hello"))
	if !b.Test([]byte("hello")) {
		t.Error("Test after Add failed")
	}
	var other Bloom
	other.Add([]byte("world"))
	b.Or(other)
	if !b.Test([]byte("hello")) || !b.Test([]byte("world")) {
		t.Error("Or lost an element")
	}
}
