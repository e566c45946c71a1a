package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
)

func TestDecodeUint64(t *testing.T) {
	tests := []struct {
		input   string
		want    uint64
		wantErr error
	}{
		{"0x0", 0, nil},
		{"0x1", 1, nil},
		{"0xff", 255, nil},
		{"0x3b9aca00", 1_000_000_000, nil},
		{"0xffffffffffffffff", ^uint64(0), nil},
		{"", 0, ErrEmptyString},
		{"12", 0, ErrMissingPrefix},
		{"0x", 0, ErrEmptyNumber},
		{"0x01", 0, ErrLeadingZero},
		{"0x10000000000000000", 0, ErrUint64Range},
	}
	for _, tt := range tests {
		got, err := DecodeUint64(tt.input)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("DecodeUint64(%q) err = %v, want %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("DecodeUint64(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestEncodeDecodeUint64Roundtrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 15, 16, 1 << 32, ^uint64(0)} {
		got, err := DecodeUint64(EncodeUint64(v))
		if err != nil {
			t.Fatalf("roundtrip %d: %v", v, err)
		}
		if got != v {
			t.Errorf("roundtrip %d = %d", v, got)
		}
	}
}

func TestDecodeBig(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{"0x0", "0", nil},
		{"0xde0b6b3a7640000", "1000000000000000000", nil},
		{"0x" + repeat("f", 64), "", nil},
		{"0x" + repeat("f", 65), "", ErrBig256Range},
		{"0x01", "", ErrLeadingZero},
	}
	for _, tt := range tests {
		got, err := DecodeBig(tt.input)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("DecodeBig(%q) err = %v, want %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && tt.want != "" && got.String() != tt.want {
			t.Errorf("DecodeBig(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func TestDecodeBytes(t *testing.T) {
	tests := []struct {
		input   string
		want    []byte
		wantErr error
	}{
		{"0x", []byte{}, nil},
		{"0x00", []byte{0}, nil},
		{"0xdeadbeef", []byte{0xde, 0xad, 0xbe, 0xef}, nil},
		{"0xabc", nil, ErrOddLength},
		{"deadbeef", nil, ErrMissingPrefix},
		{"", nil, ErrEmptyString},
	}
	for _, tt := range tests {
		got, err := DecodeBytes(tt.input)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("DecodeBytes(%q) err = %v, want %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && !bytes.Equal(got, tt.want) {
			t.Errorf("DecodeBytes(%q) = %x, want %x", tt.input, got, tt.want)
		}
	}
}

func TestQuantityTypesJSON(t *testing.T) {
	var u Uint64
	if err := json.Unmarshal([]byte(`"0x2a"`), &u); err != nil {
		t.Fatalf("Uint64 unmarshal: %v", err)
	}
	if u != 42 {
		t.Errorf("Uint64 = %d, want 42", u)
	}
	out, err := json.Marshal(Uint64(255))
	if err != nil || string(out) != `"0xff"` {
		t.Errorf("Uint64 marshal = %s, %v", out, err)
	}

	var b Big
	if err := json.Unmarshal([]byte(`"0xde0b6b3a7640000"`), &b); err != nil {
		t.Fatalf("Big unmarshal: %v", err)
	}
	if b.ToInt().Cmp(big.NewInt(1e18)) != 0 {
		t.Errorf("Big = %s, want 1e18", b.ToInt())
	}

	var raw Bytes
	if err := json.Unmarshal([]byte(`"0x0102"`), &raw); err != nil {
		t.Fatalf("Bytes unmarshal: %v", err)
	}
	if !bytes.Equal(raw, []byte{1, 2}) {
		t.Errorf("Bytes = %x", raw)
	}
}

func TestNewBigNil(t *testing.T) {
	if NewBig(nil) != nil {
		t.Error("NewBig(nil) must be nil")
	}
	v := NewBig(big.NewInt(7))
	if v.ToInt().Int64() != 7 {
		t.Errorf("NewBig(7) = %s", v.ToInt())
	}
}

func TestBlockNumberUnmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  BlockNumber
	}{
		{`"latest"`, LatestBlockNumber},
		{`"pending"`, PendingBlockNumber},
		{`"earliest"`, EarliestBlockNumber},
		{`"safe"`, SafeBlockNumber},
		{`"finalized"`, FinalizedBlockNumber},
		{`"0x10"`, BlockNumber(16)},
	}
	for _, tt := range tests {
		var bn BlockNumber
		if err := json.Unmarshal([]byte(tt.input), &bn); err != nil {
			t.Errorf("unmarshal %s: %v", tt.input, err)
			continue
		}
		if bn != tt.want {
			t.Errorf("unmarshal %s = %d, want %d", tt.input, bn, tt.want)
		}
	}
}

func TestBlockNumberOrHashUnmarshal(t *testing.T) {
	var bnh BlockNumberOrHash
	if err := json.Unmarshal([]byte(`"latest"`), &bnh); err != nil {
		t.Fatalf("tag: %v", err)
	}
	if bn, ok := bnh.Number(); !ok || bn != LatestBlockNumber {
		t.Errorf("tag number = %d, %v", bn, ok)
	}

	hashJSON := `"0x00000000000000000000000000000000000000000000000000000000000000aa"`
	bnh = BlockNumberOrHash{}
	if err := json.Unmarshal([]byte(hashJSON), &bnh); err != nil {
		t.Fatalf("hash: %v", err)
	}
	hash, ok := bnh.Hash()
	if !ok || hash[31] != 0xaa {
		t.Errorf("hash = %x, %v", hash, ok)
	}

	bnh = BlockNumberOrHash{}
	err := json.Unmarshal([]byte(`{"blockNumber":"0x1","blockHash":"0x00000000000000000000000000000000000000000000000000000000000000aa"}`), &bnh)
	if err == nil {
		t.Error("both blockNumber and blockHash must be rejected")
	}
}
