package core

import (
	"testing"

	"github.com/devchain-eth/devchain/core/types"
)

func TestIntrinsicGas(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		accessList types.AccessList
		authList   []types.SetCodeAuthorization
		create     bool
		want       uint64
	}{
		{name: "plain transfer", want: 21000},
		{name: "one nonzero byte", data: []byte{0x11}, want: 21016},
		{name: "one zero byte", data: []byte{0x00}, want: 21004},
		{name: "mixed calldata", data: []byte{0x00, 0x01, 0x00, 0x02}, want: 21000 + 2*4 + 2*16},
		{name: "contract creation", create: true, want: 53000},
		{
			name: "access list",
			accessList: types.AccessList{{
				Address:     types.Address{0x01},
				StorageKeys: []types.Hash{{0x01}, {0x02}},
			}},
			want: 21000 + 2400 + 2*1900,
		},
		{
			name:     "authorization list",
			authList: []types.SetCodeAuthorization{{}, {}},
			want:     21000 + 2*25000,
		},
	}
	for _, tt := range tests {
		got, err := IntrinsicGas(tt.data, tt.accessList, tt.authList, tt.create, true, true, true)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: gas = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestIntrinsicGasPreIstanbul(t *testing.T) {
	got, err := IntrinsicGas([]byte{0x11}, nil, nil, false, true, false, false)
	if err != nil {
		t.Fatalf("intrinsic: %v", err)
	}
	if got != 21068 {
		t.Errorf("pre-Istanbul nonzero byte gas = %d, want 21068", got)
	}
}

func TestIntrinsicGasInitCodeWords(t *testing.T) {
	data := make([]byte, 33) // two init code words
	got, err := IntrinsicGas(data, nil, nil, true, true, true, true)
	if err != nil {
		t.Fatalf("intrinsic: %v", err)
	}
	want := uint64(53000 + 33*4 + 2*2)
	if got != want {
		t.Errorf("init code gas = %d, want %d", got, want)
	}
}

func TestFloorDataGas(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint64
	}{
		{name: "empty", want: 21000},
		{name: "one nonzero byte", data: []byte{0x11}, want: 21040},
		{name: "one zero byte", data: []byte{0x00}, want: 21010},
		{name: "mixed", data: []byte{0x00, 0x01, 0x00}, want: 21000 + (2+4)*10},
	}
	for _, tt := range tests {
		got, err := FloorDataGas(tt.data)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: floor = %d, want %d", tt.name, got, tt.want)
		}
	}
}
