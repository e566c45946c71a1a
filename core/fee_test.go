package core

import (
	"math/big"
	"testing"

	"github.com/devchain-eth/devchain/core/types"
)

func TestCalcBaseFee(t *testing.T) {
	config := DevChainConfig(31337)
	gwei := func(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e9)) }

	tests := []struct {
		name   string
		parent *types.Header
		want   *big.Int
	}{
		{
			name: "at target stays flat",
			parent: &types.Header{
				Number: big.NewInt(1), GasLimit: 30_000_000, GasUsed: 15_000_000,
				BaseFee: gwei(1),
			},
			want: gwei(1),
		},
		{
			name: "full block raises by an eighth",
			parent: &types.Header{
				Number: big.NewInt(1), GasLimit: 30_000_000, GasUsed: 30_000_000,
				BaseFee: gwei(8),
			},
			want: gwei(9),
		},
		{
			name: "empty block lowers by an eighth",
			parent: &types.Header{
				Number: big.NewInt(1), GasLimit: 30_000_000, GasUsed: 0,
				BaseFee: gwei(8),
			},
			want: gwei(7),
		},
		{
			name: "decay never crosses the floor",
			parent: &types.Header{
				Number: big.NewInt(1), GasLimit: 30_000_000, GasUsed: 0,
				BaseFee: big.NewInt(7),
			},
			want: big.NewInt(7),
		},
		{
			name: "missing parent fee resets to the initial fee",
			parent: &types.Header{
				Number: big.NewInt(0), GasLimit: 30_000_000,
			},
			want: new(big.Int).SetUint64(InitialBaseFee),
		},
	}
	for _, tt := range tests {
		if got := CalcBaseFee(config, tt.parent); got.Cmp(tt.want) != 0 {
			t.Errorf("%s: base fee = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestCalcBaseFeePreLondon(t *testing.T) {
	config := DevChainConfig(31337)
	config.LondonBlock = big.NewInt(100)
	parent := &types.Header{Number: big.NewInt(5), GasLimit: 30_000_000}
	if got := CalcBaseFee(config, parent); got != nil {
		t.Errorf("pre-London base fee = %s, want nil", got)
	}
}

func TestCalcBaseFeeCustomParams(t *testing.T) {
	// OP-style parameters: denominator 250, elasticity 6.
	config := DevChainConfig(10)
	config.BaseFeeParams = &BaseFeeParams{Denominator: 250, Elasticity: 6}
	parent := &types.Header{
		Number: big.NewInt(1), GasLimit: 30_000_000, GasUsed: 30_000_000,
		BaseFee: big.NewInt(1_000_000_000),
	}
	// Target is limit/6; usage is six times the target, so the fee rises
	// by 5/250 = 2%.
	want := big.NewInt(1_020_000_000)
	if got := CalcBaseFee(config, parent); got.Cmp(want) != 0 {
		t.Errorf("base fee = %s, want %s", got, want)
	}
}
