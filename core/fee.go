package core

import (
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
)

// EIP-1559 parameters.
const (
	InitialBaseFee uint64 = 1_000_000_000 // 1 gwei at the London transition

	// MinBaseFee is the floor the base fee never decays below.
	MinBaseFee uint64 = 7

	DefaultBaseFeeChangeDenominator uint64 = 8
	DefaultElasticityMultiplier     uint64 = 2
)

func (c *ChainConfig) baseFeeParams() BaseFeeParams {
	if c.BaseFeeParams != nil {
		return *c.BaseFeeParams
	}
	return BaseFeeParams{
		Denominator: DefaultBaseFeeChangeDenominator,
		Elasticity:  DefaultElasticityMultiplier,
	}
}

// ElasticityMultiplier is the gas limit to gas target ratio.
func (c *ChainConfig) ElasticityMultiplier() uint64 {
	return c.baseFeeParams().Elasticity
}

// CalcBaseFee computes the base fee of the block following parent.
// Returns nil before London.
func CalcBaseFee(config *ChainConfig, parent *types.Header) *big.Int {
	next := new(big.Int).Add(parent.Number, big.NewInt(1))
	if !config.IsLondon(next) {
		return nil
	}
	// The transition block starts at the initial base fee.
	if !config.IsLondon(parent.Number) || parent.BaseFee == nil {
		return new(big.Int).SetUint64(InitialBaseFee)
	}
	params := config.baseFeeParams()
	gasTarget := parent.GasLimit / params.Elasticity

	if parent.GasUsed == gasTarget {
		return new(big.Int).Set(parent.BaseFee)
	}

	var (
		num   = new(big.Int)
		denom = new(big.Int)
	)
	if parent.GasUsed > gasTarget {
		num.SetUint64(parent.GasUsed - gasTarget)
		num.Mul(num, parent.BaseFee)
		num.Div(num, denom.SetUint64(gasTarget))
		num.Div(num, denom.SetUint64(params.Denominator))
		if num.Sign() == 0 {
			num.SetUint64(1)
		}
		return num.Add(parent.BaseFee, num)
	}
	num.SetUint64(gasTarget - parent.GasUsed)
	num.Mul(num, parent.BaseFee)
	num.Div(num, denom.SetUint64(gasTarget))
	num.Div(num, denom.SetUint64(params.Denominator))
	baseFee := num.Sub(parent.BaseFee, num)
	if floor := new(big.Int).SetUint64(MinBaseFee); baseFee.Cmp(floor) < 0 {
		return floor
	}
	return baseFee
}
