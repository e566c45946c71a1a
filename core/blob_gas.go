package core

import (
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
)

// MinBlobGasPrice is the floor of the blob base fee.
const MinBlobGasPrice uint64 = 1

type blobParams struct {
	target         uint64
	max            uint64
	updateFraction uint64
}

var (
	blobParamsCancun = blobParams{target: 3, max: 6, updateFraction: 3338477}
	blobParamsPrague = blobParams{target: 6, max: 9, updateFraction: 5376681}
)

func (c *ChainConfig) blobSchedule(num *big.Int, time uint64) blobParams {
	if c.IsPrague(num, time) {
		return blobParamsPrague
	}
	return blobParamsCancun
}

// MaxBlobsPerBlock is the hard cap on blobs in one block.
func (c *ChainConfig) MaxBlobsPerBlock(num *big.Int, time uint64) uint64 {
	return c.blobSchedule(num, time).max
}

// MaxBlobGasPerBlock is the blob gas cap of one block.
func (c *ChainConfig) MaxBlobGasPerBlock(num *big.Int, time uint64) uint64 {
	return c.blobSchedule(num, time).max * types.BlobTxBlobGasPerBlob
}

// TargetBlobGasPerBlock is the blob gas level excess gas decays toward.
func (c *ChainConfig) TargetBlobGasPerBlock(num *big.Int, time uint64) uint64 {
	return c.blobSchedule(num, time).target * types.BlobTxBlobGasPerBlob
}

// CalcExcessBlobGas computes the excess blob gas of the block after
// parent, given the schedule active at the child's (num, time).
func CalcExcessBlobGas(config *ChainConfig, parent *types.Header, childNum *big.Int, childTime uint64) uint64 {
	var parentExcess, parentUsed uint64
	if parent.ExcessBlobGas != nil {
		parentExcess = *parent.ExcessBlobGas
	}
	if parent.BlobGasUsed != nil {
		parentUsed = *parent.BlobGasUsed
	}
	target := config.TargetBlobGasPerBlock(childNum, childTime)
	if parentExcess+parentUsed < target {
		return 0
	}
	return parentExcess + parentUsed - target
}

// CalcBlobFee computes the blob base fee from the excess blob gas.
func CalcBlobFee(config *ChainConfig, num *big.Int, time uint64, excessBlobGas uint64) *big.Int {
	frac := config.blobSchedule(num, time).updateFraction
	return fakeExponential(
		new(big.Int).SetUint64(MinBlobGasPrice),
		new(big.Int).SetUint64(excessBlobGas),
		new(big.Int).SetUint64(frac))
}

// fakeExponential approximates factor * e^(numerator/denominator) with
// the EIP-4844 Taylor expansion.
func fakeExponential(factor, numerator, denominator *big.Int) *big.Int {
	var (
		output = new(big.Int)
		accum  = new(big.Int).Mul(factor, denominator)
	)
	for i := 1; accum.Sign() > 0; i++ {
		output.Add(output, accum)

		accum.Mul(accum, numerator)
		accum.Div(accum, denominator)
		accum.Div(accum, big.NewInt(int64(i)))
	}
	return output.Div(output, denominator)
}
