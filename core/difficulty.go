package core

import (
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
)

var (
	minimumDifficulty  = big.NewInt(131072)
	difficultyBound    = big.NewInt(2048)
	expDiffPeriod      = big.NewInt(100000)
	big1               = big.NewInt(1)
	big2               = big.NewInt(2)
	big9               = big.NewInt(9)
	big10              = big.NewInt(10)
	bigMinus99         = big.NewInt(-99)
)

// CalcDifficulty computes the proof-of-work difficulty for a block at
// time with the given parent. Post-merge blocks have zero difficulty.
func CalcDifficulty(config *ChainConfig, time uint64, parent *types.Header) *big.Int {
	next := new(big.Int).Add(parent.Number, big1)
	if config.IsMerge(next) {
		return new(big.Int)
	}
	switch {
	case config.IsGrayGlacier(next):
		return calcDifficultyEip100(time, parent, 11_400_000)
	case config.IsArrowGlacier(next):
		return calcDifficultyEip100(time, parent, 10_700_000)
	case config.IsLondon(next):
		return calcDifficultyEip100(time, parent, 9_700_000)
	case config.IsMuirGlacier(next):
		return calcDifficultyEip100(time, parent, 9_000_000)
	case config.IsConstantinople(next):
		return calcDifficultyEip100(time, parent, 5_000_000)
	case config.IsByzantium(next):
		return calcDifficultyEip100(time, parent, 3_000_000)
	case config.IsHomestead(next):
		return calcDifficultyHomestead(time, parent)
	default:
		return calcDifficultyFrontier(time, parent)
	}
}

// calcDifficultyEip100 is the Byzantium rule with a delayed difficulty
// bomb: uncle-aware adjustment per EIP-100.
func calcDifficultyEip100(time uint64, parent *types.Header, bombDelay uint64) *big.Int {
	// (2 if parent has uncles else 1) - (time - parent.time) // 9
	x := new(big.Int).SetUint64(time - parent.Time)
	x.Div(x, big9)
	if parent.UncleHash == types.EmptyUncleHash {
		x.Sub(big1, x)
	} else {
		x.Sub(big2, x)
	}
	if x.Cmp(bigMinus99) < 0 {
		x.Set(bigMinus99)
	}
	y := new(big.Int).Div(parent.Difficulty, difficultyBound)
	x.Mul(y, x)
	x.Add(parent.Difficulty, x)
	if x.Cmp(minimumDifficulty) < 0 {
		x.Set(minimumDifficulty)
	}
	// Bomb with the fake block number pushed back by the delay.
	fakeBlockNumber := new(big.Int)
	if delayed := new(big.Int).SetUint64(bombDelay - 1); parent.Number.Cmp(delayed) >= 0 {
		fakeBlockNumber.Sub(parent.Number, delayed)
	}
	periodCount := fakeBlockNumber.Div(fakeBlockNumber, expDiffPeriod)
	if periodCount.Cmp(big1) > 0 {
		y.Sub(periodCount, big2)
		y.Exp(big2, y, nil)
		x.Add(x, y)
	}
	return x
}

func calcDifficultyHomestead(time uint64, parent *types.Header) *big.Int {
	x := new(big.Int).SetUint64(time - parent.Time)
	x.Div(x, big10)
	x.Sub(big1, x)
	if x.Cmp(bigMinus99) < 0 {
		x.Set(bigMinus99)
	}
	y := new(big.Int).Div(parent.Difficulty, difficultyBound)
	x.Mul(y, x)
	x.Add(parent.Difficulty, x)
	if x.Cmp(minimumDifficulty) < 0 {
		x.Set(minimumDifficulty)
	}
	periodCount := new(big.Int).Add(parent.Number, big1)
	periodCount.Div(periodCount, expDiffPeriod)
	if periodCount.Cmp(big1) > 0 {
		y.Sub(periodCount, big2)
		y.Exp(big2, y, nil)
		x.Add(x, y)
	}
	return x
}

func calcDifficultyFrontier(time uint64, parent *types.Header) *big.Int {
	diff := new(big.Int)
	adjust := new(big.Int).Div(parent.Difficulty, difficultyBound)
	if time-parent.Time < 13 {
		diff.Add(parent.Difficulty, adjust)
	} else {
		diff.Sub(parent.Difficulty, adjust)
	}
	if diff.Cmp(minimumDifficulty) < 0 {
		diff.Set(minimumDifficulty)
	}
	periodCount := new(big.Int).Add(parent.Number, big1)
	periodCount.Div(periodCount, expDiffPeriod)
	if periodCount.Cmp(big1) > 0 {
		expDiff := new(big.Int).Sub(periodCount, big2)
		expDiff.Exp(big2, expDiff, nil)
		diff.Add(diff, expDiff)
	}
	return diff
}
