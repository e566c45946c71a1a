package core

import (
	"errors"
	"fmt"
)

// ErrGasLimitReached means a transaction does not fit in the block's
// remaining gas.
var ErrGasLimitReached = errors.New("gas limit reached")

// GasPool tracks the gas still available to transactions during block
// assembly.
type GasPool uint64

// AddGas returns gas to the pool.
func (gp *GasPool) AddGas(amount uint64) *GasPool {
	if uint64(*gp) > (^uint64(0))-amount {
		panic("gas pool pushed above uint64")
	}
	*gp += GasPool(amount)
	return gp
}

// SubGas takes gas from the pool or fails with ErrGasLimitReached.
func (gp *GasPool) SubGas(amount uint64) error {
	if uint64(*gp) < amount {
		return ErrGasLimitReached
	}
	*gp -= GasPool(amount)
	return nil
}

// Gas returns the remaining gas.
func (gp *GasPool) Gas() uint64 { return uint64(*gp) }

func (gp *GasPool) String() string {
	return fmt.Sprintf("%d", uint64(*gp))
}
