package core

import "errors"

// ErrGasEstimationFailed means the call fails even at the maximum gas
// the estimator was allowed to try.
var ErrGasEstimationFailed = errors.New("gas required exceeds allowance or always failing transaction")

// EstimateGas binary searches the smallest gas limit at which call
// succeeds. call executes the message at the given gas limit against a
// fresh copy of state; a non-nil error is a pre-execution failure, a
// result with Err set is a VM failure.
//
// When the call fails even at maxGas, the failing result is returned
// alongside the error so callers can surface revert data.
func EstimateGas(call func(gas uint64) (*ExecutionResult, error), minGas, maxGas uint64) (uint64, *ExecutionResult, error) {
	lo := minGas
	if lo < TxGas-1 {
		lo = TxGas - 1
	}
	hi := maxGas
	if hi <= lo {
		return 0, nil, ErrGasEstimationFailed
	}

	result, err := call(hi)
	if err != nil {
		return 0, nil, err
	}
	if result.Failed() {
		return 0, result, ErrGasEstimationFailed
	}
	// A successful run bounds the answer: execution consumes at most
	// UsedGas, but the 63/64 rule can demand a higher limit.
	if used := result.UsedGas; used > lo {
		guess := used + used/64
		if guess < hi {
			if r, err := call(guess); err == nil && !r.Failed() {
				hi = guess
			} else {
				lo = guess
			}
		}
	}
	for lo+1 < hi {
		mid := (lo + hi) / 2
		r, err := call(mid)
		if err != nil || r.Failed() {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi, nil, nil
}
