package core

import (
	"errors"
	"testing"

	"github.com/devchain-eth/devchain/core/vm"
)

// thresholdCall succeeds at or above need gas and consumes used gas.
func thresholdCall(need, used uint64) func(gas uint64) (*ExecutionResult, error) {
	return func(gas uint64) (*ExecutionResult, error) {
		if gas < need {
			return &ExecutionResult{UsedGas: gas, Err: vm.ErrOutOfGas}, nil
		}
		return &ExecutionResult{UsedGas: used}, nil
	}
}

func TestEstimateGasFindsThreshold(t *testing.T) {
	tests := []struct {
		name string
		need uint64
		used uint64
	}{
		{"plain transfer", 21000, 21000},
		{"needs headroom over used", 150_000, 90_000},
		{"large call", 3_000_000, 2_500_000},
	}
	for _, tt := range tests {
		got, _, err := EstimateGas(thresholdCall(tt.need, tt.used), 0, 30_000_000)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got != tt.need {
			t.Errorf("%s: estimate = %d, want %d", tt.name, got, tt.need)
		}
	}
}

func TestEstimateGasAlwaysFailing(t *testing.T) {
	call := func(gas uint64) (*ExecutionResult, error) {
		return &ExecutionResult{Err: vm.ErrExecutionReverted, ReturnData: []byte{0x08}}, nil
	}
	_, result, err := EstimateGas(call, 0, 30_000_000)
	if !errors.Is(err, ErrGasEstimationFailed) {
		t.Fatalf("err = %v, want ErrGasEstimationFailed", err)
	}
	if result == nil || len(result.ReturnData) == 0 {
		t.Error("failing result with revert data must be surfaced")
	}
}

func TestEstimateGasPreExecutionError(t *testing.T) {
	boom := errors.New("insufficient funds")
	call := func(gas uint64) (*ExecutionResult, error) { return nil, boom }
	if _, _, err := EstimateGas(call, 0, 30_000_000); !errors.Is(err, boom) {
		t.Errorf("err = %v, want pre-execution error", err)
	}
}

func TestEstimateGasBadBounds(t *testing.T) {
	if _, _, err := EstimateGas(thresholdCall(21000, 21000), 0, 20000); err == nil {
		t.Error("max below the transfer floor must fail")
	}
}
