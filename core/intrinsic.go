package core

import (
	"errors"

	"github.com/devchain-eth/devchain/core/types"
)

// Intrinsic gas parameters.
const (
	TxGas                 uint64 = 21000
	TxGasContractCreation uint64 = 53000
	TxDataZeroGas         uint64 = 4
	TxDataNonZeroGas      uint64 = 68 // pre-Istanbul
	TxDataNonZeroGasEIP2028 uint64 = 16

	TxAccessListAddressGas    uint64 = 2400
	TxAccessListStorageKeyGas uint64 = 1900

	// TxAuthTupleGas is the per-authorization cost of EIP-7702.
	// TxAuthTupleRefund is returned when the authority already exists.
	TxAuthTupleGas    uint64 = 25000
	TxAuthTupleRefund uint64 = 12500

	// EIP-7623 calldata floor pricing.
	TxTokenPerNonZeroByte uint64 = 4
	TxCostFloorPerToken   uint64 = 10

	initCodeWordGas uint64 = 2
)

// ErrGasUintOverflow means the intrinsic gas does not fit in a uint64.
var ErrGasUintOverflow = errors.New("gas uint64 overflow")

// IntrinsicGas computes the gas charged before any execution happens.
func IntrinsicGas(data []byte, accessList types.AccessList, authList []types.SetCodeAuthorization, isContractCreation, isHomestead, isEIP2028, isEIP3860 bool) (uint64, error) {
	var gas uint64
	if isContractCreation && isHomestead {
		gas = TxGasContractCreation
	} else {
		gas = TxGas
	}
	dataLen := uint64(len(data))
	if dataLen > 0 {
		var nz uint64
		for _, byt := range data {
			if byt != 0 {
				nz++
			}
		}
		nonZeroGas := TxDataNonZeroGas
		if isEIP2028 {
			nonZeroGas = TxDataNonZeroGasEIP2028
		}
		if (^uint64(0)-gas)/nonZeroGas < nz {
			return 0, ErrGasUintOverflow
		}
		gas += nz * nonZeroGas

		z := dataLen - nz
		if (^uint64(0)-gas)/TxDataZeroGas < z {
			return 0, ErrGasUintOverflow
		}
		gas += z * TxDataZeroGas

		if isContractCreation && isEIP3860 {
			lenWords := (dataLen + 31) / 32
			if (^uint64(0)-gas)/initCodeWordGas < lenWords {
				return 0, ErrGasUintOverflow
			}
			gas += lenWords * initCodeWordGas
		}
	}
	if accessList != nil {
		gas += uint64(len(accessList)) * TxAccessListAddressGas
		gas += uint64(accessList.StorageKeys()) * TxAccessListStorageKeyGas
	}
	if authList != nil {
		gas += uint64(len(authList)) * TxAuthTupleGas
	}
	return gas, nil
}

// FloorDataGas computes the EIP-7623 calldata gas floor: each zero
// byte is one token, each non-zero byte four, the floor is
// 21000 + 10 per token.
func FloorDataGas(data []byte) (uint64, error) {
	var (
		z  uint64
		nz uint64
	)
	for _, byt := range data {
		if byt != 0 {
			nz++
		} else {
			z++
		}
	}
	tokens := z + nz*TxTokenPerNonZeroByte
	if tokens > ((^uint64(0))-TxGas)/TxCostFloorPerToken {
		return 0, ErrGasUintOverflow
	}
	return TxGas + tokens*TxCostFloorPerToken, nil
}
