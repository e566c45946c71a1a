package vm

import "github.com/holiman/uint256"

// Gas cost tiers and operation costs.
const (
	GasQuickStep   uint64 = 2
	GasFastestStep uint64 = 3
	GasFastStep    uint64 = 5
	GasMidStep     uint64 = 8
	GasSlowStep    uint64 = 10
	GasExtStep     uint64 = 20

	Keccak256Gas     uint64 = 30
	Keccak256WordGas uint64 = 6

	CopyGas uint64 = 3 // per word

	LogGas      uint64 = 375
	LogTopicGas uint64 = 375
	LogDataGas  uint64 = 8

	SloadGasLegacy         uint64 = 200  // Istanbul: 800, handled below
	SloadGasEIP2200        uint64 = 800
	SstoreSetGas           uint64 = 20000
	SstoreResetGas         uint64 = 5000
	SstoreClearRefund      uint64 = 15000 // pre-London clear refund
	SstoreSentryGas        uint64 = 2300

	// EIP-2929 access costs.
	ColdAccountAccessCost uint64 = 2600
	ColdSloadCost         uint64 = 2100
	WarmStorageReadCost   uint64 = 100

	// EIP-3529 clear refund: SstoreResetGas - ColdSloadCost +
	// AccessListStorageKeyGas.
	SstoreClearRefundEIP3529 uint64 = 4800

	CallValueTransferGas uint64 = 9000
	CallNewAccountGas    uint64 = 25000
	CallStipend          uint64 = 2300
	CallGasEIP150        uint64 = 700

	CreateGas        uint64 = 32000
	CreateDataGas    uint64 = 200 // per byte of deployed code
	InitCodeWordGas  uint64 = 2   // EIP-3860
	MaxCodeSize             = 24576
	MaxInitCodeSize         = 2 * MaxCodeSize

	SelfdestructGasEIP150      uint64 = 5000
	SelfdestructRefund         uint64 = 24000 // removed by EIP-3529
	ExpGas                     uint64 = 10
	ExpByteGasEIP158           uint64 = 50
	BalanceGasEIP1884          uint64 = 700
	ExtcodeSizeGasEIP150       uint64 = 700
	ExtcodeHashGasIstanbul     uint64 = 700
	BlockhashGas               uint64 = 20
	MemoryGas                  uint64 = 3
	QuadCoeffDiv               uint64 = 512
	JumpdestGas                uint64 = 1

	// CallCreateDepth is the maximum call/create recursion depth.
	CallCreateDepth = 1024
)

// memoryGasCost computes the gas for growing memory to newSize bytes:
// 3 * words + words^2 / 512, charged incrementally.
func memoryGasCost(mem *Memory, newSize uint64) (uint64, error) {
	if newSize == 0 {
		return 0, nil
	}
	// Anything above this overflows the gas math.
	if newSize > 0x1FFFFFFFE0 {
		return 0, ErrGasUintOverflow
	}
	newWords := (newSize + 31) / 32
	newTotal := newSize
	if words := newWords * 32; words > newTotal {
		newTotal = words
	}
	if newTotal <= uint64(mem.Len()) {
		return 0, nil
	}
	square := newWords * newWords
	linCoef := newWords * MemoryGas
	quadCoef := square / QuadCoeffDiv
	newCost := linCoef + quadCoef
	cost := newCost - mem.lastGasCost
	mem.lastGasCost = newCost
	return cost, nil
}

// calcMemSize64 computes offset + length with overflow detection.
func calcMemSize64(off, l *uint256.Int) (uint64, bool) {
	if !l.IsUint64() {
		return 0, true
	}
	return calcMemSize64WithUint(off, l.Uint64())
}

func calcMemSize64WithUint(off *uint256.Int, length64 uint64) (uint64, bool) {
	if length64 == 0 {
		return 0, false
	}
	offset64, overflow := off.Uint64WithOverflow()
	if overflow {
		return 0, true
	}
	val := offset64 + length64
	return val, val < offset64
}

// toWordSize rounds up to the number of 32-byte words.
func toWordSize(size uint64) uint64 {
	if size > (^uint64(0))-31 {
		return (^uint64(0))/32 + 1
	}
	return (size + 31) / 32
}

// safeAdd returns a+b with overflow detection.
func safeAdd(a, b uint64) (uint64, bool) {
	return a + b, a+b < a
}

// safeMul returns a*b with overflow detection.
func safeMul(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	p := a * b
	return p, p/b != a
}
