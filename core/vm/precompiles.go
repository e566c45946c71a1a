package vm

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto/blake2b"
	"github.com/ethereum/go-ethereum/crypto/bn256"
	"golang.org/x/crypto/ripemd160"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/crypto"
)

// PrecompiledContract is a native contract at a fixed address.
type PrecompiledContract interface {
	RequiredGas(input []byte) uint64
	Run(input []byte) ([]byte, error)
}

var (
	errBlake2FInvalidInputLength = errors.New("invalid input length")
	errBlake2FInvalidFinalFlag   = errors.New("invalid final flag")
	errBadPairingInput           = errors.New("bad elliptic curve pairing size")
	errModexpBaseLength          = errors.New("unsupported base length")
	errPointEvaluationInput      = errors.New("invalid point evaluation input")
)

func addrOf(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

// activePrecompiles returns the native contract set for the fork.
func activePrecompiles(rules Rules) map[types.Address]PrecompiledContract {
	set := map[types.Address]PrecompiledContract{
		addrOf(0x01): &ecrecoverContract{},
		addrOf(0x02): &sha256Contract{},
		addrOf(0x03): &ripemd160Contract{},
		addrOf(0x04): &identityContract{},
	}
	if rules.IsByzantium {
		set[addrOf(0x05)] = &modexpContract{eip2565: rules.IsBerlin}
		set[addrOf(0x06)] = &bn256AddContract{}
		set[addrOf(0x07)] = &bn256ScalarMulContract{}
		set[addrOf(0x08)] = &bn256PairingContract{}
	}
	if rules.IsIstanbul {
		set[addrOf(0x09)] = &blake2FContract{}
	}
	if rules.IsCancun {
		set[addrOf(0x0a)] = &pointEvaluationContract{}
	}
	return set
}

// runPrecompiledContract charges the contract's gas and runs it.
func runPrecompiledContract(p PrecompiledContract, input []byte, suppliedGas uint64) (ret []byte, remainingGas uint64, err error) {
	gasCost := p.RequiredGas(input)
	if suppliedGas < gasCost {
		return nil, 0, ErrOutOfGas
	}
	suppliedGas -= gasCost
	output, err := p.Run(input)
	return output, suppliedGas, err
}

type ecrecoverContract struct{}

func (c *ecrecoverContract) RequiredGas(input []byte) uint64 { return 3000 }

func (c *ecrecoverContract) Run(input []byte) ([]byte, error) {
	const ecRecoverInputLength = 128
	input = rightPad(input, ecRecoverInputLength)

	r := new(big.Int).SetBytes(input[64:96])
	s := new(big.Int).SetBytes(input[96:128])
	v := input[63] - 27

	// Bytes 32..62 must be zero and v must be 27 or 28.
	if !allZero(input[32:63]) || (v != 0 && v != 1) {
		return nil, nil
	}
	if !crypto.ValidateSignatureValues(v, r, s, false) {
		return nil, nil
	}
	sig := make([]byte, 65)
	copy(sig, input[64:128])
	sig[64] = v

	pubKey, err := crypto.Ecrecover(input[:32], sig)
	if err != nil {
		return nil, nil
	}
	addr := crypto.PubkeyBytesToAddress(pubKey)
	return leftPad32(addr[:]), nil
}

type sha256Contract struct{}

func (c *sha256Contract) RequiredGas(input []byte) uint64 {
	return toWordSize(uint64(len(input)))*12 + 60
}

func (c *sha256Contract) Run(input []byte) ([]byte, error) {
	h := crypto.Sha256(input)
	return h[:], nil
}

type ripemd160Contract struct{}

func (c *ripemd160Contract) RequiredGas(input []byte) uint64 {
	return toWordSize(uint64(len(input)))*120 + 600
}

func (c *ripemd160Contract) Run(input []byte) ([]byte, error) {
	rip := ripemd160.New()
	rip.Write(input)
	return leftPad32(rip.Sum(nil)), nil
}

type identityContract struct{}

func (c *identityContract) RequiredGas(input []byte) uint64 {
	return toWordSize(uint64(len(input)))*3 + 15
}

func (c *identityContract) Run(input []byte) ([]byte, error) {
	return append([]byte(nil), input...), nil
}

type modexpContract struct {
	eip2565 bool
}

func (c *modexpContract) RequiredGas(input []byte) uint64 {
	var (
		baseLen = bigFromPadded(input, 0, 32)
		expLen  = bigFromPadded(input, 32, 32)
		modLen  = bigFromPadded(input, 64, 32)
	)
	if len(input) > 96 {
		input = input[96:]
	} else {
		input = input[:0]
	}
	// Head of the exponent, up to 32 bytes.
	var expHead *big.Int
	if big.NewInt(int64(len(input))).Cmp(baseLen) <= 0 {
		expHead = new(big.Int)
	} else {
		offset := baseLen.Uint64()
		if expLen.Cmp(big.NewInt(32)) > 0 {
			expHead = bigFromPadded(input, offset, 32)
		} else {
			expHead = bigFromPadded(input, offset, expLen.Uint64())
		}
	}
	var msb int
	if bitlen := expHead.BitLen(); bitlen > 0 {
		msb = bitlen - 1
	}
	adjExpLen := new(big.Int)
	if expLen.Cmp(big.NewInt(32)) > 0 {
		adjExpLen.Sub(expLen, big.NewInt(32))
		adjExpLen.Mul(big.NewInt(8), adjExpLen)
	}
	adjExpLen.Add(adjExpLen, big.NewInt(int64(msb)))

	gas := new(big.Int).Set(maxBig(modLen, baseLen))
	if c.eip2565 {
		// EIP-2565: ceil(x/8)^2 words, divisor 3, floor 200.
		gas.Add(gas, big.NewInt(7))
		gas.Rsh(gas, 3)
		gas.Mul(gas, gas)
		gas.Mul(gas, maxBig(adjExpLen, big.NewInt(1)))
		gas.Div(gas, big.NewInt(3))
		if gas.BitLen() > 64 {
			return ^uint64(0)
		}
		if gas.Uint64() < 200 {
			return 200
		}
		return gas.Uint64()
	}
	gas = multComplexityEIP198(gas)
	gas.Mul(gas, maxBig(adjExpLen, big.NewInt(1)))
	gas.Div(gas, big.NewInt(20))
	if gas.BitLen() > 64 {
		return ^uint64(0)
	}
	return gas.Uint64()
}

func (c *modexpContract) Run(input []byte) ([]byte, error) {
	var (
		baseLen = bigFromPadded(input, 0, 32).Uint64()
		expLen  = bigFromPadded(input, 32, 32).Uint64()
		modLen  = bigFromPadded(input, 64, 32).Uint64()
	)
	if len(input) > 96 {
		input = input[96:]
	} else {
		input = input[:0]
	}
	if baseLen == 0 && modLen == 0 {
		return nil, nil
	}
	var (
		base = bigFromPadded(input, 0, baseLen)
		exp  = bigFromPadded(input, baseLen, expLen)
		mod  = bigFromPadded(input, baseLen+expLen, modLen)
	)
	if mod.BitLen() == 0 {
		return make([]byte, modLen), nil
	}
	result := new(big.Int).Exp(base, exp, mod)
	out := result.Bytes()
	if uint64(len(out)) > modLen {
		return nil, errModexpBaseLength
	}
	padded := make([]byte, modLen)
	copy(padded[modLen-uint64(len(out)):], out)
	return padded, nil
}

func multComplexityEIP198(x *big.Int) *big.Int {
	switch {
	case x.Cmp(big.NewInt(64)) <= 0:
		return x.Mul(x, x)
	case x.Cmp(big.NewInt(1024)) <= 0:
		return new(big.Int).Add(
			new(big.Int).Div(new(big.Int).Mul(x, x), big.NewInt(4)),
			new(big.Int).Sub(new(big.Int).Mul(big.NewInt(96), x), big.NewInt(3072)))
	default:
		return new(big.Int).Add(
			new(big.Int).Div(new(big.Int).Mul(x, x), big.NewInt(16)),
			new(big.Int).Sub(new(big.Int).Mul(big.NewInt(480), x), big.NewInt(199680)))
	}
}

type bn256AddContract struct{}

func (c *bn256AddContract) RequiredGas(input []byte) uint64 { return 150 }

func (c *bn256AddContract) Run(input []byte) ([]byte, error) {
	x, err := newCurvePoint(getData(input, 0, 64))
	if err != nil {
		return nil, err
	}
	y, err := newCurvePoint(getData(input, 64, 64))
	if err != nil {
		return nil, err
	}
	res := new(bn256.G1)
	res.Add(x, y)
	return res.Marshal(), nil
}

type bn256ScalarMulContract struct{}

func (c *bn256ScalarMulContract) RequiredGas(input []byte) uint64 { return 6000 }

func (c *bn256ScalarMulContract) Run(input []byte) ([]byte, error) {
	p, err := newCurvePoint(getData(input, 0, 64))
	if err != nil {
		return nil, err
	}
	res := new(bn256.G1)
	res.ScalarMult(p, new(big.Int).SetBytes(getData(input, 64, 32)))
	return res.Marshal(), nil
}

type bn256PairingContract struct{}

func (c *bn256PairingContract) RequiredGas(input []byte) uint64 {
	return 45000 + uint64(len(input)/192)*34000
}

func (c *bn256PairingContract) Run(input []byte) ([]byte, error) {
	if len(input)%192 > 0 {
		return nil, errBadPairingInput
	}
	var (
		cs []*bn256.G1
		ts []*bn256.G2
	)
	for i := 0; i < len(input); i += 192 {
		c, err := newCurvePoint(input[i : i+64])
		if err != nil {
			return nil, err
		}
		t, err := newTwistPoint(input[i+64 : i+192])
		if err != nil {
			return nil, err
		}
		cs = append(cs, c)
		ts = append(ts, t)
	}
	if bn256.PairingCheck(cs, ts) {
		return leftPad32([]byte{1}), nil
	}
	return make([]byte, 32), nil
}

func newCurvePoint(blob []byte) (*bn256.G1, error) {
	p := new(bn256.G1)
	if _, err := p.Unmarshal(blob); err != nil {
		return nil, err
	}
	return p, nil
}

func newTwistPoint(blob []byte) (*bn256.G2, error) {
	p := new(bn256.G2)
	if _, err := p.Unmarshal(blob); err != nil {
		return nil, err
	}
	return p, nil
}

type blake2FContract struct{}

const blake2FInputLength = 213

func (c *blake2FContract) RequiredGas(input []byte) uint64 {
	if len(input) != blake2FInputLength {
		return 0
	}
	return uint64(binary.BigEndian.Uint32(input[0:4]))
}

func (c *blake2FContract) Run(input []byte) ([]byte, error) {
	if len(input) != blake2FInputLength {
		return nil, errBlake2FInvalidInputLength
	}
	if input[212] != 0 && input[212] != 1 {
		return nil, errBlake2FInvalidFinalFlag
	}
	var (
		rounds = binary.BigEndian.Uint32(input[0:4])
		final  = input[212] == 1
		h      [8]uint64
		m      [16]uint64
		t      [2]uint64
	)
	for i := 0; i < 8; i++ {
		offset := 4 + i*8
		h[i] = binary.LittleEndian.Uint64(input[offset : offset+8])
	}
	for i := 0; i < 16; i++ {
		offset := 68 + i*8
		m[i] = binary.LittleEndian.Uint64(input[offset : offset+8])
	}
	t[0] = binary.LittleEndian.Uint64(input[196:204])
	t[1] = binary.LittleEndian.Uint64(input[204:212])

	blake2b.F(&h, m, t, final, rounds)

	output := make([]byte, 64)
	for i := 0; i < 8; i++ {
		offset := i * 8
		binary.LittleEndian.PutUint64(output[offset:offset+8], h[i])
	}
	return output, nil
}

// pointEvaluationContract implements the EIP-4844 KZG point evaluation
// precompile at 0x0a.
type pointEvaluationContract struct{}

var pointEvaluationReturn = func() []byte {
	// FIELD_ELEMENTS_PER_BLOB (4096) followed by BLS_MODULUS.
	modulus, _ := new(big.Int).SetString(
		"52435875175126190479447740508185965837690552500527637822603658699938581184513", 10)
	out := make([]byte, 64)
	binary.BigEndian.PutUint64(out[24:32], 4096)
	modulus.FillBytes(out[32:])
	return out
}()

func (c *pointEvaluationContract) RequiredGas(input []byte) uint64 { return 50000 }

func (c *pointEvaluationContract) Run(input []byte) ([]byte, error) {
	if len(input) != 192 {
		return nil, errPointEvaluationInput
	}
	var (
		versionedHash [32]byte
		point         [32]byte
		claim         [32]byte
		commitment    [crypto.CommitmentSize]byte
		proof         [crypto.ProofSize]byte
	)
	copy(versionedHash[:], input[0:32])
	copy(point[:], input[32:64])
	copy(claim[:], input[64:96])
	copy(commitment[:], input[96:144])
	copy(proof[:], input[144:192])

	if crypto.KZGToVersionedHash(commitment) != versionedHash {
		return nil, errPointEvaluationInput
	}
	if err := crypto.VerifyKZGProof(commitment, point, claim, proof); err != nil {
		return nil, err
	}
	return append([]byte(nil), pointEvaluationReturn...), nil
}

func allZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}

func leftPad32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func maxBig(x, y *big.Int) *big.Int {
	if x.Cmp(y) > 0 {
		return x
	}
	return y
}

func bigFromPadded(data []byte, start, size uint64) *big.Int {
	return new(big.Int).SetBytes(getData(data, start, size))
}
