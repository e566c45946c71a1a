package vm

import (
	"github.com/holiman/uint256"

	"github.com/devchain-eth/devchain/core/types"
)

// Contract is one call frame: the code being executed, who called it,
// the value attached and the gas available.
type Contract struct {
	CallerAddress types.Address
	Address       types.Address

	Code     []byte
	CodeHash types.Hash
	Input    []byte

	Gas   uint64
	value *uint256.Int

	jumpdests map[types.Hash]bitvec
	analysis  bitvec
}

// NewContract creates a call frame.
func NewContract(caller, address types.Address, value *uint256.Int, gas uint64) *Contract {
	return &Contract{
		CallerAddress: caller,
		Address:       address,
		value:         value,
		Gas:           gas,
		jumpdests:     make(map[types.Hash]bitvec),
	}
}

// Caller returns the calling address.
func (c *Contract) Caller() types.Address { return c.CallerAddress }

// Value returns the attached value.
func (c *Contract) Value() *uint256.Int { return c.value }

// SetCallCode installs the code to run in this frame.
func (c *Contract) SetCallCode(hash types.Hash, code []byte) {
	c.Code = code
	c.CodeHash = hash
}

// UseGas consumes gas and reports whether enough was available.
func (c *Contract) UseGas(gas uint64) bool {
	if c.Gas < gas {
		return false
	}
	c.Gas -= gas
	return true
}

// RefundGas returns unused gas to the frame.
func (c *Contract) RefundGas(gas uint64) {
	c.Gas += gas
}

// GetOp returns the opcode at pc.
func (c *Contract) GetOp(n uint64) OpCode {
	if n < uint64(len(c.Code)) {
		return OpCode(c.Code[n])
	}
	return STOP
}

// validJumpdest reports whether dest is a JUMPDEST outside push data.
func (c *Contract) validJumpdest(dest *uint256.Int) bool {
	udest, overflow := dest.Uint64WithOverflow()
	if overflow || udest >= uint64(len(c.Code)) {
		return false
	}
	if OpCode(c.Code[udest]) != JUMPDEST {
		return false
	}
	return c.isCode(udest)
}

// isCode reports whether the byte at udest is an opcode, not push data.
func (c *Contract) isCode(udest uint64) bool {
	if c.analysis == nil {
		if !c.CodeHash.IsZero() {
			analysis, ok := c.jumpdests[c.CodeHash]
			if !ok {
				analysis = codeBitmap(c.Code)
				c.jumpdests[c.CodeHash] = analysis
			}
			c.analysis = analysis
		} else {
			c.analysis = codeBitmap(c.Code)
		}
	}
	return c.analysis.codeSegment(udest)
}

// bitvec marks which code offsets are push data.
type bitvec []byte

func (bits bitvec) set1(pos uint64) {
	bits[pos/8] |= 1 << (pos % 8)
}

func (bits bitvec) codeSegment(pos uint64) bool {
	return (bits[pos/8] & (1 << (pos % 8))) == 0
}

// codeBitmap builds the push-data bitmap for code.
func codeBitmap(code []byte) bitvec {
	bits := make(bitvec, len(code)/8+1)
	for pc := uint64(0); pc < uint64(len(code)); {
		op := OpCode(code[pc])
		pc++
		if op.IsPush() {
			numbits := uint64(op - PUSH1 + 1)
			for i := uint64(0); i < numbits && pc+i < uint64(len(code)); i++ {
				bits.set1(pc + i)
			}
			pc += numbits
		}
	}
	return bits
}
