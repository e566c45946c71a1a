package tracing

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/crypto"
)

// consoleArg is one parameter kind of a console.log overload.
type consoleArg int

const (
	argUint consoleArg = iota
	argInt
	argString
	argBool
	argAddress
	argBytes
	argBytes32
)

func (a consoleArg) abiName() string {
	switch a {
	case argUint:
		return "uint256"
	case argInt:
		return "int256"
	case argString:
		return "string"
	case argBool:
		return "bool"
	case argAddress:
		return "address"
	case argBytes:
		return "bytes"
	default:
		return "bytes32"
	}
}

// aliasName is the legacy spelling some console.sol generations encode
// selectors with.
func (a consoleArg) aliasName() string {
	switch a {
	case argUint:
		return "uint"
	case argInt:
		return "int"
	default:
		return a.abiName()
	}
}

// consoleSignatures maps a 4-byte selector to the overload's parameter
// kinds. Built once at package init from every combination of the four
// core kinds up to arity 4, plus the scalar one-offs.
var consoleSignatures = buildConsoleSignatures()

func buildConsoleSignatures() map[[4]byte][]consoleArg {
	table := make(map[[4]byte][]consoleArg)
	register := func(args []consoleArg) {
		names := make([]string, len(args))
		aliases := make([]string, len(args))
		for i, a := range args {
			names[i] = a.abiName()
			aliases[i] = a.aliasName()
		}
		for _, sig := range []string{
			"log(" + strings.Join(names, ",") + ")",
			"log(" + strings.Join(aliases, ",") + ")",
		} {
			var sel [4]byte
			copy(sel[:], crypto.Keccak256([]byte(sig))[:4])
			if _, ok := table[sel]; !ok {
				table[sel] = append([]consoleArg(nil), args...)
			}
		}
	}

	register(nil)
	core := []consoleArg{argUint, argString, argBool, argAddress}
	var expand func(prefix []consoleArg, depth int)
	expand = func(prefix []consoleArg, depth int) {
		for _, a := range core {
			combo := append(append([]consoleArg(nil), prefix...), a)
			register(combo)
			if depth > 1 {
				expand(combo, depth-1)
			}
		}
	}
	expand(nil, 4)
	register([]consoleArg{argInt})
	register([]consoleArg{argBytes})
	register([]consoleArg{argBytes32})
	return table
}

// ConsoleLogCollector decodes console.log calldata into display lines.
// Its Sink method plugs into the EVM's console hook.
type ConsoleLogCollector struct {
	lines []string
}

// NewConsoleLogCollector returns an empty collector.
func NewConsoleLogCollector() *ConsoleLogCollector {
	return &ConsoleLogCollector{}
}

// Sink receives raw calldata of one console call.
func (c *ConsoleLogCollector) Sink(input []byte) {
	c.lines = append(c.lines, DecodeConsoleLog(input))
}

// Lines returns the collected messages.
func (c *ConsoleLogCollector) Lines() []string { return c.lines }

// Reset clears collected messages.
func (c *ConsoleLogCollector) Reset() { c.lines = nil }

// DecodeConsoleLog renders console.log calldata. Unknown selectors and
// malformed payloads fall back to the hex dump so nothing is lost.
func DecodeConsoleLog(input []byte) string {
	if len(input) < 4 {
		return "0x" + hex.EncodeToString(input)
	}
	var sel [4]byte
	copy(sel[:], input[:4])
	args, ok := consoleSignatures[sel]
	if !ok {
		return "0x" + hex.EncodeToString(input)
	}
	parts, err := decodeConsoleArgs(input[4:], args)
	if err != nil {
		return "0x" + hex.EncodeToString(input)
	}
	return strings.Join(parts, " ")
}

func decodeConsoleArgs(data []byte, args []consoleArg) ([]string, error) {
	parts := make([]string, 0, len(args))
	for i, arg := range args {
		head := data[32*i:]
		if len(head) < 32 {
			return nil, errBadABIEncoding
		}
		switch arg {
		case argUint:
			parts = append(parts, new(big.Int).SetBytes(head[:32]).String())
		case argInt:
			v := new(big.Int).SetBytes(head[:32])
			if head[0]&0x80 != 0 {
				two256 := new(big.Int).Lsh(big.NewInt(1), 256)
				v.Sub(v, two256)
			}
			parts = append(parts, v.String())
		case argBool:
			if head[31] != 0 {
				parts = append(parts, "true")
			} else {
				parts = append(parts, "false")
			}
		case argAddress:
			parts = append(parts, types.BytesToAddress(head[12:32]).Hex())
		case argBytes32:
			parts = append(parts, "0x"+hex.EncodeToString(head[:32]))
		case argString:
			s, err := unpackStringAt(data, 32*i)
			if err != nil {
				return nil, err
			}
			parts = append(parts, s)
		case argBytes:
			s, err := unpackStringAt(data, 32*i)
			if err != nil {
				return nil, err
			}
			parts = append(parts, "0x"+hex.EncodeToString([]byte(s)))
		}
	}
	return parts, nil
}

// unpackStringAt decodes a dynamic element whose offset word sits at
// headOffset within data.
func unpackStringAt(data []byte, headOffset int) (string, error) {
	if len(data) < headOffset+32 {
		return "", errBadABIEncoding
	}
	offset := new(big.Int).SetBytes(data[headOffset : headOffset+32])
	if !offset.IsUint64() || offset.Uint64()+32 > uint64(len(data)) {
		return "", errBadABIEncoding
	}
	o := offset.Uint64()
	length := new(big.Int).SetBytes(data[o : o+32])
	if !length.IsUint64() || o+32+length.Uint64() > uint64(len(data)) {
		return "", errBadABIEncoding
	}
	return string(data[o+32 : o+32+length.Uint64()]), nil
}

// FormatConsoleLines renders collected lines for the structured logger.
func FormatConsoleLines(lines []string) string {
	return fmt.Sprintf("console.log x%d:\n  %s", len(lines), strings.Join(lines, "\n  "))
}
