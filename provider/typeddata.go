package provider

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/crypto"
)

// TypedDataField is one member of an EIP-712 struct type.
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypedData is the eth_signTypedData_v4 payload. Domain and Message
// are kept as raw JSON objects and encoded against Types.
type TypedData struct {
	Types       map[string][]TypedDataField `json:"types"`
	PrimaryType string                      `json:"primaryType"`
	Domain      map[string]interface{}      `json:"domain"`
	Message     map[string]interface{}      `json:"message"`
}

// SigningHash computes keccak256(0x1901 || domainSeparator ||
// hashStruct(primaryType, message)) per EIP-712.
func (d *TypedData) SigningHash() (types.Hash, error) {
	domainSep, err := d.hashStruct("EIP712Domain", d.Domain)
	if err != nil {
		return types.Hash{}, fmt.Errorf("encoding domain: %w", err)
	}
	msgHash, err := d.hashStruct(d.PrimaryType, d.Message)
	if err != nil {
		return types.Hash{}, fmt.Errorf("encoding message: %w", err)
	}
	return types.Hash(crypto.Keccak256Array([]byte{0x19, 0x01}, domainSep[:], msgHash[:])), nil
}

func (d *TypedData) hashStruct(primaryType string, data map[string]interface{}) (types.Hash, error) {
	encoded, err := d.encodeData(primaryType, data)
	if err != nil {
		return types.Hash{}, err
	}
	return types.Hash(crypto.Keccak256Array(encoded)), nil
}

// encodeType renders the primary type followed by its transitive
// dependencies in alphabetical order.
func (d *TypedData) encodeType(primaryType string) ([]byte, error) {
	var deps []string
	for _, name := range d.dependencies(primaryType, nil) {
		if name != primaryType {
			deps = append(deps, name)
		}
	}
	sort.Strings(deps)
	ordered := append([]string{primaryType}, deps...)

	var sb strings.Builder
	for _, name := range ordered {
		fields, ok := d.Types[name]
		if !ok {
			return nil, fmt.Errorf("undefined type %q", name)
		}
		sb.WriteString(name)
		sb.WriteByte('(')
		for i, field := range fields {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(field.Type)
			sb.WriteByte(' ')
			sb.WriteString(field.Name)
		}
		sb.WriteByte(')')
	}
	return []byte(sb.String()), nil
}

// dependencies collects struct types reachable from primaryType,
// including primaryType itself.
func (d *TypedData) dependencies(primaryType string, found []string) []string {
	base := primaryType
	if i := strings.Index(base, "["); i >= 0 {
		base = base[:i]
	}
	for _, prior := range found {
		if prior == base {
			return found
		}
	}
	if _, ok := d.Types[base]; !ok {
		return found
	}
	found = append(found, base)
	for _, field := range d.Types[base] {
		found = d.dependencies(field.Type, found)
	}
	return found
}

func (d *TypedData) typeHash(primaryType string) (types.Hash, error) {
	encoded, err := d.encodeType(primaryType)
	if err != nil {
		return types.Hash{}, err
	}
	return types.Hash(crypto.Keccak256Array(encoded)), nil
}

// encodeData produces typeHash || enc(field_1) || ... || enc(field_n),
// each element one 32-byte word.
func (d *TypedData) encodeData(primaryType string, data map[string]interface{}) ([]byte, error) {
	th, err := d.typeHash(primaryType)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), th[:]...)
	for _, field := range d.Types[primaryType] {
		word, err := d.encodeValue(field.Type, data[field.Name])
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", primaryType, field.Name, err)
		}
		out = append(out, word[:]...)
	}
	return out, nil
}

// encodeValue encodes one field value into its 32-byte word. Dynamic
// types and nested structs hash to their keccak per the spec.
func (d *TypedData) encodeValue(fieldType string, value interface{}) (types.Hash, error) {
	// Array types hash the concatenation of element words.
	if i := strings.Index(fieldType, "["); i >= 0 {
		elemType := fieldType[:i]
		items, ok := value.([]interface{})
		if !ok {
			return types.Hash{}, fmt.Errorf("expected array for %s", fieldType)
		}
		var buf []byte
		for _, item := range items {
			word, err := d.encodeValue(elemType, item)
			if err != nil {
				return types.Hash{}, err
			}
			buf = append(buf, word[:]...)
		}
		return types.Hash(crypto.Keccak256Array(buf)), nil
	}
	if _, ok := d.Types[fieldType]; ok {
		obj, ok := value.(map[string]interface{})
		if !ok {
			return types.Hash{}, fmt.Errorf("expected object for %s", fieldType)
		}
		return d.hashStruct(fieldType, obj)
	}
	switch {
	case fieldType == "string":
		s, ok := value.(string)
		if !ok {
			return types.Hash{}, fmt.Errorf("expected string")
		}
		return types.Hash(crypto.Keccak256Array([]byte(s))), nil
	case fieldType == "bytes":
		b, err := decodeHexValue(value)
		if err != nil {
			return types.Hash{}, err
		}
		return types.Hash(crypto.Keccak256Array(b)), nil
	case fieldType == "address":
		b, err := decodeHexValue(value)
		if err != nil {
			return types.Hash{}, err
		}
		if len(b) != types.AddressLength {
			return types.Hash{}, fmt.Errorf("invalid address length %d", len(b))
		}
		var word types.Hash
		copy(word[12:], b)
		return word, nil
	case fieldType == "bool":
		b, ok := value.(bool)
		if !ok {
			return types.Hash{}, fmt.Errorf("expected bool")
		}
		var word types.Hash
		if b {
			word[31] = 1
		}
		return word, nil
	case strings.HasPrefix(fieldType, "bytes"):
		size, err := strconv.Atoi(fieldType[len("bytes"):])
		if err != nil || size < 1 || size > 32 {
			return types.Hash{}, fmt.Errorf("invalid type %q", fieldType)
		}
		b, err := decodeHexValue(value)
		if err != nil {
			return types.Hash{}, err
		}
		if len(b) != size {
			return types.Hash{}, fmt.Errorf("expected %d bytes, got %d", size, len(b))
		}
		var word types.Hash
		copy(word[:], b)
		return word, nil
	case strings.HasPrefix(fieldType, "uint"), strings.HasPrefix(fieldType, "int"):
		n, err := decodeIntegerValue(value)
		if err != nil {
			return types.Hash{}, err
		}
		var word types.Hash
		if n.Sign() < 0 {
			// Two's complement over 256 bits.
			n = new(big.Int).Add(n, new(big.Int).Lsh(big.NewInt(1), 256))
		}
		n.FillBytes(word[:])
		return word, nil
	}
	return types.Hash{}, fmt.Errorf("unsupported type %q", fieldType)
}

func decodeHexValue(value interface{}) ([]byte, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected hex string")
	}
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// decodeIntegerValue accepts JSON numbers and decimal or 0x-prefixed
// string quantities.
func decodeIntegerValue(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case float64:
		return big.NewInt(int64(v)), nil
	case string:
		if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "-0x") {
			neg := strings.HasPrefix(v, "-")
			hexPart := strings.TrimPrefix(strings.TrimPrefix(v, "-"), "0x")
			n, ok := new(big.Int).SetString(hexPart, 16)
			if !ok {
				return nil, fmt.Errorf("invalid hex quantity %q", v)
			}
			if neg {
				n.Neg(n)
			}
			return n, nil
		}
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("invalid quantity %q", v)
		}
		return n, nil
	case json.Number:
		n, ok := new(big.Int).SetString(v.String(), 10)
		if !ok {
			return nil, fmt.Errorf("invalid quantity %q", v)
		}
		return n, nil
	}
	return nil, fmt.Errorf("unsupported quantity %T", value)
}
