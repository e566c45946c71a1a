package rpc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Hex codec errors.
var (
	ErrEmptyString   = errors.New("empty hex string")
	ErrMissingPrefix = errors.New("hex string without 0x prefix")
	ErrOddLength     = errors.New("hex string of odd length")
	ErrLeadingZero   = errors.New("hex number with leading zero digits")
	ErrEmptyNumber   = errors.New(`hex string "0x"`)
	ErrUint64Range   = errors.New("hex number larger than 64 bits")
	ErrBig256Range   = errors.New("hex number larger than 256 bits")
)

// EncodeUint64 encodes i as a minimal hex quantity.
func EncodeUint64(i uint64) string {
	return "0x" + strconv.FormatUint(i, 16)
}

// DecodeUint64 decodes a hex quantity.
func DecodeUint64(input string) (uint64, error) {
	raw, err := checkNumber(input)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		return 0, mapNumError(err)
	}
	return v, nil
}

// EncodeBig encodes a non-negative big integer as a hex quantity.
func EncodeBig(i *big.Int) string {
	if i == nil || i.Sign() == 0 {
		return "0x0"
	}
	return "0x" + i.Text(16)
}

// DecodeBig decodes a hex quantity of at most 256 bits.
func DecodeBig(input string) (*big.Int, error) {
	raw, err := checkNumber(input)
	if err != nil {
		return nil, err
	}
	if len(raw) > 64 {
		return nil, ErrBig256Range
	}
	v, ok := new(big.Int).SetString(raw, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex number %q", input)
	}
	return v, nil
}

// EncodeBytes encodes b as an even-length 0x-prefixed hex string.
func EncodeBytes(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeBytes decodes a 0x-prefixed hex string.
func DecodeBytes(input string) ([]byte, error) {
	if input == "" {
		return nil, ErrEmptyString
	}
	if !strings.HasPrefix(input, "0x") && !strings.HasPrefix(input, "0X") {
		return nil, ErrMissingPrefix
	}
	body := input[2:]
	if len(body)%2 != 0 {
		return nil, ErrOddLength
	}
	return hex.DecodeString(body)
}

func checkNumber(input string) (string, error) {
	if input == "" {
		return "", ErrEmptyString
	}
	if !strings.HasPrefix(input, "0x") && !strings.HasPrefix(input, "0X") {
		return "", ErrMissingPrefix
	}
	body := input[2:]
	if body == "" {
		return "", ErrEmptyNumber
	}
	if len(body) > 1 && body[0] == '0' {
		return "", ErrLeadingZero
	}
	return body, nil
}

func mapNumError(err error) error {
	if numErr, ok := err.(*strconv.NumError); ok {
		switch numErr.Err {
		case strconv.ErrRange:
			return ErrUint64Range
		case strconv.ErrSyntax:
			return fmt.Errorf("invalid hex number %q", numErr.Num)
		}
	}
	return err
}

// Uint64 marshals as a hex quantity.
type Uint64 uint64

func (u Uint64) MarshalText() ([]byte, error) {
	return []byte(EncodeUint64(uint64(u))), nil
}

func (u *Uint64) UnmarshalText(input []byte) error {
	v, err := DecodeUint64(string(input))
	if err != nil {
		return err
	}
	*u = Uint64(v)
	return nil
}

// Big marshals as a hex quantity of at most 256 bits.
type Big big.Int

func (b *Big) ToInt() *big.Int { return (*big.Int)(b) }

// NewBig wraps i, mapping nil to nil.
func NewBig(i *big.Int) *Big {
	if i == nil {
		return nil
	}
	return (*Big)(new(big.Int).Set(i))
}

func (b Big) MarshalText() ([]byte, error) {
	v := big.Int(b)
	return []byte(EncodeBig(&v)), nil
}

func (b *Big) UnmarshalText(input []byte) error {
	v, err := DecodeBig(string(input))
	if err != nil {
		return err
	}
	*b = Big(*v)
	return nil
}

// Bytes marshals as an even-length 0x-prefixed hex string.
type Bytes []byte

func (b Bytes) MarshalText() ([]byte, error) {
	return []byte(EncodeBytes(b)), nil
}

func (b *Bytes) UnmarshalText(input []byte) error {
	v, err := DecodeBytes(string(input))
	if err != nil {
		return err
	}
	*b = v
	return nil
}
