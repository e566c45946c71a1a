package rlp

import "errors"

var (
	// ErrValueTooLarge is returned when a value cannot be encoded.
	ErrValueTooLarge = errors.New("rlp: unsupported or oversized value")

	// ErrCanonSize is returned for non-canonical size prefixes.
	ErrCanonSize = errors.New("rlp: non-canonical size information")

	// ErrCanonInt is returned for integers with leading zero bytes.
	ErrCanonInt = errors.New("rlp: non-canonical integer format")

	// ErrExpectedString is returned when a list appears where a string
	// is required.
	ErrExpectedString = errors.New("rlp: expected string or byte")

	// ErrExpectedList is returned when a string appears where a list
	// is required.
	ErrExpectedList = errors.New("rlp: expected list")

	// ErrElemCount is returned when a decoded list has the wrong number
	// of elements for the target struct.
	ErrElemCount = errors.New("rlp: unexpected element count")

	// ErrUnexpectedEOF is returned when the input ends mid-item.
	ErrUnexpectedEOF = errors.New("rlp: unexpected end of input")

	// ErrTrailingBytes is returned when input remains after the value.
	ErrTrailingBytes = errors.New("rlp: trailing bytes after value")

	// ErrStringTooLong is returned when a fixed-size target receives a
	// string of the wrong length.
	ErrStringTooLong = errors.New("rlp: string length mismatch")
)
