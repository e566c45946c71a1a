package rlp

import (
	"math/big"
	"reflect"
)

// DecodeBytes decodes an RLP-encoded byte slice into the value pointed to
// by val. The whole input must be consumed by the value.
func DecodeBytes(b []byte, val interface{}) error {
	item, rest, err := Split(b)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return ErrTrailingBytes
	}
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return ErrValueTooLarge
	}
	return decodeItem(item, rv.Elem())
}

func decodeItem(item Item, v reflect.Value) error {
	if v.Kind() == reflect.Ptr {
		// A nil-able field. The empty string decodes to nil.
		if !item.List && len(item.Payload) == 0 {
			v.Set(reflect.Zero(v.Type()))
			return nil
		}
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return decodeItem(item, v.Elem())
	}

	if v.Type() == bigIntType {
		if item.List {
			return ErrExpectedString
		}
		if len(item.Payload) > 0 && item.Payload[0] == 0 {
			return ErrCanonInt
		}
		v.Addr().Interface().(*big.Int).SetBytes(item.Payload)
		return nil
	}

	switch v.Kind() {
	case reflect.Bool:
		if item.List {
			return ErrExpectedString
		}
		v.SetBool(len(item.Payload) == 1 && item.Payload[0] == 1)
		return nil

	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		if item.List {
			return ErrExpectedString
		}
		if len(item.Payload) > 8 {
			return ErrValueTooLarge
		}
		if len(item.Payload) > 0 && item.Payload[0] == 0 {
			return ErrCanonInt
		}
		v.SetUint(readBigEndian(item.Payload))
		return nil

	case reflect.String:
		if item.List {
			return ErrExpectedString
		}
		v.SetString(string(item.Payload))
		return nil

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			if item.List {
				return ErrExpectedString
			}
			b := make([]byte, len(item.Payload))
			copy(b, item.Payload)
			v.SetBytes(b)
			return nil
		}
		if !item.List {
			return ErrExpectedList
		}
		elems, err := SplitAll(item.Payload)
		if err != nil {
			return err
		}
		out := reflect.MakeSlice(v.Type(), len(elems), len(elems))
		for i, el := range elems {
			if err := decodeItem(el, out.Index(i)); err != nil {
				return err
			}
		}
		v.Set(out)
		return nil

	case reflect.Array:
		if v.Type().Elem().Kind() != reflect.Uint8 {
			return ErrValueTooLarge
		}
		if item.List {
			return ErrExpectedString
		}
		if len(item.Payload) != v.Len() {
			return ErrStringTooLong
		}
		reflect.Copy(v, reflect.ValueOf(item.Payload))
		return nil

	case reflect.Struct:
		if !item.List {
			return ErrExpectedList
		}
		elems, err := SplitAll(item.Payload)
		if err != nil {
			return err
		}
		t := v.Type()
		idx := 0
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Tag.Get("rlp") == "-" {
				continue
			}
			if idx >= len(elems) {
				return ErrElemCount
			}
			if err := decodeItem(elems[idx], v.Field(i)); err != nil {
				return err
			}
			idx++
		}
		if idx != len(elems) {
			return ErrElemCount
		}
		return nil

	default:
		return ErrValueTooLarge
	}
}

func readBigEndian(b []byte) uint64 {
	var u uint64
	for _, c := range b {
		u = u<<8 | uint64(c)
	}
	return u
}
