package rlp

// Item is one parsed RLP value. For strings Payload holds the content
// bytes; for lists Payload holds the concatenated encodings of the
// elements, which can be further split with SplitAll.
type Item struct {
	List    bool
	Payload []byte
}

// Split parses the first RLP value in b and returns it together with the
// remaining input.
func Split(b []byte) (Item, []byte, error) {
	if len(b) == 0 {
		return Item{}, nil, ErrUnexpectedEOF
	}
	prefix := b[0]
	switch {
	case prefix <= 0x7f:
		return Item{Payload: b[:1]}, b[1:], nil

	case prefix <= 0xb7:
		size := int(prefix - 0x80)
		if len(b) < 1+size {
			return Item{}, nil, ErrUnexpectedEOF
		}
		if size == 1 && b[1] <= 0x7f {
			return Item{}, nil, ErrCanonSize
		}
		return Item{Payload: b[1 : 1+size]}, b[1+size:], nil

	case prefix <= 0xbf:
		lenOfLen := int(prefix - 0xb7)
		size, tail, err := readSize(b[1:], lenOfLen)
		if err != nil {
			return Item{}, nil, err
		}
		if size <= 55 {
			return Item{}, nil, ErrCanonSize
		}
		if len(tail) < size {
			return Item{}, nil, ErrUnexpectedEOF
		}
		return Item{Payload: tail[:size]}, tail[size:], nil

	case prefix <= 0xf7:
		size := int(prefix - 0xc0)
		if len(b) < 1+size {
			return Item{}, nil, ErrUnexpectedEOF
		}
		return Item{List: true, Payload: b[1 : 1+size]}, b[1+size:], nil

	default:
		lenOfLen := int(prefix - 0xf7)
		size, tail, err := readSize(b[1:], lenOfLen)
		if err != nil {
			return Item{}, nil, err
		}
		if size <= 55 {
			return Item{}, nil, ErrCanonSize
		}
		if len(tail) < size {
			return Item{}, nil, ErrUnexpectedEOF
		}
		return Item{List: true, Payload: tail[:size]}, tail[size:], nil
	}
}

// SplitAll parses a concatenation of RLP values, such as a list payload.
func SplitAll(b []byte) ([]Item, error) {
	var items []Item
	for len(b) > 0 {
		item, rest, err := Split(b)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		b = rest
	}
	return items, nil
}

// SplitList parses b as a single RLP list and returns its elements.
func SplitList(b []byte) ([]Item, error) {
	item, rest, err := Split(b)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, ErrTrailingBytes
	}
	if !item.List {
		return nil, ErrExpectedList
	}
	return SplitAll(item.Payload)
}

func readSize(b []byte, lenOfLen int) (int, []byte, error) {
	if len(b) < lenOfLen {
		return 0, nil, ErrUnexpectedEOF
	}
	if b[0] == 0 {
		return 0, nil, ErrCanonSize
	}
	size := readBigEndian(b[:lenOfLen])
	if size > uint64(int(^uint(0)>>1)) {
		return 0, nil, ErrValueTooLarge
	}
	return int(size), b[lenOfLen:], nil
}
