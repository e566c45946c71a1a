// Package trie implements the in-memory Merkle-Patricia trie used for
// state, storage, transaction, receipt and withdrawal root computation.
package trie

// Hex-prefix encoding. Keys are expanded to nibbles for traversal; leaf
// keys carry a terminator nibble (16). Compact encoding packs nibbles
// back into bytes with a flag nibble for odd length and leaf-ness.

const terminatorByte = 16

// keybytesToHex expands key bytes into nibbles plus a terminator.
func keybytesToHex(key []byte) []byte {
	n := len(key)*2 + 1
	nibbles := make([]byte, n)
	for i, b := range key {
		nibbles[i*2] = b / 16
		nibbles[i*2+1] = b % 16
	}
	nibbles[n-1] = terminatorByte
	return nibbles
}

// hexToCompact packs hex nibbles into the compact on-disk encoding.
func hexToCompact(hex []byte) []byte {
	terminator := byte(0)
	if hasTerm(hex) {
		terminator = 1
		hex = hex[:len(hex)-1]
	}
	buf := make([]byte, len(hex)/2+1)
	buf[0] = terminator << 5 // flag byte
	if len(hex)&1 == 1 {
		buf[0] |= 1 << 4 // odd flag
		buf[0] |= hex[0]
		hex = hex[1:]
	}
	decodeNibbles(hex, buf[1:])
	return buf
}

// compactToHex unpacks the compact encoding back into hex nibbles.
func compactToHex(compact []byte) []byte {
	if len(compact) == 0 {
		return nil
	}
	base := keybytesToHex(compact)
	// Strip the terminator added by keybytesToHex when the flags say
	// this is an extension key.
	if base[0] < 2 {
		base = base[:len(base)-1]
	}
	// Skip the flag nibble, plus the padding nibble for even keys.
	chop := 2 - base[0]&1
	return base[chop:]
}

func decodeNibbles(nibbles []byte, bytes []byte) {
	for bi, ni := 0, 0; ni < len(nibbles); bi, ni = bi+1, ni+2 {
		bytes[bi] = nibbles[ni]<<4 | nibbles[ni+1]
	}
}

// prefixLen returns the length of the common prefix of a and b.
func prefixLen(a, b []byte) int {
	i := 0
	for ; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			break
		}
	}
	return i
}

// hasTerm reports whether the hex key ends with the terminator nibble.
func hasTerm(s []byte) bool {
	return len(s) > 0 && s[len(s)-1] == terminatorByte
}
