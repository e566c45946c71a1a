package trie

import (
	"bytes"
	"errors"

	"github.com/devchain-eth/devchain/crypto"
	"github.com/devchain-eth/devchain/rlp"
)

var (
	// ErrNotFound is returned when a key is absent from the trie.
	ErrNotFound = errors.New("trie: key not found")

	// EmptyRoot is the root hash of an empty trie.
	EmptyRoot = mustHash("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")
)

func mustHash(hexStr string) [32]byte {
	var h [32]byte
	const digits = "0123456789abcdef"
	for i := 0; i < 32; i++ {
		hi := bytes.IndexByte([]byte(digits), hexStr[i*2])
		lo := bytes.IndexByte([]byte(digits), hexStr[i*2+1])
		h[i] = byte(hi<<4 | lo)
	}
	return h
}

type node interface{}

type (
	fullNode  struct{ Children [17]node }
	shortNode struct {
		Key []byte // hex nibbles, terminator included for leaves
		Val node
	}
	valueNode []byte
)

// Trie is a mutable in-memory Merkle-Patricia trie.
type Trie struct {
	root node
}

// New creates an empty trie.
func New() *Trie {
	return &Trie{}
}

// Put inserts or replaces the value for key. Empty values delete.
func (t *Trie) Put(key, value []byte) error {
	k := keybytesToHex(key)
	if len(value) == 0 {
		t.root = deleteNode(t.root, k)
		return nil
	}
	t.root = insert(t.root, k, valueNode(value))
	return nil
}

// Get returns the value for key, or ErrNotFound.
func (t *Trie) Get(key []byte) ([]byte, error) {
	v := lookup(t.root, keybytesToHex(key))
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

// Hash computes the Keccak-256 root hash of the trie.
func (t *Trie) Hash() [32]byte {
	if t.root == nil {
		return EmptyRoot
	}
	enc := encodeNode(t.root)
	return crypto.Keccak256Array(enc)
}

func insert(n node, key []byte, value node) node {
	if len(key) == 0 {
		return value
	}
	switch n := n.(type) {
	case nil:
		return &shortNode{Key: key, Val: value}

	case *shortNode:
		match := prefixLen(key, n.Key)
		if match == len(n.Key) {
			n.Val = insert(n.Val, key[match:], value)
			return n
		}
		// Split: branch at the divergence point.
		branch := &fullNode{}
		setBranchChild(branch, n.Key[match:], n.Val)
		setBranchChild(branch, key[match:], value)
		if match == 0 {
			return branch
		}
		return &shortNode{Key: key[:match], Val: branch}

	case *fullNode:
		if key[0] == terminatorByte {
			n.Children[16] = value
			return n
		}
		n.Children[key[0]] = insert(n.Children[key[0]], key[1:], value)
		return n

	case valueNode:
		// Replacing a value that sits where a longer key now extends.
		branch := &fullNode{Children: [17]node{16: n}}
		return insert(branch, key, value)

	default:
		return n
	}
}

// setBranchChild places an existing subtree under its first nibble.
func setBranchChild(branch *fullNode, key []byte, val node) {
	if key[0] == terminatorByte {
		branch.Children[16] = val
		return
	}
	if len(key) > 1 {
		branch.Children[key[0]] = &shortNode{Key: key[1:], Val: val}
	} else {
		branch.Children[key[0]] = val
	}
}

func lookup(n node, key []byte) []byte {
	switch n := n.(type) {
	case nil:
		return nil
	case valueNode:
		if len(key) == 0 {
			return n
		}
		return nil
	case *shortNode:
		if len(key) < len(n.Key) || !bytes.Equal(n.Key, key[:len(n.Key)]) {
			return nil
		}
		return lookup(n.Val, key[len(n.Key):])
	case *fullNode:
		if len(key) == 0 {
			return nil
		}
		if key[0] == terminatorByte {
			if v, ok := n.Children[16].(valueNode); ok {
				return v
			}
			return nil
		}
		return lookup(n.Children[key[0]], key[1:])
	default:
		return nil
	}
}

func deleteNode(n node, key []byte) node {
	switch n := n.(type) {
	case nil:
		return nil
	case *shortNode:
		if len(key) < len(n.Key) || !bytes.Equal(n.Key, key[:len(n.Key)]) {
			return n
		}
		child := deleteNode(n.Val, key[len(n.Key):])
		if child == nil {
			return nil
		}
		if sn, ok := child.(*shortNode); ok {
			return &shortNode{Key: append(append([]byte{}, n.Key...), sn.Key...), Val: sn.Val}
		}
		n.Val = child
		return n
	case *fullNode:
		idx := 16
		if key[0] != terminatorByte {
			idx = int(key[0])
			n.Children[idx] = deleteNode(n.Children[idx], key[1:])
		} else {
			n.Children[16] = nil
		}
		// Collapse branches that have a single remaining child.
		remaining := -1
		count := 0
		for i, c := range n.Children {
			if c != nil {
				remaining = i
				count++
			}
		}
		if count > 1 {
			return n
		}
		if count == 0 {
			return nil
		}
		if remaining == 16 {
			return &shortNode{Key: []byte{terminatorByte}, Val: n.Children[16]}
		}
		child := n.Children[remaining]
		if sn, ok := child.(*shortNode); ok {
			return &shortNode{Key: append([]byte{byte(remaining)}, sn.Key...), Val: sn.Val}
		}
		return &shortNode{Key: []byte{byte(remaining)}, Val: child}
	case valueNode:
		if len(key) == 0 {
			return nil
		}
		return n
	default:
		return n
	}
}

// encodeNode returns the RLP encoding of a node with children collapsed
// to hashes when their encoding is 32 bytes or larger.
func encodeNode(n node) []byte {
	switch n := n.(type) {
	case *shortNode:
		var payload []byte
		payload = rlp.AppendString(payload, hexToCompact(n.Key))
		if v, ok := n.Val.(valueNode); ok && hasTerm(n.Key) {
			payload = rlp.AppendString(payload, v)
		} else {
			payload = append(payload, nodeRef(n.Val)...)
		}
		return rlp.WrapList(payload)

	case *fullNode:
		var payload []byte
		for i := 0; i < 16; i++ {
			if n.Children[i] == nil {
				payload = append(payload, 0x80)
			} else {
				payload = append(payload, nodeRef(n.Children[i])...)
			}
		}
		if v, ok := n.Children[16].(valueNode); ok {
			payload = rlp.AppendString(payload, v)
		} else {
			payload = append(payload, 0x80)
		}
		return rlp.WrapList(payload)

	case valueNode:
		var payload []byte
		return rlp.AppendString(payload, n)

	default:
		return []byte{0x80}
	}
}

// nodeRef returns a node's reference inside its parent: the raw encoding
// when shorter than 32 bytes, its Keccak-256 hash otherwise.
func nodeRef(n node) []byte {
	if v, ok := n.(valueNode); ok {
		var payload []byte
		return rlp.AppendString(payload, v)
	}
	enc := encodeNode(n)
	if len(enc) < 32 {
		return enc
	}
	h := crypto.Keccak256(enc)
	var payload []byte
	return rlp.AppendString(payload, h)
}
