package state

import (
	"math/big"
	"sort"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/rlp"
	"github.com/devchain-eth/devchain/trie"
)

// flatAccount is the materialized view of a locally-committed account.
type flatAccount struct {
	nonce    uint64
	balance  *big.Int
	codeHash types.Hash
	code     []byte
	storage  map[types.Hash]types.Hash
}

func newFlatAccount() *flatAccount {
	return &flatAccount{
		balance:  new(big.Int),
		codeHash: types.EmptyCodeHash,
		storage:  make(map[types.Hash]types.Hash),
	}
}

func (f *flatAccount) copy() *flatAccount {
	cpy := &flatAccount{
		nonce:    f.nonce,
		balance:  new(big.Int).Set(f.balance),
		codeHash: f.codeHash,
		code:     f.code,
		storage:  make(map[types.Hash]types.Hash, len(f.storage)),
	}
	for k, v := range f.storage {
		cpy.storage[k] = v
	}
	return cpy
}

// Store is the committed state of a chain head: a base reader (empty for
// local chains, remote-pinned for forks) plus an ordered list of block
// diffs. Snapshots are O(1) because they are just layer counts; the
// flattened view is rebuilt only on revert.
type Store struct {
	base       Reader
	enumerable bool
	rootGen    func() types.Hash

	layers []Diff
	flat   map[types.Address]*flatAccount

	// deleted marks accounts destroyed locally, masking the base.
	deleted map[types.Address]bool
}

// NewLocalStore creates a store for a fresh local chain. All accounts
// are enumerable, so state roots are real Merkle-Patricia roots.
func NewLocalStore() *Store {
	return &Store{
		base:       EmptyReader(),
		enumerable: true,
		flat:       make(map[types.Address]*flatAccount),
		deleted:    make(map[types.Address]bool),
	}
}

// NewForkStore creates a store over a remote-pinned base reader. Roots
// cannot be recomputed over the remote account set, so rootGen
// fabricates deterministic roots.
func NewForkStore(base Reader, rootGen func() types.Hash) *Store {
	return &Store{
		base:    base,
		rootGen: rootGen,
		flat:    make(map[types.Address]*flatAccount),
		deleted: make(map[types.Address]bool),
	}
}

// Account implements Reader.
func (s *Store) Account(addr types.Address) (*Account, error) {
	if f, ok := s.flat[addr]; ok {
		return &Account{Nonce: f.nonce, Balance: new(big.Int).Set(f.balance), CodeHash: f.codeHash}, nil
	}
	if s.deleted[addr] {
		return nil, nil
	}
	return s.base.Account(addr)
}

// Code implements Reader.
func (s *Store) Code(addr types.Address) ([]byte, error) {
	if f, ok := s.flat[addr]; ok {
		if f.codeHash == types.EmptyCodeHash {
			return nil, nil
		}
		if f.code == nil {
			// Account fields were touched locally but the code still
			// lives behind the base reader.
			if !s.deleted[addr] {
				return s.base.Code(addr)
			}
			return nil, ErrCodeNotFound
		}
		return f.code, nil
	}
	if s.deleted[addr] {
		return nil, nil
	}
	return s.base.Code(addr)
}

// Storage implements Reader.
func (s *Store) Storage(addr types.Address, key types.Hash) (types.Hash, error) {
	if f, ok := s.flat[addr]; ok {
		if v, ok := f.storage[key]; ok {
			return v, nil
		}
		if s.deleted[addr] {
			return types.Hash{}, nil
		}
		return s.base.Storage(addr, key)
	}
	if s.deleted[addr] {
		return types.Hash{}, nil
	}
	return s.base.Storage(addr, key)
}

// Commit appends a block diff and folds it into the flattened view.
func (s *Store) Commit(diff Diff) {
	s.layers = append(s.layers, diff.Copy())
	s.apply(diff)
}

func (s *Store) apply(diff Diff) {
	for addr, ad := range diff {
		if ad.Destroyed {
			delete(s.flat, addr)
			s.deleted[addr] = true
			if ad.Balance == nil {
				continue
			}
		}
		f, ok := s.flat[addr]
		if !ok {
			f = newFlatAccount()
			s.flat[addr] = f
		}
		if ad.StorageReplaced {
			f.storage = make(map[types.Hash]types.Hash)
			s.deleted[addr] = true // mask base storage from now on
		}
		f.nonce = ad.Nonce
		if ad.Balance != nil {
			f.balance = new(big.Int).Set(ad.Balance)
		}
		if !ad.CodeHash.IsZero() {
			f.codeHash = ad.CodeHash
		}
		if ad.Code != nil {
			f.code = types.CopyBytes(ad.Code)
		}
		for k, v := range ad.Storage {
			f.storage[k] = v
		}
	}
}

// Snapshot returns an O(1) store snapshot id.
func (s *Store) Snapshot() int {
	return len(s.layers)
}

// RevertTo discards every commit made after the given snapshot id and
// rebuilds the flattened view from the surviving layers.
func (s *Store) RevertTo(id int) error {
	if id < 0 || id > len(s.layers) {
		return ErrBadSnapshot
	}
	s.layers = s.layers[:id]
	s.flat = make(map[types.Address]*flatAccount)
	s.deleted = make(map[types.Address]bool)
	for _, diff := range s.layers {
		s.apply(diff)
	}
	return nil
}

// StateRoot computes the secure Merkle-Patricia root over all accounts
// for enumerable (local) stores. Forked stores return a fabricated
// deterministic root since the remote account set cannot be enumerated.
func (s *Store) StateRoot() (types.Hash, error) {
	if !s.enumerable {
		if s.rootGen == nil {
			return types.Hash{}, ErrInconsistentRoot
		}
		return s.rootGen(), nil
	}

	addrs := make([]types.Address, 0, len(s.flat))
	for addr := range s.flat {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return lessBytes(addrs[i][:], addrs[j][:])
	})

	pairs := make([]trie.KeyValuePair, 0, len(addrs))
	for _, addr := range addrs {
		f := s.flat[addr]
		acct := &types.StateAccount{
			Nonce:    f.nonce,
			Balance:  f.balance,
			Root:     storageRoot(f.storage),
			CodeHash: f.codeHash,
		}
		if acct.IsEmpty() {
			continue
		}
		enc, err := rlp.EncodeToBytes(acct.TrieFields())
		if err != nil {
			return types.Hash{}, err
		}
		pairs = append(pairs, trie.KeyValuePair{Key: addr.Bytes(), Value: enc})
	}
	return types.Hash(trie.SecureRoot(pairs)), nil
}

func storageRoot(storage map[types.Hash]types.Hash) types.Hash {
	pairs := make([]trie.KeyValuePair, 0, len(storage))
	for k, v := range storage {
		if v.IsZero() {
			continue
		}
		enc, _ := rlp.EncodeToBytes(v.Big())
		pairs = append(pairs, trie.KeyValuePair{Key: k.Bytes(), Value: enc})
	}
	return types.Hash(trie.SecureRoot(pairs))
}

func lessBytes(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
