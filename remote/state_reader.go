package remote

import (
	"context"
	"sync"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/crypto"
	"github.com/devchain-eth/devchain/state"
)

// ForkReader adapts a Client into a state.Reader pinned at a fixed
// block. Every remote answer is memoized, so each (account, slot) key
// is fetched at most once per process.
type ForkReader struct {
	client Client
	block  uint64

	mu       sync.Mutex
	accounts map[types.Address]*state.Account
	codes    map[types.Address][]byte
	storage  map[types.Address]map[types.Hash]types.Hash
	fetches  uint64
}

var _ state.Reader = (*ForkReader)(nil)

// NewForkReader pins client at blockNumber.
func NewForkReader(client Client, blockNumber uint64) *ForkReader {
	return &ForkReader{
		client:   client,
		block:    blockNumber,
		accounts: make(map[types.Address]*state.Account),
		codes:    make(map[types.Address][]byte),
		storage:  make(map[types.Address]map[types.Hash]types.Hash),
	}
}

// Block returns the pinned block number.
func (r *ForkReader) Block() uint64 { return r.block }

// Fetches returns the number of remote requests issued so far.
func (r *ForkReader) Fetches() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

func (r *ForkReader) Account(addr types.Address) (*state.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acct, ok := r.accounts[addr]; ok {
		return acct.Copy(), nil
	}
	ctx := context.Background()
	balance, err := r.client.BalanceAt(ctx, addr, r.block)
	if err != nil {
		return nil, err
	}
	nonce, err := r.client.NonceAt(ctx, addr, r.block)
	if err != nil {
		return nil, err
	}
	code, err := r.client.CodeAt(ctx, addr, r.block)
	if err != nil {
		return nil, err
	}
	r.fetches += 3
	r.codes[addr] = code

	// An all-zero answer is an account the chain has never seen.
	if balance.Sign() == 0 && nonce == 0 && len(code) == 0 {
		r.accounts[addr] = nil
		return nil, nil
	}
	acct := &state.Account{
		Nonce:    nonce,
		Balance:  balance,
		CodeHash: types.EmptyCodeHash,
	}
	if len(code) > 0 {
		acct.CodeHash = types.Hash(crypto.Keccak256Array(code))
	}
	r.accounts[addr] = acct
	return acct.Copy(), nil
}

func (r *ForkReader) Code(addr types.Address) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if code, ok := r.codes[addr]; ok {
		return code, nil
	}
	code, err := r.client.CodeAt(context.Background(), addr, r.block)
	if err != nil {
		return nil, err
	}
	r.fetches++
	r.codes[addr] = code
	return code, nil
}

func (r *ForkReader) Storage(addr types.Address, key types.Hash) (types.Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slots, ok := r.storage[addr]
	if !ok {
		slots = make(map[types.Hash]types.Hash)
		r.storage[addr] = slots
	}
	if value, ok := slots[key]; ok {
		return value, nil
	}
	value, err := r.client.StorageAt(context.Background(), addr, key, r.block)
	if err != nil {
		return types.Hash{}, err
	}
	r.fetches++
	slots[key] = value
	return value, nil
}

// Prefetch seeds the account memo, used by the fork warmer to avoid a
// burst of lazy reads on first use.
func (r *ForkReader) Prefetch(addrs []types.Address) {
	for _, addr := range addrs {
		_, _ = r.Account(addr)
	}
}
