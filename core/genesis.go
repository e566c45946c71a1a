package core

import (
	"math/big"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/state"
)

// DefaultGenesisGasLimit is the block gas limit when none is
// configured.
const DefaultGenesisGasLimit uint64 = 30_000_000

// GenesisAccount is one pre-funded account in the genesis allocation.
type GenesisAccount struct {
	Balance *big.Int                  `json:"balance"`
	Code    []byte                    `json:"code,omitempty"`
	Nonce   uint64                    `json:"nonce,omitempty"`
	Storage map[types.Hash]types.Hash `json:"storage,omitempty"`
}

// Genesis specifies block zero of a local chain.
type Genesis struct {
	Config     *ChainConfig
	Timestamp  uint64
	GasLimit   uint64
	BaseFee    *big.Int
	Coinbase   types.Address
	PrevRandao types.Hash
	Alloc      map[types.Address]GenesisAccount
}

// Commit writes the allocation into store and returns the genesis
// block together with its state diff.
func (g *Genesis) Commit(store *state.Store) (*types.Block, state.Diff, error) {
	statedb := state.New(store)
	for addr, account := range g.Alloc {
		statedb.CreateAccount(addr)
		if account.Balance != nil {
			statedb.SetBalance(addr, account.Balance)
		}
		statedb.SetNonce(addr, account.Nonce)
		if len(account.Code) > 0 {
			statedb.SetCode(addr, account.Code)
		}
		for key, value := range account.Storage {
			statedb.SetState(addr, key, value)
		}
	}
	statedb.Finalise()
	diff := statedb.BuildDiff()
	store.Commit(diff)
	root, err := store.StateRoot()
	if err != nil {
		return nil, nil, err
	}
	gasLimit := g.GasLimit
	if gasLimit == 0 {
		gasLimit = DefaultGenesisGasLimit
	}
	number := new(big.Int)
	header := &types.Header{
		Root:        root,
		TxHash:      types.EmptyRootHash,
		ReceiptHash: types.EmptyRootHash,
		UncleHash:   types.EmptyUncleHash,
		Coinbase:    g.Coinbase,
		Number:      number,
		GasLimit:    gasLimit,
		Time:        g.Timestamp,
		MixDigest:   g.PrevRandao,
		Difficulty:  new(big.Int),
	}
	if !g.Config.IsMerge(number) {
		header.Difficulty = new(big.Int).Set(minimumDifficulty)
	}
	if g.Config.IsLondon(number) {
		if g.BaseFee != nil {
			header.BaseFee = new(big.Int).Set(g.BaseFee)
		} else {
			header.BaseFee = new(big.Int).SetUint64(InitialBaseFee)
		}
	}
	body := &types.Body{}
	if g.Config.IsShanghai(number, g.Timestamp) {
		wroot := types.EmptyRootHash
		header.WithdrawalsHash = &wroot
		body.Withdrawals = types.Withdrawals{}
	}
	if g.Config.IsCancun(number, g.Timestamp) {
		zero := uint64(0)
		header.BlobGasUsed = &zero
		excess := uint64(0)
		header.ExcessBlobGas = &excess
		beaconRoot := types.Hash{}
		header.ParentBeaconRoot = &beaconRoot
	}
	if g.Config.IsPrague(number, g.Timestamp) {
		empty := types.EmptyRequestsHash
		header.RequestsHash = &empty
	}
	return types.NewBlock(header, body), diff, nil
}
