package provider

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/devchain-eth/devchain/core"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
	"github.com/devchain-eth/devchain/crypto"
)

// ClientVersion is reported by web3_clientVersion.
const ClientVersion = "devchain/v0.1.0"

// devAccountKeys are the well-known development account keys derived
// from the standard test mnemonic. They are public knowledge and must
// never hold real funds.
var devAccountKeys = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
	"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
	"47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a",
	"8b3a350cf5c34c9194ca85829a2df0ec3153be0318b5e2d3348e872092edffba",
	"92db14e403b83dfe3df233f83dfa3a0d7096f21ca9b0d6d6b8d88b2b4ec1564e",
	"4bbbf85ce3377467afe5d46f804f221813b2bb87f24d81f60f1fcdbf7cbf4356",
	"dbda1821b80551c9d65939329250298aa3472ba22feea921c0cf5d620ea67b97",
	"2a871d0798f97d79848a013d4936a73bf4cc922c825d33c1cf7073dff6d409c6",
	"f214f2b2cd398c806f84e317254e0f0b801d0643303237d97a22a48e01628897",
	"701b615bbdfb9de65240bc28bd21bbc0d996645a3dd57e7b12bc2bdf6f192c82",
	"a267530f49f8280200edf313ee7af6b827f2a8bce2897751d06a843f644967b1",
	"47c99abed3324a2707c28affff1267e45918ec8c3f20b8aa892e8b065d2942dd",
	"c526ee95bf44d8fc405a158bb884d9d1238d99f0612e9f33d006bb0789009aaa",
	"8166f546bab6da521a8369cab06c5d2b9e46670292d85c875ee9ec20e84ffb61",
	"ea6c44ac03bff858b476bba40716402b03e41b8e97e276d1baec7c37d42484a0",
	"689af8efa8c651a91ad287602527f3af2fe9f6501a7ac4b061667b5a93e037fd",
	"de9be858da4a475276426320d5e9262ecfc3ba460bfac56360bfa6c4c28b4ee0",
	"df57089febbacf7ba0bc227dafbffa9fc08a93fdc68e1e42411a14efcf23656e",
}

// DefaultAccountBalance is 10000 ether, matching the usual dev-node
// genesis allocation.
var DefaultAccountBalance = new(big.Int).Mul(big.NewInt(10_000), big.NewInt(1e18))

// Config parameterizes a provider session. Values are latched at New;
// later changes go through the hardhat_/evm_ methods.
type Config struct {
	// ChainID selects the chain configuration. When it matches a known
	// chain the full activation schedule is used, otherwise every fork
	// is active from genesis.
	ChainID uint64

	// NetworkID is reported by net_version; defaults to ChainID.
	NetworkID uint64

	// AccountKeys are hex private keys of the unlocked dev accounts.
	// Empty means the standard 20 test accounts.
	AccountKeys []string

	// AccountBalance funds each dev account at genesis; nil means
	// DefaultAccountBalance.
	AccountBalance *big.Int

	// GenesisAlloc adds extra genesis accounts on top of the dev set.
	GenesisAlloc map[types.Address]core.GenesisAccount

	// GenesisTimestamp is the genesis block time; zero means the clock
	// reading at construction.
	GenesisTimestamp uint64

	BlockGasLimit uint64
	Coinbase      types.Address

	// AutoMine mines a block immediately after each admitted
	// transaction.
	AutoMine bool

	// MinGasPrice is the mempool admission fee floor, nil to disable.
	MinGasPrice *big.Int

	// InitialBaseFee overrides the genesis base fee.
	InitialBaseFee *big.Int

	// ForkURL attaches the session to a remote chain. ForkBlock zero
	// means the latest remote block at construction.
	ForkURL   string
	ForkBlock uint64

	// CacheDir holds the remote request cache; empty disables it.
	CacheDir string

	// StateRootSeed and PrevRandaoSeed make forked-session hash
	// fabrication reproducible.
	StateRootSeed  string
	PrevRandaoSeed string

	// SkipUnsupportedTransactions makes debug tracing skip transaction
	// types the local chain cannot replay instead of failing. Lossy.
	SkipUnsupportedTransactions bool

	// ExtraPrecompiles installs additional precompiled contracts in
	// every EVM the session runs, on top of the fork's native set. An
	// entry at a native address wins.
	ExtraPrecompiles map[types.Address]vm.PrecompiledContract

	// Clock supplies "now"; nil means the system clock.
	Clock Clock
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ChainID == 0 {
		out.ChainID = 31337
	}
	if out.NetworkID == 0 {
		out.NetworkID = out.ChainID
	}
	if len(out.AccountKeys) == 0 {
		out.AccountKeys = devAccountKeys
	}
	if out.AccountBalance == nil {
		out.AccountBalance = DefaultAccountBalance
	}
	if out.BlockGasLimit == 0 {
		out.BlockGasLimit = core.DefaultGenesisGasLimit
	}
	if out.StateRootSeed == "" {
		out.StateRootSeed = "devchain state root"
	}
	if out.PrevRandaoSeed == "" {
		out.PrevRandaoSeed = "devchain prev randao"
	}
	if out.Clock == nil {
		out.Clock = SystemClock{}
	}
	return out
}

// chainConfig resolves the session's chain configuration.
func (c *Config) chainConfig() *core.ChainConfig {
	if config, ok := core.KnownChainConfig(c.ChainID); ok {
		return config
	}
	return core.DevChainConfig(c.ChainID)
}

// parseAccounts decodes the configured dev account keys.
func (c *Config) parseAccounts() ([]types.Address, map[types.Address]*ecdsa.PrivateKey, error) {
	order := make([]types.Address, 0, len(c.AccountKeys))
	keys := make(map[types.Address]*ecdsa.PrivateKey, len(c.AccountKeys))
	for i, hexkey := range c.AccountKeys {
		key, err := crypto.HexToECDSA(hexkey)
		if err != nil {
			return nil, nil, fmt.Errorf("provider: account key %d: %w", i, err)
		}
		addr := types.Address(crypto.PubkeyToAddress(key.PublicKey))
		order = append(order, addr)
		keys[addr] = key
	}
	return order, keys, nil
}

// genesis assembles the genesis specification for a local session.
func (c *Config) genesis(config *core.ChainConfig, accounts []types.Address, timestamp uint64) *core.Genesis {
	alloc := make(map[types.Address]core.GenesisAccount, len(accounts)+len(c.GenesisAlloc))
	for _, addr := range accounts {
		alloc[addr] = core.GenesisAccount{Balance: new(big.Int).Set(c.AccountBalance)}
	}
	for addr, account := range c.GenesisAlloc {
		alloc[addr] = account
	}
	return &core.Genesis{
		Config:    config,
		Timestamp: timestamp,
		GasLimit:  c.BlockGasLimit,
		BaseFee:   c.InitialBaseFee,
		Coinbase:  c.Coinbase,
		Alloc:     alloc,
	}
}
