package core

import "math/big"

func newUint64(v uint64) *uint64 { return &v }

// Hardfork activation tables for the chains the node can fork from.
var (
	// MainnetChainConfig is the L1 mainnet schedule.
	MainnetChainConfig = &ChainConfig{
		ChainID:             big.NewInt(1),
		HomesteadBlock:      big.NewInt(1_150_000),
		EIP150Block:         big.NewInt(2_463_000),
		EIP155Block:         big.NewInt(2_675_000),
		EIP158Block:         big.NewInt(2_675_000),
		ByzantiumBlock:      big.NewInt(4_370_000),
		ConstantinopleBlock: big.NewInt(7_280_000),
		PetersburgBlock:     big.NewInt(7_280_000),
		IstanbulBlock:       big.NewInt(9_069_000),
		MuirGlacierBlock:    big.NewInt(9_200_000),
		BerlinBlock:         big.NewInt(12_244_000),
		LondonBlock:         big.NewInt(12_965_000),
		ArrowGlacierBlock:   big.NewInt(13_773_000),
		GrayGlacierBlock:    big.NewInt(15_050_000),
		MergeBlock:          big.NewInt(15_537_394),
		ShanghaiTime:        newUint64(1_681_338_455),
		CancunTime:          newUint64(1_710_338_135),
		PragueTime:          newUint64(1_746_612_311),
	}

	// SepoliaChainConfig is the Sepolia testnet schedule.
	SepoliaChainConfig = &ChainConfig{
		ChainID:             big.NewInt(11155111),
		HomesteadBlock:      big.NewInt(0),
		EIP150Block:         big.NewInt(0),
		EIP155Block:         big.NewInt(0),
		EIP158Block:         big.NewInt(0),
		ByzantiumBlock:      big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock:     big.NewInt(0),
		IstanbulBlock:       big.NewInt(0),
		MuirGlacierBlock:    big.NewInt(0),
		BerlinBlock:         big.NewInt(0),
		LondonBlock:         big.NewInt(0),
		MergeBlock:          big.NewInt(1_735_371),
		ShanghaiTime:        newUint64(1_677_557_088),
		CancunTime:          newUint64(1_706_655_072),
		PragueTime:          newUint64(1_741_159_776),
	}

	// OPMainnetChainConfig is OP mainnet post-bedrock.
	OPMainnetChainConfig = &ChainConfig{
		ChainID:             big.NewInt(10),
		HomesteadBlock:      big.NewInt(0),
		EIP150Block:         big.NewInt(0),
		EIP155Block:         big.NewInt(0),
		EIP158Block:         big.NewInt(0),
		ByzantiumBlock:      big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock:     big.NewInt(0),
		IstanbulBlock:       big.NewInt(0),
		MuirGlacierBlock:    big.NewInt(0),
		BerlinBlock:         big.NewInt(0),
		LondonBlock:         big.NewInt(105_235_063),
		MergeBlock:          big.NewInt(105_235_063),
		ShanghaiTime:        newUint64(1_704_992_401),
		CancunTime:          newUint64(1_710_374_401),
		PragueTime:          newUint64(1_746_806_401),
		Optimism:            true,
		BaseFeeParams:       &BaseFeeParams{Denominator: 250, Elasticity: 6},
	}

	// OPSepoliaChainConfig is the OP Sepolia testnet.
	OPSepoliaChainConfig = &ChainConfig{
		ChainID:             big.NewInt(11155420),
		HomesteadBlock:      big.NewInt(0),
		EIP150Block:         big.NewInt(0),
		EIP155Block:         big.NewInt(0),
		EIP158Block:         big.NewInt(0),
		ByzantiumBlock:      big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock:     big.NewInt(0),
		IstanbulBlock:       big.NewInt(0),
		MuirGlacierBlock:    big.NewInt(0),
		BerlinBlock:         big.NewInt(0),
		LondonBlock:         big.NewInt(0),
		MergeBlock:          big.NewInt(0),
		ShanghaiTime:        newUint64(1_699_981_200),
		CancunTime:          newUint64(1_708_534_800),
		PragueTime:          newUint64(1_744_905_600),
		Optimism:            true,
		BaseFeeParams:       &BaseFeeParams{Denominator: 250, Elasticity: 6},
	}

	// BaseMainnetChainConfig is Base mainnet, live since bedrock.
	BaseMainnetChainConfig = &ChainConfig{
		ChainID:             big.NewInt(8453),
		HomesteadBlock:      big.NewInt(0),
		EIP150Block:         big.NewInt(0),
		EIP155Block:         big.NewInt(0),
		EIP158Block:         big.NewInt(0),
		ByzantiumBlock:      big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock:     big.NewInt(0),
		IstanbulBlock:       big.NewInt(0),
		MuirGlacierBlock:    big.NewInt(0),
		BerlinBlock:         big.NewInt(0),
		LondonBlock:         big.NewInt(0),
		MergeBlock:          big.NewInt(0),
		ShanghaiTime:        newUint64(1_704_992_401),
		CancunTime:          newUint64(1_710_374_401),
		PragueTime:          newUint64(1_746_806_401),
		Optimism:            true,
		BaseFeeParams:       &BaseFeeParams{Denominator: 250, Elasticity: 6},
	}
)

var knownChains = map[uint64]*ChainConfig{
	1:        MainnetChainConfig,
	11155111: SepoliaChainConfig,
	10:       OPMainnetChainConfig,
	11155420: OPSepoliaChainConfig,
	8453:     BaseMainnetChainConfig,
}

// KnownChainConfig returns the activation table for a chain id, or
// false for chains the node has no table for.
func KnownChainConfig(chainID uint64) (*ChainConfig, bool) {
	cfg, ok := knownChains[chainID]
	return cfg, ok
}

// DevChainConfig builds the local chain config with every fork active
// from genesis.
func DevChainConfig(chainID uint64) *ChainConfig {
	return &ChainConfig{
		ChainID:             new(big.Int).SetUint64(chainID),
		HomesteadBlock:      big.NewInt(0),
		EIP150Block:         big.NewInt(0),
		EIP155Block:         big.NewInt(0),
		EIP158Block:         big.NewInt(0),
		ByzantiumBlock:      big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock:     big.NewInt(0),
		IstanbulBlock:       big.NewInt(0),
		MuirGlacierBlock:    big.NewInt(0),
		BerlinBlock:         big.NewInt(0),
		LondonBlock:         big.NewInt(0),
		MergeBlock:          big.NewInt(0),
		ShanghaiTime:        newUint64(0),
		CancunTime:          newUint64(0),
		PragueTime:          newUint64(0),
	}
}
