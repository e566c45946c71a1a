package core

import (
	"errors"
	"math/big"
	"testing"

	"github.com/devchain-eth/devchain/core/types"
)

func TestDevChainConfigAllForksActive(t *testing.T) {
	config := DevChainConfig(31337)
	zero := big.NewInt(0)
	if !config.IsLondon(zero) || !config.IsMerge(zero) {
		t.Error("london and merge must be active at genesis")
	}
	if !config.IsShanghai(zero, 0) || !config.IsCancun(zero, 0) || !config.IsPrague(zero, 0) {
		t.Error("timestamp forks must be active at genesis")
	}
	if config.LatestFork(zero, 0) != "prague" {
		t.Errorf("latest fork = %s, want prague", config.LatestFork(zero, 0))
	}
}

func TestMainnetForkSchedule(t *testing.T) {
	config := MainnetChainConfig
	tests := []struct {
		name   string
		num    int64
		time   uint64
		active func(num *big.Int, time uint64) bool
		want   bool
	}{
		{"london before", 12_964_999, 0, func(n *big.Int, _ uint64) bool { return config.IsLondon(n) }, false},
		{"london at", 12_965_000, 0, func(n *big.Int, _ uint64) bool { return config.IsLondon(n) }, true},
		{"merge before", 15_537_393, 0, func(n *big.Int, _ uint64) bool { return config.IsMerge(n) }, false},
		{"merge at", 15_537_394, 0, func(n *big.Int, _ uint64) bool { return config.IsMerge(n) }, true},
		{"shanghai before", 17_000_000, 1_681_338_454, config.IsShanghai, false},
		{"shanghai at", 17_000_000, 1_681_338_455, config.IsShanghai, true},
		{"cancun at", 19_000_000, 1_710_338_135, config.IsCancun, true},
		{"prague at", 22_000_000, 1_746_612_311, config.IsPrague, true},
	}
	for _, tt := range tests {
		if got := tt.active(big.NewInt(tt.num), tt.time); got != tt.want {
			t.Errorf("%s: active = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSupportsType(t *testing.T) {
	dev := DevChainConfig(31337)
	zero := big.NewInt(0)

	for txType := byte(0x00); txType <= 0x04; txType++ {
		if err := dev.SupportsType(txType, zero, 0); err != nil {
			t.Errorf("type %#x rejected on dev chain: %v", txType, err)
		}
	}
	if err := dev.SupportsType(0x7e, zero, 0); !errors.Is(err, types.ErrTxTypeNotSupported) {
		t.Errorf("deposit on non-op chain: err = %v, want ErrTxTypeNotSupported", err)
	}
	if err := dev.SupportsType(0x50, zero, 0); !errors.Is(err, types.ErrTxTypeNotSupported) {
		t.Errorf("unknown type: err = %v, want ErrTxTypeNotSupported", err)
	}

	op := DevChainConfig(10)
	op.Optimism = true
	if err := op.SupportsType(0x7e, zero, 0); err != nil {
		t.Errorf("deposit rejected on op chain: %v", err)
	}

	// Pre-London chains reject dynamic fee transactions.
	old := DevChainConfig(31337)
	old.LondonBlock = big.NewInt(100)
	if err := old.SupportsType(0x02, zero, 0); !errors.Is(err, types.ErrTxTypeNotSupported) {
		t.Errorf("dynamic fee tx pre-london: err = %v, want ErrTxTypeNotSupported", err)
	}
}

func TestKnownChainConfig(t *testing.T) {
	for _, id := range []uint64{1, 10, 8453, 11155111, 11155420} {
		cfg, ok := KnownChainConfig(id)
		if !ok {
			t.Errorf("chain %d missing", id)
			continue
		}
		if cfg.ChainID.Uint64() != id {
			t.Errorf("chain %d config has id %s", id, cfg.ChainID)
		}
	}
	if _, ok := KnownChainConfig(424242); ok {
		t.Error("unknown chain id must not resolve")
	}
}

func TestRulesFlattening(t *testing.T) {
	op := DevChainConfig(10)
	op.Optimism = true
	rules := op.Rules(big.NewInt(0), 0)
	if !rules.IsPrague || !rules.IsCancun || !rules.IsOptimism {
		t.Error("rules lost fork flags")
	}
	if rules.ChainID.Uint64() != 10 {
		t.Errorf("rules chain id = %s", rules.ChainID)
	}
}
