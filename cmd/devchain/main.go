// Command devchain runs the development node: an in-process provider
// session behind a JSON-RPC HTTP server.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/log"
	"github.com/devchain-eth/devchain/provider"
	"github.com/devchain-eth/devchain/rpc"
)

const envPrefix = "DEVCHAIN"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "devchain: %v\n", err)
		os.Exit(1)
	}
}

func buildFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("devchain", pflag.ContinueOnError)
	fs.String("config", "", "optional config file (yaml/json/toml)")
	fs.String("http-addr", "127.0.0.1:8545", "JSON-RPC listen address")
	fs.String("log-level", "info", "log level (debug|info|warn|error)")

	fs.Uint64("chain-id", 31337, "chain id of the session")
	fs.Uint64("network-id", 0, "network id for net_version (0 = chain id)")
	fs.Uint64("gas-limit", 0, "block gas limit (0 = default)")
	fs.String("coinbase", "", "block coinbase address")
	fs.Bool("automine", true, "mine a block after every transaction")
	fs.Uint64("interval-mining", 0, "mine on a fixed interval, milliseconds (0 = off)")
	fs.String("min-gas-price", "", "mempool fee floor in wei (empty = none)")
	fs.Uint64("genesis-timestamp", 0, "genesis block timestamp (0 = now)")
	fs.String("balance", "", "dev account balance in wei (empty = default)")

	fs.String("fork-url", "", "JSON-RPC endpoint to fork from")
	fs.Uint64("fork-block", 0, "fork block number (0 = latest)")
	fs.String("cache-dir", "", "remote request cache directory")
	return fs
}

// buildConfig merges flags over an optional config file over defaults.
func buildConfig(fs *pflag.FlagSet) (provider.Config, string, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return provider.Config{}, "", err
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return provider.Config{}, "", fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := provider.Config{
		ChainID:          v.GetUint64("chain-id"),
		NetworkID:        v.GetUint64("network-id"),
		BlockGasLimit:    v.GetUint64("gas-limit"),
		AutoMine:         v.GetBool("automine"),
		GenesisTimestamp: v.GetUint64("genesis-timestamp"),
		ForkURL:          v.GetString("fork-url"),
		ForkBlock:        v.GetUint64("fork-block"),
		CacheDir:         v.GetString("cache-dir"),
	}
	if s := v.GetString("coinbase"); s != "" {
		addr, err := parseAddress(s)
		if err != nil {
			return provider.Config{}, "", fmt.Errorf("invalid coinbase: %w", err)
		}
		cfg.Coinbase = addr
	}
	if s := v.GetString("min-gas-price"); s != "" {
		price, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return provider.Config{}, "", fmt.Errorf("invalid min-gas-price %q", s)
		}
		cfg.MinGasPrice = price
	}
	if s := v.GetString("balance"); s != "" {
		balance, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return provider.Config{}, "", fmt.Errorf("invalid balance %q", s)
		}
		cfg.AccountBalance = balance
	}
	return cfg, v.GetString("log-level"), nil
}

func parseAddress(s string) (types.Address, error) {
	var addr types.Address
	if err := addr.UnmarshalText([]byte(s)); err != nil {
		return types.Address{}, err
	}
	return addr, nil
}

func run() error {
	fs := buildFlags()
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	cfg, level, err := buildConfig(fs)
	if err != nil {
		return err
	}
	log.SetDefault(log.New(log.ParseLevel(level)))
	logger := log.Module("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := provider.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	if interval, err := fs.GetUint64("interval-mining"); err == nil && interval > 0 {
		if _, rpcErr := p.Handle(ctx, "evm_setIntervalMining",
			[]byte(fmt.Sprintf("[%d]", interval))); rpcErr != nil {
			return fmt.Errorf("enabling interval mining: %s", rpcErr.Message)
		}
	}

	server := rpc.NewServer(p)
	addr := viperAddr(fs)
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe(addr) }()
	logger.Info("devchain started", "addr", addr, "chainId", cfg.ChainID, "forked", cfg.ForkURL != "")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func viperAddr(fs *pflag.FlagSet) string {
	addr, err := fs.GetString("http-addr")
	if err != nil || addr == "" {
		return "127.0.0.1:8545"
	}
	return addr
}
