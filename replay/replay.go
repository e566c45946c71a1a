// Package replay re-executes real remote blocks on a fork pinned to
// their parent and compares the rebuilt results against the originals.
// It drives hardfork regression checks without any local mining.
package replay

import (
	"context"
	"fmt"

	"github.com/devchain-eth/devchain/blockchain"
	"github.com/devchain-eth/devchain/core"
	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/core/vm"
	"github.com/devchain-eth/devchain/log"
	"github.com/devchain-eth/devchain/remote"
)

// Report summarizes one block replay. A clean replay has no
// mismatches.
type Report struct {
	BlockNumber uint64
	TxCount     int

	GasUsed       uint64
	RemoteGasUsed uint64

	Mismatches []string
}

// OK reports whether the replay reproduced the remote block.
func (r *Report) OK() bool { return len(r.Mismatches) == 0 }

func (r *Report) mismatch(format string, args ...interface{}) {
	r.Mismatches = append(r.Mismatches, fmt.Sprintf(format, args...))
}

// Replayer runs remote blocks through the local execution pipeline.
type Replayer struct {
	client remote.Client
	config *core.ChainConfig
	logger *log.Logger

	// RootSeed feeds the fabricated state-root generator of the
	// replay fork. Any stable string works; roots are not compared.
	RootSeed string
}

func New(client remote.Client, config *core.ChainConfig) *Replayer {
	return &Replayer{
		client:   client,
		config:   config,
		logger:   log.Module("replay"),
		RootSeed: "replay state root",
	}
}

// Block re-executes block number on a fork pinned at number-1 and
// compares gas usage, receipts root, bloom and per-receipt fields.
// State roots are not compared; the fork store fabricates them.
func (r *Replayer) Block(ctx context.Context, number uint64) (*Report, error) {
	if number == 0 {
		return nil, fmt.Errorf("replay: genesis block has no parent to pin")
	}
	chain, err := blockchain.NewForked(ctx, r.config, r.client, number-1, r.RootSeed)
	if err != nil {
		return nil, fmt.Errorf("replay: pinning fork at %d: %w", number-1, err)
	}
	remoteBlock, err := r.client.BlockByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("replay: fetching block %d: %w", number, err)
	}
	parent, err := chain.Head(ctx)
	if err != nil {
		return nil, err
	}

	remoteHeader := remoteBlock.RawHeader()
	report := &Report{
		BlockNumber:   number,
		TxCount:       len(remoteBlock.Transactions()),
		RemoteGasUsed: remoteHeader.GasUsed,
	}

	getHash := func(n uint64) types.Hash {
		hash, err := chain.BlockHashByNumber(ctx, n)
		if err != nil {
			return types.Hash{}
		}
		return hash
	}
	builder := core.NewBlockBuilder(r.config, chain.Store(), parent.RawHeader(), core.BuildOptions{
		Coinbase:         remoteHeader.Coinbase,
		GasLimit:         remoteHeader.GasLimit,
		Timestamp:        remoteHeader.Time,
		PrevRandao:       remoteHeader.MixDigest,
		BaseFee:          remoteHeader.BaseFee,
		ParentBeaconRoot: remoteHeader.ParentBeaconRoot,
	}, getHash, vm.Config{})

	for i, tx := range remoteBlock.Transactions() {
		if _, err := builder.AddTransaction(tx); err != nil {
			report.mismatch("tx %d (%s) failed to execute: %v", i, tx.Hash().Hex(), err)
			r.logger.Warn("replay aborted", "block", number, "tx", i, "err", err)
			return report, nil
		}
	}
	block, receipts, _, err := builder.Finalize(remoteBlock.Withdrawals())
	if err != nil {
		return nil, fmt.Errorf("replay: sealing block %d: %w", number, err)
	}
	report.GasUsed = block.GasUsed()

	header := block.RawHeader()
	if header.GasUsed != remoteHeader.GasUsed {
		report.mismatch("gasUsed: got %d, remote %d", header.GasUsed, remoteHeader.GasUsed)
	}
	if header.ReceiptHash != remoteHeader.ReceiptHash {
		report.mismatch("receiptsRoot: got %s, remote %s",
			header.ReceiptHash.Hex(), remoteHeader.ReceiptHash.Hex())
	}
	if header.Bloom != remoteHeader.Bloom {
		report.mismatch("logsBloom differs")
	}
	r.compareReceipts(ctx, number, receipts, report)

	if report.OK() {
		r.logger.Info("block replayed cleanly", "block", number, "txs", report.TxCount, "gasUsed", report.GasUsed)
	} else {
		r.logger.Warn("block replay mismatch", "block", number, "mismatches", len(report.Mismatches))
	}
	return report, nil
}

// compareReceipts checks per-transaction status, gas and log counts
// against the remote receipts. Missing remote receipts are skipped.
func (r *Replayer) compareReceipts(ctx context.Context, number uint64, local types.Receipts, report *Report) {
	remoteReceipts, err := r.client.BlockReceipts(ctx, number)
	if err != nil {
		r.logger.Warn("remote receipts unavailable", "block", number, "err", err)
		return
	}
	if len(remoteReceipts) != len(local) {
		report.mismatch("receipt count: got %d, remote %d", len(local), len(remoteReceipts))
		return
	}
	for i, got := range local {
		want := remoteReceipts[i]
		if got.Status != want.Status {
			report.mismatch("receipt %d status: got %d, remote %d", i, got.Status, want.Status)
		}
		if got.GasUsed != want.GasUsed {
			report.mismatch("receipt %d gasUsed: got %d, remote %d", i, got.GasUsed, want.GasUsed)
		}
		if got.CumulativeGasUsed != want.CumulativeGasUsed {
			report.mismatch("receipt %d cumulativeGasUsed: got %d, remote %d",
				i, got.CumulativeGasUsed, want.CumulativeGasUsed)
		}
		if len(got.Logs) != len(want.Logs) {
			report.mismatch("receipt %d log count: got %d, remote %d", i, len(got.Logs), len(want.Logs))
		}
	}
}

// Range replays [from, to] and returns the first failing report, or
// the last report when every block replays cleanly.
func (r *Replayer) Range(ctx context.Context, from, to uint64) (*Report, error) {
	var last *Report
	for n := from; n <= to; n++ {
		report, err := r.Block(ctx, n)
		if err != nil {
			return nil, err
		}
		if !report.OK() {
			return report, nil
		}
		last = report
	}
	return last, nil
}
