// Package remote implements the JSON-RPC client a forked chain reads
// through. Responses keyed by immutable data (historic blocks, mined
// transactions, pinned account state) are cached write-once on disk;
// latest-relative queries always hit the endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/devchain-eth/devchain/core/types"
	"github.com/devchain-eth/devchain/log"
	"github.com/devchain-eth/devchain/rpc"
)

var (
	// ErrNotFound is returned when the endpoint answers null for a
	// block, transaction or receipt lookup.
	ErrNotFound = errors.New("remote: not found")

	errHashMismatch = errors.New("remote: reconstructed hash mismatch")
)

// defaultTimeout bounds a single request when the caller's context
// carries no deadline.
const defaultTimeout = 30 * time.Second

// Client is the remote endpoint surface a forked chain consumes.
type Client interface {
	// ChainID returns the endpoint's chain id, latched at dial time.
	ChainID() uint64

	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)
	BlockByHash(ctx context.Context, hash types.Hash) (*types.Block, error)
	LatestBlock(ctx context.Context) (*types.Block, error)
	TransactionByHash(ctx context.Context, hash types.Hash) (*TransactionEntry, error)
	TransactionReceipt(ctx context.Context, hash types.Hash) (*types.Receipt, error)
	BlockReceipts(ctx context.Context, number uint64) (types.Receipts, error)
	Logs(ctx context.Context, query LogQuery) ([]*types.Log, error)

	BalanceAt(ctx context.Context, addr types.Address, block uint64) (*big.Int, error)
	NonceAt(ctx context.Context, addr types.Address, block uint64) (uint64, error)
	CodeAt(ctx context.Context, addr types.Address, block uint64) ([]byte, error)
	StorageAt(ctx context.Context, addr types.Address, key types.Hash, block uint64) (types.Hash, error)
	FeeHistory(ctx context.Context, blockCount, newest uint64, percentiles []float64) (*FeeHistory, error)
}

// HTTPClient talks JSON-RPC over HTTP with a write-once disk cache.
type HTTPClient struct {
	url     string
	chainID uint64
	http    *http.Client
	cache   *diskCache
	logger  *log.Logger
	nextID  atomic.Uint64
}

var _ Client = (*HTTPClient)(nil)

// Dial probes the endpoint's chain id and roots the disk cache under
// cacheDir. An empty cacheDir disables caching.
func Dial(ctx context.Context, url, cacheDir string) (*HTTPClient, error) {
	c := &HTTPClient{
		url:    url,
		http:   &http.Client{},
		logger: log.Module("remote"),
	}
	var id rpc.Uint64
	if err := c.call(ctx, &id, "", "eth_chainId"); err != nil {
		return nil, fmt.Errorf("remote: probing chain id: %w", err)
	}
	c.chainID = uint64(id)
	c.cache = newDiskCache(cacheDir, c.chainID)
	c.logger.Info("connected to remote endpoint", "url", url, "chainId", c.chainID)
	return c, nil
}

func (c *HTTPClient) ChainID() uint64 { return c.chainID }

func (c *HTTPClient) BlockNumber(ctx context.Context) (uint64, error) {
	var out rpc.Uint64
	if err := c.call(ctx, &out, "", "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

func (c *HTTPClient) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	var raw rpcBlock
	scope := rpc.EncodeUint64(number)
	if err := c.call(ctx, &raw, scope, "eth_getBlockByNumber", rpc.EncodeUint64(number), true); err != nil {
		return nil, err
	}
	return raw.toBlock()
}

func (c *HTTPClient) BlockByHash(ctx context.Context, hash types.Hash) (*types.Block, error) {
	var raw rpcBlock
	if err := c.call(ctx, &raw, "hash", "eth_getBlockByHash", hash, true); err != nil {
		return nil, err
	}
	return raw.toBlock()
}

func (c *HTTPClient) LatestBlock(ctx context.Context) (*types.Block, error) {
	var raw rpcBlock
	if err := c.call(ctx, &raw, "", "eth_getBlockByNumber", "latest", true); err != nil {
		return nil, err
	}
	return raw.toBlock()
}

func (c *HTTPClient) TransactionByHash(ctx context.Context, hash types.Hash) (*TransactionEntry, error) {
	var raw rpcTransaction
	if err := c.call(ctx, &raw, "hash", "eth_getTransactionByHash", hash); err != nil {
		return nil, err
	}
	tx, err := raw.toTransaction()
	if err != nil {
		return nil, err
	}
	entry := &TransactionEntry{Tx: tx, From: raw.From, BlockHash: raw.BlockHash}
	if raw.BlockNumber != nil {
		n := uint64(*raw.BlockNumber)
		entry.BlockNumber = &n
	}
	if raw.TransactionIndex != nil {
		i := uint64(*raw.TransactionIndex)
		entry.Index = &i
	}
	return entry, nil
}

func (c *HTTPClient) TransactionReceipt(ctx context.Context, hash types.Hash) (*types.Receipt, error) {
	var raw rpcReceipt
	if err := c.call(ctx, &raw, "hash", "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	return raw.toReceipt(), nil
}

func (c *HTTPClient) BlockReceipts(ctx context.Context, number uint64) (types.Receipts, error) {
	var raw []rpcReceipt
	scope := rpc.EncodeUint64(number)
	if err := c.call(ctx, &raw, scope, "eth_getBlockReceipts", rpc.EncodeUint64(number)); err != nil {
		return nil, err
	}
	out := make(types.Receipts, len(raw))
	for i := range raw {
		out[i] = raw[i].toReceipt()
	}
	return out, nil
}

func (c *HTTPClient) Logs(ctx context.Context, query LogQuery) ([]*types.Log, error) {
	var raw []rpcLog
	scope := rpc.EncodeUint64(query.ToBlock)
	if err := c.call(ctx, &raw, scope, "eth_getLogs", query.toFilter()); err != nil {
		return nil, err
	}
	out := make([]*types.Log, len(raw))
	for i := range raw {
		out[i] = raw[i].toLog()
	}
	return out, nil
}

func (c *HTTPClient) BalanceAt(ctx context.Context, addr types.Address, block uint64) (*big.Int, error) {
	var out rpc.Big
	scope := rpc.EncodeUint64(block)
	if err := c.call(ctx, &out, scope, "eth_getBalance", addr, rpc.EncodeUint64(block)); err != nil {
		return nil, err
	}
	return out.ToInt(), nil
}

func (c *HTTPClient) NonceAt(ctx context.Context, addr types.Address, block uint64) (uint64, error) {
	var out rpc.Uint64
	scope := rpc.EncodeUint64(block)
	if err := c.call(ctx, &out, scope, "eth_getTransactionCount", addr, rpc.EncodeUint64(block)); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

func (c *HTTPClient) CodeAt(ctx context.Context, addr types.Address, block uint64) ([]byte, error) {
	var out rpc.Bytes
	scope := rpc.EncodeUint64(block)
	if err := c.call(ctx, &out, scope, "eth_getCode", addr, rpc.EncodeUint64(block)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) StorageAt(ctx context.Context, addr types.Address, key types.Hash, block uint64) (types.Hash, error) {
	var out rpc.Bytes
	scope := rpc.EncodeUint64(block)
	if err := c.call(ctx, &out, scope, "eth_getStorageAt", addr, key, rpc.EncodeUint64(block)); err != nil {
		return types.Hash{}, err
	}
	return types.BytesToHash(out), nil
}

func (c *HTTPClient) FeeHistory(ctx context.Context, blockCount, newest uint64, percentiles []float64) (*FeeHistory, error) {
	var out FeeHistory
	scope := rpc.EncodeUint64(newest)
	err := c.call(ctx, &out, scope, "eth_feeHistory",
		rpc.EncodeUint64(blockCount), rpc.EncodeUint64(newest), percentiles)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// call performs one JSON-RPC request, consulting the disk cache when
// scope is non-empty. Null results map to ErrNotFound and are never
// cached.
func (c *HTTPClient) call(ctx context.Context, result interface{}, scope, method string, params ...interface{}) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("remote: encoding params: %w", err)
	}
	if scope != "" && c.cache != nil {
		if raw, ok := c.cache.Get(scope, method, paramsJSON); ok {
			return json.Unmarshal(raw, result)
		}
	}
	raw, err := c.do(ctx, method, paramsJSON)
	if err != nil {
		return err
	}
	if isJSONNull(raw) {
		return ErrNotFound
	}
	if scope != "" && c.cache != nil {
		c.cache.Put(scope, method, paramsJSON, raw)
	}
	return json.Unmarshal(raw, result)
}

func (c *HTTPClient) do(ctx context.Context, method string, paramsJSON []byte) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	id, _ := json.Marshal(c.nextID.Add(1))
	req := rpc.Request{JSONRPC: "2.0", ID: id, Method: method, Params: paramsJSON}
	body, err := json.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("remote: %s: %w", method, err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote: %s: HTTP %d", method, httpResp.StatusCode)
	}
	var resp rpc.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("remote: %s: decoding response: %w", method, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("remote: %s: %w", method, resp.Error)
	}
	c.logger.Debug("remote call", "method", method, "elapsed", time.Since(start))
	return resp.Result, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
