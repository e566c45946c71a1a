package remote

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"

	"github.com/devchain-eth/devchain/crypto"
	"github.com/devchain-eth/devchain/log"
)

// diskCache is a write-once response cache shared by every provider in
// the process. One file per (chain_id, block scope, method, params)
// key; an entry either exists or not, there is no invalidation.
// Latest-relative responses are never handed to it.
type diskCache struct {
	root   string
	logger *log.Logger
}

// newDiskCache roots the cache at dir/<chainID>. Returns nil when dir
// is empty, disabling caching.
func newDiskCache(dir string, chainID uint64) *diskCache {
	if dir == "" {
		return nil
	}
	return &diskCache{
		root:   filepath.Join(dir, strconv.FormatUint(chainID, 10)),
		logger: log.Module("remote"),
	}
}

func (c *diskCache) path(scope, method string, params []byte) string {
	digest := crypto.Keccak256(params)
	return filepath.Join(c.root, scope, method, hex.EncodeToString(digest)+".json")
}

// Get returns the cached response body for the key, if present.
func (c *diskCache) Get(scope, method string, params []byte) ([]byte, bool) {
	raw, err := os.ReadFile(c.path(scope, method, params))
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Put records the response body for the key. An existing entry wins;
// concurrent writers racing on the same key produce the same bytes.
func (c *diskCache) Put(scope, method string, params, result []byte) {
	path := c.path(scope, method, params)
	if _, err := os.Stat(path); err == nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		c.logger.Warn("cache dir creation failed", "path", path, "err", err)
		return
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		c.logger.Warn("cache write failed", "path", path, "err", err)
		return
	}
	name := tmp.Name()
	if _, err := tmp.Write(result); err != nil {
		tmp.Close()
		os.Remove(name)
		c.logger.Warn("cache write failed", "path", path, "err", err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
	}
}
