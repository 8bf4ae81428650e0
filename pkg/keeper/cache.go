package keeper

import (
	"sync"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/commitment"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
)

// CacheEntry is the plaintext half of one commit-reveal pair. Entries live
// only in keeper memory: this cache is the single place order parameters
// exist in plaintext before execution.
type CacheEntry struct {
	Params commitment.OrderParams
	Nonce  uint64
}

// ParamsCache maps record addresses to their registered plaintext
// parameters. It is an explicit owned value injected into each keeper, not
// a shared singleton, so multiple keeper instances run isolated.
//
// Single-writer by convention (the poll loop); the mutex exists for the
// register path, which arrives from the API goroutine.
type ParamsCache struct {
	mu      sync.Mutex
	entries map[ledger.Address]CacheEntry
}

func NewParamsCache() *ParamsCache {
	return &ParamsCache{entries: make(map[ledger.Address]CacheEntry)}
}

// Put registers plaintext parameters for a record address, replacing any
// previous registration.
func (c *ParamsCache) Put(addr ledger.Address, params commitment.OrderParams, nonce uint64) {
	c.mu.Lock()
	c.entries[addr] = CacheEntry{Params: params, Nonce: nonce}
	c.mu.Unlock()
}

// Get looks up the entry for a record address.
func (c *ParamsCache) Get(addr ledger.Address) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[addr]
	return e, ok
}

// Delete removes an entry. A removed entry can never be re-submitted by
// this keeper, which is the executed-once bookkeeping (correctness itself
// rests on the ledger's single atomic Triggered to Executed transition).
func (c *ParamsCache) Delete(addr ledger.Address) {
	c.mu.Lock()
	delete(c.entries, addr)
	c.mu.Unlock()
}

func (c *ParamsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
