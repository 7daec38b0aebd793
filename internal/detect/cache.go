package detect

import (
	"fmt"
	"sync"
	"time"

	"github.com/wealthwise/dedup/internal/model"
)

// Cache stores prefetched ledger windows across batches so repeated
// imports against the same account skip the storage read. Implementations
// must be safe for concurrent use. The orchestrator works without one.
type Cache interface {
	// Get returns the cached window and true on a hit.
	Get(accountID string, from, to time.Time) ([]model.LedgerTransaction, bool)

	// Put stores a window for an account.
	Put(accountID string, from, to time.Time, transactions []model.LedgerTransaction)

	// Invalidate drops every window cached for an account. Called after
	// resolution mutates the account's ledger.
	Invalidate(accountID string)
}

// MemoryCache is an in-process Cache keyed by account and window bounds.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]map[string][]model.LedgerTransaction
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]map[string][]model.LedgerTransaction),
	}
}

func windowKey(from, to time.Time) string {
	return fmt.Sprintf("%d:%d", from.Unix(), to.Unix())
}

// Get returns the cached window and true on a hit.
func (c *MemoryCache) Get(accountID string, from, to time.Time) ([]model.LedgerTransaction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	windows, ok := c.entries[accountID]
	if !ok {
		return nil, false
	}
	transactions, ok := windows[windowKey(from, to)]
	return transactions, ok
}

// Put stores a window for an account.
func (c *MemoryCache) Put(accountID string, from, to time.Time, transactions []model.LedgerTransaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	windows, ok := c.entries[accountID]
	if !ok {
		windows = make(map[string][]model.LedgerTransaction)
		c.entries[accountID] = windows
	}
	windows[windowKey(from, to)] = transactions
}

// Invalidate drops every window cached for an account.
func (c *MemoryCache) Invalidate(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, accountID)
}
