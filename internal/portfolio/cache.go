package portfolio

import "sync"

// Cache keeps folded holdings per account until the account records a new FILLED order.
// Every Invalidate bumps the account's generation; a fold read before the bump
// is never stored.
type Cache struct {
	mu          sync.RWMutex
	accounts    map[string]Holdings
	generations map[string]uint64
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		accounts:    make(map[string]Holdings),
		generations: make(map[string]uint64),
	}
}

// Get returns a copy of the cached holdings of account and the generation to
// pass to Put when the entry is missing.
func (c *Cache) Get(account string) (Holdings, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	gen := c.generations[account]
	h, ok := c.accounts[account]
	if !ok {
		return nil, gen, false
	}
	return h.clone(), gen, true
}

// Put stores holdings for account if no Invalidate happened since gen was read.
func (c *Cache) Put(account string, h Holdings, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[account] != gen {
		return false
	}
	c.accounts[account] = h.clone()
	return true
}

// Invalidate drops the entry of account.
func (c *Cache) Invalidate(account string) {
	c.mu.Lock()
	delete(c.accounts, account)
	c.generations[account]++
	c.mu.Unlock()
}

func (h Holdings) clone() Holdings {
	out := make(Holdings, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
