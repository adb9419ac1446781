package architecture

import "sync"

// Lifted is the outcome of lifting one triple: the contract that governs it,
// if any.
type Lifted struct {
	Governing Triple
	Rule      Rule
	Found     bool
}

// LiftCache memoizes lifting results per triple. Classification reads it from
// several workers, so access is guarded.
type LiftCache struct {
	mu    sync.RWMutex
	cache map[Triple]Lifted
}

// NewLiftCache creates a new lift cache
func NewLiftCache() *LiftCache {
	return &LiftCache{
		cache: make(map[Triple]Lifted),
	}
}

// Get retrieves a memoized result
func (c *LiftCache) Get(t Triple) (Lifted, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	l, found := c.cache[t]
	return l, found
}

// Set stores a result
func (c *LiftCache) Set(t Triple, l Lifted) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[t] = l
}

// Clear removes all memoized results. Called whenever the contract set changes.
func (c *LiftCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[Triple]Lifted)
}

// Size returns the number of memoized triples
func (c *LiftCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.cache)
}
