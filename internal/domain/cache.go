package domain

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultFreshness is how long a cached observation stays valid for non-forced reads.
const DefaultFreshness = 60 * time.Second

// Cache is the shared price cache together with the subscription set that
// drives the streaming feed.
//
// A symbol is a member of the set iff it has an entry in refs. Subscribe,
// Track and WriteIfSubscribed only ever create price entries for members;
// unsubscribing deletes both. Write is the raw overwrite and does not check
// membership. refs keeps the sessions tracking each symbol, so a symbol
// leaves the set only when the last tracking session releases it.
type Cache struct {
	mu      sync.RWMutex
	prices  map[string]Observation
	refs    map[string]map[string]struct{}
	now     func() time.Time
	changed chan struct{}
}

// NewCache creates an empty cache using the wall clock.
func NewCache() *Cache {
	return NewCacheWithClock(time.Now)
}

// NewCacheWithClock creates an empty cache with a custom clock for freshness checks.
func NewCacheWithClock(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		prices:  make(map[string]Observation),
		refs:    make(map[string]map[string]struct{}),
		now:     now,
		changed: make(chan struct{}, 1),
	}
}

// Subscribe adds symbol to the set and creates an empty entry if absent.
// Returns true if the symbol was not a member before.
func (c *Cache) Subscribe(symbol string) bool {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return false
	}

	c.mu.Lock()
	added := c.subscribeLocked(symbol)
	c.mu.Unlock()

	if added {
		c.notify()
	}
	return added
}

func (c *Cache) subscribeLocked(symbol string) bool {
	if _, ok := c.refs[symbol]; ok {
		return false
	}
	c.refs[symbol] = make(map[string]struct{})
	c.prices[symbol] = Observation{Symbol: symbol}
	return true
}

// Unsubscribe removes symbol from the set and deletes its cache entry,
// regardless of which sessions still reference it.
func (c *Cache) Unsubscribe(symbol string) bool {
	symbol = NormalizeSymbol(symbol)

	c.mu.Lock()
	_, ok := c.refs[symbol]
	delete(c.refs, symbol)
	delete(c.prices, symbol)
	c.mu.Unlock()

	if ok {
		c.notify()
	}
	return ok
}

// UnsubscribeUntracked unsubscribes symbol if no session references it.
// The reference check and the removal happen under one lock.
func (c *Cache) UnsubscribeUntracked(symbol string) bool {
	symbol = NormalizeSymbol(symbol)

	c.mu.Lock()
	sessions, ok := c.refs[symbol]
	removed := ok && len(sessions) == 0
	if removed {
		delete(c.refs, symbol)
		delete(c.prices, symbol)
	}
	c.mu.Unlock()

	if removed {
		c.notify()
	}
	return removed
}

// Track subscribes symbol on behalf of session.
// Returns true if the symbol was not a member before.
func (c *Cache) Track(session, symbol string) bool {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return false
	}

	c.mu.Lock()
	added := c.subscribeLocked(symbol)
	c.refs[symbol][session] = struct{}{}
	c.mu.Unlock()

	if added {
		c.notify()
	}
	return added
}

// Release drops session's reference on symbol and unsubscribes it once no
// session references it anymore. Returns true if the symbol left the set.
func (c *Cache) Release(session, symbol string) bool {
	symbol = NormalizeSymbol(symbol)

	c.mu.Lock()
	sessions, ok := c.refs[symbol]
	if !ok {
		c.mu.Unlock()
		return false
	}
	delete(sessions, session)
	removed := len(sessions) == 0
	if removed {
		delete(c.refs, symbol)
		delete(c.prices, symbol)
	}
	c.mu.Unlock()

	if removed {
		c.notify()
	}
	return removed
}

// Subscribed reports whether symbol is in the set.
func (c *Cache) Subscribed(symbol string) bool {
	symbol = NormalizeSymbol(symbol)
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.refs[symbol]
	return ok
}

// Symbols returns the sorted members of the set.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.refs)
}

// Sessions returns how many sessions reference symbol.
func (c *Cache) Sessions(symbol string) int {
	symbol = NormalizeSymbol(symbol)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.refs[symbol])
}

// Read returns the observation for symbol if it has a price observed less
// than maxAge ago. It never fetches.
func (c *Cache) Read(symbol string, maxAge time.Duration) (Observation, bool) {
	symbol = NormalizeSymbol(symbol)

	c.mu.RLock()
	obs, ok := c.prices[symbol]
	c.mu.RUnlock()

	if !ok || !obs.Observed() {
		return Observation{}, false
	}
	if c.now().Sub(obs.ObservedAt) >= maxAge {
		return Observation{}, false
	}
	return obs, true
}

// Write replaces the entry for symbol unconditionally, member or not. The
// last call wins, whatever timestamps the observations carry. Feeds and
// resolvers use WriteIfSubscribed.
func (c *Cache) Write(symbol string, price decimal.Decimal, ts time.Time) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return
	}
	c.mu.Lock()
	c.prices[symbol] = Observation{Symbol: symbol, Price: price, ObservedAt: ts}
	c.mu.Unlock()
}

// WriteIfSubscribed writes the observation only while symbol is in the set.
// Membership check and write happen under one lock, so a push racing an
// unsubscribe can't resurrect the entry.
func (c *Cache) WriteIfSubscribed(symbol string, price decimal.Decimal, ts time.Time) bool {
	symbol = NormalizeSymbol(symbol)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.refs[symbol]; !ok {
		return false
	}
	c.prices[symbol] = Observation{Symbol: symbol, Price: price, ObservedAt: ts}
	return true
}

// Snapshot returns a copy of every entry, observed or not.
func (c *Cache) Snapshot() map[string]Observation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Observation, len(c.prices))
	for k, v := range c.prices {
		out[k] = v
	}
	return out
}

// Changes signals membership changes of the set. Signals are coalesced:
// one pending signal stands for any number of mutations. Meant for a single
// consumer (the stream feed).
func (c *Cache) Changes() <-chan struct{} {
	return c.changed
}

func (c *Cache) notify() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}
