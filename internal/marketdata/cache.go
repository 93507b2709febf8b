package marketdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wheelhouse-dev/wheelhouse/internal/models"
)

// Cache is an explicit TTL quote cache keyed by the quote join key. It is
// always constructor-injected into the fetch layer, never a package-level
// singleton, so tests can swap it for a fresh or pre-seeded instance.
//
// All methods are safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	Quote    models.OptionQuote `json:"quote"`
	StoredAt time.Time          `json:"stored_at"`
}

// NewCache creates a quote cache with the given TTL. A non-positive TTL
// disables expiry.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached quote for key if present and not expired.
func (c *Cache) Get(key models.QuoteKey) (*models.OptionQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key.String()]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.StoredAt) > c.ttl {
		return nil, false
	}
	quote := entry.Quote
	return &quote, true
}

// GetStale returns the cached quote for key regardless of TTL. Used only
// when a fetch has failed and a stale price beats no price at all.
func (c *Cache) GetStale(key models.QuoteKey) (*models.OptionQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key.String()]
	if !ok {
		return nil, false
	}
	quote := entry.Quote
	return &quote, true
}

// Put stores a quote under its own join key.
func (c *Cache) Put(quote *models.OptionQuote) {
	if quote == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[quote.Key().String()] = cacheEntry{Quote: *quote, StoredAt: c.now()}
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// SaveTo writes a JSON snapshot of the cache so quotes survive restarts.
// The write goes through a temp file and rename so a crash mid-write never
// leaves a truncated snapshot.
func (c *Cache) SaveTo(path string) error {
	c.mu.RLock()
	snapshot := struct {
		Entries   map[string]cacheEntry `json:"entries"`
		SavedAt   time.Time             `json:"saved_at"`
		TTLMillis int64                 `json:"ttl_millis"`
	}{
		Entries:   make(map[string]cacheEntry, len(c.entries)),
		SavedAt:   c.now(),
		TTLMillis: c.ttl.Milliseconds(),
	}
	for k, v := range c.entries {
		snapshot.Entries[k] = v
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*.json")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}
	return nil
}

// LoadFrom restores a JSON snapshot written by SaveTo. Entries older than
// the TTL are dropped on load. A missing file is not an error.
func (c *Cache) LoadFrom(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cache snapshot: %w", err)
	}

	var snapshot struct {
		Entries map[string]cacheEntry `json:"entries"`
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("parsing cache snapshot: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, v := range snapshot.Entries {
		if c.ttl > 0 && now.Sub(v.StoredAt) > c.ttl {
			continue
		}
		c.entries[k] = v
	}
	return nil
}
