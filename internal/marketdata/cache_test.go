package marketdata

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheelhouse-dev/wheelhouse/internal/models"
)

func testQuote(symbol string, strike float64) *models.OptionQuote {
	return &models.OptionQuote{
		Ticker: symbol, Strike: strike, Expiry: "2025-07-18",
		Type: models.OptionTypeCall, Mid: 6.01,
	}
}

func TestCacheGetPut(t *testing.T) {
	c := NewCache(5 * time.Minute)
	q := testQuote("XYZ", 63)

	_, ok := c.Get(q.Key())
	assert.False(t, ok)

	c.Put(q)
	got, ok := c.Get(q.Key())
	require.True(t, ok)
	assert.InDelta(t, 6.01, got.Mid, 1e-9)
	assert.Equal(t, 1, c.Len())

	// The cache hands back a copy; mutating it must not poison the entry.
	got.Mid = 0
	again, ok := c.Get(q.Key())
	require.True(t, ok)
	assert.InDelta(t, 6.01, again.Mid, 1e-9)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(5 * time.Minute)
	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	current := base
	c.now = func() time.Time { return current }

	q := testQuote("XYZ", 63)
	c.Put(q)

	current = base.Add(4 * time.Minute)
	_, ok := c.Get(q.Key())
	assert.True(t, ok, "still fresh inside the TTL")

	current = base.Add(6 * time.Minute)
	_, ok = c.Get(q.Key())
	assert.False(t, ok, "expired past the TTL")

	// The stale read path ignores TTL entirely.
	stale, ok := c.GetStale(q.Key())
	require.True(t, ok)
	assert.InDelta(t, 6.01, stale.Mid, 1e-9)
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewCache(0)
	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	current := base
	c.now = func() time.Time { return current }

	q := testQuote("XYZ", 63)
	c.Put(q)

	current = base.Add(24 * time.Hour)
	_, ok := c.Get(q.Key())
	assert.True(t, ok)
}

func TestCacheSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.json")

	c := NewCache(5 * time.Minute)
	c.Put(testQuote("XYZ", 63))
	c.Put(testQuote("ABC", 50))
	require.NoError(t, c.SaveTo(path))

	restored := NewCache(5 * time.Minute)
	require.NoError(t, restored.LoadFrom(path))
	assert.Equal(t, 2, restored.Len())

	got, ok := restored.Get(testQuote("XYZ", 63).Key())
	require.True(t, ok)
	assert.InDelta(t, 6.01, got.Mid, 1e-9)
}

func TestCacheLoadDropsExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.json")
	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	c := NewCache(5 * time.Minute)
	c.now = func() time.Time { return base }
	c.Put(testQuote("XYZ", 63))
	require.NoError(t, c.SaveTo(path))

	restored := NewCache(5 * time.Minute)
	restored.now = func() time.Time { return base.Add(10 * time.Minute) }
	require.NoError(t, restored.LoadFrom(path))
	assert.Equal(t, 0, restored.Len(), "entries past TTL are dropped on load")
}

func TestCacheLoadMissingFile(t *testing.T) {
	c := NewCache(5 * time.Minute)
	assert.NoError(t, c.LoadFrom(filepath.Join(t.TempDir(), "nope.json")))
	assert.Equal(t, 0, c.Len())
}
