package marketdata

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wheelhouse-dev/wheelhouse/internal/models"
)

// Vendor budget: historically 5 requests per rolling 60-second window.
const (
	defaultRateLimit   = 5
	defaultRateWindow  = 60 * time.Second
	defaultBatchBudget = 50 * time.Second
)

// BatchFetcherConfig tunes the batch fetcher.
type BatchFetcherConfig struct {
	// RateLimit is the number of vendor requests allowed per RateWindow.
	RateLimit int
	// RateWindow is the rolling window the limit applies to.
	RateWindow time.Duration
	// Deadline bounds a whole batch; the core runs with whatever data has
	// arrived when it expires.
	Deadline time.Duration
}

func (c BatchFetcherConfig) withDefaults() BatchFetcherConfig {
	if c.RateLimit <= 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.RateWindow <= 0 {
		c.RateWindow = defaultRateWindow
	}
	if c.Deadline <= 0 {
		c.Deadline = defaultBatchBudget
	}
	return c
}

// BatchFetcher fetches quotes for many positions, serving from the cache
// where possible and serializing vendor requests that exceed the rate
// budget with a queue and delay. Results are order-preserving, one per
// request, and failures are reported per item so the caller can use partial
// data.
type BatchFetcher struct {
	provider Provider
	cache    *Cache
	gate     *rateGate
	logger   *log.Logger
	cfg      BatchFetcherConfig
}

// NewBatchFetcher creates a BatchFetcher. cache may be nil to disable
// caching (tests mostly do this); logger may be nil for the default logger.
func NewBatchFetcher(provider Provider, cache *Cache, logger *log.Logger, cfg BatchFetcherConfig) *BatchFetcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	return &BatchFetcher{
		provider: provider,
		cache:    cache,
		gate:     newRateGate(cfg.RateLimit, cfg.RateWindow),
		logger:   logger,
		cfg:      cfg,
	}
}

// FetchQuotes fetches one quote per request, in parallel, bounded by the
// vendor rate budget. The returned slice has the same length and order as
// reqs. A rate-limited or failed item degrades to the cached quote when one
// exists, matching the treat-rate-limit-like-missing policy: partial data
// beats no data.
func (f *BatchFetcher) FetchQuotes(ctx context.Context, reqs []QuoteRequest) []QuoteResult {
	results := make([]QuoteResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Deadline)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.RateLimit)

	for i := range reqs {
		i := i
		req := reqs[i]
		g.Go(func() error {
			results[i] = f.fetchOne(gctx, req)
			// Per-item failures are recorded, never propagated; one bad
			// contract must not cancel the rest of the batch.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (f *BatchFetcher) fetchOne(ctx context.Context, req QuoteRequest) QuoteResult {
	key := req.Key()

	if f.cache != nil {
		if quote, ok := f.cache.Get(key); ok {
			return QuoteResult{Quote: quote}
		}
	}

	if err := f.gate.wait(ctx); err != nil {
		return f.degrade(key, err)
	}

	quote, err := f.provider.FetchQuote(ctx, req)
	if err != nil {
		return f.degrade(key, err)
	}

	if f.cache != nil {
		f.cache.Put(quote)
	}
	return QuoteResult{Quote: quote}
}

// degrade falls back to the last-known cached quote, TTL ignored, when a
// fetch fails. The error is kept alongside so callers can still see which
// items were degraded.
func (f *BatchFetcher) degrade(key models.QuoteKey, err error) QuoteResult {
	if f.cache != nil {
		if quote, ok := f.cache.GetStale(key); ok {
			f.logger.Printf("quote fetch failed for %s, using stale cached quote: %v", key, err)
			return QuoteResult{Quote: quote, Err: err}
		}
	}
	return QuoteResult{Err: err}
}

// rateGate enforces an N-requests-per-rolling-window budget. Callers past
// the budget queue up and sleep until the oldest request ages out of the
// window.
type rateGate struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func newRateGate(limit int, window time.Duration) *rateGate {
	return &rateGate{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// wait blocks until a request slot is available or the context expires.
func (g *rateGate) wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		now := g.now()
		cutoff := now.Add(-g.window)
		live := g.stamps[:0]
		for _, s := range g.stamps {
			if s.After(cutoff) {
				live = append(live, s)
			}
		}
		g.stamps = live

		if len(g.stamps) < g.limit {
			g.stamps = append(g.stamps, now)
			g.mu.Unlock()
			return nil
		}

		delay := g.stamps[0].Add(g.window).Sub(now)
		g.mu.Unlock()

		if delay <= 0 {
			delay = time.Millisecond
		}
		if err := g.sleep(ctx, delay); err != nil {
			return err
		}
	}
}
