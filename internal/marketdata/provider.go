// Package marketdata provides the quote-fetch boundary: a vendor-agnostic
// Provider interface, a Tradier-style HTTP client, an injectable TTL cache,
// a circuit breaker wrapper and the rate-budgeted batch fetcher. Errors are
// tagged so callers can tell retryable rate limiting apart from permanent
// not-found, and batch fetches report partial success instead of failing
// whole.
package marketdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/wheelhouse-dev/wheelhouse/internal/models"
)

// ErrRateLimited tags vendor responses that should be retried after a delay.
var ErrRateLimited = errors.New("vendor rate limit exceeded")

// ErrNotFound tags contracts the vendor has no data for. Not retryable.
var ErrNotFound = errors.New("quote not found")

// ErrUnavailable tags quotes with no derivable mid price (no sane bid/ask
// and no prior close). Not retryable; distinct from a quote at zero.
var ErrUnavailable = errors.New("quote unavailable")

// APIError represents a vendor API error with status code and response body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// IsRetryable reports whether an error from the fetch boundary is worth
// retrying after a delay. Only rate limiting qualifies; not-found and
// unavailable are permanent for the current cycle.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// QuoteRequest identifies one option contract to fetch. Expiry must already
// be in ISO form; the normalizer guarantees that for anything it emits.
type QuoteRequest struct {
	Symbol string
	Strike float64
	Expiry string
	Type   models.OptionType
}

// Key returns the join/cache key for the requested contract.
func (r QuoteRequest) Key() models.QuoteKey {
	return models.QuoteKey{Symbol: r.Symbol, Strike: r.Strike, Expiry: r.Expiry, Type: r.Type}
}

// QuoteResult is one entry of a batch fetch: either a quote or a tagged
// error, never both.
type QuoteResult struct {
	Quote *models.OptionQuote
	Err   error
}

// Retryable reports whether the failure is worth retrying (rate limiting).
func (r QuoteResult) Retryable() bool {
	return r.Err != nil && errors.Is(r.Err, ErrRateLimited)
}

// Provider is the market-data vendor boundary.
type Provider interface {
	// FetchQuote retrieves one option quote. Returns ErrRateLimited,
	// ErrNotFound or ErrUnavailable (possibly wrapped) on failure.
	FetchQuote(ctx context.Context, req QuoteRequest) (*models.OptionQuote, error)
	// FetchSpot retrieves the current spot price context for an underlying.
	FetchSpot(ctx context.Context, symbol string) (*models.PriceContext, error)
}
