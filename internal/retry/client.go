// Package retry wraps a market-data provider with rate-limit-aware retries.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/wheelhouse-dev/wheelhouse/internal/marketdata"
	"github.com/wheelhouse-dev/wheelhouse/internal/models"
)

// Config tunes retry behavior.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig matches the vendor's observed rate-limit recovery times.
var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 2 * time.Second,
	MaxBackoff:     30 * time.Second,
}

// Client decorates a Provider, retrying rate-limited requests with jittered
// exponential backoff. Permanent failures (not found, unavailable) pass
// through on the first attempt.
type Client struct {
	provider marketdata.Provider
	logger   *log.Logger
	config   Config
}

// Ensure Client implements the provider interface at compile time.
var _ marketdata.Provider = (*Client)(nil)

// NewClient creates a retrying provider. logger may be nil for the default
// logger; config may be omitted for DefaultConfig.
func NewClient(provider marketdata.Provider, logger *log.Logger, config ...Config) *Client {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		provider: provider,
		logger:   logger,
		config:   cfg,
	}
}

// FetchQuote fetches one quote, retrying rate-limited attempts.
func (c *Client) FetchQuote(ctx context.Context, req marketdata.QuoteRequest) (*models.OptionQuote, error) {
	var quote *models.OptionQuote
	err := c.withRetry(ctx, req.Key().String(), func() error {
		var fetchErr error
		quote, fetchErr = c.provider.FetchQuote(ctx, req)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// FetchSpot fetches a spot price context, retrying rate-limited attempts.
func (c *Client) FetchSpot(ctx context.Context, symbol string) (*models.PriceContext, error) {
	var px *models.PriceContext
	err := c.withRetry(ctx, symbol, func() error {
		var fetchErr error
		px, fetchErr = c.provider.FetchSpot(ctx, symbol)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return px, nil
}

func (c *Client) withRetry(ctx context.Context, label string, fn func() error) error {
	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("operation canceled: %w", ctx.Err())
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !marketdata.IsRetryable(err) || attempt == c.config.MaxRetries {
			break
		}

		c.logger.Printf("rate limited fetching %s (attempt %d/%d), retrying in %v",
			label, attempt+1, c.config.MaxRetries+1, backoff)

		select {
		case <-time.After(backoff):
			backoff = c.calculateNextBackoff(backoff)
		case <-ctx.Done():
			return fmt.Errorf("operation canceled during backoff: %w", ctx.Err())
		}
	}

	return lastErr
}

func (c *Client) calculateNextBackoff(currentBackoff time.Duration) time.Duration {
	backoff := time.Duration(float64(currentBackoff) * 1.5)
	if backoff > c.config.MaxBackoff {
		backoff = c.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			log.Printf("Failed to generate jitter: %v", err)
		} else {
			backoff += time.Duration(jitterVal.Int64())
		}
	}

	return backoff
}
