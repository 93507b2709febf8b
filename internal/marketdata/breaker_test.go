package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheelhouse-dev/wheelhouse/internal/models"
)

func breakerSettings() CircuitBreakerSettings {
	return CircuitBreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

func TestCircuitBreakerPassthrough(t *testing.T) {
	provider := &stubProvider{quotes: map[string]*models.OptionQuote{"AAA": testQuote("AAA", 10)}}
	cb := NewCircuitBreakerProviderWithSettings(provider, breakerSettings())

	quote, err := cb.FetchQuote(context.Background(), reqFor("AAA", 10))
	require.NoError(t, err)
	assert.Equal(t, "AAA", quote.Ticker)

	px, err := cb.FetchSpot(context.Background(), "AAA")
	require.NoError(t, err)
	assert.InDelta(t, 67.21, px.Current, 1e-9)
}

func TestCircuitBreakerTripsOnVendorFailures(t *testing.T) {
	provider := &stubProvider{errs: map[string]error{"BAD": errors.New("connection reset")}}
	cb := NewCircuitBreakerProviderWithSettings(provider, breakerSettings())

	for i := 0; i < 3; i++ {
		_, err := cb.FetchQuote(context.Background(), reqFor("BAD", 10))
		require.Error(t, err)
	}

	// The breaker is now open; requests fail fast without hitting the vendor.
	before := provider.callCount()
	_, err := cb.FetchQuote(context.Background(), reqFor("BAD", 10))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, before, provider.callCount())
}

func TestCircuitBreakerIgnoresExpectedErrors(t *testing.T) {
	// Rate limiting and missing contracts are expected outcomes on a healthy
	// feed; a burst of them must not open the circuit.
	provider := &stubProvider{errs: map[string]error{
		"LIMITED": ErrRateLimited,
		"MISSING": ErrNotFound,
	}}
	cb := NewCircuitBreakerProviderWithSettings(provider, breakerSettings())

	for i := 0; i < 10; i++ {
		_, err := cb.FetchQuote(context.Background(), reqFor("LIMITED", 10))
		assert.ErrorIs(t, err, ErrRateLimited)
		_, err = cb.FetchQuote(context.Background(), reqFor("MISSING", 20))
		assert.ErrorIs(t, err, ErrNotFound)
	}

	// Still closed: the next call reaches the vendor.
	before := provider.callCount()
	_, err := cb.FetchQuote(context.Background(), reqFor("MISSING", 20))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, before+1, provider.callCount())
}
