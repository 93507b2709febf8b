package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheelhouse-dev/wheelhouse/internal/marketdata"
	"github.com/wheelhouse-dev/wheelhouse/internal/models"
	"github.com/wheelhouse-dev/wheelhouse/internal/normalize"
	"github.com/wheelhouse-dev/wheelhouse/internal/strategy"
)

func fptr(f float64) *float64 { return &f }

// fixedProvider echoes the requested contract back with a fixed mid and
// delta, and serves one spot price per symbol.
type fixedProvider struct {
	mid   float64
	delta float64
	spots map[string]float64
}

func (f *fixedProvider) FetchQuote(_ context.Context, req marketdata.QuoteRequest) (*models.OptionQuote, error) {
	return &models.OptionQuote{
		Ticker: req.Symbol, Strike: req.Strike, Expiry: req.Expiry, Type: req.Type,
		Mid: f.mid, Delta: fptr(f.delta),
	}, nil
}

func (f *fixedProvider) FetchSpot(_ context.Context, symbol string) (*models.PriceContext, error) {
	spot, ok := f.spots[symbol]
	if !ok {
		return nil, marketdata.ErrNotFound
	}
	return &models.PriceContext{Current: spot}, nil
}

func testAnalyzer(provider marketdata.Provider) *Analyzer {
	normalizer := normalize.NewNormalizer(normalize.Options{
		Now: func() time.Time { return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC) },
	})
	fetcher := marketdata.NewBatchFetcher(provider, nil, nil, marketdata.BatchFetcherConfig{
		RateLimit: 100, RateWindow: time.Minute, Deadline: 5 * time.Second,
	})
	return NewAnalyzer(normalizer, fetcher, provider, strategy.DefaultConfig())
}

func rawLeg(symbol string, strike float64, contracts int) normalize.RawPosition {
	return normalize.RawPosition{
		Symbol:       symbol,
		Strike:       strike,
		Expiry:       "Jul-18-2025",
		Type:         "call",
		Contracts:    contracts,
		Premium:      3.08,
		CurrentValue: 6.01,
	}
}

func TestAnalyzeFullCycle(t *testing.T) {
	provider := &fixedProvider{mid: 6.01, delta: 0.62, spots: map[string]float64{"XYZ": 67.21}}
	a := testAnalyzer(provider)

	raw := &RawPortfolio{
		Positions: []normalize.RawPosition{rawLeg("xyz", 63.0, -4)},
		Shares:    []normalize.RawShare{{Symbol: "XYZ", Quantity: 400.0, CostBasis: 59.0}},
		Levels: map[string][]models.TechnicalLevel{
			"XYZ": {{Kind: models.LevelResistance, Price: 72.50}},
		},
	}

	result, err := a.Analyze(context.Background(), raw)
	require.NoError(t, err)

	require.Len(t, result.Positions, 1)
	view := result.Positions[0]
	assert.False(t, view.Degraded)
	assert.Equal(t, "XYZ", view.Position.Symbol)
	assert.Equal(t, "2025-07-18", view.Position.Expiry, "expiry normalized before fetch")

	// Premium 3.08 scaled per-share, quote mid 6.01 scaled to the position.
	assert.InDelta(t, 1232.00, view.Position.PremiumCollected, 1e-9)
	assert.InDelta(t, -1172.00, view.Metrics.MarkToMarketPnL, 1e-9)
	assert.True(t, view.Metrics.QuoteAvailable)

	assert.InDelta(t, 2404.00, result.Portfolio.TotalCostToClose, 1e-9)
	require.NotNil(t, result.Portfolio.WeightedDelta)
	assert.InDelta(t, 0.62, *result.Portfolio.WeightedDelta, 1e-9)

	// Shares held, so the ticker classifies as covered-call phase.
	cls, ok := result.Strategies["XYZ"]
	require.True(t, ok)
	assert.Equal(t, strategy.PhaseCoveredCall, cls.Phase)
	assert.InDelta(t, 72.50, cls.Zones.OptimalCall, 1e-9)
}

func TestAnalyzeSpotFailureDegrades(t *testing.T) {
	provider := &fixedProvider{mid: 6.01, delta: 0.62, spots: map[string]float64{}}
	a := testAnalyzer(provider)

	raw := &RawPortfolio{Positions: []normalize.RawPosition{rawLeg("XYZ", 63.0, -4)}}

	result, err := a.Analyze(context.Background(), raw)
	require.NoError(t, err)

	// Zero spot means zero intrinsic, and the failure shows up as a warning
	// rather than aborting the batch.
	require.Len(t, result.Positions, 1)
	assert.Zero(t, result.Positions[0].Metrics.Intrinsic)

	found := false
	for _, w := range result.Warnings {
		if w.Code == normalize.WarnMissingData && w.Field == "spot" {
			found = true
		}
	}
	assert.True(t, found, "spot failure recorded as a warning")
}

func TestAnalyzeWarningsSurface(t *testing.T) {
	provider := &fixedProvider{mid: 6.01, delta: 0.62, spots: map[string]float64{"XYZ": 67.21}}
	a := testAnalyzer(provider)

	leg := rawLeg("XYZ", 63.0, -4)
	leg.Expiry = "sometime in July"
	raw := &RawPortfolio{Positions: []normalize.RawPosition{leg}}

	result, err := a.Analyze(context.Background(), raw)
	require.NoError(t, err)

	found := false
	for _, w := range result.Warnings {
		if w.Code == normalize.WarnUnparsedDate {
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, "sometime in July", result.Positions[0].Position.Expiry, "unparseable expiry passed through")
}

func TestAnalyzeEmptyPortfolio(t *testing.T) {
	provider := &fixedProvider{spots: map[string]float64{}}
	a := testAnalyzer(provider)

	result, err := a.Analyze(context.Background(), &RawPortfolio{})
	require.NoError(t, err)
	assert.Empty(t, result.Positions)
	assert.Zero(t, result.Portfolio.TotalPremiumCollected)
	assert.Empty(t, result.Strategies)
}
