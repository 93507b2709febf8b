package metrics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheelhouse-dev/wheelhouse/internal/models"
)

func pos(id, symbol string, strike float64, expiry string, contracts int, premium, value float64, dte int) models.Position {
	dir := models.DirectionLong
	if contracts < 0 {
		dir = models.DirectionShort
	}
	return models.Position{
		ID: id, Symbol: symbol, Strike: strike, Expiry: expiry,
		Type: models.OptionTypeCall, Contracts: contracts, Direction: dir,
		PremiumCollected: premium, CurrentValue: value, DTE: dte,
	}
}

func quoteFor(p models.Position, mid float64, delta *float64) *models.OptionQuote {
	return &models.OptionQuote{
		Ticker: p.Symbol, Strike: p.Strike, Expiry: p.Expiry, Type: p.Type,
		Mid: mid, Delta: delta,
	}
}

func TestAggregateTotals(t *testing.T) {
	p1 := pos("a", "XYZ", 63, "2025-07-18", -4, 1232.28, 2404, 17)
	p2 := pos("b", "ABC", 50, "2025-09-19", -2, 400, 350, 80)

	q1 := quoteFor(p1, 6.01, fptr(0.65)) // cost to close 2404
	q2 := quoteFor(p2, 1.50, fptr(0.30)) // cost to close 300

	out := Aggregate([]models.Position{p1, p2}, []*models.OptionQuote{q1, q2})

	assert.InDelta(t, 1632.28, out.TotalPremiumCollected, 1e-9)
	assert.InDelta(t, 2704.00, out.TotalCostToClose, 1e-9)
	// (1232.28-2404) + (400-300), both short
	assert.InDelta(t, -1071.72, out.NetUnrealizedPnL, 1e-9)
}

func TestAggregateWeightedDeltaExcludesNil(t *testing.T) {
	p1 := pos("a", "XYZ", 63, "2025-07-18", -1, 100, 90, 10)
	p2 := pos("b", "XYZ", 65, "2025-07-18", -1, 100, 90, 10)
	p3 := pos("c", "XYZ", 67, "2025-07-18", -1, 100, 90, 10)

	quotes := []*models.OptionQuote{
		quoteFor(p1, 0.90, fptr(0.4)),
		quoteFor(p2, 0.90, nil), // unknown delta: excluded, not zeroed
		quoteFor(p3, 0.90, fptr(0.2)),
	}

	out := Aggregate([]models.Position{p1, p2, p3}, quotes)

	require.NotNil(t, out.WeightedDelta)
	assert.InDelta(t, 0.3, *out.WeightedDelta, 1e-9)
}

func TestAggregateWeightedDeltaNilWhenNoDeltas(t *testing.T) {
	p1 := pos("a", "XYZ", 63, "2025-07-18", -1, 100, 90, 10)
	out := Aggregate([]models.Position{p1}, []*models.OptionQuote{quoteFor(p1, 0.90, nil)})
	assert.Nil(t, out.WeightedDelta)
}

func TestAggregateContractWeighting(t *testing.T) {
	p1 := pos("a", "XYZ", 63, "2025-07-18", -3, 100, 90, 10)
	p2 := pos("b", "XYZ", 65, "2025-07-18", -1, 100, 90, 10)

	quotes := []*models.OptionQuote{
		quoteFor(p1, 0.90, fptr(0.4)),
		quoteFor(p2, 0.90, fptr(0.8)),
	}

	out := Aggregate([]models.Position{p1, p2}, quotes)

	// (3*0.4 + 1*0.8) / 4 = 0.5
	require.NotNil(t, out.WeightedDelta)
	assert.InDelta(t, 0.5, *out.WeightedDelta, 1e-9)
}

func TestAggregateTimeBuckets(t *testing.T) {
	positions := []models.Position{
		pos("a", "XYZ", 63, "2025-07-18", -1, 100, 90, 17),  // near
		pos("b", "XYZ", 65, "2025-08-29", -1, 100, 90, 30),  // near, inclusive edge
		pos("c", "XYZ", 67, "2025-09-19", -1, 100, 90, 31),  // mid
		pos("d", "XYZ", 70, "2025-12-19", -1, 100, 90, 120), // far
		pos("e", "XYZ", 55, "bad-date", -1, 100, 90, 0),     // unparseable: treated as 0, never dropped
	}

	out := Aggregate(positions, nil)

	require.Len(t, out.Buckets, 3)
	assert.Equal(t, BucketNear, out.Buckets[0].Label)
	assert.Equal(t, 3, out.Buckets[0].Positions)
	assert.Equal(t, 1, out.Buckets[1].Positions)
	assert.Equal(t, 1, out.Buckets[2].Positions)

	total := 0
	for _, b := range out.Buckets {
		total += b.Positions
	}
	assert.Equal(t, len(positions), total, "every position lands in exactly one bucket")
}

func TestAggregateMissingQuoteResilience(t *testing.T) {
	p1 := pos("a", "XYZ", 63, "2025-07-18", -4, 1232.28, 2404, 17)
	p2 := pos("b", "ABC", 50, "2025-09-19", -2, 400, 350, 80)

	// Only p1's quote arrived; p2 falls back to its last-known value.
	out := Aggregate([]models.Position{p1, p2}, []*models.OptionQuote{quoteFor(p1, 6.01, nil)})

	assert.InDelta(t, 2404.00+350.00, out.TotalCostToClose, 1e-9)
	require.Len(t, out.Tickers, 2)
}

func TestAggregateTickerRollup(t *testing.T) {
	positions := []models.Position{
		pos("a", "XYZ", 63, "2025-07-18", -4, 1000, 900, 17),
		pos("b", "ABC", 50, "2025-07-18", -1, 200, 150, 17),
		pos("c", "XYZ", 65, "2025-08-15", -2, 500, 400, 45),
	}

	out := Aggregate(positions, nil)

	require.Len(t, out.Tickers, 2)
	// Sorted by symbol for deterministic output.
	assert.Equal(t, "ABC", out.Tickers[0].Symbol)
	assert.Equal(t, "XYZ", out.Tickers[1].Symbol)
	assert.Equal(t, 6, out.Tickers[1].Contracts)
	assert.InDelta(t, 1500.00, out.Tickers[1].PremiumCollected, 1e-9)
}

func TestAggregateDeterministic(t *testing.T) {
	positions := []models.Position{
		pos("a", "XYZ", 63, "2025-07-18", -4, 1232.28, 2404, 17),
		pos("b", "ABC", 50, "2025-09-19", -2, 400, 350, 80),
		pos("c", "DEF", 70, "2025-12-19", 1, 150, 175, 120),
	}
	quotes := []*models.OptionQuote{
		quoteFor(positions[0], 6.01, fptr(0.65)),
		quoteFor(positions[2], 1.80, fptr(0.25)),
	}

	first := Aggregate(positions, quotes)
	second := Aggregate(positions, quotes)

	assert.Equal(t, first, second)

	// Byte-identical serialization for identical input.
	b1, err := json.Marshal(first)
	require.NoError(t, err)
	b2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}
