package metrics

import (
	"sort"

	"github.com/wheelhouse-dev/wheelhouse/internal/models"
	"github.com/wheelhouse-dev/wheelhouse/internal/util"
)

// Time-bucket edges in days to expiry.
const (
	bucketNearEdge = 30
	bucketMidEdge  = 90
)

// Bucket labels, in display order.
const (
	BucketNear = "<=30d"
	BucketMid  = "31-90d"
	BucketFar  = ">90d"
)

// Aggregate rolls per-position figures into portfolio-level totals,
// ticker-level totals, and time-to-expiry buckets. quotes is matched to
// positions by the (symbol, strike, expiry, type) join key; a position whose
// quote is missing degrades to its last-known current value rather than
// being excluded.
//
// Output is deterministic for a given input: positions are processed in
// input order, buckets are emitted in fixed order, and ticker rollups are
// sorted by symbol.
func Aggregate(positions []models.Position, quotes []*models.OptionQuote) models.PortfolioMetrics {
	byKey := make(map[models.QuoteKey]*models.OptionQuote, len(quotes))
	for _, q := range quotes {
		if q != nil {
			byKey[q.Key()] = q
		}
	}

	out := models.PortfolioMetrics{
		Buckets: []models.TimeBucket{
			{Label: BucketNear},
			{Label: BucketMid},
			{Label: BucketFar},
		},
	}

	tickers := make(map[string]*models.TickerMetrics)
	deltaWeight := 0.0
	deltaSum := 0.0

	for i := range positions {
		pos := &positions[i]
		scale := models.SharesPerContract * float64(pos.AbsContracts())

		costToClose := pos.CurrentValue
		quote := byKey[pos.Key()]
		if quote != nil {
			costToClose = quote.Mid * scale
		}

		sign := -1.0
		if pos.IsShort() {
			sign = 1.0
		}
		pnl := (pos.PremiumCollected - costToClose) * sign

		out.TotalPremiumCollected += pos.PremiumCollected
		out.TotalCostToClose += costToClose
		out.NetUnrealizedPnL += pnl

		// A position with unknown delta is skipped, not counted as
		// delta=0, which would bias the average toward zero.
		if quote != nil && quote.Delta != nil {
			w := float64(pos.AbsContracts())
			deltaWeight += w
			deltaSum += *quote.Delta * w
		}

		b := &out.Buckets[bucketIndex(pos.DTE)]
		b.Positions++
		b.PremiumCollected += pos.PremiumCollected
		b.CostToClose += costToClose
		b.NetPnL += pnl

		tm := tickers[pos.Symbol]
		if tm == nil {
			tm = &models.TickerMetrics{Symbol: pos.Symbol}
			tickers[pos.Symbol] = tm
		}
		tm.Contracts += pos.AbsContracts()
		tm.PremiumCollected += pos.PremiumCollected
		tm.CostToClose += costToClose
		tm.NetPnL += pnl
	}

	if deltaWeight > 0 {
		wd := deltaSum / deltaWeight
		out.WeightedDelta = &wd
	}

	symbols := make([]string, 0, len(tickers))
	for sym := range tickers {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	out.Tickers = make([]models.TickerMetrics, 0, len(symbols))
	for _, sym := range symbols {
		tm := tickers[sym]
		tm.PremiumCollected = util.RoundToCent(tm.PremiumCollected)
		tm.CostToClose = util.RoundToCent(tm.CostToClose)
		tm.NetPnL = util.RoundToCent(tm.NetPnL)
		out.Tickers = append(out.Tickers, *tm)
	}

	out.TotalPremiumCollected = util.RoundToCent(out.TotalPremiumCollected)
	out.TotalCostToClose = util.RoundToCent(out.TotalCostToClose)
	out.NetUnrealizedPnL = util.RoundToCent(out.NetUnrealizedPnL)
	for i := range out.Buckets {
		out.Buckets[i].PremiumCollected = util.RoundToCent(out.Buckets[i].PremiumCollected)
		out.Buckets[i].CostToClose = util.RoundToCent(out.Buckets[i].CostToClose)
		out.Buckets[i].NetPnL = util.RoundToCent(out.Buckets[i].NetPnL)
	}

	return out
}

// bucketIndex maps days-to-expiry to a bucket. Negative DTE (already
// expired, or an unparseable date that normalized to 0) lands in the near
// bucket, never silently excluded.
func bucketIndex(dte int) int {
	switch {
	case dte <= bucketNearEdge:
		return 0
	case dte <= bucketMidEdge:
		return 1
	default:
		return 2
	}
}
