// Package metrics computes per-position and portfolio-level wheel-strategy
// analytics. Everything here is a pure function over already-normalized
// inputs: no I/O, no shared state, recomputed fresh on every analysis cycle.
package metrics

import (
	"math"

	"github.com/wheelhouse-dev/wheelhouse/internal/models"
	"github.com/wheelhouse-dev/wheelhouse/internal/util"
)

// Calculate derives the full metric set for one position. quote may be nil
// (fetch failed or unavailable); the position's last-known current value is
// used instead so the caller always has a number to show, and Greek-derived
// aggregates upstream skip the position rather than zero-fill.
//
// costBasis is the per-share cost basis of the underlying shares backing a
// covered call; for cash-secured puts it is the capital committed per share.
func Calculate(pos models.Position, quote *models.OptionQuote, spot, costBasis float64) models.CalculatedMetrics {
	scale := models.SharesPerContract * float64(pos.AbsContracts())

	currentValue := pos.CurrentValue
	quoteAvailable := false
	if quote != nil {
		currentValue = quote.Mid * scale
		quoteAvailable = true
	}

	// Intrinsic value is the direction-adjusted distance from spot to
	// strike, floored at zero.
	var perShare float64
	if pos.Type == models.OptionTypeCall {
		perShare = spot - pos.Strike
	} else {
		perShare = pos.Strike - spot
	}
	intrinsic := math.Max(0, perShare) * scale
	extrinsic := math.Max(0, currentValue-intrinsic)

	// Mark-to-market: what closing the position right now is worth. For a
	// short position that costs less to buy back than it was sold for,
	// this is a gain.
	sign := -1.0
	if pos.IsShort() {
		sign = 1.0
	}
	markToMarket := (pos.PremiumCollected - currentValue) * sign

	// Assignment profit applies to calls only: shares called away at the
	// strike vs. their cost basis. A put assignment creates a new share
	// position picked up by the classifier on the next cycle; it is not
	// booked retroactively here.
	assignment := 0.0
	if pos.Type == models.OptionTypeCall {
		assignment = (pos.Strike - costBasis) * scale
	}

	wheel := pos.PremiumCollected + assignment

	// Cycle return against capital at risk. Zero capital is defined as
	// zero return - never NaN or Inf in output.
	cycleReturn := 0.0
	if capital := costBasis * scale; capital != 0 {
		cycleReturn = wheel / capital * 100
	}

	return models.CalculatedMetrics{
		Intrinsic:        util.RoundToCent(intrinsic),
		Extrinsic:        util.RoundToCent(extrinsic),
		MarkToMarketPnL:  util.RoundToCent(markToMarket),
		AssignmentProfit: util.RoundToCent(assignment),
		WheelPnL:         util.RoundToCent(wheel),
		CycleReturnPct:   util.RoundToCent(cycleReturn),
		QuoteAvailable:   quoteAvailable,
	}
}
