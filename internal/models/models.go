// Package models defines the canonical data model for the wheel-strategy
// analytics engine: normalized option positions, quotes, share lots and the
// derived metric types. Everything here is a plain value type; normalization
// and calculation live in their own packages.
package models

import (
	"fmt"
	"time"
)

// SharesPerContract is the standard equity option multiplier.
const SharesPerContract = 100.0

// OptionType represents the type of option contract.
type OptionType string

const (
	// OptionTypeCall represents a call option contract
	OptionTypeCall OptionType = "call"
	// OptionTypePut represents a put option contract
	OptionTypePut OptionType = "put"
)

// Valid returns true if the OptionType is one of the defined constants.
func (t OptionType) Valid() bool {
	return t == OptionTypeCall || t == OptionTypePut
}

// Direction tags a position as bought or sold. It is always derived from the
// sign of the contract count and must never contradict it.
type Direction string

const (
	// DirectionLong indicates a bought (positive contract count) position
	DirectionLong Direction = "long"
	// DirectionShort indicates a sold (negative contract count) position
	DirectionShort Direction = "short"
)

// QuoteKey is the join key between positions and quotes. Expiry must be in
// ISO form on both sides before a key is built; the normalizers guarantee
// that for anything they emit.
type QuoteKey struct {
	Symbol string     `json:"symbol"`
	Strike float64    `json:"strike"`
	Expiry string     `json:"expiry"`
	Type   OptionType `json:"type"`
}

// String renders the key in the symbol-strike-expiry-type form used for
// cache keys and log lines.
func (k QuoteKey) String() string {
	return fmt.Sprintf("%s-%g-%s-%s", k.Symbol, k.Strike, k.Expiry, k.Type)
}

// OptionQuote is an immutable snapshot of a single option contract's market
// data. Greeks and bid/ask are pointers because absence is a first-class
// value: a missing delta must never be read as delta=0.
type OptionQuote struct {
	Ticker       string     `json:"ticker"`
	Strike       float64    `json:"strike"`
	Expiry       string     `json:"expiry"` // ISO YYYY-MM-DD
	Type         OptionType `json:"type"`
	DTE          int        `json:"dte"`
	Mid          float64    `json:"mid"` // dollars per share
	Bid          *float64   `json:"bid,omitempty"`
	Ask          *float64   `json:"ask,omitempty"`
	Delta        *float64   `json:"delta,omitempty"`
	Gamma        *float64   `json:"gamma,omitempty"`
	Theta        *float64   `json:"theta,omitempty"`
	Vega         *float64   `json:"vega,omitempty"`
	IV           *float64   `json:"iv,omitempty"`
	OpenInterest int64      `json:"open_interest"`
	Volume       int64      `json:"volume"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Key returns the join key for this quote.
func (q *OptionQuote) Key() QuoteKey {
	return QuoteKey{Symbol: q.Ticker, Strike: q.Strike, Expiry: q.Expiry, Type: q.Type}
}

// Position is a canonical option leg. PremiumCollected and CurrentValue are
// always total dollars for the whole position (per-share values already
// multiplied by the 100-share multiplier and the contract count magnitude).
// That unit invariant is the single most failure-prone thing in this system;
// only the normalizer is allowed to construct one from raw input.
type Position struct {
	ID               string     `json:"id"`
	Symbol           string     `json:"symbol"`
	Strike           float64    `json:"strike"`
	Expiry           string     `json:"expiry"` // ISO YYYY-MM-DD, or original string if unparseable
	Type             OptionType `json:"type"`
	Contracts        int        `json:"contracts"` // signed: negative = short/sold
	Direction        Direction  `json:"direction"` // derived from sign of Contracts
	PremiumCollected float64    `json:"premium_collected"` // total dollars
	CurrentValue     float64    `json:"current_value"`     // total dollars
	DTE              int        `json:"dte"`
}

// Key returns the join key used to match this position against quotes.
func (p *Position) Key() QuoteKey {
	return QuoteKey{Symbol: p.Symbol, Strike: p.Strike, Expiry: p.Expiry, Type: p.Type}
}

// AbsContracts returns the contract count magnitude.
func (p *Position) AbsContracts() int {
	if p.Contracts < 0 {
		return -p.Contracts
	}
	return p.Contracts
}

// IsShort returns true for sold positions.
func (p *Position) IsShort() bool {
	return p.Contracts < 0
}

// SharePosition is a lot of owned (or shorted) shares.
type SharePosition struct {
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`   // signed shares
	CostBasis float64 `json:"cost_basis"` // per-share purchase price
}

// PriceContext is a spot-price observation for an underlying.
type PriceContext struct {
	Current   float64 `json:"current"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Date      string  `json:"date"`
	Timeframe string  `json:"timeframe"`
}

// LevelKind distinguishes support from resistance levels.
type LevelKind string

const (
	// LevelSupport marks a price level the underlying has bounced off from below
	LevelSupport LevelKind = "support"
	// LevelResistance marks a price level the underlying has rejected from above
	LevelResistance LevelKind = "resistance"
)

// TechnicalLevel is a support/resistance price with a strength label,
// produced by the (external) technical-analysis layer.
type TechnicalLevel struct {
	Price    float64   `json:"price"`
	Kind     LevelKind `json:"kind"`
	Strength string    `json:"strength"`
}

// CalculatedMetrics is derived per position on every analysis cycle and
// never persisted. All dollar fields are total dollars, rounded to the cent.
type CalculatedMetrics struct {
	Intrinsic        float64 `json:"intrinsic"`
	Extrinsic        float64 `json:"extrinsic"`
	MarkToMarketPnL  float64 `json:"mark_to_market_pnl"` // profit if closed right now
	AssignmentProfit float64 `json:"assignment_profit"`
	WheelPnL         float64 `json:"wheel_pnl"` // profit if this expires/assigns
	CycleReturnPct   float64 `json:"cycle_return_pct"`
	QuoteAvailable   bool    `json:"quote_available"`
}

// TimeBucket groups positions by days-to-expiry for display. Buckets are
// created on demand, never stored.
type TimeBucket struct {
	Label            string  `json:"label"`
	Positions        int     `json:"positions"`
	PremiumCollected float64 `json:"premium_collected"`
	CostToClose      float64 `json:"cost_to_close"`
	NetPnL           float64 `json:"net_pnl"`
}

// TickerMetrics rolls per-position metrics up to a single underlying.
type TickerMetrics struct {
	Symbol           string  `json:"symbol"`
	Contracts        int     `json:"contracts"` // sum of magnitudes
	PremiumCollected float64 `json:"premium_collected"`
	CostToClose      float64 `json:"cost_to_close"`
	NetPnL           float64 `json:"net_pnl"`
}

// PortfolioMetrics is the portfolio-level rollup. WeightedDelta is nil when
// no position in the batch carried a delta; positions with unknown delta are
// excluded from the average, never counted as zero.
type PortfolioMetrics struct {
	TotalPremiumCollected float64         `json:"total_premium_collected"`
	TotalCostToClose      float64         `json:"total_cost_to_close"`
	NetUnrealizedPnL      float64         `json:"net_unrealized_pnl"`
	WeightedDelta         *float64        `json:"weighted_delta,omitempty"`
	Buckets               []TimeBucket    `json:"buckets"`
	Tickers               []TickerMetrics `json:"tickers"`
}

// DaysToExpiry computes whole days from now until the ISO expiry date.
// A date in the past, or one that does not parse as ISO, is treated as 0
// (expired or expiring today) so downstream bucketing never drops it.
func DaysToExpiry(expiry string, now time.Time) int {
	exp, err := time.Parse("2006-01-02", expiry)
	if err != nil {
		return 0
	}
	n := now.UTC().Truncate(24 * time.Hour)
	e := exp.UTC().Truncate(24 * time.Hour)
	days := int(e.Sub(n).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
