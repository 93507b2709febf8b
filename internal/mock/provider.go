// Package mock provides a market-data provider that fabricates plausible
// quotes for demo mode and tests, so the dashboard works without a vendor
// API key.
package mock

import (
	"context"
	"crypto/rand"
	"hash/fnv"
	"math"
	"math/big"
	"time"

	"github.com/wheelhouse-dev/wheelhouse/internal/marketdata"
	"github.com/wheelhouse-dev/wheelhouse/internal/models"
)

// Provider fabricates option quotes around a per-symbol base price. Prices
// wobble slightly between calls; the base is derived from the symbol so the
// same portfolio renders consistently across restarts.
type Provider struct {
	midIV float64
}

// Ensure Provider implements the provider interface at compile time.
var _ marketdata.Provider = (*Provider)(nil)

// NewProvider creates a mock provider with a 25% implied volatility level.
func NewProvider() *Provider {
	return &Provider{midIV: 0.25}
}

// secureFloat64 generates a cryptographically secure random float64 between 0 and 1
func secureFloat64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		// Fallback to a reasonable default if crypto/rand fails
		return 0.5
	}
	return float64(n.Int64()) / (1 << 53)
}

// basePrice derives a stable spot price in the 20-220 range from the symbol.
func basePrice(symbol string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return 20 + float64(h.Sum32()%2000)/10
}

// FetchQuote fabricates a quote for the requested contract.
func (p *Provider) FetchQuote(_ context.Context, req marketdata.QuoteRequest) (*models.OptionQuote, error) {
	spot := p.wobble(basePrice(req.Symbol))
	dte := models.DaysToExpiry(req.Expiry, time.Now())
	t := math.Max(float64(dte), 0.5) / 365

	// Crude Black-Scholes-flavored pricing: enough structure that metrics
	// and roll triggers behave realistically in demo mode.
	var intrinsic, moneyness float64
	if req.Type == models.OptionTypeCall {
		intrinsic = math.Max(0, spot-req.Strike)
		moneyness = (spot - req.Strike) / req.Strike
	} else {
		intrinsic = math.Max(0, req.Strike-spot)
		moneyness = (req.Strike - spot) / req.Strike
	}
	extrinsic := spot * p.midIV * math.Sqrt(t) * 0.4 * math.Exp(-2*math.Abs(moneyness))
	mid := intrinsic + extrinsic
	if mid < 0.01 {
		mid = 0.01
	}

	spread := math.Max(0.02, mid*0.04)
	bid := math.Max(0.01, mid-spread/2)
	ask := mid + spread/2

	delta := deltaEstimate(moneyness, p.midIV, t)
	if req.Type == models.OptionTypePut {
		delta = -delta
	}
	gamma := 0.02 * math.Exp(-2*math.Abs(moneyness))
	theta := -extrinsic / math.Max(float64(dte), 1)
	vega := spot * math.Sqrt(t) * 0.1
	iv := p.midIV

	return &models.OptionQuote{
		Ticker:       req.Symbol,
		Strike:       req.Strike,
		Expiry:       req.Expiry,
		Type:         req.Type,
		DTE:          dte,
		Mid:          mid,
		Bid:          &bid,
		Ask:          &ask,
		Delta:        &delta,
		Gamma:        &gamma,
		Theta:        &theta,
		Vega:         &vega,
		IV:           &iv,
		OpenInterest: int64(100 + secureFloat64()*5000),
		Volume:       int64(secureFloat64() * 2000),
		UpdatedAt:    time.Now().UTC(),
	}, nil
}

// FetchSpot fabricates a spot price context for the underlying.
func (p *Provider) FetchSpot(_ context.Context, symbol string) (*models.PriceContext, error) {
	base := basePrice(symbol)
	current := p.wobble(base)
	return &models.PriceContext{
		Current:   current,
		Open:      base,
		High:      math.Max(base, current) * 1.005,
		Low:       math.Min(base, current) * 0.995,
		Close:     base,
		Date:      time.Now().UTC().Format("2006-01-02"),
		Timeframe: "daily",
	}, nil
}

// wobble applies a small random drift so repeated calls look like a live
// feed.
func (p *Provider) wobble(px float64) float64 {
	return px * (1 + (secureFloat64()-0.5)*0.01)
}

// deltaEstimate approximates |delta| from moneyness, IV and time.
func deltaEstimate(moneyness, iv, t float64) float64 {
	if iv <= 0 || t <= 0 {
		if moneyness > 0 {
			return 1
		}
		return 0
	}
	z := moneyness / (iv * math.Sqrt(t))
	// Logistic approximation of the normal CDF.
	return 1 / (1 + math.Exp(-1.7*z))
}
