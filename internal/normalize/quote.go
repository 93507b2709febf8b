package normalize

import (
	"strings"
	"time"

	"github.com/wheelhouse-dev/wheelhouse/internal/models"
)

// fixedPointScale is the vendor's scaled-integer price encoding: prices
// arrive as value*10000 when the feed is in fixed-point mode.
const fixedPointScale = 10000.0

// RawGreeks carries the vendor's greek fields. Pointers, because any of
// them can be independently absent and absence must survive normalization.
type RawGreeks struct {
	Delta *float64 `json:"delta,omitempty"`
	Gamma *float64 `json:"gamma,omitempty"`
	Theta *float64 `json:"theta,omitempty"`
	Vega  *float64 `json:"vega,omitempty"`
	IV    *float64 `json:"iv,omitempty"`
}

// RawQuote is one vendor option-quote record before normalization.
type RawQuote struct {
	Ticker       string     `json:"ticker"`
	Strike       float64    `json:"strike"`
	Expiry       string     `json:"expiry"`
	Type         string     `json:"type"`
	Bid          *float64   `json:"bid,omitempty"`
	Ask          *float64   `json:"ask,omitempty"`
	Last         *float64   `json:"last,omitempty"`
	Close        *float64   `json:"close,omitempty"`
	Greeks       *RawGreeks `json:"greeks,omitempty"`
	OpenInterest int64      `json:"open_interest"`
	Volume       int64      `json:"volume"`
	// PriceScale, when set, declares the fixed-point denominator for
	// bid/ask/last/close (e.g. 10000 means prices arrive as value*10000).
	PriceScale float64   `json:"price_scale,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// QuoteOptions tunes quote normalization.
type QuoteOptions struct {
	Now func() time.Time
}

// NormalizeQuote converts a raw vendor quote into a canonical OptionQuote.
// Missing optional fields (Greeks, IV, bid/ask) never cause failure; they
// stay nil. The second return is false when no mid price can be derived at
// all - an unavailable quote, which is distinct from a quote at zero.
func NormalizeQuote(raw RawQuote, opts QuoteOptions) (models.OptionQuote, bool) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	q := models.OptionQuote{
		Ticker:       strings.ToUpper(strings.TrimSpace(raw.Ticker)),
		Strike:       raw.Strike,
		OpenInterest: raw.OpenInterest,
		Volume:       raw.Volume,
		UpdatedAt:    raw.UpdatedAt,
	}
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = now()
	}

	switch strings.ToLower(strings.TrimSpace(raw.Type)) {
	case "call", "c":
		q.Type = models.OptionTypeCall
	case "put", "p":
		q.Type = models.OptionTypePut
	default:
		return models.OptionQuote{}, false
	}

	iso, _ := NormalizeExpiry(raw.Expiry)
	q.Expiry = iso
	q.DTE = models.DaysToExpiry(iso, now())

	scale := detectPriceScale(raw)
	bid := descale(raw.Bid, scale)
	ask := descale(raw.Ask, scale)
	last := descale(raw.Last, scale)
	closePx := descale(raw.Close, scale)

	q.Bid = bid
	q.Ask = ask

	// Mid price: bid/ask midpoint when both sides are sane, otherwise the
	// most recent close (or last trade). No derivable mid means the quote
	// is unavailable, not zero.
	switch {
	case bid != nil && ask != nil && *ask >= *bid && *bid > 0:
		q.Mid = (*bid + *ask) / 2
	case closePx != nil && *closePx > 0:
		q.Mid = *closePx
	case last != nil && *last > 0:
		q.Mid = *last
	default:
		return models.OptionQuote{}, false
	}

	if raw.Greeks != nil {
		q.Delta = raw.Greeks.Delta
		q.Gamma = raw.Greeks.Gamma
		q.Theta = raw.Greeks.Theta
		q.Vega = raw.Greeks.Vega
		q.IV = raw.Greeks.IV
	}

	return q, true
}

// detectPriceScale returns the fixed-point denominator for the raw quote's
// price fields, or 1 when prices are already in dollars. An explicit
// price_scale field wins; otherwise the encoding is inferred when both
// sides of the book are large whole numbers, which real per-share option
// prices never are.
func detectPriceScale(raw RawQuote) float64 {
	if raw.PriceScale > 1 {
		return raw.PriceScale
	}
	if raw.Bid != nil && raw.Ask != nil &&
		isWhole(*raw.Bid) && isWhole(*raw.Ask) &&
		*raw.Bid >= fixedPointScale && *raw.Ask >= fixedPointScale {
		return fixedPointScale
	}
	return 1
}

func isWhole(f float64) bool {
	return f == float64(int64(f))
}

func descale(p *float64, scale float64) *float64 {
	if p == nil || scale <= 1 {
		return p
	}
	v := *p / scale
	return &v
}
