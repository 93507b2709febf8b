// Package strategy decides where a ticker sits in the wheel cycle and
// whether individual short legs should be held, rolled, or left to expire.
// Both decisions are stateless: re-derived from current prices and Greeks on
// every cycle, never transitioned incrementally, because inputs can change
// arbitrarily between calls.
package strategy

import (
	"sort"

	"github.com/wheelhouse-dev/wheelhouse/internal/models"
)

// Phase is the current wheel phase for a ticker.
type Phase string

const (
	// PhaseCoveredCall means shares are owned and calls are sold against them
	PhaseCoveredCall Phase = "covered_call"
	// PhaseCashSecuredPut means no shares are owned and puts are sold for entry
	PhaseCashSecuredPut Phase = "cash_secured_put"
)

// Config holds the strategy thresholds. Zero values are replaced with the
// production defaults by Normalize.
type Config struct {
	// RollPriceRatio triggers a roll when spot >= strike * ratio.
	RollPriceRatio float64
	// RollDeltaThreshold triggers a roll when |delta| >= threshold.
	RollDeltaThreshold float64
	// MoneynessProxyPct substitutes for the delta rule when delta is
	// unavailable: triggered when (spot-strike)/strike*100 exceeds it.
	MoneynessProxyPct float64
	// LetExpireDTE is the DTE at or below which an untriggered position is
	// left to expire instead of held.
	LetExpireDTE int
	// CallZoneRatio filters resistances: call candidates sit above spot * ratio.
	CallZoneRatio float64
	// PutZoneRatio filters supports: put candidates sit below spot * ratio.
	PutZoneRatio float64
	// DefaultCallRatio picks the optimal call strike when no levels exist.
	DefaultCallRatio float64
	// DefaultPutRatio picks the optimal put strike when no levels exist.
	DefaultPutRatio float64
}

// DefaultConfig returns the production strategy thresholds.
func DefaultConfig() Config {
	return Config{
		RollPriceRatio:     1.08,
		RollDeltaThreshold: 0.80,
		MoneynessProxyPct:  5,
		LetExpireDTE:       5,
		CallZoneRatio:      1.02,
		PutZoneRatio:       0.98,
		DefaultCallRatio:   1.05,
		DefaultPutRatio:    0.95,
	}
}

// Normalize fills zero fields with defaults and returns the result.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.RollPriceRatio <= 0 {
		c.RollPriceRatio = def.RollPriceRatio
	}
	if c.RollDeltaThreshold <= 0 {
		c.RollDeltaThreshold = def.RollDeltaThreshold
	}
	if c.MoneynessProxyPct <= 0 {
		c.MoneynessProxyPct = def.MoneynessProxyPct
	}
	if c.LetExpireDTE <= 0 {
		c.LetExpireDTE = def.LetExpireDTE
	}
	if c.CallZoneRatio <= 0 {
		c.CallZoneRatio = def.CallZoneRatio
	}
	if c.PutZoneRatio <= 0 {
		c.PutZoneRatio = def.PutZoneRatio
	}
	if c.DefaultCallRatio <= 0 {
		c.DefaultCallRatio = def.DefaultCallRatio
	}
	if c.DefaultPutRatio <= 0 {
		c.DefaultPutRatio = def.DefaultPutRatio
	}
	return c
}

// StrikeZones holds candidate strikes derived from technical levels. The
// optimal strikes fall back to fixed spot multiples when no usable level
// exists; this is a heuristic proxy for volatility-based strike selection.
type StrikeZones struct {
	CallCandidates []float64 `json:"call_candidates"` // ascending
	PutCandidates  []float64 `json:"put_candidates"`  // descending
	OptimalCall    float64   `json:"optimal_call"`
	OptimalPut     float64   `json:"optimal_put"`
}

// Classification is the classifier output for one ticker.
type Classification struct {
	Phase Phase       `json:"phase"`
	Zones StrikeZones `json:"zones"`
}

// Classify determines the wheel phase for a ticker and its candidate strike
// zones. shares may be nil (no share lot for the ticker). The phase is a
// two-valued classification re-evaluated every cycle, not a persisted state
// machine.
func Classify(shares *models.SharePosition, levels []models.TechnicalLevel, spot float64, cfg Config) Classification {
	cfg = cfg.Normalize()

	phase := PhaseCashSecuredPut
	if shares != nil && shares.Quantity > 0 {
		phase = PhaseCoveredCall
	}

	zones := StrikeZones{}
	callFloor := spot * cfg.CallZoneRatio
	putCeil := spot * cfg.PutZoneRatio
	for _, lvl := range levels {
		switch lvl.Kind {
		case models.LevelResistance:
			if lvl.Price > callFloor {
				zones.CallCandidates = append(zones.CallCandidates, lvl.Price)
			}
		case models.LevelSupport:
			if lvl.Price < putCeil {
				zones.PutCandidates = append(zones.PutCandidates, lvl.Price)
			}
		}
	}
	sort.Float64s(zones.CallCandidates)
	sort.Sort(sort.Reverse(sort.Float64Slice(zones.PutCandidates)))

	if len(zones.CallCandidates) > 0 {
		zones.OptimalCall = zones.CallCandidates[0]
	} else {
		zones.OptimalCall = spot * cfg.DefaultCallRatio
	}
	if len(zones.PutCandidates) > 0 {
		zones.OptimalPut = zones.PutCandidates[0]
	} else {
		zones.OptimalPut = spot * cfg.DefaultPutRatio
	}

	return Classification{Phase: phase, Zones: zones}
}
