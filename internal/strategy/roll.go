package strategy

import (
	"fmt"
	"math"

	"github.com/wheelhouse-dev/wheelhouse/internal/models"
)

// RollAction is the three-way decision for a short leg.
type RollAction string

const (
	// ActionHold keeps the position as-is
	ActionHold RollAction = "hold"
	// ActionRoll closes the leg and reopens it at a later expiry or strike
	ActionRoll RollAction = "roll"
	// ActionLetExpire rides the last few days to expiration
	ActionLetExpire RollAction = "let_expire"
)

// RollDecision reports the action and which of the two independent trigger
// rules fired. Always recomputed from the current price and delta; there is
// no persisted trigger state.
type RollDecision struct {
	Action         RollAction `json:"action"`
	PriceTriggered bool       `json:"price_triggered"` // Rule A: spot vs strike
	DeltaTriggered bool       `json:"delta_triggered"` // Rule B: delta or moneyness proxy
	Reason         string     `json:"reason"`
}

// EvaluateRoll applies the roll-trigger rules to one position. quote may be
// nil; the delta rule then falls back to the moneyness proxy, and if that
// cannot be computed either (strike = 0) Rule B simply does not trigger.
func EvaluateRoll(pos models.Position, quote *models.OptionQuote, spot float64, cfg Config) RollDecision {
	cfg = cfg.Normalize()

	d := RollDecision{}

	// Rule A: price breach. Inclusive threshold - spot exactly at
	// strike * ratio triggers.
	if pos.Strike > 0 && spot >= pos.Strike*cfg.RollPriceRatio {
		d.PriceTriggered = true
	}

	// Rule B: delta breach, or moneyness proxy when delta is unknown.
	switch {
	case quote != nil && quote.Delta != nil:
		if math.Abs(*quote.Delta) >= cfg.RollDeltaThreshold {
			d.DeltaTriggered = true
		}
	case pos.Strike > 0:
		moneyness := (spot - pos.Strike) / pos.Strike * 100
		if moneyness > cfg.MoneynessProxyPct {
			d.DeltaTriggered = true
		}
	}

	switch {
	case d.PriceTriggered && d.DeltaTriggered:
		d.Action = ActionRoll
		d.Reason = "price and delta triggers fired"
	case d.PriceTriggered:
		d.Action = ActionRoll
		d.Reason = fmt.Sprintf("spot %.2f >= strike %.2f x %.2f", spot, pos.Strike, cfg.RollPriceRatio)
	case d.DeltaTriggered:
		d.Action = ActionRoll
		d.Reason = "delta (or moneyness proxy) above threshold"
	case pos.DTE <= cfg.LetExpireDTE:
		d.Action = ActionLetExpire
		d.Reason = fmt.Sprintf("%d DTE with no trigger fired", pos.DTE)
	default:
		d.Action = ActionHold
		d.Reason = "no trigger fired"
	}

	return d
}
