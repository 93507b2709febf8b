// Package normalize converts raw, inconsistently-shaped extractor output
// (option legs, share lots, vendor quotes) into the canonical model types.
// Every field crossing this boundary is treated as untrusted: possibly a
// string, possibly "Unknown", possibly in the wrong unit. Failures here are
// warnings, never hard errors - a dashboard with 7 of 8 positions correct
// beats one that fails entirely on one bad record.
package normalize

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wheelhouse-dev/wheelhouse/internal/models"
)

// Warning codes recorded during normalization.
const (
	// WarnUnparsedDate means an expiry did not match any known format and
	// was passed through unchanged.
	WarnUnparsedDate = "unparsed_date"
	// WarnDirectionConflict means the upstream supplied a direction tag
	// contradicting the sign of the contract count; the sign won.
	WarnDirectionConflict = "direction_conflict"
	// WarnUnitHeuristic means a premium or value was classified per-share
	// vs. total by the magnitude heuristic rather than an explicit tag.
	WarnUnitHeuristic = "unit_heuristic"
	// WarnMissingData means a required numeric field was absent or
	// non-numeric and a fallback policy was applied.
	WarnMissingData = "missing_data"
)

// Warning records a recoverable normalization issue for auditing.
type Warning struct {
	Code   string `json:"code"`
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

// PremiumUnit is the explicit unit tag an extractor may attach to premium
// and current-value fields. When present it wins over the magnitude
// heuristic.
type PremiumUnit string

const (
	// UnitUnknown means no tag was supplied and the heuristic decides
	UnitUnknown PremiumUnit = ""
	// UnitPerShare means the amount is dollars per share
	UnitPerShare PremiumUnit = "per_share"
	// UnitTotal means the amount is already total dollars for the position
	UnitTotal PremiumUnit = "total"
)

// RawPosition is one extracted option leg before normalization. Fields are
// untyped because the extraction layer (vision/OCR/CSV) emits whatever it
// saw: numbers, numeric strings, or placeholder text.
type RawPosition struct {
	ID           any `json:"id"`
	Symbol       any `json:"symbol"`
	Strike       any `json:"strike"`
	Expiry       any `json:"expiry"`
	Type         any `json:"type"`
	Contracts    any `json:"contracts"`
	Direction    any `json:"direction"`
	Premium      any `json:"premium"`
	CurrentValue any `json:"current_value"`
	// PremiumUnit, when supplied, declares the unit of Premium and
	// CurrentValue explicitly and disables the magnitude heuristic.
	PremiumUnit string `json:"premium_unit,omitempty"`
}

// RawShare is one extracted share lot before normalization.
type RawShare struct {
	Symbol    any `json:"symbol"`
	Quantity  any `json:"quantity"`
	CostBasis any `json:"cost_basis"`
}

// Options tunes normalization policy.
type Options struct {
	// PerShareThreshold is the magnitude below which an untagged premium
	// or value is assumed to be per-share and scaled by 100 x |contracts|.
	// This is a documented policy, not a guarantee; prefer an explicit
	// premium_unit tag from the extractor whenever one is available.
	PerShareThreshold float64
	// Now supplies the clock for DTE derivation; defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the normalization policy used in production.
func DefaultOptions() Options {
	return Options{
		PerShareThreshold: 50,
		Now:               time.Now,
	}
}

// Normalizer converts raw extractor records into canonical model types.
type Normalizer struct {
	opts Options
}

// NewNormalizer creates a Normalizer, filling in defaults for zero options.
func NewNormalizer(opts Options) *Normalizer {
	def := DefaultOptions()
	if opts.PerShareThreshold <= 0 {
		opts.PerShareThreshold = def.PerShareThreshold
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Normalizer{opts: opts}
}

// Position converts a raw option leg into a canonical Position. It never
// fails hard: missing or malformed fields fall back to defined policies and
// are recorded as warnings.
func (n *Normalizer) Position(raw RawPosition) (models.Position, []Warning) {
	var warns []Warning

	pos := models.Position{}

	if id, ok := stringFrom(raw.ID); ok {
		pos.ID = id
	} else {
		pos.ID = uuid.New().String()
	}

	if sym, ok := stringFrom(raw.Symbol); ok {
		pos.Symbol = strings.ToUpper(sym)
	} else {
		warns = append(warns, Warning{Code: WarnMissingData, Field: "symbol", Detail: "symbol absent from raw record"})
	}

	if strike, ok := floatFrom(raw.Strike); ok {
		pos.Strike = strike
	} else {
		warns = append(warns, Warning{Code: WarnMissingData, Field: "strike", Detail: "strike absent or non-numeric"})
	}

	pos.Type = parseOptionType(raw.Type)
	if !pos.Type.Valid() {
		pos.Type = models.OptionTypeCall
		warns = append(warns, Warning{Code: WarnMissingData, Field: "type", Detail: "option type unrecognized, defaulting to call"})
	}

	if expRaw, ok := stringFrom(raw.Expiry); ok {
		iso, parsed := NormalizeExpiry(expRaw)
		pos.Expiry = iso
		if !parsed {
			warns = append(warns, Warning{Code: WarnUnparsedDate, Field: "expiry", Detail: fmt.Sprintf("unrecognized date format: %q", expRaw)})
		}
	} else {
		warns = append(warns, Warning{Code: WarnMissingData, Field: "expiry", Detail: "expiry absent from raw record"})
	}

	contracts, haveContracts := intFrom(raw.Contracts)
	if !haveContracts {
		warns = append(warns, Warning{Code: WarnMissingData, Field: "contracts", Detail: "contract count absent, assuming -1 (single short contract)"})
		contracts = -1
	}

	// If the upstream supplied a direction tag that disagrees with the
	// sign of the contract count, the sign wins.
	if tag, ok := stringFrom(raw.Direction); ok {
		tagged := parseDirection(tag)
		derived := directionFromCount(contracts)
		if tagged != "" && tagged != derived {
			warns = append(warns, Warning{
				Code:   WarnDirectionConflict,
				Field:  "direction",
				Detail: fmt.Sprintf("tag %q contradicts contract sign %d; sign wins", tag, contracts),
			})
		}
	}
	pos.Contracts = contracts
	pos.Direction = directionFromCount(contracts)

	premium, haveP := floatFrom(raw.Premium)
	if haveP {
		unit := PremiumUnit(strings.ToLower(strings.TrimSpace(raw.PremiumUnit)))
		total, heuristic := n.scaleToTotal(premium, contracts, unit)
		pos.PremiumCollected = total
		if heuristic {
			warns = append(warns, Warning{
				Code:   WarnUnitHeuristic,
				Field:  "premium",
				Detail: fmt.Sprintf("premium %.2f classified by magnitude threshold %.0f", premium, n.opts.PerShareThreshold),
			})
		}
	} else {
		warns = append(warns, Warning{Code: WarnMissingData, Field: "premium", Detail: "premium absent or non-numeric, defaulting to 0"})
	}

	value, haveV := floatFrom(raw.CurrentValue)
	if haveV {
		unit := PremiumUnit(strings.ToLower(strings.TrimSpace(raw.PremiumUnit)))
		total, heuristic := n.scaleToTotal(value, contracts, unit)
		pos.CurrentValue = total
		if heuristic {
			warns = append(warns, Warning{
				Code:   WarnUnitHeuristic,
				Field:  "current_value",
				Detail: fmt.Sprintf("current value %.2f classified by magnitude threshold %.0f", value, n.opts.PerShareThreshold),
			})
		}
	}

	pos.DTE = models.DaysToExpiry(pos.Expiry, n.opts.Now())

	return pos, warns
}

// scaleToTotal converts a raw dollar amount of unknown unit into total
// dollars for the full position. An explicit unit tag wins; otherwise the
// magnitude heuristic applies: amounts below the threshold are assumed to be
// per-share and scaled by 100 x |contracts|. The bool return reports whether
// the heuristic (rather than a tag) made the call.
//
// Keep all unit classification in this one function so the threshold can be
// tuned, or the heuristic replaced outright, without touching callers.
func (n *Normalizer) scaleToTotal(amount float64, contracts int, unit PremiumUnit) (float64, bool) {
	mult := models.SharesPerContract * math.Abs(float64(contracts))
	switch unit {
	case UnitPerShare:
		return amount * mult, false
	case UnitTotal:
		return amount, false
	}
	if math.Abs(amount) < n.opts.PerShareThreshold {
		return amount * mult, true
	}
	return amount, true
}

// Share converts a raw share lot into a canonical SharePosition. A missing
// or non-numeric cost basis falls back to the current spot price - never to
// a silent zero, which would corrupt every assignment-profit figure built
// on it.
func (n *Normalizer) Share(raw RawShare, spot float64) (models.SharePosition, []Warning) {
	var warns []Warning

	share := models.SharePosition{}

	if sym, ok := stringFrom(raw.Symbol); ok {
		share.Symbol = strings.ToUpper(sym)
	} else {
		warns = append(warns, Warning{Code: WarnMissingData, Field: "symbol", Detail: "symbol absent from raw share record"})
	}

	if qty, ok := floatFrom(raw.Quantity); ok {
		share.Quantity = qty
	} else {
		warns = append(warns, Warning{Code: WarnMissingData, Field: "quantity", Detail: "share quantity absent or non-numeric, defaulting to 0"})
	}

	if cb, ok := floatFrom(raw.CostBasis); ok && cb > 0 {
		share.CostBasis = cb
	} else {
		share.CostBasis = spot
		warns = append(warns, Warning{
			Code:   WarnMissingData,
			Field:  "cost_basis",
			Detail: fmt.Sprintf("cost basis absent or non-numeric, falling back to spot %.2f", spot),
		})
	}

	return share, warns
}

func parseOptionType(v any) models.OptionType {
	s, ok := stringFrom(v)
	if !ok {
		return ""
	}
	switch strings.ToLower(s) {
	case "call", "c":
		return models.OptionTypeCall
	case "put", "p":
		return models.OptionTypePut
	default:
		return ""
	}
}

func parseDirection(s string) models.Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short", "sell", "sold", "sto":
		return models.DirectionShort
	case "long", "buy", "bought", "bto":
		return models.DirectionLong
	default:
		return ""
	}
}

func directionFromCount(contracts int) models.Direction {
	if contracts < 0 {
		return models.DirectionShort
	}
	return models.DirectionLong
}
