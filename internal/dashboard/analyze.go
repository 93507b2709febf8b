package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/wheelhouse-dev/wheelhouse/internal/marketdata"
	"github.com/wheelhouse-dev/wheelhouse/internal/metrics"
	"github.com/wheelhouse-dev/wheelhouse/internal/models"
	"github.com/wheelhouse-dev/wheelhouse/internal/normalize"
	"github.com/wheelhouse-dev/wheelhouse/internal/strategy"
)

// RawPortfolio is the extraction layer's output file: option legs, share
// lots and technical levels, all untrusted until normalized.
type RawPortfolio struct {
	Positions []normalize.RawPosition            `json:"positions"`
	Shares    []normalize.RawShare               `json:"shares"`
	Levels    map[string][]models.TechnicalLevel `json:"technical_levels"`
}

// LoadRawPortfolio reads the raw extracted portfolio from disk.
func LoadRawPortfolio(path string) (*RawPortfolio, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("reading portfolio file: %w", err)
	}
	var raw RawPortfolio
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing portfolio file: %w", err)
	}
	return &raw, nil
}

// PositionView is one position with its derived analytics.
type PositionView struct {
	Position models.Position          `json:"position"`
	Metrics  models.CalculatedMetrics `json:"metrics"`
	Roll     strategy.RollDecision    `json:"roll"`
	Degraded bool                     `json:"degraded"` // quote fetch failed, last-known value used
}

// AnalysisResult is the full response for one analysis cycle. Everything in
// it is recomputed from scratch per request and discarded afterwards.
type AnalysisResult struct {
	GeneratedAt time.Time                          `json:"generated_at"`
	Portfolio   models.PortfolioMetrics            `json:"portfolio"`
	Positions   []PositionView                     `json:"positions"`
	Strategies  map[string]strategy.Classification `json:"strategies"`
	Warnings    []normalize.Warning                `json:"warnings"`
}

// Analyzer orchestrates one analysis cycle: normalize raw records, fetch
// quotes and spot prices under the batch deadline, run the pure calculation
// pipeline, and assemble the response.
type Analyzer struct {
	normalizer  *normalize.Normalizer
	fetcher     *marketdata.BatchFetcher
	provider    marketdata.Provider
	strategyCfg strategy.Config
}

// NewAnalyzer wires the analysis pipeline. provider is used for spot
// prices; option quotes go through the batch fetcher (which owns the rate
// budget and cache).
func NewAnalyzer(normalizer *normalize.Normalizer, fetcher *marketdata.BatchFetcher,
	provider marketdata.Provider, strategyCfg strategy.Config) *Analyzer {
	return &Analyzer{
		normalizer:  normalizer,
		fetcher:     fetcher,
		provider:    provider,
		strategyCfg: strategyCfg,
	}
}

// Analyze runs one full cycle over a raw portfolio. Per-record problems
// degrade the affected position and are reported as warnings; nothing here
// aborts the batch.
func (a *Analyzer) Analyze(ctx context.Context, raw *RawPortfolio) (*AnalysisResult, error) {
	result := &AnalysisResult{
		GeneratedAt: time.Now().UTC(),
		Strategies:  make(map[string]strategy.Classification),
	}

	positions := make([]models.Position, 0, len(raw.Positions))
	for _, rp := range raw.Positions {
		pos, warns := a.normalizer.Position(rp)
		positions = append(positions, pos)
		result.Warnings = append(result.Warnings, warns...)
	}

	// Spot prices per distinct underlying. A failed spot fetch degrades
	// that symbol's metrics (zero spot => zero intrinsic), not the batch.
	spots := make(map[string]float64)
	for _, pos := range positions {
		if _, seen := spots[pos.Symbol]; seen {
			continue
		}
		px, err := a.provider.FetchSpot(ctx, pos.Symbol)
		if err != nil {
			spots[pos.Symbol] = 0
			result.Warnings = append(result.Warnings, normalize.Warning{
				Code:   normalize.WarnMissingData,
				Field:  "spot",
				Detail: fmt.Sprintf("spot fetch failed for %s: %v", pos.Symbol, err),
			})
			continue
		}
		spots[pos.Symbol] = px.Current
	}

	shares := make(map[string]*models.SharePosition)
	for _, rs := range raw.Shares {
		share, warns := a.normalizer.Share(rs, spotFor(spots, rs))
		result.Warnings = append(result.Warnings, warns...)
		if share.Symbol != "" {
			s := share
			shares[share.Symbol] = &s
		}
	}

	reqs := make([]marketdata.QuoteRequest, len(positions))
	for i, pos := range positions {
		reqs[i] = marketdata.QuoteRequest{
			Symbol: pos.Symbol,
			Strike: pos.Strike,
			Expiry: pos.Expiry,
			Type:   pos.Type,
		}
	}
	quoteResults := a.fetcher.FetchQuotes(ctx, reqs)

	quotes := make([]*models.OptionQuote, 0, len(quoteResults))
	result.Positions = make([]PositionView, len(positions))
	for i, pos := range positions {
		qr := quoteResults[i]
		if qr.Quote != nil {
			quotes = append(quotes, qr.Quote)
		}

		spot := spots[pos.Symbol]
		costBasis := spot
		if share, ok := shares[pos.Symbol]; ok {
			costBasis = share.CostBasis
		}

		result.Positions[i] = PositionView{
			Position: pos,
			Metrics:  metrics.Calculate(pos, qr.Quote, spot, costBasis),
			Roll:     strategy.EvaluateRoll(pos, qr.Quote, spot, a.strategyCfg),
			Degraded: qr.Err != nil,
		}
	}

	result.Portfolio = metrics.Aggregate(positions, quotes)

	for sym, spot := range spots {
		result.Strategies[sym] = strategy.Classify(shares[sym], raw.Levels[sym], spot, a.strategyCfg)
	}

	return result, nil
}

// spotFor looks up the spot price for a raw share record's symbol, before
// the record itself has been normalized.
func spotFor(spots map[string]float64, rs normalize.RawShare) float64 {
	if sym, ok := rs.Symbol.(string); ok {
		return spots[normalize.CanonicalSymbol(sym)]
	}
	return 0
}
