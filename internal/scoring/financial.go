package scoring

import (
	"fmt"
	"math"
)

// DefaultFinancialSpread is the score movement per weighted standard
// deviation of the z-score blend.
const DefaultFinancialSpread = 15.0

// FinancialInputs carries the five core ratios as industry-relative
// z-scores, oriented upstream so that higher is always safer (leverage is
// sign-flipped against its industry baseline before it arrives here).
type FinancialInputs struct {
	Leverage         float64 `json:"leverage_z"`
	Liquidity        float64 `json:"liquidity_z"`
	InterestCoverage float64 `json:"interest_coverage_z"`
	OperatingMargin  float64 `json:"operating_margin_z"`
	AssetTurnover    float64 `json:"asset_turnover_z"`
}

// RatioWeights defines the relative importance of the five financial
// ratios. All weights must sum to 1.0 (±0.001 tolerance).
type RatioWeights struct {
	Leverage         float64
	Liquidity        float64
	InterestCoverage float64
	OperatingMargin  float64
	AssetTurnover    float64
}

// DefaultRatioWeights returns the standard ratio weighting: solvency
// first, then liquidity and debt service, then earnings quality.
func DefaultRatioWeights() RatioWeights {
	return RatioWeights{
		Leverage:         0.30,
		Liquidity:        0.20,
		InterestCoverage: 0.20,
		OperatingMargin:  0.15,
		AssetTurnover:    0.15,
	}
}

// Sum returns the total of all ratio weights.
func (w RatioWeights) Sum() float64 {
	return w.Leverage + w.Liquidity + w.InterestCoverage + w.OperatingMargin + w.AssetTurnover
}

// Validate checks that weights sum to 1.0 and none are negative. Run at
// configuration load, never at scoring time.
func (w RatioWeights) Validate() error {
	if math.Abs(w.Sum()-1.0) > 0.001 {
		return fmt.Errorf("ratio weights sum to %.4f, must sum to 1.0", w.Sum())
	}
	for _, v := range []float64{w.Leverage, w.Liquidity, w.InterestCoverage, w.OperatingMargin, w.AssetTurnover} {
		if v < 0 {
			return fmt.Errorf("negative ratio weight: %f", v)
		}
	}
	return nil
}

// FinancialScorer blends the weighted z-scores and maps the blend onto
// [0,100] around a midpoint of 50: an exactly industry-average company
// scores 50, each weighted standard deviation moves the score by Spread.
type FinancialScorer struct {
	Weights RatioWeights
	Spread  float64
}

// NewFinancialScorer creates a FinancialScorer, falling back to the
// default spread when none is configured.
func NewFinancialScorer(weights RatioWeights, spread float64) FinancialScorer {
	if spread <= 0 {
		spread = DefaultFinancialSpread
	}
	return FinancialScorer{Weights: weights, Spread: spread}
}

func (FinancialScorer) Channel() Channel { return ChannelFinancial }

func (s FinancialScorer) Score(snap *CustomerSnapshot) (ChannelResult, error) {
	in := snap.Financial
	if in == nil {
		return unavailable(ChannelFinancial, "no financial statement window"), nil
	}

	w := s.Weights
	blend := w.Leverage*in.Leverage +
		w.Liquidity*in.Liquidity +
		w.InterestCoverage*in.InterestCoverage +
		w.OperatingMargin*in.OperatingMargin +
		w.AssetTurnover*in.AssetTurnover

	spread := s.Spread
	if spread <= 0 {
		spread = DefaultFinancialSpread
	}

	raw := 50 + spread*blend
	return scored(ChannelFinancial, raw, nil), nil
}
