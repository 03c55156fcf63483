package scoring

import "math"

// MarketInputs carries market-implied risk metrics for a listed company.
// DistanceToDefault may be precomputed by the market-data pipeline; when
// nil it is derived here from the structural fields.
type MarketInputs struct {
	DistanceToDefault *float64 `json:"distance_to_default,omitempty"`

	AssetValue      float64 `json:"asset_value"`
	Liabilities     float64 `json:"liabilities"`
	ExpectedReturn  float64 `json:"expected_return"`
	AssetVolatility float64 `json:"asset_volatility"`
	HorizonYears    float64 `json:"horizon_years"`

	CDSSpreadBps float64 `json:"cds_spread_bps"`
	ImpliedPD    float64 `json:"implied_pd"`
}

// MarketScorer scores market-implied distress signals for listed companies.
// Unlisted companies have no market channel, structurally.
type MarketScorer struct{}

func (MarketScorer) Channel() Channel { return ChannelMarket }

// Score applies 15·DD + max(0, 50 − 0.1·CDS) − 100·PD_impl, clamped to
// [0,100].
func (MarketScorer) Score(snap *CustomerSnapshot) (ChannelResult, error) {
	if !snap.Listed {
		return unavailable(ChannelMarket, "unlisted company"), nil
	}
	in := snap.Market
	if in == nil {
		return unavailable(ChannelMarket, "no market snapshot"), nil
	}
	if in.CDSSpreadBps < 0 {
		return ChannelResult{}, invalidInputf(ChannelMarket, "negative CDS spread %.2f", in.CDSSpreadBps)
	}
	if in.ImpliedPD < 0 || in.ImpliedPD > 1 {
		return ChannelResult{}, invalidInputf(ChannelMarket, "implied PD %.4f outside [0,1]", in.ImpliedPD)
	}

	dd := 0.0
	if in.DistanceToDefault != nil {
		dd = *in.DistanceToDefault
	} else {
		var err error
		dd, err = DistanceToDefault(in.AssetValue, in.Liabilities, in.ExpectedReturn, in.AssetVolatility, in.HorizonYears)
		if err != nil {
			return ChannelResult{}, err
		}
	}

	raw := 15*dd + math.Max(0, 50-0.1*in.CDSSpreadBps) - 100*in.ImpliedPD
	return scored(ChannelMarket, raw, nil), nil
}

// DistanceToDefault computes the Merton-style distance to default
// (ln(V/F) + (μ − σ²/2)·T) / (σ·√T): the number of asset-volatility
// standard deviations separating firm value from its default point.
func DistanceToDefault(assetValue, liabilities, expectedReturn, sigma, horizonYears float64) (float64, error) {
	if sigma <= 0 {
		return 0, invalidInputf(ChannelMarket, "asset volatility %.4f must be > 0", sigma)
	}
	if horizonYears <= 0 {
		return 0, invalidInputf(ChannelMarket, "horizon %.4f must be > 0", horizonYears)
	}
	if assetValue <= 0 || liabilities <= 0 {
		return 0, invalidInputf(ChannelMarket, "asset value and liabilities must be > 0")
	}
	return (math.Log(assetValue/liabilities) + (expectedReturn-sigma*sigma/2)*horizonYears) /
		(sigma * math.Sqrt(horizonYears)), nil
}
