package scoring

import (
	"fmt"
	"math"
)

// WeightProfile defines the per-channel composite weights for one customer
// regime. All weights must sum to 1.0 (±0.001 tolerance). The unlisted
// profile carries a zero market weight: that channel is structurally
// excluded rather than merely missing.
type WeightProfile struct {
	Transaction    float64
	PublicRegistry float64
	Market         float64
	News           float64
	SupplyChain    float64
	Financial      float64
}

// ListedWeights returns the weight distribution for exchange-listed
// companies, where market signals carry their own channel.
func ListedWeights() WeightProfile {
	return WeightProfile{
		Transaction:    0.25,
		PublicRegistry: 0.15,
		Market:         0.15,
		News:           0.15,
		SupplyChain:    0.15,
		Financial:      0.15,
	}
}

// UnlistedWeights returns the weight distribution for unlisted companies.
func UnlistedWeights() WeightProfile {
	return WeightProfile{
		Transaction:    0.30,
		PublicRegistry: 0.20,
		Market:         0,
		News:           0.20,
		SupplyChain:    0.15,
		Financial:      0.15,
	}
}

// Of returns the profile weight for a channel.
func (w WeightProfile) Of(ch Channel) float64 {
	switch ch {
	case ChannelTransaction:
		return w.Transaction
	case ChannelPublicRegistry:
		return w.PublicRegistry
	case ChannelMarket:
		return w.Market
	case ChannelNews:
		return w.News
	case ChannelSupplyChain:
		return w.SupplyChain
	case ChannelFinancial:
		return w.Financial
	}
	return 0
}

// Sum returns the total of all weights.
func (w WeightProfile) Sum() float64 {
	return w.Transaction + w.PublicRegistry + w.Market + w.News + w.SupplyChain + w.Financial
}

// Validate checks that weights sum to 1.0 and none are negative.
func (w WeightProfile) Validate() error {
	if math.Abs(w.Sum()-1.0) > 0.001 {
		return fmt.Errorf("channel weights sum to %.4f, must sum to 1.0", w.Sum())
	}
	for _, ch := range AllChannels {
		if w.Of(ch) < 0 {
			return fmt.Errorf("negative weight for %s channel: %f", ch, w.Of(ch))
		}
	}
	return nil
}
