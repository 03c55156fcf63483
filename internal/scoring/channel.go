package scoring

// Channel identifies one independent risk-signal source.
type Channel string

const (
	ChannelTransaction    Channel = "transaction"
	ChannelPublicRegistry Channel = "public_registry"
	ChannelMarket         Channel = "market"
	ChannelNews           Channel = "news"
	ChannelSupplyChain    Channel = "supply_chain"
	ChannelFinancial      Channel = "financial"
)

// AllChannels lists every channel in composite weighting order.
var AllChannels = []Channel{
	ChannelTransaction,
	ChannelPublicRegistry,
	ChannelMarket,
	ChannelNews,
	ChannelSupplyChain,
	ChannelFinancial,
}

// ChannelResult captures one channel's contribution to a composite score.
// Raw keeps the pre-clamp formula value and Clamped marks that bounding
// occurred, so no numeric correction is silently swallowed. Effective is
// the renormalized weight actually used for the composite; it stays zero
// until the aggregator runs.
type ChannelResult struct {
	Channel   Channel  `json:"channel"`
	Score     float64  `json:"score"`
	Raw       float64  `json:"raw_score"`
	Weight    float64  `json:"weight"`
	Effective float64  `json:"effective_weight"`
	Weighted  float64  `json:"weighted"`
	Available bool     `json:"available"`
	Clamped   bool     `json:"clamped,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// CustomerSnapshot bundles one company's raw channel inputs for a single
// evaluation period. A nil channel pointer means the upstream collector has
// no window for that channel, which scores as unavailable rather than zero.
type CustomerSnapshot struct {
	CompanyID string
	Listed    bool
	Period    string

	Transaction *TransactionInputs
	Registry    *RegistryInputs
	Market      *MarketInputs
	News        *NewsInputs
	Financial   *FinancialInputs

	// ChainPD is the propagated chain default probability for this period,
	// nil when the company is absent from the period's graph snapshot.
	ChainPD           *float64
	ChainPDConverged  bool
	ChainPDIterations int
}

// ChannelScorer converts raw per-company inputs into a bounded sub-score.
// Implementations return an unavailable result (not an error) when the
// channel cannot be computed for the period, and ErrInvalidInput when the
// inputs are out of domain or internally inconsistent.
type ChannelScorer interface {
	Channel() Channel
	Score(snap *CustomerSnapshot) (ChannelResult, error)
}

// Scorers returns one scorer per channel, in weighting order.
func Scorers(fin FinancialScorer) []ChannelScorer {
	return []ChannelScorer{
		TransactionScorer{},
		RegistryScorer{},
		MarketScorer{},
		NewsScorer{},
		SupplyChainScorer{},
		fin,
	}
}

func scored(ch Channel, raw float64, warnings []string) ChannelResult {
	score, clamped := clampScore(raw)
	return ChannelResult{
		Channel:   ch,
		Score:     score,
		Raw:       raw,
		Available: true,
		Clamped:   clamped,
		Warnings:  warnings,
	}
}

func unavailable(ch Channel, reason string) ChannelResult {
	return ChannelResult{Channel: ch, Reason: reason}
}

// clampScore bounds a raw formula value to the canonical [0,100] score
// range and reports whether bounding occurred.
func clampScore(raw float64) (float64, bool) {
	if raw < 0 {
		return 0, true
	}
	if raw > 100 {
		return 100, true
	}
	return raw, false
}

// clampRatio bounds a ratio to [0,1] and reports whether bounding occurred.
func clampRatio(v float64) (float64, bool) {
	if v < 0 {
		return 0, true
	}
	if v > 1 {
		return 1, true
	}
	return v, false
}
