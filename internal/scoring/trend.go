package scoring

// DefaultTrendDelta is the minimum score movement that counts as a trend.
const DefaultTrendDelta = 5.0

// Trend classifies composite score momentum between consecutive periods.
type Trend string

const (
	TrendImproving     Trend = "IMPROVING"
	TrendStable        Trend = "STABLE"
	TrendDeteriorating Trend = "DETERIORATING"
)

// TrendBetween compares the current composite against the immediately
// preceding one. Movement strictly beyond delta in either direction makes
// a trend; anything else, including a missing prior observation, is
// STABLE.
func TrendBetween(current float64, previous *float64, delta float64) Trend {
	if previous == nil {
		return TrendStable
	}
	if delta <= 0 {
		delta = DefaultTrendDelta
	}
	d := current - *previous
	switch {
	case d > delta:
		return TrendImproving
	case d < -delta:
		return TrendDeteriorating
	default:
		return TrendStable
	}
}
