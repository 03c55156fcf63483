package scoring

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// CompositeResult is the complete scoring output for one company/period:
// the composite score, its channel breakdown with the weights actually
// used, and the derived grade, trend, and risk metadata. Records are
// immutable once produced; corrections are new records for a later period.
type CompositeResult struct {
	CompanyID string          `json:"company_id"`
	Period    string          `json:"period"`
	Listed    bool            `json:"listed"`
	Channels  []ChannelResult `json:"channels"`

	Composite float64   `json:"composite_score"`
	Grade     Grade     `json:"grade"`
	RiskLevel RiskLevel `json:"risk_level"`

	Trend    Trend    `json:"trend"`
	Previous *float64 `json:"previous_composite,omitempty"`

	PredictedPD    float64 `json:"predicted_default_prob"`
	Recommendation string  `json:"recommendation"`

	Renormalized bool     `json:"renormalized"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Aggregator combines channel sub-scores into a composite under the
// listed/unlisted weight profile. Profiles are injected configuration,
// validated at load; the aggregator never mutates them.
type Aggregator struct {
	listed     WeightProfile
	unlisted   WeightProfile
	bands      GradeBands
	trendDelta float64
	logger     *slog.Logger
}

// NewAggregator creates an Aggregator with the given profiles and grade
// bands. Zero-value bands fall back to the defaults, a non-positive
// trendDelta to DefaultTrendDelta.
func NewAggregator(listed, unlisted WeightProfile, bands GradeBands, trendDelta float64, logger *slog.Logger) *Aggregator {
	if bands == (GradeBands{}) {
		bands = DefaultGradeBands()
	}
	if trendDelta <= 0 {
		trendDelta = DefaultTrendDelta
	}
	return &Aggregator{
		listed:     listed,
		unlisted:   unlisted,
		bands:      bands,
		trendDelta: trendDelta,
		logger:     logger,
	}
}

// Profile returns the weight profile for the given regime.
func (a *Aggregator) Profile(listed bool) WeightProfile {
	if listed {
		return a.listed
	}
	return a.unlisted
}

// Score runs every channel scorer over the snapshot and composes the
// results. A channel rejecting its inputs is demoted to unavailable with
// the validation message as reason: one bad feed must not abort the
// company's composite, but the rejection stays on the record.
func (a *Aggregator) Score(snap *CustomerSnapshot, scorers []ChannelScorer, previous *float64) (*CompositeResult, error) {
	results := make([]ChannelResult, 0, len(scorers))
	var warnings []string
	for _, sc := range scorers {
		r, err := sc.Score(snap)
		if err != nil {
			if !errors.Is(err, ErrInvalidInput) {
				return nil, fmt.Errorf("score %s channel for %s: %w", sc.Channel(), snap.CompanyID, err)
			}
			warnings = append(warnings, err.Error())
			a.logger.Warn("channel input rejected",
				"company_id", snap.CompanyID,
				"channel", string(sc.Channel()),
				"error", err)
			r = unavailable(sc.Channel(), err.Error())
		}
		results = append(results, r)
	}
	return a.Compose(snap, results, previous, warnings)
}

// Compose combines precomputed channel results into a composite record.
// Unavailable channels are dropped from both the weighted sum and the
// weight total, and the remaining weights are renormalized to sum to 1.
// All channels unavailable yields ErrInsufficientData and no record.
func (a *Aggregator) Compose(snap *CustomerSnapshot, results []ChannelResult, previous *float64, warnings []string) (*CompositeResult, error) {
	profile := a.Profile(snap.Listed)

	availWeight := 0.0
	availCount := 0
	for i := range results {
		results[i].Weight = profile.Of(results[i].Channel)
		results[i].Effective = 0
		results[i].Weighted = 0
		if results[i].Available && results[i].Weight > 0 {
			availWeight += results[i].Weight
			availCount++
		}
		for _, w := range results[i].Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", results[i].Channel, w))
		}
		if results[i].Clamped {
			warnings = append(warnings, fmt.Sprintf("%s: raw score %.2f clamped to [0,100]", results[i].Channel, results[i].Raw))
		}
	}

	if availCount == 0 {
		return nil, fmt.Errorf("company %s period %s: %w", snap.CompanyID, snap.Period, ErrInsufficientData)
	}

	renormalized := math.Abs(availWeight-1.0) > 1e-9
	composite := 0.0
	for i := range results {
		if !results[i].Available || results[i].Weight <= 0 {
			continue
		}
		results[i].Effective = results[i].Weight / availWeight
		results[i].Weighted = results[i].Score * results[i].Effective
		composite += results[i].Weighted
	}

	if renormalized {
		warnings = append(warnings, fmt.Sprintf("weights renormalized over %.4f (%d of %d channels available)",
			availWeight, availCount, len(results)))
		a.logger.Debug("composite weights renormalized",
			"company_id", snap.CompanyID,
			"period", snap.Period,
			"available_weight", availWeight,
			"channels_available", availCount)
	}

	grade := a.bands.Grade(composite)
	trend := TrendBetween(composite, previous, a.trendDelta)

	return &CompositeResult{
		CompanyID:      snap.CompanyID,
		Period:         snap.Period,
		Listed:         snap.Listed,
		Channels:       results,
		Composite:      composite,
		Grade:          grade,
		RiskLevel:      RiskLevelFromScore(composite),
		Trend:          trend,
		Previous:       previous,
		PredictedPD:    PredictedDefaultProb(composite),
		Recommendation: Recommendation(grade, trend),
		Renormalized:   renormalized,
		Warnings:       warnings,
	}, nil
}
