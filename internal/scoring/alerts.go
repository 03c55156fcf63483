package scoring

import "fmt"

// AlertSeverity ranks raised alerts for routing and display.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a single threshold breach detected during a scoring run.
type Alert struct {
	Channel   Channel       `json:"channel"`
	Code      string        `json:"code"`
	Severity  AlertSeverity `json:"severity"`
	Message   string        `json:"message"`
	Value     float64       `json:"value"`
	Threshold float64       `json:"threshold"`
}

// AlertThresholds holds the per-channel breach levels. Zero-value fields
// are replaced by defaults; thresholds are injected configuration like the
// weight profiles.
type AlertThresholds struct {
	UtilizationMax       float64
	PaymentDelayMaxDays  float64
	OverdraftMax         float64
	DistanceToDefaultMin float64
	CDSSpreadMaxBps      float64
	ImpliedPDMax         float64
	SentimentMin         float64
	NegativeRatioMax     float64
	SevereEventsMin      int
	ChainPDMax           float64
}

// DefaultAlertThresholds returns the standard breach levels.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		UtilizationMax:       0.8,
		PaymentDelayMaxDays:  7,
		OverdraftMax:         2,
		DistanceToDefaultMin: 2.0,
		CDSSpreadMaxBps:      200,
		ImpliedPDMax:         0.1,
		SentimentMin:         -0.3,
		NegativeRatioMax:     0.5,
		SevereEventsMin:      1,
		ChainPDMax:           0.2,
	}
}

// EvaluateAlerts applies the channel threshold rules to a scored snapshot.
// Rules fire on raw inputs, not sub-scores, so a breach surfaces even when
// the composite still looks healthy.
func EvaluateAlerts(snap *CustomerSnapshot, th AlertThresholds) []Alert {
	var alerts []Alert

	if in := snap.Transaction; in != nil {
		if in.LimitUtilization > th.UtilizationMax {
			alerts = append(alerts, Alert{
				Channel:   ChannelTransaction,
				Code:      "limit_utilization_high",
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("credit line utilization %.0f%% above %.0f%%", in.LimitUtilization*100, th.UtilizationMax*100),
				Value:     in.LimitUtilization,
				Threshold: th.UtilizationMax,
			})
		}
		if in.PaymentDelayDays > th.PaymentDelayMaxDays {
			alerts = append(alerts, Alert{
				Channel:   ChannelTransaction,
				Code:      "payment_delay",
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("average payment delay %.1f days above %.0f", in.PaymentDelayDays, th.PaymentDelayMaxDays),
				Value:     in.PaymentDelayDays,
				Threshold: th.PaymentDelayMaxDays,
			})
		}
		if in.OverdraftCount > th.OverdraftMax {
			alerts = append(alerts, Alert{
				Channel:   ChannelTransaction,
				Code:      "overdraft_spike",
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("%.0f overdrafts in window, above %.0f", in.OverdraftCount, th.OverdraftMax),
				Value:     in.OverdraftCount,
				Threshold: th.OverdraftMax,
			})
		}
	}

	if in := snap.Registry; in != nil && in.UnresolvedSevere >= th.SevereEventsMin && th.SevereEventsMin > 0 {
		alerts = append(alerts, Alert{
			Channel:   ChannelPublicRegistry,
			Code:      "registry_severe_events",
			Severity:  SeverityCritical,
			Message:   fmt.Sprintf("%d unresolved severe registry events", in.UnresolvedSevere),
			Value:     float64(in.UnresolvedSevere),
			Threshold: float64(th.SevereEventsMin),
		})
	}

	if in := snap.Market; in != nil && snap.Listed {
		if in.DistanceToDefault != nil && *in.DistanceToDefault < th.DistanceToDefaultMin {
			alerts = append(alerts, Alert{
				Channel:   ChannelMarket,
				Code:      "distance_to_default_low",
				Severity:  SeverityCritical,
				Message:   fmt.Sprintf("distance to default %.2f below %.2f", *in.DistanceToDefault, th.DistanceToDefaultMin),
				Value:     *in.DistanceToDefault,
				Threshold: th.DistanceToDefaultMin,
			})
		}
		if in.CDSSpreadBps > th.CDSSpreadMaxBps {
			alerts = append(alerts, Alert{
				Channel:   ChannelMarket,
				Code:      "cds_spread_wide",
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("CDS spread %.0fbps above %.0fbps", in.CDSSpreadBps, th.CDSSpreadMaxBps),
				Value:     in.CDSSpreadBps,
				Threshold: th.CDSSpreadMaxBps,
			})
		}
		if in.ImpliedPD > th.ImpliedPDMax {
			alerts = append(alerts, Alert{
				Channel:   ChannelMarket,
				Code:      "implied_pd_high",
				Severity:  SeverityCritical,
				Message:   fmt.Sprintf("market-implied PD %.1f%% above %.1f%%", in.ImpliedPD*100, th.ImpliedPDMax*100),
				Value:     in.ImpliedPD,
				Threshold: th.ImpliedPDMax,
			})
		}
	}

	if in := snap.News; in != nil && in.ArticleCount > 0 {
		if in.AvgSentiment < th.SentimentMin {
			alerts = append(alerts, Alert{
				Channel:   ChannelNews,
				Code:      "sentiment_negative",
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("average sentiment %.2f below %.2f", in.AvgSentiment, th.SentimentMin),
				Value:     in.AvgSentiment,
				Threshold: th.SentimentMin,
			})
		}
		if in.NegativeRatio > th.NegativeRatioMax {
			alerts = append(alerts, Alert{
				Channel:   ChannelNews,
				Code:      "negative_press_ratio",
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("negative article ratio %.0f%% above %.0f%%", in.NegativeRatio*100, th.NegativeRatioMax*100),
				Value:     in.NegativeRatio,
				Threshold: th.NegativeRatioMax,
			})
		}
	}

	if snap.ChainPD != nil && *snap.ChainPD > th.ChainPDMax {
		alerts = append(alerts, Alert{
			Channel:   ChannelSupplyChain,
			Code:      "chain_pd_high",
			Severity:  SeverityCritical,
			Message:   fmt.Sprintf("chain default probability %.1f%% above %.1f%%", *snap.ChainPD*100, th.ChainPDMax*100),
			Value:     *snap.ChainPD,
			Threshold: th.ChainPDMax,
		})
	}

	return alerts
}

// GradeTransitionAlert reports a slide into WARNING or CRITICAL from a
// previously better grade. Returns nil when no alerting transition
// happened.
func GradeTransitionAlert(previous, current Grade, composite float64) *Alert {
	if current.Severity() <= previous.Severity() {
		return nil
	}
	var sev AlertSeverity
	switch current {
	case GradeCritical:
		sev = SeverityCritical
	case GradeWarning:
		sev = SeverityWarning
	default:
		return nil
	}
	return &Alert{
		Code:     "grade_deteriorated",
		Severity: sev,
		Message:  fmt.Sprintf("grade moved from %s to %s at composite %.1f", previous, current, composite),
		Value:    composite,
	}
}
