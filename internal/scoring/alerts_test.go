package scoring

import "testing"

func alertCodes(alerts []Alert) map[string]Alert {
	m := make(map[string]Alert, len(alerts))
	for _, a := range alerts {
		m[a.Code] = a
	}
	return m
}

func TestEvaluateAlertsQuietPortfolio(t *testing.T) {
	snap := &CustomerSnapshot{
		Listed:      true,
		Transaction: &TransactionInputs{LimitUtilization: 0.4, PaymentDelayDays: 2},
		Registry:    &RegistryInputs{UnresolvedTotal: 1},
		Market:      &MarketInputs{DistanceToDefault: float64Ptr(4), CDSSpreadBps: 80, ImpliedPD: 0.01},
		News:        &NewsInputs{AvgSentiment: 0.1, NegativeRatio: 0.2, ArticleCount: 5},
		ChainPD:     float64Ptr(0.05),
	}
	if alerts := EvaluateAlerts(snap, DefaultAlertThresholds()); len(alerts) != 0 {
		t.Errorf("healthy snapshot raised %d alerts: %v", len(alerts), alerts)
	}
}

func TestEvaluateAlertsBreaches(t *testing.T) {
	snap := &CustomerSnapshot{
		Listed:      true,
		Transaction: &TransactionInputs{LimitUtilization: 0.92, PaymentDelayDays: 14, OverdraftCount: 3},
		Registry:    &RegistryInputs{UnresolvedTotal: 4, UnresolvedSevere: 2},
		Market:      &MarketInputs{DistanceToDefault: float64Ptr(1.2), CDSSpreadBps: 320, ImpliedPD: 0.18},
		News:        &NewsInputs{AvgSentiment: -0.5, NegativeRatio: 0.7, ArticleCount: 9},
		ChainPD:     float64Ptr(0.35),
	}

	got := alertCodes(EvaluateAlerts(snap, DefaultAlertThresholds()))
	want := []string{
		"limit_utilization_high", "payment_delay", "overdraft_spike",
		"registry_severe_events",
		"distance_to_default_low", "cds_spread_wide", "implied_pd_high",
		"sentiment_negative", "negative_press_ratio",
		"chain_pd_high",
	}
	for _, code := range want {
		if _, ok := got[code]; !ok {
			t.Errorf("expected alert %s", code)
		}
	}
	if len(got) != len(want) {
		t.Errorf("raised %d alerts, want %d", len(got), len(want))
	}
	if got["registry_severe_events"].Severity != SeverityCritical {
		t.Error("severe registry events should be critical")
	}
	if got["chain_pd_high"].Severity != SeverityCritical {
		t.Error("chain PD breach should be critical")
	}
}

func TestEvaluateAlertsSkipsMarketForUnlisted(t *testing.T) {
	snap := &CustomerSnapshot{
		Listed: false,
		Market: &MarketInputs{DistanceToDefault: float64Ptr(0.5), CDSSpreadBps: 500, ImpliedPD: 0.4},
	}
	if alerts := EvaluateAlerts(snap, DefaultAlertThresholds()); len(alerts) != 0 {
		t.Errorf("unlisted company has no market channel, got %v", alerts)
	}
}

func TestGradeTransitionAlert(t *testing.T) {
	if a := GradeTransitionAlert(GradeNormal, GradeWatch, 60); a != nil {
		t.Error("slide into WATCH is below the alerting bar")
	}
	if a := GradeTransitionAlert(GradeWatch, GradeWarning, 45); a == nil || a.Severity != SeverityWarning {
		t.Errorf("slide into WARNING should raise a warning alert, got %+v", a)
	}
	if a := GradeTransitionAlert(GradeWarning, GradeCritical, 20); a == nil || a.Severity != SeverityCritical {
		t.Errorf("slide into CRITICAL should raise a critical alert, got %+v", a)
	}
	if a := GradeTransitionAlert(GradeCritical, GradeWarning, 45); a != nil {
		t.Error("improvement must not raise a deterioration alert")
	}
	if a := GradeTransitionAlert(GradeWarning, GradeWarning, 45); a != nil {
		t.Error("unchanged grade must not raise an alert")
	}
}
