package scoring

import (
	"fmt"
	"math"
	"strings"
)

// Grade is the 4-level ordinal early-warning grade. Ordering by severity:
// NORMAL < WATCH < WARNING < CRITICAL.
type Grade string

const (
	GradeNormal   Grade = "NORMAL"
	GradeWatch    Grade = "WATCH"
	GradeWarning  Grade = "WARNING"
	GradeCritical Grade = "CRITICAL"
)

// GradeBands holds the lower bound of each grade band above CRITICAL.
// Bands are closed on the lower bound and open on the upper, except the
// top band which is closed at 100. Like the weight profiles, bands are
// injected configuration validated at load, never process-global state.
type GradeBands struct {
	NormalMin  float64
	WatchMin   float64
	WarningMin float64
}

// DefaultGradeBands returns the standard 75/55/35 thresholds.
func DefaultGradeBands() GradeBands {
	return GradeBands{NormalMin: 75, WatchMin: 55, WarningMin: 35}
}

// Validate checks that the thresholds descend and stay inside (0,100].
func (b GradeBands) Validate() error {
	if !(b.NormalMin > b.WatchMin && b.WatchMin > b.WarningMin && b.WarningMin > 0) {
		return fmt.Errorf("grade thresholds must descend: normal %.1f > watch %.1f > warning %.1f > 0",
			b.NormalMin, b.WatchMin, b.WarningMin)
	}
	if b.NormalMin > 100 {
		return fmt.Errorf("normal threshold %.1f above maximum score 100", b.NormalMin)
	}
	return nil
}

// Grade maps a composite score onto its band.
func (b GradeBands) Grade(score float64) Grade {
	switch {
	case score >= b.NormalMin:
		return GradeNormal
	case score >= b.WatchMin:
		return GradeWatch
	case score >= b.WarningMin:
		return GradeWarning
	default:
		return GradeCritical
	}
}

// GradeFromScore maps a composite score onto its grade under the default
// bands.
func GradeFromScore(score float64) Grade {
	return DefaultGradeBands().Grade(score)
}

// Severity returns the grade's ordinal severity, 0 for NORMAL up to 3 for
// CRITICAL. Unknown grades rank most severe.
func (g Grade) Severity() int {
	switch g {
	case GradeNormal:
		return 0
	case GradeWatch:
		return 1
	case GradeWarning:
		return 2
	default:
		return 3
	}
}

// RiskLevel is the coarser dashboard bucket reported next to the grade.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevelFromScore maps a composite score onto the dashboard risk level.
func RiskLevelFromScore(score float64) RiskLevel {
	switch {
	case score >= 70:
		return RiskLow
	case score >= 50:
		return RiskMedium
	case score >= 30:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// PD floor for a top-scoring company and ceiling for a zero score. The
// estimate interpolates log-linearly between them, so each score point
// moves the PD by a constant factor.
const (
	pdFloor = 0.0002
	pdCeil  = 0.99
)

// PredictedDefaultProb maps a composite score onto a monotone default
// probability estimate in [pdFloor, pdCeil].
func PredictedDefaultProb(score float64) float64 {
	s, _ := clampScore(score)
	pd := pdFloor * math.Pow(pdCeil/pdFloor, (100-s)/100)
	if pd < pdFloor {
		return pdFloor
	}
	if pd > pdCeil {
		return pdCeil
	}
	return pd
}

// standalonePDByGrade maps an agency-style credit grade to the standalone
// one-year default probability used to seed chain propagation.
var standalonePDByGrade = map[string]float64{
	"AAA": 0.0002,
	"AA":  0.0005,
	"A":   0.001,
	"BBB": 0.003,
	"BB":  0.01,
	"B":   0.05,
	"CCC": 0.15,
	"CC":  0.30,
	"C":   0.50,
	"D":   1.0,
}

// StandalonePD resolves a credit grade (modifiers like AA+ or BBB- are
// folded into their base grade) to a standalone default probability.
// The second return is false for unknown grades.
func StandalonePD(creditGrade string) (float64, bool) {
	g := strings.TrimRight(strings.ToUpper(strings.TrimSpace(creditGrade)), "+-")
	pd, ok := standalonePDByGrade[g]
	return pd, ok
}

// Recommendation returns the monitoring action for a grade, sharpened when
// the trend is deteriorating.
func Recommendation(grade Grade, trend Trend) string {
	var action string
	switch grade {
	case GradeNormal:
		action = "routine monitoring"
	case GradeWatch:
		action = "shorten monitoring cycle"
	case GradeWarning:
		action = "add to watchlist and review exposure"
	default:
		action = "urgent review; assess recovery options"
	}
	if trend == TrendDeteriorating && grade != GradeCritical {
		action += "; deteriorating, re-score next period"
	}
	return action
}
