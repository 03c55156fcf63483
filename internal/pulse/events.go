package pulse

import "time"

type RunCompletedEvent struct {
	RunID           string    `json:"run_id"`
	Period          string    `json:"period"`
	CompaniesScored int       `json:"companies_scored"`
	CompaniesFailed int       `json:"companies_failed"`
	Converged       bool      `json:"propagation_converged"`
	Iterations      int       `json:"propagation_iterations"`
	DurationSeconds float64   `json:"duration_seconds"`
	CompletedAt     time.Time `json:"completed_at"`
}

type RunFailedEvent struct {
	RunID  string `json:"run_id"`
	Period string `json:"period"`
	Error  string `json:"error"`
}

type CompanyScoredEvent struct {
	CompanyID string  `json:"company_id"`
	Period    string  `json:"period"`
	Composite float64 `json:"composite_score"`
	Grade     string  `json:"grade"`
	RiskLevel string  `json:"risk_level"`
	Trend     string  `json:"trend"`
}

type GradeChangedEvent struct {
	CompanyID string  `json:"company_id"`
	Period    string  `json:"period"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Composite float64 `json:"composite_score"`
}

type AlertEvent struct {
	CompanyID string  `json:"company_id"`
	AlertID   string  `json:"alert_id"`
	Period    string  `json:"period"`
	Channel   string  `json:"channel,omitempty"`
	Code      string  `json:"code"`
	Severity  string  `json:"severity"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
}

type PropagationDivergedEvent struct {
	Period     string  `json:"period"`
	Iterations int     `json:"iterations"`
	MaxDelta   float64 `json:"max_delta"`
	Nodes      int     `json:"nodes"`
	Edges      int     `json:"edges"`
}
