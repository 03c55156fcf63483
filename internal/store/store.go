package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Meridian-Analytics/Beacon/internal/scoring"
)

// Company is the monitored reference entity. Created by ingestion, never
// mutated by the scoring engine.
type Company struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Industry    string    `json:"industry,omitempty"`
	Listed      bool      `json:"listed"`
	CreditGrade string    `json:"credit_grade,omitempty"`

	// StandalonePD overrides the credit-grade default when set.
	StandalonePD *float64 `json:"standalone_pd,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CompanyFilter struct {
	Listed   *bool
	Industry string
	Limit    int
	Offset   int
}

// Per-channel metric rows, one per (company, period), written by the
// ingest boundary and read by the scoring run. The embedded input structs
// are exactly what the channel scorers consume.

type TransactionMetrics struct {
	CompanyID uuid.UUID `json:"company_id"`
	Period    string    `json:"period"`
	scoring.TransactionInputs
	CreatedAt time.Time `json:"created_at"`
}

type RegistryMetrics struct {
	CompanyID uuid.UUID `json:"company_id"`
	Period    string    `json:"period"`
	scoring.RegistryInputs
	CreatedAt time.Time `json:"created_at"`
}

type MarketMetrics struct {
	CompanyID uuid.UUID `json:"company_id"`
	Period    string    `json:"period"`
	scoring.MarketInputs
	CreatedAt time.Time `json:"created_at"`
}

type NewsMetrics struct {
	CompanyID uuid.UUID `json:"company_id"`
	Period    string    `json:"period"`
	scoring.NewsInputs
	CreatedAt time.Time `json:"created_at"`
}

type FinancialMetrics struct {
	CompanyID uuid.UUID `json:"company_id"`
	Period    string    `json:"period"`
	scoring.FinancialInputs
	CreatedAt time.Time `json:"created_at"`
}

// SupplyChainEdge records that a company depends on a partner for
// DependencyRatio of its trade volume during one period. The graph
// snapshot for a period is rebuilt from these rows on every run.
type SupplyChainEdge struct {
	ID              uuid.UUID `json:"id"`
	CompanyID       uuid.UUID `json:"company_id"`
	PartnerID       uuid.UUID `json:"partner_id"`
	DependencyRatio float64   `json:"dependency_ratio"`
	PaymentStatus   string    `json:"payment_status"`
	Period          string    `json:"period"`
	CreatedAt       time.Time `json:"created_at"`
}

// ScoreRecord is the persisted, immutable composite score for one
// company and period. Corrections are new records under a later run;
// history is never rewritten.
type ScoreRecord struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	RunID     uuid.UUID `json:"run_id"`
	Period    string    `json:"period"`

	Composite float64           `json:"composite_score"`
	Grade     scoring.Grade     `json:"grade"`
	RiskLevel scoring.RiskLevel `json:"risk_level"`
	Trend     scoring.Trend     `json:"trend"`

	PredictedPD    float64 `json:"predicted_default_prob"`
	Recommendation string  `json:"recommendation"`
	Renormalized   bool    `json:"renormalized"`

	Channels []scoring.ChannelResult `json:"channels"`
	Warnings []string                `json:"warnings,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ScoringRun is the audit record of one batch evaluation.
type ScoringRun struct {
	ID     uuid.UUID `json:"id"`
	Period string    `json:"period"`
	Status RunStatus `json:"status"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CompaniesScored int `json:"companies_scored"`
	CompaniesFailed int `json:"companies_failed"`

	PropagationConverged  bool   `json:"propagation_converged"`
	PropagationIterations int    `json:"propagation_iterations"`
	Error                 string `json:"error,omitempty"`
}

// Alert is a persisted threshold breach, acknowledgeable from the
// dashboard.
type Alert struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	RunID     uuid.UUID `json:"run_id"`
	Period    string    `json:"period"`

	Channel   string  `json:"channel,omitempty"`
	Code      string  `json:"code"`
	Severity  string  `json:"severity"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`

	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type AlertFilter struct {
	CompanyID    *uuid.UUID
	Severity     string
	Acknowledged *bool
	Limit        int
	Offset       int
}

// DashboardSummary aggregates the latest score per company for the
// portfolio overview.
type DashboardSummary struct {
	TotalCompanies int            `json:"total_companies"`
	GradeCounts    map[string]int `json:"grade_counts"`
	AvgComposite   float64        `json:"avg_composite"`
	Deteriorating  int            `json:"deteriorating"`
	OpenAlerts     int            `json:"open_alerts"`
	LastRun        *ScoringRun    `json:"last_run,omitempty"`
}

type Store interface {
	CreateCompany(ctx context.Context, c *Company) error
	GetCompany(ctx context.Context, id uuid.UUID) (*Company, error)
	ListCompanies(ctx context.Context, filter CompanyFilter) ([]*Company, error)

	UpsertTransactionMetrics(ctx context.Context, m *TransactionMetrics) error
	GetTransactionMetrics(ctx context.Context, companyID uuid.UUID, period string) (*TransactionMetrics, error)
	UpsertRegistryMetrics(ctx context.Context, m *RegistryMetrics) error
	GetRegistryMetrics(ctx context.Context, companyID uuid.UUID, period string) (*RegistryMetrics, error)
	UpsertMarketMetrics(ctx context.Context, m *MarketMetrics) error
	GetMarketMetrics(ctx context.Context, companyID uuid.UUID, period string) (*MarketMetrics, error)
	UpsertNewsMetrics(ctx context.Context, m *NewsMetrics) error
	GetNewsMetrics(ctx context.Context, companyID uuid.UUID, period string) (*NewsMetrics, error)
	UpsertFinancialMetrics(ctx context.Context, m *FinancialMetrics) error
	GetFinancialMetrics(ctx context.Context, companyID uuid.UUID, period string) (*FinancialMetrics, error)

	CreateSupplyChainEdge(ctx context.Context, e *SupplyChainEdge) error
	ListSupplyChainEdges(ctx context.Context, period string) ([]*SupplyChainEdge, error)

	CreateScoreRecord(ctx context.Context, r *ScoreRecord) error
	GetLatestScoreRecord(ctx context.Context, companyID uuid.UUID) (*ScoreRecord, error)
	GetLatestScoreBefore(ctx context.Context, companyID uuid.UUID, period string) (*ScoreRecord, error)
	ListScoreHistory(ctx context.Context, companyID uuid.UUID, limit int) ([]*ScoreRecord, error)
	ListLatestScores(ctx context.Context) ([]*ScoreRecord, error)
	Watchlist(ctx context.Context, limit int) ([]*ScoreRecord, error)

	CreateScoringRun(ctx context.Context, run *ScoringRun) error
	UpdateScoringRun(ctx context.Context, run *ScoringRun) error
	GetScoringRun(ctx context.Context, id uuid.UUID) (*ScoringRun, error)
	ListScoringRuns(ctx context.Context, limit int) ([]*ScoringRun, error)

	CreateAlert(ctx context.Context, a *Alert) error
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*Alert, error)
	AcknowledgeAlert(ctx context.Context, id uuid.UUID, by string) (*Alert, error)

	DashboardSummary(ctx context.Context) (*DashboardSummary, error)

	Close() error
}
