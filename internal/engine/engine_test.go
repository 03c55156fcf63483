package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Meridian-Analytics/Beacon/internal/config"
	"github.com/Meridian-Analytics/Beacon/internal/scoring"
	"github.com/Meridian-Analytics/Beacon/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockStore is a map-backed store.Store for engine tests. All methods are
// mutex-guarded because batch scoring hits it from worker goroutines.
type mockStore struct {
	mu        sync.Mutex
	companies map[uuid.UUID]*store.Company
	txn       map[string]*store.TransactionMetrics
	reg       map[string]*store.RegistryMetrics
	mkt       map[string]*store.MarketMetrics
	news      map[string]*store.NewsMetrics
	fin       map[string]*store.FinancialMetrics
	edges     []*store.SupplyChainEdge
	records   []*store.ScoreRecord
	runs      map[uuid.UUID]*store.ScoringRun
	alerts    []*store.Alert
}

func newMockStore() *mockStore {
	return &mockStore{
		companies: make(map[uuid.UUID]*store.Company),
		txn:       make(map[string]*store.TransactionMetrics),
		reg:       make(map[string]*store.RegistryMetrics),
		mkt:       make(map[string]*store.MarketMetrics),
		news:      make(map[string]*store.NewsMetrics),
		fin:       make(map[string]*store.FinancialMetrics),
		runs:      make(map[uuid.UUID]*store.ScoringRun),
	}
}

func metricKey(id uuid.UUID, period string) string { return id.String() + "|" + period }

func (m *mockStore) CreateCompany(_ context.Context, c *store.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[c.ID] = c
	return nil
}

func (m *mockStore) GetCompany(_ context.Context, id uuid.UUID) (*store.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.companies[id], nil
}

func (m *mockStore) ListCompanies(_ context.Context, _ store.CompanyFilter) ([]*store.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*store.Company, 0, len(m.companies))
	for _, c := range m.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *mockStore) UpsertTransactionMetrics(_ context.Context, r *store.TransactionMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txn[metricKey(r.CompanyID, r.Period)] = r
	return nil
}

func (m *mockStore) GetTransactionMetrics(_ context.Context, id uuid.UUID, period string) (*store.TransactionMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txn[metricKey(id, period)], nil
}

func (m *mockStore) UpsertRegistryMetrics(_ context.Context, r *store.RegistryMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reg[metricKey(r.CompanyID, r.Period)] = r
	return nil
}

func (m *mockStore) GetRegistryMetrics(_ context.Context, id uuid.UUID, period string) (*store.RegistryMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg[metricKey(id, period)], nil
}

func (m *mockStore) UpsertMarketMetrics(_ context.Context, r *store.MarketMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkt[metricKey(r.CompanyID, r.Period)] = r
	return nil
}

func (m *mockStore) GetMarketMetrics(_ context.Context, id uuid.UUID, period string) (*store.MarketMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mkt[metricKey(id, period)], nil
}

func (m *mockStore) UpsertNewsMetrics(_ context.Context, r *store.NewsMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.news[metricKey(r.CompanyID, r.Period)] = r
	return nil
}

func (m *mockStore) GetNewsMetrics(_ context.Context, id uuid.UUID, period string) (*store.NewsMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.news[metricKey(id, period)], nil
}

func (m *mockStore) UpsertFinancialMetrics(_ context.Context, r *store.FinancialMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fin[metricKey(r.CompanyID, r.Period)] = r
	return nil
}

func (m *mockStore) GetFinancialMetrics(_ context.Context, id uuid.UUID, period string) (*store.FinancialMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fin[metricKey(id, period)], nil
}

func (m *mockStore) CreateSupplyChainEdge(_ context.Context, e *store.SupplyChainEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, e)
	return nil
}

func (m *mockStore) ListSupplyChainEdges(_ context.Context, period string) ([]*store.SupplyChainEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.SupplyChainEdge
	for _, e := range m.edges {
		if e.Period == period {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) CreateScoreRecord(_ context.Context, r *store.ScoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *mockStore) GetLatestScoreRecord(_ context.Context, id uuid.UUID) (*store.ScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *store.ScoreRecord
	for _, r := range m.records {
		if r.CompanyID == id && (best == nil || r.Period > best.Period) {
			best = r
		}
	}
	return best, nil
}

func (m *mockStore) GetLatestScoreBefore(_ context.Context, id uuid.UUID, period string) (*store.ScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *store.ScoreRecord
	for _, r := range m.records {
		if r.CompanyID == id && r.Period < period && (best == nil || r.Period > best.Period) {
			best = r
		}
	}
	return best, nil
}

func (m *mockStore) ListScoreHistory(_ context.Context, id uuid.UUID, _ int) ([]*store.ScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.ScoreRecord
	for _, r := range m.records {
		if r.CompanyID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) ListLatestScores(_ context.Context) ([]*store.ScoreRecord, error) {
	return nil, nil
}

func (m *mockStore) Watchlist(_ context.Context, _ int) ([]*store.ScoreRecord, error) {
	return nil, nil
}

func (m *mockStore) CreateScoringRun(_ context.Context, run *store.ScoringRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *mockStore) UpdateScoringRun(_ context.Context, run *store.ScoringRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *mockStore) GetScoringRun(_ context.Context, id uuid.UUID) (*store.ScoringRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id], nil
}

func (m *mockStore) ListScoringRuns(_ context.Context, _ int) ([]*store.ScoringRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.ScoringRun
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockStore) CreateAlert(_ context.Context, a *store.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	return nil
}

func (m *mockStore) ListAlerts(_ context.Context, _ store.AlertFilter) ([]*store.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*store.Alert(nil), m.alerts...), nil
}

func (m *mockStore) AcknowledgeAlert(_ context.Context, id uuid.UUID, by string) (*store.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == id {
			a.Acknowledged = true
			a.AcknowledgedBy = by
			now := time.Now().UTC()
			a.AcknowledgedAt = &now
			return a, nil
		}
	}
	return nil, nil
}

func (m *mockStore) DashboardSummary(_ context.Context) (*store.DashboardSummary, error) {
	return &store.DashboardSummary{}, nil
}

func (m *mockStore) Close() error { return nil }

func (m *mockStore) alertCodes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, a.Code)
	}
	return out
}

// captureBus records published subjects instead of talking to a broker.
type captureBus struct {
	mu       sync.Mutex
	subjects []string
}

func (b *captureBus) Publish(subject string, _ interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjects = append(b.subjects, subject)
	return nil
}

func (b *captureBus) Close() {}

func (b *captureBus) published(suffix string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subjects {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func testEngine(t *testing.T, ms store.Store, bus *captureBus) *Engine {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	m := NewMetrics(prometheus.NewRegistry())
	return New(ms, bus, nil, cfg, m, discardLogger())
}

func addCompany(t *testing.T, ms *mockStore, name, grade string, listed bool) *store.Company {
	t.Helper()
	c := &store.Company{
		ID:          uuid.New(),
		Name:        name,
		Listed:      listed,
		CreditGrade: grade,
		CreatedAt:   time.Now().UTC(),
	}
	if err := ms.CreateCompany(context.Background(), c); err != nil {
		t.Fatalf("create company: %v", err)
	}
	return c
}

func addTransaction(t *testing.T, ms *mockStore, id uuid.UUID, period string, in scoring.TransactionInputs) {
	t.Helper()
	err := ms.UpsertTransactionMetrics(context.Background(), &store.TransactionMetrics{
		CompanyID:         id,
		Period:            period,
		TransactionInputs: in,
	})
	if err != nil {
		t.Fatalf("upsert transaction metrics: %v", err)
	}
}

func TestPeriodOf(t *testing.T) {
	got := PeriodOf(time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC))
	if got != "2024-03" {
		t.Fatalf("PeriodOf = %q, want 2024-03", got)
	}
}

func TestRunBatchScoresPortfolio(t *testing.T) {
	ms := newMockStore()
	bus := &captureBus{}
	healthy := addCompany(t, ms, "Healthy Manufacturing", "BBB", false)
	stressed := addCompany(t, ms, "Stressed Logistics", "B", false)
	addTransaction(t, ms, healthy.ID, "2024-02", scoring.TransactionInputs{
		LimitUtilization: 0.2, PaymentDelayDays: 1,
	})
	addTransaction(t, ms, stressed.ID, "2024-02", scoring.TransactionInputs{
		LimitUtilization: 0.95, PaymentDelayDays: 25, OverdraftCount: 3,
	})

	e := testEngine(t, ms, bus)
	res, err := e.RunBatch(context.Background(), "2024-02")
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("scored %d companies, want 2", len(res.Records))
	}
	if len(res.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", res.Failures)
	}

	// riskiest first
	if res.Records[0].CompanyID != stressed.ID {
		t.Errorf("records not sorted by composite ascending: first is %s", res.Records[0].CompanyID)
	}
	for _, r := range res.Records {
		if r.RunID != res.RunID {
			t.Errorf("record run ID %s does not match run %s", r.RunID, res.RunID)
		}
	}

	run, err := ms.GetScoringRun(context.Background(), res.RunID)
	if err != nil || run == nil {
		t.Fatalf("run not persisted: %v", err)
	}
	if run.Status != store.RunStatusCompleted {
		t.Errorf("run status = %s, want completed", run.Status)
	}
	if run.CompaniesScored != 2 || run.CompaniesFailed != 0 {
		t.Errorf("run counts = %d/%d, want 2/0", run.CompaniesScored, run.CompaniesFailed)
	}
	if run.CompletedAt == nil {
		t.Error("run has no completion time")
	}
	if !bus.published(".completed") {
		t.Error("run completion event not published")
	}
}

func TestRunBatchIsolatesCompanyFailures(t *testing.T) {
	ms := newMockStore()
	bus := &captureBus{}
	// no metrics and no resolvable standalone PD: every channel
	// unavailable, composite cannot be formed
	empty := addCompany(t, ms, "No Data Corp", "", false)
	healthy := addCompany(t, ms, "Healthy Corp", "A", false)
	addTransaction(t, ms, healthy.ID, "2024-02", scoring.TransactionInputs{LimitUtilization: 0.1})

	e := testEngine(t, ms, bus)
	res, err := e.RunBatch(context.Background(), "2024-02")
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].CompanyID != healthy.ID {
		t.Fatalf("healthy company not scored: %+v", res.Records)
	}
	if len(res.Failures) != 1 || res.Failures[0].CompanyID != empty.ID {
		t.Fatalf("empty company not isolated as failure: %+v", res.Failures)
	}
	if !strings.Contains(res.Failures[0].Error, "insufficient") {
		t.Errorf("failure error %q does not name the cause", res.Failures[0].Error)
	}

	run, _ := ms.GetScoringRun(context.Background(), res.RunID)
	if run.CompaniesScored != 1 || run.CompaniesFailed != 1 {
		t.Errorf("run counts = %d/%d, want 1/1", run.CompaniesScored, run.CompaniesFailed)
	}
}

func TestRunBatchRejectsConcurrentRun(t *testing.T) {
	ms := newMockStore()
	e := testEngine(t, ms, &captureBus{})
	if !e.tryBeginRun() {
		t.Fatal("could not acquire run gate")
	}
	defer e.endRun()

	_, err := e.RunBatch(context.Background(), "2024-02")
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("concurrent RunBatch error = %v, want ErrRunInProgress", err)
	}
}

func TestRunBatchDerivesTrendAndTransitionAlert(t *testing.T) {
	ms := newMockStore()
	bus := &captureBus{}
	c := addCompany(t, ms, "Sliding Retail", "BB", false)

	// prior period on record: NORMAL at 96
	prev := &store.ScoreRecord{
		ID:        uuid.New(),
		CompanyID: c.ID,
		RunID:     uuid.New(),
		Period:    "2024-01",
		Composite: 96,
		Grade:     scoring.GradeNormal,
	}
	if err := ms.CreateScoreRecord(context.Background(), prev); err != nil {
		t.Fatalf("seed previous record: %v", err)
	}

	// current period collapses. Transaction: 100 - 40 - 4.5 - 30 - 15 =
	// 10.5. Supply chain from the BB standalone PD: 100 - 100*0.01 = 99.
	// Renormalized over {0.30, 0.15}: (0.30*10.5 + 0.15*99)/0.45 = 40,
	// WARNING.
	addTransaction(t, ms, c.ID, "2024-02", scoring.TransactionInputs{
		LimitUtilization: 1.0, PaymentDelayDays: 9, DepositOutflow: 1.0, OverdraftCount: 3,
	})

	e := testEngine(t, ms, bus)
	res, err := e.RunBatch(context.Background(), "2024-02")
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("scored %d companies, want 1", len(res.Records))
	}
	rec := res.Records[0]
	if math.Abs(rec.Composite-40) > 1e-9 {
		t.Errorf("composite = %.4f, want 40", rec.Composite)
	}
	if rec.Grade != scoring.GradeWarning {
		t.Errorf("grade = %s, want WARNING", rec.Grade)
	}
	if rec.Trend != scoring.TrendDeteriorating {
		t.Errorf("trend = %s, want deteriorating", rec.Trend)
	}

	codes := ms.alertCodes()
	want := map[string]bool{
		"grade_deteriorated":     false,
		"limit_utilization_high": false,
		"payment_delay":          false,
		"overdraft_spike":        false,
	}
	for _, code := range codes {
		if _, ok := want[code]; ok {
			want[code] = true
		}
	}
	for code, seen := range want {
		if !seen {
			t.Errorf("alert %s not raised (got %v)", code, codes)
		}
	}
	if !bus.published(".grade.changed") {
		t.Error("grade change event not published")
	}
	if !bus.published(".alert") {
		t.Error("alert events not published")
	}
}

func TestChannelScoreSupplyChainUsesPropagation(t *testing.T) {
	ms := newMockStore()
	supplier := addCompany(t, ms, "Distressed Supplier", "CCC", false)
	buyer := addCompany(t, ms, "Dependent Buyer", "AAA", false)
	err := ms.CreateSupplyChainEdge(context.Background(), &store.SupplyChainEdge{
		ID:              uuid.New(),
		CompanyID:       buyer.ID,
		PartnerID:       supplier.ID,
		DependencyRatio: 0.5,
		PaymentStatus:   "DELINQUENT",
		Period:          "2024-02",
	})
	if err != nil {
		t.Fatalf("create edge: %v", err)
	}

	e := testEngine(t, ms, &captureBus{})
	res, err := e.ChannelScore(context.Background(), buyer.ID, scoring.ChannelSupplyChain, "2024-02")
	if err != nil {
		t.Fatalf("ChannelScore: %v", err)
	}
	if !res.Available {
		t.Fatalf("supply channel unavailable: %s", res.Reason)
	}

	// chain PD = 0.0002 + 0.5 * 0.15 * 1.30 = 0.0977
	wantScore := 100 - 100*0.0977
	if math.Abs(res.Score-wantScore) > 1e-6 {
		t.Errorf("supply score = %.6f, want %.6f", res.Score, wantScore)
	}
}

func TestChannelScoreTransaction(t *testing.T) {
	ms := newMockStore()
	c := addCompany(t, ms, "Checking Co", "BBB", false)
	addTransaction(t, ms, c.ID, "2024-02", scoring.TransactionInputs{
		LimitUtilization: 0.5, PaymentDelayDays: 10, DepositOutflow: 0.1, OverdraftCount: 1,
	})

	e := testEngine(t, ms, &captureBus{})
	res, err := e.ChannelScore(context.Background(), c.ID, scoring.ChannelTransaction, "2024-02")
	if err != nil {
		t.Fatalf("ChannelScore: %v", err)
	}
	// 100 - 20 - 5 - 3 - 5 = 67
	if math.Abs(res.Score-67) > 1e-9 {
		t.Errorf("transaction score = %.4f, want 67", res.Score)
	}
}

func TestComputeCompositePreviewDoesNotPersist(t *testing.T) {
	ms := newMockStore()
	c := addCompany(t, ms, "Preview Co", "A", false)
	addTransaction(t, ms, c.ID, "2024-02", scoring.TransactionInputs{LimitUtilization: 0.3})

	e := testEngine(t, ms, &captureBus{})
	comp, err := e.ComputeComposite(context.Background(), c.ID, "2024-02")
	if err != nil {
		t.Fatalf("ComputeComposite: %v", err)
	}
	if comp.Composite <= 0 {
		t.Errorf("composite = %.4f, want positive", comp.Composite)
	}
	if len(ms.records) != 0 {
		t.Errorf("preview persisted %d records, want none", len(ms.records))
	}
}

func TestComputeCompositeUnknownCompany(t *testing.T) {
	e := testEngine(t, newMockStore(), &captureBus{})
	_, err := e.ComputeComposite(context.Background(), uuid.New(), "2024-02")
	if !errors.Is(err, ErrCompanyNotFound) {
		t.Fatalf("error = %v, want ErrCompanyNotFound", err)
	}
}
