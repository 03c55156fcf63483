package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Meridian-Analytics/Beacon/internal/engine"
	"github.com/Meridian-Analytics/Beacon/internal/scoring"
	"github.com/Meridian-Analytics/Beacon/internal/store"
)

// MockStore implements store.Store for handler tests.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateCompany(ctx context.Context, c *store.Company) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockStore) GetCompany(ctx context.Context, id uuid.UUID) (*store.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Company), args.Error(1)
}

func (m *MockStore) ListCompanies(ctx context.Context, filter store.CompanyFilter) ([]*store.Company, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Company), args.Error(1)
}

func (m *MockStore) UpsertTransactionMetrics(ctx context.Context, r *store.TransactionMetrics) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockStore) GetLatestScoreRecord(ctx context.Context, id uuid.UUID) (*store.ScoreRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.ScoreRecord), args.Error(1)
}

func (m *MockStore) CreateSupplyChainEdge(ctx context.Context, e *store.SupplyChainEdge) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockStore) AcknowledgeAlert(ctx context.Context, id uuid.UUID, by string) (*store.Alert, error) {
	args := m.Called(ctx, id, by)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Alert), args.Error(1)
}

// Remaining store methods are not exercised by these tests.
func (m *MockStore) UpsertRegistryMetrics(ctx context.Context, r *store.RegistryMetrics) error { return nil }
func (m *MockStore) GetTransactionMetrics(ctx context.Context, id uuid.UUID, period string) (*store.TransactionMetrics, error) { return nil, nil }
func (m *MockStore) GetRegistryMetrics(ctx context.Context, id uuid.UUID, period string) (*store.RegistryMetrics, error) { return nil, nil }
func (m *MockStore) UpsertMarketMetrics(ctx context.Context, r *store.MarketMetrics) error { return nil }
func (m *MockStore) GetMarketMetrics(ctx context.Context, id uuid.UUID, period string) (*store.MarketMetrics, error) { return nil, nil }
func (m *MockStore) UpsertNewsMetrics(ctx context.Context, r *store.NewsMetrics) error { return nil }
func (m *MockStore) GetNewsMetrics(ctx context.Context, id uuid.UUID, period string) (*store.NewsMetrics, error) { return nil, nil }
func (m *MockStore) UpsertFinancialMetrics(ctx context.Context, r *store.FinancialMetrics) error { return nil }
func (m *MockStore) GetFinancialMetrics(ctx context.Context, id uuid.UUID, period string) (*store.FinancialMetrics, error) { return nil, nil }
func (m *MockStore) ListSupplyChainEdges(ctx context.Context, period string) ([]*store.SupplyChainEdge, error) { return nil, nil }
func (m *MockStore) CreateScoreRecord(ctx context.Context, r *store.ScoreRecord) error { return nil }
func (m *MockStore) GetLatestScoreBefore(ctx context.Context, id uuid.UUID, period string) (*store.ScoreRecord, error) { return nil, nil }
func (m *MockStore) ListScoreHistory(ctx context.Context, id uuid.UUID, limit int) ([]*store.ScoreRecord, error) { return nil, nil }
func (m *MockStore) ListLatestScores(ctx context.Context) ([]*store.ScoreRecord, error) { return nil, nil }
func (m *MockStore) Watchlist(ctx context.Context, limit int) ([]*store.ScoreRecord, error) { return nil, nil }
func (m *MockStore) CreateScoringRun(ctx context.Context, run *store.ScoringRun) error { return nil }
func (m *MockStore) UpdateScoringRun(ctx context.Context, run *store.ScoringRun) error { return nil }
func (m *MockStore) GetScoringRun(ctx context.Context, id uuid.UUID) (*store.ScoringRun, error) { return nil, nil }
func (m *MockStore) ListScoringRuns(ctx context.Context, limit int) ([]*store.ScoringRun, error) { return nil, nil }
func (m *MockStore) CreateAlert(ctx context.Context, a *store.Alert) error { return nil }
func (m *MockStore) ListAlerts(ctx context.Context, filter store.AlertFilter) ([]*store.Alert, error) { return nil, nil }
func (m *MockStore) DashboardSummary(ctx context.Context) (*store.DashboardSummary, error) { return nil, nil }
func (m *MockStore) Close() error { return nil }

// MockEngine implements the Engine interface for handler tests.
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) RunBatch(ctx context.Context, period string) (*engine.BatchResult, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.BatchResult), args.Error(1)
}

func (m *MockEngine) ComputeComposite(ctx context.Context, companyID uuid.UUID, period string) (*scoring.CompositeResult, error) {
	args := m.Called(ctx, companyID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scoring.CompositeResult), args.Error(1)
}

func (m *MockEngine) ChannelScore(ctx context.Context, companyID uuid.UUID, ch scoring.Channel, period string) (scoring.ChannelResult, error) {
	args := m.Called(ctx, companyID, ch, period)
	return args.Get(0).(scoring.ChannelResult), args.Error(1)
}

func (m *MockEngine) CurrentPeriod() string {
	return "2024-02"
}

func testRouter(s store.Store, eng Engine, adminToken string) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(s, eng, adminToken, 20, logger)
}

func TestCreateCompany(t *testing.T) {
	mockStore := &MockStore{}
	mockStore.On("CreateCompany", mock.Anything, mock.AnythingOfType("*store.Company")).Return(nil)

	r := testRouter(mockStore, &MockEngine{}, "")

	body, _ := json.Marshal(CreateCompanyRequest{
		Name:        "Nordwind Logistics",
		Industry:    "transport",
		Listed:      false,
		CreditGrade: "BB",
	})
	req := httptest.NewRequest("POST", "/api/v1/companies", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	mockStore.AssertExpectations(t)
}

func TestCreateCompanyValidation(t *testing.T) {
	r := testRouter(&MockStore{}, &MockEngine{}, "")

	bad := 1.5
	cases := []struct {
		name string
		req  CreateCompanyRequest
	}{
		{"missing name", CreateCompanyRequest{Listed: true}},
		{"pd out of range", CreateCompanyRequest{Name: "X", StandalonePD: &bad}},
		{"unknown grade", CreateCompanyRequest{Name: "X", CreditGrade: "ZZ"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(tc.req)
			req := httptest.NewRequest("POST", "/api/v1/companies", bytes.NewReader(body))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestUpsertMetricsRejectsMarketForUnlisted(t *testing.T) {
	mockStore := &MockStore{}
	id := uuid.New()
	mockStore.On("GetCompany", mock.Anything, id).Return(&store.Company{
		ID: id, Name: "Private Co", Listed: false,
	}, nil)

	r := testRouter(mockStore, &MockEngine{}, "")

	body, _ := json.Marshal(MetricsUpsertRequest{
		Market: &scoring.MarketInputs{CDSSpreadBps: 120},
	})
	req := httptest.NewRequest("PUT", "/api/v1/companies/"+id.String()+"/metrics/2024-02", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpsertMetricsBadPeriod(t *testing.T) {
	r := testRouter(&MockStore{}, &MockEngine{}, "")

	body, _ := json.Marshal(MetricsUpsertRequest{Transaction: &scoring.TransactionInputs{}})
	req := httptest.NewRequest("PUT", "/api/v1/companies/"+uuid.NewString()+"/metrics/Feb-2024", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpsertMetrics(t *testing.T) {
	mockStore := &MockStore{}
	id := uuid.New()
	mockStore.On("GetCompany", mock.Anything, id).Return(&store.Company{
		ID: id, Name: "Borrower GmbH", Listed: false,
	}, nil)
	mockStore.On("UpsertTransactionMetrics", mock.Anything, mock.AnythingOfType("*store.TransactionMetrics")).Return(nil)

	r := testRouter(mockStore, &MockEngine{}, "")

	body, _ := json.Marshal(MetricsUpsertRequest{
		Transaction: &scoring.TransactionInputs{LimitUtilization: 0.4, PaymentDelayDays: 3},
	})
	req := httptest.NewRequest("PUT", "/api/v1/companies/"+id.String()+"/metrics/2024-02", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	mockStore.AssertExpectations(t)
}

func TestCreateEdgeValidation(t *testing.T) {
	r := testRouter(&MockStore{}, &MockEngine{}, "")
	self := uuid.NewString()

	cases := []struct {
		name string
		req  CreateEdgeRequest
	}{
		{"self edge", CreateEdgeRequest{CompanyID: self, PartnerID: self, DependencyRatio: 0.5, Period: "2024-02"}},
		{"ratio above 1", CreateEdgeRequest{CompanyID: uuid.NewString(), PartnerID: uuid.NewString(), DependencyRatio: 1.5, Period: "2024-02"}},
		{"bad status", CreateEdgeRequest{CompanyID: uuid.NewString(), PartnerID: uuid.NewString(), DependencyRatio: 0.5, PaymentStatus: "LATE", Period: "2024-02"}},
		{"bad period", CreateEdgeRequest{CompanyID: uuid.NewString(), PartnerID: uuid.NewString(), DependencyRatio: 0.5, Period: "2024"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(tc.req)
			req := httptest.NewRequest("POST", "/api/v1/edges", bytes.NewReader(body))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestLatestScoreNotFound(t *testing.T) {
	mockStore := &MockStore{}
	id := uuid.New()
	mockStore.On("GetLatestScoreRecord", mock.Anything, id).Return(nil, nil)

	r := testRouter(mockStore, &MockEngine{}, "")

	req := httptest.NewRequest("GET", "/api/v1/companies/"+id.String()+"/score", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChannelScoreUnknownChannel(t *testing.T) {
	r := testRouter(&MockStore{}, &MockEngine{}, "")

	req := httptest.NewRequest("GET", "/api/v1/companies/"+uuid.NewString()+"/channels/astrology", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChannelScore(t *testing.T) {
	mockEngine := &MockEngine{}
	id := uuid.New()
	mockEngine.On("ChannelScore", mock.Anything, id, scoring.ChannelTransaction, "2024-02").Return(scoring.ChannelResult{
		Channel:   scoring.ChannelTransaction,
		Score:     67,
		Available: true,
	}, nil)

	r := testRouter(&MockStore{}, mockEngine, "")

	req := httptest.NewRequest("GET", "/api/v1/companies/"+id.String()+"/channels/transaction?period=2024-02", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var res scoring.ChannelResult
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, float64(67), res.Score)
	mockEngine.AssertExpectations(t)
}

func TestTriggerRunRequiresAdminToken(t *testing.T) {
	r := testRouter(&MockStore{}, &MockEngine{}, "secret-token")

	req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewReader([]byte(`{"period":"2024-02"}`)))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTriggerRun(t *testing.T) {
	mockEngine := &MockEngine{}
	mockEngine.On("RunBatch", mock.Anything, "2024-02").Return(&engine.BatchResult{
		RunID:  uuid.New(),
		Period: "2024-02",
	}, nil)

	r := testRouter(&MockStore{}, mockEngine, "secret-token")

	req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewReader([]byte(`{"period":"2024-02"}`)))
	req.Header.Set("Authorization", "Bearer secret-token")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	mockEngine.AssertExpectations(t)
}

func TestTriggerRunConflict(t *testing.T) {
	mockEngine := &MockEngine{}
	mockEngine.On("RunBatch", mock.Anything, "2024-02").Return(nil, engine.ErrRunInProgress)

	r := testRouter(&MockStore{}, mockEngine, "")

	req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewReader([]byte(`{"period":"2024-02"}`)))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestAcknowledgeAlert(t *testing.T) {
	mockStore := &MockStore{}
	id := uuid.New()
	now := time.Now().UTC()
	mockStore.On("AcknowledgeAlert", mock.Anything, id, "ops.lena").Return(&store.Alert{
		ID:             id,
		Acknowledged:   true,
		AcknowledgedBy: "ops.lena",
		AcknowledgedAt: &now,
	}, nil)

	r := testRouter(mockStore, &MockEngine{}, "")

	req := httptest.NewRequest("POST", "/api/v1/alerts/"+id.String()+"/ack", bytes.NewReader([]byte(`{"by":"ops.lena"}`)))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	mockStore.AssertExpectations(t)
}
