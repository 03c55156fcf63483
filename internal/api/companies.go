package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Meridian-Analytics/Beacon/internal/chain"
	"github.com/Meridian-Analytics/Beacon/internal/scoring"
	"github.com/Meridian-Analytics/Beacon/internal/store"
)

type CompaniesHandler struct {
	store store.Store
}

func NewCompaniesHandler(s store.Store) *CompaniesHandler {
	return &CompaniesHandler{store: s}
}

type CreateCompanyRequest struct {
	Name         string   `json:"name"`
	Industry     string   `json:"industry,omitempty"`
	Listed       bool     `json:"listed"`
	CreditGrade  string   `json:"credit_grade,omitempty"`
	StandalonePD *float64 `json:"standalone_pd,omitempty"`
}

func (h *CompaniesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name required"})
		return
	}
	if req.StandalonePD != nil && (*req.StandalonePD < 0 || *req.StandalonePD > 1) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "standalone_pd must be in [0,1]"})
		return
	}
	if req.CreditGrade != "" {
		if _, ok := scoring.StandalonePD(req.CreditGrade); !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown credit grade " + req.CreditGrade})
			return
		}
	}

	now := time.Now().UTC()
	c := &store.Company{
		ID:           uuid.New(),
		Name:         req.Name,
		Industry:     req.Industry,
		Listed:       req.Listed,
		CreditGrade:  req.CreditGrade,
		StandalonePD: req.StandalonePD,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.store.CreateCompany(r.Context(), c); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CompaniesHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.CompanyFilter{
		Industry: r.URL.Query().Get("industry"),
		Limit:    queryInt(r, "limit", 0),
		Offset:   queryInt(r, "offset", 0),
	}
	if v := r.URL.Query().Get("listed"); v != "" {
		listed := v == "true"
		filter.Listed = &listed
	}

	companies, err := h.store.ListCompanies(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if companies == nil {
		companies = []*store.Company{}
	}
	writeJSON(w, http.StatusOK, companies)
}

func (h *CompaniesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company id"})
		return
	}

	c, err := h.store.GetCompany(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "company not found"})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// MetricsUpsertRequest carries any subset of the channel input blocks for
// one company and period. Omitted blocks leave their channel untouched.
type MetricsUpsertRequest struct {
	Transaction *scoring.TransactionInputs `json:"transaction,omitempty"`
	Registry    *scoring.RegistryInputs    `json:"public_registry,omitempty"`
	Market      *scoring.MarketInputs      `json:"market,omitempty"`
	News        *scoring.NewsInputs        `json:"news,omitempty"`
	Financial   *scoring.FinancialInputs   `json:"financial,omitempty"`
}

func (h *CompaniesHandler) UpsertMetrics(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company id"})
		return
	}
	period := chi.URLParam(r, "period")
	if !validPeriod(period) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "period must be YYYY-MM"})
		return
	}

	c, err := h.store.GetCompany(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "company not found"})
		return
	}

	var req MetricsUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Market != nil && !c.Listed {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "market metrics not accepted for unlisted company"})
		return
	}

	updated := []string{}
	if req.Transaction != nil {
		err := h.store.UpsertTransactionMetrics(r.Context(), &store.TransactionMetrics{
			CompanyID: id, Period: period, TransactionInputs: *req.Transaction,
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		updated = append(updated, string(scoring.ChannelTransaction))
	}
	if req.Registry != nil {
		err := h.store.UpsertRegistryMetrics(r.Context(), &store.RegistryMetrics{
			CompanyID: id, Period: period, RegistryInputs: *req.Registry,
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		updated = append(updated, string(scoring.ChannelPublicRegistry))
	}
	if req.Market != nil {
		err := h.store.UpsertMarketMetrics(r.Context(), &store.MarketMetrics{
			CompanyID: id, Period: period, MarketInputs: *req.Market,
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		updated = append(updated, string(scoring.ChannelMarket))
	}
	if req.News != nil {
		err := h.store.UpsertNewsMetrics(r.Context(), &store.NewsMetrics{
			CompanyID: id, Period: period, NewsInputs: *req.News,
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		updated = append(updated, string(scoring.ChannelNews))
	}
	if req.Financial != nil {
		err := h.store.UpsertFinancialMetrics(r.Context(), &store.FinancialMetrics{
			CompanyID: id, Period: period, FinancialInputs: *req.Financial,
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		updated = append(updated, string(scoring.ChannelFinancial))
	}

	if len(updated) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no channel metrics in request"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"company_id": id,
		"period":     period,
		"updated":    updated,
	})
}

type CreateEdgeRequest struct {
	CompanyID       string  `json:"company_id"`
	PartnerID       string  `json:"partner_id"`
	DependencyRatio float64 `json:"dependency_ratio"`
	PaymentStatus   string  `json:"payment_status,omitempty"`
	Period          string  `json:"period"`
}

func (h *CompaniesHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var req CreateEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	companyID, err := uuid.Parse(req.CompanyID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company_id"})
		return
	}
	partnerID, err := uuid.Parse(req.PartnerID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid partner_id"})
		return
	}
	if companyID == partnerID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "company cannot depend on itself"})
		return
	}
	if req.DependencyRatio < 0 || req.DependencyRatio > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dependency_ratio must be in [0,1]"})
		return
	}
	if !validPeriod(req.Period) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "period must be YYYY-MM"})
		return
	}
	status := req.PaymentStatus
	if status == "" {
		status = string(chain.PaymentNormal)
	}
	if _, ok := chain.ParsePaymentStatus(status); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_status must be NORMAL, DELAYED or DELINQUENT"})
		return
	}

	edge := &store.SupplyChainEdge{
		ID:              uuid.New(),
		CompanyID:       companyID,
		PartnerID:       partnerID,
		DependencyRatio: req.DependencyRatio,
		PaymentStatus:   status,
		Period:          req.Period,
		CreatedAt:       time.Now().UTC(),
	}
	if err := h.store.CreateSupplyChainEdge(r.Context(), edge); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, edge)
}
