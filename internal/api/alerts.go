package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Meridian-Analytics/Beacon/internal/store"
)

type AlertsHandler struct {
	store store.Store
}

func NewAlertsHandler(s store.Store) *AlertsHandler {
	return &AlertsHandler{store: s}
}

func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.AlertFilter{
		Severity: r.URL.Query().Get("severity"),
		Limit:    queryInt(r, "limit", 0),
		Offset:   queryInt(r, "offset", 0),
	}
	if v := r.URL.Query().Get("company_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company_id"})
			return
		}
		filter.CompanyID = &id
	}
	if v := r.URL.Query().Get("acknowledged"); v != "" {
		ack := v == "true"
		filter.Acknowledged = &ack
	}

	alerts, err := h.store.ListAlerts(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if alerts == nil {
		alerts = []*store.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *AlertsHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid alert id"})
		return
	}

	var body struct {
		By string `json:"by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.By == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "by required"})
		return
	}

	alert, err := h.store.AcknowledgeAlert(r.Context(), id, body.By)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if alert == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "alert not found"})
		return
	}
	writeJSON(w, http.StatusOK, alert)
}
