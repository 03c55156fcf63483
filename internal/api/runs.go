package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Meridian-Analytics/Beacon/internal/engine"
	"github.com/Meridian-Analytics/Beacon/internal/store"
)

type RunsHandler struct {
	store  store.Store
	engine Engine
}

func NewRunsHandler(s store.Store, eng Engine) *RunsHandler {
	return &RunsHandler{store: s, engine: eng}
}

type TriggerRunRequest struct {
	Period string `json:"period,omitempty"`
}

// Trigger starts a synchronous scoring run. The period defaults to the
// current one; a run already in flight answers 409.
func (h *RunsHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req TriggerRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}
	period := req.Period
	if period == "" {
		period = h.engine.CurrentPeriod()
	}
	if !validPeriod(period) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "period must be YYYY-MM"})
		return
	}

	res, err := h.engine.RunBatch(r.Context(), period)
	if err != nil {
		if errors.Is(err, engine.ErrRunInProgress) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "a scoring run is already active"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListScoringRuns(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []*store.ScoringRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid run id"})
		return
	}

	run, err := h.store.GetScoringRun(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}
