package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Meridian-Analytics/Beacon/internal/engine"
	"github.com/Meridian-Analytics/Beacon/internal/scoring"
	"github.com/Meridian-Analytics/Beacon/internal/store"
)

type ScoresHandler struct {
	store          store.Store
	engine         Engine
	watchlistLimit int
}

func NewScoresHandler(s store.Store, eng Engine, watchlistLimit int) *ScoresHandler {
	if watchlistLimit < 1 {
		watchlistLimit = 20
	}
	return &ScoresHandler{store: s, engine: eng, watchlistLimit: watchlistLimit}
}

// Latest returns the most recent persisted score record for a company.
func (h *ScoresHandler) Latest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company id"})
		return
	}

	rec, err := h.store.GetLatestScoreRecord(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no score on record"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *ScoresHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company id"})
		return
	}

	records, err := h.store.ListScoreHistory(r.Context(), id, queryInt(r, "limit", 24))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if records == nil {
		records = []*store.ScoreRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Preview computes a live composite without persisting anything. The
// period defaults to the current one.
func (h *ScoresHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company id"})
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = h.engine.CurrentPeriod()
	}
	if !validPeriod(period) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "period must be YYYY-MM"})
		return
	}

	comp, err := h.engine.ComputeComposite(r.Context(), id, period)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrCompanyNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "company not found"})
		case errors.Is(err, scoring.ErrInsufficientData):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

// Channel computes a single channel sub-score live.
func (h *ScoresHandler) Channel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company id"})
		return
	}
	ch := scoring.Channel(chi.URLParam(r, "channel"))
	if !knownChannel(ch) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown channel " + string(ch)})
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = h.engine.CurrentPeriod()
	}
	if !validPeriod(period) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "period must be YYYY-MM"})
		return
	}

	res, err := h.engine.ChannelScore(r.Context(), id, ch, period)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrCompanyNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "company not found"})
		case errors.Is(err, scoring.ErrInvalidInput):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Portfolio returns the latest score per company, riskiest first.
func (h *ScoresHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.ListLatestScores(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if records == nil {
		records = []*store.ScoreRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *ScoresHandler) Watchlist(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.Watchlist(r.Context(), queryInt(r, "limit", h.watchlistLimit))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if records == nil {
		records = []*store.ScoreRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *ScoresHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.DashboardSummary(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func knownChannel(ch scoring.Channel) bool {
	for _, c := range scoring.AllChannels {
		if c == ch {
			return true
		}
	}
	return false
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
