// Package api exposes the scoring engine over HTTP: ingestion of
// companies and channel metrics, score and watchlist reads for the
// dashboard, alert acknowledgement, and admin-gated run triggers.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Meridian-Analytics/Beacon/internal/engine"
	"github.com/Meridian-Analytics/Beacon/internal/scoring"
	"github.com/Meridian-Analytics/Beacon/internal/store"
)

// Engine is the scoring surface the handlers need; satisfied by
// *engine.Engine and mockable in tests.
type Engine interface {
	RunBatch(ctx context.Context, period string) (*engine.BatchResult, error)
	ComputeComposite(ctx context.Context, companyID uuid.UUID, period string) (*scoring.CompositeResult, error)
	ChannelScore(ctx context.Context, companyID uuid.UUID, ch scoring.Channel, period string) (scoring.ChannelResult, error)
	CurrentPeriod() string
}

func NewRouter(s store.Store, eng Engine, adminToken string, watchlistLimit int, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(240))

	companies := NewCompaniesHandler(s)
	scores := NewScoresHandler(s, eng, watchlistLimit)
	alerts := NewAlertsHandler(s)
	runs := NewRunsHandler(s, eng)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/companies", companies.Create)
		r.Get("/companies", companies.List)
		r.Get("/companies/{id}", companies.Get)
		r.Put("/companies/{id}/metrics/{period}", companies.UpsertMetrics)
		r.Post("/edges", companies.CreateEdge)

		r.Get("/companies/{id}/score", scores.Latest)
		r.Get("/companies/{id}/score/history", scores.History)
		r.Get("/companies/{id}/score/preview", scores.Preview)
		r.Get("/companies/{id}/channels/{channel}", scores.Channel)
		r.Get("/scores", scores.Portfolio)
		r.Get("/watchlist", scores.Watchlist)
		r.Get("/dashboard", scores.Dashboard)

		r.Get("/alerts", alerts.List)
		r.Post("/alerts/{id}/ack", alerts.Acknowledge)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(adminToken))
			r.Post("/runs", runs.Trigger)
			r.Get("/runs", runs.List)
			r.Get("/runs/{id}", runs.Get)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// validPeriod checks the YYYY-MM evaluation period format.
func validPeriod(p string) bool {
	_, err := time.Parse("2006-01", p)
	return err == nil
}
