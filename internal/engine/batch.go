package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Meridian-Analytics/Beacon/internal/chain"
	"github.com/Meridian-Analytics/Beacon/internal/notify"
	"github.com/Meridian-Analytics/Beacon/internal/pulse"
	"github.com/Meridian-Analytics/Beacon/internal/scoring"
	"github.com/Meridian-Analytics/Beacon/internal/store"
)

// CompanyFailure records one company whose scoring failed inside a batch.
// Failures are isolated: the rest of the portfolio still gets scored.
type CompanyFailure struct {
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name,omitempty"`
	Error     string    `json:"error"`
}

// BatchResult summarizes a completed scoring run.
type BatchResult struct {
	RunID       uuid.UUID            `json:"run_id"`
	Period      string               `json:"period"`
	Records     []*store.ScoreRecord `json:"records"`
	Failures    []CompanyFailure     `json:"failures,omitempty"`
	Propagation *chain.Result        `json:"propagation,omitempty"`
}

func (e *Engine) tryBeginRun() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.runActive {
		return false
	}
	e.runActive = true
	return true
}

func (e *Engine) endRun() {
	e.runMu.Lock()
	e.runActive = false
	e.runMu.Unlock()
}

// RunBatch scores the entire portfolio for one period: one propagation
// sweep over the supply-chain graph, then concurrent per-company scoring
// with failure isolation. At most one batch runs at a time; a second
// trigger while one is active returns ErrRunInProgress.
func (e *Engine) RunBatch(ctx context.Context, period string) (*BatchResult, error) {
	if !e.tryBeginRun() {
		return nil, ErrRunInProgress
	}
	defer e.endRun()

	started := time.Now()
	run := &store.ScoringRun{
		ID:        uuid.New(),
		Period:    period,
		Status:    store.RunStatusRunning,
		StartedAt: started.UTC(),
	}
	if err := e.store.CreateScoringRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create scoring run: %w", err)
	}

	res, err := e.executeRun(ctx, run, period)
	now := time.Now().UTC()
	run.CompletedAt = &now
	if err != nil {
		run.Status = store.RunStatusFailed
		run.Error = err.Error()
		e.metrics.RunsTotal.WithLabelValues("failed").Inc()
		if uerr := e.store.UpdateScoringRun(ctx, run); uerr != nil {
			e.logger.Error("failed to persist run failure", "run_id", run.ID, "error", uerr)
		}
		e.publish(pulse.SubjectRunFailed(run.ID.String()), pulse.RunFailedEvent{
			RunID:  run.ID.String(),
			Period: period,
			Error:  err.Error(),
		})
		return nil, err
	}

	run.Status = store.RunStatusCompleted
	run.CompaniesScored = len(res.Records)
	run.CompaniesFailed = len(res.Failures)
	if res.Propagation != nil {
		run.PropagationConverged = res.Propagation.Converged
		run.PropagationIterations = res.Propagation.Iterations
	}
	if err := e.store.UpdateScoringRun(ctx, run); err != nil {
		return nil, fmt.Errorf("finalize scoring run: %w", err)
	}

	duration := time.Since(started)
	e.metrics.RunsTotal.WithLabelValues("completed").Inc()
	e.metrics.RunDuration.Observe(duration.Seconds())
	e.updateGradeGauges(res.Records)

	e.publish(pulse.SubjectRunCompleted(run.ID.String()), pulse.RunCompletedEvent{
		RunID:           run.ID.String(),
		Period:          period,
		CompaniesScored: run.CompaniesScored,
		CompaniesFailed: run.CompaniesFailed,
		Converged:       run.PropagationConverged,
		Iterations:      run.PropagationIterations,
		DurationSeconds: duration.Seconds(),
		CompletedAt:     now,
	})

	e.logger.Info("scoring run completed",
		"run_id", run.ID,
		"period", period,
		"scored", run.CompaniesScored,
		"failed", run.CompaniesFailed,
		"converged", run.PropagationConverged,
		"duration", duration)
	return res, nil
}

func (e *Engine) executeRun(ctx context.Context, run *store.ScoringRun, period string) (*BatchResult, error) {
	companies, err := e.store.ListCompanies(ctx, store.CompanyFilter{Limit: portfolioLimit})
	if err != nil {
		return nil, fmt.Errorf("load portfolio: %w", err)
	}
	edges, err := e.store.ListSupplyChainEdges(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("load supply-chain edges: %w", err)
	}

	prop, perr := e.runPropagation(e.buildGraph(companies, edges, period), period)
	if perr != nil && !errors.Is(perr, chain.ErrNotConverged) {
		return nil, fmt.Errorf("chain propagation: %w", perr)
	}

	res := &BatchResult{RunID: run.ID, Period: period, Propagation: prop}

	var mu sync.Mutex
	jobs := make(chan *store.Company)
	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				rec, err := e.scoreCompany(ctx, run, c, period, prop)
				mu.Lock()
				if err != nil {
					res.Failures = append(res.Failures, CompanyFailure{
						CompanyID: c.ID,
						Name:      c.Name,
						Error:     err.Error(),
					})
				} else {
					res.Records = append(res.Records, rec)
				}
				mu.Unlock()
			}
		}()
	}
	for _, c := range companies {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	e.metrics.CompaniesScored.Add(float64(len(res.Records)))
	e.metrics.CompaniesFailed.Add(float64(len(res.Failures)))

	// riskiest first on the run report
	sort.Slice(res.Records, func(i, j int) bool {
		return res.Records[i].Composite < res.Records[j].Composite
	})
	return res, nil
}

// scoreCompany evaluates one company and persists the record, its alerts,
// and the derived events. An error here fails this company only.
func (e *Engine) scoreCompany(ctx context.Context, run *store.ScoringRun, c *store.Company, period string, prop *chain.Result) (*store.ScoreRecord, error) {
	snap, err := e.loadSnapshot(ctx, c, period, prop)
	if err != nil {
		return nil, err
	}
	previous, prevGrade, err := e.previousComposite(ctx, c.ID, period)
	if err != nil {
		return nil, err
	}

	comp, err := e.agg.Score(snap, e.scorers, previous)
	if err != nil {
		return nil, err
	}

	rec := &store.ScoreRecord{
		ID:             uuid.New(),
		CompanyID:      c.ID,
		RunID:          run.ID,
		Period:         period,
		Composite:      comp.Composite,
		Grade:          comp.Grade,
		RiskLevel:      comp.RiskLevel,
		Trend:          comp.Trend,
		PredictedPD:    comp.PredictedPD,
		Recommendation: comp.Recommendation,
		Renormalized:   comp.Renormalized,
		Channels:       comp.Channels,
		Warnings:       comp.Warnings,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.store.CreateScoreRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist score record: %w", err)
	}

	e.publish(pulse.SubjectCompanyScored(c.ID.String()), pulse.CompanyScoredEvent{
		CompanyID: c.ID.String(),
		Period:    period,
		Composite: comp.Composite,
		Grade:     string(comp.Grade),
		RiskLevel: string(comp.RiskLevel),
		Trend:     string(comp.Trend),
	})

	alerts := scoring.EvaluateAlerts(snap, e.thresholds)
	if previous != nil {
		if ta := scoring.GradeTransitionAlert(prevGrade, comp.Grade, comp.Composite); ta != nil {
			alerts = append(alerts, *ta)
			e.publish(pulse.SubjectGradeChanged(c.ID.String()), pulse.GradeChangedEvent{
				CompanyID: c.ID.String(),
				Period:    period,
				From:      string(prevGrade),
				To:        string(comp.Grade),
				Composite: comp.Composite,
			})
			if e.notifier != nil {
				if nerr := e.notifier.GradeDeteriorated(ctx, notify.GradeTransition{
					CompanyID:   c.ID.String(),
					CompanyName: c.Name,
					Period:      period,
					From:        string(prevGrade),
					To:          string(comp.Grade),
					Composite:   comp.Composite,
				}); nerr != nil {
					e.logger.Warn("grade transition notification failed",
						"company_id", c.ID, "error", nerr)
				}
			}
		}
	}

	for _, a := range alerts {
		if err := e.persistAlert(ctx, run, c, period, a); err != nil {
			e.logger.Error("failed to persist alert",
				"company_id", c.ID, "code", a.Code, "error", err)
		}
	}
	return rec, nil
}

func (e *Engine) persistAlert(ctx context.Context, run *store.ScoringRun, c *store.Company, period string, a scoring.Alert) error {
	row := &store.Alert{
		ID:        uuid.New(),
		CompanyID: c.ID,
		RunID:     run.ID,
		Period:    period,
		Channel:   string(a.Channel),
		Code:      a.Code,
		Severity:  string(a.Severity),
		Message:   a.Message,
		Value:     a.Value,
		Threshold: a.Threshold,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.CreateAlert(ctx, row); err != nil {
		return err
	}

	e.metrics.AlertsRaised.WithLabelValues(string(a.Severity)).Inc()
	e.publish(pulse.SubjectCompanyAlert(c.ID.String()), pulse.AlertEvent{
		CompanyID: c.ID.String(),
		AlertID:   row.ID.String(),
		Period:    period,
		Channel:   string(a.Channel),
		Code:      a.Code,
		Severity:  string(a.Severity),
		Message:   a.Message,
		Value:     a.Value,
	})

	if a.Severity == scoring.SeverityCritical && e.notifier != nil {
		if err := e.notifier.CriticalAlert(ctx, notify.AlertNotice{
			CompanyID:   c.ID.String(),
			CompanyName: c.Name,
			Period:      period,
			Channel:     string(a.Channel),
			Code:        a.Code,
			Severity:    string(a.Severity),
			Message:     a.Message,
			Value:       a.Value,
		}); err != nil {
			e.logger.Warn("critical alert notification failed",
				"company_id", c.ID, "code", a.Code, "error", err)
		}
	}
	return nil
}

// updateGradeGauges resets the portfolio grade gauge to the latest run's
// distribution, including zeroes so emptied grades do not go stale.
func (e *Engine) updateGradeGauges(records []*store.ScoreRecord) {
	counts := map[scoring.Grade]int{
		scoring.GradeNormal:   0,
		scoring.GradeWatch:    0,
		scoring.GradeWarning:  0,
		scoring.GradeCritical: 0,
	}
	for _, r := range records {
		counts[r.Grade]++
	}
	for g, n := range counts {
		e.metrics.PortfolioGrade.WithLabelValues(string(g)).Set(float64(n))
	}
}
