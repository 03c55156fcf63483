// Package engine orchestrates scoring runs: it assembles per-company
// snapshots from the store, runs supply-chain propagation once per period,
// scores companies concurrently, and persists immutable score records.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Meridian-Analytics/Beacon/internal/chain"
	"github.com/Meridian-Analytics/Beacon/internal/config"
	"github.com/Meridian-Analytics/Beacon/internal/notify"
	"github.com/Meridian-Analytics/Beacon/internal/pulse"
	"github.com/Meridian-Analytics/Beacon/internal/scoring"
	"github.com/Meridian-Analytics/Beacon/internal/store"
)

var (
	// ErrRunInProgress rejects a second concurrent batch; runs are
	// serialized so propagation sees exactly one graph per period.
	ErrRunInProgress = errors.New("a scoring run is already active")

	// ErrCompanyNotFound marks single-company operations against an
	// unknown ID.
	ErrCompanyNotFound = errors.New("company not found")
)

// portfolioLimit bounds how many companies a run loads. Well above any
// realistic monitored portfolio.
const portfolioLimit = 10000

type Engine struct {
	store    store.Store
	bus      pulse.Client     // nil when the bus is down or disabled
	notifier notify.Notifier  // nil when no webhook is configured
	metrics  *Metrics
	logger   *slog.Logger

	agg        *scoring.Aggregator
	scorers    []scoring.ChannelScorer
	propagator *chain.Propagator
	thresholds scoring.AlertThresholds

	workers  int
	interval time.Duration

	runMu     sync.Mutex
	runActive bool

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(s store.Store, bus pulse.Client, notifier notify.Notifier, cfg *config.Config, m *Metrics, logger *slog.Logger) *Engine {
	listed := scoring.WeightProfile{
		Transaction:    cfg.Scoring.ListedWeights.Transaction,
		PublicRegistry: cfg.Scoring.ListedWeights.PublicRegistry,
		Market:         cfg.Scoring.ListedWeights.Market,
		News:           cfg.Scoring.ListedWeights.News,
		SupplyChain:    cfg.Scoring.ListedWeights.SupplyChain,
		Financial:      cfg.Scoring.ListedWeights.Financial,
	}
	unlisted := scoring.WeightProfile{
		Transaction:    cfg.Scoring.UnlistedWeights.Transaction,
		PublicRegistry: cfg.Scoring.UnlistedWeights.PublicRegistry,
		News:           cfg.Scoring.UnlistedWeights.News,
		SupplyChain:    cfg.Scoring.UnlistedWeights.SupplyChain,
		Financial:      cfg.Scoring.UnlistedWeights.Financial,
	}
	bands := scoring.GradeBands{
		NormalMin:  cfg.Scoring.Grade.NormalMin,
		WatchMin:   cfg.Scoring.Grade.WatchMin,
		WarningMin: cfg.Scoring.Grade.WarningMin,
	}
	ratios := scoring.RatioWeights{
		Leverage:         cfg.Scoring.RatioWeights.Leverage,
		Liquidity:        cfg.Scoring.RatioWeights.Liquidity,
		InterestCoverage: cfg.Scoring.RatioWeights.InterestCoverage,
		OperatingMargin:  cfg.Scoring.RatioWeights.OperatingMargin,
		AssetTurnover:    cfg.Scoring.RatioWeights.AssetTurnover,
	}
	thresholds := scoring.AlertThresholds{
		UtilizationMax:       cfg.Scoring.Alerts.UtilizationMax,
		PaymentDelayMaxDays:  cfg.Scoring.Alerts.PaymentDelayMaxDays,
		OverdraftMax:         cfg.Scoring.Alerts.OverdraftMax,
		DistanceToDefaultMin: cfg.Scoring.Alerts.DistanceToDefaultMin,
		CDSSpreadMaxBps:      cfg.Scoring.Alerts.CDSSpreadMaxBps,
		ImpliedPDMax:         cfg.Scoring.Alerts.ImpliedPDMax,
		SentimentMin:         cfg.Scoring.Alerts.SentimentMin,
		NegativeRatioMax:     cfg.Scoring.Alerts.NegativeRatioMax,
		SevereEventsMin:      cfg.Scoring.Alerts.SevereEventsMin,
		ChainPDMax:           cfg.Scoring.Alerts.ChainPDMax,
	}

	workers := cfg.Run.Workers
	if workers < 1 {
		workers = 1
	}

	return &Engine{
		store:      s,
		bus:        bus,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
		agg:        scoring.NewAggregator(listed, unlisted, bands, cfg.Scoring.TrendDelta, logger),
		scorers:    scoring.Scorers(scoring.NewFinancialScorer(ratios, cfg.Scoring.FinancialSpread)),
		propagator: chain.NewPropagator(cfg.Scoring.Propagation.Tolerance, cfg.Scoring.Propagation.MaxIterations, logger),
		thresholds: thresholds,
		workers:    workers,
		interval:   cfg.RunInterval(),
		stopCh:     make(chan struct{}),
	}
}

// PeriodOf formats an instant as the engine's evaluation period.
func PeriodOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// CurrentPeriod returns the period for right now.
func (e *Engine) CurrentPeriod() string {
	return PeriodOf(time.Now())
}

// Start launches the periodic run loop. With a zero interval the engine
// only scores on explicit triggers.
func (e *Engine) Start(ctx context.Context) {
	if e.interval <= 0 {
		e.logger.Info("periodic runs disabled, waiting for manual triggers")
		return
	}
	e.wg.Add(1)
	go e.runLoop(ctx)
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

func (e *Engine) runLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.RunBatch(ctx, e.CurrentPeriod()); err != nil {
				if errors.Is(err, ErrRunInProgress) {
					e.logger.Info("skipping tick, run still active")
					continue
				}
				e.logger.Error("scheduled scoring run failed", "error", err)
			}
		}
	}
}

// ChannelScore computes a single channel for one company and period. An
// input rejection surfaces verbatim; an unavailable channel is a result,
// not an error.
func (e *Engine) ChannelScore(ctx context.Context, companyID uuid.UUID, ch scoring.Channel, period string) (scoring.ChannelResult, error) {
	c, err := e.store.GetCompany(ctx, companyID)
	if err != nil {
		return scoring.ChannelResult{}, fmt.Errorf("load company: %w", err)
	}
	if c == nil {
		return scoring.ChannelResult{}, ErrCompanyNotFound
	}

	snap := &scoring.CustomerSnapshot{CompanyID: c.ID.String(), Listed: c.Listed, Period: period}
	switch ch {
	case scoring.ChannelTransaction:
		m, err := e.store.GetTransactionMetrics(ctx, c.ID, period)
		if err != nil {
			return scoring.ChannelResult{}, err
		}
		if m != nil {
			snap.Transaction = &m.TransactionInputs
		}
	case scoring.ChannelPublicRegistry:
		m, err := e.store.GetRegistryMetrics(ctx, c.ID, period)
		if err != nil {
			return scoring.ChannelResult{}, err
		}
		if m != nil {
			snap.Registry = &m.RegistryInputs
		}
	case scoring.ChannelMarket:
		m, err := e.store.GetMarketMetrics(ctx, c.ID, period)
		if err != nil {
			return scoring.ChannelResult{}, err
		}
		if m != nil {
			snap.Market = &m.MarketInputs
		}
	case scoring.ChannelNews:
		m, err := e.store.GetNewsMetrics(ctx, c.ID, period)
		if err != nil {
			return scoring.ChannelResult{}, err
		}
		if m != nil {
			snap.News = &m.NewsInputs
		}
	case scoring.ChannelFinancial:
		m, err := e.store.GetFinancialMetrics(ctx, c.ID, period)
		if err != nil {
			return scoring.ChannelResult{}, err
		}
		if m != nil {
			snap.Financial = &m.FinancialInputs
		}
	case scoring.ChannelSupplyChain:
		prop, err := e.propagatePeriod(ctx, period)
		if err != nil && !errors.Is(err, chain.ErrNotConverged) {
			return scoring.ChannelResult{}, err
		}
		applyChainPD(snap, c, prop)
	default:
		return scoring.ChannelResult{}, fmt.Errorf("unknown channel %q", ch)
	}

	for _, sc := range e.scorers {
		if sc.Channel() == ch {
			return sc.Score(snap)
		}
	}
	return scoring.ChannelResult{}, fmt.Errorf("no scorer for channel %q", ch)
}

// ComputeComposite scores one company live, without persisting a record.
// Used by the dashboard's preview endpoint.
func (e *Engine) ComputeComposite(ctx context.Context, companyID uuid.UUID, period string) (*scoring.CompositeResult, error) {
	c, err := e.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	if c == nil {
		return nil, ErrCompanyNotFound
	}

	prop, err := e.propagatePeriod(ctx, period)
	if err != nil && !errors.Is(err, chain.ErrNotConverged) {
		return nil, err
	}

	snap, err := e.loadSnapshot(ctx, c, period, prop)
	if err != nil {
		return nil, err
	}
	prev, _, err := e.previousComposite(ctx, c.ID, period)
	if err != nil {
		return nil, err
	}
	return e.agg.Score(snap, e.scorers, prev)
}

// loadSnapshot pulls every channel's raw inputs for one company/period.
// Missing rows stay nil and score as unavailable.
func (e *Engine) loadSnapshot(ctx context.Context, c *store.Company, period string, prop *chain.Result) (*scoring.CustomerSnapshot, error) {
	snap := &scoring.CustomerSnapshot{CompanyID: c.ID.String(), Listed: c.Listed, Period: period}

	txn, err := e.store.GetTransactionMetrics(ctx, c.ID, period)
	if err != nil {
		return nil, fmt.Errorf("load transaction metrics: %w", err)
	}
	if txn != nil {
		snap.Transaction = &txn.TransactionInputs
	}

	reg, err := e.store.GetRegistryMetrics(ctx, c.ID, period)
	if err != nil {
		return nil, fmt.Errorf("load registry metrics: %w", err)
	}
	if reg != nil {
		snap.Registry = &reg.RegistryInputs
	}

	if c.Listed {
		mkt, err := e.store.GetMarketMetrics(ctx, c.ID, period)
		if err != nil {
			return nil, fmt.Errorf("load market metrics: %w", err)
		}
		if mkt != nil {
			snap.Market = &mkt.MarketInputs
		}
	}

	news, err := e.store.GetNewsMetrics(ctx, c.ID, period)
	if err != nil {
		return nil, fmt.Errorf("load news metrics: %w", err)
	}
	if news != nil {
		snap.News = &news.NewsInputs
	}

	fin, err := e.store.GetFinancialMetrics(ctx, c.ID, period)
	if err != nil {
		return nil, fmt.Errorf("load financial metrics: %w", err)
	}
	if fin != nil {
		snap.Financial = &fin.FinancialInputs
	}

	applyChainPD(snap, c, prop)
	return snap, nil
}

func applyChainPD(snap *scoring.CustomerSnapshot, c *store.Company, prop *chain.Result) {
	if prop == nil {
		return
	}
	if pd, ok := prop.PD(c.ID.String()); ok {
		snap.ChainPD = &pd
		snap.ChainPDConverged = prop.Converged
		snap.ChainPDIterations = prop.Iterations
	}
}

// standalonePD resolves a company's seed default probability: an explicit
// override wins, otherwise the credit-grade table. Companies with neither
// are left out of the graph and their partners' edges are skipped.
func standalonePD(c *store.Company) (float64, bool) {
	if c.StandalonePD != nil {
		return *c.StandalonePD, true
	}
	return scoring.StandalonePD(c.CreditGrade)
}

// previousComposite returns the prior period's composite and grade for
// trend and transition detection.
func (e *Engine) previousComposite(ctx context.Context, companyID uuid.UUID, period string) (*float64, scoring.Grade, error) {
	prev, err := e.store.GetLatestScoreBefore(ctx, companyID, period)
	if err != nil {
		return nil, "", fmt.Errorf("load previous score: %w", err)
	}
	if prev == nil {
		return nil, "", nil
	}
	v := prev.Composite
	return &v, prev.Grade, nil
}

// buildGraph assembles the period's dependency graph from the portfolio
// and its supply-chain edges.
func (e *Engine) buildGraph(companies []*store.Company, edges []*store.SupplyChainEdge, period string) *chain.Graph {
	g := chain.NewGraph(len(companies))
	skippedNodes := 0
	for _, c := range companies {
		pd, ok := standalonePD(c)
		if !ok {
			skippedNodes++
			continue
		}
		g.AddNode(c.ID.String(), pd)
	}

	skippedEdges := 0
	unknownStatus := 0
	for _, ed := range edges {
		status, known := chain.ParsePaymentStatus(ed.PaymentStatus)
		if !known {
			unknownStatus++
		}
		if err := g.AddEdge(ed.CompanyID.String(), ed.PartnerID.String(), ed.DependencyRatio, status); err != nil {
			// partner without a standalone PD, or a bad ratio: the edge
			// is excluded from the sum rather than guessed at
			skippedEdges++
		}
	}

	if skippedNodes > 0 || skippedEdges > 0 || unknownStatus > 0 || g.ClampedInputs() > 0 {
		e.logger.Warn("graph snapshot has data-quality gaps",
			"period", period,
			"nodes_without_pd", skippedNodes,
			"edges_skipped", skippedEdges,
			"unknown_payment_status", unknownStatus,
			"clamped_inputs", g.ClampedInputs())
	}
	return g
}

// propagatePeriod builds the period's graph and runs the fixed point
// over it. A non-converged result comes back with chain.ErrNotConverged
// and is still usable.
func (e *Engine) propagatePeriod(ctx context.Context, period string) (*chain.Result, error) {
	companies, err := e.store.ListCompanies(ctx, store.CompanyFilter{Limit: portfolioLimit})
	if err != nil {
		return nil, fmt.Errorf("load portfolio: %w", err)
	}
	edges, err := e.store.ListSupplyChainEdges(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("load supply-chain edges: %w", err)
	}
	return e.runPropagation(e.buildGraph(companies, edges, period), period)
}

func (e *Engine) runPropagation(g *chain.Graph, period string) (*chain.Result, error) {
	res, err := e.propagator.Run(g)
	if res != nil {
		e.metrics.PropagationIterations.Set(float64(res.Iterations))
	}
	if errors.Is(err, chain.ErrNotConverged) {
		e.publish(pulse.SubjectPropagationDiverged, pulse.PropagationDivergedEvent{
			Period:     period,
			Iterations: res.Iterations,
			MaxDelta:   res.MaxDelta,
			Nodes:      g.Len(),
			Edges:      g.EdgeCount(),
		})
	}
	return res, err
}

// publish is best-effort: a dead bus never fails a scoring run.
func (e *Engine) publish(subject string, event interface{}) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(subject, event); err != nil {
		e.logger.Warn("event publish failed", "subject", subject, "error", err)
	}
}
