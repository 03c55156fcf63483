package chain

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Default convergence parameters for the fixed-point iteration.
const (
	DefaultTolerance     = 1e-5
	DefaultMaxIterations = 50
)

// ErrNotConverged marks a propagation that hit the iteration cap before
// the estimates settled. The accompanying Result still carries the best
// available estimate; callers treat this as a warning, not a failure.
var ErrNotConverged = errors.New("propagation did not converge")

// Result carries the propagated chain default probabilities plus
// convergence metadata for the run audit trail.
type Result struct {
	PDs        map[string]float64 `json:"chain_pds"`
	Converged  bool               `json:"converged"`
	Iterations int                `json:"iterations"`
	MaxDelta   float64            `json:"max_delta"`
	Clamped    int                `json:"clamped"`
}

// PD returns the chain PD for a company, with ok=false when the company
// was not part of the propagated snapshot.
func (r *Result) PD(companyID string) (float64, bool) {
	pd, ok := r.PDs[companyID]
	return pd, ok
}

// Propagator computes chain default probabilities by Jacobi-style
// synchronous relaxation: every sweep recomputes all nodes from the
// previous sweep's snapshot, which is swapped in whole once the sweep
// completes. No node ever reads a current-iteration value.
type Propagator struct {
	tolerance     float64
	maxIterations int
	logger        *slog.Logger
}

// NewPropagator creates a Propagator, substituting defaults for
// non-positive tolerance or iteration cap.
func NewPropagator(tolerance float64, maxIterations int, logger *slog.Logger) *Propagator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Propagator{
		tolerance:     tolerance,
		maxIterations: maxIterations,
		logger:        logger,
	}
}

// Run iterates chain PD to a fixed point over the snapshot:
//
//	ChainPD_i = clamp01(standalone_i + Σ_j w_ij · ChainPD_j · (1 + penalty_ij))
//
// starting from each node's standalone PD. Iteration stops when the
// largest absolute change in a sweep falls below the tolerance, or at the
// iteration cap, whichever comes first. Hitting the cap returns the best
// estimate wrapped with ErrNotConverged. Nodes without dependencies settle
// in the first sweep.
func (p *Propagator) Run(g *Graph) (*Result, error) {
	n := g.Len()
	res := &Result{PDs: make(map[string]float64, n)}
	if n == 0 {
		res.Converged = true
		return res, nil
	}

	curr := make([]float64, n)
	next := make([]float64, n)
	for i := 0; i < n; i++ {
		curr[i] = g.nodes[i].StandalonePD
	}

	for iter := 1; iter <= p.maxIterations; iter++ {
		maxDelta := 0.0
		for i := 0; i < n; i++ {
			pd := g.nodes[i].StandalonePD
			for _, e := range g.adj[i] {
				pd += e.Weight * curr[e.Partner] * (1 + e.Status.Penalty())
			}
			if pd > 1 {
				pd = 1
				res.Clamped++
			} else if pd < 0 {
				pd = 0
				res.Clamped++
			}
			next[i] = pd
			if d := math.Abs(pd - curr[i]); d > maxDelta {
				maxDelta = d
			}
		}
		curr, next = next, curr
		res.Iterations = iter
		res.MaxDelta = maxDelta
		if maxDelta < p.tolerance {
			res.Converged = true
			break
		}
	}

	for i := 0; i < n; i++ {
		res.PDs[g.nodes[i].CompanyID] = curr[i]
	}

	if !res.Converged {
		p.logger.Warn("chain propagation hit iteration cap",
			"iterations", res.Iterations,
			"max_delta", res.MaxDelta,
			"tolerance", p.tolerance,
			"nodes", n)
		return res, fmt.Errorf("max delta %.2e after %d iterations (tolerance %.2e): %w",
			res.MaxDelta, res.Iterations, p.tolerance, ErrNotConverged)
	}

	p.logger.Debug("chain propagation converged",
		"iterations", res.Iterations,
		"max_delta", res.MaxDelta,
		"nodes", n,
		"edges", g.EdgeCount())
	return res, nil
}
