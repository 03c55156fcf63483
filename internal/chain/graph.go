// Package chain builds the per-period supply-chain dependency graph and
// propagates default probabilities through it. The graph may contain
// cycles, so chain PD is computed by synchronous fixed-point relaxation
// rather than any single-pass traversal.
package chain

import (
	"fmt"
	"strings"
)

// PaymentStatus reflects how a company has been paying the partner on a
// dependency edge.
type PaymentStatus string

const (
	PaymentNormal     PaymentStatus = "NORMAL"
	PaymentDelayed    PaymentStatus = "DELAYED"
	PaymentDelinquent PaymentStatus = "DELINQUENT"
)

// Penalty returns the distress surcharge applied to a partner's
// contribution: delayed payments amplify it by 10%, delinquent by 30%.
func (p PaymentStatus) Penalty() float64 {
	switch p {
	case PaymentDelayed:
		return 0.10
	case PaymentDelinquent:
		return 0.30
	default:
		return 0
	}
}

// ParsePaymentStatus normalizes a raw feed value. Unknown values map to
// NORMAL with ok=false so the caller can record the data-quality issue.
func ParsePaymentStatus(raw string) (PaymentStatus, bool) {
	switch PaymentStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case PaymentNormal:
		return PaymentNormal, true
	case PaymentDelayed:
		return PaymentDelayed, true
	case PaymentDelinquent:
		return PaymentDelinquent, true
	}
	return PaymentNormal, false
}

// Node is one company in the period's dependency graph.
type Node struct {
	CompanyID    string
	StandalonePD float64
}

// Edge is a directed dependency from the owning node to Partner: the
// owner relies on the partner for Weight (dependency ratio, 0 to 1) of
// its trade volume.
type Edge struct {
	Partner int
	Weight  float64
	Status  PaymentStatus
}

// Graph is an index-addressed snapshot of the dependency network for one
// evaluation period: a flat node array plus per-node adjacency lists, so
// a propagation sweep walks contiguous memory. Snapshots are rebuilt each
// run and never mutated afterwards.
type Graph struct {
	nodes []Node
	adj   [][]Edge
	index map[string]int

	clampedInputs int
}

// NewGraph returns an empty graph sized for about n nodes.
func NewGraph(n int) *Graph {
	return &Graph{
		nodes: make([]Node, 0, n),
		adj:   make([][]Edge, 0, n),
		index: make(map[string]int, n),
	}
}

// AddNode registers a company with its standalone default probability and
// returns its index. Re-adding an existing company returns the original
// index without overwriting. Standalone PDs outside [0,1] are bounded and
// counted as clamped inputs.
func (g *Graph) AddNode(companyID string, standalonePD float64) int {
	if i, ok := g.index[companyID]; ok {
		return i
	}
	if standalonePD < 0 {
		standalonePD = 0
		g.clampedInputs++
	} else if standalonePD > 1 {
		standalonePD = 1
		g.clampedInputs++
	}
	i := len(g.nodes)
	g.nodes = append(g.nodes, Node{CompanyID: companyID, StandalonePD: standalonePD})
	g.adj = append(g.adj, nil)
	g.index[companyID] = i
	return i
}

// AddEdge records that fromID depends on partnerID with the given
// dependency ratio. Both endpoints must already be nodes: a partner with
// no known standalone PD is excluded from the sum rather than defaulted,
// and the caller decides how to report the skip. Ratios above 1 are
// bounded and counted; negative ratios are rejected.
func (g *Graph) AddEdge(fromID, partnerID string, weight float64, status PaymentStatus) error {
	from, ok := g.index[fromID]
	if !ok {
		return fmt.Errorf("unknown source company %s", fromID)
	}
	partner, ok := g.index[partnerID]
	if !ok {
		return fmt.Errorf("partner %s has no standalone PD", partnerID)
	}
	if weight < 0 {
		return fmt.Errorf("negative dependency ratio %.4f from %s to %s", weight, fromID, partnerID)
	}
	if weight > 1 {
		weight = 1
		g.clampedInputs++
	}
	g.adj[from] = append(g.adj[from], Edge{Partner: partner, Weight: weight, Status: status})
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node at index i.
func (g *Graph) Node(i int) Node { return g.nodes[i] }

// IndexOf resolves a company ID to its node index.
func (g *Graph) IndexOf(companyID string) (int, bool) {
	i, ok := g.index[companyID]
	return i, ok
}

// OutDegree returns the number of dependencies recorded for node i.
func (g *Graph) OutDegree(i int) int { return len(g.adj[i]) }

// EdgeCount returns the total number of edges in the snapshot.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, edges := range g.adj {
		n += len(edges)
	}
	return n
}

// ClampedInputs reports how many node or edge attributes were bounded
// into their domain while building the snapshot.
func (g *Graph) ClampedInputs() int { return g.clampedInputs }
