package chain

import (
	"testing"
)

func TestParsePaymentStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want PaymentStatus
		ok   bool
	}{
		{"NORMAL", PaymentNormal, true},
		{"delayed", PaymentDelayed, true},
		{" Delinquent ", PaymentDelinquent, true},
		{"", PaymentNormal, false},
		{"unknown", PaymentNormal, false},
	}
	for _, tt := range tests {
		got, ok := ParsePaymentStatus(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParsePaymentStatus(%q) = %s,%v want %s,%v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPaymentStatusPenalty(t *testing.T) {
	if p := PaymentNormal.Penalty(); p != 0 {
		t.Errorf("NORMAL penalty = %f, want 0", p)
	}
	if p := PaymentDelayed.Penalty(); p != 0.10 {
		t.Errorf("DELAYED penalty = %f, want 0.10", p)
	}
	if p := PaymentDelinquent.Penalty(); p != 0.30 {
		t.Errorf("DELINQUENT penalty = %f, want 0.30", p)
	}
}

func TestAddNodeIdempotent(t *testing.T) {
	g := NewGraph(2)
	i := g.AddNode("C001", 0.01)
	j := g.AddNode("C001", 0.99)
	if i != j {
		t.Errorf("re-adding node returned index %d, want %d", j, i)
	}
	if g.Len() != 1 {
		t.Errorf("graph has %d nodes, want 1", g.Len())
	}
	if pd := g.Node(i).StandalonePD; pd != 0.01 {
		t.Errorf("re-add overwrote standalone PD: got %f", pd)
	}
}

func TestAddNodeBoundsStandalonePD(t *testing.T) {
	g := NewGraph(2)
	i := g.AddNode("C001", 1.5)
	j := g.AddNode("C002", -0.2)
	if pd := g.Node(i).StandalonePD; pd != 1 {
		t.Errorf("standalone PD above 1 not bounded: got %f", pd)
	}
	if pd := g.Node(j).StandalonePD; pd != 0 {
		t.Errorf("standalone PD below 0 not bounded: got %f", pd)
	}
	if g.ClampedInputs() != 2 {
		t.Errorf("clamped inputs = %d, want 2", g.ClampedInputs())
	}
}

func TestAddEdgeUnknownPartnerRejected(t *testing.T) {
	g := NewGraph(2)
	g.AddNode("C001", 0.01)

	if err := g.AddEdge("C001", "C999", 0.5, PaymentNormal); err == nil {
		t.Error("expected error for partner without standalone PD")
	}
	if err := g.AddEdge("C999", "C001", 0.5, PaymentNormal); err == nil {
		t.Error("expected error for unknown source")
	}
	if g.EdgeCount() != 0 {
		t.Errorf("edge count = %d, want 0", g.EdgeCount())
	}
}

func TestAddEdgeRatioBounds(t *testing.T) {
	g := NewGraph(2)
	g.AddNode("C001", 0.01)
	g.AddNode("C002", 0.02)

	if err := g.AddEdge("C001", "C002", -0.1, PaymentNormal); err == nil {
		t.Error("expected error for negative dependency ratio")
	}
	if err := g.AddEdge("C001", "C002", 1.7, PaymentNormal); err != nil {
		t.Fatalf("ratio above 1 should be bounded, got error: %v", err)
	}
	if g.ClampedInputs() != 1 {
		t.Errorf("clamped inputs = %d, want 1", g.ClampedInputs())
	}
	if g.OutDegree(0) != 1 {
		t.Errorf("out degree = %d, want 1", g.OutDegree(0))
	}
}
