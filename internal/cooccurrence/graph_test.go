package cooccurrence

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testGraph() *Graph {
	return NewGraph([]string{"lonely"}, []Edge{
		{"A", "B", 5}, {"A", "C", 4}, {"B", "C", 3},
		{"C", "D", 1}, {"D", "E", 2},
	})
}

func TestGraphAccessors(t *testing.T) {
	g := testGraph()

	if g.NodeCount() != 6 {
		t.Errorf("NodeCount() = %d, want 6", g.NodeCount())
	}
	if g.EdgeCount() != 5 {
		t.Errorf("EdgeCount() = %d, want 5", g.EdgeCount())
	}
	if !g.HasNode("lonely") || g.HasNode("missing") {
		t.Error("HasNode returned the wrong answer")
	}
	if w := g.Weight("B", "A"); w != 5 {
		t.Errorf("Weight(B, A) = %d, want 5", w)
	}
	if w := g.Weight("A", "E"); w != 0 {
		t.Errorf("Weight(A, E) = %d, want 0", w)
	}
	if w := g.Weight("A", "A"); w != 0 {
		t.Errorf("Weight(A, A) = %d, want 0", w)
	}
	if diff := cmp.Diff([]string{"A", "B", "D"}, g.Neighbors("C")); diff != "" {
		t.Errorf("Neighbors(C) mismatch (-want +got):\n%s", diff)
	}
	if n := g.Neighbors("missing"); n != nil {
		t.Errorf("Neighbors(missing) = %v, want nil", n)
	}
	if w := g.SubgraphWeight([]string{"A", "B", "C"}); w != 12 {
		t.Errorf("SubgraphWeight = %d, want 12", w)
	}
}

func TestNewGraphMergesDuplicateEdges(t *testing.T) {
	g := NewGraph(nil, []Edge{{"A", "B", 1}, {"B", "A", 2}, {"A", "A", 7}, {"A", "C", 0}})
	if diff := cmp.Diff([]Edge{{"A", "B", 3}}, g.Edges()); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	if !g.HasNode("C") {
		t.Error("sensor named by a zero-weight edge should still be a node")
	}
}

func TestPrune(t *testing.T) {
	g := testGraph()
	pruned := g.Prune(2)

	if diff := cmp.Diff([]string{"A", "B", "C", "D", "E"}, pruned.Nodes()); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
	want := []Edge{{"A", "B", 5}, {"A", "C", 4}, {"B", "C", 3}, {"D", "E", 2}}
	if diff := cmp.Diff(want, pruned.Edges()); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}

	// original is untouched
	if g.EdgeCount() != 5 || !g.HasNode("lonely") {
		t.Error("Prune modified the original graph")
	}

	if n := g.Prune(10).NodeCount(); n != 0 {
		t.Errorf("Prune(10) left %d nodes, want 0", n)
	}
}

func TestCliques(t *testing.T) {
	want := [][]string{{"A", "B", "C"}, {"C", "D"}, {"D", "E"}, {"lonely"}}
	if diff := cmp.Diff(want, testGraph().Cliques()); diff != "" {
		t.Errorf("cliques mismatch (-want +got):\n%s", diff)
	}
}

func TestNodeLink(t *testing.T) {
	g := NewGraph([]string{"C"}, []Edge{{"A", "B", 2}})
	want := NodeLink{
		Nodes: []NodeItem{{ID: "A"}, {ID: "B"}, {ID: "C"}},
		Links: []LinkItem{{Source: "A", Target: "B", Weight: 2}},
	}
	if diff := cmp.Diff(want, g.NodeLink()); diff != "" {
		t.Errorf("node-link mismatch (-want +got):\n%s", diff)
	}
}
