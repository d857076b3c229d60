package grouping

import (
	"math"
	"testing"

	"github.com/chrissnell/lantern/internal/cooccurrence"
)

func TestConfidence(t *testing.T) {
	g := cooccurrence.NewGraph([]string{"Z"}, []cooccurrence.Edge{
		{A: "A", B: "B", Weight: 6},
		{A: "A", B: "X", Weight: 1},
		{A: "B", B: "Y", Weight: 1},
	})

	tests := []struct {
		name    string
		members []string
		want    float64
	}{
		{"mostly internal", []string{"A", "B"}, 0.75},
		{"only external", []string{"X", "Y"}, 0},
		{"no edges at all", []string{"Z"}, 0},
		{"whole component", []string{"A", "B", "X", "Y"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(g, tt.members)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Confidence(%v) = %v, want %v", tt.members, got, tt.want)
			}
		})
	}
}

func TestScoreUsesUnprunedGraph(t *testing.T) {
	g := cooccurrence.NewGraph(nil, append(vehicle("a", 3), cooccurrence.Edge{A: "a1", B: "x", Weight: 1}))
	res := NewGrouper(DefaultOptions(), nil).FindGroups(g)
	scored := Score(g, res.Groups)
	if len(scored) != 1 {
		t.Fatalf("got %d groups, want 1", len(scored))
	}
	// internal 18, external 1 (pruned away but still counted)
	want := 18.0 / 19.0
	if math.Abs(scored[0].Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", scored[0].Confidence, want)
	}
}
