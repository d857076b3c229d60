package eventgraph

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestExportImportRoundTrip(t *testing.T) {
	g := branching(t)

	raw, err := json.Marshal(g.Export())
	if err != nil {
		t.Fatal(err)
	}
	var exp Export
	if err := json.Unmarshal(raw, &exp); err != nil {
		t.Fatal(err)
	}

	restored, err := Import(exp, DefaultOptions())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if diff := cmp.Diff(g.Export(), restored.Export()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	// the index is rebuilt, so searches and new matches behave the same
	if diff := cmp.Diff(g.SearchBySensor("A"), restored.SearchBySensor("A")); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}
	id, err := restored.AddEvent(input(40*time.Minute, "Downtown", "A"))
	if err != nil {
		t.Fatal(err)
	}
	if id != 4 {
		t.Errorf("next id after import = %d, want 4", id)
	}
	if pred, ok := restored.Predecessor(id); !ok || pred != 3 {
		t.Errorf("Predecessor(%d) = %d, %v, want 3, true", id, pred, ok)
	}
}

func TestImportRejects(t *testing.T) {
	node := func(id int64, offset time.Duration, sensors ...string) Event {
		return Event{ID: id, Timestamp: t0.Add(offset), Location: "Downtown", SensorIDs: sensors}
	}

	tests := []struct {
		name string
		exp  Export
	}{
		{
			name: "duplicate id",
			exp:  Export{NextEventID: 2, Nodes: []Event{node(0, 0, "A"), node(0, time.Minute, "A")}},
		},
		{
			name: "dangling edge",
			exp:  Export{NextEventID: 1, Nodes: []Event{node(0, 0, "A")}, Edges: [][2]int64{{0, 7}}},
		},
		{
			name: "two predecessors",
			exp: Export{
				NextEventID: 3,
				Nodes:       []Event{node(0, 0, "A"), node(1, time.Minute, "B"), node(2, 2*time.Minute, "A", "B")},
				Edges:       [][2]int64{{0, 2}, {1, 2}},
			},
		},
		{
			name: "counter not above max id",
			exp:  Export{NextEventID: 1, Nodes: []Event{node(0, 0, "A"), node(1, time.Minute, "A")}},
		},
		{
			name: "invalid node",
			exp:  Export{NextEventID: 1, Nodes: []Event{node(0, 0)}},
		},
		{
			name: "cycle",
			exp: Export{
				NextEventID: 2,
				Nodes:       []Event{node(0, 0, "A"), node(1, time.Minute, "A")},
				Edges:       [][2]int64{{0, 1}, {1, 0}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(tt.exp, DefaultOptions())
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Import() error = %v, want a ValidationError", err)
			}
		})
	}
}

func TestImportEmpty(t *testing.T) {
	g, err := Import(Export{}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 0 || g.NextID() != 0 {
		t.Errorf("empty import gave Len() = %d, NextID() = %d", g.Len(), g.NextID())
	}
}
