package grouping

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chrissnell/lantern/internal/cooccurrence"
	"github.com/chrissnell/lantern/internal/types"
)

// vehicle returns the six edges of a four-sensor clique, all with the same weight
func vehicle(prefix string, weight int) []cooccurrence.Edge {
	ids := []string{prefix + "1", prefix + "2", prefix + "3", prefix + "4"}
	var edges []cooccurrence.Edge
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			edges = append(edges, cooccurrence.Edge{A: ids[i], B: ids[j], Weight: weight})
		}
	}
	return edges
}

func members(prefix string) []string {
	return []string{prefix + "1", prefix + "2", prefix + "3", prefix + "4"}
}

// sixVehicles has 24 sensors, so the greedy pass starts in seeded mode
func sixVehicles() *cooccurrence.Graph {
	var edges []cooccurrence.Edge
	for i, p := range []string{"a", "b", "c", "d", "e", "f"} {
		edges = append(edges, vehicle(p, 10+i)...)
	}
	return cooccurrence.NewGraph(nil, edges)
}

func sixVehicleGroups() []Group {
	return []Group{
		{Members: members("f"), Weight: 90},
		{Members: members("e"), Weight: 84},
		{Members: members("d"), Weight: 78},
		{Members: members("c"), Weight: 72},
		{Members: members("b"), Weight: 66},
		{Members: members("a"), Weight: 60},
	}
}

// overlapping is a five-sensor clique where A-B is much heavier than the rest
func overlapping() *cooccurrence.Graph {
	ids := []string{"A", "B", "C", "D", "E"}
	var edges []cooccurrence.Edge
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			w := 2
			if ids[i] == "A" && ids[j] == "B" {
				w = 10
			}
			edges = append(edges, cooccurrence.Edge{A: ids[i], B: ids[j], Weight: w})
		}
	}
	return cooccurrence.NewGraph(nil, edges)
}

func TestFindGroups(t *testing.T) {
	tests := []struct {
		name        string
		graph       *cooccurrence.Graph
		opts        Options
		want        []Group
		tooSmall    bool
		cliqueSkips bool
	}{
		{
			name:     "too few sensors after pruning",
			graph:    cooccurrence.NewGraph(nil, append(vehicle("a", 1), cooccurrence.Edge{A: "x", B: "y", Weight: 5})),
			opts:     DefaultOptions(),
			want:     []Group{},
			tooSmall: true,
		},
		{
			name:  "one clean vehicle",
			graph: cooccurrence.NewGraph([]string{"noise"}, vehicle("a", 3)),
			opts:  DefaultOptions(),
			want:  []Group{{Members: members("a"), Weight: 18}},
		},
		{
			name:  "clique pass finds every vehicle",
			graph: sixVehicles(),
			opts:  DefaultOptions(),
			want:  sixVehicleGroups(),
		},
		{
			name:  "max groups limits output",
			graph: sixVehicles(),
			opts:  Options{WeightThreshold: 2, ExpectedGroupSize: 4, MaxGroups: 2},
			want:  sixVehicleGroups()[:2],
		},
		{
			name:        "greedy pass alone when the clique budget is exceeded",
			graph:       sixVehicles(),
			opts:        Options{WeightThreshold: 2, ExpectedGroupSize: 4, MaxCliqueCandidates: 1},
			want:        sixVehicleGroups(),
			cliqueSkips: true,
		},
		{
			name:  "overlapping candidates are accepted when any member is free",
			graph: overlapping(),
			opts:  DefaultOptions(),
			want: []Group{
				{Members: []string{"A", "B", "C", "D"}, Weight: 20},
				{Members: []string{"A", "B", "C", "E"}, Weight: 20},
			},
		},
		{
			name:  "strict disjoint keeps groups apart",
			graph: overlapping(),
			opts:  Options{WeightThreshold: 2, ExpectedGroupSize: 4, StrictDisjoint: true},
			want:  []Group{{Members: []string{"A", "B", "C", "D"}, Weight: 20}},
		},
		{
			name: "greedy fills in sensors that are not a clique",
			graph: cooccurrence.NewGraph(nil, []cooccurrence.Edge{
				{A: "A", B: "B", Weight: 5}, {A: "B", B: "C", Weight: 4},
				{A: "C", B: "D", Weight: 3}, {A: "A", B: "D", Weight: 2},
			}),
			opts: DefaultOptions(),
			want: []Group{{Members: []string{"A", "B", "C", "D"}, Weight: 14}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewGrouper(tt.opts, nil).FindGroups(tt.graph)
			if res.TooSmall != tt.tooSmall {
				t.Errorf("TooSmall = %v, want %v", res.TooSmall, tt.tooSmall)
			}
			if res.CliquePassSkipped != tt.cliqueSkips {
				t.Errorf("CliquePassSkipped = %v, want %v", res.CliquePassSkipped, tt.cliqueSkips)
			}
			if diff := cmp.Diff(tt.want, res.Groups); diff != "" {
				t.Errorf("groups mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExhaustiveBestPrefersFirstInOrder(t *testing.T) {
	g := cooccurrence.NewGraph(nil, []cooccurrence.Edge{
		{A: "A", B: "B", Weight: 4},
		{A: "C", B: "D", Weight: 4},
	})
	pool := map[string]struct{}{"A": {}, "B": {}, "C": {}, "D": {}}
	best, ok := exhaustiveBest(g, 2, pool)
	if !ok {
		t.Fatal("expected a group")
	}
	if diff := cmp.Diff(Group{Members: []string{"A", "B"}, Weight: 4}, best); diff != "" {
		t.Errorf("best mismatch (-want +got):\n%s", diff)
	}
}

func TestOneVehicleAtOneReader(t *testing.T) {
	start := time.Date(2023, 6, 15, 6, 0, 0, 0, time.UTC)
	var readings []types.Reading
	// 50 passes 72s apart cover an hour; each pass reports A-D one second apart
	for pass := 0; pass < 50; pass++ {
		at := start.Add(time.Duration(pass) * 72 * time.Second)
		for i, s := range []string{"A", "B", "C", "D"} {
			readings = append(readings, types.Reading{
				Timestamp: at.Add(time.Duration(i) * time.Second),
				SensorID:  s,
				Location:  "Downtown",
			})
		}
	}

	g := cooccurrence.Build(readings, cooccurrence.DefaultBuildOptions())
	for _, e := range g.Edges() {
		if e.Weight != 50 {
			t.Errorf("edge %s-%s weight = %d, want 50", e.A, e.B, e.Weight)
		}
	}

	opts := DefaultOptions()
	opts.WeightThreshold = 2
	opts.ExpectedGroupSize = 4
	res := NewGrouper(opts, nil).FindGroups(g)
	want := []Group{{Members: []string{"A", "B", "C", "D"}, Weight: 300}}
	if diff := cmp.Diff(want, res.Groups); diff != "" {
		t.Fatalf("groups mismatch (-want +got):\n%s", diff)
	}

	scored := Score(g, res.Groups)
	if len(scored) != 1 || scored[0].Confidence != 1.0 {
		t.Errorf("confidence = %+v, want 1.0", scored)
	}
}

func TestGroupsFromReadings(t *testing.T) {
	start := time.Date(2023, 6, 15, 6, 0, 0, 0, time.UTC)
	var readings []types.Reading
	for pass := 0; pass < 50; pass++ {
		at := start.Add(time.Duration(pass) * time.Hour)
		for i, s := range []string{"A", "B", "C", "D"} {
			readings = append(readings, types.Reading{
				Timestamp: at.Add(time.Duration(i) * time.Second),
				SensorID:  s,
				Location:  fmt.Sprintf("reader-%d", pass%3),
			})
		}
		readings = append(readings, types.Reading{
			Timestamp: at.Add(20 * time.Minute),
			SensorID:  "stray",
			Location:  "reader-0",
		})
	}

	g := cooccurrence.Build(readings, cooccurrence.DefaultBuildOptions())
	res := NewGrouper(DefaultOptions(), nil).FindGroups(g)
	want := []Group{{Members: []string{"A", "B", "C", "D"}, Weight: 300}}
	if diff := cmp.Diff(want, res.Groups); diff != "" {
		t.Fatalf("groups mismatch (-want +got):\n%s", diff)
	}

	scored := Score(g, res.Groups)
	if len(scored) != 1 || scored[0].Confidence != 1.0 {
		t.Errorf("confidence = %+v, want 1.0", scored)
	}
}
