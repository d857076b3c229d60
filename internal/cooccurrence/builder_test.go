package cooccurrence

import (
	"testing"
	"time"

	"github.com/chrissnell/lantern/internal/types"
	"github.com/google/go-cmp/cmp"
)

var t0 = time.Date(2023, 6, 15, 6, 0, 0, 0, time.UTC)

func reading(sensor, location string, offset time.Duration) types.Reading {
	return types.Reading{
		Timestamp: t0.Add(offset),
		SensorID:  sensor,
		Location:  location,
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name      string
		readings  []types.Reading
		opts      BuildOptions
		wantNodes []string
		wantEdges []Edge
	}{
		{
			name:      "empty batch",
			readings:  nil,
			opts:      DefaultBuildOptions(),
			wantNodes: []string{},
			wantEdges: nil,
		},
		{
			name: "four sensors heard together",
			readings: []types.Reading{
				reading("D", "Downtown", 0),
				reading("C", "Downtown", time.Second),
				reading("B", "Downtown", 2*time.Second),
				reading("A", "Downtown", 3*time.Second),
			},
			opts:      DefaultBuildOptions(),
			wantNodes: []string{"A", "B", "C", "D"},
			wantEdges: []Edge{
				{"A", "B", 1}, {"A", "C", 1}, {"A", "D", 1},
				{"B", "C", 1}, {"B", "D", 1}, {"C", "D", 1},
			},
		},
		{
			name: "threshold is inclusive",
			readings: []types.Reading{
				reading("A", "Downtown", 0),
				reading("B", "Downtown", 5*time.Second),
				reading("C", "Downtown", 11*time.Second),
			},
			opts:      DefaultBuildOptions(),
			wantNodes: []string{"A", "B", "C"},
			wantEdges: []Edge{{"A", "B", 1}},
		},
		{
			name: "different locations never pair",
			readings: []types.Reading{
				reading("A", "Downtown", 0),
				reading("B", "Harbor", 0),
			},
			opts:      DefaultBuildOptions(),
			wantNodes: []string{"A", "B"},
			wantEdges: nil,
		},
		{
			name: "same sensor twice adds no self edge",
			readings: []types.Reading{
				reading("A", "Downtown", 0),
				reading("A", "Downtown", time.Second),
				reading("B", "Downtown", 2*time.Second),
			},
			opts:      DefaultBuildOptions(),
			wantNodes: []string{"A", "B"},
			wantEdges: []Edge{{"A", "B", 2}},
		},
		{
			name: "pairs straddling a window boundary are dropped",
			readings: []types.Reading{
				reading("C", "Harbor", 0),
				reading("A", "Downtown", 30*time.Minute-2*time.Second),
				reading("B", "Downtown", 30*time.Minute+time.Second),
			},
			opts:      DefaultBuildOptions(),
			wantNodes: []string{"A", "B", "C"},
			wantEdges: nil,
		},
		{
			name: "single instant forms one window",
			readings: []types.Reading{
				reading("A", "Downtown", 0),
				reading("B", "Downtown", 0),
			},
			opts:      BuildOptions{TimeThreshold: 0, Window: time.Minute},
			wantNodes: []string{"A", "B"},
			wantEdges: []Edge{{"A", "B", 1}},
		},
		{
			name: "readings at the last instant of a whole-window span count",
			readings: []types.Reading{
				reading("A", "Harbor", 0),
				reading("B", "Downtown", 30*time.Minute),
				reading("C", "Downtown", 30*time.Minute),
			},
			opts:      DefaultBuildOptions(),
			wantNodes: []string{"A", "B", "C"},
			wantEdges: []Edge{{"B", "C", 1}},
		},
		{
			name: "weights accumulate across windows",
			readings: []types.Reading{
				reading("A", "Downtown", 0),
				reading("B", "Downtown", time.Second),
				reading("A", "Harbor", time.Hour),
				reading("B", "Harbor", time.Hour+time.Second),
			},
			opts:      DefaultBuildOptions(),
			wantNodes: []string{"A", "B"},
			wantEdges: []Edge{{"A", "B", 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Build(tt.readings, tt.opts)
			if diff := cmp.Diff(tt.wantNodes, g.Nodes()); diff != "" {
				t.Errorf("nodes mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantEdges, g.Edges()); diff != "" {
				t.Errorf("edges mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildDoesNotReorderInput(t *testing.T) {
	in := []types.Reading{
		reading("B", "Downtown", time.Second),
		reading("A", "Downtown", 0),
	}
	Build(in, DefaultBuildOptions())
	if in[0].SensorID != "B" {
		t.Error("Build reordered the caller's slice")
	}
}
