package eventgraph

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var t0 = time.Date(2023, 6, 15, 6, 0, 0, 0, time.UTC)

func input(offset time.Duration, location string, sensors ...string) EventInput {
	return EventInput{
		Timestamp: t0.Add(offset),
		Location:  location,
		Latitude:  42.36,
		Longitude: -71.05,
		SensorIDs: sensors,
	}
}

func mustAdd(t *testing.T, g *Graph, in EventInput) int64 {
	t.Helper()
	id, err := g.AddEvent(in)
	if err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	return id
}

func TestAddEventValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *EventInput)
		field  string
	}{
		{"zero timestamp", func(in *EventInput) { in.Timestamp = time.Time{} }, "timestamp"},
		{"no sensors", func(in *EventInput) { in.SensorIDs = nil }, "sensor_ids"},
		{"empty sensor", func(in *EventInput) { in.SensorIDs = []string{"A", ""} }, "sensor_ids"},
		{"nan latitude", func(in *EventInput) { in.Latitude = math.NaN() }, "latitude"},
		{"latitude out of range", func(in *EventInput) { in.Latitude = 91 }, "latitude"},
		{"longitude out of range", func(in *EventInput) { in.Longitude = -180.5 }, "longitude"},
		{"infinite battery", func(in *EventInput) { in.Battery = math.Inf(1) }, "battery"},
		{"nan signal", func(in *EventInput) { in.SignalStrength = math.NaN() }, "signal_strength"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(DefaultOptions())
			in := input(0, "Downtown", "A")
			tt.mutate(&in)

			_, err := g.AddEvent(in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("AddEvent() error = %v, want a ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
			if g.Len() != 0 || g.NextID() != 0 {
				t.Error("a rejected event changed the graph")
			}
		})
	}
}

func TestAddEventNormalizes(t *testing.T) {
	g := New(DefaultOptions())
	in := input(0, "Downtown", "C", "A", "C", "B")
	in.Timestamp = in.Timestamp.In(time.FixedZone("EDT", -4*3600))
	id := mustAdd(t, g, in)

	ev, err := g.Event(id)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, ev.SensorIDs); diff != "" {
		t.Errorf("sensor ids mismatch (-want +got):\n%s", diff)
	}
	if ev.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp location = %v, want UTC", ev.Timestamp.Location())
	}
}

func TestDisjointEventsHaveNoEdges(t *testing.T) {
	g := New(DefaultOptions())
	for i := 0; i < 10; i++ {
		id := mustAdd(t, g, input(time.Duration(i)*time.Minute, "Downtown", fmt.Sprintf("S%d", i)))
		if id != int64(i) {
			t.Errorf("event %d got id %d", i, id)
		}
	}
	if g.Len() != 10 || g.EdgeCount() != 0 {
		t.Errorf("Len() = %d, EdgeCount() = %d, want 10 and 0", g.Len(), g.EdgeCount())
	}
}

func TestMatching(t *testing.T) {
	tests := []struct {
		name     string
		earlier  []EventInput
		next     EventInput
		wantPred int64
		wantOK   bool
	}{
		{
			name:     "shared sensor inside window",
			earlier:  []EventInput{input(0, "Downtown", "A", "B")},
			next:     input(30*time.Minute, "Harbor", "B"),
			wantPred: 0,
			wantOK:   true,
		},
		{
			name:     "gap equal to window still matches",
			earlier:  []EventInput{input(0, "Downtown", "A")},
			next:     input(time.Hour, "Harbor", "A"),
			wantPred: 0,
			wantOK:   true,
		},
		{
			name:    "gap past window",
			earlier: []EventInput{input(0, "Downtown", "A")},
			next:    input(time.Hour+time.Second, "Harbor", "A"),
			wantOK:  false,
		},
		{
			name:    "same instant is not earlier",
			earlier: []EventInput{input(time.Minute, "Downtown", "A")},
			next:    input(time.Minute, "Harbor", "A"),
			wantOK:  false,
		},
		{
			name:    "no shared sensor",
			earlier: []EventInput{input(0, "Downtown", "A")},
			next:    input(time.Minute, "Downtown", "B"),
			wantOK:  false,
		},
		{
			name: "latest earlier event wins",
			earlier: []EventInput{
				input(0, "Downtown", "A"),
				input(10*time.Minute, "Harbor", "B"),
				input(5*time.Minute, "Airport", "A"),
			},
			next:     input(20*time.Minute, "Mall", "A", "B"),
			wantPred: 1,
			wantOK:   true,
		},
		{
			name: "timestamp tie goes to the lowest id",
			earlier: []EventInput{
				input(0, "Downtown", "B"),
				input(0, "Downtown", "A"),
			},
			next:     input(time.Minute, "Harbor", "A", "B"),
			wantPred: 0,
			wantOK:   true,
		},
		{
			name: "out of order insert still finds the earlier event",
			earlier: []EventInput{
				input(40*time.Minute, "Mall", "A"),
				input(10*time.Minute, "Downtown", "A"),
			},
			next:     input(20*time.Minute, "Harbor", "A"),
			wantPred: 1,
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(DefaultOptions())
			for _, in := range tt.earlier {
				mustAdd(t, g, in)
			}
			id := mustAdd(t, g, tt.next)

			pred, ok := g.Predecessor(id)
			if ok != tt.wantOK {
				t.Fatalf("Predecessor() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && pred != tt.wantPred {
				t.Errorf("Predecessor() = %d, want %d", pred, tt.wantPred)
			}
		})
	}
}

// branching builds:
//
//	0 {A,B,C,D} -> 1 {A,B} -> 3 {A}
//	            \-> 2 {C}
func branching(t *testing.T) *Graph {
	g := New(DefaultOptions())
	mustAdd(t, g, input(0, "Downtown", "A", "B", "C", "D"))
	mustAdd(t, g, input(10*time.Minute, "Harbor", "A", "B"))
	mustAdd(t, g, input(20*time.Minute, "Airport", "C"))
	mustAdd(t, g, input(30*time.Minute, "Mall", "A"))
	return g
}

func TestPaths(t *testing.T) {
	g := branching(t)

	path, err := g.PathForEvent(3)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{0, 1, 3}, path); diff != "" {
		t.Errorf("PathForEvent(3) mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]int64{0, 2}, g.PathBySensor("C")); diff != "" {
		t.Errorf("PathBySensor(C) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{0, 1, 3}, g.PathBySensor("A")); diff != "" {
		t.Errorf("PathBySensor(A) mismatch (-want +got):\n%s", diff)
	}
	if p := g.PathBySensor("nobody"); len(p) != 0 {
		t.Errorf("PathBySensor(nobody) = %v, want empty", p)
	}

	succ, err := g.Successors(0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{1, 2}, succ); diff != "" {
		t.Errorf("Successors(0) mismatch (-want +got):\n%s", diff)
	}

	if _, err := g.PathForEvent(42); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("PathForEvent(42) error = %v, want ErrEventNotFound", err)
	}
	if g.EdgeCount() != 3 {
		t.Errorf("EdgeCount() = %d, want 3", g.EdgeCount())
	}
}

func TestLinearChain(t *testing.T) {
	g := New(DefaultOptions())
	for i := 0; i < 5; i++ {
		mustAdd(t, g, input(time.Duration(i)*10*time.Minute, fmt.Sprintf("reader-%d", i), "A"))
	}
	path, err := g.PathForEvent(4)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{0, 1, 2, 3, 4}, path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
}

func TestLatest(t *testing.T) {
	g := branching(t)
	latest := g.Latest(2)
	if len(latest) != 2 || latest[0].ID != 3 || latest[1].ID != 2 {
		t.Errorf("Latest(2) = %+v, want events 3 and 2", latest)
	}
	if n := len(g.Latest(-1)); n != 4 {
		t.Errorf("Latest(-1) returned %d events, want 4", n)
	}
}

func TestPathFeature(t *testing.T) {
	g := New(DefaultOptions())
	first := input(0, "Downtown", "A")
	second := input(time.Minute, "Harbor", "A")
	second.Latitude, second.Longitude = 42.35, -71.06
	mustAdd(t, g, first)
	mustAdd(t, g, second)

	ls := g.Coordinates([]int64{0, 1})
	if len(ls) != 2 || ls[1][0] != -71.06 || ls[1][1] != 42.35 {
		t.Errorf("Coordinates() = %v", ls)
	}

	f, err := g.PathFeature([]int64{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if f.Geometry.GeoJSONType() != "LineString" {
		t.Errorf("geometry type = %s, want LineString", f.Geometry.GeoJSONType())
	}

	f, err = g.PathFeature([]int64{1})
	if err != nil {
		t.Fatal(err)
	}
	if f.Geometry.GeoJSONType() != "Point" {
		t.Errorf("geometry type = %s, want Point", f.Geometry.GeoJSONType())
	}

	if _, err := g.PathFeature([]int64{9}); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("PathFeature(9) error = %v, want ErrEventNotFound", err)
	}
}
