package networkcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/lantern/internal/controllers"
	"github.com/chrissnell/lantern/internal/eventgraph"
	"github.com/chrissnell/lantern/internal/snapshot"
	"github.com/chrissnell/lantern/internal/storage"
	"github.com/chrissnell/lantern/internal/types"
	"github.com/chrissnell/lantern/pkg/config"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu       sync.Mutex
	readings []types.Reading
	err      error
}

func (f *fakeStore) Snapshot(ctx context.Context) ([]types.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]types.Reading(nil), f.readings...), nil
}

func (f *fakeStore) set(readings []types.Reading, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings, f.err = readings, err
}

func reading(sensor, location string, offset time.Duration) types.Reading {
	return types.Reading{
		Timestamp:    t0.Add(offset),
		SensorID:     sensor,
		VehicleModel: "Civic",
		Location:     location,
		Latitude:     45.5,
		Longitude:    -122.6,
	}
}

func newController(t *testing.T, store storage.RecordStore, network config.NetworkData) (*Controller, *controllers.Services) {
	t.Helper()
	svc := &controllers.Services{
		Network: snapshot.New[eventgraph.Graph](),
		Store:   store,
		Health:  storage.NewHealthManager(),
		Config:  &config.ConfigData{Network: network},
	}
	c, err := NewController(context.Background(), &sync.WaitGroup{}, svc, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c, svc
}

func TestBuildNetwork(t *testing.T) {
	readings := []types.Reading{
		reading("b", "Harbor", 10*time.Minute),
		reading("a", "Downtown", 0),
		reading("b", "Downtown", 0),
		reading("a", "Harbor", 10*time.Minute),
		{Timestamp: t0, SensorID: "c", Location: "Nowhere", Latitude: 91},
	}

	g, stats := BuildNetwork(readings, eventgraph.DefaultOptions(), time.Time{})
	if stats.Events != 4 || stats.Skipped != 1 || stats.Readings != 5 {
		t.Fatalf("stats = %+v", stats)
	}

	// events are added in (timestamp, sensor id) order
	all := g.All()
	wantSensors := []string{"a", "b", "a", "b"}
	for i, ev := range all {
		if ev.SensorIDs[0] != wantSensors[i] {
			t.Errorf("event %d sensor = %s, want %s", i, ev.SensorIDs[0], wantSensors[i])
		}
		if ev.Description != "Civic" {
			t.Errorf("event %d description = %q", i, ev.Description)
		}
	}
	if p, ok := g.Predecessor(2); !ok || p != 0 {
		t.Errorf("predecessor of 2 = %d, %v; want 0", p, ok)
	}
	if p, ok := g.Predecessor(3); !ok || p != 1 {
		t.Errorf("predecessor of 3 = %d, %v; want 1", p, ok)
	}
}

func TestBuildNetworkRetention(t *testing.T) {
	readings := []types.Reading{
		reading("a", "Downtown", 0),
		reading("a", "Harbor", 2*time.Hour),
	}
	g, stats := BuildNetwork(readings, eventgraph.DefaultOptions(), t0.Add(time.Hour))
	if stats.Expired != 1 || g.Len() != 1 {
		t.Errorf("stats = %+v, len = %d", stats, g.Len())
	}
}

func TestRefreshPublishesAndKeepsLastGoodGraph(t *testing.T) {
	store := &fakeStore{readings: []types.Reading{reading("a", "Downtown", 0), reading("a", "Harbor", time.Minute)}}
	c, svc := newController(t, store, config.NetworkData{})

	c.refresh()
	first := svc.Network.Load()
	if first == nil || first.Len() != 2 {
		t.Fatalf("published graph = %v", first)
	}
	if !svc.Health.IsHealthy(controllers.NetworkComponent, 0) {
		t.Error("network should be healthy after a rebuild")
	}

	store.set(nil, errors.New("database unavailable"))
	c.refresh()
	if svc.Network.Load() != first {
		t.Error("a failed rebuild replaced the published graph")
	}
	if svc.Health.IsHealthy(controllers.NetworkComponent, 0) {
		t.Error("network should be unhealthy after a failed rebuild")
	}

	store.set([]types.Reading{reading("b", "Airport", 0)}, nil)
	c.refresh()
	if g := svc.Network.Load(); g == first || g.Len() != 1 {
		t.Errorf("recovered graph = %v", g)
	}
	if svc.Network.Version() != 2 {
		t.Errorf("version = %d, want 2", svc.Network.Version())
	}

	svc.Network.Close()
	c.refresh()
	if svc.Network.Load() != nil {
		t.Error("closed cell still serves a graph")
	}
}

func TestControllerLoop(t *testing.T) {
	store := &fakeStore{readings: []types.Reading{reading("a", "Downtown", 0)}}
	svc := &controllers.Services{
		Network: snapshot.New[eventgraph.Graph](),
		Store:   store,
		Health:  storage.NewHealthManager(),
		Config:  &config.ConfigData{Network: config.NetworkData{RebuildInterval: "10ms"}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	c, err := NewController(ctx, &wg, svc, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.StartController(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for svc.Network.Version() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d rebuilds published", svc.Network.Version())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	wg.Wait()
}

func TestNewControllerErrors(t *testing.T) {
	tests := []struct {
		name string
		svc  *controllers.Services
	}{
		{"no services", nil},
		{"no store", &controllers.Services{Network: snapshot.New[eventgraph.Graph](), Health: storage.NewHealthManager()}},
		{"bad interval", &controllers.Services{
			Network: snapshot.New[eventgraph.Graph](),
			Health:  storage.NewHealthManager(),
			Store:   &fakeStore{},
			Config:  &config.ConfigData{Network: config.NetworkData{RebuildInterval: "often"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewController(context.Background(), &sync.WaitGroup{}, tt.svc, zap.NewNop().Sugar()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
