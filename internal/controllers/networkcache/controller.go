// Package networkcache periodically rebuilds the temporal detection network from
// the record store and publishes it for the API.
package networkcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chrissnell/lantern/internal/controllers"
	"github.com/chrissnell/lantern/internal/eventgraph"
	"github.com/chrissnell/lantern/internal/storage"
	"github.com/chrissnell/lantern/internal/types"
	"github.com/chrissnell/lantern/pkg/config"
	"go.uber.org/zap"
)

// Stats describes one rebuild
type Stats struct {
	Readings int           `json:"readings"`
	Expired  int           `json:"expired"`
	Skipped  int           `json:"skipped"`
	Events   int           `json:"events"`
	Edges    int           `json:"edges"`
	Duration time.Duration `json:"duration"`
}

// Controller manages the network rebuild lifecycle
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	svc       *controllers.Services
	logger    *zap.SugaredLogger
	interval  time.Duration
	retention time.Duration
	opts      eventgraph.Options
	now       func() time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewController creates a network cache controller from the network settings
func NewController(ctx context.Context, wg *sync.WaitGroup, svc *controllers.Services, logger *zap.SugaredLogger) (*Controller, error) {
	if err := svc.Validate("networkcache"); err != nil {
		return nil, err
	}
	if svc.Store == nil {
		return nil, fmt.Errorf("networkcache controller: no record store")
	}

	var network config.NetworkData
	if svc.Config != nil {
		network = svc.Config.Network
	}
	interval, err := config.Duration(network.RebuildInterval, 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid rebuild interval: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("rebuild interval must be positive")
	}
	matching, err := config.Duration(network.MatchingWindow, eventgraph.DefaultMatchingWindow)
	if err != nil {
		return nil, fmt.Errorf("invalid matching window: %w", err)
	}
	retention, err := config.Duration(network.Retention, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid network retention: %w", err)
	}

	return &Controller{
		ctx:       ctx,
		wg:        wg,
		svc:       svc,
		logger:    logger,
		interval:  interval,
		retention: retention,
		opts:      eventgraph.Options{MatchingWindow: matching},
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}, nil
}

// StartController launches the rebuild loop. The first rebuild runs immediately.
func (c *Controller) StartController() error {
	c.logger.Infof("starting network cache controller (rebuild every %s)", c.interval)
	c.wg.Add(1)
	go c.run()
	return nil
}

// Stop ends the rebuild loop
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Controller) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.refresh()
	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("network cache controller stopped (context cancelled)")
			return
		case <-c.stopChan:
			c.logger.Info("network cache controller stopped (stop requested)")
			return
		case <-ticker.C:
			c.refresh()
		}
	}
}

// refresh rebuilds and publishes the network. On failure the last good graph stays published.
func (c *Controller) refresh() {
	g, stats, err := c.Rebuild(c.ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Errorf("network rebuild failed, keeping the previous graph: %v", err)
		c.svc.Health.UpdateHealth(controllers.NetworkComponent, storage.CreateHealthData(storage.StatusUnhealthy, "rebuild failed", err))
		return
	}

	if !c.svc.Network.Store(g) {
		c.logger.Debug("network cell closed, dropping rebuilt graph")
		return
	}
	c.svc.Health.UpdateHealth(controllers.NetworkComponent, storage.CreateHealthData(storage.StatusHealthy,
		fmt.Sprintf("%d events, %d edges", stats.Events, stats.Edges), nil))

	if stats.Skipped > 0 {
		c.logger.Warnw("skipped invalid records during rebuild", "skipped", stats.Skipped)
	}
	c.logger.Debugw("network rebuilt", "readings", stats.Readings, "expired", stats.Expired,
		"events", stats.Events, "edges", stats.Edges, "duration", stats.Duration)
}

// Rebuild snapshots the record store and builds a brand-new graph from it
func (c *Controller) Rebuild(ctx context.Context) (*eventgraph.Graph, Stats, error) {
	start := time.Now()
	readings, err := c.svc.Store.Snapshot(ctx)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("snapshot failed: %w", err)
	}

	var cutoff time.Time
	if c.retention > 0 {
		cutoff = c.now().Add(-c.retention)
	}
	g, stats := BuildNetwork(readings, c.opts, cutoff)
	stats.Duration = time.Since(start)
	return g, stats, nil
}

// BuildNetwork adds one event per reading, in (timestamp, sensor id) order, to a
// new graph. Readings before cutoff are dropped unless cutoff is zero. Readings
// the graph rejects are skipped and counted.
func BuildNetwork(readings []types.Reading, opts eventgraph.Options, cutoff time.Time) (*eventgraph.Graph, Stats) {
	stats := Stats{Readings: len(readings)}

	kept := make([]types.Reading, 0, len(readings))
	for _, r := range readings {
		if !cutoff.IsZero() && r.Timestamp.Before(cutoff) {
			stats.Expired++
			continue
		}
		kept = append(kept, r)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if !kept[i].Timestamp.Equal(kept[j].Timestamp) {
			return kept[i].Timestamp.Before(kept[j].Timestamp)
		}
		return kept[i].SensorID < kept[j].SensorID
	})

	g := eventgraph.New(opts)
	for _, r := range kept {
		_, err := g.AddEvent(eventgraph.EventInput{
			Timestamp:      r.Timestamp,
			Location:       r.Location,
			Latitude:       r.Latitude,
			Longitude:      r.Longitude,
			Battery:        r.Battery,
			SignalStrength: r.SignalStrength,
			SensorIDs:      []string{r.SensorID},
			Description:    r.VehicleModel,
		})
		if err != nil {
			stats.Skipped++
		}
	}

	stats.Events = g.Len()
	stats.Edges = g.EdgeCount()
	return g, stats
}
