// Package analysis runs the batch pipeline: co-occurrence graph, vehicle groups,
// confidence scores and a reconstructed path for every vehicle.
package analysis

import (
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/lantern/internal/cooccurrence"
	"github.com/chrissnell/lantern/internal/eventgraph"
	"github.com/chrissnell/lantern/internal/grouping"
	"github.com/chrissnell/lantern/internal/types"
)

// ErrNoReadings is returned for an empty batch
var ErrNoReadings = errors.New("no readings to analyze")

// Params gathers the options of every pipeline stage
type Params struct {
	Build    cooccurrence.BuildOptions `json:"build"`
	Grouping grouping.Options          `json:"grouping"`
	Events   eventgraph.Options        `json:"events"`
}

// DefaultParams returns the defaults of every stage
func DefaultParams() Params {
	return Params{
		Build:    cooccurrence.DefaultBuildOptions(),
		Grouping: grouping.DefaultOptions(),
		Events:   eventgraph.DefaultOptions(),
	}
}

// Vehicle is one scored group with what the batch says about it
type Vehicle struct {
	Rank           int                `json:"rank"`
	Sensors        []string           `json:"sensors"`
	Weight         int                `json:"weight"`
	Confidence     float64            `json:"confidence"`
	SensorModels   []string           `json:"sensor_models"`
	VehicleModels  []string           `json:"vehicle_models"`
	ReadingCount   int                `json:"reading_count"`
	DetectionCount int                `json:"detection_count"`
	FirstSeen      time.Time          `json:"first_seen"`
	LastSeen       time.Time          `json:"last_seen"`
	Path           []eventgraph.Event `json:"path"`
}

// Summary holds batch-wide statistics
type Summary struct {
	Readings          int     `json:"readings"`
	Skipped           int     `json:"skipped"`
	Sensors           int     `json:"sensors"`
	Locations         int     `json:"locations"`
	Nodes             int     `json:"nodes"`
	Edges             int     `json:"edges"`
	PrunedNodes       int     `json:"pruned_nodes"`
	PrunedEdges       int     `json:"pruned_edges"`
	Vehicles          int     `json:"vehicles"`
	MeanConfidence    float64 `json:"mean_confidence"`
	MeanWeight        float64 `json:"mean_weight"`
	MeanDetections    float64 `json:"mean_detections"`
	CliquePassSkipped bool    `json:"clique_pass_skipped"`
}

// Report is the result of one batch
type Report struct {
	Graph    cooccurrence.NodeLink `json:"graph"`
	Vehicles []Vehicle             `json:"vehicles"`
	TooSmall bool                  `json:"too_small"`
	Summary  Summary               `json:"summary"`

	// Events holds every vehicle detection of the batch
	Events *eventgraph.Graph `json:"-"`
}

// Analyze runs the whole pipeline over a batch. Readings that fail validation
// are skipped and counted.
func Analyze(readings []types.Reading, params Params, logger *zap.SugaredLogger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if len(readings) == 0 {
		return nil, ErrNoReadings
	}

	valid := make([]types.Reading, 0, len(readings))
	for _, r := range readings {
		if err := r.Validate(); err != nil {
			logger.Debugw("skipping reading", "error", err)
			continue
		}
		valid = append(valid, r)
	}
	if skipped := len(readings) - len(valid); skipped > 0 {
		logger.Warnf("skipped %d invalid readings out of %d", skipped, len(readings))
	}
	if len(valid) == 0 {
		return nil, ErrNoReadings
	}

	g := cooccurrence.Build(valid, params.Build)
	grouper := grouping.NewGrouper(params.Grouping, logger)
	result := grouper.FindGroups(g)
	scored := grouping.Score(g, result.Groups)

	report := &Report{
		Graph:    g.NodeLink(),
		Vehicles: make([]Vehicle, 0, len(scored)),
		TooSmall: result.TooSmall,
		Events:   eventgraph.New(params.Events),
	}

	threshold := params.Build.TimeThreshold
	if threshold < 0 {
		threshold = 0
	}

	var all []detection
	for i, sg := range scored {
		v, dets := describe(sg, valid, threshold)
		v.Rank = i + 1
		report.Vehicles = append(report.Vehicles, v)
		for _, d := range dets {
			d.vehicle = i
			all = append(all, d)
		}
	}

	// detections go in chronologically so every vehicle's chain is linked in order
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].input.Timestamp.Equal(all[j].input.Timestamp) {
			return all[i].input.Timestamp.Before(all[j].input.Timestamp)
		}
		return all[i].vehicle < all[j].vehicle
	})
	last := make(map[int]int64)
	for _, d := range all {
		id, err := report.Events.AddEvent(d.input)
		if err != nil {
			logger.Warnw("dropping detection", "vehicle", d.vehicle+1, "error", err)
			continue
		}
		last[d.vehicle] = id
		report.Vehicles[d.vehicle].DetectionCount++
	}

	for i := range report.Vehicles {
		report.Vehicles[i].Path = []eventgraph.Event{}
		id, ok := last[i]
		if !ok {
			continue
		}
		path, err := report.Events.PathForEvent(id)
		if err != nil {
			return nil, err
		}
		if report.Vehicles[i].Path, err = report.Events.Events(path); err != nil {
			return nil, err
		}
	}

	report.Summary = summarize(valid, g, result, report.Vehicles)
	report.Summary.Skipped = len(readings) - len(valid)

	logger.Infow("batch analyzed",
		"readings", len(valid),
		"sensors", g.NodeCount(),
		"vehicles", len(report.Vehicles),
		"too_small", report.TooSmall)

	return report, nil
}

type detection struct {
	vehicle int
	input   eventgraph.EventInput
}

// describe collects a group's readings, its model sets and its detections. A
// detection is a run of member readings at one location no more than threshold
// after the run's first reading.
func describe(sg grouping.ScoredGroup, readings []types.Reading, threshold time.Duration) (Vehicle, []detection) {
	members := make(map[string]struct{}, len(sg.Members))
	for _, m := range sg.Members {
		members[m] = struct{}{}
	}

	var mine []types.Reading
	for _, r := range readings {
		if _, ok := members[r.SensorID]; ok {
			mine = append(mine, r)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool {
		if !mine[i].Timestamp.Equal(mine[j].Timestamp) {
			return mine[i].Timestamp.Before(mine[j].Timestamp)
		}
		return mine[i].SensorID < mine[j].SensorID
	})

	v := Vehicle{
		Sensors:      append([]string(nil), sg.Members...),
		Weight:       sg.Weight,
		Confidence:   sg.Confidence,
		ReadingCount: len(mine),
	}

	sensorModels := map[string]struct{}{}
	vehicleModels := map[string]struct{}{}
	for _, r := range mine {
		sensorModels[r.SensorModel] = struct{}{}
		vehicleModels[r.VehicleModel] = struct{}{}
	}
	v.SensorModels = sortedSet(sensorModels)
	v.VehicleModels = sortedSet(vehicleModels)
	if len(mine) > 0 {
		v.FirstSeen = mine[0].Timestamp
		v.LastSeen = mine[len(mine)-1].Timestamp
	}

	var dets []detection
	for start := 0; start < len(mine); {
		end := start + 1
		for end < len(mine) &&
			mine[end].Location == mine[start].Location &&
			mine[end].Timestamp.Sub(mine[start].Timestamp) <= threshold {
			end++
		}
		dets = append(dets, detection{input: detectionInput(mine[start:end])})
		start = end
	}
	return v, dets
}

// detectionInput merges a run of readings into one event
func detectionInput(run []types.Reading) eventgraph.EventInput {
	lat := make([]float64, len(run))
	lon := make([]float64, len(run))
	battery := make([]float64, len(run))
	signal := make([]float64, len(run))
	sensors := map[string]struct{}{}
	models := map[string]struct{}{}
	for i, r := range run {
		lat[i], lon[i] = r.Latitude, r.Longitude
		battery[i], signal[i] = r.Battery, r.SignalStrength
		sensors[r.SensorID] = struct{}{}
		models[r.VehicleModel] = struct{}{}
	}

	return eventgraph.EventInput{
		Timestamp:      run[0].Timestamp,
		Location:       run[0].Location,
		Latitude:       stat.Mean(lat, nil),
		Longitude:      stat.Mean(lon, nil),
		Battery:        stat.Mean(battery, nil),
		SignalStrength: stat.Mean(signal, nil),
		SensorIDs:      sortedSet(sensors),
		Description:    strings.Join(sortedSet(models), ", "),
	}
}

func summarize(readings []types.Reading, g *cooccurrence.Graph, result grouping.Result, vehicles []Vehicle) Summary {
	locations := map[string]struct{}{}
	for _, r := range readings {
		locations[r.Location] = struct{}{}
	}

	s := Summary{
		Readings:          len(readings),
		Sensors:           g.NodeCount(),
		Locations:         len(locations),
		Nodes:             g.NodeCount(),
		Edges:             g.EdgeCount(),
		PrunedNodes:       result.PrunedNodes,
		PrunedEdges:       result.PrunedEdges,
		Vehicles:          len(vehicles),
		CliquePassSkipped: result.CliquePassSkipped,
	}
	if len(vehicles) == 0 {
		return s
	}

	conf := make([]float64, len(vehicles))
	weight := make([]float64, len(vehicles))
	dets := make([]float64, len(vehicles))
	for i, v := range vehicles {
		conf[i] = v.Confidence
		weight[i] = float64(v.Weight)
		dets[i] = float64(v.DetectionCount)
	}
	s.MeanConfidence = stat.Mean(conf, nil)
	s.MeanWeight = stat.Mean(weight, nil)
	s.MeanDetections = stat.Mean(dets, nil)
	return s
}

func sortedSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
