// Package simulator generates synthetic TPMS traffic: a fleet of vehicles, each
// carrying a fixed set of sensors, driving past a route of roadside readers.
package simulator

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/chrissnell/lantern/internal/types"
	"github.com/chrissnell/lantern/pkg/config"
	"github.com/google/uuid"
)

// maxSpread bounds how far apart the sensors of one vehicle are heard during a pass
const maxSpread = 1500 * time.Millisecond

var (
	vehicleModels = []string{"Toyota Camry", "Honda Civic", "Ford F-150", "Tesla Model 3", "Subaru Outback", "Chevrolet Bolt"}
	sensorModels  = []string{"Schrader", "Continental VDO", "Pacific", "Huf", "TRW"}
)

// Vehicle is one simulated car and its tire sensors
type Vehicle struct {
	Model       string
	SensorModel string
	Sensors     []string
	Battery     []float64
	next        int // index of the next location on its route
}

// Generator produces passes of vehicles by readers. It is not safe for concurrent use.
type Generator struct {
	rng       *rand.Rand
	locations []config.LocationData
	vehicles  []*Vehicle
	noise     []string

	// Now stamps each pass. The live reader uses the wall clock; file output uses a
	// simulated clock.
	Now func() time.Time
}

// NewGenerator builds a fleet from cfg. A zero seed picks one from the clock.
func NewGenerator(cfg config.SimulatorData) (*Generator, error) {
	if cfg.Vehicles <= 0 {
		return nil, fmt.Errorf("simulator needs at least one vehicle")
	}
	if len(cfg.Locations) == 0 {
		return nil, fmt.Errorf("simulator needs at least one location")
	}
	perVehicle := cfg.SensorsPerVehicle
	if perVehicle <= 0 {
		perVehicle = 4
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	g := &Generator{
		rng:       rand.New(rand.NewSource(seed)),
		locations: cfg.Locations,
		Now:       time.Now,
	}

	used := make(map[string]bool)
	for i := 0; i < cfg.Vehicles; i++ {
		v := &Vehicle{
			Model:       vehicleModels[g.rng.Intn(len(vehicleModels))],
			SensorModel: sensorModels[g.rng.Intn(len(sensorModels))],
			next:        g.rng.Intn(len(cfg.Locations)),
		}
		for j := 0; j < perVehicle; j++ {
			v.Sensors = append(v.Sensors, g.sensorID(used))
			v.Battery = append(v.Battery, 2.6+g.rng.Float64()*0.5)
		}
		g.vehicles = append(g.vehicles, v)
	}
	for i := 0; i < cfg.NoiseSensors; i++ {
		g.noise = append(g.noise, g.sensorID(used))
	}

	return g, nil
}

// Vehicles returns the simulated fleet
func (g *Generator) Vehicles() []*Vehicle {
	return g.vehicles
}

// Pass moves a random vehicle to the next reader on its route and returns the
// readings its sensors produce there, in time order. When noise sensors are
// configured, one of them is sometimes heard alone at a random reader.
func (g *Generator) Pass() []types.Reading {
	v := g.vehicles[g.rng.Intn(len(g.vehicles))]
	loc := g.locations[v.next]
	v.next = (v.next + 1) % len(g.locations)

	base := g.Now().UTC()
	offsets := make([]time.Duration, len(v.Sensors))
	for i := range offsets {
		offsets[i] = time.Duration(g.rng.Int63n(int64(maxSpread)))
	}
	// sensors are reported in the order they were heard
	order := g.rng.Perm(len(v.Sensors))
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	out := make([]types.Reading, 0, len(v.Sensors)+1)
	for i, idx := range order {
		out = append(out, types.Reading{
			ID:             uuid.New(),
			Timestamp:      base.Add(offsets[i]),
			SensorID:       v.Sensors[idx],
			SensorModel:    v.SensorModel,
			VehicleModel:   v.Model,
			Location:       loc.Name,
			Latitude:       loc.Latitude,
			Longitude:      loc.Longitude,
			SignalStrength: -40 - g.rng.Float64()*50,
			Battery:        v.Battery[idx],
		})
	}

	if len(g.noise) > 0 && g.rng.Intn(5) == 0 {
		nl := g.locations[g.rng.Intn(len(g.locations))]
		out = append(out, types.Reading{
			ID:             uuid.New(),
			Timestamp:      base.Add(maxSpread),
			SensorID:       g.noise[g.rng.Intn(len(g.noise))],
			SensorModel:    types.Unknown,
			VehicleModel:   types.Unknown,
			Location:       nl.Name,
			Latitude:       nl.Latitude,
			Longitude:      nl.Longitude,
			SignalStrength: -85 - g.rng.Float64()*10,
		})
	}
	return out
}

func (g *Generator) sensorID(used map[string]bool) string {
	for {
		id := fmt.Sprintf("%08x", g.rng.Uint32())
		if !used[id] {
			used[id] = true
			return id
		}
	}
}
