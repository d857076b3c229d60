// tpms-simulator writes a CSV of synthetic TPMS readings for offline analysis
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chrissnell/lantern/internal/feed"
	"github.com/chrissnell/lantern/internal/readers/simulator"
	"github.com/chrissnell/lantern/internal/types"
	"github.com/chrissnell/lantern/pkg/config"
	"gopkg.in/yaml.v3"
)

var defaultLocations = []config.LocationData{
	{Name: "Downtown", Latitude: 45.5152, Longitude: -122.6784},
	{Name: "Harbor", Latitude: 45.5898, Longitude: -122.7548},
	{Name: "Airport", Latitude: 45.5887, Longitude: -122.5975},
	{Name: "University", Latitude: 45.5118, Longitude: -122.6835},
}

func main() {
	var (
		vehicles  = flag.Int("vehicles", 10, "Number of simulated vehicles")
		sensors   = flag.Int("sensors", 4, "Sensors per vehicle")
		noise     = flag.Int("noise", 0, "Number of noise sensors heard alone")
		passes    = flag.Int("passes", 100, "Number of vehicle passes to generate")
		interval  = flag.Duration("interval", 2*time.Minute, "Simulated time between passes")
		start     = flag.String("start", "", "Simulated start time (RFC3339, default now)")
		seed      = flag.Int64("seed", 0, "Random seed (0 picks one from the clock)")
		locations = flag.String("locations", "", "YAML file listing reader locations (name, latitude, longitude)")
		output    = flag.String("output", "", "Output CSV file (default stdout)")
	)
	flag.Parse()

	if *passes <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -passes must be positive")
		os.Exit(1)
	}

	locs := defaultLocations
	if *locations != "" {
		var err error
		if locs, err = loadLocations(*locations); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading locations: %v\n", err)
			os.Exit(1)
		}
	}

	clock := time.Now().UTC()
	if *start != "" {
		t, err := time.Parse(time.RFC3339, *start)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing -start: %v\n", err)
			os.Exit(1)
		}
		clock = t.UTC()
	}

	gen, err := simulator.NewGenerator(config.SimulatorData{
		Vehicles:          *vehicles,
		SensorsPerVehicle: *sensors,
		Locations:         locs,
		NoiseSensors:      *noise,
		Seed:              *seed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating simulator: %v\n", err)
		os.Exit(1)
	}
	gen.Now = func() time.Time { return clock }

	readings := make([]types.Reading, 0, *passes**sensors)
	for i := 0; i < *passes; i++ {
		readings = append(readings, gen.Pass()...)
		clock = clock.Add(*interval)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	if err := feed.WriteCSV(w, readings); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing readings: %v\n", err)
		os.Exit(1)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing readings: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Wrote %d readings from %d vehicles over %d passes\n", len(readings), len(gen.Vehicles()), *passes)
	for i, v := range gen.Vehicles() {
		fmt.Fprintf(os.Stderr, "  vehicle %d: %s %v\n", i+1, v.Model, v.Sensors)
	}
}

func loadLocations(path string) ([]config.LocationData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var locs []config.LocationData
	if err := yaml.Unmarshal(data, &locs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("%s lists no locations", path)
	}
	return locs, nil
}
