package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultRESTPort        = 8080
	DefaultGRPCHealthPort  = 50051
	DefaultMaxUploadMB     = 32
	DefaultBufferRetention = "1h"
	DefaultTimeThreshold   = "5s"
	DefaultWindow          = "30m"
	DefaultWeightThreshold = 2
	DefaultGroupSize       = 4
	DefaultMaxCandidates   = 50000
	DefaultMatchingWindow  = "1h"
	DefaultRebuildInterval = "15s"
)

// ApplyDefaults fills in every value left unset
func (c *ConfigData) ApplyDefaults() {
	if c.Storage.Buffer == nil {
		c.Storage.Buffer = &BufferData{}
	}
	if c.Storage.Buffer.Retention == "" {
		c.Storage.Buffer.Retention = DefaultBufferRetention
	}

	for i := range c.Controllers {
		ctrl := &c.Controllers[i]
		switch ctrl.Type {
		case "rest", "restserver":
			if ctrl.RESTServer == nil {
				ctrl.RESTServer = &RESTServerData{}
			}
			if ctrl.RESTServer.Port == 0 {
				ctrl.RESTServer.Port = DefaultRESTPort
			}
			if ctrl.RESTServer.MaxUploadMB == 0 {
				ctrl.RESTServer.MaxUploadMB = DefaultMaxUploadMB
			}
		case "grpchealth":
			if ctrl.GRPCHealth == nil {
				ctrl.GRPCHealth = &GRPCHealthData{}
			}
			if ctrl.GRPCHealth.Port == 0 {
				ctrl.GRPCHealth.Port = DefaultGRPCHealthPort
			}
		}
	}

	for i := range c.Readers {
		if sim := c.Readers[i].Simulator; sim != nil && sim.SensorsPerVehicle == 0 {
			sim.SensorsPerVehicle = DefaultGroupSize
		}
	}

	a := &c.Analysis
	setString(&a.TimeThreshold, DefaultTimeThreshold)
	setString(&a.Window, DefaultWindow)
	setString(&a.MatchingWindow, DefaultMatchingWindow)
	setInt(&a.WeightThreshold, DefaultWeightThreshold)
	setInt(&a.GroupSize, DefaultGroupSize)
	setInt(&a.MaxCliqueCandidates, DefaultMaxCandidates)

	setString(&c.Network.RebuildInterval, DefaultRebuildInterval)
	setString(&c.Network.MatchingWindow, DefaultMatchingWindow)
}

// Validate reports the first problem found in the configuration
func (c *ConfigData) Validate() error {
	var errs []error

	names := make(map[string]bool)
	for _, r := range c.Readers {
		if r.Name == "" {
			errs = append(errs, errors.New("reader with no name"))
			continue
		}
		if names[r.Name] {
			errs = append(errs, fmt.Errorf("duplicate reader name %q", r.Name))
		}
		names[r.Name] = true

		switch r.Type {
		case "mqtt":
			if r.MQTT == nil || r.MQTT.Broker == "" || r.MQTT.Topic == "" {
				errs = append(errs, fmt.Errorf("reader %s: mqtt readers need a broker and a topic", r.Name))
			}
		case "nats":
			if r.NATS == nil || r.NATS.URL == "" || r.NATS.Subject == "" {
				errs = append(errs, fmt.Errorf("reader %s: nats readers need a url and a subject", r.Name))
			}
		case "simulator":
			if r.Simulator == nil || r.Simulator.Vehicles <= 0 || len(r.Simulator.Locations) == 0 {
				errs = append(errs, fmt.Errorf("reader %s: simulator needs vehicles and locations", r.Name))
			} else if r.Simulator.ReadingsPerSecond <= 0 {
				errs = append(errs, fmt.Errorf("reader %s: readings_per_second must be positive", r.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("reader %s: unknown type %q", r.Name, r.Type))
		}
	}

	for _, ctrl := range c.Controllers {
		switch ctrl.Type {
		case "rest", "restserver", "grpchealth", "networkcache":
		default:
			errs = append(errs, fmt.Errorf("unknown controller type %q", ctrl.Type))
		}
	}

	durations := []struct {
		name, value string
		optional    bool
	}{
		{"storage.buffer.retention", c.bufferRetention(), true},
		{"analysis.time_threshold", c.Analysis.TimeThreshold, false},
		{"analysis.window", c.Analysis.Window, false},
		{"analysis.matching_window", c.Analysis.MatchingWindow, false},
		{"network.rebuild_interval", c.Network.RebuildInterval, false},
		{"network.matching_window", c.Network.MatchingWindow, false},
		{"network.retention", c.Network.Retention, true},
	}
	for _, d := range durations {
		if d.value == "" && d.optional {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
			continue
		}
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s: must not be negative", d.name))
		}
	}

	if c.Analysis.GroupSize < 2 {
		errs = append(errs, fmt.Errorf("analysis.group_size must be at least 2, got %d", c.Analysis.GroupSize))
	}
	if c.Analysis.MaxGroups < 0 {
		errs = append(errs, errors.New("analysis.max_groups must not be negative"))
	}

	return errors.Join(errs...)
}

func (c *ConfigData) bufferRetention() string {
	if c.Storage.Buffer == nil {
		return ""
	}
	return c.Storage.Buffer.Retention
}

// Duration parses a configured duration, returning fallback for an empty value
func Duration(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}

// MustDuration is Duration for values that have already been validated
func MustDuration(value string, fallback time.Duration) time.Duration {
	d, err := Duration(value, fallback)
	if err != nil {
		return fallback
	}
	return d
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}
