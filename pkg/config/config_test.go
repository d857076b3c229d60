package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleYAML = `
readers:
  - name: gate
    type: mqtt
    mqtt:
      broker: tcp://localhost:1883
      topic: rtl_433/+/events
  - name: sim
    type: simulator
    simulator:
      vehicles: 3
      locations:
        - name: Downtown
          latitude: 45.5
          longitude: -122.6
      readings_per_second: 2
storage:
  sqlite:
    path: /var/lib/lantern/readings.db
controllers:
  - type: rest
  - type: grpchealth
  - type: networkcache
analysis:
  window: 10m
network:
  retention: 24h
`

func TestParseYAMLAppliesDefaults(t *testing.T) {
	cfg, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}

	if got := cfg.Storage.Buffer.Retention; got != DefaultBufferRetention {
		t.Errorf("buffer retention = %q, want %q", got, DefaultBufferRetention)
	}
	if cfg.Controllers[0].RESTServer.Port != DefaultRESTPort {
		t.Errorf("rest port = %d", cfg.Controllers[0].RESTServer.Port)
	}
	if cfg.Controllers[1].GRPCHealth.Port != DefaultGRPCHealthPort {
		t.Errorf("grpc port = %d", cfg.Controllers[1].GRPCHealth.Port)
	}
	if cfg.Readers[1].Simulator.SensorsPerVehicle != DefaultGroupSize {
		t.Errorf("sensors per vehicle = %d", cfg.Readers[1].Simulator.SensorsPerVehicle)
	}

	want := AnalysisData{
		TimeThreshold:       "5s",
		Window:              "10m",
		WeightThreshold:     2,
		GroupSize:           4,
		MaxCliqueCandidates: 50000,
		MatchingWindow:      "1h",
	}
	if diff := cmp.Diff(want, cfg.Analysis); diff != "" {
		t.Errorf("analysis mismatch (-want +got):\n%s", diff)
	}
	if cfg.Network.RebuildInterval != "15s" || cfg.Network.Retention != "24h" {
		t.Errorf("network = %+v", cfg.Network)
	}
}

func TestParseYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "readerz: []\n", "readerz"},
		{"unknown reader type", "readers:\n  - name: x\n    type: serial\n", `unknown type "serial"`},
		{"mqtt without topic", "readers:\n  - name: x\n    type: mqtt\n    mqtt:\n      broker: tcp://b:1883\n", "broker and a topic"},
		{"duplicate reader", "readers:\n  - name: x\n    type: nats\n    nats: {url: nats://n, subject: s}\n  - name: x\n    type: nats\n    nats: {url: nats://n, subject: s}\n", "duplicate reader"},
		{"bad duration", "analysis:\n  window: soon\n", "analysis.window"},
		{"negative duration", "network:\n  retention: -1h\n", "must not be negative"},
		{"group size", "analysis:\n  group_size: 1\n", "group_size"},
		{"unknown controller", "controllers:\n  - type: aprs\n", "aprs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestEmptyYAMLIsValid(t *testing.T) {
	cfg, err := ParseYAML(nil)
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	if cfg.Analysis.GroupSize != DefaultGroupSize {
		t.Errorf("group size = %d", cfg.Analysis.GroupSize)
	}
}

func TestYAMLProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lantern.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewYAMLProvider(path)
	defer p.Close()

	readers, err := p.GetReaders()
	if err != nil {
		t.Fatalf("GetReaders: %v", err)
	}
	if len(readers) != 2 || readers[0].Name != "gate" {
		t.Errorf("readers = %+v", readers)
	}
	if !p.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}

	if _, err := NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).LoadConfig(); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	want, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	want.Analysis.StrictDisjoint = true
	want.Analysis.MaxGroups = 7
	disabled := false
	want.Readers = append(want.Readers, ReaderData{
		Name:    "yard",
		Type:    "nats",
		Enabled: &disabled,
		NATS:    &NATSData{URL: "nats://localhost:4222", Subject: "tpms.readings", Queue: "lantern"},
	})

	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	if err != nil {
		t.Fatalf("NewSQLiteProvider: %v", err)
	}
	defer p.Close()

	if err := p.SaveConfig(want); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	// saving twice replaces rather than duplicates
	if err := p.SaveConfig(want); err != nil {
		t.Fatalf("second SaveConfig: %v", err)
	}

	got, err := p.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if p.IsReadOnly() {
		t.Error("SQLite provider should be writable")
	}
}

func TestSQLiteProviderReaders(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	if err != nil {
		t.Fatalf("NewSQLiteProvider: %v", err)
	}
	defer p.Close()

	cfg, err := p.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig on an empty database: %v", err)
	}
	if len(cfg.Readers) != 0 {
		t.Errorf("readers = %+v, want none", cfg.Readers)
	}

	reader := &ReaderData{Name: "gate", Type: "mqtt", MQTT: &MQTTData{Broker: "tcp://b:1883", Topic: "t", QoS: 1}}
	if err := p.AddReader(reader); err != nil {
		t.Fatalf("AddReader: %v", err)
	}
	if err := p.AddReader(reader); err == nil {
		t.Error("expected a duplicate reader to be rejected")
	}

	readers, err := p.GetReaders()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]ReaderData{*reader}, readers); diff != "" {
		t.Errorf("readers mismatch (-want +got):\n%s", diff)
	}

	if err := p.DeleteReader("gate"); err != nil {
		t.Fatalf("DeleteReader: %v", err)
	}
	if err := p.DeleteReader("gate"); err == nil {
		t.Error("expected an error deleting a missing reader")
	}
}
