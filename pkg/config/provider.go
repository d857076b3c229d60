// Package config loads lantern's configuration from YAML files or SQLite databases.
package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration, with defaults applied and validated
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetReaders() ([]ReaderData, error)
	GetStorageConfig() (*StorageData, error)
	GetControllers() ([]ControllerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Readers     []ReaderData     `json:"readers" yaml:"readers"`
	Storage     StorageData      `json:"storage" yaml:"storage"`
	Controllers []ControllerData `json:"controllers" yaml:"controllers"`
	Analysis    AnalysisData     `json:"analysis" yaml:"analysis"`
	Network     NetworkData      `json:"network" yaml:"network"`
}

// ReaderData configures one source of readings
type ReaderData struct {
	Name string `json:"name" yaml:"name"`
	// Type is mqtt, nats or simulator
	Type    string `json:"type" yaml:"type"`
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	MQTT      *MQTTData      `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
	NATS      *NATSData      `json:"nats,omitempty" yaml:"nats,omitempty"`
	Simulator *SimulatorData `json:"simulator,omitempty" yaml:"simulator,omitempty"`
}

// IsEnabled reports whether the reader should be started. Readers are enabled unless switched off.
func (r ReaderData) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

type MQTTData struct {
	Broker   string `json:"broker" yaml:"broker"`
	Topic    string `json:"topic" yaml:"topic"`
	ClientID string `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	QoS      int    `json:"qos,omitempty" yaml:"qos,omitempty"`
}

type NATSData struct {
	URL     string `json:"url" yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
	Queue   string `json:"queue,omitempty" yaml:"queue,omitempty"`
}

// SimulatorData describes a synthetic stream of vehicles passing readers
type SimulatorData struct {
	Vehicles int `json:"vehicles" yaml:"vehicles"`
	// SensorsPerVehicle defaults to 4
	SensorsPerVehicle int            `json:"sensors_per_vehicle,omitempty" yaml:"sensors_per_vehicle,omitempty"`
	Locations         []LocationData `json:"locations" yaml:"locations"`
	// ReadingsPerSecond paces the stream
	ReadingsPerSecond float64 `json:"readings_per_second" yaml:"readings_per_second"`
	// NoiseSensors are heard alone at random readers
	NoiseSensors int   `json:"noise_sensors,omitempty" yaml:"noise_sensors,omitempty"`
	Seed         int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// LocationData is a named reader position
type LocationData struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// StorageData holds the configuration for the record stores
type StorageData struct {
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty" yaml:"timescaledb,omitempty"`
	SQLite      *SQLiteData      `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Buffer      *BufferData      `json:"buffer,omitempty" yaml:"buffer,omitempty"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
}

type SQLiteData struct {
	Path string `json:"path" yaml:"path"`
}

// BufferData configures the in-memory buffer of recent readings
type BufferData struct {
	Retention string `json:"retention,omitempty" yaml:"retention,omitempty"`
}

// ControllerData holds the configuration for one controller
type ControllerData struct {
	// Type is rest, grpchealth or networkcache
	Type       string          `json:"type" yaml:"type"`
	RESTServer *RESTServerData `json:"rest,omitempty" yaml:"rest,omitempty"`
	GRPCHealth *GRPCHealthData `json:"grpchealth,omitempty" yaml:"grpchealth,omitempty"`
}

type RESTServerData struct {
	Cert        string `json:"cert,omitempty" yaml:"cert,omitempty"`
	Key         string `json:"key,omitempty" yaml:"key,omitempty"`
	Port        int    `json:"port,omitempty" yaml:"port,omitempty"`
	ListenAddr  string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	MaxUploadMB int    `json:"max_upload_mb,omitempty" yaml:"max_upload_mb,omitempty"`
}

type GRPCHealthData struct {
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// AnalysisData holds the batch pipeline defaults. Durations use time.ParseDuration syntax.
type AnalysisData struct {
	TimeThreshold       string `json:"time_threshold,omitempty" yaml:"time_threshold,omitempty"`
	Window              string `json:"window,omitempty" yaml:"window,omitempty"`
	WeightThreshold     int    `json:"weight_threshold,omitempty" yaml:"weight_threshold,omitempty"`
	GroupSize           int    `json:"group_size,omitempty" yaml:"group_size,omitempty"`
	MaxGroups           int    `json:"max_groups,omitempty" yaml:"max_groups,omitempty"`
	MaxCliqueCandidates int    `json:"max_clique_candidates,omitempty" yaml:"max_clique_candidates,omitempty"`
	StrictDisjoint      bool   `json:"strict_disjoint,omitempty" yaml:"strict_disjoint,omitempty"`
	MatchingWindow      string `json:"matching_window,omitempty" yaml:"matching_window,omitempty"`
}

// NetworkData configures the published detection network
type NetworkData struct {
	RebuildInterval string `json:"rebuild_interval,omitempty" yaml:"rebuild_interval,omitempty"`
	MatchingWindow  string `json:"matching_window,omitempty" yaml:"matching_window,omitempty"`
	// Retention drops readings older than this from each rebuild. Empty keeps everything.
	Retention string `json:"retention,omitempty" yaml:"retention,omitempty"`
}
