package config

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chrissnell/lantern/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const defaultConfigName = "default"

// Migrations returns the embedded schema migrations of the configuration database
func Migrations() *migrate.FSProvider {
	return migrate.NewFSProvider(migrationFS, "migrations", "config_schema_migrations", migrate.SQLite)
}

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens the database and brings its schema up to date
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	m := migrate.NewMigrator(db, Migrations(), nil)
	if err := m.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate config database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	readers, err := s.GetReaders()
	if err != nil {
		return nil, fmt.Errorf("failed to load readers: %w", err)
	}
	config.Readers = readers

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	controllers, err := s.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("failed to load controllers: %w", err)
	}
	config.Controllers = controllers

	if err := s.loadSettings(config); err != nil {
		return nil, fmt.Errorf("failed to load pipeline settings: %w", err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// GetReaders returns reader configurations from the database
func (s *SQLiteProvider) GetReaders() ([]ReaderData, error) {
	query := `
		SELECT name, type, enabled,
		       mqtt_broker, mqtt_topic, mqtt_client_id, mqtt_username, mqtt_password, mqtt_qos,
		       nats_url, nats_subject, nats_queue,
		       simulator_json
		FROM readers
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
		ORDER BY id
	`

	rows, err := s.db.Query(query, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query readers: %w", err)
	}
	defer rows.Close()

	var readers []ReaderData
	for rows.Next() {
		var reader ReaderData
		var enabled bool
		var broker, topic, clientID, username, password sql.NullString
		var qos sql.NullInt64
		var natsURL, subject, queue sql.NullString
		var simulator sql.NullString

		err := rows.Scan(
			&reader.Name, &reader.Type, &enabled,
			&broker, &topic, &clientID, &username, &password, &qos,
			&natsURL, &subject, &queue,
			&simulator,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reader row: %w", err)
		}

		if !enabled {
			reader.Enabled = &enabled
		}

		switch reader.Type {
		case "mqtt":
			reader.MQTT = &MQTTData{
				Broker:   broker.String,
				Topic:    topic.String,
				ClientID: clientID.String,
				Username: username.String,
				Password: password.String,
				QoS:      int(qos.Int64),
			}
		case "nats":
			reader.NATS = &NATSData{
				URL:     natsURL.String,
				Subject: subject.String,
				Queue:   queue.String,
			}
		case "simulator":
			if simulator.Valid && simulator.String != "" {
				var sim SimulatorData
				if err := json.Unmarshal([]byte(simulator.String), &sim); err != nil {
					return nil, fmt.Errorf("reader %s: invalid simulator settings: %w", reader.Name, err)
				}
				reader.Simulator = &sim
			}
		}

		readers = append(readers, reader)
	}

	return readers, rows.Err()
}

// GetStorageConfig returns storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	query := `
		SELECT backend_type, timescale_connection_string, sqlite_path, buffer_retention
		FROM storage_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = ?) AND enabled = 1
	`

	rows, err := s.db.Query(query, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage configs: %w", err)
	}
	defer rows.Close()

	storage := &StorageData{}

	for rows.Next() {
		var backendType string
		var connectionString, path, retention sql.NullString

		if err := rows.Scan(&backendType, &connectionString, &path, &retention); err != nil {
			return nil, fmt.Errorf("failed to scan storage config row: %w", err)
		}

		switch backendType {
		case "timescaledb":
			if connectionString.Valid {
				storage.TimescaleDB = &TimescaleDBData{ConnectionString: connectionString.String}
			}
		case "sqlite":
			if path.Valid {
				storage.SQLite = &SQLiteData{Path: path.String}
			}
		case "buffer":
			storage.Buffer = &BufferData{Retention: retention.String}
		}
	}

	return storage, rows.Err()
}

// GetControllers returns controller configurations from the database
func (s *SQLiteProvider) GetControllers() ([]ControllerData, error) {
	query := `
		SELECT controller_type,
		       rest_cert, rest_key, rest_port, rest_listen_addr, rest_max_upload_mb,
		       grpc_port, grpc_listen_addr
		FROM controller_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = ?) AND enabled = 1
		ORDER BY id
	`

	rows, err := s.db.Query(query, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query controller configs: %w", err)
	}
	defer rows.Close()

	var controllers []ControllerData

	for rows.Next() {
		var controllerType string
		var restCert, restKey, restListenAddr, grpcListenAddr sql.NullString
		var restPort, restMaxUpload, grpcPort sql.NullInt64

		err := rows.Scan(
			&controllerType,
			&restCert, &restKey, &restPort, &restListenAddr, &restMaxUpload,
			&grpcPort, &grpcListenAddr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan controller config row: %w", err)
		}

		controller := ControllerData{Type: controllerType}

		switch controllerType {
		case "rest", "restserver":
			controller.RESTServer = &RESTServerData{
				Cert:        restCert.String,
				Key:         restKey.String,
				Port:        int(restPort.Int64),
				ListenAddr:  restListenAddr.String,
				MaxUploadMB: int(restMaxUpload.Int64),
			}
		case "grpchealth":
			controller.GRPCHealth = &GRPCHealthData{
				Port:       int(grpcPort.Int64),
				ListenAddr: grpcListenAddr.String,
			}
		}

		controllers = append(controllers, controller)
	}

	return controllers, rows.Err()
}

func (s *SQLiteProvider) loadSettings(config *ConfigData) error {
	query := `
		SELECT time_threshold, window_duration, weight_threshold, group_size, max_groups,
		       max_clique_candidates, strict_disjoint, matching_window,
		       network_rebuild_interval, network_matching_window, network_retention
		FROM pipeline_settings
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
	`

	var timeThreshold, window, matchingWindow, rebuild, networkWindow, retention sql.NullString
	var weightThreshold, groupSize, maxGroups, maxCandidates sql.NullInt64
	var strict bool

	err := s.db.QueryRow(query, defaultConfigName).Scan(
		&timeThreshold, &window, &weightThreshold, &groupSize, &maxGroups,
		&maxCandidates, &strict, &matchingWindow,
		&rebuild, &networkWindow, &retention,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	config.Analysis = AnalysisData{
		TimeThreshold:       timeThreshold.String,
		Window:              window.String,
		WeightThreshold:     int(weightThreshold.Int64),
		GroupSize:           int(groupSize.Int64),
		MaxGroups:           int(maxGroups.Int64),
		MaxCliqueCandidates: int(maxCandidates.Int64),
		StrictDisjoint:      strict,
		MatchingWindow:      matchingWindow.String,
	}
	config.Network = NetworkData{
		RebuildInterval: rebuild.String,
		MatchingWindow:  networkWindow.String,
		Retention:       retention.String,
	}
	return nil
}

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Write methods for configuration management

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return err
	}

	if err := s.clearExistingConfig(tx, configID); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	for _, reader := range configData.Readers {
		if err := s.insertReader(tx, configID, &reader); err != nil {
			return fmt.Errorf("failed to insert reader %s: %w", reader.Name, err)
		}
	}

	if err := s.insertStorageConfigs(tx, configID, &configData.Storage); err != nil {
		return fmt.Errorf("failed to insert storage configs: %w", err)
	}

	for _, controller := range configData.Controllers {
		if err := s.insertController(tx, configID, &controller); err != nil {
			return fmt.Errorf("failed to insert controller %s: %w", controller.Type, err)
		}
	}

	if err := s.insertSettings(tx, configID, configData); err != nil {
		return fmt.Errorf("failed to insert pipeline settings: %w", err)
	}

	return tx.Commit()
}

// AddReader stores one more reader in the current configuration
func (s *SQLiteProvider) AddReader(reader *ReaderData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return err
	}
	if err := s.insertReader(tx, configID, reader); err != nil {
		return fmt.Errorf("failed to insert reader %s: %w", reader.Name, err)
	}
	return tx.Commit()
}

// DeleteReader removes a reader by name
func (s *SQLiteProvider) DeleteReader(name string) error {
	result, err := s.db.Exec(`DELETE FROM readers WHERE name = ? AND config_id = (SELECT id FROM configs WHERE name = ?)`, name, defaultConfigName)
	if err != nil {
		return fmt.Errorf("failed to delete reader: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("reader %s not found", name)
	}
	return nil
}

func (s *SQLiteProvider) insertConfig(tx *sql.Tx, name string) (int64, error) {
	query := `INSERT INTO configs (name, created_at, updated_at) VALUES (?, datetime('now'), datetime('now'))`
	result, err := tx.Exec(query, name)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteProvider) getConfigID(tx *sql.Tx) (int64, error) {
	var configID int64
	err := tx.QueryRow("SELECT id FROM configs WHERE name = ?", defaultConfigName).Scan(&configID)
	if err != nil {
		return 0, err
	}
	return configID, nil
}

// getOrCreateConfigID gets existing config ID or creates a new one
func (s *SQLiteProvider) getOrCreateConfigID(tx *sql.Tx) (int64, error) {
	configID, err := s.getConfigID(tx)
	if err == nil {
		_, err = tx.Exec(`UPDATE configs SET updated_at = datetime('now') WHERE id = ?`, configID)
		return configID, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	configID, err = s.insertConfig(tx, defaultConfigName)
	if err != nil {
		return 0, fmt.Errorf("failed to create default config: %w", err)
	}
	return configID, nil
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	queries := []string{
		"DELETE FROM readers WHERE config_id = ?",
		"DELETE FROM storage_configs WHERE config_id = ?",
		"DELETE FROM controller_configs WHERE config_id = ?",
		"DELETE FROM pipeline_settings WHERE config_id = ?",
	}

	for _, query := range queries {
		if _, err := tx.Exec(query, configID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProvider) insertReader(tx *sql.Tx, configID int64, reader *ReaderData) error {
	query := `
		INSERT INTO readers (
			config_id, name, type, enabled,
			mqtt_broker, mqtt_topic, mqtt_client_id, mqtt_username, mqtt_password, mqtt_qos,
			nats_url, nats_subject, nats_queue,
			simulator_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var broker, topic, clientID, username, password sql.NullString
	var qos sql.NullInt64
	if m := reader.MQTT; m != nil {
		broker, topic, clientID = nullString(m.Broker), nullString(m.Topic), nullString(m.ClientID)
		username, password = nullString(m.Username), nullString(m.Password)
		qos = sql.NullInt64{Int64: int64(m.QoS), Valid: true}
	}

	var natsURL, subject, queue sql.NullString
	if n := reader.NATS; n != nil {
		natsURL, subject, queue = nullString(n.URL), nullString(n.Subject), nullString(n.Queue)
	}

	var simulator sql.NullString
	if reader.Simulator != nil {
		b, err := json.Marshal(reader.Simulator)
		if err != nil {
			return err
		}
		simulator = nullString(string(b))
	}

	_, err := tx.Exec(query,
		configID, reader.Name, reader.Type, reader.IsEnabled(),
		broker, topic, clientID, username, password, qos,
		natsURL, subject, queue,
		simulator,
	)
	return err
}

func (s *SQLiteProvider) insertStorageConfigs(tx *sql.Tx, configID int64, storage *StorageData) error {
	query := `
		INSERT INTO storage_configs (config_id, backend_type, enabled, timescale_connection_string, sqlite_path, buffer_retention)
		VALUES (?, ?, 1, ?, ?, ?)
	`

	if storage.TimescaleDB != nil {
		if _, err := tx.Exec(query, configID, "timescaledb", storage.TimescaleDB.ConnectionString, nil, nil); err != nil {
			return err
		}
	}
	if storage.SQLite != nil {
		if _, err := tx.Exec(query, configID, "sqlite", nil, storage.SQLite.Path, nil); err != nil {
			return err
		}
	}
	if storage.Buffer != nil {
		if _, err := tx.Exec(query, configID, "buffer", nil, nil, nullString(storage.Buffer.Retention)); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProvider) insertController(tx *sql.Tx, configID int64, controller *ControllerData) error {
	query := `
		INSERT INTO controller_configs (
			config_id, controller_type, enabled,
			rest_cert, rest_key, rest_port, rest_listen_addr, rest_max_upload_mb,
			grpc_port, grpc_listen_addr
		) VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?, ?)
	`

	var restCert, restKey, restListenAddr, grpcListenAddr sql.NullString
	var restPort, restMaxUpload, grpcPort sql.NullInt64
	if r := controller.RESTServer; r != nil {
		restCert, restKey, restListenAddr = nullString(r.Cert), nullString(r.Key), nullString(r.ListenAddr)
		restPort = nullInt(r.Port)
		restMaxUpload = nullInt(r.MaxUploadMB)
	}
	if g := controller.GRPCHealth; g != nil {
		grpcPort = nullInt(g.Port)
		grpcListenAddr = nullString(g.ListenAddr)
	}

	_, err := tx.Exec(query,
		configID, controller.Type,
		restCert, restKey, restPort, restListenAddr, restMaxUpload,
		grpcPort, grpcListenAddr,
	)
	return err
}

func (s *SQLiteProvider) insertSettings(tx *sql.Tx, configID int64, config *ConfigData) error {
	query := `
		INSERT INTO pipeline_settings (
			config_id, time_threshold, window_duration, weight_threshold, group_size, max_groups,
			max_clique_candidates, strict_disjoint, matching_window,
			network_rebuild_interval, network_matching_window, network_retention
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	a, n := config.Analysis, config.Network
	_, err := tx.Exec(query,
		configID, nullString(a.TimeThreshold), nullString(a.Window),
		nullInt(a.WeightThreshold), nullInt(a.GroupSize), nullInt(a.MaxGroups),
		nullInt(a.MaxCliqueCandidates), a.StrictDisjoint, nullString(a.MatchingWindow),
		nullString(n.RebuildInterval), nullString(n.MatchingWindow), nullString(n.Retention),
	)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(i int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(i), Valid: i != 0}
}
