package timescaledb

const createTableSQL = `CREATE TABLE IF NOT EXISTS detections (
	id UUID NOT NULL,
	time TIMESTAMPTZ NOT NULL,
	sensor_id TEXT NOT NULL,
	sensor_model TEXT NOT NULL DEFAULT 'unknown',
	vehicle_model TEXT NOT NULL DEFAULT 'unknown',
	location TEXT NOT NULL,
	latitude DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	signal_strength DOUBLE PRECISION NOT NULL DEFAULT 0,
	battery DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (id, time)
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;`

const createHypertableSQL = `SELECT create_hypertable('detections', 'time', if_not_exists => TRUE, migrate_data => TRUE);`

const createSensorIndexSQL = `CREATE INDEX IF NOT EXISTS detections_sensor_id_time_idx ON detections (sensor_id, time DESC);`
