// Package sqlite stores readings in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/lantern/internal/storage"
	"github.com/chrissnell/lantern/internal/types"
	"github.com/chrissnell/lantern/pkg/migrate"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrations returns the migration provider for the detections schema
func Migrations() *migrate.FSProvider {
	return migrate.NewFSProvider(migrationFS, "migrations", "schema_migrations", migrate.SQLite)
}

// Storage holds the database handle for a SQLite storage backend
type Storage struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// New opens the database at path in WAL mode and applies any pending migrations
func New(ctx context.Context, path string, logger *zap.SugaredLogger) (*Storage, error) {
	if path == "" {
		return nil, fmt.Errorf("no SQLite path configured")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if err := migrate.NewMigrator(db, Migrations(), logger).MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite database: %w", err)
	}

	return &Storage{db: db, logger: logger}, nil
}

// StartStorageEngine creates a goroutine loop to receive readings and write them to SQLite
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Reading {
	s.logger.Info("starting SQLite storage engine...")
	readingChan := make(chan types.Reading, 10)
	wg.Add(1)
	go storage.ProcessReadings(ctx, wg, readingChan, s.StoreReading, "SQLite", s.logger)
	return readingChan
}

// StoreReading inserts one reading
func (s *Storage) StoreReading(r types.Reading) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.db.Exec(`
		INSERT INTO detections (
			id, time_ns, sensor_id, sensor_model, vehicle_model,
			location, latitude, longitude, signal_strength, battery
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Timestamp.UnixNano(), r.SensorID, r.SensorModel, r.VehicleModel,
		r.Location, r.Latitude, r.Longitude, r.SignalStrength, r.Battery,
	)
	if err != nil {
		return fmt.Errorf("could not store reading: %w", err)
	}
	return nil
}

// Snapshot reads every detection inside one transaction, ordered by time then sensor id
func (s *Storage) Snapshot(ctx context.Context) ([]types.Reading, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, time_ns, sensor_id, sensor_model, vehicle_model,
		       location, latitude, longitude, signal_strength, battery
		FROM detections
		ORDER BY time_ns, sensor_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var readings []types.Reading
	for rows.Next() {
		var r types.Reading
		var id string
		var ns int64
		err := rows.Scan(&id, &ns, &r.SensorID, &r.SensorModel, &r.VehicleModel,
			&r.Location, &r.Latitude, &r.Longitude, &r.SignalStrength, &r.Battery)
		if err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("detection has an invalid id %q: %w", id, err)
		}
		r.Timestamp = time.Unix(0, ns).UTC()
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return readings, nil
}

// CheckHealth pings the database
func (s *Storage) CheckHealth(ctx context.Context) *storage.HealthData {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "SQLite ping failed", err)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM detections`).Scan(&n); err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "SQLite query test failed", err)
	}
	return storage.CreateHealthData(storage.StatusHealthy, fmt.Sprintf("SQLite operational - %d detections", n), nil)
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}
