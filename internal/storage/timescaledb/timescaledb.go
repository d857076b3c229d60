// Package timescaledb stores readings in a TimescaleDB hypertable.
package timescaledb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/lantern/internal/database"
	"github.com/chrissnell/lantern/internal/storage"
	"github.com/chrissnell/lantern/internal/types"
	"github.com/chrissnell/lantern/pkg/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Storage holds the connection for a TimescaleDB storage backend
type Storage struct {
	TimescaleDBConn *gorm.DB
	logger          *zap.SugaredLogger
}

// New connects to TimescaleDB and makes sure the detections hypertable exists
func New(ctx context.Context, c *config.TimescaleDBData, logger *zap.SugaredLogger) (*Storage, error) {
	if c == nil || c.ConnectionString == "" {
		return nil, fmt.Errorf("no TimescaleDB connection string configured")
	}

	db, err := database.CreateConnection(c.ConnectionString)
	if err != nil {
		return nil, err
	}
	t := &Storage{TimescaleDBConn: db, logger: logger}

	steps := []struct {
		name string
		sql  string
	}{
		{"database table", createTableSQL},
		{"TimescaleDB extension", createExtensionSQL},
		{"hypertable", createHypertableSQL},
		{"sensor index", createSensorIndexSQL},
	}
	for _, step := range steps {
		logger.Infof("creating %s...", step.name)
		if err := db.WithContext(ctx).Exec(step.sql).Error; err != nil {
			return nil, fmt.Errorf("could not create %s: %w", step.name, err)
		}
	}

	return t, nil
}

// StartStorageEngine creates a goroutine loop to receive readings and send
// them off to TimescaleDB
func (t *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Reading {
	t.logger.Info("starting TimescaleDB storage engine...")
	readingChan := make(chan types.Reading, 10)
	wg.Add(1)
	go storage.ProcessReadings(ctx, wg, readingChan, t.StoreReading, "TimescaleDB", t.logger)
	return readingChan
}

// StoreReading stores a reading value in TimescaleDB
func (t *Storage) StoreReading(r types.Reading) error {
	if err := t.TimescaleDBConn.Create(&r).Error; err != nil {
		return fmt.Errorf("could not store reading: %w", err)
	}
	return nil
}

// Snapshot reads every detection inside a read-only REPEATABLE READ transaction,
// so concurrent inserts never show up half way through the read
func (t *Storage) Snapshot(ctx context.Context) ([]types.Reading, error) {
	var readings []types.Reading
	err := t.TimescaleDBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Order("time ASC").Order("sensor_id ASC").Find(&readings).Error
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("could not read detections: %w", err)
	}
	for i := range readings {
		readings[i].Timestamp = readings[i].Timestamp.UTC()
	}
	return readings, nil
}

// CheckHealth pings the database
func (t *Storage) CheckHealth(ctx context.Context) *storage.HealthData {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := database.Ping(ctx, t.TimescaleDBConn); err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "TimescaleDB check failed", err)
	}
	return storage.CreateHealthData(storage.StatusHealthy, "TimescaleDB operational - ping: OK, query test: OK", nil)
}
