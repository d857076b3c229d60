package managers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/chrissnell/lantern/internal/buffer"
	"github.com/chrissnell/lantern/internal/storage"
	"github.com/chrissnell/lantern/internal/storage/memory"
	"github.com/chrissnell/lantern/internal/storage/sqlite"
	"github.com/chrissnell/lantern/internal/storage/timescaledb"
	"github.com/chrissnell/lantern/internal/types"
	"github.com/chrissnell/lantern/pkg/config"
	"go.uber.org/zap"
)

// healthCheckInterval is how often storage engines are probed
const healthCheckInterval = 30 * time.Second

// StorageManager holds our active storage backends
type StorageManager struct {
	Engines            []StorageEngine
	ReadingDistributor chan types.Reading

	store   storage.RecordStore
	closers []io.Closer
	health  *storage.HealthManager
	logger  *zap.SugaredLogger
}

// StorageEngine holds a backend storage engine's interface as well as
// a channel for passing readings to the engine
type StorageEngine struct {
	Name   string
	Engine storage.StorageEngineInterface
	C      chan<- types.Reading
}

// NewStorageManager creates a StorageManager object, populated with all configured
// StorageEngines. The in-memory engine over buf is always present. The record
// store the network is rebuilt from is the most durable engine configured:
// TimescaleDB, then SQLite, then memory.
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, c *config.StorageData, buf *buffer.Buffer, hm *storage.HealthManager, logger *zap.SugaredLogger) (*StorageManager, error) {
	s := &StorageManager{
		ReadingDistributor: make(chan types.Reading, 20),
		health:             hm,
		logger:             logger,
	}

	mem := memory.New(buf, logger.Named("memory"))
	s.addEngine(ctx, wg, "memory", mem)
	s.store = mem

	if c.SQLite != nil && c.SQLite.Path != "" {
		engine, err := sqlite.New(ctx, c.SQLite.Path, logger.Named("sqlite"))
		if err != nil {
			return s, fmt.Errorf("could not add SQLite storage backend: %w", err)
		}
		s.addEngine(ctx, wg, "sqlite", engine)
		s.store = engine
		s.closers = append(s.closers, engine)
	}

	if c.TimescaleDB != nil && c.TimescaleDB.ConnectionString != "" {
		engine, err := timescaledb.New(ctx, c.TimescaleDB, logger.Named("timescaledb"))
		if err != nil {
			return s, fmt.Errorf("could not add TimescaleDB storage backend: %w", err)
		}
		s.addEngine(ctx, wg, "timescaledb", engine)
		s.store = engine
	}

	// Start our reading distributor to distribute received readings to storage
	// backends
	wg.Add(1)
	go s.startReadingDistributor(ctx, wg)

	return s, nil
}

// addEngine starts an engine and, when it can report its health, a monitor for it
func (s *StorageManager) addEngine(ctx context.Context, wg *sync.WaitGroup, name string, engine storage.StorageEngineInterface) {
	s.Engines = append(s.Engines, StorageEngine{
		Name:   name,
		Engine: engine,
		C:      engine.StartStorageEngine(ctx, wg),
	})

	if checker, ok := engine.(storage.HealthChecker); ok && s.health != nil {
		storage.StartHealthMonitor(ctx, wg, s.health, "storage."+name, checker, healthCheckInterval, s.logger)
	}
}

// GetReadingDistributor returns the reading distributor channel
func (s *StorageManager) GetReadingDistributor() chan types.Reading {
	return s.ReadingDistributor
}

// RecordStore returns the store the detection network is rebuilt from
func (s *StorageManager) RecordStore() storage.RecordStore {
	return s.store
}

// Close releases engine resources. Call it once every goroutine on the
// WaitGroup has returned.
func (s *StorageManager) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// startReadingDistributor receives readings from readers and fans them out to the various
// storage backends
func (s *StorageManager) startReadingDistributor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	readingCount := 0
	for {
		select {
		case r := <-s.ReadingDistributor:
			readingCount++
			for _, e := range s.Engines {
				select {
				case e.C <- r:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			s.logger.Infof("reading distributor stopped after %d readings", readingCount)
			return
		}
	}
}
