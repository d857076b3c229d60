// Package memory exposes the ingestion buffer as a storage engine and record store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/lantern/internal/buffer"
	"github.com/chrissnell/lantern/internal/storage"
	"github.com/chrissnell/lantern/internal/types"
	"go.uber.org/zap"
)

// Storage appends every reading to an in-memory buffer
type Storage struct {
	Buffer *buffer.Buffer
	logger *zap.SugaredLogger
}

// New wraps buf. A nil logger discards log output.
func New(buf *buffer.Buffer, logger *zap.SugaredLogger) *Storage {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Storage{Buffer: buf, logger: logger}
}

// StartStorageEngine creates a goroutine loop that appends readings to the buffer
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Reading {
	s.logger.Infof("starting in-memory storage engine (retention %s)...", s.retention())
	readingChan := make(chan types.Reading, 10)
	wg.Add(1)
	go storage.ProcessReadings(ctx, wg, readingChan, func(r types.Reading) error {
		s.Buffer.Add(r)
		return nil
	}, "memory", s.logger)
	return readingChan
}

// Snapshot copies the buffered readings
func (s *Storage) Snapshot(ctx context.Context) ([]types.Reading, error) {
	return s.Buffer.Snapshot(ctx)
}

// CheckHealth reports the number of buffered readings
func (s *Storage) CheckHealth(ctx context.Context) *storage.HealthData {
	return storage.CreateHealthData(storage.StatusHealthy, fmt.Sprintf("%d readings buffered", s.Buffer.Len()), nil)
}

func (s *Storage) retention() string {
	if r := s.Buffer.Retention(); r > 0 {
		return r.String()
	}
	return "unlimited"
}
