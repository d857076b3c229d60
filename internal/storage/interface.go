// Package storage defines the storage engines that persist readings and the record
// stores the detection network is rebuilt from.
package storage

import (
	"context"
	"sync"

	"github.com/chrissnell/lantern/internal/types"
)

// StorageEngineInterface is an interface that provides a few standardized
// methods for various storage backends
type StorageEngineInterface interface {
	StartStorageEngine(context.Context, *sync.WaitGroup) chan<- types.Reading
}

// RecordStore returns a consistent copy of every stored reading. Snapshot must be
// safe to call while readings are being appended.
type RecordStore interface {
	Snapshot(ctx context.Context) ([]types.Reading, error)
}

// HealthChecker defines the interface for storage backends to implement health checks
type HealthChecker interface {
	CheckHealth(ctx context.Context) *HealthData
}
