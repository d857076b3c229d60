// Package buffer keeps the most recent readings in memory for live views.
package buffer

import (
	"context"
	"sync"
	"time"

	"github.com/chrissnell/lantern/internal/types"
)

// DefaultRetention is how long readings stay in the buffer when nothing is configured
const DefaultRetention = time.Hour

// Buffer is an append-only list of readings that forgets anything older than its
// retention. One mutex guards everything and expired readings are dropped on
// every insert, which is fine for a handful of readers but not for high rates.
type Buffer struct {
	mu        sync.Mutex
	readings  []types.Reading
	retention time.Duration
	now       func() time.Time
}

// Option configures a Buffer
type Option func(*Buffer)

// WithClock replaces the wall clock used for eviction
func WithClock(now func() time.Time) Option {
	return func(b *Buffer) {
		b.now = now
	}
}

// New returns an empty buffer. A non-positive retention keeps readings forever.
func New(retention time.Duration, opts ...Option) *Buffer {
	b := &Buffer{
		retention: retention,
		now:       time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Add appends a reading and evicts expired ones
func (b *Buffer) Add(r types.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readings = append(b.readings, r)
	b.evict()
}

// AddBatch appends several readings under one lock
func (b *Buffer) AddBatch(rs []types.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readings = append(b.readings, rs...)
	b.evict()
}

func (b *Buffer) evict() {
	if b.retention <= 0 {
		return
	}
	cutoff := b.now().Add(-b.retention)
	kept := b.readings[:0]
	for _, r := range b.readings {
		if !r.Timestamp.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	// clear the tail so dropped readings can be collected
	for i := len(kept); i < len(b.readings); i++ {
		b.readings[i] = types.Reading{}
	}
	b.readings = kept
}

// Records returns a copy of the buffered readings in insertion order
func (b *Buffer) Records() []types.Reading {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Reading, len(b.readings))
	copy(out, b.readings)
	return out
}

// Len returns the number of buffered readings
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.readings)
}

// Snapshot returns a consistent copy of the buffer
func (b *Buffer) Snapshot(ctx context.Context) ([]types.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Records(), nil
}

// Retention returns the configured retention
func (b *Buffer) Retention() time.Duration {
	return b.retention
}
