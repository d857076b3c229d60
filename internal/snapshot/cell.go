// Package snapshot publishes immutable values from one writer to many readers.
package snapshot

import (
	"sync/atomic"
)

// Cell holds the most recently published value. Load never blocks. After Close,
// Load returns nil and Store is ignored.
type Cell[T any] struct {
	current atomic.Pointer[T]
	closed  atomic.Bool
	version atomic.Uint64
}

// New returns an empty cell
func New[T any]() *Cell[T] {
	return &Cell[T]{}
}

// Store publishes v. Values must not be modified after they are stored.
func (c *Cell[T]) Store(v *T) bool {
	if c.closed.Load() {
		return false
	}
	c.current.Store(v)
	c.version.Add(1)
	return true
}

// Load returns the current value, or nil if nothing is published
func (c *Cell[T]) Load() *T {
	if c.closed.Load() {
		return nil
	}
	return c.current.Load()
}

// Version counts successful Store calls
func (c *Cell[T]) Version() uint64 {
	return c.version.Load()
}

// Close drops the published value
func (c *Cell[T]) Close() {
	c.closed.Store(true)
	c.current.Store(nil)
}

// Closed reports whether Close has been called
func (c *Cell[T]) Closed() bool {
	return c.closed.Load()
}
