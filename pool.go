package memcache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPoolClosed = errors.New("memcache: pool closed")
)

// Pool manages a bounded, reusable set of live connections to one server.
// The number of connections handed out and sitting idle never exceeds the
// pool's maximum size.
type Pool interface {
	// Acquire returns an exclusively-owned connection: an idle one when
	// available, a freshly dialed one when the pool is under its maximum,
	// otherwise it blocks until a connection is released. Waiters are
	// served in arrival order, one per release. Cancelling ctx while
	// waiting removes the caller from the queue without consuming a slot.
	// A dial failure propagates to the caller and releases the slot that
	// was reserved for the new connection.
	Acquire(ctx context.Context) (Resource, error)

	// AcquireAllIdle removes and returns every currently idle connection,
	// for health sweeps.
	AcquireAllIdle() []Resource

	// Close closes every idle connection and marks the pool closed.
	// Connections still in use are closed when released.
	Close()

	// Stats returns a snapshot of pool statistics.
	Stats() PoolStats
}

// Resource is an acquired connection. Exactly one of Release, ReleaseUnused
// or Destroy must be called once per acquisition.
type Resource interface {
	// Value returns the connection itself.
	Value() *Connection

	// Release returns a healthy connection to the idle set and wakes the
	// oldest waiter, if any.
	Release()

	// ReleaseUnused returns the connection without refreshing its idle
	// timestamp. Used by health sweeps.
	ReleaseUnused()

	// Destroy closes the connection and frees its slot, allowing a future
	// Acquire to dial a replacement. Use for unhealthy connections.
	Destroy()

	CreationTime() time.Time
	IdleDuration() time.Duration
}

// ConnectionConstructor dials and wraps one connection.
type ConnectionConstructor func(ctx context.Context) (*Connection, error)

// PoolFactory builds a pool over the given constructor. minSize connections
// are established eagerly, maxSize bounds the pool.
type PoolFactory func(constructor ConnectionConstructor, minSize, maxSize int32) (Pool, error)

// warmPool dials minSize connections in the background and parks them idle.
// Dial failures are ignored here: the pool stays usable and Acquire will
// surface the error when a caller actually needs a connection.
func warmPool(pool Pool, minSize int32) {
	if minSize <= 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		resources := make([]Resource, 0, minSize)
		for i := int32(0); i < minSize; i++ {
			res, err := pool.Acquire(ctx)
			if err != nil {
				break
			}
			resources = append(resources, res)
		}
		for _, res := range resources {
			res.ReleaseUnused()
		}
	}()
}
