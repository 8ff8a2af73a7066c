// Package coarsetime provides a cheap, low-resolution clock for hot paths
// that only need timestamps accurate to tens of milliseconds, such as pool
// bookkeeping. A background goroutine refreshes the cached time every 50ms.
package coarsetime

import (
	"sync/atomic"
	"time"
)

const resolution = 50 * time.Millisecond

var current atomic.Value

func init() {
	current.Store(time.Now())

	ticker := time.NewTicker(resolution)
	go func() {
		for t := range ticker.C {
			current.Store(t)
		}
	}()
}

// Now returns the cached time, at most one resolution interval behind
// time.Now.
func Now() time.Time {
	return current.Load().(time.Time)
}
