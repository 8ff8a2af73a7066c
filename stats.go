package memcache

import (
	"sync/atomic"
	"time"
)

// PoolStats contains statistics about a connection pool.
// All fields are safe for concurrent access.
type PoolStats struct {
	// Lifetime counters
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that had to wait for a release
	CreatedConns      uint64 // Total connections created
	DestroyedConns    uint64 // Total connections destroyed
	AcquireErrors     uint64 // Failed or cancelled acquire attempts
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	// Current state gauges
	TotalConns  int32 // Total connections in pool (active + idle)
	IdleConns   int32 // Idle connections available
	ActiveConns int32 // Connections currently in use
}

// poolStatsCollector accumulates pool counters with atomic operations.
type poolStatsCollector struct {
	acquireCount      atomic.Uint64
	acquireFromIdle   atomic.Uint64
	acquireWaitCount  atomic.Uint64
	acquireErrors     atomic.Uint64
	createdConns      atomic.Uint64
	destroyedConns    atomic.Uint64
	releases          atomic.Uint64
	acquireWaitTimeNs atomic.Uint64
}

func (c *poolStatsCollector) recordAcquire()         { c.acquireCount.Add(1) }
func (c *poolStatsCollector) recordAcquireFromIdle() { c.acquireFromIdle.Add(1) }
func (c *poolStatsCollector) recordAcquireError()    { c.acquireErrors.Add(1) }
func (c *poolStatsCollector) recordCreate()          { c.createdConns.Add(1) }
func (c *poolStatsCollector) recordDestroy()         { c.destroyedConns.Add(1) }
func (c *poolStatsCollector) recordRelease()         { c.releases.Add(1) }

func (c *poolStatsCollector) recordAcquireWait(d time.Duration) {
	c.acquireWaitCount.Add(1)
	c.acquireWaitTimeNs.Add(uint64(d.Nanoseconds()))
}

func (c *poolStatsCollector) snapshot() PoolStats {
	return PoolStats{
		AcquireCount:      c.acquireCount.Load(),
		AcquireWaitCount:  c.acquireWaitCount.Load(),
		CreatedConns:      c.createdConns.Load(),
		DestroyedConns:    c.destroyedConns.Load(),
		AcquireErrors:     c.acquireErrors.Load(),
		AcquireWaitTimeNs: c.acquireWaitTimeNs.Load(),
	}
}

// ClientStats is a snapshot of client operation counters.
type ClientStats struct {
	GetHits    uint64 // Lookups that found the key
	GetMisses  uint64 // Lookups that missed
	Stores     uint64 // Successful storage operations (set family, cas)
	Deletes    uint64 // Successful deletes
	Arithmetic uint64 // Successful incr/decr operations
	Touches    uint64 // Successful touch operations
	Errors     uint64 // Operations that failed with an error
}

type clientStatsCollector struct {
	getHits    atomic.Uint64
	getMisses  atomic.Uint64
	stores     atomic.Uint64
	deletes    atomic.Uint64
	arithmetic atomic.Uint64
	touches    atomic.Uint64
	errors     atomic.Uint64
}

func newClientStatsCollector() *clientStatsCollector {
	return &clientStatsCollector{}
}

func (c *clientStatsCollector) recordGet(hit bool) {
	if hit {
		c.getHits.Add(1)
	} else {
		c.getMisses.Add(1)
	}
}

func (c *clientStatsCollector) recordStore()      { c.stores.Add(1) }
func (c *clientStatsCollector) recordDelete()     { c.deletes.Add(1) }
func (c *clientStatsCollector) recordArithmetic() { c.arithmetic.Add(1) }
func (c *clientStatsCollector) recordTouch()      { c.touches.Add(1) }
func (c *clientStatsCollector) recordError()      { c.errors.Add(1) }

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		GetHits:    c.getHits.Load(),
		GetMisses:  c.getMisses.Load(),
		Stores:     c.stores.Load(),
		Deletes:    c.deletes.Load(),
		Arithmetic: c.arithmetic.Load(),
		Touches:    c.touches.Load(),
		Errors:     c.errors.Load(),
	}
}
