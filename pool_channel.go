package memcache

import (
	"context"
	"sync"
	"time"

	"github.com/cachelab/memcache/internal/coarsetime"
)

// NewChannelPool creates a channel-based connection pool.
// Alternative to the default puddle pool, optimized for low allocation.
// Idle connections sit in a buffered channel; a release hands the
// connection to exactly one blocked receiver in arrival order.
func NewChannelPool(constructor ConnectionConstructor, minSize, maxSize int32) (Pool, error) {
	p := &channelPool{
		constructor: constructor,
		maxSize:     maxSize,
		resources:   make(chan *channelResource, maxSize),
	}
	warmPool(p, minSize)
	return p, nil
}

// channelResource implements Resource for the channel pool.
type channelResource struct {
	conn         *Connection
	pool         *channelPool
	creationTime time.Time
	lastUsedTime time.Time
}

func (r *channelResource) Value() *Connection {
	return r.conn
}

func (r *channelResource) Release() {
	r.lastUsedTime = coarsetime.Now()
	r.pool.put(r)
}

func (r *channelResource) ReleaseUnused() {
	// Don't refresh lastUsedTime for health sweeps
	r.pool.put(r)
}

func (r *channelResource) Destroy() {
	r.conn.Close()
	r.pool.removeResource()
}

func (r *channelResource) CreationTime() time.Time {
	return r.creationTime
}

func (r *channelResource) IdleDuration() time.Duration {
	return time.Since(r.lastUsedTime)
}

type channelPool struct {
	constructor ConnectionConstructor
	maxSize     int32

	mu        sync.Mutex
	resources chan *channelResource
	size      int32
	closed    bool

	stats poolStatsCollector
}

func (p *channelPool) Acquire(ctx context.Context) (Resource, error) {
	p.stats.recordAcquire()

	// Idle connection available? A receive from the closed channel yields
	// nil, which signals pool shutdown.
	select {
	case res, ok := <-p.resources:
		if !ok {
			p.stats.recordAcquireError()
			return nil, ErrPoolClosed
		}
		p.stats.recordAcquireFromIdle()
		return res, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.stats.recordAcquireError()
		return nil, ErrPoolClosed
	}

	if p.size < p.maxSize {
		// Reserve a slot before dialing; give it back if the dial fails.
		p.size++
		p.mu.Unlock()

		conn, err := p.constructor(ctx)
		if err != nil {
			p.mu.Lock()
			p.size--
			p.mu.Unlock()
			p.stats.recordAcquireError()
			return nil, err
		}

		p.stats.recordCreate()

		now := coarsetime.Now()
		return &channelResource{
			conn:         conn,
			pool:         p,
			creationTime: now,
			lastUsedTime: now,
		}, nil
	}
	p.mu.Unlock()

	// Pool is full, wait for a release.
	waitStart := time.Now()
	select {
	case res, ok := <-p.resources:
		if !ok {
			p.stats.recordAcquireError()
			return nil, ErrPoolClosed
		}
		p.stats.recordAcquireWait(time.Since(waitStart))
		p.stats.recordAcquireFromIdle()
		return res, nil
	case <-ctx.Done():
		p.stats.recordAcquireError()
		return nil, ctx.Err()
	}
}

func (p *channelPool) put(res *channelResource) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		res.conn.Close()
		p.removeResource()
		return
	}

	// The send stays under the lock so Close cannot close the channel
	// between the closed check and the send.
	select {
	case p.resources <- res:
		p.mu.Unlock()
		p.stats.recordRelease()
	default:
		// Channel full, close this connection
		p.mu.Unlock()
		res.conn.Close()
		p.removeResource()
	}
}

func (p *channelPool) removeResource() {
	p.mu.Lock()
	p.size--
	p.mu.Unlock()
	p.stats.recordDestroy()
}

func (p *channelPool) AcquireAllIdle() []Resource {
	var idle []Resource

	for {
		select {
		case res, ok := <-p.resources:
			if !ok {
				return idle
			}
			idle = append(idle, res)
		default:
			return idle
		}
	}
}

func (p *channelPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.resources)
	p.mu.Unlock()

	// Close all idle connections
	for res := range p.resources {
		res.conn.Close()
		p.stats.recordDestroy()
	}
}

func (p *channelPool) Stats() PoolStats {
	p.mu.Lock()
	size := p.size
	p.mu.Unlock()

	stats := p.stats.snapshot()
	stats.TotalConns = size
	stats.IdleConns = int32(len(p.resources))
	stats.ActiveConns = size - stats.IdleConns
	return stats
}
