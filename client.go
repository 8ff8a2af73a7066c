package memcache

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cachelab/memcache/proto"
)

// NoTTL represents an infinite TTL (no expiration).
const NoTTL = 0

// DefaultPoolSize is the per-server connection limit used when
// Config.MaxSize is zero.
const DefaultPoolSize = 2

// Item is a single cache entry.
type Item struct {
	Key   string
	Value []byte
	Flags uint32        // opaque tag, selects the flag-registry codec
	TTL   time.Duration // zero means no expiration
	CAS   uint64        // cas token, populated by Gets
	Found bool          // whether the key was found in cache
}

// CasResult is the outcome of a check-and-set store.
type CasResult int8

const (
	// CasStored: the token matched and the value was stored.
	CasStored CasResult = iota
	// CasExists: the item was modified since the token was fetched.
	CasExists
	// CasNotFound: the item no longer exists.
	CasNotFound
)

// Config holds configuration for the client and its per-server
// connection pools.
type Config struct {
	// MinSize is the number of connections dialed eagerly per server pool.
	MinSize int32

	// MaxSize is the maximum number of connections per server pool.
	// Zero means DefaultPoolSize.
	MaxSize int32

	// ConnectTimeout bounds dialing a new connection.
	ConnectTimeout time.Duration

	// ReadTimeout bounds a request/response exchange when the caller's
	// context carries no deadline. Zero means no limit.
	ReadTimeout time.Duration

	// MaxConnLifetime is the maximum duration a connection may be reused.
	// Zero means no limit.
	MaxConnLifetime time.Duration

	// MaxConnIdleTime is the maximum duration a connection may sit idle
	// before being closed. Zero means no limit.
	MaxConnIdleTime time.Duration

	// HealthCheckInterval is how often idle connections are checked.
	// Zero disables the background sweep.
	HealthCheckInterval time.Duration

	// Dial establishes the transport stream. Override it to wrap
	// connections in TLS or any other framing. If nil, a net.Dialer
	// bounded by ConnectTimeout is used.
	Dial func(ctx context.Context, addr string) (net.Conn, error)

	// Pool is the connection pool factory. If nil, the puddle-based pool
	// is used. See NewChannelPool for the alternative.
	Pool PoolFactory

	// SelectServer picks which server handles a key.
	// If nil, DefaultSelectServer (xxh3 + jump hash) is used.
	SelectServer SelectServerFunc

	// NewCircuitBreaker creates a circuit breaker for a server, called once
	// per server address. If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) CircuitBreaker

	// Flags transforms values on store and lookup according to their flag
	// tag. If nil, all values pass through as raw bytes.
	Flags *FlagRegistry

	// for testing purposes only
	constructor ConnectionConstructor
}

// serverPool wraps a pool with its server address.
type serverPool struct {
	addr           string
	pool           Pool
	circuitBreaker CircuitBreaker // nil if not configured
}

// Client is a memcached client over one or more servers, each with its own
// bounded connection pool. All methods are safe for concurrent use.
type Client struct {
	servers      Servers
	selectServer SelectServerFunc
	flags        *FlagRegistry
	config       Config

	mu    sync.RWMutex
	pools map[string]*serverPool

	stopHealthCheck chan struct{}
	closeOnce       sync.Once

	stats *clientStatsCollector
}

// NewClient creates a client for the given servers.
// For a single server: NewClient(NewStaticServers("host:port"), Config{}).
func NewClient(servers Servers, config Config) (*Client, error) {
	if len(servers.List()) == 0 {
		return nil, ErrNoServers
	}

	if config.MaxSize == 0 {
		config.MaxSize = DefaultPoolSize
	}
	if config.MaxSize < 0 {
		return nil, fmt.Errorf("memcache: negative MaxSize %d", config.MaxSize)
	}
	if config.MinSize < 0 || config.MinSize > config.MaxSize {
		return nil, fmt.Errorf("memcache: MinSize %d outside [0, MaxSize=%d]", config.MinSize, config.MaxSize)
	}
	if config.SelectServer == nil {
		config.SelectServer = DefaultSelectServer
	}
	if config.Pool == nil {
		config.Pool = NewPuddlePool
	}
	if config.Dial == nil {
		dialer := &net.Dialer{Timeout: config.ConnectTimeout}
		config.Dial = func(ctx context.Context, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", addr)
		}
	}

	client := &Client{
		servers:         servers,
		selectServer:    config.SelectServer,
		flags:           config.Flags,
		config:          config,
		pools:           make(map[string]*serverPool),
		stopHealthCheck: make(chan struct{}),
		stats:           newClientStatsCollector(),
	}

	if config.HealthCheckInterval > 0 {
		go client.healthCheckLoop()
	}

	return client, nil
}

// Close closes the client and destroys all connections in all pools.
// Closing an already-closed client is a no-op.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.config.HealthCheckInterval > 0 {
			close(c.stopHealthCheck)
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		for _, sp := range c.pools {
			sp.pool.Close()
		}
	})
}

// OperationStats returns a snapshot of client operation counters.
func (c *Client) OperationStats() ClientStats {
	return c.stats.snapshot()
}

// ServerPoolStats contains pool statistics for a single server.
type ServerPoolStats struct {
	Addr                string
	PoolStats           PoolStats
	CircuitBreakerState CircuitBreakerState
}

// AllPoolStats returns statistics for every server pool created so far.
func (c *Client) AllPoolStats() []ServerPoolStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]ServerPoolStats, 0, len(c.pools))
	for _, sp := range c.pools {
		s := ServerPoolStats{
			Addr:      sp.addr,
			PoolStats: sp.pool.Stats(),
		}
		if sp.circuitBreaker != nil {
			s.CircuitBreakerState = sp.circuitBreaker.State()
		}
		stats = append(stats, s)
	}
	return stats
}

// getPoolForKey returns the pool for the server that should handle this key,
// creating it lazily.
func (c *Client) getPoolForKey(key string) (*serverPool, error) {
	addr, err := c.selectServer(key, c.servers.List())
	if err != nil {
		return nil, err
	}
	return c.getOrCreatePool(addr)
}

func (c *Client) getOrCreatePool(addr string) (*serverPool, error) {
	c.mu.RLock()
	sp, exists := c.pools[addr]
	c.mu.RUnlock()
	if exists {
		return sp, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if sp, exists := c.pools[addr]; exists {
		return sp, nil
	}

	pool, err := c.createPool(addr)
	if err != nil {
		return nil, err
	}

	sp = &serverPool{addr: addr, pool: pool}
	if c.config.NewCircuitBreaker != nil {
		sp.circuitBreaker = c.config.NewCircuitBreaker(addr)
	}
	c.pools[addr] = sp
	return sp, nil
}

func (c *Client) createPool(addr string) (Pool, error) {
	constructor := c.config.constructor
	if constructor == nil {
		constructor = func(ctx context.Context) (*Connection, error) {
			netConn, err := c.config.Dial(ctx, addr)
			if err != nil {
				return nil, &proto.ConnectionError{Op: "dial", Err: err}
			}
			return NewConnection(netConn, c.config.ReadTimeout), nil
		}
	}

	return c.config.Pool(constructor, c.config.MinSize, c.config.MaxSize)
}

// healthCheckLoop periodically sweeps idle connections in every pool.
func (c *Client) healthCheckLoop() {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopHealthCheck:
			return
		case <-ticker.C:
			c.checkAllPools()
		}
	}
}

func (c *Client) checkAllPools() {
	c.mu.RLock()
	pools := make([]*serverPool, 0, len(c.pools))
	for _, sp := range c.pools {
		pools = append(pools, sp)
	}
	c.mu.RUnlock()

	for _, sp := range pools {
		c.checkPoolConnections(sp.pool)
	}
}

// checkPoolConnections destroys idle connections that exceeded their
// lifetime or idle budget, or that fail a version ping.
func (c *Client) checkPoolConnections(pool Pool) {
	now := time.Now()

	for _, res := range pool.AcquireAllIdle() {
		if c.config.MaxConnLifetime > 0 && now.Sub(res.CreationTime()) > c.config.MaxConnLifetime {
			res.Destroy()
			continue
		}

		if c.config.MaxConnIdleTime > 0 && res.IdleDuration() > c.config.MaxConnIdleTime {
			res.Destroy()
			continue
		}

		if err := c.healthCheck(res.Value()); err != nil {
			res.Destroy()
			continue
		}

		res.ReleaseUnused()
	}
}

// healthCheck pings a connection with a version request.
func (c *Client) healthCheck(conn *Connection) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := conn.RoundTrip(ctx, &proto.Request{Verb: proto.VerbVersion})
	if err != nil {
		return err
	}
	if resp.Version == "" {
		return fmt.Errorf("health check returned empty version")
	}
	return nil
}

// execRequest executes one request/response cycle against a server pool,
// wrapped in its circuit breaker when one is configured.
func (c *Client) execRequest(ctx context.Context, sp *serverPool, req *proto.Request) (*proto.Response, error) {
	if sp.circuitBreaker != nil {
		return sp.circuitBreaker.Execute(func() (*proto.Response, error) {
			return c.execRequestDirect(ctx, sp.pool, req)
		})
	}
	return c.execRequestDirect(ctx, sp.pool, req)
}

// execRequestDirect acquires a connection, performs the round trip and
// releases the connection with health derived from the error: a connection
// whose protocol state may be corrupted is destroyed, never returned idle.
func (c *Client) execRequestDirect(ctx context.Context, pool Pool, req *proto.Request) (*proto.Response, error) {
	resource, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := resource.Value().RoundTrip(ctx, req)
	if err != nil {
		if proto.ShouldCloseConnection(err) {
			resource.Destroy()
		} else {
			resource.Release()
		}
		return nil, err
	}

	resource.Release()
	return resp, nil
}

// exec validates the single key of req, routes it to its server and
// executes it, keeping the error counter.
func (c *Client) exec(ctx context.Context, key string, req *proto.Request) (*proto.Response, error) {
	if err := proto.ValidateRequest(req); err != nil {
		c.stats.recordError()
		return nil, err
	}

	sp, err := c.getPoolForKey(key)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}

	resp, err := c.execRequest(ctx, sp, req)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}
	return resp, nil
}

// Get retrieves a single item. A miss is not an error: the returned item
// has Found set to false.
func (c *Client) Get(ctx context.Context, key string) (Item, error) {
	return c.get(ctx, key, false)
}

// Gets retrieves a single item together with its cas token, for use
// with Cas.
func (c *Client) Gets(ctx context.Context, key string) (Item, error) {
	return c.get(ctx, key, true)
}

func (c *Client) get(ctx context.Context, key string, withCAS bool) (Item, error) {
	resp, err := c.exec(ctx, key, proto.NewGetRequest(withCAS, key))
	if err != nil {
		return Item{}, err
	}

	// Some compatible servers (e.g. queue frontends) answer a single-key
	// lookup under a different key name; accept the sole value as-is.
	if len(resp.Values) == 0 {
		c.stats.recordGet(false)
		return Item{Key: key, Found: false}, nil
	}

	item, err := c.itemFromValue(key, resp.Values[0])
	if err != nil {
		c.stats.recordError()
		return Item{}, err
	}

	c.stats.recordGet(true)
	return item, nil
}

// itemFromValue converts a wire value into an Item, applying the flag
// registry decode transform.
func (c *Client) itemFromValue(key string, value proto.Value) (Item, error) {
	data, err := c.flags.Decode(value.Flags, value.Data)
	if err != nil {
		return Item{}, fmt.Errorf("memcache: decoding value for key %s (flags %d): %w", key, value.Flags, err)
	}
	return Item{
		Key:   key,
		Value: data,
		Flags: value.Flags,
		CAS:   value.CAS,
		Found: true,
	}, nil
}

// MultiGet retrieves many keys at once. Keys are grouped per server and
// each group is pipelined as one lookup command over one connection, the
// groups running concurrently. The result maps keys to items and contains
// only the keys the servers had; it is never partial — any failure discards
// the whole lookup.
func (c *Client) MultiGet(ctx context.Context, keys ...string) (map[string]Item, error) {
	return c.multiGet(ctx, false, keys)
}

// MultiGets is MultiGet with the cas token of each item populated, for use
// with Cas.
func (c *Client) MultiGets(ctx context.Context, keys ...string) (map[string]Item, error) {
	return c.multiGet(ctx, true, keys)
}

func (c *Client) multiGet(ctx context.Context, withCAS bool, keys []string) (map[string]Item, error) {
	if len(keys) == 0 {
		return map[string]Item{}, nil
	}

	serverKeys := make(map[string][]string)
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if err := proto.ValidateKey(key); err != nil {
			c.stats.recordError()
			return nil, err
		}
		if seen[key] {
			c.stats.recordError()
			return nil, &proto.InvalidKeyError{Message: "duplicate key in lookup: " + key}
		}
		seen[key] = true

		addr, err := c.selectServer(key, c.servers.List())
		if err != nil {
			c.stats.recordError()
			return nil, err
		}
		serverKeys[addr] = append(serverKeys[addr], key)
	}

	var mu sync.Mutex
	found := make(map[string]Item, len(keys))

	group, ctx := errgroup.WithContext(ctx)
	for addr, groupKeys := range serverKeys {
		addr, groupKeys := addr, groupKeys
		group.Go(func() error {
			sp, err := c.getOrCreatePool(addr)
			if err != nil {
				return err
			}

			resp, err := c.execRequest(ctx, sp, proto.NewGetRequest(withCAS, groupKeys...))
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			for _, value := range resp.Values {
				// The single-key leniency of Get does not apply here:
				// only requested keys may enter the result.
				if !seen[value.Key] {
					return &proto.ParseError{Message: fmt.Sprintf("server returned value for unrequested key %q", value.Key)}
				}
				item, err := c.itemFromValue(value.Key, value)
				if err != nil {
					return err
				}
				found[value.Key] = item
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		c.stats.recordError()
		return nil, err
	}

	for _, key := range keys {
		c.stats.recordGet(found[key].Found)
	}
	return found, nil
}

// Set stores an item unconditionally.
func (c *Client) Set(ctx context.Context, item Item) error {
	resp, err := c.store(ctx, proto.VerbSet, item)
	if err != nil {
		return err
	}
	if !resp.IsStored() {
		c.stats.recordError()
		return fmt.Errorf("memcache: set failed with status %s", resp.Status)
	}
	c.stats.recordStore()
	return nil
}

// Add stores an item only if the key does not exist yet.
// Returns false when the key already exists.
func (c *Client) Add(ctx context.Context, item Item) (bool, error) {
	return c.conditionalStore(ctx, proto.VerbAdd, item)
}

// Replace stores an item only if the key already exists.
// Returns false when the key is missing.
func (c *Client) Replace(ctx context.Context, item Item) (bool, error) {
	return c.conditionalStore(ctx, proto.VerbReplace, item)
}

// Append appends the item's value to the existing value of the key.
// Returns false when the key is missing.
func (c *Client) Append(ctx context.Context, item Item) (bool, error) {
	return c.conditionalStore(ctx, proto.VerbAppend, item)
}

// Prepend prepends the item's value to the existing value of the key.
// Returns false when the key is missing.
func (c *Client) Prepend(ctx context.Context, item Item) (bool, error) {
	return c.conditionalStore(ctx, proto.VerbPrepend, item)
}

func (c *Client) conditionalStore(ctx context.Context, verb proto.Verb, item Item) (bool, error) {
	resp, err := c.store(ctx, verb, item)
	if err != nil {
		return false, err
	}

	switch {
	case resp.IsStored():
		c.stats.recordStore()
		return true, nil
	case resp.IsNotStored(), resp.IsMiss():
		return false, nil
	default:
		c.stats.recordError()
		return false, fmt.Errorf("memcache: %s failed with status %s", verb, resp.Status)
	}
}

func (c *Client) store(ctx context.Context, verb proto.Verb, item Item) (*proto.Response, error) {
	exptime, err := exptimeSeconds(item.TTL)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}

	data, err := c.flags.Encode(item.Flags, item.Value)
	if err != nil {
		c.stats.recordError()
		return nil, fmt.Errorf("memcache: encoding value for key %s (flags %d): %w", item.Key, item.Flags, err)
	}

	return c.exec(ctx, item.Key, proto.NewStoreRequest(verb, item.Key, item.Flags, exptime, data))
}

// Cas stores an item only if it was not modified since its cas token was
// fetched with Gets. CasExists reports a lost race, CasNotFound a deleted
// item; both are normal outcomes, not errors.
func (c *Client) Cas(ctx context.Context, item Item) (CasResult, error) {
	exptime, err := exptimeSeconds(item.TTL)
	if err != nil {
		c.stats.recordError()
		return CasExists, err
	}

	data, err := c.flags.Encode(item.Flags, item.Value)
	if err != nil {
		c.stats.recordError()
		return CasExists, fmt.Errorf("memcache: encoding value for key %s (flags %d): %w", item.Key, item.Flags, err)
	}

	resp, err := c.exec(ctx, item.Key, proto.NewCasRequest(item.Key, item.Flags, exptime, item.CAS, data))
	if err != nil {
		return CasExists, err
	}

	switch {
	case resp.IsStored():
		c.stats.recordStore()
		return CasStored, nil
	case resp.IsMiss():
		return CasNotFound, nil
	case resp.IsCASMismatch():
		return CasExists, nil
	default:
		c.stats.recordError()
		return CasExists, fmt.Errorf("memcache: cas failed with status %s", resp.Status)
	}
}

// Delete removes a key. Returns false when the key did not exist.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	resp, err := c.exec(ctx, key, proto.NewDeleteRequest(key))
	if err != nil {
		return false, err
	}
	if resp.IsMiss() {
		return false, nil
	}
	c.stats.recordDelete()
	return true, nil
}

// Incr adds delta to the counter stored under key and returns the new
// value. found is false when the key does not exist; the counter is not
// created implicitly.
func (c *Client) Incr(ctx context.Context, key string, delta uint64) (value uint64, found bool, err error) {
	return c.arithmetic(ctx, proto.VerbIncr, key, delta)
}

// Decr subtracts delta from the counter stored under key. The server floors
// the result at zero.
func (c *Client) Decr(ctx context.Context, key string, delta uint64) (value uint64, found bool, err error) {
	return c.arithmetic(ctx, proto.VerbDecr, key, delta)
}

func (c *Client) arithmetic(ctx context.Context, verb proto.Verb, key string, delta uint64) (uint64, bool, error) {
	resp, err := c.exec(ctx, key, proto.NewArithmeticRequest(verb, key, delta))
	if err != nil {
		return 0, false, err
	}
	if resp.IsMiss() {
		return 0, false, nil
	}
	c.stats.recordArithmetic()
	return resp.Counter, true, nil
}

// Touch updates the expiration of a key without fetching it.
// Returns false when the key does not exist.
func (c *Client) Touch(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	exptime, err := exptimeSeconds(ttl)
	if err != nil {
		c.stats.recordError()
		return false, err
	}

	resp, err := c.exec(ctx, key, proto.NewTouchRequest(key, exptime))
	if err != nil {
		return false, err
	}
	if resp.IsMiss() {
		return false, nil
	}
	c.stats.recordTouch()
	return true, nil
}

// ServerStats returns the statistics of one server, optionally narrowed by
// a stats argument such as "items" or "slabs".
func (c *Client) ServerStats(ctx context.Context, addr string, args ...string) (map[string]string, error) {
	req := &proto.Request{Verb: proto.VerbStats}
	if len(args) > 0 {
		req.StatsArg = args[0]
	}

	sp, err := c.getOrCreatePool(addr)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}

	resp, err := c.execRequest(ctx, sp, req)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}
	return resp.Stats, nil
}

// Stats returns server statistics merged across all configured servers.
// With a single server this is exactly that server's stats; with several,
// colliding stat names keep the value of the last server queried — use
// ServerStats for per-server data.
func (c *Client) Stats(ctx context.Context, args ...string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, addr := range c.servers.List() {
		stats, err := c.ServerStats(ctx, addr, args...)
		if err != nil {
			return nil, err
		}
		for name, value := range stats {
			merged[name] = value
		}
	}
	return merged, nil
}

// Version returns the version string of the first configured server.
func (c *Client) Version(ctx context.Context) (string, error) {
	addrs := c.servers.List()
	if len(addrs) == 0 {
		return "", ErrNoServers
	}

	sp, err := c.getOrCreatePool(addrs[0])
	if err != nil {
		c.stats.recordError()
		return "", err
	}

	resp, err := c.execRequest(ctx, sp, &proto.Request{Verb: proto.VerbVersion})
	if err != nil {
		c.stats.recordError()
		return "", err
	}
	return resp.Version, nil
}

// FlushAll invalidates every item on every configured server.
func (c *Client) FlushAll(ctx context.Context) error {
	for _, addr := range c.servers.List() {
		sp, err := c.getOrCreatePool(addr)
		if err != nil {
			c.stats.recordError()
			return err
		}

		if _, err := c.execRequest(ctx, sp, &proto.Request{Verb: proto.VerbFlushAll}); err != nil {
			c.stats.recordError()
			return err
		}
	}
	return nil
}

// maxRelativeExptime is the largest exptime the server reads as a relative
// offset; anything above it is an absolute unix timestamp.
const maxRelativeExptime = 60 * 60 * 24 * 30

// exptimeSeconds converts a TTL to protocol seconds. Sub-second TTLs round
// up to one second so a positive TTL never silently becomes "no expiration".
// TTLs beyond 30 days are sent as absolute unix timestamps, the form the
// server expects for them.
func exptimeSeconds(ttl time.Duration) (int64, error) {
	if ttl < 0 {
		return 0, &proto.InvalidValueError{Message: "negative TTL"}
	}
	if ttl == 0 {
		return NoTTL, nil
	}
	if ttl < time.Second {
		return 1, nil
	}

	seconds := int64(ttl / time.Second)
	if seconds > maxRelativeExptime {
		return time.Now().Add(ttl).Unix(), nil
	}
	return seconds, nil
}
