package memcache

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"

	"github.com/cachelab/memcache/proto"
)

// Connection is a single transport stream to a memcached server with
// buffered protocol I/O. A Connection is exclusively owned by one caller at
// a time: the pool hands it out via Acquire and takes it back on Release.
// It performs no locking of its own.
type Connection struct {
	conn        net.Conn
	reader      *bufio.Reader
	writer      *bufio.Writer
	readTimeout time.Duration
}

// NewConnection wraps an established transport stream.
// readTimeout bounds each request/response exchange when the context
// carries no deadline of its own; zero means no limit.
func NewConnection(netConn net.Conn, readTimeout time.Duration) *Connection {
	return &Connection{
		conn:        netConn,
		reader:      bufio.NewReader(netConn),
		writer:      bufio.NewWriter(netConn),
		readTimeout: readTimeout,
	}
}

// RoundTrip writes one request and reads its response.
//
// Validation failures surface before any byte is written and leave the
// connection untouched. Any transport or protocol failure afterwards leaves
// the stream position undefined; the caller must check
// proto.ShouldCloseConnection on the returned error and discard the
// connection accordingly.
func (c *Connection) RoundTrip(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := proto.ValidateRequest(req); err != nil {
		return nil, err
	}

	if err := c.setDeadline(ctx); err != nil {
		return nil, &proto.ConnectionError{Op: "deadline", Err: err}
	}

	if err := proto.WriteRequest(c.writer, req); err != nil {
		return nil, err
	}

	resp, err := proto.ReadResponse(c.reader, req.Verb)
	if err != nil {
		return nil, err
	}

	if err := checkLookupKeys(req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// checkLookupKeys rejects values returned for keys a multi-key lookup never
// asked for. Single-key lookups are exempt: some compatible servers (queue
// frontends) legitimately answer them under a different key name.
func checkLookupKeys(req *proto.Request, resp *proto.Response) error {
	if req.Verb != proto.VerbGet && req.Verb != proto.VerbGets {
		return nil
	}
	if len(req.Keys) < 2 {
		return nil
	}

	requested := make(map[string]bool, len(req.Keys))
	for _, key := range req.Keys {
		requested[key] = true
	}
	for _, value := range resp.Values {
		if !requested[value.Key] {
			return &proto.ParseError{Message: "server returned value for unrequested key " + strconv.Quote(value.Key)}
		}
	}
	return nil
}

// setDeadline applies the context deadline, falling back to the configured
// read timeout, to the whole exchange.
func (c *Connection) setDeadline(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		return c.conn.SetDeadline(deadline)
	}
	if c.readTimeout > 0 {
		return c.conn.SetDeadline(time.Now().Add(c.readTimeout))
	}
	return c.conn.SetDeadline(time.Time{})
}

// RemoteAddr returns the address of the server this connection talks to.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the underlying transport stream.
func (c *Connection) Close() error {
	return c.conn.Close()
}
