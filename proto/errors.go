package proto

import (
	"errors"
	"fmt"
)

// Error types for text protocol operations.
// These errors help callers determine the appropriate connection handling
// strategy: a connection whose protocol state may be corrupted must be
// discarded, a connection that never saw a byte of the failed operation can
// be reused.

// InvalidKeyError is returned when a key fails client-side validation.
// The operation was rejected before any byte was written, so the connection
// (if any) is untouched.
//
// Common causes:
//   - Empty key
//   - Key exceeds 250 bytes
//   - Key contains whitespace or control characters
type InvalidKeyError struct {
	Message string
}

func (e *InvalidKeyError) Error() string {
	return "memcache: invalid key: " + e.Message
}

// ShouldCloseConnection returns false - the request was rejected client-side
func (e *InvalidKeyError) ShouldCloseConnection() bool {
	return false
}

// InvalidValueError is returned when a value or argument fails client-side
// validation (oversized payload, negative expiry). Like InvalidKeyError it is
// raised before any I/O.
type InvalidValueError struct {
	Message string
}

func (e *InvalidValueError) Error() string {
	return "memcache: invalid value: " + e.Message
}

// ShouldCloseConnection returns false - the request was rejected client-side
func (e *InvalidValueError) ShouldCloseConnection() bool {
	return false
}

// ClientError represents a CLIENT_ERROR response from the server: the server
// rejected our input. The request/response framing after such a line is not
// guaranteed, so the connection must be discarded.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string {
	return "CLIENT_ERROR: " + e.Message
}

// ShouldCloseConnection returns true - framing after a client error is undefined
func (e *ClientError) ShouldCloseConnection() bool {
	return true
}

// ServerError represents a SERVER_ERROR response, e.g. "object too large for
// cache" or an out-of-memory condition. The connection is discarded: the
// server may have consumed only part of the request that triggered it.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "SERVER_ERROR: " + e.Message
}

// ShouldCloseConnection returns true
func (e *ServerError) ShouldCloseConnection() bool {
	return true
}

// GenericError represents a bare ERROR response, typically an unknown command
// or a protocol violation.
type GenericError struct{}

func (e *GenericError) Error() string {
	return "memcache: server replied ERROR"
}

// ShouldCloseConnection returns true - the server did not parse what we sent
func (e *GenericError) ShouldCloseConnection() bool {
	return true
}

// ParseError represents a client-side parsing failure: the server produced a
// response the client could not understand, or the stream ended mid-response.
// The connection position within the response stream is unknown afterwards.
type ParseError struct {
	Message string
	Err     error // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "memcache: parse error: " + e.Message + ": " + e.Err.Error()
	}
	return "memcache: parse error: " + e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - the stream position is unknown
func (e *ParseError) ShouldCloseConnection() bool {
	return true
}

// ConnectionError wraps an underlying I/O error (reset, timeout, EOF).
type ConnectionError struct {
	Op  string // Operation that failed (dial, read, write)
	Err error  // Underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("memcache: connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - the connection is already broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ConnectionStateError is implemented by all protocol error types to indicate
// whether the connection they were observed on is still usable.
type ConnectionStateError interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err requires discarding the
// connection it occurred on. Unknown error types are treated conservatively
// and the connection is discarded.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ConnectionStateError
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}
