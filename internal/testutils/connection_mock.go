// Package testutils holds test doubles shared by the client packages.
package testutils

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"time"
)

// ErrWriteRefused is returned by a ConnMock configured with FailWrites.
var ErrWriteRefused = errors.New("testutils: write refused")

// ConnMock is an in-memory net.Conn: reads are served from scripted
// response data, writes are captured for inspection.
type ConnMock struct {
	readBuf    *bytes.Buffer
	writeBuf   *bytes.Buffer
	closed     bool
	failWrites bool
}

// NewConnMock creates a mock connection whose reads return the given
// response chunks in order.
func NewConnMock(responses ...string) *ConnMock {
	return &ConnMock{
		readBuf:  bytes.NewBufferString(strings.Join(responses, "")),
		writeBuf: &bytes.Buffer{},
	}
}

// FailWrites makes every subsequent Write return ErrWriteRefused.
func (m *ConnMock) FailWrites() {
	m.failWrites = true
}

func (m *ConnMock) Read(b []byte) (int, error) {
	return m.readBuf.Read(b)
}

func (m *ConnMock) Write(b []byte) (int, error) {
	if m.failWrites {
		return 0, ErrWriteRefused
	}
	return m.writeBuf.Write(b)
}

func (m *ConnMock) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *ConnMock) Closed() bool {
	return m.closed
}

// Written returns everything written to the connection so far.
func (m *ConnMock) Written() string {
	return m.writeBuf.String()
}

func (m *ConnMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 11211}
}

func (m *ConnMock) SetDeadline(t time.Time) error      { return nil }
func (m *ConnMock) SetReadDeadline(t time.Time) error  { return nil }
func (m *ConnMock) SetWriteDeadline(t time.Time) error { return nil }
