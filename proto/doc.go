// Package proto implements the classic memcached text protocol.
//
// It provides low-level request serialization and response parsing over
// CRLF-terminated lines. Requests are validated client-side before any byte
// is written so that a malformed key or oversized value never reaches the
// wire. Response parsing is purely stream-driven: it reads from a
// bufio.Reader and never assumes that logical message boundaries align with
// individual transport reads.
//
// Protocol outcomes that are part of normal operation (NOT_FOUND, NOT_STORED,
// EXISTS, DELETED, TOUCHED) are reported as response statuses, not as errors.
// ERROR, CLIENT_ERROR and SERVER_ERROR lines are returned as typed errors;
// each error type reports via ShouldCloseConnection whether the connection
// protocol state is still usable.
package proto
