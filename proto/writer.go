package proto

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"sync"
)

// Buffer pool for building requests
var bufferPool = sync.Pool{
	New: func() any {
		// Typical command line is well under 300 bytes
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	buf.Reset()
	bufferPool.Put(buf)
}

// ValidateRequest checks the request against the protocol constraints without
// writing anything: every key must be valid, storage payloads must fit the
// item size limit, expirations must not be negative, retrieval requests must
// name at least one key.
func ValidateRequest(req *Request) error {
	switch req.Verb {
	case VerbGet, VerbGets:
		if len(req.Keys) == 0 {
			return &InvalidKeyError{Message: "no keys given"}
		}
		for _, key := range req.Keys {
			if err := ValidateKey(key); err != nil {
				return err
			}
		}
		return nil

	case VerbSet, VerbAdd, VerbReplace, VerbAppend, VerbPrepend, VerbCas:
		if err := ValidateKey(req.key()); err != nil {
			return err
		}
		if len(req.Data) > MaxValueLength {
			return &InvalidValueError{Message: fmt.Sprintf("value of %d bytes exceeds maximum of %d", len(req.Data), MaxValueLength)}
		}
		if req.Exptime < 0 {
			return &InvalidValueError{Message: "negative expiration"}
		}
		return nil

	case VerbDelete, VerbIncr, VerbDecr:
		return ValidateKey(req.key())

	case VerbTouch:
		if err := ValidateKey(req.key()); err != nil {
			return err
		}
		if req.Exptime < 0 {
			return &InvalidValueError{Message: "negative expiration"}
		}
		return nil

	case VerbStats:
		if req.StatsArg == "" {
			return nil
		}
		// The argument travels unquoted on the command line, so it obeys
		// the same byte rules as a key to keep whitespace and CRLF out.
		for i := 0; i < len(req.StatsArg); i++ {
			if req.StatsArg[i] < 0x21 || req.StatsArg[i] > 0x7e {
				return &InvalidValueError{Message: fmt.Sprintf("stats argument contains forbidden byte 0x%02x at position %d", req.StatsArg[i], i)}
			}
		}
		return nil

	case VerbVersion, VerbFlushAll:
		return nil

	default:
		return &InvalidValueError{Message: "unknown verb " + string(req.Verb)}
	}
}

// WriteRequest validates req, serializes it to wire format and writes it
// to w. Validation failures are returned before any byte is written.
//
// Wire formats:
//
//	get/gets:  <verb> <key>*\r\n
//	storage:   <verb> <key> <flags> <exptime> <bytes>\r\n<data>\r\n
//	cas:       cas <key> <flags> <exptime> <bytes> <cas>\r\n<data>\r\n
//	delete:    delete <key>\r\n
//	incr/decr: <verb> <key> <delta>\r\n
//	touch:     touch <key> <exptime>\r\n
//	stats:     stats [<args>]\r\n
//	bare:      <verb>\r\n
//
// When w is a *bufio.Writer the request is written through it and flushed;
// otherwise it is assembled in a pooled buffer and written in one call.
func WriteRequest(w io.Writer, req *Request) error {
	if err := ValidateRequest(req); err != nil {
		return err
	}

	if bw, ok := w.(*bufio.Writer); ok {
		writeRequestTo(bw, req)
		if err := bw.Flush(); err != nil {
			return &ConnectionError{Op: "write", Err: err}
		}
		return nil
	}

	buf := getBuffer()
	defer putBuffer(buf)

	writeRequestTo(buf, req)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// lineWriter is the subset of writing primitives shared by bufio.Writer and
// bytes.Buffer. Writes to either never fail mid-request: bufio defers errors
// to Flush, bytes.Buffer never errors.
type lineWriter interface {
	Write(p []byte) (int, error)
	WriteString(s string) (int, error)
	WriteByte(b byte) error
}

func writeRequestTo(w lineWriter, req *Request) {
	w.WriteString(string(req.Verb))

	switch req.Verb {
	case VerbGet, VerbGets:
		for _, key := range req.Keys {
			w.WriteByte(' ')
			w.WriteString(key)
		}
		w.WriteString(CRLF)

	case VerbSet, VerbAdd, VerbReplace, VerbAppend, VerbPrepend, VerbCas:
		w.WriteByte(' ')
		w.WriteString(req.key())
		w.WriteByte(' ')
		w.WriteString(strconv.FormatUint(uint64(req.Flags), 10))
		w.WriteByte(' ')
		w.WriteString(strconv.FormatInt(req.Exptime, 10))
		w.WriteByte(' ')
		w.WriteString(strconv.Itoa(len(req.Data)))
		if req.Verb == VerbCas {
			w.WriteByte(' ')
			w.WriteString(strconv.FormatUint(req.CAS, 10))
		}
		w.WriteString(CRLF)
		w.Write(req.Data)
		w.WriteString(CRLF)

	case VerbDelete:
		w.WriteByte(' ')
		w.WriteString(req.key())
		w.WriteString(CRLF)

	case VerbIncr, VerbDecr:
		w.WriteByte(' ')
		w.WriteString(req.key())
		w.WriteByte(' ')
		w.WriteString(strconv.FormatUint(req.Delta, 10))
		w.WriteString(CRLF)

	case VerbTouch:
		w.WriteByte(' ')
		w.WriteString(req.key())
		w.WriteByte(' ')
		w.WriteString(strconv.FormatInt(req.Exptime, 10))
		w.WriteString(CRLF)

	case VerbStats:
		if req.StatsArg != "" {
			w.WriteByte(' ')
			w.WriteString(req.StatsArg)
		}
		w.WriteString(CRLF)

	default: // version, flush_all
		w.WriteString(CRLF)
	}
}
