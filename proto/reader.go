package proto

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
)

// Pre-allocated byte slices for comparisons (avoid allocation in hot path)
var (
	crlfBytes         = []byte(CRLF)
	endMarkerBytes    = []byte(EndMarker)
	valuePrefixBytes  = []byte(ValuePrefix + " ")
	statPrefixBytes   = []byte(StatPrefix + " ")
	versionLineBytes  = []byte(VersionPrefix + " ")
	errorGenericBytes = []byte(ErrorGeneric)
	clientErrorPrefix = []byte(ErrorClientPrefix + " ")
	serverErrorPrefix = []byte(ErrorServerPrefix + " ")
)

// ReadResponse reads exactly one logical response unit for verb from r.
// It consumes exactly the bytes belonging to that unit, buffering across
// transport reads as needed, so the reader is positioned at the start of the
// next response when it returns without error.
//
// Server error lines (ERROR, CLIENT_ERROR, SERVER_ERROR) are returned as
// typed errors, as are I/O failures and malformed responses. Use
// ShouldCloseConnection to decide whether the connection survives the error.
func ReadResponse(r *bufio.Reader, verb Verb) (*Response, error) {
	switch classOf(verb) {
	case classValues:
		return readValuesResponse(r, verb == VerbGets)
	case classCounter:
		return readCounterResponse(r)
	case classStats:
		return readStatsResponse(r)
	case classVersion:
		return readVersionResponse(r)
	default:
		return readStatusResponse(r, verb)
	}
}

// readLine reads one CRLF-terminated line and returns it without the
// terminator. The returned slice aliases the reader's buffer and is only
// valid until the next read.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		// Line exceeds the buffer. ReadSlice consumed what it returned, so
		// keep that prefix and accumulate the rest (allocates).
		full := append([]byte(nil), line...)
		rest, restErr := r.ReadBytes('\n')
		line, err = append(full, rest...), restErr
	}
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, &ConnectionError{Op: "read", Err: io.ErrUnexpectedEOF}
		}
		return nil, &ConnectionError{Op: "read", Err: err}
	}

	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, &ParseError{Message: "response line not CRLF-terminated"}
	}
	return line[:len(line)-2], nil
}

// errorFromLine maps a server error line to its typed error, or nil when the
// line is not an error line.
func errorFromLine(line []byte) error {
	if bytes.HasPrefix(line, clientErrorPrefix) {
		return &ClientError{Message: string(line[len(clientErrorPrefix):])}
	}
	if bytes.HasPrefix(line, serverErrorPrefix) {
		return &ServerError{Message: string(line[len(serverErrorPrefix):])}
	}
	if bytes.Equal(line, errorGenericBytes) {
		return &GenericError{}
	}
	return nil
}

// statusForVerb lists the status tokens each status-class verb may answer
// with. Anything else is a protocol violation.
var statusForVerb = map[Verb][]Status{
	VerbSet:      {StatusStored, StatusNotStored},
	VerbAdd:      {StatusStored, StatusNotStored},
	VerbReplace:  {StatusStored, StatusNotStored},
	VerbAppend:   {StatusStored, StatusNotStored, StatusNotFound},
	VerbPrepend:  {StatusStored, StatusNotStored, StatusNotFound},
	VerbCas:      {StatusStored, StatusExists, StatusNotFound},
	VerbDelete:   {StatusDeleted, StatusNotFound},
	VerbTouch:    {StatusTouched, StatusNotFound},
	VerbFlushAll: {StatusOK},
}

func readStatusResponse(r *bufio.Reader, verb Verb) (*Response, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if err := errorFromLine(line); err != nil {
		return nil, err
	}

	for _, status := range statusForVerb[verb] {
		if string(line) == string(status) {
			return &Response{Status: status}, nil
		}
	}
	return nil, &ParseError{Message: "unexpected " + string(verb) + " response: " + string(line)}
}

func readValuesResponse(r *bufio.Reader, withCAS bool) (*Response, error) {
	resp := &Response{}
	seen := map[string]bool{}

	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if err := errorFromLine(line); err != nil {
			return nil, err
		}
		if bytes.Equal(line, endMarkerBytes) {
			return resp, nil
		}

		value, err := parseValueHeader(line, withCAS)
		if err != nil {
			return nil, err
		}
		if seen[value.Key] {
			return nil, &ParseError{Message: "duplicate value for key " + value.Key}
		}
		seen[value.Key] = true

		if err := readDataBlock(r, &value); err != nil {
			return nil, err
		}
		resp.Values = append(resp.Values, value)
	}
}

// parseValueHeader parses "VALUE <key> <flags> <bytes> [<cas>]" and sizes
// Value.Data for the payload plus trailing CRLF; readDataBlock fills it.
func parseValueHeader(line []byte, withCAS bool) (Value, error) {
	if !bytes.HasPrefix(line, valuePrefixBytes) {
		return Value{}, &ParseError{Message: "expected VALUE line, got: " + string(line)}
	}

	fields := bytes.Fields(line[len(valuePrefixBytes):])
	wantFields := 3
	if withCAS {
		wantFields = 4
	}
	if len(fields) != wantFields {
		return Value{}, &ParseError{Message: "malformed VALUE line: " + string(line)}
	}

	flags, err := strconv.ParseUint(string(fields[1]), 10, 32)
	if err != nil {
		return Value{}, &ParseError{Message: "invalid flags in VALUE line", Err: err}
	}

	length, err := strconv.Atoi(string(fields[2]))
	if err != nil || length < 0 {
		return Value{}, &ParseError{Message: "invalid length in VALUE line: " + string(line)}
	}
	if length > MaxValueLength {
		return Value{}, &ParseError{Message: "value length " + string(fields[2]) + " exceeds item size limit"}
	}

	value := Value{
		Key:   string(fields[0]),
		Flags: uint32(flags),
		// Data is sized here and filled by readDataBlock
		Data: make([]byte, length+2),
	}

	if withCAS {
		cas, err := strconv.ParseUint(string(fields[3]), 10, 64)
		if err != nil {
			return Value{}, &ParseError{Message: "invalid cas token in VALUE line", Err: err}
		}
		value.CAS = cas
		value.HasCAS = true
	}

	return value, nil
}

// readDataBlock fills value.Data, which was sized to <length>+2 by
// parseValueHeader, and strips the trailing CRLF.
func readDataBlock(r *bufio.Reader, value *Value) error {
	if _, err := io.ReadFull(r, value.Data); err != nil {
		return &ParseError{Message: "short data block", Err: err}
	}
	if !bytes.HasSuffix(value.Data, crlfBytes) {
		return &ParseError{Message: "data block not CRLF-terminated"}
	}
	value.Data = value.Data[:len(value.Data)-2]
	return nil
}

func readCounterResponse(r *bufio.Reader) (*Response, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if err := errorFromLine(line); err != nil {
		return nil, err
	}

	if string(line) == string(StatusNotFound) {
		return &Response{Status: StatusNotFound}, nil
	}

	counter, err := strconv.ParseUint(string(line), 10, 64)
	if err != nil {
		return nil, &ParseError{Message: "unexpected counter response: " + string(line)}
	}
	return &Response{Counter: counter, HasCounter: true}, nil
}

func readStatsResponse(r *bufio.Reader) (*Response, error) {
	resp := &Response{Stats: map[string]string{}}

	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if err := errorFromLine(line); err != nil {
			return nil, err
		}
		if bytes.Equal(line, endMarkerBytes) {
			return resp, nil
		}

		if !bytes.HasPrefix(line, statPrefixBytes) {
			return nil, &ParseError{Message: "expected STAT line, got: " + string(line)}
		}

		// STAT <name> <value>, the value may contain spaces
		rest := line[len(statPrefixBytes):]
		name, statValue, found := bytes.Cut(rest, []byte(Space))
		if !found || len(name) == 0 {
			return nil, &ParseError{Message: "malformed STAT line: " + string(line)}
		}
		resp.Stats[string(name)] = string(statValue)
	}
}

func readVersionResponse(r *bufio.Reader) (*Response, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if err := errorFromLine(line); err != nil {
		return nil, err
	}

	if !bytes.HasPrefix(line, versionLineBytes) {
		return nil, &ParseError{Message: "unexpected version response: " + string(line)}
	}
	return &Response{Version: string(line[len(versionLineBytes):])}, nil
}
