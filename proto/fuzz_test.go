package proto

import (
	"bufio"
	"bytes"
	"testing"
)

// FuzzReadResponse hammers the response parser with malformed input to find
// crashes and panics.
// Run with: go test -fuzz='^FuzzReadResponse$' -fuzztime=60s ./proto
func FuzzReadResponse(f *testing.F) {
	// Valid responses for every response class
	f.Add([]byte("VALUE k 0 5\r\nhello\r\nEND\r\n"))
	f.Add([]byte("VALUE k 42 0\r\n\r\nEND\r\n"))
	f.Add([]byte("VALUE k 0 2 123\r\nhi\r\nEND\r\n"))
	f.Add([]byte("END\r\n"))
	f.Add([]byte("STORED\r\n"))
	f.Add([]byte("NOT_STORED\r\n"))
	f.Add([]byte("EXISTS\r\n"))
	f.Add([]byte("NOT_FOUND\r\n"))
	f.Add([]byte("DELETED\r\n"))
	f.Add([]byte("TOUCHED\r\n"))
	f.Add([]byte("OK\r\n"))
	f.Add([]byte("15\r\n"))
	f.Add([]byte("STAT pid 1\r\nEND\r\n"))
	f.Add([]byte("VERSION 1.6.21\r\n"))
	f.Add([]byte("ERROR\r\n"))
	f.Add([]byte("CLIENT_ERROR boom\r\n"))
	f.Add([]byte("SERVER_ERROR out of memory\r\n"))

	// Edge cases
	f.Add([]byte(""))
	f.Add([]byte("\r\n"))
	f.Add([]byte("\n"))
	f.Add([]byte("VALUE\r\n"))
	f.Add([]byte("VALUE k\r\n"))
	f.Add([]byte("VALUE k 0\r\n"))
	f.Add([]byte("VALUE k 0 -1\r\n"))
	f.Add([]byte("VALUE k 0 abc\r\n"))
	f.Add([]byte("VALUE k 99999999999999999999 1\r\nx\r\nEND\r\n"))
	f.Add([]byte("VALUE k 0 5\r\nhel"))
	f.Add([]byte("VALUE k 0 5\r\nhelloXXEND\r\n"))
	f.Add([]byte("STAT\r\nEND\r\n"))
	f.Add([]byte("STAT novalue\r\nEND\r\n"))
	f.Add([]byte("18446744073709551616\r\n"))
	f.Add([]byte("VERSION\r\n"))
	f.Add([]byte("UNKNOWN STATUS\r\n"))

	verbs := []Verb{VerbGet, VerbGets, VerbSet, VerbCas, VerbDelete, VerbIncr, VerbTouch, VerbStats, VerbVersion, VerbFlushAll}

	f.Fuzz(func(t *testing.T, data []byte) {
		for _, verb := range verbs {
			r := bufio.NewReader(bytes.NewReader(data))

			resp, err := ReadResponse(r, verb)
			if err == nil && resp == nil {
				t.Errorf("verb %s: nil response without error", verb)
			}
			if err != nil && resp != nil {
				t.Errorf("verb %s: both response and error returned", verb)
			}
		}
	})
}
