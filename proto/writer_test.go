package proto

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestWriteRequest(t *testing.T) {
	tests := []struct {
		name     string
		req      *Request
		expected string
	}{
		{
			name:     "get single key",
			req:      NewGetRequest(false, "mykey"),
			expected: "get mykey\r\n",
		},
		{
			name:     "get multiple keys",
			req:      NewGetRequest(false, "a", "b", "c"),
			expected: "get a b c\r\n",
		},
		{
			name:     "gets with cas",
			req:      NewGetRequest(true, "mykey"),
			expected: "gets mykey\r\n",
		},
		{
			name:     "set",
			req:      NewStoreRequest(VerbSet, "mykey", 0, 0, []byte("hello")),
			expected: "set mykey 0 0 5\r\nhello\r\n",
		},
		{
			name:     "set with flags and exptime",
			req:      NewStoreRequest(VerbSet, "mykey", 42, 3600, []byte("hello")),
			expected: "set mykey 42 3600 5\r\nhello\r\n",
		},
		{
			name:     "set empty value",
			req:      NewStoreRequest(VerbSet, "mykey", 0, 0, nil),
			expected: "set mykey 0 0 0\r\n\r\n",
		},
		{
			name:     "add",
			req:      NewStoreRequest(VerbAdd, "mykey", 0, 0, []byte("v")),
			expected: "add mykey 0 0 1\r\nv\r\n",
		},
		{
			name:     "append",
			req:      NewStoreRequest(VerbAppend, "mykey", 0, 0, []byte("!")),
			expected: "append mykey 0 0 1\r\n!\r\n",
		},
		{
			name:     "cas",
			req:      NewCasRequest("mykey", 7, 60, 1234, []byte("vv")),
			expected: "cas mykey 7 60 2 1234\r\nvv\r\n",
		},
		{
			name:     "delete",
			req:      NewDeleteRequest("mykey"),
			expected: "delete mykey\r\n",
		},
		{
			name:     "incr",
			req:      NewArithmeticRequest(VerbIncr, "counter", 5),
			expected: "incr counter 5\r\n",
		},
		{
			name:     "decr",
			req:      NewArithmeticRequest(VerbDecr, "counter", 2),
			expected: "decr counter 2\r\n",
		},
		{
			name:     "touch",
			req:      NewTouchRequest("mykey", 300),
			expected: "touch mykey 300\r\n",
		},
		{
			name:     "stats",
			req:      &Request{Verb: VerbStats},
			expected: "stats\r\n",
		},
		{
			name:     "stats with arg",
			req:      &Request{Verb: VerbStats, StatsArg: "items"},
			expected: "stats items\r\n",
		},
		{
			name:     "version",
			req:      &Request{Verb: VerbVersion},
			expected: "version\r\n",
		},
		{
			name:     "flush_all",
			req:      &Request{Verb: VerbFlushAll},
			expected: "flush_all\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteRequest(&buf, tt.req); err != nil {
				t.Fatalf("WriteRequest failed: %v", err)
			}
			if got := buf.String(); got != tt.expected {
				t.Errorf("WriteRequest() = %q, want %q", got, tt.expected)
			}

			// Same wire bytes through the buffered path
			var bufferedOut bytes.Buffer
			bw := bufio.NewWriter(&bufferedOut)
			if err := WriteRequest(bw, tt.req); err != nil {
				t.Fatalf("WriteRequest buffered failed: %v", err)
			}
			if got := bufferedOut.String(); got != tt.expected {
				t.Errorf("WriteRequest() buffered = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestWriteRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		req  *Request
	}{
		{"empty key", NewGetRequest(false, "")},
		{"no keys", &Request{Verb: VerbGet}},
		{"key with space", NewDeleteRequest("bad key")},
		{"key too long", NewDeleteRequest(strings.Repeat("k", 251))},
		{"second key invalid", NewGetRequest(false, "ok", "bad key")},
		{"oversized value", NewStoreRequest(VerbSet, "k", 0, 0, make([]byte, MaxValueLength+1))},
		{"negative exptime", NewStoreRequest(VerbSet, "k", 0, -1, []byte("v"))},
		{"negative touch exptime", NewTouchRequest("k", -5)},
		{"stats arg with space", &Request{Verb: VerbStats, StatsArg: "items slabs"}},
		{"stats arg with crlf", &Request{Verb: VerbStats, StatsArg: "items\r\nversion"}},
		{"stats arg with control byte", &Request{Verb: VerbStats, StatsArg: "items\x00"}},
		{"unknown verb", &Request{Verb: "bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := WriteRequest(&buf, tt.req)
			if err == nil {
				t.Fatal("WriteRequest should have failed validation")
			}
			if buf.Len() != 0 {
				t.Errorf("validation failure wrote %d bytes, want 0", buf.Len())
			}

			var invalidKey *InvalidKeyError
			var invalidValue *InvalidValueError
			if !errors.As(err, &invalidKey) && !errors.As(err, &invalidValue) {
				t.Errorf("error is %T, want a validation error type", err)
			}
		})
	}
}

func TestWriteRequestMaxSizeValue(t *testing.T) {
	data := make([]byte, MaxValueLength)
	var buf bytes.Buffer
	if err := WriteRequest(&buf, NewStoreRequest(VerbSet, "k", 0, 0, data)); err != nil {
		t.Fatalf("value at the size limit should be accepted: %v", err)
	}
}
