package memcache

import (
	"fmt"

	"github.com/klauspost/compress/s2"
)

// RawFlag is the reserved flag tag for raw-bytes passthrough. It cannot be
// registered with a codec.
const RawFlag uint32 = 0

// EncodeFunc transforms a value before it is stored under its flag tag.
type EncodeFunc func(value []byte) ([]byte, error)

// DecodeFunc reverses the transform of the flag tag a value came back with.
type DecodeFunc func(data []byte) ([]byte, error)

type flagCodec struct {
	encode EncodeFunc
	decode DecodeFunc
}

// FlagRegistry maps flag tags to value transforms, applied transparently on
// store and lookup. Build it once before constructing the client; it is
// read-only afterwards and therefore safe for concurrent use.
//
// Values stored with an unregistered tag (including RawFlag) pass through
// unchanged in both directions.
type FlagRegistry struct {
	codecs map[uint32]flagCodec
}

// NewFlagRegistry returns an empty registry.
func NewFlagRegistry() *FlagRegistry {
	return &FlagRegistry{codecs: make(map[uint32]flagCodec)}
}

// Register binds a codec to a flag tag. Tag 0 is reserved for raw bytes and
// a tag can only be bound once.
func (r *FlagRegistry) Register(flag uint32, encode EncodeFunc, decode DecodeFunc) error {
	if flag == RawFlag {
		return fmt.Errorf("memcache: flag %d is reserved for raw passthrough", RawFlag)
	}
	if encode == nil || decode == nil {
		return fmt.Errorf("memcache: flag %d registered with nil codec", flag)
	}
	if _, exists := r.codecs[flag]; exists {
		return fmt.Errorf("memcache: flag %d already registered", flag)
	}

	r.codecs[flag] = flagCodec{encode: encode, decode: decode}
	return nil
}

// Encode applies the codec registered for flag to value, or returns value
// unchanged for unregistered tags. A nil registry behaves like an empty one.
func (r *FlagRegistry) Encode(flag uint32, value []byte) ([]byte, error) {
	if r == nil {
		return value, nil
	}
	codec, ok := r.codecs[flag]
	if !ok {
		return value, nil
	}
	return codec.encode(value)
}

// Decode reverses Encode for the flag tag a value came back with.
func (r *FlagRegistry) Decode(flag uint32, data []byte) ([]byte, error) {
	if r == nil {
		return data, nil
	}
	codec, ok := r.codecs[flag]
	if !ok {
		return data, nil
	}
	return codec.decode(data)
}

// S2Codec returns an encode/decode pair compressing values with S2
// (a snappy-compatible format). Register it under a flag tag to compress
// large values transparently:
//
//	registry := NewFlagRegistry()
//	enc, dec := S2Codec()
//	registry.Register(FlagCompressedS2, enc, dec)
func S2Codec() (EncodeFunc, DecodeFunc) {
	encode := func(value []byte) ([]byte, error) {
		return s2.Encode(nil, value), nil
	}
	decode := func(data []byte) ([]byte, error) {
		return s2.Decode(nil, data)
	}
	return encode, decode
}

// FlagCompressedS2 is a conventional tag for S2-compressed values. Nothing
// enforces its use; it is a suggestion to keep deployments consistent.
const FlagCompressedS2 uint32 = 1 << 4
