package proto

// Value is a single VALUE block from a retrieval response.
type Value struct {
	// Key is the key the server returned the value under.
	Key string

	// Flags is the opaque 32-bit tag stored with the value.
	Flags uint32

	// Data is the raw payload.
	Data []byte

	// CAS is the cas token. Only populated for gets responses; check HasCAS.
	CAS    uint64
	HasCAS bool
}

// Response represents one parsed logical response unit. Which fields are
// populated depends on the verb the response answers:
//   - retrieval verbs fill Values (possibly empty on a full miss)
//   - storage, delete, touch and flush_all fill Status
//   - counters fill Counter/HasCounter, or Status on NOT_FOUND
//   - stats fills Stats
//   - version fills Version
type Response struct {
	Status Status

	Values []Value

	Counter    uint64
	HasCounter bool

	Stats map[string]string

	Version string
}

// IsMiss returns true if the response reports the key as absent.
func (r *Response) IsMiss() bool {
	return r.Status == StatusNotFound
}

// IsStored returns true if a storage operation stored the value.
func (r *Response) IsStored() bool {
	return r.Status == StatusStored
}

// IsNotStored returns true if the server declined to store the value.
// This is a normal outcome for add on an existing key and replace, append
// or prepend on a missing one.
func (r *Response) IsNotStored() bool {
	return r.Status == StatusNotStored
}

// IsCASMismatch returns true if a cas operation lost the race: the item was
// modified since the token was fetched.
func (r *Response) IsCASMismatch() bool {
	return r.Status == StatusExists
}

// Value returns the VALUE block for key, if the server sent one.
func (r *Response) Value(key string) (Value, bool) {
	for _, v := range r.Values {
		if v.Key == key {
			return v, true
		}
	}
	return Value{}, false
}
