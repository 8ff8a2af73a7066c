package proto

// Request represents a single text protocol command.
// This is a low-level container for request data without serialization
// logic; fields map directly to protocol elements. Fields that do not apply
// to a verb are ignored by WriteRequest.
type Request struct {
	// Verb is the command name: get, gets, set, add, replace, append,
	// prepend, cas, delete, incr, decr, touch, stats, version, flush_all.
	Verb Verb

	// Keys holds the keys the command operates on. Retrieval verbs accept
	// one or more keys; all other keyed verbs use exactly Keys[0].
	Keys []string

	// Flags is the opaque 32-bit tag stored alongside the value
	// (storage verbs only).
	Flags uint32

	// Exptime is the expiration in seconds, or a unix timestamp when
	// larger than 30 days. Zero means no expiration.
	// Used by storage verbs and touch.
	Exptime int64

	// CAS is the compare-and-swap token (cas verb only).
	CAS uint64

	// Delta is the amount to add or subtract (incr/decr).
	Delta uint64

	// StatsArg is the optional argument to the stats command
	// (e.g. "items", "slabs").
	StatsArg string

	// Data is the value payload (storage verbs only). Its size is derived
	// from len(Data), never stored separately.
	Data []byte
}

// NewGetRequest builds a retrieval request spanning all given keys.
// withCAS selects gets, which returns the cas token of each value.
func NewGetRequest(withCAS bool, keys ...string) *Request {
	verb := VerbGet
	if withCAS {
		verb = VerbGets
	}
	return &Request{Verb: verb, Keys: keys}
}

// NewStoreRequest builds a storage request for one of the five storage verbs.
func NewStoreRequest(verb Verb, key string, flags uint32, exptime int64, data []byte) *Request {
	return &Request{Verb: verb, Keys: []string{key}, Flags: flags, Exptime: exptime, Data: data}
}

// NewCasRequest builds a check-and-set storage request.
func NewCasRequest(key string, flags uint32, exptime int64, cas uint64, data []byte) *Request {
	return &Request{Verb: VerbCas, Keys: []string{key}, Flags: flags, Exptime: exptime, CAS: cas, Data: data}
}

// NewDeleteRequest builds a delete request.
func NewDeleteRequest(key string) *Request {
	return &Request{Verb: VerbDelete, Keys: []string{key}}
}

// NewArithmeticRequest builds an incr or decr request.
func NewArithmeticRequest(verb Verb, key string, delta uint64) *Request {
	return &Request{Verb: verb, Keys: []string{key}, Delta: delta}
}

// NewTouchRequest builds a touch request updating only the expiration.
func NewTouchRequest(key string, exptime int64) *Request {
	return &Request{Verb: VerbTouch, Keys: []string{key}, Exptime: exptime}
}

// key returns the single key of a non-retrieval request.
func (r *Request) key() string {
	if len(r.Keys) == 0 {
		return ""
	}
	return r.Keys[0]
}
