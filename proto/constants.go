package proto

// Verb is a protocol command name as it appears on the wire.
type Verb string

// Status is a response status token as it appears on the wire.
type Status string

// Protocol delimiters
const (
	// CRLF is the line terminator for the memcached protocol
	CRLF = "\r\n"

	// Space separates command tokens
	Space = " "
)

// Command verbs
const (
	// Retrieval. VerbGets additionally returns the cas token of each value.
	//
	// Wire format: get <key>*\r\n
	// Response: zero or more VALUE blocks followed by END\r\n
	VerbGet  Verb = "get"
	VerbGets Verb = "gets"

	// Storage. All five share the same wire format and differ only in the
	// server-side conflict policy.
	//
	// Wire format: <verb> <key> <flags> <exptime> <bytes>\r\n<data>\r\n
	// Response: STORED, NOT_STORED or NOT_FOUND
	VerbSet     Verb = "set"
	VerbAdd     Verb = "add"
	VerbReplace Verb = "replace"
	VerbAppend  Verb = "append"
	VerbPrepend Verb = "prepend"

	// Check-and-set storage, conditioned on the cas token.
	//
	// Wire format: cas <key> <flags> <exptime> <bytes> <cas>\r\n<data>\r\n
	// Response: STORED, EXISTS or NOT_FOUND
	VerbCas Verb = "cas"

	// Wire format: delete <key>\r\n
	// Response: DELETED or NOT_FOUND
	VerbDelete Verb = "delete"

	// Counters.
	//
	// Wire format: <verb> <key> <delta>\r\n
	// Response: the new value as a decimal integer, or NOT_FOUND
	VerbIncr Verb = "incr"
	VerbDecr Verb = "decr"

	// Wire format: touch <key> <exptime>\r\n
	// Response: TOUCHED or NOT_FOUND
	VerbTouch Verb = "touch"

	// Diagnostics.
	//
	// Wire format: stats [<args>]\r\n
	// Response: STAT <name> <value> lines followed by END\r\n
	VerbStats Verb = "stats"

	// Wire format: version\r\n
	// Response: VERSION <string>\r\n
	VerbVersion Verb = "version"

	// Wire format: flush_all\r\n
	// Response: OK\r\n
	VerbFlushAll Verb = "flush_all"
)

// Response status tokens
const (
	StatusStored    Status = "STORED"
	StatusNotStored Status = "NOT_STORED"
	StatusExists    Status = "EXISTS"
	StatusNotFound  Status = "NOT_FOUND"
	StatusDeleted   Status = "DELETED"
	StatusTouched   Status = "TOUCHED"
	StatusOK        Status = "OK"
)

// Response line markers
const (
	EndMarker     = "END"
	ValuePrefix   = "VALUE"
	StatPrefix    = "STAT"
	VersionPrefix = "VERSION"
)

// Error line prefixes
const (
	ErrorGeneric      = "ERROR"
	ErrorClientPrefix = "CLIENT_ERROR"
	ErrorServerPrefix = "SERVER_ERROR"
)

// Protocol limits
const (
	MinKeyLength   = 1       // Keys must not be empty
	MaxKeyLength   = 250     // Maximum key length in bytes
	MaxValueLength = 1048576 // 1MB - default memcached item size limit
)

// responseClass describes the shape of the response a verb produces.
type responseClass int

const (
	classStatus responseClass = iota
	classValues
	classCounter
	classStats
	classVersion
)

func classOf(verb Verb) responseClass {
	switch verb {
	case VerbGet, VerbGets:
		return classValues
	case VerbIncr, VerbDecr:
		return classCounter
	case VerbStats:
		return classStats
	case VerbVersion:
		return classVersion
	default:
		return classStatus
	}
}
