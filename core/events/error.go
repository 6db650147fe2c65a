package events

// KindError identifies a failure notice.
const KindError Kind = "error"

// ErrorKind is the machine-readable reason attached to an error event.
type ErrorKind string

const (
	ErrorTimeout      ErrorKind = "timeout"
	ErrorUpstream     ErrorKind = "upstream"
	ErrorInvalidInput ErrorKind = "invalid_input"
	ErrorCancelled    ErrorKind = "cancelled"

	// ErrorSessionBusy and ErrorSessionNotFound are used by transports when
	// relaying synchronous session errors to a client. They never appear
	// inside a cycle's event stream.
	ErrorSessionBusy     ErrorKind = "session_busy"
	ErrorSessionNotFound ErrorKind = "not_found"
)

// Error reports a failure. Recoverable means the session can keep going:
// advisory errors let the cycle still complete, and a cancelled error ends
// the cycle but leaves the session ready for the next question. A
// non-recoverable error means the question itself failed. Message is safe to
// surface to clients.
type Error struct {
	Base
	Reason      ErrorKind
	Message     string
	Recoverable bool
}

// NewError creates an error event.
func NewError(reason ErrorKind, message string, recoverable bool) Error {
	return Error{Base: NewBase(KindError), Reason: reason, Message: message, Recoverable: recoverable}
}
