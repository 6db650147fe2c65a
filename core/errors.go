package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/koscakluka/tutor-core/core/events"
)

// ProducerError describes a failed producer call and carries the error kind
// that ends up on the wire.
type ProducerError struct {
	Producer string
	Kind     events.ErrorKind
	Err      error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("%s producer failed (%s): %v", e.Producer, e.Kind, e.Err)
}

func (e *ProducerError) Unwrap() error { return e.Err }

// Message is the client-safe form: it names the producer and kind but never
// leaks the underlying error text onto the wire.
func (e *ProducerError) Message() string {
	return fmt.Sprintf("%s producer failed (%s)", e.Producer, e.Kind)
}

func producerFailure(producer string, err error) *ProducerError {
	kind := events.ErrorUpstream
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = events.ErrorTimeout
	case errors.Is(err, context.Canceled):
		kind = events.ErrorCancelled
	}
	return &ProducerError{Producer: producer, Kind: kind, Err: err}
}

type SessionErrorKind string

const (
	SessionBusy      SessionErrorKind = "session_busy"
	SessionNotFound  SessionErrorKind = "session_not_found"
	SessionDuplicate SessionErrorKind = "session_duplicate"
	SessionClosedErr SessionErrorKind = "session_closed"
)

// SessionError is returned for session lifecycle violations: asking on a busy
// or closed session, or addressing a session the registry does not know.
type SessionError struct {
	Kind      SessionErrorKind
	SessionID string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s", e.SessionID, e.Kind)
}
