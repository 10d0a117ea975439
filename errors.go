package elrpc

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned by Call/AsyncCall.Await when the caller's context
// deadline passes before a response arrives. It carries no wire effect.
var ErrTimeout = errors.New("elrpc: call timed out")

// ErrSessionClosed is returned to every pending and future call once a
// Session has shut down.
var ErrSessionClosed = errors.New("elrpc: session closed")

// ErrTooManyPending is returned by Call/CallAsync when
// Options.PendingCallLimit is reached.
var ErrTooManyPending = errors.New("elrpc: too many pending calls")

// ProtocolError indicates a well-formed S-expression that does not match
// any recognized frame shape: unknown tag, wrong arity, non-integer UID.
// It round-trips to/from the wire as an epc-error frame.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("elrpc: protocol error: %s", e.Message)
}

// MethodNotFoundError indicates the dispatcher had no registered handler
// for the requested method name. It is surfaced to the peer as a
// return-error frame with class "no-such-method".
type MethodNotFoundError struct {
	Name string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("elrpc: no such method: %s", e.Name)
}

// ApplicationError carries a handler-level failure across the wire in a
// return-error frame: a class symbol, a human-readable message, and an
// optional backtrace.
type ApplicationError struct {
	Class     string
	Message   string
	Backtrace []string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("elrpc: %s: %s", e.Class, e.Message)
}

// SerializationError indicates the typed dispatch adapter could not coerce
// a Value into (or out of) a handler's Go type. It is always surfaced to
// the peer as an ApplicationError with class "wrong-type-argument".
type SerializationError struct {
	Reason string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("elrpc: serialization error: %s", e.Reason)
}

// asApplicationError normalizes any error returned by a handler (or
// recovered from a handler panic) into the ApplicationError shape a
// return-error frame requires.
func asApplicationError(err error) *ApplicationError {
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return appErr
	}
	var serErr *SerializationError
	if errors.As(err, &serErr) {
		return &ApplicationError{Class: "wrong-type-argument", Message: serErr.Reason}
	}
	var notFoundErr *MethodNotFoundError
	if errors.As(err, &notFoundErr) {
		return &ApplicationError{Class: "no-such-method", Message: notFoundErr.Name}
	}
	return &ApplicationError{Class: "error", Message: err.Error()}
}
