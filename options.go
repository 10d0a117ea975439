package elrpc

import (
	"time"

	"go.uber.org/zap"
)

// Options configures a Session. There is no file-based configuration layer
// (SPEC_FULL.md explicitly scopes config-file loading out); callers build
// an Options value directly or start from DefaultOptions, matching
// capnweb/session.go's SessionOptions/DefaultSessionOptions shape.
type Options struct {
	// Logger receives structured session and dispatch diagnostics. A nil
	// Logger is replaced with zap.NewNop() so logging is always safe to
	// call without a nil check.
	Logger *zap.Logger

	// CallTimeout bounds how long Call waits for a response when the
	// caller's context carries no deadline of its own. Zero means no
	// implicit timeout.
	CallTimeout time.Duration

	// PendingCallLimit caps the number of outstanding outbound calls a
	// Session will track before Call/CallAsync returns ErrTooManyPending.
	// Zero means unbounded.
	PendingCallLimit int
}

// DefaultOptions returns the Options a Session uses when none is supplied:
// a no-op logger, no implicit call timeout, and no pending-call limit.
func DefaultOptions() Options {
	return Options{
		Logger:           zap.NewNop(),
		CallTimeout:      0,
		PendingCallLimit: 0,
	}
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
