package elrpc

import (
	"context"
	"errors"
)

// AsyncCall is a handle to an in-flight outbound call, returned by
// Session.CallAsync. Its Await method mirrors capnweb/promise.go's
// Promise.Await(ctx), simplified to the single-waiter case: each AsyncCall
// corresponds to exactly one pendingCall, so there is no waiters slice or
// resolved/rejected state machine to manage.
type AsyncCall struct {
	uid     uint64
	table   *pendingTable
	pending *pendingCall
}

// Await blocks until the peer's return or return-error frame arrives, ctx
// is done, or the owning Session shuts down. When ctx's deadline passes
// first, the pending entry is removed and ErrTimeout is returned.
func (c *AsyncCall) Await(ctx context.Context) (Value, error) {
	select {
	case <-c.pending.done:
		return c.pending.result, c.pending.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.table.pop(c.uid)
			return Nil(), ErrTimeout
		}
		return Nil(), ctx.Err()
	}
}

// Done reports whether a response has already arrived, without blocking.
func (c *AsyncCall) Done() bool {
	select {
	case <-c.pending.done:
		return true
	default:
		return false
	}
}

// Cancel eagerly removes the call's pending-table entry, so a late
// response the peer sends after the caller has given up is discarded
// rather than delivered to nobody. It is a no-op if the call already
// completed.
func (c *AsyncCall) Cancel() {
	if call, ok := c.table.pop(c.uid); ok {
		call.complete(Nil(), ErrSessionClosed)
	}
}
