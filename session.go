package elrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Session is one bidirectional EPC connection: it reads and writes frames
// over a single byte stream, dispatches inbound calls against a Registry,
// and correlates inbound returns with outbound calls by UID. Modeled on
// capnweb/session.go's Session, with the exports/imports reference-counted
// object graph replaced by the flat call/return/methods frame set this
// protocol actually has.
type Session struct {
	stream io.ReadWriteCloser
	opts   Options
	logger *zap.Logger

	registry *Registry
	pending  *pendingTable
	uids     *uidGenerator
	stats    Stats

	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	dispatchWG sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// NewSession constructs a Session over stream using registry to answer
// inbound calls. The Session does not start reading until Start is
// called.
func NewSession(stream io.ReadWriteCloser, registry *Registry, opts Options) *Session {
	if registry == nil {
		registry = NewRegistry()
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, _ := errgroup.WithContext(ctx)
	return &Session{
		stream:   stream,
		opts:     opts,
		logger:   namedLogger(opts.logger()),
		registry: registry,
		pending:  newPendingTable(),
		uids:     newUIDGenerator(),
		ctx:      ctx,
		cancel:   cancel,
		group:    group,
	}
}

// Start launches the Session's reader loop in the background, the way
// containers-podman's rpc.go Conn spawns a single receive goroutine
// supervised by an errgroup.Group. It returns immediately; call Shutdown
// to stop the Session and wait for the reader to exit.
func (s *Session) Start() {
	s.group.Go(s.readLoop)
}

// Wait blocks until the reader loop exits (because the stream closed, the
// Session was shut down, or a fatal error occurred) and returns that error,
// nil on a clean shutdown.
func (s *Session) Wait() error {
	return s.group.Wait()
}

// readLoop is the Session's single reader goroutine: it decodes one frame
// at a time and routes it to dispatch (inbound calls and methods queries)
// or to the pending table (inbound returns and errors). Per
// containers-podman's Conn.receive, there is exactly one reader per
// Session so frame ordering on the stream is never raced.
func (s *Session) readLoop() error {
	defer s.pending.failAll(ErrSessionClosed)
	defer s.cancel()
	for {
		v, err := Decode(s.stream)
		if err != nil {
			s.dispatchWG.Wait()
			if errors.Is(err, ErrConnectionClosed) || s.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("elrpc: session read: %w", err)
		}

		frame, err := classifyFrame(v)
		if err != nil {
			if items, ok := v.Slice(); ok && len(items) >= 2 {
				if uid, ok := items[1].IntegerValue(); ok && uid >= 0 {
					s.logger.Warn("rejecting malformed frame", zap.Int64("uid", uid), zap.Error(err))
					s.replyError(uint64(uid), err)
					continue
				}
			}
			s.logger.Error("malformed frame without a recoverable uid", zap.Error(err))
			s.dispatchWG.Wait()
			return fmt.Errorf("elrpc: session read: %w", err)
		}

		switch frame.kind {
		case frameCall:
			s.stats.callsReceived.Add(1)
			s.dispatchWG.Add(1)
			go s.handleInboundCall(frame)

		case frameMethodsQuery:
			s.stats.callsReceived.Add(1)
			s.dispatchWG.Add(1)
			go s.handleMethodsQuery(frame)

		case frameReturn:
			s.stats.returnsReceived.Add(1)
			if call, ok := s.pending.pop(frame.uid); ok {
				call.complete(frame.result, nil)
			}

		case frameReturnError:
			s.stats.errorsReceived.Add(1)
			if call, ok := s.pending.pop(frame.uid); ok {
				call.complete(Nil(), frame.appErr)
			}

		case frameEPCError:
			s.stats.errorsReceived.Add(1)
			if call, ok := s.pending.pop(frame.uid); ok {
				call.complete(Nil(), &ProtocolError{Message: frame.errMsg})
			} else {
				s.logger.Warn("received epc-error for unknown call", zap.Uint64("uid", frame.uid))
			}
		}
	}
}

// handleInboundCall runs in its own goroutine, deliberately outside the
// Session's errgroup.Group: a handler panic or error must never cancel the
// reader loop or sibling in-flight calls, it is recovered by dispatchCall
// and reported back to the peer as a return-error frame.
func (s *Session) handleInboundCall(frame decodedFrame) {
	defer s.dispatchWG.Done()
	result, err := dispatchCall(s.ctx, s.logger, s.registry, frame.method, frame.args)
	if err != nil {
		s.replyError(frame.uid, err)
		return
	}
	s.replyResult(frame.uid, result)
}

func (s *Session) handleMethodsQuery(frame decodedFrame) {
	defer s.dispatchWG.Done()
	entries := s.registry.List()
	s.sendFrame(newMethodsReturnFrame(frame.uid, entries))
}

func (s *Session) replyResult(uid uint64, result Value) {
	s.stats.returnsSent.Add(1)
	s.sendFrame(newReturnFrame(uid, result))
}

func (s *Session) replyError(uid uint64, err error) {
	s.stats.errorsSent.Add(1)
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		s.sendFrame(newEPCErrorFrame(uid, protoErr.Message))
		return
	}
	s.sendFrame(newReturnErrorFrame(uid, asApplicationError(err)))
}

// sendFrame serializes v and writes it to the stream, guarded by writeMu
// since both the reader's dispatch goroutines and Call's callers write
// concurrently. Write errors are logged rather than propagated: the
// readLoop goroutine is the authoritative place a dead stream gets
// reported, via its next Decode call.
func (s *Session) sendFrame(v Value) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := Encode(s.stream, v); err != nil {
		s.logger.Warn("failed to write frame", zap.Error(err))
	}
}

// Call sends method(args) to the peer and blocks until a return or
// return-error frame with the matching UID arrives, ctx is done, or the
// Session is shut down.
func (s *Session) Call(ctx context.Context, method string, args Value) (Value, error) {
	ctx, cancel := s.withDefaultTimeout(ctx)
	defer cancel()
	uid, call, err := s.issueCall(ctx, method, args)
	if err != nil {
		return Nil(), err
	}
	result, err := call.Await(ctx)
	if err != nil {
		s.pending.pop(uid)
		if errors.Is(err, context.DeadlineExceeded) {
			return Nil(), ErrTimeout
		}
	}
	return result, err
}

// withDefaultTimeout applies Options.CallTimeout when ctx carries no
// deadline of its own, the way capnweb/session.go's SessionOptions.
// ResponseTimeout bounds a call that the caller did not scope explicitly.
func (s *Session) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.CallTimeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.CallTimeout)
}

// CallAsync sends method(args) without blocking and returns a handle whose
// Await method waits for the response, mirroring
// capnweb/promise.go's Promise.Await API shape.
func (s *Session) CallAsync(ctx context.Context, method string, args Value) (*AsyncCall, error) {
	uid, call, err := s.issueCall(ctx, method, args)
	if err != nil {
		return nil, err
	}
	return &AsyncCall{uid: uid, table: s.pending, pending: call}, nil
}

func (s *Session) issueCall(ctx context.Context, method string, args Value) (uint64, *pendingCall, error) {
	if s.ctx.Err() != nil {
		return 0, nil, ErrSessionClosed
	}
	if s.opts.PendingCallLimit > 0 && s.pending.len() >= s.opts.PendingCallLimit {
		return 0, nil, ErrTooManyPending
	}

	uid := s.uids.next()
	call := newPendingCall()
	s.pending.put(uid, call)

	s.stats.callsSent.Add(1)
	s.sendFrame(newCallFrame(uid, method, args))
	return uid, call, nil
}

// QueryMethods asks the peer for its registered methods.
func (s *Session) QueryMethods(ctx context.Context) ([]MethodInfo, error) {
	if s.ctx.Err() != nil {
		return nil, ErrSessionClosed
	}
	uid := s.uids.next()
	call := newPendingCall()
	s.pending.put(uid, call)

	s.stats.callsSent.Add(1)
	s.sendFrame(newMethodsQueryFrame(uid))

	result, err := call.Await(ctx)
	if err != nil {
		s.pending.pop(uid)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return methodsFromValue(result)
}

// Shutdown closes the underlying stream, cancels the Session's context, and
// waits for the reader loop and any in-flight dispatch goroutines to exit.
// It is idempotent: repeated calls return the same error.
func (s *Session) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.cancel()
		closeErr := s.stream.Close()

		done := make(chan error, 1)
		go func() { done <- s.group.Wait() }()

		select {
		case waitErr := <-done:
			s.closeErr = firstNonNil(closeErr, waitErr)
		case <-ctx.Done():
			s.closeErr = ctx.Err()
		}
	})
	return s.closeErr
}

// IsClosed reports whether Shutdown has been called or the reader loop has
// exited on its own.
func (s *Session) IsClosed() bool {
	return s.ctx.Err() != nil
}

// Stats returns a point-in-time snapshot of the Session's call counters.
func (s *Session) Stats() StatsSnapshot {
	return s.stats.snapshot()
}

func firstNonNil(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
