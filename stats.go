package elrpc

import "sync/atomic"

// Stats holds running counters for one Session's lifetime, read via
// Session.Stats. Modeled on capnweb/session.go's SessionStats, adapted to
// the call/dispatch vocabulary of this protocol instead of Cap'n Web's
// push/pull/resolve vocabulary.
type Stats struct {
	callsSent       atomic.Uint64
	callsReceived   atomic.Uint64
	returnsSent     atomic.Uint64
	returnsReceived atomic.Uint64
	errorsSent      atomic.Uint64
	errorsReceived  atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of a Session's Stats, safe to read
// without further synchronization.
type StatsSnapshot struct {
	CallsSent       uint64
	CallsReceived   uint64
	ReturnsSent     uint64
	ReturnsReceived uint64
	ErrorsSent      uint64
	ErrorsReceived  uint64
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		CallsSent:       s.callsSent.Load(),
		CallsReceived:   s.callsReceived.Load(),
		ReturnsSent:     s.returnsSent.Load(),
		ReturnsReceived: s.returnsReceived.Load(),
		ErrorsSent:      s.errorsSent.Load(),
		ErrorsReceived:  s.errorsReceived.Load(),
	}
}
