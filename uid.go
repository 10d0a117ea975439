package elrpc

import "sync/atomic"

// uidGenerator is a thread-safe monotonic counter, one per Session per
// direction, grounded on original_source/src/uid.rs's AtomicU64-backed
// UidGenerator: the first call to next returns 1.
type uidGenerator struct {
	counter atomic.Uint64
}

func newUIDGenerator() *uidGenerator {
	return &uidGenerator{}
}

func (g *uidGenerator) next() uint64 {
	return g.counter.Add(1)
}
