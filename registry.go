package elrpc

import (
	"context"
	"sync"
)

// Handler is the untyped method implementation shape: it receives the raw
// argument list Value (the call frame's fourth element, normally a proper
// list) and returns a result Value or an error. Register via RegisterFunc
// for a typed, reflection-based adapter instead.
type Handler func(ctx context.Context, args Value) (Value, error)

// MethodInfo describes one registered method, the shape queried by the
// EPC "methods" frame, grounded on original_source/src/registry.rs's
// MethodInfo{name, arg_spec, docstring}.
type MethodInfo struct {
	Name      string
	ArgSpec   string
	Docstring string
}

type methodEntry struct {
	info    MethodInfo
	handler Handler
}

// Registry holds the set of methods a Session's peer may invoke, keyed by
// name. It is safe for concurrent use: handlers may be registered and
// looked up while a Session's dispatch goroutines are running.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]methodEntry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]methodEntry)}
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, argSpec, docstring string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[name] = methodEntry{
		info:    MethodInfo{Name: name, ArgSpec: argSpec, Docstring: docstring},
		handler: h,
	}
}

// Deregister removes the handler for name, if any.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.methods, name)
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.methods[name]
	if !ok {
		return nil, false
	}
	return entry.handler, true
}

// List returns MethodInfo for every registered method, in no particular
// order, matching the shape a "methods" query frame returns to the peer.
func (r *Registry) List() []MethodInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MethodInfo, 0, len(r.methods))
	for _, entry := range r.methods {
		out = append(out, entry.info)
	}
	return out
}
