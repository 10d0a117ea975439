package elrpc

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// dispatchCall looks up method in registry, invokes its handler with args,
// and recovers from a handler panic the same way
// capnweb's resource_management.go guards exported-object invocation: a
// panic becomes an ApplicationError with class "internal-error" carrying a
// captured stack, rather than taking down the Session's reader loop.
func dispatchCall(ctx context.Context, logger *zap.Logger, registry *Registry, method string, args Value) (result Value, callErr error) {
	handler, ok := registry.Lookup(method)
	if !ok {
		return Nil(), &MethodNotFoundError{Name: method}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("handler panicked",
				zap.String("method", method),
				zap.Any("panic", r),
			)
			callErr = &ApplicationError{
				Class:     "internal-error",
				Message:   fmt.Sprintf("%v", r),
				Backtrace: captureStack(),
			}
		}
	}()

	result, callErr = handler(ctx, args)
	if callErr != nil {
		logger.Debug("handler returned error",
			zap.String("method", method),
			zap.Error(callErr),
		)
	}
	return result, callErr
}

func captureStack() []string {
	buf := debug.Stack()
	lines := splitLines(string(buf))
	if len(lines) > 32 {
		lines = lines[:32]
	}
	return lines
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
