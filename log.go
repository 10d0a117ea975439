package elrpc

import "go.uber.org/zap"

// namedLogger returns logger scoped under the "elrpc" component name, the
// way urands-ttmesh's observability/logger.go tags each subsystem's zap
// logger so multiplexed session logs can be filtered by component.
func namedLogger(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.Named("elrpc")
}
