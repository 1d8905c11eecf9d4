// Package logger defines the structured logging interface used across the
// module, with a zap-backed production implementation and a noop default.
package logger

// Logger is the minimal structured logging contract the protocol core needs.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// NoopLogger discards everything. It is the default wherever no logger is
// injected, so library code never writes to a global sink by surprise.
type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]any) {}
func (NoopLogger) Info(string, map[string]any)  {}
func (NoopLogger) Warn(string, map[string]any)  {}
func (NoopLogger) Error(string, map[string]any) {}
