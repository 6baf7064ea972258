// Package logger defines the logging contract used across devicegate and
// ships a zap-backed implementation plus a noop for tests.
package logger

// Logger is the minimal structured-logging contract. Field maps keep the
// call sites free of any particular logging library.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// Noop discards everything.
type Noop struct{}

func (Noop) Debug(string, map[string]any) {}
func (Noop) Info(string, map[string]any)  {}
func (Noop) Warn(string, map[string]any)  {}
func (Noop) Error(string, map[string]any) {}
