package atoms

import (
	"io"

	charmlog "github.com/charmbracelet/log"
)

// Logger records diagnostics from the persistence and sync paths. Those paths
// never fail past their boundary; the logger is the only place recovered
// errors surface.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return nopLogger{} }

type charmLogger struct {
	logger *charmlog.Logger
}

func (l charmLogger) Debug(msg string, keyvals ...any) { l.logger.Debug(msg, keyvals...) }
func (l charmLogger) Info(msg string, keyvals ...any)  { l.logger.Info(msg, keyvals...) }
func (l charmLogger) Warn(msg string, keyvals ...any)  { l.logger.Warn(msg, keyvals...) }
func (l charmLogger) Error(msg string, keyvals ...any) { l.logger.Error(msg, keyvals...) }

// NewLogger builds the default structured logger writing to w.
func NewLogger(w io.Writer) Logger {
	return charmLogger{logger: charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "atoms",
	})}
}
