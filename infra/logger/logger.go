package logger

import (
	"io"
	"os"

	corelogger "github.com/kilianp07/evplan/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// output is stderr: the CLI writes schedules to stdout.
var output io.Writer = os.Stderr

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Infow(string, map[string]any)  {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// New returns the logger of a component. APP_ENV=dev selects console output.
func New(component string) Logger {
	return NewZerologLogger(component)
}
