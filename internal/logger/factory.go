package logger

import (
	"github.com/charmbracelet/log"
)

// Default returns a component logger carrying the global logger's level,
// caller and timestamp settings under prefix. Create it after Setup; the
// copy does not follow later level changes.
func Default(prefix string) *log.Logger {
	return log.Default().WithPrefix(prefix)
}

// NewWithConfig creates a component logger on Output with explicit settings.
func NewWithConfig(prefix string, level log.Level, caller bool, showTimestamp bool, fmt log.Formatter) *log.Logger {
	return log.NewWithOptions(Output, log.Options{
		Prefix:          prefix,
		Level:           level,
		ReportCaller:    caller,
		ReportTimestamp: showTimestamp,
		Formatter:       fmt,
	})
}
