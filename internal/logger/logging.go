// Package logger provides modifications to charmbracelet/log's default logger to be used in various files/packages.
// Everything writes to stderr: stdout carries the msgpack IPC stream.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Output is where every logger writes.
var Output io.Writer = os.Stderr

// Setup configures the package level logger used by the library code.
// Debug mode adds timestamps and caller info.
func Setup(debug bool) {
	log.SetOutput(Output)
	log.SetFormatter(log.TextFormatter)
	if debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
		log.SetTimeFormat(time.Kitchen)
		log.SetReportCaller(true)
		return
	}
	log.SetLevel(log.InfoLevel)
	log.SetReportTimestamp(false)
	log.SetReportCaller(false)
}
