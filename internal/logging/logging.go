// Package logging wraps charmbracelet/log the way samoyed's command-line
// tools do, adding a strftime-formatted trace-line prefix for protocol
// event logs (SYNC/LOST_SYNC/RXCOMPLETE/TXCOMPLETE), since those lines
// are meant to be grepped from a running node's console output, not
// just structured fields.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// Logger is the handle every package that needs to log takes, instead
// of depending on charmbracelet/log directly — keeps the dependency
// import in one place, and leaves room to swap backends later.
type Logger struct {
	*log.Logger
	trace *strftime.Strftime
}

// New builds a Logger writing to w at the given level ("debug", "info",
// "warn", "error").
func New(w io.Writer, level string) *Logger {
	var l = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	if lvl, err := log.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}

	var trace, err = strftime.New("%Y-%m-%d %H:%M:%S")
	if err != nil {
		panic("logging: invalid trace timestamp layout: " + err.Error())
	}
	return &Logger{Logger: l, trace: trace}
}

// Default builds a Logger writing to stderr at info level, for
// commands that don't load a config file specifying otherwise.
func Default() *Logger { return New(os.Stderr, "info") }

// TraceLine formats a protocol event as a single grep-friendly line:
// timestamp, node id, opmode, event name.
func (l *Logger) TraceLine(nodeID uint8, opmode fmt.Stringer, event fmt.Stringer) string {
	return fmt.Sprintf("%s node=%02x opmode=%s event=%s",
		l.trace.FormatString(time.Now()), nodeID, opmode, event)
}
