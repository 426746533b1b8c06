// Package log defines the minimal logging seam used throughout this
// module: a single Printf-shaped interface so callers never depend on
// the standard library's *log.Logger concrete type, plus a
// process-global default that library code not explicitly wired with a
// Logger falls back to. Grounded in the teacher's rsyncd.Option pattern
// (WithLogger/log.SetLogger) in rsyncd/rsyncd.go.
package log

import (
	"io"
	stdlog "log"
	"sync"

	"github.com/google/uuid"
)

// Logger is satisfied by *log.Logger and by any test double that only
// needs to capture formatted lines.
type Logger interface {
	Printf(format string, v ...interface{})
}

// New returns a Logger writing to w with rsync's conventional
// microsecond timestamp prefix.
func New(w io.Writer) Logger {
	return stdlog.New(w, "", stdlog.Lmicroseconds)
}

// Discard is a Logger that drops everything written to it.
var Discard Logger = discardLogger{}

type discardLogger struct{}

func (discardLogger) Printf(format string, v ...interface{}) {}

var (
	mu      sync.RWMutex
	current Logger = Discard
)

// SetLogger installs l as the process-wide default, for code paths that
// run before a connection-scoped Logger is available (e.g. early
// argument-parsing diagnostics). Mirrors the teacher's WithLogger
// option, which calls this after setting the per-server logger.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = Discard
	}
	current = l
}

// Printf logs via the process-wide default logger.
func Printf(format string, v ...interface{}) {
	mu.RLock()
	l := current
	mu.RUnlock()
	l.Printf(format, v...)
}

// Prefixed wraps l so every message is prefixed with a connection or
// session identifier, without requiring every call site to interpolate
// it manually.
func Prefixed(l Logger, prefix string) Logger {
	return &prefixed{l: l, prefix: prefix}
}

type prefixed struct {
	l      Logger
	prefix string
}

func (p *prefixed) Printf(format string, v ...interface{}) {
	p.l.Printf(p.prefix+": "+format, v...)
}

// NewConnID returns a short random identifier for tagging every log
// line belonging to one daemon connection, so interleaved connections'
// log lines can be told apart without a structured logging library.
func NewConnID() string {
	return uuid.NewString()[:8]
}
