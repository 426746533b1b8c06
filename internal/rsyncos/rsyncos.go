// Package rsyncos abstracts the process-level environment (standard
// streams, verbose logging) that both the client and daemon
// entry points depend on, so tests can substitute in-memory streams
// instead of the real process's stdio. Grounded in the field and method
// usage visible in internal/maincmd/maincmd.go and
// internal/maincmd/clientmaincmd.go, neither of which ships its own
// rsyncos package in the retrieved source.
package rsyncos

import (
	"fmt"
	"io"
	"os"
)

// Std is the minimal set of standard streams a connection handler
// needs: the transport's stdin/stdout substitute for network reads and
// writes in `rsync --server` mode, and stderr for diagnostics.
type Std struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// RealStd returns a Std wired to the process's actual stdio.
func RealStd() Std {
	return Std{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Env extends Std with process-level context: verbose logging, consulted
// by the daemon and client entry points in internal/maincmd before
// printing diagnostics.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Verbose enables Logf output; when false, Logf is silent, matching
	// the teacher's conditional "TODO: DebugGTE" call sites elsewhere in
	// the codebase.
	Verbose bool
}

// Std narrows Env to the subset a connection handler needs.
func (e *Env) Std() Std {
	return Std{Stdin: e.Stdin, Stdout: e.Stdout, Stderr: e.Stderr}
}

// Logf writes a diagnostic line to Stderr when Verbose is set.
func (e *Env) Logf(format string, v ...interface{}) {
	if !e.Verbose || e.Stderr == nil {
		return
	}
	fmt.Fprintf(e.Stderr, format+"\n", v...)
}
