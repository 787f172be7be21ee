// Package diag is the core's debug-log facility and error vocabulary
// (§7). Warnings never alter control flow; they are emitted through a
// *log.Logger exactly as the teacher's objbrowse command does
// (log.Printf/log.Fatal), not through a structured-logging library —
// see DESIGN.md for why.
package diag

import (
	"errors"
	"fmt"
	"log"
	"os"
)

// Default is the package-level logger used by components that don't
// carry their own. Analysis library code should prefer a *Logger
// passed in by the caller; Default exists for cmd/ and tests.
var Default = New(os.Stderr)

// Logger wraps a *log.Logger with the leveled helpers the analysis
// passes use for non-fatal warnings (§7: "no CMP found", "no block at
// address", "edge deleted") and one fatal precondition (§4.2's
// "unexpected absence").
type Logger struct {
	*log.Logger
	Verbose bool
}

func New(w interface{ Write([]byte) (int, error) }) *Logger {
	return &Logger{Logger: log.New(w, "", log.LstdFlags)}
}

// Warnf logs a recoverable warning. It never panics and never affects
// control flow; callers encode the actual recoverable condition as a
// missing cache or a false return, per §7.
func (l *Logger) Warnf(format string, args ...any) {
	l.Printf("warn: "+format, args...)
}

// Debugf logs verbose tracing, gated on Verbose.
func (l *Logger) Debugf(format string, args ...any) {
	if l.Verbose {
		l.Printf("debug: "+format, args...)
	}
}

// ErrMissingPrerequisite is wrapped by errors returned when an
// analysis stage is demanded before its upstream flag is set (§7).
var ErrMissingPrerequisite = errors.New("missing prerequisite analysis stage")

// MissingPrerequisite wraps ErrMissingPrerequisite with the name of
// the stage that was missing, for errors.Is-compatible handling.
func MissingPrerequisite(stage string) error {
	return fmt.Errorf("%w: %s", ErrMissingPrerequisite, stage)
}

// Fatalf reports the single fatal precondition breach the spec names
// (§7: a function's first instruction has no function label): the
// builder halts the current file. Fatalf panics with a typed value
// rather than calling os.Exit, so a caller (e.g. a batch driver
// processing many files) can recover and skip just the offending
// file — matching §5's "callers are expected to finish a stage or
// discard the file".
func Fatalf(format string, args ...any) {
	panic(FatalError{fmt.Errorf(format, args...)})
}

// FatalError is the panic value raised by Fatalf.
type FatalError struct{ Err error }

func (e FatalError) Error() string { return e.Err.Error() }
func (e FatalError) Unwrap() error { return e.Err }
