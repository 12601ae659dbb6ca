package logging

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
)

// Logger is the concrete logger type every package in this module logs
// through.
type Logger = logiface.Logger[*Event]

// New constructs a root Logger writing newline-delimited JSON to w at the
// given minimum level. A nil w defaults to os.Stderr.
func New(w io.Writer, level logiface.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	s := newSink(w)
	return logiface.New[*Event](
		logiface.WithWriter[*Event](s),
		logiface.WithEventFactory[*Event](s),
		logiface.WithEventReleaser[*Event](s),
		logiface.WithLevel[*Event](level),
	)
}

// ForProcess returns a child logger tagged with the owning process's pid, so
// every line emitted on behalf of one guest (its log() calls, trap notices,
// scheduler errors) can be attributed without repeating the field at each
// call site.
func ForProcess(root *Logger, pid uint64) *Logger {
	return root.Clone().Uint64("pid", pid).Logger()
}
