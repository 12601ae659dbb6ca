package logging

import (
	"io"
	"sync"

	"github.com/joeycumines/logiface"
)

// sink is the EventFactory, Writer and EventReleaser for *Event, writing one
// JSON object per line to w. Concurrent use is safe; each goroutine pulls its
// own *Event from the pool.
type sink struct {
	w io.Writer
	// mu serializes writes so concurrent loggers (one per process) never
	// interleave partial lines.
	mu sync.Mutex
}

func newSink(w io.Writer) *sink {
	return &sink{w: w}
}

func (s *sink) NewEvent(level logiface.Level) *Event {
	e := eventPool.Get().(*Event)
	e.lvl = level
	e.buf = append(e.buf[:0], '{')
	e.buf = append(e.buf, `"ts":"`...)
	e.buf = append(e.buf, timeNow().Format(`2006-01-02T15:04:05.000000Z07:00`)...)
	e.buf = append(e.buf, `","lvl":"`...)
	e.buf = append(e.buf, level.String()...)
	e.buf = append(e.buf, '"')
	return e
}

func (s *sink) Write(e *Event) error {
	e.buf = append(e.buf, '}', '\n')
	s.mu.Lock()
	_, err := s.w.Write(e.buf)
	s.mu.Unlock()
	return err
}

func (s *sink) ReleaseEvent(e *Event) {
	if cap(e.buf) <= 1<<16 {
		eventPool.Put(e)
	}
}
