// Package logging provides the structured logging sink shared by every
// process state and the scheduler loop. It is a small, buffer-based
// logiface.Event implementation in the style of stumpy, adapted to this
// module's needs rather than imported, since the retrieved stumpy package
// targets an older logiface module path.
package logging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

type (
	// Event is a JSON line builder. A single instance is reused via a pool
	// across the lifetime of a logger.
	Event struct {
		logiface.UnimplementedEvent

		lvl logiface.Level
		buf []byte
	}
)

var (
	eventPool = sync.Pool{New: func() any {
		return &Event{buf: make([]byte, 0, 256)}
	}}

	timeNow = time.Now
)

func (e *Event) Level() logiface.Level { return e.lvl }

func (e *Event) AddField(key string, val any) {
	e.appendSeparator()
	e.appendKey(key)
	e.appendValue(val)
}

func (e *Event) AddMessage(msg string) bool {
	e.appendSeparator()
	e.appendKey("msg")
	e.appendValue(msg)
	return true
}

func (e *Event) AddError(err error) bool {
	e.appendSeparator()
	e.appendKey("error")
	e.appendValue(err.Error())
	return true
}

func (e *Event) AddString(key, val string) bool {
	e.AddField(key, val)
	return true
}

func (e *Event) AddInt(key string, val int) bool {
	e.AddField(key, val)
	return true
}

func (e *Event) AddTime(key string, val time.Time) bool {
	e.AddField(key, val.Format(time.RFC3339Nano))
	return true
}

func (e *Event) AddDuration(key string, val time.Duration) bool {
	e.AddField(key, val.String())
	return true
}

func (e *Event) appendSeparator() {
	if len(e.buf) != 0 && e.buf[len(e.buf)-1] != '{' {
		e.buf = append(e.buf, ',')
	}
}

func (e *Event) appendKey(key string) {
	b, _ := json.Marshal(key)
	e.buf = append(e.buf, b...)
	e.buf = append(e.buf, ':')
}

func (e *Event) appendValue(val any) {
	b, err := json.Marshal(val)
	if err != nil {
		b, _ = json.Marshal(fmt.Sprintf("marshal error: %v", err))
	}
	e.buf = append(e.buf, b...)
}
