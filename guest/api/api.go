//go:build wasip1

// Package api is the ergonomic guest-facing surface over guest/sys: the
// non-I/O, non-RPC core and time syscalls (shutdown, abort, log, impulse,
// sleep, monotonic_time). Impulse and Sleep are plain blocking calls on a
// reactor channel; the calling goroutine is the suspended task (see
// guest/reactor's package doc).
package api

import (
	"time"
	"unsafe"

	"github.com/mvanbem/ignition/guest/reactor"
	"github.com/mvanbem/ignition/guest/sys"
)

// Shutdown requests termination of this guest after the current wake()
// call returns.
func Shutdown() { sys.Shutdown() }

// Abort immediately traps, destroying the guest instance.
func Abort() { sys.Abort() }

// Log emits message as a single UTF-8 log line via the host's log sink.
func Log(message string) {
	if len(message) == 0 {
		sys.Log(nil, 0)
		return
	}
	sys.Log(unsafe.Pointer(unsafe.StringData(message)), uint32(len(message)))
}

// Impulse enqueues an immediate wake (param = 0) for a freshly allocated
// task and blocks the calling goroutine until it arrives.
func Impulse(r *reactor.Reactor) {
	id, ch := r.NewTask()
	sys.Impulse(uint32(id))
	r.Await(id, ch)
}

// Sleep allocates a task, asks the host to wake it after d, and blocks
// until that wake arrives. Durations are truncated to microseconds,
// matching the ABI's u32 microsecond parameter.
func Sleep(r *reactor.Reactor, d time.Duration) {
	id, ch := r.NewTask()
	sys.Sleep(uint32(id), uint32(d.Microseconds()))
	r.Await(id, ch)
}

// Instant is a point on the host's monotonic clock, analogous to
// time.Time but sourced from monotonic_time, the only clock the ABI
// exposes to a guest.
type Instant uint64

// Now samples the host's monotonic clock.
func Now() Instant { return Instant(sys.MonotonicTime()) }

// Sub returns the duration elapsed between rhs and i (i - rhs).
func (i Instant) Sub(rhs Instant) time.Duration {
	return time.Duration(uint64(i)-uint64(rhs)) * time.Microsecond
}
