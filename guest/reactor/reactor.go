// Package reactor maps a TaskID to the one-shot channel that the eventual
// host wake() call feeds, and coordinates the slot's release between the
// two events that must both occur before a TaskID is reusable: the wake
// arriving, and the awaiting goroutine abandoning its wait.
//
// Go's goroutines are themselves the guest's cooperative tasks, so "store
// a waker, then poll again" reduces to "receive from a channel" with no
// separate poll step.
package reactor

import (
	"sync"

	"github.com/mvanbem/ignition/internal/ignition/freelist"
)

// TaskID is the wire representation shared with the host.
type TaskID uint32

// InitSentinel is the task_id passed to wake() for the bootstrap
// invocation.
const InitSentinel TaskID = 0xFFFFFFFF

type slot struct {
	ch      chan uint32
	dropped bool
}

// Reactor holds one entry per outstanding asynchronous syscall. The guest
// is single-threaded, but this type still guards its slab with a mutex:
// Go's wasip1 target multiplexes goroutines onto a single OS thread, and
// user code may legitimately touch the reactor from what is, at the Go
// memory model's level, a different goroutine than the one that allocated
// the task.
type Reactor struct {
	mu    sync.Mutex
	slots freelist.FreeList[uint32, slot]
}

// New constructs an empty Reactor. Guest programs typically keep one
// package-level instance for the lifetime of the module.
func New() *Reactor {
	return &Reactor{}
}

// NewTask allocates a fresh TaskID and its backing wake channel. The
// channel has capacity 1: the host's exactly-once delivery promise means
// exactly one send will ever happen on it.
func (r *Reactor) NewTask() (TaskID, <-chan uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan uint32, 1)
	id := r.slots.Insert(slot{ch: ch})
	return TaskID(id), ch
}

// DispatchWake is called from the guest's wake export with the task_id and
// param the host delivered. It is a no-op for an id this reactor has
// already released (defensive only; the host's contract forbids this).
func (r *Reactor) DispatchWake(id TaskID, param uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots.TryGet(uint32(id))
	if !ok {
		return
	}
	s.ch <- param
	if s.dropped {
		r.slots.TryRemove(uint32(id))
	}
}

// Abandon releases id's slot once its awaiting goroutine stops waiting on
// the wake channel without having consumed a value from it (for example,
// because an enclosing select observed a different event first). If the
// wake already arrived, the slot is freed immediately; otherwise it stays
// reserved until a later DispatchWake observes dropped and frees it.
// Whichever of the two events happens second releases the slot.
func (r *Reactor) Abandon(id TaskID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots.TryGet(uint32(id))
	if !ok {
		return
	}
	select {
	case <-s.ch:
		r.slots.TryRemove(uint32(id))
	default:
		s.dropped = true
	}
}

// DropUnused releases id's slot when the syscall it was allocated for
// completed synchronously. The host only promises a wake for calls that
// returned pending; an id whose call completed on the spot was never
// recorded host-side, so no wake will ever arrive for it and waiting for
// one (as Abandon does) would reserve the slot forever.
func (r *Reactor) DropUnused(id TaskID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots.TryRemove(uint32(id))
}

// Await blocks the calling goroutine until ch (as returned by NewTask)
// delivers its one value, then releases the slot unconditionally (the
// wake has just been consumed, so Abandon's "was it already delivered?"
// check would be redundant). It is the common case every pending call in
// guest/api, guest/io and guest/rpc reduces to.
func (r *Reactor) Await(id TaskID, ch <-chan uint32) uint32 {
	param := <-ch
	r.mu.Lock()
	r.slots.TryRemove(uint32(id))
	r.mu.Unlock()
	return param
}
