// Package executor is the guest-side cooperative scheduler. Go already has
// a lightweight cooperative task, the goroutine: Spawn starts one, and the
// guest's wake export (reactor.Reactor.DispatchWake) is what lets a parked
// goroutine resume, with no run queue or poll loop to write.
//
// wasip1 runs an entire module instance on a single OS thread, so spawned
// goroutines never execute truly concurrently with each other or with
// wake(); the guest stays single-threaded cooperative by construction.
package executor

import "sync"

// Executor tracks every goroutine spawned on the guest's behalf, so a
// caller (typically the module's init, for diagnostics or tests) can wait
// for all outstanding work to finish.
type Executor struct {
	wg sync.WaitGroup
}

// New constructs an empty Executor.
func New() *Executor {
	return &Executor{}
}

// Spawn starts fn on its own goroutine, tracked by Wait. A task that
// returns without completing all its own awaits (because it fell through
// a select on a cancellation channel, say) leaks nothing on the Go side;
// any reactor slots it abandoned mid-flight are reclaimed by
// reactor.Reactor.Abandon as usual.
func (e *Executor) Spawn(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

// Wait blocks until every task spawned so far has returned. Most guest
// programs never call this directly, since wake() returns immediately and
// the module stays alive across calls as long as any goroutine is parked
// on a reactor channel, but it is the natural shape for a bounded
// benchmark (spawn N tasks, await all, then shut down).
func (e *Executor) Wait() {
	e.wg.Wait()
}
