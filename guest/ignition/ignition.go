//go:build wasip1

// Package ignition wires together guest/reactor, guest/executor and the
// single wake export required of every guest, declared with Go's native
// //go:wasmexport directive.
package ignition

import (
	"github.com/mvanbem/ignition/guest/executor"
	"github.com/mvanbem/ignition/guest/reactor"
)

// Reactor and Executor are the guest's single package-level instances,
// shared by every task the module spawns for the lifetime of the
// instance.
var (
	Reactor  = reactor.New()
	Executor = executor.New()
)

// initFunc is set by Init before the host ever calls wake(); it runs
// exactly once, on the bootstrap wake (task_id = INIT_SENTINEL).
var initFunc func()

// Init registers the guest's entry point. Call it from an init() function
// or main() before returning control to the host.
func Init(fn func()) {
	initFunc = fn
}

//go:wasmexport wake
func wake(taskID uint32, param uint32) {
	if reactor.TaskID(taskID) == reactor.InitSentinel {
		if initFunc != nil {
			initFunc()
		}
		return
	}
	Reactor.DispatchWake(reactor.TaskID(taskID), param)
}
