// Package ignition implements the host side of the Ignition runtime: the
// per-process wake queue, the pipe rendezvous primitive, the I/O object
// table, the service registry, and the scheduler loop that drives each
// guest's wake export.
package ignition

import "fmt"

// TrapError signals an ABI violation or resource exhaustion: a bad pointer,
// bad UTF-8, an unknown I/O or RPC handle, an unregistered RPC method name,
// or a failed handle/task-id allocation. A TrapError terminates the guest
// that caused it; it is never recovered.
type TrapError struct {
	Cause   error
	Message string
}

func (e *TrapError) Error() string {
	if e.Message == "" {
		return "ignition: trap"
	}
	return "ignition: trap: " + e.Message
}

func (e *TrapError) Unwrap() error { return e.Cause }

// NewTrapError constructs a TrapError from a format string.
func NewTrapError(format string, args ...any) *TrapError {
	return &TrapError{Message: fmt.Sprintf(format, args...)}
}

// HostError is what the scheduler loop returns when a process's loop fails:
// the guest's wake call returned an error (an engine trap from any cause,
// including a TrapError raised by a host function), or waiting for the next
// wake failed. A HostError terminates only the process it came from; the
// scheduler loops of other processes are unaffected.
type HostError struct {
	Cause error
}

func (e *HostError) Error() string {
	if e.Cause == nil {
		return "ignition: host error"
	}
	return "ignition: host error: " + e.Cause.Error()
}

func (e *HostError) Unwrap() error { return e.Cause }

// closedPipeError never escapes this package: writing to a closed pipe is
// surfaced to the guest as a TrapError, the same class as any other ABI
// violation, rather than a new wire result code.
type closedPipeError struct{}

func (closedPipeError) Error() string { return "ignition: write to closed pipe" }
