package ignition

// Guest is the minimal surface the scheduler loop needs from a hosted
// WebAssembly instance: its single wake export. A Wake that returns a
// non-nil error is treated as an engine trap (HostError), terminating this
// process's loop only.
type Guest interface {
	Wake(taskID TaskID, param uint32) error
}

// Run drives p's scheduler loop: push the bootstrap wake, then repeatedly
// pop and deliver wakes to guest until shutdown is observed immediately
// after a wake returns. It returns nil on a clean shutdown, or a
// *HostError if guest.Wake traps.
//
// Two concurrent calls to Run for the same Process must never happen; the
// scheduler owns the sole goroutine that is allowed to call guest.Wake.
func Run(p *Process, guest Guest) error {
	p.enqueueWake(INIT_SENTINEL, 0)

	for {
		taskID, param, ok := p.PopWake()
		if !ok {
			if p.IsShutdown() {
				return nil
			}
			if err := p.WaitForWake(); err != nil {
				return &HostError{Cause: err}
			}
			continue
		}

		if err := guest.Wake(taskID, param); err != nil {
			p.Logger.Err().Err(err).Uint64("task_id", uint64(taskID)).Log("guest trapped")
			return &HostError{Cause: err}
		}

		if p.IsShutdown() {
			return nil
		}
	}
}
