package ignition

import "sync"

// waker is how a pipe delivers a completion wake without calling back into
// a process directly: the pipe only ever pushes onto a wake queue, owned
// by whichever Process the pending endpoint belongs to, so no cycle forms
// between pipes and process state.
type waker interface {
	enqueueWake(id TaskID, param uint32)
}

type pipeState int

const (
	pipeIdle pipeState = iota
	pipePendingRead
	pipePendingWrite
	pipeClosed
)

// pipe is a rendezvous zero-copy byte transport between one reader and one
// writer endpoint, with no buffering beyond the in-flight request.
// dst/src reference the requesting guest's linear memory for the duration
// the request is pending; the ABI layer is responsible for bounds-checking
// them before the pending state is entered, and for never reusing the
// memory view across a call boundary in a way that would invalidate it
// before the matching wake is delivered.
type pipe struct {
	mu    sync.Mutex
	state pipeState

	// pending reader fields, valid only in pipePendingRead
	readWaker  waker
	readTaskID TaskID
	dst        []byte

	// pending writer fields, valid only in pipePendingWrite
	writeWaker  waker
	writeTaskID TaskID
	src         []byte
}

func newPipe() *pipe {
	return &pipe{state: pipeIdle}
}

// read returns (n, true) on synchronous completion, or (0, false) if the
// read is now pending; the eventual wake carries the byte count as its
// param.
func (p *pipe) read(w waker, taskID TaskID, dst []byte) (n uint32, ready bool) {
	if len(dst) == 0 {
		return 0, true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case pipeIdle:
		p.state = pipePendingRead
		p.readWaker, p.readTaskID, p.dst = w, taskID, dst
		return 0, false

	case pipePendingRead:
		panic("ignition: pipe read with a read already pending")

	case pipePendingWrite:
		n := copy(dst, p.src)
		ww, wt := p.writeWaker, p.writeTaskID
		p.writeWaker, p.src = nil, nil
		p.state = pipeIdle
		ww.enqueueWake(wt, uint32(n))
		return uint32(n), true

	default: // pipeClosed
		return 0, true
	}
}

// write is the dual of read. Writing to a closed pipe fails with
// closedPipeError, which the I/O layer surfaces as a trap.
func (p *pipe) write(w waker, taskID TaskID, src []byte) (n uint32, ready bool, err error) {
	if len(src) == 0 {
		return 0, true, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case pipeIdle:
		p.state = pipePendingWrite
		p.writeWaker, p.writeTaskID, p.src = w, taskID, src
		return 0, false, nil

	case pipePendingRead:
		n := copy(p.dst, src)
		rw, rt := p.readWaker, p.readTaskID
		p.readWaker, p.dst = nil, nil
		p.state = pipeIdle
		rw.enqueueWake(rt, uint32(n))
		return uint32(n), true, nil

	case pipePendingWrite:
		panic("ignition: pipe write with a write already pending")

	default: // pipeClosed
		return 0, true, closedPipeError{}
	}
}

// close transitions the pipe towards pipeClosed. A pending reader is woken
// with a zero-byte result (EOF). A pending writer is also woken with a
// zero-byte result; any write issued after the close fails instead (see
// write's pipeClosed case).
func (p *pipe) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case pipeIdle:
		p.state = pipeClosed
	case pipePendingRead:
		rw, rt := p.readWaker, p.readTaskID
		p.readWaker, p.dst = nil, nil
		p.state = pipeClosed
		rw.enqueueWake(rt, 0)
	case pipePendingWrite:
		ww, wt := p.writeWaker, p.writeTaskID
		p.writeWaker, p.src = nil, nil
		p.state = pipeClosed
		ww.enqueueWake(wt, 0)
	case pipeClosed:
		// already closed
	}
}
