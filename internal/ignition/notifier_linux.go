//go:build linux

package ignition

import (
	"encoding/binary"
	"sync"

	"golang.org/x/sys/unix"
)

// notifier wakes a process's scheduler goroutine when its wake queue gains
// an entry from some other goroutine (a timer firing, a pipe rendezvous
// completing on another process's time, a service registration). It is
// backed by a Linux eventfd rather than a busy poll of the queue.
//
// signal must stay safe after close: a timer or peer pipe close can outlive
// the process it targets (shutdown is not cancellation), and a late write
// must be dropped rather than land on a recycled fd number.
type notifier struct {
	mu     sync.Mutex
	fd     int
	closed bool
}

func newNotifier() (*notifier, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &notifier{fd: fd}, nil
}

// signal wakes one pending wait, coalescing with any signal not yet
// observed (eventfd semantics: writes accumulate into a counter that a
// single read drains entirely).
func (n *notifier) signal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(n.fd, buf[:])
}

// wait blocks until signal has been called at least once since the last
// wait returned.
func (n *notifier) wait() error {
	var buf [8]byte
	for {
		_, err := unix.Read(n.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

func (n *notifier) close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return unix.Close(n.fd)
}
