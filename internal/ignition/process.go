package ignition

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mvanbem/ignition/internal/ignition/freelist"
	"github.com/mvanbem/ignition/internal/logging"
)

// rpcServerSlot is the server side of one registered service: its ordered
// method names, their index lookup, the pending request queue, and the set
// of tasks blocked in get_request.
type rpcServerSlot struct {
	serviceName  string
	methodNames  []string
	methodIndex  map[string]uint32
	requestQueue []RpcMetadata
	waitingTasks map[TaskID]struct{}
}

type rpcClientSlot struct {
	serviceName string
}

// RpcMetadata is the tuple delivered from a server's get_request: the
// method to invoke and the I/O handles for its request and response
// streams.
type RpcMetadata struct {
	MethodIndex uint32
	RequestIO   IoHandle
	ResponseIO  IoHandle
}

// Process is the host-side state of one guest: pid, start time, an atomic
// shutdown flag, a wake-queue sender, and slabs for RPC clients, RPC
// servers and I/O objects behind one inner mutex. It is
// shared by the scheduler loop, every host-side asynchronous task spawned on
// its behalf (timers, pipe rendezvous callbacks), and the service registry
// when this guest hosts a server.
type Process struct {
	PID       uint64
	StartTime time.Time
	Logger    *logging.Logger

	shutdown atomic.Bool
	notify   *notifier

	mu         sync.Mutex
	wake       wakeQueue
	ioObjects  freelist.FreeList[uint32, ioObject]
	rpcClients freelist.FreeList[uint32, rpcClientSlot]
	rpcServers freelist.FreeList[uint32, *rpcServerSlot]
}

// NewProcess constructs a Process with a fresh wake queue and wakeup
// notifier. Callers must call Close once the scheduler loop for this
// process has exited, to release the notifier's OS resources.
func NewProcess(pid uint64, logger *logging.Logger) (*Process, error) {
	n, err := newNotifier()
	if err != nil {
		return nil, err
	}
	return &Process{
		PID:       pid,
		StartTime: time.Now(),
		Logger:    logging.ForProcess(logger, pid),
		notify:    n,
	}, nil
}

// enqueueWake implements waker, letting pipes, timers and the registry push
// a completion onto this process's wake queue without calling back into the
// process synchronously.
func (p *Process) enqueueWake(id TaskID, param uint32) {
	p.mu.Lock()
	p.wake.push(wakeEntry{TaskID: id, Param: param})
	p.mu.Unlock()
	p.notify.signal()
}

// Impulse enqueues an immediate wake for taskID with param = 0.
func (p *Process) Impulse(taskID TaskID) {
	p.enqueueWake(taskID, 0)
}

// Sleep schedules a wake for taskID after the given duration has elapsed.
// The timer is a plain host-side goroutine; it
// holds no process-state lock while waiting and only ever reaches the
// process through enqueueWake, so it cannot deadlock against the scheduler.
func (p *Process) Sleep(taskID TaskID, d time.Duration) {
	time.AfterFunc(d, func() {
		p.enqueueWake(taskID, 0)
	})
}

// IsShutdown reports whether Shutdown has been called for this process.
func (p *Process) IsShutdown() bool { return p.shutdown.Load() }

// Shutdown requests termination of this guest after the current wake
// returns.
func (p *Process) Shutdown() {
	p.shutdown.Store(true)
	p.notify.signal()
}

// Close releases the process state once its scheduler loop has exited:
// every remaining I/O object is closed, draining or erroring out any
// rendezvous in
// progress, and the wakeup notifier is released. The pipe closes happen
// after p.mu is dropped; each may enqueue a wake on whichever process owns
// the peer endpoint, which can be this one.
func (p *Process) Close() error {
	p.mu.Lock()
	var objs []ioObject
	for i := 0; i < p.ioObjects.Len(); i++ {
		if obj, ok := p.ioObjects.TryRemove(uint32(i)); ok {
			objs = append(objs, obj)
		}
	}
	p.mu.Unlock()
	for _, obj := range objs {
		obj.close()
	}
	return p.notify.close()
}

// newIoReader/newIoWriter insert a fresh I/O object wrapping one side of a
// pipe and return its handle.
func (p *Process) newIoReader(pp *pipe) IoHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return IoHandle(p.ioObjects.Insert(readerObject(pp)))
}

func (p *Process) newIoWriter(pp *pipe) IoHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return IoHandle(p.ioObjects.Insert(writerObject(pp)))
}

// IoRead implements the io_read syscall: it resolves handle, runs the read
// against the wrapped pipe, and returns (n, ready, err). Unknown handles
// are a TrapError.
func (p *Process) IoRead(taskID TaskID, handle IoHandle, dst []byte) (n uint32, ready bool, err error) {
	obj, ok := p.lookupIoObject(handle)
	if !ok {
		return 0, true, NewTrapError("bad io handle %d", handle)
	}
	return obj.read(p, taskID, dst)
}

// IoWrite implements the io_write syscall.
func (p *Process) IoWrite(taskID TaskID, handle IoHandle, src []byte) (n uint32, ready bool, err error) {
	obj, ok := p.lookupIoObject(handle)
	if !ok {
		return 0, true, NewTrapError("bad io handle %d", handle)
	}
	return obj.write(p, taskID, src)
}

// IoClose implements the io_close syscall.
//
// The slab mutation happens under p.mu, but obj.close() runs after it is
// released: closing a pipe may deliver a wake to whichever process owns the
// other endpoint, which could be this same process (reader and writer both
// live here); enqueueWake takes p.mu itself, so calling it while still
// holding the lock here would deadlock.
func (p *Process) IoClose(handle IoHandle) error {
	p.mu.Lock()
	obj, ok := p.ioObjects.TryRemove(uint32(handle))
	p.mu.Unlock()
	if !ok {
		return NewTrapError("bad io handle %d", handle)
	}
	obj.close()
	return nil
}

func (p *Process) lookupIoObject(handle IoHandle) (obj ioObject, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.ioObjects.TryGet(uint32(handle))
	if !ok {
		return ioObject{}, false
	}
	return *o, true
}

// PopWake removes and returns the next pending wake for this process, if
// any.
func (p *Process) PopWake() (TaskID, uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.wake.pop()
	return e.TaskID, e.Param, ok
}

// WaitForWake blocks until PopWake would return something, or the process
// has been shut down.
func (p *Process) WaitForWake() error {
	return p.notify.wait()
}
