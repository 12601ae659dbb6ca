//go:build wasip1

// Package io provides ReadHandle/WriteHandle, the guest-facing wrappers
// over one host-side I/O endpoint each.
package io

import (
	"unsafe"

	"github.com/mvanbem/ignition/guest/reactor"
	"github.com/mvanbem/ignition/guest/sys"
)

// ReadHandle wraps a reader-side I/O handle.
type ReadHandle struct {
	r  *reactor.Reactor
	io uint32
}

// NewReadHandle wraps a raw io_read handle, typically one returned by an
// rpc request or by a pipe constructed elsewhere in the host.
func NewReadHandle(r *reactor.Reactor, handle uint32) ReadHandle {
	return ReadHandle{r: r, io: handle}
}

// Read fills buf with up to len(buf) bytes, returning the number read.
// Zero means the peer closed its end (EOF).
func (h ReadHandle) Read(buf []byte) uint32 {
	id, ch := h.r.NewTask()
	var n uint32
	var ptr unsafe.Pointer
	if len(buf) > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}
	if sys.IoRead(uint32(id), h.io, ptr, uint32(len(buf)), &n) == 0 {
		h.r.DropUnused(id) // completed synchronously: no wake is coming for this id
		return n
	}
	return h.r.Await(id, ch)
}

// ReadExact reads until buf is full. It panics if the peer closes before
// buf is filled, since that indicates a protocol violation by the peer
// rather than a recoverable I/O condition.
func (h ReadHandle) ReadExact(buf []byte) {
	for len(buf) > 0 {
		n := h.Read(buf)
		if n == 0 {
			panic("io: peer closed before ReadExact was satisfied")
		}
		buf = buf[n:]
	}
}

// ReadToEnd reads until EOF and returns everything read.
func (h ReadHandle) ReadToEnd() []byte {
	const chunk = 4096
	var out []byte
	buf := make([]byte, chunk)
	for {
		n := h.Read(buf)
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}

// Close releases the underlying I/O object. The handle is reusable by a
// later pipe construction once closed.
func (h ReadHandle) Close() { sys.IoClose(h.io) }

// WriteHandle wraps a writer-side IoObject handle.
type WriteHandle struct {
	r  *reactor.Reactor
	io uint32
}

// NewWriteHandle wraps a raw io_write handle.
func NewWriteHandle(r *reactor.Reactor, handle uint32) WriteHandle {
	return WriteHandle{r: r, io: handle}
}

// Write writes up to len(buf) bytes, returning the number written.
func (h WriteHandle) Write(buf []byte) uint32 {
	id, ch := h.r.NewTask()
	var n uint32
	var ptr unsafe.Pointer
	if len(buf) > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}
	if sys.IoWrite(uint32(id), h.io, ptr, uint32(len(buf)), &n) == 0 {
		h.r.DropUnused(id)
		return n
	}
	return h.r.Await(id, ch)
}

// WriteAll writes every byte of buf, blocking across as many host-side
// rendezvous as it takes the reading side to consume it.
func (h WriteHandle) WriteAll(buf []byte) {
	for len(buf) > 0 {
		n := h.Write(buf)
		if n == 0 {
			panic("io: write to closed pipe")
		}
		buf = buf[n:]
	}
}

// Close releases the underlying I/O object.
func (h WriteHandle) Close() { sys.IoClose(h.io) }
